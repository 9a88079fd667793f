package handler

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/docaccess-api/internal/service"
)

const probeTimeout = 2 * time.Second

// Probe reports whether a backing service answers.
type Probe func(ctx context.Context) error

type check struct {
	name     string
	critical bool
	probe    Probe
}

// SystemHandler serves liveness, readiness and Prometheus scrapes.
type SystemHandler struct {
	metrics *service.MetricsService
	checks  []check
}

// NewSystemHandler constructs a system handler without readiness checks.
func NewSystemHandler(metrics *service.MetricsService) *SystemHandler {
	return &SystemHandler{metrics: metrics}
}

// WithCheck registers a readiness probe. A failing critical probe turns /ready into 503;
// other failures only mark the instance degraded.
func (h *SystemHandler) WithCheck(name string, critical bool, probe Probe) *SystemHandler {
	if probe != nil {
		h.checks = append(h.checks, check{name: name, critical: critical, probe: probe})
	}
	return h
}

// Health godoc
// @Summary Liveness probe
// @Tags System
// @Produce json
// @Success 200 {object} map[string]string
// @Router /health [get]
func (h *SystemHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Ready godoc
// @Summary Readiness probe
// @Tags System
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 503 {object} map[string]interface{}
// @Router /ready [get]
func (h *SystemHandler) Ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), probeTimeout)
	defer cancel()

	results := make(map[string]string, len(h.checks))
	var (
		mu       sync.Mutex
		wg       sync.WaitGroup
		down     bool
		degraded bool
	)
	for _, ck := range h.checks {
		wg.Add(1)
		go func(ck check) {
			defer wg.Done()
			err := ck.probe(ctx)
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				results[ck.name] = "ok"
				return
			}
			results[ck.name] = err.Error()
			if ck.critical {
				down = true
			} else {
				degraded = true
			}
		}(ck)
	}
	wg.Wait()

	status, code := "ready", http.StatusOK
	switch {
	case down:
		status, code = "unavailable", http.StatusServiceUnavailable
	case degraded:
		status = "degraded"
	}
	c.JSON(code, gin.H{"status": status, "checks": results})
}

// Prometheus serves the scrape endpoint.
func (h *SystemHandler) Prometheus(c *gin.Context) {
	if h.metrics == nil {
		c.Status(http.StatusServiceUnavailable)
		return
	}
	h.metrics.Handler().ServeHTTP(c.Writer, c.Request)
}
