package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/docaccess-api/internal/service"
)

const unmatchedRoute = "unmatched"

// Metrics records latency and status per route template. Probe and scrape routes listed in
// skip are not observed.
func Metrics(metrics *service.MetricsService, skip ...string) gin.HandlerFunc {
	if metrics == nil {
		return func(c *gin.Context) { c.Next() }
	}
	ignored := make(map[string]struct{}, len(skip))
	for _, route := range skip {
		ignored[route] = struct{}{}
	}

	return func(c *gin.Context) {
		began := time.Now()
		c.Next()

		route := c.FullPath()
		if _, ok := ignored[route]; ok && route != "" {
			return
		}
		if route == "" {
			route = unmatchedRoute
		}
		metrics.ObserveHTTPRequest(c.Request.Method, route, c.Writer.Status(), time.Since(began))
	}
}
