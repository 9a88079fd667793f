package handler

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/docaccess-api/internal/models"
	"github.com/noah-isme/docaccess-api/internal/service"
	"github.com/noah-isme/docaccess-api/pkg/response"
)

type analyticsService interface {
	Summary(ctx context.Context, filter models.AnalyticsFilter) (*models.AnalyticsSummary, bool, error)
	Export(ctx context.Context, filter models.AnalyticsFilter, format string) (*service.ExportFile, error)
}

// AnalyticsHandler exposes reporting over the analytics mirror.
type AnalyticsHandler struct {
	analytics analyticsService
}

// NewAnalyticsHandler constructs the analytics handler.
func NewAnalyticsHandler(analytics analyticsService) *AnalyticsHandler {
	return &AnalyticsHandler{analytics: analytics}
}

// Summary godoc
// @Summary Request counts by status and user type
// @Tags Analytics
// @Produce json
// @Param from query string false "Created at or after (RFC3339 or YYYY-MM-DD)"
// @Param to query string false "Created before (RFC3339 or YYYY-MM-DD)"
// @Param status query string false "Status"
// @Param userType query string false "User type"
// @Success 200 {object} response.Envelope
// @Router /analytics/requests/summary [get]
func (h *AnalyticsHandler) Summary(c *gin.Context) {
	filter, err := parseAnalyticsFilter(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	start := time.Now()
	summary, cacheHit, err := h.analytics.Summary(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, summary, nil, map[string]interface{}{
		"cache_hit":          cacheHit,
		"processing_time_ms": time.Since(start).Milliseconds(),
	})
}

// Export godoc
// @Summary Export mirrored requests
// @Tags Analytics
// @Produce text/csv,application/pdf
// @Param format query string false "csv or pdf" default(csv)
// @Param from query string false "Created at or after"
// @Param to query string false "Created before"
// @Success 200 {file} file
// @Router /analytics/requests/export [get]
func (h *AnalyticsHandler) Export(c *gin.Context) {
	filter, err := parseAnalyticsFilter(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	format := c.DefaultQuery("format", service.ExportFormatCSV)
	file, err := h.analytics.Export(c.Request.Context(), filter, format)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", file.Name))
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, file.ContentType, file.Body)
}

func parseAnalyticsFilter(c *gin.Context) (models.AnalyticsFilter, error) {
	from, err := queryTime(c, "from")
	if err != nil {
		return models.AnalyticsFilter{}, err
	}
	to, err := queryTime(c, "to")
	if err != nil {
		return models.AnalyticsFilter{}, err
	}
	return models.AnalyticsFilter{
		From:     from,
		To:       to,
		Status:   models.RequestStatus(strings.ToLower(c.Query("status"))),
		UserType: models.UserType(strings.ToLower(c.Query("userType"))),
	}, nil
}
