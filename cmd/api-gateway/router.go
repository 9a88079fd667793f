package main

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/docaccess-api/api/swagger"
	"github.com/noah-isme/docaccess-api/internal/handler"
	"github.com/noah-isme/docaccess-api/internal/middleware"
	"github.com/noah-isme/docaccess-api/internal/models"
	"github.com/noah-isme/docaccess-api/internal/service"
	"github.com/noah-isme/docaccess-api/pkg/config"
	"github.com/noah-isme/docaccess-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/docaccess-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/docaccess-api/pkg/middleware/requestid"
)

type routerDeps struct {
	cfg        *config.Config
	logger     *zap.Logger
	metrics    *service.MetricsService
	auth       middleware.TokenValidator
	limiter    middleware.Admitter
	system     *handler.SystemHandler
	requests   *handler.RequestHandler
	analytics  *handler.AnalyticsHandler
	serveFiles bool
}

func newRouter(deps routerDeps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(deps.logger))
	r.Use(corsmiddleware.New(deps.cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(deps.metrics, "/health", "/ready", "/metrics"))

	system := deps.system
	if system == nil {
		system = handler.NewSystemHandler(deps.metrics)
	}
	r.GET("/health", system.Health)
	r.GET("/ready", system.Ready)
	r.GET("/metrics", system.Prometheus)

	if deps.cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(deps.cfg.APIPrefix)
	api.POST("/requests", middleware.RateLimit(deps.limiter, deps.logger), deps.requests.Create)
	if deps.serveFiles {
		api.GET("/requests/files", deps.requests.Download)
	}

	reviewers := api.Group("")
	reviewers.Use(middleware.JWT(deps.auth), middleware.RequireRoles(models.RoleDean, models.RoleAdmin))
	reviewers.GET("/requests", deps.requests.List)
	reviewers.GET("/requests/:id", deps.requests.Get)
	reviewers.POST("/requests/:id/respond", middleware.Audit(deps.logger, "request.respond"), deps.requests.Respond)
	reviewers.GET("/analytics/requests/summary", deps.analytics.Summary)
	reviewers.GET("/analytics/requests/export", middleware.Audit(deps.logger, "analytics.export"), deps.analytics.Export)

	return r
}
