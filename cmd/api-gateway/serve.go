package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/noah-isme/docaccess-api/internal/handler"
	"github.com/noah-isme/docaccess-api/internal/repository"
	"github.com/noah-isme/docaccess-api/internal/scheduler"
	"github.com/noah-isme/docaccess-api/internal/service"
	"github.com/noah-isme/docaccess-api/pkg/cache"
	"github.com/noah-isme/docaccess-api/pkg/database"
	"github.com/noah-isme/docaccess-api/pkg/mailer"
	"github.com/noah-isme/docaccess-api/pkg/markdown"
)

const shutdownTimeout = 20 * time.Second

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API with its background workers and scheduler",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}
}

func runServe(parent context.Context) error {
	if parent == nil {
		parent = context.Background()
	}
	rt, err := newRuntime()
	if err != nil {
		return err
	}
	defer rt.sync()
	cfg, logr := rt.cfg, rt.logger

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	requestRepo, closeMongo, err := rt.openRequests(ctx)
	if err != nil {
		return err
	}
	defer closeMongo()

	// Redis and Postgres are optional at boot: the limiter fails open and the mirror retries.
	redisClient := cache.NewRedisClient(cfg.Redis)
	defer redisClient.Close()
	pg, err := database.OpenPostgres(cfg.Database)
	if err != nil {
		return err
	}
	defer pg.Close()

	objects, localFiles, err := rt.newArtifactStore(ctx)
	if err != nil {
		return fmt.Errorf("init object store: %w", err)
	}

	metrics := service.NewMetricsService()
	retryExec := rt.retryExecutor()
	mirrorRepo := repository.NewAnalyticsRepository(pg)

	replicator := service.NewAnalyticsReplicator(mirrorRepo, retryExec, service.ReplicatorConfig{
		Workers:    cfg.Replication.Workers,
		BufferSize: cfg.Replication.BufferSize,
		OpTimeout:  cfg.Replication.OpTimeout,
	}, logr, metrics)
	notifier := service.NewNotificationService(mailer.NewSMTPMailer(cfg.Mail), markdown.NewRenderer(), retryExec, service.NotificationConfig{
		Workers: cfg.Mail.Workers,
	}, logr, metrics)

	requestSvc := service.NewRequestService(requestRepo, objects, replicator, notifier, service.RequestServiceConfig{
		SignedURLTTL:     cfg.Storage.SignedURLTTL,
		ArchiveRetention: cfg.Archive.Retention,
	}, logr, metrics)
	rateLimitSvc := service.NewRateLimitService(repository.NewRateLimitRepository(redisClient), service.RateLimitConfig{
		Limit:            cfg.RateLimit.PerDay,
		SweepProbability: cfg.RateLimit.SweepProbability,
		SweepAge:         cfg.RateLimit.SweepAge,
	}, logr, metrics)
	analyticsSvc := service.NewAnalyticsService(mirrorRepo, repository.NewCacheRepository(redisClient, "docaccess:analytics"), cfg.Analytics.CacheTTL, logr)
	authSvc := service.NewAuthService(service.AuthConfig{
		Secret:   cfg.JWT.Secret,
		Issuer:   cfg.JWT.Issuer,
		Audience: cfg.JWT.Audience,
	}, logr)

	workerCtx, cancelWorkers := context.WithCancel(context.Background())
	defer cancelWorkers()
	replicator.Start(workerCtx)
	notifier.Start(workerCtx)

	var sched *scheduler.Manager
	if cfg.Archive.Enabled {
		sched, err = scheduler.NewManager(logr, 30*time.Minute)
		if err != nil {
			return err
		}
		if err := sched.Register("archive-requests", cfg.Archive.Schedule, func(ctx context.Context) error {
			_, err := requestSvc.Archive(ctx)
			return err
		}); err != nil {
			return err
		}
		sched.Start()
	}

	submissions := service.NewRequestValidator(validator.New())
	requestHandler := handler.NewRequestHandler(requestSvc, submissions, nil)
	if localFiles != nil {
		requestHandler = handler.NewRequestHandler(requestSvc, submissions, localFiles)
	}
	system := handler.NewSystemHandler(metrics).
		WithCheck("mongo", true, rt.mongoProbe).
		WithCheck("redis", false, func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }).
		WithCheck("postgres", false, pg.PingContext)
	router := newRouter(routerDeps{
		cfg:        cfg,
		logger:     logr,
		metrics:    metrics,
		auth:       authSvc,
		system:     system,
		limiter:    rateLimitSvc,
		requests:   requestHandler,
		analytics:  handler.NewAnalyticsHandler(analyticsSvc),
		serveFiles: localFiles != nil,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	serveErr := make(chan error, 1)
	go func() {
		logr.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
		logr.Info("shutdown requested")
	case err := <-serveErr:
		if err != nil {
			logr.Error("server failed", zap.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Warn("http shutdown incomplete", zap.Error(err))
	}
	if sched != nil {
		if err := sched.Shutdown(); err != nil {
			logr.Warn("scheduler shutdown failed", zap.Error(err))
		}
	}
	replicator.Stop(shutdownCtx)
	notifier.Stop(shutdownCtx)
	rateLimitSvc.Wait()
	logr.Info("server stopped")
	return nil
}
