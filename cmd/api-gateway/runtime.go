package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"

	"github.com/noah-isme/docaccess-api/internal/repository"
	"github.com/noah-isme/docaccess-api/pkg/config"
	"github.com/noah-isme/docaccess-api/pkg/database"
	"github.com/noah-isme/docaccess-api/pkg/logger"
	"github.com/noah-isme/docaccess-api/pkg/retry"
	"github.com/noah-isme/docaccess-api/pkg/storage"
)

type runtime struct {
	cfg    *config.Config
	logger *zap.Logger
	mongo  *mongo.Client
}

func newRuntime() (*runtime, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logr, err := logger.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}
	return &runtime{cfg: cfg, logger: logr}, nil
}

func (r *runtime) sync() {
	_ = r.logger.Sync()
}

func (r *runtime) retryExecutor() *retry.Executor {
	jitter := r.cfg.Replication.JitterPercent
	if jitter < 0 {
		jitter = 0
	}
	return retry.New(retry.Config{
		MaxAttempts:   r.cfg.Replication.MaxAttempts,
		BaseDelay:     r.cfg.Replication.BaseDelay,
		JitterPercent: uint64(jitter),
		Logger:        r.logger.Named("retry"),
	})
}

// openRequests connects to the document store and returns the request repository with a
// cleanup func.
func (r *runtime) openRequests(ctx context.Context) (*repository.RequestRepository, func(), error) {
	client, db, err := database.NewMongo(ctx, r.cfg.Mongo)
	if err != nil {
		return nil, nil, err
	}
	r.mongo = client
	repo := repository.NewRequestRepository(db)
	if err := repo.EnsureIndexes(ctx); err != nil {
		r.logger.Warn("ensure request indexes failed", zap.Error(err))
	}
	return repo, func() { disconnectMongo(client, r.logger) }, nil
}

// mongoProbe pings the primary opened by openRequests.
func (r *runtime) mongoProbe(ctx context.Context) error {
	if r.mongo == nil {
		return errors.New("not connected")
	}
	return r.mongo.Ping(ctx, readpref.Primary())
}

func disconnectMongo(client *mongo.Client, logr *zap.Logger) {
	if err := client.Disconnect(context.Background()); err != nil {
		logr.Warn("mongo disconnect failed", zap.Error(err))
	}
}

type artifactStore interface {
	Put(ctx context.Context, key string, body []byte, contentType string) error
	SignedURL(ctx context.Context, key string, ttl time.Duration) (string, time.Time, error)
	Delete(ctx context.Context, key string) error
}

// newArtifactStore selects the object store. The local driver also returns the store so the
// router can serve its signed download route.
func (r *runtime) newArtifactStore(ctx context.Context) (artifactStore, *storage.LocalObjectStore, error) {
	cfg := r.cfg.Storage
	switch cfg.Driver {
	case config.StorageDriverS3:
		store, err := storage.NewS3ObjectStore(ctx, cfg)
		if err != nil {
			return nil, nil, err
		}
		return store, nil, nil
	case config.StorageDriverLocal:
		files, err := storage.NewLocalStorage(cfg.LocalDir)
		if err != nil {
			return nil, nil, err
		}
		signer := storage.NewSignedURLSigner(cfg.SignedURLSecret, cfg.SignedURLTTL)
		downloadURL := cfg.PublicBaseURL + strings.TrimRight(r.cfg.APIPrefix, "/") + "/requests/files"
		store := storage.NewLocalObjectStore(files, signer, downloadURL)
		return store, store, nil
	default:
		return nil, nil, fmt.Errorf("unsupported storage driver %q", cfg.Driver)
	}
}
