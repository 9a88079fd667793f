package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/docaccess-api/internal/models"
	"github.com/noah-isme/docaccess-api/pkg/jobs"
	"github.com/noah-isme/docaccess-api/pkg/retry"
)

const (
	mirrorOpCreate = "create"
	mirrorOpStatus = "status"
)

type mirrorStore interface {
	Insert(ctx context.Context, record models.MirrorRecord) error
	UpdateStatus(ctx context.Context, requestID string, status models.RequestStatus, at time.Time) error
}

type mirrorStatusEvent struct {
	RequestID string
	Status    models.RequestStatus
	At        time.Time
}

// ReplicatorConfig sizes the mirror worker pool.
type ReplicatorConfig struct {
	Workers    int
	BufferSize int
	OpTimeout  time.Duration
}

// AnalyticsReplicator copies request lifecycle events into the relational mirror. Callers
// never wait on it: events are queued, each write is retried with backoff, and exhausted or
// overflowing events are logged and dropped.
type AnalyticsReplicator struct {
	store     mirrorStore
	retry     *retry.Executor
	queue     *jobs.Queue
	opTimeout time.Duration
	logger    *zap.Logger
	metrics   *MetricsService
}

// NewAnalyticsReplicator wires the replicator and its queue. Call Start before publishing.
func NewAnalyticsReplicator(store mirrorStore, executor *retry.Executor, cfg ReplicatorConfig, logger *zap.Logger, metrics *MetricsService) *AnalyticsReplicator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if executor == nil {
		executor = retry.New(retry.Config{Logger: logger})
	}
	if cfg.OpTimeout <= 0 {
		cfg.OpTimeout = 5 * time.Second
	}
	r := &AnalyticsReplicator{
		store:     store,
		retry:     executor,
		opTimeout: cfg.OpTimeout,
		logger:    logger.Named("analytics_replicator"),
		metrics:   metrics,
	}
	r.queue = jobs.NewQueue("analytics-mirror", r.handle, jobs.QueueConfig{
		Workers:    cfg.Workers,
		BufferSize: cfg.BufferSize,
		Logger:     r.logger,
	})
	return r
}

// Start launches the workers.
func (r *AnalyticsReplicator) Start(ctx context.Context) {
	r.queue.Start(ctx)
}

// Stop drains queued events until ctx expires.
func (r *AnalyticsReplicator) Stop(ctx context.Context) {
	r.queue.Stop(ctx)
}

// MirrorCreate queues the insert of a freshly submitted request.
func (r *AnalyticsReplicator) MirrorCreate(req *models.Request) {
	record := models.MirrorRecordFromRequest(req)
	r.publish(jobs.Job{ID: req.ID, Type: mirrorOpCreate, Payload: record})
}

// MirrorStatus queues a status change for requestID.
func (r *AnalyticsReplicator) MirrorStatus(requestID string, status models.RequestStatus, at time.Time) {
	r.publish(jobs.Job{ID: requestID, Type: mirrorOpStatus, Payload: mirrorStatusEvent{RequestID: requestID, Status: status, At: at}})
}

func (r *AnalyticsReplicator) publish(job jobs.Job) {
	if err := r.queue.Enqueue(job); err != nil {
		r.logger.Warn("dropping analytics mirror event",
			zap.String("op", job.Type),
			zap.String("request_id", job.ID),
			zap.Error(err),
		)
		r.metrics.RecordMirrorWrite(job.Type, ResultDropped)
	}
}

func (r *AnalyticsReplicator) handle(ctx context.Context, job jobs.Job) error {
	var op func(context.Context) error
	switch payload := job.Payload.(type) {
	case models.MirrorRecord:
		op = func(ctx context.Context) error { return r.store.Insert(ctx, payload) }
	case mirrorStatusEvent:
		op = func(ctx context.Context) error {
			return r.store.UpdateStatus(ctx, payload.RequestID, payload.Status, payload.At)
		}
	default:
		return fmt.Errorf("unsupported mirror payload %T", job.Payload)
	}

	err := retry.Run(ctx, r.retry, "analytics.mirror."+job.Type, func(ctx context.Context) error {
		opCtx, cancel := context.WithTimeout(ctx, r.opTimeout)
		defer cancel()
		return op(opCtx)
	})
	if err != nil {
		r.logger.Error("analytics mirror write abandoned",
			zap.String("op", job.Type),
			zap.String("request_id", job.ID),
			zap.Int("attempts", r.retry.MaxAttempts()),
			zap.Error(err),
		)
		r.metrics.RecordMirrorWrite(job.Type, ResultFailure)
		return nil
	}
	r.metrics.RecordMirrorWrite(job.Type, ResultSuccess)
	return nil
}
