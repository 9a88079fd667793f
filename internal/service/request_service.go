package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	"github.com/noah-isme/docaccess-api/internal/models"
	"github.com/noah-isme/docaccess-api/internal/repository"
	appErrors "github.com/noah-isme/docaccess-api/pkg/errors"
	"github.com/noah-isme/docaccess-api/pkg/middleware/requestid"
)

const (
	defaultArtifactPrefix = "approved-requests"
	defaultSignedURLTTL   = 48 * time.Hour
	defaultArchiveBatch   = 500
)

type requestStore interface {
	Create(ctx context.Context, req *models.Request) error
	GetByID(ctx context.Context, id string) (*models.Request, error)
	List(ctx context.Context, filter models.RequestFilter) ([]models.Request, int, error)
	Resolve(ctx context.Context, id string, res models.RequestResolution) (*models.Request, error)
	ArchiveBatch(ctx context.Context, cutoff time.Time, limit int) (int64, error)
}

type objectStore interface {
	Put(ctx context.Context, key string, body []byte, contentType string) error
	SignedURL(ctx context.Context, key string, ttl time.Duration) (string, time.Time, error)
	Delete(ctx context.Context, key string) error
}

type mirrorPublisher interface {
	MirrorCreate(req *models.Request)
	MirrorStatus(requestID string, status models.RequestStatus, at time.Time)
}

type outcomeNotifier interface {
	NotifyOutcome(outcome Outcome)
}

// RequestServiceConfig tunes fulfilment and archival.
type RequestServiceConfig struct {
	SignedURLTTL     time.Duration
	ArtifactPrefix   string
	ArchiveRetention time.Duration
	ArchiveBatchSize int
}

// ResolveInput is a reviewer decision.
type ResolveInput struct {
	Status              models.RequestStatus
	DeanRemarks         string
	ApprovedChapters    []string
	Artifact            []byte
	ArtifactContentType string
	ReviewedBy          string
}

// Resolution is returned to the reviewer after a successful decision.
type Resolution struct {
	Request     *models.Request      `json:"-"`
	Status      models.RequestStatus `json:"status"`
	DownloadURL string               `json:"presignedUrl,omitempty"`
	ExpiresAt   *time.Time           `json:"expiresAt,omitempty"`
}

// RequestService owns the request lifecycle: submission, the single pending -> resolved
// transition with optional artifact delivery, reviewer queries and archival.
type RequestService struct {
	store    requestStore
	objects  objectStore
	mirror   mirrorPublisher
	notifier outcomeNotifier
	cfg      RequestServiceConfig
	logger   *zap.Logger
	metrics  *MetricsService
	now      func() time.Time
}

// RequestServiceOption configures the service.
type RequestServiceOption func(*RequestService)

// WithRequestClock overrides the time source.
func WithRequestClock(now func() time.Time) RequestServiceOption {
	return func(s *RequestService) {
		if now != nil {
			s.now = now
		}
	}
}

// NewRequestService constructs the service with defaults.
func NewRequestService(store requestStore, objects objectStore, mirror mirrorPublisher, notifier outcomeNotifier, cfg RequestServiceConfig, logger *zap.Logger, metrics *MetricsService, opts ...RequestServiceOption) *RequestService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.SignedURLTTL <= 0 {
		cfg.SignedURLTTL = defaultSignedURLTTL
	}
	if cfg.ArtifactPrefix == "" {
		cfg.ArtifactPrefix = defaultArtifactPrefix
	}
	if cfg.ArchiveBatchSize <= 0 {
		cfg.ArchiveBatchSize = defaultArchiveBatch
	}
	svc := &RequestService{
		store:    store,
		objects:  objects,
		mirror:   mirror,
		notifier: notifier,
		cfg:      cfg,
		logger:   logger,
		metrics:  metrics,
		now:      time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(svc)
		}
	}
	return svc
}

// Submit stores a validated draft as a pending request and queues its mirror record.
func (s *RequestService) Submit(ctx context.Context, draft *models.RequestDraft) (*models.Request, error) {
	if draft == nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "request payload is required")
	}
	now := s.now().UTC()
	req := &models.Request{
		ID:                uuid.NewString(),
		DocumentID:        draft.DocumentID,
		UserType:          draft.UserType,
		Requester:         draft.Requester,
		ChaptersRequested: draft.ChaptersRequested,
		Purpose:           draft.Purpose,
		Status:            models.RequestStatusPending,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := s.store.Create(ctx, req); err != nil {
		return nil, appErrors.WrapAs(err, appErrors.ErrInternal, "Failed to create request")
	}
	s.logger.Info("request submitted",
		zap.String("request_id", req.ID),
		zap.String("document_id", req.DocumentID),
		zap.String("user_type", string(req.UserType)),
	)
	if s.mirror != nil {
		s.mirror.MirrorCreate(req)
	}
	return req, nil
}

// Get returns one request.
func (s *RequestService) Get(ctx context.Context, id string) (*models.Request, error) {
	req, err := s.store.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "Request not found")
		}
		return nil, appErrors.WrapAs(err, appErrors.ErrInternal, "failed to load request")
	}
	return req, nil
}

// List returns a page of requests for reviewers.
func (s *RequestService) List(ctx context.Context, filter models.RequestFilter) ([]models.Request, *models.Pagination, error) {
	if filter.Status != "" && filter.Status != models.RequestStatusPending && !filter.Status.IsDecision() {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, "status must be pending, approved or rejected")
	}
	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 {
		filter.PageSize = 20
	}
	if filter.PageSize > 100 {
		filter.PageSize = 100
	}
	items, total, err := s.store.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.WrapAs(err, appErrors.ErrInternal, "failed to list requests")
	}
	return items, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}, nil
}

// Resolve applies a reviewer decision. The artifact, when approved, is stored and signed
// before any state changes; a storage failure leaves the request pending. Only one caller
// can move a request out of pending, the rest see ErrAlreadyResolved. Mirror and email
// side effects run afterwards and cannot undo the transition.
func (s *RequestService) Resolve(ctx context.Context, id string, input ResolveInput) (*Resolution, error) {
	if !input.Status.IsDecision() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "status must be approved or rejected")
	}

	current, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if current.Status != models.RequestStatusPending {
		return nil, appErrors.ErrAlreadyResolved
	}

	approved := input.Status == models.RequestStatusApproved
	var chapters []string
	if approved {
		chapters = NormalizeChapters(input.ApprovedChapters)
		if err := ensureSubset(chapters, current.ChaptersRequested); err != nil {
			return nil, err
		}
	}

	now := s.now().UTC()
	resolution := &Resolution{Status: input.Status}
	var objectKey string
	if approved && len(input.Artifact) > 0 {
		// The suffix keeps racing approvals apart: a loser must never delete the winner's object.
		objectKey = fmt.Sprintf("%s/%s-%d-%s.pdf", s.cfg.ArtifactPrefix, id, now.UnixMilli(), uuid.NewString()[:8])
		url, expiresAt, err := s.storeArtifact(ctx, objectKey, input)
		if err != nil {
			return nil, err
		}
		resolution.DownloadURL = url
		resolution.ExpiresAt = &expiresAt
	} else if len(input.Artifact) > 0 {
		s.logger.Debug("ignoring artifact on rejected request", zap.String("request_id", id))
	}

	updated, err := s.store.Resolve(ctx, id, models.RequestResolution{
		Status:           input.Status,
		DeanRemarks:      input.DeanRemarks,
		ApprovedChapters: chapters,
		ObjectKey:        objectKey,
		ReviewedBy:       input.ReviewedBy,
		UpdatedAt:        now,
	})
	if err != nil {
		s.discardArtifact(objectKey)
		if errors.Is(err, repository.ErrRequestNotPending) {
			return nil, appErrors.ErrAlreadyResolved
		}
		return nil, appErrors.WrapAs(err, appErrors.ErrInternal, "Failed to respond to request")
	}
	resolution.Request = updated

	s.metrics.RecordResolution(string(input.Status))
	s.logger.Info("request resolved",
		zap.String("request_id", id),
		zap.String("status", string(input.Status)),
		zap.String("reviewed_by", input.ReviewedBy),
		zap.Bool("artifact", objectKey != ""),
	)

	if s.mirror != nil {
		s.mirror.MirrorStatus(id, input.Status, updated.UpdatedAt)
	}
	if s.notifier != nil {
		outcome := Outcome{Request: updated, DownloadURL: resolution.DownloadURL}
		if resolution.ExpiresAt != nil {
			outcome.ExpiresAt = *resolution.ExpiresAt
		}
		s.notifier.NotifyOutcome(outcome)
	}
	return resolution, nil
}

// Archive moves requests untouched for longer than the retention into the archive
// collection and returns how many were moved.
func (s *RequestService) Archive(ctx context.Context) (int64, error) {
	if s.cfg.ArchiveRetention <= 0 {
		return 0, nil
	}
	cutoff := s.now().UTC().Add(-s.cfg.ArchiveRetention)
	var total int64
	for {
		moved, err := s.store.ArchiveBatch(ctx, cutoff, s.cfg.ArchiveBatchSize)
		total += moved
		if err != nil {
			s.metrics.RecordArchived(total)
			return total, appErrors.WrapAs(err, appErrors.ErrInternal, "failed to archive requests")
		}
		if moved < int64(s.cfg.ArchiveBatchSize) {
			break
		}
		if err := ctx.Err(); err != nil {
			s.metrics.RecordArchived(total)
			return total, err
		}
	}
	s.metrics.RecordArchived(total)
	s.logger.Info("requests archived", zap.Int64("count", total), zap.Time("cutoff", cutoff))
	return total, nil
}

func (s *RequestService) storeArtifact(ctx context.Context, key string, input ResolveInput) (string, time.Time, error) {
	if s.objects == nil {
		return "", time.Time{}, appErrors.Clone(appErrors.ErrUploadFailed, "object storage is not configured")
	}
	contentType := input.ArtifactContentType
	if contentType == "" {
		contentType = "application/pdf"
	}
	if err := s.objects.Put(ctx, key, input.Artifact, contentType); err != nil {
		s.metrics.RecordUpload(ResultFailure)
		s.logger.Error("artifact upload failed", zap.String("key", key), zap.String("trace_id", requestid.FromContext(ctx)), zap.Error(err))
		return "", time.Time{}, appErrors.WrapAs(err, appErrors.ErrUploadFailed, appErrors.ErrUploadFailed.Message)
	}
	url, expiresAt, err := s.objects.SignedURL(ctx, key, s.cfg.SignedURLTTL)
	if err != nil {
		s.metrics.RecordUpload(ResultFailure)
		s.logger.Error("signing artifact url failed", zap.String("key", key), zap.String("trace_id", requestid.FromContext(ctx)), zap.Error(err))
		s.discardArtifact(key)
		return "", time.Time{}, appErrors.WrapAs(err, appErrors.ErrUploadFailed, "failed to sign download url")
	}
	s.metrics.RecordUpload(ResultSuccess)
	return url, expiresAt, nil
}

func (s *RequestService) discardArtifact(key string) {
	if key == "" || s.objects == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.objects.Delete(ctx, key); err != nil {
		s.logger.Warn("orphaned artifact left in storage", zap.String("key", key), zap.Error(err))
	}
}

func ensureSubset(approved, requested []string) error {
	if len(requested) == 0 {
		return nil
	}
	allowed := make(map[string]struct{}, len(requested))
	for _, ch := range requested {
		allowed[ch] = struct{}{}
	}
	for _, ch := range approved {
		if _, ok := allowed[ch]; !ok {
			return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("approved chapter %q was not requested", ch))
		}
	}
	return nil
}
