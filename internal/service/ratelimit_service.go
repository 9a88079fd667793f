package service

import (
	"context"
	"math/rand"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/docaccess-api/internal/models"
)

const windowLayout = "2006-01-02"

type rateLimitStore interface {
	Increment(ctx context.Context, identity, window string, now time.Time) (int64, error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// RateLimitConfig bounds admissions per identity per UTC day.
type RateLimitConfig struct {
	Limit            int
	SweepProbability float64
	SweepAge         time.Duration
	SweepTimeout     time.Duration
}

// RateLimitService admits submissions against a daily counter. When the counter store is
// unreachable it fails open: the request is admitted and the failure is logged.
type RateLimitService struct {
	store   rateLimitStore
	cfg     RateLimitConfig
	logger  *zap.Logger
	metrics *MetricsService

	now    func() time.Time
	sample func() float64

	sweeps sync.WaitGroup
}

// RateLimitOption customises the service.
type RateLimitOption func(*RateLimitService)

// WithRateLimitClock overrides the time source.
func WithRateLimitClock(now func() time.Time) RateLimitOption {
	return func(s *RateLimitService) {
		if now != nil {
			s.now = now
		}
	}
}

// WithRateLimitSampler overrides the sweep sampler; it must return values in [0,1).
func WithRateLimitSampler(sample func() float64) RateLimitOption {
	return func(s *RateLimitService) {
		if sample != nil {
			s.sample = sample
		}
	}
}

// NewRateLimitService constructs the limiter.
func NewRateLimitService(store rateLimitStore, cfg RateLimitConfig, logger *zap.Logger, metrics *MetricsService, opts ...RateLimitOption) *RateLimitService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.SweepAge <= 0 {
		cfg.SweepAge = 48 * time.Hour
	}
	if cfg.SweepTimeout <= 0 {
		cfg.SweepTimeout = 10 * time.Second
	}
	svc := &RateLimitService{
		store:   store,
		cfg:     cfg,
		logger:  logger,
		metrics: metrics,
		now:     time.Now,
		sample:  rand.Float64,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(svc)
		}
	}
	return svc
}

// RateLimitIdentity keys a caller by lowercased email, falling back to the network address.
func RateLimitIdentity(email, ip string) string {
	if email = strings.ToLower(strings.TrimSpace(email)); email != "" {
		return "email:" + email
	}
	return "ip:" + ip
}

// WindowKey returns the UTC calendar day containing t.
func WindowKey(t time.Time) string {
	return t.UTC().Format(windowLayout)
}

// NextReset returns the UTC midnight following t.
func NextReset(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d+1, 0, 0, 0, 0, time.UTC)
}

// Limit reports the configured daily allowance.
func (s *RateLimitService) Limit() int {
	return s.cfg.Limit
}

// Admit counts one attempt for identity and decides whether it may proceed. Rejected
// attempts are counted too.
func (s *RateLimitService) Admit(ctx context.Context, identity string) models.RateLimitDecision {
	now := s.now().UTC()
	decision := models.RateLimitDecision{Limit: s.cfg.Limit, ResetAt: NextReset(now)}

	if s.cfg.Limit <= 0 {
		s.metrics.RecordRateLimit(ResultRejected)
		return decision
	}

	count, err := s.store.Increment(ctx, identity, WindowKey(now), now)
	if err != nil {
		s.logger.Warn("rate limiter store unavailable, admitting request",
			zap.String("identity", identity),
			zap.Error(err),
		)
		s.metrics.RecordRateLimit(ResultFailOpen)
		decision.Allowed = true
		decision.FailedOpen = true
		decision.Remaining = s.cfg.Limit
		return decision
	}

	decision.Count = count
	decision.Allowed = count <= int64(s.cfg.Limit)
	if remaining := int64(s.cfg.Limit) - count; remaining > 0 {
		decision.Remaining = int(remaining)
	}
	if decision.Allowed {
		s.metrics.RecordRateLimit(ResultAllowed)
	} else {
		s.metrics.RecordRateLimit(ResultRejected)
	}

	s.maybeSweep()
	return decision
}

// Sweep deletes counters older than the sweep age.
func (s *RateLimitService) Sweep(ctx context.Context) (int64, error) {
	cutoff := s.now().UTC().Add(-s.cfg.SweepAge)
	deleted, err := s.store.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	if deleted > 0 {
		s.logger.Info("rate limit counters swept", zap.Int64("deleted", deleted), zap.Time("cutoff", cutoff))
	}
	return deleted, nil
}

// Wait blocks until background sweeps have finished.
func (s *RateLimitService) Wait() {
	s.sweeps.Wait()
}

func (s *RateLimitService) maybeSweep() {
	if s.cfg.SweepProbability <= 0 || s.sample() >= s.cfg.SweepProbability {
		return
	}
	s.sweeps.Add(1)
	go func() {
		defer s.sweeps.Done()
		ctx, cancel := context.WithTimeout(context.Background(), s.cfg.SweepTimeout)
		defer cancel()
		if _, err := s.Sweep(ctx); err != nil {
			s.logger.Warn("rate limit sweep failed", zap.Error(err))
		}
	}()
}
