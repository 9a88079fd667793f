// Package retry runs unreliable calls with bounded exponential backoff.
//
// The delay before retry n (n starting at 1) is BaseDelay * 2^n, so three attempts with a
// 500ms base wait 1s and then 2s before the last error is returned.
package retry

import (
	"context"
	"time"

	goretry "github.com/sethvargo/go-retry"
	"go.uber.org/zap"
)

// Config bounds the executor.
type Config struct {
	MaxAttempts   int
	BaseDelay     time.Duration
	JitterPercent uint64
	Logger        *zap.Logger
}

// Executor wraps operations with the configured backoff policy. It holds no per-call state
// and is safe for concurrent use.
type Executor struct {
	maxAttempts   int
	baseDelay     time.Duration
	jitterPercent uint64
	logger        *zap.Logger
}

// New builds an executor, defaulting to 3 attempts with a 500ms base.
func New(cfg Config) *Executor {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = 500 * time.Millisecond
	}
	if cfg.JitterPercent > 100 {
		cfg.JitterPercent = 100
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Executor{
		maxAttempts:   cfg.MaxAttempts,
		baseDelay:     cfg.BaseDelay,
		jitterPercent: cfg.JitterPercent,
		logger:        cfg.Logger,
	}
}

// MaxAttempts reports the total number of tries including the first one.
func (e *Executor) MaxAttempts() int {
	return e.maxAttempts
}

// Backoff returns a fresh backoff sequence for one Do call.
func (e *Executor) Backoff() goretry.Backoff {
	b := goretry.NewExponential(e.baseDelay * 2)
	if e.jitterPercent > 0 {
		b = goretry.WithJitterPercent(e.jitterPercent, b)
	}
	return goretry.WithMaxRetries(uint64(e.maxAttempts-1), b)
}

// Delays lists the sleeps a failing call goes through.
func (e *Executor) Delays() []time.Duration {
	b := e.Backoff()
	delays := make([]time.Duration, 0, e.maxAttempts-1)
	for {
		next, stop := b.Next()
		if stop {
			return delays
		}
		delays = append(delays, next)
	}
}

// Do runs op until it succeeds or the attempts are exhausted, returning the last error.
func Do[T any](ctx context.Context, e *Executor, name string, op func(context.Context) (T, error)) (T, error) {
	var result T
	attempt := 0
	err := goretry.Do(ctx, e.Backoff(), func(ctx context.Context) error {
		attempt++
		value, err := op(ctx)
		if err != nil {
			if attempt < e.maxAttempts {
				e.logger.Warn("retry attempt failed",
					zap.String("operation", name),
					zap.Int("attempt", attempt),
					zap.Int("max_attempts", e.maxAttempts),
					zap.Error(err),
				)
			}
			return goretry.RetryableError(err)
		}
		result = value
		return nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return result, nil
}

// Run is Do for operations without a result.
func Run(ctx context.Context, e *Executor, name string, op func(context.Context) error) error {
	_, err := Do(ctx, e, name, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, op(ctx)
	})
	return err
}
