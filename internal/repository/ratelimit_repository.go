package repository

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	rateLimitPrefix   = "ratelimit"
	rateLimitIndexKey = "ratelimit:index"
	// Counters outlive the sweep age so a missed sweep never drops a live window.
	rateLimitKeyTTL = 72 * time.Hour
)

// RateLimitRepository keeps per-identity daily counters in Redis hashes. Each hash has a
// count and a created_at field; a sorted set indexes counters by creation time for sweeps.
type RateLimitRepository struct {
	client redis.UniversalClient
}

// NewRateLimitRepository constructs the repository.
func NewRateLimitRepository(client redis.UniversalClient) *RateLimitRepository {
	return &RateLimitRepository{client: client}
}

// CounterKey names the counter for identity within window.
func CounterKey(identity, window string) string {
	return fmt.Sprintf("%s:%s:%s", rateLimitPrefix, identity, window)
}

// Increment atomically creates or bumps the counter and returns the post-increment count.
// All commands run in one MULTI/EXEC so the returned value is never a separate read.
func (r *RateLimitRepository) Increment(ctx context.Context, identity, window string, now time.Time) (int64, error) {
	key := CounterKey(identity, window)
	created := now.UTC().Unix()

	var count *redis.IntCmd
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		count = pipe.HIncrBy(ctx, key, "count", 1)
		pipe.HSetNX(ctx, key, "created_at", created)
		pipe.ZAddNX(ctx, rateLimitIndexKey, redis.Z{Score: float64(created), Member: key})
		pipe.Expire(ctx, key, rateLimitKeyTTL)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("increment rate limit counter: %w", err)
	}
	return count.Val(), nil
}

// DeleteOlderThan removes counters created before cutoff and returns how many were deleted.
func (r *RateLimitRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	keys, err := r.client.ZRangeByScore(ctx, rateLimitIndexKey, &redis.ZRangeBy{
		Min: "-inf",
		Max: strconv.FormatInt(cutoff.UTC().Unix(), 10),
	}).Result()
	if err != nil {
		return 0, fmt.Errorf("scan rate limit index: %w", err)
	}
	if len(keys) == 0 {
		return 0, nil
	}

	members := make([]interface{}, len(keys))
	for i, key := range keys {
		members[i] = key
	}
	var deleted *redis.IntCmd
	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		deleted = pipe.Del(ctx, keys...)
		pipe.ZRem(ctx, rateLimitIndexKey, members...)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("delete expired rate limit counters: %w", err)
	}
	return deleted.Val(), nil
}
