package repository

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return client
}

func counterValue(t *testing.T, client *redis.Client, identity, window string) int64 {
	t.Helper()
	value, err := client.HGet(context.Background(), CounterKey(identity, window), "count").Int64()
	if err == redis.Nil {
		return 0
	}
	require.NoError(t, err)
	return value
}

func TestRateLimitRepositoryIncrementIsAtomic(t *testing.T) {
	client := setupTestRedis(t)
	repo := NewRateLimitRepository(client)
	ctx := context.Background()
	now := time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)

	const callers = 25
	var wg sync.WaitGroup
	results := make(chan int64, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			count, err := repo.Increment(ctx, "email:a@gmail.com", "2025-05-01", now)
			assert.NoError(t, err)
			results <- count
		}()
	}
	wg.Wait()
	close(results)

	seen := make(map[int64]bool, callers)
	for count := range results {
		assert.False(t, seen[count], "count %d returned twice", count)
		seen[count] = true
	}
	for i := int64(1); i <= callers; i++ {
		assert.True(t, seen[i], "missing count %d", i)
	}

	assert.Equal(t, int64(callers), counterValue(t, client, "email:a@gmail.com", "2025-05-01"))

	created, err := client.HGet(ctx, CounterKey("email:a@gmail.com", "2025-05-01"), "created_at").Int64()
	require.NoError(t, err)
	assert.Equal(t, now.Unix(), created)
}

func TestRateLimitRepositoryWindowsAreIndependent(t *testing.T) {
	client := setupTestRedis(t)
	repo := NewRateLimitRepository(client)
	ctx := context.Background()
	now := time.Now().UTC()

	first, err := repo.Increment(ctx, "ip:10.0.0.1", "2025-05-01", now)
	require.NoError(t, err)
	second, err := repo.Increment(ctx, "ip:10.0.0.1", "2025-05-02", now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), first)
	assert.Equal(t, int64(1), second)
}

func TestRateLimitRepositoryDeleteOlderThan(t *testing.T) {
	client := setupTestRedis(t)
	repo := NewRateLimitRepository(client)
	ctx := context.Background()
	now := time.Date(2025, 5, 10, 0, 0, 0, 0, time.UTC)

	_, err := repo.Increment(ctx, "email:old@x.io", "2025-05-07", now.Add(-72*time.Hour))
	require.NoError(t, err)
	_, err = repo.Increment(ctx, "email:new@x.io", "2025-05-10", now)
	require.NoError(t, err)

	deleted, err := repo.DeleteOlderThan(ctx, now.Add(-48*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	assert.Zero(t, counterValue(t, client, "email:old@x.io", "2025-05-07"))
	assert.Equal(t, int64(1), counterValue(t, client, "email:new@x.io", "2025-05-10"))

	again, err := repo.DeleteOlderThan(ctx, now.Add(-48*time.Hour))
	require.NoError(t, err)
	assert.Zero(t, again)
}
