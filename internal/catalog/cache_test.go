package catalog

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryCache(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	cache := NewMemoryCache()
	cache.now = func() time.Time { return now }

	require.NoError(t, cache.Set(ctx, "a", "1", time.Minute))
	require.NoError(t, cache.Set(ctx, "b", "2", 0))

	val, ok := cache.Get(ctx, "a")
	assert.True(t, ok)
	assert.Equal(t, "1", val)

	now = now.Add(time.Minute)
	_, ok = cache.Get(ctx, "a")
	assert.False(t, ok, "expected entry to expire")

	val, ok = cache.Get(ctx, "b")
	assert.True(t, ok, "zero ttl never expires")
	assert.Equal(t, "2", val)

	require.NoError(t, cache.Delete(ctx, "b", "missing"))
	_, ok = cache.Get(ctx, "b")
	assert.False(t, ok)
}

func TestRedisCacheIntegration(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}

	ctx := context.Background()
	cache := NewRedisCache(addr, os.Getenv("REDIS_PASSWORD"), 0)
	defer cache.Close()
	require.NoError(t, cache.Ping(ctx))

	key := "loan-formulas-test:" + time.Now().Format(time.RFC3339Nano)
	require.NoError(t, cache.Set(ctx, key, "value", time.Minute))

	val, ok := cache.Get(ctx, key)
	assert.True(t, ok)
	assert.Equal(t, "value", val)

	require.NoError(t, cache.Delete(ctx, key))
	_, ok = cache.Get(ctx, key)
	assert.False(t, ok)
}
