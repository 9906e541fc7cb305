package catalog

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/fjod/billflow/internal/domain"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) (*RedisCache, *miniredis.Miniredis, func()) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	cache := NewRedisCache(client)

	cleanup := func() {
		client.Close()
		mr.Close()
	}
	return cache, mr, cleanup
}

func sampleSnapshot() *Snapshot {
	return &Snapshot{
		Categories: []domain.Category{{ID: "c1", Name: "Drinks", ItemCount: 1}},
		Items: []domain.CatalogItem{
			{ID: "i1", Name: "Tea", Price: decimal.RequireFromString("12.50"), CategoryID: "c1"},
		},
		LoadedAt: time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC),
	}
}

func TestRedisCache_SetAndGet(t *testing.T) {
	cache, _, cleanup := setupTestRedis(t)
	defer cleanup()
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "store-1", sampleSnapshot()))
	got, err := cache.Get(ctx, "store-1")

	require.NoError(t, err)
	require.Len(t, got.Items, 1)
	assert.Equal(t, "Tea", got.Items[0].Name)
	assert.True(t, got.Items[0].Price.Equal(decimal.RequireFromString("12.5")))
	assert.Equal(t, "Drinks", got.Categories[0].Name)
}

func TestRedisCache_CacheMiss(t *testing.T) {
	cache, _, cleanup := setupTestRedis(t)
	defer cleanup()

	_, err := cache.Get(context.Background(), "nope")
	require.ErrorIs(t, err, ErrCacheMiss)
}

func TestRedisCache_InvalidJSON(t *testing.T) {
	cache, mr, cleanup := setupTestRedis(t)
	defer cleanup()
	require.NoError(t, mr.Set(cacheKey("bad"), "{not json"))

	_, err := cache.Get(context.Background(), "bad")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unmarshal catalog failed")
}

func TestRedisCache_SetWithTTL(t *testing.T) {
	cache, mr, cleanup := setupTestRedis(t)
	defer cleanup()

	require.NoError(t, cache.Set(context.Background(), "s", sampleSnapshot()))

	ttl := mr.TTL(cacheKey("s"))
	assert.GreaterOrEqual(t, ttl, 15*time.Minute)
	assert.Less(t, ttl, 20*time.Minute)
}

func TestRedisCache_Expires(t *testing.T) {
	cache, mr, cleanup := setupTestRedis(t)
	defer cleanup()
	ctx := context.Background()
	require.NoError(t, cache.Set(ctx, "s", sampleSnapshot()))

	mr.FastForward(21 * time.Minute)

	_, err := cache.Get(ctx, "s")
	require.ErrorIs(t, err, ErrCacheMiss)
}

func TestRedisCache_Delete(t *testing.T) {
	cache, mr, cleanup := setupTestRedis(t)
	defer cleanup()
	ctx := context.Background()
	require.NoError(t, cache.Set(ctx, "s", sampleSnapshot()))

	require.NoError(t, cache.Delete(ctx, "s"))
	assert.False(t, mr.Exists(cacheKey("s")))
}

func TestRedisCache_ConnectionError(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer client.Close()
	cache := NewRedisCache(client)
	mr.Close()

	_, err := cache.Get(context.Background(), "s")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrCacheMiss)
}
