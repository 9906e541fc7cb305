package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/redis/go-redis/v9"
)

var ErrCacheMiss = errors.New("catalog cache miss")

type Cache interface {
	Get(ctx context.Context, scope string) (*Snapshot, error)
	Set(ctx context.Context, scope string, snap *Snapshot) error
	Delete(ctx context.Context, scope string) error
}

type RedisCache struct {
	client  *redis.Client
	baseTTL time.Duration
}

func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{
		client:  client,
		baseTTL: 15 * time.Minute,
	}
}

func (r *RedisCache) Get(ctx context.Context, scope string) (*Snapshot, error) {
	data, err := r.client.Get(ctx, cacheKey(scope)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("unmarshal catalog failed: %w", err)
	}
	return &snap, nil
}

// Set stores the snapshot for 15 minutes plus up to 5 minutes of jitter,
// so terminals sharing a scope do not all refetch at once.
func (r *RedisCache) Set(ctx context.Context, scope string, snap *Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal catalog failed: %w", err)
	}

	ttl := r.baseTTL + time.Duration(rand.Intn(5))*time.Minute
	if err := r.client.Set(ctx, cacheKey(scope), data, ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (r *RedisCache) Delete(ctx context.Context, scope string) error {
	if err := r.client.Del(ctx, cacheKey(scope)).Err(); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}

func cacheKey(scope string) string {
	return fmt.Sprintf("catalog:%s", scope)
}
