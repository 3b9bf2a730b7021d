package live

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/sawpanic/factorport/internal/weights"
)

// WeightCache avoids recomputing slow weight optimizations more often than a
// strategy's own rebalance period. Entries are keyed by (strategy, date) and
// expire after the strategy's rebalance period.
type WeightCache interface {
	Get(ctx context.Context, strategy string, date time.Time) (weights.Vector, bool, error)
	Put(ctx context.Context, strategy string, date time.Time, v weights.Vector, ttl time.Duration) error
}

// RedisWeightCache stores vectors as JSON in Redis.
type RedisWeightCache struct {
	client *redis.Client
}

// NewRedisWeightCache wraps a Redis client.
func NewRedisWeightCache(client *redis.Client) *RedisWeightCache {
	return &RedisWeightCache{client: client}
}

func cacheKey(strategy string, date time.Time) string {
	return fmt.Sprintf("factorport:weights:%s:%s", strategy, date.Format("2006-01-02"))
}

// Get implements WeightCache.
func (c *RedisWeightCache) Get(ctx context.Context, strategy string, date time.Time) (weights.Vector, bool, error) {
	data, err := c.client.Get(ctx, cacheKey(strategy, date)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("weight cache get: %w", err)
	}
	var v weights.Vector
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, false, fmt.Errorf("weight cache decode: %w", err)
	}
	return v, true, nil
}

// Put implements WeightCache.
func (c *RedisWeightCache) Put(ctx context.Context, strategy string, date time.Time, v weights.Vector, ttl time.Duration) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("weight cache encode: %w", err)
	}
	if err := c.client.Set(ctx, cacheKey(strategy, date), data, ttl).Err(); err != nil {
		return fmt.Errorf("weight cache put: %w", err)
	}
	return nil
}

// NoopWeightCache disables caching; every run recomputes.
type NoopWeightCache struct{}

// Get implements WeightCache.
func (NoopWeightCache) Get(context.Context, string, time.Time) (weights.Vector, bool, error) {
	return nil, false, nil
}

// Put implements WeightCache.
func (NoopWeightCache) Put(context.Context, string, time.Time, weights.Vector, time.Duration) error {
	return nil
}
