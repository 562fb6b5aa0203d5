package geo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// CityCache stores looked-up city lists per region.
type CityCache interface {
	Get(ctx context.Context, region string) ([]string, error)
	Set(ctx context.Context, region string, cities []string) error
}

// RedisCache keeps municipality lists in Redis. The lists change rarely, so
// the TTL is long.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisCache creates a cache. A non-positive ttl uses 7 days.
func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	if client == nil {
		panic("geo: redis client required")
	}
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	return &RedisCache{client: client, ttl: ttl}
}

func cacheKey(region string) string {
	return "esc:geo:cities:" + region
}

// Get returns the cached list or ErrCacheMiss.
func (c *RedisCache) Get(ctx context.Context, region string) ([]string, error) {
	data, err := c.client.Get(ctx, cacheKey(region)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("geo: cache get: %w", err)
	}
	var cities []string
	if err := json.Unmarshal(data, &cities); err != nil {
		return nil, fmt.Errorf("geo: cache decode: %w", err)
	}
	return cities, nil
}

// Set stores cities for region.
func (c *RedisCache) Set(ctx context.Context, region string, cities []string) error {
	data, err := json.Marshal(cities)
	if err != nil {
		return fmt.Errorf("geo: cache encode: %w", err)
	}
	if err := c.client.Set(ctx, cacheKey(region), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("geo: cache set: %w", err)
	}
	return nil
}
