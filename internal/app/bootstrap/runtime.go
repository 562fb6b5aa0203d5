// Package bootstrap wires the shared runtime pieces used by the API server
// and the relay Lambda.
package bootstrap

import (
	"context"
	"crypto/tls"
	"strings"

	"github.com/redis/go-redis/v9"

	appconfig "github.com/wolfman30/esc-funnel/internal/config"
	"github.com/wolfman30/esc-funnel/internal/geo"
	"github.com/wolfman30/esc-funnel/internal/leads"
	"github.com/wolfman30/esc-funnel/pkg/logging"
)

// BuildRedisClient returns a configured Redis client or nil when disabled.
// When verify is true, a ping is issued and failures return nil.
func BuildRedisClient(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger, verify bool) *redis.Client {
	if cfg == nil || strings.TrimSpace(cfg.RedisAddr) == "" {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	if ctx == nil {
		ctx = context.Background()
	}

	redisOptions := &redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	}
	if cfg.RedisTLS {
		redisOptions.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	client := redis.NewClient(redisOptions)
	if !verify {
		return client
	}
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("redis not available", "error", err)
		_ = client.Close()
		return nil
	}
	return client
}

// BuildDraftStore keeps funnel sessions in Redis when available and falls
// back to process memory otherwise.
func BuildDraftStore(cfg *appconfig.Config, redisClient *redis.Client, logger *logging.Logger) leads.DraftStore {
	if logger == nil {
		logger = logging.Default()
	}
	if redisClient == nil {
		logger.Warn("draft store running in memory; sessions are lost on restart")
		return leads.NewInMemoryRepository()
	}
	return leads.NewRedisDraftStore(redisClient, cfg.DraftTTL)
}

// BuildCityProvider wires the municipality lookup with an optional Redis cache.
func BuildCityProvider(cfg *appconfig.Config, redisClient *redis.Client, logger *logging.Logger) *geo.Provider {
	lookup := geo.NewIBGEClient(cfg.IBGEBaseURL, cfg.IBGETimeout)
	if redisClient == nil {
		return geo.NewProvider(lookup, nil, logger)
	}
	return geo.NewProvider(lookup, geo.NewRedisCache(redisClient, cfg.CityCacheTTL), logger)
}
