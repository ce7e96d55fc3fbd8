package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/quantfolio/riskd/internal/metrics"
	"github.com/quantfolio/riskd/internal/risk"
)

// CachedProvider wraps a Provider with Redis caching. The instrumented
// client keeps hit and miss counters current as a side effect.
type CachedProvider struct {
	provider Provider
	redis    *metrics.RedisMetrics
	cacheTTL time.Duration
}

// NewCachedProvider creates a caching layer in front of a provider.
func NewCachedProvider(provider Provider, redisClient *metrics.RedisMetrics, cacheTTL time.Duration) *CachedProvider {
	if cacheTTL <= 0 {
		cacheTTL = 5 * time.Minute
	}
	return &CachedProvider{
		provider: provider,
		redis:    redisClient,
		cacheTTL: cacheTTL,
	}
}

// DailyCloses fetches close history with caching.
func (c *CachedProvider) DailyCloses(ctx context.Context, ticker string, days int) ([]risk.PricePoint, error) {
	cacheKey := fmt.Sprintf("prices:daily:%s:%d", ticker, days)

	// Check cache first
	cached, err := c.redis.Get(ctx, cacheKey)
	if err == nil {
		log.Debug().
			Str("ticker", ticker).
			Int("days", days).
			Str("cache_key", cacheKey).
			Msg("Cache hit for daily closes")

		var points []risk.PricePoint
		if err := json.Unmarshal([]byte(cached), &points); err == nil {
			return points, nil
		}
		log.Warn().Err(err).Msg("Failed to unmarshal cached closes, fetching fresh")
	} else if err != redis.Nil {
		// Log cache errors but continue with the provider call
		log.Warn().Err(err).Msg("Redis error during cache lookup")
	}

	log.Debug().
		Str("ticker", ticker).
		Int("days", days).
		Msg("Cache miss, fetching daily closes")

	points, err := c.provider.DailyCloses(ctx, ticker, days)
	if err != nil {
		return nil, err
	}

	// Store in cache (async, don't block on cache write failure)
	go func() {
		cacheCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()

		data, err := json.Marshal(points)
		if err != nil {
			log.Warn().Err(err).Msg("Failed to marshal closes for cache")
			return
		}

		if err := c.redis.Set(cacheCtx, cacheKey, data, c.cacheTTL); err != nil {
			log.Warn().Err(err).Msg("Failed to cache daily closes")
		} else {
			log.Debug().
				Str("cache_key", cacheKey).
				Dur("ttl", c.cacheTTL).
				Msg("Cached daily closes")
		}
	}()

	return points, nil
}

// Health checks both the provider and Redis.
func (c *CachedProvider) Health(ctx context.Context) error {
	if err := c.provider.Health(ctx); err != nil {
		return fmt.Errorf("provider unhealthy: %w", err)
	}
	if err := c.redis.Ping(ctx); err != nil {
		return fmt.Errorf("redis unhealthy: %w", err)
	}
	return nil
}

// Invalidate removes all cached history for one ticker.
func (c *CachedProvider) Invalidate(ctx context.Context, ticker string) error {
	pattern := fmt.Sprintf("prices:daily:%s:*", ticker)

	iter := c.redis.Client().Scan(ctx, 0, pattern, 0).Iterator()
	for iter.Next(ctx) {
		if err := c.redis.Del(ctx, iter.Val()); err != nil {
			log.Warn().
				Err(err).
				Str("key", iter.Val()).
				Msg("Failed to delete cache key")
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("cache invalidation failed: %w", err)
	}

	log.Info().
		Str("pattern", pattern).
		Msg("Price cache invalidated")

	return nil
}
