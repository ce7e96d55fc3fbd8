package marketdata

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/quantfolio/riskd/internal/metrics"
	"github.com/quantfolio/riskd/internal/risk"
)

func setupMiniRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to create miniredis: %v", err)
	}

	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})

	return client, mr
}

func TestCachedProvider_CacheMiss(t *testing.T) {
	redisClient, mr := setupMiniRedis(t)
	defer mr.Close()

	provider := &fakeProvider{}
	cached := NewCachedProvider(provider, metrics.NewRedisMetrics(redisClient), 60*time.Second)

	points, err := cached.DailyCloses(context.Background(), "BTC", 30)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(points) != 30 {
		t.Fatalf("Expected 30 points, got %d", len(points))
	}
	if provider.callCount() != 1 {
		t.Errorf("Expected 1 provider call, got %d", provider.callCount())
	}

	// Give async cache write time to complete
	time.Sleep(100 * time.Millisecond)

	stored, err := redisClient.Get(context.Background(), "prices:daily:BTC:30").Result()
	if err != nil {
		t.Fatalf("Expected data to be cached, got error: %v", err)
	}

	var cachedPoints []risk.PricePoint
	if err := json.Unmarshal([]byte(stored), &cachedPoints); err != nil {
		t.Fatalf("Failed to unmarshal cached data: %v", err)
	}
	if len(cachedPoints) != 30 {
		t.Errorf("Cached data doesn't match original result")
	}
}

func TestCachedProvider_CacheHit(t *testing.T) {
	redisClient, mr := setupMiniRedis(t)
	defer mr.Close()

	seeded := dailyPoints(30)
	data, err := json.Marshal(seeded)
	if err != nil {
		t.Fatalf("Failed to marshal seed data: %v", err)
	}
	if err := redisClient.Set(context.Background(), "prices:daily:BTC:30", data, time.Minute).Err(); err != nil {
		t.Fatalf("Failed to seed cache: %v", err)
	}

	provider := &fakeProvider{}
	cached := NewCachedProvider(provider, metrics.NewRedisMetrics(redisClient), 60*time.Second)

	points, err := cached.DailyCloses(context.Background(), "BTC", 30)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(points) != 30 {
		t.Fatalf("Expected 30 points, got %d", len(points))
	}
	if points[0].Date != seeded[0].Date {
		t.Errorf("Expected first date %s, got %s", seeded[0].Date, points[0].Date)
	}
	if provider.callCount() != 0 {
		t.Errorf("Expected cache hit to skip the provider, got %d calls", provider.callCount())
	}
}

func TestCachedProvider_CorruptEntryRefetches(t *testing.T) {
	redisClient, mr := setupMiniRedis(t)
	defer mr.Close()

	if err := redisClient.Set(context.Background(), "prices:daily:BTC:30", "not json", time.Minute).Err(); err != nil {
		t.Fatalf("Failed to seed cache: %v", err)
	}

	provider := &fakeProvider{}
	cached := NewCachedProvider(provider, metrics.NewRedisMetrics(redisClient), 60*time.Second)

	points, err := cached.DailyCloses(context.Background(), "BTC", 30)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(points) != 30 {
		t.Fatalf("Expected 30 points, got %d", len(points))
	}
	if provider.callCount() != 1 {
		t.Errorf("Expected corrupt entry to trigger a provider call, got %d", provider.callCount())
	}
}

func TestCachedProvider_RedisDownFallsThrough(t *testing.T) {
	redisClient, mr := setupMiniRedis(t)
	mr.Close()

	provider := &fakeProvider{}
	cached := NewCachedProvider(provider, metrics.NewRedisMetrics(redisClient), 60*time.Second)

	points, err := cached.DailyCloses(context.Background(), "BTC", 30)
	if err != nil {
		t.Fatalf("Expected provider fallback, got error: %v", err)
	}
	if len(points) != 30 {
		t.Fatalf("Expected 30 points, got %d", len(points))
	}
	if provider.callCount() != 1 {
		t.Errorf("Expected 1 provider call, got %d", provider.callCount())
	}
}

func TestCachedProvider_ProviderErrorPropagates(t *testing.T) {
	redisClient, mr := setupMiniRedis(t)
	defer mr.Close()

	provider := &fakeProvider{err: errors.New("binance down")}
	cached := NewCachedProvider(provider, metrics.NewRedisMetrics(redisClient), 60*time.Second)

	if _, err := cached.DailyCloses(context.Background(), "BTC", 30); err == nil {
		t.Fatal("Expected provider error to propagate")
	}
}

func TestCachedProvider_Invalidate(t *testing.T) {
	redisClient, mr := setupMiniRedis(t)
	defer mr.Close()

	ctx := context.Background()
	for _, key := range []string{"prices:daily:BTC:30", "prices:daily:BTC:60", "prices:daily:ETH:30"} {
		if err := redisClient.Set(ctx, key, "[]", time.Minute).Err(); err != nil {
			t.Fatalf("Failed to seed cache: %v", err)
		}
	}

	cached := NewCachedProvider(&fakeProvider{}, metrics.NewRedisMetrics(redisClient), 60*time.Second)
	if err := cached.Invalidate(ctx, "BTC"); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	for _, key := range []string{"prices:daily:BTC:30", "prices:daily:BTC:60"} {
		if mr.Exists(key) {
			t.Errorf("Expected %s to be invalidated", key)
		}
	}
	if !mr.Exists("prices:daily:ETH:30") {
		t.Error("Expected other tickers to keep their cache entries")
	}
}

func TestCachedProvider_Health(t *testing.T) {
	redisClient, mr := setupMiniRedis(t)
	defer mr.Close()

	healthy := NewCachedProvider(&fakeProvider{}, metrics.NewRedisMetrics(redisClient), 60*time.Second)
	if err := healthy.Health(context.Background()); err != nil {
		t.Errorf("Expected healthy, got %v", err)
	}

	unhealthy := NewCachedProvider(&fakeProvider{healthErr: errors.New("ping failed")}, metrics.NewRedisMetrics(redisClient), 60*time.Second)
	if err := unhealthy.Health(context.Background()); err == nil {
		t.Error("Expected provider health error to propagate")
	}
}
