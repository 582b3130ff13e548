// Package redis caches fetched daily bars so repeated checks within one
// trading day reuse the upstream response. The cache is best-effort: the
// monitor works without it, it just fetches more.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"signal-botv1/internal/model"

	goredis "github.com/go-redis/redis/v8"
)

// CacheConfig configures the Redis price cache.
type CacheConfig struct {
	Addr     string // e.g. "localhost:6379"
	Password string
	DB       int
}

// Cache stores per-ticker bar series under two keys: a fresh copy with a TTL
// and a stale copy without one. The stale copy serves as a fallback when the
// upstream fetch fails (better an old series than a skipped ticker).
type Cache struct {
	client *goredis.Client
}

// NewCache creates a price cache and pings the server.
func NewCache(cfg CacheConfig) (*Cache, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	log.Printf("[redis] price cache connected to %s", cfg.Addr)
	return &Cache{client: client}, nil
}

// Client returns the underlying Redis client for health checks.
func (c *Cache) Client() *goredis.Client { return c.client }

func freshKey(ticker string) string { return "bars:fresh:" + ticker }
func staleKey(ticker string) string { return "bars:stale:" + ticker }

// GetFresh returns the cached bar series for a ticker if the TTL'd copy is
// still live. ok=false on miss or decode failure.
func (c *Cache) GetFresh(ctx context.Context, ticker string) ([]model.PricePoint, bool) {
	return c.get(ctx, freshKey(ticker))
}

// GetStale returns the last known bar series regardless of age. Used only as
// a fallback when the upstream fetch fails.
func (c *Cache) GetStale(ctx context.Context, ticker string) ([]model.PricePoint, bool) {
	return c.get(ctx, staleKey(ticker))
}

func (c *Cache) get(ctx context.Context, key string) ([]model.PricePoint, bool) {
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		return nil, false
	}
	var bars []model.PricePoint
	if err := json.Unmarshal(data, &bars); err != nil {
		log.Printf("[redis] WARNING: corrupt cache entry %s: %v", key, err)
		return nil, false
	}
	if len(bars) == 0 {
		return nil, false
	}
	return bars, true
}

// Put stores a freshly fetched bar series under both the TTL'd key and the
// stale fallback key. Errors are logged, not returned; a failed cache write
// never fails a check.
func (c *Cache) Put(ctx context.Context, ticker string, bars []model.PricePoint, ttl time.Duration) {
	data, err := json.Marshal(bars)
	if err != nil {
		log.Printf("[redis] WARNING: marshal bars for %s: %v", ticker, err)
		return
	}
	if err := c.client.Set(ctx, freshKey(ticker), data, ttl).Err(); err != nil {
		log.Printf("[redis] WARNING: cache write %s: %v", ticker, err)
		return
	}
	// Stale copy has no TTL; overwritten on every successful fetch.
	if err := c.client.Set(ctx, staleKey(ticker), data, 0).Err(); err != nil {
		log.Printf("[redis] WARNING: stale cache write %s: %v", ticker, err)
	}
}
