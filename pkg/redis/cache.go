package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Cache provides typed caching utilities. The cache is best-effort:
// read failures surface as misses, never as pipeline errors.
// ⭐ SSOT: 캐시 헬퍼는 여기서만
type Cache struct {
	client *Client
	prefix string
}

// NewCache creates a new cache helper
func NewCache(client *Client, prefix string) *Cache {
	return &Cache{
		client: client,
		prefix: prefix,
	}
}

// Get retrieves a cached value
func (c *Cache) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	data, found, err := c.client.GetBytes(ctx, c.fullKey(key))
	if err != nil || !found {
		return false, nil
	}

	if err := json.Unmarshal(data, dest); err != nil {
		return false, fmt.Errorf("cache unmarshal failed: %w", err)
	}
	return true, nil
}

// Set stores a value in cache with TTL
func (c *Cache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache marshal failed: %w", err)
	}
	return c.client.SetBytes(ctx, c.fullKey(key), data, ttl)
}

// Delete removes a cached value
func (c *Cache) Delete(ctx context.Context, key string) error {
	return c.client.Delete(ctx, c.fullKey(key))
}

func (c *Cache) fullKey(key string) string {
	return fmt.Sprintf("%s:cache:%s", c.prefix, key)
}

// Predefined TTLs
const (
	TTLMarketContext = 5 * time.Minute // 시장 컨텍스트
	TTLFreshness     = 1 * time.Hour   // 수집 신선도
	TTLDaily         = 24 * time.Hour  // 일별 데이터
)

// FreshnessKey builds the collector freshness cache key for one
// (ticker, data_type) pair.
func FreshnessKey(ticker, dataType string) string {
	return fmt.Sprintf("fresh:%s:%s", ticker, dataType)
}

// MarketContextKey is the cache key for the market-wide context snapshot.
func MarketContextKey(market string) string {
	return fmt.Sprintf("market:context:%s", market)
}
