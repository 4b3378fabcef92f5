package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/wonny/aegis/v14/pkg/config"
)

// pingTimeout bounds the startup connectivity check
const pingTimeout = 5 * time.Second

// Client wraps go-redis behind a disabled-mode no-op so callers never
// branch on whether the cache tier exists: with REDIS_ENABLED=false
// every read misses and every write is dropped.
// ⭐ SSOT: Redis 연결은 여기서만 관리
type Client struct {
	rdb     *redis.Client
	enabled bool
}

// New creates a Redis client, or the no-op fallback when disabled
func New(cfg *config.Config) (*Client, error) {
	if !cfg.Redis.Enabled {
		return &Client{}, nil
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%s", cfg.Redis.Host, cfg.Redis.Port),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	return &Client{
		rdb:     rdb,
		enabled: true,
	}, nil
}

// GetBytes reads one key. A miss and disabled mode both report
// found=false without an error.
func (c *Client) GetBytes(ctx context.Context, key string) ([]byte, bool, error) {
	if !c.enabled {
		return nil, false, nil
	}

	data, err := c.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get %s: %w", key, err)
	}
	return data, true, nil
}

// SetBytes writes one key with a TTL; dropped when disabled
func (c *Client) SetBytes(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	if !c.enabled {
		return nil
	}
	return c.rdb.Set(ctx, key, data, ttl).Err()
}

// Delete removes one key; no-op when disabled
func (c *Client) Delete(ctx context.Context, key string) error {
	if !c.enabled {
		return nil
	}
	return c.rdb.Del(ctx, key).Err()
}

// Enabled returns whether Redis is enabled
func (c *Client) Enabled() bool {
	return c.enabled
}

// Close closes the Redis connection
func (c *Client) Close() error {
	if c.rdb != nil {
		return c.rdb.Close()
	}
	return nil
}
