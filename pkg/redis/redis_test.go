package redis

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/aegis/v14/pkg/config"
)

func TestNewDisabledByConfig(t *testing.T) {
	c, err := New(&config.Config{})
	require.NoError(t, err)

	assert.False(t, c.Enabled())
	assert.NoError(t, c.Close())
}

func TestDisabledClientNoops(t *testing.T) {
	ctx := context.Background()
	c := &Client{}

	require.NoError(t, c.SetBytes(ctx, "k", []byte("v"), time.Minute))

	_, found, err := c.GetBytes(ctx, "k")
	require.NoError(t, err)
	assert.False(t, found)

	assert.NoError(t, c.Delete(ctx, "k"))
}

func TestCacheDisabledMisses(t *testing.T) {
	ctx := context.Background()
	cache := NewCache(&Client{}, "aegis")

	require.NoError(t, cache.Set(ctx, "freshness", "price_daily_v1", TTLFreshness))

	var out string
	found, err := cache.Get(ctx, "freshness", &out)
	require.NoError(t, err)
	assert.False(t, found)
	assert.Empty(t, out)
}

func TestCacheKeys(t *testing.T) {
	assert.Equal(t, "fresh:005930:news_v1", FreshnessKey("005930", "news_v1"))
	assert.Equal(t, "market:context:KR", MarketContextKey("KR"))
}
