package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/aegis/v14/internal/contracts"
)

func TestAcquireWithinBurst(t *testing.T) {
	l := New([]contracts.Site{{ID: 1, RateLimitPerMinute: 30}})

	// burst 용량 안에서는 즉시 통과
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	for i := 0; i < 30; i++ {
		require.NoError(t, l.Acquire(ctx, 1))
	}
}

func TestAcquireDefaultsUnknownSite(t *testing.T) {
	l := New(nil)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	require.NoError(t, l.Acquire(ctx, 99))
	assert.Equal(t, DefaultPerMinute, l.Limit(99))
}

func TestRegisterZeroUsesDefault(t *testing.T) {
	l := New([]contracts.Site{{ID: 5, RateLimitPerMinute: 0}})
	assert.Equal(t, DefaultPerMinute, l.Limit(5))
}

func TestAcquireCancelled(t *testing.T) {
	l := New([]contracts.Site{{ID: 1, RateLimitPerMinute: 1}})

	ctx := context.Background()
	require.NoError(t, l.Acquire(ctx, 1)) // burst 소진

	short, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := l.Acquire(short, 1)
	assert.Error(t, err)
}
