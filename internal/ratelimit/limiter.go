package ratelimit

import (
	"context"
	"sync"

	"golang.org/x/time/rate"

	"github.com/wonny/aegis/v14/internal/contracts"
)

// DefaultPerMinute applies when a site registers no explicit limit
const DefaultPerMinute = 60

// Limiter hands out per-site tokens. Each site gets an independent
// token bucket refilling at limit/60 tokens per second with burst
// capacity equal to the per-minute limit.
// ⭐ SSOT: 외부 호출 속도 제한은 여기서만
type Limiter struct {
	mu      sync.Mutex
	buckets map[int]*rate.Limiter
	limits  map[int]int
}

// New builds a limiter from the site registry
func New(sites []contracts.Site) *Limiter {
	l := &Limiter{
		buckets: make(map[int]*rate.Limiter, len(sites)),
		limits:  make(map[int]int, len(sites)),
	}
	for _, s := range sites {
		l.Register(s.ID, s.RateLimitPerMinute)
	}
	return l
}

// Register adds or replaces the bucket for one site
func (l *Limiter) Register(siteID, perMinute int) {
	if perMinute <= 0 {
		perMinute = DefaultPerMinute
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.buckets[siteID] = rate.NewLimiter(rate.Limit(float64(perMinute)/60.0), perMinute)
	l.limits[siteID] = perMinute
}

// Acquire blocks until a token for the site is available or ctx is
// cancelled. A cancelled wait consumes no token. Unknown sites get a
// default bucket on first use.
func (l *Limiter) Acquire(ctx context.Context, siteID int) error {
	l.mu.Lock()
	bucket, ok := l.buckets[siteID]
	if !ok {
		bucket = rate.NewLimiter(rate.Limit(float64(DefaultPerMinute)/60.0), DefaultPerMinute)
		l.buckets[siteID] = bucket
		l.limits[siteID] = DefaultPerMinute
	}
	l.mu.Unlock()

	return bucket.Wait(ctx)
}

// Limit returns the registered per-minute limit for a site
func (l *Limiter) Limit(siteID int) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	if v, ok := l.limits[siteID]; ok {
		return v
	}
	return DefaultPerMinute
}
