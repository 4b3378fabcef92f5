package analysis

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/wonny/aegis/v14/internal/contracts"
	"github.com/wonny/aegis/v14/pkg/logger"
	"github.com/wonny/aegis/v14/pkg/redis"
)

// BreadthSource provides the market-wide advance/decline counts
type BreadthSource interface {
	CountAdvanceDecline(ctx context.Context, date time.Time) (advancers, decliners int, err error)
}

// MarketAnalyser contributes the ticker-independent market mood. The
// snapshot is expensive across the whole market, so it is cached for
// 5 minutes in Redis (when enabled) with an in-process fallback.
// ⭐ SSOT: 시장 컨텍스트 산출은 여기서만
type MarketAnalyser struct {
	source BreadthSource
	cache  *redis.Cache
	logger *logger.Logger

	mu       sync.Mutex
	snapshot contracts.MarketContext
}

// NewMarketAnalyser builds the market-context perspective
func NewMarketAnalyser(source BreadthSource, cache *redis.Cache, log *logger.Logger) *MarketAnalyser {
	return &MarketAnalyser{source: source, cache: cache, logger: log}
}

func (a *MarketAnalyser) Name() string { return "market" }

// Context returns the cached market snapshot, recomputing when stale
func (a *MarketAnalyser) Context(ctx context.Context, asOf time.Time) (contracts.MarketContext, error) {
	key := redis.MarketContextKey("KR")

	var cached contracts.MarketContext
	if ok, err := a.cache.Get(ctx, key, &cached); err == nil && ok {
		return cached, nil
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if asOf.Sub(a.snapshot.AsOf) < redis.TTLMarketContext && !a.snapshot.AsOf.IsZero() {
		return a.snapshot, nil
	}

	advancers, decliners, err := a.source.CountAdvanceDecline(ctx, asOf)
	if err != nil {
		return contracts.MarketContext{}, err
	}

	adr := float64(advancers)
	if decliners > 0 {
		adr = float64(advancers) / float64(decliners)
	}

	snapshot := contracts.MarketContext{
		Mood: moodForADR(adr),
		ADR:  adr,
		AsOf: asOf,
	}

	a.snapshot = snapshot
	if err := a.cache.Set(ctx, key, snapshot, redis.TTLMarketContext); err != nil {
		a.logger.WithError(err).Debug("Market context cache write failed")
	}

	return snapshot, nil
}

// Analyse maps the market mood onto a per-ticker contribution
func (a *MarketAnalyser) Analyse(ctx context.Context, code string, asOf time.Time) (contracts.AnalyserResult, error) {
	snapshot, err := a.Context(ctx, asOf)
	if err != nil {
		return contracts.AnalyserResult{}, err
	}

	result := contracts.AnalyserResult{
		Analyser:   a.Name(),
		AsOf:       asOf,
		PassFilter: true,
		Notes:      []string{fmt.Sprintf("ADR %.2f (%s)", snapshot.ADR, snapshot.Mood)},
	}

	switch snapshot.Mood {
	case contracts.MoodStrongBullish:
		result.Score = 1.0
	case contracts.MoodBullish:
		result.Score = 0.5
	case contracts.MoodBearish:
		result.Score = -0.5
	case contracts.MoodStrongBearish:
		result.Score = -1.0
	}

	result.Clamp()
	return result, nil
}

// moodForADR buckets the advance/decline ratio into the 5-level mood
func moodForADR(adr float64) contracts.MarketMood {
	switch {
	case adr >= 1.6:
		return contracts.MoodStrongBullish
	case adr >= 1.2:
		return contracts.MoodBullish
	case adr <= 0.5:
		return contracts.MoodStrongBearish
	case adr <= 0.8:
		return contracts.MoodBearish
	default:
		return contracts.MoodNeutral
	}
}
