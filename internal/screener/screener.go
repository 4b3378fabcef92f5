package screener

import (
	"context"
	"sort"
	"time"

	"github.com/wonny/aegis/v14/internal/contracts"
	"github.com/wonny/aegis/v14/internal/store"
	"github.com/wonny/aegis/v14/pkg/config"
	"github.com/wonny/aegis/v14/pkg/logger"
)

// 1차 하드컷 경계. 유동성 있는 저평가 구간만 남긴다.
var stage1Bounds = store.ScreenFilter{
	MinPBR:       0.1,
	MaxPBR:       1.5,
	MinPER:       1,
	MaxPER:       20,
	MinAvgVolume: 50_000,
	MinMarketCap: 50_000_000_000, // 500억
}

// CandidateStore is the persistence surface the screener needs
type CandidateStore interface {
	ScreenCandidates(ctx context.Context, asOf time.Time, f store.ScreenFilter) ([]store.Candidate, error)
	GetPricesBatch(ctx context.Context, codes []string, asOf time.Time, days int) (map[string][]contracts.OHLCV, error)
}

// Scored is one stage-2 survivor with its component breakdown
type Scored struct {
	store.Candidate
	QuantScore      float64
	VolumeScore     float64
	TrendScore      float64
	VolatilityScore float64
}

// Screener narrows the whole market to the daily analysis universe in
// two stages: a SQL hard cut, then a quant score over price history.
// ⭐ SSOT: 유니버스 선정은 여기서만
type Screener struct {
	store  CandidateStore
	logger *logger.Logger
	stage1 store.ScreenFilter
	ramps  config.QuantRamps
	topN   int
}

// New builds the screener from the tunable snapshot
func New(st CandidateStore, log *logger.Logger, settings config.Settings) *Screener {
	bounds := stage1Bounds
	bounds.MinTradedValue5D = 5_000_000_000 // 50억
	bounds.Limit = settings.ScreenerStage1Limit

	return &Screener{
		store:  st,
		logger: log.WithComponent("screener"),
		stage1: bounds,
		ramps:  settings.QuantRamps,
		topN:   settings.ScreenerTopN,
	}
}

// Screen returns the top-N universe for one trading day, best score
// first. Ties break toward cheaper valuation: ascending PBR, then PER.
func (s *Screener) Screen(ctx context.Context, asOf time.Time) ([]Scored, error) {
	candidates, err := s.store.ScreenCandidates(ctx, asOf, s.stage1)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		s.logger.Warn("Stage-1 screening returned no candidates")
		return nil, nil
	}

	codes := make([]string, len(candidates))
	for i, c := range candidates {
		codes[i] = c.Ticker.Code
	}

	// 52주 밴드 계산을 위해 260영업일 로드
	history, err := s.store.GetPricesBatch(ctx, codes, asOf, 260)
	if err != nil {
		return nil, err
	}

	scored := make([]Scored, 0, len(candidates))
	skipped := 0
	for _, c := range candidates {
		bars := history[c.Ticker.Code]
		reverseInPlace(bars) // 쿼리는 최신순, 점수는 과거순

		total, vol, trend, vola := QuantScore(bars, s.ramps)
		if total == 0 {
			skipped++
			continue
		}

		scored = append(scored, Scored{
			Candidate:       c,
			QuantScore:      total,
			VolumeScore:     vol,
			TrendScore:      trend,
			VolatilityScore: vola,
		})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].QuantScore != scored[j].QuantScore {
			return scored[i].QuantScore > scored[j].QuantScore
		}
		if scored[i].PBR != scored[j].PBR {
			return scored[i].PBR < scored[j].PBR
		}
		return scored[i].PER < scored[j].PER
	})

	if len(scored) > s.topN {
		scored = scored[:s.topN]
	}

	s.logger.WithFields(map[string]interface{}{
		"stage1":  len(candidates),
		"scored":  len(scored),
		"skipped": skipped,
	}).Info("Screening completed")

	return scored, nil
}

func reverseInPlace(bars []contracts.OHLCV) {
	for i, j := 0, len(bars)-1; i < j; i, j = i+1, j-1 {
		bars[i], bars[j] = bars[j], bars[i]
	}
}
