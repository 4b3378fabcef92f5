package lifecycle

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/wonny/aegis/v14/internal/contracts"
	"github.com/wonny/aegis/v14/internal/fusion"
	"github.com/wonny/aegis/v14/internal/regime"
	"github.com/wonny/aegis/v14/internal/screener"
	"github.com/wonny/aegis/v14/pkg/logger"
)

// IndexCode is the pseudo-ticker the market index bars are stored
// under in daily_prices. 국면 분류의 기준 지수.
const IndexCode = "KOSPI"

// Universe narrows the market to the daily analysis candidates
type Universe interface {
	Screen(ctx context.Context, asOf time.Time) ([]screener.Scored, error)
}

// AnalyserEngine runs every analyser for one ticker
type AnalyserEngine interface {
	Run(ctx context.Context, code string, asOf time.Time) map[string]contracts.AnalyserResult
}

// MarketContexter supplies the shared market snapshot
type MarketContexter interface {
	Context(ctx context.Context, asOf time.Time) (contracts.MarketContext, error)
}

// DataEnsurer guarantees fresh collected data for one ticker
type DataEnsurer interface {
	Ensure(ctx context.Context, ticker contracts.Ticker, now time.Time) error
}

// BatchStore persists the batch output
type BatchStore interface {
	GetPrices(ctx context.Context, code string, asOf time.Time, limit int) ([]contracts.OHLCV, error)
	GetClosePrice(ctx context.Context, code string, date time.Time) (int64, time.Time, error)
	SaveRecommendation(ctx context.Context, r contracts.Recommendation) (int64, error)
}

// BatchResult summarises one pipeline run
type BatchResult struct {
	BatchID    string
	Regime     contracts.Regime
	Candidates int
	Saved      int
	Failed     int
	Decisions  map[contracts.Decision]int
	Duration   time.Duration
}

// Batch runs the whole daily pipeline: screen the universe, refresh
// each candidate's data, analyse, fuse, persist.
// ⭐ SSOT: 일일 추천 파이프라인은 여기서만
type Batch struct {
	universe  Universe
	collector DataEnsurer
	engine    AnalyserEngine
	market    MarketContexter
	fusion    *fusion.Engine
	store     BatchStore
	logger    *logger.Logger
}

// NewBatch wires the pipeline stages
func NewBatch(universe Universe, collector DataEnsurer, engine AnalyserEngine, market MarketContexter, fuser *fusion.Engine, store BatchStore, log *logger.Logger) *Batch {
	return &Batch{
		universe:  universe,
		collector: collector,
		engine:    engine,
		market:    market,
		fusion:    fuser,
		store:     store,
		logger:    log.WithComponent("batch"),
	}
}

// NewBatchID derives the batch identifier from the run timestamp
func NewBatchID(now time.Time) string {
	return now.Format("20060102-150405")
}

// Run executes the pipeline for asOf and persists one recommendation
// per candidate under a shared batch id. A single ticker's failure is
// counted, not fatal.
func (b *Batch) Run(ctx context.Context, asOf time.Time) (BatchResult, error) {
	start := time.Now()
	result := BatchResult{
		BatchID:   NewBatchID(asOf),
		Decisions: make(map[contracts.Decision]int),
	}

	candidates, err := b.universe.Screen(ctx, asOf)
	if err != nil {
		return result, fmt.Errorf("screen universe: %w", err)
	}
	result.Candidates = len(candidates)

	marketCtx, err := b.market.Context(ctx, asOf)
	if err != nil {
		b.logger.WithError(err).Warn("Market context unavailable, fusing without mood veto")
		marketCtx = contracts.MarketContext{Mood: contracts.MoodNeutral, AsOf: asOf}
	}

	result.Regime = b.classifyRegime(ctx, asOf)

	b.logger.WithFields(map[string]interface{}{
		"batch_id":   result.BatchID,
		"candidates": result.Candidates,
		"regime":     string(result.Regime),
		"mood":       string(marketCtx.Mood),
	}).Info("Batch started")

	for _, cand := range candidates {
		if err := ctx.Err(); err != nil {
			result.Duration = time.Since(start)
			return result, err
		}

		if err := b.processOne(ctx, cand, asOf, result.BatchID, result.Regime, marketCtx, &result); err != nil {
			result.Failed++
			b.logger.WithError(err).WithField("ticker", cand.Ticker.Code).Warn("Candidate failed")
		}
	}

	result.Duration = time.Since(start)
	b.logger.WithFields(map[string]interface{}{
		"batch_id": result.BatchID,
		"saved":    result.Saved,
		"failed":   result.Failed,
		"duration": result.Duration.String(),
	}).Info("Batch finished")
	return result, nil
}

func (b *Batch) processOne(ctx context.Context, cand screener.Scored, asOf time.Time, batchID string, reg contracts.Regime, marketCtx contracts.MarketContext, result *BatchResult) error {
	if err := b.collector.Ensure(ctx, cand.Ticker, asOf); err != nil {
		// 오래된 데이터로라도 분석은 계속한다
		b.logger.WithError(err).WithField("ticker", cand.Ticker.Code).Warn("Refresh failed, analysing stale data")
	}

	results := b.engine.Run(ctx, cand.Ticker.Code, asOf)
	if len(results) == 0 {
		return fmt.Errorf("no analyser produced a result for %s", cand.Ticker.Code)
	}

	fused := b.fusion.Fuse(fusion.Input{
		TickerCode:    cand.Ticker.Code,
		Regime:        reg,
		Results:       results,
		Market:        marketCtx,
		TradedValue5D: cand.TradedValue5D,
	})

	price, _, err := b.store.GetClosePrice(ctx, cand.Ticker.Code, asOf)
	if err != nil {
		return fmt.Errorf("close price %s: %w", cand.Ticker.Code, err)
	}

	rec := contracts.Recommendation{
		BatchID:    batchID,
		TickerCode: cand.Ticker.Code,
		RecDate:    asOf,
		RecPrice:   price,
		Grade:      contracts.RecGradeForScore(fused.FinalScore),
		Confidence: fused.Confidence,
		Decision:   fused.Decision,
		Rationale:  rationaleFor(fused),
		Scores:     fused.Breakdown,
		FinalScore: fused.FinalScore,
	}
	if _, err := b.store.SaveRecommendation(ctx, rec); err != nil {
		return fmt.Errorf("save recommendation %s: %w", cand.Ticker.Code, err)
	}

	result.Saved++
	result.Decisions[fused.Decision]++
	return nil
}

// classifyRegime reads the index history; without it the pipeline
// falls back to SIDEWAY weights.
func (b *Batch) classifyRegime(ctx context.Context, asOf time.Time) contracts.Regime {
	bars, err := b.store.GetPrices(ctx, IndexCode, asOf, 120)
	if err != nil || len(bars) == 0 {
		b.logger.WithError(err).Warn("Index history unavailable, assuming SIDEWAY")
		return contracts.RegimeSideway
	}
	// 쿼리는 최신순, 분류기는 과거순
	for i, j := 0, len(bars)-1; i < j; i, j = i+1, j-1 {
		bars[i], bars[j] = bars[j], bars[i]
	}
	c, err := regime.Classify(bars)
	if err != nil {
		b.logger.WithError(err).Warn("Regime classification failed, assuming SIDEWAY")
		return contracts.RegimeSideway
	}
	return c.Regime
}

// rationaleFor flattens analyser notes and vetoes into one line
func rationaleFor(f contracts.FusionResult) string {
	var parts []string
	for _, r := range f.Results {
		for _, n := range r.Notes {
			parts = append(parts, n)
		}
	}
	for _, v := range f.Vetoes {
		parts = append(parts, "veto:"+string(v))
	}
	if len(parts) > 6 {
		parts = parts[:6]
	}
	return strings.Join(parts, "; ")
}
