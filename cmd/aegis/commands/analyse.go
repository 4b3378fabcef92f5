package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/aegis/v14/internal/contracts"
	"github.com/wonny/aegis/v14/internal/fusion"
	"github.com/wonny/aegis/v14/internal/lifecycle"
	"github.com/wonny/aegis/v14/internal/regime"
)

// analyseCmd represents the analyse command
var analyseCmd = &cobra.Command{
	Use:   "analyse",
	Short: "보유 종목 분석",
	Long: `현재 보유 종목을 7개 분석기로 평가하고 융합 판정을
출력합니다. 오래된 데이터는 분석 전에 자동으로 재수집합니다.

Example:
  go run ./cmd/aegis analyse`,
	RunE: runAnalyse,
}

func init() {
	rootCmd.AddCommand(analyseCmd)
}

func runAnalyse(cmd *cobra.Command, args []string) error {
	app, err := bootstrap()
	if err != nil {
		return err
	}
	defer app.Close()

	ctx := cmd.Context()
	now := time.Now()

	holdings, err := app.store.ListHoldings(ctx)
	if err != nil {
		return fmt.Errorf("list holdings: %w", err)
	}
	if len(holdings) == 0 {
		fmt.Println("보유 종목이 없습니다.")
		return nil
	}

	collector, err := app.buildCollector(ctx)
	if err != nil {
		return err
	}
	engine, market := app.buildAnalysisEngine(ctx)
	fuser := fusion.New(app.log, app.cfg.Settings)

	marketCtx, err := market.Context(ctx, now)
	if err != nil {
		app.log.WithError(err).Warn("Market context unavailable, assuming neutral")
		marketCtx = contracts.MarketContext{Mood: contracts.MoodNeutral, AsOf: now}
	}
	currentRegime := classifyIndexRegime(cmd, app, now)

	fmt.Printf("=== Aegis v14 Holdings Analysis ===\n\n")
	fmt.Printf("국면: %s / 시장: %s (ADR %.2f)\n\n", currentRegime, marketCtx.Mood, marketCtx.ADR)
	printDoubleSeparator()

	for _, h := range holdings {
		ticker := contracts.Ticker{Code: h.TickerCode}
		if t, err := app.store.GetTicker(ctx, h.TickerCode); err == nil && t != nil {
			ticker = *t
		}

		if err := collector.Ensure(ctx, ticker, now); err != nil {
			app.log.WithError(err).WithField("ticker", h.TickerCode).
				Warn("Refresh failed, analysing stale data")
		}

		verdict := fuser.Fuse(fusion.Input{
			TickerCode:    h.TickerCode,
			Regime:        currentRegime,
			Results:       engine.Run(ctx, h.TickerCode, now),
			Market:        marketCtx,
			TradedValue5D: tradedValue5D(cmd, app, h.TickerCode, now),
		})

		fmt.Printf("\n%s (%s)\n", ticker.Name, h.TickerCode)
		fmt.Printf("  보유: %d주 @ %s원 (수익률 %+.2f%%)\n",
			h.Quantity, formatNumber(h.AvgBuyPrice), h.ReturnRate()*100)
		fmt.Printf("  판정: %s (score %+.2f, confidence %.2f)\n",
			verdict.Decision, verdict.FinalScore, verdict.Confidence)
		for _, v := range verdict.Vetoes {
			fmt.Printf("  ⚠️  거부권: %s\n", v)
		}
	}

	fmt.Println()
	printDoubleSeparator()
	return nil
}

// classifyIndexRegime reads the index trailing window. 분류 실패 시
// 횡보로 간주.
func classifyIndexRegime(cmd *cobra.Command, app *app, now time.Time) contracts.Regime {
	bars, err := app.store.GetPrices(cmd.Context(), lifecycle.IndexCode, now, 80)
	if err != nil || len(bars) == 0 {
		return contracts.RegimeSideway
	}

	// GetPrices는 최신순, 분류기는 과거순
	ordered := make([]contracts.OHLCV, len(bars))
	for i, b := range bars {
		ordered[len(bars)-1-i] = b
	}

	c, err := regime.Classify(ordered)
	if err != nil {
		return contracts.RegimeSideway
	}
	return c.Regime
}

// tradedValue5D averages the last 5 daily trading values
func tradedValue5D(cmd *cobra.Command, app *app, code string, now time.Time) float64 {
	bars, err := app.store.GetPrices(cmd.Context(), code, now, 5)
	if err != nil || len(bars) == 0 {
		return 0
	}
	var sum float64
	for _, b := range bars {
		sum += float64(b.TradingValue)
	}
	return sum / float64(len(bars))
}
