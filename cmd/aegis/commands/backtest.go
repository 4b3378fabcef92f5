package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/aegis/v14/internal/backtest"
	"github.com/wonny/aegis/v14/internal/contracts"
	"github.com/wonny/aegis/v14/internal/strategy"
)

// backtestCmd represents the backtest command
var backtestCmd = &cobra.Command{
	Use:   "backtest <code...>",
	Short: "전략 앙상블 백테스트",
	Long: `과거 일봉으로 전략 앙상블을 시뮬레이션합니다.

검증 항목:
- 수익률, 승률, Profit Factor
- MDD 및 청산 사유 분포
- 서킷 브레이커 동작

Flags:
  --from        시작 날짜 (YYYY-MM-DD, 필수)
  --to          종료 날짜 (YYYY-MM-DD, 기본: 오늘)
  --capital     초기 자본 (기본: 1억원)
  --commission  수수료율 (기본: 0.00015)
  --slippage    슬리피지율 (기본: 0.0005)

Example:
  go run ./cmd/aegis backtest 005930 --from 2025-01-02
  go run ./cmd/aegis backtest 005930 000660 --from 2025-01-02 --to 2025-06-30`,
	Args: cobra.MinimumNArgs(1),
	RunE: runBacktest,
}

var (
	backtestFrom       string
	backtestTo         string
	backtestCapital    int64
	backtestCommission float64
	backtestSlippage   float64
)

func init() {
	rootCmd.AddCommand(backtestCmd)

	backtestCmd.Flags().StringVar(&backtestFrom, "from", "", "시작 날짜 (YYYY-MM-DD, 필수)")
	backtestCmd.Flags().StringVar(&backtestTo, "to", "", "종료 날짜 (YYYY-MM-DD, 기본: 오늘)")
	backtestCmd.Flags().Int64Var(&backtestCapital, "capital", 100_000_000, "초기 자본 (원)")
	backtestCmd.Flags().Float64Var(&backtestCommission, "commission", 0.00015, "수수료율")
	backtestCmd.Flags().Float64Var(&backtestSlippage, "slippage", 0.0005, "슬리피지율")

	backtestCmd.MarkFlagRequired("from")
}

func runBacktest(cmd *cobra.Command, args []string) error {
	startDate, err := time.Parse("2006-01-02", backtestFrom)
	if err != nil {
		return fmt.Errorf("%w: invalid start date: %w", ErrInvalidInput, err)
	}
	endDate := time.Now()
	if backtestTo != "" {
		endDate, err = time.Parse("2006-01-02", backtestTo)
		if err != nil {
			return fmt.Errorf("%w: invalid end date: %w", ErrInvalidInput, err)
		}
	}
	if !endDate.After(startDate) {
		return fmt.Errorf("%w: end date must be after start date", ErrInvalidInput)
	}

	for _, code := range args {
		if err := contracts.ValidateCode(code); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidInput, err)
		}
	}

	app, err := bootstrap()
	if err != nil {
		return err
	}
	defer app.Close()

	ctx := cmd.Context()

	// 워밍업 구간까지 포함해 적재
	days := int(endDate.Sub(startDate).Hours()/24) + 120
	batch, err := app.store.GetPricesBatch(ctx, args, endDate, days)
	if err != nil {
		return fmt.Errorf("load price history: %w", err)
	}

	series := make(map[string][]contracts.OHLCV, len(batch))
	for code, bars := range batch {
		// 저장소는 최신순, 엔진은 과거순
		ordered := make([]contracts.OHLCV, len(bars))
		for i, b := range bars {
			ordered[len(bars)-1-i] = b
		}
		series[code] = ordered
	}

	fmt.Println("=== Aegis v14 Backtest Engine ===")
	fmt.Printf("\n📅 Period: %s ~ %s\n", startDate.Format("2006-01-02"), endDate.Format("2006-01-02"))
	fmt.Printf("💰 Initial Capital: %s원\n\n", formatNumber(backtestCapital))

	cfg := backtest.DefaultConfig()
	cfg.InitialCapital = backtestCapital
	cfg.Commission = backtestCommission
	cfg.Slippage = backtestSlippage

	engine := backtest.New(strategy.NewEnsemble(app.log),
		backtest.NewRiskManager(), backtest.NewCircuitBreaker(), app.log, cfg)

	result, err := engine.Run(ctx, series)
	if err != nil {
		return fmt.Errorf("backtest failed: %w", err)
	}

	printBacktestResult(result)
	return nil
}

func printBacktestResult(result *backtest.Result) {
	printDoubleSeparator()
	fmt.Println("📊 Summary")
	fmt.Printf("Trading Days:    %d\n", result.TradingDays)
	fmt.Printf("Initial Capital: %s원\n", formatNumber(result.InitialCapital))
	fmt.Printf("Final Capital:   %s원\n", formatNumber(result.FinalCapital))
	fmt.Printf("Total Return:    %+.2f%%\n", result.TotalReturn*100)
	fmt.Println()

	fmt.Println("📉 Risk")
	fmt.Printf("Max Drawdown:    %.2f%%\n", result.MaxDrawdown*100)
	fmt.Printf("Breaker Trips:   %d\n", result.BreakerTrips)
	fmt.Println()

	fmt.Println("💹 Trades")
	fmt.Printf("Total Trades:    %d\n", len(result.Trades))
	fmt.Printf("Win Rate:        %.1f%%\n", result.WinRate*100)
	fmt.Printf("Profit Factor:   %.2f\n", result.ProfitFactor)
	for cause, count := range result.ExitCauses {
		fmt.Printf("  %-14s %d\n", cause, count)
	}
	printSeparator()

	if result.WinRate >= 0.5 && result.MaxDrawdown < 0.15 {
		fmt.Println("✅ Strong strategy - good risk-adjusted returns")
	} else if result.MaxDrawdown < 0.25 {
		fmt.Println("⚠️  Acceptable strategy - consider tuning thresholds")
	} else {
		fmt.Println("❌ Weak strategy - needs improvement")
	}
}
