package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wonny/aegis/v14/internal/contracts"
)

// fetchCmd represents the fetch command
var fetchCmd = &cobra.Command{
	Use:   "fetch [code...]",
	Short: "티어 기반 데이터 수집",
	Long: `등록된 사이트를 티어 순서로 돌며 데이터를 수집합니다.

종목 코드를 주면 해당 종목만, 생략하면 전체 활성 종목을
수집합니다. Tier 1 → 2 → 3 → 4 순서로 배리어를 두고
진행합니다.

Example:
  go run ./cmd/aegis fetch
  go run ./cmd/aegis fetch 005930 000660`,
	RunE: runFetch,
}

func init() {
	rootCmd.AddCommand(fetchCmd)
}

func runFetch(cmd *cobra.Command, args []string) error {
	app, err := bootstrap()
	if err != nil {
		return err
	}
	defer app.Close()

	ctx := cmd.Context()

	orch, err := app.buildOrchestrator(ctx)
	if err != nil {
		return err
	}

	var tickers []contracts.Ticker
	if len(args) > 0 {
		for _, code := range args {
			if err := contracts.ValidateCode(code); err != nil {
				return fmt.Errorf("%w: %w", ErrInvalidInput, err)
			}
			tickers = append(tickers, contracts.Ticker{Code: code})
		}
	} else {
		tickers, err = app.store.ListActiveTickers(ctx)
		if err != nil {
			return fmt.Errorf("list tickers: %w", err)
		}
	}
	if len(tickers) == 0 {
		return fmt.Errorf("%w: no tickers to collect (register first)", ErrInvalidInput)
	}

	fmt.Printf("=== Aegis v14 Fetcher ===\n\n📦 Tickers: %d\n\n", len(tickers))

	summary, err := orch.Run(ctx, tickers)
	if err != nil {
		return fmt.Errorf("collection run: %w", err)
	}
	if summary.Skipped {
		fmt.Println("⚠️  이미 수집이 진행 중입니다. 이번 실행은 건너뜁니다.")
		return nil
	}

	printDoubleSeparator()
	for _, tier := range summary.Tiers {
		fmt.Printf("  Tier %d: OK %d / Failed %d (%.1fs)\n",
			tier.Tier, tier.OK, tier.Failed, tier.Duration.Seconds())
	}
	printSeparator()
	fmt.Printf("✅ 수집 완료 (%.1fs)\n", summary.Duration.Seconds())
	return nil
}
