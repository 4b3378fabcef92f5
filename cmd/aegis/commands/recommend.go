package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

// recommendCmd represents the recommend command
var recommendCmd = &cobra.Command{
	Use:   "recommend",
	Short: "일일 추천 파이프라인 실행",
	Long: `전체 파이프라인을 한 번 실행합니다:
유니버스 스크리닝 → 데이터 수집 → 7개 분석기 → 융합 → 저장.

Example:
  go run ./cmd/aegis recommend`,
	RunE: runRecommend,
}

func init() {
	rootCmd.AddCommand(recommendCmd)
}

func runRecommend(cmd *cobra.Command, args []string) error {
	app, err := bootstrap()
	if err != nil {
		return err
	}
	defer app.Close()

	ctx := cmd.Context()

	batch, err := app.buildBatch(ctx)
	if err != nil {
		return err
	}

	fmt.Println("=== Aegis v14 Recommendation Pipeline ===")
	fmt.Println()

	result, err := batch.Run(ctx, time.Now())
	if err != nil {
		return fmt.Errorf("recommendation batch: %w", err)
	}

	printDoubleSeparator()
	fmt.Printf("  Batch     : %s\n", result.BatchID)
	fmt.Printf("  Regime    : %s\n", result.Regime)
	fmt.Printf("  Candidates: %d\n", result.Candidates)
	fmt.Printf("  Saved     : %d (failed %d)\n", result.Saved, result.Failed)
	for decision, count := range result.Decisions {
		fmt.Printf("    %-12s %d\n", decision, count)
	}
	printSeparator()
	fmt.Printf("✅ 완료 (%.1fs)\n", result.Duration.Seconds())

	if err := app.notifier().BatchSummary(ctx, result); err != nil {
		app.log.WithError(err).Warn("Slack notification failed")
	}
	return nil
}
