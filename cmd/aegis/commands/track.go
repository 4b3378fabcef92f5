package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/aegis/v14/internal/ai"
	"github.com/wonny/aegis/v14/internal/lifecycle"
)

// trackCmd represents the track command
var trackCmd = &cobra.Command{
	Use:   "track",
	Short: "추천 성과 점검",
	Long: `7/14/30일 기한이 도래한 추천의 수익률과 MDD를 기록합니다.

Example:
  go run ./cmd/aegis track`,
	RunE: runTrack,
}

// retrospectCmd represents the retrospect command
var retrospectCmd = &cobra.Command{
	Use:   "retrospect",
	Short: "실패 추천 회고 생성",
	Long: `실패로 분류된 추천에 대해 LLM 회고를 생성합니다.
회고는 (추천, 기한)당 한 번만 생성되며 호출 간격이
제한됩니다.

Example:
  go run ./cmd/aegis retrospect`,
	RunE: runRetrospect,
}

func init() {
	rootCmd.AddCommand(trackCmd)
	rootCmd.AddCommand(retrospectCmd)
}

func runTrack(cmd *cobra.Command, args []string) error {
	app, err := bootstrap()
	if err != nil {
		return err
	}
	defer app.Close()

	ctx := cmd.Context()

	fmt.Println("=== Aegis v14 Performance Tracking ===")

	result, err := lifecycle.NewTracker(app.store, app.log).Run(ctx, time.Now())
	if err != nil {
		return fmt.Errorf("tracking pass: %w", err)
	}

	fmt.Printf("\n✅ 점검 %d건 (실패 %d건)\n", result.Checked, result.Failed)
	for status, count := range result.ByStatus {
		fmt.Printf("  %-8s %d\n", status, count)
	}

	if err := app.notifier().TrackSummary(ctx, result); err != nil {
		app.log.WithError(err).Warn("Slack notification failed")
	}
	return nil
}

func runRetrospect(cmd *cobra.Command, args []string) error {
	app, err := bootstrap()
	if err != nil {
		return err
	}
	defer app.Close()

	ctx := cmd.Context()

	if app.cfg.Gemini.APIKey == "" {
		return fmt.Errorf("GEMINI_API_KEY not set: %w", ErrExternalUnavailable)
	}
	gemini, err := ai.NewClient(ctx, app.cfg.Gemini, app.log)
	if err != nil {
		return fmt.Errorf("init gemini: %w (%w)", err, ErrExternalUnavailable)
	}

	fmt.Println("=== Aegis v14 Retrospective ===")

	result, err := lifecycle.NewRetro(app.store, gemini, app.log).Run(ctx)
	if err != nil {
		return fmt.Errorf("retrospective pass: %w", err)
	}

	fmt.Printf("\n✅ 회고 생성 %d건 (건너뜀 %d건)\n", result.Generated, result.Skipped)
	return nil
}
