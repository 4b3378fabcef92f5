package commands

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/aegis/v14/internal/ai"
	"github.com/wonny/aegis/v14/internal/feed"
	"github.com/wonny/aegis/v14/internal/lifecycle"
	"github.com/wonny/aegis/v14/internal/scheduler"
)

// autoCmd represents the auto command
var autoCmd = &cobra.Command{
	Use:   "auto",
	Short: "자동 운영 모드",
	Long: `스케줄러를 띄워 전체 파이프라인을 자동으로 운영합니다.

스케줄 (KST):
  pipeline       장중 20분 간격 (평일 09:00~15:40)
  tracking       매일 18:00
  retrospective  매일 18:30 (GEMINI_API_KEY 있을 때만)
  tick-prune     매일 03:00

보유 종목이 있으면 실시간 체결 수신도 함께 시작합니다.
Ctrl+C로 종료합니다.

Example:
  go run ./cmd/aegis auto`,
	RunE: runAuto,
}

func init() {
	rootCmd.AddCommand(autoCmd)
}

func runAuto(cmd *cobra.Command, args []string) error {
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
	tracker := lifecycle.NewTracker(app.store, app.log)
	notifier := app.notifier()

	loc, err := time.LoadLocation("Asia/Seoul")
	if err != nil {
		loc = time.Local
	}
	sched := scheduler.New(app.log, loc)

	if err := sched.AddJob(scheduler.NewPipelineJob(batch, notifier, app.log)); err != nil {
		return err
	}
	if err := sched.AddJob(scheduler.NewTrackingJob(tracker, notifier, app.log)); err != nil {
		return err
	}
	if err := sched.AddJob(scheduler.NewPruneJob(app.store, app.log)); err != nil {
		return err
	}

	if app.cfg.Gemini.APIKey != "" {
		gemini, err := ai.NewClient(ctx, app.cfg.Gemini, app.log)
		if err != nil {
			return fmt.Errorf("init gemini: %w (%w)", err, ErrExternalUnavailable)
		}
		retro := lifecycle.NewRetro(app.store, gemini, app.log)
		if err := sched.AddJob(scheduler.NewRetroJob(retro)); err != nil {
			return err
		}
	} else {
		app.log.Warn("GEMINI_API_KEY not set, retrospective job disabled")
	}

	sched.Start()
	defer sched.Stop()

	// 보유 종목이 있으면 실시간 피드도 함께
	var tickFeed *feed.Feed
	if app.cfg.KIS.AppKey != "" {
		if codes := holdingCodes(cmd, app); len(codes) > 0 {
			tickFeed = feed.New(app.cfg.KIS, app.kis, app.store, app.log)
			if err := tickFeed.Start(ctx); err != nil {
				app.log.WithError(err).Warn("Realtime feed unavailable")
				tickFeed = nil
			} else if err := tickFeed.Subscribe(ctx, codes); err != nil {
				app.log.WithError(err).Warn("Realtime subscribe failed")
			}
		}
	}

	fmt.Println("=== Aegis v14 Auto Mode ===")
	fmt.Printf("\n⏰ Jobs: %v\n", sched.Jobs())
	fmt.Println("✅ 운영 중... (Ctrl+C로 종료)")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	fmt.Println("\n🛑 Stopping...")
	if tickFeed != nil {
		tickFeed.Stop()
	}
	return nil
}

func holdingCodes(cmd *cobra.Command, app *app) []string {
	holdings, err := app.store.ListHoldings(cmd.Context())
	if err != nil {
		app.log.WithError(err).Warn("Failed to list holdings for feed")
		return nil
	}
	codes := make([]string, 0, len(holdings))
	for _, h := range holdings {
		codes = append(codes, h.TickerCode)
	}
	return codes
}
