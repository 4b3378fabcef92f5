package commands

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/wonny/aegis/v14/internal/contracts"
	"github.com/wonny/aegis/v14/internal/feed"
)

// collectCmd represents the collect command
var collectCmd = &cobra.Command{
	Use:   "collect [code...]",
	Short: "실시간 체결 수집 시작",
	Long: `KIS 웹소켓으로 실시간 체결 데이터를 수집합니다.

종목 코드를 주면 해당 종목을, 생략하면 현재 보유 종목을
구독합니다. 구독은 최대 40종목까지이며 Ctrl+C로 종료합니다.

Example:
  go run ./cmd/aegis collect
  go run ./cmd/aegis collect 005930 000660`,
	RunE: runCollect,
}

func init() {
	rootCmd.AddCommand(collectCmd)
}

func runCollect(cmd *cobra.Command, args []string) error {
	app, err := bootstrap()
	if err != nil {
		return err
	}
	defer app.Close()

	ctx := cmd.Context()

	if app.cfg.KIS.AppKey == "" || app.cfg.KIS.AppSecret == "" {
		return fmt.Errorf("KIS_APP_KEY/KIS_APP_SECRET not set: %w", ErrExternalUnavailable)
	}

	codes := args
	for _, code := range codes {
		if err := contracts.ValidateCode(code); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidInput, err)
		}
	}
	if len(codes) == 0 {
		holdings, err := app.store.ListHoldings(ctx)
		if err != nil {
			return fmt.Errorf("list holdings: %w", err)
		}
		for _, h := range holdings {
			codes = append(codes, h.TickerCode)
		}
	}
	if len(codes) == 0 {
		return fmt.Errorf("%w: nothing to subscribe (no holdings, no codes given)", ErrInvalidInput)
	}

	fmt.Printf("=== Aegis v14 Realtime Feed ===\n\n📡 Subscribing %d symbols\n", len(codes))

	f := feed.New(app.cfg.KIS, app.kis, app.store, app.log)
	if err := f.Start(ctx); err != nil {
		return fmt.Errorf("start feed: %w (%w)", err, ErrExternalUnavailable)
	}
	if err := f.Subscribe(ctx, codes); err != nil {
		return fmt.Errorf("subscribe: %w (%w)", err, ErrExternalUnavailable)
	}

	fmt.Println("✅ 수신 중... (Ctrl+C로 종료)")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	fmt.Println("\n🛑 Stopping feed...")
	f.Stop()
	return nil
}
