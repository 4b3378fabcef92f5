package commands

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/aegis/v14/internal/ai"
	"github.com/wonny/aegis/v14/internal/contracts"
)

// tradeCmd represents the trade command
var tradeCmd = &cobra.Command{
	Use:   `trade "<자연어 거래 내역>"`,
	Short: "자연어 거래 기록",
	Long: `자연어 거래 내역을 LLM으로 파싱하여 보유 종목에 반영합니다.

매수는 평균 단가를 재계산하고, 전량 매도는 보유 종목에서
제거합니다.

Example:
  go run ./cmd/aegis trade "삼성전자 10주 71,000원에 매수"
  go run ./cmd/aegis trade "005930 5주 팔았음 73500원"`,
	Args: cobra.ExactArgs(1),
	RunE: runTrade,
}

func init() {
	rootCmd.AddCommand(tradeCmd)
}

func runTrade(cmd *cobra.Command, args []string) error {
	text := strings.TrimSpace(args[0])
	if text == "" {
		return fmt.Errorf("%w: empty trade text", ErrInvalidInput)
	}

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

	order, err := ai.NewTradeParser(gemini, app.log).Parse(ctx, text)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}

	fmt.Printf("📋 파싱 결과: %s %s %d주 @ %s원\n",
		order.TickerCode, order.Action, order.Quantity, formatNumber(order.Price))

	if err := applyTrade(cmd, app, order); err != nil {
		return err
	}
	return nil
}

// applyTrade folds one order into the holdings table
func applyTrade(cmd *cobra.Command, app *app, order ai.TradeOrder) error {
	ctx := cmd.Context()

	holdings, err := app.store.ListHoldings(ctx)
	if err != nil {
		return fmt.Errorf("list holdings: %w", err)
	}

	var current *contracts.Holding
	for i := range holdings {
		if holdings[i].TickerCode == order.TickerCode {
			current = &holdings[i]
			break
		}
	}

	switch order.Action {
	case "buy":
		next := contracts.Holding{
			TickerCode:   order.TickerCode,
			Quantity:     order.Quantity,
			AvgBuyPrice:  order.Price,
			CurrentPrice: order.Price,
			UpdatedAt:    time.Now(),
		}
		if current != nil {
			next.Quantity = current.Quantity + order.Quantity
			// 평균 단가 재계산
			next.AvgBuyPrice = (current.Quantity*current.AvgBuyPrice +
				order.Quantity*order.Price) / next.Quantity
		}
		if err := app.store.SaveHolding(ctx, next); err != nil {
			return fmt.Errorf("save holding: %w", err)
		}
		fmt.Printf("✅ 매수 반영: %s %d주 (평단 %s원)\n",
			next.TickerCode, next.Quantity, formatNumber(next.AvgBuyPrice))

	case "sell":
		if current == nil {
			return fmt.Errorf("%w: not holding %s", ErrInvalidInput, order.TickerCode)
		}
		if order.Quantity > current.Quantity {
			return fmt.Errorf("%w: selling %d but holding %d",
				ErrInvalidInput, order.Quantity, current.Quantity)
		}

		remaining := current.Quantity - order.Quantity
		if remaining == 0 {
			if err := app.store.RemoveHolding(ctx, order.TickerCode); err != nil {
				return fmt.Errorf("remove holding: %w", err)
			}
			fmt.Printf("✅ 전량 매도: %s\n", order.TickerCode)
			break
		}

		next := *current
		next.Quantity = remaining
		next.CurrentPrice = order.Price
		next.UpdatedAt = time.Now()
		if err := app.store.SaveHolding(ctx, next); err != nil {
			return fmt.Errorf("save holding: %w", err)
		}
		fmt.Printf("✅ 매도 반영: %s 잔여 %d주\n", next.TickerCode, remaining)
	}

	return nil
}
