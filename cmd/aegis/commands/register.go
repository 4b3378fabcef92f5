package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wonny/aegis/v14/internal/contracts"
)

// registerCmd represents the register command
var registerCmd = &cobra.Command{
	Use:   "register <code> [name]",
	Short: "종목 등록",
	Long: `종목을 분석 유니버스에 등록합니다.

코드는 6자리 숫자, 이름은 생략 가능합니다.

Example:
  go run ./cmd/aegis register 005930 삼성전자
  go run ./cmd/aegis register 000660 --market KOSPI`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runRegister,
}

var registerMarket string

func init() {
	rootCmd.AddCommand(registerCmd)
	registerCmd.Flags().StringVar(&registerMarket, "market", "KOSPI", "시장 구분 (KOSPI|KOSDAQ|KONEX)")
}

func runRegister(cmd *cobra.Command, args []string) error {
	code := args[0]
	if err := contracts.ValidateCode(code); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}

	market := contracts.Market(registerMarket)
	switch market {
	case contracts.MarketKOSPI, contracts.MarketKOSDAQ, contracts.MarketKONEX:
	default:
		return fmt.Errorf("%w: unknown market %q", ErrInvalidInput, registerMarket)
	}

	name := code
	if len(args) == 2 {
		name = args[1]
	}

	app, err := bootstrap()
	if err != nil {
		return err
	}
	defer app.Close()

	ticker := contracts.Ticker{Code: code, Name: name, Market: market}
	if err := app.store.SaveTicker(cmd.Context(), ticker); err != nil {
		return fmt.Errorf("register ticker: %w", err)
	}

	fmt.Printf("✅ 종목 등록 완료: %s (%s, %s)\n", name, code, market)
	return nil
}
