package commands

import (
	"errors"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	configFile string
	env        string
	verbose    bool
)

// Sentinel errors mapped onto process exit codes. Commands wrap their
// failures with these so the shell can tell operator mistakes apart
// from upstream outages.
var (
	// ErrInvalidInput marks operator mistakes (exit 2)
	ErrInvalidInput = errors.New("invalid input")
	// ErrExternalUnavailable marks upstream outages: DB, KIS, Gemini (exit 3)
	ErrExternalUnavailable = errors.New("external service unavailable")
)

// ExitCode maps a command error onto the process exit code
func ExitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, ErrInvalidInput):
		return 2
	case errors.Is(err, ErrExternalUnavailable):
		return 3
	default:
		return 1
	}
}

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "aegis",
	Short: "Aegis v14 - AI 기반 한국 주식 분석 시스템",
	Long: `Aegis v14 Unified CLI

티어 기반 데이터 수집, 7개 분석기 융합 엔진,
추천 생애주기 추적까지 하나의 파이프라인으로.

Usage:
  go run ./cmd/aegis [command]

Examples:
  go run ./cmd/aegis register 005930 삼성전자
  go run ./cmd/aegis recommend
  go run ./cmd/aegis analyse
  go run ./cmd/aegis auto`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file (default is .env)")
	rootCmd.PersistentFlags().StringVar(&env, "env", "development", "environment (development|staging|production)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
