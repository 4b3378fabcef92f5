package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/aegis/v14/internal/api"
)

// apiCmd represents the api command
var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "조회 API 서버 시작",
	Long: `읽기 전용 HTTP API 서버를 시작합니다.

Endpoints:
  GET /health
  GET /api/recommendations?date=YYYY-MM-DD&limit=N
  GET /api/recommendations/{id}
  GET /api/performance?days=N
  GET /api/sites/health
  GET /api/holdings

Example:
  go run ./cmd/aegis api
  API_PORT=8090 go run ./cmd/aegis api`,
	RunE: runAPIServer,
}

func init() {
	rootCmd.AddCommand(apiCmd)
}

func runAPIServer(cmd *cobra.Command, args []string) error {
	app, err := bootstrap()
	if err != nil {
		return err
	}
	defer app.Close()

	router := api.NewRouter(api.NewHandler(app.store, app.log), app.log)
	server := api.New(app.cfg.APIPort, app.log, router)

	fmt.Printf("=== Aegis v14 API Server ===\n\n🌐 Listening on :%s\n", app.cfg.APIPort)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case <-quit:
	}

	fmt.Println("\n🛑 Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
