package main

import (
	"os"

	"github.com/wonny/aegis/v14/cmd/aegis/commands"
)

// main is the entry point for the Aegis CLI
// ⭐ 통합 CLI 진입점: go run ./cmd/aegis [command]
func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(commands.ExitCode(err))
	}
}
