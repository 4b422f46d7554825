package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"kpiconsole/internal/app/server"
	"kpiconsole/internal/platform/config"
)

var rootCmd = &cobra.Command{
	Use:           "kpiconsole",
	Short:         "KPI console",
	Long:          `Performance transmissions, validation and payout dashboards.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig reads and validates the environment, then installs the logger.
func loadConfig() (config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, fmt.Errorf("invalid config: %w", err)
	}
	slog.SetDefault(server.NewLogger(cfg, os.Stdout))
	return cfg, nil
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(snapshotCmd)
	rootCmd.AddCommand(reportCmd)
}
