package cmd

import (
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var logLevel string

var rootCmd = &cobra.Command{
	Use:   "navsim",
	Short: "Daily NAV simulator for rolling futures strategies",
	Long: `Navsim simulates the daily mark-to-market evolution of rolling futures
positions under sustained long or short exposure.

It provides tools for:
  - Backtesting buy-and-hold / sell-and-hold futures strategies
  - Contract resolution and rollover over expiry chains
  - Multi-currency cash accounting with margin enforcement
  - Execution and NAV journaling to SQLite, CSV or Parquet`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		setupLogging(logLevel)
	},
}

// Execute adds all child commands to the root command and sets flags
// appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
}

func setupLogging(level string) {
	var slevel slog.Level
	switch strings.ToLower(level) {
	case "debug":
		slevel = slog.LevelDebug
	case "warn":
		slevel = slog.LevelWarn
	case "error":
		slevel = slog.LevelError
	default:
		slevel = slog.LevelInfo
	}
	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slevel})
	slog.SetDefault(slog.New(handler))
}
