package cmd

import (
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/rustyeddy/backsim/pkg/logging"
)

var rootCmd = &cobra.Command{
	Use:   "backsim",
	Short: "A deterministic bar-replay execution simulator",
	Long: `Backsim replays OHLCV bars through a deterministic execution simulator.

It provides tools for:
  - Expanding bars into plausible intra-bar tick paths
  - Matching market, limit, stop and stop-limit orders against those paths
  - Tracking positions, P&L and equity with commission and slippage models
  - Journaling fills, trades and run summaries to CSV or SQLite

Two runs with the same bars, configuration and seed produce identical output.`,
}

var verbose bool

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Optional .env for local overrides; missing file is fine.
	_ = godotenv.Load()

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "human-readable debug logging")
}

func newLogger() (*zap.Logger, error) {
	if verbose {
		return logging.NewDev()
	}
	return logging.New(zapcore.InfoLevel)
}
