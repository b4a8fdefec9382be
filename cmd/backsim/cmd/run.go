package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rustyeddy/backsim/backtest"
	"github.com/rustyeddy/backsim/config"
	"github.com/rustyeddy/backsim/journal"
	"github.com/rustyeddy/backsim/pkg/id"
	"github.com/rustyeddy/backsim/strategies"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Replay a bar CSV through a strategy",
	Long: `Run replays historical OHLCV bars through the execution simulator.

Supported strategies:
  - noop: does nothing (baseline)
  - open-once: opens a single position on the first bar
  - ema-cross: fast/slow EMA crossover with optional bracket exits

Example:
  backsim run --bars data/eurusd_h1.csv --strategy ema-cross --fast 20 --slow 50`,
	RunE: runSimulation,
}

var (
	runBarsPath   string
	runConfigPath string
	runSeed       int64
	runBalance    float64

	runStrategy   string
	runInstrument string
	runQuantity   float64
	runFast       int
	runSlow       int
	runStopDist   float64
	runRR         float64
)

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runBarsPath, "bars", "b", "", "path to bar CSV (time,instrument,open,high,low,close,volume) (required)")
	runCmd.Flags().StringVarP(&runConfigPath, "config", "c", "", "path to YAML/JSON config")
	runCmd.Flags().Int64Var(&runSeed, "seed", 0, "override the config seed (0 keeps the config value)")
	runCmd.Flags().Float64Var(&runBalance, "balance", 0, "override the starting balance (0 keeps the config value)")

	runCmd.Flags().StringVarP(&runStrategy, "strategy", "s", "noop", "strategy name (noop, open-once, ema-cross)")
	runCmd.Flags().StringVarP(&runInstrument, "instrument", "i", "EUR_USD", "instrument to trade")
	runCmd.Flags().Float64VarP(&runQuantity, "quantity", "q", 1, "order quantity")
	runCmd.Flags().IntVar(&runFast, "fast", 20, "ema-cross: fast EMA period")
	runCmd.Flags().IntVar(&runSlow, "slow", 50, "ema-cross: slow EMA period")
	runCmd.Flags().Float64Var(&runStopDist, "stop-dist", 0, "ema-cross: stop distance in price units (0 disables brackets)")
	runCmd.Flags().Float64Var(&runRR, "rr", 2.0, "ema-cross: take profit as a multiple of the stop distance")

	runCmd.MarkFlagRequired("bars")
}

func runSimulation(cmd *cobra.Command, args []string) error {
	log, err := newLogger()
	if err != nil {
		return err
	}
	defer log.Sync()

	cfg := config.Default()
	if runConfigPath != "" {
		if cfg, err = config.LoadFromFile(runConfigPath); err != nil {
			return err
		}
	}
	if runSeed != 0 {
		cfg.Seed = runSeed
	}
	if runBalance != 0 {
		cfg.Account.Balance = runBalance
	}

	strat, err := strategies.StrategyByName(runStrategy, strategies.Options{
		Instrument: runInstrument,
		Quantity:   runQuantity,
		Fast:       runFast,
		Slow:       runSlow,
		StopDist:   runStopDist,
		RR:         runRR,
	})
	if err != nil {
		return fmt.Errorf("strategy: %w", err)
	}

	series, err := loadBars(runBarsPath, runInstrument)
	if err != nil {
		return fmt.Errorf("bars: %w", err)
	}
	log.Info("bars loaded",
		zap.String("path", runBarsPath),
		zap.String("instrument", runInstrument),
		zap.Int("bars", series.Len()))

	bc := cfg.BacktestConfig()
	bc.Logger = log

	runner := backtest.NewRunner(series, strat, bc)
	res, err := runner.Run(context.Background())
	if err != nil {
		return fmt.Errorf("run: %w", err)
	}

	res.Print(os.Stdout)

	if err := persist(cfg, runner, res); err != nil {
		return fmt.Errorf("journal: %w", err)
	}
	return nil
}

// persist writes the run to the configured journal backend, if any.
func persist(cfg *config.Config, runner *backtest.Runner, res *backtest.Result) error {
	var j journal.Journal
	var err error

	switch cfg.Journal.Type {
	case "", "none":
		return nil
	case "csv":
		j, err = journal.NewCSV(cfg.Journal.Dir)
	case "sqlite":
		j, err = journal.NewSQLite(cfg.Journal.DBPath)
	}
	if err != nil {
		return err
	}
	defer j.Close()

	for _, f := range runner.Ledger().Fills() {
		if err := j.RecordFill(journal.NewFillRecord(f)); err != nil {
			return err
		}
	}
	for _, ct := range runner.Book().ClosedTrades() {
		if err := j.RecordTrade(journal.NewTradeRecord(ct)); err != nil {
			return err
		}
	}
	for _, p := range res.EquityCurve {
		if err := j.RecordEquity(journal.EquitySnapshot{
			Time:    p.Time,
			Balance: p.Balance,
			Equity:  p.Equity,
		}); err != nil {
			return err
		}
	}

	runID := id.NewGenerator(cfg.Seed).Next(res.End)
	return j.RecordRun(journal.RunSummary{
		RunID:        runID,
		Created:      time.Now().UTC(),
		Strategy:     runStrategy,
		Instrument:   res.Instrument,
		Seed:         cfg.Seed,
		Start:        res.Start,
		End:          res.End,
		Bars:         res.Bars,
		StartBalance: res.StartBalance,
		EndBalance:   res.EndBalance,
		NetPL:        res.TotalPnL,
		Commission:   res.Commission,
		Trades:       res.TotalTrades,
		Wins:         res.Wins,
		Losses:       res.Losses,
		WinRate:      res.WinRate,
		ProfitFactor: res.ProfitFactor,
		MaxDrawdown:  res.MaxDrawdown,
	})
}
