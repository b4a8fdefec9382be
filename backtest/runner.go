// Package backtest drives a full simulation run: it replays a bar series
// through the matching engine, keeps the ledger and portfolio in sync, hands
// bars to the strategy, and produces the run summary.
package backtest

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"go.uber.org/zap"

	"github.com/rustyeddy/backsim/ledger"
	"github.com/rustyeddy/backsim/market"
	"github.com/rustyeddy/backsim/pkg/id"
	"github.com/rustyeddy/backsim/portfolio"
	"github.com/rustyeddy/backsim/router"
	"github.com/rustyeddy/backsim/sim"
	"github.com/rustyeddy/backsim/strategies"
	"github.com/rustyeddy/backsim/synth"
)

// Config collects everything a run needs. The seed drives the only random
// generator in the run; two runs with equal config and bars are identical.
type Config struct {
	Seed           int64
	InitialBalance float64

	Synth      synth.Config
	Sim        sim.Settings
	Commission portfolio.CommissionSchedule
	Router     router.Config

	// ForceCloseEnd flattens any open position at the last bar's close.
	ForceCloseEnd bool

	Logger *zap.Logger
}

// DefaultConfig returns a runnable config with matching defaults.
func DefaultConfig() Config {
	return Config{
		Seed:           1,
		InitialBalance: 10_000,
		Synth:          synth.DefaultConfig(),
		Sim:            sim.DefaultSettings(),
		Router:         router.Config{UseMarketOrders: true},
		ForceCloseEnd:  true,
	}
}

// EquityPoint is one sample of the run's equity curve, taken after each bar.
type EquityPoint struct {
	Time    time.Time
	Balance float64 // initial balance plus realized P&L
	Equity  float64 // balance plus unrealized P&L
}

// Runner executes one strategy over one bar series. It owns every stateful
// collaborator for the run; nothing is shared across runners.
type Runner struct {
	cfg    Config
	series *market.Series
	strat  strategies.Strategy
	log    *zap.Logger

	ledger *ledger.Ledger
	book   *portfolio.Tracker
	engine *sim.Engine
	router *router.Router
}

func NewRunner(series *market.Series, strat strategies.Strategy, cfg Config) *Runner {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Runner{cfg: cfg, series: series, strat: strat, log: log}
}

// Ledger exposes the run's order history after Run returns.
func (r *Runner) Ledger() *ledger.Ledger { return r.ledger }

// Book exposes the run's position tracker after Run returns.
func (r *Runner) Book() *portfolio.Tracker { return r.book }

// Run replays the series bar by bar. Each bar is matched against pending
// orders first, so intents emitted on bar i execute on bar i+1 at the
// earliest.
func (r *Runner) Run(ctx context.Context) (*Result, error) {
	if r.series == nil || r.series.Len() == 0 {
		return nil, fmt.Errorf("backtest: series is empty")
	}
	if r.strat == nil {
		return nil, fmt.Errorf("backtest: strategy is required")
	}

	rng := rand.New(rand.NewSource(r.cfg.Seed))
	gen := id.NewGenerator(r.cfg.Seed)

	r.ledger = ledger.New(gen)
	r.book = portfolio.NewTracker(r.cfg.Commission)
	r.engine = sim.NewEngine(r.cfg.Sim, synth.NewSynthesizer(r.cfg.Synth, rng), rng)
	r.router = router.New(r.cfg.Router, r.ledger, r.book, gen)
	r.strat.Reset()

	instrument := r.series.Instrument()
	bars := r.series.Bars()

	curve := make([]EquityPoint, 0, len(bars))
	peak := r.cfg.InitialBalance
	maxDD := 0.0
	stats := sim.Stats{}

	for i, bar := range bars {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		report, err := r.engine.ProcessBar(bar, r.ledger.Pending(instrument))
		if err != nil {
			return nil, err
		}
		accumulate(&stats, report.Stats)

		if err := r.applyReport(report, bar.Time); err != nil {
			return nil, err
		}

		r.book.MarkToMarket(instrument, bar.Close)

		intent := r.strat.Observe(r.strategyContext(instrument), bar, i, bars[:i+1])
		if err := r.router.HandleIntent(intent, instrument, bar.Time); err != nil {
			if errors.Is(err, router.ErrRiskRejected) {
				r.log.Warn("intent rejected",
					zap.String("instrument", instrument),
					zap.Time("bar", bar.Time),
					zap.Error(err))
			} else {
				return nil, err
			}
		}

		if r.cfg.ForceCloseEnd && i == len(bars)-1 {
			if err := r.forceClose(bar); err != nil {
				return nil, err
			}
			r.book.MarkToMarket(instrument, bar.Close)
		}

		balance := r.cfg.InitialBalance + r.book.TotalRealized()
		equity := balance + r.book.TotalUnrealized()
		curve = append(curve, EquityPoint{Time: bar.Time, Balance: balance, Equity: equity})

		if equity > peak {
			peak = equity
		} else if peak > 0 {
			if dd := (peak - equity) / peak; dd > maxDD {
				maxDD = dd
			}
		}
	}

	res := r.summarize(bars, curve, maxDD, stats)
	r.log.Info("run complete",
		zap.String("instrument", instrument),
		zap.Int("bars", len(bars)),
		zap.Int("trades", res.TotalTrades),
		zap.Float64("pnl", res.TotalPnL))
	return res, nil
}

// applyReport pushes one bar's matching outcome through the ledger, the
// portfolio, and the router's fill and cancel hooks, in report order.
func (r *Runner) applyReport(report sim.Report, now time.Time) error {
	for _, f := range report.Fills {
		o, err := r.ledger.ApplyFill(f)
		if err != nil {
			return err
		}

		_, commission, err := r.book.ApplyFill(f)
		if err != nil {
			return err
		}
		if commission != 0 {
			if err := r.ledger.AccrueCommission(f.OrderID, commission); err != nil {
				return err
			}
		}

		if err := r.router.OnFill(f, o); err != nil {
			if errors.Is(err, router.ErrRiskRejected) {
				r.log.Warn("reversal entry rejected", zap.Error(err))
				continue
			}
			return err
		}
	}

	for _, c := range report.Cancellations {
		o, err := r.ledger.Get(c.OrderID)
		if err != nil {
			return err
		}
		if o.Status.Terminal() {
			continue
		}
		if c.Reason == "expired" {
			err = r.ledger.Expire(c.OrderID)
		} else {
			err = r.ledger.Cancel(c.OrderID, c.Reason)
		}
		if err != nil {
			return err
		}
		if err := r.router.OnCancel(o, now); err != nil {
			return err
		}
	}

	for _, oid := range report.Triggered {
		o, err := r.ledger.Get(oid)
		if err != nil {
			return err
		}
		if o.Status.Terminal() || o.Triggered {
			continue
		}
		if err := r.ledger.MarkTriggered(oid); err != nil {
			return err
		}
	}
	return nil
}

func (r *Runner) strategyContext(instrument string) *strategies.Context {
	ctx := &strategies.Context{
		Instrument: instrument,
		Equity:     r.cfg.InitialBalance + r.book.TotalRealized() + r.book.TotalUnrealized(),
	}
	if pos := r.book.Position(instrument); !pos.Flat() {
		ctx.PositionSide = pos.Side
		ctx.PositionQuantity = pos.Quantity
	}
	return ctx
}

// forceClose cancels every working order and flattens the position at the
// final bar's close.
func (r *Runner) forceClose(last market.Bar) error {
	for _, o := range r.ledger.Pending(last.Instrument) {
		if o.Status.Terminal() {
			continue
		}
		if err := r.ledger.Cancel(o.ID, "end of replay"); err != nil {
			return err
		}
	}

	pos := r.book.Position(last.Instrument)
	if pos.Flat() {
		return nil
	}

	o := &ledger.Order{
		Instrument: last.Instrument,
		Side:       pos.Side.Opposite(),
		Type:       ledger.Market,
		Quantity:   pos.Quantity,
		Role:       ledger.RoleExit,
	}
	if err := r.ledger.Submit(o, last.Time); err != nil {
		return err
	}

	f := ledger.Fill{
		OrderID:    o.ID,
		Instrument: o.Instrument,
		Side:       o.Side,
		Role:       o.Role,
		Price:      last.Close,
		Quantity:   o.Quantity,
		Time:       last.Time,
		Reason:     ledger.ReasonEndOfReplay,
		IsComplete: true,
	}
	if _, err := r.ledger.ApplyFill(f); err != nil {
		return err
	}
	_, commission, err := r.book.ApplyFill(f)
	if err != nil {
		return err
	}
	if commission != 0 {
		return r.ledger.AccrueCommission(o.ID, commission)
	}
	return nil
}

func accumulate(total *sim.Stats, s sim.Stats) {
	total.Ticks += s.Ticks
	total.Evaluations += s.Evaluations
	total.Fills += s.Fills
	total.PartialFills += s.PartialFills
	total.Expired += s.Expired
}
