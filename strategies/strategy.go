// Package strategies defines the strategy surface of the simulator: a
// strategy observes closed bars and emits position intents, which the
// execution router turns into orders.
package strategies

import (
	"fmt"
	"strings"

	"github.com/rustyeddy/backsim/ledger"
	"github.com/rustyeddy/backsim/market"
)

// IntentKind is the high-level action a strategy asks for.
type IntentKind int

const (
	Hold IntentKind = iota
	EnterLong
	EnterShort
	Exit
	Reverse
)

func (k IntentKind) String() string {
	switch k {
	case Hold:
		return "hold"
	case EnterLong:
		return "enter-long"
	case EnterShort:
		return "enter-short"
	case Exit:
		return "exit"
	case Reverse:
		return "reverse"
	default:
		return fmt.Sprintf("IntentKind(%d)", int(k))
	}
}

// Intent is a position-level request. Quantity applies to entries and
// reversals; StopLoss and TakeProfit, when set, become a linked bracket
// around the entry. LimitPrice is the entry price used when the router is
// configured for limit entries; market-order routing ignores it.
type Intent struct {
	Kind       IntentKind
	Quantity   float64
	LimitPrice *float64
	StopLoss   *float64
	TakeProfit *float64
	Reason     string
}

// Context is the account view a strategy sees each bar. It carries plain
// values so strategies never reach into the ledger or portfolio directly.
type Context struct {
	Instrument       string
	PositionSide     ledger.Side
	PositionQuantity float64 // 0 when flat
	Equity           float64
}

// Flat reports whether the account holds no position in the instrument.
func (c *Context) Flat() bool {
	return c.PositionQuantity == 0
}

// Strategy is the minimal interface a backtest strategy must implement.
// Observe is called once per closed bar, in order; a nil intent means hold.
type Strategy interface {
	Name() string
	Reset()
	Observe(ctx *Context, bar market.Bar, idx int, history []market.Bar) *Intent
}

var registry = make(map[string]Strategy)

func Register(name string, strat Strategy) {
	registry[name] = strat
}

func GetStrategy(name string) Strategy {
	return registry[name]
}

// Options carries the flag-level knobs shared by the built-in strategies.
type Options struct {
	Instrument string
	Quantity   float64
	Fast       int
	Slow       int
	StopDist   float64
	RR         float64
}

// StrategyByName builds one of the built-in strategies from options.
func StrategyByName(name string, opts Options) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "noop", "none":
		return NoopStrategy{}, nil

	case "open-once":
		return &OpenOnceStrategy{
			Instrument: opts.Instrument,
			Quantity:   opts.Quantity,
		}, nil

	case "ema-cross", "emacross":
		cfg := &EMACrossConfig{
			Instrument:   opts.Instrument,
			Quantity:     opts.Quantity,
			FastPeriod:   opts.Fast,
			SlowPeriod:   opts.Slow,
			StopDistance: opts.StopDist,
			RR:           opts.RR,
		}
		return NewEMACross(cfg), nil

	default:
		return nil, fmt.Errorf("unknown strategy %q (supported: noop, open-once, ema-cross)", name)
	}
}
