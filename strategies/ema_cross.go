package strategies

import (
	"github.com/rustyeddy/backsim/indicators"
	"github.com/rustyeddy/backsim/market"
)

// EMACross trades a single instrument on a fast/slow EMA crossover.
// - Enters only on a cross.
// - Reverses on the opposite cross.
// - Attaches a stop at StopDistance from the close and a take-profit at
//   RR times the stop distance.
type EMACross struct {
	*EMACrossConfig

	fast *indicators.ExponentialMA
	slow *indicators.ExponentialMA

	lastDiff     float64
	haveLastDiff bool
}

type EMACrossConfig struct {
	Instrument string `json:"instrument" yaml:"instrument"`
	FastPeriod int    `json:"fast-period" yaml:"fast-period"`
	SlowPeriod int    `json:"slow-period" yaml:"slow-period"`

	Quantity     float64 `json:"quantity" yaml:"quantity"`
	StopDistance float64 `json:"stop-distance" yaml:"stop-distance"` // price units from entry, 0 disables the bracket
	RR           float64 `json:"risk-reward" yaml:"risk-reward"`     // take-profit multiple of the stop distance
}

func EMACrossConfigDefaults() *EMACrossConfig {
	return &EMACrossConfig{
		Instrument: "EUR_USD",
		FastPeriod: 10,
		SlowPeriod: 30,
		Quantity:   1,
		RR:         2.0,
	}
}

func NewEMACross(cfg *EMACrossConfig) *EMACross {
	if cfg.FastPeriod <= 0 {
		cfg.FastPeriod = 10
	}
	if cfg.SlowPeriod <= 0 {
		cfg.SlowPeriod = 30
	}
	if cfg.Quantity <= 0 {
		cfg.Quantity = 1
	}
	if cfg.RR <= 0 {
		cfg.RR = 2.0
	}

	return &EMACross{
		EMACrossConfig: cfg,
		fast:           indicators.NewEMA(cfg.FastPeriod),
		slow:           indicators.NewEMA(cfg.SlowPeriod),
	}
}

func (s *EMACross) Name() string { return "ema-cross" }

func (s *EMACross) Reset() {
	s.fast.Reset()
	s.slow.Reset()
	s.lastDiff = 0
	s.haveLastDiff = false
}

func (s *EMACross) Observe(ctx *Context, bar market.Bar, idx int, history []market.Bar) *Intent {
	if bar.Instrument != s.Instrument {
		return nil
	}

	s.fast.Update(bar)
	s.slow.Update(bar)
	if !s.fast.Ready() || !s.slow.Ready() {
		return nil
	}

	diff := s.fast.Value() - s.slow.Value()

	// A cross needs a previous diff on the other side of zero.
	if !s.haveLastDiff {
		s.lastDiff = diff
		s.haveLastDiff = true
		return nil
	}

	bullCross := diff > 0 && s.lastDiff <= 0
	bearCross := diff < 0 && s.lastDiff >= 0
	s.lastDiff = diff

	switch {
	case bullCross:
		return s.signal(ctx, bar, +1, "BullCross")
	case bearCross:
		return s.signal(ctx, bar, -1, "BearCross")
	default:
		return nil
	}
}

func (s *EMACross) signal(ctx *Context, bar market.Bar, dir int, reason string) *Intent {
	entry := bar.Close
	intent := &Intent{
		Quantity:   s.Quantity,
		LimitPrice: &entry,
		Reason:     reason,
	}
	if s.StopDistance > 0 {
		stop := bar.Close - float64(dir)*s.StopDistance
		take := bar.Close + float64(dir)*s.StopDistance*s.RR
		intent.StopLoss = &stop
		intent.TakeProfit = &take
	}

	switch {
	case ctx.Flat():
		if dir > 0 {
			intent.Kind = EnterLong
		} else {
			intent.Kind = EnterShort
		}
	case dir > 0 && ctx.PositionSide > 0, dir < 0 && ctx.PositionSide < 0:
		// Already positioned with the cross.
		return nil
	default:
		intent.Kind = Reverse
	}
	return intent
}
