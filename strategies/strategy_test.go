package strategies

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/backsim/ledger"
	"github.com/rustyeddy/backsim/market"
)

func bar(i int, close float64) market.Bar {
	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	return market.Bar{
		Instrument: "EUR_USD",
		Time:       base.Add(time.Duration(i) * time.Hour),
		Open:       close,
		High:       close + 1,
		Low:        close - 1,
		Close:      close,
		Volume:     100,
	}
}

func TestNoopStrategy(t *testing.T) {
	strat := NoopStrategy{}
	assert.Equal(t, "noop", strat.Name())
	assert.Nil(t, strat.Observe(&Context{}, bar(0, 100), 0, nil))
}

func TestOpenOnce(t *testing.T) {
	strat := &OpenOnceStrategy{Instrument: "EUR_USD", Quantity: 5}

	intent := strat.Observe(&Context{}, bar(0, 100), 0, nil)
	require.NotNil(t, intent)
	assert.Equal(t, EnterLong, intent.Kind)
	assert.Equal(t, 5.0, intent.Quantity)

	// Fires exactly once.
	assert.Nil(t, strat.Observe(&Context{}, bar(1, 101), 1, nil))

	strat.Reset()
	assert.NotNil(t, strat.Observe(&Context{}, bar(2, 102), 2, nil))
}

func TestOpenOnceIgnoresOtherInstruments(t *testing.T) {
	strat := &OpenOnceStrategy{Instrument: "GBP_USD", Quantity: 5}
	assert.Nil(t, strat.Observe(&Context{}, bar(0, 100), 0, nil))
}

func TestEMACrossSignals(t *testing.T) {
	strat := NewEMACross(&EMACrossConfig{
		Instrument:   "EUR_USD",
		FastPeriod:   2,
		SlowPeriod:   4,
		Quantity:     3,
		StopDistance: 2,
		RR:           2,
	})

	ctx := &Context{Instrument: "EUR_USD"}

	// Falling closes warm up the EMAs with the fast one below the slow one.
	closes := []float64{110, 108, 106, 104, 102}
	i := 0
	for _, c := range closes {
		assert.Nil(t, strat.Observe(ctx, bar(i, c), i, nil))
		i++
	}

	// A strong rally pushes the fast EMA over the slow one.
	var intent *Intent
	for _, c := range []float64{112, 120} {
		intent = strat.Observe(ctx, bar(i, c), i, nil)
		i++
		if intent != nil {
			break
		}
	}
	require.NotNil(t, intent)
	assert.Equal(t, EnterLong, intent.Kind)
	assert.Equal(t, 3.0, intent.Quantity)
	require.NotNil(t, intent.StopLoss)
	require.NotNil(t, intent.TakeProfit)
	// Stop is 2 below the signal close, take-profit 4 above it.
	assert.InDelta(t, 6.0, *intent.TakeProfit-*intent.StopLoss, 1e-9)

	// Long already, more strength is a hold.
	ctx.PositionSide = ledger.Buy
	ctx.PositionQuantity = 3
	assert.Nil(t, strat.Observe(ctx, bar(i, 125), i, nil))
	i++

	// A collapse through the slow EMA asks for a reversal.
	var rev *Intent
	for _, c := range []float64{100, 80, 60} {
		rev = strat.Observe(ctx, bar(i, c), i, nil)
		i++
		if rev != nil {
			break
		}
	}
	require.NotNil(t, rev)
	assert.Equal(t, Reverse, rev.Kind)
}

func TestRegistry(t *testing.T) {
	Register("test-noop", NoopStrategy{})
	assert.NotNil(t, GetStrategy("test-noop"))
	assert.Nil(t, GetStrategy("missing"))
}

func TestStrategyByName(t *testing.T) {
	opts := Options{Instrument: "EUR_USD", Quantity: 1, Fast: 5, Slow: 20}

	for _, name := range []string{"noop", "open-once", "ema-cross", " EMA-Cross "} {
		s, err := StrategyByName(name, opts)
		require.NoError(t, err)
		assert.NotNil(t, s)
	}

	_, err := StrategyByName("bogus", opts)
	assert.Error(t, err)
}
