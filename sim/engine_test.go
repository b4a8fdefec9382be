package sim

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/backsim/ledger"
	"github.com/rustyeddy/backsim/market"
	"github.com/rustyeddy/backsim/pkg/id"
	"github.com/rustyeddy/backsim/synth"
)

var barTime = time.Date(2024, 1, 2, 9, 0, 0, 0, time.UTC)

func ptr(v float64) *float64 { return &v }

func testBar(o, h, l, c, vol float64) market.Bar {
	return market.Bar{
		Instrument: "EUR_USD",
		Time:       barTime,
		Open:       o,
		High:       h,
		Low:        l,
		Close:      c,
		Volume:     vol,
	}
}

// harness bundles an engine and ledger sharing one seeded rng, the way the
// simulation loop wires them.
type harness struct {
	engine *Engine
	ledger *ledger.Ledger
}

func newHarness(t *testing.T, settings Settings, seed int64) *harness {
	t.Helper()
	rng := rand.New(rand.NewSource(seed))
	sy := synth.NewSynthesizer(synth.DefaultConfig(), rng)
	return &harness{
		engine: NewEngine(settings, sy, rng),
		ledger: ledger.New(id.NewGenerator(seed)),
	}
}

func (h *harness) submit(t *testing.T, o *ledger.Order) *ledger.Order {
	t.Helper()
	require.NoError(t, h.ledger.Submit(o, barTime.Add(-time.Minute)))
	return o
}

func TestScenarioLimitBuyFillsAtLimitOrBetter(t *testing.T) {
	// Bar low 95 crosses a 101 buy limit; with slippage disabled the fill
	// must be at 101 or better.
	h := newHarness(t, DefaultSettings(), 1)
	o := h.submit(t, &ledger.Order{
		Instrument: "EUR_USD", Side: ledger.Buy, Type: ledger.Limit,
		Quantity: 10, LimitPrice: ptr(101),
	})

	rep, err := h.engine.ProcessBar(testBar(100, 105, 95, 102, 500), h.ledger.Pending(""))
	require.NoError(t, err)
	require.NotEmpty(t, rep.Fills)

	f := rep.Fills[0]
	assert.Equal(t, o.ID, f.OrderID)
	assert.LessOrEqual(t, f.Price, 101.0)
	assert.InDelta(t, 10, f.Quantity, 1e-9)
	assert.True(t, f.IsComplete)
	assert.Zero(t, f.Slippage)
}

func TestScenarioStopSellTriggers(t *testing.T) {
	// Low 96 breaches a 97 sell stop; the fill must be at or below 97.
	h := newHarness(t, DefaultSettings(), 1)
	h.submit(t, &ledger.Order{
		Instrument: "EUR_USD", Side: ledger.Sell, Type: ledger.Stop,
		Quantity: 5, StopPrice: ptr(97),
	})

	rep, err := h.engine.ProcessBar(testBar(100, 101, 96, 98, 500), h.ledger.Pending(""))
	require.NoError(t, err)
	require.NotEmpty(t, rep.Fills)

	f := rep.Fills[0]
	assert.LessOrEqual(t, f.Price, 97.0)
	assert.Equal(t, ledger.ReasonStopTrigger, f.Reason)
}

func TestScenarioVolumeImpactCapsFirstTick(t *testing.T) {
	settings := DefaultSettings()
	settings.AllowPartialFills = true
	settings.VolumeImpactThreshold = 0.05

	h := newHarness(t, settings, 1)
	h.submit(t, &ledger.Order{
		Instrument: "EUR_USD", Side: ledger.Buy, Type: ledger.Market, Quantity: 10,
	})

	rep, err := h.engine.ProcessBar(testBar(100, 110, 99, 108, 50), h.ledger.Pending(""))
	require.NoError(t, err)
	require.NotEmpty(t, rep.Fills)

	first := rep.Fills[0]
	assert.Less(t, first.Quantity, 10.0, "oversized order must not fill in one tick")
	assert.False(t, first.IsComplete)
	assert.Equal(t, ledger.ReasonPartial, first.Reason)

	// The remainder fills on later ticks (or stays pending for later bars).
	var total float64
	for _, f := range rep.Fills {
		total += f.Quantity
	}
	assert.LessOrEqual(t, total, 10.0+1e-9)
	assert.Greater(t, len(rep.Fills), 1)
}

func TestMarketFillsOnFirstTick(t *testing.T) {
	h := newHarness(t, DefaultSettings(), 1)
	h.submit(t, &ledger.Order{
		Instrument: "EUR_USD", Side: ledger.Buy, Type: ledger.Market, Quantity: 1,
	})

	bar := testBar(100, 110, 99, 108, 500)
	rep, err := h.engine.ProcessBar(bar, h.ledger.Pending(""))
	require.NoError(t, err)
	require.Len(t, rep.Fills, 1)
	assert.InDelta(t, bar.Open, rep.Fills[0].Price, 1e-9)
	assert.Equal(t, ledger.ReasonMarket, rep.Fills[0].Reason)
}

func TestLimitNotTouchedNoFill(t *testing.T) {
	h := newHarness(t, DefaultSettings(), 1)
	h.submit(t, &ledger.Order{
		Instrument: "EUR_USD", Side: ledger.Buy, Type: ledger.Limit,
		Quantity: 1, LimitPrice: ptr(90), // below the bar's low
	})

	rep, err := h.engine.ProcessBar(testBar(100, 110, 99, 108, 500), h.ledger.Pending(""))
	require.NoError(t, err)
	assert.Empty(t, rep.Fills)
}

func TestStopLimitRequiresTriggerThenLimit(t *testing.T) {
	// Buy stop-limit: stop 105 arms on the way up, limit 106 still allows
	// the fill on the same or later ticks.
	h := newHarness(t, DefaultSettings(), 1)
	o := h.submit(t, &ledger.Order{
		Instrument: "EUR_USD", Side: ledger.Buy, Type: ledger.StopLimit,
		Quantity: 2, StopPrice: ptr(105), LimitPrice: ptr(106),
	})

	rep, err := h.engine.ProcessBar(testBar(100, 110, 99, 108, 500), h.ledger.Pending(""))
	require.NoError(t, err)

	require.NotEmpty(t, rep.Fills)
	f := rep.Fills[0]
	assert.Equal(t, o.ID, f.OrderID)
	assert.LessOrEqual(t, f.Price, 106.0)
	assert.Contains(t, rep.Triggered, o.ID)
}

func TestStopLimitTriggersWithoutFillReportsTriggered(t *testing.T) {
	// Stop fires but the limit is never touched afterwards: no fill, the
	// armed state is reported so it persists into the next bar.
	h := newHarness(t, DefaultSettings(), 1)
	o := h.submit(t, &ledger.Order{
		Instrument: "EUR_USD", Side: ledger.Buy, Type: ledger.StopLimit,
		Quantity: 2, StopPrice: ptr(105), LimitPrice: ptr(90),
	})

	rep, err := h.engine.ProcessBar(testBar(100, 110, 99, 108, 500), h.ledger.Pending(""))
	require.NoError(t, err)
	assert.Empty(t, rep.Fills)
	assert.Contains(t, rep.Triggered, o.ID)
}

func TestAdverseSlippageDirection(t *testing.T) {
	settings := DefaultSettings()
	settings.Slippage = SlippageSettings{
		Enabled: true,
		Kind:    SlippagePercentage,
		Value:   10, // 10 bps
	}

	h := newHarness(t, settings, 1)
	h.submit(t, &ledger.Order{Instrument: "EUR_USD", Side: ledger.Buy, Type: ledger.Market, Quantity: 1})
	h.submit(t, &ledger.Order{Instrument: "EUR_USD", Side: ledger.Sell, Type: ledger.Market, Quantity: 1})

	bar := testBar(100, 110, 99, 108, 500)
	rep, err := h.engine.ProcessBar(bar, h.ledger.Pending(""))
	require.NoError(t, err)
	require.Len(t, rep.Fills, 2)

	buy, sell := rep.Fills[0], rep.Fills[1]
	if buy.Side != ledger.Buy {
		buy, sell = sell, buy
	}
	assert.Greater(t, buy.Price, bar.Open, "buyer pays more")
	assert.Greater(t, buy.Slippage, 0.0)
	assert.Less(t, sell.Price, bar.Open, "seller receives less")
	assert.Less(t, sell.Slippage, 0.0)
}

func TestLimitSlippageNeverCrossesLimit(t *testing.T) {
	settings := DefaultSettings()
	settings.Slippage = SlippageSettings{
		Enabled:         true,
		Kind:            SlippageFixed,
		Value:           0.5,
		AggressiveValue: 50, // absurdly large: must be capped at the limit
	}

	h := newHarness(t, settings, 1)
	h.submit(t, &ledger.Order{
		Instrument: "EUR_USD", Side: ledger.Buy, Type: ledger.Limit,
		Quantity: 1, LimitPrice: ptr(101),
	})

	rep, err := h.engine.ProcessBar(testBar(100, 105, 95, 102, 500), h.ledger.Pending(""))
	require.NoError(t, err)
	require.NotEmpty(t, rep.Fills)
	assert.LessOrEqual(t, rep.Fills[0].Price, 101.0)
}

func TestLatencyOffsetsTimestampOnly(t *testing.T) {
	settings := DefaultSettings()
	settings.Latency = LatencySettings{Mean: 250 * time.Millisecond}

	h := newHarness(t, settings, 1)
	h.submit(t, &ledger.Order{Instrument: "EUR_USD", Side: ledger.Buy, Type: ledger.Market, Quantity: 1})

	rep, err := h.engine.ProcessBar(testBar(100, 110, 99, 108, 500), h.ledger.Pending(""))
	require.NoError(t, err)
	require.Len(t, rep.Fills, 1)

	f := rep.Fills[0]
	assert.Equal(t, 250*time.Millisecond, f.Latency)
	assert.Equal(t, barTime.Add(250*time.Millisecond), f.Time)
	assert.InDelta(t, 100.0, f.Price, 1e-9, "latency must not change the matched price")
}

func TestTimeInForceExpiry(t *testing.T) {
	settings := DefaultSettings()
	settings.TimeInForce = 30 * time.Minute

	h := newHarness(t, settings, 1)
	o := h.submit(t, &ledger.Order{
		Instrument: "EUR_USD", Side: ledger.Buy, Type: ledger.Limit,
		Quantity: 1, LimitPrice: ptr(90), // never touched
	})

	rep, err := h.engine.ProcessBar(testBar(100, 110, 99, 108, 500), h.ledger.Pending(""))
	require.NoError(t, err)

	require.Len(t, rep.Cancellations, 1)
	assert.Equal(t, o.ID, rep.Cancellations[0].OrderID)
	assert.Equal(t, "expired", rep.Cancellations[0].Reason)
	assert.Equal(t, 1, rep.Stats.Expired)
}

func TestPriorityOrderingWithinTick(t *testing.T) {
	settings := DefaultSettings()
	settings.Priority = PriorityAggressiveness

	h := newHarness(t, settings, 1)
	// Submitted in this order; the market order must still fill first under
	// aggressiveness priority.
	passive := h.submit(t, &ledger.Order{
		Instrument: "EUR_USD", Side: ledger.Buy, Type: ledger.Limit,
		Quantity: 1, LimitPrice: ptr(104),
	})
	aggressive := h.submit(t, &ledger.Order{
		Instrument: "EUR_USD", Side: ledger.Buy, Type: ledger.Market, Quantity: 1,
	})

	rep, err := h.engine.ProcessBar(testBar(100, 110, 99, 108, 500), h.ledger.Pending(""))
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(rep.Fills), 2)

	assert.Equal(t, aggressive.ID, rep.Fills[0].OrderID)
	assert.Equal(t, passive.ID, rep.Fills[1].OrderID)
}

func TestDeterministicReports(t *testing.T) {
	build := func(seed int64) Report {
		settings := DefaultSettings()
		settings.Slippage = SlippageSettings{Enabled: true, Kind: SlippagePercentage, Value: 5, JitterFrac: 0.5}
		settings.AllowPartialFills = true
		settings.MaxFillFractionPerTick = 0.4

		h := newHarness(t, settings, seed)
		h.submit(t, &ledger.Order{Instrument: "EUR_USD", Side: ledger.Buy, Type: ledger.Market, Quantity: 10})
		h.submit(t, &ledger.Order{Instrument: "EUR_USD", Side: ledger.Sell, Type: ledger.Stop, Quantity: 3, StopPrice: ptr(100)})

		rep, err := h.engine.ProcessBar(testBar(100, 103, 97, 100.4, 300), h.ledger.Pending(""))
		require.NoError(t, err)
		return rep
	}

	assert.Equal(t, build(42), build(42))
}

func TestIgnoresOtherInstruments(t *testing.T) {
	h := newHarness(t, DefaultSettings(), 1)
	other := &ledger.Order{Instrument: "GBP_USD", Side: ledger.Buy, Type: ledger.Market, Quantity: 1}
	require.NoError(t, h.ledger.Submit(other, barTime.Add(-time.Minute)))

	rep, err := h.engine.ProcessBar(testBar(100, 110, 99, 108, 500), h.ledger.Pending(""))
	require.NoError(t, err)
	assert.Empty(t, rep.Fills)
}
