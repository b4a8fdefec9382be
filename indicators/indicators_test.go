package indicators

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/rustyeddy/backsim/market"
)

func testBars() []market.Bar {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	return []market.Bar{
		{Instrument: "EUR_USD", Time: base, Open: 100, High: 105, Low: 99, Close: 102, Volume: 1000},
		{Instrument: "EUR_USD", Time: base.Add(time.Hour), Open: 102, High: 107, Low: 101, Close: 105, Volume: 1100},
		{Instrument: "EUR_USD", Time: base.Add(2 * time.Hour), Open: 105, High: 108, Low: 104, Close: 106, Volume: 1200},
		{Instrument: "EUR_USD", Time: base.Add(3 * time.Hour), Open: 106, High: 110, Low: 105, Close: 108, Volume: 1300},
		{Instrument: "EUR_USD", Time: base.Add(4 * time.Hour), Open: 108, High: 112, Low: 107, Close: 110, Volume: 1400},
	}
}

func TestSimpleMA(t *testing.T) {
	bars := testBars()

	t.Run("sliding window", func(t *testing.T) {
		ma := NewMA(3)
		assert.Equal(t, "MA(3)", ma.Name())
		assert.Equal(t, 3, ma.Warmup())
		assert.False(t, ma.Ready())
		assert.Equal(t, 0.0, ma.Value())

		ma.Update(bars[0])
		ma.Update(bars[1])
		assert.False(t, ma.Ready())

		ma.Update(bars[2])
		assert.True(t, ma.Ready())
		assert.InDelta(t, (102.0+105.0+106.0)/3.0, ma.Value(), 1e-9)

		ma.Update(bars[3])
		assert.InDelta(t, (105.0+106.0+108.0)/3.0, ma.Value(), 1e-9)
	})

	t.Run("reset", func(t *testing.T) {
		ma := NewMA(2)
		ma.Update(bars[0])
		ma.Update(bars[1])
		assert.True(t, ma.Ready())

		ma.Reset()
		assert.False(t, ma.Ready())
		assert.Equal(t, 0.0, ma.Value())
	})
}

func TestExponentialMA(t *testing.T) {
	bars := testBars()

	ema := NewEMA(3)
	assert.Equal(t, "EMA(3)", ema.Name())
	assert.Equal(t, 3, ema.Warmup())

	ema.Update(bars[0])
	ema.Update(bars[1])
	assert.False(t, ema.Ready())

	// Seeds with the SMA of the first three closes.
	ema.Update(bars[2])
	assert.True(t, ema.Ready())
	seed := (102.0 + 105.0 + 106.0) / 3.0
	assert.InDelta(t, seed, ema.Value(), 1e-9)

	// Then applies the standard recurrence.
	k := 2.0 / 4.0
	ema.Update(bars[3])
	want := (108.0-seed)*k + seed
	assert.InDelta(t, want, ema.Value(), 1e-9)

	ema.Update(bars[4])
	want = (110.0-want)*k + want
	assert.InDelta(t, want, ema.Value(), 1e-9)
}

func TestATR(t *testing.T) {
	bars := testBars()

	atr := NewATR(3)
	assert.Equal(t, "ATR(3)", atr.Name())
	assert.Equal(t, 4, atr.Warmup())

	// First bar only records the previous close.
	atr.Update(bars[0])
	assert.False(t, atr.Ready())

	atr.Update(bars[1])
	atr.Update(bars[2])
	assert.False(t, atr.Ready())

	atr.Update(bars[3])
	assert.True(t, atr.Ready())

	// TRs: max(6, |107-102|, |101-102|)=6, max(4, 3, 1)=4, max(5, 4, 1)=5
	seed := (6.0 + 4.0 + 5.0) / 3.0
	assert.InDelta(t, seed, atr.Value(), 1e-9)

	// Wilder smoothing: TR = max(5, |112-108|, |107-108|) = 5
	atr.Update(bars[4])
	want := (seed*2 + 5.0) / 3.0
	assert.InDelta(t, want, atr.Value(), 1e-9)
}

func TestATRReset(t *testing.T) {
	bars := testBars()
	atr := NewATR(2)
	for _, b := range bars {
		atr.Update(b)
	}
	assert.True(t, atr.Ready())

	atr.Reset()
	assert.False(t, atr.Ready())
	assert.Equal(t, 0.0, atr.Value())
}

func TestIndicatorInterface(t *testing.T) {
	for _, ind := range []Indicator{NewMA(5), NewEMA(5), NewATR(5)} {
		assert.NotEmpty(t, ind.Name())
		assert.False(t, ind.Ready())
	}
}
