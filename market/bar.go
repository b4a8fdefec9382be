package market

import (
	"fmt"
	"time"
)

// Bar is one OHLCV sample for a fixed interval. Bars are immutable once
// ingested into a Series.
type Bar struct {
	Instrument string
	Time       time.Time
	Open       float64
	High       float64
	Low        float64
	Close      float64
	Volume     float64
}

// Mid returns the midpoint of the bar's range.
func (b Bar) Mid() float64 {
	return (b.High + b.Low) / 2
}

// Range returns high minus low.
func (b Bar) Range() float64 {
	return b.High - b.Low
}

// Body returns the absolute open-to-close move.
func (b Bar) Body() float64 {
	body := b.Close - b.Open
	if body < 0 {
		body = -body
	}
	return body
}

// Bullish reports whether the bar closed above its open.
func (b Bar) Bullish() bool {
	return b.Close > b.Open
}

// Validate checks the internal OHLC consistency of a single bar.
func (b Bar) Validate() error {
	if b.Instrument == "" {
		return fmt.Errorf("bar: instrument is required")
	}
	if b.Time.IsZero() {
		return fmt.Errorf("bar %s: zero timestamp", b.Instrument)
	}
	if b.High < b.Low {
		return fmt.Errorf("bar %s@%s: high %.6f below low %.6f",
			b.Instrument, b.Time.Format(time.RFC3339), b.High, b.Low)
	}
	if b.Open > b.High || b.Open < b.Low {
		return fmt.Errorf("bar %s@%s: open %.6f outside [%.6f, %.6f]",
			b.Instrument, b.Time.Format(time.RFC3339), b.Open, b.Low, b.High)
	}
	if b.Close > b.High || b.Close < b.Low {
		return fmt.Errorf("bar %s@%s: close %.6f outside [%.6f, %.6f]",
			b.Instrument, b.Time.Format(time.RFC3339), b.Close, b.Low, b.High)
	}
	if b.Volume < 0 {
		return fmt.Errorf("bar %s@%s: negative volume", b.Instrument, b.Time.Format(time.RFC3339))
	}
	return nil
}
