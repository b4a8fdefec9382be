// Package indicators provides streaming technical analysis indicators
// driven by closed bars.
package indicators

import "github.com/rustyeddy/backsim/market"

// Indicator computes a single streaming value from bars. Implementations
// are deterministic so repeated runs over the same bars produce identical
// values.
type Indicator interface {
	// Name returns a stable identifier like "EMA(20)" or "ATR(14)".
	Name() string

	// Warmup returns how many updates are needed before Ready() can be true.
	Warmup() int

	// Reset clears all internal state.
	Reset()

	// Update consumes the next closed bar and updates internal state.
	Update(b market.Bar)

	// Ready reports whether Value() is meaningful (warmup completed).
	Ready() bool

	// Value returns the current indicator value, 0 until Ready().
	Value() float64
}
