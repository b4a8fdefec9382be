package strategies

import "github.com/rustyeddy/backsim/market"

// NoopStrategy does nothing.
type NoopStrategy struct{}

func (NoopStrategy) Name() string { return "noop" }

func (NoopStrategy) Reset() {}

func (NoopStrategy) Observe(ctx *Context, bar market.Bar, idx int, history []market.Bar) *Intent {
	return nil
}
