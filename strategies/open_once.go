package strategies

import "github.com/rustyeddy/backsim/market"

// OpenOnceStrategy opens a single long position on the first bar of its
// instrument and then holds until the run ends. Useful for exercising the
// fill path end to end.
type OpenOnceStrategy struct {
	Instrument string
	Quantity   float64

	opened bool
}

func (s *OpenOnceStrategy) Name() string { return "open-once" }

func (s *OpenOnceStrategy) Reset() { s.opened = false }

func (s *OpenOnceStrategy) Observe(ctx *Context, bar market.Bar, idx int, history []market.Bar) *Intent {
	if s.opened {
		return nil
	}
	if bar.Instrument != s.Instrument {
		return nil
	}
	if s.Quantity <= 0 {
		return nil
	}

	s.opened = true
	price := bar.Close
	return &Intent{
		Kind:       EnterLong,
		Quantity:   s.Quantity,
		LimitPrice: &price,
		Reason:     "OpenOnce",
	}
}
