package ledger

import "time"

// FillReason explains what matched an order against the synthetic path.
type FillReason string

const (
	ReasonMarket      FillReason = "market"
	ReasonLimitTouch  FillReason = "limit-touch"
	ReasonStopTrigger FillReason = "stop-trigger"
	ReasonPartial     FillReason = "partial"
	ReasonGap         FillReason = "gap"
	ReasonEndOfReplay FillReason = "end-of-replay"
)

// Fill is one execution against an order. Fills are append-only history;
// nothing ever mutates a recorded fill.
type Fill struct {
	OrderID    string
	Instrument string
	Side       Side
	TradeID    string
	Role       Role

	Price    float64
	Quantity float64
	Time     time.Time

	// Slippage is the signed adjustment applied to the matched price, in
	// price units: positive means the buyer paid up, negative means the
	// seller gave up.
	Slippage float64

	// Latency offsets the recorded Time relative to the matching tick. It
	// never changes eligibility.
	Latency time.Duration

	Reason     FillReason
	IsComplete bool // false when the order still has remaining quantity
}
