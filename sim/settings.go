package sim

import "time"

// SlippageKind selects how the base slippage value is interpreted.
type SlippageKind string

const (
	// SlippageFixed treats Value as an absolute price offset.
	SlippageFixed SlippageKind = "fixed"
	// SlippagePercentage treats Value as basis points of the matched price.
	SlippagePercentage SlippageKind = "percentage"
	// SlippageVolumeBased scales the basis-point Value by the order's share
	// of the bar's volume.
	SlippageVolumeBased SlippageKind = "volume-based"
)

// SlippageSettings controls the adverse price adjustment on fills.
//
// Market and stop fills always pay the full adjustment against the order's
// side. Limit fills only pay the (smaller) aggressive value, and only when
// the tick improves on the limit price; the fill never goes through the
// limit.
type SlippageSettings struct {
	Enabled         bool
	Kind            SlippageKind
	Value           float64 // price units (fixed) or bps (percentage, volume-based)
	JitterFrac      float64 // bounded variance, e.g. 0.2 = +/-20% of Value
	AggressiveValue float64 // same units as Value, for improving limit fills
}

// LatencySettings model simulated submission-to-fill delay. Latency only
// offsets the recorded fill timestamp; it never changes eligibility.
type LatencySettings struct {
	Mean   time.Duration
	Jitter time.Duration // bounded symmetric
}

// PriorityMode selects the primary key when ordering eligible orders within
// a tick. Submission order is always the final tie-break.
type PriorityMode uint8

const (
	PrioritySubmission PriorityMode = iota
	PriorityAggressiveness
	PrioritySize
)

// Settings is the matching engine configuration.
type Settings struct {
	Slippage SlippageSettings
	Latency  LatencySettings

	// Partial fills. When disabled every fill takes the order's full
	// remaining quantity.
	AllowPartialFills      bool
	MaxFillFractionPerTick float64 // cap per tick as fraction of order size; 0 = no cap

	// VolumeImpactThreshold caps large orders to a proportional share of
	// each tick's allotted volume once the order exceeds this fraction of
	// the bar's total volume. 0 disables.
	VolumeImpactThreshold float64

	// TimeInForce expires orders idle past this simulated duration. 0 means
	// good-till-cancelled.
	TimeInForce time.Duration

	Priority PriorityMode
}

// DefaultSettings returns matching defaults: no slippage, no latency, full
// fills, GTC.
func DefaultSettings() Settings {
	return Settings{
		Slippage: SlippageSettings{Kind: SlippagePercentage},
		Priority: PrioritySubmission,
	}
}
