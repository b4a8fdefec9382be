package synth

import "time"

// Anchor tags the OHLC point a synthetic tick represents.
type Anchor uint8

const (
	AnchorInterior Anchor = iota
	AnchorOpen
	AnchorHigh
	AnchorLow
	AnchorClose
)

func (a Anchor) String() string {
	switch a {
	case AnchorOpen:
		return "open"
	case AnchorHigh:
		return "high"
	case AnchorLow:
		return "low"
	case AnchorClose:
		return "close"
	default:
		return "interior"
	}
}

// Tick is one synthetic intrabar price point. Ticks are ephemeral: produced
// and consumed within one bar's processing, never persisted.
type Tick struct {
	Price       float64
	VolumeShare float64 // fraction of the bar's volume allotted to this tick
	Time        time.Time
	Anchor      Anchor
	Seq         int // position within the bar, strictly increasing
}
