package synth

import "github.com/rustyeddy/backsim/market"

// Shape classifies the intrabar path implied by a single OHLC bar.
type Shape uint8

const (
	// ShapeUpTrend: opened in the lower half and closed in the upper half,
	// with the net move dominating the bar.
	ShapeUpTrend Shape = iota
	// ShapeDownTrend is the mirror case.
	ShapeDownTrend
	// ShapeReversalUp: the low was visited first, then price reversed to
	// close near the top.
	ShapeReversalUp
	// ShapeReversalDown is the mirror case.
	ShapeReversalDown
	// ShapeConsolidation: small body relative to range; modeled as a
	// bounded random walk.
	ShapeConsolidation
)

func (s Shape) String() string {
	switch s {
	case ShapeUpTrend:
		return "up-trend"
	case ShapeDownTrend:
		return "down-trend"
	case ShapeReversalUp:
		return "reversal-up"
	case ShapeReversalDown:
		return "reversal-down"
	default:
		return "consolidation"
	}
}

// Classify buckets a bar into one of the five intrabar shapes by comparing
// the open/close placement against the midpoint and the body-to-range ratio.
func Classify(b market.Bar, consolidationBodyMax float64) Shape {
	rng := b.Range()
	if rng <= 0 {
		return ShapeConsolidation
	}
	if b.Body()/rng < consolidationBodyMax {
		return ShapeConsolidation
	}

	mid := b.Mid()
	if b.Close >= b.Open {
		if b.Open > mid {
			// Opened high, still closed higher: the low must have been
			// carved out first.
			return ShapeReversalUp
		}
		if b.Close < mid {
			// The up body sits entirely in the lower half; the upper wick
			// dominates, so the high was visited and faded.
			return ShapeReversalDown
		}
		return ShapeUpTrend
	}
	if b.Open < mid {
		return ShapeReversalDown
	}
	if b.Close > mid {
		// Mirror case: the down body sits in the upper half under a long
		// lower wick.
		return ShapeReversalUp
	}
	return ShapeDownTrend
}

// anchorPath returns the canonical OHLC visitation order and the relative
// time/volume weight of each of the three legs between anchors. The
// dominant-move leg carries the highest weight.
func anchorPath(s Shape, b market.Bar) (prices [4]float64, anchors [4]Anchor, legWeights [3]float64) {
	switch s {
	case ShapeUpTrend:
		prices = [4]float64{b.Open, b.Low, b.High, b.Close}
		anchors = [4]Anchor{AnchorOpen, AnchorLow, AnchorHigh, AnchorClose}
		legWeights = [3]float64{0.2, 0.6, 0.2} // low -> high is the move
	case ShapeDownTrend:
		prices = [4]float64{b.Open, b.High, b.Low, b.Close}
		anchors = [4]Anchor{AnchorOpen, AnchorHigh, AnchorLow, AnchorClose}
		legWeights = [3]float64{0.2, 0.6, 0.2}
	case ShapeReversalUp:
		prices = [4]float64{b.Open, b.Low, b.High, b.Close}
		anchors = [4]Anchor{AnchorOpen, AnchorLow, AnchorHigh, AnchorClose}
		legWeights = [3]float64{0.45, 0.45, 0.1} // the failed down-leg takes real time
	case ShapeReversalDown:
		prices = [4]float64{b.Open, b.High, b.Low, b.Close}
		anchors = [4]Anchor{AnchorOpen, AnchorHigh, AnchorLow, AnchorClose}
		legWeights = [3]float64{0.45, 0.45, 0.1}
	}
	return prices, anchors, legWeights
}
