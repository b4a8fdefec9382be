package indicators

import (
	"fmt"
	"math"

	"github.com/rustyeddy/backsim/market"
)

// ATR is a streaming Average True Range indicator using Wilder's smoothing.
type ATR struct {
	period      int
	atr         float64
	count       int
	warmupSum   float64
	prevClose   float64
	hasPrevious bool
}

// NewATR creates an Average True Range indicator with the given period.
func NewATR(period int) *ATR {
	return &ATR{period: period}
}

func (a *ATR) Name() string {
	return fmt.Sprintf("ATR(%d)", a.period)
}

func (a *ATR) Warmup() int {
	// True range needs the previous close, so one extra bar.
	return a.period + 1
}

func (a *ATR) Reset() {
	a.atr = 0
	a.count = 0
	a.warmupSum = 0
	a.prevClose = 0
	a.hasPrevious = false
}

func (a *ATR) Update(b market.Bar) {
	if !a.hasPrevious {
		a.prevClose = b.Close
		a.hasPrevious = true
		return
	}

	tr := trueRange(b, a.prevClose)

	if a.count < a.period {
		a.warmupSum += tr
		a.count++
		if a.count == a.period {
			a.atr = a.warmupSum / float64(a.period)
		}
	} else {
		a.atr = (a.atr*float64(a.period-1) + tr) / float64(a.period)
	}

	a.prevClose = b.Close
}

func (a *ATR) Ready() bool {
	return a.count >= a.period
}

func (a *ATR) Value() float64 {
	if !a.Ready() {
		return 0
	}
	return a.atr
}

// trueRange is the largest of the bar range and the gaps from the
// previous close to the bar's high and low.
func trueRange(b market.Bar, prevClose float64) float64 {
	highLow := b.High - b.Low
	highClose := math.Abs(b.High - prevClose)
	lowClose := math.Abs(b.Low - prevClose)
	return math.Max(highLow, math.Max(highClose, lowClose))
}
