package risk

import (
	"fmt"

	"github.com/rustyeddy/backsim/ledger"
)

// Limits are the pre-submission risk constraints. Zero values disable the
// corresponding check, except AllowShortSelling which defaults closed.
type Limits struct {
	MaxPositionSize   float64
	MaxOrderSize      float64
	MaxOpenOrders     int
	AllowShortSelling bool
}

type Violation struct {
	Code string
	Msg  string
}

// Decision is the outcome of evaluating an order intent against the limits.
// A disallowed decision carries one violation per failed check.
type Decision struct {
	Allowed    bool
	Violations []Violation
}

func (d *Decision) add(code, msg string) {
	d.Violations = append(d.Violations, Violation{Code: code, Msg: msg})
	d.Allowed = false
}

// Reason flattens the violations into a single rejection string.
func (d *Decision) Reason() string {
	if d.Allowed || len(d.Violations) == 0 {
		return ""
	}
	out := d.Violations[0].Code
	for _, v := range d.Violations[1:] {
		out += "," + v.Code
	}
	return out
}

// OrderIntent is the slice of an order the risk checks care about.
type OrderIntent struct {
	Instrument string
	Side       ledger.Side
	Quantity   float64
}

// Snapshot is the account state the checks evaluate against.
type Snapshot struct {
	PositionSide     ledger.Side // meaningless when PositionQuantity is 0
	PositionQuantity float64     // net open quantity, >= 0
	OpenOrders       int         // non-terminal orders currently registered
}

// Evaluate runs every check and reports all violations, not just the first.
func Evaluate(l Limits, intent OrderIntent, snap Snapshot) Decision {
	d := Decision{Allowed: true}

	if intent.Quantity <= 0 {
		d.add("NO_QUANTITY", "quantity must be positive")
		return d
	}

	if l.MaxOrderSize > 0 && intent.Quantity > l.MaxOrderSize {
		d.add("ORDER_TOO_LARGE",
			fmt.Sprintf("order size %.2f exceeds max %.2f", intent.Quantity, l.MaxOrderSize))
	}

	if l.MaxOpenOrders > 0 && snap.OpenOrders >= l.MaxOpenOrders {
		d.add("TOO_MANY_OPEN_ORDERS",
			fmt.Sprintf("open orders %d >= max %d", snap.OpenOrders, l.MaxOpenOrders))
	}

	// Projected net exposure after this order fills completely.
	projected := snap.PositionQuantity*float64(snap.PositionSide) +
		intent.Quantity*float64(intent.Side)

	if projected < 0 && !l.AllowShortSelling {
		d.add("SHORT_NOT_ALLOWED",
			fmt.Sprintf("order would leave a short position of %.2f", -projected))
	}

	if l.MaxPositionSize > 0 {
		abs := projected
		if abs < 0 {
			abs = -abs
		}
		if abs > l.MaxPositionSize {
			d.add("POSITION_TOO_LARGE",
				fmt.Sprintf("projected position %.2f exceeds max %.2f", abs, l.MaxPositionSize))
		}
	}

	return d
}
