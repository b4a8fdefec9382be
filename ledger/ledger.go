package ledger

import (
	"errors"
	"fmt"
	"time"

	"github.com/rustyeddy/backsim/pkg/id"
)

var (
	// ErrRejected wraps submission-time validation failures. The order never
	// enters the pending set; the caller may correct and resubmit.
	ErrRejected = errors.New("order rejected")

	// ErrNotFound means the referenced order was never registered.
	ErrNotFound = errors.New("order not found")

	// ErrTerminalOrder is an invariant violation: something tried to mutate
	// an order in a terminal state. The run must abort.
	ErrTerminalOrder = errors.New("order is terminal")

	// ErrOverfill is an invariant violation: a fill exceeded the remaining
	// quantity.
	ErrOverfill = errors.New("fill exceeds remaining quantity")
)

// Ledger owns order identity and the lifecycle state machine for one
// simulation run. It is exclusively owned by a single run; there is no
// locking because there is no concurrency.
type Ledger struct {
	orders map[string]*Order
	seq    []string // submission order, the final tie-break everywhere
	gen    *id.Generator

	fills []Fill // append-only fill history across the run
}

// New returns an empty ledger drawing IDs from gen.
func New(gen *id.Generator) *Ledger {
	return &Ledger{
		orders: make(map[string]*Order),
		gen:    gen,
	}
}

// Submit validates and registers a new order. On validation failure the
// order's status is set to Rejected with a reason, it is NOT registered, and
// the returned error wraps ErrRejected.
func (l *Ledger) Submit(o *Order, now time.Time) error {
	if err := o.validate(); err != nil {
		o.Status = StatusRejected
		o.Reason = err.Error()
		return fmt.Errorf("%w: %v", ErrRejected, err)
	}

	if o.ID == "" {
		o.ID = l.gen.Next(now)
	}
	if _, dup := l.orders[o.ID]; dup {
		return fmt.Errorf("ledger: duplicate order id %s", o.ID)
	}

	o.CreatedAt = now
	o.SubmittedAt = now
	o.Status = StatusSubmitted

	l.orders[o.ID] = o
	l.seq = append(l.seq, o.ID)
	return nil
}

// Get returns the order with the given id.
func (l *Ledger) Get(orderID string) (*Order, error) {
	o, ok := l.orders[orderID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, orderID)
	}
	return o, nil
}

// Pending returns all non-terminal orders for the instrument in submission
// order. An empty instrument matches everything.
func (l *Ledger) Pending(instrument string) []*Order {
	var out []*Order
	for _, oid := range l.seq {
		o := l.orders[oid]
		if o.Status.Terminal() {
			continue
		}
		if instrument != "" && o.Instrument != instrument {
			continue
		}
		out = append(out, o)
	}
	return out
}

// ByStatus returns orders with the given status in submission order.
func (l *Ledger) ByStatus(status Status) []*Order {
	var out []*Order
	for _, oid := range l.seq {
		if o := l.orders[oid]; o.Status == status {
			out = append(out, o)
		}
	}
	return out
}

// ByTrade returns all orders linked to a parent trade in submission order.
func (l *Ledger) ByTrade(tradeID string) []*Order {
	var out []*Order
	for _, oid := range l.seq {
		if o := l.orders[oid]; o.TradeID == tradeID {
			out = append(out, o)
		}
	}
	return out
}

// ApplyFill records a fill against its order, advancing the state machine.
// Filling a terminal order or overfilling is an invariant violation, not a
// recoverable condition.
func (l *Ledger) ApplyFill(f Fill) (*Order, error) {
	o, err := l.Get(f.OrderID)
	if err != nil {
		return nil, err
	}
	if o.Status.Terminal() {
		return nil, fmt.Errorf("%w: %s is %s", ErrTerminalOrder, o.ID, o.Status)
	}
	if f.Quantity <= 0 {
		return nil, fmt.Errorf("ledger: non-positive fill quantity for %s", o.ID)
	}
	if f.Quantity > o.Remaining()+1e-9 {
		return nil, fmt.Errorf("%w: order %s remaining %v, fill %v",
			ErrOverfill, o.ID, o.Remaining(), f.Quantity)
	}

	o.AvgFillPrice = (o.AvgFillPrice*o.FilledQuantity + f.Price*f.Quantity) /
		(o.FilledQuantity + f.Quantity)
	o.FilledQuantity += f.Quantity

	if o.Remaining() <= 1e-9 {
		o.FilledQuantity = o.Quantity
		o.Status = StatusFilled
	} else {
		o.Status = StatusPartiallyFilled
	}

	l.fills = append(l.fills, f)
	return o, nil
}

// AccrueCommission adds commission to a non-terminal-checked order. Called
// by the loop alongside ApplyFill, before the order may go terminal.
func (l *Ledger) AccrueCommission(orderID string, amount float64) error {
	o, err := l.Get(orderID)
	if err != nil {
		return err
	}
	o.Commission += amount
	return nil
}

// MarkTriggered flags a stop-limit order whose stop condition has fired.
func (l *Ledger) MarkTriggered(orderID string) error {
	o, err := l.Get(orderID)
	if err != nil {
		return err
	}
	if o.Status.Terminal() {
		return fmt.Errorf("%w: %s is %s", ErrTerminalOrder, o.ID, o.Status)
	}
	o.Triggered = true
	return nil
}

// Cancel moves a non-terminal order to Cancelled and clears any linked
// sibling bracket order in the same call.
func (l *Ledger) Cancel(orderID, reason string) error {
	o, err := l.Get(orderID)
	if err != nil {
		return err
	}
	if o.Status.Terminal() {
		return fmt.Errorf("%w: %s is %s", ErrTerminalOrder, o.ID, o.Status)
	}

	o.Status = StatusCancelled
	o.Reason = reason

	if o.SiblingID != "" {
		if sib, err := l.Get(o.SiblingID); err == nil && !sib.Status.Terminal() {
			sib.Status = StatusCancelled
			sib.Reason = "sibling cancelled"
		}
	}
	return nil
}

// Expire moves a non-terminal order to Expired (time-in-force exceeded).
func (l *Ledger) Expire(orderID string) error {
	o, err := l.Get(orderID)
	if err != nil {
		return err
	}
	if o.Status.Terminal() {
		return fmt.Errorf("%w: %s is %s", ErrTerminalOrder, o.ID, o.Status)
	}
	o.Status = StatusExpired
	o.Reason = "expired"
	return nil
}

// Fills returns the append-only fill history for the run.
func (l *Ledger) Fills() []Fill { return l.fills }

// Orders returns every registered order in submission order.
func (l *Ledger) Orders() []*Order {
	out := make([]*Order, 0, len(l.seq))
	for _, oid := range l.seq {
		out = append(out, l.orders[oid])
	}
	return out
}

// Reset clears all orders and fills. Used between simulation runs.
func (l *Ledger) Reset() {
	l.orders = make(map[string]*Order)
	l.seq = nil
	l.fills = nil
}
