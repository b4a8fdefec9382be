package ledger

import (
	"fmt"
	"time"
)

// Side of an order.
type Side int8

const (
	Buy  Side = +1
	Sell Side = -1
)

func (s Side) String() string {
	if s == Buy {
		return "buy"
	}
	return "sell"
}

// Opposite returns the other side.
func (s Side) Opposite() Side { return -s }

// OrderType enumerates the supported order types.
type OrderType uint8

const (
	Market OrderType = iota
	Limit
	Stop
	StopLimit
)

func (t OrderType) String() string {
	switch t {
	case Market:
		return "market"
	case Limit:
		return "limit"
	case Stop:
		return "stop"
	default:
		return "stop-limit"
	}
}

// Status is the order lifecycle state.
//
//	Pending -> Submitted -> {PartiallyFilled}* -> Filled | Cancelled | Rejected | Expired
//
// Pending is the zero value of an order not yet handed to the ledger; Submit
// registers an accepted order directly as Submitted, so a registered order is
// never observed Pending. Filled, Cancelled, Rejected and Expired are
// terminal; a terminal order is immutable.
type Status uint8

const (
	StatusPending Status = iota
	StatusSubmitted
	StatusPartiallyFilled
	StatusFilled
	StatusCancelled
	StatusRejected
	StatusExpired
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusSubmitted:
		return "submitted"
	case StatusPartiallyFilled:
		return "partially-filled"
	case StatusFilled:
		return "filled"
	case StatusCancelled:
		return "cancelled"
	case StatusRejected:
		return "rejected"
	default:
		return "expired"
	}
}

// Terminal reports whether the status admits no further transitions.
func (s Status) Terminal() bool {
	switch s {
	case StatusFilled, StatusCancelled, StatusRejected, StatusExpired:
		return true
	}
	return false
}

// Role records why the router created an order. The matching engine ignores
// it; the router's fill hooks key off it for bracket resolution.
type Role uint8

const (
	RoleEntry Role = iota
	RoleExit
	RoleStopLoss
	RoleTakeProfit
)

func (r Role) String() string {
	switch r {
	case RoleEntry:
		return "entry"
	case RoleExit:
		return "exit"
	case RoleStopLoss:
		return "stop-loss"
	default:
		return "take-profit"
	}
}

// Order is one instruction to the simulated exchange.
type Order struct {
	ID         string
	Instrument string
	Side       Side
	Type       OrderType
	Quantity   float64

	LimitPrice *float64 // required for Limit and StopLimit
	StopPrice  *float64 // required for Stop and StopLimit

	Status         Status
	FilledQuantity float64
	AvgFillPrice   float64
	Commission     float64

	CreatedAt   time.Time
	SubmittedAt time.Time

	// Triggered is set once a stop-limit's stop condition has been touched;
	// from then on only the limit condition gates the fill.
	Triggered bool

	// Bracket bookkeeping.
	TradeID   string // parent trade shared by an entry and its brackets
	SiblingID string // the other half of a stop-loss/take-profit pair
	Role      Role

	Reason string // rejection or cancellation reason, empty otherwise
}

// Remaining returns the unfilled quantity.
func (o *Order) Remaining() float64 {
	return o.Quantity - o.FilledQuantity
}

// validate mirrors the acceptance rules: a malformed order is rejected
// before it ever enters the pending set.
func (o *Order) validate() error {
	if o.Instrument == "" {
		return fmt.Errorf("order: instrument is required")
	}
	if o.Side != Buy && o.Side != Sell {
		return fmt.Errorf("order: side must be buy or sell")
	}
	if o.Quantity <= 0 {
		return fmt.Errorf("order: quantity must be positive, got %v", o.Quantity)
	}
	switch o.Type {
	case Limit:
		if o.LimitPrice == nil || *o.LimitPrice <= 0 {
			return fmt.Errorf("order: limit order requires a positive limit price")
		}
	case Stop:
		if o.StopPrice == nil || *o.StopPrice <= 0 {
			return fmt.Errorf("order: stop order requires a positive stop price")
		}
	case StopLimit:
		if o.LimitPrice == nil || *o.LimitPrice <= 0 {
			return fmt.Errorf("order: stop-limit order requires a positive limit price")
		}
		if o.StopPrice == nil || *o.StopPrice <= 0 {
			return fmt.Errorf("order: stop-limit order requires a positive stop price")
		}
	case Market:
	default:
		return fmt.Errorf("order: unknown type %d", o.Type)
	}
	return nil
}
