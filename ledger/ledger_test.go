package ledger

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/backsim/pkg/id"
)

func ptr(v float64) *float64 { return &v }

func newTestLedger() *Ledger {
	return New(id.NewGenerator(1))
}

func submitted(t *testing.T, l *Ledger, o *Order) *Order {
	t.Helper()
	err := l.Submit(o, time.Date(2024, 1, 2, 9, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	return o
}

func TestSubmitValidation(t *testing.T) {
	now := time.Date(2024, 1, 2, 9, 0, 0, 0, time.UTC)

	tests := []struct {
		name  string
		order *Order
	}{
		{"zero quantity", &Order{Instrument: "EUR_USD", Side: Buy, Type: Market}},
		{"negative quantity", &Order{Instrument: "EUR_USD", Side: Buy, Type: Market, Quantity: -5}},
		{"no instrument", &Order{Side: Buy, Type: Market, Quantity: 1}},
		{"no side", &Order{Instrument: "EUR_USD", Type: Market, Quantity: 1}},
		{"limit without price", &Order{Instrument: "EUR_USD", Side: Buy, Type: Limit, Quantity: 1}},
		{"stop without price", &Order{Instrument: "EUR_USD", Side: Sell, Type: Stop, Quantity: 1}},
		{"stop-limit missing stop", &Order{Instrument: "EUR_USD", Side: Buy, Type: StopLimit, Quantity: 1, LimitPrice: ptr(1.1)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := newTestLedger()
			err := l.Submit(tt.order, now)
			require.ErrorIs(t, err, ErrRejected)
			assert.Equal(t, StatusRejected, tt.order.Status)
			assert.NotEmpty(t, tt.order.Reason)
			assert.Empty(t, l.Pending(""), "rejected order must not enter the pending set")
		})
	}
}

func TestLifecycleFills(t *testing.T) {
	l := newTestLedger()

	o := &Order{Instrument: "EUR_USD", Side: Buy, Type: Market, Quantity: 10}
	assert.Equal(t, StatusPending, o.Status)

	o = submitted(t, l, o)
	assert.Equal(t, StatusSubmitted, o.Status)
	assert.NotEmpty(t, o.ID)

	_, err := l.ApplyFill(Fill{OrderID: o.ID, Price: 1.10, Quantity: 4})
	require.NoError(t, err)
	assert.Equal(t, StatusPartiallyFilled, o.Status)
	assert.InDelta(t, 4, o.FilledQuantity, 1e-9)
	assert.InDelta(t, 1.10, o.AvgFillPrice, 1e-9)

	_, err = l.ApplyFill(Fill{OrderID: o.ID, Price: 1.12, Quantity: 6})
	require.NoError(t, err)
	assert.Equal(t, StatusFilled, o.Status)
	assert.InDelta(t, 10, o.FilledQuantity, 1e-9)
	assert.InDelta(t, (1.10*4+1.12*6)/10, o.AvgFillPrice, 1e-9)

	// Terminal orders are immutable.
	_, err = l.ApplyFill(Fill{OrderID: o.ID, Price: 1.13, Quantity: 1})
	assert.ErrorIs(t, err, ErrTerminalOrder)
	err = l.Cancel(o.ID, "too late")
	assert.ErrorIs(t, err, ErrTerminalOrder)
}

func TestOverfillIsInvariantViolation(t *testing.T) {
	l := newTestLedger()
	o := submitted(t, l, &Order{Instrument: "EUR_USD", Side: Buy, Type: Market, Quantity: 5})

	_, err := l.ApplyFill(Fill{OrderID: o.ID, Price: 1.10, Quantity: 6})
	assert.ErrorIs(t, err, ErrOverfill)
}

func TestCancelClearsSibling(t *testing.T) {
	l := newTestLedger()
	sl := submitted(t, l, &Order{Instrument: "EUR_USD", Side: Sell, Type: Stop, Quantity: 10, StopPrice: ptr(1.05), Role: RoleStopLoss})
	tp := submitted(t, l, &Order{Instrument: "EUR_USD", Side: Sell, Type: Limit, Quantity: 10, LimitPrice: ptr(1.20), Role: RoleTakeProfit})
	sl.SiblingID = tp.ID
	tp.SiblingID = sl.ID

	require.NoError(t, l.Cancel(sl.ID, "bracket filled"))

	assert.Equal(t, StatusCancelled, sl.Status)
	assert.Equal(t, StatusCancelled, tp.Status)
	assert.Zero(t, sl.FilledQuantity)
}

func TestQueries(t *testing.T) {
	l := newTestLedger()
	a := submitted(t, l, &Order{Instrument: "EUR_USD", Side: Buy, Type: Market, Quantity: 1, TradeID: "T1"})
	b := submitted(t, l, &Order{Instrument: "GBP_USD", Side: Sell, Type: Market, Quantity: 2, TradeID: "T1"})
	c := submitted(t, l, &Order{Instrument: "EUR_USD", Side: Sell, Type: Limit, Quantity: 3, LimitPrice: ptr(1.2), TradeID: "T2"})

	assert.Equal(t, []*Order{a, c}, l.Pending("EUR_USD"))
	assert.Equal(t, []*Order{a, b, c}, l.Pending(""))
	assert.Equal(t, []*Order{a, b}, l.ByTrade("T1"))

	require.NoError(t, l.Cancel(b.ID, "test"))
	assert.Equal(t, []*Order{b}, l.ByStatus(StatusCancelled))
	assert.Equal(t, []*Order{a, c}, l.Pending(""))
}

func TestExpire(t *testing.T) {
	l := newTestLedger()
	o := submitted(t, l, &Order{Instrument: "EUR_USD", Side: Buy, Type: Limit, Quantity: 1, LimitPrice: ptr(1.0)})

	require.NoError(t, l.Expire(o.ID))
	assert.Equal(t, StatusExpired, o.Status)
	assert.Equal(t, "expired", o.Reason)
}

func TestReset(t *testing.T) {
	l := newTestLedger()
	o := submitted(t, l, &Order{Instrument: "EUR_USD", Side: Buy, Type: Market, Quantity: 1})
	_, err := l.ApplyFill(Fill{OrderID: o.ID, Price: 1.1, Quantity: 1})
	require.NoError(t, err)

	l.Reset()
	assert.Empty(t, l.Orders())
	assert.Empty(t, l.Fills())
	assert.Empty(t, l.Pending(""))
}
