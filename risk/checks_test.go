package risk

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/rustyeddy/backsim/ledger"
)

func codes(d Decision) []string {
	out := make([]string, 0, len(d.Violations))
	for _, v := range d.Violations {
		out = append(out, v.Code)
	}
	return out
}

func TestEvaluate(t *testing.T) {
	limits := Limits{
		MaxPositionSize:   100,
		MaxOrderSize:      50,
		MaxOpenOrders:     3,
		AllowShortSelling: false,
	}

	tests := []struct {
		name   string
		intent OrderIntent
		snap   Snapshot
		want   []string // violation codes, empty = allowed
	}{
		{
			name:   "plain long entry",
			intent: OrderIntent{Instrument: "EUR_USD", Side: ledger.Buy, Quantity: 10},
		},
		{
			name:   "zero quantity",
			intent: OrderIntent{Side: ledger.Buy},
			want:   []string{"NO_QUANTITY"},
		},
		{
			name:   "order too large",
			intent: OrderIntent{Side: ledger.Buy, Quantity: 51},
			want:   []string{"ORDER_TOO_LARGE"},
		},
		{
			name:   "too many open orders",
			intent: OrderIntent{Side: ledger.Buy, Quantity: 10},
			snap:   Snapshot{OpenOrders: 3},
			want:   []string{"TOO_MANY_OPEN_ORDERS"},
		},
		{
			name:   "naked short rejected",
			intent: OrderIntent{Side: ledger.Sell, Quantity: 10},
			want:   []string{"SHORT_NOT_ALLOWED"},
		},
		{
			name:   "sell that closes a long is fine",
			intent: OrderIntent{Side: ledger.Sell, Quantity: 10},
			snap:   Snapshot{PositionSide: ledger.Buy, PositionQuantity: 10},
		},
		{
			name:   "position cap",
			intent: OrderIntent{Side: ledger.Buy, Quantity: 40},
			snap:   Snapshot{PositionSide: ledger.Buy, PositionQuantity: 70},
			want:   []string{"POSITION_TOO_LARGE"},
		},
		{
			name:   "multiple violations reported together",
			intent: OrderIntent{Side: ledger.Sell, Quantity: 60},
			snap:   Snapshot{OpenOrders: 5},
			want:   []string{"ORDER_TOO_LARGE", "TOO_MANY_OPEN_ORDERS", "SHORT_NOT_ALLOWED"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := Evaluate(limits, tt.intent, tt.snap)
			if len(tt.want) == 0 {
				assert.True(t, d.Allowed)
				assert.Empty(t, d.Violations)
			} else {
				assert.False(t, d.Allowed)
				assert.Equal(t, tt.want, codes(d))
				assert.NotEmpty(t, d.Reason())
			}
		})
	}
}

func TestShortAllowedWhenEnabled(t *testing.T) {
	limits := Limits{AllowShortSelling: true}
	d := Evaluate(limits, OrderIntent{Side: ledger.Sell, Quantity: 10}, Snapshot{})
	assert.True(t, d.Allowed)
}
