package portfolio

import (
	"time"

	"github.com/rustyeddy/backsim/ledger"
)

// Lot is one open quantity tranche, closed oldest-first against offsetting
// fills. Entry commission rides on the lot and is allocated per closed unit.
type Lot struct {
	TradeID    string
	EntryPrice float64
	EntryTime  time.Time
	Quantity   float64 // original size
	Remaining  float64
	Commission float64 // entry-side commission for the whole lot
}

// ClosedTrade is the realized round trip produced when a lot (or part of
// one) closes.
type ClosedTrade struct {
	TradeID    string
	Instrument string
	Side       ledger.Side // direction of the position that was closed
	Quantity   float64
	EntryPrice float64
	ExitPrice  float64
	EntryTime  time.Time
	ExitTime   time.Time
	PnL        float64 // net of allocated commission
	Commission float64
	Reason     ledger.FillReason
}

// Position is the per-instrument net exposure.
type Position struct {
	Instrument    string
	Side          ledger.Side // Buy = long, Sell = short; meaningless when flat
	Quantity      float64     // net open quantity, >= 0
	AvgEntryPrice float64     // volume-weighted over open lots
	RealizedPnL   float64
	UnrealizedPnL float64
	Commission    float64 // total accrued, entry and exit sides
	Lots          []Lot   // FIFO open lots
}

// Flat reports whether there is no open exposure.
func (p *Position) Flat() bool { return p.Quantity <= 1e-9 }

// refresh recomputes net quantity and VWAP entry from the open lots.
func (p *Position) refresh() {
	var qty, notional float64
	for _, lot := range p.Lots {
		qty += lot.Remaining
		notional += lot.Remaining * lot.EntryPrice
	}
	p.Quantity = qty
	if qty > 1e-9 {
		p.AvgEntryPrice = notional / qty
	} else {
		p.Quantity = 0
		p.AvgEntryPrice = 0
		p.UnrealizedPnL = 0
		p.Lots = p.Lots[:0]
	}
}
