package portfolio

import (
	"fmt"
	"sort"

	"github.com/rustyeddy/backsim/ledger"
)

// Tracker maintains per-instrument positions with FIFO lot accounting,
// realized/unrealized P&L and commission. It is exclusively owned by one
// simulation run.
type Tracker struct {
	schedule  CommissionSchedule
	positions map[string]*Position
	closed    []ClosedTrade
}

func NewTracker(schedule CommissionSchedule) *Tracker {
	return &Tracker{
		schedule:  schedule,
		positions: make(map[string]*Position),
	}
}

// Position returns the tracked position for an instrument, creating a flat
// one on first use.
func (t *Tracker) Position(instrument string) *Position {
	p, ok := t.positions[instrument]
	if !ok {
		p = &Position{Instrument: instrument}
		t.positions[instrument] = p
	}
	return p
}

// Positions returns all tracked positions ordered by instrument.
func (t *Tracker) Positions() []*Position {
	keys := make([]string, 0, len(t.positions))
	for k := range t.positions {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]*Position, 0, len(keys))
	for _, k := range keys {
		out = append(out, t.positions[k])
	}
	return out
}

// ClosedTrades returns the realized round trips in close order.
func (t *Tracker) ClosedTrades() []ClosedTrade { return t.closed }

// TotalCommission sums commission across all positions.
func (t *Tracker) TotalCommission() float64 {
	var total float64
	for _, p := range t.positions {
		total += p.Commission
	}
	return total
}

// TotalRealized sums realized P&L across all positions.
func (t *Tracker) TotalRealized() float64 {
	var total float64
	for _, p := range t.positions {
		total += p.RealizedPnL
	}
	return total
}

// TotalUnrealized sums unrealized P&L across all positions.
func (t *Tracker) TotalUnrealized() float64 {
	var total float64
	for _, p := range t.positions {
		total += p.UnrealizedPnL
	}
	return total
}

// ApplyFill updates the position for a fill. A fill in the position's
// direction opens a new lot; an opposing fill closes lots oldest-first,
// realizing P&L per closed unit net of allocated commission, and any excess
// quantity flips the position. Returns the updated position and the
// commission charged for this fill.
func (t *Tracker) ApplyFill(f ledger.Fill) (*Position, float64, error) {
	if f.Quantity <= 0 {
		return nil, 0, fmt.Errorf("portfolio: non-positive fill quantity %v", f.Quantity)
	}

	p := t.Position(f.Instrument)
	commission := t.schedule.For(f.Price, f.Quantity)
	p.Commission += commission

	if p.Flat() || f.Side == p.Side {
		t.openLot(p, f, f.Quantity, commission)
		p.refresh()
		return p, commission, nil
	}

	// Opposing fill: close FIFO lots first.
	remaining := f.Quantity
	exitPerUnit := commission / f.Quantity

	for remaining > 1e-9 && len(p.Lots) > 0 {
		lot := &p.Lots[0]
		q := lot.Remaining
		if q > remaining {
			q = remaining
		}

		entryPerUnit := lot.Commission / lot.Quantity
		allocated := (entryPerUnit + exitPerUnit) * q
		gross := (f.Price - lot.EntryPrice) * q * float64(p.Side)
		pnl := gross - allocated

		p.RealizedPnL += pnl
		t.closed = append(t.closed, ClosedTrade{
			TradeID:    lot.TradeID,
			Instrument: p.Instrument,
			Side:       p.Side,
			Quantity:   q,
			EntryPrice: lot.EntryPrice,
			ExitPrice:  f.Price,
			EntryTime:  lot.EntryTime,
			ExitTime:   f.Time,
			PnL:        pnl,
			Commission: allocated,
			Reason:     f.Reason,
		})

		lot.Remaining -= q
		remaining -= q
		if lot.Remaining <= 1e-9 {
			p.Lots = p.Lots[1:]
		}
	}

	// Excess beyond the open lots flips the side.
	if remaining > 1e-9 {
		p.Side = f.Side
		t.openLot(p, f, remaining, exitPerUnit*remaining)
	}

	p.refresh()
	return p, commission, nil
}

func (t *Tracker) openLot(p *Position, f ledger.Fill, qty, commission float64) {
	if p.Flat() && len(p.Lots) == 0 {
		p.Side = f.Side
	}
	p.Lots = append(p.Lots, Lot{
		TradeID:    f.TradeID,
		EntryPrice: f.Price,
		EntryTime:  f.Time,
		Quantity:   qty,
		Remaining:  qty,
		Commission: commission,
	})
}

// MarkToMarket recomputes unrealized P&L for an instrument against the
// latest close.
func (t *Tracker) MarkToMarket(instrument string, closePrice float64) {
	p, ok := t.positions[instrument]
	if !ok || p.Flat() {
		return
	}
	p.UnrealizedPnL = (closePrice - p.AvgEntryPrice) * p.Quantity * float64(p.Side)
}

// Reset clears all state. Used between simulation runs.
func (t *Tracker) Reset() {
	t.positions = make(map[string]*Position)
	t.closed = nil
}
