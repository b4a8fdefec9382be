// Package journal persists simulation output: individual fills, closed
// round trips, equity snapshots, and per-run summaries. Two backends are
// provided, CSV files and SQLite.
package journal

import (
	"time"

	"github.com/rustyeddy/backsim/ledger"
	"github.com/rustyeddy/backsim/portfolio"
)

// FillRecord is one execution as persisted.
type FillRecord struct {
	OrderID    string
	TradeID    string
	Instrument string
	Side       string
	Role       string
	Price      float64
	Quantity   float64
	Time       time.Time
	Slippage   float64
	Reason     string
}

// TradeRecord is one closed round trip.
type TradeRecord struct {
	TradeID    string
	Instrument string
	Side       string
	Quantity   float64
	EntryPrice float64
	ExitPrice  float64
	OpenTime   time.Time
	CloseTime  time.Time
	RealizedPL float64
	Commission float64
	Reason     string
}

// EquitySnapshot is one sample of the account over time.
type EquitySnapshot struct {
	Time    time.Time
	Balance float64
	Equity  float64
}

// RunSummary is the header row for one simulation run.
type RunSummary struct {
	RunID      string
	Created    time.Time
	Strategy   string
	Instrument string
	Seed       int64

	Start time.Time
	End   time.Time
	Bars  int

	StartBalance float64
	EndBalance   float64
	NetPL        float64
	Commission   float64

	Trades       int
	Wins         int
	Losses       int
	WinRate      float64
	ProfitFactor float64
	MaxDrawdown  float64
}

// Journal records simulation output. Implementations are not safe for
// concurrent use; the single-threaded loop never needs them to be.
type Journal interface {
	RecordFill(FillRecord) error
	RecordTrade(TradeRecord) error
	RecordEquity(EquitySnapshot) error
	RecordRun(RunSummary) error
	Close() error
}

// NewFillRecord converts a ledger fill for persistence.
func NewFillRecord(f ledger.Fill) FillRecord {
	return FillRecord{
		OrderID:    f.OrderID,
		TradeID:    f.TradeID,
		Instrument: f.Instrument,
		Side:       f.Side.String(),
		Role:       f.Role.String(),
		Price:      f.Price,
		Quantity:   f.Quantity,
		Time:       f.Time,
		Slippage:   f.Slippage,
		Reason:     string(f.Reason),
	}
}

// NewTradeRecord converts a closed round trip for persistence.
func NewTradeRecord(ct portfolio.ClosedTrade) TradeRecord {
	return TradeRecord{
		TradeID:    ct.TradeID,
		Instrument: ct.Instrument,
		Side:       ct.Side.String(),
		Quantity:   ct.Quantity,
		EntryPrice: ct.EntryPrice,
		ExitPrice:  ct.ExitPrice,
		OpenTime:   ct.EntryTime,
		CloseTime:  ct.ExitTime,
		RealizedPL: ct.PnL,
		Commission: ct.Commission,
		Reason:     string(ct.Reason),
	}
}
