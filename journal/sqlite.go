package journal

import (
	"database/sql"

	_ "github.com/mattn/go-sqlite3"
)

// SQLite persists records to a single SQLite database file.
type SQLite struct {
	db *sql.DB
}

func NewSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, err
	}
	return &SQLite{db: db}, nil
}

func (j *SQLite) RecordFill(r FillRecord) error {
	_, err := j.db.Exec(`
		INSERT INTO fills
		(order_id, trade_id, instrument, side, role, price, quantity, time, slippage, reason)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.OrderID, r.TradeID, r.Instrument, r.Side, r.Role,
		r.Price, r.Quantity, r.Time, r.Slippage, r.Reason,
	)
	return err
}

func (j *SQLite) RecordTrade(r TradeRecord) error {
	_, err := j.db.Exec(`
		INSERT INTO trades
		(trade_id, instrument, side, quantity, entry_price, exit_price, open_time, close_time, realized_pl, commission, reason)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.TradeID, r.Instrument, r.Side, r.Quantity, r.EntryPrice,
		r.ExitPrice, r.OpenTime, r.CloseTime, r.RealizedPL, r.Commission, r.Reason,
	)
	return err
}

func (j *SQLite) RecordEquity(e EquitySnapshot) error {
	_, err := j.db.Exec(`
		INSERT INTO equity (time, balance, equity) VALUES (?, ?, ?)`,
		e.Time, e.Balance, e.Equity,
	)
	return err
}

func (j *SQLite) RecordRun(r RunSummary) error {
	_, err := j.db.Exec(`
		INSERT INTO runs
		(run_id, created, strategy, instrument, seed, start, end, bars,
		 start_balance, end_balance, net_pl, commission,
		 trades, wins, losses, win_rate, profit_factor, max_drawdown)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.RunID, r.Created, r.Strategy, r.Instrument, r.Seed, r.Start, r.End, r.Bars,
		r.StartBalance, r.EndBalance, r.NetPL, r.Commission,
		r.Trades, r.Wins, r.Losses, r.WinRate, r.ProfitFactor, r.MaxDrawdown,
	)
	return err
}

func (j *SQLite) Close() error {
	return j.db.Close()
}
