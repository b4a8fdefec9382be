package journal

import (
	"database/sql"
	"fmt"
	"time"
)

// GetRun returns one run summary by ID.
func (j *SQLite) GetRun(runID string) (RunSummary, error) {
	var r RunSummary

	row := j.db.QueryRow(`
		SELECT run_id, created, strategy, instrument, seed, start, end, bars,
		       start_balance, end_balance, net_pl, commission,
		       trades, wins, losses, win_rate, profit_factor, max_drawdown
		FROM runs
		WHERE run_id = ?`, runID)

	err := row.Scan(
		&r.RunID, &r.Created, &r.Strategy, &r.Instrument, &r.Seed,
		&r.Start, &r.End, &r.Bars,
		&r.StartBalance, &r.EndBalance, &r.NetPL, &r.Commission,
		&r.Trades, &r.Wins, &r.Losses, &r.WinRate, &r.ProfitFactor, &r.MaxDrawdown,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return RunSummary{}, fmt.Errorf("run %q not found", runID)
		}
		return RunSummary{}, err
	}
	return r, nil
}

// ListTradesClosedBetween returns trades whose close_time is within [start, end).
func (j *SQLite) ListTradesClosedBetween(start, end time.Time) ([]TradeRecord, error) {
	rows, err := j.db.Query(`
		SELECT trade_id, instrument, side, quantity, entry_price, exit_price,
		       open_time, close_time, realized_pl, commission, reason
		FROM trades
		WHERE close_time >= ? AND close_time < ?
		ORDER BY close_time ASC`, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []TradeRecord
	for rows.Next() {
		var r TradeRecord
		if err := rows.Scan(
			&r.TradeID, &r.Instrument, &r.Side, &r.Quantity,
			&r.EntryPrice, &r.ExitPrice, &r.OpenTime, &r.CloseTime,
			&r.RealizedPL, &r.Commission, &r.Reason,
		); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// ListFillsByTrade returns every fill linked to a parent trade, in time order.
func (j *SQLite) ListFillsByTrade(tradeID string) ([]FillRecord, error) {
	rows, err := j.db.Query(`
		SELECT order_id, trade_id, instrument, side, role, price, quantity, time, slippage, reason
		FROM fills
		WHERE trade_id = ?
		ORDER BY time ASC`, tradeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []FillRecord
	for rows.Next() {
		var r FillRecord
		if err := rows.Scan(
			&r.OrderID, &r.TradeID, &r.Instrument, &r.Side, &r.Role,
			&r.Price, &r.Quantity, &r.Time, &r.Slippage, &r.Reason,
		); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// ListEquityBetween returns equity samples within [start, end).
func (j *SQLite) ListEquityBetween(start, end time.Time) ([]EquitySnapshot, error) {
	rows, err := j.db.Query(`
		SELECT time, balance, equity
		FROM equity
		WHERE time >= ? AND time < ?
		ORDER BY time ASC`, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []EquitySnapshot
	for rows.Next() {
		var e EquitySnapshot
		if err := rows.Scan(&e.Time, &e.Balance, &e.Equity); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
