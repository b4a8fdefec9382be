package journal

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// CSVJournal writes one CSV file per record kind under a directory:
// fills.csv, trades.csv, equity.csv and runs.csv.
type CSVJournal struct {
	fills  *csv.Writer
	trades *csv.Writer
	equity *csv.Writer
	runs   *csv.Writer
	files  []*os.File
}

var csvHeaders = map[string][]string{
	"fills.csv": {"order_id", "trade_id", "instrument", "side", "role",
		"price", "quantity", "time", "slippage", "reason"},
	"trades.csv": {"trade_id", "instrument", "side", "quantity", "entry_price",
		"exit_price", "open_time", "close_time", "realized_pl", "commission", "reason"},
	"equity.csv": {"time", "balance", "equity"},
	"runs.csv": {"run_id", "created", "strategy", "instrument", "seed",
		"start", "end", "bars", "start_balance", "end_balance", "net_pl",
		"commission", "trades", "wins", "losses", "win_rate", "profit_factor",
		"max_drawdown"},
}

func NewCSV(dir string) (*CSVJournal, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	j := &CSVJournal{}
	writers := map[string]**csv.Writer{
		"fills.csv":  &j.fills,
		"trades.csv": &j.trades,
		"equity.csv": &j.equity,
		"runs.csv":   &j.runs,
	}

	for _, name := range []string{"fills.csv", "trades.csv", "equity.csv", "runs.csv"} {
		f, err := os.Create(filepath.Join(dir, name))
		if err != nil {
			j.Close()
			return nil, err
		}
		j.files = append(j.files, f)

		w := csv.NewWriter(f)
		if err := w.Write(csvHeaders[name]); err != nil {
			j.Close()
			return nil, err
		}
		w.Flush()
		if err := w.Error(); err != nil {
			j.Close()
			return nil, err
		}
		*writers[name] = w
	}
	return j, nil
}

func (j *CSVJournal) RecordFill(r FillRecord) error {
	err := j.fills.Write([]string{
		r.OrderID,
		r.TradeID,
		r.Instrument,
		r.Side,
		r.Role,
		f(r.Price),
		f(r.Quantity),
		r.Time.Format(time.RFC3339Nano),
		f(r.Slippage),
		r.Reason,
	})
	if err != nil {
		return err
	}
	j.fills.Flush()
	return j.fills.Error()
}

func (j *CSVJournal) RecordTrade(r TradeRecord) error {
	err := j.trades.Write([]string{
		r.TradeID,
		r.Instrument,
		r.Side,
		f(r.Quantity),
		f(r.EntryPrice),
		f(r.ExitPrice),
		r.OpenTime.Format(time.RFC3339Nano),
		r.CloseTime.Format(time.RFC3339Nano),
		f(r.RealizedPL),
		f(r.Commission),
		r.Reason,
	})
	if err != nil {
		return err
	}
	j.trades.Flush()
	return j.trades.Error()
}

func (j *CSVJournal) RecordEquity(e EquitySnapshot) error {
	err := j.equity.Write([]string{
		e.Time.Format(time.RFC3339Nano),
		f(e.Balance),
		f(e.Equity),
	})
	if err != nil {
		return err
	}
	j.equity.Flush()
	return j.equity.Error()
}

func (j *CSVJournal) RecordRun(r RunSummary) error {
	err := j.runs.Write([]string{
		r.RunID,
		r.Created.Format(time.RFC3339Nano),
		r.Strategy,
		r.Instrument,
		strconv.FormatInt(r.Seed, 10),
		r.Start.Format(time.RFC3339Nano),
		r.End.Format(time.RFC3339Nano),
		strconv.Itoa(r.Bars),
		f(r.StartBalance),
		f(r.EndBalance),
		f(r.NetPL),
		f(r.Commission),
		strconv.Itoa(r.Trades),
		strconv.Itoa(r.Wins),
		strconv.Itoa(r.Losses),
		f(r.WinRate),
		f(r.ProfitFactor),
		f(r.MaxDrawdown),
	})
	if err != nil {
		return err
	}
	j.runs.Flush()
	return j.runs.Error()
}

func (j *CSVJournal) Close() error {
	var first error
	for _, w := range []*csv.Writer{j.fills, j.trades, j.equity, j.runs} {
		if w == nil {
			continue
		}
		w.Flush()
		if err := w.Error(); err != nil && first == nil {
			first = err
		}
	}
	for _, file := range j.files {
		if err := file.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func f(x float64) string {
	return strconv.FormatFloat(x, 'f', 6, 64)
}
