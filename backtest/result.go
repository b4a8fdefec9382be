package backtest

import (
	"fmt"
	"io"
	"math"
	"time"

	"github.com/rustyeddy/backsim/market"
	"github.com/rustyeddy/backsim/sim"
)

// Result is the summary of one run, computed from the closed round trips
// and the equity curve.
type Result struct {
	Instrument string
	Start      time.Time
	End        time.Time
	Bars       int

	StartBalance  float64
	EndBalance    float64
	TotalPnL      float64
	RealizedPnL   float64
	UnrealizedPnL float64
	Commission    float64

	TotalTrades  int
	Wins         int
	Losses       int
	WinRate      float64 // percent
	ProfitFactor float64 // gross wins / gross losses, 0 when no losing trade
	MaxDrawdown  float64 // fraction of peak equity

	EquityCurve []EquityPoint
	Matching    sim.Stats
}

func (r *Runner) summarize(bars []market.Bar, curve []EquityPoint, maxDD float64, stats sim.Stats) *Result {
	res := &Result{
		Instrument:    r.series.Instrument(),
		Start:         bars[0].Time,
		End:           bars[len(bars)-1].Time,
		Bars:          len(bars),
		StartBalance:  r.cfg.InitialBalance,
		RealizedPnL:   r.book.TotalRealized(),
		UnrealizedPnL: r.book.TotalUnrealized(),
		Commission:    r.book.TotalCommission(),
		MaxDrawdown:   maxDD,
		EquityCurve:   curve,
		Matching:      stats,
	}
	res.TotalPnL = res.RealizedPnL + res.UnrealizedPnL
	res.EndBalance = res.StartBalance + res.RealizedPnL

	grossWins, grossLosses := 0.0, 0.0
	for _, tr := range r.book.ClosedTrades() {
		res.TotalTrades++
		switch {
		case tr.PnL > 0:
			res.Wins++
			grossWins += tr.PnL
		case tr.PnL < 0:
			res.Losses++
			grossLosses += -tr.PnL
		}
	}
	if res.TotalTrades > 0 {
		res.WinRate = 100 * float64(res.Wins) / float64(res.TotalTrades)
	}
	if grossLosses > 0 {
		res.ProfitFactor = grossWins / grossLosses
	}
	return res
}

// Print writes a human-readable run report.
func (res *Result) Print(w io.Writer) {
	fmt.Fprintln(w, "==================================================")
	fmt.Fprintln(w, " Simulation Result")
	fmt.Fprintln(w, "==================================================")
	fmt.Fprintf(w, "Instrument:    %s\n", res.Instrument)
	fmt.Fprintf(w, "Bars:          %d\n", res.Bars)
	fmt.Fprintf(w, "Start:         %s\n", res.Start.Format(time.RFC3339))
	fmt.Fprintf(w, "End:           %s\n", res.End.Format(time.RFC3339))

	fmt.Fprintln(w)
	fmt.Fprintln(w, "Trade Statistics")
	fmt.Fprintln(w, "--------------------------------------------------")
	fmt.Fprintf(w, "Trades:        %d\n", res.TotalTrades)
	fmt.Fprintf(w, "Wins:          %d\n", res.Wins)
	fmt.Fprintf(w, "Losses:        %d\n", res.Losses)
	fmt.Fprintf(w, "Win Rate:      %.2f%%\n", res.WinRate)
	if res.ProfitFactor > 0 {
		fmt.Fprintf(w, "Profit Factor: %.2f\n", res.ProfitFactor)
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, "Account Performance")
	fmt.Fprintln(w, "--------------------------------------------------")
	fmt.Fprintf(w, "Start Balance: %.2f\n", res.StartBalance)
	fmt.Fprintf(w, "End Balance:   %.2f\n", res.EndBalance)
	fmt.Fprintf(w, "Net P/L:       %.2f\n", res.TotalPnL)
	fmt.Fprintf(w, "Commission:    %.2f\n", res.Commission)
	if res.StartBalance > 0 {
		fmt.Fprintf(w, "Return:        %.2f%%\n", 100*res.TotalPnL/res.StartBalance)
	}
	if res.MaxDrawdown > 0 {
		fmt.Fprintf(w, "Max Drawdown:  %.2f%%\n", 100*res.MaxDrawdown)
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, "Matching")
	fmt.Fprintln(w, "--------------------------------------------------")
	fmt.Fprintf(w, "Ticks:         %d\n", res.Matching.Ticks)
	fmt.Fprintf(w, "Fills:         %d\n", res.Matching.Fills)
	fmt.Fprintf(w, "Partial Fills: %d\n", res.Matching.PartialFills)
	fmt.Fprintf(w, "Expired:       %d\n", res.Matching.Expired)
	fmt.Fprintln(w)
}

// FinalEquity returns the last equity sample, or NaN on an empty curve.
func (res *Result) FinalEquity() float64 {
	if len(res.EquityCurve) == 0 {
		return math.NaN()
	}
	return res.EquityCurve[len(res.EquityCurve)-1].Equity
}
