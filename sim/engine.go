package sim

import (
	"fmt"
	"math"
	"math/rand"
	"sort"
	"time"

	"github.com/rustyeddy/backsim/ledger"
	"github.com/rustyeddy/backsim/market"
	"github.com/rustyeddy/backsim/synth"
)

// Cancellation reports an order the engine wants cancelled after the bar.
type Cancellation struct {
	OrderID string
	Reason  string
}

// Stats summarizes one bar's matching pass.
type Stats struct {
	Ticks        int
	Evaluations  int
	Fills        int
	PartialFills int
	Expired      int
}

// Report is the outcome of matching one bar.
type Report struct {
	Fills         []ledger.Fill
	Cancellations []Cancellation
	Triggered     []string // stop-limits whose stop condition fired this bar
	Stats         Stats
}

// Engine walks a bar's synthetic tick sequence and matches pending orders
// against it. The engine never mutates orders; it reports fills and
// cancellations for the owning loop to apply through the ledger.
type Engine struct {
	settings Settings
	synth    *synth.Synthesizer
	rng      *rand.Rand

	barVolume float64 // volume of the bar currently being processed
}

// NewEngine builds a matching engine sharing the run's seeded rng.
func NewEngine(settings Settings, sy *synth.Synthesizer, rng *rand.Rand) *Engine {
	return &Engine{settings: settings, synth: sy, rng: rng}
}

// orderState is the engine's per-bar view of one pending order.
type orderState struct {
	order     *ledger.Order
	seq       int // submission position, final tie-break
	remaining float64
	triggered bool
}

// ProcessBar expands the bar into ticks and evaluates every pending order
// against each tick in sequence order.
func (e *Engine) ProcessBar(bar market.Bar, pending []*ledger.Order) (Report, error) {
	var rep Report

	ticks, err := e.synth.Expand(bar)
	if err != nil {
		return rep, fmt.Errorf("sim: %w", err)
	}
	rep.Stats.Ticks = len(ticks)
	e.barVolume = bar.Volume

	states := make([]*orderState, 0, len(pending))
	for i, o := range pending {
		if o.Status.Terminal() {
			return rep, fmt.Errorf("sim: pending order %s is terminal (%s)", o.ID, o.Status)
		}
		if o.Instrument != bar.Instrument {
			continue
		}
		states = append(states, &orderState{
			order:     o,
			seq:       i,
			remaining: o.Remaining(),
			triggered: o.Triggered,
		})
	}

	for _, tick := range ticks {
		e.sortByPriority(states)

		for _, st := range states {
			if st.remaining <= 1e-9 {
				continue
			}
			rep.Stats.Evaluations++

			price, reason, ok := e.match(st, tick)
			if !ok {
				continue
			}

			qty := e.fillQuantity(st, bar, tick)
			if qty <= 1e-9 {
				continue
			}

			fill := e.makeFill(st.order, bar, tick, price, qty, reason)
			st.remaining -= qty
			if st.remaining > 1e-9 {
				fill.IsComplete = false
				fill.Reason = ledger.ReasonPartial
				rep.Stats.PartialFills++
			}

			rep.Fills = append(rep.Fills, fill)
			rep.Stats.Fills++
		}
	}

	// Time-in-force: anything still carrying quantity past the window is
	// cancelled with reason "expired".
	if e.settings.TimeInForce > 0 && len(ticks) > 0 {
		barEnd := ticks[len(ticks)-1].Time
		for _, st := range states {
			if st.remaining <= 1e-9 {
				continue
			}
			if barEnd.Sub(st.order.SubmittedAt) >= e.settings.TimeInForce {
				rep.Cancellations = append(rep.Cancellations, Cancellation{
					OrderID: st.order.ID,
					Reason:  "expired",
				})
				rep.Stats.Expired++
			}
		}
	}

	for _, st := range states {
		if st.triggered && !st.order.Triggered {
			rep.Triggered = append(rep.Triggered, st.order.ID)
		}
	}

	return rep, nil
}

// match decides whether the order executes at this tick and at what raw
// price, before quantity caps.
func (e *Engine) match(st *orderState, tick synth.Tick) (float64, ledger.FillReason, bool) {
	o := st.order

	switch o.Type {
	case ledger.Market:
		return e.adverse(tick.Price, o.Side, o.Quantity), ledger.ReasonMarket, true

	case ledger.Limit:
		if !limitTouched(o.Side, tick.Price, *o.LimitPrice) {
			return 0, "", false
		}
		reason := ledger.ReasonLimitTouch
		if tick.Seq == 0 && improves(o.Side, tick.Price, *o.LimitPrice) {
			// The bar opened through the limit: a gap fill at the open.
			reason = ledger.ReasonGap
		}
		return e.limitFillPrice(o.Side, tick.Price, *o.LimitPrice), reason, true

	case ledger.Stop:
		if !stopTriggered(o.Side, tick.Price, *o.StopPrice) {
			return 0, "", false
		}
		reason := ledger.ReasonStopTrigger
		if tick.Seq == 0 && gappedThroughStop(o.Side, tick.Price, *o.StopPrice) {
			reason = ledger.ReasonGap
		}
		// Becomes a market fill at this tick.
		return e.adverse(tick.Price, o.Side, o.Quantity), reason, true

	case ledger.StopLimit:
		if !st.triggered {
			if !stopTriggered(o.Side, tick.Price, *o.StopPrice) {
				return 0, "", false
			}
			st.triggered = true
			// Fall through: the limit is evaluated on this same tick.
		}
		if !limitTouched(o.Side, tick.Price, *o.LimitPrice) {
			return 0, "", false
		}
		return e.limitFillPrice(o.Side, tick.Price, *o.LimitPrice), ledger.ReasonStopTrigger, true
	}

	return 0, "", false
}

// limitTouched: buy fills at or below the limit, sell at or above.
func limitTouched(side ledger.Side, tickPrice, limit float64) bool {
	if side == ledger.Buy {
		return tickPrice <= limit
	}
	return tickPrice >= limit
}

// improves reports a strictly better-than-limit price.
func improves(side ledger.Side, tickPrice, limit float64) bool {
	if side == ledger.Buy {
		return tickPrice < limit
	}
	return tickPrice > limit
}

// stopTriggered: buy triggers at or above the stop, sell at or below.
func stopTriggered(side ledger.Side, tickPrice, stop float64) bool {
	if side == ledger.Buy {
		return tickPrice >= stop
	}
	return tickPrice <= stop
}

// gappedThroughStop means the first tick was already strictly past the stop.
func gappedThroughStop(side ledger.Side, tickPrice, stop float64) bool {
	if side == ledger.Buy {
		return tickPrice > stop
	}
	return tickPrice < stop
}

// adverse applies market/stop slippage: the buyer pays more, the seller
// receives less, with bounded seeded jitter.
func (e *Engine) adverse(price float64, side ledger.Side, orderQty float64) float64 {
	s := e.settings.Slippage
	if !s.Enabled {
		return price
	}
	slip := e.slipAmount(price, s.Value, orderQty)
	return price + slip*float64(side)
}

// limitFillPrice fills at the tick price, charging the smaller aggressive
// slippage only when the tick improves on the limit; the result never goes
// through the limit.
func (e *Engine) limitFillPrice(side ledger.Side, tickPrice, limit float64) float64 {
	s := e.settings.Slippage
	if !s.Enabled || !improves(side, tickPrice, limit) {
		return tickPrice
	}
	slip := e.slipAmount(tickPrice, s.AggressiveValue, 0)
	price := tickPrice + slip*float64(side)
	if side == ledger.Buy && price > limit {
		price = limit
	}
	if side == ledger.Sell && price < limit {
		price = limit
	}
	return price
}

// slipAmount converts the configured value into price units and applies
// bounded jitter from the run's seeded generator.
func (e *Engine) slipAmount(price, value, orderQty float64) float64 {
	if value <= 0 {
		return 0
	}

	var slip float64
	switch e.settings.Slippage.Kind {
	case SlippageFixed:
		slip = value
	case SlippageVolumeBased:
		slip = price * value / 10000 * e.volumeScale(orderQty)
	default: // percentage (bps)
		slip = price * value / 10000
	}

	if j := e.settings.Slippage.JitterFrac; j > 0 {
		slip *= 1 + (e.rng.Float64()*2-1)*j
	}
	if slip < 0 {
		slip = 0
	}
	return slip
}

// volumeScale grows slippage with the order's share of the current bar's
// volume.
func (e *Engine) volumeScale(orderQty float64) float64 {
	if e.barVolume <= 0 || orderQty <= 0 {
		return 1
	}
	return 1 + orderQty/e.barVolume
}

// fillQuantity caps the fill at (a) the per-tick fraction of order size and
// (b) the volume-impact share of the tick's allotted volume.
func (e *Engine) fillQuantity(st *orderState, bar market.Bar, tick synth.Tick) float64 {
	qty := st.remaining
	if !e.settings.AllowPartialFills {
		return qty
	}

	if f := e.settings.MaxFillFractionPerTick; f > 0 {
		if limit := st.order.Quantity * f; limit < qty {
			qty = limit
		}
	}

	thr := e.settings.VolumeImpactThreshold
	if thr > 0 && bar.Volume > 0 && st.order.Quantity > thr*bar.Volume {
		// Oversized order: only a proportional share of this tick's volume.
		share := thr * bar.Volume / st.order.Quantity
		tickVolume := bar.Volume * tick.VolumeShare
		if limit := tickVolume * share; limit < qty {
			qty = limit
		}
	}

	if qty > st.remaining {
		qty = st.remaining
	}
	return qty
}

// makeFill assembles the fill record, applying latency to the recorded
// timestamp only.
func (e *Engine) makeFill(o *ledger.Order, bar market.Bar, tick synth.Tick, price, qty float64, reason ledger.FillReason) ledger.Fill {
	lat := e.settings.Latency.Mean
	if j := e.settings.Latency.Jitter; j > 0 {
		lat += time.Duration((e.rng.Float64()*2 - 1) * float64(j))
	}
	if lat < 0 {
		lat = 0
	}

	return ledger.Fill{
		OrderID:    o.ID,
		Instrument: o.Instrument,
		Side:       o.Side,
		TradeID:    o.TradeID,
		Role:       o.Role,
		Price:      price,
		Quantity:   qty,
		Time:       tick.Time.Add(lat),
		Slippage:   (price - tick.Price), // signed, zero when slippage disabled
		Latency:    lat,
		Reason:     reason,
		IsComplete: true,
	}
}

// sortByPriority orders eligible orders within a tick: the configured
// primary key first, submission order always last.
func (e *Engine) sortByPriority(states []*orderState) {
	mode := e.settings.Priority
	sort.SliceStable(states, func(i, j int) bool {
		a, b := states[i], states[j]

		switch mode {
		case PriorityAggressiveness:
			if aa, ba := aggressiveness(a.order), aggressiveness(b.order); aa != ba {
				return aa > ba
			}
			if !a.order.SubmittedAt.Equal(b.order.SubmittedAt) {
				return a.order.SubmittedAt.Before(b.order.SubmittedAt)
			}
			if a.order.Quantity != b.order.Quantity {
				return a.order.Quantity > b.order.Quantity
			}
		case PrioritySize:
			if a.order.Quantity != b.order.Quantity {
				return a.order.Quantity > b.order.Quantity
			}
			if !a.order.SubmittedAt.Equal(b.order.SubmittedAt) {
				return a.order.SubmittedAt.Before(b.order.SubmittedAt)
			}
			if aa, ba := aggressiveness(a.order), aggressiveness(b.order); aa != ba {
				return aa > ba
			}
		default: // PrioritySubmission
			if !a.order.SubmittedAt.Equal(b.order.SubmittedAt) {
				return a.order.SubmittedAt.Before(b.order.SubmittedAt)
			}
			if aa, ba := aggressiveness(a.order), aggressiveness(b.order); aa != ba {
				return aa > ba
			}
			if a.order.Quantity != b.order.Quantity {
				return a.order.Quantity > b.order.Quantity
			}
		}
		return a.seq < b.seq
	})
}

// aggressiveness ranks how soon an order would execute: market orders beat
// everything; a higher buy limit (or lower sell limit) is more aggressive;
// stops rank by how close the trigger sits.
func aggressiveness(o *ledger.Order) float64 {
	switch o.Type {
	case ledger.Market:
		return math.Inf(1)
	case ledger.Limit:
		if o.Side == ledger.Buy {
			return *o.LimitPrice
		}
		return -*o.LimitPrice
	case ledger.Stop, ledger.StopLimit:
		if o.Side == ledger.Buy {
			return -*o.StopPrice
		}
		return *o.StopPrice
	}
	return 0
}
