// Package router turns strategy intents into ledger orders. It owns bracket
// construction, one-cancels-other resolution, and the close-then-open
// sequencing of reversals.
package router

import (
	"errors"
	"fmt"
	"time"

	"github.com/rustyeddy/backsim/ledger"
	"github.com/rustyeddy/backsim/pkg/id"
	"github.com/rustyeddy/backsim/portfolio"
	"github.com/rustyeddy/backsim/risk"
	"github.com/rustyeddy/backsim/strategies"
)

// ErrRiskRejected wraps intents blocked by the pre-submission risk checks.
// The run continues; the intent is simply not acted on.
var ErrRiskRejected = errors.New("intent rejected by risk checks")

// Config holds the routing knobs.
type Config struct {
	Limits          risk.Limits
	DefaultQuantity float64 // used when an intent carries no quantity
	EnableBrackets  bool    // honor StopLoss/TakeProfit on intents

	// UseMarketOrders submits entries as market orders. When false the
	// entry is a limit order at the intent's LimitPrice. Exits and
	// reversal closes are always market orders.
	UseMarketOrders bool
}

// Router converts intents into orders against a single ledger. All order
// submission in a run flows through here so the bracket and reversal
// bookkeeping stays consistent.
type Router struct {
	cfg    Config
	ledger *ledger.Ledger
	book   *portfolio.Tracker
	gen    *id.Generator

	// legs maps an unresolved entry's ID to its resting bracket orders,
	// so they can be torn down or resized if the entry dies unfilled.
	legs map[string]bracketLegs

	// reversals maps a closing order's ID to the entry that must follow
	// once the close is observed filled.
	reversals map[string]pendingEntry
}

type bracket struct {
	stop *float64
	take *float64
}

type bracketLegs struct {
	stopID string
	takeID string
}

type pendingEntry struct {
	side     ledger.Side
	quantity float64
	limit    *float64
	bracket  bracket
}

func New(cfg Config, led *ledger.Ledger, book *portfolio.Tracker, gen *id.Generator) *Router {
	return &Router{
		cfg:       cfg,
		ledger:    led,
		book:      book,
		gen:       gen,
		legs:      make(map[string]bracketLegs),
		reversals: make(map[string]pendingEntry),
	}
}

// HandleIntent routes one strategy intent observed on the given instrument
// at the given simulated time. A nil or hold intent is a no-op.
func (r *Router) HandleIntent(intent *strategies.Intent, instrument string, now time.Time) error {
	if intent == nil || intent.Kind == strategies.Hold {
		return nil
	}

	switch intent.Kind {
	case strategies.EnterLong:
		return r.enter(instrument, ledger.Buy, r.quantity(intent), intent.LimitPrice, bracketFrom(intent), now)
	case strategies.EnterShort:
		return r.enter(instrument, ledger.Sell, r.quantity(intent), intent.LimitPrice, bracketFrom(intent), now)
	case strategies.Exit:
		return r.exit(instrument, now)
	case strategies.Reverse:
		return r.reverse(intent, instrument, now)
	default:
		return fmt.Errorf("router: unknown intent kind %v", intent.Kind)
	}
}

func (r *Router) quantity(intent *strategies.Intent) float64 {
	if intent.Quantity > 0 {
		return intent.Quantity
	}
	return r.cfg.DefaultQuantity
}

func bracketFrom(intent *strategies.Intent) bracket {
	return bracket{stop: intent.StopLoss, take: intent.TakeProfit}
}

// enter risk-checks and submits a new entry order together with its bracket
// legs. The legs rest against the not-yet-filled entry so a stop or target
// crossed in the same bar the entry fills is honored.
func (r *Router) enter(instrument string, side ledger.Side, qty float64, limit *float64, br bracket, now time.Time) error {
	pos := r.book.Position(instrument)

	snap := risk.Snapshot{OpenOrders: len(r.ledger.Pending(instrument))}
	if !pos.Flat() {
		snap.PositionSide = pos.Side
		snap.PositionQuantity = pos.Quantity
	}

	decision := risk.Evaluate(r.cfg.Limits, risk.OrderIntent{
		Instrument: instrument,
		Side:       side,
		Quantity:   qty,
	}, snap)
	if !decision.Allowed {
		return fmt.Errorf("%w: %s", ErrRiskRejected, decision.Reason())
	}

	typ := ledger.Market
	if !r.cfg.UseMarketOrders {
		if limit == nil {
			return fmt.Errorf("router: limit entries configured but the intent carries no price")
		}
		typ = ledger.Limit
	}

	o := &ledger.Order{
		Instrument: instrument,
		Side:       side,
		Type:       typ,
		Quantity:   qty,
		Role:       ledger.RoleEntry,
		TradeID:    r.gen.Next(now),
	}
	if typ == ledger.Limit {
		o.LimitPrice = limit
	}
	if err := r.ledger.Submit(o, now); err != nil {
		return err
	}

	if r.cfg.EnableBrackets && (br.stop != nil || br.take != nil) {
		refs, err := r.submitBracket(o, br, o.Quantity, now)
		if err != nil {
			return err
		}
		r.legs[o.ID] = refs
	}
	return nil
}

// exit cancels every working order on the instrument and submits a market
// order flattening the position.
func (r *Router) exit(instrument string, now time.Time) error {
	if _, err := r.cancelWorking(instrument, "exit requested"); err != nil {
		return err
	}

	pos := r.book.Position(instrument)
	if pos.Flat() {
		return nil
	}

	o := &ledger.Order{
		Instrument: instrument,
		Side:       pos.Side.Opposite(),
		Type:       ledger.Market,
		Quantity:   pos.Quantity,
		Role:       ledger.RoleExit,
	}
	return r.ledger.Submit(o, now)
}

// reverse flattens first and holds the opposite entry until the closing
// fill is observed, so the account is never double-exposed mid-flip.
func (r *Router) reverse(intent *strategies.Intent, instrument string, now time.Time) error {
	pos := r.book.Position(instrument)
	if pos.Flat() {
		return fmt.Errorf("router: reverse with no open position in %s", instrument)
	}
	newSide := pos.Side.Opposite()

	if _, err := r.cancelWorking(instrument, "reversal requested"); err != nil {
		return err
	}

	o := &ledger.Order{
		Instrument: instrument,
		Side:       newSide,
		Type:       ledger.Market,
		Quantity:   pos.Quantity,
		Role:       ledger.RoleExit,
	}
	if err := r.ledger.Submit(o, now); err != nil {
		return err
	}

	r.reversals[o.ID] = pendingEntry{
		side:     newSide,
		quantity: r.quantity(intent),
		limit:    intent.LimitPrice,
		bracket:  bracketFrom(intent),
	}
	return nil
}

// cancelWorking cancels every non-terminal order on the instrument and
// drops the bracket bookkeeping of any cancelled entry.
func (r *Router) cancelWorking(instrument, reason string) (int, error) {
	n := 0
	for _, o := range r.ledger.Pending(instrument) {
		if o.Status.Terminal() {
			// A sibling cancel earlier in this loop may have closed it.
			continue
		}
		if err := r.ledger.Cancel(o.ID, reason); err != nil {
			return n, err
		}
		delete(r.legs, o.ID)
		n++
	}
	return n, nil
}

// OnFill is invoked by the simulation loop for every fill after it has been
// applied to the ledger and portfolio. It resolves one-cancels-other pairs
// and reversal continuations within the same pass.
func (r *Router) OnFill(f ledger.Fill, o *ledger.Order) error {
	if !f.IsComplete || o.Status != ledger.StatusFilled {
		return nil
	}

	switch o.Role {
	case ledger.RoleEntry:
		// The legs were placed at submission and now stand on their own.
		delete(r.legs, o.ID)

	case ledger.RoleStopLoss, ledger.RoleTakeProfit:
		if o.SiblingID != "" {
			if sib, err := r.ledger.Get(o.SiblingID); err == nil && !sib.Status.Terminal() {
				if err := r.ledger.Cancel(sib.ID, "sibling filled"); err != nil {
					return err
				}
			}
		}

	case ledger.RoleExit:
		if pe, ok := r.reversals[o.ID]; ok {
			delete(r.reversals, o.ID)
			return r.enter(o.Instrument, pe.side, pe.quantity, pe.limit, pe.bracket, f.Time)
		}
	}
	return nil
}

// OnCancel is invoked by the simulation loop after it cancels or expires an
// order outside the router's own calls. Bracket legs of a dead entry are
// torn down, or resized to the entry's filled quantity when the entry went
// partially filled; an expired leg takes its sibling with it; a dead closing
// order drops its pending reversal.
func (r *Router) OnCancel(o *ledger.Order, now time.Time) error {
	switch o.Role {
	case ledger.RoleEntry:
		refs, ok := r.legs[o.ID]
		if !ok {
			return nil
		}
		delete(r.legs, o.ID)

		var br bracket
		if refs.stopID != "" {
			if leg, err := r.ledger.Get(refs.stopID); err == nil {
				br.stop = leg.StopPrice
			}
		}
		if refs.takeID != "" {
			if leg, err := r.ledger.Get(refs.takeID); err == nil {
				br.take = leg.LimitPrice
			}
		}

		reason := "entry " + o.Status.String()
		for _, legID := range []string{refs.stopID, refs.takeID} {
			if legID == "" {
				continue
			}
			leg, err := r.ledger.Get(legID)
			if err != nil || leg.Status.Terminal() {
				continue
			}
			if err := r.ledger.Cancel(legID, reason); err != nil {
				return err
			}
		}

		if o.FilledQuantity > 1e-9 {
			// Part of the position opened before the entry died; put the
			// protection back on at the filled size.
			_, err := r.submitBracket(o, br, o.FilledQuantity, now)
			return err
		}

	case ledger.RoleStopLoss, ledger.RoleTakeProfit:
		if o.SiblingID != "" {
			if sib, err := r.ledger.Get(o.SiblingID); err == nil && !sib.Status.Terminal() {
				return r.ledger.Cancel(sib.ID, "sibling expired")
			}
		}

	case ledger.RoleExit:
		delete(r.reversals, o.ID)
	}
	return nil
}

// submitBracket places the stop-loss and take-profit legs against an entry,
// cross-linked so either fill cancels the other.
func (r *Router) submitBracket(entry *ledger.Order, br bracket, qty float64, now time.Time) (bracketLegs, error) {
	exitSide := entry.Side.Opposite()

	var refs bracketLegs
	var stop, take *ledger.Order

	if br.stop != nil {
		stop = &ledger.Order{
			Instrument: entry.Instrument,
			Side:       exitSide,
			Type:       ledger.Stop,
			Quantity:   qty,
			StopPrice:  br.stop,
			Role:       ledger.RoleStopLoss,
			TradeID:    entry.TradeID,
		}
		if err := r.ledger.Submit(stop, now); err != nil {
			return refs, err
		}
		refs.stopID = stop.ID
	}

	if br.take != nil {
		take = &ledger.Order{
			Instrument: entry.Instrument,
			Side:       exitSide,
			Type:       ledger.Limit,
			Quantity:   qty,
			LimitPrice: br.take,
			Role:       ledger.RoleTakeProfit,
			TradeID:    entry.TradeID,
		}
		if err := r.ledger.Submit(take, now); err != nil {
			return refs, err
		}
		refs.takeID = take.ID
	}

	if stop != nil && take != nil {
		stop.SiblingID = take.ID
		take.SiblingID = stop.ID
	}
	return refs, nil
}

// PendingBrackets reports how many entries still have bracket legs resting
// against an unresolved entry. Used by tests and the loop's final
// consistency check.
func (r *Router) PendingBrackets() int { return len(r.legs) }

// PendingReversals reports reversals still waiting on their closing fill.
func (r *Router) PendingReversals() int { return len(r.reversals) }

// Reset clears all routing state between runs.
func (r *Router) Reset() {
	r.legs = make(map[string]bracketLegs)
	r.reversals = make(map[string]pendingEntry)
}
