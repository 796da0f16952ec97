// Package trading implements the per-symbol execution state machine and
// the fill accounting it is driven by.
package trading

import "makerfill/internal/core"

// Ledger accumulates the fill events for one symbol. The event sequence is
// the single source of truth: every derived quantity is recomputed from it
// on read, never cached.
type Ledger struct {
	long   bool
	events []core.FillEvent
}

// NewLedger creates a ledger for a long or short target.
func NewLedger(long bool) *Ledger {
	return &Ledger{long: long}
}

// Append adds one accepted fill event. Events are never mutated or removed.
func (l *Ledger) Append(ev core.FillEvent) {
	l.events = append(l.events, ev)
}

// Len returns the number of accepted events.
func (l *Ledger) Len() int {
	return len(l.events)
}

// sign flips aggregate quantities to match the target side: positive for
// long targets, negative for short.
func (l *Ledger) sign() float64 {
	if l.long {
		return 1
	}
	return -1
}

// MatchedQty returns the signed sum of filled quantities. The second return
// is false when no events have been accepted.
func (l *Ledger) MatchedQty() (float64, bool) {
	if len(l.events) == 0 {
		return 0, false
	}
	var total float64
	for _, ev := range l.events {
		total += ev.Qty
	}
	return total * l.sign(), true
}

// AvgEntry returns the quantity-weighted mean of fill prices. Undefined
// (false) when the sequence is empty.
func (l *Ledger) AvgEntry() (float64, bool) {
	if len(l.events) == 0 {
		return 0, false
	}
	var tradedValue, totalQty float64
	for _, ev := range l.events {
		tradedValue += ev.Qty * ev.Price
		totalQty += ev.Qty
	}
	return tradedValue / totalQty, true
}

// FilledNotional returns the signed sum of average-price-at-report times
// filled quantity. Zero when empty.
func (l *Ledger) FilledNotional() float64 {
	var total float64
	for _, ev := range l.events {
		total += ev.AvgPrice * ev.Qty
	}
	return total * l.sign()
}

// LastTimestamp returns the timestamp of the last appended event.
func (l *Ledger) LastTimestamp() (int64, bool) {
	if len(l.events) == 0 {
		return 0, false
	}
	return l.events[len(l.events)-1].Timestamp, true
}

// Trades returns the fill history as (price, qty, timestamp) records.
func (l *Ledger) Trades() []core.TradeFill {
	trades := make([]core.TradeFill, len(l.events))
	for i, ev := range l.events {
		trades[i] = core.TradeFill{
			Price:     ev.Price,
			Qty:       ev.Qty,
			Timestamp: ev.Timestamp,
		}
	}
	return trades
}
