package trading

import (
	"context"
	"fmt"
	"math"
	"sync"

	"github.com/shopspring/decimal"

	"makerfill/internal/core"
	"makerfill/internal/metrics"
)

// SymbolTrader works one target position by posting and replacing a single
// resting post-only limit order until the target notional is filled or
// deemed filled.
//
// All state is guarded by the trader's own mutex; the dispatch path, the
// completion watcher and the summary builder all go through it. The
// inflight flag is a secondary guard inside the locked section: gateway
// calls take far longer than the lock is held, and the flag prevents
// queuing a second action before the venue has acknowledged the first.
type SymbolTrader struct {
	mu sync.Mutex

	position core.TargetPosition
	info     core.InstrumentInfo
	gateway  core.ActionGateway
	logger   core.ILogger
	recorder *metrics.Recorder

	ledger *Ledger
	order  *core.RestingOrder
	mids   []core.MidPoint

	priceAtStart  float64
	hasStartPrice bool
	inflight      bool
	completed     bool
}

// NewSymbolTrader creates the state machine for one target position.
func NewSymbolTrader(position core.TargetPosition, info core.InstrumentInfo, gateway core.ActionGateway, logger core.ILogger, recorder *metrics.Recorder) *SymbolTrader {
	return &SymbolTrader{
		position: position,
		info:     info,
		gateway:  gateway,
		logger:   logger.WithField("symbol", position.Symbol),
		recorder: recorder,
		ledger:   NewLedger(position.IsLong()),
	}
}

// snapshotFromDepth derives the normalized quote reading from a raw
// order-book tick. An empty bid or ask side is a malformed venue message
// and aborts processing.
func snapshotFromDepth(ev core.DepthUpdate) (core.QuoteSnapshot, error) {
	if len(ev.Bids) == 0 || len(ev.Asks) == 0 {
		return core.QuoteSnapshot{}, fmt.Errorf("malformed depth update: empty bid or ask side")
	}
	bestBid := ev.Bids[0].Price
	bestAsk := ev.Asks[0].Price
	return core.QuoteSnapshot{
		BestBid:   bestBid,
		BestAsk:   bestAsk,
		Mid:       (bestBid + bestAsk) / 2,
		Timestamp: ev.EventTime,
	}, nil
}

// HandleDepthUpdate reacts to one market-data tick. A returned error is
// fatal for the whole run.
func (t *SymbolTrader) HandleDepthUpdate(ctx context.Context, ev core.DepthUpdate) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.completed {
		return nil
	}

	quote, err := snapshotFromDepth(ev)
	if err != nil {
		return fmt.Errorf("%s: %w", t.position.Symbol, err)
	}
	if !t.hasStartPrice {
		t.priceAtStart = quote.Mid
		t.hasStartPrice = true
	}
	t.mids = append(t.mids, core.MidPoint{Mid: quote.Mid, Timestamp: quote.Timestamp})

	if t.order != nil {
		if t.isStale(quote) {
			return t.cancelResting(ctx)
		}
		return nil
	}
	return t.placeOrder(ctx, quote)
}

// isStale reports whether the market has moved through the resting price:
// a long order below the best bid, a short order above the best ask.
func (t *SymbolTrader) isStale(quote core.QuoteSnapshot) bool {
	if t.position.IsLong() {
		return t.order.Price < quote.BestBid
	}
	return t.order.Price > quote.BestAsk
}

func (t *SymbolTrader) cancelResting(ctx context.Context) error {
	if t.inflight {
		return nil
	}
	t.inflight = true

	outcome := t.gateway.Cancel(ctx, t.position.Symbol, t.order.OrderID)
	switch outcome.Kind {
	case core.OutcomeOK, core.OutcomeAlreadyGone:
		t.order = nil
		t.inflight = false
		return nil
	default:
		return fmt.Errorf("%s: cancel order %d: %s: %w",
			t.position.Symbol, t.order.OrderID, outcome.Kind, outcome.Err)
	}
}

func (t *SymbolTrader) placeOrder(ctx context.Context, quote core.QuoteSnapshot) error {
	if t.inflight {
		return nil
	}

	remaining := t.position.Notional - t.ledger.FilledNotional()
	if math.Abs(remaining) < t.info.MinNotional {
		t.setCompleted()
		return nil
	}

	qty := decimal.NewFromFloat(remaining / quote.Mid).
		Round(int32(t.info.QuantityPrecision)).
		InexactFloat64()
	price := quote.BestAsk
	if t.position.IsLong() {
		price = quote.BestBid
	}

	t.logger.Debug("placing order",
		"remaining_notional", remaining, "qty", qty, "price", price)

	t.inflight = true
	order, outcome := t.gateway.Place(ctx, core.PlaceOrderRequest{
		Symbol:            t.position.Symbol,
		Side:              t.position.Side(),
		Quantity:          math.Abs(qty),
		Price:             price,
		ReduceOnly:        t.position.ReduceOnly,
		QuantityPrecision: t.info.QuantityPrecision,
		PricePrecision:    t.info.PricePrecision,
	})

	switch outcome.Kind {
	case core.OutcomeOK:
		t.order = &order
		t.inflight = false
		return nil
	case core.OutcomeAlreadyGone:
		// Post-only order would have crossed; re-quote on the next tick.
		t.order = nil
		t.inflight = false
		return nil
	case core.OutcomeBelowMinimumSize, core.OutcomeNotionalTooSmall:
		t.logger.Info("remaining size under venue minimum, considering filled",
			"remaining_notional", remaining)
		t.setCompleted()
		t.inflight = false
		return nil
	case core.OutcomeReduceOnlyRejected:
		if t.position.ReduceOnly {
			t.logger.Info("position fully reduced")
			t.setCompleted()
			t.inflight = false
			return nil
		}
		return fmt.Errorf("%s: reduce-only rejection on a non-reduce-only target: %w",
			t.position.Symbol, outcome.Err)
	default:
		return fmt.Errorf("%s: place order: %s: %w",
			t.position.Symbol, outcome.Kind, outcome.Err)
	}
}

// HandleOrderUpdate ingests one execution report concerning this symbol's
// orders. Duplicate (NEW,NEW) and (CANCELED,CANCELED) echoes are ignored;
// everything else is appended to the fill history. Only a fully filled
// report clears the resting order: a partial fill means the order is still
// live and not stale.
func (t *SymbolTrader) HandleOrderUpdate(ev core.OrderUpdate) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.completed {
		return
	}

	t.inflight = true
	defer func() { t.inflight = false }()

	if ev.ExecutionType == core.OrderStatusNew && ev.Status == core.OrderStatusNew {
		return
	}
	if ev.ExecutionType == core.OrderStatusCanceled && ev.Status == core.OrderStatusCanceled {
		return
	}

	t.ledger.Append(core.FillEvent{
		Qty:       ev.LastFilledQty,
		Price:     ev.LastFilledPrice,
		AvgPrice:  ev.AvgPrice,
		Timestamp: ev.TradeTime,
	})
	t.recorder.RecordFill(t.position.Symbol, math.Abs(t.ledger.FilledNotional()))
	t.logger.Debug("fill recorded",
		"qty", ev.LastFilledQty, "price", ev.LastFilledPrice, "status", ev.Status,
		"fills", t.ledger.Len())

	if t.order != nil && t.order.OrderID == ev.OrderID && ev.Status == core.OrderStatusFilled {
		t.order = nil
	}
}

func (t *SymbolTrader) setCompleted() {
	t.completed = true
	t.recorder.RecordCompleted(t.position.Symbol)
	t.logger.Info("target complete")
}

// Completed reports whether the trader reached its terminal state.
func (t *SymbolTrader) Completed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.completed
}

// Position returns the immutable target position.
func (t *SymbolTrader) Position() core.TargetPosition {
	return t.position
}

// Summary snapshots the trader into a reporting record. Pure read.
func (t *SymbolTrader) Summary() core.SymbolSummary {
	t.mu.Lock()
	defer t.mu.Unlock()

	summary := core.SymbolSummary{
		Position: t.position,
		Mids:     append([]core.MidPoint(nil), t.mids...),
		Trades:   t.ledger.Trades(),
	}
	if t.hasStartPrice {
		v := t.priceAtStart
		summary.PriceAtStart = &v
	}
	if v, ok := t.ledger.AvgEntry(); ok {
		summary.AvgEntry = &v
	}
	if v, ok := t.ledger.MatchedQty(); ok {
		summary.MatchedQty = &v
	}
	if ts, ok := t.ledger.LastTimestamp(); ok {
		summary.CompletedAt = &ts
	}
	return summary
}
