package trading

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"makerfill/internal/core"
	"makerfill/internal/metrics"
	"makerfill/pkg/logging"
)

// mockGateway scripts Place/Cancel outcomes and records every request.
type mockGateway struct {
	mu             sync.Mutex
	placed         []core.PlaceOrderRequest
	canceled       []int64
	placeOutcomes  []core.Outcome
	cancelOutcomes []core.Outcome
	nextOrderID    int64
}

func newMockGateway() *mockGateway {
	return &mockGateway{nextOrderID: 1000}
}

func (m *mockGateway) stubPlace(outcomes ...core.Outcome) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.placeOutcomes = append(m.placeOutcomes, outcomes...)
}

func (m *mockGateway) stubCancel(outcomes ...core.Outcome) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cancelOutcomes = append(m.cancelOutcomes, outcomes...)
}

func (m *mockGateway) Place(_ context.Context, req core.PlaceOrderRequest) (core.RestingOrder, core.Outcome) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.placed = append(m.placed, req)

	outcome := core.Outcome{Kind: core.OutcomeOK}
	if len(m.placeOutcomes) > 0 {
		outcome = m.placeOutcomes[0]
		m.placeOutcomes = m.placeOutcomes[1:]
	}
	if !outcome.OK() {
		return core.RestingOrder{}, outcome
	}
	m.nextOrderID++
	return core.RestingOrder{OrderID: m.nextOrderID, ClientOrderID: "test", Price: req.Price}, outcome
}

func (m *mockGateway) Cancel(_ context.Context, _ string, orderID int64) core.Outcome {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.canceled = append(m.canceled, orderID)

	if len(m.cancelOutcomes) > 0 {
		outcome := m.cancelOutcomes[0]
		m.cancelOutcomes = m.cancelOutcomes[1:]
		return outcome
	}
	return core.Outcome{Kind: core.OutcomeOK}
}

func (m *mockGateway) placeCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.placed)
}

func (m *mockGateway) cancelCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.canceled)
}

func (m *mockGateway) lastPlaced() core.PlaceOrderRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.placed[len(m.placed)-1]
}

func (m *mockGateway) lastOrderID() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.nextOrderID
}

func testInstrument() core.InstrumentInfo {
	return core.InstrumentInfo{
		Symbol:            "BTCUSDT",
		QuantityPrecision: 3,
		PricePrecision:    2,
		MinNotional:       20,
	}
}

func newTestTrader(t *testing.T, notional float64, reduceOnly bool, gw *mockGateway) *SymbolTrader {
	t.Helper()
	pos := core.TargetPosition{Symbol: "BTCUSDT", Notional: notional, ReduceOnly: reduceOnly}
	return NewSymbolTrader(pos, testInstrument(), gw, logging.NewNop(), metrics.NewRecorder())
}

func depthTick(bid, ask float64, ts int64) core.DepthUpdate {
	return core.DepthUpdate{
		Symbol:    "BTCUSDT",
		EventTime: ts,
		Bids:      []core.PriceLevel{{Price: bid, Quantity: 1}},
		Asks:      []core.PriceLevel{{Price: ask, Quantity: 1}},
	}
}

func fullFill(orderID int64, qty, price, avgPrice float64, ts int64) core.OrderUpdate {
	return core.OrderUpdate{
		Symbol:          "BTCUSDT",
		OrderID:         orderID,
		ExecutionType:   core.ExecTypeTrade,
		Status:          core.OrderStatusFilled,
		LastFilledQty:   qty,
		LastFilledPrice: price,
		AvgPrice:        avgPrice,
		TradeTime:       ts,
	}
}

func TestTraderRejectsEmptyBookSide(t *testing.T) {
	trader := newTestTrader(t, 10000, false, newMockGateway())

	err := trader.HandleDepthUpdate(context.Background(), core.DepthUpdate{
		Symbol:    "BTCUSDT",
		EventTime: 1,
		Bids:      []core.PriceLevel{{Price: 100, Quantity: 1}},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "malformed depth update")
}

func TestTraderPlacesAtPassiveSide(t *testing.T) {
	tests := []struct {
		name      string
		notional  float64
		wantSide  core.Side
		wantPrice float64
	}{
		{name: "long posts at best bid", notional: 10000, wantSide: core.SideBuy, wantPrice: 99},
		{name: "short posts at best ask", notional: -10000, wantSide: core.SideSell, wantPrice: 101},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gw := newMockGateway()
			trader := newTestTrader(t, tt.notional, false, gw)

			require.NoError(t, trader.HandleDepthUpdate(context.Background(), depthTick(99, 101, 1)))
			require.Equal(t, 1, gw.placeCount())

			req := gw.lastPlaced()
			assert.Equal(t, tt.wantSide, req.Side)
			assert.Equal(t, tt.wantPrice, req.Price)
			// mid is 100, so quantity is |notional| / 100
			assert.InDelta(t, 100, req.Quantity, 1e-9)
			assert.Greater(t, req.Quantity, 0.0)
		})
	}
}

func TestTraderKeepsSingleRestingOrder(t *testing.T) {
	gw := newMockGateway()
	trader := newTestTrader(t, 10000, false, gw)
	ctx := context.Background()

	require.NoError(t, trader.HandleDepthUpdate(ctx, depthTick(99, 101, 1)))
	// Same book: order is not stale, nothing new is placed.
	require.NoError(t, trader.HandleDepthUpdate(ctx, depthTick(99, 101, 2)))
	require.NoError(t, trader.HandleDepthUpdate(ctx, depthTick(99, 101, 3)))

	assert.Equal(t, 1, gw.placeCount())
	assert.Equal(t, 0, gw.cancelCount())
}

func TestTraderCancelsStaleLongOrder(t *testing.T) {
	gw := newMockGateway()
	trader := newTestTrader(t, 10000, false, gw)
	ctx := context.Background()

	require.NoError(t, trader.HandleDepthUpdate(ctx, depthTick(99, 101, 1)))
	orderID := gw.lastOrderID()

	// Best bid moves above the resting price: the order is stale.
	require.NoError(t, trader.HandleDepthUpdate(ctx, depthTick(100, 102, 2)))
	require.Equal(t, 1, gw.cancelCount())
	assert.Equal(t, orderID, gw.canceled[0])

	// The next tick re-quotes at the new best bid.
	require.NoError(t, trader.HandleDepthUpdate(ctx, depthTick(100, 102, 3)))
	require.Equal(t, 2, gw.placeCount())
	assert.Equal(t, 100.0, gw.lastPlaced().Price)
}

func TestTraderCancelsStaleShortOrder(t *testing.T) {
	gw := newMockGateway()
	trader := newTestTrader(t, -10000, false, gw)
	ctx := context.Background()

	require.NoError(t, trader.HandleDepthUpdate(ctx, depthTick(99, 101, 1)))

	// Best ask moves below the resting price: the order is stale.
	require.NoError(t, trader.HandleDepthUpdate(ctx, depthTick(98, 100, 2)))
	assert.Equal(t, 1, gw.cancelCount())

	// An unmoved or worse ask does not trigger a cancel.
	gw2 := newMockGateway()
	trader2 := newTestTrader(t, -10000, false, gw2)
	require.NoError(t, trader2.HandleDepthUpdate(ctx, depthTick(99, 101, 1)))
	require.NoError(t, trader2.HandleDepthUpdate(ctx, depthTick(100, 102, 2)))
	assert.Equal(t, 0, gw2.cancelCount())
}

func TestTraderCancelAlreadyGoneClearsOrder(t *testing.T) {
	gw := newMockGateway()
	gw.stubCancel(core.Outcome{Kind: core.OutcomeAlreadyGone, Err: assert.AnError})
	trader := newTestTrader(t, 10000, false, gw)
	ctx := context.Background()

	require.NoError(t, trader.HandleDepthUpdate(ctx, depthTick(99, 101, 1)))
	require.NoError(t, trader.HandleDepthUpdate(ctx, depthTick(100, 102, 2)))

	// Order slot is free again, so the next tick places.
	require.NoError(t, trader.HandleDepthUpdate(ctx, depthTick(100, 102, 3)))
	assert.Equal(t, 2, gw.placeCount())
}

func TestTraderCancelFatalAborts(t *testing.T) {
	gw := newMockGateway()
	gw.stubCancel(core.Outcome{Kind: core.OutcomeFatal, Err: assert.AnError})
	trader := newTestTrader(t, 10000, false, gw)
	ctx := context.Background()

	require.NoError(t, trader.HandleDepthUpdate(ctx, depthTick(99, 101, 1)))
	err := trader.HandleDepthUpdate(ctx, depthTick(100, 102, 2))
	require.Error(t, err)
}

func TestTraderFullFillCompletesTarget(t *testing.T) {
	gw := newMockGateway()
	trader := newTestTrader(t, 10000, false, gw)
	ctx := context.Background()

	require.NoError(t, trader.HandleDepthUpdate(ctx, depthTick(99, 101, 1)))
	orderID := gw.lastOrderID()

	// Full fill slightly below target: the residue is under min notional.
	trader.HandleOrderUpdate(fullFill(orderID, 100, 99.99, 99.99, 5))
	assert.False(t, trader.Completed())

	// Next tick sees remaining notional 1 < 20 and completes.
	require.NoError(t, trader.HandleDepthUpdate(ctx, depthTick(99, 101, 6)))
	assert.True(t, trader.Completed())
	assert.Equal(t, 1, gw.placeCount())

	summary := trader.Summary()
	require.NotNil(t, summary.MatchedQty)
	assert.InDelta(t, 100, *summary.MatchedQty, 1e-9)
	require.NotNil(t, summary.AvgEntry)
	assert.InDelta(t, 99.99, *summary.AvgEntry, 1e-9)
	require.NotNil(t, summary.CompletedAt)
	assert.Equal(t, int64(5), *summary.CompletedAt)
	require.NotNil(t, summary.PriceAtStart)
	assert.InDelta(t, 100, *summary.PriceAtStart, 1e-9)
	require.Len(t, summary.Trades, 1)
	assert.Equal(t, 99.99, summary.Trades[0].Price)
}

func TestTraderPartialFillKeepsOrderLive(t *testing.T) {
	gw := newMockGateway()
	trader := newTestTrader(t, 10000, false, gw)
	ctx := context.Background()

	require.NoError(t, trader.HandleDepthUpdate(ctx, depthTick(99, 101, 1)))
	orderID := gw.lastOrderID()

	trader.HandleOrderUpdate(core.OrderUpdate{
		Symbol:          "BTCUSDT",
		OrderID:         orderID,
		ExecutionType:   core.ExecTypeTrade,
		Status:          core.OrderStatusPartiallyFilled,
		LastFilledQty:   40,
		LastFilledPrice: 99,
		AvgPrice:        99,
		TradeTime:       2,
	})

	// Order is still resting: an unmoved book must not place again.
	require.NoError(t, trader.HandleDepthUpdate(ctx, depthTick(99, 101, 3)))
	assert.Equal(t, 1, gw.placeCount())

	// A full fill for the rest clears the slot and the residue completes.
	trader.HandleOrderUpdate(fullFill(orderID, 61, 99, 99, 4))
	require.NoError(t, trader.HandleDepthUpdate(ctx, depthTick(99, 101, 5)))
	assert.True(t, trader.Completed())
}

func TestTraderIgnoresDuplicateEchoes(t *testing.T) {
	gw := newMockGateway()
	trader := newTestTrader(t, 10000, false, gw)
	ctx := context.Background()

	require.NoError(t, trader.HandleDepthUpdate(ctx, depthTick(99, 101, 1)))
	orderID := gw.lastOrderID()

	trader.HandleOrderUpdate(core.OrderUpdate{
		Symbol: "BTCUSDT", OrderID: orderID,
		ExecutionType: core.OrderStatusNew, Status: core.OrderStatusNew,
	})
	trader.HandleOrderUpdate(core.OrderUpdate{
		Symbol: "BTCUSDT", OrderID: orderID,
		ExecutionType: core.OrderStatusCanceled, Status: core.OrderStatusCanceled,
	})

	summary := trader.Summary()
	assert.Nil(t, summary.MatchedQty)
	assert.Nil(t, summary.AvgEntry)
	assert.Empty(t, summary.Trades)
}

func TestTraderCompletedIsTerminal(t *testing.T) {
	gw := newMockGateway()
	// Target under the venue minimum completes on the first tick.
	trader := newTestTrader(t, 10, false, gw)
	ctx := context.Background()

	require.NoError(t, trader.HandleDepthUpdate(ctx, depthTick(99, 101, 1)))
	require.True(t, trader.Completed())
	require.Equal(t, 0, gw.placeCount())

	before := trader.Summary()

	// Late events must not mutate a completed trader.
	require.NoError(t, trader.HandleDepthUpdate(ctx, depthTick(50, 51, 2)))
	trader.HandleOrderUpdate(fullFill(1, 5, 100, 100, 3))

	after := trader.Summary()
	assert.Equal(t, 0, gw.placeCount())
	assert.Equal(t, len(before.Mids), len(after.Mids))
	assert.Nil(t, after.MatchedQty)
	assert.True(t, trader.Completed())
}

func TestTraderPlaceOutcomes(t *testing.T) {
	tests := []struct {
		name         string
		outcome      core.Outcome
		reduceOnly   bool
		wantErr      bool
		wantComplete bool
		// wantReplace is whether an identical follow-up tick places again.
		wantReplace bool
	}{
		{
			name:        "post-only would cross, re-quote next tick",
			outcome:     core.Outcome{Kind: core.OutcomeAlreadyGone, Err: assert.AnError},
			wantReplace: true,
		},
		{
			name:         "quantity below venue minimum completes",
			outcome:      core.Outcome{Kind: core.OutcomeBelowMinimumSize, Err: assert.AnError},
			wantComplete: true,
		},
		{
			name:         "notional below venue minimum completes",
			outcome:      core.Outcome{Kind: core.OutcomeNotionalTooSmall, Err: assert.AnError},
			wantComplete: true,
		},
		{
			name:         "reduce-only rejection on reduce-only target completes",
			outcome:      core.Outcome{Kind: core.OutcomeReduceOnlyRejected, Err: assert.AnError},
			reduceOnly:   true,
			wantComplete: true,
		},
		{
			name:    "reduce-only rejection on plain target aborts",
			outcome: core.Outcome{Kind: core.OutcomeReduceOnlyRejected, Err: assert.AnError},
			wantErr: true,
		},
		{
			name:    "malformed request aborts",
			outcome: core.Outcome{Kind: core.OutcomeMalformedRequest, Err: assert.AnError},
			wantErr: true,
		},
		{
			name:    "unclassified venue error aborts",
			outcome: core.Outcome{Kind: core.OutcomeFatal, Err: assert.AnError},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gw := newMockGateway()
			gw.stubPlace(tt.outcome)
			trader := newTestTrader(t, 10000, tt.reduceOnly, gw)
			ctx := context.Background()

			err := trader.HandleDepthUpdate(ctx, depthTick(99, 101, 1))
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantComplete, trader.Completed())

			if tt.wantReplace {
				require.NoError(t, trader.HandleDepthUpdate(ctx, depthTick(99, 101, 2)))
				assert.Equal(t, 2, gw.placeCount())
			}
		})
	}
}

func TestTraderReduceOnlyFlagPropagates(t *testing.T) {
	gw := newMockGateway()
	trader := newTestTrader(t, -10000, true, gw)

	require.NoError(t, trader.HandleDepthUpdate(context.Background(), depthTick(99, 101, 1)))
	require.Equal(t, 1, gw.placeCount())
	assert.True(t, gw.lastPlaced().ReduceOnly)
	assert.Equal(t, core.SideSell, gw.lastPlaced().Side)
}

func TestTraderRecordsMidHistory(t *testing.T) {
	gw := newMockGateway()
	trader := newTestTrader(t, 10000, false, gw)
	ctx := context.Background()

	require.NoError(t, trader.HandleDepthUpdate(ctx, depthTick(99, 101, 1)))
	require.NoError(t, trader.HandleDepthUpdate(ctx, depthTick(99.5, 101.5, 2)))

	summary := trader.Summary()
	require.Len(t, summary.Mids, 2)
	assert.InDelta(t, 100, summary.Mids[0].Mid, 1e-9)
	assert.InDelta(t, 100.5, summary.Mids[1].Mid, 1e-9)
	assert.Equal(t, int64(1), summary.Mids[0].Timestamp)

	require.NotNil(t, summary.PriceAtStart)
	assert.InDelta(t, 100, *summary.PriceAtStart, 1e-9)
}
