// Package exchange wraps the venue's trading API behind a typed gateway.
package exchange

import (
	"context"

	"github.com/adshao/go-binance/v2/futures"
	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"

	"makerfill/internal/core"
	"makerfill/internal/metrics"
)

// BinanceGateway implements core.ActionGateway against Binance USD-M
// futures. Single-flight per symbol is the caller's responsibility; the
// gateway only enforces a global request rate limit.
type BinanceGateway struct {
	client   *futures.Client
	limiter  *rate.Limiter
	logger   core.ILogger
	recorder *metrics.Recorder
}

// NewBinanceGateway creates a gateway around a futures REST client.
func NewBinanceGateway(client *futures.Client, logger core.ILogger, recorder *metrics.Recorder) *BinanceGateway {
	return &BinanceGateway{
		client:   client,
		limiter:  rate.NewLimiter(rate.Limit(25), 30), // 25 orders/sec with burst of 30
		logger:   logger.WithField("component", "gateway"),
		recorder: recorder,
	}
}

// Place posts a post-only (GTX) limit order sized to the instrument's
// declared precision.
func (g *BinanceGateway) Place(ctx context.Context, req core.PlaceOrderRequest) (core.RestingOrder, core.Outcome) {
	if err := g.limiter.Wait(ctx); err != nil {
		return core.RestingOrder{}, core.Outcome{Kind: core.OutcomeFatal, Err: err}
	}

	qtyStr := decimal.NewFromFloat(req.Quantity).StringFixed(int32(req.QuantityPrecision))
	priceStr := decimal.NewFromFloat(req.Price).StringFixed(int32(req.PricePrecision))
	clientOrderID := generateOrderID(req.Price, string(req.Side), req.PricePrecision)

	svc := g.client.NewCreateOrderService().
		Symbol(req.Symbol).
		Side(futures.SideType(req.Side)).
		Type(futures.OrderTypeLimit).
		TimeInForce(futures.TimeInForceTypeGTX).
		Quantity(qtyStr).
		Price(priceStr).
		NewClientOrderID(clientOrderID)
	if req.ReduceOnly {
		svc = svc.ReduceOnly(true)
	}

	resp, err := svc.Do(ctx)
	outcome := classify(err)
	g.recorder.RecordAction(req.Symbol, "place", outcome.Kind.String())
	if !outcome.OK() {
		g.logger.Debug("place rejected",
			"symbol", req.Symbol, "outcome", outcome.Kind.String(), "error", outcome.Err)
		return core.RestingOrder{}, outcome
	}

	g.logger.Info("order placed",
		"symbol", req.Symbol, "side", req.Side, "qty", qtyStr, "price", priceStr, "order_id", resp.OrderID)
	return core.RestingOrder{
		OrderID:       resp.OrderID,
		ClientOrderID: resp.ClientOrderID,
		Price:         req.Price,
	}, outcome
}

// Cancel cancels a resting order. A venue report that the order no longer
// exists classifies as AlreadyGone, which callers treat as cleared.
func (g *BinanceGateway) Cancel(ctx context.Context, symbol string, orderID int64) core.Outcome {
	if err := g.limiter.Wait(ctx); err != nil {
		return core.Outcome{Kind: core.OutcomeFatal, Err: err}
	}

	_, err := g.client.NewCancelOrderService().
		Symbol(symbol).
		OrderID(orderID).
		Do(ctx)
	outcome := classify(err)
	g.recorder.RecordAction(symbol, "cancel", outcome.Kind.String())
	if outcome.OK() {
		g.logger.Info("order cancelled", "symbol", symbol, "order_id", orderID)
	} else {
		g.logger.Debug("cancel rejected",
			"symbol", symbol, "order_id", orderID, "outcome", outcome.Kind.String(), "error", outcome.Err)
	}
	return outcome
}
