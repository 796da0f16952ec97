// Package core defines the shared types and interfaces for the execution engine
package core

// Side represents an order side
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Order status and execution-type values as reported by the venue's
// execution reports.
const (
	OrderStatusNew             = "NEW"
	OrderStatusCanceled        = "CANCELED"
	OrderStatusFilled          = "FILLED"
	OrderStatusPartiallyFilled = "PARTIALLY_FILLED"
	ExecTypeTrade              = "TRADE"
)

// TargetPosition is the immutable per-symbol input: the sign of Notional
// encodes the side, the magnitude the target notional size.
type TargetPosition struct {
	Symbol     string  `json:"symbol" yaml:"symbol"`
	Notional   float64 `json:"notional" yaml:"notional"`
	ReduceOnly bool    `json:"reduce_only" yaml:"reduce_only"`
}

// IsLong reports whether the target is a long exposure.
func (p TargetPosition) IsLong() bool {
	return p.Notional > 0
}

// Side returns the order side implied by the sign of the target notional.
func (p TargetPosition) Side() Side {
	if p.Notional < 0 {
		return SideSell
	}
	return SideBuy
}

// PriceLevel is one ranked order-book level.
type PriceLevel struct {
	Price    float64
	Quantity float64
}

// DepthUpdate is a decoded order-book tick for one symbol.
type DepthUpdate struct {
	Symbol    string
	EventTime int64
	Bids      []PriceLevel
	Asks      []PriceLevel
}

// QuoteSnapshot is the normalized best-bid/best-ask/mid reading derived
// from a DepthUpdate.
type QuoteSnapshot struct {
	BestBid   float64
	BestAsk   float64
	Mid       float64
	Timestamp int64
}

// OrderUpdate is a decoded execution report concerning one symbol's orders.
type OrderUpdate struct {
	Symbol          string
	OrderID         int64
	ClientOrderID   string
	Side            Side
	ExecutionType   string
	Status          string
	LastFilledQty   float64
	LastFilledPrice float64
	AvgPrice        float64
	TradeTime       int64
	EventTime       int64
}

// RestingOrder is the single currently-live limit order for a symbol.
type RestingOrder struct {
	OrderID       int64
	ClientOrderID string
	Price         float64
}

// FillEvent is one accepted execution report appended to a symbol's fill
// history. Entries are never mutated or removed once appended.
type FillEvent struct {
	Qty       float64
	Price     float64
	AvgPrice  float64
	Timestamp int64
}

// InstrumentInfo is the per-symbol reference data looked up once at run
// start.
type InstrumentInfo struct {
	Symbol            string
	QuantityPrecision int
	PricePrecision    int
	MinNotional       float64
}

// MidPoint is one (mid, timestamp) tick history entry.
type MidPoint struct {
	Mid       float64 `json:"mid"`
	Timestamp int64   `json:"timestamp"`
}

// TradeFill is one (price, qty, timestamp) fill history entry.
type TradeFill struct {
	Price     float64 `json:"price"`
	Qty       float64 `json:"qty"`
	Timestamp int64   `json:"timestamp"`
}

// SymbolSummary is the per-symbol completion record returned to the host
// when the run ends.
type SymbolSummary struct {
	Position     TargetPosition `json:"position"`
	PriceAtStart *float64       `json:"price_at_start"`
	AvgEntry     *float64       `json:"avg_entry"`
	MatchedQty   *float64       `json:"matched_qty"`
	CompletedAt  *int64         `json:"completed_at"`
	Mids         []MidPoint     `json:"mids"`
	Trades       []TradeFill    `json:"trades"`
}
