package stream

import (
	"encoding/json"
	"fmt"
	"strconv"

	"makerfill/internal/core"
)

// Stream event types as named by the venue.
const (
	eventDepthUpdate      = "depthUpdate"
	eventOrderTradeUpdate = "ORDER_TRADE_UPDATE"
	eventListenKeyExpired = "listenKeyExpired"
	eventAccountUpdate    = "ACCOUNT_UPDATE"
	eventTradeLite        = "TRADE_LITE"
	eventMarginCall       = "MARGIN_CALL"
)

// combinedEnvelope is the wrapper every combined-stream message arrives in.
type combinedEnvelope struct {
	Stream string          `json:"stream"`
	Data   json.RawMessage `json:"data"`
}

type eventHeader struct {
	Event string `json:"e"`
}

type depthEvent struct {
	EventTime       int64      `json:"E"`
	TransactionTime int64      `json:"T"`
	Symbol          string     `json:"s"`
	Bids            [][]string `json:"b"`
	Asks            [][]string `json:"a"`
}

type orderTradeEvent struct {
	EventTime int64            `json:"E"`
	Order     orderTradeDetail `json:"o"`
}

type orderTradeDetail struct {
	Symbol          string `json:"s"`
	ClientOrderID   string `json:"c"`
	Side            string `json:"S"`
	OrigQty         string `json:"q"`
	OrigPrice       string `json:"p"`
	AvgPrice        string `json:"ap"`
	ExecutionType   string `json:"x"`
	Status          string `json:"X"`
	OrderID         int64  `json:"i"`
	LastFilledQty   string `json:"l"`
	CumFilledQty    string `json:"z"`
	LastFilledPrice string `json:"L"`
	TradeTime       int64  `json:"T"`
}

// Event is one decoded combined-stream message. Exactly one of Depth and
// Order is set for the event types the engine consumes; for everything
// else only Type is populated.
type Event struct {
	Type  string
	Depth *core.DepthUpdate
	Order *core.OrderUpdate
}

// decodeMessage unwraps the combined-stream envelope and decodes the inner
// event.
func decodeMessage(raw []byte) (Event, error) {
	var envelope combinedEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return Event{}, fmt.Errorf("decode stream envelope: %w", err)
	}

	var header eventHeader
	if err := json.Unmarshal(envelope.Data, &header); err != nil {
		return Event{}, fmt.Errorf("decode event header: %w", err)
	}

	switch header.Event {
	case eventDepthUpdate:
		var ev depthEvent
		if err := json.Unmarshal(envelope.Data, &ev); err != nil {
			return Event{}, fmt.Errorf("decode depth update: %w", err)
		}
		bids, err := parseLevels(ev.Bids)
		if err != nil {
			return Event{}, fmt.Errorf("decode depth update bids: %w", err)
		}
		asks, err := parseLevels(ev.Asks)
		if err != nil {
			return Event{}, fmt.Errorf("decode depth update asks: %w", err)
		}
		return Event{
			Type: header.Event,
			Depth: &core.DepthUpdate{
				Symbol:    ev.Symbol,
				EventTime: ev.EventTime,
				Bids:      bids,
				Asks:      asks,
			},
		}, nil

	case eventOrderTradeUpdate:
		var ev orderTradeEvent
		if err := json.Unmarshal(envelope.Data, &ev); err != nil {
			return Event{}, fmt.Errorf("decode order trade update: %w", err)
		}
		lastQty, err := strconv.ParseFloat(ev.Order.LastFilledQty, 64)
		if err != nil {
			return Event{}, fmt.Errorf("decode last filled qty %q: %w", ev.Order.LastFilledQty, err)
		}
		lastPrice, err := strconv.ParseFloat(ev.Order.LastFilledPrice, 64)
		if err != nil {
			return Event{}, fmt.Errorf("decode last filled price %q: %w", ev.Order.LastFilledPrice, err)
		}
		avgPrice, err := strconv.ParseFloat(ev.Order.AvgPrice, 64)
		if err != nil {
			return Event{}, fmt.Errorf("decode average price %q: %w", ev.Order.AvgPrice, err)
		}
		return Event{
			Type: header.Event,
			Order: &core.OrderUpdate{
				Symbol:          ev.Order.Symbol,
				OrderID:         ev.Order.OrderID,
				ClientOrderID:   ev.Order.ClientOrderID,
				Side:            core.Side(ev.Order.Side),
				ExecutionType:   ev.Order.ExecutionType,
				Status:          ev.Order.Status,
				LastFilledQty:   lastQty,
				LastFilledPrice: lastPrice,
				AvgPrice:        avgPrice,
				TradeTime:       ev.Order.TradeTime,
				EventTime:       ev.EventTime,
			},
		}, nil

	default:
		return Event{Type: header.Event}, nil
	}
}

func parseLevels(levels [][]string) ([]core.PriceLevel, error) {
	out := make([]core.PriceLevel, 0, len(levels))
	for _, level := range levels {
		if len(level) < 2 {
			return nil, fmt.Errorf("level has %d fields, want 2", len(level))
		}
		price, err := strconv.ParseFloat(level[0], 64)
		if err != nil {
			return nil, fmt.Errorf("parse price %q: %w", level[0], err)
		}
		qty, err := strconv.ParseFloat(level[1], 64)
		if err != nil {
			return nil, fmt.Errorf("parse qty %q: %w", level[1], err)
		}
		out = append(out, core.PriceLevel{Price: price, Quantity: qty})
	}
	return out, nil
}
