package exchange

import (
	"context"
	"fmt"
	"strconv"

	"github.com/adshao/go-binance/v2/futures"

	"makerfill/internal/core"
)

// LoadInstruments fetches exchange info once at run start and resolves the
// reference data for every requested symbol. A symbol missing from the
// venue's instrument list is a configuration defect, not a runtime
// condition.
func LoadInstruments(ctx context.Context, client *futures.Client, symbols []string) (map[string]core.InstrumentInfo, error) {
	info, err := client.NewExchangeInfoService().Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch exchange info: %w", err)
	}

	bySymbol := make(map[string]futures.Symbol, len(info.Symbols))
	for _, s := range info.Symbols {
		bySymbol[s.Symbol] = s
	}

	out := make(map[string]core.InstrumentInfo, len(symbols))
	for _, symbol := range symbols {
		s, ok := bySymbol[symbol]
		if !ok {
			return nil, fmt.Errorf("symbol %s not found in exchange info", symbol)
		}

		filter := s.MinNotionalFilter()
		if filter == nil {
			return nil, fmt.Errorf("symbol %s has no min-notional filter", symbol)
		}
		minNotional, err := strconv.ParseFloat(filter.Notional, 64)
		if err != nil {
			return nil, fmt.Errorf("symbol %s: parse min notional %q: %w", symbol, filter.Notional, err)
		}

		out[symbol] = core.InstrumentInfo{
			Symbol:            symbol,
			QuantityPrecision: s.QuantityPrecision,
			PricePrecision:    s.PricePrecision,
			MinNotional:       minNotional,
		}
	}
	return out, nil
}
