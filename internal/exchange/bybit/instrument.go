package bybit

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

// InstrumentFilters holds the order filters of one linear instrument.
type InstrumentFilters struct {
	Symbol      string
	QtyStep     float64
	MinOrderQty float64
	MinNotional float64
	TickSize    float64
	MaxLeverage float64
}

// instrumentCache caches instrument filters, refreshed hourly. Filters
// change rarely; a stale entry is harmless because the exchange enforces
// the same limits server-side.
type instrumentCache struct {
	client   *Client
	mu       sync.RWMutex
	filters  map[string]*InstrumentFilters
	fetched  map[string]time.Time
	maxAge   time.Duration
}

func newInstrumentCache(client *Client) *instrumentCache {
	return &instrumentCache{
		client:  client,
		filters: make(map[string]*InstrumentFilters),
		fetched: make(map[string]time.Time),
		maxAge:  time.Hour,
	}
}

// GetInstrumentFilters returns the cached filters for the symbol, fetching
// from the API when missing or older than an hour.
func (c *Client) GetInstrumentFilters(ctx context.Context, symbol string) (*InstrumentFilters, error) {
	c.instruments.mu.RLock()
	cached, ok := c.instruments.filters[symbol]
	fresh := ok && time.Since(c.instruments.fetched[symbol]) < c.instruments.maxAge
	c.instruments.mu.RUnlock()
	if fresh {
		return cached, nil
	}

	filters, err := c.fetchInstrumentFilters(ctx, symbol)
	if err != nil {
		if ok {
			// Keep serving the stale entry when the refresh fails.
			return cached, nil
		}
		return nil, err
	}

	c.instruments.mu.Lock()
	c.instruments.filters[symbol] = filters
	c.instruments.fetched[symbol] = time.Now()
	c.instruments.mu.Unlock()

	return filters, nil
}

func (c *Client) fetchInstrumentFilters(ctx context.Context, symbol string) (*InstrumentFilters, error) {
	params := map[string]interface{}{
		"category": category,
		"symbol":   symbol,
	}

	result, err := c.httpClient.NewUtaBybitServiceWithParams(params).GetInstrumentInfo(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch instrument info: %w", err)
	}

	serverResp, err := checkResponse(result)
	if err != nil {
		return nil, err
	}

	resultBytes, err := json.Marshal(serverResp.Result)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal result: %w", err)
	}

	var instrumentResult struct {
		List []struct {
			Symbol         string `json:"symbol"`
			LeverageFilter struct {
				MaxLeverage string `json:"maxLeverage"`
			} `json:"leverageFilter"`
			PriceFilter struct {
				TickSize string `json:"tickSize"`
			} `json:"priceFilter"`
			LotSizeFilter struct {
				MinNotionalValue string `json:"minNotionalValue"`
				MinOrderQty      string `json:"minOrderQty"`
				QtyStep          string `json:"qtyStep"`
			} `json:"lotSizeFilter"`
		} `json:"list"`
	}
	if err := json.Unmarshal(resultBytes, &instrumentResult); err != nil {
		return nil, fmt.Errorf("failed to unmarshal instrument result: %w", err)
	}

	for _, item := range instrumentResult.List {
		if item.Symbol != symbol {
			continue
		}
		return &InstrumentFilters{
			Symbol:      item.Symbol,
			QtyStep:     parseFloat64(item.LotSizeFilter.QtyStep),
			MinOrderQty: parseFloat64(item.LotSizeFilter.MinOrderQty),
			MinNotional: parseFloat64(item.LotSizeFilter.MinNotionalValue),
			TickSize:    parseFloat64(item.PriceFilter.TickSize),
			MaxLeverage: parseFloat64(item.LeverageFilter.MaxLeverage),
		}, nil
	}

	return nil, fmt.Errorf("instrument %s not found", symbol)
}
