package bybit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ducminhle1904/gpt-futures-bot/pkg/types"
)

// GetKlines fetches a kline window for the symbol. Bybit returns bars newest
// first; the result here is reversed into ascending timestamp order.
func (c *Client) GetKlines(ctx context.Context, symbol, interval string, limit int) (types.Window, error) {
	if limit <= 0 {
		limit = 200
	}
	if limit > 1000 {
		limit = 1000
	}

	reqParams := map[string]interface{}{
		"category": category,
		"symbol":   symbol,
		"interval": interval,
		"limit":    limit,
	}

	result, err := c.httpClient.NewUtaBybitServiceWithParams(reqParams).GetMarketKline(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get klines: %w", err)
	}

	window, err := parseKlineResponse(result)
	if err != nil {
		return nil, fmt.Errorf("failed to parse kline response: %w", err)
	}

	return window, nil
}

// GetLatestPrice gets the latest traded price for the symbol.
func (c *Client) GetLatestPrice(ctx context.Context, symbol string) (float64, error) {
	params := map[string]interface{}{
		"category": category,
		"symbol":   symbol,
	}

	result, err := c.httpClient.NewUtaBybitServiceWithParams(params).GetMarketTickers(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to get latest price: %w", err)
	}

	serverResp, err := checkResponse(result)
	if err != nil {
		return 0, err
	}

	resultBytes, err := json.Marshal(serverResp.Result)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal result: %w", err)
	}

	var tickerResult struct {
		List []struct {
			Symbol    string `json:"symbol"`
			LastPrice string `json:"lastPrice"`
		} `json:"list"`
	}
	if err := json.Unmarshal(resultBytes, &tickerResult); err != nil {
		return 0, fmt.Errorf("failed to unmarshal ticker result: %w", err)
	}
	if len(tickerResult.List) == 0 {
		return 0, fmt.Errorf("no ticker data for %s", symbol)
	}

	return parseFloat64(tickerResult.List[0].LastPrice), nil
}

// parseKlineResponse parses the kline API response into an ascending window.
func parseKlineResponse(response interface{}) (types.Window, error) {
	serverResp, err := checkResponse(response)
	if err != nil {
		return nil, err
	}

	resultBytes, err := json.Marshal(serverResp.Result)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal result: %w", err)
	}

	var klineResult struct {
		Symbol   string     `json:"symbol"`
		Category string     `json:"category"`
		List     [][]string `json:"list"`
	}
	if err := json.Unmarshal(resultBytes, &klineResult); err != nil {
		return nil, fmt.Errorf("failed to unmarshal kline result: %w", err)
	}

	// Bybit kline format: [startTime, open, high, low, close, volume, turnover]
	window := make(types.Window, 0, len(klineResult.List))
	for i := len(klineResult.List) - 1; i >= 0; i-- {
		item := klineResult.List[i]
		if len(item) < 7 {
			continue
		}
		window = append(window, types.OHLCV{
			Timestamp: time.UnixMilli(parseInt64(item[0])),
			Open:      parseFloat64(item[1]),
			High:      parseFloat64(item[2]),
			Low:       parseFloat64(item[3]),
			Close:     parseFloat64(item[4]),
			Volume:    parseFloat64(item[5]),
			Turnover:  parseFloat64(item[6]),
		})
	}

	return window, nil
}
