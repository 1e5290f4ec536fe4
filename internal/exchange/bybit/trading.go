package bybit

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/ducminhle1904/gpt-futures-bot/internal/trading"
)

// OrderSide represents the side of an order.
type OrderSide string

const (
	OrderSideBuy  OrderSide = "Buy"
	OrderSideSell OrderSide = "Sell"
)

// OrderType represents the type of an order.
type OrderType string

const (
	OrderTypeMarket OrderType = "Market"
	OrderTypeLimit  OrderType = "Limit"
)

// OrderParams holds parameters for placing a linear futures order.
type OrderParams struct {
	Symbol     string
	Side       OrderSide
	OrderType  OrderType
	Qty        float64
	Price      float64 // required for limit orders
	ReduceOnly bool
	StopLoss   float64 // optional, attached on submit
	TakeProfit float64 // optional, attached on submit
}

// Order is the acknowledgement returned by the exchange on submit.
type Order struct {
	OrderID     string `json:"orderId"`
	OrderLinkID string `json:"orderLinkId"`
}

// PlaceOrder submits a linear futures order in one-way position mode. Every
// order carries a generated orderLinkId so resubmissions stay traceable.
func (c *Client) PlaceOrder(ctx context.Context, params OrderParams) (*Order, error) {
	if params.Symbol == "" {
		return nil, fmt.Errorf("symbol is required")
	}
	if params.Side == "" {
		return nil, fmt.Errorf("side is required")
	}
	if params.Qty <= 0 {
		return nil, fmt.Errorf("qty must be positive")
	}
	if params.OrderType == OrderTypeLimit && params.Price <= 0 {
		return nil, fmt.Errorf("price is required for limit orders")
	}

	apiParams := map[string]interface{}{
		"category":    category,
		"symbol":      params.Symbol,
		"side":        string(params.Side),
		"orderType":   string(params.OrderType),
		"qty":         formatFloat(params.Qty),
		"positionIdx": 0,
		"orderLinkId": uuid.NewString(),
	}
	if params.OrderType == OrderTypeLimit {
		apiParams["price"] = formatFloat(params.Price)
		apiParams["timeInForce"] = "GTC"
	}
	if params.ReduceOnly {
		apiParams["reduceOnly"] = true
	}
	if params.StopLoss > 0 {
		apiParams["stopLoss"] = formatFloat(params.StopLoss)
	}
	if params.TakeProfit > 0 {
		apiParams["takeProfit"] = formatFloat(params.TakeProfit)
	}

	result, err := c.httpClient.NewUtaBybitServiceWithParams(apiParams).PlaceOrder(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to place order: %w", err)
	}

	order, err := parseOrderResponse(result)
	if err != nil {
		return nil, fmt.Errorf("failed to parse order response: %w", err)
	}

	return order, nil
}

// CancelOrder cancels an open order by exchange order id.
func (c *Client) CancelOrder(ctx context.Context, symbol, orderID string) error {
	params := map[string]interface{}{
		"category": category,
		"symbol":   symbol,
		"orderId":  orderID,
	}

	result, err := c.httpClient.NewUtaBybitServiceWithParams(params).CancelOrder(ctx)
	if err != nil {
		return fmt.Errorf("failed to cancel order: %w", err)
	}
	if _, err := checkResponse(result); err != nil {
		return err
	}
	return nil
}

// SetLeverage sets buy and sell leverage for the symbol. Bybit rejects a
// request that matches the current leverage with a dedicated retCode; that
// response is treated as success.
func (c *Client) SetLeverage(ctx context.Context, symbol string, leverage int) error {
	params := map[string]interface{}{
		"category":     category,
		"symbol":       symbol,
		"buyLeverage":  fmt.Sprintf("%d", leverage),
		"sellLeverage": fmt.Sprintf("%d", leverage),
	}

	result, err := c.httpClient.NewUtaBybitServiceWithParams(params).SetPositionLeverage(ctx)
	if err != nil {
		return fmt.Errorf("failed to set leverage: %w", err)
	}
	serverResp, err := asServerResponse(result)
	if err != nil {
		return err
	}
	if apiErr := ParseAPIError(serverResp.RetCode, serverResp.RetMsg); apiErr != nil && !IsLeverageNotModified(apiErr) {
		return apiErr
	}
	return nil
}

// GetPosition retrieves the live position for the symbol, normalized into
// the core's Position type. A missing or zero-size entry maps to SideFlat.
func (c *Client) GetPosition(ctx context.Context, symbol string) (*trading.Position, error) {
	params := map[string]interface{}{
		"category": category,
		"symbol":   symbol,
	}

	result, err := c.httpClient.NewUtaBybitServiceWithParams(params).GetPositionList(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get positions: %w", err)
	}

	serverResp, err := checkResponse(result)
	if err != nil {
		return nil, err
	}

	resultBytes, err := json.Marshal(serverResp.Result)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal result: %w", err)
	}

	var positionResult struct {
		List []struct {
			Symbol        string `json:"symbol"`
			Side          string `json:"side"`
			Size          string `json:"size"`
			Leverage      string `json:"leverage"`
			EntryPrice    string `json:"entryPrice"`
			AvgPrice      string `json:"avgPrice"`
			MarkPrice     string `json:"markPrice"`
			LiqPrice      string `json:"liqPrice"`
			UnrealisedPnl string `json:"unrealisedPnl"`
		} `json:"list"`
	}
	if err := json.Unmarshal(resultBytes, &positionResult); err != nil {
		return nil, fmt.Errorf("failed to unmarshal position result: %w", err)
	}

	flat := &trading.Position{Symbol: symbol, Side: trading.SideFlat}
	if len(positionResult.List) == 0 {
		return flat, nil
	}

	raw := positionResult.List[0]
	size := parseFloat64(raw.Size)
	if size == 0 {
		return flat, nil
	}

	side := trading.SideFlat
	switch strings.ToLower(raw.Side) {
	case "buy":
		side = trading.SideLong
	case "sell":
		side = trading.SideShort
	}

	// Some v5 responses use avgPrice where older ones used entryPrice.
	entry := parseFloat64(raw.EntryPrice)
	if entry == 0 {
		entry = parseFloat64(raw.AvgPrice)
	}

	return &trading.Position{
		Symbol:        raw.Symbol,
		Side:          side,
		SizeBase:      size,
		Leverage:      int(parseFloat64(raw.Leverage)),
		EntryPrice:    entry,
		MarkPrice:     parseFloat64(raw.MarkPrice),
		UnrealizedPnL: parseFloat64(raw.UnrealisedPnl),
		LiqPrice:      parseFloat64(raw.LiqPrice),
	}, nil
}

// parseOrderResponse extracts the order acknowledgement from a submit reply.
func parseOrderResponse(response interface{}) (*Order, error) {
	serverResp, err := checkResponse(response)
	if err != nil {
		return nil, err
	}

	resultBytes, err := json.Marshal(serverResp.Result)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal result: %w", err)
	}

	var order Order
	if err := json.Unmarshal(resultBytes, &order); err != nil {
		return nil, fmt.Errorf("failed to unmarshal order result: %w", err)
	}
	if order.OrderID == "" {
		return nil, fmt.Errorf("order response missing orderId")
	}

	return &order, nil
}
