package exchange

import (
	"context"
	"fmt"

	"github.com/ducminhle1904/gpt-futures-bot/internal/exchange/bybit"
	"github.com/ducminhle1904/gpt-futures-bot/internal/trading"
	"github.com/ducminhle1904/gpt-futures-bot/pkg/types"
)

// Config selects the exchange backend and its credentials.
type Config struct {
	Name      string `json:"name"`       // only "bybit" is supported
	APIKey    string `json:"api_key"`
	APISecret string `json:"api_secret"`
	Testnet   bool   `json:"testnet"`
	Demo      bool   `json:"demo"`
	QuoteCoin string `json:"quote_coin"` // equity coin, default USDT
}

// New builds the Exchange named by the config.
func New(cfg Config) (Exchange, error) {
	switch cfg.Name {
	case "", "bybit":
		return NewBybit(cfg)
	default:
		return nil, fmt.Errorf("unsupported exchange: %s", cfg.Name)
	}
}

// BybitExchange adapts the Bybit v5 client to the Exchange facade.
type BybitExchange struct {
	client    *bybit.Client
	quoteCoin string
}

// NewBybit creates a Bybit-backed Exchange.
func NewBybit(cfg Config) (*BybitExchange, error) {
	client := bybit.NewClient(bybit.Config{
		APIKey:    cfg.APIKey,
		APISecret: cfg.APISecret,
		Testnet:   cfg.Testnet,
		Demo:      cfg.Demo,
	})

	coin := cfg.QuoteCoin
	if coin == "" {
		coin = "USDT"
	}

	return &BybitExchange{client: client, quoteCoin: coin}, nil
}

// GetOHLCV pulls the kline window in ascending timestamp order.
func (e *BybitExchange) GetOHLCV(ctx context.Context, symbol string, tf trading.Timeframe, limit int) (types.Window, error) {
	return e.client.GetKlines(ctx, symbol, tf.BybitInterval(), limit)
}

// GetLatestPrice returns the last traded price for the symbol.
func (e *BybitExchange) GetLatestPrice(ctx context.Context, symbol string) (float64, error) {
	return e.client.GetLatestPrice(ctx, symbol)
}

// GetEquity returns the unified account wallet balance in the quote coin.
func (e *BybitExchange) GetEquity(ctx context.Context) (float64, error) {
	balance, err := e.client.GetWalletBalance(ctx, e.quoteCoin)
	if err != nil {
		return 0, err
	}
	return balance.TotalWalletBalance, nil
}

// GetPosition returns the live position, SideFlat when none exists.
func (e *BybitExchange) GetPosition(ctx context.Context, symbol string) (*trading.Position, error) {
	return e.client.GetPosition(ctx, symbol)
}

// SetLeverage applies the leverage to both sides of the symbol. A request
// matching the current leverage is a no-op, not an error.
func (e *BybitExchange) SetLeverage(ctx context.Context, symbol string, leverage int) error {
	return e.client.SetLeverage(ctx, symbol, leverage)
}

// CreateOrder submits the order and returns the exchange order id.
func (e *BybitExchange) CreateOrder(ctx context.Context, req OrderRequest) (string, error) {
	orderType := bybit.OrderTypeMarket
	if req.Kind == Limit {
		orderType = bybit.OrderTypeLimit
	}

	order, err := e.client.PlaceOrder(ctx, bybit.OrderParams{
		Symbol:     req.Symbol,
		Side:       bybit.OrderSide(req.Side),
		OrderType:  orderType,
		Qty:        req.Qty,
		Price:      req.Price,
		ReduceOnly: req.ReduceOnly,
		StopLoss:   req.StopLoss,
		TakeProfit: req.TakeProfit,
	})
	if err != nil {
		return "", err
	}
	return order.OrderID, nil
}

// CancelOrder cancels an open order by exchange order id.
func (e *BybitExchange) CancelOrder(ctx context.Context, symbol, orderID string) error {
	return e.client.CancelOrder(ctx, symbol, orderID)
}

// GetFilters returns the instrument's quantity and notional filters.
func (e *BybitExchange) GetFilters(ctx context.Context, symbol string) (Filters, error) {
	f, err := e.client.GetInstrumentFilters(ctx, symbol)
	if err != nil {
		return Filters{}, err
	}
	return Filters{
		QtyStep:     f.QtyStep,
		MinOrderQty: f.MinOrderQty,
		MinNotional: f.MinNotional,
		TickSize:    f.TickSize,
	}, nil
}
