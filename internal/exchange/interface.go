package exchange

import (
	"context"

	"github.com/ducminhle1904/gpt-futures-bot/internal/trading"
	"github.com/ducminhle1904/gpt-futures-bot/pkg/types"
)

// OrderSide is the direction of an order at the facade boundary.
type OrderSide string

const (
	Buy  OrderSide = "Buy"
	Sell OrderSide = "Sell"
)

// OrderKind selects between limit and market execution.
type OrderKind string

const (
	Limit  OrderKind = "limit"
	Market OrderKind = "market"
)

// OrderRequest describes one order for CreateOrder. StopLoss and TakeProfit
// are attached to the order on submission when non-zero.
type OrderRequest struct {
	Symbol     string
	Side       OrderSide
	Kind       OrderKind
	Qty        float64
	Price      float64 // limit orders only
	ReduceOnly bool
	StopLoss   float64
	TakeProfit float64
}

// Filters carries the instrument's order constraints.
type Filters struct {
	QtyStep     float64
	MinOrderQty float64
	MinNotional float64
	TickSize    float64
}

// Exchange is the facade the core trades through. Implementations normalize
// exchange-specific field names and error shapes at this boundary; nothing
// beyond this package sees raw API responses.
type Exchange interface {
	// GetOHLCV pulls a kline window in ascending timestamp order.
	GetOHLCV(ctx context.Context, symbol string, tf trading.Timeframe, limit int) (types.Window, error)

	// GetLatestPrice returns the last traded price.
	GetLatestPrice(ctx context.Context, symbol string) (float64, error)

	// GetEquity returns the unified-account wallet balance in quote units.
	GetEquity(ctx context.Context) (float64, error)

	// GetPosition returns the live position, SideFlat when none exists.
	GetPosition(ctx context.Context, symbol string) (*trading.Position, error)

	// SetLeverage applies the leverage to both sides of the symbol.
	SetLeverage(ctx context.Context, symbol string, leverage int) error

	// CreateOrder submits an order and returns the exchange order id.
	CreateOrder(ctx context.Context, req OrderRequest) (string, error)

	// CancelOrder cancels an open order.
	CancelOrder(ctx context.Context, symbol, orderID string) error

	// GetFilters returns the instrument's quantity and notional filters.
	GetFilters(ctx context.Context, symbol string) (Filters, error)
}
