package trader

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ducminhle1904/gpt-futures-bot/internal/exchange"
	"github.com/ducminhle1904/gpt-futures-bot/internal/exchange/bybit"
	"github.com/ducminhle1904/gpt-futures-bot/internal/trading"
	"github.com/ducminhle1904/gpt-futures-bot/pkg/types"
)

// scriptedExchange serves canned errors per call and records every order.
type scriptedExchange struct {
	position        *trading.Position
	closedOnReduce  bool
	setLeverageErrs []error
	setLeverageCalls int
	orderErrs       []error
	orders          []exchange.OrderRequest
}

func (s *scriptedExchange) GetOHLCV(ctx context.Context, symbol string, tf trading.Timeframe, limit int) (types.Window, error) {
	return nil, nil
}
func (s *scriptedExchange) GetLatestPrice(ctx context.Context, symbol string) (float64, error) {
	return 0, nil
}
func (s *scriptedExchange) GetEquity(ctx context.Context) (float64, error) { return 1000, nil }

func (s *scriptedExchange) GetPosition(ctx context.Context, symbol string) (*trading.Position, error) {
	if s.closedOnReduce {
		return &trading.Position{Symbol: symbol, Side: trading.SideFlat}, nil
	}
	return s.position, nil
}

func (s *scriptedExchange) SetLeverage(ctx context.Context, symbol string, leverage int) error {
	s.setLeverageCalls++
	if len(s.setLeverageErrs) > 0 {
		err := s.setLeverageErrs[0]
		s.setLeverageErrs = s.setLeverageErrs[1:]
		return err
	}
	return nil
}

func (s *scriptedExchange) CreateOrder(ctx context.Context, req exchange.OrderRequest) (string, error) {
	if len(s.orderErrs) > 0 {
		err := s.orderErrs[0]
		s.orderErrs = s.orderErrs[1:]
		if err != nil {
			return "", err
		}
	}
	s.orders = append(s.orders, req)
	if req.ReduceOnly {
		s.closedOnReduce = true
	}
	return "order-1", nil
}

func (s *scriptedExchange) CancelOrder(ctx context.Context, symbol, orderID string) error {
	return nil
}
func (s *scriptedExchange) GetFilters(ctx context.Context, symbol string) (exchange.Filters, error) {
	return exchange.Filters{}, nil
}

func fastExecutor(ex exchange.Exchange) *Executor {
	e := NewExecutor(ex, "BTCUSDT")
	e.retryBase = time.Millisecond
	e.pollInterval = time.Millisecond
	e.closeVerifyWindow = 50 * time.Millisecond
	return e
}

func longPosition(leverage int) *trading.Position {
	return &trading.Position{
		Symbol: "BTCUSDT", Side: trading.SideLong,
		SizeBase: 0.016, Leverage: leverage, EntryPrice: 59000,
	}
}

func sellSignalForFlip() *trading.TradingSignal {
	return &trading.TradingSignal{
		Suggestion: trading.SuggestionSell, EntryPrice: 58000,
		StopLoss: 58600, TakeProfit1: 56800, Leverage: 5, PositionSizePct: 20,
	}
}

func flipPlan() trading.Plan {
	return trading.Plan{
		{Type: trading.ActionClosePosition},
		{Type: trading.ActionSetLeverage, Leverage: 5},
		{
			Type: trading.ActionOpenPosition, Side: trading.SuggestionSell,
			QtyBase: 0.017, EntryLimit: 58000, StopLoss: 58600, TakeProfit: 56800,
		},
	}
}

func TestExecutor_TransientFailureMidPlan(t *testing.T) {
	// Close succeeds, SetLeverage fails twice transiently then succeeds,
	// Open succeeds: one record, three outcomes, no duplicate orders.
	ex := &scriptedExchange{
		position:        longPosition(3),
		setLeverageErrs: []error{errors.New("502 bad gateway"), errors.New("connection reset")},
	}
	executor := fastExecutor(ex)

	record, err := executor.Execute(context.Background(), trading.TriggerAuto,
		sellSignalForFlip(), flipPlan(), longPosition(3))
	require.NoError(t, err)

	require.Len(t, record.Outcomes, 3)
	assert.True(t, record.Completed)
	for _, outcome := range record.Outcomes {
		assert.True(t, outcome.Success)
	}

	assert.Equal(t, 3, record.Outcomes[1].Attempts)
	assert.Equal(t, 3, ex.setLeverageCalls)

	// Exactly one close order and one open order.
	require.Len(t, ex.orders, 2)
	assert.True(t, ex.orders[0].ReduceOnly)
	assert.Equal(t, exchange.Limit, ex.orders[1].Kind)
	assert.Equal(t, 0.017, ex.orders[1].Qty)
}

func TestExecutor_IdempotentLeverage(t *testing.T) {
	ex := &scriptedExchange{position: longPosition(5), closedOnReduce: true}
	executor := fastExecutor(ex)

	plan := trading.Plan{{Type: trading.ActionSetLeverage, Leverage: 5}}
	record, err := executor.Execute(context.Background(), trading.TriggerAuto,
		sellSignalForFlip(), plan, longPosition(5))
	require.NoError(t, err)

	// Already at 5x: success with zero exchange calls.
	assert.Equal(t, 0, ex.setLeverageCalls)
	assert.Equal(t, 0, record.Outcomes[0].Attempts)
	assert.True(t, record.Outcomes[0].Success)
}

func TestExecutor_CloseTimeout(t *testing.T) {
	// The fake keeps reporting an open position even after the reduce order.
	exNoFlat := &neverFlatExchange{scriptedExchange: &scriptedExchange{position: longPosition(5)}}
	executor := fastExecutor(exNoFlat)
	executor.closeVerifyWindow = 20 * time.Millisecond
	plan := flipPlan()

	record, err := executor.Execute(context.Background(), trading.TriggerAuto,
		sellSignalForFlip(), plan, longPosition(5))
	require.Error(t, err)
	assert.ErrorIs(t, err, trading.ErrCloseTimeout)

	// The plan aborts at the close; leverage and open never run.
	require.Len(t, record.Outcomes, 1)
	assert.False(t, record.Completed)
	assert.Equal(t, 0, exNoFlat.setLeverageCalls)
}

type neverFlatExchange struct {
	*scriptedExchange
}

func (n *neverFlatExchange) GetPosition(ctx context.Context, symbol string) (*trading.Position, error) {
	return n.position, nil
}

func TestExecutor_PermanentFailureAborts(t *testing.T) {
	ex := &scriptedExchange{
		position: longPosition(3),
		orderErrs: []error{
			nil, // close succeeds
			bybit.NewError(bybit.ErrCodeInsufficientBalance, "insufficient available balance"),
		},
	}
	executor := fastExecutor(ex)

	record, err := executor.Execute(context.Background(), trading.TriggerAuto,
		sellSignalForFlip(), flipPlan(), longPosition(3))
	require.Error(t, err)
	assert.ErrorIs(t, err, trading.ErrInsufficientMargin)

	// Insufficient margin fails fast: a single attempt, no retries.
	last := record.Outcomes[len(record.Outcomes)-1]
	assert.Equal(t, 1, last.Attempts)
	assert.False(t, record.Completed)

	// Only the close order reached the exchange.
	require.Len(t, ex.orders, 1)
	assert.True(t, ex.orders[0].ReduceOnly)
}

func TestExecutor_RefusesOpenOverLivePosition(t *testing.T) {
	ex := &scriptedExchange{position: longPosition(5)}
	executor := fastExecutor(ex)

	plan := trading.Plan{{
		Type: trading.ActionOpenPosition, Side: trading.SuggestionSell,
		QtyBase: 0.017, EntryLimit: 58000, StopLoss: 58600, TakeProfit: 56800,
	}}

	_, err := executor.Execute(context.Background(), trading.TriggerAuto,
		sellSignalForFlip(), plan, longPosition(5))
	require.Error(t, err)
	assert.ErrorIs(t, err, trading.ErrInvariantViolation)
	assert.Empty(t, ex.orders)
}

func TestExecutor_ResizeReducesWithReduceOnly(t *testing.T) {
	ex := &scriptedExchange{position: longPosition(5)}
	executor := fastExecutor(ex)

	plan := trading.Plan{{Type: trading.ActionResize, DeltaBase: -0.004}}
	record, err := executor.Execute(context.Background(), trading.TriggerManual,
		sellSignalForFlip(), plan, longPosition(5))
	require.NoError(t, err)
	assert.True(t, record.Completed)

	require.Len(t, ex.orders, 1)
	assert.True(t, ex.orders[0].ReduceOnly)
	assert.Equal(t, exchange.Sell, ex.orders[0].Side)
	assert.Equal(t, 0.004, ex.orders[0].Qty)
}
