package trader

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/ducminhle1904/gpt-futures-bot/internal/exchange"
	"github.com/ducminhle1904/gpt-futures-bot/internal/trading"
)

const (
	// DefaultActionTimeout bounds one exchange action, retries excluded.
	DefaultActionTimeout = 15 * time.Second
	// DefaultCloseVerifyWindow is how long a close waits for the position
	// to read back flat before failing with ErrCloseTimeout.
	DefaultCloseVerifyWindow = 5 * time.Second

	maxActionRetries = 3
)

// Executor realizes plans against the exchange, one at a time. A single
// mutex serializes plans so two triggers can never trade concurrently.
type Executor struct {
	ex     exchange.Exchange
	symbol string

	execLock sync.Mutex

	actionTimeout     time.Duration
	closeVerifyWindow time.Duration
	retryBase         time.Duration
	pollInterval      time.Duration
	now               func() time.Time
}

// NewExecutor creates an executor for the symbol.
func NewExecutor(ex exchange.Exchange, symbol string) *Executor {
	return &Executor{
		ex:                ex,
		symbol:            symbol,
		actionTimeout:     DefaultActionTimeout,
		closeVerifyWindow: DefaultCloseVerifyWindow,
		retryBase:         time.Second,
		pollInterval:      500 * time.Millisecond,
		now:               time.Now,
	}
}

// Execute runs the plan action by action and returns the trade record with
// one outcome per attempted action. The first permanent failure aborts the
// remainder; the record and the error both report it.
//
// The live position passed in must be the one the plan was built from; it
// feeds the idempotent-leverage check and the close sizing. The executor
// re-reads the position only after a close.
func (e *Executor) Execute(ctx context.Context, trigger trading.TriggerKind, signal *trading.TradingSignal, plan trading.Plan, position *trading.Position) (*trading.TradeRecord, error) {
	e.execLock.Lock()
	defer e.execLock.Unlock()

	record := &trading.TradeRecord{
		Timestamp: e.now(),
		Trigger:   trigger,
		Symbol:    e.symbol,
		Signal:    *signal,
		Plan:      plan,
	}

	currentLeverage := position.Leverage
	closed := false

	for _, action := range plan {
		var (
			orderID  string
			attempts int
			err      error
		)

		switch action.Type {
		case trading.ActionSetLeverage:
			if currentLeverage == action.Leverage {
				// Already at the target; no exchange call.
				attempts = 0
			} else {
				attempts, err = e.withRetries(ctx, func(actionCtx context.Context) error {
					return e.ex.SetLeverage(actionCtx, e.symbol, action.Leverage)
				})
				if err == nil {
					currentLeverage = action.Leverage
				}
			}

		case trading.ActionClosePosition:
			orderID, attempts, err = e.closePosition(ctx, position)
			if err == nil {
				closed = true
			}

		case trading.ActionOpenPosition:
			orderID, attempts, err = e.openPosition(ctx, action, position, closed)

		case trading.ActionResize:
			orderID, attempts, err = e.resizePosition(ctx, action, position)

		default:
			err = fmt.Errorf("unknown action type %q", action.Type)
		}

		outcome := trading.ActionOutcome{
			Action:   action,
			OrderID:  orderID,
			Success:  err == nil,
			Attempts: attempts,
		}
		if err != nil {
			outcome.Error = err.Error()
		}
		record.Outcomes = append(record.Outcomes, outcome)

		if err != nil {
			return record, err
		}
	}

	record.Completed = true
	return record, nil
}

// closePosition submits a reduce-only market order for the full size, then
// polls until the position reads flat or the verify window elapses.
func (e *Executor) closePosition(ctx context.Context, position *trading.Position) (string, int, error) {
	if position.IsFlat() {
		return "", 0, nil
	}

	side := exchange.Sell
	if position.Side == trading.SideShort {
		side = exchange.Buy
	}

	var orderID string
	attempts, err := e.withRetries(ctx, func(actionCtx context.Context) error {
		var submitErr error
		orderID, submitErr = e.ex.CreateOrder(actionCtx, exchange.OrderRequest{
			Symbol:     e.symbol,
			Side:       side,
			Kind:       exchange.Market,
			Qty:        position.SizeBase,
			ReduceOnly: true,
		})
		return submitErr
	})
	if err != nil {
		return orderID, attempts, err
	}

	deadline := e.now().Add(e.closeVerifyWindow)
	for {
		live, readErr := e.ex.GetPosition(ctx, e.symbol)
		if readErr == nil && live.IsFlat() {
			return orderID, attempts, nil
		}
		if e.now().After(deadline) {
			return orderID, attempts, fmt.Errorf("%w: position still open after %s",
				trading.ErrCloseTimeout, e.closeVerifyWindow)
		}
		select {
		case <-ctx.Done():
			return orderID, attempts, ctx.Err()
		case <-time.After(e.pollInterval):
		}
	}
}

// openPosition submits the entry limit order with attached SL and TP after
// re-checking the preconditions: flat account and a signal-side price
// ordering that still holds.
func (e *Executor) openPosition(ctx context.Context, action trading.Action, position *trading.Position, closed bool) (string, int, error) {
	if !position.IsFlat() && !closed {
		return "", 0, fmt.Errorf("%w: refusing to open over a live position", trading.ErrInvariantViolation)
	}
	if err := checkOrdering(action); err != nil {
		return "", 0, err
	}

	side := exchange.Buy
	if action.Side == trading.SuggestionSell {
		side = exchange.Sell
	}

	var orderID string
	attempts, err := e.withRetries(ctx, func(actionCtx context.Context) error {
		var submitErr error
		orderID, submitErr = e.ex.CreateOrder(actionCtx, exchange.OrderRequest{
			Symbol:     e.symbol,
			Side:       side,
			Kind:       exchange.Limit,
			Qty:        action.QtyBase,
			Price:      action.EntryLimit,
			StopLoss:   action.StopLoss,
			TakeProfit: action.TakeProfit,
		})
		return submitErr
	})
	return orderID, attempts, err
}

// resizePosition adds to or reduces the live position by the action delta.
// Reductions are reduce-only so they can never flip the direction.
func (e *Executor) resizePosition(ctx context.Context, action trading.Action, position *trading.Position) (string, int, error) {
	if position.IsFlat() {
		return "", 0, fmt.Errorf("%w: resize with no live position", trading.ErrInvariantViolation)
	}

	grow := action.DeltaBase > 0
	side := exchange.Buy
	if (position.Side == trading.SideLong) != grow {
		side = exchange.Sell
	}

	var orderID string
	attempts, err := e.withRetries(ctx, func(actionCtx context.Context) error {
		var submitErr error
		orderID, submitErr = e.ex.CreateOrder(actionCtx, exchange.OrderRequest{
			Symbol:     e.symbol,
			Side:       side,
			Kind:       exchange.Market,
			Qty:        math.Abs(action.DeltaBase),
			ReduceOnly: !grow,
		})
		return submitErr
	})
	return orderID, attempts, err
}

// withRetries runs fn with the per-action deadline, retrying transient
// failures up to three times at 1s, 2s, 4s with jitter. It returns how many
// attempts ran. Permanent errors fail fast, mapped onto the operational
// error kinds.
func (e *Executor) withRetries(ctx context.Context, fn func(context.Context) error) (int, error) {
	var lastErr error

	for attempt := 0; attempt <= maxActionRetries; attempt++ {
		actionCtx, cancel := context.WithTimeout(ctx, e.actionTimeout)
		err := fn(actionCtx)
		cancel()

		if err == nil {
			return attempt + 1, nil
		}
		lastErr = err

		if !isTransient(err) || attempt == maxActionRetries {
			return attempt + 1, classify(err)
		}

		delay := time.Duration(float64(e.retryBase) * math.Pow(2, float64(attempt)))
		delay += time.Duration(float64(delay) * 0.1 * (2*rand.Float64() - 1))
		select {
		case <-ctx.Done():
			return attempt + 1, ctx.Err()
		case <-time.After(delay):
		}
	}

	return maxActionRetries + 1, classify(lastErr)
}

func isTransient(err error) bool {
	if errors.Is(err, trading.ErrTransientExchange) {
		return true
	}
	if exchange.IsAuthFailure(err) || exchange.IsInsufficientMargin(err) || exchange.IsFilterRejection(err) {
		return false
	}
	return exchange.IsTransient(err)
}

// classify maps exchange failures onto the pipeline's error kinds.
func classify(err error) error {
	switch {
	case err == nil:
		return nil
	case exchange.IsInsufficientMargin(err):
		return fmt.Errorf("%w: %v", trading.ErrInsufficientMargin, err)
	case exchange.IsFilterRejection(err):
		return fmt.Errorf("%w: %v", trading.ErrSymbolFilterRejected, err)
	case isTransient(err):
		return fmt.Errorf("%w: %v", trading.ErrTransientExchange, err)
	default:
		return err
	}
}

// checkOrdering re-validates the SL/entry/TP ordering right before an open.
func checkOrdering(action trading.Action) error {
	switch action.Side {
	case trading.SuggestionBuy:
		if !(action.TakeProfit > action.EntryLimit && action.EntryLimit > action.StopLoss) {
			return fmt.Errorf("%w: BUY requires tp > entry > sl", trading.ErrInvariantViolation)
		}
	case trading.SuggestionSell:
		if !(action.StopLoss > action.EntryLimit && action.EntryLimit > action.TakeProfit) {
			return fmt.Errorf("%w: SELL requires sl > entry > tp", trading.ErrInvariantViolation)
		}
	default:
		return fmt.Errorf("%w: open with side %q", trading.ErrInvariantViolation, action.Side)
	}
	return nil
}
