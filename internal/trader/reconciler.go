package trader

import (
	"fmt"
	"math"

	"github.com/ducminhle1904/gpt-futures-bot/internal/trading"
)

// SizingConfig holds the instrument constraints used when sizing orders.
// Values from the live instrument filters override these defaults.
type SizingConfig struct {
	StepSize    float64 `json:"step_size"`
	MinNotional float64 `json:"min_notional"`
}

// DefaultSizingConfig returns the BTCUSDT linear contract defaults.
func DefaultSizingConfig() SizingConfig {
	return SizingConfig{
		StepSize:    0.001,
		MinNotional: 1,
	}
}

// Reconciler compares an admissible signal against the live position and
// produces the ordered action plan. It is pure: no I/O, no clock.
type Reconciler struct {
	sizing SizingConfig
}

// NewReconciler creates a reconciler with the given sizing constraints.
func NewReconciler(sizing SizingConfig) *Reconciler {
	if sizing.StepSize <= 0 {
		sizing.StepSize = DefaultSizingConfig().StepSize
	}
	if sizing.MinNotional <= 0 {
		sizing.MinNotional = DefaultSizingConfig().MinNotional
	}
	return &Reconciler{sizing: sizing}
}

// Plan derives the action sequence for the signal given the live position
// and current equity. Exactly one decision row applies to every input:
//
//	flat, HOLD            -> nothing
//	flat, BUY/SELL        -> set leverage, open
//	open, HOLD            -> nothing
//	same side, same lev   -> resize by the target delta, or nothing
//	same side, diff lev   -> close, set leverage, open
//	opposite side         -> close, set leverage, open
//
// A direction change always begins with a close, so no plan can leave the
// account long and short at once.
func (r *Reconciler) Plan(signal *trading.TradingSignal, position *trading.Position, equity float64) (trading.Plan, error) {
	if signal.Suggestion == trading.SuggestionHold {
		return trading.Plan{}, nil
	}
	if err := signal.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", trading.ErrInvariantViolation, err)
	}
	if equity <= 0 {
		return nil, fmt.Errorf("%w: equity %.2f", trading.ErrInvariantViolation, equity)
	}

	target := r.targetQty(signal, equity)

	if position.IsFlat() {
		return r.openPlan(signal, target), nil
	}

	if position.DirectionMatches(signal.Suggestion) {
		if position.Leverage == signal.Leverage {
			return r.resizePlan(signal, position, target), nil
		}
		// Leverage changes on a live position always go through a flat
		// state; a bare leverage call with exposure is never emitted.
		return append(trading.Plan{{Type: trading.ActionClosePosition}}, r.openPlan(signal, target)...), nil
	}

	// Opposite direction: the single allowed flip, close first.
	return append(trading.Plan{{Type: trading.ActionClosePosition}}, r.openPlan(signal, target)...), nil
}

// openPlan builds the leverage-then-open tail shared by every row that ends
// in a fresh position. An open that fails the notional gate is dropped,
// leaving whatever preceded it (possibly an empty plan).
func (r *Reconciler) openPlan(signal *trading.TradingSignal, qty float64) trading.Plan {
	if qty*signal.EntryPrice < r.sizing.MinNotional || qty <= 0 {
		return trading.Plan{}
	}
	return trading.Plan{
		{Type: trading.ActionSetLeverage, Leverage: signal.Leverage},
		{
			Type:       trading.ActionOpenPosition,
			Side:       signal.Suggestion,
			QtyBase:    qty,
			EntryLimit: signal.EntryPrice,
			StopLoss:   signal.StopLoss,
			TakeProfit: signal.TakeProfit1,
		},
	}
}

// resizePlan emits the delta between target and current size, or nothing
// when the delta is below the step or notional floor. A no-op keeps the
// existing SL/TP untouched.
func (r *Reconciler) resizePlan(signal *trading.TradingSignal, position *trading.Position, target float64) trading.Plan {
	delta := target - position.SizeBase
	magnitude := floorToStep(math.Abs(delta), r.sizing.StepSize)

	if magnitude < r.sizing.StepSize || magnitude*signal.EntryPrice < r.sizing.MinNotional {
		return trading.Plan{}
	}
	if delta < 0 {
		magnitude = -magnitude
	}
	return trading.Plan{{Type: trading.ActionResize, DeltaBase: magnitude}}
}

// targetQty converts the percent-of-equity signal into base units, floored
// to the instrument step.
func (r *Reconciler) targetQty(signal *trading.TradingSignal, equity float64) float64 {
	notional := equity * signal.PositionSizePct / 100 * float64(signal.Leverage)
	return floorToStep(notional/signal.EntryPrice, r.sizing.StepSize)
}

// floorToStep returns the largest multiple of step not exceeding qty.
func floorToStep(qty, step float64) float64 {
	if step <= 0 {
		return qty
	}
	steps := math.Floor(qty/step + 1e-9)
	// Round away the float drift so 0.016 stays 0.016, not 0.0159999.
	return math.Round(steps*step*1e8) / 1e8
}
