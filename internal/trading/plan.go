package trading

import (
	"fmt"
	"strings"
)

// ActionType tags the primitive exchange actions a plan is built from.
type ActionType string

const (
	ActionSetLeverage   ActionType = "SET_LEVERAGE"
	ActionClosePosition ActionType = "CLOSE_POSITION"
	ActionOpenPosition  ActionType = "OPEN_POSITION"
	ActionResize        ActionType = "RESIZE_POSITION"
)

// Action is one primitive order action. Only the fields relevant to its
// Type are populated.
type Action struct {
	Type ActionType `json:"type"`

	// ActionSetLeverage
	Leverage int `json:"leverage,omitempty"`

	// ActionOpenPosition
	Side       Suggestion `json:"side,omitempty"`
	QtyBase    float64    `json:"qty_base,omitempty"`
	EntryLimit float64    `json:"entry_limit,omitempty"`
	StopLoss   float64    `json:"stop_loss,omitempty"`
	TakeProfit float64    `json:"take_profit,omitempty"`

	// ActionResize; positive adds in the current direction, negative reduces.
	DeltaBase float64 `json:"delta_base,omitempty"`
}

// Plan is an ordered list of actions produced by the reconciler for a single
// trigger. A plan never contains more than one direction change.
type Plan []Action

// String renders the plan compactly for logs and notifications.
func (p Plan) String() string {
	if len(p) == 0 {
		return "hold"
	}
	parts := make([]string, 0, len(p))
	for _, a := range p {
		switch a.Type {
		case ActionSetLeverage:
			parts = append(parts, fmt.Sprintf("SetLeverage(%dx)", a.Leverage))
		case ActionClosePosition:
			parts = append(parts, "ClosePosition")
		case ActionOpenPosition:
			parts = append(parts, fmt.Sprintf("Open(%s %.4f @ %.2f sl=%.2f tp=%.2f)",
				a.Side, a.QtyBase, a.EntryLimit, a.StopLoss, a.TakeProfit))
		case ActionResize:
			parts = append(parts, fmt.Sprintf("Resize(%+.4f)", a.DeltaBase))
		}
	}
	return strings.Join(parts, " -> ")
}
