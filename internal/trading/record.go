package trading

import "time"

// TriggerKind distinguishes scheduler-driven executions from operator ones.
type TriggerKind string

const (
	TriggerAuto   TriggerKind = "auto"
	TriggerManual TriggerKind = "manual"
)

// ActionOutcome records the result of one executed plan action.
type ActionOutcome struct {
	Action   Action `json:"action"`
	OrderID  string `json:"order_id,omitempty"`
	Success  bool   `json:"success"`
	Error    string `json:"error,omitempty"`
	Attempts int    `json:"attempts"`
}

// TradeRecord is one append-only entry in the trade history log. Records are
// never mutated after being written.
type TradeRecord struct {
	Timestamp time.Time       `json:"timestamp"`
	Trigger   TriggerKind     `json:"trigger"`
	Symbol    string          `json:"symbol"`
	Signal    TradingSignal   `json:"signal"`
	Plan      Plan            `json:"plan"`
	Outcomes  []ActionOutcome `json:"outcomes"`
	Completed bool            `json:"completed"`
}
