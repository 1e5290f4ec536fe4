package events

import (
	"time"

	"github.com/ducminhle1904/gpt-futures-bot/internal/trading"
)

// Type identifies one kind of pipeline event.
type Type string

const (
	AnalysisStarted   Type = "ANALYSIS_STARTED"
	AnalysisCompleted Type = "ANALYSIS_COMPLETED"
	AnalysisFailed    Type = "ANALYSIS_FAILED"
	SignalRejected    Type = "SIGNAL_REJECTED"
	PlanProduced      Type = "PLAN_PRODUCED"
	OrderSubmitted    Type = "ORDER_SUBMITTED"
	OrderFilled       Type = "ORDER_FILLED"
	OrderFailed       Type = "ORDER_FAILED"
	NotifierOverflow  Type = "NOTIFIER_OVERFLOW"
)

// Event is one typed pipeline occurrence with a rendered message. Ack events
// are command acknowledgements and reach only the admin channel.
type Event struct {
	Type      Type                   `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Timeframe trading.Timeframe      `json:"timeframe,omitempty"`
	Message   string                 `json:"message"`
	Ack       bool                   `json:"-"`
	Data      map[string]interface{} `json:"data,omitempty"`
}
