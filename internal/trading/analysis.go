package trading

import (
	"fmt"
	"time"
)

// MarketPhase is the advisor's verdict on the broad market regime.
type MarketPhase string

const (
	PhaseUp         MarketPhase = "up"
	PhaseDown       MarketPhase = "down"
	PhaseAccumulate MarketPhase = "accumulate"
	PhaseDistribute MarketPhase = "distribute"
)

// Sentiment is the advisor's overall directional bias.
type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNegative Sentiment = "negative"
	SentimentNeutral  Sentiment = "neutral"
)

// RiskLevel caps leverage and position size via the signal policy.
type RiskLevel string

const (
	RiskHigh   RiskLevel = "high"
	RiskMedium RiskLevel = "medium"
	RiskLow    RiskLevel = "low"
)

// Suggestion is the advisor's position recommendation.
type Suggestion string

const (
	SuggestionBuy  Suggestion = "BUY"
	SuggestionSell Suggestion = "SELL"
	SuggestionHold Suggestion = "HOLD"
)

// TradingSignal is the actionable subset of an Analysis. Prices may be zero
// when the suggestion is HOLD. PositionSizePct is always a percentage of
// equity, never an absolute base quantity.
type TradingSignal struct {
	Suggestion         Suggestion `json:"position_suggestion"`
	EntryPrice         float64    `json:"entry_price"`
	StopLoss           float64    `json:"stop_loss"`
	TakeProfit1        float64    `json:"take_profit1"`
	TakeProfit2        float64    `json:"take_profit2"`
	TakeProfit3        float64    `json:"take_profit3"`
	Leverage           int        `json:"leverage"`
	PositionSizePct    float64    `json:"position_size_pct"`
	AutoTradingEnabled bool       `json:"auto_trading_enabled"`
}

// Analysis is the advisor's structured verdict for one timeframe.
type Analysis struct {
	MarketPhase      MarketPhase   `json:"market_phase"`
	OverallSentiment Sentiment     `json:"overall_sentiment"`
	RiskLevel        RiskLevel     `json:"risk_level"`
	Confidence       float64       `json:"confidence"`
	TrendStrength    float64       `json:"trend_strength"`
	Signal           TradingSignal `json:"trading_signals"`
	Reasoning        string        `json:"reasoning,omitempty"`
	GeneratedAt      int64         `json:"generated_at"` // unix milliseconds
	SourceTimeframe  Timeframe     `json:"source_timeframe"`
}

// GeneratedTime returns GeneratedAt as a time.Time.
func (a *Analysis) GeneratedTime() time.Time {
	return time.UnixMilli(a.GeneratedAt)
}

// Validate checks every enum, numeric range and the directional ordering
// invariant between stop loss, entry and take profit. It is the single gate
// that keeps malformed advisor output from reaching the rest of the system.
func (a *Analysis) Validate() error {
	switch a.MarketPhase {
	case PhaseUp, PhaseDown, PhaseAccumulate, PhaseDistribute:
	default:
		return fmt.Errorf("market_phase %q out of range", a.MarketPhase)
	}
	switch a.OverallSentiment {
	case SentimentPositive, SentimentNegative, SentimentNeutral:
	default:
		return fmt.Errorf("overall_sentiment %q out of range", a.OverallSentiment)
	}
	switch a.RiskLevel {
	case RiskHigh, RiskMedium, RiskLow:
	default:
		return fmt.Errorf("risk_level %q out of range", a.RiskLevel)
	}
	if a.Confidence < 0 || a.Confidence > 100 {
		return fmt.Errorf("confidence %.2f outside [0,100]", a.Confidence)
	}
	if a.TrendStrength < 0 || a.TrendStrength > 100 {
		return fmt.Errorf("trend_strength %.2f outside [0,100]", a.TrendStrength)
	}
	return a.Signal.Validate()
}

// Validate checks the trading signal's enums, ranges and the SL/entry/TP
// ordering invariant. HOLD signals may leave all price fields at zero.
func (s *TradingSignal) Validate() error {
	switch s.Suggestion {
	case SuggestionBuy, SuggestionSell, SuggestionHold:
	default:
		return fmt.Errorf("position_suggestion %q out of range", s.Suggestion)
	}
	if s.Suggestion == SuggestionHold {
		return nil
	}
	if s.Leverage < 1 || s.Leverage > 10 {
		return fmt.Errorf("leverage %d outside [1,10]", s.Leverage)
	}
	if s.PositionSizePct < 0 || s.PositionSizePct > 100 {
		return fmt.Errorf("position_size_pct %.2f outside [0,100]", s.PositionSizePct)
	}
	if s.EntryPrice <= 0 || s.StopLoss <= 0 || s.TakeProfit1 <= 0 {
		return fmt.Errorf("%s signal requires positive entry, stop loss and take profit", s.Suggestion)
	}
	switch s.Suggestion {
	case SuggestionBuy:
		if !(s.TakeProfit1 > s.EntryPrice && s.EntryPrice > s.StopLoss) {
			return fmt.Errorf("BUY ordering violated: tp=%.2f entry=%.2f sl=%.2f",
				s.TakeProfit1, s.EntryPrice, s.StopLoss)
		}
	case SuggestionSell:
		if !(s.StopLoss > s.EntryPrice && s.EntryPrice > s.TakeProfit1) {
			return fmt.Errorf("SELL ordering violated: sl=%.2f entry=%.2f tp=%.2f",
				s.StopLoss, s.EntryPrice, s.TakeProfit1)
		}
	}
	return nil
}
