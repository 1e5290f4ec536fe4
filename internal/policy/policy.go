package policy

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/ducminhle1904/gpt-futures-bot/internal/trading"
)

// Config holds the rule gates applied to a final analysis before trading.
type Config struct {
	MinConfidence    float64       `json:"min_confidence"`
	MinTrendStrength float64       `json:"min_trend_strength"`
	MaxDailyTrades   int           `json:"max_daily_trades"`
	Cooldown         time.Duration `json:"cooldown"`
	MaxLossPct       float64       `json:"max_loss_pct"`

	// Caps indexed by the analysis risk level.
	LeverageCaps map[trading.RiskLevel]int     `json:"leverage_caps_by_risk"`
	PositionCaps map[trading.RiskLevel]float64 `json:"position_caps_by_risk"`
}

// DefaultConfig returns the standard gate thresholds.
func DefaultConfig() Config {
	return Config{
		MinConfidence:    70,
		MinTrendStrength: 60,
		MaxDailyTrades:   3,
		Cooldown:         60 * time.Minute,
		MaxLossPct:       2,
		LeverageCaps: map[trading.RiskLevel]int{
			trading.RiskHigh:   10,
			trading.RiskMedium: 5,
			trading.RiskLow:    3,
		},
		PositionCaps: map[trading.RiskLevel]float64{
			trading.RiskHigh:   30,
			trading.RiskMedium: 20,
			trading.RiskLow:    15,
		},
	}
}

// Policy gates final analyses and tracks the execution cadence: trades per
// calendar day in the scheduler timezone, and the cooldown since the last
// executed plan.
type Policy struct {
	config   Config
	location *time.Location

	mu             sync.Mutex
	lastExecutedAt time.Time
	tradesDay      string
	tradesToday    int
}

// New creates a policy. The location defines the calendar day used by the
// daily trade cap.
func New(config Config, location *time.Location) *Policy {
	if location == nil {
		location = time.UTC
	}
	return &Policy{config: config, location: location}
}

// Admit applies every gate to the final analysis. On success it returns the
// signal with leverage and position size clamped to the risk-level caps. On
// failure it returns an InadmissibleError naming the first failed gate.
func (p *Policy) Admit(analysis *trading.Analysis, now time.Time) (*trading.TradingSignal, error) {
	signal := analysis.Signal

	if !signal.AutoTradingEnabled {
		return nil, &trading.InadmissibleError{Reason: "auto_trading_disabled"}
	}
	if analysis.Confidence < p.config.MinConfidence {
		return nil, &trading.InadmissibleError{
			Reason: "confidence",
			Detail: fmt.Sprintf("%.1f < %.1f", analysis.Confidence, p.config.MinConfidence),
		}
	}
	if analysis.TrendStrength < p.config.MinTrendStrength {
		return nil, &trading.InadmissibleError{
			Reason: "trend_strength",
			Detail: fmt.Sprintf("%.1f < %.1f", analysis.TrendStrength, p.config.MinTrendStrength),
		}
	}

	p.mu.Lock()
	tradesToday := p.tradesTodayLocked(now)
	lastExecuted := p.lastExecutedAt
	p.mu.Unlock()

	if tradesToday >= p.config.MaxDailyTrades {
		return nil, &trading.InadmissibleError{
			Reason: "daily_trade_cap",
			Detail: fmt.Sprintf("%d trades today, cap %d", tradesToday, p.config.MaxDailyTrades),
		}
	}
	if !lastExecuted.IsZero() {
		elapsed := now.Sub(lastExecuted)
		if elapsed < p.config.Cooldown {
			return nil, &trading.InadmissibleError{
				Reason: "cooldown",
				Detail: fmt.Sprintf("%.0fm since last execution, need %.0fm",
					elapsed.Minutes(), p.config.Cooldown.Minutes()),
			}
		}
	}

	if signal.Suggestion != trading.SuggestionHold {
		lossPct := math.Abs(signal.StopLoss-signal.EntryPrice) / signal.EntryPrice * 100
		if lossPct > p.config.MaxLossPct {
			return nil, &trading.InadmissibleError{
				Reason: "loss_cap",
				Detail: fmt.Sprintf("stop distance %.2f%% > %.2f%%", lossPct, p.config.MaxLossPct),
			}
		}

		if cap, ok := p.config.LeverageCaps[analysis.RiskLevel]; ok && signal.Leverage > cap {
			signal.Leverage = cap
		}
		if cap, ok := p.config.PositionCaps[analysis.RiskLevel]; ok && signal.PositionSizePct > cap {
			signal.PositionSizePct = cap
		}
	}

	return &signal, nil
}

// RecordExecution marks one executed plan. The last-execution timestamp only
// moves forward, so clock adjustments cannot shorten the cooldown.
func (p *Policy) RecordExecution(now time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()

	day := now.In(p.location).Format("2006-01-02")
	if day != p.tradesDay {
		p.tradesDay = day
		p.tradesToday = 0
	}
	p.tradesToday++

	if now.After(p.lastExecutedAt) {
		p.lastExecutedAt = now
	}
}

// LastExecutedAt returns the time of the most recent executed plan.
func (p *Policy) LastExecutedAt() time.Time {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastExecutedAt
}

// TradesToday returns the executed-plan count for now's calendar day.
func (p *Policy) TradesToday(now time.Time) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.tradesTodayLocked(now)
}

func (p *Policy) tradesTodayLocked(now time.Time) int {
	if now.In(p.location).Format("2006-01-02") != p.tradesDay {
		return 0
	}
	return p.tradesToday
}
