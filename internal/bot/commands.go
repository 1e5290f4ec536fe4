package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ducminhle1904/gpt-futures-bot/internal/scheduler"
	"github.com/ducminhle1904/gpt-futures-bot/internal/trading"
)

// The methods below are the Telegram operator surface. Replies are
// pre-rendered Markdown strings.

// Status reports price, position, equity and pipeline cadence in one message.
func (b *Bot) Status(ctx context.Context) (string, error) {
	price, err := b.deps.Collector.LatestPrice(ctx)
	if err != nil {
		return "", err
	}

	position, equity, err := b.liveState(ctx)
	if err != nil {
		return "", err
	}

	now := b.now()
	var sb strings.Builder
	fmt.Fprintf(&sb, "*%s* $%.2f\n", b.deps.Symbol, price)
	fmt.Fprintf(&sb, "Equity: $%.2f\n", equity)
	fmt.Fprintf(&sb, "Position: %s\n", renderPositionLine(position))
	fmt.Fprintf(&sb, "Trades today: %d\n", b.deps.Policy.TradesToday(now))
	if last := b.deps.Policy.LastExecutedAt(); !last.IsZero() {
		fmt.Fprintf(&sb, "Last trade: %s ago\n", now.Sub(last).Round(time.Minute))
	}
	if final := b.deps.Store.Get(trading.TimeframeFinal); final != nil {
		fmt.Fprintf(&sb, "Last final: %s (%s ago)\n", final.Signal.Suggestion,
			now.Sub(final.GeneratedTime()).Round(time.Minute))
	}
	if b.scheduler != nil {
		fmt.Fprintf(&sb, "Scheduler: %s", b.scheduler.State())
	}
	return sb.String(), nil
}

// Balance reports the account equity.
func (b *Bot) Balance(ctx context.Context) (string, error) {
	_, equity, err := b.liveState(ctx)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("💰 Equity: $%.2f", equity), nil
}

// Position reports the live position.
func (b *Bot) Position(ctx context.Context) (string, error) {
	position, _, err := b.liveState(ctx)
	if err != nil {
		return "", err
	}
	if position.IsFlat() {
		return "No open position", nil
	}
	return fmt.Sprintf("*%s* %s %.4f @ $%.2f\nLeverage: %dx\nMark: $%.2f\nPnL: $%.2f\nLiq: $%.2f",
		position.Symbol, position.Side, position.SizeBase, position.EntryPrice,
		position.Leverage, position.MarkPrice, position.UnrealizedPnL, position.LiqPrice), nil
}

// Price reports the latest traded price.
func (b *Bot) Price(ctx context.Context) (string, error) {
	price, err := b.deps.Collector.LatestPrice(ctx)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("*%s* $%.2f", b.deps.Symbol, price), nil
}

// Analyze runs one source timeframe pass on demand and reports the verdict.
func (b *Bot) Analyze(ctx context.Context, tf trading.Timeframe) (string, error) {
	if b.scheduler == nil {
		return "", fmt.Errorf("scheduler not attached")
	}
	if err := b.scheduler.Trigger(ctx, tf, trading.TriggerManual); err != nil {
		if errors.Is(err, scheduler.ErrInFlight) {
			return fmt.Sprintf("⏳ %s analysis already running", tf), nil
		}
		return "", err
	}
	return b.Last(tf)
}

// Last reports the stored analysis for the timeframe.
func (b *Bot) Last(tf trading.Timeframe) (string, error) {
	analysis := b.deps.Store.Get(tf)
	if analysis == nil {
		return fmt.Sprintf("No %s analysis yet", tf), nil
	}
	return renderAnalysis(analysis, b.now()), nil
}

// Trade runs the full final pipeline on demand: fresh sources, combined
// verdict, policy, reconcile and execute.
func (b *Bot) Trade(ctx context.Context) (string, error) {
	if b.scheduler == nil {
		return "", fmt.Errorf("scheduler not attached")
	}
	if err := b.scheduler.Trigger(ctx, trading.TimeframeFinal, trading.TriggerManual); err != nil {
		if errors.Is(err, scheduler.ErrInFlight) {
			return "⏳ final pass already running", nil
		}
		return "", err
	}
	return b.Last(trading.TimeframeFinal)
}

// Stop initiates a graceful shutdown.
func (b *Bot) Stop(ctx context.Context) (string, error) {
	if b.deps.RequestStop != nil {
		// Reply first, then tear down; the stop goes through the same path
		// as SIGTERM.
		go b.deps.RequestStop()
	}
	return "🛑 shutting down", nil
}

func renderPositionLine(p *trading.Position) string {
	if p.IsFlat() {
		return "flat"
	}
	return fmt.Sprintf("%s %.4f @ $%.2f (%dx, PnL $%.2f)",
		p.Side, p.SizeBase, p.EntryPrice, p.Leverage, p.UnrealizedPnL)
}

func renderAnalysis(a *trading.Analysis, now time.Time) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "*%s analysis* (%s ago)\n", a.SourceTimeframe,
		now.Sub(a.GeneratedTime()).Round(time.Minute))
	fmt.Fprintf(&sb, "Phase: %s | Sentiment: %s | Risk: %s\n",
		a.MarketPhase, a.OverallSentiment, a.RiskLevel)
	fmt.Fprintf(&sb, "Confidence: %.0f | Trend: %.0f\n", a.Confidence, a.TrendStrength)
	fmt.Fprintf(&sb, "Suggestion: *%s*", a.Signal.Suggestion)
	if a.Signal.Suggestion != trading.SuggestionHold {
		fmt.Fprintf(&sb, " entry $%.2f sl $%.2f tp $%.2f (%dx, %.1f%% equity)",
			a.Signal.EntryPrice, a.Signal.StopLoss, a.Signal.TakeProfit1,
			a.Signal.Leverage, a.Signal.PositionSizePct)
	}
	if a.Reasoning != "" {
		fmt.Fprintf(&sb, "\n_%s_", a.Reasoning)
	}
	return sb.String()
}
