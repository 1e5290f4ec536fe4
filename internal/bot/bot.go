package bot

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ducminhle1904/gpt-futures-bot/internal/events"
	"github.com/ducminhle1904/gpt-futures-bot/internal/exchange"
	"github.com/ducminhle1904/gpt-futures-bot/internal/logger"
	"github.com/ducminhle1904/gpt-futures-bot/internal/market"
	"github.com/ducminhle1904/gpt-futures-bot/internal/monitoring"
	"github.com/ducminhle1904/gpt-futures-bot/internal/policy"
	"github.com/ducminhle1904/gpt-futures-bot/internal/scheduler"
	"github.com/ducminhle1904/gpt-futures-bot/internal/store"
	"github.com/ducminhle1904/gpt-futures-bot/internal/trader"
	"github.com/ducminhle1904/gpt-futures-bot/internal/trading"
)

// Advisor produces validated analyses from market data.
type Advisor interface {
	AnalyzeTimeframe(ctx context.Context, data *market.TimeframeData) (*trading.Analysis, error)
	AnalyzeFinal(ctx context.Context, sources []*trading.Analysis) (*trading.Analysis, error)
}

// Publisher fans pipeline events out to the notifier channels.
type Publisher interface {
	Publish(event events.Event)
}

// Deps wires the pipeline stages into the bot. Log, Bus and Health may be
// nil; the bot then runs silent on that concern.
type Deps struct {
	Symbol     string
	Location   *time.Location
	Exchange   exchange.Exchange
	Collector  *market.Collector
	Advisor    Advisor
	Store      *store.Store
	History    *store.History
	Policy     *policy.Policy
	Reconciler *trader.Reconciler
	Executor   *trader.Executor
	Bus        Publisher
	Log        *logger.Logger
	Health     *monitoring.HealthChecker

	// RequestStop initiates a graceful shutdown; wired to the main context
	// cancel so /stop and SIGTERM share one path.
	RequestStop func()
}

// Bot runs the analysis-to-execution pipeline: collect market data, ask the
// advisor, persist the verdict, and on a final pass gate, plan and execute.
// It is the scheduler's Runner and the Telegram command surface.
type Bot struct {
	deps Deps
	now  func() time.Time

	// Set after construction; the scheduler needs the bot's RunPass and the
	// bot's commands need the scheduler's Trigger.
	scheduler *scheduler.Scheduler
}

// New creates the pipeline orchestrator.
func New(deps Deps) *Bot {
	if deps.Location == nil {
		deps.Location = time.UTC
	}
	return &Bot{deps: deps, now: time.Now}
}

// AttachScheduler hands the bot its scheduler for manual triggers.
func (b *Bot) AttachScheduler(s *scheduler.Scheduler) {
	b.scheduler = s
}

// RunPass is the scheduler entry point: one pipeline pass for one timeframe.
func (b *Bot) RunPass(ctx context.Context, tf trading.Timeframe, trigger trading.TriggerKind) error {
	if tf == trading.TimeframeFinal {
		return b.runFinalPass(ctx, trigger)
	}
	_, err := b.runSourcePass(ctx, tf, trigger)
	return err
}

// runSourcePass collects one timeframe window, asks the advisor and persists
// the verdict.
func (b *Bot) runSourcePass(ctx context.Context, tf trading.Timeframe, trigger trading.TriggerKind) (*trading.Analysis, error) {
	start := b.now()
	b.publish(events.Event{
		Type:      events.AnalysisStarted,
		Timeframe: tf,
		Message:   fmt.Sprintf("🔍 %s analysis started (%s)", tf, trigger),
	})

	data, err := b.deps.Collector.Collect(ctx, tf)
	if err != nil {
		return nil, b.failPass(tf, start, fmt.Errorf("market data: %w", err))
	}
	monitoring.UpdatePrice(b.deps.Symbol, data.Price)

	analysis, err := b.deps.Advisor.AnalyzeTimeframe(ctx, data)
	if err != nil {
		return nil, b.failPass(tf, start, fmt.Errorf("advisor: %w", err))
	}

	if err := b.deps.Store.Put(tf, analysis); err != nil {
		return nil, b.failPass(tf, start, fmt.Errorf("store: %w", err))
	}

	b.completePass(tf, trigger, analysis, start, data.Price)
	return analysis, nil
}

// runFinalPass synthesizes the combined verdict and, when the policy admits
// it, reconciles and executes against the live position.
func (b *Bot) runFinalPass(ctx context.Context, trigger trading.TriggerKind) error {
	start := b.now()
	b.publish(events.Event{
		Type:      events.AnalysisStarted,
		Timeframe: trading.TimeframeFinal,
		Message:   fmt.Sprintf("🔍 final analysis started (%s)", trigger),
	})

	if err := b.refreshStaleSources(ctx, trigger); err != nil {
		return b.failPass(trading.TimeframeFinal, start, err)
	}

	sources, err := b.deps.Store.FreshSources()
	if err != nil {
		return b.failPass(trading.TimeframeFinal, start, err)
	}

	final, err := b.deps.Advisor.AnalyzeFinal(ctx, sources)
	if err != nil {
		return b.failPass(trading.TimeframeFinal, start, fmt.Errorf("advisor: %w", err))
	}

	if err := b.deps.Store.Put(trading.TimeframeFinal, final); err != nil {
		return b.failPass(trading.TimeframeFinal, start, fmt.Errorf("store: %w", err))
	}

	b.completePass(trading.TimeframeFinal, trigger, final, start, final.Signal.EntryPrice)
	return b.maybeTrade(ctx, trigger, final)
}

// refreshStaleSources re-runs any source timeframe whose snapshot would not
// satisfy the final freshness gate. This is what keeps the final pass alive
// when 15m is not on the scheduler.
func (b *Bot) refreshStaleSources(ctx context.Context, trigger trading.TriggerKind) error {
	var prevFinal int64
	if final := b.deps.Store.Get(trading.TimeframeFinal); final != nil {
		prevFinal = final.GeneratedAt
	}

	for _, tf := range trading.SourceTimeframes {
		for {
			snapshot := b.deps.Store.Get(tf)
			if snapshot != nil && snapshot.GeneratedAt > prevFinal {
				break
			}
			err := b.triggerSource(ctx, tf, trigger)
			if err == nil {
				break
			}
			if !errors.Is(err, scheduler.ErrInFlight) {
				return fmt.Errorf("refresh %s: %w", tf, err)
			}
			// A scheduled pass for this timeframe is already running; wait
			// for its result instead of racing it.
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(250 * time.Millisecond):
			}
		}
	}
	return nil
}

// triggerSource runs one source pass under the scheduler's single-flight
// guard when a scheduler is attached.
func (b *Bot) triggerSource(ctx context.Context, tf trading.Timeframe, trigger trading.TriggerKind) error {
	if b.scheduler != nil {
		return b.scheduler.RunExclusive(ctx, tf, trigger)
	}
	_, err := b.runSourcePass(ctx, tf, trigger)
	return err
}

// maybeTrade applies the policy to the final analysis and, when admitted,
// plans against the live position and executes. A policy rejection is a
// normal outcome, not an error.
func (b *Bot) maybeTrade(ctx context.Context, trigger trading.TriggerKind, final *trading.Analysis) error {
	signal, err := b.deps.Policy.Admit(final, b.now())
	if err != nil {
		if ie, ok := trading.IsInadmissible(err); ok {
			monitoring.RecordSignalRejected(ie.Reason)
			b.publish(events.Event{
				Type:    events.SignalRejected,
				Message: fmt.Sprintf("🚫 signal rejected: %v", ie),
			})
			b.logInfo("signal rejected: %v", ie)
			return nil
		}
		return err
	}

	if signal.Suggestion == trading.SuggestionHold {
		b.publish(events.Event{
			Type:    events.PlanProduced,
			Message: "✋ advisor says HOLD, no action",
		})
		return nil
	}

	position, equity, err := b.liveState(ctx)
	if err != nil {
		b.publish(events.Event{
			Type:    events.OrderFailed,
			Message: fmt.Sprintf("❌ could not read live position: %v", err),
		})
		return err
	}

	plan, err := b.deps.Reconciler.Plan(signal, position, equity)
	if err != nil {
		monitoring.RecordError("reconcile")
		b.publish(events.Event{
			Type:    events.OrderFailed,
			Message: fmt.Sprintf("❌ reconcile failed: %v", err),
		})
		return err
	}
	if len(plan) == 0 {
		b.publish(events.Event{
			Type:    events.PlanProduced,
			Message: "✋ position already aligned with signal, no action",
		})
		return nil
	}

	b.publish(events.Event{
		Type:    events.PlanProduced,
		Message: fmt.Sprintf("📋 plan: %s", plan),
	})

	record, execErr := b.deps.Executor.Execute(ctx, trigger, signal, plan, position)
	b.recordTrade(record, execErr)
	if execErr != nil {
		return execErr
	}

	b.publish(events.Event{
		Type: events.OrderFilled,
		Message: fmt.Sprintf("✅ plan executed: %s %s at %.2f (%.1f%% equity, %dx)",
			signal.Suggestion, b.deps.Symbol, signal.EntryPrice, signal.PositionSizePct, signal.Leverage),
	})
	return nil
}

// recordTrade persists the trade record and updates cadence and metrics.
// Cadence counts any plan that reached the exchange, completed or not.
func (b *Bot) recordTrade(record *trading.TradeRecord, execErr error) {
	if record == nil {
		return
	}

	if b.deps.History != nil {
		if err := b.deps.History.Append(record); err != nil {
			b.logError("trade history append", err)
		}
	}

	executed := false
	for _, outcome := range record.Outcomes {
		status := "ok"
		if !outcome.Success {
			status = "error"
		}
		monitoring.RecordOrderAction(string(outcome.Action.Type), status)
		if outcome.Success && outcome.OrderID != "" {
			executed = true
			b.publish(events.Event{
				Type:    events.OrderSubmitted,
				Message: fmt.Sprintf("📤 %s order %s", outcome.Action.Type, outcome.OrderID),
			})
		}
	}

	if executed || record.Completed {
		b.deps.Policy.RecordExecution(b.now())
		monitoring.RecordTrade(b.deps.Symbol, string(record.Signal.Suggestion))
		if b.deps.Health != nil {
			b.deps.Health.RecordTrade()
		}
	}

	if b.deps.Log != nil {
		b.deps.Log.LogPlanExecution(string(record.Trigger), record.Plan.String(),
			len(record.Outcomes), record.Completed)
	}

	if execErr != nil {
		monitoring.RecordError("execute")
		b.publish(events.Event{
			Type:    events.OrderFailed,
			Message: fmt.Sprintf("❌ plan aborted: %v", execErr),
		})
		b.logError("plan execution", execErr)
	}
}

// liveState reads the position and equity the plan must be built from.
func (b *Bot) liveState(ctx context.Context) (*trading.Position, float64, error) {
	ctx, cancel := context.WithTimeout(ctx, trader.DefaultActionTimeout)
	defer cancel()

	var position *trading.Position
	err := exchange.Retry(ctx, func() error {
		p, err := b.deps.Exchange.GetPosition(ctx, b.deps.Symbol)
		if err != nil {
			return err
		}
		position = p
		return nil
	})
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", trading.ErrTransientExchange, err)
	}

	var equity float64
	err = exchange.Retry(ctx, func() error {
		e, err := b.deps.Exchange.GetEquity(ctx)
		if err != nil {
			return err
		}
		equity = e
		return nil
	})
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", trading.ErrTransientExchange, err)
	}

	return position, equity, nil
}

// completePass reports one successful analysis pass everywhere it matters.
func (b *Bot) completePass(tf trading.Timeframe, trigger trading.TriggerKind, analysis *trading.Analysis, start time.Time, price float64) {
	elapsed := b.now().Sub(start)
	monitoring.RecordAnalysisPass(string(tf), "ok", elapsed.Seconds())
	monitoring.UpdateAdvisorConfidence(string(tf), analysis.Confidence)
	if b.deps.Health != nil {
		b.deps.Health.RecordAnalysis(price)
	}
	if b.deps.Log != nil {
		b.deps.Log.LogAnalysisPass(string(tf), string(trigger),
			string(analysis.Signal.Suggestion), analysis.Confidence, elapsed)
	}
	b.publish(events.Event{
		Type:      events.AnalysisCompleted,
		Timeframe: tf,
		Message: fmt.Sprintf("📊 %s analysis: %s (%s, confidence %.0f, trend %.0f)",
			tf, analysis.Signal.Suggestion, analysis.MarketPhase, analysis.Confidence, analysis.TrendStrength),
	})
}

// failPass reports one failed analysis pass and returns the error.
func (b *Bot) failPass(tf trading.Timeframe, start time.Time, err error) error {
	monitoring.RecordAnalysisPass(string(tf), "error", b.now().Sub(start).Seconds())
	monitoring.RecordError("analysis")
	if b.deps.Health != nil {
		b.deps.Health.RecordError(fmt.Sprintf("%s: %v", tf, err))
	}
	b.logError(fmt.Sprintf("%s analysis", tf), err)
	b.publish(events.Event{
		Type:      events.AnalysisFailed,
		Timeframe: tf,
		Message:   fmt.Sprintf("⚠️ %s analysis failed: %v", tf, err),
	})
	return err
}

func (b *Bot) publish(event events.Event) {
	if b.deps.Bus != nil {
		b.deps.Bus.Publish(event)
	}
}

func (b *Bot) logInfo(format string, args ...interface{}) {
	if b.deps.Log != nil {
		b.deps.Log.Info(format, args...)
	}
}

func (b *Bot) logError(context string, err error) {
	if b.deps.Log != nil {
		b.deps.Log.LogError(context, err)
	}
}
