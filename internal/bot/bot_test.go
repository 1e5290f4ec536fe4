package bot

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ducminhle1904/gpt-futures-bot/internal/events"
	"github.com/ducminhle1904/gpt-futures-bot/internal/exchange"
	"github.com/ducminhle1904/gpt-futures-bot/internal/market"
	"github.com/ducminhle1904/gpt-futures-bot/internal/policy"
	"github.com/ducminhle1904/gpt-futures-bot/internal/scheduler"
	"github.com/ducminhle1904/gpt-futures-bot/internal/store"
	"github.com/ducminhle1904/gpt-futures-bot/internal/trader"
	"github.com/ducminhle1904/gpt-futures-bot/internal/trading"
	"github.com/ducminhle1904/gpt-futures-bot/pkg/types"
)

type fakeExchange struct {
	mu       sync.Mutex
	price    float64
	equity   float64
	position trading.Position
	orders   []exchange.OrderRequest
	levCalls []int
}

func newFakeExchange() *fakeExchange {
	return &fakeExchange{
		price:    60000,
		equity:   1000,
		position: trading.Position{Symbol: "BTCUSDT", Side: trading.SideFlat},
	}
}

func (f *fakeExchange) GetOHLCV(ctx context.Context, symbol string, tf trading.Timeframe, limit int) (types.Window, error) {
	window := make(types.Window, limit)
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < limit; i++ {
		c := 59000 + float64(i)*10
		window[i] = types.OHLCV{
			Timestamp: base.Add(time.Duration(i) * tf.Period()),
			Open:      c - 5, High: c + 20, Low: c - 20, Close: c, Volume: 100,
		}
	}
	return window, nil
}

func (f *fakeExchange) GetLatestPrice(ctx context.Context, symbol string) (float64, error) {
	return f.price, nil
}

func (f *fakeExchange) GetEquity(ctx context.Context) (float64, error) { return f.equity, nil }

func (f *fakeExchange) GetPosition(ctx context.Context, symbol string) (*trading.Position, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p := f.position
	return &p, nil
}

func (f *fakeExchange) SetLeverage(ctx context.Context, symbol string, leverage int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.levCalls = append(f.levCalls, leverage)
	return nil
}

func (f *fakeExchange) CreateOrder(ctx context.Context, req exchange.OrderRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.orders = append(f.orders, req)
	return fmt.Sprintf("ord-%d", len(f.orders)), nil
}

func (f *fakeExchange) CancelOrder(ctx context.Context, symbol, orderID string) error { return nil }

func (f *fakeExchange) GetFilters(ctx context.Context, symbol string) (exchange.Filters, error) {
	return exchange.Filters{QtyStep: 0.001, MinNotional: 1}, nil
}

// scriptedAdvisor returns canned analyses and records what it was asked.
// Setting holdTf makes the first analysis for that timeframe block until
// holdRelease closes, signalling holdStarted on entry.
type scriptedAdvisor struct {
	mu            sync.Mutex
	timeframes    []trading.Timeframe
	finalCalls    int
	finalAnalysis trading.Analysis
	generated     int64

	holdTf      trading.Timeframe
	holdStarted chan struct{}
	holdRelease chan struct{}
	holdOnce    sync.Once
}

func (a *scriptedAdvisor) nextStamp() int64 {
	a.generated++
	return time.Now().UnixMilli() + a.generated
}

func (a *scriptedAdvisor) AnalyzeTimeframe(ctx context.Context, data *market.TimeframeData) (*trading.Analysis, error) {
	if a.holdTf != "" && data.Timeframe == a.holdTf {
		a.holdOnce.Do(func() { close(a.holdStarted) })
		<-a.holdRelease
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.timeframes = append(a.timeframes, data.Timeframe)
	out := holdAnalysis()
	out.SourceTimeframe = data.Timeframe
	out.GeneratedAt = a.nextStamp()
	return &out, nil
}

func (a *scriptedAdvisor) AnalyzeFinal(ctx context.Context, sources []*trading.Analysis) (*trading.Analysis, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.finalCalls++
	out := a.finalAnalysis
	out.SourceTimeframe = trading.TimeframeFinal
	out.GeneratedAt = a.nextStamp()
	return &out, nil
}

func holdAnalysis() trading.Analysis {
	return trading.Analysis{
		MarketPhase:      trading.PhaseAccumulate,
		OverallSentiment: trading.SentimentNeutral,
		RiskLevel:        trading.RiskMedium,
		Confidence:       75,
		TrendStrength:    65,
		Signal: trading.TradingSignal{
			Suggestion:         trading.SuggestionHold,
			AutoTradingEnabled: true,
		},
	}
}

func buyAnalysis() trading.Analysis {
	a := holdAnalysis()
	a.OverallSentiment = trading.SentimentPositive
	a.Signal = trading.TradingSignal{
		Suggestion:         trading.SuggestionBuy,
		EntryPrice:         60000,
		StopLoss:           59400,
		TakeProfit1:        61200,
		Leverage:           5,
		PositionSizePct:    10,
		AutoTradingEnabled: true,
	}
	return a
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *recordingPublisher) Publish(event events.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *recordingPublisher) typesSeen() []events.Type {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]events.Type, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}

type fixture struct {
	bot       *Bot
	exchange  *fakeExchange
	advisor   *scriptedAdvisor
	store     *store.Store
	history   *store.History
	publisher *recordingPublisher
	policy    *policy.Policy
}

func newFixture(t *testing.T, final trading.Analysis) *fixture {
	t.Helper()
	dir := t.TempDir()

	st, err := store.New(filepath.Join(dir, "analysis"))
	require.NoError(t, err)
	history, err := store.NewHistory(filepath.Join(dir, "history.jsonl"))
	require.NoError(t, err)

	ex := newFakeExchange()
	adv := &scriptedAdvisor{finalAnalysis: final}
	pub := &recordingPublisher{}
	pol := policy.New(policy.DefaultConfig(), time.UTC)

	b := New(Deps{
		Symbol:     "BTCUSDT",
		Location:   time.UTC,
		Exchange:   ex,
		Collector:  market.NewCollector(ex, "BTCUSDT"),
		Advisor:    adv,
		Store:      st,
		History:    history,
		Policy:     pol,
		Reconciler: trader.NewReconciler(trader.DefaultSizingConfig()),
		Executor:   trader.NewExecutor(ex, "BTCUSDT"),
		Bus:        pub,
	})

	return &fixture{bot: b, exchange: ex, advisor: adv, store: st,
		history: history, publisher: pub, policy: pol}
}

func TestBot_SourcePassStoresAnalysis(t *testing.T) {
	f := newFixture(t, holdAnalysis())

	err := f.bot.RunPass(context.Background(), trading.Timeframe1h, trading.TriggerAuto)
	require.NoError(t, err)

	stored := f.store.Get(trading.Timeframe1h)
	require.NotNil(t, stored)
	assert.Equal(t, trading.Timeframe1h, stored.SourceTimeframe)

	seen := f.publisher.typesSeen()
	assert.Contains(t, seen, events.AnalysisStarted)
	assert.Contains(t, seen, events.AnalysisCompleted)
}

func TestBot_FinalPassRefreshesStaleSources(t *testing.T) {
	f := newFixture(t, buyAnalysis())

	// Empty store: the final pass must refresh all four sources first.
	err := f.bot.RunPass(context.Background(), trading.TimeframeFinal, trading.TriggerAuto)
	require.NoError(t, err)

	assert.ElementsMatch(t, trading.SourceTimeframes, f.advisor.timeframes)
	assert.Equal(t, 1, f.advisor.finalCalls)
	require.NotNil(t, f.store.Get(trading.TimeframeFinal))
}

func TestBot_FinalPassExecutesAdmittedBuy(t *testing.T) {
	f := newFixture(t, buyAnalysis())

	err := f.bot.RunPass(context.Background(), trading.TimeframeFinal, trading.TriggerAuto)
	require.NoError(t, err)

	// Leverage set, then one limit open. 1000 * 10% * 5x / 60000 = 0.008.
	require.Equal(t, []int{5}, f.exchange.levCalls)
	require.Len(t, f.exchange.orders, 1)
	order := f.exchange.orders[0]
	assert.Equal(t, exchange.Buy, order.Side)
	assert.Equal(t, exchange.Limit, order.Kind)
	assert.InDelta(t, 0.008, order.Qty, 1e-9)
	assert.Equal(t, 60000.0, order.Price)

	// Cadence and history both recorded.
	assert.Equal(t, 1, f.policy.TradesToday(time.Now()))
	records, err := f.history.Recent(10)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.True(t, records[0].Completed)

	seen := f.publisher.typesSeen()
	assert.Contains(t, seen, events.PlanProduced)
	assert.Contains(t, seen, events.OrderSubmitted)
	assert.Contains(t, seen, events.OrderFilled)
}

func TestBot_PolicyRejectionIsNotAnError(t *testing.T) {
	low := buyAnalysis()
	low.Confidence = 40
	f := newFixture(t, low)

	err := f.bot.RunPass(context.Background(), trading.TimeframeFinal, trading.TriggerAuto)
	require.NoError(t, err)

	assert.Empty(t, f.exchange.orders)
	assert.Empty(t, f.exchange.levCalls)
	assert.Contains(t, f.publisher.typesSeen(), events.SignalRejected)
	assert.Equal(t, 0, f.policy.TradesToday(time.Now()))
}

func TestBot_HoldProducesNoOrders(t *testing.T) {
	f := newFixture(t, holdAnalysis())

	err := f.bot.RunPass(context.Background(), trading.TimeframeFinal, trading.TriggerAuto)
	require.NoError(t, err)

	assert.Empty(t, f.exchange.orders)
	assert.Contains(t, f.publisher.typesSeen(), events.PlanProduced)
}

func TestBot_SecondFinalNeedsFreshSources(t *testing.T) {
	f := newFixture(t, holdAnalysis())

	require.NoError(t, f.bot.RunPass(context.Background(), trading.TimeframeFinal, trading.TriggerAuto))
	require.Equal(t, 4, len(f.advisor.timeframes))

	// The second final pass sees every source older than the final snapshot
	// and refreshes them all again.
	require.NoError(t, f.bot.RunPass(context.Background(), trading.TimeframeFinal, trading.TriggerAuto))
	assert.Equal(t, 8, len(f.advisor.timeframes))
	assert.Equal(t, 2, f.advisor.finalCalls)
}

func TestBot_FinalRefreshWaitsForInFlightSource(t *testing.T) {
	f := newFixture(t, holdAnalysis())

	// First final pass seeds the store so every source reads stale next time.
	require.NoError(t, f.bot.RunPass(context.Background(), trading.TimeframeFinal, trading.TriggerAuto))

	sched := scheduler.New(time.UTC, trading.SourceTimeframes, f.bot.RunPass, nil)
	require.NoError(t, sched.Start())
	defer sched.Stop()
	f.bot.AttachScheduler(sched)

	// A scheduled-style 1h pass is mid-advisor-call when the final starts.
	f.advisor.holdTf = trading.Timeframe1h
	f.advisor.holdStarted = make(chan struct{})
	f.advisor.holdRelease = make(chan struct{})
	go func() {
		_ = sched.Trigger(context.Background(), trading.Timeframe1h, trading.TriggerAuto)
	}()
	<-f.advisor.holdStarted

	finalDone := make(chan error, 1)
	go func() {
		finalDone <- f.bot.RunPass(context.Background(), trading.TimeframeFinal, trading.TriggerManual)
	}()

	time.Sleep(100 * time.Millisecond)
	close(f.advisor.holdRelease)
	require.NoError(t, <-finalDone)

	// The 1h timeframe was analyzed exactly twice: once by the first final's
	// refresh and once by the blocked scheduled pass. The second final waited
	// for that pass instead of running a concurrent duplicate.
	f.advisor.mu.Lock()
	defer f.advisor.mu.Unlock()
	hourly := 0
	for _, tf := range f.advisor.timeframes {
		if tf == trading.Timeframe1h {
			hourly++
		}
	}
	assert.Equal(t, 2, hourly)
	assert.Equal(t, 2, f.advisor.finalCalls)
}

func TestBot_LastCommand(t *testing.T) {
	f := newFixture(t, holdAnalysis())

	reply, err := f.bot.Last(trading.TimeframeFinal)
	require.NoError(t, err)
	assert.Contains(t, reply, "No final analysis yet")

	require.NoError(t, f.bot.RunPass(context.Background(), trading.Timeframe4h, trading.TriggerManual))
	reply, err = f.bot.Last(trading.Timeframe4h)
	require.NoError(t, err)
	assert.Contains(t, reply, "HOLD")
	assert.Contains(t, reply, "4h analysis")
}

func TestBot_StatusCommand(t *testing.T) {
	f := newFixture(t, holdAnalysis())

	reply, err := f.bot.Status(context.Background())
	require.NoError(t, err)
	assert.Contains(t, reply, "BTCUSDT")
	assert.Contains(t, reply, "flat")
	assert.Contains(t, reply, "Trades today: 0")
}
