package advisor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ducminhle1904/gpt-futures-bot/internal/indicators"
	"github.com/ducminhle1904/gpt-futures-bot/internal/market"
	"github.com/ducminhle1904/gpt-futures-bot/internal/trading"
	"github.com/ducminhle1904/gpt-futures-bot/pkg/types"
)

const validReply = `{
  "market_phase": "up",
  "overall_sentiment": "positive",
  "risk_level": "medium",
  "confidence": 80,
  "trend_strength": 70,
  "trading_signals": {
    "position_suggestion": "BUY",
    "entry_price": 60000,
    "stop_loss": 59400,
    "take_profit1": 61200,
    "take_profit2": 61800,
    "take_profit3": 62400,
    "leverage": 5,
    "position_size_pct": 20,
    "auto_trading_enabled": true
  },
  "reasoning": "uptrend intact"
}`

type scriptedLLM struct {
	replies []string
	errs    []error
	calls   int
	prompts []string
}

func (s *scriptedLLM) Complete(ctx context.Context, system, user string) (string, error) {
	i := s.calls
	s.calls++
	s.prompts = append(s.prompts, user)
	var err error
	if i < len(s.errs) {
		err = s.errs[i]
	}
	var reply string
	if i < len(s.replies) {
		reply = s.replies[i]
	}
	return reply, err
}

func sampleData(tf trading.Timeframe) *market.TimeframeData {
	n := tf.WindowSize()
	window := make(types.Window, n)
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		c := 60000 + float64(i)*20
		window[i] = types.OHLCV{
			Timestamp: base.Add(time.Duration(i) * tf.Period()),
			Open:      c - 10, High: c + 30, Low: c - 30, Close: c, Volume: 150,
		}
	}
	snap, _ := indicators.Compute(window)
	return &market.TimeframeData{
		Timeframe:  tf,
		Window:     window,
		Indicators: snap,
		Price:      window.Last().Close,
		FetchedAt:  time.Now(),
	}
}

func TestGateway_AnalyzeTimeframe(t *testing.T) {
	llm := &scriptedLLM{replies: []string{validReply}}
	g := NewGateway(llm, "BTCUSDT")

	analysis, err := g.AnalyzeTimeframe(context.Background(), sampleData(trading.Timeframe1h))
	require.NoError(t, err)

	assert.Equal(t, 1, llm.calls)
	assert.Equal(t, trading.Timeframe1h, analysis.SourceTimeframe)
	assert.Equal(t, trading.SuggestionBuy, analysis.Signal.Suggestion)
	assert.NotZero(t, analysis.GeneratedAt)
	assert.Contains(t, llm.prompts[0], "1h timeframe")
	assert.Contains(t, llm.prompts[0], "rsi_14")
}

func TestGateway_StripsMarkdownFences(t *testing.T) {
	llm := &scriptedLLM{replies: []string{"```json\n" + validReply + "\n```"}}
	g := NewGateway(llm, "BTCUSDT")

	analysis, err := g.AnalyzeTimeframe(context.Background(), sampleData(trading.Timeframe4h))
	require.NoError(t, err)
	assert.Equal(t, trading.PhaseUp, analysis.MarketPhase)
}

func TestGateway_RepromptsOnSchemaViolation(t *testing.T) {
	bad := `{"market_phase": "up", "overall_sentiment": "positive", "risk_level": "medium",
		"confidence": 80, "trend_strength": 70,
		"trading_signals": {"position_suggestion": "MAYBE"}}`
	llm := &scriptedLLM{replies: []string{bad, validReply}}
	g := NewGateway(llm, "BTCUSDT")

	analysis, err := g.AnalyzeTimeframe(context.Background(), sampleData(trading.Timeframe1h))
	require.NoError(t, err)

	assert.Equal(t, 2, llm.calls)
	assert.Contains(t, llm.prompts[1], "rejected")
	assert.Contains(t, llm.prompts[1], "position_suggestion")
	assert.Equal(t, trading.SuggestionBuy, analysis.Signal.Suggestion)
}

func TestGateway_RejectsAfterSecondSchemaViolation(t *testing.T) {
	bad := `{"market_phase": "sideways"}`
	llm := &scriptedLLM{replies: []string{bad, bad}}
	g := NewGateway(llm, "BTCUSDT")

	_, err := g.AnalyzeTimeframe(context.Background(), sampleData(trading.Timeframe1h))
	require.Error(t, err)
	assert.ErrorIs(t, err, trading.ErrAdvisorRejected)
	assert.Equal(t, 2, llm.calls)
}

func TestGateway_RetriesTransportOnce(t *testing.T) {
	llm := &scriptedLLM{
		replies: []string{"", validReply},
		errs:    []error{errors.New("connection reset")},
	}
	g := NewGateway(llm, "BTCUSDT")

	_, err := g.AnalyzeTimeframe(context.Background(), sampleData(trading.Timeframe1h))
	require.NoError(t, err)
	assert.Equal(t, 2, llm.calls)
}

func TestGateway_TransientAfterTwoTransportFailures(t *testing.T) {
	llm := &scriptedLLM{
		errs: []error{errors.New("timeout"), errors.New("timeout")},
	}
	g := NewGateway(llm, "BTCUSDT")

	_, err := g.AnalyzeTimeframe(context.Background(), sampleData(trading.Timeframe1h))
	require.Error(t, err)
	assert.ErrorIs(t, err, trading.ErrTransientAdvisor)
}

type completerFunc func(ctx context.Context, system, user string) (string, error)

func (f completerFunc) Complete(ctx context.Context, system, user string) (string, error) {
	return f(ctx, system, user)
}

func TestGateway_TimeoutRetryGetsFreshDeadline(t *testing.T) {
	calls := 0
	llm := completerFunc(func(ctx context.Context, system, user string) (string, error) {
		calls++
		if calls == 1 {
			// First attempt hangs until its deadline.
			<-ctx.Done()
			return "", ctx.Err()
		}
		if err := ctx.Err(); err != nil {
			return "", err
		}
		return validReply, nil
	})

	g := NewGateway(llm, "BTCUSDT")
	g.timeout = 50 * time.Millisecond

	analysis, err := g.AnalyzeTimeframe(context.Background(), sampleData(trading.Timeframe1h))
	require.NoError(t, err, "retry after a timed-out attempt must start with a live deadline")
	assert.Equal(t, 2, calls)
	assert.Equal(t, trading.SuggestionBuy, analysis.Signal.Suggestion)
}

func TestGateway_AnalyzeFinal(t *testing.T) {
	llm := &scriptedLLM{replies: []string{validReply}}
	g := NewGateway(llm, "BTCUSDT")

	now := time.Now().UnixMilli()
	var sources []*trading.Analysis
	for _, tf := range trading.SourceTimeframes {
		sources = append(sources, &trading.Analysis{
			MarketPhase:      trading.PhaseUp,
			OverallSentiment: trading.SentimentPositive,
			RiskLevel:        trading.RiskMedium,
			Confidence:       75,
			TrendStrength:    65,
			Signal:           trading.TradingSignal{Suggestion: trading.SuggestionHold},
			GeneratedAt:      now,
			SourceTimeframe:  tf,
		})
	}

	analysis, err := g.AnalyzeFinal(context.Background(), sources)
	require.NoError(t, err)
	assert.Equal(t, trading.TimeframeFinal, analysis.SourceTimeframe)
	for _, tf := range trading.SourceTimeframes {
		assert.Contains(t, llm.prompts[0], "["+string(tf)+" analysis]")
	}
}

func TestStripMarkdownCodeBlock(t *testing.T) {
	assert.Equal(t, `{"a":1}`, stripMarkdownCodeBlock("```json\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, stripMarkdownCodeBlock("```\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, stripMarkdownCodeBlock(`{"a":1}`))
}
