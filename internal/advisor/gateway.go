package advisor

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/ducminhle1904/gpt-futures-bot/internal/market"
	"github.com/ducminhle1904/gpt-futures-bot/internal/trading"
)

// DefaultCallTimeout bounds one LLM call.
const DefaultCallTimeout = 60 * time.Second

// Completer is the advisor transport: one prompt in, one reply out.
type Completer interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// Gateway turns market data into validated analyses. A malformed reply gets
// exactly one re-prompt carrying the validation error; a second failure is
// an ErrAdvisorRejected and the trigger is skipped.
type Gateway struct {
	llm     Completer
	symbol  string
	timeout time.Duration
	now     func() time.Time
}

// NewGateway creates an advisor gateway for the symbol.
func NewGateway(llm Completer, symbol string) *Gateway {
	return &Gateway{
		llm:     llm,
		symbol:  symbol,
		timeout: DefaultCallTimeout,
		now:     time.Now,
	}
}

// AnalyzeTimeframe asks the advisor for a verdict on one timeframe window.
func (g *Gateway) AnalyzeTimeframe(ctx context.Context, data *market.TimeframeData) (*trading.Analysis, error) {
	prompt := BuildTimeframePrompt(g.symbol, data)
	return g.analyze(ctx, data.Timeframe, prompt)
}

// AnalyzeFinal asks the advisor to synthesize the combined verdict from the
// four per-timeframe analyses.
func (g *Gateway) AnalyzeFinal(ctx context.Context, sources []*trading.Analysis) (*trading.Analysis, error) {
	prompt := BuildFinalPrompt(g.symbol, sources)
	return g.analyze(ctx, trading.TimeframeFinal, prompt)
}

// analyze runs the complete-parse-validate loop with one validation
// re-prompt and one transport retry.
func (g *Gateway) analyze(ctx context.Context, tf trading.Timeframe, prompt string) (*trading.Analysis, error) {
	reply, err := g.complete(ctx, prompt)
	if err != nil {
		return nil, err
	}

	analysis, parseErr := parseAnalysis(reply)
	if parseErr != nil {
		// One corrective round trip with the validation error attached.
		reply, err = g.complete(ctx, appendValidationError(prompt, parseErr))
		if err != nil {
			return nil, err
		}
		analysis, parseErr = parseAnalysis(reply)
		if parseErr != nil {
			return nil, fmt.Errorf("%w: %v", trading.ErrAdvisorRejected, parseErr)
		}
	}

	analysis.GeneratedAt = g.now().UnixMilli()
	analysis.SourceTimeframe = tf
	return analysis, nil
}

// complete calls the LLM, retrying a transport failure once before giving
// up as transient. Each attempt gets its own deadline so a timed-out first
// call does not doom the retry.
func (g *Gateway) complete(ctx context.Context, prompt string) (string, error) {
	reply, err := g.completeOnce(ctx, prompt)
	if err != nil {
		reply, err = g.completeOnce(ctx, prompt)
		if err != nil {
			return "", fmt.Errorf("%w: %v", trading.ErrTransientAdvisor, err)
		}
	}
	return reply, nil
}

func (g *Gateway) completeOnce(ctx context.Context, prompt string) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()
	return g.llm.Complete(callCtx, systemPrompt, prompt)
}

// parseAnalysis decodes and validates one advisor reply.
func parseAnalysis(reply string) (*trading.Analysis, error) {
	clean := stripMarkdownCodeBlock(reply)

	var analysis trading.Analysis
	if err := json.Unmarshal([]byte(clean), &analysis); err != nil {
		return nil, fmt.Errorf("reply is not valid JSON: %v", err)
	}
	if err := analysis.Validate(); err != nil {
		return nil, err
	}
	return &analysis, nil
}

// stripMarkdownCodeBlock removes markdown fences like ```json ... ``` that
// chat models wrap around JSON replies.
func stripMarkdownCodeBlock(response string) string {
	response = strings.TrimSpace(response)

	re := regexp.MustCompile("(?s)^```(?:json)?\\s*\\n?(.*?)\\n?```$")
	if matches := re.FindStringSubmatch(response); len(matches) > 1 {
		return strings.TrimSpace(matches[1])
	}

	return response
}
