package advisor

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ducminhle1904/gpt-futures-bot/internal/market"
	"github.com/ducminhle1904/gpt-futures-bot/internal/trading"
)

// promptBars is how many recent bars are inlined into a timeframe prompt.
const promptBars = 10

// systemPrompt carries the fixed schema contract. The reply must be exactly
// one JSON object matching the analysis shape; anything else fails the
// validator pass.
const systemPrompt = `You are a cryptocurrency derivatives market analyst. Based on the market data you are given, produce a clear trading assessment.

Respond with a single JSON object and nothing else. No markdown, no prose outside the JSON. The object must have exactly this shape:

{
  "market_phase": "up" | "down" | "accumulate" | "distribute",
  "overall_sentiment": "positive" | "negative" | "neutral",
  "risk_level": "high" | "medium" | "low",
  "confidence": <number 0-100>,
  "trend_strength": <number 0-100>,
  "trading_signals": {
    "position_suggestion": "BUY" | "SELL" | "HOLD",
    "entry_price": <number>,
    "stop_loss": <number>,
    "take_profit1": <number>,
    "take_profit2": <number>,
    "take_profit3": <number>,
    "leverage": <integer 1-10>,
    "position_size_pct": <number 0-100, percent of account equity>,
    "auto_trading_enabled": <boolean>
  },
  "reasoning": "<short explanation>"
}

Rules:
- For BUY: take_profit1 > entry_price > stop_loss.
- For SELL: stop_loss > entry_price > take_profit1.
- For HOLD: price fields may be 0.
- position_size_pct is a percentage of equity, never an absolute quantity.
- Set auto_trading_enabled to true only when the setup is strong enough to act on without human review.`

// BuildTimeframePrompt renders one timeframe's market data into the user
// prompt: current state, the indicator table, and the last few bars.
func BuildTimeframePrompt(symbol string, data *market.TimeframeData) string {
	var b strings.Builder
	ind := data.Indicators

	fmt.Fprintf(&b, "Analyze %s on the %s timeframe.\n\n", symbol, data.Timeframe)
	fmt.Fprintf(&b, "[Market]\n")
	fmt.Fprintf(&b, "last_price: %.2f\n", data.Price)
	fmt.Fprintf(&b, "window_bars: %d\n\n", len(data.Window))

	fmt.Fprintf(&b, "[Indicators]\n")
	fmt.Fprintf(&b, "rsi_14: %.2f\n", ind.RSI)
	fmt.Fprintf(&b, "macd: %.2f signal: %.2f hist: %.2f\n", ind.MACD, ind.MACDSignal, ind.MACDHist)
	fmt.Fprintf(&b, "bollinger: upper %.2f / middle %.2f / lower %.2f\n", ind.BBUpper, ind.BBMiddle, ind.BBLower)
	fmt.Fprintf(&b, "adx: %.2f di_plus: %.2f di_minus: %.2f\n", ind.ADX, ind.PlusDI, ind.MinusDI)
	fmt.Fprintf(&b, "sma_20: %.2f sma_50: %.2f ema_9: %.2f\n", ind.SMA20, ind.SMA50, ind.EMA9)
	fmt.Fprintf(&b, "vwap: %.2f\n", ind.VWAP)
	fmt.Fprintf(&b, "ichimoku: conversion %.2f base %.2f\n", ind.IchimokuConversion, ind.IchimokuBase)
	fmt.Fprintf(&b, "volume_ratio: %.2f\n\n", ind.VolumeRatio)

	readings := ind.TrendReadings()
	fmt.Fprintf(&b, "[Trend]\n")
	fmt.Fprintf(&b, "adx_trend: %s price_trend: %s ma_trend: %s ichimoku_trend: %s\n\n",
		readings["adx_trend"], readings["price_trend"], readings["ma_trend"], readings["ichimoku_trend"])

	fmt.Fprintf(&b, "[Recent bars: time open high low close volume]\n")
	bars := data.Window
	if len(bars) > promptBars {
		bars = bars[len(bars)-promptBars:]
	}
	for _, bar := range bars {
		fmt.Fprintf(&b, "%s %.2f %.2f %.2f %.2f %.2f\n",
			bar.Timestamp.UTC().Format("01-02 15:04"),
			bar.Open, bar.High, bar.Low, bar.Close, bar.Volume)
	}

	return b.String()
}

// BuildFinalPrompt bundles the four per-timeframe analyses for the combined
// pass. The advisor weighs them into one actionable verdict.
func BuildFinalPrompt(symbol string, sources []*trading.Analysis) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Synthesize a final trading decision for %s from these per-timeframe analyses.\n", symbol)
	fmt.Fprintf(&b, "Weigh longer timeframes more for direction, shorter ones for entry timing.\n\n")

	for _, analysis := range sources {
		data, err := json.MarshalIndent(analysis, "", "  ")
		if err != nil {
			continue
		}
		fmt.Fprintf(&b, "[%s analysis]\n%s\n\n", analysis.SourceTimeframe, data)
	}

	return b.String()
}

// appendValidationError builds the re-prompt after a rejected reply.
func appendValidationError(prompt string, cause error) string {
	return fmt.Sprintf("%s\n\nYour previous reply was rejected: %v\nReply again with a single JSON object that satisfies the schema exactly.", prompt, cause)
}
