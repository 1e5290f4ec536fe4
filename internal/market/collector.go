package market

import (
	"context"
	"fmt"
	"time"

	"github.com/ducminhle1904/gpt-futures-bot/internal/exchange"
	"github.com/ducminhle1904/gpt-futures-bot/internal/indicators"
	"github.com/ducminhle1904/gpt-futures-bot/internal/trading"
	"github.com/ducminhle1904/gpt-futures-bot/pkg/types"
)

// DefaultFetchTimeout bounds one market data pull, retries included.
const DefaultFetchTimeout = 10 * time.Second

// TimeframeData is one validated kline window with its indicator snapshot.
type TimeframeData struct {
	Timeframe  trading.Timeframe
	Window     types.Window
	Indicators *indicators.Snapshot
	Price      float64
	FetchedAt  time.Time
}

// Collector pulls kline windows from the exchange and turns them into
// indicator snapshots. Transient exchange failures are retried internally;
// what comes back is either usable data or a classified error.
type Collector struct {
	exchange exchange.Exchange
	symbol   string
	timeout  time.Duration
}

// NewCollector creates a collector for the symbol.
func NewCollector(ex exchange.Exchange, symbol string) *Collector {
	return &Collector{
		exchange: ex,
		symbol:   symbol,
		timeout:  DefaultFetchTimeout,
	}
}

// Collect fetches the timeframe's window, validates it, and computes the
// indicator snapshot. Short or out-of-order data maps to
// ErrMarketDataUnavailable; exhausted retries map to ErrTransientExchange.
func (c *Collector) Collect(ctx context.Context, tf trading.Timeframe) (*TimeframeData, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	want := tf.WindowSize()

	var window types.Window
	err := exchange.Retry(ctx, func() error {
		var fetchErr error
		window, fetchErr = c.exchange.GetOHLCV(ctx, c.symbol, tf, want)
		return fetchErr
	})
	if err != nil {
		return nil, fmt.Errorf("%w: fetch %s klines: %v", trading.ErrTransientExchange, tf, err)
	}

	if err := validateWindow(window, want); err != nil {
		return nil, fmt.Errorf("%w: %s window: %v", trading.ErrMarketDataUnavailable, tf, err)
	}

	snap, err := indicators.Compute(window)
	if err != nil {
		return nil, fmt.Errorf("%w: %s indicators: %v", trading.ErrMarketDataUnavailable, tf, err)
	}

	return &TimeframeData{
		Timeframe:  tf,
		Window:     window,
		Indicators: snap,
		Price:      window.Last().Close,
		FetchedAt:  time.Now(),
	}, nil
}

// LatestPrice returns the last traded price, with the standard retry.
func (c *Collector) LatestPrice(ctx context.Context) (float64, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var price float64
	err := exchange.Retry(ctx, func() error {
		var fetchErr error
		price, fetchErr = c.exchange.GetLatestPrice(ctx, c.symbol)
		return fetchErr
	})
	if err != nil {
		return 0, fmt.Errorf("%w: fetch price: %v", trading.ErrTransientExchange, err)
	}
	if price <= 0 {
		return 0, fmt.Errorf("%w: non-positive price %f", trading.ErrMarketDataUnavailable, price)
	}
	return price, nil
}

// validateWindow enforces the shape the rest of the pipeline assumes:
// the full requested length, ascending timestamps, positive prices.
func validateWindow(window types.Window, want int) error {
	if len(window) < want {
		return fmt.Errorf("got %d bars, want %d", len(window), want)
	}
	if !window.IsSorted() {
		return fmt.Errorf("timestamps not strictly ascending")
	}
	for i, bar := range window {
		if bar.Close <= 0 || bar.High <= 0 || bar.Low <= 0 || bar.Open <= 0 {
			return fmt.Errorf("non-positive price at bar %d", i)
		}
		if bar.High < bar.Low {
			return fmt.Errorf("high below low at bar %d", i)
		}
	}
	return nil
}
