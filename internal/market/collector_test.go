package market

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ducminhle1904/gpt-futures-bot/internal/exchange"
	"github.com/ducminhle1904/gpt-futures-bot/internal/trading"
	"github.com/ducminhle1904/gpt-futures-bot/pkg/types"
)

type fakeExchange struct {
	window   types.Window
	fetchErr error
	price    float64
	calls    int
}

func (f *fakeExchange) GetOHLCV(ctx context.Context, symbol string, tf trading.Timeframe, limit int) (types.Window, error) {
	f.calls++
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	return f.window, nil
}

func (f *fakeExchange) GetLatestPrice(ctx context.Context, symbol string) (float64, error) {
	if f.fetchErr != nil {
		return 0, f.fetchErr
	}
	return f.price, nil
}

func (f *fakeExchange) GetEquity(ctx context.Context) (float64, error) { return 0, nil }
func (f *fakeExchange) GetPosition(ctx context.Context, symbol string) (*trading.Position, error) {
	return nil, nil
}
func (f *fakeExchange) SetLeverage(ctx context.Context, symbol string, leverage int) error {
	return nil
}
func (f *fakeExchange) CreateOrder(ctx context.Context, req exchange.OrderRequest) (string, error) {
	return "", nil
}
func (f *fakeExchange) CancelOrder(ctx context.Context, symbol, orderID string) error { return nil }
func (f *fakeExchange) GetFilters(ctx context.Context, symbol string) (exchange.Filters, error) {
	return exchange.Filters{}, nil
}

func makeWindow(n int) types.Window {
	window := make(types.Window, n)
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		c := 50000 + float64(i)*10
		window[i] = types.OHLCV{
			Timestamp: base.Add(time.Duration(i) * time.Hour),
			Open:      c - 5,
			High:      c + 20,
			Low:       c - 20,
			Close:     c,
			Volume:    100,
		}
	}
	return window
}

func TestCollector_Collect(t *testing.T) {
	ex := &fakeExchange{window: makeWindow(48)}
	collector := NewCollector(ex, "BTCUSDT")

	data, err := collector.Collect(context.Background(), trading.Timeframe1h)
	require.NoError(t, err)

	assert.Equal(t, trading.Timeframe1h, data.Timeframe)
	assert.Len(t, data.Window, 48)
	assert.NotNil(t, data.Indicators)
	assert.Equal(t, data.Window.Last().Close, data.Price)
	assert.False(t, data.FetchedAt.IsZero())
}

func TestCollector_ShortWindow(t *testing.T) {
	ex := &fakeExchange{window: makeWindow(10)}
	collector := NewCollector(ex, "BTCUSDT")

	_, err := collector.Collect(context.Background(), trading.Timeframe1h)
	require.Error(t, err)
	assert.ErrorIs(t, err, trading.ErrMarketDataUnavailable)
}

func TestCollector_UnsortedWindow(t *testing.T) {
	window := makeWindow(48)
	window[5], window[6] = window[6], window[5]
	ex := &fakeExchange{window: window}
	collector := NewCollector(ex, "BTCUSDT")

	_, err := collector.Collect(context.Background(), trading.Timeframe1h)
	require.Error(t, err)
	assert.ErrorIs(t, err, trading.ErrMarketDataUnavailable)
}

func TestCollector_FetchError(t *testing.T) {
	ex := &fakeExchange{fetchErr: errors.New("boom")}
	collector := NewCollector(ex, "BTCUSDT")

	_, err := collector.Collect(context.Background(), trading.Timeframe4h)
	require.Error(t, err)
	assert.ErrorIs(t, err, trading.ErrTransientExchange)
}

func TestCollector_LatestPrice(t *testing.T) {
	ex := &fakeExchange{price: 51234.5}
	collector := NewCollector(ex, "BTCUSDT")

	price, err := collector.LatestPrice(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 51234.5, price)
}

func TestCollector_LatestPriceInvalid(t *testing.T) {
	ex := &fakeExchange{price: 0}
	collector := NewCollector(ex, "BTCUSDT")

	_, err := collector.LatestPrice(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, trading.ErrMarketDataUnavailable)
}
