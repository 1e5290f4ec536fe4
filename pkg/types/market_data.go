package types

import "time"

// OHLCV is a single timeframe aggregate of price and volume.
type OHLCV struct {
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
	Turnover  float64
	Timestamp time.Time
}

// Window is an ordered sequence of bars, monotonically increasing in
// Timestamp. Windows are re-pulled on every trigger and never cached.
type Window []OHLCV

// Closes extracts the close prices of the window in order.
func (w Window) Closes() []float64 {
	out := make([]float64, len(w))
	for i, bar := range w {
		out[i] = bar.Close
	}
	return out
}

// Volumes extracts the per-bar volumes of the window in order.
func (w Window) Volumes() []float64 {
	out := make([]float64, len(w))
	for i, bar := range w {
		out[i] = bar.Volume
	}
	return out
}

// Last returns the most recent bar. The caller must check emptiness first.
func (w Window) Last() OHLCV {
	return w[len(w)-1]
}

// IsSorted reports whether timestamps increase strictly.
func (w Window) IsSorted() bool {
	for i := 1; i < len(w); i++ {
		if !w[i].Timestamp.After(w[i-1].Timestamp) {
			return false
		}
	}
	return true
}

// Ticker is a point-in-time price snapshot.
type Ticker struct {
	Symbol    string
	Price     float64
	Volume    float64
	Timestamp time.Time
}
