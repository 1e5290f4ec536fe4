package indicators

import "errors"

// MACD calculates the Moving Average Convergence Divergence of closing
// prices: the MACD line, its EMA signal line, and the histogram.
type MACD struct {
	fastPeriod   int
	slowPeriod   int
	signalPeriod int
}

// NewMACD creates a MACD calculator with the given fast, slow, and signal
// periods.
func NewMACD(fast, slow, signal int) *MACD {
	return &MACD{
		fastPeriod:   fast,
		slowPeriod:   slow,
		signalPeriod: signal,
	}
}

// Calculate computes the final MACD line, signal line, and histogram values.
func (m *MACD) Calculate(prices []float64) (macdLine, signalLine, histogram float64, err error) {
	if len(prices) < m.slowPeriod+m.signalPeriod {
		return 0, 0, 0, errors.New("insufficient data for MACD calculation")
	}

	fast := EMA(prices, m.fastPeriod)
	slow := EMA(prices, m.slowPeriod)

	macdSeries := make([]float64, len(prices))
	for i := range prices {
		macdSeries[i] = fast[i] - slow[i]
	}

	signalSeries := EMA(macdSeries, m.signalPeriod)

	macdLine = macdSeries[len(macdSeries)-1]
	signalLine = signalSeries[len(signalSeries)-1]
	histogram = macdLine - signalLine
	return macdLine, signalLine, histogram, nil
}
