package indicators

import (
	"errors"
	"math"
)

// Bollinger calculates Bollinger Bands around a simple moving average.
type Bollinger struct {
	period int
	mult   float64
}

// NewBollinger creates a Bollinger Bands calculator with the given period
// and standard deviation multiplier.
func NewBollinger(period int, mult float64) *Bollinger {
	return &Bollinger{period: period, mult: mult}
}

// Calculate computes the upper, middle, and lower band values.
func (b *Bollinger) Calculate(prices []float64) (upper, middle, lower float64, err error) {
	if len(prices) < b.period {
		return 0, 0, 0, errors.New("insufficient data for Bollinger Bands calculation")
	}

	window := prices[len(prices)-b.period:]
	middle = SMA(prices, b.period)

	variance := 0.0
	for _, p := range window {
		d := p - middle
		variance += d * d
	}
	stdDev := math.Sqrt(variance / float64(b.period))

	upper = middle + b.mult*stdDev
	lower = middle - b.mult*stdDev
	return upper, middle, lower, nil
}
