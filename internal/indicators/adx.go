package indicators

import (
	"errors"
	"math"

	"github.com/ducminhle1904/gpt-futures-bot/pkg/types"
)

// ADX calculates the Average Directional Index, a trend strength measure on
// a 0-100 scale, along with the +DI and -DI directional lines. Values above
// 25 indicate a trending market.
type ADX struct {
	period int
}

// NewADX creates an ADX calculator with the given period.
func NewADX(period int) *ADX {
	return &ADX{period: period}
}

// Calculate computes the final ADX, +DI, and -DI values over the window
// using Wilder's smoothing.
func (a *ADX) Calculate(data types.Window) (adx, plusDI, minusDI float64, err error) {
	if len(data) < a.period*2+1 {
		return 0, 0, 0, errors.New("insufficient data for ADX calculation")
	}

	n := float64(a.period)
	var trSum, plusDMSum, minusDMSum float64
	var dxValues []float64

	for i := 1; i < len(data); i++ {
		cur, prev := data[i], data[i-1]

		tr := math.Max(cur.High-cur.Low,
			math.Max(math.Abs(cur.High-prev.Close), math.Abs(cur.Low-prev.Close)))

		upMove := cur.High - prev.High
		downMove := prev.Low - cur.Low
		plusDM, minusDM := 0.0, 0.0
		if upMove > downMove && upMove > 0 {
			plusDM = upMove
		}
		if downMove > upMove && downMove > 0 {
			minusDM = downMove
		}

		if i <= a.period {
			trSum += tr
			plusDMSum += plusDM
			minusDMSum += minusDM
			if i < a.period {
				continue
			}
		} else {
			trSum = trSum - trSum/n + tr
			plusDMSum = plusDMSum - plusDMSum/n + plusDM
			minusDMSum = minusDMSum - minusDMSum/n + minusDM
		}

		if trSum == 0 {
			continue
		}
		plusDI = 100 * plusDMSum / trSum
		minusDI = 100 * minusDMSum / trSum

		diSum := plusDI + minusDI
		if diSum == 0 {
			continue
		}
		dxValues = append(dxValues, 100*math.Abs(plusDI-minusDI)/diSum)
	}

	if len(dxValues) < a.period {
		return 0, plusDI, minusDI, errors.New("insufficient data for ADX smoothing")
	}

	adx = 0
	for _, dx := range dxValues[:a.period] {
		adx += dx
	}
	adx /= n
	for _, dx := range dxValues[a.period:] {
		adx = (adx*(n-1) + dx) / n
	}

	return adx, plusDI, minusDI, nil
}
