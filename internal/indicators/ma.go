package indicators

// SMA computes the simple moving average of the last period values.
// Returns 0 when there is not enough data.
func SMA(values []float64, period int) float64 {
	if period <= 0 || len(values) < period {
		return 0
	}
	sum := 0.0
	for _, v := range values[len(values)-period:] {
		sum += v
	}
	return sum / float64(period)
}

// EMA computes the exponential moving average series over values using the
// standard 2/(period+1) smoothing factor, seeded with the first value.
func EMA(values []float64, period int) []float64 {
	if period <= 0 || len(values) == 0 {
		return nil
	}
	alpha := 2.0 / (float64(period) + 1.0)
	out := make([]float64, len(values))
	out[0] = values[0]
	for i := 1; i < len(values); i++ {
		out[i] = alpha*values[i] + (1-alpha)*out[i-1]
	}
	return out
}

// EMALast computes only the final EMA value.
func EMALast(values []float64, period int) float64 {
	series := EMA(values, period)
	if len(series) == 0 {
		return 0
	}
	return series[len(series)-1]
}
