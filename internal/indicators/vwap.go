package indicators

import (
	"errors"

	"github.com/ducminhle1904/gpt-futures-bot/pkg/types"
)

// VWAP computes the volume-weighted average price over the window using the
// typical price (high + low + close) / 3 of each bar.
func VWAP(data types.Window) (float64, error) {
	if len(data) == 0 {
		return 0, errors.New("insufficient data for VWAP calculation")
	}

	var weighted, volume float64
	for _, bar := range data {
		typical := (bar.High + bar.Low + bar.Close) / 3
		weighted += typical * bar.Volume
		volume += bar.Volume
	}
	if volume == 0 {
		return 0, errors.New("zero cumulative volume for VWAP calculation")
	}

	return weighted / volume, nil
}
