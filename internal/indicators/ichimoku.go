package indicators

import (
	"errors"

	"github.com/ducminhle1904/gpt-futures-bot/pkg/types"
)

// Ichimoku calculates the conversion (tenkan) and base (kijun) lines of the
// Ichimoku system. Base above conversion reads as a bearish lean.
type Ichimoku struct {
	conversionPeriod int
	basePeriod       int
}

// NewIchimoku creates an Ichimoku calculator with the given conversion and
// base line periods (classically 9 and 26).
func NewIchimoku(conversion, base int) *Ichimoku {
	return &Ichimoku{conversionPeriod: conversion, basePeriod: base}
}

// Calculate computes the final conversion and base line values.
func (ic *Ichimoku) Calculate(data types.Window) (conversion, base float64, err error) {
	if len(data) < ic.basePeriod {
		return 0, 0, errors.New("insufficient data for Ichimoku calculation")
	}

	conversion = midpoint(data[len(data)-ic.conversionPeriod:])
	base = midpoint(data[len(data)-ic.basePeriod:])
	return conversion, base, nil
}

// midpoint returns the average of the highest high and lowest low.
func midpoint(bars types.Window) float64 {
	highest := bars[0].High
	lowest := bars[0].Low
	for _, bar := range bars[1:] {
		if bar.High > highest {
			highest = bar.High
		}
		if bar.Low < lowest {
			lowest = bar.Low
		}
	}
	return (highest + lowest) / 2
}
