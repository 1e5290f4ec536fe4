package trading

import (
	"fmt"
	"time"
)

// Timeframe identifies one analysis pipeline. The first four are sampled
// from the exchange; TimeframeFinal is synthesized from the other four.
type Timeframe string

const (
	Timeframe15m   Timeframe = "15m"
	Timeframe1h    Timeframe = "1h"
	Timeframe4h    Timeframe = "4h"
	Timeframe1d    Timeframe = "1d"
	TimeframeFinal Timeframe = "final"
)

// SourceTimeframes lists the exchange-sampled timeframes in ascending period
// order. The final pass requires a fresh snapshot from each of them.
var SourceTimeframes = []Timeframe{Timeframe15m, Timeframe1h, Timeframe4h, Timeframe1d}

// windowSizes holds the fixed kline window length pulled per timeframe.
var windowSizes = map[Timeframe]int{
	Timeframe15m: 64,
	Timeframe1h:  48,
	Timeframe4h:  90,
	Timeframe1d:  45,
}

// ParseTimeframe converts a user-supplied string into a Timeframe.
func ParseTimeframe(s string) (Timeframe, error) {
	switch Timeframe(s) {
	case Timeframe15m, Timeframe1h, Timeframe4h, Timeframe1d, TimeframeFinal:
		return Timeframe(s), nil
	}
	return "", fmt.Errorf("unknown timeframe: %q", s)
}

// IsSource reports whether the timeframe is sampled from the exchange.
func (tf Timeframe) IsSource() bool {
	_, ok := windowSizes[tf]
	return ok
}

// WindowSize returns the kline window length for a source timeframe.
func (tf Timeframe) WindowSize() int {
	return windowSizes[tf]
}

// Period returns the bar width of a source timeframe. TimeframeFinal has no
// period of its own; it returns 0.
func (tf Timeframe) Period() time.Duration {
	switch tf {
	case Timeframe15m:
		return 15 * time.Minute
	case Timeframe1h:
		return time.Hour
	case Timeframe4h:
		return 4 * time.Hour
	case Timeframe1d:
		return 24 * time.Hour
	}
	return 0
}

// BybitInterval returns the Bybit v5 kline interval code for the timeframe.
func (tf Timeframe) BybitInterval() string {
	switch tf {
	case Timeframe15m:
		return "15"
	case Timeframe1h:
		return "60"
	case Timeframe4h:
		return "240"
	case Timeframe1d:
		return "D"
	}
	return ""
}

func (tf Timeframe) String() string { return string(tf) }
