package indicators

import (
	"errors"

	"github.com/ducminhle1904/gpt-futures-bot/pkg/types"
)

// Default periods used for snapshot calculation.
const (
	DefaultRSIPeriod       = 14
	DefaultMACDFast        = 12
	DefaultMACDSlow        = 26
	DefaultMACDSignal      = 9
	DefaultBollingerPeriod = 20
	DefaultBollingerMult   = 2.0
	DefaultADXPeriod       = 14
	DefaultVolumePeriod    = 20
)

// Snapshot holds the indicator values computed from one kline window. A
// field stays zero when the window is too short for its calculation, the
// same way a partial rolling series backfills with zeros.
type Snapshot struct {
	Close float64 `json:"close"`

	RSI float64 `json:"rsi"`

	MACD       float64 `json:"macd"`
	MACDSignal float64 `json:"macd_signal"`
	MACDHist   float64 `json:"macd_hist"`

	BBUpper  float64 `json:"bb_upper"`
	BBMiddle float64 `json:"bb_middle"`
	BBLower  float64 `json:"bb_lower"`

	ADX     float64 `json:"adx"`
	PlusDI  float64 `json:"di_plus"`
	MinusDI float64 `json:"di_minus"`

	SMA20 float64 `json:"sma_20"`
	SMA50 float64 `json:"sma_50"`
	EMA9  float64 `json:"ema_9"`

	VWAP float64 `json:"vwap"`

	IchimokuConversion float64 `json:"ichimoku_conv"`
	IchimokuBase       float64 `json:"ichimoku_base"`

	VolumeSMA   float64 `json:"volume_sma"`
	VolumeRatio float64 `json:"volume_ratio"`
}

// Compute calculates a full snapshot from the window. Individual indicators
// that lack enough bars are left at zero; only an empty window is an error.
func Compute(data types.Window) (*Snapshot, error) {
	if len(data) == 0 {
		return nil, errors.New("empty window")
	}

	closes := data.Closes()
	volumes := data.Volumes()

	snap := &Snapshot{Close: closes[len(closes)-1]}

	if v, err := NewRSI(DefaultRSIPeriod).Calculate(closes); err == nil {
		snap.RSI = v
	}
	if m, s, h, err := NewMACD(DefaultMACDFast, DefaultMACDSlow, DefaultMACDSignal).Calculate(closes); err == nil {
		snap.MACD, snap.MACDSignal, snap.MACDHist = m, s, h
	}
	if u, m, l, err := NewBollinger(DefaultBollingerPeriod, DefaultBollingerMult).Calculate(closes); err == nil {
		snap.BBUpper, snap.BBMiddle, snap.BBLower = u, m, l
	}
	if a, p, n, err := NewADX(DefaultADXPeriod).Calculate(data); err == nil {
		snap.ADX, snap.PlusDI, snap.MinusDI = a, p, n
	}
	if c, b, err := NewIchimoku(9, 26).Calculate(data); err == nil {
		snap.IchimokuConversion, snap.IchimokuBase = c, b
	}
	if v, err := VWAP(data); err == nil {
		snap.VWAP = v
	}

	snap.SMA20 = SMA(closes, 20)
	snap.SMA50 = SMA(closes, 50)
	snap.EMA9 = EMALast(closes, 9)

	snap.VolumeSMA = SMA(volumes, DefaultVolumePeriod)
	if snap.VolumeSMA > 0 {
		snap.VolumeRatio = volumes[len(volumes)-1] / snap.VolumeSMA
	}

	return snap, nil
}

// TrendReadings summarizes the directional state of the snapshot in the
// labels the advisor prompt uses.
func (s *Snapshot) TrendReadings() map[string]string {
	readings := make(map[string]string, 4)

	if s.ADX > 25 {
		readings["adx_trend"] = "strong"
	} else {
		readings["adx_trend"] = "weak"
	}
	if s.PlusDI > s.MinusDI {
		readings["price_trend"] = "up"
	} else {
		readings["price_trend"] = "down"
	}
	if s.SMA20 > s.SMA50 {
		readings["ma_trend"] = "up"
	} else {
		readings["ma_trend"] = "down"
	}
	if s.IchimokuConversion > s.IchimokuBase {
		readings["ichimoku_trend"] = "up"
	} else {
		readings["ichimoku_trend"] = "down"
	}

	return readings
}
