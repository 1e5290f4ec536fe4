package trading

// PositionSide is the direction of a live position. Flat means no exposure.
type PositionSide string

const (
	SideLong  PositionSide = "LONG"
	SideShort PositionSide = "SHORT"
	SideFlat  PositionSide = "FLAT"
)

// Position is the normalized view of the live exchange position. SizeBase is
// in base-asset units and is always >= 0; SideFlat implies SizeBase == 0.
type Position struct {
	Symbol        string       `json:"symbol"`
	Side          PositionSide `json:"side"`
	SizeBase      float64      `json:"size_base"`
	Leverage      int          `json:"leverage"`
	EntryPrice    float64      `json:"entry_price"`
	MarkPrice     float64      `json:"mark_price"`
	UnrealizedPnL float64      `json:"unrealized_pnl"`
	LiqPrice      float64      `json:"liq_price"`
}

// IsFlat reports whether the position carries no exposure.
func (p *Position) IsFlat() bool {
	return p.Side == SideFlat || p.SizeBase == 0
}

// DirectionMatches reports whether the live side agrees with a suggestion.
func (p *Position) DirectionMatches(s Suggestion) bool {
	switch s {
	case SuggestionBuy:
		return p.Side == SideLong
	case SuggestionSell:
		return p.Side == SideShort
	}
	return false
}
