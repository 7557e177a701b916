package core

import "time"

// SideType identifies the direction of a position
type SideType string

const (
	SideLong  SideType = "long"
	SideShort SideType = "short"
)

// Opposite returns the inverse side
func (s SideType) Opposite() SideType {
	if s == SideLong {
		return SideShort
	}
	return SideLong
}

// TrendLabel is a discrete classification of market trend strength
type TrendLabel string

const (
	TrendStrongUptrend   TrendLabel = "STRONG_UPTREND"
	TrendUptrend         TrendLabel = "UPTREND"
	TrendConsolidation   TrendLabel = "CONSOLIDATION"
	TrendDowntrend       TrendLabel = "DOWNTREND"
	TrendStrongDowntrend TrendLabel = "STRONG_DOWNTREND"
)

// LevelsAnalysis carries support/resistance levels extracted from market
// structure. A zero value means the level is not available and callers fall
// back to ratio-derived defaults.
type LevelsAnalysis struct {
	StaticSupport     float64
	StaticResistance  float64
	DynamicSupport    float64
	DynamicResistance float64

	// Optional primary levels and multi-level lists. Not every snapshot
	// provider fills these; consumers must handle their absence.
	PrimarySupport    float64
	PrimaryResistance float64
	SupportLevels     []float64
	ResistanceLevels  []float64
}

// TrendAnalysis holds the trend classification and its numeric reading
type TrendAnalysis struct {
	Label    TrendLabel
	Strength float64 // e.g. ADX reading backing the label
}

// MarketSnapshot is a read-only view of the market supplied by the
// indicator pipeline for a single evaluation cycle
type MarketSnapshot struct {
	Pair    string
	Price   float64
	Candles []Candle
	Levels  LevelsAnalysis
	Trend   TrendAnalysis

	// StopLoss is the stop already attached to the open position, when
	// known. Zero means unknown.
	StopLoss float64
}

// PositionRecord is a single entry of a position's fill history
type PositionRecord struct {
	ID         int64     `json:"id" gorm:"primaryKey;autoIncrement"`
	Pair       string    `json:"pair" gorm:"index"`
	Side       SideType  `json:"side"`
	Size       float64   `json:"size"`
	EntryPrice float64   `json:"entry_price"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Grade distinguishes a nominal calculation from one that degraded to a
// conservative fallback
type Grade string

const (
	GradeNominal  Grade = "nominal"
	GradeFallback Grade = "fallback"
)

// PriceLevel is a single calculated price with its calculation grade
type PriceLevel struct {
	Value float64
	Grade Grade
	Note  string // short reason when Grade is GradeFallback
}

// Degraded reports whether the value came from a fallback path
func (p PriceLevel) Degraded() bool { return p.Grade == GradeFallback }

// SLTPResult is the output contract of the take-profit calculators
type SLTPResult struct {
	StopLoss         float64
	TakeProfit       float64
	ActualRiskReward float64
	IsAcceptable     bool
	Grade            Grade
	Note             string

	// Filled by the trend-weighted calculator only
	TrendAdjustedRR float64
	TrendStrength   TrendLabel
}

// OverallResult is the output of the position-weighted SL/TP calculation
type OverallResult struct {
	StopLoss      float64
	TakeProfit    float64
	WeightedEntry float64
	TotalSize     float64
}

// LadderTarget is one rung of the multi-level take-profit ladder
type LadderTarget struct {
	Price            float64
	CloseRatio       float64
	SetBreakevenStop bool
	Description      string
}
