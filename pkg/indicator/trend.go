package indicator

import (
	"math"

	"github.com/quantbr/perpedge/pkg/core"
)

const (
	trendFastPeriod   = 8
	trendSlowPeriod   = 20
	trendADXPeriod    = 14
	trendADXThreshold = 25.0
)

// Trend classifies the market into the fixed trend vocabulary consumed by
// the take-profit calculators. Direction comes from the fast/slow EMA
// relationship; an ADX reading above threshold upgrades the label to STRONG.
func Trend(candles []core.Candle) core.TrendAnalysis {
	out := core.TrendAnalysis{Label: core.TrendConsolidation}
	if len(candles) < trendSlowPeriod+trendADXPeriod {
		return out
	}

	df := core.NewDataframe("", candles)

	fast := EMA(df.Close, trendFastPeriod)
	slow := EMA(df.Close, trendSlowPeriod)
	adx := ADX(df.High, df.Low, df.Close, trendADXPeriod)

	lastFast := fast[len(fast)-1]
	lastSlow := slow[len(slow)-1]
	lastADX := adx[len(adx)-1]

	if math.IsNaN(lastFast) || math.IsNaN(lastSlow) {
		return out
	}
	if !math.IsNaN(lastADX) {
		out.Strength = lastADX
	}

	// EMAs within a quarter percent of each other read as no trend
	spread := (lastFast - lastSlow) / lastSlow
	const flatBand = 0.0025

	switch {
	case spread > flatBand:
		out.Label = core.TrendUptrend
		if out.Strength >= trendADXThreshold {
			out.Label = core.TrendStrongUptrend
		}
	case spread < -flatBand:
		out.Label = core.TrendDowntrend
		if out.Strength >= trendADXThreshold {
			out.Label = core.TrendStrongDowntrend
		}
	}

	return out
}
