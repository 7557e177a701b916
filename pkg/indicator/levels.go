package indicator

import (
	"math"
	"sort"

	"github.com/quantbr/perpedge/pkg/core"
)

const (
	levelsLookback   = 50
	bollingerPeriod  = 20
	bollingerStdDevs = 2.0
	swingWindow      = 2
)

// Levels extracts support/resistance structure from the candle history.
// Static levels are the extreme low/high of the lookback window, dynamic
// levels come from Bollinger Bands, and the multi-level lists collect local
// swing extremes below/above the current price.
func Levels(candles []core.Candle) core.LevelsAnalysis {
	var out core.LevelsAnalysis
	if len(candles) == 0 {
		return out
	}

	df := core.NewDataframe("", candles)
	window := df.Sample(levelsLookback)
	price := df.Close.Last(0)

	out.StaticSupport = minOf(window.Low)
	out.StaticResistance = maxOf(window.High)

	if len(df.Close) >= bollingerPeriod {
		upper, _, lower := BB(df.Close, bollingerPeriod, bollingerStdDevs, TypeSMA)
		if u := upper[len(upper)-1]; !math.IsNaN(u) {
			out.DynamicResistance = u
		}
		if l := lower[len(lower)-1]; !math.IsNaN(l) {
			out.DynamicSupport = l
		}
	}

	out.SupportLevels, out.ResistanceLevels = swingLevels(window, price)
	if n := len(out.SupportLevels); n > 0 {
		out.PrimarySupport = out.SupportLevels[n-1] // nearest below price
	}
	if len(out.ResistanceLevels) > 0 {
		out.PrimaryResistance = out.ResistanceLevels[0] // nearest above price
	}

	return out
}

// swingLevels finds local swing lows below price and swing highs above it.
// Both lists come back ascending.
func swingLevels(df core.Dataframe, price float64) (supports, resistances []float64) {
	for i := swingWindow; i < len(df.Low)-swingWindow; i++ {
		if isSwingLow(df.Low, i) && df.Low[i] < price {
			supports = append(supports, df.Low[i])
		}
		if isSwingHigh(df.High, i) && df.High[i] > price {
			resistances = append(resistances, df.High[i])
		}
	}

	sort.Float64s(supports)
	sort.Float64s(resistances)
	return supports, resistances
}

func isSwingLow(lows core.Series[float64], i int) bool {
	for off := 1; off <= swingWindow; off++ {
		if lows[i] > lows[i-off] || lows[i] > lows[i+off] {
			return false
		}
	}
	return true
}

func isSwingHigh(highs core.Series[float64], i int) bool {
	for off := 1; off <= swingWindow; off++ {
		if highs[i] < highs[i-off] || highs[i] < highs[i+off] {
			return false
		}
	}
	return true
}

func minOf(values core.Series[float64]) float64 {
	min := values[0]
	for _, v := range values {
		if v < min {
			min = v
		}
	}
	return min
}

func maxOf(values core.Series[float64]) float64 {
	max := values[0]
	for _, v := range values {
		if v > max {
			max = v
		}
	}
	return max
}
