package indicator

import (
	"math"

	"github.com/quantbr/perpedge/pkg/core"
)

// atrFallbackRatio is the conservative volatility assumption used when the
// series is too short or produces NaN: 2% of the last close. Downstream
// SL/TP math must never receive NaN in a live order path.
const atrFallbackRatio = 0.02

// ATR computes the Average True Range over the latest complete window of
// 'period' bars. True range per bar is
// max(high-low, |high-prevClose|, |low-prevClose|); ATR is the simple mean.
//
// With insufficient history the function returns lastClose * 0.02 instead of
// an error or NaN. An empty series yields 0.
func ATR(candles []core.Candle, period int) float64 {
	if period <= 0 {
		period = 14
	}

	if len(candles) == 0 {
		return 0
	}

	lastClose := candles[len(candles)-1].Close
	if len(candles) < period {
		return lastClose * atrFallbackRatio
	}

	window := candles[len(candles)-period:]
	prevIdx := len(candles) - period - 1

	var sum float64
	for i, c := range window {
		var prevClose float64
		hasPrev := prevIdx+i >= 0
		if hasPrev {
			prevClose = candles[prevIdx+i].Close
		}

		tr := c.High - c.Low
		if hasPrev {
			tr = math.Max(tr, math.Abs(c.High-prevClose))
			tr = math.Max(tr, math.Abs(c.Low-prevClose))
		}
		sum += tr
	}

	atr := sum / float64(period)
	if math.IsNaN(atr) || math.IsInf(atr, 0) || atr < 0 {
		return lastClose * atrFallbackRatio
	}

	return atr
}
