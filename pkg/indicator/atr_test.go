package indicator

import (
	"testing"

	"github.com/quantbr/perpedge/pkg/core"
	"github.com/stretchr/testify/require"
)

func rangeCandles(price, rng float64, n int) []core.Candle {
	candles := make([]core.Candle, n)
	for i := range candles {
		candles[i] = core.Candle{
			Pair:     "BTC/USDT",
			Open:     price,
			Close:    price,
			High:     price + rng/2,
			Low:      price - rng/2,
			Complete: true,
		}
	}
	return candles
}

func TestATR_EmptySeries(t *testing.T) {
	require.Zero(t, ATR(nil, 14))
}

func TestATR_ShortSeriesFallsBackToTwoPercent(t *testing.T) {
	candles := rangeCandles(50000, 500, 5)

	got := ATR(candles, 14)

	require.InDelta(t, 50000*0.02, got, 1e-9)
}

func TestATR_MeanOfHighLowRanges(t *testing.T) {
	// Identical candles: true range is the bar range on every bar.
	candles := rangeCandles(100, 10, 20)

	require.InDelta(t, 10.0, ATR(candles, 14), 1e-9)
}

func TestATR_UsesPreviousCloseInTrueRange(t *testing.T) {
	// Zero-range bars whose closes step by 5: the gap term dominates.
	candles := make([]core.Candle, 11)
	for i := range candles {
		price := 100.0 + float64(i)*5
		candles[i] = core.Candle{Open: price, Close: price, High: price, Low: price, Complete: true}
	}

	require.InDelta(t, 5.0, ATR(candles, 5), 1e-9)
}

func TestATR_NonPositivePeriodDefaults(t *testing.T) {
	candles := rangeCandles(100, 10, 20)

	require.InDelta(t, ATR(candles, 14), ATR(candles, 0), 1e-9)
	require.InDelta(t, ATR(candles, 14), ATR(candles, -3), 1e-9)
}
