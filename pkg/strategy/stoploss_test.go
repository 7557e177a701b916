package strategy

import (
	"testing"

	"github.com/quantbr/perpedge/pkg/config"
	"github.com/quantbr/perpedge/pkg/core"
	"github.com/stretchr/testify/require"
)

func TestAdaptiveStopLoss_LongBelowPrice(t *testing.T) {
	engine, _ := testEngine(t)

	snap := core.MarketSnapshot{
		Pair:    "BTC/USDT",
		Price:   50000,
		Candles: flatCandles(50000, 500, 30),
		Levels:  core.LevelsAnalysis{StaticSupport: 48500, DynamicSupport: 48800},
	}

	stop := engine.AdaptiveStopLoss(core.SideLong, 50000, snap)

	require.Equal(t, core.GradeNominal, stop.Grade)
	require.Less(t, stop.Value, 50000.0)
}

func TestAdaptiveStopLoss_ShortAbovePrice(t *testing.T) {
	engine, _ := testEngine(t)

	snap := core.MarketSnapshot{
		Pair:    "BTC/USDT",
		Price:   50000,
		Candles: flatCandles(50000, 500, 30),
		Levels:  core.LevelsAnalysis{StaticResistance: 51500, DynamicResistance: 51200},
	}

	stop := engine.AdaptiveStopLoss(core.SideShort, 50000, snap)

	require.Equal(t, core.GradeNominal, stop.Grade)
	require.Greater(t, stop.Value, 50000.0)
}

func TestAdaptiveStopLoss_RespectsRatioBand(t *testing.T) {
	engine, _ := testEngine(t)
	price := 50000.0

	cases := []struct {
		name   string
		levels core.LevelsAnalysis
	}{
		{"support far below the band", core.LevelsAnalysis{StaticSupport: 10000, DynamicSupport: 10000}},
		{"support hugging the price", core.LevelsAnalysis{StaticSupport: 49990, DynamicSupport: 49995}},
		{"no levels at all", core.LevelsAnalysis{}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			snap := core.MarketSnapshot{
				Pair:    "BTC/USDT",
				Price:   price,
				Candles: flatCandles(price, 500, 30),
				Levels:  tc.levels,
			}

			stop := engine.AdaptiveStopLoss(core.SideLong, price, snap)
			distance := (price - stop.Value) / price

			require.GreaterOrEqual(t, distance, 0.02-1e-9)
			require.LessOrEqual(t, distance, 0.40+1e-9)
		})
	}
}

// Structure at 49000 with ATR 500 and multiplier 1.5: the ATR candidate
// 49250 wins the max, then the min-ratio bound 49000 caps it.
func TestAdaptiveStopLoss_StructureVsATRRegression(t *testing.T) {
	engine, cfg := testEngine(t)

	updated := cfg.Snapshot()
	updated.StopLoss.MaxStopLossRatio = 0.30
	require.NoError(t, cfg.Update(updated))

	snap := core.MarketSnapshot{
		Pair:    "BTC/USDT",
		Price:   50000,
		Candles: flatCandles(50000, 500, 30),
		Levels:  core.LevelsAnalysis{StaticSupport: 49000, DynamicSupport: 49000},
	}

	stop := engine.AdaptiveStopLoss(core.SideLong, 50000, snap)

	require.Equal(t, core.GradeNominal, stop.Grade)
	require.InDelta(t, 49000.0, stop.Value, 1e-6)
}

func TestAdaptiveStopLoss_NonPositivePrice(t *testing.T) {
	engine, _ := testEngine(t)

	stop := engine.AdaptiveStopLoss(core.SideLong, 0, core.MarketSnapshot{Pair: "BTC/USDT"})

	require.True(t, stop.Degraded())
	require.Zero(t, stop.Value)
}

func TestKlineStopLoss_TakesStructureOverATR(t *testing.T) {
	engine, _ := testEngine(t)

	// Support at 48000 vs ATR stop at 49250: the kline variant takes the
	// structural level for a long (opposite selection bias from adaptive).
	snap := core.MarketSnapshot{
		Pair:    "BTC/USDT",
		Price:   50000,
		Candles: flatCandles(50000, 500, 30),
		Levels:  core.LevelsAnalysis{StaticSupport: 48000},
	}

	stop := engine.KlineStopLoss(core.SideLong, 50000, snap, 0)

	require.Equal(t, core.GradeNominal, stop.Grade)
	require.InDelta(t, 48000.0, stop.Value, 1e-6)
}

func TestKlineStopLoss_ShortMirrors(t *testing.T) {
	engine, _ := testEngine(t)

	snap := core.MarketSnapshot{
		Pair:    "BTC/USDT",
		Price:   50000,
		Candles: flatCandles(50000, 500, 30),
		Levels:  core.LevelsAnalysis{StaticResistance: 52000},
	}

	stop := engine.KlineStopLoss(core.SideShort, 50000, snap, 0)

	require.Greater(t, stop.Value, 50000.0)
	require.InDelta(t, 52000.0, stop.Value, 1e-6)
}

func TestKlineStopLoss_CapOverride(t *testing.T) {
	engine, _ := testEngine(t)

	// ATR distance would put the stop 10% away; a 5% cap takes over.
	snap := core.MarketSnapshot{
		Pair:    "BTC/USDT",
		Price:   50000,
		Candles: flatCandles(50000, 4000, 30),
		Levels:  core.LevelsAnalysis{StaticSupport: 44000},
	}

	stop := engine.KlineStopLoss(core.SideLong, 50000, snap, 0.05)

	require.InDelta(t, 50000*(1-0.05), stop.Value, 1e-6)
}

func TestKlineStopLoss_FallsBackToEntryPrice(t *testing.T) {
	engine, _ := testEngine(t)

	// No snapshot price: the entry substitutes.
	snap := core.MarketSnapshot{Pair: "BTC/USDT"}
	stop := engine.KlineStopLoss(core.SideLong, 50000, snap, 0)

	require.Equal(t, core.GradeNominal, stop.Grade)
	require.Less(t, stop.Value, 50000.0)
}

func TestAdaptiveStopLoss_SymbolOverrides(t *testing.T) {
	engine, cfg := testEngine(t)

	require.NoError(t, cfg.UpdateSymbolConfig("BTC/USDT", map[string]any{
		"min_stop_loss_ratio": 0.05,
	}))

	snap := core.MarketSnapshot{
		Pair:    "BTC/USDT",
		Price:   50000,
		Candles: flatCandles(50000, 500, 30),
	}

	stop := engine.AdaptiveStopLoss(core.SideLong, 50000, snap)
	distance := (50000 - stop.Value) / 50000

	require.GreaterOrEqual(t, distance, 0.05-1e-9)
}

func TestDefaultsMatchDocumentedValues(t *testing.T) {
	def := config.Default()

	require.InDelta(t, 0.02, def.StopLoss.MinStopLossRatio, 1e-12)
	require.InDelta(t, 0.40, def.StopLoss.MaxStopLossRatio, 1e-12)
	require.InDelta(t, 1.5, def.StopLoss.ATRMultiplier, 1e-12)
	require.InDelta(t, 1.2, def.TakeProfit.MinRiskReward, 1e-12)
	require.InDelta(t, 3.0, def.TakeProfit.MaxRiskReward, 1e-12)
}
