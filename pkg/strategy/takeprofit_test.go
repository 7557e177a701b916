package strategy

import (
	"testing"

	"github.com/quantbr/perpedge/pkg/core"
	"github.com/stretchr/testify/require"
)

func TestIntelligentTakeProfit_LongTakesNearestTarget(t *testing.T) {
	engine, _ := testEngine(t)

	// ATR target 50000+500*1.2=50600 undercuts both the resistance at
	// 50800 and the RR projection at 51200, so it wins the min.
	snap := core.MarketSnapshot{
		Pair:     "BTC/USDT",
		Price:    50000,
		Candles:  flatCandles(50000, 500, 30),
		Levels:   core.LevelsAnalysis{StaticResistance: 50800},
		StopLoss: 49000,
	}

	target := engine.IntelligentTakeProfit(core.SideLong, 50000, snap, 1.2)

	require.Equal(t, core.GradeNominal, target.Grade)
	require.Greater(t, target.Value, 50000.0)
	require.InDelta(t, 50600.0, target.Value, 1e-6)
}

func TestIntelligentTakeProfit_FloorsAtMinProfit(t *testing.T) {
	engine, _ := testEngine(t)

	// Resistance hugging the price cannot pull the target below half the
	// minimum stop distance.
	snap := core.MarketSnapshot{
		Pair:    "BTC/USDT",
		Price:   50000,
		Candles: flatCandles(50000, 500, 30),
		Levels:  core.LevelsAnalysis{StaticResistance: 50010},
	}

	target := engine.IntelligentTakeProfit(core.SideLong, 50000, snap, 1.2)

	require.GreaterOrEqual(t, target.Value, 50000*(1+0.02*0.5)-1e-6)
}

func TestIntelligentTakeProfit_ShortBelowPrice(t *testing.T) {
	engine, _ := testEngine(t)

	snap := core.MarketSnapshot{
		Pair:     "BTC/USDT",
		Price:    50000,
		Candles:  flatCandles(50000, 500, 30),
		Levels:   core.LevelsAnalysis{StaticSupport: 48800},
		StopLoss: 51000,
	}

	target := engine.IntelligentTakeProfit(core.SideShort, 50000, snap, 1.2)

	require.Less(t, target.Value, 50000.0)
}

func TestIntelligentTakeProfit_NonPositiveEntry(t *testing.T) {
	engine, _ := testEngine(t)

	target := engine.IntelligentTakeProfit(core.SideLong, 0, core.MarketSnapshot{Pair: "BTC/USDT"}, 1.2)

	require.True(t, target.Degraded())
}

func TestRealisticTakeProfit_RepairsWrongSideStop(t *testing.T) {
	engine, _ := testEngine(t)

	snap := core.MarketSnapshot{
		Pair:    "BTC/USDT",
		Price:   50000,
		Candles: flatCandles(50000, 500, 30),
	}

	// Long stop above entry is auto-corrected to the min-ratio fallback.
	result := engine.RealisticTakeProfit(core.SideLong, 50000, 51000, snap, 1.2)

	require.Equal(t, core.GradeFallback, result.Grade)
	require.InDelta(t, 50000*(1-0.02), result.StopLoss, 1e-6)
	require.Greater(t, result.TakeProfit, 50000.0)
}

func TestRealisticTakeProfit_ToleranceBand(t *testing.T) {
	engine, _ := testEngine(t)

	// No structural levels: theoretical target at entry + risk*1.2 wins,
	// actual RR == 1.2 and acceptance holds with the 20% tolerance.
	snap := core.MarketSnapshot{
		Pair:    "BTC/USDT",
		Price:   50000,
		Candles: flatCandles(50000, 500, 30),
	}

	result := engine.RealisticTakeProfit(core.SideLong, 50000, 49000, snap, 1.2)

	require.True(t, result.IsAcceptable)
	require.GreaterOrEqual(t, result.ActualRiskReward, 1.2*0.8-1e-9)
	require.Equal(t, core.GradeNominal, result.Grade)
}

func TestRealisticTakeProfit_DirectionalInvariant(t *testing.T) {
	engine, _ := testEngine(t)

	snap := core.MarketSnapshot{
		Pair:    "BTC/USDT",
		Price:   50000,
		Candles: flatCandles(50000, 500, 30),
	}

	long := engine.RealisticTakeProfit(core.SideLong, 50000, 49000, snap, 1.2)
	require.Less(t, long.StopLoss, 50000.0)
	require.Greater(t, long.TakeProfit, 50000.0)

	short := engine.RealisticTakeProfit(core.SideShort, 50000, 51000, snap, 1.2)
	require.Greater(t, short.StopLoss, 50000.0)
	require.Less(t, short.TakeProfit, 50000.0)
}

func TestAggressiveTakeProfit_TrendMultiplier(t *testing.T) {
	engine, _ := testEngine(t)

	snap := core.MarketSnapshot{
		Pair:    "BTC/USDT",
		Price:   50000,
		Candles: flatCandles(50000, 500, 30),
	}

	strong := engine.AggressiveTakeProfit(core.SideLong, 50000, 49000, snap, 1.2, core.TrendStrongUptrend)
	flat := engine.AggressiveTakeProfit(core.SideLong, 50000, 49000, snap, 1.2, core.TrendConsolidation)

	// STRONG_UPTREND multiplies the RR target by 1.5.
	require.InDelta(t, 1.8, strong.TrendAdjustedRR, 1e-9)
	require.InDelta(t, 1.2, flat.TrendAdjustedRR, 1e-9)
	require.GreaterOrEqual(t, strong.TakeProfit, flat.TakeProfit)
}

func TestAggressiveTakeProfit_UnknownLabelDefaultsToOne(t *testing.T) {
	engine, _ := testEngine(t)

	snap := core.MarketSnapshot{
		Pair:    "BTC/USDT",
		Price:   50000,
		Candles: flatCandles(50000, 500, 30),
	}

	result := engine.AggressiveTakeProfit(core.SideLong, 50000, 49000, snap, 1.2, core.TrendLabel("SIDEWAYS"))

	require.InDelta(t, 1.2, result.TrendAdjustedRR, 1e-9)
}

func TestAggressiveTakeProfit_CappedAtMaxRiskReward(t *testing.T) {
	engine, _ := testEngine(t)

	snap := core.MarketSnapshot{
		Pair:    "BTC/USDT",
		Price:   50000,
		Candles: flatCandles(50000, 500, 30),
	}

	// 2.5 * 1.5 = 3.75 exceeds the 3.0 configured maximum.
	result := engine.AggressiveTakeProfit(core.SideLong, 50000, 49000, snap, 2.5, core.TrendStrongUptrend)

	require.InDelta(t, 3.0, result.TrendAdjustedRR, 1e-9)
}

func TestAggressiveTakeProfit_SecondaryLevelInStrongTrend(t *testing.T) {
	engine, _ := testEngine(t)

	snap := core.MarketSnapshot{
		Pair:    "BTC/USDT",
		Price:   50000,
		Candles: flatCandles(50000, 500, 30),
		Levels: core.LevelsAnalysis{
			PrimaryResistance: 50500,
			ResistanceLevels:  []float64{50500, 51500, 52500},
		},
	}

	result := engine.AggressiveTakeProfit(core.SideLong, 50000, 49000, snap, 1.2, core.TrendStrongUptrend)

	// The second-highest known level (51500) beats both the primary and
	// the theoretical 1.8R projection (51800 capped by structure max).
	require.GreaterOrEqual(t, result.TakeProfit, 51500.0-1e-6)
}

func TestAggressiveTakeProfit_DegenerateStopFallsBack(t *testing.T) {
	engine, _ := testEngine(t)

	snap := core.MarketSnapshot{
		Pair:    "BTC/USDT",
		Price:   50000,
		Candles: flatCandles(50000, 500, 30),
	}

	result := engine.AggressiveTakeProfit(core.SideLong, 50000, 50000, snap, 1.2, core.TrendUptrend)

	// Zero risk routes through the realistic variant, which repairs the stop.
	require.Equal(t, core.GradeFallback, result.Grade)
	require.Less(t, result.StopLoss, 50000.0)
}

func TestLadderTargets_DefaultLadder(t *testing.T) {
	engine, _ := testEngine(t)

	targets := engine.LadderTargets(core.SideLong, 50000, 49000, "BTC")

	require.Len(t, targets, 3)
	require.InDelta(t, 51500.0, targets[0].Price, 1e-6) // 1.5R
	require.InDelta(t, 52000.0, targets[1].Price, 1e-6) // 2.0R
	require.InDelta(t, 53000.0, targets[2].Price, 1e-6) // 3.0R

	var totalRatio float64
	for _, target := range targets {
		totalRatio += target.CloseRatio
	}
	require.InDelta(t, 1.0, totalRatio, 1e-9)

	require.True(t, targets[0].SetBreakevenStop)
	require.False(t, targets[2].SetBreakevenStop)
}

func TestLadderTargets_ShortMirrors(t *testing.T) {
	engine, _ := testEngine(t)

	targets := engine.LadderTargets(core.SideShort, 50000, 51000, "BTC")

	require.Len(t, targets, 3)
	require.InDelta(t, 48500.0, targets[0].Price, 1e-6)
	require.Less(t, targets[2].Price, targets[0].Price)
}

func TestLadderTargets_ZeroRiskUsesMinRatio(t *testing.T) {
	engine, _ := testEngine(t)

	targets := engine.LadderTargets(core.SideLong, 50000, 50000, "BTC")

	require.Len(t, targets, 3)
	// Risk degrades to entry*min_stop_loss_ratio = 1000.
	require.InDelta(t, 51500.0, targets[0].Price, 1e-6)
}
