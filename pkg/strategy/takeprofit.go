package strategy

import (
	"math"
	"sort"

	"github.com/quantbr/perpedge/pkg/core"
)

// IntelligentTakeProfit picks the most conservative of three independent
// targets: the nearest structural level, an ATR-projected move and a fixed
// risk/reward projection. Taking the nearest avoids targets that price is
// statistically unlikely to reach. The result is floored at half the
// minimum stop distance so the trade is never closed for dust.
func (e *Engine) IntelligentTakeProfit(side core.SideType, entryPrice float64, snap core.MarketSnapshot, riskReward float64) core.PriceLevel {
	cfg := e.configFor(snap.Pair)
	sl := cfg.StopLoss

	if riskReward <= 0 {
		riskReward = cfg.TakeProfit.MinRiskReward
	}

	defaultTPRatio := sl.MinStopLossRatio * riskReward

	if entryPrice <= 0 {
		e.log.WithField("pair", snap.Pair).Error("intelligent take-profit called with non-positive entry")
		return core.PriceLevel{Grade: core.GradeFallback, Note: "non-positive entry"}
	}

	currentPrice := snap.Price
	if currentPrice <= 0 {
		currentPrice = entryPrice
	}

	atr := e.atrFor(snap, cfg)
	minProfitRatio := sl.MinStopLossRatio * 0.5

	var takeProfit float64
	if side == core.SideLong {
		resistance := orDefault(snap.Levels.StaticResistance, currentPrice*(1+defaultTPRatio*2))
		atrTarget := currentPrice + atr*riskReward

		knownStop := orDefault(snap.StopLoss, entryPrice*(1-sl.MinStopLossRatio))
		risk := math.Abs(entryPrice - knownStop)
		rrTarget := entryPrice + risk*riskReward

		takeProfit = math.Min(resistance, math.Min(atrTarget, rrTarget))
		takeProfit = math.Max(takeProfit, currentPrice*(1+minProfitRatio))
	} else {
		support := orDefault(snap.Levels.StaticSupport, currentPrice*(1-defaultTPRatio*2))
		atrTarget := currentPrice - atr*riskReward

		knownStop := orDefault(snap.StopLoss, entryPrice*(1+sl.MinStopLossRatio))
		risk := math.Abs(knownStop - entryPrice)
		rrTarget := entryPrice - risk*riskReward

		takeProfit = math.Max(support, math.Max(atrTarget, rrTarget))
		takeProfit = math.Min(takeProfit, currentPrice*(1-minProfitRatio))
	}

	e.log.WithFields(map[string]any{
		"pair":   core.BaseCurrency(snap.Pair),
		"side":   side,
		"entry":  entryPrice,
		"target": takeProfit,
	}).Debug("intelligent take-profit")

	return core.PriceLevel{Value: takeProfit, Grade: core.GradeNominal}
}

// RealisticTakeProfit is the "don't overpromise" variant used when market
// structure sits close to the entry: the final target is the nearer of the
// theoretical risk/reward projection and the structural level, and the
// result is acceptable within a 20% tolerance of the requested minimum
// risk/reward.
//
// A stop on the wrong side of the entry is auto-repaired to the min-ratio
// fallback before any target math runs.
func (e *Engine) RealisticTakeProfit(side core.SideType, entryPrice, stopLoss float64, snap core.MarketSnapshot, minRiskReward float64) core.SLTPResult {
	cfg := e.configFor(snap.Pair)
	sl := cfg.StopLoss

	if minRiskReward <= 0 {
		minRiskReward = cfg.TakeProfit.MinRiskReward
	}
	defaultTPRatio := sl.MinStopLossRatio * minRiskReward

	if entryPrice <= 0 {
		e.log.WithField("pair", snap.Pair).Error("realistic take-profit called with non-positive entry")
		return core.SLTPResult{Grade: core.GradeFallback, Note: "non-positive entry"}
	}

	currentPrice := snap.Price
	if currentPrice <= 0 {
		currentPrice = entryPrice
	}

	grade := core.GradeNominal
	note := ""

	// Repair a stop on the wrong side of the entry before using it as the
	// risk base.
	if side == core.SideLong && stopLoss >= entryPrice {
		e.log.WithFields(map[string]any{"pair": core.BaseCurrency(snap.Pair), "stop": stopLoss, "entry": entryPrice}).
			Warn("long stop above entry, auto-correcting")
		stopLoss = entryPrice * (1 - sl.MinStopLossRatio)
		grade, note = core.GradeFallback, "stop auto-corrected"
	} else if side == core.SideShort && stopLoss <= entryPrice {
		e.log.WithFields(map[string]any{"pair": core.BaseCurrency(snap.Pair), "stop": stopLoss, "entry": entryPrice}).
			Warn("short stop below entry, auto-correcting")
		stopLoss = entryPrice * (1 + sl.MinStopLossRatio)
		grade, note = core.GradeFallback, "stop auto-corrected"
	}

	var (
		takeProfit float64
		risk       float64
		reward     float64
	)

	if side == core.SideLong {
		risk = math.Abs(entryPrice - stopLoss)
		theoretical := entryPrice + risk*minRiskReward

		resistance := orDefault(snap.Levels.StaticResistance, currentPrice*(1+defaultTPRatio))
		dynamic := orDefault(snap.Levels.DynamicResistance, currentPrice*(1+defaultTPRatio))
		realistic := math.Min(resistance, dynamic)

		takeProfit = math.Min(theoretical, realistic)
		reward = takeProfit - entryPrice
	} else {
		risk = math.Abs(stopLoss - entryPrice)
		theoretical := entryPrice - risk*minRiskReward

		support := orDefault(snap.Levels.StaticSupport, currentPrice*(1-defaultTPRatio))
		dynamic := orDefault(snap.Levels.DynamicSupport, currentPrice*(1-defaultTPRatio))
		realistic := math.Max(support, dynamic)

		takeProfit = math.Max(theoretical, realistic)
		reward = entryPrice - takeProfit
	}

	var actualRR float64
	if risk > 0 {
		actualRR = reward / risk
	}

	return core.SLTPResult{
		StopLoss:         stopLoss,
		TakeProfit:       takeProfit,
		ActualRiskReward: actualRR,
		IsAcceptable:     actualRR >= minRiskReward*0.8,
		Grade:            grade,
		Note:             note,
	}
}

// AggressiveTakeProfit scales the risk/reward target by trend strength and,
// in strong trends, looks past the primary level to a secondary one. The
// final target is the farther of the theoretical projection and the chosen
// structural level, hard-capped at three times the maximum stop distance
// from entry. Acceptance is strict here: no tolerance band.
//
// Degenerate input (zero risk) falls back to the realistic variant.
func (e *Engine) AggressiveTakeProfit(side core.SideType, entryPrice, stopLoss float64, snap core.MarketSnapshot,
	minRiskReward float64, trendStrength core.TrendLabel) core.SLTPResult {

	cfg := e.configFor(snap.Pair)
	sl := cfg.StopLoss
	tp := cfg.TakeProfit

	if minRiskReward <= 0 {
		minRiskReward = tp.MinRiskReward
	}

	if entryPrice <= 0 {
		return e.RealisticTakeProfit(side, entryPrice, stopLoss, snap, minRiskReward)
	}

	risk := math.Abs(entryPrice - stopLoss)
	wrongSide := (side == core.SideLong && stopLoss >= entryPrice) ||
		(side == core.SideShort && stopLoss <= entryPrice)
	if risk == 0 || wrongSide {
		e.log.WithFields(map[string]any{"pair": core.BaseCurrency(snap.Pair), "stop": stopLoss, "entry": entryPrice}).
			Warn("aggressive take-profit got a degenerate stop, using realistic variant")
		return e.RealisticTakeProfit(side, entryPrice, stopLoss, snap, minRiskReward)
	}

	currentPrice := snap.Price
	if currentPrice <= 0 {
		currentPrice = entryPrice
	}

	multiplier, ok := tp.TrendStrengthMultipliers[trendStrength]
	if !ok {
		multiplier = 1.0
	}
	adjustedRR := math.Min(minRiskReward*multiplier, tp.MaxRiskReward)

	var (
		takeProfit float64
		reward     float64
	)

	if side == core.SideLong {
		theoretical := entryPrice + risk*adjustedRR
		primary := orDefault(snap.Levels.PrimaryResistance,
			currentPrice*(1+sl.MinStopLossRatio*adjustedRR*2))

		realistic := primary
		if trendStrength == core.TrendStrongUptrend || trendStrength == core.TrendUptrend {
			realistic = math.Max(primary, e.secondaryResistance(snap.Levels.ResistanceLevels, primary, sl.MinStopLossRatio))
		}

		takeProfit = math.Max(theoretical, realistic)
		takeProfit = math.Min(takeProfit, entryPrice*(1+sl.MaxStopLossRatio*3))
		reward = takeProfit - entryPrice
	} else {
		theoretical := entryPrice - risk*adjustedRR
		primary := orDefault(snap.Levels.PrimarySupport,
			currentPrice*(1-sl.MinStopLossRatio*adjustedRR*2))

		realistic := primary
		if trendStrength == core.TrendStrongDowntrend || trendStrength == core.TrendDowntrend {
			realistic = math.Min(primary, e.secondarySupport(snap.Levels.SupportLevels, primary, sl.MinStopLossRatio))
		}

		takeProfit = math.Min(theoretical, realistic)
		takeProfit = math.Max(takeProfit, entryPrice*(1-sl.MaxStopLossRatio*3))
		reward = entryPrice - takeProfit
	}

	actualRR := reward / risk

	return core.SLTPResult{
		StopLoss:         stopLoss,
		TakeProfit:       takeProfit,
		ActualRiskReward: actualRR,
		IsAcceptable:     actualRR >= minRiskReward,
		Grade:            core.GradeNominal,
		TrendAdjustedRR:  adjustedRR,
		TrendStrength:    trendStrength,
	}
}

// secondaryResistance picks the second-highest of the known resistance
// levels, or synthesizes one by extending the primary level when the
// snapshot provider did not supply a multi-level list.
func (e *Engine) secondaryResistance(levels []float64, primary, minStopRatio float64) float64 {
	if len(levels) >= 2 {
		sorted := append([]float64(nil), levels...)
		sort.Float64s(sorted)
		return sorted[len(sorted)-2]
	}
	return primary * (1 + minStopRatio*0.5)
}

// secondarySupport mirrors secondaryResistance below the price
func (e *Engine) secondarySupport(levels []float64, primary, minStopRatio float64) float64 {
	if len(levels) >= 2 {
		sorted := append([]float64(nil), levels...)
		sort.Float64s(sorted)
		return sorted[1]
	}
	return primary * (1 - minStopRatio*0.5)
}

// LadderTargets expands the configured multi-level take-profit ladder into
// absolute target prices for a position. Each rung closes a fraction of the
// position when price covers the rung's multiple of the initial risk.
func (e *Engine) LadderTargets(side core.SideType, entryPrice, stopLoss float64, symbol string) []core.LadderTarget {
	cfg := e.configFor(symbol)
	ladder := cfg.MultiLevelTakeProfit

	if !ladder.Enable || entryPrice <= 0 {
		return nil
	}

	risk := math.Abs(entryPrice - stopLoss)
	if risk == 0 {
		risk = entryPrice * cfg.StopLoss.MinStopLossRatio
	}

	targets := make([]core.LadderTarget, 0, len(ladder.Levels))
	for _, level := range ladder.Levels {
		price := entryPrice + risk*level.ProfitMultiplier
		if side == core.SideShort {
			price = entryPrice - risk*level.ProfitMultiplier
		}

		targets = append(targets, core.LadderTarget{
			Price:            price,
			CloseRatio:       level.TakeProfitRatio,
			SetBreakevenStop: level.SetBreakevenStop,
			Description:      level.Description,
		})
	}

	return targets
}
