package strategy

import (
	"math"

	"github.com/quantbr/perpedge/pkg/core"
)

// absurdRiskReward flags ratios that can only come from corrupted prices
const absurdRiskReward = 100.0

// RiskRewardRatio computes reward distance over risk distance from entry.
// Non-positive risk returns 0, and so does an absurd ratio above 100 (with
// a warning, since that signals upstream price corruption).
func (e *Engine) RiskRewardRatio(entryPrice, stopLoss, takeProfit float64, side core.SideType) float64 {
	var risk, reward float64
	if side == core.SideLong {
		risk = entryPrice - stopLoss
		reward = takeProfit - entryPrice
	} else {
		risk = stopLoss - entryPrice
		reward = entryPrice - takeProfit
	}

	if risk <= 0 {
		return 0
	}

	ratio := reward / risk
	if ratio > absurdRiskReward {
		e.log.WithFields(map[string]any{"ratio": ratio, "entry": entryPrice, "stop": stopLoss, "target": takeProfit}).
			Warn("absurd risk/reward ratio, prices are likely corrupted")
		return 0
	}

	return ratio
}

// ValidatePriceRelationship is the pre-flight guard to run before
// submitting exit orders. It checks strict price ordering, a minimum
// fractional separation between entry and each exit, and a floor on the
// risk/reward ratio. Violations return false with a specific log message;
// this function never panics or returns an error.
func (e *Engine) ValidatePriceRelationship(entryPrice, stopLoss, takeProfit float64, side core.SideType) bool {
	cfg := e.configFor("")
	minDistance := cfg.StopLoss.MinStopLossRatio * 0.5
	minAcceptableRR := cfg.TakeProfit.MinRiskReward * 0.5

	if entryPrice <= 0 {
		e.log.Error("price validation: non-positive entry price")
		return false
	}

	if side == core.SideLong {
		if !(stopLoss < entryPrice && entryPrice < takeProfit) {
			e.log.Errorf("price validation: long ordering violated, want stop %.2f < entry %.2f < target %.2f",
				stopLoss, entryPrice, takeProfit)
			return false
		}
	} else {
		if !(takeProfit < entryPrice && entryPrice < stopLoss) {
			e.log.Errorf("price validation: short ordering violated, want target %.2f < entry %.2f < stop %.2f",
				takeProfit, entryPrice, stopLoss)
			return false
		}
	}

	if math.Abs(entryPrice-stopLoss)/entryPrice < minDistance {
		e.log.Warn("price validation: stop-loss too close to entry")
		return false
	}
	if math.Abs(takeProfit-entryPrice)/entryPrice < minDistance {
		e.log.Warn("price validation: take-profit too close to entry")
		return false
	}

	var risk, reward float64
	if side == core.SideLong {
		risk = entryPrice - stopLoss
		reward = takeProfit - entryPrice
	} else {
		risk = stopLoss - entryPrice
		reward = entryPrice - takeProfit
	}

	if risk <= 0 {
		e.log.Warn("price validation: non-positive risk")
		return false
	}

	if ratio := reward / risk; ratio < minAcceptableRR {
		e.log.Warnf("price validation: risk/reward %.2f below acceptable floor %.2f", ratio, minAcceptableRR)
		return false
	}

	return true
}
