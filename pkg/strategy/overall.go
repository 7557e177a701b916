package strategy

import (
	"github.com/quantbr/perpedge/pkg/core"
	"github.com/samber/lo"
)

// OverallStopLossTakeProfit computes one exit pair for an accumulated
// position. History records are filtered to the side of the live position
// (direction must track the live position, never the first historical
// record) and averaged by size; the exit pair is then computed off that
// weighted entry with a 0.9x derated risk/reward target, since an
// aggregated position warrants a more conservative exit.
func (e *Engine) OverallStopLossTakeProfit(history []core.PositionRecord, current *core.PositionRecord,
	currentPrice float64, snap core.MarketSnapshot) core.OverallResult {

	cfg := e.configFor(snap.Pair)
	sl := cfg.StopLoss
	minRR := cfg.TakeProfit.MinRiskReward

	if len(history) == 0 || current == nil {
		side := core.SideLong
		if current != nil && current.Side != "" {
			side = current.Side
		}

		return core.OverallResult{
			StopLoss:      e.AdaptiveStopLoss(side, currentPrice, snap).Value,
			TakeProfit:    e.IntelligentTakeProfit(side, currentPrice, snap, minRR).Value,
			WeightedEntry: currentPrice,
			TotalSize:     0,
		}
	}

	side := current.Side

	sameSide := lo.Filter(history, func(record core.PositionRecord, _ int) bool {
		return record.Side == side
	})

	var (
		weightedEntry float64
		totalSize     float64
	)

	if len(sameSide) == 0 {
		weightedEntry = current.EntryPrice
		totalSize = current.Size
	} else {
		for _, record := range sameSide {
			totalSize += record.Size
			weightedEntry += record.EntryPrice * record.Size
		}
		weightedEntry /= totalSize
	}

	stopLoss := e.AdaptiveStopLoss(side, weightedEntry, snap).Value
	takeProfit := e.IntelligentTakeProfit(side, weightedEntry, snap, minRR*0.9).Value

	// Second line of defense: both prices must bracket the weighted entry.
	if side == core.SideLong {
		if stopLoss >= weightedEntry {
			e.log.WithField("pair", core.BaseCurrency(snap.Pair)).
				Warn("long aggregate stop above weighted entry, auto-correcting")
			stopLoss = weightedEntry * (1 - sl.MinStopLossRatio)
		}
		if takeProfit <= weightedEntry {
			e.log.WithField("pair", core.BaseCurrency(snap.Pair)).
				Warn("long aggregate target below weighted entry, auto-correcting")
			takeProfit = weightedEntry * (1 + sl.MinStopLossRatio*minRR)
		}
	} else {
		if stopLoss <= weightedEntry {
			e.log.WithField("pair", core.BaseCurrency(snap.Pair)).
				Warn("short aggregate stop below weighted entry, auto-correcting")
			stopLoss = weightedEntry * (1 + sl.MinStopLossRatio)
		}
		if takeProfit >= weightedEntry {
			e.log.WithField("pair", core.BaseCurrency(snap.Pair)).
				Warn("short aggregate target above weighted entry, auto-correcting")
			takeProfit = weightedEntry * (1 - sl.MinStopLossRatio*minRR)
		}
	}

	e.log.WithFields(map[string]any{
		"pair":           core.BaseCurrency(snap.Pair),
		"side":           side,
		"weighted_entry": weightedEntry,
		"stop":           stopLoss,
		"target":         takeProfit,
	}).Debug("overall position exit pair")

	return core.OverallResult{
		StopLoss:      stopLoss,
		TakeProfit:    takeProfit,
		WeightedEntry: weightedEntry,
		TotalSize:     totalSize,
	}
}
