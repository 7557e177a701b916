package strategy

import (
	"math"

	"github.com/quantbr/perpedge/pkg/core"
)

// AdaptiveStopLoss places a stop behind market structure, tempered by ATR.
//
// For a long the structure candidate is the nearer of static and dynamic
// support; the final candidate is the higher of that and the ATR-derived
// stop (the least-loose of the two floors). The result is then clamped into
// the configured ratio band [price*(1-max), price*(1-min)], so the stop
// distance always lands between the min and max stop-loss ratios. Shorts
// mirror the logic above the price.
func (e *Engine) AdaptiveStopLoss(side core.SideType, currentPrice float64, snap core.MarketSnapshot) core.PriceLevel {
	cfg := e.configFor(snap.Pair)
	sl := cfg.StopLoss

	if currentPrice <= 0 {
		e.log.WithField("pair", snap.Pair).Error("adaptive stop-loss called with non-positive price")
		return core.PriceLevel{Grade: core.GradeFallback, Note: "non-positive price"}
	}

	atrDistance := e.atrFor(snap, cfg) * sl.ATRMultiplier
	levels := snap.Levels

	var stop float64
	if side == core.SideLong {
		support := orDefault(levels.StaticSupport, currentPrice*(1-sl.MinStopLossRatio))
		dynamic := orDefault(levels.DynamicSupport, currentPrice*(1-sl.MinStopLossRatio))
		structure := math.Min(support, dynamic)

		stop = math.Max(structure, currentPrice-atrDistance)
		stop = clamp(stop, currentPrice*(1-sl.MaxStopLossRatio), currentPrice*(1-sl.MinStopLossRatio))
	} else {
		resistance := orDefault(levels.StaticResistance, currentPrice*(1+sl.MinStopLossRatio))
		dynamic := orDefault(levels.DynamicResistance, currentPrice*(1+sl.MinStopLossRatio))
		structure := math.Max(resistance, dynamic)

		stop = math.Min(structure, currentPrice+atrDistance)
		stop = clamp(stop, currentPrice*(1+sl.MinStopLossRatio), currentPrice*(1+sl.MaxStopLossRatio))
	}

	distance := math.Abs(stop-currentPrice) / currentPrice
	e.log.WithFields(map[string]any{
		"pair":     core.BaseCurrency(snap.Pair),
		"side":     side,
		"stop":     stop,
		"distance": distance,
	}).Debug("adaptive stop-loss")

	// Safety net against upstream data corruption: the stop must stay on
	// the losing side of the price.
	if side == core.SideLong && stop >= currentPrice {
		e.log.WithFields(map[string]any{"pair": core.BaseCurrency(snap.Pair), "stop": stop, "price": currentPrice}).
			Warn("long stop-loss above price, forcing min-ratio fallback")
		return core.PriceLevel{
			Value: currentPrice * (1 - sl.MinStopLossRatio),
			Grade: core.GradeFallback,
			Note:  "direction corrected",
		}
	}
	if side == core.SideShort && stop <= currentPrice {
		e.log.WithFields(map[string]any{"pair": core.BaseCurrency(snap.Pair), "stop": stop, "price": currentPrice}).
			Warn("short stop-loss below price, forcing min-ratio fallback")
		return core.PriceLevel{
			Value: currentPrice * (1 + sl.MinStopLossRatio),
			Grade: core.GradeFallback,
			Note:  "direction corrected",
		}
	}

	return core.PriceLevel{Value: stop, Grade: core.GradeNominal}
}

// KlineStopLoss derives a stop from K-line structure, preferring the
// tighter of the structure and ATR candidates. This is the opposite
// selection bias from AdaptiveStopLoss: this variant serves the
// "structure as primary signal" configuration path, where the stop hugs
// the nearest defended level instead of giving the trade room.
//
// maxStopLossRatio <= 0 means "use the configured maximum".
func (e *Engine) KlineStopLoss(side core.SideType, entryPrice float64, snap core.MarketSnapshot, maxStopLossRatio float64) core.PriceLevel {
	cfg := e.configFor(snap.Pair)
	sl := cfg.StopLoss

	currentPrice := snap.Price
	if currentPrice <= 0 {
		currentPrice = entryPrice
	}
	if currentPrice <= 0 {
		e.log.WithField("pair", snap.Pair).Error("kline stop-loss called without a usable price")
		return core.PriceLevel{Grade: core.GradeFallback, Note: "non-positive price"}
	}

	if maxStopLossRatio <= 0 {
		maxStopLossRatio = sl.MaxStopLossRatio
	}

	atrDistance := e.atrFor(snap, cfg) * sl.ATRMultiplier

	var stop float64
	if side == core.SideLong {
		support := orDefault(snap.Levels.StaticSupport, currentPrice*(1-sl.MinStopLossRatio))
		stop = math.Min(support, currentPrice-atrDistance)
		stop = clamp(stop, currentPrice*(1-maxStopLossRatio), currentPrice*(1-sl.MinStopLossRatio))
	} else {
		resistance := orDefault(snap.Levels.StaticResistance, currentPrice*(1+sl.MinStopLossRatio))
		stop = math.Max(resistance, currentPrice+atrDistance)
		stop = clamp(stop, currentPrice*(1+sl.MinStopLossRatio), currentPrice*(1+maxStopLossRatio))
	}

	e.log.WithFields(map[string]any{
		"pair":     core.BaseCurrency(snap.Pair),
		"side":     side,
		"stop":     stop,
		"distance": math.Abs(stop-currentPrice) / currentPrice,
	}).Debug("kline structure stop-loss")

	return core.PriceLevel{Value: stop, Grade: core.GradeNominal}
}
