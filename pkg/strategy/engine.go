// Package strategy implements the adaptive stop-loss / take-profit
// calculation engine. It turns market structure (support/resistance, ATR,
// trend strength, position cost basis) into validated exit price pairs.
//
// Every calculation is synchronous and CPU-bound. Methods never return
// errors: bad input degrades to a conservative ratio-based fallback, tagged
// with core.GradeFallback so callers and tests can tell the paths apart.
package strategy

import (
	"math"

	"github.com/quantbr/perpedge/pkg/config"
	"github.com/quantbr/perpedge/pkg/core"
	"github.com/quantbr/perpedge/pkg/indicator"
	"github.com/quantbr/perpedge/pkg/logger"
)

// ConfigSource resolves the current strategy configuration. config.Manager
// is the live implementation; the optimizer plugs in fixed candidates.
type ConfigSource interface {
	Snapshot() config.StrategyConfig
	SymbolConfig(symbol string) map[string]any
}

// Engine computes stop-loss and take-profit prices from market snapshots.
// The configuration source is the only shared state; each call works on an
// immutable snapshot of it.
type Engine struct {
	cfg ConfigSource
	log logger.Logger
}

// NewEngine builds a calculation engine on top of a configuration source
func NewEngine(cfg ConfigSource, log logger.Logger) *Engine {
	if log == nil {
		log = logger.Nop()
	}
	return &Engine{cfg: cfg, log: log}
}

// configFor resolves the effective configuration for a symbol: the global
// snapshot with the symbol's override dict merged on top.
func (e *Engine) configFor(symbol string) config.StrategyConfig {
	snapshot := e.cfg.Snapshot()
	if symbol == "" {
		return snapshot
	}
	return snapshot.WithOverrides(e.cfg.SymbolConfig(symbol))
}

// atrFor estimates ATR from the snapshot's candle history using the
// configured period
func (e *Engine) atrFor(snap core.MarketSnapshot, cfg config.StrategyConfig) float64 {
	period := cfg.DefaultATRPeriod
	if period <= 0 {
		period = config.DefaultATRPeriod
	}
	return indicator.ATR(snap.Candles, period)
}

// orDefault substitutes a fallback for an absent (zero) level
func orDefault(level, fallback float64) float64 {
	if level <= 0 {
		return fallback
	}
	return level
}

// clamp constrains v into [lo, hi]
func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
