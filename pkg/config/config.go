// Package config holds the strategy configuration model: stop-loss bounds,
// take-profit bounds and multipliers, the multi-level take-profit ladder and
// per-symbol overrides.
package config

import (
	"encoding/json"
	"fmt"

	"github.com/quantbr/perpedge/pkg/core"
)

// DefaultATRPeriod is the rolling window used by the ATR estimator when the
// configuration does not override it.
const DefaultATRPeriod = 14

// StopLossConfig bounds and parameterizes stop-loss placement
type StopLossConfig struct {
	MinStopLossRatio        float64 `mapstructure:"min_stop_loss_ratio" json:"min_stop_loss_ratio"`
	MaxStopLossRatio        float64 `mapstructure:"max_stop_loss_ratio" json:"max_stop_loss_ratio"`
	KlineBasedStopLoss      bool    `mapstructure:"kline_based_stop_loss" json:"kline_based_stop_loss"`
	ATRMultiplier           float64 `mapstructure:"atr_multiplier" json:"atr_multiplier"`
	EnableTrailingStop      bool    `mapstructure:"enable_trailing_stop" json:"enable_trailing_stop"`
	TrailingActivationRatio float64 `mapstructure:"trailing_activation_ratio" json:"trailing_activation_ratio"`
	TrailingDistanceRatio   float64 `mapstructure:"trailing_distance_ratio" json:"trailing_distance_ratio"`
}

// TakeProfitConfig bounds the acceptable reward/risk window and scales it
// by trend strength
type TakeProfitConfig struct {
	MinRiskReward            float64                     `mapstructure:"min_risk_reward" json:"min_risk_reward"`
	MaxRiskReward            float64                     `mapstructure:"max_risk_reward" json:"max_risk_reward"`
	ATRMultiplier            float64                     `mapstructure:"atr_multiplier" json:"atr_multiplier"`
	TrendStrengthMultipliers map[core.TrendLabel]float64 `mapstructure:"trend_strength_multipliers" json:"trend_strength_multipliers"`
}

// TakeProfitLevel is one rung of the partial take-profit ladder
type TakeProfitLevel struct {
	ProfitMultiplier float64 `mapstructure:"profit_multiplier" json:"profit_multiplier"`
	TakeProfitRatio  float64 `mapstructure:"take_profit_ratio" json:"take_profit_ratio"`
	SetBreakevenStop bool    `mapstructure:"set_breakeven_stop" json:"set_breakeven_stop"`
	Description      string  `mapstructure:"description" json:"description"`
}

// MultiLevelTakeProfitConfig describes the partial take-profit ladder.
// Levels fire in order as price advances, so multipliers must be strictly
// increasing and the close ratios may not sum past the full position.
type MultiLevelTakeProfitConfig struct {
	Enable bool              `mapstructure:"enable" json:"enable"`
	Levels []TakeProfitLevel `mapstructure:"levels" json:"levels"`
}

// StrategyConfig aggregates all calculation parameters plus per-base-currency
// overrides
type StrategyConfig struct {
	StopLoss             StopLossConfig             `mapstructure:"stop_loss" json:"stop_loss"`
	TakeProfit           TakeProfitConfig           `mapstructure:"take_profit" json:"take_profit"`
	MultiLevelTakeProfit MultiLevelTakeProfitConfig `mapstructure:"multi_level_take_profit" json:"multi_level_take_profit"`
	DefaultATRPeriod     int                        `mapstructure:"default_atr_period" json:"default_atr_period"`

	SymbolSpecific map[string]map[string]any `mapstructure:"symbol_specific_config" json:"symbol_specific_config"`
}

// Default returns the built-in strategy configuration
func Default() StrategyConfig {
	return StrategyConfig{
		StopLoss: StopLossConfig{
			MinStopLossRatio:        0.02,
			MaxStopLossRatio:        0.40,
			KlineBasedStopLoss:      true,
			ATRMultiplier:           1.5,
			EnableTrailingStop:      true,
			TrailingActivationRatio: 0.03,
			TrailingDistanceRatio:   0.015,
		},
		TakeProfit: TakeProfitConfig{
			MinRiskReward: 1.2,
			MaxRiskReward: 3.0,
			ATRMultiplier: 2.0,
			TrendStrengthMultipliers: map[core.TrendLabel]float64{
				core.TrendStrongUptrend:   1.5,
				core.TrendUptrend:         1.2,
				core.TrendConsolidation:   1.0,
				core.TrendDowntrend:       1.2,
				core.TrendStrongDowntrend: 1.5,
			},
		},
		MultiLevelTakeProfit: MultiLevelTakeProfitConfig{
			Enable: true,
			Levels: []TakeProfitLevel{
				{
					ProfitMultiplier: 1.5,
					TakeProfitRatio:  0.3,
					SetBreakevenStop: true,
					Description:      "first tier: close 30%, move stop to breakeven",
				},
				{
					ProfitMultiplier: 2.0,
					TakeProfitRatio:  0.4,
					SetBreakevenStop: true,
					Description:      "second tier: close 40%, trail the stop",
				},
				{
					ProfitMultiplier: 3.0,
					TakeProfitRatio:  0.3,
					SetBreakevenStop: false,
					Description:      "third tier: let the remaining 30% run",
				},
			},
		},
		DefaultATRPeriod: DefaultATRPeriod,
		SymbolSpecific:   map[string]map[string]any{},
	}
}

// Validate checks the configuration invariants. A persisted document that
// fails validation is rejected at load time and the previous (or default)
// configuration stays in effect.
func (c StrategyConfig) Validate() error {
	sl := c.StopLoss
	if sl.MinStopLossRatio <= 0 {
		return fmt.Errorf("stop_loss.min_stop_loss_ratio must be > 0, got %v", sl.MinStopLossRatio)
	}
	if sl.MinStopLossRatio >= sl.MaxStopLossRatio {
		return fmt.Errorf("stop_loss ratios must satisfy 0 < min < max, got min=%v max=%v",
			sl.MinStopLossRatio, sl.MaxStopLossRatio)
	}
	if sl.ATRMultiplier < 0 {
		return fmt.Errorf("stop_loss.atr_multiplier must be >= 0, got %v", sl.ATRMultiplier)
	}

	tp := c.TakeProfit
	if tp.MinRiskReward <= 0 {
		return fmt.Errorf("take_profit.min_risk_reward must be > 0, got %v", tp.MinRiskReward)
	}
	if tp.MinRiskReward > tp.MaxRiskReward {
		return fmt.Errorf("take_profit risk/reward bounds must satisfy min <= max, got min=%v max=%v",
			tp.MinRiskReward, tp.MaxRiskReward)
	}

	return c.MultiLevelTakeProfit.validate()
}

func (m MultiLevelTakeProfitConfig) validate() error {
	var (
		totalRatio     float64
		lastMultiplier float64
	)

	for i, level := range m.Levels {
		if level.TakeProfitRatio <= 0 || level.TakeProfitRatio > 1 {
			return fmt.Errorf("multi_level_take_profit.levels[%d].take_profit_ratio out of (0, 1]: %v",
				i, level.TakeProfitRatio)
		}
		if level.ProfitMultiplier <= lastMultiplier {
			return fmt.Errorf("multi_level_take_profit.levels[%d].profit_multiplier must be strictly increasing: %v after %v",
				i, level.ProfitMultiplier, lastMultiplier)
		}
		lastMultiplier = level.ProfitMultiplier
		totalRatio += level.TakeProfitRatio
	}

	// Small epsilon for accumulated float error on ratios like 0.3+0.4+0.3
	if totalRatio > 1.0+1e-9 {
		return fmt.Errorf("multi_level_take_profit close ratios sum to %v, must be <= 1.0", totalRatio)
	}

	return nil
}

// WithOverrides returns a copy of the configuration with the recognized
// per-symbol override keys applied. Unknown keys are ignored so that a stale
// override document cannot break a release that dropped a knob.
func (c StrategyConfig) WithOverrides(overrides map[string]any) StrategyConfig {
	out := c
	for key, raw := range overrides {
		value, ok := toFloat(raw)
		if !ok {
			continue
		}

		switch key {
		case "min_stop_loss_ratio":
			out.StopLoss.MinStopLossRatio = value
		case "max_stop_loss_ratio":
			out.StopLoss.MaxStopLossRatio = value
		case "atr_multiplier":
			out.StopLoss.ATRMultiplier = value
		case "trailing_activation_ratio":
			out.StopLoss.TrailingActivationRatio = value
		case "trailing_distance_ratio":
			out.StopLoss.TrailingDistanceRatio = value
		case "min_risk_reward":
			out.TakeProfit.MinRiskReward = value
		case "max_risk_reward":
			out.TakeProfit.MaxRiskReward = value
		case "default_atr_period":
			out.DefaultATRPeriod = int(value)
		}
	}
	return out
}

func toFloat(v any) (float64, bool) {
	switch value := v.(type) {
	case float64:
		return value, true
	case float32:
		return float64(value), true
	case int:
		return float64(value), true
	case int64:
		return float64(value), true
	case json.Number:
		f, err := value.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}
