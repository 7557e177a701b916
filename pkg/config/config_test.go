package config

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaultPassesValidation(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestValidateRejectsBrokenConfigs(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(cfg *StrategyConfig)
	}{
		{"zero min stop ratio", func(cfg *StrategyConfig) {
			cfg.StopLoss.MinStopLossRatio = 0
		}},
		{"negative min stop ratio", func(cfg *StrategyConfig) {
			cfg.StopLoss.MinStopLossRatio = -0.01
		}},
		{"min not below max", func(cfg *StrategyConfig) {
			cfg.StopLoss.MinStopLossRatio = 0.40
			cfg.StopLoss.MaxStopLossRatio = 0.40
		}},
		{"negative atr multiplier", func(cfg *StrategyConfig) {
			cfg.StopLoss.ATRMultiplier = -1
		}},
		{"zero min risk reward", func(cfg *StrategyConfig) {
			cfg.TakeProfit.MinRiskReward = 0
		}},
		{"min risk reward above max", func(cfg *StrategyConfig) {
			cfg.TakeProfit.MinRiskReward = 4.0
			cfg.TakeProfit.MaxRiskReward = 3.0
		}},
		{"ladder ratio out of range", func(cfg *StrategyConfig) {
			cfg.MultiLevelTakeProfit.Levels[0].TakeProfitRatio = 1.5
		}},
		{"ladder ratios sum past one", func(cfg *StrategyConfig) {
			cfg.MultiLevelTakeProfit.Levels[2].TakeProfitRatio = 0.5
		}},
		{"ladder multipliers not increasing", func(cfg *StrategyConfig) {
			cfg.MultiLevelTakeProfit.Levels[1].ProfitMultiplier = 1.5
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(&cfg)
			require.Error(t, cfg.Validate())
		})
	}
}

func TestValidateAcceptsEmptyLadder(t *testing.T) {
	cfg := Default()
	cfg.MultiLevelTakeProfit.Levels = nil
	require.NoError(t, cfg.Validate())
}

func TestWithOverrides(t *testing.T) {
	cfg := Default()

	merged := cfg.WithOverrides(map[string]any{
		"min_stop_loss_ratio": 0.05,
		"max_risk_reward":     4.0,
		"default_atr_period":  21,
		"unknown_knob":        0.99,
	})

	require.InDelta(t, 0.05, merged.StopLoss.MinStopLossRatio, 1e-12)
	require.InDelta(t, 4.0, merged.TakeProfit.MaxRiskReward, 1e-12)
	require.Equal(t, 21, merged.DefaultATRPeriod)

	// The receiver is untouched.
	require.InDelta(t, 0.02, cfg.StopLoss.MinStopLossRatio, 1e-12)
}

func TestWithOverridesNumericTypes(t *testing.T) {
	cfg := Default()

	cases := []struct {
		name  string
		value any
		want  float64
	}{
		{"float64", 0.03, 0.03},
		{"int", 1, 1.0},
		{"json number", json.Number("0.04"), 0.04},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			merged := cfg.WithOverrides(map[string]any{"atr_multiplier": tc.value})
			require.InDelta(t, tc.want, merged.StopLoss.ATRMultiplier, 1e-12)
		})
	}

	// Non-numeric values are ignored rather than zeroing the knob.
	merged := cfg.WithOverrides(map[string]any{"atr_multiplier": "fast"})
	require.InDelta(t, 1.5, merged.StopLoss.ATRMultiplier, 1e-12)
}
