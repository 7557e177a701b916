package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/quantbr/perpedge/pkg/core"
	"github.com/quantbr/perpedge/pkg/logger"
	"github.com/stretchr/testify/require"
)

func tempConfigPath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "strategy.json")
}

func TestManagerWritesDefaultsWhenFileMissing(t *testing.T) {
	path := tempConfigPath(t)

	m := NewManager(path, logger.Nop())

	require.FileExists(t, path)
	require.InDelta(t, 0.02, m.Snapshot().StopLoss.MinStopLossRatio, 1e-12)
}

func TestManagerRoundTrip(t *testing.T) {
	path := tempConfigPath(t)

	first := NewManager(path, logger.Nop())

	updated := first.Snapshot()
	updated.StopLoss.MinStopLossRatio = 0.03
	updated.TakeProfit.MaxRiskReward = 4.0
	require.NoError(t, first.Update(updated))
	require.NoError(t, first.UpdateSymbolConfig("ETH/USDT", map[string]any{
		"min_stop_loss_ratio": 0.04,
	}))

	// A fresh manager on the same file sees the persisted document.
	second := NewManager(path, logger.Nop())
	snap := second.Snapshot()

	require.InDelta(t, 0.03, snap.StopLoss.MinStopLossRatio, 1e-12)
	require.InDelta(t, 4.0, snap.TakeProfit.MaxRiskReward, 1e-12)

	overrides := second.SymbolConfig("ETH/USDT:USDT")
	require.Contains(t, overrides, "min_stop_loss_ratio")
	require.InDelta(t, 0.04, overrides["min_stop_loss_ratio"].(float64), 1e-12)
}

// Map keys must survive persistence byte for byte: a lowercased symbol key
// would orphan every override, and a lowercased trend label would disable
// the trend-weighted take-profit multipliers.
func TestManagerRoundTripPreservesMapKeyCase(t *testing.T) {
	path := tempConfigPath(t)

	first := NewManager(path, logger.Nop())
	require.NoError(t, first.UpdateSymbolConfig("ETH/USDT", map[string]any{
		"min_stop_loss_ratio": 0.04,
	}))

	second := NewManager(path, logger.Nop())
	snap := second.Snapshot()

	require.Contains(t, snap.SymbolSpecific, "ETH")
	require.NotContains(t, snap.SymbolSpecific, "eth")

	tsm := snap.TakeProfit.TrendStrengthMultipliers
	require.InDelta(t, 1.5, tsm[core.TrendStrongUptrend], 1e-12)
	require.InDelta(t, 1.2, tsm[core.TrendUptrend], 1e-12)
	require.InDelta(t, 1.0, tsm[core.TrendConsolidation], 1e-12)
	require.InDelta(t, 1.2, tsm[core.TrendDowntrend], 1e-12)
	require.InDelta(t, 1.5, tsm[core.TrendStrongDowntrend], 1e-12)
	require.NotContains(t, tsm, core.TrendLabel("strong_uptrend"))
}

func TestManagerKeepsCurrentConfigOnMalformedFile(t *testing.T) {
	path := tempConfigPath(t)
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	m := NewManager(path, logger.Nop())

	require.False(t, m.Load())
	require.InDelta(t, 0.02, m.Snapshot().StopLoss.MinStopLossRatio, 1e-12)
}

func TestManagerRejectsInvalidPersistedConfig(t *testing.T) {
	path := tempConfigPath(t)
	doc := `{"global":{"stop_loss":{"min_stop_loss_ratio":-1,"max_stop_loss_ratio":0.4,
		"atr_multiplier":1.5},"take_profit":{"min_risk_reward":1.2,"max_risk_reward":3.0}},
		"symbol_specific_config":{}}`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	m := NewManager(path, logger.Nop())

	// Invalid document on disk: the built-in defaults stay in effect.
	require.InDelta(t, 0.02, m.Snapshot().StopLoss.MinStopLossRatio, 1e-12)
}

func TestManagerUpdateRejectsInvalidConfig(t *testing.T) {
	m := NewManager(tempConfigPath(t), logger.Nop())

	broken := m.Snapshot()
	broken.TakeProfit.MinRiskReward = 0

	require.Error(t, m.Update(broken))
	require.InDelta(t, 1.2, m.Snapshot().TakeProfit.MinRiskReward, 1e-12)
}

func TestSymbolConfigReturnsCopies(t *testing.T) {
	m := NewManager(tempConfigPath(t), logger.Nop())
	require.NoError(t, m.UpdateSymbolConfig("BTC/USDT", map[string]any{
		"min_stop_loss_ratio": 0.05,
	}))

	got := m.SymbolConfig("BTC/USDT")
	got["min_stop_loss_ratio"] = 0.99

	again := m.SymbolConfig("BTC/USDT")
	require.InDelta(t, 0.05, again["min_stop_loss_ratio"].(float64), 1e-12)
}

func TestSymbolConfigUnknownSymbolIsEmpty(t *testing.T) {
	m := NewManager(tempConfigPath(t), logger.Nop())

	got := m.SymbolConfig("DOGE/USDT:USDT")
	require.NotNil(t, got)
	require.Empty(t, got)
}
