package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/quantbr/perpedge/pkg/core"
	"github.com/quantbr/perpedge/pkg/logger"
	"github.com/spf13/viper"
)

// DefaultConfigPath is where the manager persists the strategy document
// when no path is configured.
const DefaultConfigPath = "./strategy_config.json"

// document is the persisted two-section shape of the strategy config file
type document struct {
	Global struct {
		StopLoss             StopLossConfig             `json:"stop_loss"`
		TakeProfit           TakeProfitConfig           `json:"take_profit"`
		MultiLevelTakeProfit MultiLevelTakeProfitConfig `json:"multi_level_take_profit"`
		DefaultATRPeriod     int                        `json:"default_atr_period"`
	} `json:"global"`

	SymbolSpecific map[string]map[string]any `json:"symbol_specific_config"`
}

// Manager owns the single process-wide strategy configuration. It is shared
// across concurrent per-symbol evaluation cycles, so every access goes
// through the read-write lock; calculations grab an immutable Snapshot for
// the duration of a call.
//
// Persistence failures never block the trading loop: load falls back to the
// last known (or default) configuration and logs the problem.
type Manager struct {
	mu      sync.RWMutex
	path    string
	current StrategyConfig
	log     logger.Logger
}

// NewManager builds a manager with defaults and immediately attempts to
// overlay the persisted document. A missing file is created with defaults.
func NewManager(path string, log logger.Logger) *Manager {
	if path == "" {
		path = DefaultConfigPath
	}
	if log == nil {
		log = logger.Nop()
	}

	m := &Manager{
		path:    path,
		current: Default(),
		log:     log,
	}
	m.Load()

	return m
}

// Load reads the persisted document and replaces the in-memory config when
// it parses and validates. Any failure keeps the current config in effect.
func (m *Manager) Load() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, err := os.Stat(m.path); os.IsNotExist(err) {
		m.log.WithField("path", m.path).Info("strategy config file missing, writing defaults")
		if err := m.saveLocked(); err != nil {
			m.log.WithError(err).Error("failed to write default strategy config")
		}
		return true
	}

	content, err := os.ReadFile(m.path)
	if err != nil {
		m.log.WithError(err).WithField("path", m.path).
			Error("failed to read strategy config, keeping current values")
		return false
	}

	// Decoded with encoding/json rather than viper: viper lowercases map
	// keys on unmarshal, which would corrupt the symbol override keys and
	// the trend-label keys of the multiplier map.
	var doc document
	if err := json.Unmarshal(content, &doc); err != nil {
		m.log.WithError(err).Error("failed to parse strategy config, keeping current values")
		return false
	}

	loaded := StrategyConfig{
		StopLoss:             doc.Global.StopLoss,
		TakeProfit:           doc.Global.TakeProfit,
		MultiLevelTakeProfit: doc.Global.MultiLevelTakeProfit,
		DefaultATRPeriod:     doc.Global.DefaultATRPeriod,
		SymbolSpecific:       doc.SymbolSpecific,
	}
	if loaded.DefaultATRPeriod <= 0 {
		loaded.DefaultATRPeriod = DefaultATRPeriod
	}
	if loaded.SymbolSpecific == nil {
		loaded.SymbolSpecific = map[string]map[string]any{}
	}
	if loaded.TakeProfit.TrendStrengthMultipliers == nil {
		loaded.TakeProfit.TrendStrengthMultipliers = Default().TakeProfit.TrendStrengthMultipliers
	}

	if err := loaded.Validate(); err != nil {
		m.log.WithError(err).Error("persisted strategy config is invalid, keeping current values")
		return false
	}

	m.current = loaded
	m.log.WithField("path", m.path).Info("strategy config loaded")

	return true
}

// Save serializes the in-memory configuration back to the two-section
// document shape.
func (m *Manager) Save() error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.saveLocked()
}

func (m *Manager) saveLocked() error {
	var doc document
	doc.Global.StopLoss = m.current.StopLoss
	doc.Global.TakeProfit = m.current.TakeProfit
	doc.Global.MultiLevelTakeProfit = m.current.MultiLevelTakeProfit
	doc.Global.DefaultATRPeriod = m.current.DefaultATRPeriod
	doc.SymbolSpecific = m.current.SymbolSpecific
	if doc.SymbolSpecific == nil {
		doc.SymbolSpecific = map[string]map[string]any{}
	}

	if dir := filepath.Dir(m.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}

	v := viper.New()
	v.SetConfigFile(m.path)
	v.SetConfigType("json")
	v.Set("global", doc.Global)
	v.Set("symbol_specific_config", doc.SymbolSpecific)

	if err := v.WriteConfig(); err != nil {
		return fmt.Errorf("failed to persist strategy config: %w", err)
	}

	return nil
}

// Snapshot returns a deep copy of the current configuration. Calculation
// methods hold the copy for the whole call, so a concurrent reload cannot
// produce a torn read.
func (m *Manager) Snapshot() StrategyConfig {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := m.current
	out.TakeProfit.TrendStrengthMultipliers = make(map[core.TrendLabel]float64,
		len(m.current.TakeProfit.TrendStrengthMultipliers))
	for k, v := range m.current.TakeProfit.TrendStrengthMultipliers {
		out.TakeProfit.TrendStrengthMultipliers[k] = v
	}

	out.MultiLevelTakeProfit.Levels = append([]TakeProfitLevel(nil),
		m.current.MultiLevelTakeProfit.Levels...)

	out.SymbolSpecific = make(map[string]map[string]any, len(m.current.SymbolSpecific))
	for base, overrides := range m.current.SymbolSpecific {
		copied := make(map[string]any, len(overrides))
		for k, v := range overrides {
			copied[k] = v
		}
		out.SymbolSpecific[base] = copied
	}

	return out
}

// SymbolConfig returns the raw override dict for the symbol's base currency,
// or an empty map when no override exists. Callers merge overrides over the
// defaults themselves (see StrategyConfig.WithOverrides).
func (m *Manager) SymbolConfig(symbol string) map[string]any {
	m.mu.RLock()
	defer m.mu.RUnlock()

	overrides, ok := m.current.SymbolSpecific[core.BaseCurrency(symbol)]
	if !ok {
		return map[string]any{}
	}

	copied := make(map[string]any, len(overrides))
	for k, v := range overrides {
		copied[k] = v
	}
	return copied
}

// UpdateSymbolConfig replaces the override dict for the symbol's base
// currency and persists synchronously.
func (m *Manager) UpdateSymbolConfig(symbol string, overrides map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current.SymbolSpecific == nil {
		m.current.SymbolSpecific = map[string]map[string]any{}
	}
	m.current.SymbolSpecific[core.BaseCurrency(symbol)] = overrides

	return m.saveLocked()
}

// Update validates and replaces the whole configuration, then persists.
func (m *Manager) Update(cfg StrategyConfig) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("rejected strategy config update: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.current = cfg
	return m.saveLocked()
}
