package strategy

import (
	"path/filepath"
	"testing"

	"github.com/quantbr/perpedge/pkg/config"
	"github.com/quantbr/perpedge/pkg/core"
	"github.com/quantbr/perpedge/pkg/logger"
)

// testEngine builds an engine on a throwaway configuration file holding
// the built-in defaults
func testEngine(t *testing.T) (*Engine, *config.Manager) {
	t.Helper()
	cfg := config.NewManager(filepath.Join(t.TempDir(), "strategy.json"), logger.Nop())
	return NewEngine(cfg, logger.Nop()), cfg
}

// flatCandles builds n identical candles centered on price with the given
// high-low range, so ATR(n') == rng for any period <= n
func flatCandles(price, rng float64, n int) []core.Candle {
	candles := make([]core.Candle, n)
	for i := range candles {
		candles[i] = core.Candle{
			Pair:     "BTC/USDT",
			Open:     price,
			Close:    price,
			High:     price + rng/2,
			Low:      price - rng/2,
			Complete: true,
		}
	}
	return candles
}
