// Package binance implements the market data feeder and order broker on
// top of the Binance USD-M futures API.
package binance

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/adshao/go-binance/v2/futures"
	"github.com/jpillora/backoff"
)

// quote currencies recognized by SymbolFor and SplitAssetQuote
var quotes = []string{"USDT", "USDC", "BUSD", "BTC", "ETH", "BNB"}

// AssetInfo holds the exchange trading rules for a symbol
type AssetInfo struct {
	BaseAsset  string
	QuoteAsset string

	MinPrice    float64
	MaxPrice    float64
	MinQuantity float64
	MaxQuantity float64
	StepSize    float64
	TickSize    float64

	QuotePrecision     int
	BaseAssetPrecision int
}

// SymbolFor converts a unified pair name to the exchange wire symbol.
// "BTC/USDT:USDT" and "BTC/USDT" both map to "BTCUSDT".
func SymbolFor(pair string) string {
	if idx := strings.Index(pair, ":"); idx >= 0 {
		pair = pair[:idx]
	}
	return strings.ToUpper(strings.ReplaceAll(pair, "/", ""))
}

// SplitAssetQuote splits an exchange symbol into base and quote assets
func SplitAssetQuote(symbol string) (asset, quote string) {
	symbol = SymbolFor(symbol)
	for _, q := range quotes {
		if strings.HasSuffix(symbol, q) && len(symbol) > len(q) {
			return symbol[:len(symbol)-len(q)], q
		}
	}
	return symbol[:len(symbol)/2], symbol[len(symbol)/2:]
}

// formatQuantity formats a quantity according to the symbol's step size
func formatQuantity(assetsInfo map[string]AssetInfo, symbol string, value float64) string {
	info, ok := assetsInfo[symbol]
	if !ok {
		return strconv.FormatFloat(value, 'f', 8, 64)
	}

	step := info.StepSize
	precision := 0
	for step < 1 {
		step *= 10
		precision++
	}

	return strconv.FormatFloat(value, 'f', precision, 64)
}

// formatPrice formats a price according to the symbol's tick size
func formatPrice(assetsInfo map[string]AssetInfo, symbol string, value float64) string {
	info, ok := assetsInfo[symbol]
	if !ok {
		return strconv.FormatFloat(value, 'f', 8, 64)
	}

	tickSize := info.TickSize
	precision := 0
	for tickSize < 1 {
		tickSize *= 10
		precision++
	}

	return strconv.FormatFloat(value, 'f', precision, 64)
}

// validateOrder checks if an order quantity is valid for a symbol
func validateOrder(assetsInfo map[string]AssetInfo, symbol string, quantity float64) error {
	info, ok := assetsInfo[symbol]
	if !ok {
		return fmt.Errorf("asset info not found for symbol: %s", symbol)
	}

	if quantity < info.MinQuantity {
		return fmt.Errorf("quantity %f is less than minimum quantity %f", quantity, info.MinQuantity)
	}

	if quantity > info.MaxQuantity {
		return fmt.Errorf("quantity %f is greater than maximum quantity %f", quantity, info.MaxQuantity)
	}

	// Ensure quantity is a multiple of the step size
	remainder := quantity - info.MinQuantity
	steps := remainder / info.StepSize
	expectedQuantity := info.MinQuantity + (steps * info.StepSize)

	diff := quantity - expectedQuantity
	if diff > 0.000000001 || diff < -0.000000001 {
		return fmt.Errorf("quantity %f is not a multiple of step size %f", quantity, info.StepSize)
	}

	return nil
}

// setupBackoffRetry creates a backoff with sensible defaults
func setupBackoffRetry() *backoff.Backoff {
	return &backoff.Backoff{
		Min: 100 * time.Millisecond,
		Max: 1 * time.Second,
	}
}

// createAssetInfo extracts trading rules from a futures symbol description
func createAssetInfo(info futures.Symbol) (AssetInfo, error) {
	asset := AssetInfo{
		BaseAsset:          info.BaseAsset,
		QuoteAsset:         info.QuoteAsset,
		QuotePrecision:     info.QuotePrecision,
		BaseAssetPrecision: info.BaseAssetPrecision,
	}

	for _, filter := range info.Filters {
		filterType, ok := filter["filterType"].(string)
		if !ok {
			continue
		}

		switch filterType {
		case "LOT_SIZE":
			var err error
			if asset.MinQuantity, err = parseFilterFloat(filter, "minQty"); err != nil {
				return asset, err
			}
			if asset.MaxQuantity, err = parseFilterFloat(filter, "maxQty"); err != nil {
				return asset, err
			}
			if asset.StepSize, err = parseFilterFloat(filter, "stepSize"); err != nil {
				return asset, err
			}
		case "PRICE_FILTER":
			var err error
			if asset.MinPrice, err = parseFilterFloat(filter, "minPrice"); err != nil {
				return asset, err
			}
			if asset.MaxPrice, err = parseFilterFloat(filter, "maxPrice"); err != nil {
				return asset, err
			}
			if asset.TickSize, err = parseFilterFloat(filter, "tickSize"); err != nil {
				return asset, err
			}
		}
	}

	return asset, nil
}

// parseFilterFloat safely parses a float value from a filter map
func parseFilterFloat(filter map[string]any, key string) (float64, error) {
	value, ok := filter[key]
	if !ok {
		return 0, fmt.Errorf("key %s not found in filter", key)
	}

	strValue, ok := value.(string)
	if !ok {
		return 0, fmt.Errorf("value for key %s is not a string", key)
	}

	parsed, err := strconv.ParseFloat(strValue, 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse %s: %w", key, err)
	}

	return parsed, nil
}
