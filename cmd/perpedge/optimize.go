package main

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/quantbr/perpedge/pkg/config"
	"github.com/quantbr/perpedge/pkg/core"
	"github.com/quantbr/perpedge/pkg/indicator"
	"github.com/quantbr/perpedge/pkg/optimizer"

	"github.com/spf13/cobra"
)

const (
	historyWindow = 100
	forwardWindow = 50
	tradeStride   = 20
)

func runOptimize(cmd *cobra.Command, args []string) error {
	log := newLogger()

	candles, err := loadCandlesCSV(inputFile, pair)
	if err != nil {
		return err
	}

	trades := synthesizeTrades(candles)
	if len(trades) == 0 {
		return fmt.Errorf("not enough candles in %s to synthesize trades", inputFile)
	}

	log.Infof("Synthesized %d trades from %d candles", len(trades), len(candles))

	searchConfig := optimizer.NewConfig().
		WithParameters(
			optimizer.Parameter{Name: "min_stop_loss_ratio", Type: optimizer.TypeFloat, Min: 0.01, Max: 0.05, Step: 0.01},
			optimizer.Parameter{Name: "atr_multiplier", Type: optimizer.TypeFloat, Min: 1.0, Max: 2.5, Step: 0.5},
			optimizer.Parameter{Name: "min_risk_reward", Type: optimizer.TypeFloat, Min: 1.0, Max: 2.0, Step: 0.2},
		).
		WithMaxIterations(500).
		WithParallelism(4).
		WithLogger(log).
		WithTargetMetric(optimizer.MetricMeanReturnLower, true)

	search, err := optimizer.NewGridSearch(searchConfig)
	if err != nil {
		return err
	}

	evaluator := optimizer.NewExitEvaluator(config.Default(), trades, log)

	results, err := search.Optimize(cmd.Context(), evaluator, searchConfig.TargetMetric, searchConfig.Maximize)
	if err != nil {
		return err
	}

	return optimizer.PrintReport(os.Stdout, results, searchConfig.TopN)
}

// loadCandlesCSV reads candles in the download command's CSV layout
func loadCandlesCSV(path, pair string) ([]core.Candle, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	rows, err := csv.NewReader(file).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	candles := make([]core.Candle, 0, len(rows))
	for i, row := range rows {
		if i == 0 {
			continue // header
		}
		if len(row) < 6 {
			return nil, fmt.Errorf("row %d of %s has %d columns, want 6", i, path, len(row))
		}

		unix, err := strconv.ParseInt(row[0], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("row %d of %s: bad timestamp: %w", i, path, err)
		}

		values := make([]float64, 5)
		for j := 1; j < 6; j++ {
			values[j-1], err = strconv.ParseFloat(row[j], 64)
			if err != nil {
				return nil, fmt.Errorf("row %d of %s: bad value: %w", i, path, err)
			}
		}

		t := time.Unix(unix, 0)
		candles = append(candles, core.Candle{
			Pair:      pair,
			Time:      t,
			UpdatedAt: t,
			Open:      values[0],
			Close:     values[1],
			Low:       values[2],
			High:      values[3],
			Volume:    values[4],
			Complete:  true,
		})
	}

	return candles, nil
}

// synthesizeTrades builds evaluation trades by entering with the trend at
// fixed strides over the candle history. Consolidation windows produce no
// trade.
func synthesizeTrades(candles []core.Candle) []optimizer.Trade {
	var trades []optimizer.Trade

	for i := historyWindow; i+forwardWindow < len(candles); i += tradeStride {
		history := candles[i-historyWindow : i]
		forward := candles[i : i+forwardWindow]

		trend := indicator.Trend(history)

		var side core.SideType
		switch trend.Label {
		case core.TrendStrongUptrend, core.TrendUptrend:
			side = core.SideLong
		case core.TrendStrongDowntrend, core.TrendDowntrend:
			side = core.SideShort
		default:
			continue
		}

		trades = append(trades, optimizer.Trade{
			Pair:       candles[i].Pair,
			Side:       side,
			EntryPrice: candles[i].Open,
			History:    history,
			Forward:    forward,
		})
	}

	return trades
}
