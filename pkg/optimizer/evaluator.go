package optimizer

import (
	"context"
	"fmt"

	"github.com/quantbr/perpedge/pkg/config"
	"github.com/quantbr/perpedge/pkg/core"
	"github.com/quantbr/perpedge/pkg/indicator"
	"github.com/quantbr/perpedge/pkg/logger"
	"github.com/quantbr/perpedge/pkg/metric"
	"github.com/quantbr/perpedge/pkg/strategy"
)

// Metric names produced by the exit evaluator
const (
	MetricMeanReturn      = "mean_return"
	MetricMeanReturnLower = "mean_return_lower"
	MetricWinRate         = "win_rate"
	MetricPayoff          = "payoff"
	MetricProfitFactor    = "profit_factor"
)

const bootstrapSamples = 1000

// Trade is one recorded entry with the candles that preceded it and the
// candles that followed. History feeds the level and trend analysis,
// Forward is walked bar by bar to find which exit fired first.
type Trade struct {
	Pair       string
	Side       core.SideType
	EntryPrice float64
	History    []core.Candle
	Forward    []core.Candle
}

// staticSource pins the engine to one candidate configuration
type staticSource struct {
	cfg config.StrategyConfig
}

func (s staticSource) Snapshot() config.StrategyConfig    { return s.cfg }
func (s staticSource) SymbolConfig(string) map[string]any { return nil }

// ExitEvaluator replays recorded trades through the exit engine with a
// candidate parameter set and scores the resulting per-trade returns
type ExitEvaluator struct {
	base   config.StrategyConfig
	trades []Trade
	log    logger.Logger
}

// NewExitEvaluator creates an evaluator over a base configuration and a
// set of recorded trades
func NewExitEvaluator(base config.StrategyConfig, trades []Trade, log logger.Logger) *ExitEvaluator {
	if log == nil {
		log = logger.Nop()
	}
	return &ExitEvaluator{
		base:   base,
		trades: trades,
		log:    log,
	}
}

// Evaluate scores one parameter set against all recorded trades
func (ev *ExitEvaluator) Evaluate(ctx context.Context, params ParameterSet) (*Result, error) {
	if len(ev.trades) == 0 {
		return nil, fmt.Errorf("no trades to evaluate")
	}

	candidate := ev.base.WithOverrides(map[string]any(params))
	if err := candidate.Validate(); err != nil {
		return nil, fmt.Errorf("invalid candidate configuration: %w", err)
	}

	engine := strategy.NewEngine(staticSource{cfg: candidate}, logger.Nop())

	returns := make([]float64, 0, len(ev.trades))
	for _, trade := range ev.trades {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		returns = append(returns, ev.replay(engine, trade))
	}

	interval := metric.Bootstrap(returns, metric.Mean, bootstrapSamples, 0.95)

	return &Result{
		Params:  params,
		Returns: returns,
		Metrics: map[string]float64{
			MetricMeanReturn:      metric.Mean(returns),
			MetricMeanReturnLower: interval.Lower,
			MetricWinRate:         metric.WinRate(returns),
			MetricPayoff:          metric.Payoff(returns),
			MetricProfitFactor:    metric.ProfitFactor(returns),
		},
	}, nil
}

// replay computes the exit pair for a trade under the candidate config and
// walks forward candles until the stop or the target fires. Trades that
// never hit an exit settle at the last forward close.
func (ev *ExitEvaluator) replay(engine *strategy.Engine, trade Trade) float64 {
	snap := core.MarketSnapshot{
		Pair:    trade.Pair,
		Price:   trade.EntryPrice,
		Candles: trade.History,
		Levels:  indicator.Levels(trade.History),
		Trend:   indicator.Trend(trade.History),
	}

	stop := engine.AdaptiveStopLoss(trade.Side, trade.EntryPrice, snap).Value
	result := engine.AggressiveTakeProfit(trade.Side, trade.EntryPrice, stop, snap,
		0, snap.Trend.Label)
	target := result.TakeProfit

	exitPrice := trade.EntryPrice
	if len(trade.Forward) > 0 {
		exitPrice = trade.Forward[len(trade.Forward)-1].Close
	}

	for _, candle := range trade.Forward {
		if trade.Side == core.SideLong {
			if candle.Low <= stop {
				exitPrice = stop
				break
			}
			if candle.High >= target {
				exitPrice = target
				break
			}
		} else {
			if candle.High >= stop {
				exitPrice = stop
				break
			}
			if candle.Low <= target {
				exitPrice = target
				break
			}
		}
	}

	if trade.EntryPrice == 0 {
		return 0
	}

	ret := (exitPrice - trade.EntryPrice) / trade.EntryPrice
	if trade.Side == core.SideShort {
		ret = -ret
	}
	return ret
}
