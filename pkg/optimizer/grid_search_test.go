package optimizer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

// scoreByParam scores each candidate by the value of a single float
// parameter, making the expected ranking trivial to predict.
type scoreByParam struct {
	name string
}

func (e scoreByParam) Evaluate(_ context.Context, params ParameterSet) (*Result, error) {
	value := params[e.name].(float64)
	return &Result{
		Params:  params,
		Metrics: map[string]float64{MetricMeanReturn: value},
		Returns: []float64{value},
	}, nil
}

func TestGridSearchGeneratesCartesianProduct(t *testing.T) {
	cfg := NewConfig().WithParameters(
		Parameter{Name: "atr_multiplier", Type: TypeFloat, Min: 1.0, Max: 2.0, Step: 0.5},
		Parameter{Name: "default_atr_period", Type: TypeInt, Min: 10, Max: 20, Step: 5},
	)

	grid, err := NewGridSearch(cfg)
	require.NoError(t, err)

	sets, err := grid.generateParameterSets()
	require.NoError(t, err)

	// 3 float values x 3 int values.
	require.Len(t, sets, 9)
	for _, set := range sets {
		require.NoError(t, ValidateParameterSet(set, cfg.Parameters))
	}
}

func TestGridSearchRanksByTargetMetric(t *testing.T) {
	cfg := NewConfig().
		WithParameters(Parameter{Name: "min_risk_reward", Type: TypeFloat, Min: 1.0, Max: 2.0, Step: 0.5}).
		WithParallelism(2)

	grid, err := NewGridSearch(cfg)
	require.NoError(t, err)

	results, err := grid.Optimize(context.Background(), scoreByParam{name: "min_risk_reward"}, MetricMeanReturn, true)
	require.NoError(t, err)
	require.Len(t, results, 3)

	// Maximizing: best candidate first.
	require.InDelta(t, 2.0, results[0].Metrics[MetricMeanReturn], 1e-9)
	require.InDelta(t, 1.0, results[2].Metrics[MetricMeanReturn], 1e-9)

	minimized, err := grid.Optimize(context.Background(), scoreByParam{name: "min_risk_reward"}, MetricMeanReturn, false)
	require.NoError(t, err)
	require.InDelta(t, 1.0, minimized[0].Metrics[MetricMeanReturn], 1e-9)
}

func TestGridSearchHonorsMaxIterations(t *testing.T) {
	cfg := NewConfig().
		WithParameters(Parameter{Name: "min_risk_reward", Type: TypeFloat, Min: 1.0, Max: 3.0, Step: 0.1}).
		WithMaxIterations(5)

	grid, err := NewGridSearch(cfg)
	require.NoError(t, err)

	results, err := grid.Optimize(context.Background(), scoreByParam{name: "min_risk_reward"}, MetricMeanReturn, true)
	require.NoError(t, err)
	require.Len(t, results, 5)
}

func TestGridSearchRejectsEmptyConfig(t *testing.T) {
	_, err := NewGridSearch(nil)
	require.Error(t, err)

	_, err = NewGridSearch(NewConfig())
	require.Error(t, err)
}

func TestGridSearchRejectsBadRanges(t *testing.T) {
	cfg := NewConfig().WithParameters(
		Parameter{Name: "min_risk_reward", Type: TypeFloat, Min: 1.0, Max: 2.0, Step: -0.5},
	)

	grid, err := NewGridSearch(cfg)
	require.NoError(t, err)

	_, err = grid.Optimize(context.Background(), scoreByParam{name: "min_risk_reward"}, MetricMeanReturn, true)
	require.Error(t, err)
}

func TestValidateParameterSet(t *testing.T) {
	defs := []Parameter{
		{Name: "min_risk_reward", Type: TypeFloat},
		{Name: "default_atr_period", Type: TypeInt},
	}

	require.NoError(t, ValidateParameterSet(ParameterSet{
		"min_risk_reward":    1.5,
		"default_atr_period": 14,
	}, defs))

	require.Error(t, ValidateParameterSet(ParameterSet{
		"min_risk_reward": 1.5,
	}, defs))

	require.Error(t, ValidateParameterSet(ParameterSet{
		"min_risk_reward":    1,
		"default_atr_period": 14,
	}, defs))
}
