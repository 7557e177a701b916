package optimizer

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/quantbr/perpedge/pkg/logger"
)

// GridSearch implements a grid search optimization algorithm
type GridSearch struct {
	parameters    []Parameter
	maxIterations int
	parallelism   int
	log           logger.Logger
}

// NewGridSearch creates a new grid search optimizer
func NewGridSearch(config *Config) (*GridSearch, error) {
	if config == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}

	if len(config.Parameters) == 0 {
		return nil, fmt.Errorf("at least one parameter must be provided")
	}

	parallelism := config.Parallelism
	if parallelism < 1 {
		parallelism = 1
	}

	return &GridSearch{
		parameters:    config.Parameters,
		maxIterations: config.MaxIterations,
		parallelism:   parallelism,
		log:           config.Logger,
	}, nil
}

// Optimize runs the grid search optimization process
func (g *GridSearch) Optimize(ctx context.Context, evaluator Evaluator, targetMetric string, maximize bool) ([]*Result, error) {
	if evaluator == nil {
		return nil, fmt.Errorf("evaluator cannot be nil")
	}

	parameterSets, err := g.generateParameterSets()
	if err != nil {
		return nil, err
	}

	if len(parameterSets) > g.maxIterations {
		g.logf("Limiting parameter combinations from %d to %d", len(parameterSets), g.maxIterations)
		parameterSets = parameterSets[:g.maxIterations]
	}

	g.logf("Starting grid search with %d parameter combinations", len(parameterSets))

	results, err := g.runEvaluations(ctx, evaluator, parameterSets)
	if err != nil {
		return nil, err
	}

	sorter := ResultSorter{
		Results:    results,
		MetricName: targetMetric,
		Maximize:   maximize,
	}
	sort.Sort(sorter)

	g.logf("Grid search completed with %d results", len(results))
	return results, nil
}

// generateParameterSets creates all possible combinations of parameter values
func (g *GridSearch) generateParameterSets() ([]ParameterSet, error) {
	parameterSets := []ParameterSet{make(ParameterSet)}

	for _, param := range g.parameters {
		values, err := g.generateParameterValues(param)
		if err != nil {
			return nil, err
		}

		var newSets []ParameterSet
		for _, set := range parameterSets {
			for _, value := range values {
				newSet := make(ParameterSet)
				for k, v := range set {
					newSet[k] = v
				}
				newSet[param.Name] = value
				newSets = append(newSets, newSet)
			}
		}
		parameterSets = newSets
	}

	return parameterSets, nil
}

// generateParameterValues creates all values for a parameter from its range
func (g *GridSearch) generateParameterValues(param Parameter) ([]any, error) {
	switch param.Type {
	case TypeInt:
		return g.generateIntValues(param)
	case TypeFloat:
		return g.generateFloatValues(param)
	default:
		return nil, fmt.Errorf("unsupported parameter type: %s", param.Type)
	}
}

// generateIntValues creates integer values within the specified range and step
func (g *GridSearch) generateIntValues(param Parameter) ([]any, error) {
	min, ok := param.Min.(int)
	if !ok {
		return nil, fmt.Errorf("parameter %s min value must be an integer", param.Name)
	}

	max, ok := param.Max.(int)
	if !ok {
		return nil, fmt.Errorf("parameter %s max value must be an integer", param.Name)
	}

	step, ok := param.Step.(int)
	if !ok {
		return nil, fmt.Errorf("parameter %s step value must be an integer", param.Name)
	}

	if step <= 0 {
		return nil, fmt.Errorf("parameter %s step value must be positive", param.Name)
	}

	var values []any
	for i := min; i <= max; i += step {
		values = append(values, i)
	}

	return values, nil
}

// generateFloatValues creates float values within the specified range and step
func (g *GridSearch) generateFloatValues(param Parameter) ([]any, error) {
	min, ok := param.Min.(float64)
	if !ok {
		return nil, fmt.Errorf("parameter %s min value must be a float", param.Name)
	}

	max, ok := param.Max.(float64)
	if !ok {
		return nil, fmt.Errorf("parameter %s max value must be a float", param.Name)
	}

	step, ok := param.Step.(float64)
	if !ok {
		return nil, fmt.Errorf("parameter %s step value must be a float", param.Name)
	}

	if step <= 0 {
		return nil, fmt.Errorf("parameter %s step value must be positive", param.Name)
	}

	var values []any
	for f := min; f <= max; f += step {
		values = append(values, f)
	}

	return values, nil
}

// runEvaluations executes the evaluations for all parameter sets
func (g *GridSearch) runEvaluations(ctx context.Context, evaluator Evaluator, parameterSets []ParameterSet) ([]*Result, error) {
	var (
		results   []*Result
		mutex     sync.Mutex
		wg        sync.WaitGroup
		errCh     = make(chan error, 1)
		semaphore = make(chan struct{}, g.parallelism)
	)

	for i, params := range parameterSets {
		select {
		case <-ctx.Done():
			return results, ctx.Err()
		case err := <-errCh:
			return results, err
		default:
		}

		wg.Add(1)
		semaphore <- struct{}{}

		go func(index int, paramSet ParameterSet) {
			defer wg.Done()
			defer func() { <-semaphore }()

			result, err := evaluator.Evaluate(ctx, paramSet)
			if err != nil {
				select {
				case errCh <- fmt.Errorf("evaluation error: %w", err):
				default:
				}
				return
			}

			mutex.Lock()
			results = append(results, result)
			mutex.Unlock()

			g.logf("Completed evaluation %d/%d", index+1, len(parameterSets))
		}(i, params)
	}

	wg.Wait()

	select {
	case err := <-errCh:
		return results, err
	default:
		return results, nil
	}
}

// logf logs a message if a logger is configured
func (g *GridSearch) logf(format string, args ...any) {
	if g.log != nil {
		g.log.Infof(format, args...)
	}
}
