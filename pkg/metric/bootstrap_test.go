package metric

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBootstrapEmptySample(t *testing.T) {
	interval := Bootstrap(nil, Mean, 100, 0.95)
	require.Zero(t, interval.Mean)
	require.Zero(t, interval.StdDev)
}

func TestBootstrapDegenerateSample(t *testing.T) {
	// Resampling a constant series is still the constant.
	interval := Bootstrap([]float64{5, 5, 5, 5}, Mean, 200, 0.95)

	require.InDelta(t, 5.0, interval.Mean, 1e-9)
	require.InDelta(t, 5.0, interval.Lower, 1e-9)
	require.InDelta(t, 5.0, interval.Upper, 1e-9)
	require.InDelta(t, 0.0, interval.StdDev, 1e-9)
}

func TestBootstrapIntervalBracketsTheMean(t *testing.T) {
	values := []float64{-2, -1, 0, 1, 2, 3, 4, 5}

	interval := Bootstrap(values, Mean, 1000, 0.95)

	require.LessOrEqual(t, interval.Lower, interval.Mean)
	require.GreaterOrEqual(t, interval.Upper, interval.Mean)
	// The resampled mean stays near the sample mean of 1.5.
	require.InDelta(t, 1.5, interval.Mean, 1.0)
}
