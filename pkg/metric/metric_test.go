package metric

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMean(t *testing.T) {
	require.Zero(t, Mean(nil))
	require.InDelta(t, 2.0, Mean([]float64{1, 2, 3}), 1e-9)
	require.InDelta(t, -1.0, Mean([]float64{-3, 1}), 1e-9)
}

func TestWinRate(t *testing.T) {
	require.Zero(t, WinRate(nil))
	require.InDelta(t, 0.75, WinRate([]float64{1, 0, 2, -1}), 1e-9)
	require.InDelta(t, 1.0, WinRate([]float64{1, 2}), 1e-9)
}

func TestPayoff(t *testing.T) {
	// Average win 3, average loss 2.
	require.InDelta(t, 1.5, Payoff([]float64{2, 4, -1, -3}), 1e-9)

	// No losses: defaulted rather than infinite.
	require.InDelta(t, 10.0, Payoff([]float64{1, 2}), 1e-9)
}

func TestProfitFactor(t *testing.T) {
	// Total wins 6, total losses 4.
	require.InDelta(t, 1.5, ProfitFactor([]float64{2, 4, -1, -3}), 1e-9)

	require.InDelta(t, 10.0, ProfitFactor([]float64{1, 2}), 1e-9)
}
