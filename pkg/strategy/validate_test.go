package strategy

import (
	"testing"

	"github.com/quantbr/perpedge/pkg/core"
	"github.com/stretchr/testify/require"
)

func TestRiskRewardRatio(t *testing.T) {
	engine, _ := testEngine(t)

	cases := []struct {
		name   string
		entry  float64
		stop   float64
		target float64
		side   core.SideType
		want   float64
	}{
		{"long two to one", 100, 98, 104, core.SideLong, 2.0},
		{"short two to one", 100, 102, 96, core.SideShort, 2.0},
		{"long zero risk", 100, 100, 104, core.SideLong, 0},
		{"long negative risk", 100, 101, 104, core.SideLong, 0},
		{"short negative risk", 100, 99, 96, core.SideShort, 0},
		{"long absurd ratio", 100, 99.99, 150, core.SideLong, 0},
		{"short absurd ratio", 100, 100.01, 50, core.SideShort, 0},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := engine.RiskRewardRatio(tc.entry, tc.stop, tc.target, tc.side)
			require.InDelta(t, tc.want, got, 1e-9)
		})
	}
}

func TestValidatePriceRelationship_AcceptsWellFormedTriples(t *testing.T) {
	engine, _ := testEngine(t)

	require.True(t, engine.ValidatePriceRelationship(100, 95, 110, core.SideLong))
	require.True(t, engine.ValidatePriceRelationship(100, 105, 90, core.SideShort))
}

func TestValidatePriceRelationship_RejectsMalformedTriples(t *testing.T) {
	engine, _ := testEngine(t)

	cases := []struct {
		name   string
		entry  float64
		stop   float64
		target float64
		side   core.SideType
	}{
		{"long stop above entry", 100, 101, 110, core.SideLong},
		{"long stop at entry", 100, 100, 110, core.SideLong},
		{"long target below entry", 100, 95, 99, core.SideLong},
		{"long target at entry", 100, 95, 100, core.SideLong},
		{"short stop below entry", 100, 99, 90, core.SideShort},
		{"short target above entry", 100, 105, 101, core.SideShort},
		{"non-positive entry", 0, -1, 1, core.SideLong},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.False(t, engine.ValidatePriceRelationship(tc.entry, tc.stop, tc.target, tc.side))
		})
	}
}

func TestValidatePriceRelationship_MinimumSeparation(t *testing.T) {
	engine, _ := testEngine(t)

	// Stop 0.5% away is under the 1% (min_stop_loss_ratio*0.5) floor.
	require.False(t, engine.ValidatePriceRelationship(100, 99.5, 110, core.SideLong))

	// Target 0.5% away fails the same separation check.
	require.False(t, engine.ValidatePriceRelationship(100, 95, 100.5, core.SideLong))
}

func TestValidatePriceRelationship_RiskRewardFloor(t *testing.T) {
	engine, _ := testEngine(t)

	// Risk 5, reward 2: ratio 0.4 is under the min_risk_reward*0.5 = 0.6 floor.
	require.False(t, engine.ValidatePriceRelationship(100, 95, 102, core.SideLong))

	// Risk 5, reward 4: ratio 0.8 clears it.
	require.True(t, engine.ValidatePriceRelationship(100, 95, 104, core.SideLong))
}
