package contiguity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stwalsh4118/redraw/internal/geo"
)

func TestEvaluate_EmptyAndSinglePart(t *testing.T) {
	assert.True(t, Evaluate(geo.Empty(), nil, false))

	single := geo.MustFromWKT("POLYGON((0 0, 1 0, 1 1, 0 1, 0 0))")
	assert.True(t, Evaluate(single, nil, false))
}

func TestEvaluate_DisjointPartsAreDiscontiguous(t *testing.T) {
	district := geo.MustFromWKT("MULTIPOLYGON(((0 0, 1 0, 1 1, 0 1, 0 0)), ((5 5, 6 5, 6 6, 5 6, 5 5)))")

	assert.False(t, Evaluate(district, nil, false))
	assert.False(t, Evaluate(district, nil, true))
}

func TestEvaluate_PointTouchGatedByFlag(t *testing.T) {
	// Two squares sharing only the corner (1,1).
	district := geo.MustFromWKT("MULTIPOLYGON(((0 0, 1 0, 1 1, 0 1, 0 0)), ((1 1, 2 1, 2 2, 1 2, 1 1)))")

	assert.False(t, Evaluate(district, nil, false))
	assert.True(t, Evaluate(district, nil, true))
}

func TestEvaluate_OverrideBridgesDisjointParts(t *testing.T) {
	district := geo.MustFromWKT("MULTIPOLYGON(((0 0, 1 0, 1 1, 0 1, 0 0)), ((5 5, 6 5, 6 6, 5 6, 5 5)))")

	// The override unit overlaps the far part, the connect-to unit
	// overlaps the seed part.
	bridge := Override{
		OverrideUnit:  geo.MustFromWKT("POLYGON((5 5, 5.5 5, 5.5 5.5, 5 5.5, 5 5))"),
		ConnectToUnit: geo.MustFromWKT("POLYGON((0 0, 0.5 0, 0.5 0.5, 0 0.5, 0 0))"),
	}
	assert.True(t, Evaluate(district, []Override{bridge}, false))
}

func TestEvaluate_OverrideDirectionMatters(t *testing.T) {
	district := geo.MustFromWKT("MULTIPOLYGON(((0 0, 1 0, 1 1, 0 1, 0 0)), ((5 5, 6 5, 6 6, 5 6, 5 5)))")

	// Reversed: the override unit overlaps the seed part instead of
	// the unreached part, so the edge never applies.
	reversed := Override{
		OverrideUnit:  geo.MustFromWKT("POLYGON((0 0, 0.5 0, 0.5 0.5, 0 0.5, 0 0))"),
		ConnectToUnit: geo.MustFromWKT("POLYGON((5 5, 5.5 5, 5.5 5.5, 5 5.5, 5 5))"),
	}
	assert.False(t, Evaluate(district, []Override{reversed}, false))
}

func TestEvaluate_UnrelatedOverrideDoesNotHelp(t *testing.T) {
	district := geo.MustFromWKT("MULTIPOLYGON(((0 0, 1 0, 1 1, 0 1, 0 0)), ((5 5, 6 5, 6 6, 5 6, 5 5)))")

	elsewhere := Override{
		OverrideUnit:  geo.MustFromWKT("POLYGON((20 20, 21 20, 21 21, 20 21, 20 20))"),
		ConnectToUnit: geo.MustFromWKT("POLYGON((30 30, 31 30, 31 31, 30 31, 30 30))"),
	}
	assert.False(t, Evaluate(district, []Override{elsewhere}, false))
}

func TestEvaluate_ChainedOverrides(t *testing.T) {
	// Three disjoint squares joined by two override edges into a chain.
	district := geo.MustFromWKT("MULTIPOLYGON(((0 0, 1 0, 1 1, 0 1, 0 0)), ((5 5, 6 5, 6 6, 5 6, 5 5)), ((10 10, 11 10, 11 11, 10 11, 10 10)))")

	overrides := []Override{
		{
			OverrideUnit:  geo.MustFromWKT("POLYGON((5 5, 5.5 5, 5.5 5.5, 5 5.5, 5 5))"),
			ConnectToUnit: geo.MustFromWKT("POLYGON((0 0, 0.5 0, 0.5 0.5, 0 0.5, 0 0))"),
		},
		{
			OverrideUnit:  geo.MustFromWKT("POLYGON((10 10, 10.5 10, 10.5 10.5, 10 10.5, 10 10))"),
			ConnectToUnit: geo.MustFromWKT("POLYGON((5 5, 5.5 5, 5.5 5.5, 5 5.5, 5 5))"),
		},
	}
	assert.True(t, Evaluate(district, overrides, false))
}

func TestEvaluate_OverrideConsumedOncePerCall(t *testing.T) {
	// Two far parts competing for a single override edge: only one can
	// consume it, leaving the other unreachable.
	district := geo.MustFromWKT("MULTIPOLYGON(((0 0, 1 0, 1 1, 0 1, 0 0)), ((5 5, 6 5, 6 6, 5 6, 5 5)), ((5 20, 6 20, 6 21, 5 21, 5 20)))")

	// Override unit overlapping both far parts is impossible for
	// disjoint squares, so give each part its own edge but only supply
	// one of them.
	one := Override{
		OverrideUnit:  geo.MustFromWKT("POLYGON((5 5, 5.5 5, 5.5 5.5, 5 5.5, 5 5))"),
		ConnectToUnit: geo.MustFromWKT("POLYGON((0 0, 0.5 0, 0.5 0.5, 0 0.5, 0 0))"),
	}
	assert.False(t, Evaluate(district, []Override{one}, false))

	// Repeated calls see a fresh override budget.
	district2 := geo.MustFromWKT("MULTIPOLYGON(((0 0, 1 0, 1 1, 0 1, 0 0)), ((5 5, 6 5, 6 6, 5 6, 5 5)))")
	assert.True(t, Evaluate(district2, []Override{one}, false))
	assert.True(t, Evaluate(district2, []Override{one}, false))
}
