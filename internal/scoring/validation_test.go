package scoring

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stwalsh4118/redraw/internal/geo"
)

func TestMajorityMinority(t *testing.T) {
	calc, err := New("MajorityMinority")
	require.NoError(t, err)
	calc.SetArg("population", SubjectRef("population"))
	calc.SetArg("minority1", SubjectRef("black"))
	calc.SetArg("minority2", SubjectRef("hispanic"))

	r, err := calc.Compute(context.Background(), Target{District: district(1, map[string]float64{
		"population": 100, "black": 35, "hispanic": 20,
	})})
	require.NoError(t, err)
	assert.Equal(t, true, r.Value)

	r, err = calc.Compute(context.Background(), Target{District: district(1, map[string]float64{
		"population": 100, "black": 30, "hispanic": 20,
	})})
	require.NoError(t, err)
	assert.Equal(t, false, r.Value, "exactly half does not qualify")
}

func TestMajorityMinority_ThresholdOverride(t *testing.T) {
	calc, err := New("MajorityMinority")
	require.NoError(t, err)
	calc.SetArg("population", SubjectRef("population"))
	calc.SetArg("minority1", SubjectRef("black"))
	calc.SetArg("threshold", Literal("0.4"))

	r, err := calc.Compute(context.Background(), Target{District: district(1, map[string]float64{
		"population": 100, "black": 45,
	})})
	require.NoError(t, err)
	assert.Equal(t, true, r.Value)
}

func TestMajorityMinority_PlanCounts(t *testing.T) {
	calc, err := New("MajorityMinority")
	require.NoError(t, err)
	calc.SetArg("population", SubjectRef("population"))
	calc.SetArg("minority1", SubjectRef("black"))
	p := planOf(
		district(1, map[string]float64{"population": 100, "black": 60}),
		district(2, map[string]float64{"population": 100, "black": 20}),
		district(3, map[string]float64{"population": 100, "black": 51}),
	)

	r, err := calc.Compute(context.Background(), Target{Plan: p})
	require.NoError(t, err)
	assert.InDelta(t, 2.0, r.Value.(float64), 1e-9)
}

func TestEquipopulation_PlanRequiresEveryDistrict(t *testing.T) {
	calc, err := New("Equipopulation")
	require.NoError(t, err)
	calc.SetArg("value", SubjectRef("population"))
	calc.SetArg("min", Literal("90"))
	calc.SetArg("max", Literal("110"))

	p := planOf(
		district(1, map[string]float64{"population": 100}),
		district(2, map[string]float64{"population": 105}),
	)
	r, err := calc.Compute(context.Background(), Target{Plan: p})
	require.NoError(t, err)
	assert.Equal(t, true, r.Value)

	p = planOf(
		district(1, map[string]float64{"population": 100}),
		district(2, map[string]float64{"population": 130}),
	)
	r, err = calc.Compute(context.Background(), Target{Plan: p})
	require.NoError(t, err)
	assert.Equal(t, false, r.Value)
	assert.Equal(t, []int{2}, r.Raw)
}

func TestCountDistricts(t *testing.T) {
	calc, err := New("CountDistricts")
	require.NoError(t, err)
	p := planOf(
		&fakeDistrict{id: 0, geom: geo.MustFromWKT("POLYGON((0 0, 1 0, 1 1, 0 1, 0 0))")},
		squareDistrict(1, 1),
		squareDistrict(2, 1),
		&fakeDistrict{id: 3, geom: geo.Empty()},
	)

	r, err := calc.Compute(context.Background(), Target{Plan: p})
	require.NoError(t, err)
	assert.InDelta(t, 2.0, r.Value.(float64), 1e-9)

	calc.SetArg("target", Literal("2"))
	r, err = calc.Compute(context.Background(), Target{Plan: p})
	require.NoError(t, err)
	assert.Equal(t, true, r.Value)
	assert.Equal(t, 2, r.Raw)

	calc.SetArg("target", Literal("3"))
	r, err = calc.Compute(context.Background(), Target{Plan: p})
	require.NoError(t, err)
	assert.Equal(t, false, r.Value)
}

func TestAllBlocksAssigned(t *testing.T) {
	calc, err := New("AllBlocksAssigned")
	require.NoError(t, err)

	r, err := calc.Compute(context.Background(), Target{Plan: &fakePlan{unassigned: 0}})
	require.NoError(t, err)
	assert.Equal(t, true, r.Value)

	r, err = calc.Compute(context.Background(), Target{Plan: &fakePlan{unassigned: 3}})
	require.NoError(t, err)
	assert.Equal(t, false, r.Value)
	assert.Equal(t, 3, r.Raw)
}

func TestMultiMember(t *testing.T) {
	newCalc := func() Calculator {
		calc, err := New("MultiMember")
		require.NoError(t, err)
		calc.SetArg("min_multi_districts", Literal("1"))
		calc.SetArg("max_multi_districts", Literal("2"))
		calc.SetArg("min_members", Literal("2"))
		calc.SetArg("max_members", Literal("3"))
		calc.SetArg("min_plan_members", Literal("4"))
		calc.SetArg("max_plan_members", Literal("5"))
		return calc
	}
	single := &fakeDistrict{id: 1, members: 1, geom: geo.MustFromWKT("POLYGON((0 0, 1 0, 1 1, 0 1, 0 0))")}
	triple := &fakeDistrict{id: 2, members: 3, geom: geo.MustFromWKT("POLYGON((1 0, 2 0, 2 1, 1 1, 1 0))")}

	r, err := newCalc().Compute(context.Background(), Target{Plan: planOf(single, triple)})
	require.NoError(t, err)
	assert.Equal(t, true, r.Value)
	assert.Equal(t, 4, r.Raw)

	// A five-member district breaks the per-district bound.
	five := &fakeDistrict{id: 2, members: 5, geom: triple.geom}
	r, err = newCalc().Compute(context.Background(), Target{Plan: planOf(single, five)})
	require.NoError(t, err)
	assert.Equal(t, false, r.Value)
	assert.Equal(t, 2, r.Raw)

	// No multi-member district at all breaks the minimum.
	other := &fakeDistrict{id: 2, members: 1, geom: triple.geom}
	r, err = newCalc().Compute(context.Background(), Target{Plan: planOf(single, other)})
	require.NoError(t, err)
	assert.Equal(t, false, r.Value)
	assert.Equal(t, 0, r.Raw)
}
