package scoring

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func votes(id int, dem, rep float64) *fakeDistrict {
	return district(id, map[string]float64{"dem": dem, "rep": rep})
}

func fairness(t *testing.T) Calculator {
	t.Helper()
	calc, err := New("RepresentationalFairness")
	require.NoError(t, err)
	calc.SetArg("democratic", SubjectRef("dem"))
	calc.SetArg("republican", SubjectRef("rep"))
	return calc
}

func TestRepresentationalFairness(t *testing.T) {
	calc := fairness(t)
	p := planOf(
		votes(1, 60, 40),
		votes(2, 55, 45),
		votes(3, 52, 48),
		votes(4, 30, 70),
	)

	r, err := calc.Compute(context.Background(), Target{Plan: p})
	require.NoError(t, err)
	require.NotNil(t, r)
	assert.InDelta(t, 2.0, r.Value.(float64), 1e-9)
	assert.Equal(t, [2]int{3, 1}, r.Raw)
	assert.Equal(t, "Democrat +2", calc.HTML(r))
	assert.InDelta(t, -2.0, calc.SortKey(r), 1e-9)
}

func TestRepresentationalFairness_RepublicanLean(t *testing.T) {
	calc := fairness(t)
	p := planOf(votes(1, 40, 60), votes(2, 45, 55), votes(3, 60, 40))

	r, err := calc.Compute(context.Background(), Target{Plan: p})
	require.NoError(t, err)
	assert.InDelta(t, -1.0, r.Value.(float64), 1e-9)
	assert.Equal(t, "Republican +1", calc.HTML(r))
	assert.InDelta(t, -1.0, calc.SortKey(r), 1e-9)
}

func TestRepresentationalFairness_TiesLeanNowhere(t *testing.T) {
	calc := fairness(t)
	p := planOf(votes(1, 50, 50), votes(2, 60, 40), votes(3, 40, 60))

	r, err := calc.Compute(context.Background(), Target{Plan: p})
	require.NoError(t, err)
	assert.InDelta(t, 0.0, r.Value.(float64), 1e-9)
	assert.Equal(t, [2]int{1, 1}, r.Raw)
	assert.Equal(t, "Balanced", calc.HTML(r))
}

func TestRepresentationalFairness_DistrictTargetYieldsNil(t *testing.T) {
	calc := fairness(t)

	r, err := calc.Compute(context.Background(), Target{District: votes(1, 60, 40)})
	require.NoError(t, err)
	assert.Nil(t, r)
}

func TestCompetitiveness_DefaultBand(t *testing.T) {
	calc, err := New("Competitiveness")
	require.NoError(t, err)
	calc.SetArg("democratic", SubjectRef("dem"))
	calc.SetArg("republican", SubjectRef("rep"))
	p := planOf(
		votes(1, 52, 48), // share 0.52, inside the 5% band
		votes(2, 55, 45), // share 0.55, on the boundary, excluded
		votes(3, 40, 60), // share 0.40, outside
	)

	r, err := calc.Compute(context.Background(), Target{Plan: p})
	require.NoError(t, err)
	require.NotNil(t, r)
	assert.InDelta(t, 1.0, r.Value.(float64), 1e-9)
}

func TestCompetitiveness_CustomRange(t *testing.T) {
	calc, err := New("Competitiveness")
	require.NoError(t, err)
	calc.SetArg("democratic", SubjectRef("dem"))
	calc.SetArg("republican", SubjectRef("rep"))
	calc.SetArg("range", Literal("0.2"))
	p := planOf(votes(1, 52, 48), votes(2, 55, 45), votes(3, 40, 60))

	r, err := calc.Compute(context.Background(), Target{Plan: p})
	require.NoError(t, err)
	assert.InDelta(t, 3.0, r.Value.(float64), 1e-9)
}

func TestCompetitiveness_SkipsVotelessDistricts(t *testing.T) {
	calc, err := New("Competitiveness")
	require.NoError(t, err)
	calc.SetArg("democratic", SubjectRef("dem"))
	calc.SetArg("republican", SubjectRef("rep"))

	r, err := calc.Compute(context.Background(), Target{Plan: planOf(votes(1, 0, 0))})
	require.NoError(t, err)
	assert.Nil(t, r)
}
