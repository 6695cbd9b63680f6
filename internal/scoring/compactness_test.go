package scoring

import (
	"context"
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stwalsh4118/redraw/internal/geo"
)

func squareDistrict(id int, side float64) *fakeDistrict {
	wkt := fmt.Sprintf("POLYGON((0 0, %[1]v 0, %[1]v %[1]v, 0 %[1]v, 0 0))", side)
	return &fakeDistrict{id: id, geom: geo.MustFromWKT(wkt)}
}

func TestSchwartzberg_Square(t *testing.T) {
	calc, err := New("Schwartzberg")
	require.NoError(t, err)

	r, err := calc.Compute(context.Background(), Target{District: squareDistrict(1, 3)})
	require.NoError(t, err)
	require.NotNil(t, r)
	// Equal-area circle perimeter over the square's perimeter.
	assert.InDelta(t, math.Sqrt(math.Pi)/2, r.Value.(float64), 1e-9)
	assert.Equal(t, "88.62%", calc.HTML(r))
}

func TestPolsbyPopper_Square(t *testing.T) {
	calc, err := New("PolsbyPopper")
	require.NoError(t, err)

	r, err := calc.Compute(context.Background(), Target{District: squareDistrict(1, 2)})
	require.NoError(t, err)
	require.NotNil(t, r)
	assert.InDelta(t, math.Pi/4, r.Value.(float64), 1e-9)
	assert.Equal(t, "78.54%", calc.HTML(r))
}

func TestRoeck_Square(t *testing.T) {
	calc, err := New("Roeck")
	require.NoError(t, err)

	r, err := calc.Compute(context.Background(), Target{District: squareDistrict(1, 2)})
	require.NoError(t, err)
	require.NotNil(t, r)
	// Area 4 over the circumscribed circle's area 2*pi.
	assert.InDelta(t, 2/math.Pi, r.Value.(float64), 1e-6)
}

func TestLengthWidthCompactness_Rectangle(t *testing.T) {
	calc, err := New("LengthWidthCompactness")
	require.NoError(t, err)
	d := &fakeDistrict{id: 1, geom: geo.MustFromWKT("POLYGON((0 0, 4 0, 4 1, 0 1, 0 0))")}

	r, err := calc.Compute(context.Background(), Target{District: d})
	require.NoError(t, err)
	require.NotNil(t, r)
	assert.InDelta(t, 0.25, r.Value.(float64), 1e-9)
}

func TestConvexHullRatio_LShape(t *testing.T) {
	calc, err := New("ConvexHullRatio")
	require.NoError(t, err)
	lShape := geo.MustFromWKT("POLYGON((0 0, 2 0, 2 1, 1 1, 1 2, 0 2, 0 0))")
	d := &fakeDistrict{id: 1, geom: lShape}

	r, err := calc.Compute(context.Background(), Target{District: d})
	require.NoError(t, err)
	require.NotNil(t, r)
	assert.InDelta(t, 3.0/3.5, r.Value.(float64), 1e-9)
}

func TestConvexHullRatio_ConvexShapeScoresFull(t *testing.T) {
	calc, err := New("ConvexHullRatio")
	require.NoError(t, err)

	r, err := calc.Compute(context.Background(), Target{District: squareDistrict(1, 2)})
	require.NoError(t, err)
	require.NotNil(t, r)
	assert.InDelta(t, 1.0, r.Value.(float64), 1e-9)
}

func TestCompactness_PlanAverages(t *testing.T) {
	calc, err := New("PolsbyPopper")
	require.NoError(t, err)
	p := planOf(
		&fakeDistrict{id: 0, geom: geo.Empty()},
		squareDistrict(1, 2),
		&fakeDistrict{id: 2, geom: geo.MustFromWKT("POLYGON((0 0, 8 0, 8 2, 0 2, 0 0))")},
	)

	r, err := calc.Compute(context.Background(), Target{Plan: p})
	require.NoError(t, err)
	require.NotNil(t, r)

	square := math.Pi / 4
	rect := 4 * math.Pi * 16 / (20.0 * 20.0)
	assert.InDelta(t, (square+rect)/2, r.Value.(float64), 1e-9)
	assert.Equal(t, 2, r.Raw)
}

func TestCompactness_EmptyDistrictsYieldNil(t *testing.T) {
	calc, err := New("Schwartzberg")
	require.NoError(t, err)

	r, err := calc.Compute(context.Background(), Target{District: &fakeDistrict{id: 1, geom: geo.Empty()}})
	require.NoError(t, err)
	assert.Nil(t, r)
	assert.Equal(t, "n/a", calc.HTML(r))

	r, err = calc.Compute(context.Background(), Target{Plan: planOf(&fakeDistrict{id: 1, geom: geo.Empty()})})
	require.NoError(t, err)
	assert.Nil(t, r)
}
