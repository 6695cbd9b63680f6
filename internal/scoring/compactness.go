package scoring

import (
	"context"
	"fmt"
	"math"

	"github.com/stwalsh4118/redraw/internal/geo"
)

// districtMetric evaluates a per-district measure against a target:
// the district's own value for district targets, the average across
// real districts for plan targets. Districts for which the measure is
// undefined (empty or degenerate geometry) are skipped; a target with
// no measurable district yields a nil result.
func districtMetric(t Target, measure func(DistrictReader) (float64, bool)) *Result {
	if t.District != nil {
		v, ok := measure(t.District)
		if !ok {
			return nil
		}
		return &Result{Value: v}
	}
	if t.Plan == nil {
		return nil
	}
	var sum float64
	var count int
	for _, d := range realDistricts(t.Plan) {
		if v, ok := measure(d); ok {
			sum += v
			count++
		}
	}
	if count == 0 {
		return nil
	}
	return &Result{Value: sum / float64(count), Raw: count}
}

// Schwartzberg measures compactness as the ratio of the perimeter of
// the equal-area circle to the district's actual perimeter. 1.0 is a
// perfect circle; lower is less compact.
type Schwartzberg struct {
	base
}

func (c *Schwartzberg) Compute(_ context.Context, t Target) (*Result, error) {
	return districtMetric(t, func(d DistrictReader) (float64, bool) {
		g := d.Geometry()
		if geo.IsEmpty(g) {
			return 0, false
		}
		perimeter := geo.Perimeter(g)
		if perimeter == 0 {
			return 0, false
		}
		radius := math.Sqrt(geo.Area(g) / math.Pi)
		return (2 * math.Pi * radius) / perimeter, true
	}), nil
}

func (c *Schwartzberg) HTML(r *Result) string { return percentHTML(r) }

// Roeck measures compactness as the ratio of the district's area to
// the area of its minimum enclosing circle.
type Roeck struct {
	base
}

func (c *Roeck) Compute(_ context.Context, t Target) (*Result, error) {
	return districtMetric(t, func(d DistrictReader) (float64, bool) {
		g := d.Geometry()
		if geo.IsEmpty(g) {
			return 0, false
		}
		disk := geo.MinEnclosingDisk(geo.HullPoints(g))
		if disk.Radius <= 0 {
			return 0, false
		}
		return geo.Area(g) / disk.Area(), true
	}), nil
}

func (c *Roeck) HTML(r *Result) string { return percentHTML(r) }

// PolsbyPopper measures compactness as 4*pi*area / perimeter^2.
type PolsbyPopper struct {
	base
}

func (c *PolsbyPopper) Compute(_ context.Context, t Target) (*Result, error) {
	return districtMetric(t, func(d DistrictReader) (float64, bool) {
		g := d.Geometry()
		if geo.IsEmpty(g) {
			return 0, false
		}
		perimeter := geo.Perimeter(g)
		if perimeter == 0 {
			return 0, false
		}
		return 4 * math.Pi * geo.Area(g) / (perimeter * perimeter), true
	}), nil
}

func (c *PolsbyPopper) HTML(r *Result) string { return percentHTML(r) }

// LengthWidthCompactness measures compactness as the ratio of the
// bounding box's shorter side to its longer side.
type LengthWidthCompactness struct {
	base
}

func (c *LengthWidthCompactness) Compute(_ context.Context, t Target) (*Result, error) {
	return districtMetric(t, func(d DistrictReader) (float64, bool) {
		g := d.Geometry()
		if geo.IsEmpty(g) {
			return 0, false
		}
		minX, minY, maxX, maxY, ok := geo.BoundingBox(g)
		if !ok {
			return 0, false
		}
		width := maxX - minX
		height := maxY - minY
		longer := math.Max(width, height)
		if longer == 0 {
			return 0, false
		}
		return math.Min(width, height) / longer, true
	}), nil
}

func (c *LengthWidthCompactness) HTML(r *Result) string { return percentHTML(r) }

// ConvexHullRatio measures compactness as the ratio of the district's
// area to the area of its convex hull.
type ConvexHullRatio struct {
	base
}

func (c *ConvexHullRatio) Compute(_ context.Context, t Target) (*Result, error) {
	return districtMetric(t, func(d DistrictReader) (float64, bool) {
		g := d.Geometry()
		if geo.IsEmpty(g) {
			return 0, false
		}
		hullArea := geo.Area(geo.ConvexHull(g))
		if hullArea == 0 {
			return 0, false
		}
		return geo.Area(g) / hullArea, true
	}), nil
}

func (c *ConvexHullRatio) HTML(r *Result) string { return percentHTML(r) }

// percentHTML renders a 0..1 ratio as a percentage.
func percentHTML(r *Result) string {
	if r == nil || r.Value == nil {
		return "n/a"
	}
	v, ok := r.Value.(float64)
	if !ok {
		return "n/a"
	}
	return fmt.Sprintf("%.2f%%", v*100)
}
