package scoring

import (
	"context"
	"fmt"
	"math"
)

// RepresentationalFairness measures partisan balance across a plan:
// each district leans toward whichever of the democratic and
// republican arguments is larger, exact ties lean nowhere, and the
// value is the signed seat difference (positive favors the democratic
// argument). Plan targets only.
type RepresentationalFairness struct {
	base
}

func (c *RepresentationalFairness) Compute(_ context.Context, t Target) (*Result, error) {
	if t.Plan == nil {
		return nil, nil
	}
	var dem, rep int
	var resolved bool
	for _, d := range realDistricts(t.Plan) {
		dv, okD := c.number("democratic", d)
		rv, okR := c.number("republican", d)
		if !okD || !okR {
			continue
		}
		resolved = true
		switch {
		case dv > rv:
			dem++
		case rv > dv:
			rep++
		}
	}
	if !resolved {
		return nil, nil
	}
	return &Result{Value: float64(dem - rep), Raw: [2]int{dem, rep}}, nil
}

func (c *RepresentationalFairness) HTML(r *Result) string {
	if r == nil || r.Value == nil {
		return "n/a"
	}
	v, ok := r.Value.(float64)
	if !ok {
		return "n/a"
	}
	switch {
	case v > 0:
		return fmt.Sprintf("Democrat +%d", int(v))
	case v < 0:
		return fmt.Sprintf("Republican +%d", int(-v))
	default:
		return "Balanced"
	}
}

// SortKey: closer to balanced is better.
func (c *RepresentationalFairness) SortKey(r *Result) float64 {
	if r == nil || r.Value == nil {
		return math.Inf(-1)
	}
	v, ok := r.Value.(float64)
	if !ok {
		return math.Inf(-1)
	}
	return -math.Abs(v)
}

// Competitiveness counts the districts whose democratic vote share
// falls within a band around 50%. The band half-width comes from the
// range argument and defaults to 0.05. Plan targets only.
type Competitiveness struct {
	base
}

func (c *Competitiveness) Compute(_ context.Context, t Target) (*Result, error) {
	if t.Plan == nil {
		return nil, nil
	}
	band := 0.05
	if v, ok := c.number("range", nil); ok {
		band = v
	}
	var count int
	var resolved bool
	for _, d := range realDistricts(t.Plan) {
		dv, okD := c.number("democratic", d)
		rv, okR := c.number("republican", d)
		if !okD || !okR || dv+rv == 0 {
			continue
		}
		resolved = true
		share := dv / (dv + rv)
		if math.Abs(share-0.5) < band {
			count++
		}
	}
	if !resolved {
		return nil, nil
	}
	return &Result{Value: float64(count)}, nil
}
