package scoring

import (
	"context"

	"github.com/stwalsh4118/redraw/internal/contiguity"
	"github.com/stwalsh4118/redraw/internal/geo"
)

// OverrideConsumer is implemented by calculators that honor contiguity
// overrides. The composition engine resolves the plan's override
// geometries once per evaluation and injects them here.
type OverrideConsumer interface {
	SetOverrides(overrides []contiguity.Override)
}

// Contiguity reports whether a district is a single connected region.
// A district target yields the boolean itself; a plan target yields
// the count of contiguous districts. Empty districts count as
// contiguous.
type Contiguity struct {
	base
	overrides []contiguity.Override
}

func (c *Contiguity) SetOverrides(overrides []contiguity.Override) { c.overrides = overrides }

func (c *Contiguity) Compute(_ context.Context, t Target) (*Result, error) {
	if t.District != nil {
		return &Result{Value: c.contiguous(t.District.Geometry())}, nil
	}
	if t.Plan == nil {
		return nil, nil
	}
	var count int
	districts := realDistricts(t.Plan)
	for _, d := range districts {
		if c.contiguous(d.Geometry()) {
			count++
		}
	}
	return &Result{Value: float64(count), Raw: len(districts)}, nil
}

func (c *Contiguity) contiguous(g geo.Geometry) bool {
	return contiguity.Evaluate(g, c.overrides, c.boolArg("allow_single_point", nil))
}

// AllContiguous reports whether every district in a plan is
// contiguous.
type AllContiguous struct {
	base
	overrides []contiguity.Override
}

func (c *AllContiguous) SetOverrides(overrides []contiguity.Override) { c.overrides = overrides }

func (c *AllContiguous) Compute(_ context.Context, t Target) (*Result, error) {
	if t.Plan == nil {
		return nil, nil
	}
	allowPoint := c.boolArg("allow_single_point", nil)
	for _, d := range realDistricts(t.Plan) {
		if !contiguity.Evaluate(d.Geometry(), c.overrides, allowPoint) {
			return &Result{Value: false, Raw: d.DistrictID()}, nil
		}
	}
	return &Result{Value: true}, nil
}

// NonContiguous counts the districts in a plan that are not
// contiguous.
type NonContiguous struct {
	base
	overrides []contiguity.Override
}

func (c *NonContiguous) SetOverrides(overrides []contiguity.Override) { c.overrides = overrides }

func (c *NonContiguous) Compute(_ context.Context, t Target) (*Result, error) {
	if t.Plan == nil {
		return nil, nil
	}
	allowPoint := c.boolArg("allow_single_point", nil)
	var count int
	var broken []int
	for _, d := range realDistricts(t.Plan) {
		if !contiguity.Evaluate(d.Geometry(), c.overrides, allowPoint) {
			count++
			broken = append(broken, d.DistrictID())
		}
	}
	return &Result{Value: float64(count), Raw: broken}, nil
}

// SortKey: fewer broken districts is better.
func (c *NonContiguous) SortKey(r *Result) float64 {
	if r == nil || r.Value == nil {
		return 0
	}
	if v, ok := r.Value.(float64); ok {
		return -v
	}
	return 0
}
