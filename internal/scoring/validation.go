package scoring

import (
	"context"
	"fmt"

	"github.com/stwalsh4118/redraw/internal/geo"
)

// MajorityMinority checks whether the combined share of one or more
// minority populations exceeds a threshold (0.5 unless overridden).
// Arguments: population, minority1..minorityN, optional threshold. A
// district target yields the boolean test; a plan target yields the
// count of majority-minority districts.
type MajorityMinority struct {
	base
}

func (c *MajorityMinority) Compute(_ context.Context, t Target) (*Result, error) {
	threshold := 0.5
	if v, ok := c.number("threshold", t.District); ok {
		threshold = v
	}
	qualifies := func(d DistrictReader) (bool, bool) {
		pop, ok := c.number("population", d)
		if !ok || pop == 0 {
			return false, false
		}
		var minority float64
		var resolved bool
		for i := 1; ; i++ {
			arg, ok := c.arg(fmt.Sprintf("minority%d", i))
			if !ok {
				break
			}
			if v, ok := resolveNumber(arg, d); ok {
				minority += v
				resolved = true
			}
		}
		if !resolved {
			return false, false
		}
		return minority/pop > threshold, true
	}
	if t.District != nil {
		ok, resolved := qualifies(t.District)
		if !resolved {
			return nil, nil
		}
		return &Result{Value: ok}, nil
	}
	if t.Plan == nil {
		return nil, nil
	}
	var count int
	var resolved bool
	for _, d := range realDistricts(t.Plan) {
		ok, r := qualifies(d)
		if !r {
			continue
		}
		resolved = true
		if ok {
			count++
		}
	}
	if !resolved {
		return nil, nil
	}
	return &Result{Value: float64(count)}, nil
}

// Equipopulation checks that district population stays inside a band.
// A district target yields the membership test; a plan target is true
// only when every real district passes. apply_num_members compares
// population per seat for multi-member districts.
type Equipopulation struct {
	base
}

func (c *Equipopulation) Compute(_ context.Context, t Target) (*Result, error) {
	inside := func(d DistrictReader) (bool, bool) {
		v, okV := c.number("value", d)
		lo, okL := c.number("min", d)
		hi, okH := c.number("max", d)
		if !okV || !okL || !okH {
			return false, false
		}
		v = c.memberScaled(v, d)
		return v > lo && v < hi, true
	}
	if t.District != nil {
		ok, resolved := inside(t.District)
		if !resolved {
			return nil, nil
		}
		return &Result{Value: ok}, nil
	}
	if t.Plan == nil {
		return nil, nil
	}
	var failed []int
	var resolved bool
	for _, d := range realDistricts(t.Plan) {
		ok, r := inside(d)
		if !r {
			continue
		}
		resolved = true
		if !ok {
			failed = append(failed, d.DistrictID())
		}
	}
	if !resolved {
		return nil, nil
	}
	return &Result{Value: len(failed) == 0, Raw: failed}, nil
}

// CountDistricts counts a plan's non-empty districts. With a target
// argument the result is whether the count matches the target exactly;
// without one it is the count itself.
type CountDistricts struct {
	base
}

func (c *CountDistricts) Compute(_ context.Context, t Target) (*Result, error) {
	if t.Plan == nil {
		return nil, nil
	}
	var count int
	for _, d := range realDistricts(t.Plan) {
		if !geo.IsEmpty(d.Geometry()) {
			count++
		}
	}
	if target, ok := c.number("target", nil); ok {
		return &Result{Value: float64(count) == target, Raw: count}, nil
	}
	return &Result{Value: float64(count)}, nil
}

// AllBlocksAssigned reports whether every base geounit in the plan's
// region belongs to some district.
type AllBlocksAssigned struct {
	base
}

func (c *AllBlocksAssigned) Compute(_ context.Context, t Target) (*Result, error) {
	if t.Plan == nil {
		return nil, nil
	}
	unassigned, err := t.Plan.UnassignedUnits()
	if err != nil {
		return nil, err
	}
	return &Result{Value: unassigned == 0, Raw: unassigned}, nil
}

// MultiMember validates a plan's multi-member configuration against
// the legislative body's bounds: how many districts may elect multiple
// members, how many members each may have, and the total seats the
// plan must provide. Bounds arrive as literal arguments so the score
// function data carries the body's rules.
type MultiMember struct {
	base
}

func (c *MultiMember) Compute(_ context.Context, t Target) (*Result, error) {
	if t.Plan == nil {
		return nil, nil
	}
	bound := func(name string, fallback float64) float64 {
		if v, ok := c.number(name, nil); ok {
			return v
		}
		return fallback
	}
	minMulti := bound("min_multi_districts", 0)
	maxMulti := bound("max_multi_districts", 0)
	minMembers := bound("min_members", 1)
	maxMembers := bound("max_members", 1)
	minPlan := bound("min_plan_members", 0)
	maxPlan := bound("max_plan_members", 0)

	var multiDistricts, totalMembers int
	for _, d := range realDistricts(t.Plan) {
		if geo.IsEmpty(d.Geometry()) {
			continue
		}
		n := d.NumMembers()
		totalMembers += n
		if n > 1 {
			multiDistricts++
			if float64(n) < minMembers || float64(n) > maxMembers {
				return &Result{Value: false, Raw: d.DistrictID()}, nil
			}
		}
	}
	if float64(multiDistricts) < minMulti || float64(multiDistricts) > maxMulti {
		return &Result{Value: false, Raw: multiDistricts}, nil
	}
	if maxPlan > 0 && (float64(totalMembers) < minPlan || float64(totalMembers) > maxPlan) {
		return &Result{Value: false, Raw: totalMembers}, nil
	}
	return &Result{Value: true, Raw: totalMembers}, nil
}
