package scoring

import (
	"context"
	"fmt"
	"math"
	"sort"
)

// valueArgs returns the names value1..valueN that are actually bound,
// stopping at the first gap in the sequence.
func (b *base) valueArgs() []string {
	var names []string
	for i := 1; ; i++ {
		name := fmt.Sprintf("value%d", i)
		if _, ok := b.args[name]; !ok {
			return names
		}
		names = append(names, name)
	}
}

// SumValues adds its value1..valueN arguments. For a district target
// each argument resolves against that district; for a plan target
// subject and nested-score arguments expand to one value per real
// district before summing, while literals count once.
type SumValues struct {
	base
}

func (c *SumValues) Compute(_ context.Context, t Target) (*Result, error) {
	var sum float64
	var resolved int
	for _, name := range c.valueArgs() {
		values, ok := c.numbers(name, t)
		if !ok {
			continue
		}
		for _, v := range values {
			sum += v
		}
		resolved++
	}
	if resolved == 0 {
		return nil, nil
	}
	return &Result{Value: sum}, nil
}

// Average computes the arithmetic mean of every value resolved from
// its value1..valueN arguments.
type Average struct {
	base
}

func (c *Average) Compute(_ context.Context, t Target) (*Result, error) {
	var sum float64
	var count int
	for _, name := range c.valueArgs() {
		values, ok := c.numbers(name, t)
		if !ok {
			continue
		}
		for _, v := range values {
			sum += v
			count++
		}
	}
	if count == 0 {
		return nil, nil
	}
	return &Result{Value: sum / float64(count), Raw: count}, nil
}

// Percent divides a numerator by a denominator. For a plan target the
// per-district numerators and denominators are summed before dividing,
// so the plan value is the population-weighted aggregate rather than
// an average of ratios.
type Percent struct {
	base
}

func (c *Percent) Compute(_ context.Context, t Target) (*Result, error) {
	if t.District != nil {
		num, okN := c.number("numerator", t.District)
		den, okD := c.number("denominator", t.District)
		if !okN || !okD || den == 0 {
			return nil, nil
		}
		return &Result{Value: num / den, Raw: den}, nil
	}
	if t.Plan == nil {
		return nil, nil
	}
	var numSum, denSum float64
	var resolved bool
	for _, d := range realDistricts(t.Plan) {
		num, okN := c.number("numerator", d)
		den, okD := c.number("denominator", d)
		if !okN || !okD {
			continue
		}
		numSum += num
		denSum += den
		resolved = true
	}
	if !resolved || denSum == 0 {
		return nil, nil
	}
	return &Result{Value: numSum / denSum, Raw: denSum}, nil
}

func (c *Percent) HTML(r *Result) string { return percentHTML(r) }

// Threshold checks a value against a cutoff: a district target yields
// whether its value exceeds the threshold, a plan target yields the
// count of districts that do. apply_num_members scales each district's
// value by its member count before comparing.
type Threshold struct {
	base
}

func (c *Threshold) Compute(_ context.Context, t Target) (*Result, error) {
	over := func(d DistrictReader) (bool, bool) {
		v, okV := c.number("value", d)
		cutoff, okC := c.number("threshold", d)
		if !okV || !okC {
			return false, false
		}
		return c.memberScaled(v, d) > cutoff, true
	}
	if t.District != nil {
		ok, resolved := over(t.District)
		if !resolved {
			return nil, nil
		}
		return &Result{Value: boolToFloat(ok)}, nil
	}
	if t.Plan == nil {
		return nil, nil
	}
	var count int
	var resolved bool
	for _, d := range realDistricts(t.Plan) {
		ok, r := over(d)
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

// Range checks whether a value falls strictly between min and max: a
// district target yields the membership test, a plan target yields the
// count of districts inside the band.
type Range struct {
	base
}

func (c *Range) Compute(_ context.Context, t Target) (*Result, error) {
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
	var count int
	var resolved bool
	for _, d := range realDistricts(t.Plan) {
		ok, r := inside(d)
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

// Equivalence measures how evenly a value is spread across a plan's
// districts: the difference between the largest and smallest district
// value. Only meaningful for plan targets.
type Equivalence struct {
	base
}

func (c *Equivalence) Compute(_ context.Context, t Target) (*Result, error) {
	if t.Plan == nil {
		return nil, nil
	}
	min, max := math.Inf(1), math.Inf(-1)
	var resolved bool
	for _, d := range realDistricts(t.Plan) {
		v, ok := c.number("value", d)
		if !ok {
			continue
		}
		v = c.memberScaled(v, d)
		min = math.Min(min, v)
		max = math.Max(max, v)
		resolved = true
	}
	if !resolved {
		return nil, nil
	}
	return &Result{Value: max - min, Raw: [2]float64{min, max}}, nil
}

// SortKey: a smaller spread is better, so invert for leaderboards.
func (c *Equivalence) SortKey(r *Result) float64 {
	if r == nil || r.Value == nil {
		return math.Inf(-1)
	}
	v, ok := r.Value.(float64)
	if !ok {
		return math.Inf(-1)
	}
	return -v
}

// Interval bins a district's value against bands around a target:
// bound1 < bound2 < ... are symmetric deviation fractions, so n bounds
// define 2n+1 bins with edges at target*(1±bound). The result's Index
// is the bin the value lands in, counted from the lowest bin upward;
// the innermost band's index is n. A plan target yields the count of
// districts inside the innermost band. A non-positive target or an
// empty bound list yields a nil result.
type Interval struct {
	base
}

func (c *Interval) Compute(_ context.Context, t Target) (*Result, error) {
	bounds := c.bounds()
	if len(bounds) == 0 {
		return nil, nil
	}
	resolve := func(d DistrictReader) (float64, float64, bool) {
		v, okV := c.number("value", d)
		target, okT := c.number("target", d)
		if !okV || !okT || target <= 0 {
			return 0, 0, false
		}
		return c.memberScaled(v, d), target, true
	}
	if t.District != nil {
		v, target, ok := resolve(t.District)
		if !ok {
			return nil, nil
		}
		index := 0
		for i := len(bounds) - 1; i >= 0; i-- {
			if v >= target*(1-bounds[i]) {
				index++
			}
		}
		for _, b := range bounds {
			if v > target*(1+b) {
				index++
			}
		}
		return &Result{Value: v, Index: float64(index)}, nil
	}
	if t.Plan == nil {
		return nil, nil
	}
	inner := bounds[0]
	var count int
	var resolved bool
	for _, d := range realDistricts(t.Plan) {
		v, target, ok := resolve(d)
		if !ok {
			continue
		}
		resolved = true
		if math.Abs(v-target)/target < inner {
			count++
		}
	}
	if !resolved {
		return nil, nil
	}
	return &Result{Value: float64(count)}, nil
}

func (c *Interval) bounds() []float64 {
	var bounds []float64
	for i := 1; ; i++ {
		v, ok := c.number(fmt.Sprintf("bound%d", i), nil)
		if !ok {
			break
		}
		bounds = append(bounds, v)
	}
	sort.Float64s(bounds)
	return bounds
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
