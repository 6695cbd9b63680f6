package scoring

import (
	"context"
	"sort"
	"strconv"
)

// SplitPair records one left-region/right-region overlap that counts
// as a split.
type SplitPair struct {
	Left  string
	Right string
}

// SplitCounter counts how a plan's districts split the regions of a
// geographic level. Both sides are assignment maps over the same base
// units: districts on the left, the level named by the geolevel
// argument on the right. A left region that spans k > 1 right regions
// contributes its k overlap pairs as splits; regions wholly inside one
// counterpart contribute none. The inverse flag swaps the two maps, so
// the count becomes how many level regions are split across districts.
// Plan targets only.
type SplitCounter struct {
	base
}

func (c *SplitCounter) Compute(_ context.Context, t Target) (*Result, error) {
	if t.Plan == nil {
		return nil, nil
	}
	geolevel, ok := c.number("geolevel", nil)
	if !ok {
		return nil, &ConfigurationError{Reason: "SplitCounter requires a geolevel argument"}
	}
	left, right, err := assignmentMaps(t.Plan, int(geolevel))
	if err != nil {
		return nil, err
	}
	if c.boolArg("inverse", nil) {
		left, right = right, left
	}
	pairs := splitPairs(left, right)
	return &Result{Value: float64(len(pairs)), Raw: pairs}, nil
}

// SortKey: fewer splits is better.
func (c *SplitCounter) SortKey(r *Result) float64 {
	if r == nil || r.Value == nil {
		return 0
	}
	if v, ok := r.Value.(float64); ok {
		return -v
	}
	return 0
}

// DistrictSplitCounter counts the level regions a single district
// splits: regions with base units both inside and outside the
// district. A plan target sums the per-district counts.
type DistrictSplitCounter struct {
	base
}

func (c *DistrictSplitCounter) Compute(_ context.Context, t Target) (*Result, error) {
	if t.Plan == nil {
		return nil, nil
	}
	geolevel, ok := c.number("geolevel", nil)
	if !ok {
		return nil, &ConfigurationError{Reason: "DistrictSplitCounter requires a geolevel argument"}
	}
	left, right, err := assignmentMaps(t.Plan, int(geolevel))
	if err != nil {
		return nil, err
	}

	// regionDistricts maps each level region to the set of districts
	// holding at least one of its units.
	regionDistricts := make(map[string]map[string]struct{})
	for unit, region := range right {
		district, ok := left[unit]
		if !ok {
			continue
		}
		set := regionDistricts[region]
		if set == nil {
			set = make(map[string]struct{})
			regionDistricts[region] = set
		}
		set[district] = struct{}{}
	}

	splitBy := func(districtID int) int {
		id := strconv.Itoa(districtID)
		var count int
		for _, districts := range regionDistricts {
			if len(districts) < 2 {
				continue
			}
			if _, ok := districts[id]; ok {
				count++
			}
		}
		return count
	}
	if t.District != nil {
		return &Result{Value: float64(splitBy(t.District.DistrictID()))}, nil
	}
	var total int
	for _, d := range realDistricts(t.Plan) {
		total += splitBy(d.DistrictID())
	}
	return &Result{Value: float64(total)}, nil
}

// SortKey: fewer splits is better.
func (c *DistrictSplitCounter) SortKey(r *Result) float64 {
	if r == nil || r.Value == nil {
		return 0
	}
	if v, ok := r.Value.(float64); ok {
		return -v
	}
	return 0
}

// assignmentMaps loads the two unit-to-region maps compared by the
// split calculators. Unassigned units are excluded from the district
// side.
func assignmentMaps(p PlanReader, geolevelID int) (left, right map[string]string, err error) {
	districts, err := p.Assignments()
	if err != nil {
		return nil, nil, err
	}
	regions, err := p.LevelAssignments(geolevelID)
	if err != nil {
		return nil, nil, err
	}
	left = make(map[string]string, len(districts))
	for unit, districtID := range districts {
		if districtID == 0 {
			continue
		}
		left[unit] = strconv.Itoa(districtID)
	}
	return left, regions, nil
}

// splitPairs lists every (left, right) overlap belonging to a left
// region that spans more than one right region, sorted for stable
// output.
func splitPairs(left, right map[string]string) []SplitPair {
	overlaps := make(map[string]map[string]struct{})
	for unit, l := range left {
		r, ok := right[unit]
		if !ok {
			continue
		}
		set := overlaps[l]
		if set == nil {
			set = make(map[string]struct{})
			overlaps[l] = set
		}
		set[r] = struct{}{}
	}
	var pairs []SplitPair
	for l, rights := range overlaps {
		if len(rights) < 2 {
			continue
		}
		for r := range rights {
			pairs = append(pairs, SplitPair{Left: l, Right: r})
		}
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].Left != pairs[j].Left {
			return pairs[i].Left < pairs[j].Left
		}
		return pairs[i].Right < pairs[j].Right
	})
	return pairs
}
