package services

import (
	"context"
	"fmt"
	"sort"

	"github.com/stwalsh4118/redraw/internal/geo"
	"github.com/stwalsh4118/redraw/internal/models"
	"github.com/stwalsh4118/redraw/internal/repository"
	"github.com/stwalsh4118/redraw/internal/scoring"
)

// districtReader adapts one district-version row and its cached
// subject aggregates for the scoring calculators.
type districtReader struct {
	district models.District
	subjects map[string]float64
}

func (r *districtReader) DistrictID() int { return r.district.DistrictID }
func (r *districtReader) Name() string    { return r.district.Name }
func (r *districtReader) NumMembers() int { return r.district.NumMembers }

func (r *districtReader) Geometry() geo.Geometry { return r.district.Geom.Geom }

func (r *districtReader) SubjectValue(name string) (float64, bool) {
	v, ok := r.subjects[name]
	return v, ok
}

// planReader adapts a plan's resolved district set for the scoring
// calculators. It is scoped to a single evaluation: the construction
// context is retained for the lazily computed assignment maps, and
// those maps are memoized because split calculators may ask for the
// same level repeatedly within one score tree.
type planReader struct {
	ctx          context.Context
	ref          repository.ReferenceRepository
	plan         *models.Plan
	districts    []scoring.DistrictReader
	baseGeolevel int

	assignments map[string]int
	levels      map[int]map[string]string
}

// newPlanReader resolves the plan's live districts at its current
// version and loads each district's cached aggregates.
func newPlanReader(ctx context.Context, plans repository.PlanRepository, ref repository.ReferenceRepository, plan *models.Plan, baseGeolevel int) (*planReader, error) {
	rows, err := plans.DistrictsAtVersion(ctx, plan.ID, plan.Version)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve districts for plan %s: %w", plan.ID, err)
	}
	readers := make([]scoring.DistrictReader, 0, len(rows))
	for _, row := range rows {
		chars, err := plans.ComputedCharacteristics(ctx, row.UID)
		if err != nil {
			return nil, fmt.Errorf("failed to load characteristics for district %s: %w", row.UID, err)
		}
		subjects := make(map[string]float64, len(chars))
		for _, c := range chars {
			subjects[c.Subject] = c.Number
		}
		readers = append(readers, &districtReader{district: row, subjects: subjects})
	}
	return &planReader{
		ctx:          ctx,
		ref:          ref,
		plan:         plan,
		districts:    readers,
		baseGeolevel: baseGeolevel,
		levels:       make(map[int]map[string]string),
	}, nil
}

func (r *planReader) Name() string { return r.plan.Name }

func (r *planReader) Districts() []scoring.DistrictReader { return r.districts }

func (r *planReader) UnassignedUnits() (int, error) {
	for _, d := range r.districts {
		if d.DistrictID() != models.UnassignedDistrictID {
			continue
		}
		g := d.Geometry()
		if geo.IsEmpty(g) {
			return 0, nil
		}
		units, err := r.ref.GeounitsWithin(r.ctx, g, r.baseGeolevel)
		if err != nil {
			return 0, fmt.Errorf("failed to count unassigned geounits: %w", err)
		}
		return len(units), nil
	}
	return 0, nil
}

func (r *planReader) Assignments() (map[string]int, error) {
	if r.assignments != nil {
		return r.assignments, nil
	}
	assignments := make(map[string]int)
	// Real districts resolve in ascending district id order with the
	// Unassigned placeholder last, so a unit caught by a float seam in
	// two geometries lands in the lower real district deterministically.
	ordered := append([]scoring.DistrictReader(nil), r.districts...)
	sort.Slice(ordered, func(i, j int) bool {
		di, dj := ordered[i].DistrictID(), ordered[j].DistrictID()
		if (di == models.UnassignedDistrictID) != (dj == models.UnassignedDistrictID) {
			return dj == models.UnassignedDistrictID
		}
		return di < dj
	})
	for _, d := range ordered {
		g := d.Geometry()
		if geo.IsEmpty(g) {
			continue
		}
		units, err := r.ref.GeounitsWithin(r.ctx, g, r.baseGeolevel)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve assignments for district %d: %w", d.DistrictID(), err)
		}
		for _, u := range units {
			if _, taken := assignments[u.PortableID]; !taken {
				assignments[u.PortableID] = d.DistrictID()
			}
		}
	}
	r.assignments = assignments
	return assignments, nil
}

func (r *planReader) LevelAssignments(geolevelID int) (map[string]string, error) {
	if cached, ok := r.levels[geolevelID]; ok {
		return cached, nil
	}
	regions, err := r.ref.GeounitsAtLevel(r.ctx, geolevelID)
	if err != nil {
		return nil, fmt.Errorf("failed to load geounits at level %d: %w", geolevelID, err)
	}
	assignments := make(map[string]string)
	for _, region := range regions {
		units, err := r.ref.GeounitsWithin(r.ctx, region.Geom.Geom, r.baseGeolevel)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve units within region %s: %w", region.PortableID, err)
		}
		for _, u := range units {
			if _, taken := assignments[u.PortableID]; !taken {
				assignments[u.PortableID] = region.PortableID
			}
		}
	}
	r.levels[geolevelID] = assignments
	return assignments, nil
}
