package repository

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/stwalsh4118/redraw/internal/geo"
	"github.com/stwalsh4118/redraw/internal/models"
)

// MemoryStore is an in-memory implementation of every repository
// interface. It backs the engine when no database is configured and is
// the store the test suite runs against. All methods are safe for
// concurrent use.
type MemoryStore struct {
	mu sync.RWMutex

	plans          map[uuid.UUID]models.Plan
	districts      map[uuid.UUID][]models.District // keyed by plan id, append-only
	computed       map[uuid.UUID][]models.ComputedCharacteristic
	subjects       map[string]models.Subject
	bodies         map[uint]models.LegislativeBody
	geounits       map[uuid.UUID]models.Geounit
	portableIndex  map[string]uuid.UUID
	characteristic map[uuid.UUID][]models.Characteristic // keyed by geounit id
	overrides      []models.ContiguityOverride
	scoreFunctions map[string]models.ScoreFunction
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		plans:          make(map[uuid.UUID]models.Plan),
		districts:      make(map[uuid.UUID][]models.District),
		computed:       make(map[uuid.UUID][]models.ComputedCharacteristic),
		subjects:       make(map[string]models.Subject),
		bodies:         make(map[uint]models.LegislativeBody),
		geounits:       make(map[uuid.UUID]models.Geounit),
		portableIndex:  make(map[string]uuid.UUID),
		characteristic: make(map[uuid.UUID][]models.Characteristic),
		scoreFunctions: make(map[string]models.ScoreFunction),
	}
}

// Seed helpers. These load the immutable reference data that the
// production system receives through its import pipelines.

// SeedSubject registers a subject.
func (s *MemoryStore) SeedSubject(subject models.Subject) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subjects[subject.Name] = subject
}

// SeedLegislativeBody registers a legislative body.
func (s *MemoryStore) SeedLegislativeBody(body models.LegislativeBody) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bodies[body.ID] = body
}

// SeedGeounit registers a geounit together with its characteristic
// values per subject.
func (s *MemoryStore) SeedGeounit(unit models.Geounit, values map[string]float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.geounits[unit.ID] = unit
	s.portableIndex[unit.PortableID] = unit.ID
	chars := make([]models.Characteristic, 0, len(values))
	for subject, number := range values {
		chars = append(chars, models.Characteristic{
			Subject:   subject,
			Number:    number,
			GeounitID: unit.ID,
		})
	}
	s.characteristic[unit.ID] = chars
}

// SeedContiguityOverride registers an adjacency exception.
func (s *MemoryStore) SeedContiguityOverride(ov models.ContiguityOverride) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.overrides = append(s.overrides, ov)
}

// SeedScoreFunction registers a score function and its arguments.
func (s *MemoryStore) SeedScoreFunction(fn models.ScoreFunction) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scoreFunctions[fn.Name] = fn
}

// PlanRepository implementation.

func (s *MemoryStore) GetPlan(ctx context.Context, id uuid.UUID) (*models.Plan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	plan, ok := s.plans[id]
	if !ok {
		return nil, nil
	}
	return &plan, nil
}

func (s *MemoryStore) CreatePlan(ctx context.Context, plan *models.Plan, districts []models.District) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.plans[plan.ID] = *plan
	s.districts[plan.ID] = append(s.districts[plan.ID], districts...)
	return nil
}

func (s *MemoryStore) ListPlans(ctx context.Context, legislativeBodyID uint) ([]models.Plan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var plans []models.Plan
	for _, p := range s.plans {
		if legislativeBodyID == 0 || p.LegislativeBodyID == legislativeBodyID {
			plans = append(plans, p)
		}
	}
	sort.Slice(plans, func(i, j int) bool { return plans[i].Name < plans[j].Name })
	return plans, nil
}

func (s *MemoryStore) DistrictsAtVersion(ctx context.Context, planID uuid.UUID, version int) ([]models.District, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	// Per district_id, the row with the highest version <= the
	// requested one is the live district.
	live := make(map[int]models.District)
	for _, d := range s.districts[planID] {
		if d.Version > version {
			continue
		}
		if cur, ok := live[d.DistrictID]; !ok || d.Version > cur.Version {
			live[d.DistrictID] = d
		}
	}
	out := make([]models.District, 0, len(live))
	for _, d := range live {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DistrictID < out[j].DistrictID })
	return out, nil
}

func (s *MemoryStore) CommitEdit(ctx context.Context, edit *PlanEdit) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	plan, ok := s.plans[edit.PlanID]
	if !ok {
		return nil
	}
	s.districts[edit.PlanID] = append(s.districts[edit.PlanID], edit.Districts...)
	for uid, chars := range edit.Characteristics {
		s.computed[uid] = chars
	}
	plan.Version = edit.NewVersion
	s.plans[edit.PlanID] = plan
	return nil
}

func (s *MemoryStore) ComputedCharacteristics(ctx context.Context, districtUID uuid.UUID) ([]models.ComputedCharacteristic, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	chars := s.computed[districtUID]
	out := make([]models.ComputedCharacteristic, len(chars))
	copy(out, chars)
	return out, nil
}

func (s *MemoryStore) ReplaceComputedCharacteristics(ctx context.Context, districtUID uuid.UUID, chars []models.ComputedCharacteristic) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	replacement := make([]models.ComputedCharacteristic, len(chars))
	copy(replacement, chars)
	s.computed[districtUID] = replacement
	return nil
}

// ReferenceRepository implementation.

func (s *MemoryStore) GetSubject(ctx context.Context, name string) (*models.Subject, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	subject, ok := s.subjects[name]
	if !ok {
		return nil, nil
	}
	return &subject, nil
}

func (s *MemoryStore) ListSubjects(ctx context.Context) ([]models.Subject, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Subject, 0, len(s.subjects))
	for _, subject := range s.subjects {
		out = append(out, subject)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SortKey < out[j].SortKey })
	return out, nil
}

func (s *MemoryStore) GetLegislativeBody(ctx context.Context, id uint) (*models.LegislativeBody, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	body, ok := s.bodies[id]
	if !ok {
		return nil, nil
	}
	return &body, nil
}

func (s *MemoryStore) GeounitsByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Geounit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Geounit, 0, len(ids))
	for _, id := range ids {
		if unit, ok := s.geounits[id]; ok {
			out = append(out, unit)
		}
	}
	return out, nil
}

func (s *MemoryStore) GeounitByPortableID(ctx context.Context, portableID string) (*models.Geounit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.portableIndex[portableID]
	if !ok {
		return nil, nil
	}
	unit := s.geounits[id]
	return &unit, nil
}

func (s *MemoryStore) GeounitsWithin(ctx context.Context, g geo.Geometry, geolevelID int) ([]models.Geounit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Geounit
	for _, unit := range s.geounits {
		if unit.GeolevelID != geolevelID {
			continue
		}
		if geo.WithinRegion(g, unit.Geom.Geom) {
			out = append(out, unit)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PortableID < out[j].PortableID })
	return out, nil
}

func (s *MemoryStore) GeounitsAtLevel(ctx context.Context, geolevelID int) ([]models.Geounit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Geounit
	for _, unit := range s.geounits {
		if unit.GeolevelID == geolevelID {
			out = append(out, unit)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PortableID < out[j].PortableID })
	return out, nil
}

func (s *MemoryStore) CharacteristicSums(ctx context.Context, geounitIDs []uuid.UUID) (map[string]float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sums := make(map[string]float64)
	for _, id := range geounitIDs {
		for _, ch := range s.characteristic[id] {
			sums[ch.Subject] += ch.Number
		}
	}
	return sums, nil
}

func (s *MemoryStore) ContiguityOverrides(ctx context.Context) ([]models.ContiguityOverride, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.ContiguityOverride, len(s.overrides))
	copy(out, s.overrides)
	return out, nil
}

// ScoreFunctionRepository implementation.

func (s *MemoryStore) GetScoreFunction(ctx context.Context, name string) (*models.ScoreFunction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	fn, ok := s.scoreFunctions[name]
	if !ok {
		return nil, nil
	}
	return &fn, nil
}

func (s *MemoryStore) ListScoreFunctions(ctx context.Context) ([]models.ScoreFunction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.ScoreFunction, 0, len(s.scoreFunctions))
	for _, fn := range s.scoreFunctions {
		out = append(out, fn)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}
