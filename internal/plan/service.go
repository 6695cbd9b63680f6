// Package plan implements the versioned aggregation model: copy-on-write
// district versions, incremental statistic maintenance as geounits move
// between districts, and the repair and bulk operations built on top.
package plan

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/stwalsh4118/redraw/internal/geo"
	"github.com/stwalsh4118/redraw/internal/logger"
	"github.com/stwalsh4118/redraw/internal/models"
	"github.com/stwalsh4118/redraw/internal/repository"
)

// Service-level errors.
var (
	ErrPlanNotFound       = errors.New("plan not found")
	ErrBodyNotFound       = errors.New("legislative body not found")
	ErrDistrictNotFound   = errors.New("district not found")
	ErrDistrictLocked     = errors.New("district is locked")
	ErrMaxDistricts       = errors.New("maximum district count exceeded")
	ErrNoGeounits         = errors.New("no geounits selected")
	ErrPreconditionNotMet = errors.New("assigned-percentage precondition not met")
)

// Options tunes the aggregation service.
type Options struct {
	// BaseGeolevel is the geolevel id of the atomic geounits that
	// district statistics are aggregated from.
	BaseGeolevel int
	// SimplifyTolerance is the tolerance used for the simplified
	// geometry stored alongside every district version.
	SimplifyTolerance float64
}

// Service is the aggregation service. All mutations go through
// repository.PlanRepository.CommitEdit, so every edit is atomic and
// committed versions are never rewritten.
type Service struct {
	plans repository.PlanRepository
	ref   repository.ReferenceRepository
	log   *logger.Logger
	opts  Options
}

// NewService creates an aggregation service.
func NewService(plans repository.PlanRepository, ref repository.ReferenceRepository, log *logger.Logger, opts Options) *Service {
	if opts.BaseGeolevel == 0 {
		opts.BaseGeolevel = 1
	}
	return &Service{plans: plans, ref: ref, log: log, opts: opts}
}

// CreatePlan creates an empty plan for the given legislative body. The
// new plan starts at version 0 with the single mandatory Unassigned
// district holding every base geounit.
func (s *Service) CreatePlan(ctx context.Context, name string, ownerID uuid.UUID, bodyID uint, isCommunity bool) (*models.Plan, error) {
	body, err := s.ref.GetLegislativeBody(ctx, bodyID)
	if err != nil {
		return nil, fmt.Errorf("failed to load legislative body: %w", err)
	}
	if body == nil {
		return nil, ErrBodyNotFound
	}

	units, err := s.ref.GeounitsAtLevel(ctx, s.opts.BaseGeolevel)
	if err != nil {
		return nil, fmt.Errorf("failed to load base geounits: %w", err)
	}
	geoms := make([]geo.Geometry, 0, len(units))
	ids := make([]uuid.UUID, 0, len(units))
	for _, u := range units {
		geoms = append(geoms, u.Geom.Geom)
		ids = append(ids, u.ID)
	}
	territory, err := geo.UnionAll(geoms)
	if err != nil {
		return nil, fmt.Errorf("failed to build unassigned territory: %w", err)
	}

	p := &models.Plan{
		ID:                uuid.New(),
		Name:              name,
		OwnerID:           ownerID,
		LegislativeBodyID: bodyID,
		Version:           0,
		IsCommunity:       isCommunity,
	}
	unassigned := models.District{
		UID:        uuid.New(),
		PlanID:     p.ID,
		DistrictID: models.UnassignedDistrictID,
		Name:       "Unassigned",
		Version:    0,
		NumMembers: 1,
		Geom:       models.NewMultiPolygon(territory),
		SimpleGeom: models.NewMultiPolygon(geo.Simplify(territory, s.opts.SimplifyTolerance)),
	}
	if err := s.plans.CreatePlan(ctx, p, []models.District{unassigned}); err != nil {
		return nil, fmt.Errorf("failed to store plan: %w", err)
	}

	chars, err := s.charsFromUnits(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range chars {
		chars[i].DistrictUID = unassigned.UID
	}
	if err := s.plans.ReplaceComputedCharacteristics(ctx, unassigned.UID, chars); err != nil {
		return nil, fmt.Errorf("failed to store unassigned characteristics: %w", err)
	}

	s.log.Info("Plan created", map[string]interface{}{
		"plan_id":    p.ID,
		"name":       name,
		"base_units": len(units),
	})
	return p, nil
}

// AddGeounits moves the selected geounits into the target district at
// the given plan version. The selection geometry is unioned into the
// target and differenced out of every other unlocked district it
// overlaps; each affected district gets a new version row whose cached
// statistics are adjusted by delta, never recomputed from scratch.
// Locked districts keep both their geometry and their geounits. The
// plan version advances once for the whole call.
//
// Returns the number of districts that received a new version row.
func (s *Service) AddGeounits(ctx context.Context, planID uuid.UUID, districtID int, geounitIDs []uuid.UUID, version int) (int, error) {
	return s.addGeounits(ctx, planID, districtID, geounitIDs, version, 0)
}

func (s *Service) addGeounits(ctx context.Context, planID uuid.UUID, districtID int, geounitIDs []uuid.UUID, version, numMembers int) (int, error) {
	if len(geounitIDs) == 0 {
		return 0, ErrNoGeounits
	}

	p, err := s.plans.GetPlan(ctx, planID)
	if err != nil {
		return 0, fmt.Errorf("failed to load plan: %w", err)
	}
	if p == nil {
		return 0, ErrPlanNotFound
	}

	districts, err := s.plans.DistrictsAtVersion(ctx, planID, version)
	if err != nil {
		return 0, fmt.Errorf("failed to load districts: %w", err)
	}

	target := findDistrict(districts, districtID)
	if target != nil && target.Locked {
		return 0, ErrDistrictLocked
	}

	body, err := s.ref.GetLegislativeBody(ctx, p.LegislativeBodyID)
	if err != nil {
		return 0, fmt.Errorf("failed to load legislative body: %w", err)
	}
	if body == nil {
		return 0, ErrBodyNotFound
	}
	if target == nil && countRealDistricts(districts)+1 > body.MaxDistricts {
		return 0, ErrMaxDistricts
	}

	units, err := s.ref.GeounitsByIDs(ctx, geounitIDs)
	if err != nil {
		return 0, fmt.Errorf("failed to load geounits: %w", err)
	}
	if len(units) == 0 {
		return 0, ErrNoGeounits
	}

	// Geounits sitting inside locked districts never move; drop them
	// from the selection before any geometry changes.
	units = excludeLocked(units, districts)
	if len(units) == 0 {
		return 0, nil
	}
	selectionGeoms := make([]geo.Geometry, 0, len(units))
	for _, u := range units {
		selectionGeoms = append(selectionGeoms, u.Geom.Geom)
	}
	selection, err := geo.UnionAll(selectionGeoms)
	if err != nil {
		return 0, fmt.Errorf("failed to union selection: %w", err)
	}

	subjects, err := s.subjectIndex(ctx)
	if err != nil {
		return 0, err
	}

	newVersion := p.Version + 1
	edit := &repository.PlanEdit{
		PlanID:          planID,
		NewVersion:      newVersion,
		Characteristics: make(map[uuid.UUID][]models.ComputedCharacteristic),
	}

	var targetGeom geo.Geometry
	var movedIn []models.Geounit
	if target == nil {
		targetGeom = geo.Empty()
		movedIn = units
	} else {
		targetGeom = target.Geom.Geom
		for _, u := range units {
			if !geo.WithinRegion(targetGeom, u.Geom.Geom) {
				movedIn = append(movedIn, u)
			}
		}
	}
	if len(movedIn) == 0 {
		// Everything selected already belongs to the target.
		return 0, nil
	}

	// Strip moved units from every other unlocked district they
	// currently occupy, adjusting each district's cached statistics by
	// exactly the moved units' characteristic sums.
	affected := 0
	for i := range districts {
		d := &districts[i]
		if d.DistrictID == districtID || d.Locked {
			continue
		}
		if !geo.Intersects(d.Geom.Geom, selection) {
			continue
		}
		var movedOut []uuid.UUID
		for _, u := range movedIn {
			if geo.WithinRegion(d.Geom.Geom, u.Geom.Geom) {
				movedOut = append(movedOut, u.ID)
			}
		}
		if len(movedOut) == 0 {
			continue
		}
		newGeom, err := geo.Difference(d.Geom.Geom, selection)
		if err != nil {
			return 0, fmt.Errorf("failed to remove selection from district %d: %w", d.DistrictID, err)
		}
		sums, err := s.ref.CharacteristicSums(ctx, movedOut)
		if err != nil {
			return 0, fmt.Errorf("failed to sum moved characteristics: %w", err)
		}
		row, chars, err := s.versionRow(ctx, d, newGeom, newVersion, func(subject string, number float64) float64 {
			return number - sums[subject]
		}, subjects)
		if err != nil {
			return 0, err
		}
		edit.Districts = append(edit.Districts, row)
		edit.Characteristics[row.UID] = chars
		affected++
	}

	// Build the target's new version row.
	newTargetGeom, err := geo.Union(targetGeom, selection)
	if err != nil {
		return 0, fmt.Errorf("failed to union selection into district %d: %w", districtID, err)
	}
	movedIDs := make([]uuid.UUID, 0, len(movedIn))
	for _, u := range movedIn {
		movedIDs = append(movedIDs, u.ID)
	}
	sums, err := s.ref.CharacteristicSums(ctx, movedIDs)
	if err != nil {
		return 0, fmt.Errorf("failed to sum incoming characteristics: %w", err)
	}

	var row models.District
	var chars []models.ComputedCharacteristic
	if target == nil {
		members := numMembers
		if members <= 0 {
			members = 1
		}
		row = models.District{
			UID:        uuid.New(),
			PlanID:     planID,
			DistrictID: districtID,
			Name:       fmt.Sprintf("District %d", districtID),
			Version:    newVersion,
			NumMembers: members,
			Geom:       models.NewMultiPolygon(newTargetGeom),
			SimpleGeom: models.NewMultiPolygon(geo.Simplify(newTargetGeom, s.opts.SimplifyTolerance)),
		}
		chars = charsFromSums(sums, subjects)
		for i := range chars {
			chars[i].DistrictUID = row.UID
		}
	} else {
		row, chars, err = s.versionRow(ctx, target, newTargetGeom, newVersion, func(subject string, number float64) float64 {
			return number + sums[subject]
		}, subjects)
		if err != nil {
			return 0, err
		}
		if numMembers > 0 {
			row.NumMembers = numMembers
		}
	}
	edit.Districts = append(edit.Districts, row)
	edit.Characteristics[row.UID] = chars
	affected++

	if err := s.plans.CommitEdit(ctx, edit); err != nil {
		return 0, fmt.Errorf("failed to commit edit: %w", err)
	}

	s.log.Info("Geounits assigned", map[string]interface{}{
		"plan_id":     planID,
		"district_id": districtID,
		"moved":       len(movedIn),
		"affected":    affected,
		"version":     newVersion,
	})
	return affected, nil
}

// versionRow copies d forward into a new version row with the given
// geometry, applying adjust to every cached characteristic number.
func (s *Service) versionRow(ctx context.Context, d *models.District, newGeom geo.Geometry, newVersion int, adjust func(subject string, number float64) float64, subjects map[string]models.Subject) (models.District, []models.ComputedCharacteristic, error) {
	row := models.District{
		UID:        uuid.New(),
		PlanID:     d.PlanID,
		DistrictID: d.DistrictID,
		Name:       d.Name,
		Version:    newVersion,
		NumMembers: d.NumMembers,
		Locked:     d.Locked,
		Geom:       models.NewMultiPolygon(newGeom),
		SimpleGeom: models.NewMultiPolygon(geo.Simplify(newGeom, s.opts.SimplifyTolerance)),
	}

	prev, err := s.plans.ComputedCharacteristics(ctx, d.UID)
	if err != nil {
		return models.District{}, nil, fmt.Errorf("failed to load characteristics of district %d: %w", d.DistrictID, err)
	}
	byName := make(map[string]float64, len(prev))
	for _, ch := range prev {
		byName[ch.Subject] = ch.Number
	}
	// Subjects may have been added since the previous version; carry a
	// zero row for any the row set is missing.
	for name := range subjects {
		if _, ok := byName[name]; !ok {
			byName[name] = 0
		}
	}

	chars := make([]models.ComputedCharacteristic, 0, len(byName))
	for name, number := range byName {
		chars = append(chars, models.ComputedCharacteristic{
			DistrictUID: row.UID,
			Subject:     name,
			Number:      adjust(name, number),
		})
	}
	applyPercentages(chars, subjects)
	return row, chars, nil
}

// ReaggregateDistrict rebuilds a district's cached statistics from
// scratch by summing the characteristics of every base geounit inside
// its geometry. It is the repair path for drifted incremental deltas
// and must agree with a correct delta sequence; it is idempotent.
func (s *Service) ReaggregateDistrict(ctx context.Context, d *models.District) ([]models.ComputedCharacteristic, error) {
	units, err := s.ref.GeounitsWithin(ctx, d.Geom.Geom, s.opts.BaseGeolevel)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve base geounits of district %d: %w", d.DistrictID, err)
	}
	ids := make([]uuid.UUID, 0, len(units))
	for _, u := range units {
		ids = append(ids, u.ID)
	}
	chars, err := s.charsFromUnits(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range chars {
		chars[i].DistrictUID = d.UID
	}
	if err := s.plans.ReplaceComputedCharacteristics(ctx, d.UID, chars); err != nil {
		return nil, fmt.Errorf("failed to store characteristics of district %d: %w", d.DistrictID, err)
	}
	return chars, nil
}

// ReaggregatePlan reaggregates every district of the plan at its
// current version.
func (s *Service) ReaggregatePlan(ctx context.Context, planID uuid.UUID) error {
	p, err := s.plans.GetPlan(ctx, planID)
	if err != nil {
		return fmt.Errorf("failed to load plan: %w", err)
	}
	if p == nil {
		return ErrPlanNotFound
	}
	districts, err := s.plans.DistrictsAtVersion(ctx, planID, p.Version)
	if err != nil {
		return fmt.Errorf("failed to load districts: %w", err)
	}
	for i := range districts {
		if _, err := s.ReaggregateDistrict(ctx, &districts[i]); err != nil {
			return err
		}
	}
	s.log.Info("Plan reaggregated", map[string]interface{}{
		"plan_id":   planID,
		"districts": len(districts),
	})
	return nil
}

// PasteDistricts copies the named districts of the source plan into the
// target plan as new districts. Target districts overlapping the pasted
// territory lose it unless locked. The whole operation is validated
// first and committed as one edit: a constraint violation leaves the
// target plan untouched.
func (s *Service) PasteDistricts(ctx context.Context, targetPlanID, sourcePlanID uuid.UUID, districtIDs []int) ([]int, error) {
	target, err := s.plans.GetPlan(ctx, targetPlanID)
	if err != nil {
		return nil, fmt.Errorf("failed to load target plan: %w", err)
	}
	source, err := s.plans.GetPlan(ctx, sourcePlanID)
	if err != nil {
		return nil, fmt.Errorf("failed to load source plan: %w", err)
	}
	if target == nil || source == nil {
		return nil, ErrPlanNotFound
	}

	body, err := s.ref.GetLegislativeBody(ctx, target.LegislativeBodyID)
	if err != nil {
		return nil, fmt.Errorf("failed to load legislative body: %w", err)
	}
	if body == nil {
		return nil, ErrBodyNotFound
	}

	targetDistricts, err := s.plans.DistrictsAtVersion(ctx, targetPlanID, target.Version)
	if err != nil {
		return nil, fmt.Errorf("failed to load target districts: %w", err)
	}
	sourceDistricts, err := s.plans.DistrictsAtVersion(ctx, sourcePlanID, source.Version)
	if err != nil {
		return nil, fmt.Errorf("failed to load source districts: %w", err)
	}

	if countRealDistricts(targetDistricts)+len(districtIDs) > body.MaxDistricts {
		return nil, ErrMaxDistricts
	}

	newVersion := target.Version + 1
	edit := &repository.PlanEdit{
		PlanID:          targetPlanID,
		NewVersion:      newVersion,
		Characteristics: make(map[uuid.UUID][]models.ComputedCharacteristic),
	}

	nextID := maxDistrictID(targetDistricts)
	var pastedIDs []int
	var pastedGeoms []geo.Geometry
	for _, id := range districtIDs {
		src := findDistrict(sourceDistricts, id)
		if src == nil {
			return nil, fmt.Errorf("%w: source district %d", ErrDistrictNotFound, id)
		}
		pasted := src.Geom.Geom
		// Locked target districts keep their territory.
		for i := range targetDistricts {
			d := &targetDistricts[i]
			if d.Locked && geo.Intersects(d.Geom.Geom, pasted) {
				pasted, err = geo.Difference(pasted, d.Geom.Geom)
				if err != nil {
					return nil, fmt.Errorf("failed to carve locked district %d out of paste: %w", d.DistrictID, err)
				}
			}
		}
		nextID++
		row := models.District{
			UID:        uuid.New(),
			PlanID:     targetPlanID,
			DistrictID: nextID,
			Name:       fmt.Sprintf("District %d", nextID),
			Version:    newVersion,
			NumMembers: src.NumMembers,
			Geom:       models.NewMultiPolygon(pasted),
			SimpleGeom: models.NewMultiPolygon(geo.Simplify(pasted, s.opts.SimplifyTolerance)),
		}
		chars, err := s.charsForGeometry(ctx, pasted)
		if err != nil {
			return nil, err
		}
		for i := range chars {
			chars[i].DistrictUID = row.UID
		}
		edit.Districts = append(edit.Districts, row)
		edit.Characteristics[row.UID] = chars
		pastedIDs = append(pastedIDs, nextID)
		pastedGeoms = append(pastedGeoms, pasted)
	}

	pastedUnion, err := geo.UnionAll(pastedGeoms)
	if err != nil {
		return nil, fmt.Errorf("failed to union pasted territory: %w", err)
	}

	// Carve the pasted territory out of overlapping unlocked target
	// districts, with a full statistic recompute for each.
	for i := range targetDistricts {
		d := &targetDistricts[i]
		if d.Locked || !geo.Intersects(d.Geom.Geom, pastedUnion) {
			continue
		}
		newGeom, err := geo.Difference(d.Geom.Geom, pastedUnion)
		if err != nil {
			return nil, fmt.Errorf("failed to carve paste out of district %d: %w", d.DistrictID, err)
		}
		row := models.District{
			UID:        uuid.New(),
			PlanID:     targetPlanID,
			DistrictID: d.DistrictID,
			Name:       d.Name,
			Version:    newVersion,
			NumMembers: d.NumMembers,
			Geom:       models.NewMultiPolygon(newGeom),
			SimpleGeom: models.NewMultiPolygon(geo.Simplify(newGeom, s.opts.SimplifyTolerance)),
		}
		chars, err := s.charsForGeometry(ctx, newGeom)
		if err != nil {
			return nil, err
		}
		for i := range chars {
			chars[i].DistrictUID = row.UID
		}
		edit.Districts = append(edit.Districts, row)
		edit.Characteristics[row.UID] = chars
	}

	if err := s.plans.CommitEdit(ctx, edit); err != nil {
		return nil, fmt.Errorf("failed to commit paste: %w", err)
	}

	s.log.Info("Districts pasted", map[string]interface{}{
		"target_plan": targetPlanID,
		"source_plan": sourcePlanID,
		"pasted":      pastedIDs,
		"version":     newVersion,
	})
	return pastedIDs, nil
}

// CombineDistricts merges the component districts into the target
// district: the target takes the union geometry and the summed
// statistics, the components are emptied, all in one version bump.
func (s *Service) CombineDistricts(ctx context.Context, planID uuid.UUID, targetID int, componentIDs []int) error {
	p, err := s.plans.GetPlan(ctx, planID)
	if err != nil {
		return fmt.Errorf("failed to load plan: %w", err)
	}
	if p == nil {
		return ErrPlanNotFound
	}
	districts, err := s.plans.DistrictsAtVersion(ctx, planID, p.Version)
	if err != nil {
		return fmt.Errorf("failed to load districts: %w", err)
	}

	target := findDistrict(districts, targetID)
	if target == nil {
		return fmt.Errorf("%w: district %d", ErrDistrictNotFound, targetID)
	}
	if target.Locked {
		return ErrDistrictLocked
	}

	components := make([]*models.District, 0, len(componentIDs))
	for _, id := range componentIDs {
		c := findDistrict(districts, id)
		if c == nil {
			return fmt.Errorf("%w: district %d", ErrDistrictNotFound, id)
		}
		if c.Locked {
			return ErrDistrictLocked
		}
		if c.IsUnassigned() {
			return fmt.Errorf("%w: cannot combine the unassigned district", ErrDistrictNotFound)
		}
		components = append(components, c)
	}

	subjects, err := s.subjectIndex(ctx)
	if err != nil {
		return err
	}

	merged := target.Geom.Geom
	totals := make(map[string]float64)
	targetChars, err := s.plans.ComputedCharacteristics(ctx, target.UID)
	if err != nil {
		return fmt.Errorf("failed to load characteristics of district %d: %w", targetID, err)
	}
	for _, ch := range targetChars {
		totals[ch.Subject] += ch.Number
	}
	for _, c := range components {
		merged, err = geo.Union(merged, c.Geom.Geom)
		if err != nil {
			return fmt.Errorf("failed to merge district %d: %w", c.DistrictID, err)
		}
		chars, err := s.plans.ComputedCharacteristics(ctx, c.UID)
		if err != nil {
			return fmt.Errorf("failed to load characteristics of district %d: %w", c.DistrictID, err)
		}
		for _, ch := range chars {
			totals[ch.Subject] += ch.Number
		}
	}

	newVersion := p.Version + 1
	edit := &repository.PlanEdit{
		PlanID:          planID,
		NewVersion:      newVersion,
		Characteristics: make(map[uuid.UUID][]models.ComputedCharacteristic),
	}

	row := models.District{
		UID:        uuid.New(),
		PlanID:     planID,
		DistrictID: target.DistrictID,
		Name:       target.Name,
		Version:    newVersion,
		NumMembers: target.NumMembers,
		Geom:       models.NewMultiPolygon(merged),
		SimpleGeom: models.NewMultiPolygon(geo.Simplify(merged, s.opts.SimplifyTolerance)),
	}
	chars := charsFromSums(totals, subjects)
	for i := range chars {
		chars[i].DistrictUID = row.UID
	}
	edit.Districts = append(edit.Districts, row)
	edit.Characteristics[row.UID] = chars

	for _, c := range components {
		emptied := models.District{
			UID:        uuid.New(),
			PlanID:     planID,
			DistrictID: c.DistrictID,
			Name:       c.Name,
			Version:    newVersion,
			NumMembers: c.NumMembers,
			Geom:       models.NewMultiPolygon(geo.Empty()),
			SimpleGeom: models.NewMultiPolygon(geo.Empty()),
		}
		emptyChars := charsFromSums(map[string]float64{}, subjects)
		for i := range emptyChars {
			emptyChars[i].DistrictUID = emptied.UID
		}
		edit.Districts = append(edit.Districts, emptied)
		edit.Characteristics[emptied.UID] = emptyChars
	}

	if err := s.plans.CommitEdit(ctx, edit); err != nil {
		return fmt.Errorf("failed to commit combine: %w", err)
	}

	s.log.Info("Districts combined", map[string]interface{}{
		"plan_id":    planID,
		"target":     targetID,
		"components": componentIDs,
		"version":    newVersion,
	})
	return nil
}

// FixUnassigned performs one reassignment pass: every base geounit in
// the Unassigned district that touches at least one unlocked district
// is moved to the touching district with the lower value of the
// comparator subject. The pass only runs when at least
// minAssignedFraction of the comparator total is already assigned.
// Calling repeatedly drains reachable pockets to convergence; a pass
// that finds nothing reassignable returns 0.
func (s *Service) FixUnassigned(ctx context.Context, planID uuid.UUID, comparator string, minAssignedFraction float64) (int, error) {
	p, err := s.plans.GetPlan(ctx, planID)
	if err != nil {
		return 0, fmt.Errorf("failed to load plan: %w", err)
	}
	if p == nil {
		return 0, ErrPlanNotFound
	}
	districts, err := s.plans.DistrictsAtVersion(ctx, planID, p.Version)
	if err != nil {
		return 0, fmt.Errorf("failed to load districts: %w", err)
	}
	unassigned := findDistrict(districts, models.UnassignedDistrictID)
	if unassigned == nil || unassigned.Geom.IsEmpty() {
		return 0, nil
	}

	// Precondition: enough of the comparator total must already be
	// assigned for neighbor-based placement to be meaningful.
	var total, unassignedValue float64
	comparatorByDistrict := make(map[int]float64)
	for i := range districts {
		d := &districts[i]
		chars, err := s.plans.ComputedCharacteristics(ctx, d.UID)
		if err != nil {
			return 0, fmt.Errorf("failed to load characteristics of district %d: %w", d.DistrictID, err)
		}
		for _, ch := range chars {
			if ch.Subject == comparator {
				total += ch.Number
				comparatorByDistrict[d.DistrictID] = ch.Number
				if d.IsUnassigned() {
					unassignedValue = ch.Number
				}
			}
		}
	}
	if total > 0 && (total-unassignedValue)/total < minAssignedFraction {
		return 0, fmt.Errorf("%w: %.1f%% assigned", ErrPreconditionNotMet, 100*(total-unassignedValue)/total)
	}

	units, err := s.ref.GeounitsWithin(ctx, unassigned.Geom.Geom, s.opts.BaseGeolevel)
	if err != nil {
		return 0, fmt.Errorf("failed to resolve unassigned geounits: %w", err)
	}

	// Group each reachable unit under the adjacent unlocked district
	// with the lower comparator value.
	groups := make(map[int][]uuid.UUID)
	for _, u := range units {
		best := -1
		for i := range districts {
			d := &districts[i]
			if d.IsUnassigned() || d.Locked || d.Geom.IsEmpty() {
				continue
			}
			if !geo.Intersects(d.Geom.Geom, u.Geom.Geom) {
				if touches, err := geo.Touches(d.Geom.Geom, u.Geom.Geom); err != nil || !touches {
					continue
				}
			}
			if best < 0 || comparatorByDistrict[d.DistrictID] < comparatorByDistrict[best] {
				best = d.DistrictID
			}
		}
		if best >= 0 {
			groups[best] = append(groups[best], u.ID)
		}
	}
	if len(groups) == 0 {
		return 0, nil
	}

	assigned := 0
	for districtID, ids := range groups {
		current, err := s.plans.GetPlan(ctx, planID)
		if err != nil {
			return assigned, fmt.Errorf("failed to reload plan: %w", err)
		}
		if _, err := s.AddGeounits(ctx, planID, districtID, ids, current.Version); err != nil {
			return assigned, fmt.Errorf("failed to assign pocket to district %d: %w", districtID, err)
		}
		assigned += len(ids)
	}

	s.log.Info("Unassigned pockets fixed", map[string]interface{}{
		"plan_id":  planID,
		"assigned": assigned,
		"groups":   len(groups),
	})
	return assigned, nil
}

// Helpers.

func findDistrict(districts []models.District, districtID int) *models.District {
	for i := range districts {
		if districts[i].DistrictID == districtID {
			return &districts[i]
		}
	}
	return nil
}

// countRealDistricts counts districts that occupy territory, excluding
// the Unassigned placeholder.
func countRealDistricts(districts []models.District) int {
	n := 0
	for i := range districts {
		if !districts[i].IsUnassigned() && !districts[i].Geom.IsEmpty() {
			n++
		}
	}
	return n
}

func maxDistrictID(districts []models.District) int {
	max := 0
	for i := range districts {
		if districts[i].DistrictID > max {
			max = districts[i].DistrictID
		}
	}
	return max
}

// excludeLocked drops geounits that lie inside locked districts.
func excludeLocked(units []models.Geounit, districts []models.District) []models.Geounit {
	var locked []geo.Geometry
	for i := range districts {
		if districts[i].Locked && !districts[i].Geom.IsEmpty() {
			locked = append(locked, districts[i].Geom.Geom)
		}
	}
	if len(locked) == 0 {
		return units
	}
	out := units[:0]
	for _, u := range units {
		keep := true
		for _, lg := range locked {
			if geo.WithinRegion(lg, u.Geom.Geom) {
				keep = false
				break
			}
		}
		if keep {
			out = append(out, u)
		}
	}
	return out
}

// subjectIndex loads the subject catalog keyed by name.
func (s *Service) subjectIndex(ctx context.Context) (map[string]models.Subject, error) {
	subjects, err := s.ref.ListSubjects(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load subjects: %w", err)
	}
	index := make(map[string]models.Subject, len(subjects))
	for _, subject := range subjects {
		index[subject.Name] = subject
	}
	return index, nil
}

// charsFromUnits builds a full characteristic set from the sums over
// the given geounits.
func (s *Service) charsFromUnits(ctx context.Context, geounitIDs []uuid.UUID) ([]models.ComputedCharacteristic, error) {
	sums, err := s.ref.CharacteristicSums(ctx, geounitIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to sum characteristics: %w", err)
	}
	subjects, err := s.subjectIndex(ctx)
	if err != nil {
		return nil, err
	}
	return charsFromSums(sums, subjects), nil
}

// charsForGeometry rebuilds a characteristic set from scratch for the
// base geounits inside g.
func (s *Service) charsForGeometry(ctx context.Context, g geo.Geometry) ([]models.ComputedCharacteristic, error) {
	units, err := s.ref.GeounitsWithin(ctx, g, s.opts.BaseGeolevel)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve base geounits: %w", err)
	}
	ids := make([]uuid.UUID, 0, len(units))
	for _, u := range units {
		ids = append(ids, u.ID)
	}
	return s.charsFromUnits(ctx, ids)
}

// charsFromSums materializes one characteristic row per known subject,
// zero-filled when the sums carry no value.
func charsFromSums(sums map[string]float64, subjects map[string]models.Subject) []models.ComputedCharacteristic {
	chars := make([]models.ComputedCharacteristic, 0, len(subjects))
	for name := range subjects {
		chars = append(chars, models.ComputedCharacteristic{
			Subject: name,
			Number:  sums[name],
		})
	}
	applyPercentages(chars, subjects)
	return chars
}

// applyPercentages recomputes the percentage of every characteristic
// whose subject declares a denominator.
func applyPercentages(chars []models.ComputedCharacteristic, subjects map[string]models.Subject) {
	byName := make(map[string]float64, len(chars))
	for _, ch := range chars {
		byName[ch.Subject] = ch.Number
	}
	for i := range chars {
		subject, ok := subjects[chars[i].Subject]
		if !ok || subject.PercentageDenominator == nil {
			continue
		}
		denom := byName[*subject.PercentageDenominator]
		if denom != 0 {
			chars[i].Percentage = chars[i].Number / denom
		} else {
			chars[i].Percentage = 0
		}
	}
}
