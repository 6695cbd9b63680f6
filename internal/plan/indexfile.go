package plan

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strconv"

	"github.com/google/uuid"
	"github.com/stwalsh4118/redraw/internal/geo"
	"github.com/stwalsh4118/redraw/internal/models"
)

// Index files are the interchange format for plan assignments: one row
// per base geounit, no header, columns
//
//	portable_id, district_id, num_members
//
// with three trailing columns (label, types, comments) present only for
// community plans.

// indexRow is one parsed index-file record.
type indexRow struct {
	PortableID string
	DistrictID int
	NumMembers int
	Label      string
	Types      string
	Comments   string
}

// ExportIndex writes the plan's current district assignment as an index
// file. Rows are ordered by portable id so exports are deterministic.
func (s *Service) ExportIndex(ctx context.Context, planID uuid.UUID, w io.Writer) error {
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
	units, err := s.ref.GeounitsAtLevel(ctx, s.opts.BaseGeolevel)
	if err != nil {
		return fmt.Errorf("failed to load base geounits: %w", err)
	}
	sort.Slice(units, func(i, j int) bool { return units[i].PortableID < units[j].PortableID })

	cw := csv.NewWriter(w)
	for _, u := range units {
		d := assignedDistrict(districts, u.Geom.Geom)
		if d == nil {
			continue
		}
		record := []string{
			u.PortableID,
			strconv.Itoa(d.DistrictID),
			strconv.Itoa(d.NumMembers),
		}
		if p.IsCommunity {
			record = append(record, d.Name, "", "")
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("failed to write index row for %s: %w", u.PortableID, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("failed to flush index file: %w", err)
	}
	return nil
}

// ImportIndex creates a new plan from an index file. Assignments are
// grouped per district and applied as one edit each, so the resulting
// plan round-trips back to an equivalent index file.
func (s *Service) ImportIndex(ctx context.Context, name string, ownerID uuid.UUID, bodyID uint, isCommunity bool, r io.Reader) (*models.Plan, error) {
	rows, err := parseIndex(r)
	if err != nil {
		return nil, err
	}

	p, err := s.CreatePlan(ctx, name, ownerID, bodyID, isCommunity)
	if err != nil {
		return nil, err
	}

	// Group geounits per district, preserving the first row's member
	// count for each.
	groups := make(map[int][]uuid.UUID)
	members := make(map[int]int)
	for _, row := range rows {
		unit, err := s.ref.GeounitByPortableID(ctx, row.PortableID)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve geounit %q: %w", row.PortableID, err)
		}
		if unit == nil {
			return nil, fmt.Errorf("index file references unknown geounit %q", row.PortableID)
		}
		groups[row.DistrictID] = append(groups[row.DistrictID], unit.ID)
		if _, ok := members[row.DistrictID]; !ok {
			members[row.DistrictID] = row.NumMembers
		}
	}

	districtIDs := make([]int, 0, len(groups))
	for id := range groups {
		districtIDs = append(districtIDs, id)
	}
	sort.Ints(districtIDs)

	for _, districtID := range districtIDs {
		if districtID == models.UnassignedDistrictID {
			// Units stay in Unassigned by default.
			continue
		}
		current, err := s.plans.GetPlan(ctx, p.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to reload plan: %w", err)
		}
		if _, err := s.addGeounits(ctx, p.ID, districtID, groups[districtID], current.Version, members[districtID]); err != nil {
			return nil, fmt.Errorf("failed to assign district %d: %w", districtID, err)
		}
	}

	return s.plans.GetPlan(ctx, p.ID)
}

// parseIndex reads an index file, accepting the 3-column and the
// 6-column community layout.
func parseIndex(r io.Reader) ([]indexRow, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	var rows []indexRow
	line := 0
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("failed to read index row %d: %w", line, err)
		}
		if len(record) != 3 && len(record) != 6 {
			return nil, fmt.Errorf("index row %d has %d columns, want 3 or 6", line, len(record))
		}
		districtID, err := strconv.Atoi(record[1])
		if err != nil {
			return nil, fmt.Errorf("index row %d has invalid district id %q: %w", line, record[1], err)
		}
		numMembers, err := strconv.Atoi(record[2])
		if err != nil {
			return nil, fmt.Errorf("index row %d has invalid member count %q: %w", line, record[2], err)
		}
		row := indexRow{
			PortableID: record[0],
			DistrictID: districtID,
			NumMembers: numMembers,
		}
		if len(record) == 6 {
			row.Label, row.Types, row.Comments = record[3], record[4], record[5]
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// assignedDistrict returns the district whose geometry holds the unit,
// preferring real districts over the Unassigned placeholder.
func assignedDistrict(districts []models.District, unit geo.Geometry) *models.District {
	var unassigned *models.District
	for i := range districts {
		d := &districts[i]
		if d.Geom.IsEmpty() {
			continue
		}
		if !geo.WithinRegion(d.Geom.Geom, unit) {
			continue
		}
		if d.IsUnassigned() {
			unassigned = d
			continue
		}
		return d
	}
	return unassigned
}
