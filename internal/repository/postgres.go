package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stwalsh4118/redraw/internal/database"
	"github.com/stwalsh4118/redraw/internal/geo"
	"github.com/stwalsh4118/redraw/internal/models"
)

// PostgresStore implements every repository interface against a
// PostGIS-enabled PostgreSQL database. Geometry crosses the wire as
// GeoJSON in both directions (ST_AsGeoJSON / ST_GeomFromGeoJSON); all
// geometric computation happens in the engine, the database only
// stores and filters.
type PostgresStore struct {
	db *database.Database
}

// NewPostgresStore creates a store backed by the given connection pool.
func NewPostgresStore(db *database.Database) *PostgresStore {
	return &PostgresStore{db: db}
}

const districtColumns = `
	uid, plan_id, district_id, name, version, num_members, is_locked,
	ST_AsGeoJSON(geom), ST_AsGeoJSON(simple_geom), created_at`

func scanDistrict(row pgx.Row) (*models.District, error) {
	var d models.District
	var geomJSON, simpleJSON []byte
	err := row.Scan(
		&d.UID,
		&d.PlanID,
		&d.DistrictID,
		&d.Name,
		&d.Version,
		&d.NumMembers,
		&d.Locked,
		&geomJSON,
		&simpleJSON,
		&d.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := d.Geom.Scan(geomJSON); err != nil {
		return nil, fmt.Errorf("failed to parse geometry for district %s: %w", d.UID, err)
	}
	if err := d.SimpleGeom.Scan(simpleJSON); err != nil {
		return nil, fmt.Errorf("failed to parse simplified geometry for district %s: %w", d.UID, err)
	}
	return &d, nil
}

func (s *PostgresStore) GetPlan(ctx context.Context, id uuid.UUID) (*models.Plan, error) {
	query := `
		SELECT id, name, owner_id, legislative_body_id, version, is_community, created_at, updated_at
		FROM plans
		WHERE id = $1
	`
	var p models.Plan
	err := s.db.Pool.QueryRow(ctx, query, id).Scan(
		&p.ID, &p.Name, &p.OwnerID, &p.LegislativeBodyID,
		&p.Version, &p.IsCommunity, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query plan %s: %w", id, err)
	}
	return &p, nil
}

func (s *PostgresStore) CreatePlan(ctx context.Context, plan *models.Plan, districts []models.District) error {
	tx, err := s.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO plans (id, name, owner_id, legislative_body_id, version, is_community, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, now(), now())
	`, plan.ID, plan.Name, plan.OwnerID, plan.LegislativeBodyID, plan.Version, plan.IsCommunity)
	if err != nil {
		return fmt.Errorf("failed to insert plan %s: %w", plan.ID, err)
	}

	for i := range districts {
		if err := insertDistrict(ctx, tx, &districts[i]); err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit plan %s: %w", plan.ID, err)
	}
	return nil
}

func (s *PostgresStore) ListPlans(ctx context.Context, legislativeBodyID uint) ([]models.Plan, error) {
	query := `
		SELECT id, name, owner_id, legislative_body_id, version, is_community, created_at, updated_at
		FROM plans
		WHERE $1 = 0 OR legislative_body_id = $1
		ORDER BY name
	`
	rows, err := s.db.Pool.Query(ctx, query, legislativeBodyID)
	if err != nil {
		return nil, fmt.Errorf("failed to query plans: %w", err)
	}
	defer rows.Close()

	var plans []models.Plan
	for rows.Next() {
		var p models.Plan
		if err := rows.Scan(&p.ID, &p.Name, &p.OwnerID, &p.LegislativeBodyID,
			&p.Version, &p.IsCommunity, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan plan row: %w", err)
		}
		plans = append(plans, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating plan rows: %w", err)
	}
	return plans, nil
}

// DistrictsAtVersion resolves the live district set with a
// DISTINCT ON max-version-<=-N query, which is the storage-level form
// of the copy-on-write version resolution rule.
func (s *PostgresStore) DistrictsAtVersion(ctx context.Context, planID uuid.UUID, version int) ([]models.District, error) {
	query := `
		SELECT DISTINCT ON (district_id) ` + districtColumns + `
		FROM districts
		WHERE plan_id = $1 AND version <= $2
		ORDER BY district_id, version DESC
	`
	rows, err := s.db.Pool.Query(ctx, query, planID, version)
	if err != nil {
		return nil, fmt.Errorf("failed to query districts of plan %s at version %d: %w", planID, version, err)
	}
	defer rows.Close()

	var districts []models.District
	for rows.Next() {
		d, err := scanDistrict(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan district row: %w", err)
		}
		districts = append(districts, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating district rows: %w", err)
	}
	return districts, nil
}

func (s *PostgresStore) CommitEdit(ctx context.Context, edit *PlanEdit) error {
	tx, err := s.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	for i := range edit.Districts {
		if err := insertDistrict(ctx, tx, &edit.Districts[i]); err != nil {
			return err
		}
	}
	for uid, chars := range edit.Characteristics {
		if err := insertComputed(ctx, tx, uid, chars); err != nil {
			return err
		}
	}

	_, err = tx.Exec(ctx, `UPDATE plans SET version = $2, updated_at = now() WHERE id = $1`,
		edit.PlanID, edit.NewVersion)
	if err != nil {
		return fmt.Errorf("failed to advance version of plan %s: %w", edit.PlanID, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit edit of plan %s: %w", edit.PlanID, err)
	}
	return nil
}

func insertDistrict(ctx context.Context, tx pgx.Tx, d *models.District) error {
	geomVal, err := d.Geom.Value()
	if err != nil {
		return fmt.Errorf("failed to encode geometry for district %s: %w", d.UID, err)
	}
	simpleVal, err := d.SimpleGeom.Value()
	if err != nil {
		return fmt.Errorf("failed to encode simplified geometry for district %s: %w", d.UID, err)
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO districts (uid, plan_id, district_id, name, version, num_members, is_locked, geom, simple_geom, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, ST_GeomFromGeoJSON($8), ST_GeomFromGeoJSON($9), now())
	`, d.UID, d.PlanID, d.DistrictID, d.Name, d.Version, d.NumMembers, d.Locked, geomVal, simpleVal)
	if err != nil {
		return fmt.Errorf("failed to insert district version %s: %w", d.UID, err)
	}
	return nil
}

func insertComputed(ctx context.Context, tx pgx.Tx, uid uuid.UUID, chars []models.ComputedCharacteristic) error {
	_, err := tx.Exec(ctx, `DELETE FROM computed_characteristics WHERE district_uid = $1`, uid)
	if err != nil {
		return fmt.Errorf("failed to clear characteristics of district %s: %w", uid, err)
	}
	for _, ch := range chars {
		_, err := tx.Exec(ctx, `
			INSERT INTO computed_characteristics (district_uid, subject, number, percentage)
			VALUES ($1, $2, $3, $4)
		`, uid, ch.Subject, ch.Number, ch.Percentage)
		if err != nil {
			return fmt.Errorf("failed to insert characteristic %s of district %s: %w", ch.Subject, uid, err)
		}
	}
	return nil
}

func (s *PostgresStore) ComputedCharacteristics(ctx context.Context, districtUID uuid.UUID) ([]models.ComputedCharacteristic, error) {
	query := `
		SELECT id, district_uid, subject, number, percentage
		FROM computed_characteristics
		WHERE district_uid = $1
		ORDER BY subject
	`
	rows, err := s.db.Pool.Query(ctx, query, districtUID)
	if err != nil {
		return nil, fmt.Errorf("failed to query characteristics of district %s: %w", districtUID, err)
	}
	defer rows.Close()

	var chars []models.ComputedCharacteristic
	for rows.Next() {
		var ch models.ComputedCharacteristic
		if err := rows.Scan(&ch.ID, &ch.DistrictUID, &ch.Subject, &ch.Number, &ch.Percentage); err != nil {
			return nil, fmt.Errorf("failed to scan characteristic row: %w", err)
		}
		chars = append(chars, ch)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating characteristic rows: %w", err)
	}
	return chars, nil
}

func (s *PostgresStore) ReplaceComputedCharacteristics(ctx context.Context, districtUID uuid.UUID, chars []models.ComputedCharacteristic) error {
	tx, err := s.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := insertComputed(ctx, tx, districtUID, chars); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit characteristics of district %s: %w", districtUID, err)
	}
	return nil
}

func (s *PostgresStore) GetSubject(ctx context.Context, name string) (*models.Subject, error) {
	query := `
		SELECT id, name, display_name, percentage_denominator, is_displayed, sort_key, version
		FROM subjects
		WHERE name = $1
	`
	var subject models.Subject
	err := s.db.Pool.QueryRow(ctx, query, name).Scan(
		&subject.ID, &subject.Name, &subject.DisplayName,
		&subject.PercentageDenominator, &subject.IsDisplayed,
		&subject.SortKey, &subject.Version,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query subject %q: %w", name, err)
	}
	return &subject, nil
}

func (s *PostgresStore) ListSubjects(ctx context.Context) ([]models.Subject, error) {
	query := `
		SELECT id, name, display_name, percentage_denominator, is_displayed, sort_key, version
		FROM subjects
		ORDER BY sort_key
	`
	rows, err := s.db.Pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query subjects: %w", err)
	}
	defer rows.Close()

	var subjects []models.Subject
	for rows.Next() {
		var subject models.Subject
		if err := rows.Scan(&subject.ID, &subject.Name, &subject.DisplayName,
			&subject.PercentageDenominator, &subject.IsDisplayed,
			&subject.SortKey, &subject.Version); err != nil {
			return nil, fmt.Errorf("failed to scan subject row: %w", err)
		}
		subjects = append(subjects, subject)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating subject rows: %w", err)
	}
	return subjects, nil
}

func (s *PostgresStore) GetLegislativeBody(ctx context.Context, id uint) (*models.LegislativeBody, error) {
	query := `
		SELECT id, name, max_districts, multi_members_allowed,
		       min_multi_districts, max_multi_districts,
		       min_district_members, max_district_members,
		       min_plan_members, max_plan_members
		FROM legislative_bodies
		WHERE id = $1
	`
	var body models.LegislativeBody
	err := s.db.Pool.QueryRow(ctx, query, id).Scan(
		&body.ID, &body.Name, &body.MaxDistricts, &body.MultiMembersAllowed,
		&body.MinMultiDistricts, &body.MaxMultiDistricts,
		&body.MinDistrictMembers, &body.MaxDistrictMembers,
		&body.MinPlanMembers, &body.MaxPlanMembers,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query legislative body %d: %w", id, err)
	}
	return &body, nil
}

const geounitColumns = `
	id, portable_id, name, geolevel_id,
	ST_AsGeoJSON(geom), ST_AsGeoJSON(simple_geom), created_at`

func scanGeounit(row pgx.Row) (*models.Geounit, error) {
	var unit models.Geounit
	var geomJSON, simpleJSON []byte
	err := row.Scan(
		&unit.ID, &unit.PortableID, &unit.Name, &unit.GeolevelID,
		&geomJSON, &simpleJSON, &unit.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := unit.Geom.Scan(geomJSON); err != nil {
		return nil, fmt.Errorf("failed to parse geometry for geounit %s: %w", unit.ID, err)
	}
	if err := unit.SimpleGeom.Scan(simpleJSON); err != nil {
		return nil, fmt.Errorf("failed to parse simplified geometry for geounit %s: %w", unit.ID, err)
	}
	return &unit, nil
}

func (s *PostgresStore) GeounitsByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Geounit, error) {
	query := `
		SELECT ` + geounitColumns + `
		FROM geounits
		WHERE id = ANY($1)
		ORDER BY portable_id
	`
	return s.queryGeounits(ctx, query, ids)
}

func (s *PostgresStore) GeounitByPortableID(ctx context.Context, portableID string) (*models.Geounit, error) {
	query := `
		SELECT ` + geounitColumns + `
		FROM geounits
		WHERE portable_id = $1
	`
	unit, err := scanGeounit(s.db.Pool.QueryRow(ctx, query, portableID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query geounit %q: %w", portableID, err)
	}
	return unit, nil
}

// GeounitsWithin pushes the containment filter down to PostGIS; the
// covered-by test matches the engine-side membership rule used by the
// in-memory store.
func (s *PostgresStore) GeounitsWithin(ctx context.Context, g geo.Geometry, geolevelID int) ([]models.Geounit, error) {
	geoJSON, err := geo.ToGeoJSON(g)
	if err != nil {
		return nil, fmt.Errorf("failed to encode region geometry: %w", err)
	}
	query := `
		SELECT ` + geounitColumns + `
		FROM geounits
		WHERE geolevel_id = $2
		  AND ST_CoveredBy(geom, ST_GeomFromGeoJSON($1))
		ORDER BY portable_id
	`
	return s.queryGeounits(ctx, query, string(geoJSON), geolevelID)
}

func (s *PostgresStore) GeounitsAtLevel(ctx context.Context, geolevelID int) ([]models.Geounit, error) {
	query := `
		SELECT ` + geounitColumns + `
		FROM geounits
		WHERE geolevel_id = $1
		ORDER BY portable_id
	`
	return s.queryGeounits(ctx, query, geolevelID)
}

func (s *PostgresStore) queryGeounits(ctx context.Context, query string, args ...interface{}) ([]models.Geounit, error) {
	rows, err := s.db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query geounits: %w", err)
	}
	defer rows.Close()

	var units []models.Geounit
	for rows.Next() {
		unit, err := scanGeounit(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan geounit row: %w", err)
		}
		units = append(units, *unit)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating geounit rows: %w", err)
	}
	return units, nil
}

func (s *PostgresStore) CharacteristicSums(ctx context.Context, geounitIDs []uuid.UUID) (map[string]float64, error) {
	query := `
		SELECT subject, COALESCE(SUM(number), 0)
		FROM characteristics
		WHERE geounit_id = ANY($1)
		GROUP BY subject
	`
	rows, err := s.db.Pool.Query(ctx, query, geounitIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to query characteristic sums: %w", err)
	}
	defer rows.Close()

	sums := make(map[string]float64)
	for rows.Next() {
		var subject string
		var total float64
		if err := rows.Scan(&subject, &total); err != nil {
			return nil, fmt.Errorf("failed to scan characteristic sum row: %w", err)
		}
		sums[subject] = total
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating characteristic sum rows: %w", err)
	}
	return sums, nil
}

func (s *PostgresStore) ContiguityOverrides(ctx context.Context) ([]models.ContiguityOverride, error) {
	query := `
		SELECT id, override_geounit_id, connect_to_geounit_id
		FROM contiguity_overrides
		ORDER BY id
	`
	rows, err := s.db.Pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query contiguity overrides: %w", err)
	}
	defer rows.Close()

	var overrides []models.ContiguityOverride
	for rows.Next() {
		var ov models.ContiguityOverride
		if err := rows.Scan(&ov.ID, &ov.OverrideGeounitID, &ov.ConnectToGeounitID); err != nil {
			return nil, fmt.Errorf("failed to scan contiguity override row: %w", err)
		}
		overrides = append(overrides, ov)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating contiguity override rows: %w", err)
	}
	return overrides, nil
}

func (s *PostgresStore) GetScoreFunction(ctx context.Context, name string) (*models.ScoreFunction, error) {
	query := `
		SELECT id, name, calculator, label, description, is_plan_score
		FROM score_functions
		WHERE name = $1
	`
	var fn models.ScoreFunction
	err := s.db.Pool.QueryRow(ctx, query, name).Scan(
		&fn.ID, &fn.Name, &fn.Calculator, &fn.Label, &fn.Description, &fn.IsPlanScore,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query score function %q: %w", name, err)
	}

	args, err := s.scoreArguments(ctx, fn.ID)
	if err != nil {
		return nil, err
	}
	fn.Arguments = args
	return &fn, nil
}

func (s *PostgresStore) ListScoreFunctions(ctx context.Context) ([]models.ScoreFunction, error) {
	query := `
		SELECT id, name, calculator, label, description, is_plan_score
		FROM score_functions
		ORDER BY name
	`
	rows, err := s.db.Pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query score functions: %w", err)
	}
	defer rows.Close()

	var fns []models.ScoreFunction
	for rows.Next() {
		var fn models.ScoreFunction
		if err := rows.Scan(&fn.ID, &fn.Name, &fn.Calculator, &fn.Label,
			&fn.Description, &fn.IsPlanScore); err != nil {
			return nil, fmt.Errorf("failed to scan score function row: %w", err)
		}
		fns = append(fns, fn)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating score function rows: %w", err)
	}

	for i := range fns {
		args, err := s.scoreArguments(ctx, fns[i].ID)
		if err != nil {
			return nil, err
		}
		fns[i].Arguments = args
	}
	return fns, nil
}

func (s *PostgresStore) scoreArguments(ctx context.Context, functionID uint) ([]models.ScoreArgument, error) {
	query := `
		SELECT id, function_id, name, type, value
		FROM score_arguments
		WHERE function_id = $1
		ORDER BY id
	`
	rows, err := s.db.Pool.Query(ctx, query, functionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query arguments of score function %d: %w", functionID, err)
	}
	defer rows.Close()

	var args []models.ScoreArgument
	for rows.Next() {
		var arg models.ScoreArgument
		if err := rows.Scan(&arg.ID, &arg.FunctionID, &arg.Name, &arg.Type, &arg.Value); err != nil {
			return nil, fmt.Errorf("failed to scan score argument row: %w", err)
		}
		args = append(args, arg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating score argument rows: %w", err)
	}
	return args, nil
}
