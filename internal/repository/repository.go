package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/stwalsh4118/redraw/internal/geo"
	"github.com/stwalsh4118/redraw/internal/models"
)

// PlanEdit is one atomic mutation of a plan: the bumped plan version
// together with every new district-version row and its computed
// characteristics. Commits are all-or-nothing; existing district rows
// are never touched.
type PlanEdit struct {
	PlanID          uuid.UUID
	NewVersion      int
	Districts       []models.District
	Characteristics map[uuid.UUID][]models.ComputedCharacteristic
}

// PlanRepository defines data access for plans and their versioned
// districts. Implementations must keep district rows append-only:
// the only way geometry history changes is through CommitEdit.
type PlanRepository interface {
	// GetPlan returns the plan with the given id, or nil, nil when it
	// does not exist.
	GetPlan(ctx context.Context, id uuid.UUID) (*models.Plan, error)

	// CreatePlan stores a new plan together with its initial district
	// rows (at minimum the Unassigned district at version 0).
	CreatePlan(ctx context.Context, plan *models.Plan, districts []models.District) error

	// ListPlans returns every plan for the given legislative body.
	ListPlans(ctx context.Context, legislativeBodyID uint) ([]models.Plan, error)

	// DistrictsAtVersion resolves the live district set of a plan at a
	// version: for every district_id ever used, the row with the
	// highest version not exceeding the requested one.
	DistrictsAtVersion(ctx context.Context, planID uuid.UUID, version int) ([]models.District, error)

	// CommitEdit atomically inserts the edit's district-version rows
	// and characteristics and advances the plan version. No partial
	// state may ever be visible.
	CommitEdit(ctx context.Context, edit *PlanEdit) error

	// ComputedCharacteristics returns the cached subject aggregates of
	// one district-version row.
	ComputedCharacteristics(ctx context.Context, districtUID uuid.UUID) ([]models.ComputedCharacteristic, error)

	// ReplaceComputedCharacteristics swaps out the cached aggregates of
	// one district-version row. This is the reaggregation repair path;
	// it never touches geometry.
	ReplaceComputedCharacteristics(ctx context.Context, districtUID uuid.UUID, chars []models.ComputedCharacteristic) error
}

// ReferenceRepository defines read access to the immutable imported
// data: subjects, geounits, their characteristics, legislative bodies
// and contiguity overrides.
type ReferenceRepository interface {
	// GetSubject returns the subject with the given name, or nil, nil
	// when it does not exist.
	GetSubject(ctx context.Context, name string) (*models.Subject, error)

	// ListSubjects returns all subjects ordered by sort key.
	ListSubjects(ctx context.Context) ([]models.Subject, error)

	// GetLegislativeBody returns the body with the given id, or
	// nil, nil when it does not exist.
	GetLegislativeBody(ctx context.Context, id uint) (*models.LegislativeBody, error)

	// GeounitsByIDs returns the geounits with the given ids.
	GeounitsByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Geounit, error)

	// GeounitByPortableID returns the geounit with the given portable
	// id, or nil, nil when it does not exist.
	GeounitByPortableID(ctx context.Context, portableID string) (*models.Geounit, error)

	// GeounitsWithin returns the geounits of the given geolevel whose
	// geometry lies within g.
	GeounitsWithin(ctx context.Context, g geo.Geometry, geolevelID int) ([]models.Geounit, error)

	// GeounitsAtLevel returns every geounit of the given geolevel.
	GeounitsAtLevel(ctx context.Context, geolevelID int) ([]models.Geounit, error)

	// CharacteristicSums sums characteristic values per subject across
	// the given geounits.
	CharacteristicSums(ctx context.Context, geounitIDs []uuid.UUID) (map[string]float64, error)

	// ContiguityOverrides returns all configured adjacency exceptions.
	ContiguityOverrides(ctx context.Context) ([]models.ContiguityOverride, error)
}

// ScoreFunctionRepository defines access to the score-function
// configuration graph.
type ScoreFunctionRepository interface {
	// GetScoreFunction returns the function with the given name
	// (arguments included), or nil, nil when it does not exist.
	GetScoreFunction(ctx context.Context, name string) (*models.ScoreFunction, error)

	// ListScoreFunctions returns every configured score function.
	ListScoreFunctions(ctx context.Context) ([]models.ScoreFunction, error)
}
