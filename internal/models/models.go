package models

import (
	"time"

	"github.com/google/uuid"
)

// UnassignedDistrictID is the reserved logical id of the district that
// holds every geounit not otherwise assigned. Every plan has exactly
// one, and it is excluded from most plan-level scores.
const UnassignedDistrictID = 0

// Subject is a named numeric measure attached to geounits, such as
// total population or a party's vote count. Subjects are immutable once
// characteristics reference them, apart from a version bump on bulk
// redefinition.
type Subject struct {
	Name        string  `gorm:"size:50;uniqueIndex;not null;column:name" json:"name"`
	DisplayName string  `gorm:"size:200;column:display_name" json:"displayName"`
	// PercentageDenominator names another subject used to normalize
	// this one into a percentage; nil for plain counts.
	PercentageDenominator *string `gorm:"size:50;column:percentage_denominator" json:"percentageDenominator,omitempty"`
	IsDisplayed           bool    `gorm:"column:is_displayed" json:"isDisplayed"`
	SortKey               int     `gorm:"column:sort_key" json:"sortKey"`
	Version               int     `gorm:"column:version" json:"version"`
	ID                    uint    `gorm:"primaryKey" json:"id"`
}

// TableName specifies the table name for the subjects table.
func (Subject) TableName() string {
	return "subjects"
}

// Geounit is an atomic or aggregated geographic unit with fixed
// geometry, created once at import time and never mutated.
type Geounit struct {
	CreatedAt  time.Time    `gorm:"column:created_at" json:"createdAt"`
	Name       string       `gorm:"size:200;column:name" json:"name"`
	PortableID string       `gorm:"size:50;uniqueIndex;not null;column:portable_id" json:"portableId"`
	Geom       MultiPolygon `gorm:"type:geometry(MultiPolygon);not null;column:geom" json:"geometry"`
	SimpleGeom MultiPolygon `gorm:"type:geometry(MultiPolygon);column:simple_geom" json:"-"`
	GeolevelID int          `gorm:"index;not null;column:geolevel_id" json:"geolevelId"`
	ID         uuid.UUID    `gorm:"type:uuid;primaryKey" json:"id"`
}

// TableName specifies the table name for the geounits table.
func (Geounit) TableName() string {
	return "geounits"
}

// Characteristic is one (subject, geounit) raw value, plus the
// precomputed percentage when the subject has a denominator. Immutable,
// created at import time.
type Characteristic struct {
	Subject    string    `gorm:"size:50;index;not null;column:subject" json:"subject"`
	Number     float64   `gorm:"not null;column:number" json:"number"`
	Percentage float64   `gorm:"column:percentage" json:"percentage"`
	GeounitID  uuid.UUID `gorm:"type:uuid;index;not null;column:geounit_id" json:"geounitId"`
	ID         uint      `gorm:"primaryKey" json:"id"`
}

// TableName specifies the table name for the characteristics table.
func (Characteristic) TableName() string {
	return "characteristics"
}

// LegislativeBody constrains the plans drawn for it: how many districts
// it seats and what multi-member arrangements it allows.
type LegislativeBody struct {
	Name                string `gorm:"size:200;not null;column:name" json:"name"`
	MaxDistricts        int    `gorm:"not null;column:max_districts" json:"maxDistricts"`
	MultiMembersAllowed bool   `gorm:"column:multi_members_allowed" json:"multiMembersAllowed"`
	MinMultiDistricts   int    `gorm:"column:min_multi_districts" json:"minMultiDistricts"`
	MaxMultiDistricts   int    `gorm:"column:max_multi_districts" json:"maxMultiDistricts"`
	MinDistrictMembers  int    `gorm:"column:min_district_members" json:"minDistrictMembers"`
	MaxDistrictMembers  int    `gorm:"column:max_district_members" json:"maxDistrictMembers"`
	MinPlanMembers      int    `gorm:"column:min_plan_members" json:"minPlanMembers"`
	MaxPlanMembers      int    `gorm:"column:max_plan_members" json:"maxPlanMembers"`
	ID                  uint   `gorm:"primaryKey" json:"id"`
}

// TableName specifies the table name for the legislative_bodies table.
func (LegislativeBody) TableName() string {
	return "legislative_bodies"
}

// Plan is a full set of districts for a legislative body, owned by a
// user. The version counter increases whenever any district changes;
// the districts at version V are, per district_id, the rows with the
// highest version not exceeding V.
type Plan struct {
	CreatedAt         time.Time `gorm:"column:created_at" json:"createdAt"`
	UpdatedAt         time.Time `gorm:"column:updated_at" json:"updatedAt"`
	Name              string    `gorm:"size:200;index;not null;column:name" json:"name"`
	Version           int       `gorm:"not null;column:version" json:"version"`
	LegislativeBodyID uint      `gorm:"index;not null;column:legislative_body_id" json:"legislativeBodyId"`
	IsCommunity       bool      `gorm:"column:is_community" json:"isCommunity"`
	OwnerID           uuid.UUID `gorm:"type:uuid;index;column:owner_id" json:"ownerId"`
	ID                uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
}

// TableName specifies the table name for the plans table.
func (Plan) TableName() string {
	return "plans"
}

// District is one versioned region of a plan. Rows are append-only:
// every edit inserts a new row at the next version and leaves the old
// row as history, so committed versions are immutable and concurrent
// readers never observe a half-written district.
type District struct {
	CreatedAt  time.Time    `gorm:"column:created_at" json:"createdAt"`
	Name       string       `gorm:"size:200;column:name" json:"name"`
	Geom       MultiPolygon `gorm:"type:geometry(MultiPolygon);column:geom" json:"geometry"`
	SimpleGeom MultiPolygon `gorm:"type:geometry(MultiPolygon);column:simple_geom" json:"-"`
	DistrictID int          `gorm:"index;not null;column:district_id" json:"districtId"`
	Version    int          `gorm:"index;not null;column:version" json:"version"`
	NumMembers int          `gorm:"not null;default:1;column:num_members" json:"numMembers"`
	Locked     bool         `gorm:"column:is_locked" json:"isLocked"`
	PlanID     uuid.UUID    `gorm:"type:uuid;index;not null;column:plan_id" json:"planId"`
	UID        uuid.UUID    `gorm:"type:uuid;primaryKey;column:uid" json:"uid"`
}

// TableName specifies the table name for the districts table.
func (District) TableName() string {
	return "districts"
}

// IsUnassigned reports whether this is the plan's reserved holding
// district for unassigned geounits.
func (d *District) IsUnassigned() bool {
	return d.DistrictID == UnassignedDistrictID
}

// ComputedCharacteristic caches the aggregate of a subject's values
// across the base geounits of one district version. Maintained by
// incremental delta during edits and rebuilt from scratch by
// reaggregation.
type ComputedCharacteristic struct {
	Subject     string    `gorm:"size:50;index;not null;column:subject" json:"subject"`
	Number      float64   `gorm:"not null;column:number" json:"number"`
	Percentage  float64   `gorm:"column:percentage" json:"percentage"`
	DistrictUID uuid.UUID `gorm:"type:uuid;index;not null;column:district_uid" json:"districtUid"`
	ID          uint      `gorm:"primaryKey" json:"id"`
}

// TableName specifies the table name for the computed_characteristics table.
func (ComputedCharacteristic) TableName() string {
	return "computed_characteristics"
}

// ContiguityOverride declares that two geounits count as adjacent for
// contiguity testing regardless of actual geometric contact.
type ContiguityOverride struct {
	OverrideGeounitID  uuid.UUID `gorm:"type:uuid;index;not null;column:override_geounit_id" json:"overrideGeounitId"`
	ConnectToGeounitID uuid.UUID `gorm:"type:uuid;not null;column:connect_to_geounit_id" json:"connectToGeounitId"`
	ID                 uint      `gorm:"primaryKey" json:"id"`
}

// TableName specifies the table name for the contiguity_overrides table.
func (ContiguityOverride) TableName() string {
	return "contiguity_overrides"
}

// ScoreArgumentType enumerates how a score argument value is
// interpreted.
type ScoreArgumentType string

const (
	// ArgLiteral binds the value as-is (parsed as a number when it
	// looks numeric).
	ArgLiteral ScoreArgumentType = "literal"
	// ArgSubject binds a subject name resolved against the evaluated
	// district's computed characteristics.
	ArgSubject ScoreArgumentType = "subject"
	// ArgScore binds the result of another score function, evaluated
	// first in the same district or plan context.
	ArgScore ScoreArgumentType = "score"
)

// ScoreFunction is a named, reusable computation: a calculator plus its
// bound arguments, marked as operating on plans or on districts.
type ScoreFunction struct {
	Name        string          `gorm:"size:100;uniqueIndex;not null;column:name" json:"name"`
	Calculator  string          `gorm:"size:100;not null;column:calculator" json:"calculator"`
	Label       string          `gorm:"size:200;column:label" json:"label"`
	Description string          `gorm:"type:text;column:description" json:"description,omitempty"`
	Arguments   []ScoreArgument `gorm:"foreignKey:FunctionID;constraint:OnDelete:CASCADE" json:"arguments"`
	IsPlanScore bool            `gorm:"column:is_plan_score" json:"isPlanScore"`
	ID          uint            `gorm:"primaryKey" json:"id"`
}

// TableName specifies the table name for the score_functions table.
func (ScoreFunction) TableName() string {
	return "score_functions"
}

// ScoreArgument is one bound argument of a score function.
type ScoreArgument struct {
	Name       string            `gorm:"size:50;not null;column:name" json:"name"`
	Type       ScoreArgumentType `gorm:"size:10;not null;column:type" json:"type"`
	Value      string            `gorm:"size:200;not null;column:value" json:"value"`
	FunctionID uint              `gorm:"index;not null;column:function_id" json:"functionId"`
	ID         uint              `gorm:"primaryKey" json:"id"`
}

// TableName specifies the table name for the score_arguments table.
func (ScoreArgument) TableName() string {
	return "score_arguments"
}
