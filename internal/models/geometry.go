package models

import (
	"database/sql/driver"
	"fmt"

	"github.com/stwalsh4118/redraw/internal/geo"
)

// MultiPolygon is the database and JSON bridge for district and geounit
// geometry. The engine computes on geo.Geometry; this wrapper only
// handles GeoJSON conversion at the storage and API boundaries.
// PostGIS columns are read with ST_AsGeoJSON and written through
// ST_GeomFromGeoJSON, so both directions speak GeoJSON.
type MultiPolygon struct {
	Geom geo.Geometry
	SRID int // Spatial Reference ID of the planar projection
}

// NewMultiPolygon wraps an engine geometry for storage.
func NewMultiPolygon(g geo.Geometry) MultiPolygon {
	return MultiPolygon{Geom: g}
}

// IsEmpty reports whether the wrapped geometry has no points.
func (mp MultiPolygon) IsEmpty() bool {
	return geo.IsEmpty(mp.Geom)
}

// Scan implements sql.Scanner for reading geometry from the database.
func (mp *MultiPolygon) Scan(value interface{}) error {
	if value == nil {
		mp.Geom = geo.Empty()
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return fmt.Errorf("failed to scan MultiPolygon: expected []byte or string, got %T", value)
	}
	if len(bytes) == 0 {
		mp.Geom = geo.Empty()
		return nil
	}

	g, err := geo.FromGeoJSON(bytes)
	if err != nil {
		return fmt.Errorf("failed to unmarshal multipolygon geometry: %w", err)
	}

	mp.Geom = g
	return nil
}

// Value implements driver.Valuer for writing geometry to the database.
// Returns a GeoJSON string for use with ST_GeomFromGeoJSON.
func (mp MultiPolygon) Value() (driver.Value, error) {
	if geo.IsEmpty(mp.Geom) {
		return nil, nil
	}
	data, err := geo.ToGeoJSON(mp.Geom)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal multipolygon to GeoJSON: %w", err)
	}
	return string(data), nil
}

// MarshalJSON implements json.Marshaler for API responses.
func (mp MultiPolygon) MarshalJSON() ([]byte, error) {
	if geo.IsEmpty(mp.Geom) {
		return []byte("null"), nil
	}
	return geo.ToGeoJSON(mp.Geom)
}

// UnmarshalJSON implements json.Unmarshaler for parsing GeoJSON input.
func (mp *MultiPolygon) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		mp.Geom = geo.Empty()
		return nil
	}
	g, err := geo.FromGeoJSON(data)
	if err != nil {
		return fmt.Errorf("failed to unmarshal multipolygon: %w", err)
	}
	mp.Geom = g
	return nil
}
