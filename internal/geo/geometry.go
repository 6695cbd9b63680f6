package geo

import (
	"fmt"
	"math"

	"github.com/peterstace/simplefeatures/geom"
)

// Geometry is the planar geometry value used throughout the engine.
// It aliases the simplefeatures geometry so callers never import the
// library directly; every operation the engine needs goes through this
// package. All coordinates are assumed to be in a fixed planar
// projection, so areas and lengths are in the projection's native units.
type Geometry = geom.Geometry

// Point is a bare 2D coordinate.
type Point struct {
	X float64
	Y float64
}

// Empty returns the empty geometry.
func Empty() Geometry {
	return geom.Geometry{}
}

// FromWKT parses a WKT string into a Geometry.
func FromWKT(wkt string) (Geometry, error) {
	g, err := geom.UnmarshalWKT(wkt)
	if err != nil {
		return Geometry{}, fmt.Errorf("failed to parse WKT: %w", err)
	}
	return g, nil
}

// MustFromWKT parses a WKT string and panics on failure. Intended for
// fixtures and tests where the input is a constant.
func MustFromWKT(wkt string) Geometry {
	g, err := FromWKT(wkt)
	if err != nil {
		panic(err)
	}
	return g
}

// ToWKT renders a Geometry as WKT.
func ToWKT(g Geometry) string {
	return g.AsText()
}

// FromGeoJSON parses a GeoJSON geometry document.
func FromGeoJSON(data []byte) (Geometry, error) {
	g, err := geom.UnmarshalGeoJSON(data)
	if err != nil {
		return Geometry{}, fmt.Errorf("failed to parse GeoJSON: %w", err)
	}
	return g, nil
}

// ToGeoJSON renders a Geometry as a GeoJSON geometry document.
func ToGeoJSON(g Geometry) ([]byte, error) {
	data, err := g.MarshalJSON()
	if err != nil {
		return nil, fmt.Errorf("failed to marshal GeoJSON: %w", err)
	}
	return data, nil
}

// IsEmpty reports whether g contains no points.
func IsEmpty(g Geometry) bool {
	return g.IsEmpty()
}

// Area returns the area of g in native projection units.
func Area(g Geometry) float64 {
	return g.Area()
}

// Perimeter returns the sum of the lengths of every ring (exterior and
// interior) of every polygon part of g. Computed as an explicit ring
// walk so the value is always the full boundary length regardless of
// how the underlying library defines "length" for areal geometries.
func Perimeter(g Geometry) float64 {
	var total float64
	forEachRing(g, func(seq geom.Sequence) {
		n := seq.Length()
		for i := 1; i < n; i++ {
			a := seq.GetXY(i - 1)
			b := seq.GetXY(i)
			total += math.Hypot(b.X-a.X, b.Y-a.Y)
		}
	})
	return total
}

// Union returns the union of a and b.
func Union(a, b Geometry) (Geometry, error) {
	if a.IsEmpty() {
		return b, nil
	}
	if b.IsEmpty() {
		return a, nil
	}
	g, err := geom.Union(a, b)
	if err != nil {
		return Geometry{}, fmt.Errorf("union failed: %w", err)
	}
	return g, nil
}

// UnionAll folds Union over a list of geometries.
func UnionAll(gs []Geometry) (Geometry, error) {
	out := Empty()
	for _, g := range gs {
		var err error
		out, err = Union(out, g)
		if err != nil {
			return Geometry{}, err
		}
	}
	return out, nil
}

// Difference returns the part of a not covered by b.
func Difference(a, b Geometry) (Geometry, error) {
	if a.IsEmpty() || b.IsEmpty() {
		return a, nil
	}
	g, err := geom.Difference(a, b)
	if err != nil {
		return Geometry{}, fmt.Errorf("difference failed: %w", err)
	}
	return g, nil
}

// Intersection returns the shared region of a and b.
func Intersection(a, b Geometry) (Geometry, error) {
	if a.IsEmpty() || b.IsEmpty() {
		return Empty(), nil
	}
	g, err := geom.Intersection(a, b)
	if err != nil {
		return Geometry{}, fmt.Errorf("intersection failed: %w", err)
	}
	return g, nil
}

// CoveredFraction returns the fraction of g's area covered by
// container, in [0, 1]. Zero-area inputs yield 0.
func CoveredFraction(container, g Geometry) float64 {
	ga := Area(g)
	if ga == 0 {
		return 0
	}
	inter, err := Intersection(container, g)
	if err != nil {
		return 0
	}
	return Area(inter) / ga
}

// WithinRegion reports whether unit belongs to region. Strict
// containment is the normal case; the area-fraction fallback absorbs
// floating-point seams left by repeated union/difference passes.
func WithinRegion(region, unit Geometry) bool {
	if IsEmpty(region) || IsEmpty(unit) {
		return false
	}
	if ok, err := Contains(region, unit); err == nil && ok {
		return true
	}
	return CoveredFraction(region, unit) > 0.5
}

// ConvexHull returns the convex hull of g.
func ConvexHull(g Geometry) Geometry {
	return g.ConvexHull()
}

// Touches reports whether a and b share boundary points but no
// interior points.
func Touches(a, b Geometry) (bool, error) {
	if a.IsEmpty() || b.IsEmpty() {
		return false, nil
	}
	ok, err := geom.Touches(a, b)
	if err != nil {
		return false, fmt.Errorf("touches predicate failed: %w", err)
	}
	return ok, nil
}

// Contains reports whether b lies entirely within a.
func Contains(a, b Geometry) (bool, error) {
	if a.IsEmpty() || b.IsEmpty() {
		return false, nil
	}
	ok, err := geom.Contains(a, b)
	if err != nil {
		return false, fmt.Errorf("contains predicate failed: %w", err)
	}
	return ok, nil
}

// Intersects reports whether a and b share any point.
func Intersects(a, b Geometry) bool {
	if a.IsEmpty() || b.IsEmpty() {
		return false
	}
	return geom.Intersects(a, b)
}

// Centroid returns the centroid of g. ok is false for empty input.
func Centroid(g Geometry) (Point, bool) {
	xy, ok := g.Centroid().XY()
	if !ok {
		return Point{}, false
	}
	return Point{X: xy.X, Y: xy.Y}, true
}

// Simplify reduces the vertex count of g using the given tolerance.
// On failure the original geometry is returned so callers always have
// something renderable.
func Simplify(g Geometry, tolerance float64) Geometry {
	out, err := g.Simplify(tolerance)
	if err != nil {
		return g
	}
	return out
}

// BoundingBox returns the axis-aligned bounds of g. ok is false for
// empty input.
func BoundingBox(g Geometry) (minX, minY, maxX, maxY float64, ok bool) {
	minX, minY = math.Inf(1), math.Inf(1)
	maxX, maxY = math.Inf(-1), math.Inf(-1)
	forEachRing(g, func(seq geom.Sequence) {
		n := seq.Length()
		for i := 0; i < n; i++ {
			xy := seq.GetXY(i)
			minX = math.Min(minX, xy.X)
			minY = math.Min(minY, xy.Y)
			maxX = math.Max(maxX, xy.X)
			maxY = math.Max(maxY, xy.Y)
			ok = true
		}
	})
	if !ok {
		return 0, 0, 0, 0, false
	}
	return minX, minY, maxX, maxY, true
}

// Parts splits g into its disjoint polygon parts. A plain polygon is a
// single part; non-areal members of a collection are ignored.
func Parts(g Geometry) []Geometry {
	var parts []Geometry
	switch g.Type() {
	case geom.TypePolygon:
		if !g.IsEmpty() {
			parts = append(parts, g)
		}
	case geom.TypeMultiPolygon:
		mp := g.MustAsMultiPolygon()
		for i := 0; i < mp.NumPolygons(); i++ {
			p := mp.PolygonN(i)
			if !p.IsEmpty() {
				parts = append(parts, p.AsGeometry())
			}
		}
	case geom.TypeGeometryCollection:
		gc := g.MustAsGeometryCollection()
		for i := 0; i < gc.NumGeometries(); i++ {
			parts = append(parts, Parts(gc.GeometryN(i))...)
		}
	}
	return parts
}

// HullPoints returns the vertices of the convex hull of g, without the
// closing duplicate. Degenerate hulls (points, lines) yield whatever
// vertices they have.
func HullPoints(g Geometry) []Point {
	hull := g.ConvexHull()
	var pts []Point
	seen := make(map[Point]bool)
	forEachSequence(hull, func(seq geom.Sequence) {
		n := seq.Length()
		for i := 0; i < n; i++ {
			xy := seq.GetXY(i)
			p := Point{X: xy.X, Y: xy.Y}
			if !seen[p] {
				seen[p] = true
				pts = append(pts, p)
			}
		}
	})
	return pts
}

// forEachRing walks every ring of every polygon part of g.
func forEachRing(g Geometry, fn func(geom.Sequence)) {
	switch g.Type() {
	case geom.TypePolygon:
		walkPolygonRings(g.MustAsPolygon(), fn)
	case geom.TypeMultiPolygon:
		mp := g.MustAsMultiPolygon()
		for i := 0; i < mp.NumPolygons(); i++ {
			walkPolygonRings(mp.PolygonN(i), fn)
		}
	case geom.TypeGeometryCollection:
		gc := g.MustAsGeometryCollection()
		for i := 0; i < gc.NumGeometries(); i++ {
			forEachRing(gc.GeometryN(i), fn)
		}
	}
}

func walkPolygonRings(p geom.Polygon, fn func(geom.Sequence)) {
	fn(p.ExteriorRing().Coordinates())
	for i := 0; i < p.NumInteriorRings(); i++ {
		fn(p.InteriorRingN(i).Coordinates())
	}
}

// forEachSequence walks the coordinate sequences of any geometry type,
// including non-areal ones. Used for hull vertex extraction where the
// hull may collapse to a line or point.
func forEachSequence(g Geometry, fn func(geom.Sequence)) {
	switch g.Type() {
	case geom.TypePoint:
		if xy, ok := g.MustAsPoint().XY(); ok {
			fn(geom.NewSequence([]float64{xy.X, xy.Y}, geom.DimXY))
		}
	case geom.TypeLineString:
		fn(g.MustAsLineString().Coordinates())
	case geom.TypeMultiPoint:
		mp := g.MustAsMultiPoint()
		for i := 0; i < mp.NumPoints(); i++ {
			if xy, ok := mp.PointN(i).XY(); ok {
				fn(geom.NewSequence([]float64{xy.X, xy.Y}, geom.DimXY))
			}
		}
	default:
		forEachRing(g, fn)
	}
}
