// Package contiguity decides whether a district's polygon parts form a
// single connected region, honoring manually configured adjacency
// exceptions for real-world links such as bridges and ferry routes.
package contiguity

import (
	"github.com/stwalsh4118/redraw/internal/geo"
)

// Override declares that two geounits are treated as touching even
// though their geometries are disjoint. Edges are directional: the
// override unit must sit in a not-yet-reached part and the connect-to
// unit in the reached region for the edge to apply. A reciprocal
// exception needs its own Override.
type Override struct {
	OverrideUnit  geo.Geometry
	ConnectToUnit geo.Geometry
}

// Evaluate reports whether the district geometry is contiguous.
//
// A district with zero parts is vacuously contiguous, and one with a
// single part trivially so. Otherwise a reached region is seeded with
// the first part and grown in sweeps: a remaining part joins when it
// touches the reached region (only when allowSinglePoint is set; parts
// sharing more than a point are assumed already merged by upstream
// union logic) or when an unconsumed override links a geounit
// overlapping the part to a geounit overlapping the reached region.
// Each override edge is consumed at most once per call. A sweep that
// makes no progress ends the search as discontiguous.
func Evaluate(district geo.Geometry, overrides []Override, allowSinglePoint bool) bool {
	parts := geo.Parts(district)
	if len(parts) <= 1 {
		return true
	}

	// Work on a private copy so consumption never leaks across calls.
	remaining := make([]geo.Geometry, len(parts)-1)
	copy(remaining, parts[1:])
	reached := []geo.Geometry{parts[0]}
	unused := make([]Override, len(overrides))
	copy(unused, overrides)

	for len(remaining) > 0 {
		progressed := false
		next := remaining[:0]
		for _, part := range remaining {
			joined := false
			if allowSinglePoint && touchesAny(part, reached) {
				joined = true
			}
			if !joined {
				if idx := matchingOverride(part, reached, unused); idx >= 0 {
					unused = append(unused[:idx], unused[idx+1:]...)
					joined = true
				}
			}
			if joined {
				reached = append(reached, part)
				progressed = true
			} else {
				next = append(next, part)
			}
		}
		remaining = next
		if !progressed {
			return false
		}
	}
	return true
}

func touchesAny(part geo.Geometry, reached []geo.Geometry) bool {
	for _, r := range reached {
		ok, err := geo.Touches(part, r)
		if err == nil && ok {
			return true
		}
	}
	return false
}

// matchingOverride returns the index of the first unused override whose
// override unit overlaps part and whose connect-to unit overlaps the
// reached region, or -1.
func matchingOverride(part geo.Geometry, reached []geo.Geometry, unused []Override) int {
	for i, ov := range unused {
		if !geo.Intersects(part, ov.OverrideUnit) {
			continue
		}
		for _, r := range reached {
			if geo.Intersects(r, ov.ConnectToUnit) {
				return i
			}
		}
	}
	return -1
}
