package geo

import (
	"math"
	"math/rand"
	"time"
)

// Disk is a circle described by its center and radius. It is the
// result type of MinEnclosingDisk and feeds the Roeck compactness
// measure (district area over enclosing-circle area).
type Disk struct {
	Center Point
	Radius float64
}

// containsEps absorbs floating-point noise when testing disk
// membership during the incremental construction.
const containsEps = 1e-9

// Contains reports whether p lies on or within the disk boundary.
func (d Disk) Contains(p Point) bool {
	if d.Radius < 0 {
		return false
	}
	dist := math.Hypot(p.X-d.Center.X, p.Y-d.Center.Y)
	return dist <= d.Radius+containsEps*(1+d.Radius)
}

// Area returns the disk's area.
func (d Disk) Area() float64 {
	if d.Radius < 0 {
		return 0
	}
	return math.Pi * d.Radius * d.Radius
}

// MinEnclosingDisk computes the smallest circle containing every input
// point, using the randomized incremental construction (expected linear
// time). The input is not modified.
//
// The randomization uses a generator created for this call, never the
// process-global source, so concurrent computations cannot disturb each
// other. The first point is kept in place as a pivot and the remainder
// is shuffled uniformly; a fresh seed per call is what gives the
// expected-linear-time bound.
func MinEnclosingDisk(points []Point) Disk {
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	return minEnclosingDisk(points, rng)
}

func minEnclosingDisk(points []Point, rng *rand.Rand) Disk {
	if len(points) == 0 {
		return Disk{Radius: -1}
	}
	pts := make([]Point, len(points))
	copy(pts, points)
	if len(pts) > 2 {
		rng.Shuffle(len(pts)-1, func(i, j int) {
			pts[i+1], pts[j+1] = pts[j+1], pts[i+1]
		})
	}
	return welzl(pts, len(pts), nil)
}

// welzl computes the minimum disk of pts[:n] given that every point in
// boundary must lie on the result's boundary. At most three boundary
// points are ever pinned; three determine the circle outright.
func welzl(pts []Point, n int, boundary []Point) Disk {
	if n == 0 || len(boundary) == 3 {
		return diskFromBoundary(boundary)
	}
	p := pts[n-1]
	d := welzl(pts, n-1, boundary)
	if d.Contains(p) {
		return d
	}
	// p is outside the disk of the remaining points, so it must sit on
	// the boundary of the true answer.
	return welzl(pts, n-1, append(boundary, p))
}

// diskFromBoundary builds the unique disk through up to three pinned
// points.
func diskFromBoundary(boundary []Point) Disk {
	switch len(boundary) {
	case 0:
		return Disk{Radius: -1}
	case 1:
		return Disk{Center: boundary[0], Radius: 0}
	case 2:
		return diskFromTwo(boundary[0], boundary[1])
	default:
		return diskFromThree(boundary[0], boundary[1], boundary[2])
	}
}

// diskFromTwo returns the circle with the segment ab as diameter.
func diskFromTwo(a, b Point) Disk {
	center := Point{X: (a.X + b.X) / 2, Y: (a.Y + b.Y) / 2}
	radius := math.Hypot(b.X-a.X, b.Y-a.Y) / 2
	return Disk{Center: center, Radius: radius}
}

// diskFromThree returns the circumscribed circle of a, b, c.
//
// The circumcenter is found by intersecting the perpendicular bisectors
// of ab and bc, which divides by zero when a chord is vertical (shared
// x) or the first chord is horizontal (shared y). Those configurations
// are not errors; the triple is reordered among its six permutations
// until a non-singular ordering is found. If none exists the points are
// collinear and the circle degenerates to the two-point construction
// over the extreme pair.
func diskFromThree(a, b, c Point) Disk {
	perms := [6][3]Point{
		{a, b, c}, {a, c, b},
		{b, a, c}, {b, c, a},
		{c, a, b}, {c, b, a},
	}
	for _, perm := range perms {
		if d, ok := circumcircle(perm[0], perm[1], perm[2]); ok {
			return d
		}
	}
	// Collinear: fall back to the diameter circle over the two extreme
	// points, which still encloses the middle one.
	p, q := extremePair(a, b, c)
	return diskFromTwo(p, q)
}

// circumcircle attempts the slope-based circumcenter construction for
// the ordering (a, b, c). ok is false for singular configurations.
func circumcircle(a, b, c Point) (Disk, bool) {
	if b.X == a.X || c.X == b.X {
		return Disk{}, false
	}
	ma := (b.Y - a.Y) / (b.X - a.X)
	mb := (c.Y - b.Y) / (c.X - b.X)
	if ma == mb || ma == 0 {
		return Disk{}, false
	}
	cx := (ma*mb*(a.Y-c.Y) + mb*(a.X+b.X) - ma*(b.X+c.X)) / (2 * (mb - ma))
	cy := -(cx-(a.X+b.X)/2)/ma + (a.Y+b.Y)/2
	center := Point{X: cx, Y: cy}
	radius := math.Hypot(a.X-cx, a.Y-cy)
	return Disk{Center: center, Radius: radius}, true
}

// extremePair returns the two of the three points that are farthest
// apart.
func extremePair(a, b, c Point) (Point, Point) {
	dab := math.Hypot(b.X-a.X, b.Y-a.Y)
	dac := math.Hypot(c.X-a.X, c.Y-a.Y)
	dbc := math.Hypot(c.X-b.X, c.Y-b.Y)
	switch {
	case dab >= dac && dab >= dbc:
		return a, b
	case dac >= dbc:
		return a, c
	default:
		return b, c
	}
}
