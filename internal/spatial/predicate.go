// Package spatial selects ZIP centroids by geographic predicate: the whole
// universe, a viewport bounding box, a rectangle, or a drawn polygon.
// Containment is centroid-only; boundary geometry is never intersected.
package spatial

import (
	"math"

	"github.com/rotisserie/eris"
)

// Point is a geographic coordinate.
type Point struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Centroid is a ZIP's representative point for spatial tests.
type Centroid struct {
	Zip string
	Lat float64
	Lon float64
}

// Predicate is a geographic selection criterion. Implementations are the
// only predicate variants; the interface is closed.
type Predicate interface {
	// Validate reports whether the predicate geometry is usable.
	Validate() error
	// Contains tests a single centroid coordinate.
	Contains(lat, lon float64) bool
}

// All selects every centroid.
type All struct{}

// Validate always succeeds for All.
func (All) Validate() error { return nil }

// Contains always reports true for All.
func (All) Contains(lat, lon float64) bool { return true }

// BBox is a latitude/longitude bounding box, used for viewport selection.
// A box with West > East wraps the antimeridian.
//
// Edge rule: the south and west edges are inclusive, the north and east
// edges exclusive, so adjacent boxes tile without double-counting.
type BBox struct {
	South float64 `json:"south"`
	West  float64 `json:"west"`
	North float64 `json:"north"`
	East  float64 `json:"east"`
}

// NewRect builds a BBox from two opposite corners in either order.
// Rectangles never wrap the antimeridian; use BBox directly for that.
func NewRect(a, b Point) BBox {
	return BBox{
		South: math.Min(a.Lat, b.Lat),
		North: math.Max(a.Lat, b.Lat),
		West:  math.Min(a.Lon, b.Lon),
		East:  math.Max(a.Lon, b.Lon),
	}
}

// Validate checks the box for NaN coordinates and inverted latitudes.
func (b BBox) Validate() error {
	for _, v := range []float64{b.South, b.West, b.North, b.East} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return eris.New("spatial: bounding box has non-finite coordinate")
		}
	}
	if b.South > b.North {
		return eris.Errorf("spatial: bounding box south %v above north %v", b.South, b.North)
	}
	return nil
}

// Contains tests a centroid against the box, handling antimeridian wrap.
func (b BBox) Contains(lat, lon float64) bool {
	if lat < b.South || lat >= b.North {
		return false
	}
	if b.West <= b.East {
		return lon >= b.West && lon < b.East
	}
	// Wrapping box: the interval [West, 180] ∪ [-180, East).
	return lon >= b.West || lon < b.East
}

// Polygon is a user-drawn boundary: one outer ring and optional holes.
// Rings are implicitly closed; the first vertex need not be repeated.
type Polygon struct {
	Outer []Point   `json:"outer"`
	Holes [][]Point `json:"holes,omitempty"`
}

// Validate checks ring arity, coordinate sanity, and self-intersection.
func (p Polygon) Validate() error {
	if err := validateRing(p.Outer, "outer ring"); err != nil {
		return err
	}
	for i, hole := range p.Holes {
		if err := validateRing(hole, "hole"); err != nil {
			return eris.Wrapf(err, "spatial: hole %d", i)
		}
	}
	return nil
}

// Contains applies the even-odd (ray casting) rule to the outer ring and
// subtracts holes. Points exactly on an edge follow the parity result.
func (p Polygon) Contains(lat, lon float64) bool {
	if !ringContains(p.Outer, lat, lon) {
		return false
	}
	for _, hole := range p.Holes {
		if ringContains(hole, lat, lon) {
			return false
		}
	}
	return true
}

func validateRing(ring []Point, what string) error {
	if len(ring) < 3 {
		return eris.Errorf("spatial: %s has %d vertices, need at least 3", what, len(ring))
	}
	for _, pt := range ring {
		if math.IsNaN(pt.Lat) || math.IsNaN(pt.Lon) || math.IsInf(pt.Lat, 0) || math.IsInf(pt.Lon, 0) {
			return eris.Errorf("spatial: %s has non-finite vertex", what)
		}
	}
	if selfIntersects(ring) {
		return eris.Errorf("spatial: %s is self-intersecting", what)
	}
	return nil
}

// ringContains implements the even-odd ray casting rule over an implicitly
// closed ring, matching the map client's hit test.
func ringContains(ring []Point, lat, lon float64) bool {
	inside := false
	for i, j := 0, len(ring)-1; i < len(ring); j, i = i, i+1 {
		yi, xi := ring[i].Lat, ring[i].Lon
		yj, xj := ring[j].Lat, ring[j].Lon

		if (xi > lon) != (xj > lon) &&
			lat < (yj-yi)*(lon-xi)/(xj-xi)+yi {
			inside = !inside
		}
	}
	return inside
}

// selfIntersects reports whether any two non-adjacent edges of the ring
// properly cross. Shared vertices between adjacent edges are allowed.
func selfIntersects(ring []Point) bool {
	n := len(ring)
	for i := 0; i < n; i++ {
		a1 := ring[i]
		a2 := ring[(i+1)%n]
		for j := i + 1; j < n; j++ {
			// Skip adjacent edges (sharing an endpoint), including the
			// first/last pair of the closed ring.
			if j == i+1 || (i == 0 && j == n-1) {
				continue
			}
			b1 := ring[j]
			b2 := ring[(j+1)%n]
			if segmentsCross(a1, a2, b1, b2) {
				return true
			}
		}
	}
	return false
}

// segmentsCross reports whether segments a1-a2 and b1-b2 properly intersect.
func segmentsCross(a1, a2, b1, b2 Point) bool {
	d1 := cross(b1, b2, a1)
	d2 := cross(b1, b2, a2)
	d3 := cross(a1, a2, b1)
	d4 := cross(a1, a2, b2)

	return ((d1 > 0 && d2 < 0) || (d1 < 0 && d2 > 0)) &&
		((d3 > 0 && d4 < 0) || (d3 < 0 && d4 > 0))
}

func cross(o, a, b Point) float64 {
	return (a.Lon-o.Lon)*(b.Lat-o.Lat) - (a.Lat-o.Lat)*(b.Lon-o.Lon)
}
