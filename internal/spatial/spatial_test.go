package spatial

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testCentroids = []Centroid{
	{Zip: "10001", Lat: 40.75, Lon: -73.99},  // Manhattan
	{Zip: "94105", Lat: 37.79, Lon: -122.39}, // San Francisco
	{Zip: "60601", Lat: 41.89, Lon: -87.62},  // Chicago
	{Zip: "99501", Lat: 61.22, Lon: -149.85}, // Anchorage
	{Zip: "96799", Lat: -14.27, Lon: -170.7}, // Pago Pago
}

func TestSelectAll(t *testing.T) {
	zips, err := Select(All{}, testCentroids)
	require.NoError(t, err)
	assert.Equal(t, []string{"10001", "94105", "60601", "99501", "96799"}, zips)
}

func TestSelectRect(t *testing.T) {
	// Northeast box: includes Manhattan, excludes everything else.
	rect := NewRect(Point{Lat: 39, Lon: -76}, Point{Lat: 42, Lon: -72})
	zips, err := Select(rect, testCentroids)
	require.NoError(t, err)
	assert.Equal(t, []string{"10001"}, zips)
}

func TestSelectRectCornerOrder(t *testing.T) {
	a := NewRect(Point{Lat: 39, Lon: -76}, Point{Lat: 42, Lon: -72})
	b := NewRect(Point{Lat: 42, Lon: -72}, Point{Lat: 39, Lon: -76})
	assert.Equal(t, a, b)
}

func TestBBoxEdgeRule(t *testing.T) {
	box := BBox{South: 40, West: -74, North: 41, East: -73}

	// South and west edges inclusive.
	assert.True(t, box.Contains(40, -74))
	// North and east edges exclusive.
	assert.False(t, box.Contains(41, -73.5))
	assert.False(t, box.Contains(40.5, -73))
	// Strict interior.
	assert.True(t, box.Contains(40.5, -73.5))
	// Strict exterior.
	assert.False(t, box.Contains(39.999, -73.5))
}

func TestBBoxAntimeridianWrap(t *testing.T) {
	// A box across the Pacific: from 170°E east to -160°W.
	box := BBox{South: -20, West: 170, North: 70, East: -160}

	zips, err := Select(box, testCentroids)
	require.NoError(t, err)
	// Pago Pago (-170.7) falls inside the wrapped interval; Anchorage
	// (-149.85) is east of the east edge.
	assert.Equal(t, []string{"96799"}, zips)
}

func TestBBoxValidate(t *testing.T) {
	err := BBox{South: 50, North: 40}.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "south")

	nan := BBox{South: nanValue(), North: 1}
	require.Error(t, nan.Validate())
}

func TestSelectPolygon(t *testing.T) {
	// Triangle covering the lower Manhattan area.
	poly := Polygon{Outer: []Point{
		{Lat: 40, Lon: -75},
		{Lat: 42, Lon: -74},
		{Lat: 40, Lon: -72},
	}}

	zips, err := Select(poly, testCentroids)
	require.NoError(t, err)
	assert.Equal(t, []string{"10001"}, zips)
}

func TestPolygonNonConvex(t *testing.T) {
	// A "C" shape: the notch between the arms is outside.
	poly := Polygon{Outer: []Point{
		{Lat: 0, Lon: 0},
		{Lat: 10, Lon: 0},
		{Lat: 10, Lon: 10},
		{Lat: 8, Lon: 10},
		{Lat: 8, Lon: 2},
		{Lat: 2, Lon: 2},
		{Lat: 2, Lon: 10},
		{Lat: 0, Lon: 10},
	}}
	require.NoError(t, poly.Validate())

	assert.True(t, poly.Contains(5, 1))   // inside the spine
	assert.False(t, poly.Contains(5, 5))  // inside the notch
	assert.True(t, poly.Contains(9, 5))   // upper arm
	assert.False(t, poly.Contains(11, 5)) // fully outside
}

func TestPolygonWithHole(t *testing.T) {
	poly := Polygon{
		Outer: []Point{{Lat: 0, Lon: 0}, {Lat: 10, Lon: 0}, {Lat: 10, Lon: 10}, {Lat: 0, Lon: 10}},
		Holes: [][]Point{{{Lat: 4, Lon: 4}, {Lat: 6, Lon: 4}, {Lat: 6, Lon: 6}, {Lat: 4, Lon: 6}}},
	}
	require.NoError(t, poly.Validate())

	assert.True(t, poly.Contains(2, 2))
	assert.False(t, poly.Contains(5, 5))
}

func TestPolygonTooFewVertices(t *testing.T) {
	poly := Polygon{Outer: []Point{{Lat: 0, Lon: 0}, {Lat: 1, Lon: 1}}}
	_, err := Select(poly, testCentroids)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "at least 3")
}

func TestPolygonSelfIntersecting(t *testing.T) {
	// Bowtie: edges cross in the middle.
	poly := Polygon{Outer: []Point{
		{Lat: 0, Lon: 0},
		{Lat: 10, Lon: 10},
		{Lat: 0, Lon: 10},
		{Lat: 10, Lon: 0},
	}}
	err := poly.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "self-intersecting")
}

func TestPolygonNonFiniteVertex(t *testing.T) {
	poly := Polygon{Outer: []Point{{Lat: 0, Lon: 0}, {Lat: nanValue(), Lon: 1}, {Lat: 1, Lon: 1}}}
	require.Error(t, poly.Validate())
}

func TestPolygonBoundaryConsistency(t *testing.T) {
	// Points on a shared edge of two adjacent squares must land in
	// exactly one of them under the parity rule.
	left := Polygon{Outer: []Point{{Lat: 0, Lon: 0}, {Lat: 10, Lon: 0}, {Lat: 10, Lon: 5}, {Lat: 0, Lon: 5}}}
	right := Polygon{Outer: []Point{{Lat: 0, Lon: 5}, {Lat: 10, Lon: 5}, {Lat: 10, Lon: 10}, {Lat: 0, Lon: 10}}}

	for _, lat := range []float64{1, 2.5, 7.3} {
		inLeft := left.Contains(lat, 5)
		inRight := right.Contains(lat, 5)
		assert.NotEqual(t, inLeft, inRight, "lat %v on shared edge must be in exactly one square", lat)
	}
}

func TestSelectEmptySelection(t *testing.T) {
	rect := NewRect(Point{Lat: -60, Lon: 0}, Point{Lat: -50, Lon: 10})
	zips, err := Select(rect, testCentroids)
	require.NoError(t, err)
	assert.Empty(t, zips)
}

func TestSelectDeterministic(t *testing.T) {
	poly := Polygon{Outer: []Point{
		{Lat: 30, Lon: -130},
		{Lat: 50, Lon: -130},
		{Lat: 50, Lon: -60},
		{Lat: 30, Lon: -60},
	}}
	first, err := Select(poly, testCentroids)
	require.NoError(t, err)
	for range 5 {
		again, err := Select(poly, testCentroids)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestSelectFullUniverseScale(t *testing.T) {
	centroids := make([]Centroid, 0, 30000)
	for i := range 30000 {
		centroids = append(centroids, Centroid{
			Zip: fmt.Sprintf("%05d", i),
			Lat: 25 + float64(i%500)*0.05,
			Lon: -125 + float64(i/500)*1.0,
		})
	}

	box := BBox{South: 30, West: -100, North: 40, East: -90}
	zips, err := Select(box, centroids)
	require.NoError(t, err)
	assert.NotEmpty(t, zips)
	for _, zip := range zips {
		assert.Len(t, zip, 5)
	}
}

func nanValue() float64 {
	var zero float64
	return zero / zero
}
