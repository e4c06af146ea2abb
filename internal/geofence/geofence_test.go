package geofence

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	geom "github.com/twpayne/go-geom"
)

const (
	menloOaksLat = 37.448
	menloOaksLng = -122.177
)

func TestHaversine_SamePoint(t *testing.T) {
	assert.InDelta(t, 0, Haversine(menloOaksLat, menloOaksLng, menloOaksLat, menloOaksLng), 0.01)
}

func TestHaversine_Symmetric(t *testing.T) {
	a := Haversine(37.448, -122.177, 37.459, -122.150)
	b := Haversine(37.459, -122.150, 37.448, -122.177)
	assert.InDelta(t, a, b, 1e-9)
}

func TestHaversine_KnownDistance(t *testing.T) {
	// Menlo Oaks to downtown Menlo Park: roughly 2.5 km.
	dist := Haversine(37.448, -122.177, 37.459, -122.150)
	assert.Greater(t, dist, 2000.0)
	assert.Less(t, dist, 3000.0)
}

func TestHaversine_OneDegreeLatitude(t *testing.T) {
	// One degree of latitude is ~111.2 km at the mean Earth radius.
	dist := Haversine(37.0, -122.0, 38.0, -122.0)
	assert.InDelta(t, 111195, dist, 200)
}

// squareRing returns a closed square ring of the given half-size (degrees)
// around (lat, lng).
func squareRing(lat, lng, half float64) *geom.LinearRing {
	return geom.NewLinearRingFlat(geom.XY, []float64{
		lng - half, lat - half,
		lng + half, lat - half,
		lng + half, lat + half,
		lng - half, lat + half,
		lng - half, lat - half,
	})
}

func TestPointInRing(t *testing.T) {
	ring := squareRing(menloOaksLat, menloOaksLng, 0.01)

	tests := []struct {
		name     string
		lat, lng float64
		expected bool
	}{
		{"center", menloOaksLat, menloOaksLng, true},
		{"inside near edge", menloOaksLat + 0.009, menloOaksLng, true},
		{"outside north", menloOaksLat + 0.02, menloOaksLng, false},
		{"outside west", menloOaksLat, menloOaksLng - 0.02, false},
		{"far outside", 37.77, -122.42, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, PointInRing(tt.lat, tt.lng, ring))
		})
	}
}

func TestPointInRing_Degenerate(t *testing.T) {
	line := geom.NewLinearRingFlat(geom.XY, []float64{
		-122.18, 37.44,
		-122.17, 37.45,
	})
	assert.False(t, PointInRing(37.445, -122.175, line))
}

func TestDistanceToRing_InsideIsZero(t *testing.T) {
	ring := squareRing(menloOaksLat, menloOaksLng, 0.01)
	assert.Equal(t, 0.0, DistanceToRing(menloOaksLat, menloOaksLng, ring))
}

func TestDistanceToRing_BoundaryVertexIsZero(t *testing.T) {
	// Documented edge rule: a point exactly on the boundary gets distance
	// 0 whether or not the ray cast counts it as inside.
	ring := squareRing(menloOaksLat, menloOaksLng, 0.01)
	d := DistanceToRing(menloOaksLat-0.01, menloOaksLng-0.01, ring)
	assert.InDelta(t, 0, d, 0.01)
}

func TestDistanceToRing_MonotonicOutside(t *testing.T) {
	ring := squareRing(menloOaksLat, menloOaksLng, 0.01)

	var prev float64
	for i, offset := range []float64{0.02, 0.05, 0.1, 0.3} {
		d := DistanceToRing(menloOaksLat+offset, menloOaksLng, ring)
		assert.Greater(t, d, 0.0)
		if i > 0 {
			assert.Greater(t, d, prev, "distance should grow with offset %f", offset)
		}
		prev = d
	}
}

func TestDistanceToRing_NearestEdgeNotVertex(t *testing.T) {
	// Point due north of the square's top edge midpoint: the segment
	// projection must beat the nearest-vertex distance.
	ring := squareRing(menloOaksLat, menloOaksLng, 0.01)
	edge := DistanceToRing(menloOaksLat+0.02, menloOaksLng, ring)
	vertex := Haversine(menloOaksLat+0.02, menloOaksLng, menloOaksLat+0.01, menloOaksLng+0.01)
	assert.Less(t, edge, vertex)

	// And it should be close to the plain north-south distance to the edge.
	straight := Haversine(menloOaksLat+0.02, menloOaksLng, menloOaksLat+0.01, menloOaksLng)
	assert.InDelta(t, straight, edge, straight*0.01)
}

func TestReferenceArea_Point(t *testing.T) {
	area := NewPointArea("menlo-oaks", menloOaksLat, menloOaksLng)
	assert.False(t, area.IsPolygon())

	lat, lng := area.Center()
	assert.Equal(t, menloOaksLat, lat)
	assert.Equal(t, menloOaksLng, lng)

	assert.InDelta(t, 0, area.Distance(menloOaksLat, menloOaksLng), 0.01)
	assert.Greater(t, area.Distance(37.77, -122.42), 4828.0)
}

func TestReferenceArea_Polygon(t *testing.T) {
	area, err := NewPolygonArea("menlo-oaks", [][2]float64{
		{menloOaksLat - 0.01, menloOaksLng - 0.01},
		{menloOaksLat - 0.01, menloOaksLng + 0.01},
		{menloOaksLat + 0.01, menloOaksLng + 0.01},
		{menloOaksLat + 0.01, menloOaksLng - 0.01},
	})
	require.NoError(t, err)
	assert.True(t, area.IsPolygon())

	// Centroid of the square is its center, and it is inside.
	lat, lng := area.Center()
	assert.InDelta(t, menloOaksLat, lat, 1e-9)
	assert.InDelta(t, menloOaksLng, lng, 1e-9)
	assert.Equal(t, 0.0, area.Distance(lat, lng))

	assert.Greater(t, area.Distance(37.77, -122.42), 0.0)
}

func TestNewPolygonArea_TooFewVertices(t *testing.T) {
	_, err := NewPolygonArea("bad", [][2]float64{{37.0, -122.0}, {37.1, -122.0}})
	require.Error(t, err)
}
