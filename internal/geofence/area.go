package geofence

import (
	"github.com/rotisserie/eris"
	geom "github.com/twpayne/go-geom"
)

// ReferenceArea is the fixed geographic zone alert distances are measured
// against: either a single center point or a polygon boundary. It is
// loaded once at process start and never mutated.
type ReferenceArea struct {
	Name string

	// Exactly one of the two shapes is set.
	centerLat float64
	centerLng float64
	ring      *geom.LinearRing
}

// NewPointArea builds a ReferenceArea around a center point.
func NewPointArea(name string, lat, lng float64) *ReferenceArea {
	return &ReferenceArea{Name: name, centerLat: lat, centerLng: lng}
}

// NewPolygonArea builds a ReferenceArea from an ordered list of (lat, lng)
// vertices. The ring is implicitly closed; at least three vertices are
// required.
func NewPolygonArea(name string, vertices [][2]float64) (*ReferenceArea, error) {
	if len(vertices) < 3 {
		return nil, eris.Errorf("geofence: polygon area %q needs at least 3 vertices, got %d", name, len(vertices))
	}

	flat := make([]float64, 0, len(vertices)*2)
	for _, v := range vertices {
		// go-geom XY order: X is longitude, Y is latitude.
		flat = append(flat, v[1], v[0])
	}
	ring := geom.NewLinearRingFlat(geom.XY, flat)
	return &ReferenceArea{Name: name, ring: ring}, nil
}

// IsPolygon reports whether the area is polygon-shaped.
func (a *ReferenceArea) IsPolygon() bool {
	return a.ring != nil
}

// Ring returns the polygon ring, or nil for a point area.
func (a *ReferenceArea) Ring() *geom.LinearRing {
	return a.ring
}

// Center returns the center point of a point area. For a polygon area it
// returns the ring centroid, which serve-mode map output uses as a label
// anchor.
func (a *ReferenceArea) Center() (lat, lng float64) {
	if a.ring == nil {
		return a.centerLat, a.centerLng
	}
	n := a.ring.NumCoords()
	var sumLat, sumLng float64
	for i := range n {
		c := a.ring.Coord(i)
		sumLng += c.X()
		sumLat += c.Y()
	}
	return sumLat / float64(n), sumLng / float64(n)
}

// Distance returns the distance in meters from the given point to the
// area: haversine distance to the center for a point area, distance to the
// boundary (0 if inside) for a polygon area.
func (a *ReferenceArea) Distance(lat, lng float64) float64 {
	if a.ring != nil {
		return DistanceToRing(lat, lng, a.ring)
	}
	return Haversine(lat, lng, a.centerLat, a.centerLng)
}
