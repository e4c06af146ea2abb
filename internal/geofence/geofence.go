// Package geofence provides the geometric primitives for alert distance
// checks: great-circle distance, point-in-polygon, and minimum distance
// from a point to a polygon boundary.
package geofence

import (
	"math"

	geom "github.com/twpayne/go-geom"
)

// earthRadiusM is the mean Earth radius in meters.
const earthRadiusM = 6371000

// Haversine returns the great-circle distance in meters between two WGS84
// points. Symmetric; zero for identical points. Inputs here are always
// within a few hundred kilometers, so no special handling near antipodes.
func Haversine(lat1, lng1, lat2, lng2 float64) float64 {
	phi1 := radians(lat1)
	phi2 := radians(lat2)
	dPhi := radians(lat2 - lat1)
	dLam := radians(lng2 - lng1)

	sinPhi := math.Sin(dPhi / 2)
	sinLam := math.Sin(dLam / 2)
	a := sinPhi*sinPhi + math.Cos(phi1)*math.Cos(phi2)*sinLam*sinLam
	return earthRadiusM * 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

// PointInRing reports whether the point lies inside the ring using the
// even-odd ray-casting test. The ring is treated as implicitly closed.
// Coordinates follow the go-geom XY convention: X is longitude, Y is
// latitude. Points exactly on the boundary may be classified either way by
// this test alone; DistanceToRing treats them as distance 0 regardless.
func PointInRing(lat, lng float64, ring *geom.LinearRing) bool {
	n := ring.NumCoords()
	if n < 3 {
		return false
	}

	inside := false
	for i, j := 0, n-1; i < n; j, i = i, i+1 {
		ci := ring.Coord(i)
		cj := ring.Coord(j)
		xi, yi := ci.X(), ci.Y()
		xj, yj := cj.X(), cj.Y()

		if (yi > lat) != (yj > lat) &&
			lng < (xj-xi)*(lat-yi)/(yj-yi)+xi {
			inside = !inside
		}
	}
	return inside
}

// DistanceToRing returns the distance in meters from the point to the ring
// boundary, or 0 if the point is inside. Outside points get the minimum
// distance over all boundary segments; the per-segment distance projects
// the point onto the segment in a local equirectangular frame, which is
// accurate to well under 1% at the sub-300 km scales this pipeline sees.
func DistanceToRing(lat, lng float64, ring *geom.LinearRing) float64 {
	if PointInRing(lat, lng, ring) {
		return 0
	}

	n := ring.NumCoords()
	minDist := math.Inf(1)
	for i := range n {
		ci := ring.Coord(i)
		cj := ring.Coord((i + 1) % n)
		d := distanceToSegment(lat, lng, ci.Y(), ci.X(), cj.Y(), cj.X())
		if d < minDist {
			minDist = d
		}
	}
	return minDist
}

// distanceToSegment returns the distance in meters from (lat, lng) to the
// segment (lat1, lng1)-(lat2, lng2), projected in an equirectangular frame
// centered on the query point.
func distanceToSegment(lat, lng, lat1, lng1, lat2, lng2 float64) float64 {
	cosLat := math.Cos(radians(lat))

	x1 := radians(lng1-lng) * cosLat
	y1 := radians(lat1 - lat)
	x2 := radians(lng2-lng) * cosLat
	y2 := radians(lat2 - lat)

	dx := x2 - x1
	dy := y2 - y1
	if dx == 0 && dy == 0 {
		return Haversine(lat, lng, lat1, lng1)
	}

	// Query point is the origin; t is the projection parameter clamped to
	// the segment.
	t := -(x1*dx + y1*dy) / (dx*dx + dy*dy)
	t = math.Max(0, math.Min(1, t))

	px := x1 + t*dx
	py := y1 + t*dy
	return math.Hypot(px, py) * earthRadiusM
}

func radians(deg float64) float64 {
	return deg * math.Pi / 180
}
