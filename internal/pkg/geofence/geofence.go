// Package geofence implements great-circle distance and circular
// containment tests.
package geofence

import "math"

// EarthRadiusMeters is the mean Earth radius used by DistanceMeters.
const EarthRadiusMeters = 6371000.0

type Point struct {
	Lat float64
	Lon float64
}

// Zone is a circular boundary.
type Zone struct {
	Center       Point
	RadiusMeters float64
}

// DistanceMeters returns the haversine distance between a and b.
func DistanceMeters(a, b Point) float64 {
	lat1 := toRadians(a.Lat)
	lat2 := toRadians(b.Lat)
	dLat := lat2 - lat1
	dLon := toRadians(b.Lon - a.Lon)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
	return EarthRadiusMeters * c
}

func WithinRadius(p, center Point, radiusMeters float64) bool {
	return DistanceMeters(p, center) <= radiusMeters
}

// WithinAnyZone reports whether p lies inside at least one zone, each tested
// against its own radius.
func WithinAnyZone(p Point, zones []Zone) bool {
	for _, z := range zones {
		if WithinRadius(p, z.Center, z.RadiusMeters) {
			return true
		}
	}
	return false
}

// Nearest returns the index of the zone whose center is closest to p and the
// distance to it, or -1 for no zones.
func Nearest(p Point, zones []Zone) (int, float64) {
	best, bestDist := -1, math.Inf(1)
	for i, z := range zones {
		if d := DistanceMeters(p, z.Center); d < bestDist {
			best, bestDist = i, d
		}
	}
	return best, bestDist
}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180
}
