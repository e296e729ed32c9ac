package geofence

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDistanceMeters(t *testing.T) {
	p := Point{Lat: 12.9716, Lon: 77.5946}
	assert.Equal(t, 0.0, DistanceMeters(p, p))

	q := Point{Lat: 13.0827, Lon: 80.2707}
	assert.InDelta(t, DistanceMeters(p, q), DistanceMeters(q, p), 1e-9)

	// One degree of latitude is about 111.32 km.
	a := Point{Lat: 10, Lon: 20}
	b := Point{Lat: 11, Lon: 20}
	d := DistanceMeters(a, b)
	assert.InEpsilon(t, 111320.0, d, 0.01)
}

func TestWithinRadius(t *testing.T) {
	center := Point{Lat: 12.9716, Lon: 77.5946}
	// ~0.00045 deg of latitude is ~50 m
	near := Point{Lat: center.Lat + 0.00045, Lon: center.Lon}
	far := Point{Lat: center.Lat + 0.0018, Lon: center.Lon}

	assert.True(t, WithinRadius(near, center, 100))
	assert.False(t, WithinRadius(far, center, 100))
	assert.True(t, WithinRadius(center, center, 0))
}

func TestWithinAnyZone(t *testing.T) {
	p := Point{Lat: 12.9716, Lon: 77.5946}
	zones := []Zone{
		{Center: Point{Lat: 13.0827, Lon: 80.2707}, RadiusMeters: 500},
		{Center: Point{Lat: 12.9720, Lon: 77.5946}, RadiusMeters: 10},
	}
	assert.False(t, WithinAnyZone(p, zones))

	zones[1].RadiusMeters = 100
	assert.True(t, WithinAnyZone(p, zones))
	assert.False(t, WithinAnyZone(p, nil))
}

func TestNearest(t *testing.T) {
	idx, d := Nearest(Point{}, nil)
	assert.Equal(t, -1, idx)
	assert.True(t, math.IsInf(d, 1))

	zones := []Zone{
		{Center: Point{Lat: 1, Lon: 1}},
		{Center: Point{Lat: 0.1, Lon: 0}},
	}
	idx, _ = Nearest(Point{}, zones)
	assert.Equal(t, 1, idx)
}
