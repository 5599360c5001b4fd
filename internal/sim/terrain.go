package sim

import (
	"math"

	"github.com/roach88/armguard/internal/vehicle"
)

const earthRadius = 6378137.0 // meters, WGS-84 equatorial

// Patch raises or lowers terrain inside a circle.
type Patch struct {
	Center vehicle.Location
	Radius float64 // meters
	Height float64 // meters AMSL
}

// Terrain is flat ground at Base with optional circular patches. The first
// patch containing a location wins.
type Terrain struct {
	Base        float64
	Patches     []Patch
	Unavailable bool
}

// HeightAMSL implements vehicle.Terrain.
func (t *Terrain) HeightAMSL(loc vehicle.Location) (float64, bool) {
	if t.Unavailable {
		return 0, false
	}
	for _, p := range t.Patches {
		if Distance(p.Center, loc) <= p.Radius {
			return p.Height, true
		}
	}
	return t.Base, true
}

// Distance is the equirectangular ground distance in meters. It is accurate
// to well under a meter at the few-kilometer scale the simulator works at.
func Distance(a, b vehicle.Location) float64 {
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLat := lat2 - lat1
	dLng := (b.Lng - a.Lng) * math.Pi / 180 * math.Cos((lat1+lat2)/2)
	return earthRadius * math.Hypot(dLat, dLng)
}
