package vehicle

import "time"

// Location is a geodetic position. Alt is meters above mean sea level.
type Location struct {
	Lat float64 `yaml:"lat" json:"lat"`
	Lng float64 `yaml:"lng" json:"lng"`
	Alt float64 `yaml:"alt" json:"alt"`
}

// Velocity is a NED velocity in m/s.
type Velocity struct {
	North float64 `yaml:"north" json:"north"`
	East  float64 `yaml:"east" json:"east"`
	Down  float64 `yaml:"down" json:"down"`
}

// AuthID identifies the auxiliary arming-authorization slot held by the add-on.
type AuthID int

// Params reads and writes autopilot parameters.
//
// Get reports false when the parameter does not exist. Set changes the live
// value only; it is never committed to durable storage.
type Params interface {
	Get(name string) (float64, bool)
	Set(name string, value float64) error
}

// DurableParams is implemented by parameter tables that can report the saved
// value underneath any live change made through Set.
type DurableParams interface {
	Durable(name string) (float64, bool)
}

// Arming is the auxiliary arming-authorization gate.
//
// AuxAuthID is called exactly once at initialization. Grant and Deny write
// the single slot identified by the returned ID; the last write wins.
type Arming interface {
	AuxAuthID() (AuthID, bool)
	Grant(id AuthID)
	Deny(id AuthID, reason string)
	Armed() bool
}

// Notifier sends fire-and-forget text notifications to the ground station.
type Notifier interface {
	Send(sev Severity, text string)
}

// State exposes own position, flight mode, and vehicle category.
type State interface {
	Location() (Location, bool)
	Mode() Mode
	Category() Category
}

// Follow exposes the tracked follow target.
type Follow interface {
	HaveTarget() bool
	Target() (Location, Velocity, bool)
}

// Terrain reports the terrain height above mean sea level at a location.
type Terrain interface {
	HeightAMSL(loc Location) (float64, bool)
}

// Fence exposes the loaded polygon fence.
type Fence interface {
	VertexCount() int
}

// Motors exposes the motor emergency stop.
type Motors interface {
	EmergencyStopped() bool
}

// Clock is the host's time source.
type Clock interface {
	Now() time.Time
}
