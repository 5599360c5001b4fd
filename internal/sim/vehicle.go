package sim

import (
	"errors"

	"github.com/roach88/armguard/internal/vehicle"
)

// AuthState is the auxiliary authorization slot's current value.
type AuthState int

const (
	// AuthPending means neither Grant nor Deny has been written.
	AuthPending AuthState = iota
	AuthGranted
	AuthDenied
)

func (s AuthState) String() string {
	switch s {
	case AuthGranted:
		return "granted"
	case AuthDenied:
		return "denied"
	default:
		return "pending"
	}
}

// ErrArmingBlocked is returned by Arm when authorization is not granted.
var ErrArmingBlocked = errors.New("arming blocked by auxiliary authorization")

// Vehicle is the simulated autopilot. Fields are set directly by the
// driver; the methods are what the add-on sees.
type Vehicle struct {
	Kind        vehicle.Category
	CurrentMode vehicle.Mode
	IsArmed     bool
	EStop       bool
	Vertices    int

	// Own is nil while there is no position estimate.
	Own *vehicle.Location

	HasTarget bool
	// TargetLoc is nil while the target's position is unknown.
	TargetLoc *vehicle.Location
	TargetVel vehicle.Velocity

	// NoAuthSlot makes AuxAuthID fail.
	NoAuthSlot bool

	rec        *Recorder
	slot       vehicle.AuthID
	claims     int
	auth       AuthState
	authReason string
}

// NewVehicle creates a disarmed copter in Stabilize with no position.
func NewVehicle(rec *Recorder) *Vehicle {
	return &Vehicle{
		Kind:        vehicle.CategoryCopter,
		CurrentMode: vehicle.ModeStabilize,
		rec:         rec,
	}
}

// AuxAuthID hands out the auxiliary authorization slot.
func (v *Vehicle) AuxAuthID() (vehicle.AuthID, bool) {
	v.claims++
	if v.NoAuthSlot {
		return 0, false
	}
	v.slot = vehicle.AuthID(v.claims)
	return v.slot, true
}

// Grant writes "authorized" to the slot.
func (v *Vehicle) Grant(id vehicle.AuthID) {
	if id != v.slot {
		return
	}
	v.auth = AuthGranted
	v.authReason = ""
	if v.rec != nil {
		v.rec.grant()
	}
}

// Deny writes "blocked" with a reason to the slot.
func (v *Vehicle) Deny(id vehicle.AuthID, reason string) {
	if id != v.slot {
		return
	}
	v.auth = AuthDenied
	v.authReason = reason
	if v.rec != nil {
		v.rec.deny(reason)
	}
}

// Armed implements vehicle.Arming.
func (v *Vehicle) Armed() bool { return v.IsArmed }

// AuthState returns the slot value and, when denied, the reason.
func (v *Vehicle) AuthState() (AuthState, string) { return v.auth, v.authReason }

// Claims returns how many times AuxAuthID was called.
func (v *Vehicle) Claims() int { return v.claims }

// Arm arms the vehicle if the auxiliary slot is granted.
func (v *Vehicle) Arm() error {
	if v.auth != AuthGranted {
		if v.authReason != "" {
			return errors.Join(ErrArmingBlocked, errors.New(v.authReason))
		}
		return ErrArmingBlocked
	}
	v.IsArmed = true
	return nil
}

// Disarm disarms unconditionally.
func (v *Vehicle) Disarm() { v.IsArmed = false }

func (v *Vehicle) Location() (vehicle.Location, bool) {
	if v.Own == nil {
		return vehicle.Location{}, false
	}
	return *v.Own, true
}

func (v *Vehicle) Mode() vehicle.Mode         { return v.CurrentMode }
func (v *Vehicle) Category() vehicle.Category { return v.Kind }
func (v *Vehicle) HaveTarget() bool           { return v.HasTarget }
func (v *Vehicle) VertexCount() int           { return v.Vertices }
func (v *Vehicle) EmergencyStopped() bool     { return v.EStop }

func (v *Vehicle) Target() (vehicle.Location, vehicle.Velocity, bool) {
	if !v.HasTarget || v.TargetLoc == nil {
		return vehicle.Location{}, vehicle.Velocity{}, false
	}
	return *v.TargetLoc, v.TargetVel, true
}
