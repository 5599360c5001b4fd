package testutil

import (
	"errors"

	"github.com/roach88/armguard/internal/vehicle"
)

// Params is a map-backed vehicle.Params. Writes record into Writes.
type Params struct {
	Values map[string]float64
	Writes []ParamWrite
	// FailSet makes every Set return an error.
	FailSet bool
}

// ParamWrite is one recorded Set call.
type ParamWrite struct {
	Name  string
	Value float64
}

// NewParams creates a Params seeded with values.
func NewParams(values map[string]float64) *Params {
	p := &Params{Values: make(map[string]float64, len(values))}
	for k, v := range values {
		p.Values[k] = v
	}
	return p
}

func (p *Params) Get(name string) (float64, bool) {
	v, ok := p.Values[name]
	return v, ok
}

func (p *Params) Set(name string, value float64) error {
	if p.FailSet {
		return errors.New("parameter write rejected")
	}
	p.Values[name] = value
	p.Writes = append(p.Writes, ParamWrite{Name: name, Value: value})
	return nil
}

// Notification is one recorded Send call.
type Notification struct {
	Severity vehicle.Severity
	Text     string
}

// Notifier records notifications.
type Notifier struct {
	Sent []Notification
}

func (n *Notifier) Send(sev vehicle.Severity, text string) {
	n.Sent = append(n.Sent, Notification{Severity: sev, Text: text})
}

// Texts returns the text of every notification at sev.
func (n *Notifier) Texts(sev vehicle.Severity) []string {
	var out []string
	for _, s := range n.Sent {
		if s.Severity == sev {
			out = append(out, s.Text)
		}
	}
	return out
}

// Reset forgets recorded notifications.
func (n *Notifier) Reset() { n.Sent = nil }

// ArmingCall is one recorded Grant or Deny.
type ArmingCall struct {
	Grant  bool
	ID     vehicle.AuthID
	Reason string
}

// Arming records authorization calls.
type Arming struct {
	ID        vehicle.AuthID
	NoSlot    bool
	IsArmed   bool
	Calls     []ArmingCall
	idClaimed int
}

func (a *Arming) AuxAuthID() (vehicle.AuthID, bool) {
	a.idClaimed++
	if a.NoSlot {
		return 0, false
	}
	return a.ID, true
}

// Claims returns how many times AuxAuthID was called.
func (a *Arming) Claims() int { return a.idClaimed }

func (a *Arming) Grant(id vehicle.AuthID) {
	a.Calls = append(a.Calls, ArmingCall{Grant: true, ID: id})
}

func (a *Arming) Deny(id vehicle.AuthID, reason string) {
	a.Calls = append(a.Calls, ArmingCall{ID: id, Reason: reason})
}

func (a *Arming) Armed() bool { return a.IsArmed }

// Grants counts Grant calls.
func (a *Arming) Grants() int {
	n := 0
	for _, c := range a.Calls {
		if c.Grant {
			n++
		}
	}
	return n
}

// Denials returns the reasons of every Deny call, in order.
func (a *Arming) Denials() []string {
	var out []string
	for _, c := range a.Calls {
		if !c.Grant {
			out = append(out, c.Reason)
		}
	}
	return out
}

// Reset forgets recorded calls.
func (a *Arming) Reset() { a.Calls = nil }

// Vehicle implements vehicle.State, vehicle.Follow, vehicle.Fence and
// vehicle.Motors from plain fields.
type Vehicle struct {
	Own           *vehicle.Location
	CurrentMode   vehicle.Mode
	Kind          vehicle.Category
	Vertices      int
	EStop         bool
	HasTarget     bool
	TargetLoc     *vehicle.Location
	TargetVel     vehicle.Velocity
	PanicOnFence  bool
	PanicOnTarget bool
}

func (v *Vehicle) Location() (vehicle.Location, bool) {
	if v.Own == nil {
		return vehicle.Location{}, false
	}
	return *v.Own, true
}

func (v *Vehicle) Mode() vehicle.Mode         { return v.CurrentMode }
func (v *Vehicle) Category() vehicle.Category { return v.Kind }
func (v *Vehicle) EmergencyStopped() bool     { return v.EStop }
func (v *Vehicle) HaveTarget() bool           { return v.HasTarget }

func (v *Vehicle) VertexCount() int {
	if v.PanicOnFence {
		panic("fence storage corrupted")
	}
	return v.Vertices
}

func (v *Vehicle) Target() (vehicle.Location, vehicle.Velocity, bool) {
	if v.PanicOnTarget {
		panic("target estimator unavailable")
	}
	if v.TargetLoc == nil {
		return vehicle.Location{}, vehicle.Velocity{}, false
	}
	return *v.TargetLoc, v.TargetVel, true
}

// Terrain is a vehicle.Terrain answering from a function.
type Terrain func(loc vehicle.Location) (float64, bool)

func (t Terrain) HeightAMSL(loc vehicle.Location) (float64, bool) { return t(loc) }

// FlatTerrain reports height everywhere.
func FlatTerrain(height float64) Terrain {
	return func(vehicle.Location) (float64, bool) { return height, true }
}

// NoTerrain reports terrain as unavailable everywhere.
func NoTerrain() Terrain {
	return func(vehicle.Location) (float64, bool) { return 0, false }
}
