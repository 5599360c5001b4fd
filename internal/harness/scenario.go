package harness

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roach88/armguard/internal/sim"
	"github.com/roach88/armguard/internal/vehicle"
)

// Scenario is one simulated flight-line session.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Session labels journal entries. Defaults to "scenario-<name>".
	Session string `yaml:"session,omitempty"`

	// Profile is inline CUE unified with the profile schema.
	Profile string `yaml:"profile,omitempty"`

	// Vehicle is the vehicle's state before the add-on starts.
	Vehicle VehicleSetup `yaml:"vehicle,omitempty"`

	// Terrain replaces the default flat terrain at 0 m.
	Terrain *TerrainSetup `yaml:"terrain,omitempty"`

	// Params seeds the durable parameter layer.
	Params map[string]float64 `yaml:"params,omitempty"`

	// Steps run in order after the add-on starts.
	Steps []Step `yaml:"steps"`

	// Assertions validate the final trace and state.
	Assertions []Assertion `yaml:"assertions"`
}

// VehicleSetup sets vehicle fields. Omitted fields keep their value.
type VehicleSetup struct {
	Category       string            `yaml:"category,omitempty"`
	Mode           string            `yaml:"mode,omitempty"`
	EStop          *bool             `yaml:"estop,omitempty"`
	FenceVertices  *int              `yaml:"fence_vertices,omitempty"`
	Position       *vehicle.Location `yaml:"position,omitempty"`
	LosePosition   bool              `yaml:"lose_position,omitempty"`
	Target         *vehicle.Location `yaml:"target,omitempty"`
	TargetVelocity *vehicle.Velocity `yaml:"target_velocity,omitempty"`
	LoseTarget     bool              `yaml:"lose_target,omitempty"`
	NoAuthSlot     bool              `yaml:"no_auth_slot,omitempty"`
}

// TerrainSetup describes the terrain model.
type TerrainSetup struct {
	Base        float64      `yaml:"base"`
	Unavailable bool         `yaml:"unavailable,omitempty"`
	Patches     []PatchSetup `yaml:"patches,omitempty"`
}

// PatchSetup is a circular terrain patch.
type PatchSetup struct {
	Center vehicle.Location `yaml:"center"`
	Radius float64          `yaml:"radius"`
	Height float64          `yaml:"height"`
}

// Step applies changes at the current virtual time, then advances it.
type Step struct {
	Vehicle *VehicleSetup `yaml:"vehicle,omitempty"`
	Terrain *TerrainSetup `yaml:"terrain,omitempty"`

	// Params are saved, as an operator would from a ground station.
	Params map[string]float64 `yaml:"params,omitempty"`

	Arm    bool `yaml:"arm,omitempty"`
	Disarm bool `yaml:"disarm,omitempty"`
	Reboot bool `yaml:"reboot,omitempty"`

	// Advance is a duration such as "30s" or "500ms".
	Advance string `yaml:"advance"`
}

// Assertion validates the trace or final state.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type string `yaml:"type"`

	Severity string `yaml:"severity,omitempty"`
	Text     string `yaml:"text,omitempty"`
	Contains string `yaml:"contains,omitempty"`

	// AtMS restricts trace matches to one virtual timestamp.
	AtMS *int64 `yaml:"at_ms,omitempty"`

	// Count is the exact number of matches. Omitted means at least one.
	Count *int `yaml:"count,omitempty"`

	// State is the expected auth_state ("pending", "granted", "denied").
	State string `yaml:"state,omitempty"`

	// Name and Value are the param assertion's parameter and expected value.
	// A nil Value asserts the parameter is absent.
	Name  string   `yaml:"name,omitempty"`
	Value *float64 `yaml:"value,omitempty"`
	// Layer is "live" (default) or "durable".
	Layer string `yaml:"layer,omitempty"`

	// Kind is the event_count event kind.
	Kind string `yaml:"kind,omitempty"`
}

// Assertion type constants.
const (
	AssertNotified    = "notified"
	AssertNotNotified = "not_notified"
	AssertDenied      = "denied"
	AssertGranted     = "granted"
	AssertAuthState   = "auth_state"
	AssertParam       = "param"
	AssertEventCount  = "event_count"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}
	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	if err := s.Vehicle.validate("vehicle"); err != nil {
		return err
	}
	for i, step := range s.Steps {
		if _, err := stepDuration(step); err != nil {
			return fmt.Errorf("steps[%d]: %w", i, err)
		}
		if step.Arm && step.Disarm {
			return fmt.Errorf("steps[%d]: arm and disarm are exclusive", i)
		}
		if step.Vehicle != nil {
			if err := step.Vehicle.validate(fmt.Sprintf("steps[%d].vehicle", i)); err != nil {
				return err
			}
			if step.Vehicle.NoAuthSlot {
				return fmt.Errorf("steps[%d].vehicle: no_auth_slot only applies before start", i)
			}
		}
	}

	for i := range s.Assertions {
		if err := validateAssertion(i, &s.Assertions[i]); err != nil {
			return err
		}
	}
	return nil
}

func stepDuration(step Step) (time.Duration, error) {
	if step.Advance == "" {
		return 0, fmt.Errorf("advance is required")
	}
	d, err := time.ParseDuration(step.Advance)
	if err != nil {
		return 0, fmt.Errorf("advance: %w", err)
	}
	if d < 0 {
		return 0, fmt.Errorf("advance must not be negative, got %s", step.Advance)
	}
	return d, nil
}

func (v VehicleSetup) validate(path string) error {
	if v.Category != "" {
		if _, err := vehicle.ParseCategory(v.Category); err != nil {
			return fmt.Errorf("%s.category: %w", path, err)
		}
	}
	if v.Mode != "" {
		if _, err := vehicle.ParseMode(v.Mode); err != nil {
			return fmt.Errorf("%s.mode: %w", path, err)
		}
	}
	if v.FenceVertices != nil && *v.FenceVertices < 0 {
		return fmt.Errorf("%s.fence_vertices must not be negative", path)
	}
	if v.LosePosition && v.Position != nil {
		return fmt.Errorf("%s: position and lose_position are exclusive", path)
	}
	if v.LoseTarget && v.Target != nil {
		return fmt.Errorf("%s: target and lose_target are exclusive", path)
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}
	if a.Count != nil && *a.Count < 0 {
		return fmt.Errorf("assertions[%d]: count must be non-negative", index)
	}
	if a.Severity != "" {
		if _, err := vehicle.ParseSeverity(a.Severity); err != nil {
			return fmt.Errorf("assertions[%d]: %w", index, err)
		}
	}

	switch a.Type {
	case AssertNotified, AssertNotNotified, AssertDenied, AssertGranted:
	case AssertAuthState:
		switch a.State {
		case sim.AuthPending.String(), sim.AuthGranted.String(), sim.AuthDenied.String():
		default:
			return fmt.Errorf("assertions[%d]: state must be pending, granted or denied for auth_state", index)
		}
	case AssertParam:
		if a.Name == "" {
			return fmt.Errorf("assertions[%d]: name is required for param", index)
		}
		if a.Layer != "" && a.Layer != "live" && a.Layer != "durable" {
			return fmt.Errorf("assertions[%d]: layer must be live or durable", index)
		}
	case AssertEventCount:
		switch sim.EventKind(a.Kind) {
		case sim.EventNotify, sim.EventGrant, sim.EventDeny, sim.EventParam,
			EventArm, EventArmRejected, EventDisarm, EventReboot:
		default:
			return fmt.Errorf("assertions[%d]: unknown event kind %q for event_count", index, a.Kind)
		}
		if a.Count == nil {
			return fmt.Errorf("assertions[%d]: count is required for event_count", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
