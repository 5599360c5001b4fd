// Package config holds armguard's tunables and loads them from CUE profiles
// and the environment.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/roach88/armguard/internal/vehicle"
)

// TerrainFrame is the default FOLL_ALT_TYPE value meaning "terrain-relative".
//
// The number 10 is also MAV_FRAME_GLOBAL_TERRAIN_ALT in the MAVLink frame
// enumeration, which is an unrelated namespace. Deployed vehicles already
// carry 10 in their parameter files, so the collision is kept and documented
// rather than renumbered.
const TerrainFrame = 10

// Config is the full add-on configuration.
type Config struct {
	Schedule Schedule
	Rules    Rules
	Follow   Follow
}

// Schedule controls the cooperative scheduler.
type Schedule struct {
	// Grace delays the first tick of both subsystems after registration.
	Grace time.Duration
	// SweepInterval is the rule sweep cadence while disarmed.
	SweepInterval time.Duration
	// ArmedMultiplier stretches SweepInterval once armed.
	ArmedMultiplier int
	// FaultBackoff replaces the cadence after a faulted tick.
	FaultBackoff time.Duration
	// OffsetInterval is the offset controller cadence.
	OffsetInterval time.Duration
}

// RuleConfig is one rule's switch and severity.
type RuleConfig struct {
	Enabled  bool
	Severity string // "hard" | "soft"
}

// Rules configures the validation rules.
type Rules struct {
	FenceEnableParam    string
	FenceTypeParam      string
	ReturnAltitudeParam string
	ReturnClimbParam    string
	ReturnLimit         float64

	FencePresent   RuleConfig
	AutoFence      RuleConfig
	MotorStop      RuleConfig
	ReturnAltitude RuleConfig
	ReturnClimb    RuleConfig
}

// Follow configures the offset controller.
type Follow struct {
	Enabled        bool
	AltTypeParam   string
	TerrainAltType float64
	OffsetParam    string
	ReportInterval time.Duration
	Modes          []string
}

// Default returns the stock configuration.
func Default() Config {
	return Config{
		Schedule: Schedule{
			Grace:           30 * time.Second,
			SweepInterval:   500 * time.Millisecond,
			ArmedMultiplier: 20,
			FaultBackoff:    time.Second,
			OffsetInterval:  100 * time.Millisecond,
		},
		Rules: Rules{
			FenceEnableParam:    "FENCE_ENABLE",
			FenceTypeParam:      "FENCE_TYPE",
			ReturnAltitudeParam: "RTL_ALTITUDE",
			ReturnClimbParam:    "RTL_CLIMB_MIN",
			ReturnLimit:         120,
			FencePresent:        RuleConfig{Enabled: true, Severity: "hard"},
			AutoFence:           RuleConfig{Enabled: true, Severity: "hard"},
			MotorStop:           RuleConfig{Enabled: true, Severity: "soft"},
			ReturnAltitude:      RuleConfig{Enabled: true, Severity: "hard"},
			ReturnClimb:         RuleConfig{Enabled: true, Severity: "hard"},
		},
		Follow: Follow{
			Enabled:        true,
			AltTypeParam:   "FOLL_ALT_TYPE",
			TerrainAltType: TerrainFrame,
			OffsetParam:    "FOLL_OFS_Z",
			ReportInterval: 5 * time.Second,
			Modes:          []string{"follow"},
		},
	}
}

// FollowModes parses Follow.Modes.
func (f Follow) FollowModes() ([]vehicle.Mode, error) {
	modes := make([]vehicle.Mode, 0, len(f.Modes))
	for _, name := range f.Modes {
		m, err := vehicle.ParseMode(name)
		if err != nil {
			return nil, err
		}
		modes = append(modes, m)
	}
	return modes, nil
}

// Validate checks the configuration for values the scheduler and rules
// cannot run with. All problems are reported together.
func (c Config) Validate() error {
	var errs []error
	positive := func(name string, d time.Duration) {
		if d <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive, got %v", name, d))
		}
	}
	required := func(name, value string) {
		if strings.TrimSpace(value) == "" {
			errs = append(errs, fmt.Errorf("%s is required", name))
		}
	}

	s := c.Schedule
	if s.Grace < 0 {
		errs = append(errs, fmt.Errorf("schedule.grace must not be negative, got %v", s.Grace))
	}
	positive("schedule.sweep_interval", s.SweepInterval)
	positive("schedule.fault_backoff", s.FaultBackoff)
	positive("schedule.offset_interval", s.OffsetInterval)
	if s.ArmedMultiplier < 1 {
		errs = append(errs, fmt.Errorf("schedule.armed_multiplier must be at least 1, got %d", s.ArmedMultiplier))
	}

	r := c.Rules
	required("rules.fence_enable_param", r.FenceEnableParam)
	required("rules.fence_type_param", r.FenceTypeParam)
	required("rules.return_altitude_param", r.ReturnAltitudeParam)
	required("rules.return_climb_param", r.ReturnClimbParam)
	if r.ReturnLimit <= 0 {
		errs = append(errs, fmt.Errorf("rules.return_limit must be positive, got %v", r.ReturnLimit))
	}
	for name, rc := range map[string]RuleConfig{
		"fence_present":   r.FencePresent,
		"auto_fence":      r.AutoFence,
		"motor_estop":     r.MotorStop,
		"return_altitude": r.ReturnAltitude,
		"return_climb":    r.ReturnClimb,
	} {
		if rc.Severity != "hard" && rc.Severity != "soft" {
			errs = append(errs, fmt.Errorf("rules.%s.severity must be hard or soft, got %q", name, rc.Severity))
		}
	}

	f := c.Follow
	if f.Enabled {
		required("follow.alt_type_param", f.AltTypeParam)
		required("follow.offset_param", f.OffsetParam)
		positive("follow.report_interval", f.ReportInterval)
		if len(f.Modes) == 0 {
			errs = append(errs, errors.New("follow.modes must list at least one mode"))
		}
		if _, err := f.FollowModes(); err != nil {
			errs = append(errs, fmt.Errorf("follow.modes: %w", err))
		}
	}

	return errors.Join(errs...)
}
