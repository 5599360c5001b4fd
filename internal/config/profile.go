package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
)

//go:embed schema.cue
var schemaSource string

// Error codes reported by profile loading.
const (
	ErrCodeNotFound = "E005" // profile path missing or unreadable
	ErrCodeSyntax   = "E201" // profile is not valid CUE
	ErrCodeSchema   = "E202" // profile violates the schema
	ErrCodeDecode   = "E203" // profile could not be decoded
	ErrCodeInvalid  = "E204" // decoded profile failed validation
)

// ProfileError is a profile loading failure with an optional CUE position.
type ProfileError struct {
	Code    string
	Message string
	Pos     token.Pos
}

func (e *ProfileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// profile mirrors #Profile for decoding. Durations stay strings until
// toConfig parses them.
type profile struct {
	Schedule struct {
		Grace           string `json:"grace"`
		SweepInterval   string `json:"sweep_interval"`
		ArmedMultiplier int    `json:"armed_multiplier"`
		FaultBackoff    string `json:"fault_backoff"`
		OffsetInterval  string `json:"offset_interval"`
	} `json:"schedule"`
	Rules struct {
		FenceEnableParam    string      `json:"fence_enable_param"`
		FenceTypeParam      string      `json:"fence_type_param"`
		ReturnAltitudeParam string      `json:"return_altitude_param"`
		ReturnClimbParam    string      `json:"return_climb_param"`
		ReturnLimit         float64     `json:"return_limit"`
		FencePresent        profileRule `json:"fence_present"`
		AutoFence           profileRule `json:"auto_fence"`
		MotorStop           profileRule `json:"motor_estop"`
		ReturnAltitude      profileRule `json:"return_altitude"`
		ReturnClimb         profileRule `json:"return_climb"`
	} `json:"rules"`
	Follow struct {
		Enabled        bool     `json:"enabled"`
		AltTypeParam   string   `json:"alt_type_param"`
		TerrainAltType float64  `json:"terrain_alt_type"`
		OffsetParam    string   `json:"offset_param"`
		ReportInterval string   `json:"report_interval"`
		Modes          []string `json:"modes"`
	} `json:"follow"`
}

type profileRule struct {
	Enabled  bool   `json:"enabled"`
	Severity string `json:"severity"`
}

// LoadProfile reads and parses a CUE profile file. An empty path yields the
// defaults.
func LoadProfile(path string) (Config, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, &ProfileError{Code: ErrCodeNotFound, Message: fmt.Sprintf("reading profile: %v", err)}
	}
	return ParseProfile(data, path)
}

// ParseProfile unifies data with the profile schema and returns the
// resulting configuration. name labels positions in error messages.
func ParseProfile(data []byte, name string) (Config, error) {
	ctx := cuecontext.New()

	schema := ctx.CompileString(schemaSource, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return Config{}, fmt.Errorf("compiling embedded schema: %w", err)
	}
	def := schema.LookupPath(cue.ParsePath("#Profile"))

	value := ctx.CompileBytes(data, cue.Filename(name))
	if err := value.Err(); err != nil {
		return Config{}, cueError(ErrCodeSyntax, err)
	}

	unified := def.Unify(value)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return Config{}, cueError(ErrCodeSchema, err)
	}

	var p profile
	if err := unified.Decode(&p); err != nil {
		return Config{}, cueError(ErrCodeDecode, err)
	}

	cfg, err := p.toConfig()
	if err != nil {
		return Config{}, &ProfileError{Code: ErrCodeDecode, Message: err.Error()}
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, &ProfileError{Code: ErrCodeInvalid, Message: err.Error()}
	}
	return cfg, nil
}

func cueError(code string, err error) *ProfileError {
	pe := &ProfileError{Code: code, Message: err.Error()}
	var cerr cueerrors.Error
	if errors.As(err, &cerr) {
		pe.Pos = cerr.Position()
		pe.Message = strings.TrimSpace(cueerrors.Details(err, nil))
	}
	return pe
}

func (p profile) toConfig() (Config, error) {
	var errs []error
	dur := func(field, s string) time.Duration {
		d, err := time.ParseDuration(s)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", field, err))
		}
		return d
	}

	cfg := Config{
		Schedule: Schedule{
			Grace:           dur("schedule.grace", p.Schedule.Grace),
			SweepInterval:   dur("schedule.sweep_interval", p.Schedule.SweepInterval),
			ArmedMultiplier: p.Schedule.ArmedMultiplier,
			FaultBackoff:    dur("schedule.fault_backoff", p.Schedule.FaultBackoff),
			OffsetInterval:  dur("schedule.offset_interval", p.Schedule.OffsetInterval),
		},
		Rules: Rules{
			FenceEnableParam:    p.Rules.FenceEnableParam,
			FenceTypeParam:      p.Rules.FenceTypeParam,
			ReturnAltitudeParam: p.Rules.ReturnAltitudeParam,
			ReturnClimbParam:    p.Rules.ReturnClimbParam,
			ReturnLimit:         p.Rules.ReturnLimit,
			FencePresent:        RuleConfig(p.Rules.FencePresent),
			AutoFence:           RuleConfig(p.Rules.AutoFence),
			MotorStop:           RuleConfig(p.Rules.MotorStop),
			ReturnAltitude:      RuleConfig(p.Rules.ReturnAltitude),
			ReturnClimb:         RuleConfig(p.Rules.ReturnClimb),
		},
		Follow: Follow{
			Enabled:        p.Follow.Enabled,
			AltTypeParam:   p.Follow.AltTypeParam,
			TerrainAltType: p.Follow.TerrainAltType,
			OffsetParam:    p.Follow.OffsetParam,
			ReportInterval: dur("follow.report_interval", p.Follow.ReportInterval),
			Modes:          p.Follow.Modes,
		},
	}
	return cfg, errors.Join(errs...)
}
