package cli

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/armguard/internal/config"
	"github.com/roach88/armguard/internal/rules"
)

// RuleSummary is one rule's effective setting.
type RuleSummary struct {
	ID       string `json:"id"`
	Enabled  bool   `json:"enabled"`
	Severity string `json:"severity"`
}

// ValidationResult is the validate command's payload.
type ValidationResult struct {
	Valid         bool          `json:"valid"`
	Profile       string        `json:"profile"`
	SweepInterval string        `json:"sweep_interval,omitempty"`
	ArmedInterval string        `json:"armed_interval,omitempty"`
	ReturnLimit   float64       `json:"return_limit,omitempty"`
	Follow        bool          `json:"follow"`
	Rules         []RuleSummary `json:"rules,omitempty"`
}

// ValidationDetails locates a profile error.
type ValidationDetails struct {
	File   string `json:"file,omitempty"`
	Line   int    `json:"line,omitempty"`
	Column int    `json:"column,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate [profile.cue]",
		Short: "Validate a CUE profile",
		Long: `Unify a profile with the built-in schema and report the effective settings.

The profile comes from the argument, then --profile, then ARMGUARD_PROFILE.
Unknown fields, bad severities and malformed durations are rejected.

Error codes:
  E005 - profile file not found
  E201 - CUE syntax error
  E202 - schema violation
  E203 - decode failure
  E204 - semantic check failed`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := rootOpts.Profile
			if len(args) == 1 {
				path = args[0]
			}
			return runValidate(rootOpts, path, cmd)
		},
	}
	return cmd
}

func runValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)
	if path == "" {
		return NewExitError(ExitCommandError, "no profile: pass a path, --profile, or set ARMGUARD_PROFILE")
	}

	formatter.VerboseLog("Validating profile %s", path)
	cfg, err := config.LoadProfile(path)
	if err != nil {
		var pe *config.ProfileError
		if !errors.As(err, &pe) {
			return WrapExitError(ExitCommandError, "failed to load profile", err)
		}
		var details *ValidationDetails
		if pe.Pos.IsValid() {
			details = &ValidationDetails{File: pe.Pos.Filename(), Line: pe.Pos.Line(), Column: pe.Pos.Column()}
		}
		if err := formatter.Error(pe.Code, pe.Message, details); err != nil {
			return err
		}
		if pe.Code == config.ErrCodeNotFound {
			return WrapExitError(ExitCommandError, "profile not found", pe)
		}
		return WrapExitError(ExitFailure, "validation failed", pe)
	}

	result := summarize(path, cfg)
	return formatter.Success(result, func(w io.Writer) {
		fmt.Fprintf(w, "✓ Profile valid: %s\n\n", result.Profile)
		fmt.Fprintf(w, "  sweep:  %s disarmed, %s armed\n", result.SweepInterval, result.ArmedInterval)
		fmt.Fprintf(w, "  follow: %t\n", result.Follow)
		fmt.Fprintf(w, "  return limit: %g\n", result.ReturnLimit)
		for _, r := range result.Rules {
			state := "off"
			if r.Enabled {
				state = r.Severity
			}
			fmt.Fprintf(w, "  %-16s %s\n", r.ID, state)
		}
	})
}

func summarize(path string, cfg config.Config) ValidationResult {
	rc := cfg.Rules
	s := cfg.Schedule
	entries := []struct {
		id  string
		cfg config.RuleConfig
	}{
		{rules.IDFencePresent, rc.FencePresent},
		{rules.IDAutoFence, rc.AutoFence},
		{rules.IDMotorStop, rc.MotorStop},
		{rules.IDRTLAltitude, rc.ReturnAltitude},
		{rules.IDRTLClimb, rc.ReturnClimb},
	}

	result := ValidationResult{
		Valid:         true,
		Profile:       path,
		SweepInterval: s.SweepInterval.String(),
		ArmedInterval: (s.SweepInterval * time.Duration(s.ArmedMultiplier)).String(),
		ReturnLimit:   rc.ReturnLimit,
		Follow:        cfg.Follow.Enabled,
	}
	for _, e := range entries {
		result.Rules = append(result.Rules, RuleSummary{ID: e.id, Enabled: e.cfg.Enabled, Severity: e.cfg.Severity})
	}
	return result
}
