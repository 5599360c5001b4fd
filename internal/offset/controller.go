// Package offset keeps a follow-mode vertical offset terrain-accurate.
//
// The autopilot's follow behavior holds a fixed vertical offset relative to
// the target's altitude. Over uneven ground that puts the follower at the
// wrong height above its own terrain. The Controller recomputes the offset
// every tick from both vehicles' heights above terrain and writes it to the
// live (never saved) offset parameter.
package offset

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"time"

	"github.com/roach88/armguard/internal/vehicle"
)

// ErrNonFinite is returned when a correction would be NaN or infinite.
var ErrNonFinite = errors.New("non-finite offset correction")

// Config names the parameters and constants the controller uses.
type Config struct {
	// AltTypeParam holds the follow altitude frame.
	AltTypeParam string

	// TerrainAltType is the AltTypeParam value meaning "terrain-relative".
	// It shares its number with an unrelated wire-protocol frame enum.
	TerrainAltType float64

	// OffsetParam is the vertical offset written on every correction.
	OffsetParam string

	// FollowModes lists the modes in which the follow behavior is active.
	FollowModes []vehicle.Mode

	// ReportInterval rate-limits the diagnostic notification.
	ReportInterval time.Duration
}

// Deps are the collaborators the controller reads and writes.
type Deps struct {
	Params   vehicle.Params
	State    vehicle.State
	Follow   vehicle.Follow
	Terrain  vehicle.Terrain
	Notifier vehicle.Notifier
	Clock    vehicle.Clock
}

// State is the controller's last computation.
//
// CorrectedOffset only changes when every precondition holds; a skipped tick
// leaves it, and everything else here, untouched.
type State struct {
	TargetTerrainAlt float64
	OwnTerrainAlt    float64
	ConfiguredOffset float64
	CorrectedOffset  float64
	LastNotify       time.Time
	Corrections      int64
}

// SkipReason explains why a tick made no correction.
type SkipReason string

const (
	SkipNone        SkipReason = ""
	SkipMode        SkipReason = "not in a follow mode"
	SkipNoTarget    SkipReason = "no target"
	SkipAltType     SkipReason = "altitude type is not terrain-relative"
	SkipTargetFix   SkipReason = "target location unavailable"
	SkipOwnPosition SkipReason = "own position unavailable"
	SkipTerrain     SkipReason = "terrain height unavailable"
)

// Controller recomputes the follow offset.
type Controller struct {
	cfg    Config
	deps   Deps
	state  State
	logger *slog.Logger
}

// New creates a Controller. configured is the operator's durable offset,
// read once at startup; corrections are always computed against it.
func New(cfg Config, deps Deps, configured float64, logger *slog.Logger) (*Controller, error) {
	switch {
	case deps.Params == nil, deps.State == nil, deps.Follow == nil,
		deps.Terrain == nil, deps.Notifier == nil, deps.Clock == nil:
		return nil, errors.New("offset controller: missing collaborator")
	case cfg.AltTypeParam == "" || cfg.OffsetParam == "":
		return nil, errors.New("offset controller: parameter names are required")
	case len(cfg.FollowModes) == 0:
		return nil, errors.New("offset controller: at least one follow mode is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{
		cfg:  cfg,
		deps: deps,
		state: State{
			ConfiguredOffset: configured,
			CorrectedOffset:  configured,
		},
		logger: logger,
	}, nil
}

// State returns a copy of the controller's state.
func (c *Controller) State() State { return c.state }

// Correction is the offset that puts the follower at the configured height
// relative to the target's height above terrain.
func Correction(targetTerrainAlt, ownTerrainAlt, configured float64) float64 {
	return -(targetTerrainAlt - ownTerrainAlt - configured)
}

// Update runs one controller tick. Unmet preconditions are not errors; the
// tick is skipped and state is left alone. Errors are faults for the guard.
func (c *Controller) Update(ctx context.Context) error {
	reason, err := c.update(ctx)
	if reason != SkipNone {
		c.logger.DebugContext(ctx, "offset correction skipped", "reason", string(reason))
	}
	return err
}

func (c *Controller) update(ctx context.Context) (SkipReason, error) {
	d := c.deps

	if !slices.Contains(c.cfg.FollowModes, d.State.Mode()) {
		return SkipMode, nil
	}
	if !d.Follow.HaveTarget() {
		return SkipNoTarget, nil
	}
	if alt, ok := d.Params.Get(c.cfg.AltTypeParam); !ok || alt != c.cfg.TerrainAltType {
		return SkipAltType, nil
	}

	target, vel, ok := d.Follow.Target()
	if !ok {
		return SkipTargetFix, nil
	}
	own, ok := d.State.Location()
	if !ok {
		return SkipOwnPosition, nil
	}
	targetGround, ok := d.Terrain.HeightAMSL(target)
	if !ok {
		return SkipTerrain, nil
	}
	ownGround, ok := d.Terrain.HeightAMSL(own)
	if !ok {
		return SkipTerrain, nil
	}

	targetAGL := target.Alt - targetGround
	ownAGL := own.Alt - ownGround
	corrected := Correction(targetAGL, ownAGL, c.state.ConfiguredOffset)
	if math.IsNaN(corrected) || math.IsInf(corrected, 0) {
		return SkipNone, fmt.Errorf("%w: target %.2f own %.2f configured %.2f",
			ErrNonFinite, targetAGL, ownAGL, c.state.ConfiguredOffset)
	}

	prior, ok := d.Params.Get(c.cfg.OffsetParam)
	if !ok {
		prior = c.state.CorrectedOffset
	}
	if err := d.Params.Set(c.cfg.OffsetParam, corrected); err != nil {
		return SkipNone, fmt.Errorf("set %s: %w", c.cfg.OffsetParam, err)
	}

	c.state.TargetTerrainAlt = targetAGL
	c.state.OwnTerrainAlt = ownAGL
	c.state.CorrectedOffset = corrected
	c.state.Corrections++

	c.logger.DebugContext(ctx, "offset corrected",
		"target_agl", targetAGL,
		"own_agl", ownAGL,
		"target_vn", vel.North,
		"target_ve", vel.East,
		"prior", prior,
		"offset", corrected,
	)

	now := d.Clock.Now()
	if c.state.LastNotify.IsZero() || now.Sub(c.state.LastNotify) >= c.cfg.ReportInterval {
		c.state.LastNotify = now
		d.Notifier.Send(vehicle.SeverityInfo, fmt.Sprintf("Follow: tgt %.1f own %.1f ofs %.1f -> %.1f",
			targetAGL, ownAGL, prior, corrected))
	}
	return SkipNone, nil
}
