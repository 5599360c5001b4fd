package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"slices"

	"github.com/roach88/armguard/internal/addon"
	"github.com/roach88/armguard/internal/config"
	"github.com/roach88/armguard/internal/sim"
	"github.com/roach88/armguard/internal/store"
	"github.com/roach88/armguard/internal/vehicle"
)

// Options controls how a scenario runs.
type Options struct {
	// Store, when set, backs durable parameters and receives the journal.
	Store *store.Store

	// Session overrides the scenario's session token.
	Session string

	// Realtime sleeps between ticks instead of jumping through virtual time.
	Realtime bool

	// Logger receives add-on logs. Defaults to discarding them.
	Logger *slog.Logger
}

// Harness executes one scenario against one simulated world.
type Harness struct {
	world    *sim.World
	addon    *addon.AddOn
	opts     Options
	result   *Result
	recorded int // recorder events already copied into result
}

// Run executes a scenario in a fresh world with no persistence.
func Run(scenario *Scenario) (*Result, error) {
	return RunWithOptions(context.Background(), scenario, Options{})
}

// RunWithOptions executes a scenario and evaluates its assertions.
//
// Execution flow:
//  1. Build the profile and the world, apply initial vehicle and terrain
//  2. Create and start the add-on
//  3. For each step: apply changes, perform actions, advance time
//  4. Evaluate assertions against the trace and final state
func RunWithOptions(ctx context.Context, scenario *Scenario, opts Options) (*Result, error) {
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	cfg := config.Default()
	if scenario.Profile != "" {
		var err error
		cfg, err = config.ParseProfile([]byte(scenario.Profile), scenario.Name+".cue")
		if err != nil {
			return nil, fmt.Errorf("scenario profile: %w", err)
		}
	}

	session := opts.Session
	if session == "" {
		session = scenario.Session
	}
	if session == "" {
		session = "scenario-" + scenario.Name
	}

	wopts := sim.Options{Params: scenario.Params, Session: session, Logger: opts.Logger}
	if opts.Store != nil {
		wopts.Store = opts.Store
	}
	world, err := sim.NewWorld(ctx, wopts)
	if err != nil {
		return nil, fmt.Errorf("failed to build world: %w", err)
	}

	if err := applyVehicle(world.Vehicle, scenario.Vehicle); err != nil {
		return nil, err
	}
	world.Vehicle.NoAuthSlot = scenario.Vehicle.NoAuthSlot
	if scenario.Terrain != nil {
		applyTerrain(world.Terrain, *scenario.Terrain)
	}

	a, err := addon.New(cfg, world.Collaborators(), opts.Logger)
	if err != nil {
		return nil, fmt.Errorf("failed to start add-on: %w", err)
	}

	h := &Harness{world: world, addon: a, opts: opts, result: NewResult()}
	h.result.Session = world.Session
	a.Start(world.Host)

	for i, step := range scenario.Steps {
		if err := h.step(ctx, step); err != nil {
			return nil, fmt.Errorf("steps[%d]: %w", i, err)
		}
	}
	a.Stop()

	for _, msg := range EvaluateAssertions(h.result, scenario.Assertions, h.world) {
		h.result.AddError(msg)
	}
	return h.result, nil
}

func (h *Harness) step(ctx context.Context, step Step) error {
	w := h.world

	if step.Vehicle != nil {
		if err := applyVehicle(w.Vehicle, *step.Vehicle); err != nil {
			return err
		}
	}
	if step.Terrain != nil {
		applyTerrain(w.Terrain, *step.Terrain)
	}
	for _, name := range sortedKeys(step.Params) {
		if err := w.Params.SetAndSave(ctx, name, step.Params[name]); err != nil {
			return fmt.Errorf("save %s: %w", name, err)
		}
	}
	h.collect()

	switch {
	case step.Arm:
		if err := w.Vehicle.Arm(); err != nil {
			_, reason := w.Vehicle.AuthState()
			h.mark(EventArmRejected, reason)
		} else {
			h.mark(EventArm, "")
		}
	case step.Disarm:
		w.Vehicle.Disarm()
		h.mark(EventDisarm, "")
	}
	if step.Reboot {
		w.Params.Reboot()
		h.mark(EventReboot, "")
	}

	d, err := stepDuration(step)
	if err != nil {
		return err
	}
	if h.opts.Realtime {
		err = w.Host.RunRealtime(ctx, d)
	} else {
		err = w.Host.Advance(ctx, d)
	}
	h.collect()
	return err
}

// collect copies new recorder events into the result trace.
func (h *Harness) collect() {
	events := h.world.Recorder.Events()
	for _, e := range events[h.recorded:] {
		h.result.Trace = append(h.result.Trace, fromSim(e))
	}
	h.recorded = len(events)
}

// mark appends a harness action to the trace.
func (h *Harness) mark(kind sim.EventKind, text string) {
	h.result.Trace = append(h.result.Trace, TraceEvent{
		AtMS: h.world.Clock.Elapsed().Milliseconds(),
		Kind: string(kind),
		Text: text,
	})
}

func applyVehicle(v *sim.Vehicle, s VehicleSetup) error {
	if s.Category != "" {
		c, err := vehicle.ParseCategory(s.Category)
		if err != nil {
			return err
		}
		v.Kind = c
	}
	if s.Mode != "" {
		m, err := vehicle.ParseMode(s.Mode)
		if err != nil {
			return err
		}
		v.CurrentMode = m
	}
	if s.EStop != nil {
		v.EStop = *s.EStop
	}
	if s.FenceVertices != nil {
		v.Vertices = *s.FenceVertices
	}
	if s.Position != nil {
		pos := *s.Position
		v.Own = &pos
	}
	if s.LosePosition {
		v.Own = nil
	}
	if s.Target != nil {
		tgt := *s.Target
		v.TargetLoc = &tgt
		v.HasTarget = true
	}
	if s.TargetVelocity != nil {
		v.TargetVel = *s.TargetVelocity
	}
	if s.LoseTarget {
		v.TargetLoc = nil
		v.HasTarget = false
	}
	return nil
}

func applyTerrain(t *sim.Terrain, s TerrainSetup) {
	t.Base = s.Base
	t.Unavailable = s.Unavailable
	t.Patches = t.Patches[:0]
	for _, p := range s.Patches {
		t.Patches = append(t.Patches, sim.Patch{Center: p.Center, Radius: p.Radius, Height: p.Height})
	}
}

func sortedKeys(m map[string]float64) []string {
	return slices.Sorted(maps.Keys(m))
}
