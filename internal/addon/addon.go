// Package addon wires the arming-rule evaluator and the follow offset
// controller to a host.
//
// An AddOn is the only owner of its rules, evaluator, controller and
// schedulers; nothing lives in package-level variables.
package addon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/roach88/armguard/internal/config"
	"github.com/roach88/armguard/internal/engine"
	"github.com/roach88/armguard/internal/offset"
	"github.com/roach88/armguard/internal/rules"
	"github.com/roach88/armguard/internal/sched"
	"github.com/roach88/armguard/internal/vehicle"
)

// Scheduler names.
const (
	ArmingTask = "arming"
	FollowTask = "follow"
)

// Return-path rule messages.
const (
	MsgReturnAltitude = "RTL altitude above limit"
	MsgReturnClimb    = "RTL climb above limit"
)

// Collaborators are the host capabilities the add-on uses.
type Collaborators struct {
	Params   vehicle.Params
	Arming   vehicle.Arming
	Notifier vehicle.Notifier
	State    vehicle.State
	Follow   vehicle.Follow
	Terrain  vehicle.Terrain
	Fence    vehicle.Fence
	Motors   vehicle.Motors
	Clock    vehicle.Clock
}

func (c Collaborators) validate() error {
	var missing []error
	check := func(name string, present bool) {
		if !present {
			missing = append(missing, fmt.Errorf("missing %s", name))
		}
	}
	check("params", c.Params != nil)
	check("arming", c.Arming != nil)
	check("notifier", c.Notifier != nil)
	check("state", c.State != nil)
	check("follow", c.Follow != nil)
	check("terrain", c.Terrain != nil)
	check("fence", c.Fence != nil)
	check("motors", c.Motors != nil)
	check("clock", c.Clock != nil)
	return errors.Join(missing...)
}

// AddOn owns one instance of everything the add-on runs.
type AddOn struct {
	cfg        config.Config
	evaluator  *engine.Evaluator
	controller *offset.Controller
	arming     *sched.Scheduler
	follow     *sched.Scheduler
	logger     *slog.Logger
}

// New builds the rule registry, the evaluator and, when follow is enabled,
// the offset controller. It claims the auxiliary authorization slot once.
func New(cfg config.Config, c Collaborators, logger *slog.Logger) (*AddOn, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := c.validate(); err != nil {
		return nil, fmt.Errorf("addon: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("addon: invalid config: %w", err)
	}

	reg, err := BuildRegistry(cfg.Rules, c)
	if err != nil {
		return nil, fmt.Errorf("addon: %w", err)
	}
	ev, err := engine.New(reg, c.Arming, c.Notifier, engine.WithLogger(logger.With("component", "evaluator")))
	if err != nil {
		return nil, fmt.Errorf("addon: %w", err)
	}

	a := &AddOn{cfg: cfg, evaluator: ev, logger: logger}

	s := cfg.Schedule
	a.arming, err = sched.New(ArmingTask,
		func(ctx context.Context) error {
			_, err := ev.Sweep(ctx)
			return err
		},
		sched.Options{
			Grace:   s.Grace,
			Cadence: sched.ArmAware(s.SweepInterval, s.ArmedMultiplier, c.Arming.Armed),
			Guard:   sched.NewGuard(ArmingTask, c.Notifier, s.FaultBackoff, logger),
			Logger:  logger,
		})
	if err != nil {
		return nil, fmt.Errorf("addon: %w", err)
	}

	if cfg.Follow.Enabled {
		if err := a.buildFollow(c); err != nil {
			return nil, fmt.Errorf("addon: %w", err)
		}
	}

	logger.Info("addon initialized",
		"rules", reg.Len(),
		"auth_id", int(ev.AuthID()),
		"follow", cfg.Follow.Enabled,
	)
	return a, nil
}

func (a *AddOn) buildFollow(c Collaborators) error {
	f := a.cfg.Follow
	modes, err := f.FollowModes()
	if err != nil {
		return err
	}

	configured, ok := configuredOffset(c.Params, f.OffsetParam)
	if !ok {
		configured = 0
	}

	a.controller, err = offset.New(offset.Config{
		AltTypeParam:   f.AltTypeParam,
		TerrainAltType: f.TerrainAltType,
		OffsetParam:    f.OffsetParam,
		FollowModes:    modes,
		ReportInterval: f.ReportInterval,
	}, offset.Deps{
		Params:   c.Params,
		State:    c.State,
		Follow:   c.Follow,
		Terrain:  c.Terrain,
		Notifier: c.Notifier,
		Clock:    c.Clock,
	}, configured, a.logger.With("component", "offset"))
	if err != nil {
		return err
	}

	s := a.cfg.Schedule
	a.follow, err = sched.New(FollowTask, a.controller.Update, sched.Options{
		Grace:   s.Grace,
		Cadence: sched.Fixed(s.OffsetInterval),
		Guard:   sched.NewGuard(FollowTask, c.Notifier, s.FaultBackoff, a.logger),
		Logger:  a.logger,
	})
	return err
}

// configuredOffset reads the operator's saved offset. The live value may
// still hold a correction from an earlier add-on instance, so the durable
// layer wins when the host exposes one.
func configuredOffset(p vehicle.Params, name string) (float64, bool) {
	if d, ok := p.(vehicle.DurableParams); ok {
		return d.Durable(name)
	}
	return p.Get(name)
}

// BuildRegistry registers the enabled built-in rules in their fixed order.
func BuildRegistry(rc config.Rules, c Collaborators) (*rules.Registry, error) {
	reg := rules.NewRegistry()
	fence := rules.FenceParams{Enable: rc.FenceEnableParam, Type: rc.FenceTypeParam}

	entries := []struct {
		cfg   config.RuleConfig
		build func(rules.Severity) rules.Descriptor
	}{
		{rc.FencePresent, func(sev rules.Severity) rules.Descriptor {
			return rules.Perimeter(c.Params, c.Fence, fence, sev)
		}},
		{rc.AutoFence, func(sev rules.Severity) rules.Descriptor {
			return rules.AutoPerimeter(c.Params, c.Fence, c.State, fence, sev)
		}},
		{rc.MotorStop, func(sev rules.Severity) rules.Descriptor {
			return rules.MotorStop(c.Motors, sev)
		}},
		{rc.ReturnAltitude, func(sev rules.Severity) rules.Descriptor {
			return rules.ReturnLimit(rules.IDRTLAltitude, rc.ReturnAltitudeParam, rc.ReturnLimit, c.Params, sev, MsgReturnAltitude)
		}},
		{rc.ReturnClimb, func(sev rules.Severity) rules.Descriptor {
			return rules.ReturnLimit(rules.IDRTLClimb, rc.ReturnClimbParam, rc.ReturnLimit, c.Params, sev, MsgReturnClimb)
		}},
	}

	for _, e := range entries {
		if !e.cfg.Enabled {
			continue
		}
		sev, err := rules.ParseSeverity(e.cfg.Severity)
		if err != nil {
			return nil, err
		}
		if err := reg.Register(e.build(sev)); err != nil {
			return nil, err
		}
	}
	return reg, nil
}

// Start registers both schedulers with the host.
func (a *AddOn) Start(h sched.Host) {
	a.arming.Start(h)
	if a.follow != nil {
		a.follow.Start(h)
	}
}

// Stop makes both schedulers drop out at their next tick.
func (a *AddOn) Stop() {
	a.arming.Stop()
	if a.follow != nil {
		a.follow.Stop()
	}
}

// Evaluator returns the arming-rule evaluator.
func (a *AddOn) Evaluator() *engine.Evaluator { return a.evaluator }

// Controller returns the offset controller, or nil when follow is disabled.
func (a *AddOn) Controller() *offset.Controller { return a.controller }

// Schedulers returns the running schedulers, arming first.
func (a *AddOn) Schedulers() []*sched.Scheduler {
	if a.follow == nil {
		return []*sched.Scheduler{a.arming}
	}
	return []*sched.Scheduler{a.arming, a.follow}
}

// Config returns the configuration the add-on was built with.
func (a *AddOn) Config() config.Config { return a.cfg }
