// Package sched implements armguard's cooperative scheduling discipline.
//
// The host calls a Task; the Task does one unit of work and returns the next
// Task to call and how long to wait before calling it. A nil next Task means
// "do not reschedule", which is the only cancellation there is: an in-flight
// tick is never interrupted.
//
// Every tick body runs inside a Guard. A fault (returned error or panic)
// raises one alert notification and reschedules after a fixed back-off
// instead of the nominal cadence.
package sched

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Task is one cooperative tick.
type Task func(ctx context.Context) (Task, time.Duration)

// Host runs tasks. Schedule registers a task to run no sooner than delay
// from now; the host then keeps calling whatever each tick returns.
type Host interface {
	Schedule(task Task, delay time.Duration)
}

// Body is the work done by one tick.
type Body func(ctx context.Context) error

// Cadence returns the nominal delay before the next tick.
type Cadence func() time.Duration

// Fixed returns a constant cadence.
func Fixed(d time.Duration) Cadence {
	return func() time.Duration { return d }
}

// ArmAware runs at base while disarmed and base*multiplier once armed, when
// most arming checks no longer matter.
func ArmAware(base time.Duration, multiplier int, armed func() bool) Cadence {
	return func() time.Duration {
		if armed() {
			return base * time.Duration(multiplier)
		}
		return base
	}
}

// State is the scheduler's position in its cycle.
type State int

const (
	// StateIdle waits for the host to call the next tick.
	StateIdle State = iota
	// StateSweeping is executing a tick body.
	StateSweeping
	// StateBackoff waits out the fault back-off after a faulted tick.
	StateBackoff
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSweeping:
		return "sweeping"
	case StateBackoff:
		return "backoff"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Options configures a Scheduler.
type Options struct {
	// Grace delays the first tick after Start.
	Grace time.Duration

	// Cadence gives the nominal delay after a successful tick.
	Cadence Cadence

	// Guard wraps every tick body.
	Guard *Guard

	Logger *slog.Logger
}

// Scheduler turns a Body into a self-rescheduling Task.
type Scheduler struct {
	name    string
	body    Body
	grace   time.Duration
	cadence Cadence
	guard   *Guard
	logger  *slog.Logger

	state   State
	running bool
	// gen identifies the live tick chain. Stop bumps it so ticks already
	// queued with the host drop out, even if Start runs again before they fire.
	gen    uint64
	ticks  int64
	faults int64
}

// New creates a Scheduler. Cadence and Guard are required.
func New(name string, body Body, opts Options) (*Scheduler, error) {
	if body == nil {
		return nil, fmt.Errorf("scheduler %s: body is required", name)
	}
	if opts.Cadence == nil {
		return nil, fmt.Errorf("scheduler %s: cadence is required", name)
	}
	if opts.Guard == nil {
		return nil, fmt.Errorf("scheduler %s: guard is required", name)
	}
	if opts.Grace < 0 {
		return nil, fmt.Errorf("scheduler %s: negative grace period %v", name, opts.Grace)
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		name:    name,
		body:    body,
		grace:   opts.Grace,
		cadence: opts.Cadence,
		guard:   opts.Guard,
		logger:  logger,
	}, nil
}

// Start registers the first tick with the host after the grace period.
// Starting a running scheduler is a no-op.
func (s *Scheduler) Start(h Host) {
	if s.running {
		return
	}
	s.running = true
	s.gen++
	s.state = StateIdle
	s.logger.Info("scheduler registered", "scheduler", s.name, "grace", s.grace)
	h.Schedule(s.task(s.gen), s.grace)
}

// Stop makes every pending tick return without rescheduling. A later Start
// begins a fresh chain with its own grace period.
func (s *Scheduler) Stop() {
	s.running = false
	s.gen++
}

// Step runs one tick of the live chain and returns the continuation.
func (s *Scheduler) Step(ctx context.Context) (Task, time.Duration) {
	return s.tick(ctx, s.gen)
}

func (s *Scheduler) task(gen uint64) Task {
	return func(ctx context.Context) (Task, time.Duration) {
		return s.tick(ctx, gen)
	}
}

func (s *Scheduler) tick(ctx context.Context, gen uint64) (Task, time.Duration) {
	if gen != s.gen {
		if !s.running {
			s.state = StateIdle
		}
		s.logger.Info("scheduler stopped", "scheduler", s.name, "ticks", s.ticks)
		return nil, 0
	}

	s.state = StateSweeping
	s.ticks++

	var next time.Duration
	err := s.guard.Run(ctx, func(ctx context.Context) error {
		if err := s.body(ctx); err != nil {
			return err
		}
		next = s.cadence()
		return nil
	})
	if err != nil {
		s.faults++
		s.state = StateBackoff
		return s.task(gen), s.guard.Backoff()
	}

	s.state = StateIdle
	return s.task(gen), next
}

// Name returns the scheduler's name.
func (s *Scheduler) Name() string { return s.name }

// State returns the current state.
func (s *Scheduler) State() State { return s.state }

// Ticks returns the number of ticks run.
func (s *Scheduler) Ticks() int64 { return s.ticks }

// Faults returns the number of faulted ticks.
func (s *Scheduler) Faults() int64 { return s.faults }
