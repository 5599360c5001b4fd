package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/armguard/internal/rules"
	"github.com/roach88/armguard/internal/vehicle"
)

// ClearedPrefix starts the notification sent whenever a rule moves to Pass,
// including its first observation.
const ClearedPrefix = "Cleared: "

// Action is the effect a transition produced.
type Action int

const (
	// ActionNone is the zero value; no effect was produced.
	ActionNone Action = iota
	// ActionCleared sent an informational "Cleared" notification.
	ActionCleared
	// ActionDenied denied arming authorization.
	ActionDenied
	// ActionWarned sent a warning notification.
	ActionWarned
)

func (a Action) String() string {
	switch a {
	case ActionCleared:
		return "cleared"
	case ActionDenied:
		return "denied"
	case ActionWarned:
		return "warned"
	default:
		return "none"
	}
}

// Transition records one rule changing result within a sweep.
type Transition struct {
	Rule   string
	From   rules.Result
	To     rules.Result
	Action Action
}

// Report summarizes one sweep.
type Report struct {
	// Seq is the sweep number.
	Seq int64

	// Passed is the AND of every rule's fresh result in this sweep.
	Passed bool

	// Granted is true when this sweep issued a Grant.
	Granted bool

	// Transitions lists rules whose result changed, in declaration order.
	Transitions []Transition

	// Faults lists rules whose predicate could not be evaluated.
	Faults []*Fault
}

// Evaluator sweeps the rule registry and drives the arming gate.
//
// INVARIANTS:
//   - The auth ID is obtained exactly once, in New
//   - The registry is sealed before the first sweep
//   - Every transition is handled and settled within the sweep that saw it
type Evaluator struct {
	registry *rules.Registry
	arming   vehicle.Arming
	authID   vehicle.AuthID
	notifier vehicle.Notifier
	clock    *Clock
	logger   *slog.Logger

	// granted latches a Grant until a deny or a failing aggregate, so a
	// stable passing state does not re-grant every sweep.
	granted bool
}

// Option configures an Evaluator.
type Option func(*Evaluator)

// WithLogger sets the evaluator's logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(e *Evaluator) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithClock sets the sweep clock.
func WithClock(c *Clock) Option {
	return func(e *Evaluator) {
		if c != nil {
			e.clock = c
		}
	}
}

// New creates an Evaluator, claims the auxiliary authorization slot, and
// seals the registry.
func New(reg *rules.Registry, arming vehicle.Arming, notifier vehicle.Notifier, opts ...Option) (*Evaluator, error) {
	if reg == nil || arming == nil || notifier == nil {
		return nil, fmt.Errorf("evaluator requires a registry, an arming gate and a notifier")
	}

	id, ok := arming.AuxAuthID()
	if !ok {
		return nil, ErrNoAuthSlot
	}
	reg.Seal()

	e := &Evaluator{
		registry: reg,
		arming:   arming,
		authID:   id,
		notifier: notifier,
		clock:    NewClock(),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// AuthID returns the authorization slot claimed at construction.
func (e *Evaluator) AuthID() vehicle.AuthID {
	return e.authID
}

// Registry returns the evaluator's rule registry.
func (e *Evaluator) Registry() *rules.Registry {
	return e.registry
}

// Clock returns the sweep clock.
func (e *Evaluator) Clock() *Clock {
	return e.clock
}

// Sweep evaluates every rule once and dispatches transitions.
//
// Each predicate runs exactly once per sweep. The fresh value drives both
// edge detection and the aggregate, so the aggregate is always the AND of
// values computed in this sweep and never of cached results.
//
// The returned error is non-nil only when one or more predicates faulted;
// the report is complete either way.
func (e *Evaluator) Sweep(ctx context.Context) (Report, error) {
	report := Report{Seq: e.clock.Next(), Passed: true}

	for _, rule := range e.registry.All() {
		pass, fault := e.evaluate(report.Seq, rule)
		if fault != nil {
			e.logger.ErrorContext(ctx, "rule predicate faulted",
				"seq", report.Seq,
				"rule", rule.ID,
				"code", fault.Code,
				"error", fault.Message,
			)
			report.Faults = append(report.Faults, fault)
		}
		if !pass {
			report.Passed = false
		}

		prev, changed := rule.Record(rules.ResultOf(pass))
		if !changed {
			continue
		}
		tr := e.dispatch(ctx, rule, prev)
		rule.Settle()
		report.Transitions = append(report.Transitions, tr)
	}

	switch {
	case report.Passed && !e.granted:
		e.arming.Grant(e.authID)
		e.granted = true
		report.Granted = true
		e.logger.InfoContext(ctx, "arming authorized", "seq", report.Seq)
	case !report.Passed:
		e.granted = false
	}

	e.logger.DebugContext(ctx, "sweep complete",
		"seq", report.Seq,
		"passed", report.Passed,
		"transitions", len(report.Transitions),
		"faults", len(report.Faults),
	)

	return report, sweepError(report.Faults)
}

// evaluate runs one rule's check inside its own recover boundary. A fault
// fails the rule closed.
func (e *Evaluator) evaluate(seq int64, rule *rules.Rule) (pass bool, fault *Fault) {
	defer func() {
		if r := recover(); r != nil {
			pass = false
			fault = NewPanicFault(rule.ID, seq, r)
		}
	}()

	ok, err := rule.Check()
	if err != nil {
		return false, NewPredicateFault(rule.ID, seq, err)
	}
	return ok, nil
}

// dispatch produces the single effect owed for a rule's transition.
func (e *Evaluator) dispatch(ctx context.Context, rule *rules.Rule, prev rules.Result) Transition {
	tr := Transition{Rule: rule.ID, From: prev, To: rule.Last()}

	switch {
	case tr.To == rules.Pass:
		e.notifier.Send(vehicle.SeverityInfo, ClearedPrefix+rule.Message)
		tr.Action = ActionCleared

	case rule.Severity == rules.Hard:
		e.arming.Deny(e.authID, rule.Message)
		e.granted = false
		tr.Action = ActionDenied

	default:
		e.notifier.Send(vehicle.SeverityWarning, rule.Message)
		tr.Action = ActionWarned
	}

	e.logger.InfoContext(ctx, "rule transition",
		"rule", rule.ID,
		"from", prev.String(),
		"to", tr.To.String(),
		"severity", rule.Severity.String(),
		"action", tr.Action.String(),
	)
	return tr
}
