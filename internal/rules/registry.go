package rules

import (
	"errors"
	"fmt"
	"strings"
)

// Severity controls what a failing rule does to arming.
type Severity int

const (
	// Hard failures deny arming authorization.
	Hard Severity = iota + 1
	// Soft failures are advisory warnings and never deny.
	Soft
)

func (s Severity) String() string {
	switch s {
	case Hard:
		return "hard"
	case Soft:
		return "soft"
	default:
		return fmt.Sprintf("severity(%d)", int(s))
	}
}

// ParseSeverity maps the profile spelling ("hard" | "soft") to a Severity.
func ParseSeverity(s string) (Severity, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "hard":
		return Hard, nil
	case "soft":
		return Soft, nil
	default:
		return 0, fmt.Errorf("unknown rule severity %q", s)
	}
}

// Result is the outcome of a rule on its most recent sweep.
type Result int

const (
	Unknown Result = iota
	Pass
	Fail
)

func (r Result) String() string {
	switch r {
	case Pass:
		return "pass"
	case Fail:
		return "fail"
	default:
		return "unknown"
	}
}

// ResultOf converts a fresh check outcome into a Result.
func ResultOf(pass bool) Result {
	if pass {
		return Pass
	}
	return Fail
}

// Check reports whether a rule's predicate currently equals its expected
// value. An error means the predicate could not be evaluated.
type Check func() (bool, error)

// Descriptor is the static definition of a rule, built once at startup.
type Descriptor struct {
	ID       string
	Severity Severity
	Message  string
	// Expected is the rendered expected value, for diagnostics only.
	Expected string
	Check    Check
}

// Define builds a Descriptor from a typed predicate and the value it must
// produce for the rule to pass.
func Define[T comparable](id string, sev Severity, message string, predicate func() (T, error), expected T) Descriptor {
	return Descriptor{
		ID:       id,
		Severity: sev,
		Message:  message,
		Expected: fmt.Sprint(expected),
		Check: func() (bool, error) {
			got, err := predicate()
			if err != nil {
				return false, err
			}
			return got == expected, nil
		},
	}
}

// Rule is a registered descriptor plus its edge-detection state.
//
// last and dirty are mutated by the evaluator on every sweep. dirty is true
// exactly while a freshly recorded result differs from the previous sweep's
// and the transition has not been handled yet.
type Rule struct {
	Descriptor

	last  Result
	dirty bool
}

// Last returns the result recorded on the most recent sweep.
func (r *Rule) Last() Result { return r.last }

// Dirty reports whether an unhandled transition is pending.
func (r *Rule) Dirty() bool { return r.dirty }

// Record stores a fresh result. It returns the previous result and whether
// the result changed; a change marks the rule dirty.
func (r *Rule) Record(res Result) (prev Result, changed bool) {
	prev = r.last
	if res == prev {
		return prev, false
	}
	r.last = res
	r.dirty = true
	return prev, true
}

// Settle clears the dirty flag once a transition has been handled.
func (r *Rule) Settle() { r.dirty = false }

// ErrSealed is returned when a rule is registered after initialization.
var ErrSealed = errors.New("rule registry is sealed")

// Registry is the fixed, ordered set of rules.
//
// Rules are registered during initialization and the registry is then
// sealed. Iteration order is declaration order and never changes, so
// notification ordering within a sweep is deterministic.
type Registry struct {
	rules  []*Rule
	byID   map[string]*Rule
	sealed bool
}

// NewRegistry creates an empty, unsealed registry.
func NewRegistry() *Registry {
	return &Registry{byID: make(map[string]*Rule)}
}

// Register adds a rule. IDs must be unique and non-empty, the check must be
// set, and the severity must be Hard or Soft.
func (r *Registry) Register(d Descriptor) error {
	if r.sealed {
		return fmt.Errorf("register %q: %w", d.ID, ErrSealed)
	}
	if strings.TrimSpace(d.ID) == "" {
		return errors.New("register: rule ID is required")
	}
	if _, dup := r.byID[d.ID]; dup {
		return fmt.Errorf("register: duplicate rule ID %q", d.ID)
	}
	if d.Check == nil {
		return fmt.Errorf("register %q: check is required", d.ID)
	}
	if d.Severity != Hard && d.Severity != Soft {
		return fmt.Errorf("register %q: invalid severity %v", d.ID, d.Severity)
	}

	rule := &Rule{Descriptor: d}
	r.rules = append(r.rules, rule)
	r.byID[d.ID] = rule
	return nil
}

// Seal prevents further registration.
func (r *Registry) Seal() { r.sealed = true }

// Sealed reports whether Seal has been called.
func (r *Registry) Sealed() bool { return r.sealed }

// All returns the rules in declaration order.
func (r *Registry) All() []*Rule { return r.rules }

// Len returns the number of registered rules.
func (r *Registry) Len() int { return len(r.rules) }

// Lookup returns the rule with the given ID.
func (r *Registry) Lookup(id string) (*Rule, bool) {
	rule, ok := r.byID[id]
	return rule, ok
}
