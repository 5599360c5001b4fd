package harness

import (
	"fmt"
	"strings"

	"github.com/roach88/armguard/internal/sim"
	"github.com/roach88/armguard/internal/vehicle"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for _, event := range e.Trace {
			fmt.Fprintf(&buf, "  %s\n", event.Line())
		}
	}
	return buf.String()
}

// EvaluateAssertions checks every assertion and returns the failure
// messages. world supplies final state for auth_state and param.
func EvaluateAssertions(result *Result, assertions []Assertion, world *sim.World) []string {
	var errs []string
	for i, a := range assertions {
		if err := evaluate(result.Trace, a, world); err != nil {
			errs = append(errs, fmt.Sprintf("assertions[%d]: %v", i, err))
		}
	}
	return errs
}

func evaluate(trace []TraceEvent, a Assertion, world *sim.World) error {
	switch a.Type {
	case AssertNotified:
		return assertMatches(trace, a, sim.EventNotify, false)
	case AssertNotNotified:
		return assertMatches(trace, a, sim.EventNotify, true)
	case AssertDenied:
		return assertMatches(trace, a, sim.EventDeny, false)
	case AssertGranted:
		return assertMatches(trace, a, sim.EventGrant, false)
	case AssertAuthState:
		return assertAuthState(trace, a, world.Vehicle)
	case AssertParam:
		return assertParam(trace, a, world.Params)
	case AssertEventCount:
		return assertEventCount(trace, a)
	default:
		return fmt.Errorf("unknown assertion type: %s", a.Type)
	}
}

// matches reports whether a trace event satisfies the assertion's filters.
func matches(e TraceEvent, a Assertion, kind sim.EventKind) bool {
	if e.Kind != string(kind) {
		return false
	}
	if a.AtMS != nil && e.AtMS != *a.AtMS {
		return false
	}
	if a.Severity != "" {
		sev, err := vehicle.ParseSeverity(a.Severity)
		if err != nil || e.Severity != sev.String() {
			return false
		}
	}
	if a.Text != "" && e.Text != a.Text {
		return false
	}
	if a.Contains != "" && !strings.Contains(e.Text, a.Contains) {
		return false
	}
	return true
}

func describe(a Assertion, kind sim.EventKind) string {
	parts := []string{string(kind)}
	if a.Severity != "" {
		parts = append(parts, "severity="+a.Severity)
	}
	if a.Text != "" {
		parts = append(parts, fmt.Sprintf("text=%q", a.Text))
	}
	if a.Contains != "" {
		parts = append(parts, fmt.Sprintf("contains=%q", a.Contains))
	}
	if a.AtMS != nil {
		parts = append(parts, fmt.Sprintf("at=%dms", *a.AtMS))
	}
	return strings.Join(parts, " ")
}

// assertMatches counts matching events. With negate the count must be zero;
// otherwise it must equal Count, or be at least one when Count is omitted.
func assertMatches(trace []TraceEvent, a Assertion, kind sim.EventKind, negate bool) error {
	n := 0
	for _, e := range trace {
		if matches(e, a, kind) {
			n++
		}
	}

	var expected string
	switch {
	case negate && n == 0:
		return nil
	case negate:
		expected = "no " + describe(a, kind)
	case a.Count != nil && n == *a.Count:
		return nil
	case a.Count != nil:
		expected = fmt.Sprintf("%d x %s", *a.Count, describe(a, kind))
	case n > 0:
		return nil
	default:
		expected = describe(a, kind)
	}

	return &AssertionError{
		Type:     a.Type,
		Expected: expected,
		Actual:   fmt.Sprintf("%d matching event(s)", n),
		Trace:    trace,
	}
}

func assertAuthState(trace []TraceEvent, a Assertion, v *sim.Vehicle) error {
	state, reason := v.AuthState()
	if state.String() == a.State && (a.Text == "" || a.Text == reason) {
		return nil
	}
	expected := a.State
	if a.Text != "" {
		expected = fmt.Sprintf("%s (%s)", a.State, a.Text)
	}
	actual := state.String()
	if reason != "" {
		actual = fmt.Sprintf("%s (%s)", state, reason)
	}
	return &AssertionError{Type: a.Type, Expected: expected, Actual: actual, Trace: trace}
}

func assertParam(trace []TraceEvent, a Assertion, p *sim.ParamTable) error {
	get := p.Get
	if a.Layer == "durable" {
		get = p.Durable
	}
	got, ok := get(a.Name)

	switch {
	case a.Value == nil && !ok:
		return nil
	case a.Value == nil:
		return &AssertionError{
			Type:     a.Type,
			Expected: fmt.Sprintf("%s absent", a.Name),
			Actual:   fmt.Sprintf("%s = %v", a.Name, got),
			Trace:    trace,
		}
	case !ok:
		return &AssertionError{
			Type:     a.Type,
			Expected: fmt.Sprintf("%s = %v", a.Name, *a.Value),
			Actual:   fmt.Sprintf("%s absent", a.Name),
			Trace:    trace,
		}
	case got != *a.Value:
		return &AssertionError{
			Type:     a.Type,
			Expected: fmt.Sprintf("%s = %v", a.Name, *a.Value),
			Actual:   fmt.Sprintf("%s = %v", a.Name, got),
			Trace:    trace,
		}
	}
	return nil
}

func assertEventCount(trace []TraceEvent, a Assertion) error {
	n := 0
	for _, e := range trace {
		if e.Kind == a.Kind {
			n++
		}
	}
	if n == *a.Count {
		return nil
	}
	return &AssertionError{
		Type:     a.Type,
		Expected: fmt.Sprintf("%d %s event(s)", *a.Count, a.Kind),
		Actual:   fmt.Sprintf("%d", n),
		Trace:    trace,
	}
}
