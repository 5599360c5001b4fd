package harness

import (
	"fmt"
	"strings"

	"github.com/roach88/armguard/internal/sim"
)

// Harness-generated trace event kinds. The rest come from sim.
const (
	EventArm         sim.EventKind = "arm"
	EventArmRejected sim.EventKind = "arm_rejected"
	EventDisarm      sim.EventKind = "disarm"
	EventReboot      sim.EventKind = "reboot"
)

// TraceEvent is one entry of a scenario trace.
type TraceEvent struct {
	AtMS     int64   `json:"at_ms"`
	Kind     string  `json:"kind"`
	Severity string  `json:"severity,omitempty"`
	Text     string  `json:"text,omitempty"`
	Param    string  `json:"param,omitempty"`
	Value    float64 `json:"value,omitempty"`
}

// Line renders the event for human-readable output.
func (e TraceEvent) Line() string {
	switch sim.EventKind(e.Kind) {
	case sim.EventNotify:
		return fmt.Sprintf("%7dms notify %s: %s", e.AtMS, e.Severity, e.Text)
	case sim.EventParam:
		return fmt.Sprintf("%7dms param %s = %.2f", e.AtMS, e.Param, e.Value)
	}
	if e.Text != "" {
		return fmt.Sprintf("%7dms %s: %s", e.AtMS, e.Kind, e.Text)
	}
	return fmt.Sprintf("%7dms %s", e.AtMS, e.Kind)
}

func fromSim(e sim.Event) TraceEvent {
	te := TraceEvent{
		AtMS: e.At.Milliseconds(),
		Kind: string(e.Kind),
		Text: e.Text,
	}
	switch e.Kind {
	case sim.EventNotify:
		te.Severity = e.Severity.String()
	case sim.EventParam:
		te.Param = e.Param
		te.Value = e.Value
	}
	return te
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true when every assertion held.
	Pass bool `json:"pass"`

	// Trace holds every event in the order it happened.
	Trace []TraceEvent `json:"trace"`

	// Errors contains assertion failures. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// Session is the journal session the run used.
	Session string `json:"session"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// Render returns the trace one event per line.
func (r *Result) Render() string {
	var b strings.Builder
	for _, e := range r.Trace {
		b.WriteString(e.Line())
		b.WriteByte('\n')
	}
	return b.String()
}
