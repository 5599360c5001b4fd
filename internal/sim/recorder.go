package sim

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/roach88/armguard/internal/store"
	"github.com/roach88/armguard/internal/vehicle"
)

// EventKind classifies a trace event.
type EventKind string

const (
	EventNotify EventKind = "notify"
	EventGrant  EventKind = "grant"
	EventDeny   EventKind = "deny"
	EventParam  EventKind = "param"
)

// Event is one observable effect, stamped with virtual time.
type Event struct {
	At       time.Duration
	Kind     EventKind
	Severity vehicle.Severity
	Text     string
	Param    string
	Value    float64
}

// Line renders the event as one trace line.
func (e Event) Line() string {
	ms := e.At.Milliseconds()
	switch e.Kind {
	case EventNotify:
		return fmt.Sprintf("%7dms notify %s: %s", ms, e.Severity, e.Text)
	case EventGrant:
		return fmt.Sprintf("%7dms grant", ms)
	case EventDeny:
		return fmt.Sprintf("%7dms deny: %s", ms, e.Text)
	case EventParam:
		return fmt.Sprintf("%7dms param %s = %.2f", ms, e.Param, e.Value)
	default:
		return fmt.Sprintf("%7dms %s %s", ms, e.Kind, e.Text)
	}
}

// JournalSink persists notification and arming events.
type JournalSink interface {
	AppendJournal(ctx context.Context, e store.Entry) (int64, error)
}

// Recorder captures the add-on's observable effects. It is the add-on's
// vehicle.Notifier.
type Recorder struct {
	clock   *Clock
	events  []Event
	logger  *slog.Logger
	sink    JournalSink
	session string
}

// NewRecorder creates a Recorder stamping events from clock.
func NewRecorder(clock *Clock, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{clock: clock, logger: logger}
}

// Journal mirrors notify, grant and deny events into sink under session.
// Param events are not journaled.
func (r *Recorder) Journal(sink JournalSink, session string) {
	r.sink = sink
	r.session = session
}

// Session returns the journal session, if any.
func (r *Recorder) Session() string { return r.session }

// Send implements vehicle.Notifier.
func (r *Recorder) Send(sev vehicle.Severity, text string) {
	r.logger.Log(context.Background(), logLevel(sev), "notification", "severity", sev.String(), "text", text)
	r.record(Event{Kind: EventNotify, Severity: sev, Text: text})
}

func (r *Recorder) grant() {
	r.record(Event{Kind: EventGrant, Severity: vehicle.SeverityInfo})
}

func (r *Recorder) deny(reason string) {
	r.record(Event{Kind: EventDeny, Severity: vehicle.SeverityWarning, Text: reason})
}

func (r *Recorder) param(name string, value float64) {
	r.record(Event{Kind: EventParam, Severity: vehicle.SeverityDebug, Param: name, Value: value})
}

func (r *Recorder) record(e Event) {
	e.At = r.clock.Elapsed()
	r.events = append(r.events, e)

	if r.sink == nil || e.Kind == EventParam {
		return
	}
	_, err := r.sink.AppendJournal(context.Background(), store.Entry{
		Session:  r.session,
		AtMS:     e.At.Milliseconds(),
		Kind:     string(e.Kind),
		Severity: int(e.Severity),
		Text:     e.Text,
	})
	if err != nil {
		r.logger.Error("journal append failed", "error", err, "kind", e.Kind)
	}
}

// Events returns every recorded event in order.
func (r *Recorder) Events() []Event { return r.events }

// Filter returns the events of one kind.
func (r *Recorder) Filter(kind EventKind) []Event {
	var out []Event
	for _, e := range r.events {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}

// Trace renders every event, one per line.
func (r *Recorder) Trace() string {
	var b strings.Builder
	for _, e := range r.events {
		b.WriteString(e.Line())
		b.WriteByte('\n')
	}
	return b.String()
}

// logLevel maps a notification severity onto a log level.
func logLevel(sev vehicle.Severity) slog.Level {
	switch {
	case sev <= vehicle.SeverityError:
		return slog.LevelError
	case sev == vehicle.SeverityWarning:
		return slog.LevelWarn
	case sev == vehicle.SeverityDebug:
		return slog.LevelDebug
	default:
		return slog.LevelInfo
	}
}
