package sched

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/roach88/armguard/internal/vehicle"
)

// DefaultBackoff is the delay after a faulted tick.
const DefaultBackoff = time.Second

// PanicError is a panic recovered at the tick boundary.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

// IsPanic reports whether err is or wraps a PanicError.
func IsPanic(err error) bool {
	var pe *PanicError
	return errors.As(err, &pe)
}

// Guard is the recoverable failure boundary around a tick body.
type Guard struct {
	name     string
	notifier vehicle.Notifier
	backoff  time.Duration
	logger   *slog.Logger
}

// NewGuard creates a Guard that alerts through notifier and backs off for
// backoff after a fault. A non-positive backoff uses DefaultBackoff.
func NewGuard(name string, notifier vehicle.Notifier, backoff time.Duration, logger *slog.Logger) *Guard {
	if backoff <= 0 {
		backoff = DefaultBackoff
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Guard{name: name, notifier: notifier, backoff: backoff, logger: logger}
}

// Backoff returns the delay to use after a faulted tick.
func (g *Guard) Backoff() time.Duration { return g.backoff }

// Run executes body. Errors and panics are contained: the fault is logged,
// an alert is sent, and the fault is returned to the caller.
func (g *Guard) Run(ctx context.Context, body Body) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Value: r, Stack: debug.Stack()}
		}
		if err != nil {
			g.report(ctx, err)
		}
	}()
	return body(ctx)
}

func (g *Guard) report(ctx context.Context, err error) {
	attrs := []any{
		"guard", g.name,
		"error", err,
		"backoff", g.backoff,
	}
	var pe *PanicError
	if errors.As(err, &pe) {
		attrs = append(attrs, "stack", string(pe.Stack))
	}
	g.logger.ErrorContext(ctx, "tick faulted", attrs...)

	if g.notifier != nil {
		g.notifier.Send(vehicle.SeverityAlert, fmt.Sprintf("%s: %v", g.name, err))
	}
}
