package engine

import (
	"errors"
	"fmt"
)

// ErrNoAuthSlot is returned when the host has no auxiliary arming
// authorization slot to hand out.
var ErrNoAuthSlot = errors.New("no auxiliary arming authorization slot available")

// Fault describes a rule whose predicate could not be evaluated.
//
// Faults never abort a sweep. The faulted rule is treated as failing and
// the fault is returned to the scheduler, which alerts and backs off.
type Fault struct {
	// Code identifies the fault category.
	Code FaultCode

	// Rule is the ID of the faulted rule.
	Rule string

	// Seq is the sweep in which the fault occurred.
	Seq int64

	// Message is a human-readable description.
	Message string

	// Err is the predicate's error, if it returned one.
	Err error
}

// FaultCode categorizes faults.
type FaultCode string

const (
	// FaultPredicate indicates the predicate returned an error.
	FaultPredicate FaultCode = "PREDICATE_FAULT"

	// FaultPanic indicates the predicate panicked.
	FaultPanic FaultCode = "PREDICATE_PANIC"
)

// Error implements the error interface.
func (f *Fault) Error() string {
	if f.Rule != "" {
		return fmt.Sprintf("%s: rule %s: %s", f.Code, f.Rule, f.Message)
	}
	return fmt.Sprintf("%s: %s", f.Code, f.Message)
}

// Unwrap returns the predicate's error.
func (f *Fault) Unwrap() error {
	return f.Err
}

// IsFault reports whether err is or wraps a Fault.
func IsFault(err error) bool {
	var f *Fault
	return errors.As(err, &f)
}

// IsPanic reports whether err is or wraps a Fault raised by a panic.
func IsPanic(err error) bool {
	var f *Fault
	if errors.As(err, &f) {
		return f.Code == FaultPanic
	}
	return false
}

// NewPredicateFault wraps a predicate error.
func NewPredicateFault(rule string, seq int64, err error) *Fault {
	return &Fault{
		Code:    FaultPredicate,
		Rule:    rule,
		Seq:     seq,
		Message: err.Error(),
		Err:     err,
	}
}

// NewPanicFault records a recovered predicate panic.
func NewPanicFault(rule string, seq int64, recovered any) *Fault {
	return &Fault{
		Code:    FaultPanic,
		Rule:    rule,
		Seq:     seq,
		Message: fmt.Sprintf("panic: %v", recovered),
	}
}

// sweepError folds the faults of one sweep into a single error. The first
// fault stays reachable through errors.As.
func sweepError(faults []*Fault) error {
	switch len(faults) {
	case 0:
		return nil
	case 1:
		return faults[0]
	default:
		return fmt.Errorf("%w (+%d more faulted rules)", faults[0], len(faults)-1)
	}
}
