// Package engine implements the armguard rule evaluator.
//
// The evaluator sweeps every registered rule, detects pass/fail transitions,
// and turns them into arming-gate calls and notifications. It is driven by
// the cooperative scheduler in package sched; one sweep is one tick.
//
// ARCHITECTURE:
//
// Single-Threaded Sweeps:
// The host never runs two ticks at once, so a sweep owns all rule state
// for its duration. No locks are taken. This ensures:
//   - Predictable rule evaluation order (declaration order)
//   - Deterministic notification ordering within a sweep
//   - Simple reasoning about which sweep caused which transition
//
// Sweep Flow:
//  1. Stamp the sweep with the logical clock
//  2. Evaluate each rule once, inside its own recover boundary
//  3. Record the result; on a transition dispatch exactly one effect
//  4. AND the fresh results; grant authorization on a rising edge
//  5. Report faulted rules to the caller so the scheduler backs off
//
// Edge Triggering:
// Effects fire once per transition, never once per sweep. A rule that keeps
// failing produces one deny (Hard) or one warning (Soft) and then stays
// quiet until it clears.
//
// Fault Containment:
// A predicate that errors or panics fails closed for that rule only. The
// remaining rules in the same sweep are still evaluated and reported.
package engine
