package engine

import "sync/atomic"

// Clock is a monotonic logical clock that stamps sweeps.
//
// Sweep numbers order log lines and reports without relying on wall time,
// which the host may step or freeze during initialization.
//
// Thread-safety: Clock is safe for concurrent use (atomic operations),
// although sweeps only ever run on the host's single tick goroutine.
type Clock struct {
	seq atomic.Int64
}

// NewClock creates a clock whose first Next() returns 1.
func NewClock() *Clock {
	return &Clock{}
}

// Next advances the clock and returns the new sweep number.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the last issued sweep number, or 0 before the first sweep.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}
