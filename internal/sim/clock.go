package sim

import "time"

// Epoch is the wall time a fresh Clock reports.
var Epoch = time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)

// Clock is virtual time. Only the Host moves it.
type Clock struct {
	elapsed time.Duration
}

// NewClock returns a clock at Epoch.
func NewClock() *Clock { return &Clock{} }

// Now returns Epoch plus elapsed virtual time.
func (c *Clock) Now() time.Time { return Epoch.Add(c.elapsed) }

// Elapsed returns virtual time since Epoch.
func (c *Clock) Elapsed() time.Duration { return c.elapsed }

// set moves the clock forward to t. Time never runs backwards.
func (c *Clock) set(t time.Duration) {
	if t > c.elapsed {
		c.elapsed = t
	}
}
