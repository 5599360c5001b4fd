package sim

import (
	"context"
	"log/slog"
	"slices"
	"time"

	"github.com/roach88/armguard/internal/sched"
)

// pending is one scheduled task.
type pending struct {
	due  time.Duration
	seq  int64
	task sched.Task
}

// Host is a discrete-event implementation of sched.Host.
//
// Tasks run one at a time in due order; tasks due at the same instant run in
// the order they were scheduled. A task's continuation is scheduled relative
// to the virtual time at which the task ran.
type Host struct {
	clock  *Clock
	queue  []pending
	seq    int64
	ran    int64
	logger *slog.Logger

	// Sleep waits d of real time in RunRealtime. Defaults to a context-aware
	// timer.
	Sleep func(ctx context.Context, d time.Duration) error
}

// NewHost creates a Host driving clock.
func NewHost(clock *Clock, logger *slog.Logger) *Host {
	if logger == nil {
		logger = slog.Default()
	}
	return &Host{clock: clock, logger: logger, Sleep: sleep}
}

// Schedule registers task to run delay after the current virtual time.
// A negative delay is treated as zero.
func (h *Host) Schedule(task sched.Task, delay time.Duration) {
	if task == nil {
		return
	}
	if delay < 0 {
		delay = 0
	}
	h.seq++
	p := pending{due: h.clock.Elapsed() + delay, seq: h.seq, task: task}

	i, _ := slices.BinarySearchFunc(h.queue, p, func(a, b pending) int {
		if a.due != b.due {
			if a.due < b.due {
				return -1
			}
			return 1
		}
		if a.seq < b.seq {
			return -1
		}
		return 1
	})
	h.queue = slices.Insert(h.queue, i, p)
}

// Pending returns the number of scheduled tasks.
func (h *Host) Pending() int { return len(h.queue) }

// Ran returns how many tasks have executed.
func (h *Host) Ran() int64 { return h.ran }

// NextDue returns the virtual time of the earliest task.
func (h *Host) NextDue() (time.Duration, bool) {
	if len(h.queue) == 0 {
		return 0, false
	}
	return h.queue[0].due, true
}

// Advance runs every task due within d of the current virtual time, then
// leaves the clock exactly d later.
func (h *Host) Advance(ctx context.Context, d time.Duration) error {
	return h.run(ctx, h.clock.Elapsed()+d, nil)
}

// RunRealtime behaves like Advance but sleeps real time between tasks.
func (h *Host) RunRealtime(ctx context.Context, d time.Duration) error {
	return h.run(ctx, h.clock.Elapsed()+d, h.Sleep)
}

func (h *Host) run(ctx context.Context, until time.Duration, wait func(context.Context, time.Duration) error) error {
	for len(h.queue) > 0 && h.queue[0].due <= until {
		if err := ctx.Err(); err != nil {
			return err
		}
		p := h.queue[0]
		h.queue[0] = pending{}
		h.queue = h.queue[1:]

		if wait != nil {
			if err := wait(ctx, p.due-h.clock.Elapsed()); err != nil {
				return err
			}
		}
		h.clock.set(p.due)
		h.ran++

		next, delay := p.task(ctx)
		if next != nil {
			h.Schedule(next, delay)
		}
	}

	if wait != nil {
		if err := wait(ctx, until-h.clock.Elapsed()); err != nil {
			return err
		}
	}
	h.clock.set(until)
	return ctx.Err()
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
