package sim

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/armguard/internal/sched"
)

func recordingTask(log *[]string, name string, every time.Duration, clock *Clock) sched.Task {
	var task sched.Task
	task = func(context.Context) (sched.Task, time.Duration) {
		*log = append(*log, name+"@"+clock.Elapsed().String())
		return task, every
	}
	return task
}

func TestHost_RunsInDueOrderWithStableTies(t *testing.T) {
	clock := NewClock()
	h := NewHost(clock, nil)
	var log []string

	h.Schedule(recordingTask(&log, "a", time.Second, clock), time.Second)
	h.Schedule(recordingTask(&log, "b", 500*time.Millisecond, clock), 500*time.Millisecond)
	h.Schedule(recordingTask(&log, "c", time.Second, clock), time.Second)

	require.NoError(t, h.Advance(context.Background(), 2*time.Second))

	assert.Equal(t, []string{
		"b@500ms",
		"a@1s", "c@1s", "b@1s",
		"b@1.5s",
		"a@2s", "c@2s", "b@2s",
	}, log)
	assert.Equal(t, 2*time.Second, clock.Elapsed())
}

func TestHost_NilContinuationDropsTask(t *testing.T) {
	clock := NewClock()
	h := NewHost(clock, nil)
	calls := 0
	h.Schedule(func(context.Context) (sched.Task, time.Duration) {
		calls++
		return nil, 0
	}, 0)

	require.NoError(t, h.Advance(context.Background(), time.Minute))

	assert.Equal(t, 1, calls)
	assert.Zero(t, h.Pending())
	assert.Equal(t, int64(1), h.Ran())
}

func TestHost_AdvanceStopsAtBoundary(t *testing.T) {
	clock := NewClock()
	h := NewHost(clock, nil)
	var log []string
	h.Schedule(recordingTask(&log, "x", time.Second, clock), 30*time.Second)

	require.NoError(t, h.Advance(context.Background(), 29999*time.Millisecond))
	assert.Empty(t, log)
	due, ok := h.NextDue()
	assert.True(t, ok)
	assert.Equal(t, 30*time.Second, due)

	require.NoError(t, h.Advance(context.Background(), time.Millisecond))
	assert.Equal(t, []string{"x@30s"}, log)
}

func TestHost_NegativeDelayRunsNow(t *testing.T) {
	h := NewHost(NewClock(), nil)
	ran := false
	h.Schedule(func(context.Context) (sched.Task, time.Duration) {
		ran = true
		return nil, 0
	}, -time.Second)

	require.NoError(t, h.Advance(context.Background(), 0))
	assert.True(t, ran)
}

func TestHost_CanceledContext(t *testing.T) {
	h := NewHost(NewClock(), nil)
	h.Schedule(func(context.Context) (sched.Task, time.Duration) { return nil, 0 }, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := h.Advance(ctx, 2*time.Second)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, h.Pending())
}

func TestHost_RunRealtimeSleepsBetweenTasks(t *testing.T) {
	clock := NewClock()
	h := NewHost(clock, nil)
	var slept []time.Duration
	h.Sleep = func(_ context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}
	var log []string
	h.Schedule(recordingTask(&log, "t", 400*time.Millisecond, clock), 100*time.Millisecond)

	require.NoError(t, h.RunRealtime(context.Background(), time.Second))

	assert.Equal(t, []string{"t@100ms", "t@500ms", "t@900ms"}, log)
	assert.Equal(t, []time.Duration{
		100 * time.Millisecond, 400 * time.Millisecond, 400 * time.Millisecond, 100 * time.Millisecond,
	}, slept)
}

func TestHost_RunRealtimeSleepError(t *testing.T) {
	h := NewHost(NewClock(), nil)
	stop := errors.New("interrupted")
	h.Sleep = func(context.Context, time.Duration) error { return stop }
	h.Schedule(func(context.Context) (sched.Task, time.Duration) { return nil, 0 }, time.Second)

	assert.ErrorIs(t, h.RunRealtime(context.Background(), 2*time.Second), stop)
}

func TestHost_DrivesScheduler(t *testing.T) {
	clock := NewClock()
	h := NewHost(clock, nil)
	ticks := 0
	s, err := sched.New("sampler", func(context.Context) error {
		ticks++
		return nil
	}, sched.Options{
		Grace:   30 * time.Second,
		Cadence: sched.Fixed(500 * time.Millisecond),
		Guard:   sched.NewGuard("sampler", nil, time.Second, nil),
	})
	require.NoError(t, err)

	s.Start(h)
	require.NoError(t, h.Advance(context.Background(), 31*time.Second))

	assert.Equal(t, 3, ticks) // 30.0, 30.5, 31.0
}
