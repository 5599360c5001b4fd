package addon_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/armguard/internal/addon"
	"github.com/roach88/armguard/internal/config"
	"github.com/roach88/armguard/internal/rules"
	"github.com/roach88/armguard/internal/sim"
	"github.com/roach88/armguard/internal/testutil"
	"github.com/roach88/armguard/internal/vehicle"
)

func quiet() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

type bench struct {
	world *sim.World
	addon *addon.AddOn
}

func newBench(t *testing.T, cfg config.Config, params map[string]float64, setup func(w *sim.World)) *bench {
	t.Helper()
	w, err := sim.NewWorld(context.Background(), sim.Options{Params: params, Session: "test", Logger: quiet()})
	require.NoError(t, err)
	w.Terrain.Base = 100
	if setup != nil {
		setup(w)
	}
	a, err := addon.New(cfg, w.Collaborators(), quiet())
	require.NoError(t, err)
	a.Start(w.Host)
	return &bench{world: w, addon: a}
}

func (b *bench) advance(t *testing.T, d time.Duration) {
	t.Helper()
	require.NoError(t, b.world.Host.Advance(context.Background(), d))
}

func (b *bench) notes(sev vehicle.Severity) []string {
	var out []string
	for _, e := range b.world.Recorder.Filter(sim.EventNotify) {
		if e.Severity == sev {
			out = append(out, e.Text)
		}
	}
	return out
}

var allCleared = []string{
	"Cleared: Fence enabled but no fence present",
	"Cleared: Fence required for auto missions",
	"Cleared: Motor emergency stop engaged",
	"Cleared: RTL altitude above limit",
	"Cleared: RTL climb above limit",
}

func TestNew_RegistersEnabledRulesInOrder(t *testing.T) {
	b := newBench(t, config.Default(), nil, nil)

	var ids []string
	for _, r := range b.addon.Evaluator().Registry().All() {
		ids = append(ids, r.ID)
	}
	assert.Equal(t, []string{
		rules.IDFencePresent, rules.IDAutoFence, rules.IDMotorStop, rules.IDRTLAltitude, rules.IDRTLClimb,
	}, ids)
	assert.Equal(t, 1, b.world.Vehicle.Claims(), "auth slot claimed once")
	assert.Len(t, b.addon.Schedulers(), 2)
}

func TestNew_HonorsProfile(t *testing.T) {
	cfg := config.Default()
	cfg.Rules.ReturnClimb.Enabled = false
	cfg.Rules.MotorStop.Severity = "hard"
	cfg.Follow.Enabled = false

	b := newBench(t, cfg, nil, nil)

	reg := b.addon.Evaluator().Registry()
	assert.Equal(t, 4, reg.Len())
	r, ok := reg.Lookup(rules.IDMotorStop)
	require.True(t, ok)
	assert.Equal(t, rules.Hard, r.Severity)
	assert.Nil(t, b.addon.Controller())
	assert.Len(t, b.addon.Schedulers(), 1)
}

func TestNew_Rejects(t *testing.T) {
	_, err := addon.New(config.Default(), addon.Collaborators{}, quiet())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing params")

	w, err := sim.NewWorld(context.Background(), sim.Options{Logger: quiet()})
	require.NoError(t, err)
	w.Vehicle.NoAuthSlot = true
	_, err = addon.New(config.Default(), w.Collaborators(), quiet())
	assert.Error(t, err)

	cfg := config.Default()
	cfg.Schedule.SweepInterval = 0
	_, err = addon.New(cfg, w.Collaborators(), quiet())
	assert.Error(t, err)
}

func TestArming_NothingHappensDuringGrace(t *testing.T) {
	b := newBench(t, config.Default(), nil, nil)

	b.advance(t, 29*time.Second)

	assert.Empty(t, b.world.Recorder.Events())
	state, _ := b.world.Vehicle.AuthState()
	assert.Equal(t, sim.AuthPending, state)
}

func TestArming_GrantOnceThenQuiet(t *testing.T) {
	b := newBench(t, config.Default(), nil, nil)

	b.advance(t, 40*time.Second)

	assert.Len(t, b.world.Recorder.Filter(sim.EventGrant), 1)
	notes := b.world.Recorder.Filter(sim.EventNotify)
	require.Len(t, notes, len(allCleared), "one Cleared per rule on the first sweep")
	for _, n := range notes {
		assert.Equal(t, 30*time.Second, n.At)
	}
	assert.Equal(t, allCleared, b.notes(vehicle.SeverityInfo))
	state, _ := b.world.Vehicle.AuthState()
	assert.Equal(t, sim.AuthGranted, state)
}

func TestArming_DenyThenClear(t *testing.T) {
	b := newBench(t, config.Default(), map[string]float64{"FENCE_ENABLE": 1, "FENCE_TYPE": 4}, nil)

	b.advance(t, 30*time.Second)
	deny := b.world.Recorder.Filter(sim.EventDeny)
	require.Len(t, deny, 1)
	assert.Equal(t, 30*time.Second, deny[0].At)
	assert.Equal(t, "Fence enabled but no fence present", deny[0].Text)

	b.advance(t, 5*time.Second)
	assert.Len(t, b.world.Recorder.Filter(sim.EventDeny), 1, "no repeat while still failing")

	assert.Equal(t, allCleared[1:], b.notes(vehicle.SeverityInfo))

	b.world.Vehicle.Vertices = 5
	b.advance(t, 500*time.Millisecond)

	notes := b.world.Recorder.Filter(sim.EventNotify)
	require.Len(t, notes, len(allCleared))
	last := notes[len(notes)-1]
	assert.Equal(t, "Cleared: Fence enabled but no fence present", last.Text)
	assert.Equal(t, vehicle.SeverityInfo, last.Severity)
	assert.Equal(t, 35500*time.Millisecond, last.At)
	assert.Len(t, b.world.Recorder.Filter(sim.EventGrant), 1)
	require.NoError(t, b.world.Vehicle.Arm())
}

func TestArming_SoftFailureWarnsAndWithholdsGrant(t *testing.T) {
	b := newBench(t, config.Default(), nil, func(w *sim.World) { w.Vehicle.EStop = true })

	b.advance(t, 31*time.Second)

	assert.Equal(t, []string{"Motor emergency stop engaged"}, b.notes(vehicle.SeverityWarning))
	assert.NotContains(t, b.notes(vehicle.SeverityInfo), "Cleared: Motor emergency stop engaged")
	assert.Empty(t, b.world.Recorder.Filter(sim.EventDeny))
	assert.Empty(t, b.world.Recorder.Filter(sim.EventGrant))
}

func TestArming_ArmedCadence(t *testing.T) {
	b := newBench(t, config.Default(), nil, nil)
	b.advance(t, 30*time.Second)
	arming := b.addon.Schedulers()[0]
	require.Equal(t, int64(1), arming.Ticks())

	require.NoError(t, b.world.Vehicle.Arm())
	b.advance(t, 500*time.Millisecond) // picks up the armed cadence
	b.advance(t, 20*time.Second)

	assert.Equal(t, int64(4), arming.Ticks()) // 30.0, 30.5, 40.5, 50.5
}

func TestArming_FaultBacksOffAndAlerts(t *testing.T) {
	b := newBench(t, config.Default(), map[string]float64{"FENCE_ENABLE": 1, "FENCE_TYPE": 2.5}, nil)

	b.advance(t, 30*time.Second)

	alerts := b.notes(vehicle.SeverityAlert)
	require.Len(t, alerts, 1)
	assert.Contains(t, alerts[0], "arming: PREDICATE_FAULT: rule fence_present")
	assert.Len(t, b.world.Recorder.Filter(sim.EventDeny), 1, "faulted rule fails closed")

	arming := b.addon.Schedulers()[0]
	b.advance(t, 999*time.Millisecond)
	assert.Equal(t, int64(1), arming.Ticks())
	b.advance(t, time.Millisecond)
	assert.Equal(t, int64(2), arming.Ticks())
	assert.Equal(t, int64(2), arming.Faults())
}

func TestFollow_CorrectsLiveOffsetOnly(t *testing.T) {
	params := map[string]float64{"FOLL_ALT_TYPE": 10, "FOLL_OFS_Z": -5}
	b := newBench(t, config.Default(), params, func(w *sim.World) {
		w.Vehicle.CurrentMode = vehicle.ModeFollow
		w.Vehicle.Own = &vehicle.Location{Lat: -35.36, Lng: 149.16, Alt: 140}
		w.Vehicle.HasTarget = true
		w.Vehicle.TargetLoc = &vehicle.Location{Lat: -35.3605, Lng: 149.1602, Alt: 150}
	})

	b.advance(t, 30*time.Second)

	v, _ := b.world.Params.Get("FOLL_OFS_Z")
	assert.Equal(t, -15.0, v)
	d, _ := b.world.Params.Durable("FOLL_OFS_Z")
	assert.Equal(t, -5.0, d)
	assert.Contains(t, b.world.Recorder.Trace(), "notify info: Follow: tgt 50.0 own 40.0 ofs -5.0 -> -15.0")

	b.world.Params.Reboot()
	v, _ = b.world.Params.Get("FOLL_OFS_Z")
	assert.Equal(t, -5.0, v)
}

func TestFollow_RebuiltAddOnUsesSavedOffset(t *testing.T) {
	params := map[string]float64{"FOLL_ALT_TYPE": 10, "FOLL_OFS_Z": -5}
	b := newBench(t, config.Default(), params, func(w *sim.World) {
		w.Vehicle.CurrentMode = vehicle.ModeFollow
		w.Vehicle.Own = &vehicle.Location{Lat: -35.36, Lng: 149.16, Alt: 140}
		w.Vehicle.HasTarget = true
		w.Vehicle.TargetLoc = &vehicle.Location{Lat: -35.3605, Lng: 149.1602, Alt: 150}
	})
	b.advance(t, 30*time.Second)
	b.addon.Stop()

	live, _ := b.world.Params.Get("FOLL_OFS_Z")
	require.Equal(t, -15.0, live)

	// No reboot in between: the live overlay still holds the old correction.
	again, err := addon.New(config.Default(), b.world.Collaborators(), quiet())
	require.NoError(t, err)
	assert.Equal(t, -5.0, again.Controller().State().ConfiguredOffset)

	again.Start(b.world.Host)
	b.advance(t, 31*time.Second)

	live, _ = b.world.Params.Get("FOLL_OFS_Z")
	assert.Equal(t, -15.0, live, "correction does not feed back into itself")
}

func TestFollow_LiveOffsetWithoutDurableLayer(t *testing.T) {
	w, err := sim.NewWorld(context.Background(), sim.Options{Session: "test", Logger: quiet()})
	require.NoError(t, err)
	c := w.Collaborators()
	c.Params = testutil.NewParams(map[string]float64{"FOLL_OFS_Z": 7})

	a, err := addon.New(config.Default(), c, quiet())
	require.NoError(t, err)
	assert.Equal(t, 7.0, a.Controller().State().ConfiguredOffset)
}

func TestFollow_MissingOffsetParamFaults(t *testing.T) {
	params := map[string]float64{"FOLL_ALT_TYPE": 10}
	b := newBench(t, config.Default(), params, func(w *sim.World) {
		w.Vehicle.CurrentMode = vehicle.ModeFollow
		w.Vehicle.Own = &vehicle.Location{Alt: 140}
		w.Vehicle.HasTarget = true
		w.Vehicle.TargetLoc = &vehicle.Location{Alt: 150}
	})

	b.advance(t, 30*time.Second)

	follow := b.addon.Schedulers()[1]
	assert.Equal(t, int64(1), follow.Faults())
	assert.Equal(t, 0.0, b.addon.Controller().State().ConfiguredOffset)
	alerts := b.notes(vehicle.SeverityAlert)
	require.Len(t, alerts, 1)
	assert.Contains(t, alerts[0], "follow: set FOLL_OFS_Z")
}

func TestStop_DropsBothSchedulers(t *testing.T) {
	b := newBench(t, config.Default(), nil, nil)
	b.advance(t, 30*time.Second)

	b.addon.Stop()
	b.advance(t, time.Second)

	assert.Zero(t, b.world.Host.Pending())
}
