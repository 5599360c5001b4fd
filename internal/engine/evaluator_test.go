package engine

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/armguard/internal/rules"
	"github.com/roach88/armguard/internal/testutil"
	"github.com/roach88/armguard/internal/vehicle"
)

// switchRule is a test rule whose outcome is toggled by the test.
type switchRule struct {
	pass  bool
	err   error
	panic bool
	calls int
}

func (s *switchRule) predicate() (bool, error) {
	s.calls++
	if s.panic {
		panic("sensor driver crashed")
	}
	return s.pass, s.err
}

type fixture struct {
	eval     *Evaluator
	arming   *testutil.Arming
	notifier *testutil.Notifier
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newFixture(t *testing.T, descs ...rules.Descriptor) *fixture {
	t.Helper()
	reg := rules.NewRegistry()
	for _, d := range descs {
		require.NoError(t, reg.Register(d))
	}
	arming := &testutil.Arming{ID: 7}
	notifier := &testutil.Notifier{}
	eval, err := New(reg, arming, notifier, WithLogger(quietLogger()))
	require.NoError(t, err)
	return &fixture{eval: eval, arming: arming, notifier: notifier}
}

func (f *fixture) sweep(t *testing.T) Report {
	t.Helper()
	report, err := f.eval.Sweep(context.Background())
	require.NoError(t, err)
	return report
}

func TestNew_ClaimsAuthSlotOnceAndSeals(t *testing.T) {
	reg := rules.NewRegistry()
	arming := &testutil.Arming{ID: 3}

	eval, err := New(reg, arming, &testutil.Notifier{})
	require.NoError(t, err)

	assert.Equal(t, vehicle.AuthID(3), eval.AuthID())
	assert.Equal(t, 1, arming.Claims())
	assert.True(t, reg.Sealed())

	_, err = eval.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, arming.Claims(), "sweeps must not re-claim the slot")
}

func TestNew_NoAuthSlot(t *testing.T) {
	_, err := New(rules.NewRegistry(), &testutil.Arming{NoSlot: true}, &testutil.Notifier{})
	assert.ErrorIs(t, err, ErrNoAuthSlot)
}

func TestNew_RequiresCollaborators(t *testing.T) {
	_, err := New(nil, &testutil.Arming{}, &testutil.Notifier{})
	assert.Error(t, err)
}

func TestSweep_FirstPassNotifiesClearedAndGrants(t *testing.T) {
	r := &switchRule{pass: true}
	f := newFixture(t, rules.Define("a", rules.Hard, "A broken", r.predicate, true))

	report := f.sweep(t)

	assert.True(t, report.Passed)
	assert.True(t, report.Granted)
	require.Len(t, report.Transitions, 1)
	assert.Equal(t, rules.Unknown, report.Transitions[0].From)
	assert.Equal(t, ActionCleared, report.Transitions[0].Action)
	assert.Equal(t, []string{"Cleared: A broken"}, f.notifier.Texts(vehicle.SeverityInfo))
	assert.Equal(t, 1, f.arming.Grants())
	assert.Empty(t, f.arming.Denials())

	f.sweep(t)
	assert.Len(t, f.notifier.Sent, 1, "stable pass stays quiet")
}

func TestSweep_HardFailureDeniesOncePerTransition(t *testing.T) {
	r := &switchRule{pass: false}
	f := newFixture(t, rules.Define("fence", rules.Hard, "Fence missing", r.predicate, true))

	report := f.sweep(t)
	assert.False(t, report.Passed)
	assert.Equal(t, []string{"Fence missing"}, f.arming.Denials())

	for i := 0; i < 5; i++ {
		report = f.sweep(t)
		assert.Empty(t, report.Transitions)
	}
	assert.Len(t, f.arming.Denials(), 1, "stable failure must not re-deny")
	assert.Zero(t, f.arming.Grants())
	assert.Empty(t, f.notifier.Sent)
}

func TestSweep_ClearingHardFailureNotifiesAndGrants(t *testing.T) {
	r := &switchRule{pass: false}
	f := newFixture(t, rules.Define("fence", rules.Hard, "Fence missing", r.predicate, true))
	f.sweep(t)

	r.pass = true
	report := f.sweep(t)

	require.Len(t, report.Transitions, 1)
	assert.Equal(t, ActionCleared, report.Transitions[0].Action)
	assert.Equal(t, rules.Fail, report.Transitions[0].From)
	assert.Equal(t, rules.Pass, report.Transitions[0].To)
	assert.Equal(t, []string{"Cleared: Fence missing"}, f.notifier.Texts(vehicle.SeverityInfo))
	assert.Equal(t, 1, f.arming.Grants())

	f.sweep(t)
	f.sweep(t)
	assert.Len(t, f.notifier.Sent, 1)
	assert.Equal(t, 1, f.arming.Grants(), "stable pass must not re-grant")
}

func TestSweep_SoftFailureWarnsWithoutDenying(t *testing.T) {
	r := &switchRule{pass: false}
	f := newFixture(t, rules.Define("estop", rules.Soft, "E-stop engaged", r.predicate, true))

	report := f.sweep(t)
	f.sweep(t)

	assert.False(t, report.Passed)
	assert.Equal(t, []string{"E-stop engaged"}, f.notifier.Texts(vehicle.SeverityWarning))
	assert.Empty(t, f.arming.Denials())
	assert.Zero(t, f.arming.Grants(), "a failing aggregate never grants")
}

func TestSweep_GrantRequiresEveryRuleInSameSweep(t *testing.T) {
	a := &switchRule{pass: true}
	b := &switchRule{pass: false}
	f := newFixture(t,
		rules.Define("a", rules.Hard, "A", a.predicate, true),
		rules.Define("b", rules.Soft, "B", b.predicate, true),
	)

	assert.False(t, f.sweep(t).Passed)
	assert.Zero(t, f.arming.Grants())

	b.pass = true
	report := f.sweep(t)
	assert.True(t, report.Passed)
	assert.True(t, report.Granted)

	a.pass = false
	report = f.sweep(t)
	assert.False(t, report.Passed)
	assert.False(t, report.Granted)
	assert.Equal(t, []string{"A"}, f.arming.Denials())

	a.pass = true
	report = f.sweep(t)
	assert.True(t, report.Granted, "recovery re-grants after a deny")
	assert.Equal(t, 2, f.arming.Grants())
}

func TestSweep_EvaluatesEachPredicateOnce(t *testing.T) {
	a := &switchRule{pass: true}
	b := &switchRule{pass: false}
	f := newFixture(t,
		rules.Define("a", rules.Hard, "A", a.predicate, true),
		rules.Define("b", rules.Hard, "B", b.predicate, true),
	)

	f.sweep(t)
	f.sweep(t)

	assert.Equal(t, 2, a.calls)
	assert.Equal(t, 2, b.calls)
}

func TestSweep_NotificationOrderFollowsDeclarationOrder(t *testing.T) {
	rs := []*switchRule{{}, {}, {}}
	f := newFixture(t,
		rules.Define("z", rules.Soft, "Z", rs[0].predicate, true),
		rules.Define("a", rules.Soft, "A", rs[1].predicate, true),
		rules.Define("m", rules.Soft, "M", rs[2].predicate, true),
	)

	f.sweep(t)
	assert.Equal(t, []string{"Z", "A", "M"}, f.notifier.Texts(vehicle.SeverityWarning))
}

func TestSweep_FaultingRuleDoesNotHideOthers(t *testing.T) {
	bad := &switchRule{panic: true}
	good := &switchRule{pass: false}
	f := newFixture(t,
		rules.Define("bad", rules.Hard, "Bad", bad.predicate, true),
		rules.Define("good", rules.Soft, "Good", good.predicate, true),
	)

	report, err := f.eval.Sweep(context.Background())

	require.Error(t, err)
	assert.True(t, IsPanic(err))
	require.Len(t, report.Faults, 1)
	assert.Equal(t, "bad", report.Faults[0].Rule)
	assert.Equal(t, 1, good.calls, "rules after a faulted rule still run")
	assert.Equal(t, []string{"Good"}, f.notifier.Texts(vehicle.SeverityWarning))
	assert.Equal(t, []string{"Bad"}, f.arming.Denials(), "faulted hard rule fails closed")
	assert.False(t, report.Passed)
}

func TestSweep_PredicateErrorIsFault(t *testing.T) {
	boom := errors.New("parameter table locked")
	r := &switchRule{err: boom}
	f := newFixture(t, rules.Define("p", rules.Hard, "P", r.predicate, true))

	_, err := f.eval.Sweep(context.Background())

	require.Error(t, err)
	assert.True(t, IsFault(err))
	assert.False(t, IsPanic(err))
	assert.ErrorIs(t, err, boom)
}

func TestSweep_MultipleFaultsReportCount(t *testing.T) {
	a := &switchRule{err: errors.New("a")}
	b := &switchRule{panic: true}
	f := newFixture(t,
		rules.Define("a", rules.Hard, "A", a.predicate, true),
		rules.Define("b", rules.Hard, "B", b.predicate, true),
	)

	report, err := f.eval.Sweep(context.Background())

	require.Error(t, err)
	assert.Len(t, report.Faults, 2)
	assert.Contains(t, err.Error(), "+1 more faulted rules")
	assert.True(t, IsFault(err))
}

func TestSweep_StampsSequence(t *testing.T) {
	f := newFixture(t)
	assert.Equal(t, int64(1), f.sweep(t).Seq)
	assert.Equal(t, int64(2), f.sweep(t).Seq)
	assert.Equal(t, int64(2), f.eval.Clock().Current())
}

func TestSweep_DirtyClearedAfterHandling(t *testing.T) {
	r := &switchRule{pass: false}
	f := newFixture(t, rules.Define("d", rules.Hard, "D", r.predicate, true))
	f.sweep(t)

	rule, ok := f.eval.Registry().Lookup("d")
	require.True(t, ok)
	assert.False(t, rule.Dirty())
	assert.Equal(t, rules.Fail, rule.Last())
}
