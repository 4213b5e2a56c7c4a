package sequence_test

import (
	"MultiView/action"
	"MultiView/dispatch"
	"MultiView/keys"
	"MultiView/loop/looptest"
	"MultiView/sequence"
	"MultiView/view"
	"MultiView/view/viewtest"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	clock  *looptest.Clock
	host   *viewtest.View
	player *viewtest.View
	disp   *dispatch.Dispatcher
}

func newFixture() *fixture {
	c := looptest.NewClock()
	return &fixture{
		clock:  c,
		host:   viewtest.New(0, view.RoleHost, c),
		player: viewtest.New(1, view.RolePlayer, c),
		disp:   dispatch.New(keys.QWERTY, dispatch.WithSpawner(func(f func()) { f() })),
	}
}

func (f *fixture) targets() []view.View { return []view.View{f.host, f.player} }

func press(k keys.Key) action.Action { return action.Press(100*time.Millisecond, k) }

func TestStepsRunOnceAndFinish(t *testing.T) {
	f := newFixture()
	done := 0
	r := sequence.New(sequence.Config{
		Name: "abandon",
		Program: sequence.Steps{
			{Action: press(keys.Escape), Wait: 600 * time.Millisecond},
			{Action: press(keys.Tab), Wait: 300 * time.Millisecond},
			{Action: press(keys.Enter)},
		},
		Clock:      f.clock,
		Targets:    f.targets,
		Dispatcher: f.disp,
		OnDone:     func() { done++ },
	})

	require.True(t, r.Start(context.Background()))
	assert.False(t, r.Start(context.Background()))
	assert.Len(t, f.host.Actions(), 1)
	f.clock.Advance(599 * time.Millisecond)
	assert.Len(t, f.host.Actions(), 1)
	f.clock.Advance(time.Millisecond)
	assert.Len(t, f.host.Actions(), 2)
	f.clock.Advance(300 * time.Millisecond)

	acts := f.player.Actions()
	require.Len(t, acts, 3)
	assert.Equal(t, []keys.Key{keys.Escape}, acts[0].Keys())
	assert.Equal(t, []keys.Key{keys.Tab}, acts[1].Keys())
	assert.Equal(t, []keys.Key{keys.Enter}, acts[2].Keys())
	assert.False(t, r.Active())
	assert.Equal(t, 1, done)
	assert.Zero(t, r.Pending())
}

func TestRoleFilter(t *testing.T) {
	f := newFixture()
	r := sequence.New(sequence.Config{
		Program: sequence.Steps{
			{Action: press(keys.Space), Role: view.RoleHost, Wait: 900 * time.Millisecond},
			{Action: press(keys.Space), Role: view.RolePlayer},
		},
		Clock:      f.clock,
		Targets:    f.targets,
		Dispatcher: f.disp,
	})
	r.Start(context.Background())
	assert.Len(t, f.host.Actions(), 1)
	assert.Empty(t, f.player.Actions())
	f.clock.Advance(900 * time.Millisecond)
	assert.Len(t, f.host.Actions(), 1)
	assert.Len(t, f.player.Actions(), 1)
}

func TestCycleRepeatsUntilStopped(t *testing.T) {
	f := newFixture()
	r := sequence.New(sequence.Config{
		Program: sequence.Cycle{
			{Action: action.Press(time.Second, "w"), Wait: 3 * time.Second},
			{Action: action.Press(time.Second, "a"), Wait: 3 * time.Second},
		},
		Clock:      f.clock,
		Targets:    f.targets,
		Dispatcher: f.disp,
		Release:    []keys.Key{"w", "a", "s", "d"},
	})
	r.Start(context.Background())
	f.clock.Advance(12*time.Second + 500*time.Millisecond)
	assert.Len(t, f.host.Actions(), 5)
	assert.Equal(t, []keys.Key{"w"}, f.host.Held())

	touched := r.Stop()
	assert.Len(t, touched, 2)
	assert.False(t, r.Active())
	assert.Zero(t, r.Pending())
	assert.Empty(t, f.host.Held())
	rel := f.host.Releases()
	require.Len(t, rel, 1)
	assert.Equal(t, []keys.Key{"w", "a", "s", "d"}, rel[0].Keys())

	f.clock.Advance(time.Minute)
	assert.Len(t, f.host.Presses(), 5)
}

func TestStopSweepsExtraTargets(t *testing.T) {
	f := newFixture()
	late := viewtest.New(5, view.RoleHost, f.clock)
	r := sequence.New(sequence.Config{
		Program:        sequence.Cycle{{Action: press("w"), Role: view.RoleHost, Wait: time.Second}},
		Clock:          f.clock,
		Targets:        f.targets,
		Dispatcher:     f.disp,
		Release:        []keys.Key{"w"},
		ReleaseTargets: func() []view.View { return []view.View{f.host, late} },
	})
	r.Start(context.Background())
	r.Stop()
	assert.Len(t, f.host.Releases(), 1)
	assert.Len(t, late.Releases(), 1)
	assert.Empty(t, f.player.Releases())
}

func TestTargetsResolvedEveryStep(t *testing.T) {
	f := newFixture()
	live := []view.View{f.host}
	r := sequence.New(sequence.Config{
		Program:    sequence.Cycle{{Action: press("w"), Wait: time.Second}},
		Clock:      f.clock,
		Targets:    func() []view.View { return live },
		Dispatcher: f.disp,
	})
	r.Start(context.Background())
	live = []view.View{f.player}
	f.clock.Advance(time.Second)
	live = nil
	f.clock.Advance(time.Second)
	assert.Len(t, f.host.Actions(), 1)
	assert.Len(t, f.player.Actions(), 1)
	assert.True(t, r.Active())
	assert.Equal(t, 3, r.Index())
}

type counter struct {
	resets int
	sequence.Steps
}

func (c *counter) Reset() { c.resets++ }

func TestResetOnStart(t *testing.T) {
	f := newFixture()
	p := &counter{Steps: sequence.Steps{{Action: press("w")}}}
	r := sequence.New(sequence.Config{Program: p, Clock: f.clock, Targets: f.targets, Dispatcher: f.disp})
	r.Start(context.Background())
	f.clock.Flush()
	require.False(t, r.Active())
	r.Start(context.Background())
	assert.Equal(t, 2, p.resets)
}

func TestPauseStepSendsNothing(t *testing.T) {
	f := newFixture()
	r := sequence.New(sequence.Config{
		Program:    sequence.Steps{{Wait: time.Second}, {Action: press("w")}},
		Clock:      f.clock,
		Targets:    f.targets,
		Dispatcher: f.disp,
	})
	r.Start(context.Background())
	assert.Zero(t, f.host.Runs())
	f.clock.Advance(time.Second)
	assert.Equal(t, 1, f.host.Runs())
}
