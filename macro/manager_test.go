package macro_test

import (
	"MultiView/action"
	"MultiView/afk"
	"MultiView/dispatch"
	"MultiView/group"
	"MultiView/keys"
	"MultiView/loop/looptest"
	"MultiView/macro"
	"MultiView/movement"
	"MultiView/status"
	"MultiView/view"
	"MultiView/view/viewtest"
	"context"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type panels struct{ sync, macros int }

func (p *panels) OpenSyncPanel()  { p.sync++ }
func (p *panels) OpenMacroPanel() { p.macros++ }

type fixture struct {
	clock  *looptest.Clock
	reg    *view.Registry
	groups *group.Groups
	status *status.Recorder
	panels *panels
	hosts  []*viewtest.View
	player []*viewtest.View
	mgr    *macro.Manager
}

// newFixture registers hosts 0..h-1 followed by players.
func newFixture(t *testing.T, h, p int) *fixture {
	t.Helper()
	f := &fixture{
		clock:  looptest.NewClock(),
		reg:    view.NewRegistry(),
		groups: group.NewGroups(),
		status: &status.Recorder{},
		panels: &panels{},
	}
	for i := 0; i < h+p; i++ {
		role := view.RoleHost
		if i >= h {
			role = view.RolePlayer
		}
		v := viewtest.New(i, role, f.clock)
		f.reg.Add(v)
		if role == view.RoleHost {
			f.hosts = append(f.hosts, v)
		} else {
			f.player = append(f.player, v)
		}
	}
	f.groups.InitDefault(nil)
	f.mgr = macro.New(macro.Config{
		Clock:      f.clock,
		Views:      f.reg,
		Groups:     f.groups,
		Dispatcher: dispatch.New(keys.AZERTY, dispatch.WithSpawner(func(fn func()) { fn() })),
		Layout:     keys.AZERTY,
		Policy:     azerty(movement.Synchronized()),
		Notifier:   f.status,
		Prompter:   f.status,
		Panels:     f.panels,
		Rand:       rand.New(rand.NewPCG(3, 5)),
	})
	return f
}

func azerty(p movement.Policy) movement.Policy {
	p.Layout = keys.AZERTY
	return p
}

func pressed(v *viewtest.View) []keys.Key {
	var out []keys.Key
	for _, a := range v.Presses() {
		out = append(out, a.Keys()...)
	}
	return out
}

func (f *fixture) exec(id string) {
	f.mgr.Execute(context.Background(), id, "warzone")
}

func TestPanelsOpen(t *testing.T) {
	f := newFixture(t, 1, 0)
	f.exec(macro.SyncPanel)
	f.exec(macro.MacroPanel)
	f.exec(macro.MacroPanel)
	assert.Equal(t, 1, f.panels.sync)
	assert.Equal(t, 2, f.panels.macros)
	assert.Zero(t, f.hosts[0].Runs())
}

func TestUnknownMacroIsIgnored(t *testing.T) {
	f := newFixture(t, 1, 1)
	f.exec("macro42")
	f.clock.Advance(time.Minute)
	assert.Zero(t, f.hosts[0].Runs())
	assert.Empty(t, f.status.Changes())
	assert.Empty(t, f.mgr.Running())
}

func TestOneShotsUseAllViewsWhenNothingSynced(t *testing.T) {
	f := newFixture(t, 1, 1)
	f.exec(macro.MultiSearch)
	for _, v := range []*viewtest.View{f.hosts[0], f.player[0]} {
		assert.Equal(t, []keys.Key{"r"}, pressed(v))
	}
	f.clock.Advance(time.Second)
	assert.Empty(t, f.mgr.Running())
}

func TestOneShotsPreferSynchronizedViews(t *testing.T) {
	f := newFixture(t, 2, 0)
	f.mgr.Synchronize([]int{1})
	f.exec(macro.Fullscreen)
	assert.Empty(t, pressed(f.hosts[0]))
	assert.Equal(t, []keys.Key{keys.F11}, pressed(f.hosts[1]))
}

func TestOneShotWithoutViewsDoesNothing(t *testing.T) {
	f := newFixture(t, 0, 0)
	f.exec(macro.Abandon)
	assert.Empty(t, f.mgr.Running())
	assert.Zero(t, f.clock.Pending())
}

func TestAbandonSequenceTiming(t *testing.T) {
	f := newFixture(t, 1, 0)
	v := f.hosts[0]
	f.exec(macro.Abandon)
	assert.Equal(t, []keys.Key{keys.Escape}, pressed(v))

	f.clock.Advance(599 * time.Millisecond)
	assert.Len(t, pressed(v), 1)
	f.clock.Advance(time.Millisecond)
	assert.Equal(t, []keys.Key{keys.Escape, keys.Tab}, pressed(v))
	f.clock.Advance(300 * time.Millisecond)
	assert.Equal(t, []keys.Key{keys.Escape, keys.Tab, keys.Tab}, pressed(v))
	f.clock.Advance(300 * time.Millisecond)
	assert.Equal(t, []keys.Key{keys.Escape, keys.Tab, keys.Tab, keys.Enter}, pressed(v))
	for _, a := range v.Presses() {
		assert.Equal(t, 100*time.Millisecond, a.Hold())
	}

	f.clock.Advance(time.Second)
	assert.Empty(t, f.mgr.Running())
	assert.Empty(t, v.Held())
}

func TestAutoDropHostsThenPlayers(t *testing.T) {
	f := newFixture(t, 1, 1)
	f.exec(macro.AutoDrop)
	assert.Equal(t, []keys.Key{keys.Space}, pressed(f.hosts[0]))
	assert.Empty(t, pressed(f.player[0]))

	f.clock.Advance(899 * time.Millisecond)
	assert.Empty(t, pressed(f.player[0]))
	f.clock.Advance(time.Millisecond)
	assert.Equal(t, []keys.Key{keys.Space}, pressed(f.player[0]))
	assert.Len(t, pressed(f.hosts[0]), 1)
}

func TestMovementNeedsSynchronizedViews(t *testing.T) {
	f := newFixture(t, 2, 0)
	f.exec(macro.Movement)
	assert.False(t, f.mgr.Active(movement.Macro))
	assert.Equal(t, 1, f.status.Prompts())
	assert.Zero(t, f.hosts[0].Runs())

	f.mgr.Synchronize([]int{0, 1})
	f.exec(macro.Movement)
	assert.True(t, f.mgr.Active(movement.Macro))
	assert.True(t, f.status.Active(movement.Macro))
	assert.Equal(t, []keys.Key{keys.Space}, pressed(f.hosts[0]))

	f.exec(macro.Movement)
	assert.False(t, f.mgr.Active(movement.Macro))
	assert.Zero(t, f.clock.Pending())
	assert.Empty(t, f.hosts[0].Held())
}

func TestSynchronizeDuringWalkSendsSnapshot(t *testing.T) {
	f := newFixture(t, 3, 0)
	f.mgr.Synchronize([]int{0, 1})
	f.exec(macro.Movement)
	f.clock.Advance(5 * time.Second)
	require.Equal(t, movement.Walking, f.mgr.Movement().State().Phase)

	d := f.mgr.Synchronize([]int{0, 2})
	assert.Equal(t, []int{2}, d.Joined)
	assert.Equal(t, []int{1}, d.Left)

	require.Len(t, f.hosts[2].Snapshots(), 1)
	assert.Equal(t, f.mgr.Movement().Snapshot(), f.hosts[2].Snapshots()[0])
	rel := f.hosts[1].Releases()
	require.NotEmpty(t, rel)
	assert.ElementsMatch(t, keys.AZERTY.All(), rel[len(rel)-1].Keys())

	assert.True(t, f.mgr.Synchronize([]int{0, 2}).Empty())
	f.mgr.Shutdown()
}

func TestAFKTogglesAndStatus(t *testing.T) {
	f := newFixture(t, 1, 1)

	f.exec(macro.AFKHost)
	f.exec(macro.AFKPlayer)
	assert.True(t, f.mgr.Active(afk.MacroHost))
	assert.True(t, f.mgr.Active(afk.MacroPlayer))
	assert.Equal(t, []keys.Key{"z"}, pressed(f.hosts[0]))
	require.Len(t, pressed(f.player[0]), 1)

	f.exec(macro.AFKHost)
	assert.False(t, f.mgr.Active(afk.MacroHost))
	assert.False(t, f.status.Active(afk.MacroHost))
	assert.True(t, f.status.Active(afk.MacroPlayer))
	rel := f.hosts[0].Releases()
	require.Len(t, rel, 1)
	assert.Equal(t, keys.AZERTY.Movement(), rel[0].Keys())
}

func TestShutdownStopsEverything(t *testing.T) {
	f := newFixture(t, 1, 1)
	f.mgr.Synchronize([]int{0, 1})
	f.exec(macro.Movement)
	f.exec(macro.AFKCombined)
	f.exec(macro.Abandon)
	require.Len(t, f.mgr.Running(), 1)

	f.mgr.Shutdown()
	for _, id := range []int{movement.Macro, afk.MacroCombined} {
		assert.False(t, f.mgr.Active(id))
		assert.False(t, f.status.Active(id))
	}
	assert.Empty(t, f.mgr.Running())

	f.clock.Advance(time.Minute)
	for _, v := range append(f.hosts, f.player...) {
		assert.Empty(t, v.Held(), "view %d", v.ID())
		last := v.Actions()[len(v.Actions())-1]
		assert.Equal(t, action.KindRelease, last.Kind())
	}
}

func keyInputs(t view.InputType, ks ...keys.Key) []view.InputEvent {
	out := make([]view.InputEvent, len(ks))
	for i, k := range ks {
		out[i] = view.InputEvent{Type: t, Key: k, Code: keys.Code(k)}
	}
	return out
}

func TestMirrorReplaysKeysOnOtherSynchronizedViews(t *testing.T) {
	f := newFixture(t, 1, 2)
	ctx := context.Background()
	f.mgr.Synchronize([]int{0, 1})

	f.mgr.Mirror(ctx, 0, "w", true)
	f.mgr.Mirror(ctx, 0, "w", false)
	f.mgr.Mirror(ctx, 2, "a", true)
	f.mgr.Mirror(ctx, 0, "", true)

	assert.Empty(t, f.hosts[0].Injections())
	assert.Equal(t, [][]view.InputEvent{
		keyInputs(view.KeyDown, "w"),
		keyInputs(view.KeyUp, "w"),
	}, f.player[0].Injections())
	assert.Empty(t, f.player[1].Injections())
	for _, v := range append(f.hosts, f.player...) {
		assert.Zero(t, v.Runs())
	}
}

func TestMirroredKeysAreLiftedWhenViewsLeave(t *testing.T) {
	f := newFixture(t, 1, 2)
	ctx := context.Background()
	f.mgr.Synchronize([]int{0, 1, 2})
	f.mgr.Mirror(ctx, 0, "w", true)
	f.mgr.Mirror(ctx, 0, "a", true)

	f.mgr.Synchronize([]int{0, 2})
	got := f.player[0].Injections()
	require.Len(t, got, 3)
	assert.Equal(t, keyInputs(view.KeyUp, "a", "w"), got[2])

	f.mgr.Shutdown()
	got = f.player[1].Injections()
	require.Len(t, got, 3)
	assert.Equal(t, keyInputs(view.KeyUp, "a", "w"), got[2])

	f.mgr.Mirror(ctx, 0, "w", false)
	assert.Len(t, f.player[0].Injections(), 3)
	assert.Len(t, f.player[1].Injections(), 3)
}
