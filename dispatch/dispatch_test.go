package dispatch_test

import (
	"MultiView/action"
	"MultiView/dispatch"
	"MultiView/keys"
	"MultiView/view"
	"MultiView/view/viewtest"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func inline(f func()) { f() }

func newDispatcher(l keys.Layout) *dispatch.Dispatcher {
	return dispatch.New(l, dispatch.WithSpawner(inline))
}

func TestDispatchDeliversSameActionToAll(t *testing.T) {
	a := viewtest.New(0, view.RoleHost, nil)
	b := viewtest.New(1, view.RolePlayer, nil)
	act := action.Move([]keys.Key{"w", "a"}, 700*time.Millisecond)

	newDispatcher(keys.QWERTY).Dispatch(context.Background(), act, []view.View{a, b})

	for _, v := range []*viewtest.View{a, b} {
		got := v.Actions()
		require.Len(t, got, 1)
		assert.Equal(t, act, got[0])
		assert.Empty(t, v.Injections())
	}
}

func TestDispatchIsolatesFailures(t *testing.T) {
	ok := viewtest.New(0, view.RoleHost, nil)
	failing := viewtest.New(1, view.RoleHost, nil)
	failing.FailRuns(errors.New("frame detached"))
	unavailable := viewtest.New(2, view.RoleHost, nil)
	unavailable.SetUnavailable(true)
	bare := viewtest.New(3, view.RoleHost, nil)
	bare.FailRuns(errors.New("gone"))
	brokenInjector := viewtest.New(4, view.RoleHost, nil)
	brokenInjector.FailRuns(errors.New("gone"))
	brokenInjector.FailInjects(errors.New("no focus"))

	targets := []view.View{ok, failing, unavailable, viewtest.WithoutInjector(bare), brokenInjector}
	act := action.Jump(keys.Space, 200*time.Millisecond)
	newDispatcher(keys.QWERTY).Dispatch(context.Background(), act, targets)

	assert.Len(t, ok.Actions(), 1)
	assert.Empty(t, ok.Injections())

	assert.Equal(t, 1, failing.Runs())
	assert.Len(t, failing.Injections(), 1)
	assert.Equal(t, 1, unavailable.Runs())
	assert.Len(t, unavailable.Injections(), 1)

	assert.Equal(t, 1, bare.Runs())
	assert.Empty(t, bare.Injections())
	assert.Equal(t, 1, brokenInjector.Runs())
	assert.Empty(t, brokenInjector.Injections())
}

func TestFallbackTimelineTranslatesToQWERTY(t *testing.T) {
	act := action.Move([]keys.Key{"z", "q"}, 500*time.Millisecond)
	got := dispatch.Fallback(act, keys.AZERTY)

	want := []view.InputEvent{
		{Type: view.MouseDown, At: 0},
		{Type: view.MouseUp, At: 100 * time.Millisecond},
		{Type: view.KeyDown, Key: "w", Code: "KeyW", At: 100 * time.Millisecond},
		{Type: view.KeyDown, Key: "a", Code: "KeyA", At: 100 * time.Millisecond},
		{Type: view.KeyUp, Key: "w", Code: "KeyW", At: 600 * time.Millisecond},
		{Type: view.KeyUp, Key: "a", Code: "KeyA", At: 600 * time.Millisecond},
	}
	assert.Equal(t, want, got)
}

func TestFallbackIncludesCorrection(t *testing.T) {
	act := action.Move([]keys.Key{"s"}, 400*time.Millisecond).
		WithCorrection("w", 500*time.Millisecond, 30*time.Millisecond)
	got := dispatch.Fallback(act, keys.QWERTY)
	require.Len(t, got, 6)
	assert.Equal(t, view.InputEvent{Type: view.KeyDown, Key: "w", Code: "KeyW", At: 530 * time.Millisecond}, got[4])
	assert.Equal(t, view.InputEvent{Type: view.KeyUp, Key: "w", Code: "KeyW", At: 1030 * time.Millisecond}, got[5])
}

func TestFallbackReleaseIsKeyUpOnly(t *testing.T) {
	got := dispatch.Fallback(action.Release("z", keys.Space), keys.AZERTY)
	assert.Equal(t, []view.InputEvent{
		{Type: view.KeyUp, Key: "w", Code: "KeyW"},
		{Type: view.KeyUp, Key: keys.Space, Code: "Space"},
	}, got)
}

func TestSendHasNoFallback(t *testing.T) {
	v := viewtest.New(0, view.RoleHost, nil)
	v.FailRuns(errors.New("gone"))
	snap := action.Snapshot{LastDirection: []keys.Key{"w"}, RecentMoves: [][]keys.Key{{"w"}}}

	newDispatcher(keys.QWERTY).Send(context.Background(), action.Sync(snap), []view.View{v})

	assert.Equal(t, 1, v.Runs())
	assert.Empty(t, v.Injections())
}

func TestDispatchRejectsInvalidAction(t *testing.T) {
	v := viewtest.New(0, view.RoleHost, nil)
	newDispatcher(keys.QWERTY).Dispatch(context.Background(), action.Move(nil, time.Second), []view.View{v})
	assert.Zero(t, v.Runs())
}

type gatedView struct {
	*viewtest.View
	gate chan struct{}
}

func (g gatedView) Run(ctx context.Context, payload []byte) (bool, error) {
	<-g.gate
	return g.View.Run(ctx, payload)
}

func TestDispatchKeepsPerViewOrder(t *testing.T) {
	v := viewtest.New(0, view.RoleHost, nil)
	d := dispatch.New(keys.QWERTY)
	for i := 0; i < 50; i++ {
		d.Dispatch(context.Background(), action.Press(time.Second, "w"), []view.View{v})
		d.Dispatch(context.Background(), action.Release("w"), []view.View{v})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, d.Wait(ctx))

	got := v.Actions()
	require.Len(t, got, 100)
	for i, a := range got {
		if i%2 == 0 {
			assert.NotEqual(t, action.KindRelease, a.Kind(), "message %d", i)
		} else {
			assert.Equal(t, action.KindRelease, a.Kind(), "message %d", i)
		}
	}
	assert.Empty(t, v.Held())
}

func TestWaitDrainsPendingDeliveries(t *testing.T) {
	gate := make(chan struct{})
	slow := gatedView{View: viewtest.New(0, view.RoleHost, nil), gate: gate}
	fast := viewtest.New(1, view.RolePlayer, nil)
	d := dispatch.New(keys.QWERTY)

	require.NoError(t, d.Wait(context.Background()))

	d.Dispatch(context.Background(), action.Press(time.Second, "w"), []view.View{slow, fast})
	d.Dispatch(context.Background(), action.Release(keys.QWERTY.Movement()...), []view.View{slow, fast})

	short, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, d.Wait(short), context.DeadlineExceeded)

	close(gate)
	ctx, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	require.NoError(t, d.Wait(ctx))

	for _, v := range []*viewtest.View{slow.View, fast} {
		require.Len(t, v.Actions(), 2)
		assert.Equal(t, action.KindRelease, v.Actions()[1].Kind())
		assert.Empty(t, v.Held())
	}
}

func TestInjectSkipsViewsWithoutInjector(t *testing.T) {
	a := viewtest.New(0, view.RoleHost, nil)
	bare := viewtest.New(1, view.RoleHost, nil)
	events := []view.InputEvent{{Type: view.KeyDown, Key: "w", Code: "KeyW"}}

	newDispatcher(keys.QWERTY).Inject(context.Background(), events, []view.View{a, viewtest.WithoutInjector(bare)})

	assert.Equal(t, [][]view.InputEvent{events}, a.Injections())
	assert.Zero(t, a.Runs())
	assert.Empty(t, bare.Injections())
}
