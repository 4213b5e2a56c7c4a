// Package viewtest provides a recording View for tests.
package viewtest

import (
	"MultiView/action"
	"MultiView/keys"
	"MultiView/loop"
	"MultiView/view"
	"context"
	"slices"
	"sync"
	"time"
)

// View records every message and injection it receives and tracks which keys
// are held, releasing timed presses through the clock it was given. A release
// action cancels every pending timed release and correction and lifts the
// keys those timers held, like the real interpreter does.
type View struct {
	mu          sync.Mutex
	id          int
	role        view.Role
	clock       loop.Clock
	destroyed   bool
	runErr      error
	unavailable bool
	injectErr   error

	runs       int
	messages   []action.Message
	injections [][]view.InputEvent
	held       map[keys.Key]int
	pressed    map[keys.Key]bool
	timers     []timedRelease
}

type timedRelease struct {
	timer loop.Timer
	lifts []keys.Key
}

var (
	_ view.View     = (*View)(nil)
	_ view.Injector = (*View)(nil)
)

// New returns a live view. clock may be nil, in which case timed presses
// stay held until released explicitly.
func New(id int, role view.Role, clock loop.Clock) *View {
	return &View{
		id:      id,
		role:    role,
		clock:   clock,
		held:    make(map[keys.Key]int),
		pressed: make(map[keys.Key]bool),
	}
}

func (v *View) ID() int         { return v.id }
func (v *View) Role() view.Role { return v.role }

func (v *View) Alive() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return !v.destroyed
}

// Destroy marks the view as torn down.
func (v *View) Destroy() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.destroyed = true
}

// FailRuns makes Run return err; nil restores normal behaviour.
func (v *View) FailRuns(err error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.runErr = err
}

// SetUnavailable makes Run report that no interpreter is loaded.
func (v *View) SetUnavailable(b bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.unavailable = b
}

// FailInjects makes Inject return err.
func (v *View) FailInjects(err error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.injectErr = err
}

// Run implements view.View.
func (v *View) Run(_ context.Context, payload []byte) (bool, error) {
	v.mu.Lock()
	v.runs++
	if v.runErr != nil {
		err := v.runErr
		v.mu.Unlock()
		return false, err
	}
	if v.unavailable {
		v.mu.Unlock()
		return false, nil
	}
	v.mu.Unlock()

	m, err := action.Decode(payload)
	if err != nil {
		return false, err
	}

	v.mu.Lock()
	v.messages = append(v.messages, m)
	v.mu.Unlock()

	if m.Op == action.OpAct {
		v.apply(m.Action)
	}
	return true, nil
}

func (v *View) apply(a action.Action) {
	ks := a.Keys()
	if a.Kind() == action.KindRelease {
		v.mu.Lock()
		for _, t := range v.timers {
			if t.timer.Stop() {
				ks = append(ks, t.lifts...)
			}
		}
		v.timers = nil
		v.mu.Unlock()
		v.release(ks)
		return
	}
	v.press(ks)
	if v.clock == nil {
		return
	}
	v.after(a.Hold(), ks, func() {
		v.release(ks)
		k, hold, delay, ok := a.Correction()
		if !ok {
			return
		}
		v.after(delay, nil, func() {
			v.press([]keys.Key{k})
			v.after(hold, []keys.Key{k}, func() { v.release([]keys.Key{k}) })
		})
	})
}

func (v *View) after(d time.Duration, lifts []keys.Key, f func()) {
	t := v.clock.AfterFunc(d, f)
	v.mu.Lock()
	v.timers = append(v.timers, timedRelease{timer: t, lifts: lifts})
	v.mu.Unlock()
}

func (v *View) press(ks []keys.Key) {
	v.mu.Lock()
	defer v.mu.Unlock()
	for _, k := range ks {
		v.held[k]++
		v.pressed[k] = true
	}
}

func (v *View) release(ks []keys.Key) {
	v.mu.Lock()
	defer v.mu.Unlock()
	for _, k := range ks {
		delete(v.held, k)
	}
}

// Inject implements view.Injector.
func (v *View) Inject(_ context.Context, events []view.InputEvent) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.injectErr != nil {
		return v.injectErr
	}
	v.injections = append(v.injections, slices.Clone(events))
	return nil
}

// Runs returns how many times Run was called, failed calls included.
func (v *View) Runs() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.runs
}

// Messages returns the messages Run accepted.
func (v *View) Messages() []action.Message {
	v.mu.Lock()
	defer v.mu.Unlock()
	return slices.Clone(v.messages)
}

// Actions returns the actions Run accepted, in order.
func (v *View) Actions() []action.Action {
	var out []action.Action
	for _, m := range v.Messages() {
		if m.Op == action.OpAct {
			out = append(out, m.Action)
		}
	}
	return out
}

// Presses returns the accepted actions that hold keys down.
func (v *View) Presses() []action.Action {
	var out []action.Action
	for _, a := range v.Actions() {
		if a.Kind() != action.KindRelease {
			out = append(out, a)
		}
	}
	return out
}

// Releases returns the accepted release actions.
func (v *View) Releases() []action.Action {
	var out []action.Action
	for _, a := range v.Actions() {
		if a.Kind() == action.KindRelease {
			out = append(out, a)
		}
	}
	return out
}

// Snapshots returns the sync messages received.
func (v *View) Snapshots() []action.Snapshot {
	var out []action.Snapshot
	for _, m := range v.Messages() {
		if m.Op == action.OpSync && m.State != nil {
			out = append(out, *m.State)
		}
	}
	return out
}

// Injections returns every injected timeline.
func (v *View) Injections() [][]view.InputEvent {
	v.mu.Lock()
	defer v.mu.Unlock()
	return slices.Clone(v.injections)
}

// Held returns the keys currently down, sorted.
func (v *View) Held() []keys.Key {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make([]keys.Key, 0, len(v.held))
	for k := range v.held {
		out = append(out, k)
	}
	slices.Sort(out)
	return out
}

// EverPressed returns every key that was held at some point, sorted.
func (v *View) EverPressed() []keys.Key {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make([]keys.Key, 0, len(v.pressed))
	for k := range v.pressed {
		out = append(out, k)
	}
	slices.Sort(out)
	return out
}

// Bare hides the Injector capability of a view.
type Bare struct{ view.View }

// WithoutInjector wraps v so it only exposes view.View.
func WithoutInjector(v view.View) view.View { return Bare{v} }
