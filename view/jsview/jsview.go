// Package jsview implements an embedded view whose execution context is a
// goja runtime running the fixed interpreter. Keyboard events the
// interpreter emits are handed to a Sink.
package jsview

import (
	"MultiView/action"
	"MultiView/interp"
	"MultiView/keys"
	"MultiView/loop"
	"MultiView/view"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dop251/goja"
)

// ErrDestroyed is returned by calls on a destroyed view.
var ErrDestroyed = errors.New("jsview: view destroyed")

// Sink receives the input events a view produces. It is called with the
// view locked and must not call back into the view.
type Sink interface {
	Input(id int, e view.InputEvent)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(id int, e view.InputEvent)

func (f SinkFunc) Input(id int, e view.InputEvent) { f(id, e) }

// View is a goja-backed view. The runtime is not goroutine safe, so every
// access goes through mu.
type View struct {
	id    int
	role  view.Role
	clock loop.Clock
	sink  Sink
	log   *slog.Logger

	mu        sync.Mutex
	vm        *goja.Runtime
	execute   goja.Callable
	held      goja.Callable
	state     goja.Callable
	timers    map[int64]loop.Timer
	nextTimer int64
	destroyed bool
}

var (
	_ view.View     = (*View)(nil)
	_ view.Injector = (*View)(nil)
)

// New returns a view with the interpreter loaded.
func New(id int, role view.Role, clock loop.Clock, sink Sink, log *slog.Logger) (*View, error) {
	if log == nil {
		log = slog.Default()
	}
	if sink == nil {
		sink = SinkFunc(func(int, view.InputEvent) {})
	}
	v := &View{
		id:     id,
		role:   role,
		clock:  clock,
		sink:   sink,
		log:    log.With("component", "jsview", "view", id),
		timers: make(map[int64]loop.Timer),
	}
	if err := v.Load(); err != nil {
		return nil, err
	}
	return v, nil
}

func (v *View) ID() int         { return v.id }
func (v *View) Role() view.Role { return v.role }

func (v *View) Alive() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return !v.destroyed
}

// Load creates a fresh runtime and installs the interpreter, like a page
// load would. Keys held by the previous page are forgotten.
func (v *View) Load() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.destroyed {
		return ErrDestroyed
	}
	v.stopTimers()

	vm := goja.New()
	if _, err := vm.RunString(interp.Source); err != nil {
		return fmt.Errorf("load interpreter: %w", err)
	}
	install, ok := goja.AssertFunction(vm.Get(interp.Install))
	if !ok {
		return fmt.Errorf("load interpreter: %s is not a function", interp.Install)
	}
	obj, err := install(goja.Undefined(), v.host(vm))
	if err != nil {
		return fmt.Errorf("install interpreter: %w", err)
	}
	entry := obj.ToObject(vm)
	var fns [3]goja.Callable
	for i, name := range []string{"execute", "held", "state"} {
		fn, ok := goja.AssertFunction(entry.Get(name))
		if !ok {
			return fmt.Errorf("install interpreter: missing %s", name)
		}
		fns[i] = fn
	}
	v.vm = vm
	v.execute, v.held, v.state = fns[0], fns[1], fns[2]
	v.log.Debug("interpreter loaded")
	return nil
}

// Unload drops the interpreter, like navigating to a page that does not
// have it. Run reports false until Load is called again.
func (v *View) Unload() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.stopTimers()
	v.vm, v.execute, v.held, v.state = nil, nil, nil, nil
}

// Destroy tears the view down.
func (v *View) Destroy() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.destroyed = true
	v.stopTimers()
	v.vm, v.execute, v.held, v.state = nil, nil, nil, nil
	v.log.Info("view destroyed")
}

func (v *View) stopTimers() {
	for id, t := range v.timers {
		t.Stop()
		delete(v.timers, id)
	}
}

// host builds the object the interpreter talks to.
func (v *View) host(vm *goja.Runtime) *goja.Object {
	h := vm.NewObject()
	_ = h.Set("keyDown", func(call goja.FunctionCall) goja.Value {
		v.emit(view.KeyDown, keys.Key(call.Argument(0).String()))
		return goja.Undefined()
	})
	_ = h.Set("keyUp", func(call goja.FunctionCall) goja.Value {
		v.emit(view.KeyUp, keys.Key(call.Argument(0).String()))
		return goja.Undefined()
	})
	_ = h.Set("after", func(call goja.FunctionCall) goja.Value {
		ms := call.Argument(0).ToInteger()
		fn, ok := goja.AssertFunction(call.Argument(1))
		if !ok {
			panic(vm.NewTypeError("after: not a function"))
		}
		id := v.nextTimer
		v.nextTimer++
		v.timers[id] = v.clock.AfterFunc(time.Duration(ms)*time.Millisecond, func() {
			v.fire(vm, id, fn)
		})
		return vm.ToValue(id)
	})
	_ = h.Set("cancel", func(call goja.FunctionCall) goja.Value {
		id := call.Argument(0).ToInteger()
		if t, ok := v.timers[id]; ok {
			t.Stop()
			delete(v.timers, id)
		}
		return goja.Undefined()
	})
	return h
}

// fire runs a scheduled interpreter callback if the runtime that scheduled
// it is still the current one.
func (v *View) fire(vm *goja.Runtime, id int64, fn goja.Callable) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.vm != vm {
		return
	}
	if _, ok := v.timers[id]; !ok {
		return
	}
	delete(v.timers, id)
	if _, err := fn(goja.Undefined()); err != nil {
		v.log.Warn("interpreter callback failed", "err", err)
	}
}

func (v *View) emit(t view.InputType, k keys.Key) {
	v.sink.Input(v.id, view.InputEvent{Type: t, Key: k, Code: keys.Code(k)})
}

// Run implements view.View.
func (v *View) Run(ctx context.Context, payload []byte) (bool, error) {
	if _, err := action.Decode(payload); err != nil {
		return false, err
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.destroyed {
		return false, ErrDestroyed
	}
	if v.execute == nil {
		return false, nil
	}
	if err := ctx.Err(); err != nil {
		return false, err
	}
	vm := v.vm
	interrupted := make(chan struct{})
	stop := context.AfterFunc(ctx, func() {
		defer close(interrupted)
		vm.Interrupt(ctx.Err())
	})
	res, err := v.execute(goja.Undefined(), vm.ToValue(string(payload)))
	if !stop() {
		<-interrupted
		vm.ClearInterrupt()
	}
	if err != nil {
		return false, fmt.Errorf("execute: %w", err)
	}
	return res.ToBoolean(), nil
}

// Inject implements view.Injector. Events are replayed on the clock at their
// offsets, below the interpreter.
func (v *View) Inject(_ context.Context, events []view.InputEvent) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.destroyed {
		return ErrDestroyed
	}
	for _, e := range events {
		v.clock.AfterFunc(e.At, func() {
			if v.Alive() {
				v.sink.Input(v.id, e)
			}
		})
	}
	return nil
}

// Held returns the keys the interpreter believes are down.
func (v *View) Held() []keys.Key {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.held == nil {
		return nil
	}
	res, err := v.held(goja.Undefined())
	if err != nil {
		return nil
	}
	var names []string
	if err := v.vm.ExportTo(res, &names); err != nil {
		return nil
	}
	out := make([]keys.Key, len(names))
	for i, n := range names {
		out[i] = keys.Key(n)
	}
	return out
}

// State returns the movement snapshot the interpreter keeps.
func (v *View) State() (action.Snapshot, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.state == nil {
		return action.Snapshot{}, errors.New("jsview: interpreter not loaded")
	}
	res, err := v.state(goja.Undefined())
	if err != nil {
		return action.Snapshot{}, err
	}
	var snap action.Snapshot
	if err := json.Unmarshal([]byte(res.String()), &snap); err != nil {
		return action.Snapshot{}, err
	}
	return snap, nil
}
