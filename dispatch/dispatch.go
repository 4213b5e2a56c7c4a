// Package dispatch delivers one encoded action to a list of views.
//
// Every target has its own ordered queue drained on its own goroutine, so
// messages reach a view in the order they were dispatched. A failing target
// never affects the others and never reaches the caller: it gets exactly one
// fallback attempt through low-level input injection and is otherwise skipped
// until the next tick.
package dispatch

import (
	"MultiView/action"
	"MultiView/keys"
	"MultiView/view"
	"context"
	"log/slog"
	"sync"
	"time"
)

const (
	// DefaultTimeout bounds a single remote call.
	DefaultTimeout = 2 * time.Second
	// clickHold is how long the focusing click stays down in a fallback.
	clickHold = 100 * time.Millisecond
)

// Dispatcher sends actions to views.
type Dispatcher struct {
	log     *slog.Logger
	spawn   func(func())
	timeout time.Duration
	layout  keys.Layout

	mu       sync.Mutex
	queues   map[int]*queue
	inflight int
	idle     chan struct{}
}

type queue struct {
	jobs []func()
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(d *Dispatcher) { d.log = l }
}

// WithSpawner replaces the function used to start a per-target queue drain.
// Tests pass a function that runs work inline.
func WithSpawner(spawn func(func())) Option {
	return func(d *Dispatcher) { d.spawn = spawn }
}

// WithTimeout sets the per-call timeout.
func WithTimeout(t time.Duration) Option {
	return func(d *Dispatcher) { d.timeout = t }
}

// New returns a dispatcher for actions written against layout. Fallback
// input is translated from layout onto QWERTY positions.
func New(layout keys.Layout, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		log:     slog.Default(),
		spawn:   func(f func()) { go f() },
		timeout: DefaultTimeout,
		layout:  layout,
		queues:  make(map[int]*queue),
	}
	for _, o := range opts {
		o(d)
	}
	d.log = d.log.With("component", "dispatch")
	return d
}

// Dispatch encodes a once and queues it for every target. It returns as soon
// as the per-target work has been queued.
func (d *Dispatcher) Dispatch(ctx context.Context, a action.Action, targets []view.View) {
	payload, err := action.Encode(action.Act(a))
	if err != nil {
		d.log.Error("encode action", "action", a.String(), "err", err)
		return
	}
	for _, v := range targets {
		d.enqueue(v.ID(), func() { d.deliver(ctx, v, a, payload, true) })
	}
}

// Send hands a state-only message to every target without any fallback.
func (d *Dispatcher) Send(ctx context.Context, m action.Message, targets []view.View) {
	payload, err := action.Encode(m)
	if err != nil {
		d.log.Error("encode message", "op", m.Op, "err", err)
		return
	}
	for _, v := range targets {
		d.enqueue(v.ID(), func() { d.deliver(ctx, v, m.Action, payload, false) })
	}
}

// Inject queues a raw input timeline for every target that accepts one.
// Targets without an injector are skipped.
func (d *Dispatcher) Inject(ctx context.Context, events []view.InputEvent, targets []view.View) {
	for _, v := range targets {
		inj, ok := v.(view.Injector)
		if !ok {
			d.log.Debug("no input injector", "view", v.ID())
			continue
		}
		d.enqueue(v.ID(), func() {
			cctx, cancel := context.WithTimeout(ctx, d.timeout)
			defer cancel()
			if err := inj.Inject(cctx, events); err != nil {
				d.log.Warn("input injection failed", "view", v.ID(), "err", err)
			}
		})
	}
}

// Wait blocks until every dispatched message has been delivered or given up
// on, or until ctx is done.
func (d *Dispatcher) Wait(ctx context.Context) error {
	d.mu.Lock()
	if d.inflight == 0 {
		d.mu.Unlock()
		return nil
	}
	idle := d.idle
	d.mu.Unlock()
	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Dispatcher) enqueue(id int, job func()) {
	d.mu.Lock()
	if d.inflight == 0 {
		d.idle = make(chan struct{})
	}
	d.inflight++
	q, draining := d.queues[id]
	if !draining {
		q = &queue{}
		d.queues[id] = q
	}
	q.jobs = append(q.jobs, job)
	d.mu.Unlock()
	if !draining {
		d.spawn(func() { d.drain(id, q) })
	}
}

func (d *Dispatcher) drain(id int, q *queue) {
	for {
		d.mu.Lock()
		if len(q.jobs) == 0 {
			delete(d.queues, id)
			d.mu.Unlock()
			return
		}
		job := q.jobs[0]
		q.jobs = q.jobs[1:]
		d.mu.Unlock()

		job()

		d.mu.Lock()
		d.inflight--
		if d.inflight == 0 {
			close(d.idle)
		}
		d.mu.Unlock()
	}
}

func (d *Dispatcher) deliver(ctx context.Context, v view.View, a action.Action, payload []byte, fallback bool) {
	log := d.log.With("view", v.ID())
	cctx, cancel := context.WithTimeout(ctx, d.timeout)
	ok, err := v.Run(cctx, payload)
	cancel()
	switch {
	case err != nil:
		log.Warn("remote action failed", "err", err)
	case !ok:
		log.Warn("interpreter not available")
	default:
		log.Debug("remote action delivered", "action", a.String())
		return
	}
	if !fallback {
		return
	}

	inj, isInjector := v.(view.Injector)
	if !isInjector {
		log.Warn("no input injector, skipping view for this tick")
		return
	}
	cctx, cancel = context.WithTimeout(ctx, d.timeout)
	defer cancel()
	if err := inj.Inject(cctx, Fallback(a, d.layout)); err != nil {
		log.Warn("fallback injection failed, skipping view for this tick", "err", err)
		return
	}
	log.Info("fallback injection delivered", "action", a.String())
}

// Fallback returns the injected timeline equivalent to a: a click in the
// center of the view to focus it, then the keys translated from layout onto
// QWERTY positions held for the action's hold. Releases become bare key-ups.
func Fallback(a action.Action, from keys.Layout) []view.InputEvent {
	ks := a.Keys()
	for i, k := range ks {
		ks[i] = from.Translate(k, keys.QWERTY)
	}
	if a.Kind() == action.KindRelease {
		out := make([]view.InputEvent, 0, len(ks))
		for _, k := range ks {
			out = append(out, keyEvent(view.KeyUp, k, 0))
		}
		return out
	}

	out := []view.InputEvent{
		{Type: view.MouseDown, At: 0},
		{Type: view.MouseUp, At: clickHold},
	}
	for _, k := range ks {
		out = append(out, keyEvent(view.KeyDown, k, clickHold))
	}
	up := clickHold + a.Hold()
	for _, k := range ks {
		out = append(out, keyEvent(view.KeyUp, k, up))
	}
	if k, hold, delay, ok := a.Correction(); ok {
		k = from.Translate(k, keys.QWERTY)
		out = append(out,
			keyEvent(view.KeyDown, k, up+delay),
			keyEvent(view.KeyUp, k, up+delay+hold),
		)
	}
	return out
}

func keyEvent(t view.InputType, k keys.Key, at time.Duration) view.InputEvent {
	return view.InputEvent{Type: t, Key: k, Code: keys.Code(k), At: at}
}
