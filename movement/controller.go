// Package movement drives the random movement macro: a burst of jumps, then
// an endless walk of randomly picked directions dispatched to every
// synchronized view.
//
// State transitions are pure (State.Next). The Controller executes their
// effects on the event loop, owns every timer the macro creates and makes
// sure no key stays down once the macro stops.
package movement

import (
	"MultiView/action"
	"MultiView/group"
	"MultiView/loop"
	"MultiView/status"
	"MultiView/view"
	"context"
	"errors"
	"log/slog"
	"math/rand/v2"
	"sort"
	"time"

	"github.com/google/uuid"
)

// Macro is the status id of the movement macro.
const Macro = 4

// ErrNoTargets is returned when the macro is started with no synchronized
// view.
var ErrNoTargets = errors.New("movement: no synchronized views")

// Targets resolves the views the macro dispatches to.
type Targets interface {
	Resolve() []view.View
	Lookup(ids []int) []view.View
}

// Dispatcher delivers actions and state messages.
type Dispatcher interface {
	Dispatch(ctx context.Context, a action.Action, targets []view.View)
	Send(ctx context.Context, m action.Message, targets []view.View)
}

// Config wires a Controller.
type Config struct {
	Policy     Policy
	Clock      loop.Clock
	Targets    Targets
	Dispatcher Dispatcher
	Notifier   status.Notifier
	Prompter   status.Prompter
	Rand       Rand
	Log        *slog.Logger
}

// Controller runs the movement macro. All methods must be called from the
// goroutine the clock fires callbacks on.
type Controller struct {
	policy   Policy
	timers   *loop.TimerSet
	targets  Targets
	dispatch Dispatcher
	notify   status.Notifier
	prompt   status.Prompter
	rng      Rand
	base     *slog.Logger
	log      *slog.Logger
	pending  *Policy

	ctx     context.Context
	running bool
	state   State
	touched map[int]view.View
	session string
}

type globalRand struct{}

func (globalRand) Float64() float64 { return rand.Float64() }
func (globalRand) IntN(n int) int   { return rand.IntN(n) }

// NewController returns an idle controller.
func NewController(cfg Config) *Controller {
	c := &Controller{
		policy:   cfg.Policy,
		timers:   loop.NewTimerSet(cfg.Clock),
		targets:  cfg.Targets,
		dispatch: cfg.Dispatcher,
		notify:   cfg.Notifier,
		prompt:   cfg.Prompter,
		rng:      cfg.Rand,
		base:     cfg.Log,
		ctx:      context.Background(),
		touched:  make(map[int]view.View),
	}
	if c.policy.Name == "" {
		c.policy = Synchronized()
	}
	if c.notify == nil {
		c.notify = status.Nop{}
	}
	if c.prompt == nil {
		c.prompt = status.Nop{}
	}
	if c.rng == nil {
		c.rng = globalRand{}
	}
	if c.base == nil {
		c.base = slog.Default()
	}
	c.base = c.base.With("component", "movement", "macro", Macro)
	c.log = c.base
	return c
}

// Running reports whether the macro is on.
func (c *Controller) Running() bool { return c.running }

// State returns the current machine state.
func (c *Controller) State() State { return c.state }

// Policy returns the policy the next run uses.
func (c *Controller) Policy() Policy { return c.policy }

// SetPolicy replaces the policy. A running macro keeps walking with the old
// one until it is restarted.
func (c *Controller) SetPolicy(p Policy) {
	if c.running {
		c.log.Info("policy change deferred until restart", "policy", p.Name)
	}
	c.pending = &p
	if !c.running {
		c.applyPending()
	}
}

func (c *Controller) applyPending() {
	if c.pending == nil {
		return
	}
	c.policy = *c.pending
	c.pending = nil
}

// Toggle starts a stopped macro and stops a running one. It reports whether
// the macro is running afterwards.
func (c *Controller) Toggle(ctx context.Context) (bool, error) {
	if c.running {
		c.Stop()
		return false, nil
	}
	if err := c.Start(ctx); err != nil {
		return false, err
	}
	return true, nil
}

// Start begins a fresh run. With no synchronized view it stays idle, reports
// inactive, prompts for targets once and returns ErrNoTargets.
func (c *Controller) Start(ctx context.Context) error {
	if c.running {
		return nil
	}
	if len(c.targets.Resolve()) == 0 {
		c.state = State{}
		c.notify.MacroStatus(Macro, false)
		c.prompt.PromptTargets()
		c.log.Warn("no synchronized views, prompting for targets")
		return ErrNoTargets
	}
	c.applyPending()
	c.ctx = ctx
	c.running = true
	c.state = Start()
	c.session = uuid.NewString()
	c.log = c.base.With("session", c.session)
	c.log.Info("movement started", "policy", c.policy.Name)
	c.notify.MacroStatus(Macro, true)
	c.tick()
	return nil
}

// Stop cancels every pending timer, resets the state and releases the
// movement keys on every view the run ever touched.
func (c *Controller) Stop() {
	if !c.running {
		return
	}
	c.running = false
	n := c.timers.StopAll()
	c.state = State{}
	c.sweep()
	c.log.Info("movement stopped", "cancelledTimers", n)
	c.log = c.base
	c.notify.MacroStatus(Macro, false)
	c.applyPending()
}

func (c *Controller) sweep() {
	ids := make([]int, 0, len(c.touched))
	for id := range c.touched {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	vs := make([]view.View, 0, len(ids))
	for _, id := range ids {
		vs = append(vs, c.touched[id])
	}
	clear(c.touched)
	if vs = group.Live(vs); len(vs) > 0 {
		c.dispatch.Dispatch(c.ctx, action.Release(c.policy.Layout.All()...), vs)
	}
}

func (c *Controller) tick() {
	if !c.running {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			c.log.Error("movement tick failed, retrying", "panic", r, "retry", c.policy.Recovery)
			c.after(c.policy.Recovery)
		}
	}()

	targets := c.targets.Resolve()
	if len(targets) == 0 {
		c.log.Warn("all synchronized views are gone")
		c.Stop()
		return
	}
	next, a, delay := c.state.Next(c.policy, c.rng)
	c.state = next
	for _, v := range targets {
		c.touched[v.ID()] = v
	}
	c.log.Debug("tick", "phase", next.Phase.String(), "action", a.String(), "targets", len(targets), "next", delay)
	c.dispatch.Dispatch(c.ctx, a, targets)
	c.after(delay)
}

func (c *Controller) after(d time.Duration) {
	c.timers.After(d, c.tick)
}

// Resync applies a membership change to a running macro. Leaving views get
// their keys released, joining views receive the walk history so far. Losing
// every view stops the macro.
func (c *Controller) Resync(left, joined []int) {
	if !c.running {
		return
	}
	if gone := c.targets.Lookup(left); len(gone) > 0 {
		c.log.Info("views left group", "views", left)
		c.dispatch.Dispatch(c.ctx, action.Release(c.policy.Layout.All()...), gone)
	}
	if len(c.targets.Resolve()) == 0 {
		c.Stop()
		return
	}
	if c.state.Phase != Walking {
		return
	}
	if fresh := c.targets.Lookup(joined); len(fresh) > 0 {
		c.log.Info("views joined group", "views", joined)
		c.dispatch.Send(c.ctx, action.Sync(c.Snapshot()), fresh)
	}
}

// Snapshot returns the walk history in the form joining views receive.
func (c *Controller) Snapshot() action.Snapshot {
	return c.state.Snapshot(c.policy.Layout)
}
