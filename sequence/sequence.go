// Package sequence runs step-indexed key programs on the event loop.
//
// A Program yields one Step per index: an optional action, the role it is
// sent to and the wait before the next step. The Runner resolves targets
// afresh for every step, owns every timer it creates and releases the keys
// it may have left down when it stops.
package sequence

import (
	"MultiView/action"
	"MultiView/group"
	"MultiView/keys"
	"MultiView/loop"
	"MultiView/view"
	"context"
	"log/slog"
	"sort"
	"time"
)

// Step is one entry of a program.
type Step struct {
	// Action is sent to the step's targets. A zero Action only waits.
	Action action.Action
	// Role restricts the targets. Empty sends to every target.
	Role view.Role
	// Wait is the delay before the next step.
	Wait time.Duration
}

// Program yields the steps of a sequence. Next returns false when the
// sequence is over.
type Program interface {
	Next(i int) (Step, bool)
}

// Resetter is implemented by programs that keep state between steps.
// Reset is called on every Start.
type Resetter interface {
	Reset()
}

// Steps is a program that runs once through its steps.
type Steps []Step

func (s Steps) Next(i int) (Step, bool) {
	if i < 0 || i >= len(s) {
		return Step{}, false
	}
	return s[i], true
}

// Cycle is a program that repeats its steps forever.
type Cycle []Step

func (c Cycle) Next(i int) (Step, bool) {
	if len(c) == 0 {
		return Step{}, false
	}
	return c[i%len(c)], true
}

// Dispatcher delivers actions.
type Dispatcher interface {
	Dispatch(ctx context.Context, a action.Action, targets []view.View)
}

// Config wires a Runner.
type Config struct {
	Name       string
	Program    Program
	Clock      loop.Clock
	Targets    func() []view.View
	Dispatcher Dispatcher
	// Release lists the keys released on Stop. Empty disables the sweep.
	Release []keys.Key
	// ReleaseTargets adds views to the stop sweep besides those the run
	// touched.
	ReleaseTargets func() []view.View
	// OnDone is called when a finite program runs out of steps.
	OnDone func()
	Log    *slog.Logger
}

// Runner executes a Program. It is owned by the loop goroutine.
type Runner struct {
	cfg     Config
	timers  *loop.TimerSet
	log     *slog.Logger
	ctx     context.Context
	active  bool
	index   int
	touched map[int]view.View
}

// New returns a stopped runner.
func New(cfg Config) *Runner {
	log := cfg.Log
	if log == nil {
		log = slog.Default()
	}
	return &Runner{
		cfg:     cfg,
		timers:  loop.NewTimerSet(cfg.Clock),
		log:     log.With("component", "sequence", "sequence", cfg.Name),
		ctx:     context.Background(),
		touched: make(map[int]view.View),
	}
}

// Active reports whether the runner is running.
func (r *Runner) Active() bool { return r.active }

// Index returns the index of the next step.
func (r *Runner) Index() int { return r.index }

// Pending returns the number of timers the runner has scheduled.
func (r *Runner) Pending() int { return r.timers.Len() }

// Start runs the program from step 0. The first step runs immediately. It
// returns false if the runner was already active.
func (r *Runner) Start(ctx context.Context) bool {
	if r.active {
		return false
	}
	if rs, ok := r.cfg.Program.(Resetter); ok {
		rs.Reset()
	}
	r.ctx = ctx
	r.active = true
	r.index = 0
	r.log.Debug("sequence started")
	r.step()
	return true
}

// Stop cancels the pending step and releases the configured keys on every
// view the run touched. It returns the views the run touched.
func (r *Runner) Stop() []view.View {
	touched := r.drainTouched()
	if !r.active {
		return touched
	}
	r.active = false
	n := r.timers.StopAll()
	r.log.Debug("sequence stopped", "step", r.index, "cancelledTimers", n)
	if len(r.cfg.Release) == 0 {
		return touched
	}
	sweep := touched
	if r.cfg.ReleaseTargets != nil {
		sweep = union(sweep, r.cfg.ReleaseTargets())
	}
	if sweep = group.Live(sweep); len(sweep) > 0 {
		r.cfg.Dispatcher.Dispatch(r.ctx, action.Release(r.cfg.Release...), sweep)
	}
	return touched
}

func (r *Runner) drainTouched() []view.View {
	out := make([]view.View, 0, len(r.touched))
	for _, v := range r.touched {
		out = append(out, v)
	}
	clear(r.touched)
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}

func (r *Runner) step() {
	if !r.active {
		return
	}
	st, ok := r.cfg.Program.Next(r.index)
	if !ok {
		r.active = false
		clear(r.touched)
		r.log.Debug("sequence finished", "steps", r.index)
		if r.cfg.OnDone != nil {
			r.cfg.OnDone()
		}
		return
	}
	if !st.Action.IsZero() {
		vs := r.cfg.Targets()
		if st.Role != "" {
			vs = view.FilterRole(vs, st.Role)
		}
		if len(vs) > 0 {
			for _, v := range vs {
				r.touched[v.ID()] = v
			}
			r.cfg.Dispatcher.Dispatch(r.ctx, st.Action, vs)
		} else {
			r.log.Debug("no targets for step", "step", r.index, "role", st.Role)
		}
	}
	r.index++
	r.timers.After(st.Wait, r.step)
}

func union(a, b []view.View) []view.View {
	seen := make(map[int]bool, len(a)+len(b))
	out := make([]view.View, 0, len(a)+len(b))
	for _, vs := range [][]view.View{a, b} {
		for _, v := range vs {
			if v == nil || seen[v.ID()] {
				continue
			}
			seen[v.ID()] = true
			out = append(out, v)
		}
	}
	return out
}
