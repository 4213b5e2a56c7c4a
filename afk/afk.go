// Package afk runs the anti-idle macros: a fixed walk on host views, a
// wander-and-retrace walk on player views and a combined variant that
// restarts itself on a watchdog.
package afk

import (
	"MultiView/action"
	"MultiView/group"
	"MultiView/keys"
	"MultiView/loop"
	"MultiView/sequence"
	"MultiView/status"
	"MultiView/view"
	"context"
	"log/slog"
)

// Status ids of the AFK macros.
const (
	MacroHost     = 6
	MacroPlayer   = 7
	MacroCombined = 8
)

// Dispatcher delivers actions.
type Dispatcher interface {
	Dispatch(ctx context.Context, a action.Action, targets []view.View)
}

// Deps are shared by every AFK sequencer.
type Deps struct {
	Clock      loop.Clock
	Targets    func() []view.View
	Dispatcher Dispatcher
	Notifier   status.Notifier
	Log        *slog.Logger
}

func (d Deps) logger() *slog.Logger {
	if d.Log == nil {
		return slog.Default()
	}
	return d.Log
}

func (d Deps) notifier() status.Notifier {
	if d.Notifier == nil {
		return status.Nop{}
	}
	return d.Notifier
}

// Sequencer toggles a single role-restricted program on and off.
type Sequencer struct {
	macro   int
	role    view.Role
	runner  *sequence.Runner
	targets func() []view.View
	notify  status.Notifier
	log     *slog.Logger
}

func newSequencer(d Deps, macro int, role view.Role, name string, p sequence.Program, release []keys.Key) *Sequencer {
	log := d.logger().With("component", "afk", "macro", macro)
	s := &Sequencer{
		macro:   macro,
		role:    role,
		targets: d.Targets,
		notify:  d.notifier(),
		log:     log,
	}
	s.runner = sequence.New(sequence.Config{
		Name:           name,
		Program:        p,
		Clock:          d.Clock,
		Targets:        d.Targets,
		Dispatcher:     d.Dispatcher,
		Release:        release,
		ReleaseTargets: s.roleTargets,
		Log:            log,
	})
	return s
}

// NewHost returns the host walk sequencer.
func NewHost(d Deps, l keys.Layout, t Timing) *Sequencer {
	return newSequencer(d, MacroHost, view.RoleHost, "afk-host", HostCycle(l, t, view.RoleHost), l.Movement())
}

// NewPlayer returns the player wander sequencer together with its program.
func NewPlayer(d Deps, l keys.Layout, t Timing, r Rand) (*Sequencer, *Wander) {
	w := NewWander(l, t, r)
	return newSequencer(d, MacroPlayer, view.RolePlayer, "afk-player", w, l.Movement()), w
}

func (s *Sequencer) roleTargets() []view.View {
	return view.FilterRole(group.Live(s.targets()), s.role)
}

// Active reports whether the sequencer runs.
func (s *Sequencer) Active() bool { return s.runner.Active() }

// Toggle flips the sequencer and reports whether it runs afterwards. Turning
// it on with no target of its role does nothing.
func (s *Sequencer) Toggle(ctx context.Context) bool {
	if s.runner.Active() {
		s.Stop()
		return false
	}
	if len(s.roleTargets()) == 0 {
		s.log.Warn("no views with role, not starting", "role", s.role)
		return false
	}
	s.runner.Start(ctx)
	s.log.Info("afk started", "role", s.role)
	s.notify.MacroStatus(s.macro, true)
	return true
}

// Stop cancels the pending step and releases the movement keys.
func (s *Sequencer) Stop() {
	if !s.runner.Active() {
		return
	}
	s.runner.Stop()
	s.log.Info("afk stopped", "role", s.role)
	s.notify.MacroStatus(s.macro, false)
}

// Combined drives the host walk on every view and the tap key on players,
// tearing both down and relaunching them on every watchdog period.
type Combined struct {
	walk    *sequence.Runner
	taps    *sequence.Runner
	timers  *loop.TimerSet
	targets func() []view.View
	send    Dispatcher
	notify  status.Notifier
	timing  Timing
	release []keys.Key
	log     *slog.Logger

	ctx      context.Context
	active   bool
	restarts int
}

// NewCombined returns the combined sequencer.
func NewCombined(d Deps, l keys.Layout, t Timing) *Combined {
	log := d.logger().With("component", "afk", "macro", MacroCombined)
	runner := func(name string, p sequence.Program) *sequence.Runner {
		return sequence.New(sequence.Config{
			Name:       name,
			Program:    p,
			Clock:      d.Clock,
			Targets:    d.Targets,
			Dispatcher: d.Dispatcher,
			Log:        log,
		})
	}
	return &Combined{
		walk:    runner("afk-combined-walk", HostCycle(l, t, "")),
		taps:    runner("afk-combined-taps", TapCycle(t)),
		timers:  loop.NewTimerSet(d.Clock),
		targets: d.Targets,
		send:    d.Dispatcher,
		notify:  d.notifier(),
		timing:  t,
		release: append(l.Movement(), t.TapKey),
		log:     log,
		ctx:     context.Background(),
	}
}

// Active reports whether the combined macro runs.
func (c *Combined) Active() bool { return c.active }

// Restarts returns how many times the watchdog relaunched the macro.
func (c *Combined) Restarts() int { return c.restarts }

// Toggle flips the macro and reports whether it runs afterwards.
func (c *Combined) Toggle(ctx context.Context) bool {
	if c.active {
		c.Stop()
		return false
	}
	if len(group.Live(c.targets())) == 0 {
		c.log.Warn("no views, not starting")
		return false
	}
	c.ctx = ctx
	c.active = true
	c.launch()
	c.log.Info("afk combined started")
	return true
}

// Stop cancels everything and releases the walk and tap keys.
func (c *Combined) Stop() {
	if !c.active {
		return
	}
	c.active = false
	c.timers.StopAll()
	c.teardown()
	c.log.Info("afk combined stopped")
	c.notify.MacroStatus(MacroCombined, false)
}

func (c *Combined) launch() {
	c.walk.Start(c.ctx)
	c.taps.Start(c.ctx)
	c.notify.MacroStatus(MacroCombined, true)
	c.timers.After(c.timing.Watchdog, c.heal)
}

func (c *Combined) heal() {
	if !c.active {
		return
	}
	c.log.Info("watchdog restart")
	c.teardown()
	c.timers.After(c.timing.RestartDelay, func() {
		if !c.active {
			return
		}
		c.restarts++
		c.launch()
	})
}

func (c *Combined) teardown() {
	touched := append(c.walk.Stop(), c.taps.Stop()...)
	vs := group.Live(append(c.targets(), touched...))
	vs = dedupe(vs)
	if len(vs) > 0 {
		c.send.Dispatch(c.ctx, action.Release(c.release...), vs)
	}
}

func dedupe(vs []view.View) []view.View {
	seen := make(map[int]bool, len(vs))
	out := vs[:0]
	for _, v := range vs {
		if seen[v.ID()] {
			continue
		}
		seen[v.ID()] = true
		out = append(out, v)
	}
	return out
}
