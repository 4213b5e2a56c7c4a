// Package macro maps macro ids to the engines that run them and keeps the
// synchronization group in step with the movement macro.
package macro

import (
	"MultiView/action"
	"MultiView/afk"
	"MultiView/group"
	"MultiView/keys"
	"MultiView/loop"
	"MultiView/movement"
	"MultiView/sequence"
	"MultiView/status"
	"MultiView/view"
	"context"
	"log/slog"
	"maps"
	"math/rand/v2"
	"slices"
	"time"
)

// Macro ids as sent by the control bar.
const (
	MultiSearch  = "macro1"
	Abandon      = "macro2"
	Fullscreen   = "macro3"
	Movement     = "macro4"
	AutoDrop     = "macro5"
	AFKHost      = "macro6"
	AFKPlayer    = "macro7"
	AFKCombined  = "macro8"
	SyncPanel    = "macro10"
	MacroPanel   = "macro11"
	searchKey    = keys.Key("r")
	oneShotPress = 100 * time.Millisecond
)

// Panels opens the shell's secondary windows.
type Panels interface {
	OpenSyncPanel()
	OpenMacroPanel()
}

// Dispatcher is what every engine needs from the action dispatcher, plus raw
// injection for mirrored keys.
type Dispatcher interface {
	movement.Dispatcher
	Inject(ctx context.Context, events []view.InputEvent, targets []view.View)
}

// Config wires a Manager.
type Config struct {
	Clock      loop.Clock
	Views      group.Source
	Groups     *group.Groups
	Dispatcher Dispatcher
	Layout     keys.Layout
	Policy     movement.Policy
	Timing     afk.Timing
	Notifier   status.Notifier
	Prompter   status.Prompter
	Panels     Panels
	Rand       movement.Rand
	Log        *slog.Logger
}

// Manager owns every macro engine. It is driven from the event loop.
type Manager struct {
	clock    loop.Clock
	groups   *group.Groups
	resolver *group.Resolver
	send     Dispatcher
	panels   Panels
	log      *slog.Logger

	movement *movement.Controller
	host     *afk.Sequencer
	player   *afk.Sequencer
	combined *afk.Combined

	oneShots map[*sequence.Runner]string
	// mirrored holds, per view id, the keys a mirrored key-down left down.
	mirrored map[int]map[keys.Key]bool
}

// New builds the engines. Zero values in cfg fall back to the synchronized
// policy, the default AFK timing and QWERTY.
func New(cfg Config) *Manager {
	log := cfg.Log
	if log == nil {
		log = slog.Default()
	}
	if cfg.Layout.Name == "" {
		cfg.Layout = keys.QWERTY
	}
	if cfg.Policy.Name == "" {
		cfg.Policy = movement.Synchronized()
		cfg.Policy.Layout = cfg.Layout
	}
	if cfg.Timing == (afk.Timing{}) {
		cfg.Timing = afk.DefaultTiming()
	}
	if cfg.Notifier == nil {
		cfg.Notifier = status.Nop{}
	}
	if cfg.Rand == nil {
		cfg.Rand = rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0x9e3779b97f4a7c15))
	}

	res := group.NewResolver(cfg.Views, cfg.Groups)
	m := &Manager{
		clock:    cfg.Clock,
		groups:   cfg.Groups,
		resolver: res,
		send:     cfg.Dispatcher,
		panels:   cfg.Panels,
		log:      log.With("component", "macro"),
		oneShots: make(map[*sequence.Runner]string),
		mirrored: make(map[int]map[keys.Key]bool),
	}
	m.movement = movement.NewController(movement.Config{
		Policy:     cfg.Policy,
		Clock:      cfg.Clock,
		Targets:    res,
		Dispatcher: cfg.Dispatcher,
		Notifier:   cfg.Notifier,
		Prompter:   cfg.Prompter,
		Rand:       cfg.Rand,
		Log:        log,
	})
	deps := afk.Deps{
		Clock:      cfg.Clock,
		Targets:    res.ResolveOrAll,
		Dispatcher: cfg.Dispatcher,
		Notifier:   cfg.Notifier,
		Log:        log,
	}
	m.host = afk.NewHost(deps, cfg.Layout, cfg.Timing)
	m.player, _ = afk.NewPlayer(deps, cfg.Layout, cfg.Timing, cfg.Rand)
	m.combined = afk.NewCombined(deps, cfg.Layout, cfg.Timing)
	return m
}

// Movement returns the movement controller the UI reads state from.
func (m *Manager) Movement() *movement.Controller { return m.movement }

// Resolver returns the target resolver the engines share.
func (m *Manager) Resolver() *group.Resolver { return m.resolver }

// Execute runs the macro with the given id. The game mode is informational.
// Unknown ids are logged and ignored.
func (m *Manager) Execute(ctx context.Context, id, mode string) {
	log := m.log.With("macroId", id, "mode", mode)
	log.Info("executing macro")

	switch id {
	case SyncPanel:
		if m.panels != nil {
			m.panels.OpenSyncPanel()
		}
		return
	case MacroPanel:
		if m.panels != nil {
			m.panels.OpenMacroPanel()
		}
		return
	case Movement:
		if _, err := m.movement.Toggle(ctx); err != nil {
			log.Warn("movement not started", "err", err)
		}
		return
	case AFKHost:
		m.host.Toggle(ctx)
		return
	case AFKPlayer:
		m.player.Toggle(ctx)
		return
	case AFKCombined:
		m.combined.Toggle(ctx)
		return
	}

	p, ok := m.program(id)
	if !ok {
		log.Warn("unrecognized macro")
		return
	}
	if len(m.resolver.ResolveOrAll()) == 0 {
		log.Warn("no valid views to run macro on")
		return
	}
	m.runOnce(ctx, id, p)
}

// program returns the step list of a one-shot macro.
func (m *Manager) program(id string) (sequence.Steps, bool) {
	press := func(k keys.Key, role view.Role, wait time.Duration) sequence.Step {
		return sequence.Step{Action: action.Press(oneShotPress, k), Role: role, Wait: wait}
	}
	switch id {
	case MultiSearch:
		return sequence.Steps{press(searchKey, "", oneShotPress)}, true
	case Abandon:
		return sequence.Steps{
			press(keys.Escape, "", oneShotPress+500*time.Millisecond),
			press(keys.Tab, "", oneShotPress+200*time.Millisecond),
			press(keys.Tab, "", oneShotPress+200*time.Millisecond),
			press(keys.Enter, "", oneShotPress),
		}, true
	case Fullscreen:
		return sequence.Steps{press(keys.F11, "", oneShotPress)}, true
	case AutoDrop:
		return sequence.Steps{
			press(keys.Space, view.RoleHost, 900*time.Millisecond),
			press(keys.Space, view.RolePlayer, oneShotPress),
		}, true
	}
	return nil, false
}

func (m *Manager) runOnce(ctx context.Context, id string, p sequence.Steps) {
	var r *sequence.Runner
	r = sequence.New(sequence.Config{
		Name:       id,
		Program:    p,
		Clock:      m.clock,
		Targets:    m.resolver.ResolveOrAll,
		Dispatcher: m.send,
		Release:    stepKeys(p),
		OnDone:     func() { delete(m.oneShots, r) },
		Log:        m.log,
	})
	m.oneShots[r] = id
	r.Start(ctx)
}

// Running returns the ids of the one-shot macros still in progress.
func (m *Manager) Running() []string {
	out := make([]string, 0, len(m.oneShots))
	for _, id := range m.oneShots {
		out = append(out, id)
	}
	return out
}

// Active reports whether the toggle macro with the given status id runs.
func (m *Manager) Active(macro int) bool {
	switch macro {
	case movement.Macro:
		return m.movement.Running()
	case afk.MacroHost:
		return m.host.Active()
	case afk.MacroPlayer:
		return m.player.Active()
	case afk.MacroCombined:
		return m.combined.Active()
	}
	return false
}

// Synchronize makes selected the members of the default group and applies
// the change to a running movement macro.
func (m *Manager) Synchronize(selected []int) group.Diff {
	d := m.groups.Synchronize(selected)
	if d.Empty() {
		return d
	}
	m.log.Info("synchronization changed", "joined", d.Joined, "left", d.Left)
	m.movement.Resync(d.Left, d.Joined)
	m.releaseMirrored(context.Background(), d.Left)
	return d
}

// Mirror replays a key event typed in one synchronized view on the other
// synchronized views. Key-downs from views outside the group are ignored;
// key-ups always reach every view the key was mirrored to.
func (m *Manager) Mirror(ctx context.Context, source int, k keys.Key, down bool) {
	if !k.Valid() {
		m.log.Warn("ignoring mirrored key", "view", source, "key", string(k))
		return
	}
	if !down {
		var ids []int
		for id, held := range m.mirrored {
			if held[k] {
				delete(held, k)
				if len(held) == 0 {
					delete(m.mirrored, id)
				}
				ids = append(ids, id)
			}
		}
		slices.Sort(ids)
		if targets := m.resolver.Lookup(ids); len(targets) > 0 {
			m.send.Inject(ctx, []view.InputEvent{keyInput(view.KeyUp, k)}, targets)
		}
		return
	}

	if !slices.Contains(m.groups.Members(), source) {
		m.log.Debug("key from unsynchronized view", "view", source)
		return
	}
	targets := slices.DeleteFunc(m.resolver.Resolve(), func(v view.View) bool { return v.ID() == source })
	if len(targets) == 0 {
		return
	}
	for _, v := range targets {
		held := m.mirrored[v.ID()]
		if held == nil {
			held = make(map[keys.Key]bool)
			m.mirrored[v.ID()] = held
		}
		held[k] = true
	}
	m.send.Inject(ctx, []view.InputEvent{keyInput(view.KeyDown, k)}, targets)
}

// releaseMirrored lifts the mirrored keys still down on the given views.
func (m *Manager) releaseMirrored(ctx context.Context, ids []int) {
	for _, id := range ids {
		held := m.mirrored[id]
		if len(held) == 0 {
			continue
		}
		delete(m.mirrored, id)
		ks := slices.Sorted(maps.Keys(held))
		events := make([]view.InputEvent, len(ks))
		for i, k := range ks {
			events[i] = keyInput(view.KeyUp, k)
		}
		m.send.Inject(ctx, events, m.resolver.Lookup([]int{id}))
	}
}

func keyInput(t view.InputType, k keys.Key) view.InputEvent {
	return view.InputEvent{Type: t, Key: k, Code: keys.Code(k)}
}

// SetPolicy switches the movement policy, effective from the next start.
func (m *Manager) SetPolicy(p movement.Policy) {
	m.movement.SetPolicy(p)
}

// Shutdown stops every macro and cancels one-shots in progress.
func (m *Manager) Shutdown() {
	m.movement.Stop()
	m.host.Stop()
	m.player.Stop()
	m.combined.Stop()
	for r := range m.oneShots {
		r.Stop()
	}
	clear(m.oneShots)
	m.releaseMirrored(context.Background(), slices.Sorted(maps.Keys(m.mirrored)))
	m.log.Info("macros shut down")
}

func stepKeys(p sequence.Steps) []keys.Key {
	seen := make(map[keys.Key]bool)
	var out []keys.Key
	for _, st := range p {
		for _, k := range st.Action.Keys() {
			if !seen[k] {
				seen[k] = true
				out = append(out, k)
			}
		}
	}
	return out
}
