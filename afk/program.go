package afk

import (
	"MultiView/action"
	"MultiView/keys"
	"MultiView/sequence"
	"MultiView/view"
	"slices"
	"time"
)

// Timing holds the AFK macro constants.
type Timing struct {
	HostHold    time.Duration `yaml:"hostHold"`
	HostPause   time.Duration `yaml:"hostPause"`
	HostRestart time.Duration `yaml:"hostRestart"`

	PlayerHold    time.Duration `yaml:"playerHold"`
	PlayerPause   time.Duration `yaml:"playerPause"`
	ReplayPause   time.Duration `yaml:"replayPause"`
	PlayerHistory int           `yaml:"playerHistory"`

	TapKey       keys.Key      `yaml:"tapKey"`
	TapHold      time.Duration `yaml:"tapHold"`
	TapEvery     time.Duration `yaml:"tapEvery"`
	Watchdog     time.Duration `yaml:"watchdog"`
	RestartDelay time.Duration `yaml:"restartDelay"`
}

// DefaultTiming returns the stock AFK timings.
func DefaultTiming() Timing {
	return Timing{
		HostHold:      1000 * time.Millisecond,
		HostPause:     2000 * time.Millisecond,
		HostRestart:   3000 * time.Millisecond,
		PlayerHold:    600 * time.Millisecond,
		PlayerPause:   1000 * time.Millisecond,
		ReplayPause:   1000 * time.Millisecond,
		PlayerHistory: 4,
		TapKey:        "v",
		TapHold:       100 * time.Millisecond,
		TapEvery:      3000 * time.Millisecond,
		Watchdog:      60000 * time.Millisecond,
		RestartDelay:  500 * time.Millisecond,
	}
}

// HostCycle returns the forward-then-reverse walk: forward, left, back,
// right, then the same keys in reverse. The cycle pauses an extra
// HostRestart after its last step.
func HostCycle(l keys.Layout, t Timing, role view.Role) sequence.Cycle {
	ks := l.Movement()
	rev := slices.Clone(ks)
	slices.Reverse(rev)
	ks = append(ks, rev...)

	c := make(sequence.Cycle, len(ks))
	for i, k := range ks {
		c[i] = sequence.Step{
			Action: action.Press(t.HostHold, k),
			Role:   role,
			Wait:   t.HostHold + t.HostPause,
		}
	}
	c[len(c)-1].Wait += t.HostRestart
	return c
}

// TapCycle presses the tap key on players every TapEvery, starting one
// period after the cycle begins.
func TapCycle(t Timing) sequence.Cycle {
	return sequence.Cycle{
		{Wait: t.TapEvery},
		{Action: action.Press(t.TapHold, t.TapKey), Role: view.RolePlayer},
	}
}

// Rand picks the random player keys.
type Rand interface {
	IntN(n int) int
}

// Wander is the player program: random single-key moves recorded into a
// bounded history, then the history replayed in reverse to retrace the
// steps.
type Wander struct {
	keys    []keys.Key
	timing  Timing
	rng     Rand
	history []keys.Key
	replay  []keys.Key
}

// NewWander returns a player program over the layout's movement keys.
func NewWander(l keys.Layout, t Timing, r Rand) *Wander {
	if t.PlayerHistory < 1 {
		t.PlayerHistory = 1
	}
	return &Wander{keys: l.Movement(), timing: t, rng: r}
}

// Reset clears history and replay.
func (w *Wander) Reset() {
	w.history = nil
	w.replay = nil
}

// History returns the recorded random moves, oldest first.
func (w *Wander) History() []keys.Key { return slices.Clone(w.history) }

// Replaying reports whether the next step retraces the history.
func (w *Wander) Replaying() bool { return len(w.replay) > 0 }

// Next implements sequence.Program. The index is ignored: the program is
// driven by its own history.
func (w *Wander) Next(int) (sequence.Step, bool) {
	t := w.timing
	if len(w.replay) > 0 {
		k := w.replay[0]
		w.replay = w.replay[1:]
		wait := t.PlayerHold + t.PlayerPause
		if len(w.replay) == 0 {
			wait += t.ReplayPause
			w.history = nil
		}
		return w.press(k, wait), true
	}

	k := w.keys[w.rng.IntN(len(w.keys))]
	w.history = append(w.history, k)
	if len(w.history) > t.PlayerHistory {
		w.history = w.history[len(w.history)-t.PlayerHistory:]
	}
	if len(w.history) == t.PlayerHistory {
		w.replay = slices.Clone(w.history)
		slices.Reverse(w.replay)
	}
	return w.press(k, t.PlayerHold+t.PlayerPause), true
}

func (w *Wander) press(k keys.Key, wait time.Duration) sequence.Step {
	return sequence.Step{
		Action: action.Press(w.timing.PlayerHold, k),
		Role:   view.RolePlayer,
		Wait:   wait,
	}
}
