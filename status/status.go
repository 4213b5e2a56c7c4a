// Package status carries macro state changes out of the event loop to the
// UI indicators, the log and the sound cues.
package status

import (
	"log/slog"
	"sync"
)

// Notifier receives macro activity changes. Implementations must not block:
// they are called from the event loop.
type Notifier interface {
	MacroStatus(macro int, active bool)
}

// Prompter asks the user to pick target views.
type Prompter interface {
	PromptTargets()
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(macro int, active bool)

func (f NotifierFunc) MacroStatus(macro int, active bool) { f(macro, active) }

// PrompterFunc adapts a function to Prompter.
type PrompterFunc func()

func (f PrompterFunc) PromptTargets() { f() }

// Multi fans a status change out to every notifier in order.
type Multi []Notifier

func (m Multi) MacroStatus(macro int, active bool) {
	for _, n := range m {
		if n != nil {
			n.MacroStatus(macro, active)
		}
	}
}

// Log returns a notifier that logs each change at info level.
func Log(l *slog.Logger) Notifier {
	if l == nil {
		l = slog.Default()
	}
	l = l.With("component", "status")
	return NotifierFunc(func(macro int, active bool) {
		l.Info("macro status", "macro", macro, "active", active)
	})
}

// Nop discards everything.
type Nop struct{}

func (Nop) MacroStatus(int, bool) {}
func (Nop) PromptTargets()        {}

// Change is one recorded status update.
type Change struct {
	Macro  int
	Active bool
}

// Recorder keeps every change and prompt it receives. The UI reads the last
// known state from it and tests assert on it.
type Recorder struct {
	mu      sync.Mutex
	changes []Change
	prompts int
}

func (r *Recorder) MacroStatus(macro int, active bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.changes = append(r.changes, Change{Macro: macro, Active: active})
}

func (r *Recorder) PromptTargets() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.prompts++
}

// Changes returns the recorded changes in order.
func (r *Recorder) Changes() []Change {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Change, len(r.changes))
	copy(out, r.changes)
	return out
}

// Prompts returns how many times targets were prompted for.
func (r *Recorder) Prompts() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.prompts
}

// Active reports the last recorded state of macro.
func (r *Recorder) Active(macro int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.changes) - 1; i >= 0; i-- {
		if r.changes[i].Macro == macro {
			return r.changes[i].Active
		}
	}
	return false
}
