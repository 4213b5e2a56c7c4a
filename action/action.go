// Package action holds the typed input operations macros send to views and the
// single encoding path they travel through.
//
// Views never receive generated source code. They receive a Message encoded by
// Encode and interpret it with the fixed interpreter in package interp, which
// only knows the press, release and jump primitives.
package action

import (
	"MultiView/keys"
	"fmt"
	"strings"
	"time"
)

// Kind discriminates the operation an Action performs.
type Kind string

const (
	// KindJump presses the jump key for the hold duration.
	KindJump Kind = "jump"
	// KindMove holds one or two movement keys, optionally followed by a
	// correction press.
	KindMove Kind = "move"
	// KindPress holds arbitrary keys for the hold duration.
	KindPress Kind = "press"
	// KindRelease releases the listed keys immediately.
	KindRelease Kind = "release"
)

// Action is an immutable description of one discrete input operation. The
// same value is dispatched to every target of a tick.
type Action struct {
	kind            Kind
	keys            []keys.Key
	hold            time.Duration
	correction      keys.Key
	correctionHold  time.Duration
	correctionDelay time.Duration
}

// Jump builds a jump action.
func Jump(k keys.Key, hold time.Duration) Action {
	return Action{kind: KindJump, keys: []keys.Key{k}, hold: hold}
}

// Move builds a directional move action.
func Move(ks []keys.Key, hold time.Duration) Action {
	return Action{kind: KindMove, keys: clone(ks), hold: hold}
}

// Press builds an action that holds ks for hold.
func Press(hold time.Duration, ks ...keys.Key) Action {
	return Action{kind: KindPress, keys: clone(ks), hold: hold}
}

// Release builds an action that releases ks.
func Release(ks ...keys.Key) Action {
	return Action{kind: KindRelease, keys: clone(ks)}
}

// WithCorrection returns a copy of a that presses k for hold, delay after the
// main keys are released.
func (a Action) WithCorrection(k keys.Key, hold, delay time.Duration) Action {
	a.keys = clone(a.keys)
	a.correction = k
	a.correctionHold = hold
	a.correctionDelay = delay
	return a
}

// Kind returns the operation kind.
func (a Action) Kind() Kind { return a.kind }

// Keys returns a copy of the keys the action holds or releases.
func (a Action) Keys() []keys.Key { return clone(a.keys) }

// Hold returns how long the main keys stay down.
func (a Action) Hold() time.Duration { return a.hold }

// Correction returns the correction press, if any.
func (a Action) Correction() (k keys.Key, hold, delay time.Duration, ok bool) {
	return a.correction, a.correctionHold, a.correctionDelay, a.correction != ""
}

// Overhead is the time the correction press adds after the main release.
func (a Action) Overhead() time.Duration {
	if a.correction == "" {
		return 0
	}
	return a.correctionDelay + a.correctionHold
}

// Total is the time from the first key down to the last key up.
func (a Action) Total() time.Duration {
	return a.hold + a.Overhead()
}

// IsZero reports whether a was never constructed.
func (a Action) IsZero() bool { return a.kind == "" }

func (a Action) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s[%s]", a.kind, joinKeys(a.keys))
	if a.hold > 0 {
		fmt.Fprintf(&b, " %s", a.hold)
	}
	if a.correction != "" {
		fmt.Fprintf(&b, " +%s %s", keyName(a.correction), a.correctionHold)
	}
	return b.String()
}

func clone(ks []keys.Key) []keys.Key {
	if ks == nil {
		return nil
	}
	out := make([]keys.Key, len(ks))
	copy(out, ks)
	return out
}

func joinKeys(ks []keys.Key) string {
	parts := make([]string, len(ks))
	for i, k := range ks {
		parts[i] = keyName(k)
	}
	return strings.Join(parts, "+")
}

func keyName(k keys.Key) string {
	if k == keys.Space {
		return "Space"
	}
	return string(k)
}
