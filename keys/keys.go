// Package keys defines the key symbols macros press, the keyboard layouts the
// movement axes are read from, and the positional translation used when input
// has to be injected below the page scripts.
package keys

import (
	"fmt"
	"strings"
)

// Key is a key symbol as seen by page scripts (KeyboardEvent.key).
type Key string

// Named keys used by the one-shot macros.
const (
	Space  Key = " "
	Escape Key = "Escape"
	Tab    Key = "Tab"
	Enter  Key = "Enter"
	F11    Key = "F11"
	Shift  Key = "Shift"
)

// maxKeyLen bounds the length of a key symbol accepted from the wire.
const maxKeyLen = 16

// Valid reports whether k can travel on the wire.
func (k Key) Valid() bool {
	return k != "" && len(k) <= maxKeyLen && !strings.ContainsAny(string(k), "\n\r\t\"'\\")
}

// Code returns the KeyboardEvent.code a key is reported with.
func Code(k Key) string {
	switch k {
	case Space:
		return "Space"
	case Shift:
		return "ShiftLeft"
	case Escape, Tab, Enter, F11:
		return string(k)
	}
	if len(k) == 1 {
		return "Key" + strings.ToUpper(string(k))
	}
	return string(k)
}

// KeyCode returns the legacy KeyboardEvent.keyCode for k.
func KeyCode(k Key) int {
	switch k {
	case Space:
		return 32
	case Shift:
		return 16
	case Escape:
		return 27
	case Tab:
		return 9
	case Enter:
		return 13
	case F11:
		return 122
	}
	if len(k) == 1 {
		return int(strings.ToUpper(string(k))[0])
	}
	return 0
}

// Layout names the keys bound to the two movement axes and jump.
type Layout struct {
	Name    string
	Forward Key
	Back    Key
	Left    Key
	Right   Key
	Jump    Key
}

var (
	// QWERTY is the WASD layout.
	QWERTY = Layout{Name: "qwerty", Forward: "w", Back: "s", Left: "a", Right: "d", Jump: Space}
	// AZERTY is the ZQSD layout.
	AZERTY = Layout{Name: "azerty", Forward: "z", Back: "s", Left: "q", Right: "d", Jump: Space}
)

// LayoutByName looks up a layout, case-insensitive.
func LayoutByName(name string) (Layout, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", QWERTY.Name, "wasd":
		return QWERTY, nil
	case AZERTY.Name, "zqsd":
		return AZERTY, nil
	}
	return Layout{}, fmt.Errorf("unknown keyboard layout %q", name)
}

// Movement returns the four movement keys in forward, left, back, right order.
func (l Layout) Movement() []Key {
	return []Key{l.Forward, l.Left, l.Back, l.Right}
}

// All returns every key a movement macro may hold down.
func (l Layout) All() []Key {
	return append(l.Movement(), l.Jump)
}

// Translate maps k from layout l onto the key in the same physical position
// of layout to. Keys that are not movement keys are returned unchanged.
func (l Layout) Translate(k Key, to Layout) Key {
	switch k {
	case l.Forward:
		return to.Forward
	case l.Back:
		return to.Back
	case l.Left:
		return to.Left
	case l.Right:
		return to.Right
	case l.Jump:
		return to.Jump
	}
	return k
}
