// Package view defines the capability macros consume from the tiles the
// desktop shell provisions, and the registry those tiles are published in.
//
// The macro core never creates or destroys a view. It reads identity and role,
// asks for liveness and runs encoded action messages.
package view

import (
	"MultiView/keys"
	"context"
	"fmt"
	"time"
)

// Role is the part a view plays in a game session.
type Role string

const (
	RoleHost   Role = "host"
	RolePlayer Role = "player"
)

// ParseRole parses a role name.
func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleHost, RolePlayer:
		return Role(s), nil
	}
	return "", fmt.Errorf("unknown view role %q", s)
}

// View is a handle to one remote execution target.
type View interface {
	// ID is the stable tile index.
	ID() int
	// Role reports whether the tile is a host or a player.
	Role() Role
	// Alive reports whether the tile still exists.
	Alive() bool
	// Run hands an encoded action.Message to the view's interpreter. It
	// returns false when the view has no interpreter loaded.
	Run(ctx context.Context, payload []byte) (bool, error)
}

// InputType names a low-level input event.
type InputType string

const (
	MouseDown InputType = "mouseDown"
	MouseUp   InputType = "mouseUp"
	KeyDown   InputType = "keyDown"
	KeyUp     InputType = "keyUp"
)

// InputEvent is one injected input event. Mouse events target the center of
// the view. At is the offset from the start of the injected timeline.
type InputEvent struct {
	Type InputType     `json:"type"`
	Key  keys.Key      `json:"key,omitempty"`
	Code string        `json:"code,omitempty"`
	At   time.Duration `json:"at"`
}

// Injector is implemented by views that accept input below the page scripts.
type Injector interface {
	Inject(ctx context.Context, events []InputEvent) error
}

// FilterRole returns the views in vs that have role r.
func FilterRole(vs []View, r Role) []View {
	out := make([]View, 0, len(vs))
	for _, v := range vs {
		if v.Role() == r {
			out = append(out, v)
		}
	}
	return out
}
