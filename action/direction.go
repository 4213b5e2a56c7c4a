package action

import "MultiView/keys"

// Direction is one of the eight compass directions a movement macro walks
// in. It is built from two orthogonal axes: forward/back and left/right.
type Direction struct {
	// Ahead is +1 for forward, -1 for backward, 0 when the axis is idle.
	Ahead int8
	// Side is -1 for left, +1 for right, 0 when the axis is idle.
	Side int8
}

var (
	Forward      = Direction{Ahead: 1}
	Left         = Direction{Side: -1}
	Back         = Direction{Ahead: -1}
	Right        = Direction{Side: 1}
	ForwardLeft  = Direction{Ahead: 1, Side: -1}
	ForwardRight = Direction{Ahead: 1, Side: 1}
	BackLeft     = Direction{Ahead: -1, Side: -1}
	BackRight    = Direction{Ahead: -1, Side: 1}
)

// Compass returns the 4 cardinal then 4 diagonal directions in a fixed order.
func Compass() []Direction {
	return []Direction{Forward, Left, Back, Right, ForwardLeft, ForwardRight, BackLeft, BackRight}
}

// HasForward reports whether the direction holds the forward key.
func (d Direction) HasForward() bool { return d.Ahead > 0 }

// HasBack reports whether the direction holds the backward key.
func (d Direction) HasBack() bool { return d.Ahead < 0 }

// Keys returns the keys held for d on layout l, forward axis first.
func (d Direction) Keys(l keys.Layout) []keys.Key {
	out := make([]keys.Key, 0, 2)
	switch {
	case d.Ahead > 0:
		out = append(out, l.Forward)
	case d.Ahead < 0:
		out = append(out, l.Back)
	}
	switch {
	case d.Side < 0:
		out = append(out, l.Left)
	case d.Side > 0:
		out = append(out, l.Right)
	}
	return out
}

func (d Direction) String() string {
	var s string
	switch {
	case d.Ahead > 0:
		s = "forward"
	case d.Ahead < 0:
		s = "back"
	}
	side := ""
	switch {
	case d.Side < 0:
		side = "left"
	case d.Side > 0:
		side = "right"
	}
	switch {
	case s == "" && side == "":
		return "none"
	case s == "":
		return side
	case side == "":
		return s
	}
	return s + "-" + side
}
