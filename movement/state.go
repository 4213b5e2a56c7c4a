package movement

import (
	"MultiView/action"
	"MultiView/keys"
	"slices"
	"time"
)

// Rand is the randomness the state machine draws from. *rand.Rand from
// math/rand/v2 satisfies it.
type Rand interface {
	Float64() float64
	IntN(n int) int
}

// Phase is the movement macro phase.
type Phase int

const (
	Idle Phase = iota
	Bursting
	Walking
)

func (p Phase) String() string {
	switch p {
	case Idle:
		return "idle"
	case Bursting:
		return "bursting"
	case Walking:
		return "walking"
	}
	return "unknown"
}

// State is the movement macro state between two ticks.
type State struct {
	Phase Phase
	// Jump counts the jumps sent in the current burst.
	Jump int
	// Last is the direction sent by the previous walking tick.
	Last *action.Direction
	// Recent holds the last directions sent, oldest first.
	Recent []action.Direction
}

// Start is the state a fresh toggle-on begins in.
func Start() State { return State{Phase: Bursting} }

// Next performs one tick: it returns the state after the tick, the action to
// dispatch and the delay until the following tick. Idle yields a zero action.
func (s State) Next(p Policy, r Rand) (State, action.Action, time.Duration) {
	switch s.Phase {
	case Bursting:
		return s.burst(p)
	case Walking:
		return s.walk(p, r)
	}
	return s, action.Action{}, 0
}

func (s State) burst(p Policy) (State, action.Action, time.Duration) {
	a := action.Jump(p.Layout.Jump, p.JumpHold)
	s.Jump++
	if s.Jump < p.Jumps {
		return s, a, p.JumpSpacing
	}
	s.Phase = Walking
	s.Jump = 0
	return s, a, p.Settle
}

func (s State) walk(p Policy, r Rand) (State, action.Action, time.Duration) {
	dir := Pick(r, s.Last, s.Recent)
	hold := between(r, p.HoldMin, p.HoldMax)

	var a action.Action
	if dir.HasForward() && r.Float64() < p.Substitution {
		dir = action.Back
		hold += between(r, p.InflateMin, p.InflateMax)
		a = action.Move(dir.Keys(p.Layout), hold).
			WithCorrection(p.Layout.Forward, hold+p.CorrectionExtra, p.CorrectionDelay)
	} else {
		a = action.Move(dir.Keys(p.Layout), hold)
	}

	s.Recent = append(slices.Clone(s.Recent), dir)
	if n := len(s.Recent) - p.History; n > 0 {
		s.Recent = s.Recent[n:]
	}
	s.Last = &dir
	return s, a, a.Total() + between(r, p.GapMin, p.GapMax)
}

// Candidates returns the directions a walking tick may pick from: the
// compass minus last and recent, else the compass minus last, else the
// whole compass.
func Candidates(last *action.Direction, recent []action.Direction) []action.Direction {
	all := action.Compass()
	notLast := make([]action.Direction, 0, len(all))
	for _, d := range all {
		if last == nil || d != *last {
			notLast = append(notLast, d)
		}
	}
	fresh := make([]action.Direction, 0, len(notLast))
	for _, d := range notLast {
		if !slices.Contains(recent, d) {
			fresh = append(fresh, d)
		}
	}
	switch {
	case len(fresh) > 0:
		return fresh
	case len(notLast) > 0:
		return notLast
	}
	return all
}

// Pick draws uniformly from Candidates.
func Pick(r Rand, last *action.Direction, recent []action.Direction) action.Direction {
	c := Candidates(last, recent)
	return c[r.IntN(len(c))]
}

// Snapshot converts the state into the form sent to joining views.
func (s State) Snapshot(l keys.Layout) action.Snapshot {
	snap := action.Snapshot{RecentMoves: make([][]keys.Key, 0, len(s.Recent))}
	if s.Last != nil {
		snap.LastDirection = s.Last.Keys(l)
	}
	for _, d := range s.Recent {
		snap.RecentMoves = append(snap.RecentMoves, d.Keys(l))
	}
	return snap
}

// between draws a whole number of milliseconds in [lo, hi].
func between(r Rand, lo, hi time.Duration) time.Duration {
	if hi <= lo {
		return lo
	}
	span := int((hi - lo) / time.Millisecond)
	return lo + time.Duration(r.IntN(span+1))*time.Millisecond
}
