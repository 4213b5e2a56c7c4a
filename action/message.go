package action

import (
	"MultiView/keys"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrInvalidMessage is returned by Decode for payloads the interpreter must
// not act on.
var ErrInvalidMessage = errors.New("invalid action message")

// Op is the top-level message operation.
type Op string

const (
	// OpAct carries an Action.
	OpAct Op = "act"
	// OpSync carries the movement controller snapshot for a joining view.
	OpSync Op = "sync"
)

const (
	// MaxHold bounds every duration accepted from the wire.
	MaxHold = 10 * time.Second
	// maxKeys bounds the number of keys in one action.
	maxKeys = 8
	// maxHistory bounds the snapshot history accepted from the wire.
	maxHistory = 16
)

// Snapshot is the movement controller state a view needs to stay consistent
// with its group when it joins mid-walk.
type Snapshot struct {
	LastDirection []keys.Key   `json:"lastDirection"`
	RecentMoves   [][]keys.Key `json:"recentMoves"`
}

// Message is the unit sent to a view.
type Message struct {
	Op     Op
	Action Action
	State  *Snapshot
}

// Act wraps a in a message.
func Act(a Action) Message { return Message{Op: OpAct, Action: a} }

// Sync wraps s in a message.
func Sync(s Snapshot) Message { return Message{Op: OpSync, State: &s} }

type wireAction struct {
	Type               Kind       `json:"type"`
	Keys               []keys.Key `json:"keys"`
	Duration           int64      `json:"duration"`
	Correction         keys.Key   `json:"correction,omitempty"`
	CorrectionDuration int64      `json:"correctionDuration,omitempty"`
	CorrectionDelay    int64      `json:"correctionDelay,omitempty"`
}

type wireMessage struct {
	Op     Op          `json:"op"`
	Action *wireAction `json:"action,omitempty"`
	State  *Snapshot   `json:"state,omitempty"`
}

// Encode serializes m. It is the only path actions take to a view.
func Encode(m Message) ([]byte, error) {
	w := wireMessage{Op: m.Op, State: m.State}
	if m.Op == OpAct {
		a := m.Action
		w.Action = &wireAction{
			Type:               a.kind,
			Keys:               a.keys,
			Duration:           a.hold.Milliseconds(),
			Correction:         a.correction,
			CorrectionDuration: a.correctionHold.Milliseconds(),
			CorrectionDelay:    a.correctionDelay.Milliseconds(),
		}
	}
	if err := validate(w); err != nil {
		return nil, err
	}
	return json.Marshal(w)
}

// Decode parses and validates a payload produced by Encode.
func Decode(data []byte) (Message, error) {
	var w wireMessage
	if err := json.Unmarshal(data, &w); err != nil {
		return Message{}, fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}
	if err := validate(w); err != nil {
		return Message{}, err
	}
	m := Message{Op: w.Op, State: w.State}
	if w.Action != nil {
		m.Action = Action{
			kind:            w.Action.Type,
			keys:            clone(w.Action.Keys),
			hold:            time.Duration(w.Action.Duration) * time.Millisecond,
			correction:      w.Action.Correction,
			correctionHold:  time.Duration(w.Action.CorrectionDuration) * time.Millisecond,
			correctionDelay: time.Duration(w.Action.CorrectionDelay) * time.Millisecond,
		}
	}
	return m, nil
}

func validate(w wireMessage) error {
	switch w.Op {
	case OpAct:
		if w.Action == nil {
			return fmt.Errorf("%w: act without action", ErrInvalidMessage)
		}
		return validateAction(*w.Action)
	case OpSync:
		if w.State == nil {
			return fmt.Errorf("%w: sync without state", ErrInvalidMessage)
		}
		if len(w.State.RecentMoves) > maxHistory {
			return fmt.Errorf("%w: %d recent moves", ErrInvalidMessage, len(w.State.RecentMoves))
		}
		if err := validateKeys(w.State.LastDirection, 0, 2); err != nil {
			return err
		}
		for _, ks := range w.State.RecentMoves {
			if err := validateKeys(ks, 1, 2); err != nil {
				return err
			}
		}
		return nil
	}
	return fmt.Errorf("%w: unknown op %q", ErrInvalidMessage, w.Op)
}

func validateAction(a wireAction) error {
	var err error
	switch a.Type {
	case KindJump:
		err = validateKeys(a.Keys, 1, 1)
	case KindMove:
		err = validateKeys(a.Keys, 1, 2)
	case KindPress, KindRelease:
		err = validateKeys(a.Keys, 1, maxKeys)
	default:
		return fmt.Errorf("%w: unknown action type %q", ErrInvalidMessage, a.Type)
	}
	if err != nil {
		return err
	}
	for _, d := range []int64{a.Duration, a.CorrectionDuration, a.CorrectionDelay} {
		if d < 0 || d > MaxHold.Milliseconds() {
			return fmt.Errorf("%w: duration %dms out of range", ErrInvalidMessage, d)
		}
	}
	if a.Correction != "" && !a.Correction.Valid() {
		return fmt.Errorf("%w: correction key %q", ErrInvalidMessage, a.Correction)
	}
	return nil
}

func validateKeys(ks []keys.Key, min, max int) error {
	if len(ks) < min || len(ks) > max {
		return fmt.Errorf("%w: %d keys, want %d..%d", ErrInvalidMessage, len(ks), min, max)
	}
	for _, k := range ks {
		if !k.Valid() {
			return fmt.Errorf("%w: key %q", ErrInvalidMessage, k)
		}
	}
	return nil
}
