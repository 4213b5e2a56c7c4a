package jsview

import (
	"MultiView/view"
	"sync"
)

// Recorder is a Sink that keeps every event per view.
type Recorder struct {
	mu     sync.Mutex
	events map[int][]view.InputEvent
	onIn   func(id int, e view.InputEvent)
}

// NewRecorder returns an empty recorder. onInput, if set, is called after
// each event is recorded.
func NewRecorder(onInput func(id int, e view.InputEvent)) *Recorder {
	return &Recorder{events: make(map[int][]view.InputEvent), onIn: onInput}
}

func (r *Recorder) Input(id int, e view.InputEvent) {
	r.mu.Lock()
	r.events[id] = append(r.events[id], e)
	r.mu.Unlock()
	if r.onIn != nil {
		r.onIn(id, e)
	}
}

// Events returns the events recorded for view id.
func (r *Recorder) Events(id int) []view.InputEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]view.InputEvent, len(r.events[id]))
	copy(out, r.events[id])
	return out
}

// Reset forgets everything.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	clear(r.events)
}
