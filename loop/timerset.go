package loop

import "time"

// TimerSet records every timer a state creates so the state can cancel all of
// them at the single point where its lifecycle ends.
//
// A TimerSet is owned by the loop goroutine and is not safe for concurrent
// use.
type TimerSet struct {
	clock  Clock
	timers map[uint64]Timer
	next   uint64
}

// NewTimerSet returns an empty set scheduling on c.
func NewTimerSet(c Clock) *TimerSet {
	return &TimerSet{clock: c, timers: make(map[uint64]Timer)}
}

// After schedules f after d and records the timer until it fires or is
// stopped.
func (s *TimerSet) After(d time.Duration, f func()) {
	id := s.next
	s.next++
	s.timers[id] = s.clock.AfterFunc(d, func() {
		if _, ok := s.timers[id]; !ok {
			return
		}
		delete(s.timers, id)
		f()
	})
}

// StopAll cancels every pending timer and returns how many were pending.
func (s *TimerSet) StopAll() int {
	n := len(s.timers)
	for id, t := range s.timers {
		t.Stop()
		delete(s.timers, id)
	}
	return n
}

// Len returns the number of pending timers.
func (s *TimerSet) Len() int { return len(s.timers) }
