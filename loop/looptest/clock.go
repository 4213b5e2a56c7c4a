// Package looptest provides a virtual clock that drives timer chains
// deterministically from the test goroutine.
package looptest

import (
	"MultiView/loop"
	"sort"
	"sync"
	"time"
)

// Clock is a manual loop.Clock. Callbacks only run inside Advance, on the
// calling goroutine, in due-time order.
type Clock struct {
	mu     sync.Mutex
	now    time.Duration
	seq    uint64
	timers []*timer
}

var _ loop.Clock = (*Clock)(nil)

type timer struct {
	c   *Clock
	due time.Duration
	seq uint64
	f   func()
}

// NewClock returns a clock at elapsed time zero.
func NewClock() *Clock { return &Clock{} }

// AfterFunc implements loop.Clock.
func (c *Clock) AfterFunc(d time.Duration, f func()) loop.Timer {
	if d < 0 {
		d = 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &timer{c: c, due: c.now + d, seq: c.seq, f: f}
	c.seq++
	c.timers = append(c.timers, t)
	return t
}

func (t *timer) Stop() bool {
	c := t.c
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, p := range c.timers {
		if p == t {
			c.timers = append(c.timers[:i], c.timers[i+1:]...)
			return true
		}
	}
	return false
}

// Advance moves time forward by d, firing every timer that falls due,
// including timers scheduled by callbacks during the advance.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.now + d
	c.mu.Unlock()
	for {
		c.mu.Lock()
		t := c.popDue(target)
		if t == nil {
			c.now = target
			c.mu.Unlock()
			return
		}
		c.now = t.due
		c.mu.Unlock()
		t.f()
	}
}

// Flush fires timers until none are due at the current time.
func (c *Clock) Flush() { c.Advance(0) }

func (c *Clock) popDue(target time.Duration) *timer {
	if len(c.timers) == 0 {
		return nil
	}
	sort.SliceStable(c.timers, func(i, j int) bool {
		if c.timers[i].due != c.timers[j].due {
			return c.timers[i].due < c.timers[j].due
		}
		return c.timers[i].seq < c.timers[j].seq
	})
	t := c.timers[0]
	if t.due > target {
		return nil
	}
	c.timers = c.timers[1:]
	return t
}

// Now returns the elapsed virtual time.
func (c *Clock) Now() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Pending returns the number of scheduled timers.
func (c *Clock) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.timers)
}
