// Package loop is the single event loop every macro runs on.
//
// One goroutine owns all macro state. UI and network goroutines hand work to
// it with Post; timers created with AfterFunc fire their callback on the same
// goroutine, so macro code never needs locks. The only resource that needs
// bookkeeping is timer identity, see TimerSet.
package loop

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// Timer is a pending callback.
type Timer interface {
	// Stop prevents the callback from running. It reports whether the call
	// stopped the timer before it fired.
	Stop() bool
}

// Clock schedules callbacks. Implementations run callbacks one at a time on
// the goroutine that owns macro state.
type Clock interface {
	AfterFunc(d time.Duration, f func()) Timer
}

// postTimeout bounds how long Post waits on a full mailbox.
const postTimeout = 150 * time.Millisecond

// Loop runs posted functions and timer callbacks sequentially.
type Loop struct {
	inbox  chan func()
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
	log    *slog.Logger
}

// New creates a loop with a mailbox of size entries.
func New(size int, log *slog.Logger) *Loop {
	if size <= 0 {
		size = 256
	}
	if log == nil {
		log = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Loop{
		inbox:  make(chan func(), size),
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
		log:    log.With("component", "loop"),
	}
}

// Start launches the loop goroutine. Calling it again has no effect.
func (l *Loop) Start() {
	l.once.Do(func() { go l.run() })
}

// Stop ends the loop. Pending functions are dropped.
func (l *Loop) Stop() {
	l.cancel()
}

// Done is closed once the loop goroutine has exited.
func (l *Loop) Done() <-chan struct{} { return l.done }

// Context is canceled when the loop stops.
func (l *Loop) Context() context.Context { return l.ctx }

// Post enqueues fn. It gives up, returning false, if the loop is stopped or
// the mailbox stays full for a short while.
func (l *Loop) Post(fn func()) bool {
	if fn == nil {
		return false
	}
	select {
	case <-l.ctx.Done():
		return false
	default:
	}
	select {
	case l.inbox <- fn:
		return true
	case <-l.ctx.Done():
		return false
	case <-time.After(postTimeout):
		l.log.Warn("mailbox full, dropping posted function")
		return false
	}
}

// Call runs fn on the loop and waits for it to finish.
func (l *Loop) Call(fn func()) bool {
	done := make(chan struct{})
	if !l.Post(func() {
		defer close(done)
		fn()
	}) {
		return false
	}
	select {
	case <-done:
		return true
	case <-l.ctx.Done():
		return false
	}
}

// AfterFunc implements Clock. The callback runs on the loop goroutine unless
// the timer was stopped first.
func (l *Loop) AfterFunc(d time.Duration, f func()) Timer {
	t := &loopTimer{}
	t.t = time.AfterFunc(d, func() {
		select {
		case l.inbox <- func() {
			if t.stopped.Load() {
				return
			}
			f()
		}:
		case <-l.ctx.Done():
		}
	})
	return t
}

type loopTimer struct {
	t       *time.Timer
	stopped atomic.Bool
}

func (t *loopTimer) Stop() bool {
	if t.stopped.Swap(true) {
		return false
	}
	return t.t.Stop()
}

func (l *Loop) run() {
	defer close(l.done)
	for {
		select {
		case <-l.ctx.Done():
			return
		case fn := <-l.inbox:
			l.exec(fn)
		}
	}
}

func (l *Loop) exec(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			l.log.Error("recovered panic in loop function", "panic", r)
		}
	}()
	fn()
}
