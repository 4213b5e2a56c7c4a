// Package control defines the command messages the UI and network goroutines
// use to request macro actions. Commands are applied on the event loop, which
// owns all macro state.
package control

import (
	"MultiView/group"
	"MultiView/keys"
	"MultiView/movement"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// CommandType enumerates supported command operations.
type CommandType int

const (
	CmdExecute CommandType = iota
	CmdSynchronize
	CmdSetPolicy
	CmdShutdown
	CmdMirror
)

func (t CommandType) String() string {
	switch t {
	case CmdExecute:
		return "execute"
	case CmdSynchronize:
		return "synchronize"
	case CmdSetPolicy:
		return "setPolicy"
	case CmdShutdown:
		return "shutdown"
	case CmdMirror:
		return "mirror"
	}
	return fmt.Sprintf("command(%d)", int(t))
}

// Command is the message sent to the event loop. The optional Reply channel
// receives the outcome once the command has been applied.
type Command struct {
	Type CommandType
	// Macro and Mode are used by CmdExecute.
	Macro string
	Mode  string
	// Selected is the view id list for CmdSynchronize.
	Selected []int
	// Policy names the movement policy for CmdSetPolicy.
	Policy string
	// View, Key and Down describe the key event of CmdMirror.
	View  int
	Key   keys.Key
	Down  bool
	Reply chan error
}

// ErrDropped is replied when the loop did not accept the command in time.
var ErrDropped = errors.New("control: command dropped")

// Handler applies commands. It is only called on the loop goroutine.
type Handler interface {
	Execute(ctx context.Context, id, mode string)
	Synchronize(selected []int) group.Diff
	SetPolicy(p movement.Policy)
	Mirror(ctx context.Context, source int, k keys.Key, down bool)
	Shutdown()
}

// Poster runs functions on the event loop.
type Poster interface {
	Post(fn func()) bool
}

// Bus forwards commands from any goroutine to a Handler on the loop.
type Bus struct {
	loop     Poster
	handler  Handler
	ctx      context.Context
	policies map[string]movement.Policy
	log      *slog.Logger
}

// NewBus returns a bus. ctx is passed to the macros started through it.
// policies maps names accepted by CmdSetPolicy.
func NewBus(ctx context.Context, p Poster, h Handler, policies map[string]movement.Policy, log *slog.Logger) *Bus {
	if log == nil {
		log = slog.Default()
	}
	return &Bus{loop: p, handler: h, ctx: ctx, policies: policies, log: log.With("component", "control")}
}

// Enqueue posts cmd to the loop without waiting for it to run.
func (b *Bus) Enqueue(cmd Command) {
	ok := b.loop.Post(func() {
		reply(cmd, b.apply(cmd))
	})
	if !ok {
		b.log.Warn("command dropped", "command", cmd.Type.String(), "macro", cmd.Macro)
		reply(cmd, ErrDropped)
	}
}

// Do posts cmd and waits up to timeout for it to be applied.
func (b *Bus) Do(cmd Command, timeout time.Duration) error {
	cmd.Reply = make(chan error, 1)
	b.Enqueue(cmd)
	select {
	case err := <-cmd.Reply:
		return err
	case <-time.After(timeout):
		return fmt.Errorf("%s: no reply after %s", cmd.Type, timeout)
	}
}

func (b *Bus) apply(cmd Command) error {
	switch cmd.Type {
	case CmdExecute:
		b.handler.Execute(b.ctx, cmd.Macro, cmd.Mode)
	case CmdSynchronize:
		b.handler.Synchronize(cmd.Selected)
	case CmdSetPolicy:
		p, ok := b.policies[cmd.Policy]
		if !ok {
			return fmt.Errorf("unknown movement policy %q", cmd.Policy)
		}
		b.handler.SetPolicy(p)
	case CmdMirror:
		b.handler.Mirror(b.ctx, cmd.View, cmd.Key, cmd.Down)
	case CmdShutdown:
		b.handler.Shutdown()
	default:
		return fmt.Errorf("unsupported %s", cmd.Type)
	}
	return nil
}

func reply(cmd Command, err error) {
	if cmd.Reply == nil {
		return
	}
	select {
	case cmd.Reply <- err:
	default:
	}
}
