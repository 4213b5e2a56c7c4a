package wsview

import (
	"MultiView/keys"
	"MultiView/view"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"
)

// ErrClosed is returned by calls on a remote whose connection is gone.
var ErrClosed = errors.New("wsview: connection closed")

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 54 * time.Second
	maxMessageSize = 64 << 10
	sendBuffer     = 64
)

// frame is the hub-to-page message.
type frame struct {
	Type    string       `json:"type"`
	ID      uint64       `json:"id"`
	Payload string       `json:"payload,omitempty"`
	Events  []inputEvent `json:"events,omitempty"`
}

// reply is the page-to-hub message: a call result, or a key typed by the
// user when Type is "key".
type reply struct {
	Type  string `json:"type"`
	ID    uint64 `json:"id"`
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
	Event string `json:"event,omitempty"`
	Key   string `json:"key,omitempty"`
}

type inputEvent struct {
	Type string `json:"type"`
	Key  string `json:"key,omitempty"`
	Code string `json:"code,omitempty"`
	AtMs int64  `json:"atMs"`
}

// Remote is a browser page connected over a WebSocket. It implements
// view.View and view.Injector.
type Remote struct {
	id      int
	role    view.Role
	session string
	conn    *websocket.Conn
	send    chan []byte
	limiter *rate.Limiter
	log     *slog.Logger
	onKey   func(rm *Remote, down bool, k keys.Key)

	mu      sync.Mutex
	pending map[uint64]chan reply
	nextID  uint64

	closed    chan struct{}
	closeOnce sync.Once
}

var (
	_ view.View     = (*Remote)(nil)
	_ view.Injector = (*Remote)(nil)
)

func newRemote(id int, role view.Role, session string, conn *websocket.Conn, limiter *rate.Limiter, log *slog.Logger) *Remote {
	return &Remote{
		id:      id,
		role:    role,
		session: session,
		conn:    conn,
		send:    make(chan []byte, sendBuffer),
		limiter: limiter,
		log:     log.With("view", id, "session", session),
		pending: make(map[uint64]chan reply),
		closed:  make(chan struct{}),
	}
}

func (r *Remote) ID() int         { return r.id }
func (r *Remote) Role() view.Role { return r.role }

// Session is the connection id.
func (r *Remote) Session() string { return r.session }

// Alive reports whether the connection is still open.
func (r *Remote) Alive() bool {
	select {
	case <-r.closed:
		return false
	default:
		return true
	}
}

// Done is closed when the connection ends.
func (r *Remote) Done() <-chan struct{} { return r.closed }

// Close ends the connection.
func (r *Remote) Close() {
	r.closeOnce.Do(func() {
		close(r.closed)
		r.conn.Close()
	})
}

// Run implements view.View. The page answers false when its interpreter
// rejects the message without failing.
func (r *Remote) Run(ctx context.Context, payload []byte) (bool, error) {
	rep, err := r.call(ctx, frame{Type: "run", Payload: string(payload)})
	if err != nil {
		return false, err
	}
	if rep.Error != "" {
		return false, fmt.Errorf("page: %s", rep.Error)
	}
	return rep.OK, nil
}

// Inject implements view.Injector.
func (r *Remote) Inject(ctx context.Context, events []view.InputEvent) error {
	f := frame{Type: "inject", Events: make([]inputEvent, len(events))}
	for i, e := range events {
		f.Events[i] = inputEvent{Type: string(e.Type), Key: string(e.Key), Code: e.Code, AtMs: e.At.Milliseconds()}
	}
	rep, err := r.call(ctx, f)
	if err != nil {
		return err
	}
	if !rep.OK {
		return fmt.Errorf("page refused injection: %s", rep.Error)
	}
	return nil
}

func (r *Remote) call(ctx context.Context, f frame) (reply, error) {
	ch := make(chan reply, 1)
	r.mu.Lock()
	r.nextID++
	f.ID = r.nextID
	r.pending[f.ID] = ch
	r.mu.Unlock()
	defer func() {
		r.mu.Lock()
		delete(r.pending, f.ID)
		r.mu.Unlock()
	}()

	data, err := json.Marshal(f)
	if err != nil {
		return reply{}, err
	}
	select {
	case r.send <- data:
	case <-r.closed:
		return reply{}, ErrClosed
	case <-ctx.Done():
		return reply{}, ctx.Err()
	}
	select {
	case rep := <-ch:
		return rep, nil
	case <-r.closed:
		return reply{}, ErrClosed
	case <-ctx.Done():
		return reply{}, ctx.Err()
	}
}

func (r *Remote) readPump() {
	defer r.Close()
	r.conn.SetReadLimit(maxMessageSize)
	_ = r.conn.SetReadDeadline(time.Now().Add(pongWait))
	r.conn.SetPongHandler(func(string) error {
		return r.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		var rep reply
		if err := r.conn.ReadJSON(&rep); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				r.log.Warn("websocket read failed", "err", err)
			}
			return
		}
		r.mu.Lock()
		ch, ok := r.pending[rep.ID]
		r.mu.Unlock()
		if ok {
			select {
			case ch <- rep:
			default:
			}
			continue
		}
		// Only unsolicited frames count against the limit.
		if !r.limiter.Allow() {
			r.log.Warn("inbound frame rate exceeded, dropping", "id", rep.ID)
			continue
		}
		if rep.Type == "key" {
			r.typed(rep)
			continue
		}
		r.log.Debug("reply for unknown call", "id", rep.ID)
	}
}

func (r *Remote) typed(rep reply) {
	if r.onKey == nil {
		return
	}
	switch rep.Event {
	case "down":
		r.onKey(r, true, keys.Key(rep.Key))
	case "up":
		r.onKey(r, false, keys.Key(rep.Key))
	default:
		r.log.Debug("unknown key event", "event", rep.Event)
	}
}

func (r *Remote) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		r.Close()
	}()
	for {
		select {
		case data := <-r.send:
			_ = r.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := r.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				r.log.Warn("websocket write failed", "err", err)
				return
			}
		case <-ticker.C:
			_ = r.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := r.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-r.closed:
			_ = r.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
			return
		}
	}
}
