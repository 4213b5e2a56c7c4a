// Package wsview serves the interpreter to real browser pages and exposes
// each connected page as a view.
package wsview

import (
	"MultiView/interp"
	"MultiView/keys"
	"MultiView/view"
	"io"
	"log/slog"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Hub accepts page connections and registers them as views.
type Hub struct {
	reg    *view.Registry
	log    *slog.Logger
	limit  rate.Limit
	burst  int
	onJoin func(*Remote)
	onQuit func(*Remote)
	onKey  func(*Remote, bool, keys.Key)

	mu      sync.Mutex
	remotes map[int]*Remote
}

// Option configures a Hub.
type Option func(*Hub)

// WithLogger sets the hub logger.
func WithLogger(l *slog.Logger) Option {
	return func(h *Hub) { h.log = l }
}

// WithRateLimit bounds the unsolicited frames a single page may send per
// second. Replies to calls in flight are never limited.
func WithRateLimit(perSecond float64, burst int) Option {
	return func(h *Hub) {
		h.limit = rate.Limit(perSecond)
		h.burst = burst
	}
}

// OnJoin is called after a page is registered.
func OnJoin(f func(*Remote)) Option {
	return func(h *Hub) { h.onJoin = f }
}

// OnQuit is called after a page disconnects and is unregistered.
func OnQuit(f func(*Remote)) Option {
	return func(h *Hub) { h.onQuit = f }
}

// OnKey is called, on the page's reader goroutine, for every key the user
// presses or releases in that page.
func OnKey(f func(rm *Remote, down bool, k keys.Key)) Option {
	return func(h *Hub) { h.onKey = f }
}

// NewHub returns a hub that publishes pages into reg.
func NewHub(reg *view.Registry, opts ...Option) *Hub {
	h := &Hub{
		reg:     reg,
		log:     slog.Default(),
		limit:   50,
		burst:   100,
		remotes: make(map[int]*Remote),
	}
	for _, opt := range opts {
		opt(h)
	}
	h.log = h.log.With("component", "wsview")
	return h
}

// Router returns the hub's HTTP routes.
func (h *Hub) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/ws", h.serveWS).Methods(http.MethodGet)
	r.HandleFunc("/interpreter.js", serveScript).Methods(http.MethodGet)
	r.HandleFunc("/healthz", h.serveHealth).Methods(http.MethodGet)
	return r
}

func serveScript(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/javascript; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = io.WriteString(w, interp.Browser())
}

func (h *Hub) serveHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = io.WriteString(w, "ok\n")
}

func (h *Hub) serveWS(w http.ResponseWriter, r *http.Request) {
	role, err := view.ParseRole(r.URL.Query().Get("role"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", "err", err)
		return
	}

	rm := newRemote(h.reg.NextID(), role, uuid.NewString(), conn, rate.NewLimiter(h.limit, h.burst), h.log)
	rm.onKey = h.onKey
	h.mu.Lock()
	h.remotes[rm.id] = rm
	h.mu.Unlock()
	h.reg.Add(rm)
	rm.log.Info("page connected", "role", role, "remote", r.RemoteAddr)
	if h.onJoin != nil {
		h.onJoin(rm)
	}

	go rm.writePump()
	go func() {
		rm.readPump()
		h.drop(rm)
	}()
}

func (h *Hub) drop(rm *Remote) {
	h.mu.Lock()
	_, ok := h.remotes[rm.id]
	delete(h.remotes, rm.id)
	h.mu.Unlock()
	if !ok {
		return
	}
	h.reg.Remove(rm.id)
	rm.log.Info("page disconnected")
	if h.onQuit != nil {
		h.onQuit(rm)
	}
}

// Remotes returns the pages currently connected.
func (h *Hub) Remotes() []*Remote {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]*Remote, 0, len(h.remotes))
	for _, rm := range h.remotes {
		out = append(out, rm)
	}
	return out
}

// Close disconnects every page.
func (h *Hub) Close() {
	for _, rm := range h.Remotes() {
		rm.Close()
	}
}
