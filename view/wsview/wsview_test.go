package wsview_test

import (
	"MultiView/action"
	"MultiView/dispatch"
	"MultiView/keys"
	"MultiView/view"
	"MultiView/view/wsview"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type page struct {
	conn *websocket.Conn

	mu     sync.Mutex
	frames []map[string]any
	ok     bool
	fail   string
}

func (p *page) serve() {
	for {
		var f map[string]any
		if err := p.conn.ReadJSON(&f); err != nil {
			return
		}
		p.mu.Lock()
		p.frames = append(p.frames, f)
		rep := map[string]any{"type": "result", "id": f["id"], "ok": p.ok}
		if p.fail != "" {
			rep["error"] = p.fail
		}
		p.mu.Unlock()
		if err := p.conn.WriteJSON(rep); err != nil {
			return
		}
	}
}

func (p *page) Frames() []map[string]any {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]map[string]any(nil), p.frames...)
}

func setup(t *testing.T) (*wsview.Hub, *view.Registry, *httptest.Server) {
	t.Helper()
	reg := view.NewRegistry()
	hub := wsview.NewHub(reg)
	srv := httptest.NewServer(hub.Router())
	t.Cleanup(func() {
		hub.Close()
		srv.Close()
	})
	return hub, reg, srv
}

func connect(t *testing.T, srv *httptest.Server, role string, ok bool) *page {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?role=" + role
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	p := &page{conn: conn, ok: ok}
	go p.serve()
	return p
}

func only(t *testing.T, reg *view.Registry) view.View {
	t.Helper()
	require.Eventually(t, func() bool { return len(reg.All()) == 1 }, time.Second, 5*time.Millisecond)
	return reg.All()[0]
}

func TestRunRoundTrip(t *testing.T) {
	_, reg, srv := setup(t)
	p := connect(t, srv, "host", true)
	v := only(t, reg)
	assert.Equal(t, view.RoleHost, v.Role())
	assert.True(t, v.Alive())

	payload, err := action.Encode(action.Act(action.Jump(keys.Space, 200*time.Millisecond)))
	require.NoError(t, err)
	ok, err := v.Run(context.Background(), payload)
	require.NoError(t, err)
	assert.True(t, ok)

	frames := p.Frames()
	require.Len(t, frames, 1)
	assert.Equal(t, "run", frames[0]["type"])
	assert.JSONEq(t, string(payload), frames[0]["payload"].(string))
}

func TestRunReportsRefusal(t *testing.T) {
	_, reg, srv := setup(t)
	connect(t, srv, "player", false)
	v := only(t, reg)

	payload, err := action.Encode(action.Act(action.Press(time.Second, "w")))
	require.NoError(t, err)
	ok, err := v.Run(context.Background(), payload)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRunSurfacesPageError(t *testing.T) {
	_, reg, srv := setup(t)
	p := connect(t, srv, "player", false)
	p.mu.Lock()
	p.fail = "interpreter missing"
	p.mu.Unlock()
	v := only(t, reg)

	payload, err := action.Encode(action.Act(action.Press(time.Second, "w")))
	require.NoError(t, err)
	_, err = v.Run(context.Background(), payload)
	assert.ErrorContains(t, err, "interpreter missing")
}

func TestInjectSendsOffsets(t *testing.T) {
	_, reg, srv := setup(t)
	p := connect(t, srv, "host", true)
	v := only(t, reg)

	inj, ok := v.(view.Injector)
	require.True(t, ok)
	err := inj.Inject(context.Background(), []view.InputEvent{
		{Type: view.MouseDown},
		{Type: view.KeyDown, Key: "w", Code: "KeyW", At: 100 * time.Millisecond},
	})
	require.NoError(t, err)

	frames := p.Frames()
	require.Len(t, frames, 1)
	assert.Equal(t, "inject", frames[0]["type"])
	raw, err := json.Marshal(frames[0]["events"])
	require.NoError(t, err)
	assert.JSONEq(t, `[{"type":"mouseDown","atMs":0},{"type":"keyDown","key":"w","code":"KeyW","atMs":100}]`, string(raw))
}

func TestDisconnectUnregisters(t *testing.T) {
	var quit sync.WaitGroup
	quit.Add(1)
	reg := view.NewRegistry()
	hub := wsview.NewHub(reg, wsview.OnQuit(func(*wsview.Remote) { quit.Done() }))
	srv := httptest.NewServer(hub.Router())
	defer srv.Close()

	p := connect(t, srv, "host", true)
	v := only(t, reg)
	require.Len(t, hub.Remotes(), 1)

	p.conn.Close()
	quit.Wait()
	assert.False(t, v.Alive())
	assert.Empty(t, reg.All())
	assert.Empty(t, hub.Remotes())

	payload, err := action.Encode(action.Act(action.Release("w")))
	require.NoError(t, err)
	_, err = v.Run(context.Background(), payload)
	assert.ErrorIs(t, err, wsview.ErrClosed)
}

func TestRunHonoursContext(t *testing.T) {
	_, reg, srv := setup(t)
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?role=host"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()
	v := only(t, reg)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	payload, err := action.Encode(action.Act(action.Release("w")))
	require.NoError(t, err)
	_, err = v.Run(ctx, payload)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRejectsUnknownRole(t *testing.T) {
	_, reg, srv := setup(t)
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?role=admin"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Empty(t, reg.All())
}

func TestServesInterpreter(t *testing.T) {
	_, _, srv := setup(t)
	resp, err := http.Get(srv.URL + "/interpreter.js")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "javascript")
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "installInterpreter")

	health, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	health.Body.Close()
	assert.Equal(t, http.StatusOK, health.StatusCode)
}

func TestRepliesBypassInboundLimit(t *testing.T) {
	reg := view.NewRegistry()
	hub := wsview.NewHub(reg, wsview.WithRateLimit(1, 1))
	srv := httptest.NewServer(hub.Router())
	t.Cleanup(func() {
		hub.Close()
		srv.Close()
	})
	p := connect(t, srv, "host", true)
	v := only(t, reg)

	d := dispatch.New(keys.QWERTY, dispatch.WithTimeout(500*time.Millisecond))
	for i := 0; i < 20; i++ {
		d.Dispatch(context.Background(), action.Press(100*time.Millisecond, "w"), []view.View{v})
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, d.Wait(ctx))

	frames := p.Frames()
	require.Len(t, frames, 20)
	for _, f := range frames {
		assert.Equal(t, "run", f["type"], "no fallback injection expected")
	}
}

type typedKey struct {
	view int
	down bool
	key  keys.Key
}

func TestTypedKeysReachOnKey(t *testing.T) {
	got := make(chan typedKey, 4)
	reg := view.NewRegistry()
	hub := wsview.NewHub(reg, wsview.OnKey(func(rm *wsview.Remote, down bool, k keys.Key) {
		got <- typedKey{rm.ID(), down, k}
	}))
	srv := httptest.NewServer(hub.Router())
	t.Cleanup(func() {
		hub.Close()
		srv.Close()
	})

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?role=player"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()
	v := only(t, reg)

	for _, f := range []string{
		`{"type":"key","event":"down","key":"w"}`,
		`{"type":"key","event":"hold","key":"w"}`,
		`{"type":"key","event":"up","key":"w"}`,
	} {
		require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(f)))
	}

	for _, want := range []typedKey{{v.ID(), true, "w"}, {v.ID(), false, "w"}} {
		select {
		case k := <-got:
			assert.Equal(t, want, k)
		case <-time.After(time.Second):
			t.Fatal("key event not delivered")
		}
	}
}
