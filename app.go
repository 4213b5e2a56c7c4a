// Package main contains the application wiring and the AppManager which
// connects the views, the macro engines, audio and the UI.
//
// Concurrency model: every macro mutation runs on one event loop goroutine
// (loop.Loop). The UI, the WebSocket hub and the refresh ticker never touch
// macro state directly; they post control.Commands through the bus. Timers
// created by the macros fire on the same loop.
package main

import (
	"MultiView/config"
	"MultiView/control"
	"MultiView/dispatch"
	"MultiView/group"
	"MultiView/i18n"
	"MultiView/keys"
	"MultiView/loop"
	"MultiView/macro"
	"MultiView/sound"
	"MultiView/status"
	"MultiView/ui"
	"MultiView/view"
	"MultiView/view/jsview"
	"MultiView/view/wsview"
	"context"
	"embed"
	"errors"
	"log/slog"
	"net/http"
	"slices"
	"sort"
	"sync"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/widget"
)

// GameMode is passed with every macro the control bar triggers.
const GameMode = "warzone"

// AppManager is the main application struct, holding all state.
type AppManager struct {
	mainWindow fyne.Window
	cfg        config.Config
	log        *slog.Logger
	content    embed.FS

	loop    *loop.Loop
	reg     *view.Registry
	groups  *group.Groups
	manager *macro.Manager
	send    *dispatch.Dispatcher
	bus     *control.Bus
	hub     *wsview.Hub
	demo    map[int]*jsview.View

	bar    *ui.ControlBar
	panels *ui.Panels
	grid   *ui.Grid

	policyLock sync.Mutex
	policy     string
}

// NewAppManager creates the views, the macro engines and the widgets.
func NewAppManager(content embed.FS, cfg config.Config, fyneApp fyne.App, log *slog.Logger) *AppManager {
	a := &AppManager{
		cfg:     cfg,
		log:     log,
		content: content,
		loop:    loop.New(256, log),
		reg:     view.NewRegistry(),
		groups:  group.NewGroups(),
		demo:    make(map[int]*jsview.View),
		policy:  cfg.Policy.Name,
	}
	a.send = dispatch.New(cfg.Layout, dispatch.WithLogger(log))
	a.groups.InitDefault(nil)
	a.loop.Start()

	a.bar = ui.NewControlBar(a, GameMode)
	a.panels = ui.NewPanels(a, fyneApp)
	a.grid = ui.NewGrid(a)

	notifiers := status.Multi{status.Log(log), a.bar}
	if !cfg.Mute {
		if player, err := sound.Speaker(); err != nil {
			log.Warn("audio disabled", "err", err)
		} else {
			notifiers = append(notifiers, sound.New(content, player, sound.WithLogger(log)))
		}
	}

	a.manager = macro.New(macro.Config{
		Clock:      a.loop,
		Views:      a.reg,
		Groups:     a.groups,
		Dispatcher: a.send,
		Layout:     cfg.Layout,
		Policy:     cfg.Policy,
		Timing:     cfg.AFK,
		Notifier:   notifiers,
		Prompter:   a.panels,
		Panels:     a.panels,
		Log:        log,
	})
	a.bus = control.NewBus(context.Background(), a.loop, a.manager, cfg.Policies, log)

	a.startDemoViews(cfg.DemoViews)
	if cfg.Listen != "" {
		a.hub = wsview.NewHub(a.reg,
			wsview.WithLogger(log),
			wsview.OnQuit(a.forget),
			wsview.OnKey(a.mirror),
		)
	}
	return a
}

func (a *AppManager) startDemoViews(n int) {
	sink := jsview.SinkFunc(func(id int, e view.InputEvent) {
		a.log.Debug("input", "view", id, "type", e.Type, "key", e.Key)
	})
	for i := 0; i < n; i++ {
		role := view.RolePlayer
		if i == 0 {
			role = view.RoleHost
		}
		v, err := jsview.New(a.reg.NextID(), role, a.loop, sink, a.log)
		if err != nil {
			a.log.Error("failed to start local view", "err", err)
			continue
		}
		a.demo[v.ID()] = v
		a.reg.Add(v)
	}
	a.log.Info("local views started", "count", len(a.demo))
}

// forget drops a disconnected page from the synchronization group.
func (a *AppManager) forget(rm *wsview.Remote) {
	members := a.groups.Members()
	if i := slices.Index(members, rm.ID()); i >= 0 {
		a.EnqueueCommand(control.Command{Type: control.CmdSynchronize, Selected: slices.Delete(members, i, i+1)})
	}
}

// mirror forwards a key typed in a page to the other synchronized views.
func (a *AppManager) mirror(rm *wsview.Remote, down bool, k keys.Key) {
	a.EnqueueCommand(control.Command{Type: control.CmdMirror, View: rm.ID(), Key: k, Down: down})
}

// Serve runs the WebSocket hub until ctx is done. A listen failure is
// logged and leaves the shell running with local views only.
func (a *AppManager) Serve(ctx context.Context) error {
	srv := &http.Server{
		Addr:              a.cfg.Listen,
		Handler:           a.hub.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	a.log.Info("hub listening", "addr", a.cfg.Listen)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		a.log.Error("hub stopped", "err", err)
	}
	return nil
}

// EnqueueCommand posts a command to the event loop.
func (a *AppManager) EnqueueCommand(cmd control.Command) {
	if cmd.Type == control.CmdSetPolicy {
		if _, ok := a.cfg.Policies[cmd.Policy]; ok {
			a.policyLock.Lock()
			a.policy = cmd.Policy
			a.policyLock.Unlock()
		}
	}
	a.bus.Enqueue(cmd)
}

// Views returns every registered view.
func (a *AppManager) Views() []view.View {
	return a.reg.All()
}

// Synchronized returns the ids of the synchronized views.
func (a *AppManager) Synchronized() []int {
	return a.groups.Members()
}

// Held returns the keys a local view holds down. Remote pages report none.
func (a *AppManager) Held(id int) []keys.Key {
	if v, ok := a.demo[id]; ok {
		return v.Held()
	}
	return nil
}

// Policies returns the movement policy names.
func (a *AppManager) Policies() []string {
	names := make([]string, 0, len(a.cfg.Policies))
	for n := range a.cfg.Policies {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Policy returns the policy the next movement run uses.
func (a *AppManager) Policy() string {
	a.policyLock.Lock()
	defer a.policyLock.Unlock()
	return a.policy
}

// HandleKeyRune triggers the macro bound to a shortcut key.
func (a *AppManager) HandleKeyRune(r rune) {
	if mb, ok := ui.ButtonForRune(r); ok {
		a.EnqueueCommand(control.Command{Type: control.CmdExecute, Macro: mb.ID, Mode: GameMode})
	}
}

// ShowInfoDialog shows a dialog with the given title and content.
func (a *AppManager) ShowInfoDialog(title, contentFile string, minSize fyne.Size) {
	bytes, err := a.content.ReadFile(contentFile)
	if err != nil {
		dialog.ShowError(err, a.mainWindow)
		return
	}

	text := widget.NewLabel(string(bytes))
	text.Wrapping = fyne.TextWrapWord

	scrollableContent := container.NewVScroll(text)
	scrollableContent.SetMinSize(minSize)

	dialog.ShowCustom(title, i18n.T("Close"), scrollableContent, a.mainWindow)
}

func (a *AppManager) tick(ctx context.Context) {
	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.grid.Refresh()
		}
	}
}

// Shutdown stops every macro, waits for the final releases to reach the
// views, disconnects remote pages and stops the loop.
func (a *AppManager) Shutdown() {
	if err := a.bus.Do(control.Command{Type: control.CmdShutdown}, 2*time.Second); err != nil {
		a.log.Warn("macro shutdown incomplete", "err", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*dispatch.DefaultTimeout)
	defer cancel()
	if err := a.send.Wait(ctx); err != nil {
		a.log.Warn("releases still in flight at shutdown", "err", err)
	}
	if a.hub != nil {
		a.hub.Close()
	}
	a.loop.Stop()
	for _, v := range a.demo {
		v.Destroy()
	}
}
