package ui

import (
	"MultiView/control"
	"MultiView/i18n"
	"MultiView/keys"
	"MultiView/view"
	"fmt"
	"image/color"
	"slices"
	"strings"
	"sync"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/layout"
	"fyne.io/fyne/v2/widget"
)

// Dimensions
const (
	FontSize     float32 = 18.0
	TileWidth            = 220
	TileHeight           = 96
	TileSpacing          = 4
	CornerRadius         = 10.0
	WindowWidth          = 960
	WindowHeight         = 600
)

var (
	// BackgroundColor is the base background color for tiles.
	BackgroundColor = color.NRGBA{R: 0x1e, G: 0x1e, B: 0x1e, A: 0xff}
	// SyncColor marks synchronized tiles and active macros.
	SyncColor = color.NRGBA{R: 0x2e, G: 0x9e, B: 0x5b, A: 0xff}
)

// App is what the widgets need from the application.
type App interface {
	EnqueueCommand(cmd control.Command)
	Views() []view.View
	Synchronized() []int
	Held(id int) []keys.Key
	Policies() []string
	Policy() string
	ShowInfoDialog(title, contentFile string, minSize fyne.Size)
	HandleKeyRune(rune)
}

// ViewTile shows one view: its index, role, sync state and held keys.
type ViewTile struct {
	id   int
	role view.Role

	title     *canvas.Text
	keysText  *canvas.Text
	filter    *canvas.Rectangle
	border    *canvas.Rectangle
	container *TappableContainer
}

// NewViewTile builds the tile of v. Tapping it toggles its synchronization.
func NewViewTile(a App, v view.View) *ViewTile {
	t := &ViewTile{id: v.ID(), role: v.Role()}

	t.title = canvas.NewText(fmt.Sprintf("#%d %s", v.ID(), i18n.T(string(v.Role()))), color.White)
	t.title.TextSize = FontSize
	t.title.TextStyle.Bold = true

	t.keysText = canvas.NewText("", color.White)
	t.keysText.TextStyle.Monospace = true

	t.filter = canvas.NewRectangle(withAlpha(BackgroundColor, 0xa6))
	t.filter.CornerRadius = CornerRadius

	t.border = canvas.NewRectangle(color.Transparent)
	t.border.StrokeWidth = 2
	t.border.CornerRadius = CornerRadius
	t.border.SetMinSize(fyne.NewSize(TileWidth, TileHeight))

	content := container.New(layout.NewVBoxLayout(),
		layout.NewSpacer(),
		container.New(layout.NewCenterLayout(), t.title),
		container.New(layout.NewCenterLayout(), t.keysText),
		layout.NewSpacer(),
	)
	t.container = NewTappableContainer(container.NewStack(t.filter, content, t.border), func() {
		sel := a.Synchronized()
		if i := slices.Index(sel, t.id); i >= 0 {
			sel = slices.Delete(sel, i, i+1)
		} else {
			sel = append(sel, t.id)
		}
		a.EnqueueCommand(control.Command{Type: control.CmdSynchronize, Selected: sel})
	}, nil)
	return t
}

// GetCanvasObject returns the tile widget.
func (t *ViewTile) GetCanvasObject() fyne.CanvasObject { return t.container }

// Update redraws the tile. It may be called from any goroutine.
func (t *ViewTile) Update(synced bool, held []keys.Key) {
	names := make([]string, len(held))
	for i, k := range held {
		names[i] = keys.Code(k)
	}
	fyne.Do(func() {
		if synced {
			t.border.StrokeColor = SyncColor
			t.filter.FillColor = withAlpha(BackgroundColor, 0x40)
		} else {
			t.border.StrokeColor = color.Transparent
			t.filter.FillColor = withAlpha(BackgroundColor, 0xa6)
		}
		t.keysText.Text = strings.Join(names, " ")
		t.border.Refresh()
		t.filter.Refresh()
		t.keysText.Refresh()
	})
}

// Grid lays out one tile per view and follows views as they come and go.
type Grid struct {
	a   App
	box *fyne.Container

	mu    sync.Mutex
	tiles map[int]*ViewTile
	order []int
}

// NewGrid returns an empty grid.
func NewGrid(a App) *Grid {
	return &Grid{
		a:     a,
		box:   container.NewGridWrap(fyne.NewSize(TileWidth, TileHeight)),
		tiles: make(map[int]*ViewTile),
	}
}

// GetCanvasObject returns the grid container.
func (g *Grid) GetCanvasObject() fyne.CanvasObject { return g.box }

// Refresh rebuilds the tile set if views changed and redraws every tile.
func (g *Grid) Refresh() {
	vs := g.a.Views()
	ids := make([]int, len(vs))
	for i, v := range vs {
		ids[i] = v.ID()
	}

	g.mu.Lock()
	if !slices.Equal(ids, g.order) {
		tiles := make(map[int]*ViewTile, len(vs))
		objs := make([]fyne.CanvasObject, 0, len(vs))
		for _, v := range vs {
			t, ok := g.tiles[v.ID()]
			if !ok {
				t = NewViewTile(g.a, v)
			}
			tiles[v.ID()] = t
			objs = append(objs, t.GetCanvasObject())
		}
		g.tiles, g.order = tiles, ids
		fyne.Do(func() {
			g.box.Objects = objs
			g.box.Refresh()
		})
	}
	tiles := make([]*ViewTile, 0, len(g.order))
	for _, id := range g.order {
		tiles = append(tiles, g.tiles[id])
	}
	g.mu.Unlock()

	synced := g.a.Synchronized()
	for _, t := range tiles {
		t.Update(slices.Contains(synced, t.id), g.a.Held(t.id))
	}
}

// Len returns the number of tiles.
func (g *Grid) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.order)
}

// CreateMainWindow builds the shell window: view tiles above the control bar.
func CreateMainWindow(a App, fyneApp fyne.App, bar *ControlBar, grid *Grid) fyne.Window {
	title := fyneApp.Metadata().Name
	if title == "" {
		title = "MultiView"
	}
	w := fyneApp.NewWindow(title)

	w.Canvas().SetOnTypedRune(a.HandleKeyRune)

	gap := canvas.NewRectangle(color.Transparent)
	gap.SetMinSize(fyne.NewSize(0, TileSpacing))

	w.SetContent(container.NewBorder(nil,
		container.NewVBox(gap, bar.GetCanvasObject()),
		nil, nil,
		container.NewVScroll(grid.GetCanvasObject()),
	))
	grid.Refresh()
	w.Resize(fyne.NewSize(WindowWidth, WindowHeight))
	return w
}

type TappableContainer struct {
	widget.BaseWidget
	Content           fyne.CanvasObject
	OnTappedPrimary   func()
	OnTappedSecondary func(e *fyne.PointEvent)
}

func NewTappableContainer(c fyne.CanvasObject, onP func(), onS func(e *fyne.PointEvent)) *TappableContainer {
	t := &TappableContainer{
		Content:           c,
		OnTappedPrimary:   onP,
		OnTappedSecondary: onS,
	}
	t.ExtendBaseWidget(t)
	return t
}

func (t *TappableContainer) CreateRenderer() fyne.WidgetRenderer {
	return widget.NewSimpleRenderer(t.Content)
}

func (t *TappableContainer) Tapped(_ *fyne.PointEvent) {
	if t.OnTappedPrimary != nil {
		t.OnTappedPrimary()
	}
}

func (t *TappableContainer) TappedSecondary(e *fyne.PointEvent) {
	if t.OnTappedSecondary != nil {
		t.OnTappedSecondary(e)
	}
}

func withAlpha(c color.Color, alpha uint8) color.NRGBA {
	r, g, b, _ := c.RGBA()
	return color.NRGBA{R: uint8(r >> 8), G: uint8(g >> 8), B: uint8(b >> 8), A: alpha}
}
