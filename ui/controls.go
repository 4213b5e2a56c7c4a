package ui

import (
	"MultiView/afk"
	"MultiView/control"
	"MultiView/i18n"
	"MultiView/macro"
	"MultiView/movement"
	"MultiView/status"
	"image/color"
	"sync"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/layout"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"
)

// MacroButton describes one control bar entry. Status is the status id of
// toggle macros, zero for one-shots and panels.
type MacroButton struct {
	ID     string
	Label  string
	Key    rune
	Status int
}

// Buttons is the control bar layout.
var Buttons = []MacroButton{
	{ID: macro.SyncPanel, Label: "Sync", Key: 's'},
	{ID: macro.MacroPanel, Label: "Macros", Key: 'm'},
	{ID: macro.Movement, Label: "Movement", Key: '4', Status: movement.Macro},
	{ID: macro.MultiSearch, Label: "Multi-search", Key: '1'},
	{ID: macro.Abandon, Label: "Abandon", Key: '2'},
	{ID: macro.Fullscreen, Label: "Fullscreen", Key: '3'},
	{ID: macro.AutoDrop, Label: "Auto drop", Key: '5'},
	{ID: macro.AFKHost, Label: "AFK host", Key: '6', Status: afk.MacroHost},
	{ID: macro.AFKPlayer, Label: "AFK player", Key: '7', Status: afk.MacroPlayer},
	{ID: macro.AFKCombined, Label: "AFK host+player", Key: '8', Status: afk.MacroCombined},
}

// ButtonForRune returns the entry bound to a keyboard shortcut.
func ButtonForRune(r rune) (MacroButton, bool) {
	for _, b := range Buttons {
		if b.Key == r {
			return b, true
		}
	}
	return MacroButton{}, false
}

// ControlBar holds the macro buttons and shows which toggle macros run. It
// implements status.Notifier.
type ControlBar struct {
	buttons map[string]*widget.Button
	dots    map[int]*canvas.Rectangle
	box     fyne.CanvasObject

	mu     sync.Mutex
	active map[int]bool
}

var _ status.Notifier = (*ControlBar)(nil)

// NewControlBar builds the bar. Macros are executed in the given game mode.
func NewControlBar(a App, mode string) *ControlBar {
	b := &ControlBar{
		buttons: make(map[string]*widget.Button),
		dots:    make(map[int]*canvas.Rectangle),
		active:  make(map[int]bool),
	}
	row := container.NewHBox()
	for _, mb := range Buttons {
		btn := widget.NewButton(i18n.T(mb.Label), func() {
			a.EnqueueCommand(control.Command{Type: control.CmdExecute, Macro: mb.ID, Mode: mode})
		})
		b.buttons[mb.ID] = btn
		if mb.Status == 0 {
			row.Add(btn)
			continue
		}
		dot := canvas.NewRectangle(color.Transparent)
		dot.CornerRadius = 4
		dot.SetMinSize(fyne.NewSize(8, 8))
		b.dots[mb.Status] = dot
		row.Add(container.NewHBox(container.NewCenter(dot), btn))
	}

	helpButton := NewTappableContainer(widget.NewIcon(theme.QuestionIcon()), func() {
		a.ShowInfoDialog(i18n.T("Help"), "assets/macros_help.txt", fyne.NewSize(500, 400))
	}, nil)

	b.box = container.New(layout.NewBorderLayout(nil, nil, helpButton, nil),
		helpButton,
		container.NewHScroll(row),
	)
	return b
}

// GetCanvasObject returns the bar widget.
func (b *ControlBar) GetCanvasObject() fyne.CanvasObject { return b.box }

// Button returns the widget of a macro id.
func (b *ControlBar) Button(id string) *widget.Button { return b.buttons[id] }

// MacroStatus implements status.Notifier.
func (b *ControlBar) MacroStatus(macro int, active bool) {
	b.mu.Lock()
	b.active[macro] = active
	b.mu.Unlock()

	dot, ok := b.dots[macro]
	if !ok {
		return
	}
	var btn *widget.Button
	for _, mb := range Buttons {
		if mb.Status == macro {
			btn = b.buttons[mb.ID]
		}
	}
	fyne.Do(func() {
		if active {
			dot.FillColor = SyncColor
			btn.Importance = widget.HighImportance
		} else {
			dot.FillColor = color.Transparent
			btn.Importance = widget.MediumImportance
		}
		dot.Refresh()
		btn.Refresh()
	})
}

// Active reports the last status received for a macro.
func (b *ControlBar) Active(macro int) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.active[macro]
}
