package ui

import (
	"MultiView/control"
	"MultiView/i18n"
	"MultiView/macro"
	"MultiView/status"
	"fmt"
	"slices"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/widget"
)

// Panels opens the synchronization and macro windows. It implements
// macro.Panels and status.Prompter; both may be called from any goroutine.
type Panels struct {
	a   App
	app fyne.App

	sync   fyne.Window
	macros fyne.Window
}

var (
	_ macro.Panels    = (*Panels)(nil)
	_ status.Prompter = (*Panels)(nil)
)

// NewPanels returns closed panels.
func NewPanels(a App, app fyne.App) *Panels {
	return &Panels{a: a, app: app}
}

// OpenSyncPanel shows the view selection window.
func (p *Panels) OpenSyncPanel() {
	fyne.Do(func() { p.showSync("") })
}

// PromptTargets shows the view selection window with a hint that a
// selection is needed.
func (p *Panels) PromptTargets() {
	fyne.Do(func() { p.showSync(i18n.T("Select at least one view to run the movement macro.")) })
}

// OpenMacroPanel shows the macro list and policy selector.
func (p *Panels) OpenMacroPanel() {
	fyne.Do(p.showMacros)
}

// SyncForm is the selection form of the sync panel.
type SyncForm struct {
	Checks *widget.CheckGroup
	Apply  *widget.Button
	ids    map[string]int
}

// NewSyncForm lists the views with the synchronized ones checked. Apply
// sends the checked ids.
func NewSyncForm(a App, onApplied func()) *SyncForm {
	f := &SyncForm{ids: make(map[string]int)}
	var options []string
	for _, v := range a.Views() {
		label := fmt.Sprintf("#%d %s", v.ID(), i18n.T(string(v.Role())))
		f.ids[label] = v.ID()
		options = append(options, label)
	}
	f.Checks = widget.NewCheckGroup(options, nil)
	synced := a.Synchronized()
	var selected []string
	for _, o := range options {
		if slices.Contains(synced, f.ids[o]) {
			selected = append(selected, o)
		}
	}
	f.Checks.SetSelected(selected)

	f.Apply = widget.NewButton(i18n.T("Apply"), func() {
		a.EnqueueCommand(control.Command{Type: control.CmdSynchronize, Selected: f.Selected()})
		if onApplied != nil {
			onApplied()
		}
	})
	f.Apply.Importance = widget.HighImportance
	return f
}

// Selected returns the checked view ids in list order.
func (f *SyncForm) Selected() []int {
	ids := []int{}
	for _, label := range f.Checks.Options {
		if slices.Contains(f.Checks.Selected, label) {
			ids = append(ids, f.ids[label])
		}
	}
	return ids
}

func (p *Panels) showSync(hint string) {
	if p.sync != nil {
		p.sync.Close()
	}
	w := p.app.NewWindow(i18n.T("Synchronized views"))
	form := NewSyncForm(p.a, w.Close)

	top := container.NewVBox()
	if hint != "" {
		l := widget.NewLabel(hint)
		l.Wrapping = fyne.TextWrapWord
		top.Add(l)
	}
	w.SetContent(container.NewBorder(top,
		container.NewHBox(form.Apply, widget.NewButton(i18n.T("Close"), w.Close)),
		nil, nil,
		container.NewVScroll(form.Checks),
	))
	w.SetOnClosed(func() {
		if p.sync == w {
			p.sync = nil
		}
	})
	w.Resize(fyne.NewSize(320, 360))
	p.sync = w
	w.Show()
}

// NewPolicySelect lets the user pick the movement policy of the next run.
func NewPolicySelect(a App) *widget.Select {
	sel := widget.NewSelect(a.Policies(), nil)
	sel.SetSelected(a.Policy())
	sel.OnChanged = func(name string) {
		a.EnqueueCommand(control.Command{Type: control.CmdSetPolicy, Policy: name})
	}
	return sel
}

func (p *Panels) showMacros() {
	if p.macros != nil {
		p.macros.RequestFocus()
		return
	}
	w := p.app.NewWindow(i18n.T("Macros"))

	list := container.NewVBox()
	for _, mb := range Buttons {
		list.Add(widget.NewLabel(fmt.Sprintf("[%c]  %s", mb.Key, i18n.T(mb.Label))))
	}
	policy := container.NewHBox(widget.NewLabel(i18n.T("Movement policy")), NewPolicySelect(p.a))

	w.SetContent(container.NewBorder(policy,
		widget.NewButton(i18n.T("Close"), w.Close),
		nil, nil,
		container.NewVScroll(list),
	))
	w.SetOnClosed(func() { p.macros = nil })
	w.Resize(fyne.NewSize(320, 420))
	p.macros = w
	w.Show()
}
