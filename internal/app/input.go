package app

import (
	"github.com/gdamore/tcell/v2"

	"sentiment-globe/internal/globe"
	"sentiment-globe/internal/panel"
	"sentiment-globe/internal/theme"
	"sentiment-globe/internal/worldmap"
)

type rect struct{ x, y, w, h int }

func (r rect) contains(x, y int) bool {
	return x >= r.x && x < r.x+r.w && y >= r.y && y < r.y+r.h
}

// minViewWidth is the narrowest view kept beside the panel; below it the panel
// covers the view.
const minViewWidth = 20

// layout splits the screen below the navigation bar and above the status line.
func (a *App) layout() (view, side rect, sideShown bool) {
	body := rect{0, 1, a.width, max(0, a.height-2)}
	if !a.panel.IsOpen() {
		return body, rect{}, false
	}
	if a.width < panel.Width+minViewWidth {
		return rect{}, body, true
	}
	view = body
	view.w = a.width - panel.Width
	side = rect{view.w, body.y, panel.Width, body.h}
	return view, side, true
}

func (a *App) handleKey(ev *tcell.EventKey) {
	a.notice = ""
	if ev.Key() == tcell.KeyCtrlC {
		a.quit = true
		return
	}
	if a.help {
		a.help = false
		a.dirty = true
		return
	}
	if a.panel.IsOpen() {
		if act := a.panel.HandleKey(ev); act != panel.None {
			a.panelAction(act)
			return
		}
	}
	if a.viewKey(ev) {
		a.dirty = true
		return
	}

	switch ev.Key() {
	case tcell.KeyEscape:
		a.quit = true
	case tcell.KeyTab:
		a.Navigate(string(a.route.Next()))
	case tcell.KeyRune:
		switch ev.Rune() {
		case 'q', 'Q':
			a.quit = true
		case '?':
			a.help = true
		case 't', 'T':
			a.ToggleTheme()
		case 'r', 'R':
			a.Refresh()
		case '1':
			a.Navigate(string(RouteMap))
		case '2':
			a.Navigate(string(RouteGlobe))
		}
	}
	a.dirty = true
}

// viewKey passes ev to the mounted view and reports whether it was consumed.
func (a *App) viewKey(ev *tcell.EventKey) bool {
	switch {
	case a.m == nil:
		return false
	case a.m.globe != nil:
		return a.m.globe.HandleKey(ev) != globe.None
	case a.m.worldmap != nil:
		return a.m.worldmap.HandleKey(ev) != worldmap.None
	}
	return false
}

// ToggleTheme flips the stored theme. The globe route keeps its fixed theme.
func (a *App) ToggleTheme() theme.Mode {
	if forced, ok := a.theme.Forced(); ok {
		a.notice = "theme is fixed to " + string(forced) + " on " + a.route.Title()
		return forced
	}
	mode := a.theme.Toggle()
	a.log.WithField("theme", mode).Info("theme toggled")
	return mode
}

func (a *App) panelAction(act panel.Action) {
	switch act {
	case panel.Closed:
		if a.m != nil && a.m.globe != nil {
			a.m.globe.ClearSelection()
		}
		a.dirty = true
	case panel.Redraw:
		a.dirty = true
	}
}

func (a *App) handleMouse(ev *tcell.EventMouse) {
	if a.help || a.m == nil {
		return
	}
	x, y := ev.Position()
	buttons := ev.Buttons()
	pressed := buttons&tcell.Button1 != 0 && a.buttons&tcell.Button1 == 0
	a.buttons = buttons

	view, side, shown := a.layout()
	switch {
	case shown && side.contains(x, y):
		a.leaveView()
		if pressed {
			a.panelAction(a.panel.HandleClick(x-side.x, y-side.y))
		}
	case view.contains(x, y):
		a.viewMouse(x-view.x, y-view.y, buttons)
	default:
		a.leaveView()
		if pressed && y == 0 {
			if r, ok := a.navAt(x); ok {
				a.Navigate(string(r))
			}
		}
	}
}

func (a *App) viewMouse(x, y int, buttons tcell.ButtonMask) {
	m := a.m
	switch {
	case m.globe != nil:
		switch m.globe.HandleMouse(x, y, buttons) {
		case globe.SelectionChanged:
			a.syncSelection()
			a.dirty = true
		case globe.Redraw:
			a.dirty = true
		}
	case m.worldmap != nil:
		if m.worldmap.HandleMouse(x, y, buttons) != worldmap.None {
			a.dirty = true
		}
	}
}

// leaveView tells the view the pointer is elsewhere, which resets hover and drags.
func (a *App) leaveView() {
	m := a.m
	changed := false
	switch {
	case m.globe != nil:
		changed = m.globe.PointerLeave()
	case m.worldmap != nil:
		changed = m.worldmap.PointerLeave()
	}
	if changed {
		a.dirty = true
	}
}

// Cursor is the pointer shape the mounted view asks for.
func (a *App) Cursor() string {
	switch {
	case a.m == nil:
		return string(globe.CursorDefault)
	case a.m.globe != nil:
		return string(a.m.globe.Cursor())
	case a.m.worldmap != nil:
		return string(a.m.worldmap.Cursor())
	}
	return string(globe.CursorDefault)
}
