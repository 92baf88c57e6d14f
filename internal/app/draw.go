package app

import (
	"fmt"
	"strings"

	"github.com/gdamore/tcell/v2"
	"github.com/mattn/go-runewidth"

	"sentiment-globe/internal/canvas"
	"sentiment-globe/internal/sentiment"
	"sentiment-globe/internal/store"
	"sentiment-globe/internal/theme"
)

const title = "Sentiment Globe"

type navHit struct {
	from, to int
	route    Route
}

var helpText = []string{
	"╔═══════════════════════════════════════╗",
	"║           KEYBOARD CONTROLS           ║",
	"╠═══════════════════════════════════════╣",
	"║ 1 / 2 / Tab - 2D map / 3D globe       ║",
	"║ Arrows      - Pan or rotate           ║",
	"║ +/- / wheel - Zoom in/out             ║",
	"║ Drag        - Pan or rotate           ║",
	"║ Click       - Country details         ║",
	"║ T           - Toggle light/dark map   ║",
	"║ R           - Refresh data            ║",
	"║ O / N       - Panel overview / news   ║",
	"║ J / K       - Panel city cursor       ║",
	"║ Enter       - Select city             ║",
	"║ X           - Close panel             ║",
	"║ ?           - Toggle this help panel  ║",
	"║ Q / Esc     - Exit                    ║",
	"╚═══════════════════════════════════════╝",
}

// draw composes a frame, shows it and records it.
func (a *App) draw() {
	pal := a.theme.Palette()
	c := canvas.New(a.width, a.height)
	c.Fill(pal.Style())

	view, side, shown := a.layout()
	a.drawNav(c, pal)
	if a.m != nil && view.w > 0 && view.h > 0 {
		vc := canvas.New(view.w, view.h)
		switch {
		case a.m.globe != nil:
			a.m.globe.Render(vc, pal)
		case a.m.worldmap != nil:
			a.m.worldmap.Render(vc, pal)
		}
		drawLegend(vc, pal)
		c.Blit(vc, view.x, view.y)
	}
	if shown && side.w > 0 && side.h > 0 {
		pc := canvas.New(side.w, side.h)
		a.panel.Render(pc, pal)
		c.Blit(pc, side.x, side.y)
	}
	a.drawStatus(c, pal)
	if a.help {
		drawHelp(c, pal)
	}

	a.screen.Clear()
	c.Draw(a.screen, 0, 0)
	a.screen.Show()
	a.frame = c
	a.dirty = false

	if err := a.rec.Frame(c.Runes()); err != nil && !a.recordFailed {
		a.recordFailed = true
		a.log.WithError(err).Warn("recording stopped")
	}
}

// drawNav draws the title and one link per route.
func (a *App) drawNav(c *canvas.Canvas, pal *theme.Palette) {
	base := tcell.StyleDefault.Background(pal.PanelBg).Foreground(pal.Text)
	c.FillRect(0, 0, c.Width, 1, base)
	x := c.Text(1, 0, title, base.Bold(true))
	x += 2

	a.navHits = a.navHits[:0]
	for i, r := range Routes {
		label := fmt.Sprintf(" %d %s ", i+1, r.Title())
		style := base.Foreground(pal.Muted)
		if r == a.route {
			style = tcell.StyleDefault.Background(pal.Accent).Foreground(pal.PanelBg).Bold(true)
		}
		end := c.Text(x, 0, label, style)
		a.navHits = append(a.navHits, navHit{from: x, to: end, route: r})
		x = end + 1
	}

	mode := a.theme.Current()
	right := "theme: " + string(mode)
	if _, forced := a.theme.Forced(); forced {
		right += " (fixed)"
	}
	c.Text(c.Width-1-runewidth.StringWidth(right), 0, right, base.Foreground(pal.Muted))
}

func (a *App) navAt(x int) (Route, bool) {
	for _, h := range a.navHits {
		if x >= h.from && x < h.to {
			return h.route, true
		}
	}
	return "", false
}

// StatusLine is the text of the bottom line.
func (a *App) StatusLine() string {
	var parts []string
	if a.Origin() == store.Fallback {
		parts = append(parts, "⚠ using offline/fallback data")
	} else {
		parts = append(parts, "● live")
	}
	if a.m != nil && a.m.sampleBoundaries {
		parts = append(parts, "sample boundaries")
	}
	if loading := a.Loading(); len(loading) > 0 {
		parts = append(parts, "loading "+strings.Join(loading, ", ")+"...")
	}
	if name, ok := a.hovered(); ok {
		parts = append(parts, "▸ "+name)
	}
	if a.notice != "" {
		parts = append(parts, a.notice)
	}
	parts = append(parts, string(a.route), "?:help q:quit")
	return strings.Join(parts, " │ ")
}

func (a *App) hovered() (string, bool) {
	switch {
	case a.m == nil:
		return "", false
	case a.m.globe != nil:
		c, ok := a.m.globe.Hovered()
		return c.Name, ok
	case a.m.worldmap != nil:
		return a.m.worldmap.Hovered()
	}
	return "", false
}

func (a *App) drawStatus(c *canvas.Canvas, pal *theme.Palette) {
	y := c.Height - 1
	if y < 1 {
		return
	}
	style := tcell.StyleDefault.Background(pal.PanelBg).Foreground(pal.Muted)
	if a.Origin() == store.Fallback {
		style = style.Foreground(pal.StatusError)
	}
	c.FillRect(0, y, c.Width, 1, style)
	c.Text(1, y, runewidth.Truncate(a.StatusLine(), c.Width-2, "…"), style)
}

// drawLegend draws the sentiment bands in the bottom-left corner of the view.
func drawLegend(c *canvas.Canvas, pal *theme.Palette) {
	entries := sentiment.Legend()
	const w = 36
	h := len(entries) + 3
	if c.Width < w+2 || c.Height < h+2 {
		return
	}
	x, y := 1, c.Height-h-1
	base := tcell.StyleDefault.Background(pal.PanelBg).Foreground(pal.Text)
	c.FillRect(x, y, w, h, base)
	c.Box(x, y, w, h, base.Foreground(pal.Separator))
	c.Text(x+2, y+1, "News Sentiment", base.Bold(true))
	for i, e := range entries {
		row := y + 2 + i
		color, _ := sentiment.ParseHex(e.Color)
		c.Text(x+2, row, "■", base.Foreground(sentiment.ToTCell(color)))
		c.Text(x+4, row, strings.TrimSuffix(e.Title, " Sentiment"), base)
		c.Text(x+w-2-len(e.Range), row, e.Range, base.Foreground(pal.Muted))
	}
}

func drawHelp(c *canvas.Canvas, pal *theme.Palette) {
	startY := (c.Height - len(helpText)) / 2
	startX := (c.Width - runewidth.StringWidth(helpText[0])) / 2
	style := tcell.StyleDefault.Foreground(pal.Accent).Background(pal.Background)
	for i, line := range helpText {
		c.Text(startX, startY+i, line, style)
	}
}
