package worldmap

import (
	"fmt"

	"github.com/gdamore/tcell/v2"
	"github.com/lucasb-eyer/go-colorful"
	"github.com/mattn/go-runewidth"

	"sentiment-globe/internal/canvas"
	"sentiment-globe/internal/sentiment"
	"sentiment-globe/internal/theme"
)

const LoadingText = "Loading countries..."

func fromTCell(c tcell.Color) colorful.Color {
	r, g, b := c.RGB()
	if r < 0 {
		return colorful.Color{}
	}
	return colorful.Color{R: float64(r) / 255, G: float64(g) / 255, B: float64(b) / 255}
}

func hex(s string) colorful.Color {
	c, _ := sentiment.ParseHex(s)
	return c
}

// outline picks the border glyph for a weight.
func outline(weight float64) rune {
	switch {
	case weight >= 3:
		return '▓'
	case weight >= 2:
		return '▒'
	case weight >= 1:
		return '░'
	}
	return '·'
}

// Render draws the basemap, the country fills and outlines, the hover tooltip and
// the popup into c.
func (v *View) Render(c *canvas.Canvas, pal *theme.Palette) {
	v.vp.Resize(c.Width, c.Height)
	c.Fill(pal.Style())
	if v.disposed || c.Width == 0 || c.Height == 0 {
		return
	}

	tiles := v.tiles[v.mode]
	water := fromTCell(pal.Water)
	owner := make([]*Polygon, c.Width*c.Height)

	for y := 0; y < c.Height; y++ {
		for x := 0; x < c.Width; x++ {
			lat, lon, ok := v.vp.CellToLatLon(x, y)
			if !ok {
				continue
			}
			base := water
			px, py := v.vp.CellToWorld(x, y)
			if col, ok := tiles.Sample(v.vp.Zoom, px, py); ok {
				base = col
			}
			if v.layer != nil {
				if p := v.layer.At(lat, lon); p != nil {
					owner[y*c.Width+x] = p
					base = base.BlendRgb(hex(p.style.Fill), p.style.FillOpacity)
				}
			}
			c.Set(x, y, ' ', tcell.StyleDefault.Background(sentiment.ToTCell(base.Clamped())))
		}
	}

	for y := 0; y < c.Height; y++ {
		for x := 0; x < c.Width; x++ {
			p := owner[y*c.Width+x]
			if p == nil || !edge(owner, c.Width, c.Height, x, y) {
				continue
			}
			_, bg, _ := c.Get(x, y).Style.Decompose()
			fg := fromTCell(bg).BlendRgb(hex(p.style.Border), p.style.Opacity)
			c.Set(x, y, outline(p.style.Weight), tcell.StyleDefault.
				Background(bg).
				Foreground(sentiment.ToTCell(fg.Clamped())))
		}
	}

	if v.layer == nil {
		x := (c.Width - len(LoadingText)) / 2
		c.Text(x, c.Height/2, LoadingText, pal.Style().Bold(true))
		return
	}

	if name, ok := v.Hovered(); ok && v.pointerIn && v.popup == nil {
		v.drawTooltip(c, pal, name)
	}
	if p, ok := v.Popup(); ok {
		drawPopup(c, pal, p)
	}
}

func edge(owner []*Polygon, w, h, x, y int) bool {
	p := owner[y*w+x]
	for _, d := range [][2]int{{-1, 0}, {1, 0}, {0, -1}, {0, 1}} {
		nx, ny := x+d[0], y+d[1]
		if nx < 0 || ny < 0 || nx >= w || ny >= h {
			continue
		}
		if owner[ny*w+nx] != p {
			return true
		}
	}
	return false
}

func (v *View) drawTooltip(c *canvas.Canvas, pal *theme.Palette, name string) {
	label := " " + name + " "
	x, y := v.pointerX+2, v.pointerY-1
	if w := runewidth.StringWidth(label); x+w > c.Width {
		x = c.Width - w
	}
	if y < 0 {
		y = v.pointerY + 1
	}
	c.Text(x, y, label, tcell.StyleDefault.Background(pal.PanelBg).Foreground(pal.Text))
}

func popupLines(p Popup) []string {
	switch {
	case p.Sample:
		return []string{p.Name, "Sample country area"}
	case p.HasEntry:
		return []string{p.Name, fmt.Sprintf("Sentiment Score: %.2f", p.Entry.Score), "●"}
	}
	return []string{p.Name, "No sentiment data available"}
}

func drawPopup(c *canvas.Canvas, pal *theme.Palette, p Popup) {
	lines := popupLines(p)
	width := 0
	for _, l := range lines {
		if w := runewidth.StringWidth(l); w > width {
			width = w
		}
	}
	bw, bh := width+4, len(lines)+2
	x0, y0 := (c.Width-bw)/2, (c.Height-bh)/2

	body := tcell.StyleDefault.Background(pal.PanelBg).Foreground(pal.Text)
	c.FillRect(x0, y0, bw, bh, body)
	c.Box(x0, y0, bw, bh, body.Foreground(pal.Separator))

	for i, l := range lines {
		style := body
		switch {
		case i == 0:
			style = style.Bold(true)
		case l == "●":
			style = style.Foreground(sentiment.ToTCell(hex(p.Entry.Color)))
		case i > 0:
			style = style.Foreground(pal.Muted)
		}
		lx := x0 + (bw-runewidth.StringWidth(l))/2
		c.Text(lx, y0+1+i, l, style)
	}
}
