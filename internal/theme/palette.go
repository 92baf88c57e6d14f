package theme

import "github.com/gdamore/tcell/v2"

// Palette holds the UI colors for one mode.
type Palette struct {
	Mode        Mode
	Background  tcell.Color
	Text        tcell.Color
	Muted       tcell.Color
	Accent      tcell.Color
	Separator   tcell.Color
	PanelBg     tcell.Color
	StatusOk    tcell.Color
	StatusError tcell.Color
	// Border is the country outline color on the 2D map.
	Border string
	// Water fills map cells that have no tile yet.
	Water tcell.Color
}

var palettes = map[Mode]*Palette{
	Light: {
		Mode:        Light,
		Background:  tcell.NewRGBColor(248, 250, 252),
		Text:        tcell.NewRGBColor(17, 24, 39),
		Muted:       tcell.NewRGBColor(107, 114, 128),
		Accent:      tcell.NewRGBColor(37, 99, 235),
		Separator:   tcell.NewRGBColor(209, 213, 219),
		PanelBg:     tcell.NewRGBColor(255, 255, 255),
		StatusOk:    tcell.NewRGBColor(22, 163, 74),
		StatusError: tcell.NewRGBColor(220, 38, 38),
		Border:      "#ffffff",
		Water:       tcell.NewRGBColor(212, 218, 220),
	},
	Dark: {
		Mode:        Dark,
		Background:  tcell.NewRGBColor(17, 24, 39),
		Text:        tcell.NewRGBColor(243, 244, 246),
		Muted:       tcell.NewRGBColor(156, 163, 175),
		Accent:      tcell.NewRGBColor(96, 165, 250),
		Separator:   tcell.NewRGBColor(55, 65, 81),
		PanelBg:     tcell.NewRGBColor(31, 41, 55),
		StatusOk:    tcell.NewRGBColor(74, 222, 128),
		StatusError: tcell.NewRGBColor(248, 113, 113),
		Border:      "#374151",
		Water:       tcell.NewRGBColor(38, 38, 38),
	},
}

// PaletteFor returns the palette of m, or the light palette for unknown modes.
func PaletteFor(m Mode) *Palette {
	if p, ok := palettes[m]; ok {
		return p
	}
	return palettes[Light]
}

// BorderColor is the polygon border for m.
func BorderColor(m Mode) string { return PaletteFor(m).Border }

func (p *Palette) Style() tcell.Style {
	return tcell.StyleDefault.Background(p.Background).Foreground(p.Text)
}

func (p *Palette) MutedStyle() tcell.Style {
	return tcell.StyleDefault.Background(p.Background).Foreground(p.Muted)
}
