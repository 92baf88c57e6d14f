package panel

import (
	"fmt"
	"math"
	"strings"

	"github.com/gdamore/tcell/v2"
	"github.com/mattn/go-runewidth"
	"github.com/muesli/reflow/wordwrap"

	"sentiment-globe/internal/canvas"
	"sentiment-globe/internal/sentiment"
	"sentiment-globe/internal/store"
	"sentiment-globe/internal/theme"
)

const headerRows = 4

type seg struct {
	text  string
	style tcell.Style
}

type line struct {
	segs []seg
	// right is drawn flush with the right edge
	right seg
	city  string
}

type styles struct {
	base, muted, heading, accent tcell.Style
	pal                          *theme.Palette
}

func newStyles(pal *theme.Palette) styles {
	base := tcell.StyleDefault.Background(pal.PanelBg).Foreground(pal.Text)
	return styles{
		base:    base,
		muted:   base.Foreground(pal.Muted),
		heading: base.Foreground(pal.Accent).Bold(true),
		accent:  base.Foreground(pal.Accent),
		pal:     pal,
	}
}

func (s styles) color(hex string) tcell.Style {
	c, ok := sentiment.ParseHex(hex)
	if !ok {
		return s.base
	}
	return s.base.Foreground(sentiment.ToTCell(c))
}

func text(s string, style tcell.Style) line { return line{segs: []seg{{s, style}}} }

func blank() line { return line{} }

func wrapped(s string, width int, style tcell.Style) []line {
	var out []line
	for _, l := range strings.Split(wordwrap.String(s, width), "\n") {
		out = append(out, text(runewidth.Truncate(l, width, "…"), style))
	}
	return out
}

var severityColors = map[store.Severity][2]string{
	store.SeverityHigh:   {"#f87171", "#7f1d1d"},
	store.SeverityMedium: {"#facc15", "#713f12"},
	store.SeverityLow:    {"#4ade80", "#14532d"},
}

func (s styles) badge(sev store.Severity) seg {
	colors, ok := severityColors[sev]
	if !ok {
		colors = [2]string{"#9ca3af", "#111827"}
	}
	fg, _ := sentiment.ParseHex(colors[0])
	bg, _ := sentiment.ParseHex(colors[1])
	label := strings.ToUpper(string(sev))
	if label == "" {
		label = "N/A"
	}
	return seg{" " + label + " ", tcell.StyleDefault.Foreground(sentiment.ToTCell(fg)).Background(sentiment.ToTCell(bg)).Bold(true)}
}

// Render draws the panel into c, which should be Width cells wide.
func (p *Panel) Render(c *canvas.Canvas, pal *theme.Palette) {
	st := newStyles(pal)
	c.Fill(st.base)
	p.cityRows = make(map[int]string)
	p.tabRows = make(map[int][2]Mode)
	if !p.open {
		return
	}
	inner := c.Width - 2

	// header
	c.Text(1, 0, runewidth.Truncate(p.country.Name, inner-2, "…"), st.heading)
	p.closeAt = [2]int{c.Width - 2, 0}
	c.Set(p.closeAt[0], 0, '×', st.muted)
	c.Text(1, 1, fmt.Sprintf("@ %.2f°, %.2f°", p.country.Lat, p.country.Lon), st.muted)

	half := c.Width / 2
	tab := func(x, w int, label string, m Mode) {
		style := st.muted
		if p.mode == m {
			style = tcell.StyleDefault.Background(pal.Accent).Foreground(pal.PanelBg).Bold(true)
		}
		c.FillRect(x, 2, w, 1, style)
		c.Text(x+(w-len(label))/2, 2, label, style)
	}
	tab(0, half, "Overview", Overview)
	tab(half, c.Width-half, "News Feed", Feed)
	p.tabRows[2] = [2]Mode{Overview, Feed}
	for x := 0; x < c.Width; x++ {
		c.Set(x, 3, '─', st.base.Foreground(pal.Separator))
	}

	var lines []line
	if p.mode == Feed {
		lines = p.feedLines(st, inner)
	} else {
		lines = p.overviewLines(st, inner)
	}

	body := c.Height - headerRows - 1
	if p.scroll > len(lines)-1 {
		p.scroll = max(0, len(lines)-1)
	}
	for i := p.scroll; i < len(lines) && i-p.scroll < body; i++ {
		y := headerRows + i - p.scroll
		l := lines[i]
		x := 1
		for _, s := range l.segs {
			x = c.Text(x, y, s.text, s.style)
		}
		if l.right.text != "" {
			c.Text(c.Width-1-runewidth.StringWidth(l.right.text), y, l.right.text, l.right.style)
		}
		if l.city != "" {
			p.cityRows[y] = l.city
		}
	}

	footer := "Real-time global news monitoring"
	if p.origin == store.Fallback {
		footer = "Offline sample news"
	}
	c.Text((c.Width-len(footer))/2, c.Height-1, footer, st.muted)
}

func (p *Panel) overviewLines(st styles, width int) []line {
	ctry := p.country
	band := ctry.Sentiment
	if !band.Valid() {
		band = sentiment.BandFor(ctry.NewsCount)
	}

	lines := []line{
		text("News Activity Overview", st.heading),
		{segs: []seg{{"News Count", st.muted}}, right: seg{fmt.Sprintf("%d", ctry.NewsCount), st.base.Bold(true)}},
		{segs: []seg{{"● ", st.color(band.Hex())}, {band.Title(), st.base}}},
		p.bar(st, width, band),
		blank(),
		text("Sentiment: "+band.Label(), st.base.Bold(true)),
	}
	lines = append(lines, wrapped(fmt.Sprintf("This country has %d news articles currently being monitored.", ctry.NewsCount), width, st.muted)...)
	lines = append(lines,
		blank(),
		text("Geographic Data", st.base.Bold(true)),
		line{segs: []seg{{"Latitude:", st.muted}}, right: seg{fmt.Sprintf("%.4f°", ctry.Lat), st.base}},
		line{segs: []seg{{"Longitude:", st.muted}}, right: seg{fmt.Sprintf("%.4f°", ctry.Lon), st.base}},
		blank(),
		text("Cities & Activity", st.heading),
	)

	cities := Cities(p.news)
	switch {
	case p.loading:
		lines = append(lines, text("Loading news...", st.muted))
	case len(cities) == 0:
		lines = append(lines, text("No news available for this country", st.muted))
	}
	for i, city := range cities {
		style := st.base
		marker := "  "
		if i == p.cursor {
			marker = "> "
		}
		if city.Name == p.city {
			style = st.base.Background(st.pal.Accent).Foreground(st.pal.PanelBg).Bold(true)
		}
		articles := "articles"
		if city.Articles == 1 {
			articles = "article"
		}
		lines = append(lines, line{
			segs: []seg{
				{marker, st.accent},
				{"● ", st.color(city.Activity.Hex())},
				{runewidth.Truncate(city.Name, width-18, "…"), style},
			},
			right: seg{fmt.Sprintf("%d %s", city.Articles, articles), st.muted},
			city:  city.Name,
		})
	}

	lines = append(lines, blank(), text("Last 24 hours", st.heading))
	if graph := BarGraph(HourlyCounts(p.news.All(), p.now())); graph != nil {
		for _, g := range graph {
			lines = append(lines, text(g, st.accent))
		}
	} else {
		lines = append(lines, text("No articles in the last 24 hours", st.muted))
	}

	lines = append(lines, blank(), text("Activity Legend", st.heading))
	for _, a := range []Activity{High, Medium, Low} {
		lines = append(lines, line{segs: []seg{{"● ", st.color(a.Hex())}, {a.Legend(), st.base}}})
	}
	return lines
}

func (p *Panel) bar(st styles, width int, band sentiment.Band) line {
	pct := ActivityPercent(p.country.NewsCount)
	label := fmt.Sprintf(" %3.0f%%", pct)
	barWidth := width - len(label)
	filled := int(math.Round(pct / 100 * float64(barWidth)))
	return line{segs: []seg{
		{strings.Repeat("█", filled), st.color(band.Hex())},
		{strings.Repeat("░", barWidth-filled), st.base.Foreground(st.pal.Separator)},
		{label, st.muted},
	}}
}

func (p *Panel) feedLines(st styles, width int) []line {
	var lines []line
	empty := "No news available for this country"
	if p.city != "" {
		lines = append(lines,
			text(p.city+" News", st.heading),
			text("Backspace: back to all news", st.muted),
		)
		empty = "No news available for " + p.city
	} else {
		lines = append(lines, text("All Country News", st.heading))
	}
	lines = append(lines, blank())

	if p.loading {
		return append(lines, text("Loading news...", st.muted))
	}
	items := p.Items()
	if len(items) == 0 {
		return append(lines, text(empty, st.muted))
	}
	for _, it := range items {
		when := ""
		if !it.Timestamp.IsZero() {
			when = it.Timestamp.Local().Format("Jan 2 15:04")
		}
		lines = append(lines, line{
			segs:  []seg{st.badge(it.Severity), {" " + it.Category, st.accent}},
			right: seg{when, st.muted},
		})
		lines = append(lines, wrapped(it.Title, width, st.base.Bold(true))...)
		if it.Summary != "" {
			lines = append(lines, wrapped(it.Summary, width, st.muted)...)
		}
		if p.city == "" && it.City != "" {
			lines = append(lines, text(it.City, st.accent))
		}
		lines = append(lines, blank())
	}
	return lines
}
