// Package panel is the country detail panel: an overview of the selected country and
// its cities, and a news feed. It only displays data handed to it.
package panel

import (
	"time"

	"github.com/gdamore/tcell/v2"

	"sentiment-globe/internal/store"
)

// Width is the panel width in cells.
const Width = 44

type Mode int

const (
	Overview Mode = iota
	Feed
)

func (m Mode) String() string {
	if m == Feed {
		return "news"
	}
	return "overview"
}

type Action int

const (
	None Action = iota
	Redraw
	Closed
)

// Panel is owned by the event loop.
type Panel struct {
	open    bool
	country store.Country
	news    store.NewsByCity
	loading bool
	origin  store.Origin

	mode   Mode
	city   string
	cursor int
	scroll int

	now func() time.Time

	// hit regions from the last render, keyed by row
	cityRows map[int]string
	tabRows  map[int][2]Mode
	closeAt  [2]int
}

func New() *Panel {
	return &Panel{now: time.Now}
}

// SetClock replaces the clock used for the activity graph.
func (p *Panel) SetClock(now func() time.Time) { p.now = now }

// Open shows c and starts waiting for its news. Selecting another country resets the
// city, tab and scroll position.
func (p *Panel) Open(c store.Country) {
	if p.open && p.country.ID == c.ID {
		p.country = c
		return
	}
	*p = Panel{
		open:    true,
		country: c,
		loading: true,
		now:     p.now,
	}
}

func (p *Panel) Close() {
	*p = Panel{now: p.now}
}

func (p *Panel) IsOpen() bool { return p.open }

// Country returns the displayed country.
func (p *Panel) Country() (store.Country, bool) { return p.country, p.open }

// UpdateCountry refreshes the displayed record after a re-fetch. Other ids are ignored.
func (p *Panel) UpdateCountry(c store.Country) {
	if p.open && c.ID == p.country.ID {
		p.country = c
	}
}

// SetNews stores the news for countryID. A response for any other country than the
// one displayed is dropped and SetNews returns false.
func (p *Panel) SetNews(countryID int64, news store.NewsByCity, origin store.Origin) bool {
	if !p.open || countryID != p.country.ID {
		return false
	}
	p.news = news
	p.origin = origin
	p.loading = false
	if p.city != "" {
		if _, ok := news[p.city]; !ok {
			p.city = ""
		}
	}
	if n := len(news); p.cursor >= n {
		p.cursor = max(0, n-1)
	}
	return true
}

// SetLoading marks a re-fetch of the current country's news.
func (p *Panel) SetLoading() {
	if p.open {
		p.loading = true
	}
}

func (p *Panel) Loading() bool { return p.loading }

func (p *Panel) News() store.NewsByCity { return p.news }

func (p *Panel) Mode() Mode { return p.mode }

func (p *Panel) SetMode(m Mode) {
	if p.mode != m {
		p.mode = m
		p.scroll = 0
	}
}

// City returns the selected city, if any.
func (p *Panel) City() (string, bool) { return p.city, p.city != "" }

// ToggleCity selects name, or clears the selection when name is already selected.
func (p *Panel) ToggleCity(name string) {
	if p.city == name {
		p.city = ""
	} else {
		p.city = name
	}
	p.scroll = 0
}

// Items returns what the news feed shows: the selected city's items, or every item,
// most recent first.
func (p *Panel) Items() []store.NewsItem {
	if p.city != "" {
		items := append([]store.NewsItem(nil), p.news[p.city]...)
		store.SortRecentFirst(items)
		return items
	}
	return p.news.All()
}

// HandleKey implements the panel bindings.
func (p *Panel) HandleKey(ev *tcell.EventKey) Action {
	if !p.open {
		return None
	}
	switch ev.Key() {
	case tcell.KeyEscape:
		p.Close()
		return Closed
	case tcell.KeyEnter:
		cities := Cities(p.news)
		if p.cursor < len(cities) {
			p.ToggleCity(cities[p.cursor].Name)
			return Redraw
		}
		return None
	case tcell.KeyBackspace, tcell.KeyBackspace2:
		if p.city == "" {
			return None
		}
		p.city = ""
		return Redraw
	case tcell.KeyDown:
		return p.move(1)
	case tcell.KeyUp:
		return p.move(-1)
	case tcell.KeyPgDn:
		p.scroll += 10
		return Redraw
	case tcell.KeyPgUp:
		p.scroll = max(0, p.scroll-10)
		return Redraw
	case tcell.KeyRune:
		switch ev.Rune() {
		case 'x':
			p.Close()
			return Closed
		case 'o':
			p.SetMode(Overview)
		case 'n':
			p.SetMode(Feed)
		case 'j':
			return p.move(1)
		case 'k':
			return p.move(-1)
		default:
			return None
		}
		return Redraw
	}
	return None
}

// move steps the city cursor in the overview and scrolls the feed.
func (p *Panel) move(d int) Action {
	if p.mode == Feed {
		p.scroll = max(0, p.scroll+d)
		return Redraw
	}
	n := len(p.news)
	if n == 0 {
		return None
	}
	next := min(n-1, max(0, p.cursor+d))
	if next == p.cursor {
		return None
	}
	p.cursor = next
	return Redraw
}

func (p *Panel) Cursor() int { return p.cursor }

// HandleClick handles a click at panel coordinates (x, y) against the last render.
func (p *Panel) HandleClick(x, y int) Action {
	if !p.open {
		return None
	}
	if y == p.closeAt[1] && x >= p.closeAt[0]-1 && x <= p.closeAt[0]+1 {
		p.Close()
		return Closed
	}
	if tabs, ok := p.tabRows[y]; ok {
		if x < Width/2 {
			p.SetMode(tabs[0])
		} else {
			p.SetMode(tabs[1])
		}
		return Redraw
	}
	if name, ok := p.cityRows[y]; ok {
		for i, c := range Cities(p.news) {
			if c.Name == name {
				p.cursor = i
			}
		}
		p.ToggleCity(name)
		return Redraw
	}
	return None
}
