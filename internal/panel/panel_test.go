package panel

import (
	"strings"
	"testing"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/google/go-cmp/cmp"

	"sentiment-globe/internal/canvas"
	"sentiment-globe/internal/sentiment"
	"sentiment-globe/internal/store"
	"sentiment-globe/internal/theme"
)

var (
	now   = time.Date(2025, 10, 2, 12, 30, 0, 0, time.UTC)
	chile = store.Country{ID: 6, Name: "Chile", Lat: -35.6751, Lon: -71.543, NewsCount: 8, Sentiment: sentiment.VeryNegative}
	japan = store.Country{ID: 45, Name: "Japan", Lat: 36.2048, Lon: 138.2529, NewsCount: 36, Sentiment: sentiment.Positive}
)

func chileNews() store.NewsByCity {
	return store.NewsByCity{
		"Santiago": {
			{ID: 1, CountryID: 6, City: "Santiago", Title: "Older story", Category: "Politics", Severity: store.SeverityHigh, Timestamp: now.Add(-2 * time.Hour)},
			{ID: 2, CountryID: 6, City: "Santiago", Title: "Newer story", Category: "Finance", Severity: store.SeverityLow, Timestamp: now.Add(-10 * time.Minute)},
		},
		"Valparaiso": {
			{ID: 3, CountryID: 6, City: "Valparaiso", Title: "Port news", Category: "General", Severity: store.SeverityMedium, Timestamp: now.Add(-time.Hour)},
		},
	}
}

func newPanel() *Panel {
	p := New()
	p.SetClock(func() time.Time { return now })
	return p
}

func render(p *Panel) *canvas.Canvas {
	c := canvas.New(Width, 70)
	p.Render(c, theme.PaletteFor(theme.Dark))
	return c
}

func rowOf(t *testing.T, c *canvas.Canvas, s string) int {
	t.Helper()
	for y, row := range c.Runes() {
		if strings.Contains(string(row), s) {
			return y
		}
	}
	t.Fatalf("%q not rendered:\n%s", s, c)
	return -1
}

func TestActivityLevels(t *testing.T) {
	cases := map[int]Activity{0: Low, 10: Low, 11: Medium, 15: Medium, 16: High, 100: High}
	for n, want := range cases {
		if got := ActivityFor(n); got != want {
			t.Errorf("ActivityFor(%d) = %v, want %v", n, got, want)
		}
	}
	if High.Hex() != "#ff4444" || Medium.Hex() != "#ffaa00" || Low.Hex() != "#44ff44" {
		t.Error("activity colors")
	}
}

func TestActivityPercent(t *testing.T) {
	for n, want := range map[int]float64{0: 0, 8: 12, 50: 75, 67: 100, 500: 100} {
		if got := ActivityPercent(n); got != want {
			t.Errorf("ActivityPercent(%d) = %v", n, got)
		}
	}
}

func TestHourlyCountsAndGraph(t *testing.T) {
	items := chileNews().All()
	items = append(items, store.NewsItem{ID: 9, Timestamp: now.Add(-30 * time.Hour)}, store.NewsItem{ID: 10})
	counts := HourlyCounts(items, now)

	var want [24]int
	want[23] = 1 // 12:20
	want[22] = 1 // 11:30
	want[21] = 1 // 10:30
	if diff := cmp.Diff(want, counts); diff != "" {
		t.Errorf("counts (-want +got):\n%s", diff)
	}

	graph := BarGraph(counts)
	if len(graph) != 3 || !strings.HasPrefix(graph[0], "1 ") || !strings.HasPrefix(graph[2], "0 ") {
		t.Fatalf("graph = %q", graph)
	}
	if !strings.HasSuffix(graph[0], "###") || len(graph[0]) != 2+24 {
		t.Errorf("top row = %q", graph[0])
	}
	if BarGraph([24]int{}) != nil {
		t.Error("empty graph drawn")
	}
}

func TestStaleNewsIsDropped(t *testing.T) {
	p := newPanel()
	p.Open(chile)
	p.Open(japan)

	if p.SetNews(chile.ID, chileNews(), store.Live) {
		t.Fatal("late response for previous country accepted")
	}
	if !p.Loading() {
		t.Error("loading cleared by stale response")
	}
	c := render(p)
	if c.Contains("Santiago") || !c.Contains("Japan") {
		t.Errorf("panel shows stale data:\n%s", c)
	}

	tokyo := store.NewsByCity{"Tokyo": {{ID: 7, CountryID: 45, City: "Tokyo", Title: "Tokyo story", Timestamp: now}}}
	if !p.SetNews(japan.ID, tokyo, store.Live) {
		t.Fatal("current response rejected")
	}
	c = render(p)
	if !c.Contains("Tokyo") || c.Contains("Loading news...") {
		t.Errorf("news not shown:\n%s", c)
	}
}

func TestOverview(t *testing.T) {
	p := newPanel()
	p.Open(chile)
	c := render(p)
	for _, s := range []string{"Chile", "Very Negative Sentiment", "Sentiment: very-negative", "Loading news...", "-35.6751°", " 12%", "High Activity (15+)"} {
		if !c.Contains(s) {
			t.Errorf("missing %q:\n%s", s, c)
		}
	}

	p.SetNews(chile.ID, chileNews(), store.Fallback)
	c = render(p)
	if rowOf(t, c, "Santiago") > rowOf(t, c, "Valparaiso") {
		t.Error("busiest city not first")
	}
	if !c.Contains("2 articles") || !c.Contains("1 article") || !c.Contains("Offline sample news") {
		t.Errorf("city summary:\n%s", c)
	}
	if c.Contains("No articles in the last 24 hours") {
		t.Error("graph missing")
	}
}

func TestFeedMostRecentFirst(t *testing.T) {
	p := newPanel()
	p.Open(chile)
	p.SetNews(chile.ID, chileNews(), store.Live)

	if p.HandleKey(tcell.NewEventKey(tcell.KeyRune, 'n', tcell.ModNone)) != Redraw || p.Mode() != Feed {
		t.Fatal("n did not open the feed")
	}
	c := render(p)
	if !(rowOf(t, c, "Newer story") < rowOf(t, c, "Port news") && rowOf(t, c, "Port news") < rowOf(t, c, "Older story")) {
		t.Errorf("feed order:\n%s", c)
	}
	if !c.Contains("All Country News") || !c.Contains("HIGH") {
		t.Errorf("feed:\n%s", c)
	}

	p.ToggleCity("Valparaiso")
	c = render(p)
	if c.Contains("Newer story") || !c.Contains("Valparaiso News") {
		t.Errorf("city feed:\n%s", c)
	}
	p.HandleKey(tcell.NewEventKey(tcell.KeyBackspace2, 0, tcell.ModNone))
	if _, ok := p.City(); ok {
		t.Error("backspace kept the city")
	}
}

func TestCityCursorAndToggle(t *testing.T) {
	p := newPanel()
	p.Open(chile)
	p.SetNews(chile.ID, chileNews(), store.Live)

	if p.HandleKey(tcell.NewEventKey(tcell.KeyRune, 'k', tcell.ModNone)) != None {
		t.Error("cursor moved above first city")
	}
	p.HandleKey(tcell.NewEventKey(tcell.KeyRune, 'j', tcell.ModNone))
	p.HandleKey(tcell.NewEventKey(tcell.KeyEnter, 0, tcell.ModNone))
	if city, _ := p.City(); city != "Valparaiso" {
		t.Fatalf("city = %q", city)
	}
	p.HandleKey(tcell.NewEventKey(tcell.KeyEnter, 0, tcell.ModNone))
	if _, ok := p.City(); ok {
		t.Error("second enter did not deselect")
	}
}

func TestMouse(t *testing.T) {
	p := newPanel()
	p.Open(chile)
	p.SetNews(chile.ID, chileNews(), store.Live)
	c := render(p)

	if p.HandleClick(5, rowOf(t, c, "Santiago")) != Redraw {
		t.Fatal("city click ignored")
	}
	if city, _ := p.City(); city != "Santiago" {
		t.Errorf("city = %q", city)
	}
	if p.HandleClick(Width-5, 2) != Redraw || p.Mode() != Feed {
		t.Error("tab click ignored")
	}
	render(p)
	if p.HandleClick(Width-2, 0) != Closed || p.IsOpen() {
		t.Error("close click ignored")
	}
}

func TestCloseResetsSelection(t *testing.T) {
	p := newPanel()
	p.Open(chile)
	p.SetNews(chile.ID, chileNews(), store.Live)
	p.ToggleCity("Santiago")
	p.SetMode(Feed)

	if p.HandleKey(tcell.NewEventKey(tcell.KeyEscape, 0, tcell.ModNone)) != Closed {
		t.Fatal("esc did not close")
	}
	p.Open(chile)
	if _, ok := p.City(); ok || p.Mode() != Overview || p.News() != nil {
		t.Error("state survived close")
	}
	if p.HandleKey(tcell.NewEventKey(tcell.KeyRune, 'x', tcell.ModNone)) != Closed {
		t.Error("x did not close")
	}
	if p.HandleKey(tcell.NewEventKey(tcell.KeyRune, 'n', tcell.ModNone)) != None {
		t.Error("closed panel handled a key")
	}
}
