package app

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/google/go-cmp/cmp"

	"sentiment-globe/internal/config"
	"sentiment-globe/internal/logger"
	"sentiment-globe/internal/panel"
	"sentiment-globe/internal/record"
	"sentiment-globe/internal/store"
	"sentiment-globe/internal/theme"
)

// fakeBackend serves two countries. The next news call for a gated country is held
// until the test releases it. Headlines carry the call number.
type fakeBackend struct {
	mu        sync.Mutex
	gates     map[int64]chan struct{}
	newsCalls map[int64]int
	streams   map[store.Table]chan store.Change
}

func newFake() *fakeBackend {
	return &fakeBackend{
		gates:     map[int64]chan struct{}{},
		newsCalls: map[int64]int{},
		streams:   map[store.Table]chan store.Change{},
	}
}

func (f *fakeBackend) Name() string { return "fake" }

func (f *fakeBackend) Countries(context.Context) ([]store.Row, error) {
	return []store.Row{
		{"id": 1, "name": "Chile", "lat": -35.6751, "lon": -71.543, "news_count": 8},
		{"id": 2, "name": "Japan", "lat": 36.2048, "lon": 138.2529, "news_count": 36},
	}, nil
}

func (f *fakeBackend) gate(id int64) chan struct{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch := make(chan struct{})
	f.gates[id] = ch
	return ch
}

func (f *fakeBackend) calls(id int64) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.newsCalls[id]
}

func (f *fakeBackend) News(ctx context.Context, id int64) ([]store.Row, error) {
	f.mu.Lock()
	f.newsCalls[id]++
	n := f.newsCalls[id]
	gate := f.gates[id]
	delete(f.gates, id)
	f.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	city := map[int64]string{1: "Santiago", 2: "Tokyo"}[id]
	return []store.Row{{"id": id * 10, "country_id": id, "city": city, "title": fmt.Sprintf("%s headline %d", city, n), "timestamp": "2025-10-02T12:00:00Z"}}, nil
}

func (f *fakeBackend) Sentiment(context.Context) ([]store.Row, error) {
	return []store.Row{{"country_name": "Chile", "sentiment_score": -0.4, "color": "#dc3545"}}, nil
}

func (f *fakeBackend) Watch(ctx context.Context, table store.Table) (<-chan store.Change, error) {
	ch := make(chan store.Change, 4)
	f.mu.Lock()
	f.streams[table] = ch
	f.mu.Unlock()
	return ch, nil
}

func (f *fakeBackend) push(t *testing.T, c store.Change) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		f.mu.Lock()
		ch := f.streams[c.Table]
		f.mu.Unlock()
		if ch != nil {
			ch <- c
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("no watcher for %s", c.Table)
}

func (f *fakeBackend) Close() error { return nil }

type harness struct {
	app     *App
	screen  tcell.SimulationScreen
	backend *fakeBackend
	svc     *store.Service
	theme   *theme.Controller
	prefs   *theme.Prefs
	cancel  context.CancelFunc
}

func newHarness(t *testing.T, route string) *harness {
	t.Helper()
	screen := tcell.NewSimulationScreen("UTF-8")
	if err := screen.Init(); err != nil {
		t.Fatal(err)
	}
	screen.SetSize(140, 45)

	log := logger.Discard()
	cfg := config.Default()
	cfg.Display.Route = route
	cfg.Map.Tiles = false
	cfg.Map.BoundariesURL = ""
	cfg.Textures = config.Textures{Width: 64, Height: 32}

	prefs := theme.MemoryPrefs()
	ctrl := theme.NewController(prefs, log)
	backend := newFake()
	svc := store.NewService(backend, log, store.Options{Refetches: 1000, MinBackoff: time.Millisecond, MaxBackoff: 5 * time.Millisecond})

	ctx, cancel := context.WithCancel(theme.WithController(context.Background(), ctrl))
	a, err := New(ctx, Options{Screen: screen, Service: svc, Config: cfg, Log: log})
	if err != nil {
		t.Fatal(err)
	}
	h := &harness{app: a, screen: screen, backend: backend, svc: svc, theme: ctrl, prefs: prefs, cancel: cancel}
	t.Cleanup(func() {
		a.unmount()
		cancel()
		screen.Fini()
	})
	return h
}

// open starts the loop machinery without running it, so the test can feed events.
func (h *harness) open() {
	h.app.start(context.Background())
	h.app.Navigate(string(h.app.route))
}

// settle handles events until cond holds.
func (h *harness) settle(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for !cond() {
		select {
		case ev := <-h.app.events:
			h.app.handle(ev)
		case <-deadline:
			t.Fatalf("timed out waiting for %s", what)
		}
	}
}

// drain handles whatever arrives within d.
func (h *harness) drain(d time.Duration) {
	deadline := time.After(d)
	for {
		select {
		case ev := <-h.app.events:
			h.app.handle(ev)
		case <-deadline:
			return
		}
	}
}

func (h *harness) key(r rune) {
	h.app.handle(tcell.NewEventKey(tcell.KeyRune, r, tcell.ModNone))
}

func (h *harness) country(t *testing.T, name string) store.Country {
	t.Helper()
	h.settle(t, "countries", func() bool { return !h.app.m.loading[store.TableCountries] })
	countries, _ := h.svc.FetchCountries(context.Background())
	for _, c := range countries {
		if c.Name == name {
			return c
		}
	}
	t.Fatalf("no country %q", name)
	return store.Country{}
}

func TestResolve(t *testing.T) {
	cases := map[string]Route{"": RouteMap, "/": RouteMap, "/2d": RouteMap, "/3d": RouteGlobe, "/3d/": RouteGlobe}
	for path, want := range cases {
		if got, ok := Resolve(path); !ok || got != want {
			t.Errorf("Resolve(%q) = %q, %v", path, got, ok)
		}
	}
	if _, ok := Resolve("/4d"); ok {
		t.Error("unknown path resolved")
	}
	if RouteMap.Next() != RouteGlobe || RouteGlobe.Next() != RouteMap {
		t.Error("Next")
	}
}

func TestRootRedirectsToMap(t *testing.T) {
	h := newHarness(t, "/")
	h.open()
	if h.app.Route() != RouteMap || h.app.m.worldmap == nil {
		t.Fatalf("route = %q", h.app.Route())
	}
}

func TestNewRequiresThemeController(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("no panic without a theme controller")
		}
	}()
	screen := tcell.NewSimulationScreen("UTF-8")
	svc := store.NewService(newFake(), logger.Discard(), store.DefaultOptions())
	New(context.Background(), Options{Screen: screen, Service: svc})
}

func TestLateNewsForPreviousCountryIsDropped(t *testing.T) {
	h := newHarness(t, "/3d")
	h.open()
	chile := h.country(t, "Chile")
	japan := h.country(t, "Japan")
	releaseChile := h.backend.gate(chile.ID)

	h.app.selectCountry(chile)
	h.app.selectCountry(japan)
	h.settle(t, "japan news", func() bool { return !h.app.panel.Loading() })

	close(releaseChile)
	h.settle(t, "chile fetch", func() bool { return h.backend.calls(chile.ID) == 1 })
	h.drain(200 * time.Millisecond)

	got, _ := h.app.panel.Country()
	if got.ID != japan.ID {
		t.Fatalf("panel shows %q", got.Name)
	}
	if _, ok := h.app.panel.News()["Tokyo"]; !ok || len(h.app.panel.News()) != 1 {
		t.Errorf("panel news = %v", h.app.panel.News())
	}
	h.app.draw()
	if h.app.frame.Contains("Santiago") || !h.app.frame.Contains("Tokyo") {
		t.Errorf("frame shows stale news:\n%s", h.app.frame)
	}
}

func TestOlderNewsForReselectedCountryIsDropped(t *testing.T) {
	h := newHarness(t, "/3d")
	h.open()
	chile := h.country(t, "Chile")
	japan := h.country(t, "Japan")
	releaseFirst := h.backend.gate(chile.ID)

	h.app.selectCountry(chile)
	for deadline := time.Now().Add(5 * time.Second); h.backend.calls(chile.ID) == 0; time.Sleep(time.Millisecond) {
		if time.Now().After(deadline) {
			t.Fatal("first chile fetch never started")
		}
	}
	h.app.selectCountry(japan)
	h.settle(t, "japan news", func() bool { return !h.app.panel.Loading() })
	h.app.selectCountry(chile)
	h.settle(t, "second chile news", func() bool { return !h.app.panel.Loading() })

	close(releaseFirst)
	h.drain(200 * time.Millisecond)

	if n := h.backend.calls(chile.ID); n != 2 {
		t.Fatalf("%d chile fetches, want 2", n)
	}
	items := h.app.panel.News()["Santiago"]
	if len(items) != 1 || items[0].Title != "Santiago headline 2" {
		t.Errorf("panel news = %v, want the second fetch", items)
	}
}

func TestDoubleThemeToggleRestoresState(t *testing.T) {
	h := newHarness(t, "/2d")
	h.open()
	wm := h.app.m.worldmap

	type state struct {
		Stored, Attribute theme.Mode
		Pref              string
		Layers            []string
	}
	snapshot := func() state {
		pref, _ := h.prefs.Get(theme.PrefKey)
		var layers []string
		for _, l := range wm.AttachedLayers() {
			layers = append(layers, l.Name)
		}
		return state{h.theme.Stored(), h.theme.Attribute(), pref, layers}
	}

	before := snapshot()
	h.key('t')
	mid := snapshot()
	if mid.Attribute == before.Attribute || cmp.Equal(mid.Layers, before.Layers) {
		t.Fatalf("first toggle changed nothing: %+v", mid)
	}
	h.key('t')
	after := snapshot()
	before.Pref = after.Pref // unset before the first toggle
	if diff := cmp.Diff(before, after); diff != "" {
		t.Errorf("state after two toggles (-want +got):\n%s", diff)
	}
	if pref, _ := h.prefs.Get(theme.PrefKey); pref != string(before.Stored) {
		t.Errorf("stored preference = %q", pref)
	}
}

func TestGlobeForcesItsTheme(t *testing.T) {
	h := newHarness(t, "/2d")
	h.open()
	if h.theme.Current() != theme.Light {
		t.Fatalf("default theme = %v", h.theme.Current())
	}

	h.key('2')
	if h.app.Route() != RouteGlobe || h.theme.Current() != theme.Dark {
		t.Fatalf("route %q theme %v", h.app.Route(), h.theme.Current())
	}
	h.key('t')
	if h.theme.Stored() != theme.Light || !strings.Contains(h.app.StatusLine(), "fixed") {
		t.Errorf("toggle on globe: stored %v, status %q", h.theme.Stored(), h.app.StatusLine())
	}

	h.app.handle(tcell.NewEventKey(tcell.KeyTab, 0, tcell.ModNone))
	if h.app.Route() != RouteMap || h.theme.Current() != theme.Light {
		t.Fatalf("back on map: route %q theme %v", h.app.Route(), h.theme.Current())
	}
	if layers := h.app.m.worldmap.AttachedLayers(); len(layers) != 1 || layers[0].Name != "light" {
		t.Errorf("attached layers = %v", layers)
	}
}

func TestRouteSwitchReleasesMount(t *testing.T) {
	h := newHarness(t, "/2d")
	h.open()
	old := h.app.m
	if h.svc.Subscriptions() != 1 || h.theme.Listeners() != 1 {
		t.Fatalf("map mount: %d subscriptions, %d theme listeners", h.svc.Subscriptions(), h.theme.Listeners())
	}

	h.key('2')
	if old.ctx.Err() == nil || !old.worldmap.Disposed() {
		t.Error("old mount still live")
	}
	if h.svc.Subscriptions() != 2 || h.theme.Listeners() != 1 {
		t.Errorf("globe mount: %d subscriptions, %d theme listeners", h.svc.Subscriptions(), h.theme.Listeners())
	}
	if h.app.m.gen == old.gen {
		t.Error("generation reused")
	}

	applied := false
	h.app.handle(&resultEvent{gen: old.gen, apply: func() { applied = true }})
	if applied {
		t.Error("result for unmounted view applied")
	}

	h.key('2')
	if h.app.m.gen != old.gen+1 {
		t.Error("navigating to the mounted route remounted it")
	}
}

func TestPanelCloseClearsGlobeSelection(t *testing.T) {
	h := newHarness(t, "/3d")
	h.open()
	chile := h.country(t, "Chile")
	h.app.m.globe.Toggle(chile.ID)
	h.app.syncSelection()
	h.settle(t, "news", func() bool { return !h.app.panel.Loading() })

	h.app.draw()
	if !h.app.frame.Contains("Santiago") || !h.app.frame.Contains("News Sentiment") {
		t.Fatalf("frame:\n%s", h.app.frame)
	}

	h.key('x')
	if h.app.panel.IsOpen() {
		t.Fatal("panel still open")
	}
	if _, ok := h.app.m.globe.Selected(); ok {
		t.Error("globe kept the selection")
	}
}

func TestPanelClickRoutedToPanel(t *testing.T) {
	h := newHarness(t, "/3d")
	h.open()
	chile := h.country(t, "Chile")
	h.app.selectCountry(chile)
	h.settle(t, "news", func() bool { return !h.app.panel.Loading() })
	h.app.draw()

	_, side, shown := h.app.layout()
	if !shown {
		t.Fatal("panel not laid out")
	}
	// the tab row is the third panel row
	h.app.handle(tcell.NewEventMouse(side.x+panel.Width-5, side.y+2, tcell.Button1, tcell.ModNone))
	h.app.handle(tcell.NewEventMouse(side.x+panel.Width-5, side.y+2, tcell.ButtonNone, tcell.ModNone))
	if h.app.panel.Mode() != panel.Feed {
		t.Error("tab click did not reach the panel")
	}
}

func TestNewsChangeRefetchesSelectedCountry(t *testing.T) {
	h := newHarness(t, "/3d")
	h.open()
	chile := h.country(t, "Chile")
	h.app.selectCountry(chile)
	h.settle(t, "news", func() bool { return h.backend.calls(chile.ID) == 1 && !h.app.panel.Loading() })

	h.backend.push(t, store.Change{Table: store.TableNews, Rows: []store.Row{{"country_id": 2}}})
	h.drain(100 * time.Millisecond)
	if h.backend.calls(chile.ID) != 1 {
		t.Error("change for another country refetched")
	}

	h.backend.push(t, store.Change{Table: store.TableNews, Rows: []store.Row{{"country_id": chile.ID}}})
	h.settle(t, "refetch", func() bool { return h.backend.calls(chile.ID) == 2 })
}

func TestFallbackStatus(t *testing.T) {
	h := newHarness(t, "/3d")
	h.app.svc = store.NewService(store.Unavailable{}, logger.Discard(), store.DefaultOptions())
	h.open()
	h.settle(t, "countries", func() bool { return !h.app.m.loading[store.TableCountries] })
	if h.app.Origin() != store.Fallback {
		t.Fatalf("origin = %v", h.app.Origin())
	}
	if !strings.Contains(h.app.StatusLine(), "using offline/fallback data") {
		t.Errorf("status = %q", h.app.StatusLine())
	}
}

func TestLoadingThenReady(t *testing.T) {
	h := newHarness(t, "/2d")
	h.open()
	if !strings.Contains(h.app.StatusLine(), "loading") {
		t.Errorf("status before load = %q", h.app.StatusLine())
	}
	h.settle(t, "map data", func() bool { return len(h.app.Loading()) == 0 })
	if !h.app.m.worldmap.Loaded() || !h.app.m.sampleBoundaries {
		t.Error("sample boundaries not installed")
	}
	if h.app.Origin() != store.Live {
		t.Errorf("origin = %v", h.app.Origin())
	}
}

func TestHelpOverlay(t *testing.T) {
	h := newHarness(t, "/2d")
	h.open()
	h.key('?')
	h.app.draw()
	if !h.app.frame.Contains("KEYBOARD CONTROLS") {
		t.Fatal("help not drawn")
	}
	h.key('q')
	if h.app.help || h.app.quit {
		t.Error("first key should only close the help")
	}
	h.key('q')
	if !h.app.quit {
		t.Error("q did not quit")
	}
}

func TestRunRecordsAndQuits(t *testing.T) {
	h := newHarness(t, "/2d")
	var buf bytes.Buffer
	rec, err := record.New(&buf, 140, 45, nil)
	if err != nil {
		t.Fatal(err)
	}
	h.app.rec = rec

	done := make(chan error, 1)
	go func() { done <- h.app.Run(context.Background()) }()
	h.screen.InjectKey(tcell.KeyRune, 'q', tcell.ModNone)

	select {
	case err := <-done:
		if err != nil {
			t.Fatal(err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return")
	}
	if rec.Frames() == 0 {
		t.Error("no frames recorded")
	}
	if h.app.m != nil || h.svc.Subscriptions() != 0 {
		t.Error("Run left the view mounted")
	}
}
