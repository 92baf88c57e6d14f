// Package app is the terminal shell: it routes between the map and the globe, owns the
// detail panel and runs the event loop every view is driven from.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/paulmach/orb"
	"github.com/sirupsen/logrus"

	"sentiment-globe/internal/canvas"
	"sentiment-globe/internal/config"
	"sentiment-globe/internal/globe"
	"sentiment-globe/internal/panel"
	"sentiment-globe/internal/record"
	"sentiment-globe/internal/store"
	"sentiment-globe/internal/texture"
	"sentiment-globe/internal/theme"
	"sentiment-globe/internal/worldmap"
)

type Options struct {
	Screen   tcell.Screen
	Service  *store.Service
	Config   *config.Config
	Client   *http.Client
	Recorder *record.Recorder
	Log      logrus.FieldLogger
	// Home is where the globe opens facing, as lon/lat.
	Home *orb.Point
	Now  func() time.Time
}

// resultEvent carries work finished off the event loop back onto it. gen ties it to
// the mount that started the work.
type resultEvent struct {
	tcell.EventTime
	gen   uint64
	apply func()
}

// mount is one instance of a routed view. Everything in it is released on unmount.
type mount struct {
	gen    uint64
	route  Route
	ctx    context.Context
	cancel context.CancelFunc
	log    logrus.FieldLogger
	unsubs []func()

	globe    *globe.View
	textures *texture.Set
	worldmap *worldmap.View

	// latest request per source; older results are ignored
	requests map[store.Table]uint64
	loading  map[store.Table]bool
	origins  map[store.Table]store.Origin

	loadingTextures   bool
	loadingBoundaries bool
	sampleBoundaries  bool
	tileQueued        atomic.Bool
}

// App is not safe for concurrent use: only the event loop calls into it.
type App struct {
	screen tcell.Screen
	svc    *store.Service
	theme  *theme.Controller
	cfg    *config.Config
	client *http.Client
	rec    *record.Recorder
	log    logrus.FieldLogger
	now    func() time.Time
	home   *orb.Point

	charset    globe.Charset
	globeTheme theme.Mode
	refresh    time.Duration

	ctx    context.Context
	events chan tcell.Event
	done   chan struct{}

	route Route
	m     *mount
	gen   uint64
	panel *panel.Panel

	width, height int
	buttons       tcell.ButtonMask
	navHits       []navHit
	help          bool
	notice        string
	dirty         bool
	quit          bool
	frame         *canvas.Canvas
	recordFailed  bool
}

// New builds the shell. The theme controller is taken from ctx.
func New(ctx context.Context, opts Options) (*App, error) {
	if opts.Screen == nil {
		return nil, errors.New("app: no screen")
	}
	if opts.Service == nil {
		return nil, store.ErrNoBackend
	}
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Default()
	}
	route, ok := Resolve(cfg.Display.Route)
	if !ok {
		return nil, fmt.Errorf("%w: unknown route %q", config.ErrInvalid, cfg.Display.Route)
	}
	charset, err := globe.ParseCharset(cfg.Display.Charset)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", config.ErrInvalid, err)
	}
	var globeTheme theme.Mode
	if cfg.Globe.Theme != "" {
		if globeTheme, err = theme.ParseMode(cfg.Globe.Theme); err != nil {
			return nil, fmt.Errorf("%w: globe theme: %v", config.ErrInvalid, err)
		}
	}

	a := &App{
		screen:     opts.Screen,
		svc:        opts.Service,
		theme:      theme.MustFromContext(ctx),
		cfg:        cfg,
		client:     opts.Client,
		rec:        opts.Recorder,
		log:        opts.Log,
		now:        opts.Now,
		home:       opts.Home,
		charset:    charset,
		globeTheme: globeTheme,
		refresh:    time.Duration(cfg.Display.RefreshRate) * time.Millisecond,
		route:      route,
		panel:      panel.New(),
	}
	if a.client == nil {
		a.client = http.DefaultClient
	}
	if a.log == nil {
		a.log = logrus.StandardLogger()
	}
	if a.now == nil {
		a.now = time.Now
	}
	if a.refresh <= 0 {
		a.refresh = 100 * time.Millisecond
	}
	a.panel.SetClock(a.now)
	return a, nil
}

// Run mounts the configured route and processes events until the user quits or ctx
// is done. The caller owns the screen and finalizes it afterwards.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	a.start(ctx)
	defer close(a.done)

	a.Navigate(string(a.route))
	defer a.unmount()
	a.draw()

	ticker := time.NewTicker(a.refresh)
	defer ticker.Stop()

	for !a.quit {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-a.events:
			if !ok {
				return nil
			}
			a.handle(ev)
		case <-ticker.C:
			if a.dirty {
				a.draw()
			}
		}
	}
	a.log.Info("shutting down")
	return nil
}

func (a *App) start(ctx context.Context) {
	a.ctx = ctx
	a.events = make(chan tcell.Event, 64)
	a.done = make(chan struct{})
	a.width, a.height = a.screen.Size()
	go a.pollEvents()
}

// pollEvents forwards screen events until the screen is finalized.
func (a *App) pollEvents() {
	defer close(a.events)
	for {
		ev := a.screen.PollEvent()
		if ev == nil {
			return
		}
		select {
		case a.events <- ev:
		case <-a.done:
			return
		}
	}
}

// post schedules fn on the event loop on behalf of m. It retries while the screen's
// queue is full and gives up once m is unmounted.
func (a *App) post(m *mount, fn func()) {
	ev := &resultEvent{gen: m.gen, apply: fn}
	ev.SetEventNow()
	for a.screen.PostEvent(ev) != nil {
		if !sleepCtx(m.ctx, 10*time.Millisecond) {
			return
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func (a *App) handle(ev tcell.Event) {
	switch ev := ev.(type) {
	case *resultEvent:
		if a.m == nil || ev.gen != a.m.gen {
			a.log.WithField("gen", ev.gen).Debug("dropping result for unmounted view")
			return
		}
		ev.apply()
		a.dirty = true
	case *tcell.EventResize:
		a.width, a.height = ev.Size()
		a.screen.Sync()
		a.dirty = true
	case *tcell.EventKey:
		a.handleKey(ev)
	case *tcell.EventMouse:
		a.handleMouse(ev)
	}
}

// Route returns the mounted route.
func (a *App) Route() Route { return a.route }

// Navigate switches to the route for path, replacing the mounted view. Unknown paths
// are ignored.
func (a *App) Navigate(path string) {
	r, ok := Resolve(path)
	if !ok {
		a.log.WithField("path", path).Warn("unknown route")
		return
	}
	if a.m != nil && a.m.route == r {
		return
	}
	a.unmount()
	a.mount(r)
	a.dirty = true
}

func (a *App) mount(r Route) {
	if a.m != nil {
		panic("app: mounting " + string(r) + " while " + string(a.m.route) + " is mounted")
	}
	a.gen++
	ctx, cancel := context.WithCancel(a.ctx)
	m := &mount{
		gen:      a.gen,
		route:    r,
		ctx:      ctx,
		cancel:   cancel,
		log:      a.log.WithField("route", r),
		requests: make(map[store.Table]uint64),
		loading:  make(map[store.Table]bool),
		origins:  make(map[store.Table]store.Origin),
	}
	a.m = m
	a.route = r
	m.log.Debug("mount")

	switch r {
	case RouteGlobe:
		a.theme.Force(a.globeTheme)
		a.mountGlobe(m)
	default:
		a.theme.Force("")
		a.mountMap(m)
	}
	m.unsubs = append(m.unsubs, a.theme.Subscribe(func(mode theme.Mode) {
		if m.worldmap != nil {
			m.worldmap.SetTheme(mode)
		}
		a.dirty = true
	}))
}

func (a *App) mountGlobe(m *mount) {
	g := a.cfg.Globe
	m.textures = texture.NewSet()
	m.globe = globe.New(globe.Options{
		AspectRatio: a.cfg.Display.AspectRatio,
		Charset:     a.charset,
		Distance:    g.Distance,
		MinDistance: g.MinDistance,
		MaxDistance: g.MaxDistance,
		Lighting:    g.Lighting,
		LightFollow: g.LightFollow,
		Clouds:      g.Clouds,
		Atmosphere:  g.Atmosphere,
		Now:         a.now,
	}, m.textures)
	if a.home != nil {
		m.globe.Face(a.home.Lat(), a.home.Lon())
	}

	m.loadingTextures = true
	loader := texture.NewLoader(textureURLs(a.cfg), a.cfg.Textures.Timeout.Duration,
		texture.NewSynthesizer(a.cfg.Textures.Width, a.cfg.Textures.Height, a.cfg.Textures.Seed),
		m.log)
	go func() {
		loader.LoadAll(m.ctx, m.textures, func(texture.Slot, texture.State) {
			a.post(m, func() {})
		})
		a.post(m, func() { m.loadingTextures = false })
	}()

	a.fetchCountries(m)
	m.unsubs = append(m.unsubs,
		a.svc.Subscribe(store.TableCountries, func(store.Change) {
			a.post(m, func() { a.fetchCountries(m) })
		}),
		a.svc.Subscribe(store.TableNews, func(c store.Change) {
			a.post(m, func() { a.newsChanged(m, c) })
		}),
	)
}

func (a *App) mountMap(m *mount) {
	mc := a.cfg.Map
	opts := worldmap.Options{
		Lat:         mc.CenterLat,
		Lon:         mc.CenterLon,
		Zoom:        mc.Zoom,
		AspectRatio: a.cfg.Display.AspectRatio,
		Subdomains:  mc.Subdomains,
		TileCache:   mc.TileCache,
		Client:      a.client,
		OnTile: func() {
			if m.tileQueued.CompareAndSwap(false, true) {
				a.post(m, func() { m.tileQueued.Store(false) })
			}
		},
	}
	if mc.Tiles {
		opts.LightTiles, opts.DarkTiles = mc.LightTiles, mc.DarkTiles
	}
	m.worldmap = worldmap.New(m.ctx, opts, a.theme.Current(), m.log)

	m.loadingBoundaries = true
	go func() {
		features, sample := worldmap.LoadBoundaries(m.ctx, a.client, mc.BoundariesURL, m.log)
		a.post(m, func() {
			m.worldmap.SetFeatures(features, sample)
			m.loadingBoundaries = false
			m.sampleBoundaries = sample
		})
	}()

	a.fetchSentiment(m)
	m.unsubs = append(m.unsubs, a.svc.Subscribe(store.TableSentiment, func(store.Change) {
		a.post(m, func() { a.fetchSentiment(m) })
	}))
}

func (a *App) unmount() {
	m := a.m
	if m == nil {
		return
	}
	a.m = nil
	m.cancel()
	for _, unsub := range m.unsubs {
		unsub()
	}
	if m.globe != nil {
		m.globe.Dispose()
	}
	if m.worldmap != nil {
		m.worldmap.Dispose()
	}
	a.panel.Close()
	a.buttons = 0
	m.log.Debug("unmount")
}

func textureURLs(cfg *config.Config) map[texture.Slot]string {
	t := cfg.Textures
	return map[texture.Slot]string{
		texture.Day:      t.Day,
		texture.Night:    t.Night,
		texture.Specular: t.Specular,
		texture.Bump:     t.Bump,
		texture.Clouds:   t.Clouds,
	}
}

// begin starts a request for table and returns its sequence number.
func (m *mount) begin(table store.Table) uint64 {
	m.requests[table]++
	m.loading[table] = true
	return m.requests[table]
}

// finish reports whether seq is still the latest request for table.
func (m *mount) finish(table store.Table, seq uint64, origin store.Origin) bool {
	if m.requests[table] != seq {
		return false
	}
	m.loading[table] = false
	m.origins[table] = origin
	return true
}

func (a *App) fetchCountries(m *mount) {
	seq := m.begin(store.TableCountries)
	go func() {
		countries, origin := a.svc.FetchCountries(m.ctx)
		a.post(m, func() {
			if !m.finish(store.TableCountries, seq, origin) {
				return
			}
			m.globe.SetCountries(countries)
			for _, c := range countries {
				a.panel.UpdateCountry(c)
			}
			if _, ok := m.globe.Selected(); !ok && a.panel.IsOpen() {
				a.panel.Close()
			}
		})
	}()
}

func (a *App) fetchSentiment(m *mount) {
	seq := m.begin(store.TableSentiment)
	go func() {
		sm, origin := a.svc.FetchSentimentMap(m.ctx)
		a.post(m, func() {
			if m.finish(store.TableSentiment, seq, origin) {
				m.worldmap.SetSentiment(sm)
			}
		})
	}()
}

// fetchNews loads the news of countryID for the panel. Only the latest request is
// applied, and the panel drops it if another country was selected in the meantime.
func (a *App) fetchNews(m *mount, countryID int64) {
	seq := m.begin(store.TableNews)
	go func() {
		news, origin := a.svc.FetchNewsForCountry(m.ctx, countryID)
		a.post(m, func() {
			if m.requests[store.TableNews] != seq {
				return
			}
			m.loading[store.TableNews] = false
			if a.panel.SetNews(countryID, news, origin) {
				m.origins[store.TableNews] = origin
			}
		})
	}()
}

func (a *App) newsChanged(m *mount, c store.Change) {
	if country, ok := a.panel.Country(); ok && c.Touches(country.ID) {
		a.fetchNews(m, country.ID)
	}
}

// syncSelection opens the panel for the globe's selected country or closes it.
func (a *App) syncSelection() {
	sel, ok := a.m.globe.Selected()
	if !ok {
		a.panel.Close()
		return
	}
	a.selectCountry(sel)
}

func (a *App) selectCountry(c store.Country) {
	if cur, ok := a.panel.Country(); ok && cur.ID == c.ID {
		return
	}
	a.panel.Open(c)
	a.fetchNews(a.m, c.ID)
}

// Refresh re-fetches everything the mounted view shows.
func (a *App) Refresh() {
	m := a.m
	if m == nil {
		return
	}
	switch m.route {
	case RouteGlobe:
		a.fetchCountries(m)
		if c, ok := a.panel.Country(); ok {
			a.panel.SetLoading()
			a.fetchNews(m, c.ID)
		}
	case RouteMap:
		a.fetchSentiment(m)
	}
	a.dirty = true
}

// Origin is the worst origin of the data on screen.
func (a *App) Origin() store.Origin {
	origin := store.Live
	if a.m == nil {
		return origin
	}
	for _, o := range a.m.origins {
		origin = origin.Worse(o)
	}
	return origin
}

var loadingLabels = map[store.Table]string{
	store.TableCountries: "countries",
	store.TableSentiment: "sentiment",
	store.TableNews:      "news",
}

// Loading lists what the mounted view is still waiting for.
func (a *App) Loading() []string {
	m := a.m
	if m == nil {
		return nil
	}
	var out []string
	if m.loadingTextures {
		loaded, fallback := m.textures.Counts()
		out = append(out, fmt.Sprintf("textures %d/%d", loaded+fallback, len(texture.Slots)))
	}
	if m.loadingBoundaries {
		out = append(out, "boundaries")
	}
	for _, t := range []store.Table{store.TableCountries, store.TableSentiment, store.TableNews} {
		if m.loading[t] {
			out = append(out, loadingLabels[t])
		}
	}
	return out
}
