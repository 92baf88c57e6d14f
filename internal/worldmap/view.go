// Package worldmap renders the 2D view: a raster basemap with one polygon per country
// filled by sentiment, hover highlighting and a popup on click.
package worldmap

import (
	"context"
	"net/http"

	"github.com/gdamore/tcell/v2"
	"github.com/sirupsen/logrus"

	"sentiment-globe/internal/store"
	"sentiment-globe/internal/theme"
)

type Cursor string

const (
	CursorDefault Cursor = "default"
	CursorPointer Cursor = "pointer"
)

// Action tells the caller whether an input event needs a redraw.
type Action int

const (
	None Action = iota
	Redraw
)

const panStep = 4

type Options struct {
	Lat, Lon    float64
	Zoom        int
	AspectRatio float64
	LightTiles  string
	DarkTiles   string
	Subdomains  string
	TileCache   int
	Client      *http.Client
	// OnTile is called from a fetch goroutine whenever a tile arrives.
	OnTile func()
}

func DefaultOptions() Options {
	return Options{Lat: 20, Lon: 0, Zoom: DefaultZoom, AspectRatio: 2}
}

// Popup is the information box opened by clicking a country.
type Popup struct {
	Name     string
	Entry    store.SentimentEntry
	HasEntry bool
	Sample   bool
}

// View is one mount of the 2D map. The event loop owns it; only tile fetches run in
// the background.
type View struct {
	ctx  context.Context
	opts Options
	log  logrus.FieldLogger

	vp    Viewport
	mode  theme.Mode
	tiles map[theme.Mode]*TileLayer

	layer      *Layer
	sample     bool
	sentiments store.SentimentMap
	popup      *Polygon

	pointerX, pointerY int
	pointerIn          bool
	cursor             Cursor

	dragging     bool
	dragMoved    bool
	lastX, lastY int

	disposed bool
}

// New creates the view and attaches the tile layer for mode. Tile fetches stop when
// ctx is done or the view is disposed.
func New(ctx context.Context, opts Options, mode theme.Mode, log logrus.FieldLogger) *View {
	if opts.Zoom == 0 {
		opts.Zoom = DefaultZoom
	}
	v := &View{
		ctx:    ctx,
		opts:   opts,
		log:    log,
		vp:     NewViewport(opts.Lat, opts.Lon, opts.Zoom, opts.AspectRatio),
		mode:   mode,
		cursor: CursorDefault,
		tiles: map[theme.Mode]*TileLayer{
			theme.Light: NewTileLayer("light", opts.LightTiles, opts.Subdomains, opts.TileCache, opts.Client, log),
			theme.Dark:  NewTileLayer("dark", opts.DarkTiles, opts.Subdomains, opts.TileCache, opts.Client, log),
		},
	}
	v.tiles[v.mode].Attach(ctx, opts.OnTile)
	return v
}

// SetFeatures builds the polygon layer. Sample rectangles recenter the map.
func (v *View) SetFeatures(features []Feature, sample bool) {
	if v.disposed {
		return
	}
	v.layer = NewLayer(features, v.sentiments, theme.BorderColor(v.mode))
	v.sample = sample
	v.popup = nil
	if sample {
		v.vp.Lat, v.vp.Lon = 10, 0
		v.vp.SetZoom(MinZoom)
	}
}

// SetSentiment recolors the countries. It may arrive before or after the boundaries.
func (v *View) SetSentiment(sm store.SentimentMap) {
	v.sentiments = sm
	if v.layer != nil {
		v.layer.Recolor(sm)
	}
}

func (v *View) Loaded() bool { return v.layer != nil }

// Sample reports whether the stand-in rectangles are shown.
func (v *View) Sample() bool { return v.sample }

func (v *View) Layer() *Layer { return v.layer }

func (v *View) Mode() theme.Mode { return v.mode }

// SetTheme swaps the tile layers and restyles the outlines. It reports whether the
// mode changed.
func (v *View) SetTheme(mode theme.Mode) bool {
	if mode == v.mode || v.disposed {
		return false
	}
	v.tiles[v.mode].Detach()
	v.mode = mode
	v.tiles[v.mode].Attach(v.ctx, v.opts.OnTile)
	if v.layer != nil {
		v.layer.SetBorder(theme.BorderColor(mode))
	}
	v.log.WithField("mode", mode).Debug("map theme switched")
	return true
}

// TileLayer returns the layer used for mode.
func (v *View) TileLayer(mode theme.Mode) *TileLayer { return v.tiles[mode] }

// AttachedLayers returns every currently attached tile layer.
func (v *View) AttachedLayers() []*TileLayer {
	var out []*TileLayer
	for _, m := range []theme.Mode{theme.Light, theme.Dark} {
		if v.tiles[m].Attached() {
			out = append(out, v.tiles[m])
		}
	}
	return out
}

func (v *View) Viewport() Viewport { return v.vp }

func (v *View) Cursor() Cursor { return v.cursor }

// Hovered is the name of the highlighted country, if any.
func (v *View) Hovered() (string, bool) {
	if v.layer == nil || v.layer.Hovered() == nil {
		return "", false
	}
	return v.layer.Hovered().Name, true
}

// Popup returns the open popup, if any.
func (v *View) Popup() (Popup, bool) {
	if v.popup == nil {
		return Popup{}, false
	}
	p := Popup{Name: v.popup.Name, Sample: v.popup.Sample}
	if !p.Sample {
		p.Entry, p.HasEntry = v.sentiments.Lookup(p.Name)
	}
	return p, true
}

func (v *View) ClosePopup() bool {
	open := v.popup != nil
	v.popup = nil
	return open
}

// ZoomBy changes the zoom level and applies the zoom-dependent outline weight.
func (v *View) ZoomBy(delta int) bool {
	if !v.vp.SetZoom(v.vp.Zoom + delta) {
		return false
	}
	v.settle()
	return true
}

func (v *View) settle() {
	if v.layer != nil {
		v.layer.SetWeight(v.vp.BorderWeight())
	}
	v.vp.Snap()
}

func (v *View) polygonAt(x, y int) *Polygon {
	if v.layer == nil {
		return nil
	}
	lat, lon, ok := v.vp.CellToLatLon(x, y)
	if !ok {
		return nil
	}
	return v.layer.At(lat, lon)
}

// HandleMouse processes a mouse event in view coordinates.
func (v *View) HandleMouse(x, y int, buttons tcell.ButtonMask) Action {
	if v.disposed {
		return None
	}
	v.pointerX, v.pointerY, v.pointerIn = x, y, true
	action := None

	switch {
	case buttons&tcell.WheelUp != 0:
		if v.ZoomBy(1) {
			action = Redraw
		}
	case buttons&tcell.WheelDown != 0:
		if v.ZoomBy(-1) {
			action = Redraw
		}
	case buttons&tcell.Button1 != 0:
		if !v.dragging {
			v.dragging, v.dragMoved = true, false
			v.lastX, v.lastY = x, y
			break
		}
		if dx, dy := x-v.lastX, y-v.lastY; dx != 0 || dy != 0 {
			v.vp.Pan(dx, dy)
			v.lastX, v.lastY = x, y
			v.dragMoved = true
			action = Redraw
		}
	default:
		if v.dragging {
			v.dragging = false
			if !v.dragMoved {
				v.click(x, y)
				action = Redraw
			}
		}
	}

	if v.updateHover(x, y) {
		action = Redraw
	}
	return action
}

func (v *View) click(x, y int) {
	p := v.polygonAt(x, y)
	if p == nil {
		v.popup = nil
		return
	}
	v.popup = p
	if !p.Sample {
		v.vp.FitBounds(p.Bound)
		v.settle()
	}
}

func (v *View) updateHover(x, y int) bool {
	if v.layer == nil {
		return false
	}
	p := v.polygonAt(x, y)
	cursor := CursorDefault
	if p != nil {
		cursor = CursorPointer
	}
	changed := v.layer.Hover(p) || cursor != v.cursor
	v.cursor = cursor
	return changed
}

// PointerLeave clears the highlight and any drag in progress.
func (v *View) PointerLeave() bool {
	changed := v.pointerIn || v.dragging || v.cursor != CursorDefault
	if v.layer != nil && v.layer.Hover(nil) {
		changed = true
	}
	v.pointerIn = false
	v.dragging = false
	v.cursor = CursorDefault
	return changed
}

// HandleKey pans with the arrows, zooms with +/- and closes the popup with Esc.
func (v *View) HandleKey(ev *tcell.EventKey) Action {
	if v.disposed {
		return None
	}
	switch ev.Key() {
	case tcell.KeyLeft:
		v.vp.Pan(panStep, 0)
	case tcell.KeyRight:
		v.vp.Pan(-panStep, 0)
	case tcell.KeyUp:
		v.vp.Pan(0, panStep/2)
	case tcell.KeyDown:
		v.vp.Pan(0, -panStep/2)
	case tcell.KeyEscape:
		if !v.ClosePopup() {
			return None
		}
	case tcell.KeyRune:
		switch ev.Rune() {
		case '+', '=':
			if !v.ZoomBy(1) {
				return None
			}
		case '-', '_':
			if !v.ZoomBy(-1) {
				return None
			}
		default:
			return None
		}
	default:
		return None
	}
	return Redraw
}

// Dispose detaches both tile layers and drops the polygons. The view ignores input
// afterwards.
func (v *View) Dispose() {
	for _, l := range v.tiles {
		l.Detach()
	}
	v.disposed = true
	v.layer = nil
	v.popup = nil
	v.cursor = CursorDefault
	v.dragging = false
	v.pointerIn = false
}

func (v *View) Disposed() bool { return v.disposed }
