// Package globe renders the 3D view: a textured earth with cloud and atmosphere shells
// and one marker per country, rotated by dragging and zoomed with the wheel.
package globe

import (
	"math"
	"sort"
	"time"

	"github.com/gdamore/tcell/v2"

	"sentiment-globe/internal/geo"
	"sentiment-globe/internal/store"
	"sentiment-globe/internal/texture"
)

// Scene dimensions in world units.
const (
	EarthRadius     = 5.0
	MarkerRadius    = 5.2
	CloudScale      = 1.008
	AtmosphereScale = 1.015
	FieldOfView     = 75.0
)

const (
	DefaultDistance = 15.0
	MinDistance     = 8.0
	MaxDistance     = 30.0
)

// Cursor is the pointer shape the view asks for.
type Cursor string

const (
	CursorDefault Cursor = "default"
	CursorPointer Cursor = "pointer"
)

// Action tells the caller what an input event changed.
type Action int

const (
	None Action = iota
	Redraw
	SelectionChanged
)

type Options struct {
	AspectRatio float64
	Charset     Charset
	Distance    float64
	MinDistance float64
	MaxDistance float64
	// Lighting shades the night side using the night texture.
	Lighting bool
	// LightFollow keeps the light fixed relative to the viewer instead of at the sun.
	LightFollow bool
	Clouds      bool
	Atmosphere  bool
	// Now is the clock used for the sun position.
	Now func() time.Time
}

func DefaultOptions() Options {
	return Options{
		AspectRatio: 2,
		Distance:    DefaultDistance,
		MinDistance: MinDistance,
		MaxDistance: MaxDistance,
		Lighting:    true,
		Clouds:      true,
		Atmosphere:  true,
	}
}

type marker struct {
	country store.Country
	pos     geo.Vec3
}

// View is one mount of the globe. It is not safe for concurrent use; the event loop owns it.
type View struct {
	opts     Options
	textures *texture.Set
	camera   geo.Camera
	distance float64

	width, height int
	markers       []marker
	hits          map[[2]int]int64

	selected int64
	hover    int64
	cursor   Cursor

	dragging     bool
	dragMoved    bool
	lastX, lastY int

	disposed bool
}

func New(opts Options, textures *texture.Set) *View {
	def := DefaultOptions()
	if opts.AspectRatio <= 0 {
		opts.AspectRatio = def.AspectRatio
	}
	if opts.MinDistance <= EarthRadius {
		opts.MinDistance = def.MinDistance
	}
	if opts.MaxDistance <= opts.MinDistance {
		opts.MaxDistance = def.MaxDistance
	}
	if opts.Distance == 0 {
		opts.Distance = def.Distance
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if textures == nil {
		textures = texture.NewSet()
	}
	v := &View{
		opts:     opts,
		textures: textures,
		hits:     make(map[[2]int]int64),
		cursor:   CursorDefault,
	}
	v.distance = v.clampDistance(opts.Distance)
	v.camera.Face(20, 0)
	return v
}

func (v *View) clampDistance(d float64) float64 {
	return math.Max(v.opts.MinDistance, math.Min(v.opts.MaxDistance, d))
}

// SetCountries replaces the markers. A selected country that disappeared is deselected.
func (v *View) SetCountries(countries []store.Country) {
	v.markers = v.markers[:0]
	found := false
	for _, c := range countries {
		v.markers = append(v.markers, marker{country: c, pos: geo.Project(c.Lat, c.Lon, MarkerRadius)})
		if c.ID == v.selected {
			found = true
		}
	}
	if !found {
		v.selected = 0
	}
}

func (v *View) Textures() *texture.Set { return v.textures }

func (v *View) SetSize(width, height int) {
	v.width, v.height = width, height
}

func (v *View) Camera() geo.Camera { return v.camera }

// Face turns the globe so that (lat, lon) is centered.
func (v *View) Face(lat, lon float64) { v.camera.Face(lat, lon) }

// SetCamera places the camera at yaw and pitch degrees, clamping the pitch.
func (v *View) SetCamera(yaw, pitch float64) {
	v.camera = geo.Camera{}
	v.camera.Rotate(yaw, pitch)
}

func (v *View) Distance() float64 { return v.distance }

// SetDistance moves the camera, clamped to the configured bounds.
func (v *View) SetDistance(d float64) { v.distance = v.clampDistance(d) }

// Zoom moves the camera by delta world units; negative is closer.
func (v *View) Zoom(delta float64) { v.SetDistance(v.distance + delta) }

func (v *View) Cursor() Cursor { return v.cursor }

// Hovered is the country under the pointer, if any.
func (v *View) Hovered() (store.Country, bool) { return v.country(v.hover) }

// Selected is the selected country, if any.
func (v *View) Selected() (store.Country, bool) { return v.country(v.selected) }

func (v *View) country(id int64) (store.Country, bool) {
	if id == 0 {
		return store.Country{}, false
	}
	for _, m := range v.markers {
		if m.country.ID == id {
			return m.country, true
		}
	}
	return store.Country{}, false
}

// Toggle selects id, or deselects it when it is already selected.
func (v *View) Toggle(id int64) {
	if v.selected == id {
		v.selected = 0
		return
	}
	if _, ok := v.country(id); ok {
		v.selected = id
	}
}

func (v *View) ClearSelection() { v.selected = 0 }

// screenRadius is the sphere radius in cell widths.
func (v *View) screenRadius() float64 {
	halfHeight := float64(v.height) * v.opts.AspectRatio / 2
	return geo.ApparentRadius(EarthRadius, v.distance, FieldOfView) * halfHeight
}

// degreesPerCell converts a drag distance into rotation so that dragging across the
// sphere's radius turns it by 90 degrees.
func (v *View) degreesPerCell() float64 {
	r := v.screenRadius()
	if r < 1 {
		r = 1
	}
	return 90 / r
}

// HandleMouse processes a mouse event in view coordinates.
func (v *View) HandleMouse(x, y int, buttons tcell.ButtonMask) Action {
	if v.disposed {
		return None
	}
	action := None

	switch {
	case buttons&tcell.WheelUp != 0:
		v.Zoom(-1)
		return Redraw
	case buttons&tcell.WheelDown != 0:
		v.Zoom(1)
		return Redraw
	case buttons&tcell.Button1 != 0:
		if !v.dragging {
			v.dragging, v.dragMoved = true, false
			v.lastX, v.lastY = x, y
			break
		}
		dx, dy := x-v.lastX, y-v.lastY
		if dx != 0 || dy != 0 {
			k := v.degreesPerCell()
			v.camera.Rotate(float64(dx)*k, float64(dy)*k*v.opts.AspectRatio)
			v.lastX, v.lastY = x, y
			v.dragMoved = true
			action = Redraw
		}
	default:
		if v.dragging {
			v.dragging = false
			if !v.dragMoved {
				if id, ok := v.markerAt(x, y); ok {
					v.Toggle(id)
					action = SelectionChanged
				}
			}
		}
	}

	if v.updateHover(x, y) && action == None {
		action = Redraw
	}
	return action
}

func (v *View) updateHover(x, y int) bool {
	id, ok := v.markerAt(x, y)
	if !ok {
		id = 0
	}
	cursor := CursorDefault
	if ok {
		cursor = CursorPointer
	}
	changed := id != v.hover || cursor != v.cursor
	v.hover, v.cursor = id, cursor
	return changed
}

// PointerLeave resets hover and drag state. It is called whenever the pointer moves
// onto anything that is not the globe, including the panel.
func (v *View) PointerLeave() bool {
	changed := v.hover != 0 || v.cursor != CursorDefault || v.dragging
	v.hover = 0
	v.cursor = CursorDefault
	v.dragging = false
	return changed
}

// HandleKey supports arrow-key rotation and +/- zoom.
func (v *View) HandleKey(ev *tcell.EventKey) Action {
	if v.disposed {
		return None
	}
	const step = 5.0
	switch ev.Key() {
	case tcell.KeyLeft:
		v.camera.Rotate(-step, 0)
	case tcell.KeyRight:
		v.camera.Rotate(step, 0)
	case tcell.KeyUp:
		v.camera.Rotate(0, -step)
	case tcell.KeyDown:
		v.camera.Rotate(0, step)
	case tcell.KeyRune:
		switch ev.Rune() {
		case '+', '=':
			v.Zoom(-1)
		case '-', '_':
			v.Zoom(1)
		default:
			return None
		}
	default:
		return None
	}
	return Redraw
}

func (v *View) markerAt(x, y int) (int64, bool) {
	for _, dx := range []int{0, -1, 1} {
		if id, ok := v.hits[[2]int{x + dx, y}]; ok {
			return id, true
		}
	}
	return 0, false
}

// Dispose releases the view. Input is ignored afterwards and the cursor is reset.
func (v *View) Dispose() {
	v.disposed = true
	v.markers = nil
	v.hits = map[[2]int]int64{}
	v.hover = 0
	v.selected = 0
	v.cursor = CursorDefault
	v.dragging = false
}

func (v *View) Disposed() bool { return v.disposed }

// visibleMarkers projects the markers and returns those on the near side, farthest first.
func (v *View) visibleMarkers(cx, cy, r float64) []placed {
	out := make([]placed, 0, len(v.markers))
	for _, m := range v.markers {
		p := v.camera.View(m.pos.Scale(1 / EarthRadius))
		if p.Z <= 0.05 {
			continue
		}
		out = append(out, placed{
			country: m.country,
			x:       int(math.Round(cx + p.X*r)),
			y:       int(math.Round(cy - p.Y*r/v.opts.AspectRatio)),
			depth:   p.Z,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].depth < out[j].depth })
	return out
}

type placed struct {
	country store.Country
	x, y    int
	depth   float64
}
