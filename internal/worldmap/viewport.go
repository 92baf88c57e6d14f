package worldmap

import (
	"math"

	"github.com/paulmach/orb"

	"sentiment-globe/internal/geo"
)

const (
	TileSize = 256

	MinZoom     = 2
	MaxZoom     = 18
	DefaultZoom = 2

	// CellWidth is the width of one terminal cell in tile pixels.
	CellWidth = 8.0

	maxMercatorLat = 85.0511287798
)

// Viewport maps terminal cells onto the Web Mercator plane at the current zoom.
type Viewport struct {
	Lat, Lon float64
	Zoom     int
	Width    int
	Height   int
	// Aspect is the cell height divided by its width.
	Aspect float64
}

func NewViewport(lat, lon float64, zoom int, aspect float64) Viewport {
	if aspect <= 0 {
		aspect = 2
	}
	vp := Viewport{Lat: lat, Lon: geo.NormalizeLon(lon), Aspect: aspect}
	vp.SetZoom(zoom)
	return vp
}

func worldSize(zoom int) float64 {
	return TileSize * math.Exp2(float64(zoom))
}

// Mercator projects (lat, lon) to pixel coordinates of a world of size ws.
func Mercator(lat, lon, ws float64) (x, y float64) {
	lat = math.Max(-maxMercatorLat, math.Min(maxMercatorLat, lat))
	x = (lon + 180) / 360 * ws
	s := math.Sin(lat * math.Pi / 180)
	y = (0.5 - math.Log((1+s)/(1-s))/(4*math.Pi)) * ws
	return x, y
}

// InverseMercator is the inverse of Mercator. Longitude is not wrapped.
func InverseMercator(x, y, ws float64) (lat, lon float64) {
	lon = x/ws*360 - 180
	n := math.Pi - 2*math.Pi*y/ws
	lat = math.Atan(math.Sinh(n)) * 180 / math.Pi
	return lat, lon
}

func (vp Viewport) cellHeight() float64 { return CellWidth * vp.Aspect }

func (vp *Viewport) Resize(width, height int) {
	vp.Width, vp.Height = width, height
}

// SetZoom clamps zoom to [MinZoom, MaxZoom] and reports whether it changed.
func (vp *Viewport) SetZoom(zoom int) bool {
	if zoom < MinZoom {
		zoom = MinZoom
	}
	if zoom > MaxZoom {
		zoom = MaxZoom
	}
	changed := zoom != vp.Zoom
	vp.Zoom = zoom
	return changed
}

// CellToWorld returns the world pixel at the center of cell (x, y).
func (vp Viewport) CellToWorld(x, y int) (px, py float64) {
	cx, cy := Mercator(vp.Lat, vp.Lon, worldSize(vp.Zoom))
	px = cx + (float64(x)+0.5-float64(vp.Width)/2)*CellWidth
	py = cy + (float64(y)+0.5-float64(vp.Height)/2)*vp.cellHeight()
	return px, py
}

// CellToLatLon returns the coordinate under cell (x, y). ok is false above or below
// the projected world.
func (vp Viewport) CellToLatLon(x, y int) (lat, lon float64, ok bool) {
	px, py := vp.CellToWorld(x, y)
	ws := worldSize(vp.Zoom)
	if py < 0 || py >= ws {
		return 0, 0, false
	}
	lat, lon = InverseMercator(px, py, ws)
	return lat, geo.NormalizeLon(lon), true
}

// LatLonToCell is the inverse of CellToLatLon, picking the world copy nearest the center.
func (vp Viewport) LatLonToCell(lat, lon float64) (x, y float64) {
	ws := worldSize(vp.Zoom)
	cx, cy := Mercator(vp.Lat, vp.Lon, ws)
	px, py := Mercator(lat, lon, ws)
	dx := px - cx
	if dx > ws/2 {
		dx -= ws
	} else if dx < -ws/2 {
		dx += ws
	}
	x = dx/CellWidth + float64(vp.Width)/2 - 0.5
	y = (py-cy)/vp.cellHeight() + float64(vp.Height)/2 - 0.5
	return x, y
}

// Pan drags the map by (dx, dy) cells: content under the pointer follows it.
func (vp *Viewport) Pan(dx, dy int) {
	ws := worldSize(vp.Zoom)
	cx, cy := Mercator(vp.Lat, vp.Lon, ws)
	cx -= float64(dx) * CellWidth
	cy -= float64(dy) * vp.cellHeight()
	cy = math.Max(0, math.Min(ws, cy))
	lat, lon := InverseMercator(cx, cy, ws)
	vp.Lat, vp.Lon = lat, geo.NormalizeLon(lon)
}

// FitBounds centers b and picks the largest zoom that shows all of it.
func (vp *Viewport) FitBounds(b orb.Bound) {
	vp.Lat = (b.Min.Lat() + b.Max.Lat()) / 2
	vp.Lon = geo.NormalizeLon((b.Min.Lon() + b.Max.Lon()) / 2)
	if vp.Width == 0 || vp.Height == 0 {
		return
	}

	// at zoom 0
	x0, y0 := Mercator(b.Max.Lat(), b.Min.Lon(), TileSize)
	x1, y1 := Mercator(b.Min.Lat(), b.Max.Lon(), TileSize)
	w, h := math.Abs(x1-x0), math.Abs(y1-y0)

	zoom := MinZoom
	for z := MaxZoom; z >= MinZoom; z-- {
		k := math.Exp2(float64(z))
		if w*k <= float64(vp.Width)*CellWidth && h*k <= float64(vp.Height)*vp.cellHeight() {
			zoom = z
			break
		}
	}
	vp.SetZoom(zoom)
}

// BorderWeight is the polygon outline weight for the current zoom.
func (vp Viewport) BorderWeight() float64 {
	if vp.Zoom > 4 {
		return 2
	}
	return 1
}

// Snap pulls the center back towards the equator when the whole-world zoom drifted
// over a pole. It reports whether the center moved.
func (vp *Viewport) Snap() bool {
	if vp.Zoom <= MinZoom && (vp.Lat > 70 || vp.Lat < -50) {
		vp.Lat = 10
		return true
	}
	return false
}
