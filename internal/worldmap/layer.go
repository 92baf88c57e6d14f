package worldmap

import (
	"hash/fnv"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"

	"sentiment-globe/internal/store"
)

// FallbackColors fill countries that have no sentiment entry.
var FallbackColors = []string{"#28a745", "#dc3545", "#fd7e14"}

const (
	HighlightBorder = "#ffffff"
	HighlightWeight = 3.0
)

// Style is how one polygon is drawn.
type Style struct {
	Fill        string
	Border      string
	Weight      float64
	Opacity     float64
	FillOpacity float64
}

func countryStyle(fill, border string) Style {
	return Style{Fill: fill, Border: border, Weight: 0.5, Opacity: 0.9, FillOpacity: 0.85}
}

func rectStyle(fill, border string) Style {
	return Style{Fill: fill, Border: border, Weight: 2, Opacity: 1, FillOpacity: 0.7}
}

// Polygon is one country on the map. Its original style is captured when it is built
// and restored exactly when the pointer leaves it.
type Polygon struct {
	Name     string
	Geometry orb.MultiPolygon
	Bound    orb.Bound
	// Sample marks the stand-in rectangles used when no boundaries could be loaded.
	Sample bool

	style       Style
	original    Style
	highlighted bool
}

func newPolygon(f Feature, style Style) *Polygon {
	return &Polygon{
		Name:     f.Name,
		Geometry: f.Geometry,
		Bound:    f.Geometry.Bound(),
		Sample:   f.Sample,
		style:    style,
		original: style,
	}
}

func (p *Polygon) Style() Style      { return p.style }
func (p *Polygon) Original() Style   { return p.original }
func (p *Polygon) Highlighted() bool { return p.highlighted }

func (p *Polygon) highlight() {
	if p.highlighted {
		return
	}
	p.highlighted = true
	if p.Sample {
		p.style.FillOpacity = 0.9
		p.style.Weight = HighlightWeight
		return
	}
	p.style = Style{
		Fill:        p.original.Fill,
		Border:      HighlightBorder,
		Weight:      HighlightWeight,
		Opacity:     1,
		FillOpacity: p.original.FillOpacity,
	}
}

func (p *Polygon) unhighlight() {
	p.highlighted = false
	p.style = p.original
}

func (p *Polygon) setBorder(color string) {
	p.original.Border = color
	if !p.highlighted || p.Sample {
		p.style.Border = color
	}
}

func (p *Polygon) setFill(color string) {
	p.original.Fill = color
	p.style.Fill = color
}

func (p *Polygon) setWeight(w float64) {
	if p.Sample {
		return
	}
	p.original.Weight = w
	if !p.highlighted {
		p.style.Weight = w
	}
}

// Contains reports whether (lat, lon) is inside the polygon.
func (p *Polygon) Contains(lat, lon float64) bool {
	pt := orb.Point{lon, lat}
	if !p.Bound.Contains(pt) {
		return false
	}
	return planar.MultiPolygonContains(p.Geometry, pt)
}

// Layer holds the country polygons in draw order, last on top.
type Layer struct {
	polys   []*Polygon
	hovered *Polygon
}

// NewLayer styles each feature: countries by their sentiment entry, otherwise by a
// stable pick from FallbackColors; sample rectangles keep their own color.
func NewLayer(features []Feature, sentiments store.SentimentMap, border string) *Layer {
	l := &Layer{polys: make([]*Polygon, 0, len(features))}
	for _, f := range features {
		if f.Sample {
			l.polys = append(l.polys, newPolygon(f, rectStyle(f.Color, border)))
			continue
		}
		l.polys = append(l.polys, newPolygon(f, countryStyle(fillFor(f.Name, sentiments), border)))
	}
	return l
}

func fillFor(name string, sentiments store.SentimentMap) string {
	if e, ok := sentiments.Lookup(name); ok && e.Color != "" {
		return e.Color
	}
	h := fnv.New32a()
	h.Write([]byte(name))
	return FallbackColors[h.Sum32()%uint32(len(FallbackColors))]
}

func (l *Layer) Polygons() []*Polygon { return l.polys }

func (l *Layer) Len() int { return len(l.polys) }

// Find returns the polygon named name.
func (l *Layer) Find(name string) *Polygon {
	for _, p := range l.polys {
		if p.Name == name {
			return p
		}
	}
	return nil
}

// At returns the topmost polygon containing (lat, lon).
func (l *Layer) At(lat, lon float64) *Polygon {
	for i := len(l.polys) - 1; i >= 0; i-- {
		if l.polys[i].Contains(lat, lon) {
			return l.polys[i]
		}
	}
	return nil
}

func (l *Layer) Hovered() *Polygon { return l.hovered }

// Hover moves the highlight to p, restoring the previously hovered polygon. A nil p
// clears the highlight. It reports whether anything changed.
func (l *Layer) Hover(p *Polygon) bool {
	if p == l.hovered {
		return false
	}
	if l.hovered != nil {
		l.hovered.unhighlight()
	}
	l.hovered = p
	if p != nil {
		p.highlight()
		l.bringToFront(p)
	}
	return true
}

func (l *Layer) bringToFront(p *Polygon) {
	for i, q := range l.polys {
		if q == p {
			copy(l.polys[i:], l.polys[i+1:])
			l.polys[len(l.polys)-1] = p
			return
		}
	}
}

// SetBorder restyles every outline, keeping fills and the hover highlight.
func (l *Layer) SetBorder(color string) {
	for _, p := range l.polys {
		p.setBorder(color)
	}
}

// SetWeight sets the outline weight of country polygons.
func (l *Layer) SetWeight(w float64) {
	for _, p := range l.polys {
		p.setWeight(w)
	}
}

// Recolor refills countries from a new sentiment map.
func (l *Layer) Recolor(sentiments store.SentimentMap) {
	for _, p := range l.polys {
		if !p.Sample {
			p.setFill(fillFor(p.Name, sentiments))
		}
	}
}
