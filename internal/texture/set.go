// Package texture provides the five globe surface textures. Each slot is fetched from a
// remote image and, when that fails, synthesized locally, so a globe always has a surface.
package texture

import (
	"image"
	"image/color"
	"sync"

	"github.com/lucasb-eyer/go-colorful"

	"sentiment-globe/internal/geo"
)

type Slot int

const (
	Day Slot = iota
	Night
	Specular
	Bump
	Clouds
)

// Slots lists every slot in load order.
var Slots = []Slot{Day, Night, Specular, Bump, Clouds}

func (s Slot) String() string {
	switch s {
	case Day:
		return "day"
	case Night:
		return "night"
	case Specular:
		return "specular"
	case Bump:
		return "bump"
	case Clouds:
		return "clouds"
	}
	return "unknown"
}

// State is the per-slot lifecycle. Loaded and Fallback are terminal.
type State int

const (
	Loading State = iota
	Loaded
	Fallback
)

func (s State) String() string {
	switch s {
	case Loaded:
		return "loaded"
	case Fallback:
		return "fallback"
	}
	return "loading"
}

// Set holds one image per slot for a single globe mount.
type Set struct {
	mu     sync.RWMutex
	images [5]image.Image
	states [5]State
}

func NewSet() *Set {
	return &Set{}
}

// Resolve moves slot out of Loading. Later calls for the same slot are ignored and
// report false.
func (s *Set) Resolve(slot Slot, img image.Image, state State) bool {
	if state == Loading || img == nil {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.states[slot] != Loading {
		return false
	}
	s.images[slot] = img
	s.states[slot] = state
	return true
}

func (s *Set) State(slot Slot) State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.states[slot]
}

// Ready is true once every slot is Loaded or Fallback.
func (s *Set) Ready() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, st := range s.states {
		if st == Loading {
			return false
		}
	}
	return true
}

// Counts returns how many slots are loaded and how many fell back.
func (s *Set) Counts() (loaded, fallback int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, st := range s.states {
		switch st {
		case Loaded:
			loaded++
		case Fallback:
			fallback++
		}
	}
	return loaded, fallback
}

func (s *Set) Image(slot Slot) image.Image {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.images[slot]
}

// Sample reads slot at (lat, lon). ok is false while the slot is unresolved.
func (s *Set) Sample(slot Slot, lat, lon float64) (c colorful.Color, alpha float64, ok bool) {
	img := s.Image(slot)
	if img == nil {
		return colorful.Color{}, 0, false
	}
	u, v := geo.Equirect(lat, lon)
	c, alpha = SampleUV(img, u, v)
	return c, alpha, true
}

// SampleUV reads img at texture coordinates in [0,1] with nearest-pixel lookup.
func SampleUV(img image.Image, u, v float64) (colorful.Color, float64) {
	b := img.Bounds()
	x := b.Min.X + int(u*float64(b.Dx()))
	y := b.Min.Y + int(v*float64(b.Dy()))
	if x >= b.Max.X {
		x = b.Max.X - 1
	}
	if y >= b.Max.Y {
		y = b.Max.Y - 1
	}

	var px color.NRGBA
	if nrgba, ok := img.(*image.NRGBA); ok {
		px = nrgba.NRGBAAt(x, y)
	} else {
		px = color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
	}
	return colorful.Color{
		R: float64(px.R) / 255,
		G: float64(px.G) / 255,
		B: float64(px.B) / 255,
	}, float64(px.A) / 255
}
