package texture

import (
	"fmt"
	"image"
	"math"
	"strconv"
	"strings"
	"sync"

	"sentiment-globe/internal/geo"
)

// Mask is a coarse equirectangular land/water grid.
type Mask struct {
	Width  int
	Height int
	land   []bool
}

var (
	earthOnce sync.Once
	earthMask *Mask
)

// EarthMask returns the built-in land mask.
func EarthMask() *Mask {
	earthOnce.Do(func() {
		m, err := DecodeMask(earthRuns)
		if err != nil {
			panic(fmt.Sprintf("texture: built-in land mask: %v", err))
		}
		earthMask = m
	})
	return earthMask
}

// DecodeMask parses run-length rows as produced by Encode.
func DecodeMask(rows []string) (*Mask, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("empty mask")
	}
	m := &Mask{Height: len(rows)}
	for y, row := range rows {
		var line []bool
		water := true
		for _, field := range strings.Fields(row) {
			n, err := strconv.Atoi(field)
			if err != nil || n < 0 {
				return nil, fmt.Errorf("row %d: bad run %q", y, field)
			}
			for i := 0; i < n; i++ {
				line = append(line, !water)
			}
			water = !water
		}
		if y == 0 {
			m.Width = len(line)
		} else if len(line) != m.Width {
			return nil, fmt.Errorf("row %d: width %d, want %d", y, len(line), m.Width)
		}
		m.land = append(m.land, line...)
	}
	if m.Width == 0 {
		return nil, fmt.Errorf("mask has zero width")
	}
	return m, nil
}

// MaskFromImage thresholds a black-on-white equirectangular map down to width x height.
// Dark pixels are land.
func MaskFromImage(img image.Image, width, height int) *Mask {
	bounds := img.Bounds()
	scaleX := float64(bounds.Dx()) / float64(width)
	scaleY := float64(bounds.Dy()) / float64(height)

	m := &Mask{Width: width, Height: height, land: make([]bool, width*height)}
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			imgX := bounds.Min.X + int(float64(x)*scaleX)
			imgY := bounds.Min.Y + int(float64(y)*scaleY)
			r, g, b, _ := img.At(imgX, imgY).RGBA()
			m.land[y*width+x] = (r+g+b)/3 <= 0x8080
		}
	}
	return m
}

// Encode returns the mask as run-length rows.
func (m *Mask) Encode() []string {
	rows := make([]string, m.Height)
	for y := 0; y < m.Height; y++ {
		var runs []string
		water, n := true, 0
		for x := 0; x < m.Width; x++ {
			if m.land[y*m.Width+x] == water {
				runs = append(runs, strconv.Itoa(n))
				water, n = !water, 0
			}
			n++
		}
		runs = append(runs, strconv.Itoa(n))
		rows[y] = strings.Join(runs, " ")
	}
	return rows
}

func (m *Mask) at(x, y int) bool {
	x = ((x % m.Width) + m.Width) % m.Width
	if y < 0 {
		y = 0
	}
	if y >= m.Height {
		y = m.Height - 1
	}
	return m.land[y*m.Width+x]
}

// Land reports whether (lat, lon) falls on a land cell.
func (m *Mask) Land(lat, lon float64) bool {
	u, v := geo.Equirect(lat, lon)
	return m.at(int(u*float64(m.Width)), int(v*float64(m.Height-1)+0.5))
}

// Coverage is the bilinear land fraction at texture coordinates (u, v).
func (m *Mask) Coverage(u, v float64) float64 {
	fx := u*float64(m.Width) - 0.5
	fy := v*float64(m.Height) - 0.5
	x0, y0 := int(math.Floor(fx)), int(math.Floor(fy))
	tx, ty := fx-float64(x0), fy-float64(y0)

	val := func(x, y int) float64 {
		if m.at(x, y) {
			return 1
		}
		return 0
	}
	top := val(x0, y0)*(1-tx) + val(x0+1, y0)*tx
	bottom := val(x0, y0+1)*(1-tx) + val(x0+1, y0+1)*tx
	return top*(1-ty) + bottom*ty
}

// Rows renders the mask with '#' for land, for debugging and the CLI.
func (m *Mask) Rows() []string {
	rows := make([]string, m.Height)
	for y := 0; y < m.Height; y++ {
		var sb strings.Builder
		for x := 0; x < m.Width; x++ {
			if m.land[y*m.Width+x] {
				sb.WriteByte('#')
			} else {
				sb.WriteByte(' ')
			}
		}
		rows[y] = sb.String()
	}
	return rows
}
