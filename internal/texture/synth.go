package texture

import (
	"image"
	"image/color"
	"math"
	"math/rand"
	"time"

	"github.com/lucasb-eyer/go-colorful"
)

// Palette used by the synthesized surfaces.
var (
	oceanDeep    = mustHex("#1e40af")
	oceanShallow = mustHex("#0ea5e9")
	iceColor     = mustHex("#f1f5f9")
	americas     = mustHex("#10b981")
	eurafrica    = mustHex("#16a34a")
	asia         = mustHex("#22c55e")
	australia    = mustHex("#dc2626")
	nightOcean   = mustHex("#020617")
	nightLand    = mustHex("#111827")
	cityGlow     = mustHex("#fde68a")
	neutralGray  = mustHex("#808080")
)

func mustHex(s string) colorful.Color {
	c, err := colorful.Hex(s)
	if err != nil {
		panic(err)
	}
	return c
}

// Synthesizer paints stand-in textures. Seed 0 picks a time-based seed.
type Synthesizer struct {
	Width  int
	Height int
	Seed   int64
	Mask   *Mask
}

func NewSynthesizer(width, height int, seed int64) *Synthesizer {
	if width < 16 {
		width = 16
	}
	if height < 8 {
		height = 8
	}
	return &Synthesizer{Width: width, Height: height, Seed: seed, Mask: EarthMask()}
}

func (s *Synthesizer) rng(slot Slot) *rand.Rand {
	seed := s.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return rand.New(rand.NewSource(seed + int64(slot)*7919))
}

// Draw paints the texture for slot.
func (s *Synthesizer) Draw(slot Slot) *image.NRGBA {
	rng := s.rng(slot)
	switch slot {
	case Day:
		return s.day(rng)
	case Night:
		return s.night(rng)
	case Clouds:
		return s.clouds(rng)
	case Bump:
		return s.gray(rng, 0.18)
	default:
		return s.gray(rng, 0.08)
	}
}

func (s *Synthesizer) uv(x, y int) (u, v, lat, lon float64) {
	u = (float64(x) + 0.5) / float64(s.Width)
	v = (float64(y) + 0.5) / float64(s.Height)
	return u, v, 90 - v*180, u*360 - 180
}

func regionColor(lat, lon float64) colorful.Color {
	switch {
	case lon >= 112 && lon <= 155 && lat <= -10 && lat >= -45:
		return australia
	case lon < -30:
		return americas
	case lon < 60:
		return eurafrica
	default:
		return asia
	}
}

func jitter(c colorful.Color, rng *rand.Rand, amount float64) colorful.Color {
	k := 1 + (rng.Float64()-0.5)*amount
	return colorful.Color{R: c.R * k, G: c.G * k, B: c.B * k}.Clamped()
}

func put(img *image.NRGBA, x, y int, c colorful.Color, alpha float64) {
	r, g, b := c.Clamped().RGB255()
	img.SetNRGBA(x, y, color.NRGBA{R: r, G: g, B: b, A: uint8(math.Round(alpha * 255))})
}

func smoothstep(e0, e1, x float64) float64 {
	t := math.Max(0, math.Min(1, (x-e0)/(e1-e0)))
	return t * t * (3 - 2*t)
}

func (s *Synthesizer) day(rng *rand.Rand) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, s.Width, s.Height))
	for y := 0; y < s.Height; y++ {
		t := float64(y) / float64(s.Height-1)
		// deep at the poles, shallow at the equator
		ocean := oceanDeep.BlendRgb(oceanShallow, 1-math.Abs(2*t-1))
		for x := 0; x < s.Width; x++ {
			u, v, lat, lon := s.uv(x, y)
			c := ocean
			if cov := smoothstep(0.35, 0.65, s.Mask.Coverage(u, v)); cov > 0 {
				c = c.BlendRgb(regionColor(lat, lon), cov)
			}
			if ice := smoothstep(70, 80, math.Abs(lat)); ice > 0 {
				c = c.BlendRgb(iceColor, ice)
			}
			put(img, x, y, jitter(c, rng, 0.08), 1)
		}
	}
	return img
}

func (s *Synthesizer) night(rng *rand.Rand) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, s.Width, s.Height))
	light := make([]float64, s.Width*s.Height)

	for y := 0; y < s.Height; y++ {
		for x := 0; x < s.Width; x++ {
			u, v, _, _ := s.uv(x, y)
			c := nightOcean.BlendRgb(nightLand, s.Mask.Coverage(u, v))
			put(img, x, y, jitter(c, rng, 0.1), 1)
		}
	}

	cities := s.Width * s.Height / 1200
	maxR := math.Max(1.5, float64(s.Width)/400)
	for i := 0; i < cities; i++ {
		u, v := rng.Float64(), 0.15+rng.Float64()*0.6
		if s.Mask.Coverage(u, v) < 0.5 {
			continue
		}
		cx, cy := u*float64(s.Width), v*float64(s.Height)
		radius := maxR * (0.5 + rng.Float64())
		for dy := -int(radius) - 1; dy <= int(radius)+1; dy++ {
			for dx := -int(radius) - 1; dx <= int(radius)+1; dx++ {
				px, py := int(cx)+dx, int(cy)+dy
				if px < 0 || py < 0 || px >= s.Width || py >= s.Height {
					continue
				}
				d := math.Hypot(float64(dx), float64(dy)) / radius
				if d < 1 {
					light[py*s.Width+px] += (1 - d) * (1 - d)
				}
			}
		}
	}

	for y := 0; y < s.Height; y++ {
		for x := 0; x < s.Width; x++ {
			if l := light[y*s.Width+x]; l > 0 {
				base := colorFromNRGBA(img.NRGBAAt(x, y))
				put(img, x, y, base.BlendRgb(cityGlow, math.Min(1, l)), 1)
			}
		}
	}
	return img
}

func (s *Synthesizer) clouds(rng *rand.Rand) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, s.Width, s.Height))
	alpha := make([]float64, s.Width*s.Height)

	blobs := 40 + s.Width/32
	for i := 0; i < blobs; i++ {
		cx := rng.Float64() * float64(s.Width)
		cy := (0.1 + rng.Float64()*0.8) * float64(s.Height)
		rx := float64(s.Width) * (0.02 + rng.Float64()*0.05)
		ry := rx * (0.3 + rng.Float64()*0.4)
		for y := int(cy - ry); y <= int(cy+ry); y++ {
			if y < 0 || y >= s.Height {
				continue
			}
			for x := int(cx - rx); x <= int(cx+rx); x++ {
				dx, dy := (float64(x)-cx)/rx, (float64(y)-cy)/ry
				d := dx*dx + dy*dy
				if d >= 1 {
					continue
				}
				wx := ((x % s.Width) + s.Width) % s.Width
				alpha[y*s.Width+wx] += 0.6 * (1 - d)
			}
		}
	}

	white := colorful.Color{R: 1, G: 1, B: 1}
	for y := 0; y < s.Height; y++ {
		for x := 0; x < s.Width; x++ {
			put(img, x, y, white, math.Min(0.8, alpha[y*s.Width+x]))
		}
	}
	return img
}

func (s *Synthesizer) gray(rng *rand.Rand, amount float64) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, s.Width, s.Height))
	for y := 0; y < s.Height; y++ {
		for x := 0; x < s.Width; x++ {
			put(img, x, y, jitter(neutralGray, rng, amount), 1)
		}
	}
	return img
}

func colorFromNRGBA(c color.NRGBA) colorful.Color {
	return colorful.Color{R: float64(c.R) / 255, G: float64(c.G) / 255, B: float64(c.B) / 255}
}
