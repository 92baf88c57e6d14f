package globe

import (
	"math"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/lucasb-eyer/go-colorful"

	"sentiment-globe/internal/canvas"
	"sentiment-globe/internal/geo"
	"sentiment-globe/internal/sentiment"
	"sentiment-globe/internal/texture"
	"sentiment-globe/internal/theme"
)

var (
	loadingSphere = colorful.Color{R: 0x1a / 255.0, G: 0x54 / 255.0, B: 0x90 / 255.0}
	atmosphere    = colorful.Color{R: 0x4a / 255.0, G: 0x90 / 255.0, B: 0xe2 / 255.0}
	cloudWhite    = colorful.Color{R: 1, G: 1, B: 1}
)

// LoadingText is drawn over the plain sphere until every texture slot has resolved.
const LoadingText = "Loading Earth..."

// Subsolar returns the point where the sun is overhead at t.
func Subsolar(t time.Time) (lat, lon float64) {
	t = t.UTC()
	day := float64(t.YearDay())
	lat = 23.44 * math.Sin(2*math.Pi*(day-81)/365)
	hours := float64(t.Hour()) + float64(t.Minute())/60 + float64(t.Second())/3600
	lon = geo.NormalizeLon(-15 * (hours - 12))
	return lat, lon
}

// lightDir is the view-space direction towards the light.
func (v *View) lightDir() geo.Vec3 {
	if v.opts.LightFollow {
		return geo.Vec3{X: -0.4, Y: 0.35, Z: 0.85}.Normalize()
	}
	lat, lon := Subsolar(v.opts.Now())
	return v.camera.View(geo.Project(lat, lon, 1))
}

// Render draws the globe into c, sized to fill it.
func (v *View) Render(c *canvas.Canvas, pal *theme.Palette) {
	v.SetSize(c.Width, c.Height)
	c.Fill(pal.Style())
	v.hits = make(map[[2]int]int64)
	if c.Width == 0 || c.Height == 0 || v.disposed {
		return
	}

	cx := float64(c.Width) / 2
	cy := float64(c.Height) / 2
	r := v.screenRadius()
	if r < 1 {
		r = 1
	}

	hasDay := v.textures.State(texture.Day) != texture.Loading
	light := v.lightDir()
	mask := texture.EarthMask()

	rim := r * AtmosphereScale
	if rim < r+1 {
		rim = r + 1
	}

	for y := 0; y < c.Height; y++ {
		for x := 0; x < c.Width; x++ {
			dx := (float64(x) + 0.5 - cx) / r
			dy := (cy - float64(y) - 0.5) * v.opts.AspectRatio / r
			d2 := dx*dx + dy*dy

			if d2 > 1 {
				if v.opts.Atmosphere && hasDay {
					dist := math.Sqrt(d2) * r
					if dist <= rim {
						glow := 1 - (dist-r)/(rim-r)
						bg := blend(pal.Background, atmosphere, 0.6*glow)
						c.Set(x, y, ' ', tcell.StyleDefault.Background(bg))
					}
				}
				continue
			}

			n := geo.Vec3{X: dx, Y: dy, Z: math.Sqrt(1 - d2)}
			w := v.camera.World(n)
			lat, lon := geo.Unproject(w)

			if !hasDay {
				shade := 0.55 + 0.45*n.Z
				col := loadingSphere
				col = colorful.Color{R: col.R * shade, G: col.G * shade, B: col.B * shade}
				c.Set(x, y, ' ', tcell.StyleDefault.Background(sentiment.ToTCell(col)))
				continue
			}

			col, _, _ := v.textures.Sample(texture.Day, lat, lon)
			intensity := 1.0
			if v.opts.Lighting {
				diffuse := n.Dot(light)
				intensity = 0.25 + 0.75*math.Max(0, diffuse)
				if night, _, ok := v.textures.Sample(texture.Night, lat, lon); ok {
					k := smoothstep(-0.15, 0.2, diffuse)
					lit := colorful.Color{R: col.R * intensity, G: col.G * intensity, B: col.B * intensity}
					col = night.BlendRgb(lit, k)
				} else {
					col = colorful.Color{R: col.R * intensity, G: col.G * intensity, B: col.B * intensity}
				}
			}

			if v.opts.Clouds {
				// sample the cloud shell where the ray meets it
				cw := v.camera.World(geo.Vec3{X: dx / CloudScale, Y: dy / CloudScale, Z: math.Sqrt(math.Max(0, 1-d2/(CloudScale*CloudScale)))})
				clat, clon := geo.Unproject(cw)
				if cloud, alpha, ok := v.textures.Sample(texture.Clouds, clat, clon); ok && alpha > 0 {
					lum := (cloud.R + cloud.G + cloud.B) / 3
					col = col.BlendRgb(cloudWhite, math.Min(1, alpha*lum*0.6*intensity+0.05*alpha))
				}
			}

			if v.opts.Atmosphere {
				fresnel := math.Pow(1-n.Z, 3)
				col = col.BlendRgb(atmosphere, 0.5*fresnel)
			}

			u, tv := geo.Equirect(lat, lon)
			density := mask.Coverage(u, tv) * intensity
			glyph := v.opts.Charset.Glyph(density)
			fg := col.BlendRgb(cloudWhite, 0.35)
			c.Set(x, y, glyph, tcell.StyleDefault.
				Background(sentiment.ToTCell(col.Clamped())).
				Foreground(sentiment.ToTCell(fg.Clamped())))
		}
	}

	for _, p := range v.visibleMarkers(cx, cy, r) {
		if !c.In(p.x, p.y) {
			continue
		}
		selected := p.country.ID == v.selected
		_, bg, _ := c.Get(p.x, p.y).Style.Decompose()
		style := tcell.StyleDefault.
			Foreground(p.country.Sentiment.TCell()).
			Background(bg).
			Bold(true)
		if p.country.ID == v.hover {
			style = style.Reverse(true)
		}
		c.Set(p.x, p.y, v.opts.Charset.Marker(selected), style)
		v.hits[[2]int{p.x, p.y}] = p.country.ID
	}

	if !v.textures.Ready() {
		x := int(cx) - len(LoadingText)/2
		c.Text(x, int(cy), LoadingText, tcell.StyleDefault.Foreground(tcell.ColorWhite).Background(sentiment.ToTCell(loadingSphere)))
	}
}

func blend(base tcell.Color, over colorful.Color, t float64) tcell.Color {
	r, g, b := base.RGB()
	if r < 0 {
		return sentiment.ToTCell(colorful.Color{}.BlendRgb(over, t))
	}
	bc := colorful.Color{R: float64(r) / 255, G: float64(g) / 255, B: float64(b) / 255}
	return sentiment.ToTCell(bc.BlendRgb(over, t))
}

func smoothstep(e0, e1, x float64) float64 {
	t := math.Max(0, math.Min(1, (x-e0)/(e1-e0)))
	return t * t * (3 - 2*t)
}
