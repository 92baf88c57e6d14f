package server

import (
	"math"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"sentiment-globe/internal/canvas"
	"sentiment-globe/internal/globe"
	"sentiment-globe/internal/theme"
	"sentiment-globe/internal/worldmap"
)

const (
	defaultWidth  = 120
	defaultHeight = 40
	maxCells      = 400
)

type viewQuery struct {
	width, height int
	mode          theme.Mode
}

func floatQuery(c *gin.Context, key string, def float64) (float64, bool) {
	raw, ok := c.GetQuery(key)
	if !ok {
		return def, true
	}
	v, err := strconv.ParseFloat(raw, 64)
	return v, err == nil && !math.IsNaN(v) && !math.IsInf(v, 0)
}

func intQuery(c *gin.Context, key string, def int) (int, bool) {
	raw, ok := c.GetQuery(key)
	if !ok {
		return def, true
	}
	v, err := strconv.Atoi(raw)
	return v, err == nil && v > 0 && v <= maxCells
}

// parseView reads w, h and theme. def is the theme when none is given.
func parseView(c *gin.Context, def theme.Mode) (viewQuery, bool) {
	w, okW := intQuery(c, "w", defaultWidth)
	h, okH := intQuery(c, "h", defaultHeight)
	if !okW || !okH {
		c.String(http.StatusBadRequest, "w and h must be between 1 and %d\n", maxCells)
		return viewQuery{}, false
	}
	mode := def
	if raw := c.Query("theme"); raw != "" {
		m, err := theme.ParseMode(raw)
		if err != nil {
			c.String(http.StatusBadRequest, "%v\n", err)
			return viewQuery{}, false
		}
		mode = m
	}
	return viewQuery{width: w, height: h, mode: mode}, true
}

// renderMap answers with a text rendering of the 2D map.
func (s *Server) renderMap(c *gin.Context) {
	q, ok := parseView(c, theme.Light)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	mc := s.cfg.Map

	v := worldmap.New(ctx, worldmap.Options{
		Lat:         mc.CenterLat,
		Lon:         mc.CenterLon,
		Zoom:        mc.Zoom,
		AspectRatio: s.cfg.Display.AspectRatio,
	}, q.mode, s.log)
	defer v.Dispose()

	s.mu.RLock()
	features, sample, warmed := s.boundaries, s.sample, s.warmed
	s.mu.RUnlock()
	if warmed {
		v.SetFeatures(features, sample)
	}
	sm, origin := s.svc.FetchSentimentMap(ctx)
	v.SetSentiment(sm)

	out := canvas.New(q.width, q.height)
	v.Render(out, theme.PaletteFor(q.mode))
	c.Header("X-Data-Origin", origin.String())
	c.Data(http.StatusOK, "text/plain; charset=utf-8", []byte(out.String()))
}

// renderGlobe answers with a text rendering of the 3D globe.
func (s *Server) renderGlobe(c *gin.Context) {
	def := theme.Dark
	if m, err := theme.ParseMode(s.cfg.Globe.Theme); err == nil {
		def = m
	}
	q, ok := parseView(c, def)
	if !ok {
		return
	}
	yaw, okYaw := floatQuery(c, "yaw", -90)
	pitch, okPitch := floatQuery(c, "pitch", 20)
	distance, okDist := floatQuery(c, "distance", s.cfg.Globe.Distance)
	if !okYaw || !okPitch || !okDist {
		c.String(http.StatusBadRequest, "yaw, pitch and distance must be finite numbers\n")
		return
	}
	charset, err := globe.ParseCharset(c.DefaultQuery("charset", s.cfg.Display.Charset))
	if err != nil {
		c.String(http.StatusBadRequest, "%v\n", err)
		return
	}

	g := s.cfg.Globe
	v := globe.New(globe.Options{
		AspectRatio: s.cfg.Display.AspectRatio,
		Charset:     charset,
		Distance:    distance,
		MinDistance: g.MinDistance,
		MaxDistance: g.MaxDistance,
		Lighting:    g.Lighting,
		LightFollow: g.LightFollow,
		Clouds:      g.Clouds,
		Atmosphere:  g.Atmosphere,
	}, s.textures)
	defer v.Dispose()
	v.SetCamera(yaw, pitch)

	countries, origin := s.svc.FetchCountries(c.Request.Context())
	v.SetCountries(countries)

	out := canvas.New(q.width, q.height)
	v.Render(out, theme.PaletteFor(q.mode))
	c.Header("X-Data-Origin", origin.String())
	c.Data(http.StatusOK, "text/plain; charset=utf-8", []byte(out.String()))
}
