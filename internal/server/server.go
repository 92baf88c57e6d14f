// Package server exposes the data layer and text renderings of both views over HTTP.
package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"sentiment-globe/internal/config"
	"sentiment-globe/internal/sentiment"
	"sentiment-globe/internal/store"
	"sentiment-globe/internal/texture"
	"sentiment-globe/internal/worldmap"
)

type Server struct {
	svc    *store.Service
	cfg    *config.Config
	log    logrus.FieldLogger
	client *http.Client
	engine *gin.Engine

	textures *texture.Set

	mu         sync.RWMutex
	boundaries []worldmap.Feature
	sample     bool
	warmed     bool
}

func New(svc *store.Service, cfg *config.Config, client *http.Client, log logrus.FieldLogger) *Server {
	if client == nil {
		client = http.DefaultClient
	}
	gin.SetMode(gin.ReleaseMode)
	s := &Server{
		svc:      svc,
		cfg:      cfg,
		log:      log,
		client:   client,
		engine:   gin.New(),
		textures: texture.NewSet(),
	}
	s.engine.Use(gin.Recovery(), requestLogger(log))
	s.routes()
	return s
}

func (s *Server) routes() {
	r := s.engine
	r.GET("/", func(c *gin.Context) {
		c.Redirect(http.StatusFound, "/2d")
	})
	r.GET("/2d", s.renderMap)
	r.GET("/3d", s.renderGlobe)
	r.GET("/healthz", s.health)

	api := r.Group("/api")
	{
		api.GET("/countries", s.countries)
		api.GET("/countries/:id/news", s.news)
		api.GET("/sentiment", s.sentimentMap)
		api.GET("/legend", legend)
	}
}

func (s *Server) Handler() http.Handler { return s.engine }

// requestLogger logs one line per request.
func requestLogger(log logrus.FieldLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.WithFields(logrus.Fields{
			"method": c.Request.Method,
			"path":   c.Request.URL.Path,
			"status": c.Writer.Status(),
			"took":   time.Since(start).Round(time.Microsecond),
		}).Debug("request")
	}
}

// Warm loads the globe textures and the country boundaries. Renders before it
// finishes show the loading states.
func (s *Server) Warm(ctx context.Context) {
	t := s.cfg.Textures
	loader := texture.NewLoader(map[texture.Slot]string{
		texture.Day:      t.Day,
		texture.Night:    t.Night,
		texture.Specular: t.Specular,
		texture.Bump:     t.Bump,
		texture.Clouds:   t.Clouds,
	}, t.Timeout.Duration, texture.NewSynthesizer(t.Width, t.Height, t.Seed), s.log)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		loader.LoadAll(ctx, s.textures, nil)
	}()
	go func() {
		defer wg.Done()
		features, sample := worldmap.LoadBoundaries(ctx, s.client, s.cfg.Map.BoundariesURL, s.log)
		s.mu.Lock()
		s.boundaries, s.sample, s.warmed = features, sample, true
		s.mu.Unlock()
	}()
	wg.Wait()
}

// Run serves on addr until ctx is done, warming the caches in the background.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go s.Warm(ctx)

	errc := make(chan error, 1)
	go func() {
		s.log.WithField("addr", addr).Info("http server listening")
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) health(c *gin.Context) {
	s.mu.RLock()
	warmed := s.warmed
	s.mu.RUnlock()
	loaded, fallback := s.textures.Counts()
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"backend": s.svc.BackendName(),
		"textures": gin.H{
			"loaded":   loaded,
			"fallback": fallback,
		},
		"boundaries": warmed,
	})
}

func (s *Server) countries(c *gin.Context) {
	countries, origin := s.svc.FetchCountries(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{
		"origin":    origin,
		"countries": countries,
	})
}

func (s *Server) news(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid country id"})
		return
	}
	news, origin := s.svc.FetchNewsForCountry(c.Request.Context(), id)
	c.JSON(http.StatusOK, gin.H{
		"origin":    origin,
		"countryId": id,
		"total":     news.Total(),
		"cities":    news.Cities(),
		"news":      news,
	})
}

func (s *Server) sentimentMap(c *gin.Context) {
	sm, origin := s.svc.FetchSentimentMap(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{
		"origin":    origin,
		"sentiment": sm,
	})
}

func legend(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"legend": sentiment.Legend()})
}
