package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"sentiment-globe/internal/config"
	"sentiment-globe/internal/logger"
	"sentiment-globe/internal/sentiment"
	"sentiment-globe/internal/store"
	"sentiment-globe/internal/store/memory"
	"sentiment-globe/internal/worldmap"
)

func newServer(t *testing.T, backend store.Backend) *Server {
	t.Helper()
	cfg := config.Default()
	cfg.Map.BoundariesURL = ""
	cfg.Textures = config.Textures{Width: 64, Height: 32}
	svc := store.NewService(backend, logger.Discard(), store.DefaultOptions())
	t.Cleanup(func() { svc.Close() })
	return New(svc, cfg, nil, logger.Discard())
}

func get(t *testing.T, s *Server, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body)
	}
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatal(err)
	}
}

func TestRootRedirects(t *testing.T) {
	rec := get(t, newServer(t, memory.New(store.Offline())), "/")
	if rec.Code != http.StatusFound || rec.Header().Get("Location") != "/2d" {
		t.Errorf("GET / = %d %q", rec.Code, rec.Header().Get("Location"))
	}
}

func TestCountries(t *testing.T) {
	s := newServer(t, memory.New(store.Offline()))
	var body struct {
		Origin    string          `json:"origin"`
		Countries []store.Country `json:"countries"`
	}
	decode(t, get(t, s, "/api/countries"), &body)
	if body.Origin != "live" || len(body.Countries) == 0 {
		t.Errorf("origin %q, %d countries", body.Origin, len(body.Countries))
	}
}

func TestFallbackOrigin(t *testing.T) {
	s := newServer(t, store.Unavailable{})
	var body struct {
		Origin string `json:"origin"`
	}
	decode(t, get(t, s, "/api/sentiment"), &body)
	if body.Origin != "fallback" {
		t.Errorf("origin = %q", body.Origin)
	}
}

func TestNews(t *testing.T) {
	s := newServer(t, memory.New(store.Offline()))
	var countries struct {
		Countries []store.Country `json:"countries"`
	}
	decode(t, get(t, s, "/api/countries"), &countries)

	for _, c := range countries.Countries {
		rec := get(t, s, "/api/countries/"+strconv.FormatInt(c.ID, 10)+"/news")
		var body struct {
			Origin    string                      `json:"origin"`
			CountryID int64                       `json:"countryId"`
			Total     int                         `json:"total"`
			Cities    []string                    `json:"cities"`
			News      map[string][]store.NewsItem `json:"news"`
		}
		decode(t, rec, &body)
		if body.CountryID != c.ID || len(body.Cities) != len(body.News) {
			t.Fatalf("news for %s: %+v", c.Name, body)
		}
		if body.Total > 0 {
			return
		}
	}
	t.Error("no country has news")
}

func TestNewsBadID(t *testing.T) {
	s := newServer(t, memory.New(store.Offline()))
	for _, id := range []string{"abc", "0", "-3"} {
		if rec := get(t, s, "/api/countries/"+id+"/news"); rec.Code != http.StatusBadRequest {
			t.Errorf("id %q: status %d", id, rec.Code)
		}
	}
}

func TestLegend(t *testing.T) {
	var body struct {
		Legend []sentiment.LegendEntry `json:"legend"`
	}
	decode(t, get(t, newServer(t, memory.New(store.Offline())), "/api/legend"), &body)
	if diff := cmp.Diff(sentiment.Legend(), body.Legend); diff != "" {
		t.Errorf("legend (-want +got):\n%s", diff)
	}
}

func TestHealth(t *testing.T) {
	var body struct {
		Status  string `json:"status"`
		Backend string `json:"backend"`
	}
	decode(t, get(t, newServer(t, memory.New(store.Offline())), "/healthz"), &body)
	if body.Status != "ok" || body.Backend != "memory" {
		t.Errorf("health = %+v", body)
	}
}

func TestRenderMap(t *testing.T) {
	s := newServer(t, memory.New(store.Offline()))
	rec := get(t, s, "/2d?w=80&h=24")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), worldmap.LoadingText) {
		t.Fatalf("cold render: %d\n%s", rec.Code, rec.Body)
	}

	s.Warm(context.Background())
	rec = get(t, s, "/2d?w=80&h=24&theme=dark")
	if rec.Code != http.StatusOK || strings.Contains(rec.Body.String(), worldmap.LoadingText) {
		t.Fatalf("warm render: %d\n%s", rec.Code, rec.Body)
	}
	if lines := strings.Count(rec.Body.String(), "\n"); lines != 24 {
		t.Errorf("%d lines", lines)
	}
	if rec.Header().Get("X-Data-Origin") != "live" {
		t.Errorf("origin header = %q", rec.Header().Get("X-Data-Origin"))
	}
}

func TestRenderGlobe(t *testing.T) {
	s := newServer(t, memory.New(store.Offline()))
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s.Warm(ctx)

	rec := get(t, s, "/3d?w=60&h=30&yaw=10&pitch=-20&distance=12")
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body)
	}
	if strings.TrimSpace(rec.Body.String()) == "" {
		t.Error("empty globe")
	}
	if loaded, fallback := s.textures.Counts(); loaded+fallback != 5 {
		t.Errorf("textures %d loaded, %d fallback", loaded, fallback)
	}
}

func TestRenderRejectsBadQuery(t *testing.T) {
	s := newServer(t, memory.New(store.Offline()))
	for _, target := range []string{"/2d?w=0", "/2d?h=9999", "/2d?theme=sepia", "/3d?yaw=east", "/3d?charset=emoji",
		"/3d?distance=NaN", "/3d?yaw=Inf", "/3d?pitch=-Inf"} {
		if rec := get(t, s, target); rec.Code != http.StatusBadRequest {
			t.Errorf("%s: status %d", target, rec.Code)
		}
	}
}
