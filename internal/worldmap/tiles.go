package worldmap

import (
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/lucasb-eyer/go-colorful"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"

	"sentiment-globe/internal/texture"
)

const (
	maxTileBytes     = 4 << 20
	tileFetchers     = 4
	tileTimeout      = 10 * time.Second
	defaultTileCache = 256
)

type tileKey struct {
	Z, X, Y int
}

func (k tileKey) String() string { return fmt.Sprintf("%d/%d/%d", k.Z, k.X, k.Y) }

// tileCache is a fixed-size LRU of decoded tiles.
type tileCache struct {
	mu    sync.RWMutex
	tiles map[tileKey]image.Image
	order []tileKey
	max   int
}

func newTileCache(max int) *tileCache {
	if max <= 0 {
		max = defaultTileCache
	}
	return &tileCache{
		tiles: make(map[tileKey]image.Image),
		order: make([]tileKey, 0),
		max:   max,
	}
}

func (c *tileCache) get(k tileKey) (image.Image, bool) {
	c.mu.RLock()
	img, ok := c.tiles[k]
	c.mu.RUnlock()
	if ok {
		c.moveToFront(k)
	}
	return img, ok
}

func (c *tileCache) put(k tileKey, img image.Image) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.tiles[k]; !exists && len(c.tiles) >= c.max {
		c.evictOldest()
	}
	c.tiles[k] = img
	c.remove(k)
	c.order = append([]tileKey{k}, c.order...)
}

func (c *tileCache) moveToFront(k tileKey) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.tiles[k]; !ok {
		return
	}
	c.remove(k)
	c.order = append([]tileKey{k}, c.order...)
}

func (c *tileCache) remove(k tileKey) {
	for i, key := range c.order {
		if key == k {
			c.order = append(c.order[:i], c.order[i+1:]...)
			return
		}
	}
}

func (c *tileCache) evictOldest() {
	if len(c.order) == 0 {
		return
	}
	oldest := c.order[len(c.order)-1]
	delete(c.tiles, oldest)
	c.order = c.order[:len(c.order)-1]
}

func (c *tileCache) stats() (int, int) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.tiles), c.max
}

// TileLayer is one raster basemap. Tiles are fetched in the background while the
// layer is attached and sampled as cell backgrounds.
type TileLayer struct {
	Name       string
	template   string
	subdomains string
	client     *http.Client
	log        logrus.FieldLogger
	cache      *tileCache
	sem        *semaphore.Weighted

	mu       sync.Mutex
	attached bool
	cancel   context.CancelFunc
	ctx      context.Context
	pending  map[tileKey]bool
	failed   map[tileKey]bool
	onLoad   func()
}

// NewTileLayer builds a layer for a {s}/{z}/{x}/{y} URL template. An empty template
// never fetches.
func NewTileLayer(name, template, subdomains string, cacheSize int, client *http.Client, log logrus.FieldLogger) *TileLayer {
	if client == nil {
		client = &http.Client{Timeout: tileTimeout}
	}
	return &TileLayer{
		Name:       name,
		template:   template,
		subdomains: subdomains,
		client:     client,
		log:        log.WithField("layer", name),
		cache:      newTileCache(cacheSize),
		sem:        semaphore.NewWeighted(tileFetchers),
		pending:    make(map[tileKey]bool),
		failed:     make(map[tileKey]bool),
	}
}

// URL expands the template for k.
func (l *TileLayer) URL(k tileKey) string {
	s := ""
	if n := len(l.subdomains); n > 0 {
		s = string(l.subdomains[(k.X+k.Y)%n])
	}
	r := strings.NewReplacer(
		"{s}", s,
		"{z}", strconv.Itoa(k.Z),
		"{x}", strconv.Itoa(k.X),
		"{y}", strconv.Itoa(k.Y),
		"{r}", "",
	)
	return r.Replace(l.template)
}

// Attach starts fetching on demand. onLoad is called from a fetch goroutine each
// time a tile lands in the cache.
func (l *TileLayer) Attach(ctx context.Context, onLoad func()) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.attached {
		return
	}
	l.ctx, l.cancel = context.WithCancel(ctx)
	l.onLoad = onLoad
	l.attached = true
	l.failed = make(map[tileKey]bool)
}

// Detach cancels in-flight fetches. Cached tiles are kept for the next attach.
func (l *TileLayer) Detach() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.attached {
		return
	}
	l.cancel()
	l.attached = false
	l.onLoad = nil
	l.pending = make(map[tileKey]bool)
}

func (l *TileLayer) Attached() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.attached
}

// Sample returns the basemap color at world pixel (px, py) of zoom. ok is false when
// the tile is not cached yet; a fetch is queued if the layer is attached.
func (l *TileLayer) Sample(zoom int, px, py float64) (colorful.Color, bool) {
	n := 1 << zoom
	tx := int(math.Floor(px / TileSize))
	ty := int(math.Floor(py / TileSize))
	if ty < 0 || ty >= n {
		return colorful.Color{}, false
	}
	k := tileKey{Z: zoom, X: ((tx % n) + n) % n, Y: ty}

	img, ok := l.cache.get(k)
	if !ok {
		l.request(k)
		return colorful.Color{}, false
	}
	u := (px - float64(tx)*TileSize) / TileSize
	v := (py - float64(ty)*TileSize) / TileSize
	c, _ := texture.SampleUV(img, u, v)
	return c, true
}

func (l *TileLayer) request(k tileKey) {
	if l.template == "" {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.attached || l.pending[k] || l.failed[k] {
		return
	}
	l.pending[k] = true
	go l.fetch(l.ctx, k)
}

func (l *TileLayer) fetch(ctx context.Context, k tileKey) {
	log := l.log.WithField("tile", k)

	if err := l.sem.Acquire(ctx, 1); err != nil {
		l.done(ctx, k, false)
		return
	}
	defer l.sem.Release(1)

	img, err := l.get(ctx, l.URL(k))
	if err != nil {
		if ctx.Err() == nil {
			log.WithError(err).Debug("tile fetch failed")
		}
		l.done(ctx, k, false)
		return
	}
	l.cache.put(k, img)
	l.done(ctx, k, true)
}

func (l *TileLayer) done(ctx context.Context, k tileKey, ok bool) {
	l.mu.Lock()
	delete(l.pending, k)
	if !ok && l.attached && ctx.Err() == nil {
		l.failed[k] = true
	}
	onLoad := l.onLoad
	attached := l.attached
	l.mu.Unlock()

	if ok && attached && onLoad != nil {
		onLoad()
	}
}

func (l *TileLayer) get(ctx context.Context, url string) (image.Image, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	resp, err := l.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("get %s: status %d", url, resp.StatusCode)
	}
	img, _, err := image.Decode(io.LimitReader(resp.Body, maxTileBytes))
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", url, err)
	}
	return img, nil
}

// CacheStats returns the number of cached tiles and the cache capacity.
func (l *TileLayer) CacheStats() (int, int) { return l.cache.stats() }
