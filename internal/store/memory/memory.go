// Package memory is a Backend over an in-process copy of the offline dataset. With the
// storm enabled it keeps mutating article counts and adding news so the live views
// have something to react to.
package memory

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"sentiment-globe/internal/store"
)

var (
	stormCities     = []string{"Capital", "Harbor City", "Northgate", "Riverside", "Old Town"}
	stormCategories = []string{"Technology", "Environment", "Entertainment", "Finance", "Politics", "Sports"}
	stormSeverities = []string{"high", "medium", "low"}
	stormHeadlines  = []string{
		"Markets react to overnight announcement",
		"Local elections draw record turnout",
		"Heatwave prompts public health advisory",
		"Startup funding round breaks regional record",
		"National team advances to the final",
		"Film festival opens with premiere",
	}
)

type Backend struct {
	mu       sync.RWMutex
	data     *store.Dataset
	watchers map[store.Table][]chan store.Change
	nextNews int64
	rng      *rand.Rand

	stormRate int
	stopStorm chan struct{}
	stormOnce sync.Once
	closed    bool
}

// New serves a private copy of data. Pass store.Offline() for the built-in dataset.
func New(data *store.Dataset) *Backend {
	b := &Backend{
		data:     data.Clone(),
		watchers: make(map[store.Table][]chan store.Change),
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, r := range b.data.News {
		if id, ok := r.Int("id"); ok && id > b.nextNews {
			b.nextNews = id
		}
	}
	return b
}

func (b *Backend) Name() string { return "memory" }

func (b *Backend) Countries(context.Context) ([]store.Row, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.data.Clone().Countries, nil
}

func (b *Backend) News(_ context.Context, countryID int64) ([]store.Row, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.data.NewsFor(countryID), nil
}

func (b *Backend) Sentiment(context.Context) ([]store.Row, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.data.Clone().Sentiment, nil
}

func (b *Backend) Watch(ctx context.Context, table store.Table) (<-chan store.Change, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, fmt.Errorf("memory backend closed")
	}

	ch := make(chan store.Change, 16)
	b.watchers[table] = append(b.watchers[table], ch)

	go func() {
		<-ctx.Done()
		b.unwatch(table, ch)
	}()
	return ch, nil
}

func (b *Backend) unwatch(table store.Table, ch chan store.Change) {
	b.mu.Lock()
	defer b.mu.Unlock()
	list := b.watchers[table]
	for i, c := range list {
		if c == ch {
			b.watchers[table] = append(list[:i], list[i+1:]...)
			close(ch)
			return
		}
	}
}

// publish must be called with b.mu held. Slow watchers miss changes rather than
// blocking writers; the next change still tells them to refetch.
func (b *Backend) publish(c store.Change) {
	for _, ch := range b.watchers[c.Table] {
		select {
		case ch <- c:
		default:
		}
	}
}

// SetNewsCount updates a country's article count and notifies watchers.
func (b *Backend) SetNewsCount(countryID int64, count int) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, r := range b.data.Countries {
		if id, _ := r.Int("id"); id == countryID {
			r["news_count"] = count
			r["updated_at"] = time.Now().UTC().Format(time.RFC3339)
			b.publish(store.Change{Table: store.TableCountries, Op: "UPDATE", Rows: []store.Row{r.Clone()}})
			return true
		}
	}
	return false
}

// AddNews appends a news row and notifies watchers. id and timestamp are filled in when missing.
func (b *Backend) AddNews(row store.Row) store.Row {
	b.mu.Lock()
	defer b.mu.Unlock()
	row = row.Clone()
	if _, ok := row.Int("id"); !ok {
		b.nextNews++
		row["id"] = b.nextNews
	}
	if _, ok := row["timestamp"]; !ok {
		row["timestamp"] = time.Now().UTC().Format(time.RFC3339)
	}
	b.data.News = append(b.data.News, row)
	b.publish(store.Change{Table: store.TableNews, Op: "INSERT", Rows: []store.Row{row.Clone()}})
	return row
}

// StartStorm begins random mutations at rate changes per second until Close.
func (b *Backend) StartStorm(rate int) {
	if rate < 1 {
		rate = 1
	}
	b.stormOnce.Do(func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if b.closed {
			return
		}
		b.stormRate = rate
		b.stopStorm = make(chan struct{})
		go b.storm()
	})
}

func (b *Backend) storm() {
	ticker := time.NewTicker(time.Second / time.Duration(b.stormRate))
	defer ticker.Stop()

	for {
		select {
		case <-b.stopStorm:
			return
		case <-ticker.C:
			b.stormStep()
		}
	}
}

func (b *Backend) stormStep() {
	b.mu.RLock()
	n := len(b.data.Countries)
	var row store.Row
	if n > 0 {
		row = b.data.Countries[b.rng.Intn(n)].Clone()
	}
	b.mu.RUnlock()
	if row == nil {
		return
	}

	id, _ := row.Int("id")
	count, _ := row.Int("news_count")

	if b.rng.Intn(3) == 0 {
		b.AddNews(store.Row{
			"country_id": id,
			"city":       stormCities[b.rng.Intn(len(stormCities))],
			"title":      stormHeadlines[b.rng.Intn(len(stormHeadlines))],
			"summary":    fmt.Sprintf("Developing story from %s.", row.String("name")),
			"category":   stormCategories[b.rng.Intn(len(stormCategories))],
			"severity":   stormSeverities[b.rng.Intn(len(stormSeverities))],
		})
		b.SetNewsCount(id, int(count)+1)
		return
	}

	next := int(count) + b.rng.Intn(7) - 3
	if next < 0 {
		next = 0
	}
	b.SetNewsCount(id, next)
}

func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	if b.stopStorm != nil {
		close(b.stopStorm)
	}
	for table, list := range b.watchers {
		for _, ch := range list {
			close(ch)
		}
		delete(b.watchers, table)
	}
	return nil
}
