package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"sentiment-globe/internal/logger"
	"sentiment-globe/internal/store"
)

func openSeeded(t *testing.T) *Backend {
	t.Helper()
	b, err := Open(filepath.Join(t.TempDir(), "db", "sentiglobe.db"), 20*time.Millisecond, logger.Discard())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { b.Close() })
	if err := b.Seed(context.Background(), store.Offline()); err != nil {
		t.Fatal(err)
	}
	return b
}

func TestSeedAndRead(t *testing.T) {
	b := openSeeded(t)
	ctx := context.Background()

	rows, err := b.Countries(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 62 {
		t.Fatalf("countries = %d", len(rows))
	}

	news, err := b.News(ctx, 1)
	if err != nil || len(news) != 1 {
		t.Fatalf("news = %v, %v", news, err)
	}
	if ts, ok := news[0].Time("timestamp"); !ok || !ts.Equal(time.Date(2025, 10, 2, 10, 30, 0, 0, time.UTC)) {
		t.Errorf("timestamp = %v", news[0]["timestamp"])
	}

	sent, err := b.Sentiment(ctx)
	if err != nil || len(sent) != 3 {
		t.Fatalf("sentiment = %v, %v", sent, err)
	}
}

func TestSeedIsRepeatable(t *testing.T) {
	b := openSeeded(t)
	if err := b.Seed(context.Background(), store.Offline()); err != nil {
		t.Fatal(err)
	}
	rows, _ := b.Countries(context.Background())
	if len(rows) != 62 {
		t.Errorf("countries after reseed = %d", len(rows))
	}
}

func TestServiceOverSQLite(t *testing.T) {
	b := openSeeded(t)
	ctx := context.Background()
	if err := b.SetNewsCount(ctx, 6, 12); err != nil {
		t.Fatal(err)
	}
	svc := store.NewService(b, logger.Discard(), store.DefaultOptions())

	countries, origin := svc.FetchCountries(ctx)
	if origin != store.Live {
		t.Fatalf("origin = %v", origin)
	}
	for _, c := range countries {
		if c.ID == 6 && (c.NewsCount != 12 || c.Sentiment.Label() != "negative") {
			t.Errorf("country 6 = %+v", c)
		}
	}

	if err := b.SetNewsCount(ctx, 9999, 1); err == nil {
		t.Error("expected error for missing country")
	}
}

func TestWatchSeesWrites(t *testing.T) {
	b := openSeeded(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := b.Watch(ctx, store.TableNews)
	if err != nil {
		t.Fatal(err)
	}
	id, err := b.AddNews(ctx, store.NewsItem{CountryID: 44, City: "Beijing", Title: "Rail link opens"})
	if err != nil {
		t.Fatal(err)
	}
	if id <= 1 {
		t.Errorf("id = %d", id)
	}

	select {
	case c := <-ch:
		if c.Table != store.TableNews || !c.Touches(1) {
			t.Errorf("change = %+v", c)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("write not noticed")
	}

	cancel()
	select {
	case _, ok := <-ch:
		if ok {
			// a second poll result may still be buffered
			<-ch
		}
	case <-time.After(2 * time.Second):
		t.Fatal("channel not closed after cancel")
	}
}
