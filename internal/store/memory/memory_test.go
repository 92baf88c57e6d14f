package memory

import (
	"context"
	"testing"
	"time"

	"sentiment-globe/internal/logger"
	"sentiment-globe/internal/store"
)

func TestServesOfflineDataset(t *testing.T) {
	b := New(store.Offline())
	defer b.Close()

	rows, err := b.Countries(context.Background())
	if err != nil || len(rows) != 62 {
		t.Fatalf("countries = %d, %v", len(rows), err)
	}
	news, _ := b.News(context.Background(), 1)
	if len(news) != 1 {
		t.Errorf("news for 1 = %v", news)
	}
}

func TestMutationsAreIsolatedFromSource(t *testing.T) {
	src := store.Offline()
	b := New(src)
	defer b.Close()

	b.SetNewsCount(1, 3)
	if n, _ := src.Countries[0].Int("news_count"); n != 65 {
		t.Errorf("source mutated: %d", n)
	}
}

func TestWatchReceivesChanges(t *testing.T) {
	b := New(store.Offline())
	defer b.Close()

	ctx, cancel := context.WithCancel(context.Background())
	ch, err := b.Watch(ctx, store.TableCountries)
	if err != nil {
		t.Fatal(err)
	}

	if !b.SetNewsCount(6, 51) {
		t.Fatal("country 6 not found")
	}
	select {
	case c := <-ch:
		if c.Op != "UPDATE" || len(c.Rows) != 1 {
			t.Errorf("change = %+v", c)
		}
	case <-time.After(time.Second):
		t.Fatal("no change delivered")
	}

	cancel()
	select {
	case _, ok := <-ch:
		if ok {
			t.Error("unexpected change after cancel")
		}
	case <-time.After(time.Second):
		t.Fatal("channel not closed after cancel")
	}
}

func TestServiceSeesUpdatedBand(t *testing.T) {
	b := New(store.Offline())
	svc := store.NewService(b, logger.Discard(), store.Options{Refetches: 100})
	defer svc.Close()

	b.SetNewsCount(6, 51) // Chile
	countries, origin := svc.FetchCountries(context.Background())
	if origin != store.Live {
		t.Fatalf("origin = %v", origin)
	}
	for _, c := range countries {
		if c.ID == 6 && c.Sentiment.Label() != "very-positive" {
			t.Errorf("Chile band = %v", c.Sentiment)
		}
	}
}

func TestAddNewsAssignsIDs(t *testing.T) {
	b := New(store.Offline())
	defer b.Close()

	ch, _ := b.Watch(context.Background(), store.TableNews)
	row := b.AddNews(store.Row{"country_id": 44, "city": "Beijing", "title": "x"})
	if id, _ := row.Int("id"); id != 2 {
		t.Errorf("id = %d", id)
	}
	c := <-ch
	if !c.Touches(44) || c.Touches(1) {
		t.Errorf("change = %+v", c)
	}
}

func TestStormMutates(t *testing.T) {
	b := New(store.Offline())
	ch, _ := b.Watch(context.Background(), store.TableCountries)
	b.StartStorm(50)
	defer b.Close()

	select {
	case <-ch:
	case <-time.After(2 * time.Second):
		t.Fatal("storm produced no change")
	}
}
