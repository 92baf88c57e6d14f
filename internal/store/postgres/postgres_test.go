package postgres

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"sentiment-globe/internal/logger"
	"sentiment-globe/internal/store"
)

func TestDecodeNotification(t *testing.T) {
	c := decodeNotification(store.TableNews, `{"op": "insert", "record": {"id": 4, "country_id": 12, "title": "x"}}`)
	if c.Op != "INSERT" || c.Table != store.TableNews || len(c.Rows) != 1 {
		t.Fatalf("change = %+v", c)
	}
	if !c.Touches(12) || c.Touches(13) {
		t.Errorf("touches wrong for %+v", c.Rows)
	}

	for _, payload := range []string{"", "not json", `{"op": "DELETE"}`} {
		c := decodeNotification(store.TableCountries, payload)
		if len(c.Rows) != 0 || !c.Touches(99) {
			t.Errorf("%q: change = %+v", payload, c)
		}
	}
}

func TestColumnValue(t *testing.T) {
	if got := columnValue([]byte("Chile")); got != "Chile" {
		t.Errorf("bytes = %#v", got)
	}
	ts := time.Date(2025, 10, 2, 10, 30, 0, 0, time.FixedZone("x", 3600))
	if got := columnValue(ts); got != "2025-10-02T09:30:00Z" {
		t.Errorf("time = %#v", got)
	}
	if got := columnValue(int64(5)); got != int64(5) {
		t.Errorf("int = %#v", got)
	}
}

func TestSchemaInstallsTriggers(t *testing.T) {
	for _, table := range []store.Table{store.TableCountries, store.TableNews, store.TableSentiment} {
		if !strings.Contains(schema, "CREATE TABLE IF NOT EXISTS "+string(table)) {
			t.Errorf("schema missing table %s", table)
		}
		if !strings.Contains(schema, "ON "+string(table)+"\n") {
			t.Errorf("schema missing trigger on %s", table)
		}
	}
	if !strings.Contains(schema, "'"+channelPrefix+"'") {
		t.Error("trigger does not use the listen channel prefix")
	}
}

// TestRoundTrip needs a scratch database, e.g.
// SENTIGLOBE_TEST_DSN=postgres://localhost/sentiglobe_test?sslmode=disable
func TestRoundTrip(t *testing.T) {
	dsn := os.Getenv("SENTIGLOBE_TEST_DSN")
	if dsn == "" {
		t.Skip("SENTIGLOBE_TEST_DSN not set")
	}
	ctx := context.Background()
	b, err := Open(dsn, logger.Discard())
	if err != nil {
		t.Fatal(err)
	}
	defer b.Close()

	if err := b.Migrate(ctx); err != nil {
		t.Fatal(err)
	}
	changes, err := b.Watch(ctx, store.TableCountries)
	if err != nil {
		t.Fatal(err)
	}
	if err := b.Seed(ctx, store.Offline()); err != nil {
		t.Fatal(err)
	}

	rows, err := b.Countries(ctx)
	if err != nil || len(rows) < 62 {
		t.Fatalf("countries = %d, %v", len(rows), err)
	}
	news, err := b.News(ctx, 1)
	if err != nil || len(news) == 0 {
		t.Fatalf("news = %v, %v", news, err)
	}

	select {
	case <-changes:
	case <-time.After(5 * time.Second):
		t.Error("no notification after seeding")
	}
}
