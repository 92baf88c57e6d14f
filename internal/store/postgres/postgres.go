// Package postgres is a Backend reading the dashboard tables straight from PostgreSQL.
// Change notifications come from LISTEN/NOTIFY triggers installed by Migrate.
package postgres

import (
	"bytes"
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/lib/pq"
	"github.com/sirupsen/logrus"

	"sentiment-globe/internal/store"
)

//go:embed schema.sql
var schema string

const channelPrefix = "sentiglobe_"

type Backend struct {
	db  *sql.DB
	dsn string
	log logrus.FieldLogger
}

func Open(dsn string, log logrus.FieldLogger) (*Backend, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}
	db.SetMaxOpenConns(4)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return &Backend{db: db, dsn: dsn, log: log.WithField("backend", "postgres")}, nil
}

func (b *Backend) Name() string { return "postgres" }

// Migrate creates the tables and notify triggers if they are missing.
func (b *Backend) Migrate(ctx context.Context) error {
	if _, err := b.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}
	return nil
}

func (b *Backend) Countries(ctx context.Context) ([]store.Row, error) {
	return b.query(ctx, `SELECT * FROM countries ORDER BY name ASC`)
}

func (b *Backend) News(ctx context.Context, countryID int64) ([]store.Row, error) {
	return b.query(ctx, `SELECT * FROM news WHERE country_id = $1 ORDER BY timestamp DESC`, countryID)
}

func (b *Backend) Sentiment(ctx context.Context) ([]store.Row, error) {
	return b.query(ctx, `SELECT country_name, sentiment_score, color_code FROM sentiment_data`)
}

func (b *Backend) query(ctx context.Context, q string, args ...any) ([]store.Row, error) {
	rows, err := b.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()
	return scanRows(rows)
}

func scanRows(rows *sql.Rows) ([]store.Row, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	var out []store.Row
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		r := make(store.Row, len(cols))
		for i, c := range cols {
			r[c] = columnValue(vals[i])
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// columnValue maps driver values onto the types Row accessors understand.
func columnValue(v any) any {
	switch t := v.(type) {
	case []byte:
		return string(t)
	case time.Time:
		return t.UTC().Format(time.RFC3339Nano)
	}
	return v
}

// Seed upserts the dataset. Countries keep their ids so news rows stay attached.
func (b *Backend) Seed(ctx context.Context, data *store.Dataset) error {
	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, r := range data.Countries {
		id, _ := r.Int("id")
		lat, _ := r.Float("lat")
		lon, _ := r.Float("lon")
		count, _ := r.Int("news_count")
		_, err := tx.ExecContext(ctx, `
			INSERT INTO countries (id, name, lat, lon, news_count, sentiment)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (id) DO UPDATE SET
				name = EXCLUDED.name, lat = EXCLUDED.lat, lon = EXCLUDED.lon,
				news_count = EXCLUDED.news_count, sentiment = EXCLUDED.sentiment, updated_at = now()`,
			id, r.String("name"), lat, lon, count, r.String("sentiment"))
		if err != nil {
			return fmt.Errorf("seed country %q: %w", r.String("name"), err)
		}
	}
	_, err = tx.ExecContext(ctx, `SELECT setval(pg_get_serial_sequence('countries', 'id'), COALESCE(MAX(id), 1)) FROM countries`)
	if err != nil {
		return fmt.Errorf("reset country sequence: %w", err)
	}

	for _, r := range data.News {
		countryID, _ := r.Int("country_id")
		ts, ok := r.Time("timestamp")
		if !ok {
			ts = time.Now().UTC()
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO news (country_id, city, title, summary, category, severity, timestamp)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			countryID, r.String("city"), r.String("title"), r.String("summary"), r.String("category"),
			r.String("severity"), ts)
		if err != nil {
			return fmt.Errorf("seed news %q: %w", r.String("title"), err)
		}
	}

	for _, r := range data.Sentiment {
		score, _ := r.Float("sentiment_score")
		_, err := tx.ExecContext(ctx, `
			INSERT INTO sentiment_data (country_name, sentiment_score, color_code)
			VALUES ($1, $2, $3)
			ON CONFLICT (country_name) DO UPDATE SET
				sentiment_score = EXCLUDED.sentiment_score, color_code = EXCLUDED.color_code`,
			r.String("country_name"), score, r.String("color_code"))
		if err != nil {
			return fmt.Errorf("seed sentiment %q: %w", r.String("country_name"), err)
		}
	}
	return tx.Commit()
}

func channelFor(table store.Table) string {
	return channelPrefix + string(table)
}

// Watch listens on the table's notify channel. The returned channel closes when the
// listener loses its connection or ctx ends.
func (b *Backend) Watch(ctx context.Context, table store.Table) (<-chan store.Change, error) {
	log := b.log.WithField("table", table)
	lost := make(chan struct{})
	var once sync.Once

	listener := pq.NewListener(b.dsn, time.Second, time.Minute, func(ev pq.ListenerEventType, err error) {
		if ev != pq.ListenerEventDisconnected {
			return
		}
		once.Do(func() {
			if err != nil {
				log.WithError(err).Warn("listener disconnected")
			}
			close(lost)
		})
	})
	if err := listener.Listen(channelFor(table)); err != nil {
		listener.Close()
		return nil, fmt.Errorf("listen %s: %w", table, err)
	}

	out := make(chan store.Change, 16)
	go func() {
		defer close(out)
		defer listener.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case <-lost:
				return
			case n := <-listener.Notify:
				if n == nil {
					// nil follows a reconnect
					n = &pq.Notification{Channel: channelFor(table)}
				}
				change := decodeNotification(table, n.Extra)
				select {
				case out <- change:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

type notification struct {
	Op     string    `json:"op"`
	Record store.Row `json:"record"`
}

// decodeNotification turns a trigger payload into a Change. Payloads that cannot be
// read become a change without rows.
func decodeNotification(table store.Table, payload string) store.Change {
	change := store.Change{Table: table, Op: "*"}
	if strings.TrimSpace(payload) == "" {
		return change
	}
	var n notification
	dec := json.NewDecoder(bytes.NewReader([]byte(payload)))
	dec.UseNumber()
	if err := dec.Decode(&n); err != nil {
		return change
	}
	change.Op = strings.ToUpper(n.Op)
	if len(n.Record) > 0 {
		change.Rows = []store.Row{n.Record}
	}
	return change
}

func (b *Backend) Close() error {
	return b.db.Close()
}
