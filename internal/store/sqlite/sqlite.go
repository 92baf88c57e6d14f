// Package sqlite is a single-file Backend built on gorm. Other processes may write to
// the same file; Watch notices their writes by polling a per-table fingerprint.
package sqlite

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"sentiment-globe/internal/store"
)

type Country struct {
	ID        int64  `gorm:"primaryKey"`
	Name      string `gorm:"uniqueIndex;not null"`
	Lat       float64
	Lon       float64
	NewsCount int
	Sentiment string
	UpdatedAt time.Time
}

func (Country) TableName() string { return string(store.TableCountries) }

type News struct {
	ID        int64 `gorm:"primaryKey"`
	CountryID int64 `gorm:"index"`
	City      string
	Title     string `gorm:"not null"`
	Summary   string
	Category  string
	Severity  string
	Timestamp time.Time `gorm:"index"`
}

func (News) TableName() string { return string(store.TableNews) }

type Sentiment struct {
	ID             int64  `gorm:"primaryKey"`
	CountryName    string `gorm:"uniqueIndex;not null"`
	SentimentScore float64
	ColorCode      string
}

func (Sentiment) TableName() string { return string(store.TableSentiment) }

type Backend struct {
	db   *gorm.DB
	poll time.Duration
	log  logrus.FieldLogger

	mu     sync.Mutex
	closed bool
}

// Open opens or creates the database at path and migrates it.
func Open(path string, poll time.Duration, log logrus.FieldLogger) (*Backend, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database dir: %w", err)
		}
	}
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if poll <= 0 {
		poll = 5 * time.Second
	}
	b := &Backend{db: db, poll: poll, log: log.WithField("backend", "sqlite")}
	if err := b.Migrate(); err != nil {
		b.Close()
		return nil, err
	}
	return b, nil
}

func (b *Backend) Name() string { return "sqlite" }

func (b *Backend) Migrate() error {
	if err := b.db.AutoMigrate(&Country{}, &News{}, &Sentiment{}); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	return nil
}

func countryRow(c Country) store.Row {
	return store.Row{
		"id":         c.ID,
		"name":       c.Name,
		"lat":        c.Lat,
		"lon":        c.Lon,
		"news_count": c.NewsCount,
		"sentiment":  c.Sentiment,
		"updated_at": c.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}
}

func newsRow(n News) store.Row {
	return store.Row{
		"id":         n.ID,
		"country_id": n.CountryID,
		"city":       n.City,
		"title":      n.Title,
		"summary":    n.Summary,
		"category":   n.Category,
		"severity":   n.Severity,
		"timestamp":  n.Timestamp.UTC().Format(time.RFC3339Nano),
	}
}

func (b *Backend) Countries(ctx context.Context) ([]store.Row, error) {
	var list []Country
	if err := b.db.WithContext(ctx).Order("name ASC").Find(&list).Error; err != nil {
		return nil, fmt.Errorf("query countries: %w", err)
	}
	rows := make([]store.Row, len(list))
	for i, c := range list {
		rows[i] = countryRow(c)
	}
	return rows, nil
}

func (b *Backend) News(ctx context.Context, countryID int64) ([]store.Row, error) {
	var list []News
	err := b.db.WithContext(ctx).Where("country_id = ?", countryID).Order("timestamp DESC").Find(&list).Error
	if err != nil {
		return nil, fmt.Errorf("query news: %w", err)
	}
	rows := make([]store.Row, len(list))
	for i, n := range list {
		rows[i] = newsRow(n)
	}
	return rows, nil
}

func (b *Backend) Sentiment(ctx context.Context) ([]store.Row, error) {
	var list []Sentiment
	if err := b.db.WithContext(ctx).Find(&list).Error; err != nil {
		return nil, fmt.Errorf("query sentiment: %w", err)
	}
	rows := make([]store.Row, len(list))
	for i, s := range list {
		rows[i] = store.Row{
			"country_name":    s.CountryName,
			"sentiment_score": s.SentimentScore,
			"color_code":      s.ColorCode,
		}
	}
	return rows, nil
}

// Seed replaces the contents of every table with data.
func (b *Backend) Seed(ctx context.Context, data *store.Dataset) error {
	return b.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, m := range []any{&News{}, &Sentiment{}, &Country{}} {
			if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(m).Error; err != nil {
				return fmt.Errorf("clear table: %w", err)
			}
		}

		now := time.Now().UTC()
		for _, r := range data.Countries {
			c := Country{Name: r.String("name"), Sentiment: r.String("sentiment"), UpdatedAt: now}
			c.ID, _ = r.Int("id")
			c.Lat, _ = r.Float("lat")
			c.Lon, _ = r.Float("lon")
			if n, ok := r.Int("news_count"); ok {
				c.NewsCount = int(n)
			}
			if err := tx.Create(&c).Error; err != nil {
				return fmt.Errorf("seed country %q: %w", c.Name, err)
			}
		}
		for _, r := range data.News {
			n := News{
				City:     r.String("city"),
				Title:    r.String("title"),
				Summary:  r.String("summary"),
				Category: r.String("category"),
				Severity: r.String("severity"),
			}
			n.ID, _ = r.Int("id")
			n.CountryID, _ = r.Int("country_id")
			if ts, ok := r.Time("timestamp"); ok {
				n.Timestamp = ts
			} else {
				n.Timestamp = now
			}
			if err := tx.Create(&n).Error; err != nil {
				return fmt.Errorf("seed news %q: %w", n.Title, err)
			}
		}
		for _, r := range data.Sentiment {
			s := Sentiment{CountryName: r.String("country_name"), ColorCode: r.String("color_code")}
			s.SentimentScore, _ = r.Float("sentiment_score")
			if err := tx.Create(&s).Error; err != nil {
				return fmt.Errorf("seed sentiment %q: %w", s.CountryName, err)
			}
		}
		return nil
	})
}

// SetNewsCount updates one country's article count.
func (b *Backend) SetNewsCount(ctx context.Context, countryID int64, count int) error {
	res := b.db.WithContext(ctx).Model(&Country{}).Where("id = ?", countryID).
		Updates(map[string]any{"news_count": count, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("country %d: %w", countryID, gorm.ErrRecordNotFound)
	}
	return nil
}

// AddNews inserts a news item and returns its id.
func (b *Backend) AddNews(ctx context.Context, item store.NewsItem) (int64, error) {
	n := News{
		CountryID: item.CountryID,
		City:      item.City,
		Title:     item.Title,
		Summary:   item.Summary,
		Category:  item.Category,
		Severity:  string(item.Severity),
		Timestamp: item.Timestamp,
	}
	if n.Timestamp.IsZero() {
		n.Timestamp = time.Now().UTC()
	}
	if err := b.db.WithContext(ctx).Create(&n).Error; err != nil {
		return 0, err
	}
	return n.ID, nil
}

type fingerprint struct {
	Total   int64
	MaxID   int64
	Changed string
}

func (b *Backend) fingerprint(ctx context.Context, table store.Table) (fingerprint, error) {
	var fp fingerprint
	q := b.db.WithContext(ctx).Table(string(table))
	switch table {
	case store.TableCountries:
		q = q.Select("COUNT(*) AS total, COALESCE(MAX(id), 0) AS max_id, COALESCE(MAX(updated_at), '') || ':' || COALESCE(SUM(news_count), 0) AS changed")
	case store.TableNews:
		q = q.Select("COUNT(*) AS total, COALESCE(MAX(id), 0) AS max_id, COALESCE(MAX(timestamp), '') AS changed")
	default:
		q = q.Select("COUNT(*) AS total, COALESCE(MAX(id), 0) AS max_id, COALESCE(SUM(sentiment_score), 0) || ':' || COALESCE(GROUP_CONCAT(color_code), '') AS changed")
	}
	err := q.Scan(&fp).Error
	return fp, err
}

// Watch polls the table and sends a row-less Change whenever its fingerprint moves.
func (b *Backend) Watch(ctx context.Context, table store.Table) (<-chan store.Change, error) {
	b.mu.Lock()
	closed := b.closed
	b.mu.Unlock()
	if closed {
		return nil, errors.New("sqlite backend closed")
	}

	last, err := b.fingerprint(ctx, table)
	if err != nil {
		return nil, fmt.Errorf("watch %s: %w", table, err)
	}

	out := make(chan store.Change, 1)
	go func() {
		defer close(out)
		ticker := time.NewTicker(b.poll)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
			fp, err := b.fingerprint(ctx, table)
			if err != nil {
				if ctx.Err() == nil {
					b.log.WithError(err).WithField("table", table).Warn("poll failed")
				}
				return
			}
			if fp == last {
				continue
			}
			last = fp
			select {
			case out <- store.Change{Table: table, Op: "*"}:
			default:
			}
		}
	}()
	return out, nil
}

func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	sqlDB, err := b.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
