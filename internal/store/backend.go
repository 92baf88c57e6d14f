package store

import (
	"context"
	"errors"
)

// ErrNoBackend is returned when no backend is configured.
var ErrNoBackend = errors.New("no backend configured")

// Backend is a source of raw rows and change notifications.
type Backend interface {
	Name() string
	// Countries returns every countries row.
	Countries(ctx context.Context) ([]Row, error)
	// News returns the news rows of one country, most recent first.
	News(ctx context.Context, countryID int64) ([]Row, error)
	// Sentiment returns every sentiment_data row.
	Sentiment(ctx context.Context) ([]Row, error)
	// Watch streams changes to table until ctx ends or the stream breaks; the
	// channel is closed either way.
	Watch(ctx context.Context, table Table) (<-chan Change, error)
	Close() error
}

// Unavailable is a Backend whose every call fails. Used when the configured
// backend cannot be opened so that the views fall back to offline data.
type Unavailable struct {
	Err error
}

func (u Unavailable) err() error {
	if u.Err == nil {
		return ErrNoBackend
	}
	return u.Err
}

func (u Unavailable) Name() string { return "unavailable" }

func (u Unavailable) Countries(context.Context) ([]Row, error) { return nil, u.err() }

func (u Unavailable) News(context.Context, int64) ([]Row, error) { return nil, u.err() }

func (u Unavailable) Sentiment(context.Context) ([]Row, error) { return nil, u.err() }

func (u Unavailable) Watch(context.Context, Table) (<-chan Change, error) { return nil, u.err() }

func (u Unavailable) Close() error { return nil }
