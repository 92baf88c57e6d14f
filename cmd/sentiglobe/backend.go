package main

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"sentiment-globe/internal/config"
	"sentiment-globe/internal/store"
	"sentiment-globe/internal/store/memory"
	"sentiment-globe/internal/store/postgres"
	"sentiment-globe/internal/store/rest"
	"sentiment-globe/internal/store/sqlite"
)

// openBackend connects the configured store.
func openBackend(cfg *config.Config, log logrus.FieldLogger) (store.Backend, error) {
	b := cfg.Backend
	switch b.Kind {
	case "rest":
		return rest.New(rest.Config{
			BaseURL: b.URL,
			Key:     b.Key,
			Timeout: b.Timeout.Duration,
		}, log), nil
	case "postgres":
		return postgres.Open(b.DSN, log)
	case "sqlite":
		return sqlite.Open(b.Path, b.PollInterval.Duration, log)
	case "memory":
		m := memory.New(store.Offline())
		if b.Storm {
			m.StartStorm(b.StormRate)
		}
		return m, nil
	}
	return nil, fmt.Errorf("%w: unknown backend %q", config.ErrInvalid, b.Kind)
}

// newService never fails. An unreachable backend leaves the views on the
// offline dataset.
func newService(_ context.Context, cfg *config.Config, log logrus.FieldLogger) *store.Service {
	backend, err := openBackend(cfg, log)
	if err != nil {
		log.WithError(err).WithField("backend", cfg.Backend.Kind).Warn("backend unavailable, using offline data")
		backend = store.Unavailable{Err: err}
	}
	return store.NewService(backend, log, serviceOptions(cfg))
}

// seeder is a store that can create its schema and load a dataset.
type seeder interface {
	store.Backend
	Seed(ctx context.Context, data *store.Dataset) error
}

// openSeeder opens a database backend and makes sure its schema exists.
func openSeeder(ctx context.Context, cfg *config.Config, log logrus.FieldLogger) (seeder, error) {
	switch cfg.Backend.Kind {
	case "postgres":
		db, err := postgres.Open(cfg.Backend.DSN, log)
		if err != nil {
			return nil, err
		}
		if err := db.Migrate(ctx); err != nil {
			db.Close()
			return nil, err
		}
		return db, nil
	case "sqlite":
		return sqlite.Open(cfg.Backend.Path, cfg.Backend.PollInterval.Duration, log)
	}
	return nil, fmt.Errorf("%w: backend %q has no schema, use postgres or sqlite", config.ErrInvalid, cfg.Backend.Kind)
}
