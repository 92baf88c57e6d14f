package store

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

type Options struct {
	// Refetches caps how many change notifications per second reach a subscriber.
	// Notifications arriving faster are merged.
	Refetches float64
	// Reconnect backoff for broken change streams.
	MinBackoff time.Duration
	MaxBackoff time.Duration
}

func DefaultOptions() Options {
	return Options{Refetches: 2, MinBackoff: time.Second, MaxBackoff: 60 * time.Second}
}

// Service is the data access layer used by every view.
type Service struct {
	backend Backend
	offline *Dataset
	log     logrus.FieldLogger
	opts    Options

	mu   sync.Mutex
	subs map[string]context.CancelFunc
}

func NewService(backend Backend, log logrus.FieldLogger, opts Options) *Service {
	if backend == nil {
		backend = Unavailable{}
	}
	def := DefaultOptions()
	if opts.Refetches <= 0 {
		opts.Refetches = def.Refetches
	}
	if opts.MinBackoff <= 0 {
		opts.MinBackoff = def.MinBackoff
	}
	if opts.MaxBackoff < opts.MinBackoff {
		opts.MaxBackoff = def.MaxBackoff
	}
	return &Service{
		backend: backend,
		offline: Offline(),
		log:     log.WithField("backend", backend.Name()),
		opts:    opts,
		subs:    make(map[string]context.CancelFunc),
	}
}

func (s *Service) BackendName() string { return s.backend.Name() }

// FetchCountries returns every country ordered by name.
func (s *Service) FetchCountries(ctx context.Context) ([]Country, Origin) {
	rows, err := s.backend.Countries(ctx)
	if err != nil {
		s.log.WithError(err).Warn("countries fetch failed, using offline data")
		return Countries(s.offline.Countries), Fallback
	}
	countries := Countries(rows)
	if skipped := len(rows) - len(countries); skipped > 0 {
		s.log.WithField("skipped", skipped).Warn("dropped country rows without id, name or coordinates")
	}
	return countries, Live
}

// FetchNewsForCountry returns the country's news grouped by city. An unset id yields
// an empty result without touching the backend.
func (s *Service) FetchNewsForCountry(ctx context.Context, countryID int64) (NewsByCity, Origin) {
	if countryID <= 0 {
		return NewsByCity{}, Live
	}
	rows, err := s.backend.News(ctx, countryID)
	if err != nil {
		s.log.WithError(err).WithField("country_id", countryID).Warn("news fetch failed, using offline data")
		return GroupNews(s.offline.NewsFor(countryID)), Fallback
	}
	return GroupNews(rows), Live
}

// FetchSentimentMap returns the 2D map colors keyed by Key(country name).
func (s *Service) FetchSentimentMap(ctx context.Context) (SentimentMap, Origin) {
	rows, err := s.backend.Sentiment(ctx)
	if err != nil {
		s.log.WithError(err).Warn("sentiment fetch failed, using offline data")
		return Sentiments(s.offline.Sentiment), Fallback
	}
	return Sentiments(rows), Live
}

// Snapshot is everything a map needs on mount.
type Snapshot struct {
	Countries []Country
	Sentiment SentimentMap
	Origin    Origin
}

// FetchSnapshot loads countries and sentiment concurrently.
func (s *Service) FetchSnapshot(ctx context.Context) Snapshot {
	var (
		snap       Snapshot
		cOrg, sOrg Origin
		g          errgroup.Group
	)
	g.Go(func() error {
		snap.Countries, cOrg = s.FetchCountries(ctx)
		return nil
	})
	g.Go(func() error {
		snap.Sentiment, sOrg = s.FetchSentimentMap(ctx)
		return nil
	})
	_ = g.Wait()
	snap.Origin = cOrg.Worse(sOrg)
	return snap
}

// Subscribe calls fn for changes to table until the returned cancel is called.
// Delivery is at-least-once: broken streams are reopened with backoff, and bursts are
// merged into one Change. fn runs on a service goroutine.
func (s *Service) Subscribe(table Table, fn func(Change)) (cancel func()) {
	id := uuid.NewString()
	ctx, stop := context.WithCancel(context.Background())

	s.mu.Lock()
	s.subs[id] = stop
	s.mu.Unlock()

	log := s.log.WithFields(logrus.Fields{"table": table, "subscription": id[:8]})
	go s.watch(ctx, log, table, fn)

	return func() {
		stop()
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

// Subscriptions returns how many subscriptions are open.
func (s *Service) Subscriptions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func (s *Service) watch(ctx context.Context, log logrus.FieldLogger, table Table, fn func(Change)) {
	limiter := rate.NewLimiter(rate.Limit(s.opts.Refetches), 1)
	backoff := s.opts.MinBackoff

	for ctx.Err() == nil {
		ch, err := s.backend.Watch(ctx, table)
		if err != nil {
			log.WithError(err).WithField("retry_in", backoff).Warn("change stream unavailable")
			if !sleepCtx(ctx, backoff) {
				return
			}
			backoff = min(backoff*2, s.opts.MaxBackoff)
			continue
		}
		backoff = s.opts.MinBackoff
		log.Debug("change stream open")

		if !s.deliver(ctx, ch, limiter, fn) {
			return
		}
		log.Info("change stream closed, reconnecting")
		if !sleepCtx(ctx, backoff) {
			return
		}
	}
}

// deliver forwards changes until ch closes. It returns false when ctx ended.
func (s *Service) deliver(ctx context.Context, ch <-chan Change, limiter *rate.Limiter, fn func(Change)) bool {
	for {
		var first Change
		select {
		case <-ctx.Done():
			return false
		case c, ok := <-ch:
			if !ok {
				return ctx.Err() == nil
			}
			first = c
		}

		if err := limiter.Wait(ctx); err != nil {
			return false
		}

		batch, closed := merge(first, ch)
		fn(batch)
		if closed {
			return ctx.Err() == nil
		}
	}
}

// merge folds every change already queued on ch into first.
func merge(first Change, ch <-chan Change) (batch Change, closed bool) {
	batch = first
	wildcard := len(first.Rows) == 0
	for {
		select {
		case c, ok := <-ch:
			if !ok {
				closed = true
			} else {
				batch.Op = c.Op
				batch.Rows = append(batch.Rows, c.Rows...)
				wildcard = wildcard || len(c.Rows) == 0
				continue
			}
		default:
		}
		break
	}
	if wildcard {
		batch.Rows = nil
	}
	return batch, closed
}

// Close stops every subscription and releases the backend.
func (s *Service) Close() error {
	s.mu.Lock()
	for id, stop := range s.subs {
		stop()
		delete(s.subs, id)
	}
	s.mu.Unlock()
	return s.backend.Close()
}
