// Package cache memoizes the upstream fetch per bounding box.
//
// Entries are immutable: a refresh writes a new Entry over the key, expiry is
// a timestamp comparison, and concurrent misses on one key share a single
// upstream call.
package cache

import (
	"context"
	"slices"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"

	"bike_hotels/internal/adapters/observability"
	"bike_hotels/internal/domain"
	"bike_hotels/internal/geo"
)

const (
	TagAll        = "hotels:all"
	bboxTagPrefix = "hotels:bbox:"

	DefaultWindow       = time.Hour
	DefaultFetchTimeout = 45 * time.Second
)

// BBoxTag is the invalidation tag of a single bounding box.
func BBoxTag(canonical string) string { return bboxTagPrefix + canonical }

type Entry struct {
	Hotels    []domain.ClientHotel `json:"hotels"`
	CreatedAt time.Time            `json:"created_at"`
	Tags      []string             `json:"tags"`
}

// Store is the key/value backend. Implementations must not modify an Entry
// after Put.
type Store interface {
	Get(ctx context.Context, key string) (Entry, bool, error)
	Put(ctx context.Context, key string, e Entry) error
	InvalidateTag(ctx context.Context, tag string) (int, error)
}

type FetchFunc func(ctx context.Context) ([]domain.ClientHotel, error)

type Service struct {
	store        Store
	window       time.Duration
	fetchTimeout time.Duration
	now          func() time.Time
	name         string
	group        singleflight.Group
}

type Option func(*Service)

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }

// WithFetchTimeout bounds a shared fetch, which outlives the callers waiting on it.
func WithFetchTimeout(d time.Duration) Option { return func(s *Service) { s.fetchTimeout = d } }

// WithName sets the metrics label.
func WithName(name string) Option { return func(s *Service) { s.name = name } }

func New(store Store, window time.Duration, opts ...Option) *Service {
	if window <= 0 {
		window = DefaultWindow
	}
	s := &Service{
		store:        store,
		window:       window,
		fetchTimeout: DefaultFetchTimeout,
		now:          time.Now,
		name:         "hotels",
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Service) Window() time.Duration { return s.window }

// GetOrFetch returns the hotels cached for bbox, calling fetch on a miss or
// when the entry is older than the window. The returned slice is the
// caller's to modify.
func (s *Service) GetOrFetch(ctx context.Context, bbox geo.BoundingBox, fetch FetchFunc) ([]domain.ClientHotel, error) {
	key := bbox.Canonical()

	if e, ok := s.lookup(ctx, key); ok {
		observability.ObserveCache(s.name, "hit")
		return slices.Clone(e.Hotels), nil
	}
	observability.ObserveCache(s.name, "miss")

	ch := s.group.DoChan(key, func() (any, error) {
		// The fetch is shared: one caller giving up must not cancel it for the rest.
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.fetchTimeout)
		defer cancel()

		// Another flight may have filled the key between our lookup and now.
		if e, ok := s.lookup(fctx, key); ok {
			return e.Hotels, nil
		}

		hotels, err := fetch(fctx)
		if err != nil {
			return nil, err
		}
		if hotels == nil {
			hotels = []domain.ClientHotel{}
		}

		e := Entry{Hotels: hotels, CreatedAt: s.now(), Tags: []string{TagAll, BBoxTag(key)}}
		if err := s.store.Put(fctx, key, e); err != nil {
			log.Warn().Err(err).Str("context", "cache.put").Msg("cache write failed; serving uncached result")
		} else {
			observability.ObserveCache(s.name, "set")
		}
		return hotels, nil
	})

	select {
	case r := <-ch:
		if r.Err != nil {
			return nil, r.Err
		}
		if r.Shared {
			observability.ObserveCache(s.name, "coalesced")
		}
		return slices.Clone(r.Val.([]domain.ClientHotel)), nil
	case <-ctx.Done():
		return nil, context.Cause(ctx)
	}
}

func (s *Service) lookup(ctx context.Context, key string) (Entry, bool) {
	e, ok, err := s.store.Get(ctx, key)
	if err != nil {
		log.Warn().Err(err).Str("context", "cache.get").Msg("cache read failed; treating as miss")
		return Entry{}, false
	}
	if !ok || s.now().Sub(e.CreatedAt) >= s.window {
		return Entry{}, false
	}
	return e, true
}

// InvalidateTag drops every entry carrying tag and reports how many went.
func (s *Service) InvalidateTag(ctx context.Context, tag string) (int, error) {
	n, err := s.store.InvalidateTag(ctx, tag)
	if err != nil {
		return 0, err
	}
	observability.ObserveCache(s.name, "invalidate")
	log.Info().Str("tag", tag).Int("removed", n).Msg("cache invalidated")
	return n, nil
}

func (s *Service) InvalidateAll(ctx context.Context) (int, error) {
	return s.InvalidateTag(ctx, TagAll)
}

func (s *Service) InvalidateBBox(ctx context.Context, bbox geo.BoundingBox) (int, error) {
	return s.InvalidateTag(ctx, BBoxTag(bbox.Canonical()))
}
