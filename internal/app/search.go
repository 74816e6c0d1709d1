package app

import (
	"context"
	"fmt"
	"math"
	"slices"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"bike_hotels/internal/adapters/observability"
	"bike_hotels/internal/cache"
	"bike_hotels/internal/domain"
	"bike_hotels/internal/geo"
	"bike_hotels/internal/match"
)

const (
	FeaturePOI   = "poi"
	FeaturePlace = "place"

	DefaultAttempts = 3
)

// featureTypes are the geocoder result kinds a search may carry.
var featureTypes = map[string]struct{}{
	"": {}, "country": {}, "region": {}, "postcode": {}, "district": {}, "place": {},
	"locality": {}, "neighborhood": {}, "address": {}, "poi": {},
}

type SearchCriteria struct {
	Lat, Lng     float64
	SearchTerm   string
	FeatureType  string
	FreeText     string
	CityBBox     string      // canonical bbox returned by an earlier search
	ExternalBBox *[4]float64 // minLng, minLat, maxLng, maxLat
	Filters      Filters
}

func (q SearchCriteria) isPOI() bool { return q.FeatureType == FeaturePOI }

type SearchService struct {
	upstream domain.Upstream
	cache    *cache.Service
	matcher  match.Matcher
	misses   domain.MatchMissRepository

	attempts int
	wait     func(int) time.Duration
}

type Option func(*SearchService)

// WithMatchMisses records venue queries that found nothing. Optional.
func WithMatchMisses(r domain.MatchMissRepository) Option {
	return func(s *SearchService) { s.misses = r }
}

// WithAttempts bounds handshake+fetch attempts per cache miss.
func WithAttempts(n int) Option { return func(s *SearchService) { s.attempts = n } }

// WithBackoff replaces the jittered exponential backoff, mostly for tests.
func WithBackoff(f func(int) time.Duration) Option { return func(s *SearchService) { s.wait = f } }

func NewSearchService(up domain.Upstream, c *cache.Service, m match.Matcher, opts ...Option) *SearchService {
	if m == nil {
		m = match.New(match.StrategyCoverage)
	}
	s := &SearchService{upstream: up, cache: c, matcher: m, attempts: DefaultAttempts, wait: backoff}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *SearchService) MatcherName() string { return s.matcher.Name() }

// Search resolves a query into hotels for its area and, when FreeText is
// set, the best matching venue.
func (s *SearchService) Search(ctx context.Context, q SearchCriteria) (domain.SearchResponse, error) {
	q.SearchTerm = strings.TrimSpace(q.SearchTerm)
	q.FreeText = strings.TrimSpace(q.FreeText)
	if err := validate(q); err != nil {
		return domain.SearchResponse{}, err
	}

	bbox, err := selectBBox(q)
	if err != nil {
		return domain.SearchResponse{}, err
	}

	hotels, err := s.cache.GetOrFetch(ctx, bbox, s.fetchFunc(q.SearchTerm, bbox))
	if err != nil {
		return domain.SearchResponse{}, fmt.Errorf("search %q: %w", q.SearchTerm, err)
	}

	origin := geo.Point{Lat: q.Lat, Lng: q.Lng}
	if q.isPOI() {
		withDistances(hotels, origin)
	}

	resp := domain.SearchResponse{
		Hotels:     hotels,
		CityCenter: [2]float64{q.Lng, q.Lat},
		CityBBox:   bbox.Canonical(),
	}

	var matchedID *int64
	if q.FreeText != "" {
		var o *geo.Point
		if q.isPOI() {
			o = &origin
		}
		res := s.match(ctx, hotels, q, o, bbox)
		conf := res.Confidence
		resp.MatchedHotel, resp.MatchConfidence = res.Hotel, &conf
		if res.Hotel != nil {
			matchedID = &res.Hotel.ID
		}
	}

	switch {
	case q.Filters.Active():
		resp.Hotels = Rank(resp.Hotels, q.Filters, matchedID)
	case matchedID != nil:
		moveFirst(resp.Hotels, *matchedID)
	}
	return resp, nil
}

// BookingCheck answers whether the hotel described by freeText, somewhere
// around (lat, lng), has bikes.
func (s *SearchService) BookingCheck(ctx context.Context, lat, lng float64, searchTerm, freeText string) (domain.BookingCheck, error) {
	q := SearchCriteria{Lat: lat, Lng: lng, SearchTerm: strings.TrimSpace(searchTerm), FreeText: strings.TrimSpace(freeText), FeatureType: FeaturePlace}
	if q.FreeText == "" {
		return domain.BookingCheck{}, fmt.Errorf("%w: freeText is required", domain.ErrInvalidQuery)
	}
	if err := validate(q); err != nil {
		return domain.BookingCheck{}, err
	}

	bbox := geo.WideBox(lat, lng)
	hotels, err := s.cache.GetOrFetch(ctx, bbox, s.fetchFunc(q.SearchTerm, bbox))
	if err != nil {
		return domain.BookingCheck{}, fmt.Errorf("booking check %q: %w", q.SearchTerm, err)
	}
	if len(hotels) == 0 {
		return domain.BookingCheck{}, fmt.Errorf("%w: %s", domain.ErrNoHotels, q.SearchTerm)
	}

	res := s.match(ctx, hotels, q, nil, bbox)
	if res.Hotel == nil {
		return domain.BookingCheck{Message: "No hotel match found for the provided text."}, nil
	}
	conf := res.Confidence
	return domain.BookingCheck{MatchConfidence: &conf, Hotel: res.Hotel, HasBikes: res.Hotel.HasBikes()}, nil
}

// InvalidateRequest drops everything (All) or one canonical bbox.
type InvalidateRequest struct {
	All  bool   `json:"all"`
	BBox string `json:"bbox"`
}

func (s *SearchService) Invalidate(ctx context.Context, r InvalidateRequest) (int, error) {
	if r.All {
		return s.cache.InvalidateAll(ctx)
	}
	if strings.TrimSpace(r.BBox) == "" {
		return 0, fmt.Errorf("%w: either all or bbox is required", domain.ErrInvalidQuery)
	}
	b, err := geo.ParseCanonical(r.BBox)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", domain.ErrInvalidQuery, err)
	}
	return s.cache.InvalidateBBox(ctx, b)
}

// Warm fills the cache for the wide box around a city so the first user
// request is a hit. It returns the number of hotels cached.
func (s *SearchService) Warm(ctx context.Context, term string, lat, lng float64) (int, error) {
	q := SearchCriteria{Lat: lat, Lng: lng, SearchTerm: strings.TrimSpace(term)}
	if err := validate(q); err != nil {
		return 0, err
	}
	bbox := geo.WideBox(lat, lng)
	hotels, err := s.cache.GetOrFetch(ctx, bbox, s.fetchFunc(q.SearchTerm, bbox))
	if err != nil {
		return 0, fmt.Errorf("warm %q: %w", q.SearchTerm, err)
	}
	return len(hotels), nil
}

// fetchFunc is the cache-miss path: a fresh handshake, one data request,
// then the transform. Each retry starts again from the handshake because
// credentials are good for a single request.
func (s *SearchService) fetchFunc(term string, bbox geo.BoundingBox) cache.FetchFunc {
	body := bbox.Canonical()
	return func(ctx context.Context) ([]domain.ClientHotel, error) {
		raw, err := retryUpstream(ctx, s.attempts, s.wait, func(ctx context.Context) (any, error) {
			creds, err := s.upstream.AcquireSession(ctx, term)
			if err != nil {
				return nil, err
			}
			return s.upstream.FetchHotels(ctx, body, creds)
		})
		if err != nil {
			return nil, err
		}
		hotels := Transform(raw)
		log.Info().Str("term", term).Int("hotels", len(hotels)).Msg("fetched hotels from upstream")
		return hotels, nil
	}
}

func (s *SearchService) match(ctx context.Context, hotels []domain.ClientHotel, q SearchCriteria, origin *geo.Point, bbox geo.BoundingBox) domain.MatchResult {
	res := s.matcher.Match(hotels, q.FreeText, origin)
	observability.ObserveMatch(s.matcher.Name(), res.Hotel != nil)
	if res.Hotel != nil {
		return res
	}

	log.Info().Str("free_text", q.FreeText).Str("term", q.SearchTerm).Int("candidates", len(hotels)).
		Str("strategy", s.matcher.Name()).Msg("no confident hotel match")
	if s.misses != nil {
		miss := domain.MatchMiss{
			FreeText: q.FreeText, SearchTerm: q.SearchTerm, Lat: q.Lat, Lng: q.Lng,
			BBox: bbox.Canonical(), Candidates: len(hotels), Strategy: s.matcher.Name(),
		}
		// best-effort: the user still gets the area results
		if err := s.misses.LogMatchMiss(context.WithoutCancel(ctx), miss); err != nil {
			log.Warn().Err(err).Str("context", "match_miss").Msg("failed to record match miss")
		}
	}
	return res
}

func (s *SearchService) RecentMatchMisses(ctx context.Context, limit int) ([]domain.MatchMissView, error) {
	if s.misses == nil {
		return []domain.MatchMissView{}, nil
	}
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	return s.misses.RecentMatchMisses(ctx, limit)
}

func validate(q SearchCriteria) error {
	if !(geo.Point{Lat: q.Lat, Lng: q.Lng}).Valid() {
		return fmt.Errorf("%w: lat/lng out of range", domain.ErrInvalidQuery)
	}
	if q.SearchTerm == "" {
		return fmt.Errorf("%w: searchTerm is required", domain.ErrInvalidQuery)
	}
	if _, ok := featureTypes[q.FeatureType]; !ok {
		return fmt.Errorf("%w: unknown featureType %q", domain.ErrInvalidQuery, q.FeatureType)
	}
	return nil
}

// selectBBox prefers a bbox the client already holds, then the geocoder's
// extent, then a box sized by query specificity.
func selectBBox(q SearchCriteria) (geo.BoundingBox, error) {
	switch {
	case q.CityBBox != "":
		b, err := geo.ParseCanonical(q.CityBBox)
		if err != nil {
			return geo.BoundingBox{}, fmt.Errorf("%w: cityBbox: %v", domain.ErrInvalidQuery, err)
		}
		return b, nil
	case q.ExternalBBox != nil:
		ext := *q.ExternalBBox
		if ext[0] > ext[2] || ext[1] > ext[3] {
			return geo.BoundingBox{}, fmt.Errorf("%w: bbox min exceeds max", domain.ErrInvalidQuery)
		}
		b := geo.ConvertExternalBox(ext, geo.Point{Lat: q.Lat, Lng: q.Lng})
		for _, c := range b.Coords {
			if !c.Valid() {
				return geo.BoundingBox{}, fmt.Errorf("%w: bbox out of range", domain.ErrInvalidQuery)
			}
		}
		return b, nil
	case q.isPOI():
		return geo.NarrowBox(q.Lat, q.Lng), nil
	default:
		return geo.WideBox(q.Lat, q.Lng), nil
	}
}

// withDistances sets distance_m from origin in rounded meters and sorts
// ascending, unknown last. hotels must be the caller's own copy.
func withDistances(hotels []domain.ClientHotel, origin geo.Point) {
	for i := range hotels {
		d := math.Round(geo.DistanceMeters(origin.Lat, origin.Lng, hotels[i].Lat, hotels[i].Lng))
		hotels[i].DistanceM = &d
	}
	slices.SortStableFunc(hotels, func(a, b domain.ClientHotel) int { return compareDistance(a.DistanceM, b.DistanceM) })
}
