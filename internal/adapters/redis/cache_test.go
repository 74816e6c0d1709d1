package redisad_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	redisad "bike_hotels/internal/adapters/redis"
	"bike_hotels/internal/cache"
	"bike_hotels/internal/domain"
	"bike_hotels/internal/geo"
)

func newStore(t *testing.T) (*redisad.Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	s := redisad.New(mr.Addr(), "", 0, 2*time.Hour)
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.Ping(context.Background()))
	return s, mr
}

func entry(key string, names ...string) cache.Entry {
	hs := make([]domain.ClientHotel, 0, len(names))
	for i, n := range names {
		hs = append(hs, domain.ClientHotel{ID: int64(i + 1), Name: n, BikeFeatures: []string{"Peloton Bike"}})
	}
	return cache.Entry{
		Hotels:    hs,
		CreatedAt: time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC),
		Tags:      []string{cache.TagAll, cache.BBoxTag(key)},
	}
}

func TestStore_PutGet(t *testing.T) {
	s, mr := newStore(t)
	ctx := context.Background()
	key := geo.WideBox(41.878, -87.629).Canonical()

	_, ok, err := s.Get(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Put(ctx, key, entry(key, "Hilton Chicago")))

	got, ok, err := s.Get(ctx, key)
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, got.Hotels, 1)
	assert.Equal(t, "Hilton Chicago", got.Hotels[0].Name)
	assert.Equal(t, []string{"Peloton Bike"}, got.Hotels[0].BikeFeatures)
	assert.True(t, got.CreatedAt.Equal(time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)))

	// backstop TTL drops the key
	mr.FastForward(3 * time.Hour)
	_, ok, err = s.Get(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStore_InvalidateTag(t *testing.T) {
	s, _ := newStore(t)
	ctx := context.Background()
	a := geo.WideBox(41.878, -87.629).Canonical()
	b := geo.WideBox(40.7128, -74.006).Canonical()
	require.NoError(t, s.Put(ctx, a, entry(a, "A")))
	require.NoError(t, s.Put(ctx, b, entry(b, "B")))

	n, err := s.InvalidateTag(ctx, cache.BBoxTag(a))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, ok, _ := s.Get(ctx, a)
	assert.False(t, ok)
	_, ok, _ = s.Get(ctx, b)
	assert.True(t, ok)

	n, err = s.InvalidateTag(ctx, cache.TagAll)
	require.NoError(t, err)
	assert.Equal(t, 1, n, "already-removed entries are not counted")

	n, err = s.InvalidateTag(ctx, cache.TagAll)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestStore_WithCacheService(t *testing.T) {
	s, _ := newStore(t)
	svc := cache.New(s, time.Hour)
	box := geo.NarrowBox(51.5074, -0.1278)

	calls := 0
	fetch := func(context.Context) ([]domain.ClientHotel, error) {
		calls++
		return []domain.ClientHotel{{ID: 7, Name: "The Savoy", BikeFeatures: []string{}}}, nil
	}
	for i := 0; i < 3; i++ {
		got, err := svc.GetOrFetch(context.Background(), box, fetch)
		require.NoError(t, err)
		require.Len(t, got, 1)
	}
	assert.Equal(t, 1, calls)
}

func TestStore_TagIndexPrunedOnPut(t *testing.T) {
	mr := miniredis.RunT(t)
	now := time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)
	s := redisad.New(mr.Addr(), "", 0, 2*time.Hour, redisad.WithClock(func() time.Time { return now }))
	t.Cleanup(func() { _ = s.Close() })
	ctx := context.Background()

	for i := 0; i < 200; i++ {
		key := geo.WideBox(float64(i)/1000, -87.6).Canonical()
		require.NoError(t, s.Put(ctx, key, entry(key, "x")))
	}
	size, err := s.TagSize(ctx, cache.TagAll)
	require.NoError(t, err)
	assert.EqualValues(t, 200, size)

	// every entry expires; the next write drops them from the shared tag
	mr.FastForward(3 * time.Hour)
	now = now.Add(3 * time.Hour)
	fresh := geo.NarrowBox(40.7128, -74.006).Canonical()
	require.NoError(t, s.Put(ctx, fresh, entry(fresh, "y")))

	size, err = s.TagSize(ctx, cache.TagAll)
	require.NoError(t, err)
	assert.EqualValues(t, 1, size, "expired members must not accumulate under a refreshed tag")

	n, err := s.InvalidateTag(ctx, cache.TagAll)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestStore_InvalidateDeletesKeysOneByOne(t *testing.T) {
	s, mr := newStore(t)
	ctx := context.Background()
	keys := []string{
		geo.WideBox(41.878, -87.629).Canonical(),
		geo.WideBox(40.7128, -74.006).Canonical(),
		geo.WideBox(37.7749, -122.4194).Canonical(),
	}
	for _, k := range keys {
		require.NoError(t, s.Put(ctx, k, entry(k, "x")))
	}

	n, err := s.InvalidateTag(ctx, cache.TagAll)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	for _, k := range keys {
		_, ok, err := s.Get(ctx, k)
		require.NoError(t, err)
		assert.False(t, ok)
	}
	for _, k := range mr.Keys() {
		assert.NotContains(t, k, "bike_hotels:entry:")
	}
}
