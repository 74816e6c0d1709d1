package httpserver_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	server "bike_hotels/internal/adapters/http_server"
	"bike_hotels/internal/adapters/peloton"
	"bike_hotels/internal/adapters/peloton/pelotontest"
	"bike_hotels/internal/app"
	"bike_hotels/internal/cache"
	"bike_hotels/internal/domain"
	"bike_hotels/internal/match"
)

func rawHotel(id int, name, brand, lat, lng string, gym, room, bikes int) map[string]any {
	return map[string]any{
		"id": float64(id), "name": name, "brand_name": brand,
		"latitude": lat, "longitude": lng,
		"has_bikes_fitness_center": float64(gym), "has_bikes_rooms": float64(room),
		"total_bikes": float64(bikes),
	}
}

var loop = []any{
	rawHotel(1, "Hilton Chicago", "Hilton", "41.8723", "-87.6244", 1, 0, 2),
	rawHotel(2, "Club Quarters Hotel Central Loop", "Club Quarters", "41.879266", "-87.6311861", 1, 0, 1),
	rawHotel(3, "Hampton Inn Chicago Downtown", "Hampton Inn & Suites", "41.8860", "-87.6290", 0, 0, 0),
}

func newAPI(t *testing.T, payload any) (*httptest.Server, *pelotontest.Server) {
	t.Helper()
	up := pelotontest.New(payload)
	t.Cleanup(up.Close)

	cl, err := peloton.New(peloton.Options{BaseURL: up.BaseURL(), RPS: 100, Timeout: 2 * time.Second})
	require.NoError(t, err)
	svc := app.NewSearchService(cl, cache.New(cache.NewMemoryStore(64), time.Hour), match.New(match.StrategyCoverage),
		app.WithAttempts(1))

	srv := server.New(5 * time.Second)
	srv.MountHandlers(server.NewHandlers(svc))
	ts := httptest.NewServer(srv.Mux())
	t.Cleanup(ts.Close)
	return ts, up
}

func get(t *testing.T, ts *httptest.Server, path string, q url.Values, hdr ...string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, ts.URL+path+"?"+q.Encode(), nil)
	require.NoError(t, err)
	for i := 0; i+1 < len(hdr); i += 2 {
		req.Header.Set(hdr[i], hdr[i+1])
	}
	resp, err := ts.Client().Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func chicagoQuery() url.Values {
	return url.Values{"lat": {"41.878"}, "lng": {"-87.629"}, "searchTerm": {"Chicago, IL"}, "featureType": {"place"}}
}

func TestSearchHotels_OK_ETag(t *testing.T) {
	ts, up := newAPI(t, loop)

	resp := get(t, ts, "/v1/hotels", chicagoQuery())
	require.Equal(t, http.StatusOK, resp.StatusCode)
	etag := resp.Header.Get("ETag")
	require.NotEmpty(t, etag)

	body := decode[domain.SearchResponse](t, resp)
	assert.Len(t, body.Hotels, 3)
	assert.NotEmpty(t, body.CityBBox)
	assert.Nil(t, body.MatchConfidence)

	resp = get(t, ts, "/v1/hotels", chicagoQuery(), "If-None-Match", etag)
	assert.Equal(t, http.StatusNotModified, resp.StatusCode)
	assert.Equal(t, int32(1), up.Handshakes.Load(), "conditional request must be served from cache")
}

func TestSearchHotels_MatchAndFilters(t *testing.T) {
	ts, _ := newAPI(t, loop)
	q := url.Values{
		"lat": {"41.8792"}, "lng": {"-87.6312"}, "searchTerm": {"Club Quarters Central Loop"},
		"featureType": {"poi"}, "freeText": {"Club Quarters Central Loop"},
		"loyalty": {"Hilton Honors,Other"}, "inGym": {"true"},
	}
	resp := get(t, ts, "/v1/hotels", q)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decode[domain.SearchResponse](t, resp)
	require.NotNil(t, body.MatchedHotel)
	assert.Equal(t, int64(2), body.MatchedHotel.ID)
	require.NotNil(t, body.MatchConfidence)
	assert.Greater(t, *body.MatchConfidence, 0.6)
	require.NotEmpty(t, body.Hotels)
	assert.Equal(t, int64(2), body.Hotels[0].ID)
	for _, h := range body.Hotels {
		assert.True(t, h.InGym)
		require.NotNil(t, h.DistanceM)
	}
}

func TestSearchHotels_BadQueries(t *testing.T) {
	ts, up := newAPI(t, loop)
	cases := map[string]url.Values{
		"missing lat":      {"lng": {"-87.6"}, "searchTerm": {"x"}},
		"lat not a number": {"lat": {"abc"}, "lng": {"-87.6"}, "searchTerm": {"x"}},
		"lat out of range": {"lat": {"91"}, "lng": {"-87.6"}, "searchTerm": {"x"}},
		"missing term":     {"lat": {"41"}, "lng": {"-87.6"}},
		"bad feature":      {"lat": {"41"}, "lng": {"-87.6"}, "searchTerm": {"x"}, "featureType": {"planet"}},
		"short bbox":       {"lat": {"41"}, "lng": {"-87.6"}, "searchTerm": {"x"}, "bbox": {"1,2,3"}},
		"bad bool":         {"lat": {"41"}, "lng": {"-87.6"}, "searchTerm": {"x"}, "rank": {"maybe"}},
		"bad cityBbox":     {"lat": {"41"}, "lng": {"-87.6"}, "searchTerm": {"x"}, "cityBbox": {"not json"}},
	}
	for name, q := range cases {
		t.Run(name, func(t *testing.T) {
			resp := get(t, ts, "/v1/hotels", q)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
			assert.Equal(t, "application/problem+json", resp.Header.Get("Content-Type"))
		})
	}
	assert.Zero(t, up.Handshakes.Load(), "invalid queries must not reach the upstream")
}

func TestSearchHotels_UpstreamFailures(t *testing.T) {
	cases := []struct {
		name  string
		setup func(*pelotontest.Server)
		title string
	}{
		{"token missing", func(s *pelotontest.Server) { s.OmitToken = true }, "Upstream Token Missing"},
		{"session down", func(s *pelotontest.Server) { s.SearchStatus = http.StatusServiceUnavailable }, "Upstream Session Failed"},
		{"fetch down", func(s *pelotontest.Server) { s.DataStatus = http.StatusBadGateway }, "Upstream Fetch Failed"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ts, up := newAPI(t, loop)
			tc.setup(up)
			resp := get(t, ts, "/v1/hotels", chicagoQuery())
			require.Equal(t, http.StatusBadGateway, resp.StatusCode)
			p := decode[map[string]any](t, resp)
			assert.Equal(t, tc.title, p["title"])
		})
	}
}

func TestBookingCheck(t *testing.T) {
	ts, _ := newAPI(t, loop)

	q := chicagoQuery()
	q.Set("freeText", "Hilton Chicago")
	resp := get(t, ts, "/v1/booking/check", q)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	bc := decode[domain.BookingCheck](t, resp)
	require.NotNil(t, bc.Hotel)
	assert.Equal(t, int64(1), bc.Hotel.ID)
	assert.True(t, bc.HasBikes)

	q.Set("freeText", "Ritz Carlton Paris")
	resp = get(t, ts, "/v1/booking/check", q)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	bc = decode[domain.BookingCheck](t, resp)
	assert.Nil(t, bc.Hotel)
	assert.False(t, bc.HasBikes)
	assert.NotEmpty(t, bc.Message)

	q.Del("freeText")
	resp = get(t, ts, "/v1/booking/check", q)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestBookingCheck_EmptyArea(t *testing.T) {
	ts, _ := newAPI(t, []any{})
	q := chicagoQuery()
	q.Set("freeText", "Hilton Chicago")
	resp := get(t, ts, "/v1/booking/check", q)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestInvalidate(t *testing.T) {
	ts, up := newAPI(t, loop)
	resp := get(t, ts, "/v1/hotels", chicagoQuery())
	require.Equal(t, http.StatusOK, resp.StatusCode)

	post := func(body string) *http.Response {
		r, err := ts.Client().Post(ts.URL+"/v1/admin/cache/invalidate", "application/json", strings.NewReader(body))
		require.NoError(t, err)
		t.Cleanup(func() { _ = r.Body.Close() })
		return r
	}

	r := post(`{"all":true}`)
	require.Equal(t, http.StatusOK, r.StatusCode)
	assert.Equal(t, map[string]int{"removed": 1}, decode[map[string]int](t, r))

	_ = get(t, ts, "/v1/hotels", chicagoQuery())
	assert.Equal(t, int32(2), up.Handshakes.Load())

	assert.Equal(t, http.StatusBadRequest, post(`{"everything":true}`).StatusCode)
	assert.Equal(t, http.StatusBadRequest, post(`{}`).StatusCode)
}

func TestMatchMisses_NoRepository(t *testing.T) {
	ts, _ := newAPI(t, loop)

	resp := get(t, ts, "/v1/admin/match-misses", url.Values{"limit": {"10"}})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decode[map[string][]domain.MatchMissView](t, resp)
	assert.Empty(t, body["items"])

	resp = get(t, ts, "/v1/admin/match-misses", url.Values{"limit": {"0"}})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHealthz(t *testing.T) {
	ts, _ := newAPI(t, loop)
	resp := get(t, ts, "/healthz", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
