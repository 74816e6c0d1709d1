package observability_test

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"bike_hotels/internal/adapters/observability"
	"bike_hotels/internal/domain"
)

func TestMetricsRegistryAndHandler(t *testing.T) {
	reg := observability.InitRegistry()

	// record one sample of each so the vectors are exported
	observability.ObserveHTTP("/v1/hotels", "GET", 200, 12*time.Millisecond)
	observability.ObserveCache("hotels", "hit")
	observability.ObserveMatch("coverage", true)

	mh := observability.MetricsHandler(reg)
	req := httptest.NewRequest("GET", "/metrics", nil)
	rr := httptest.NewRecorder()
	mh.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("metrics status: %d", rr.Code)
	}
	body, _ := io.ReadAll(rr.Body)
	out := string(body)
	for _, name := range []string{
		"bike_hotels_http_requests_total",
		"bike_hotels_cache_events_total",
		`bike_hotels_match_outcomes_total{outcome="matched",strategy="coverage"}`,
	} {
		if !strings.Contains(out, name) {
			t.Fatalf("expected %s in output", name)
		}
	}
}

func TestLabelErr(t *testing.T) {
	cases := map[string]error{
		"none":           nil,
		"csrf_not_found": &domain.UpstreamError{Kind: domain.ErrCSRFTokenNotFound, Op: "search"},
		"session":        &domain.UpstreamError{Kind: domain.ErrSessionAcquisition, Op: "search", Status: 503},
		"fetch":          fmt.Errorf("wrapped: %w", &domain.UpstreamError{Kind: domain.ErrUpstreamFetch, Status: 500}),
		"other":          errors.New("boom"),
	}
	for want, err := range cases {
		if got := observability.LabelErr(err); got != want {
			t.Errorf("LabelErr(%v) = %q, want %q", err, got, want)
		}
	}
}
