package domain

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

var (
	ErrSessionAcquisition = errors.New("session acquisition failed")
	ErrCSRFTokenNotFound  = errors.New("csrf token not found")
	ErrUpstreamFetch      = errors.New("upstream fetch failed")
	ErrInvalidQuery       = errors.New("invalid query")
	ErrNoHotels           = errors.New("no hotels in area")
)

// UpstreamError describes a failed call to the hotel-finder site. It unwraps
// to its Kind so callers can use errors.Is against the sentinels above.
type UpstreamError struct {
	Kind   error
	Op     string
	Status int // 0 when no response was received
	Err    error
	// RetryAfter is the server's hint on 429/503, zero when absent.
	RetryAfter time.Duration
}

func (e *UpstreamError) Error() string {
	switch {
	case e.Status != 0 && e.Err != nil:
		return fmt.Sprintf("%s: %s: status %d: %v", e.Kind, e.Op, e.Status, e.Err)
	case e.Status != 0:
		return fmt.Sprintf("%s: %s: status %d", e.Kind, e.Op, e.Status)
	case e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Op, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Op)
}

func (e *UpstreamError) Unwrap() error { return e.Kind }

// Transient reports whether retrying the whole handshake may succeed.
func (e *UpstreamError) Transient() bool {
	if errors.Is(e.Kind, ErrCSRFTokenNotFound) {
		return false
	}
	// Status 0 means no response at all (dial, TLS, timeout).
	return e.Status == 0 || e.Status == http.StatusTooManyRequests || e.Status >= 500
}
