package app

import (
	"context"
	crand "crypto/rand"
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"bike_hotels/internal/adapters/observability"
	"bike_hotels/internal/domain"
)

// retryUpstream runs fn up to attempts times. Only transient upstream
// failures are retried; the server's Retry-After wins over our backoff.
func retryUpstream[T any](ctx context.Context, attempts int, wait func(int) time.Duration, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	if attempts < 1 {
		attempts = 1
	}
	var lastErr error
	for i := 0; i < attempts; i++ {
		v, err := fn(ctx)
		if err == nil {
			return v, nil
		}
		lastErr = err

		var ue *domain.UpstreamError
		if !errors.As(err, &ue) || !ue.Transient() || i == attempts-1 {
			return zero, err
		}
		if ctx.Err() != nil {
			return zero, err
		}

		d := ue.RetryAfter
		if d == 0 {
			d = wait(i)
		}
		observability.ObserveRetry(err)
		log.Warn().Err(err).Int("attempt", i+1).Dur("wait", d).Msg("upstream failed; retrying handshake")
		if !sleepCtx(ctx, d) {
			return zero, err
		}
	}
	return zero, lastErr
}

// sleepCtx waits for d or returns early if ctx is done.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// backoff returns an exponential backoff delay with concurrency-safe jitter.
// i = retry attempt (0,1,2,...). Base doubles each attempt (200ms, 400ms, 800ms...),
// with up to +50% random jitter.
func backoff(i int) time.Duration {
	base := time.Duration(1<<i) * 200 * time.Millisecond
	var b [1]byte
	if _, err := crand.Read(b[:]); err != nil {
		return base
	}
	f := float64(b[0]) / 255.0
	return base + time.Duration(0.5*f*float64(base))
}
