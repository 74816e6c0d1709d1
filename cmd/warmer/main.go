package main

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"

	"bike_hotels/internal/adapters/observability"
	"bike_hotels/internal/bootstrap"
	"bike_hotels/internal/shared"
)

// warmer fills the shared cache for the configured cities. It only helps
// when REDIS_ADDR points at the store the API reads from.
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := shared.Load()
	log.Logger = observability.NewLogger(cfg.AppEnv, "warmer")

	log.Info().
		Str("base", cfg.UpstreamBase).
		Int("workers", cfg.WarmWorkers).
		Int("cities", len(cfg.WarmCities)).
		Msg("warmer starting")
	if cfg.RedisAddr == "" {
		log.Warn().Msg("no REDIS_ADDR; warmed entries die with this process")
	}

	deps, err := bootstrap.Build(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("startup failed")
	}
	defer func() { _ = deps.Close() }()

	sem := semaphore.NewWeighted(int64(max(cfg.WarmWorkers, 1)))
	var wg sync.WaitGroup
	var failed atomic.Int32
	start := time.Now()

	for _, city := range cfg.WarmCities {
		// acquire before launching; release inside the goroutine
		if err := sem.Acquire(ctx, 1); err != nil {
			log.Warn().Err(err).Msg("warm interrupted")
			break
		}

		wg.Add(1)
		go func(c shared.City) {
			defer wg.Done()
			defer sem.Release(1)

			n, err := deps.Service.Warm(ctx, c.Name, c.Lat, c.Lng)
			if err != nil {
				failed.Add(1)
				log.Warn().Str("city", c.Name).Err(err).Msg("warm failed")
				return
			}
			log.Info().Str("city", c.Name).Int("hotels", n).Msg("warm ok")
		}(city)
	}

	wg.Wait()
	log.Info().Dur("took", time.Since(start)).Int32("failed", failed.Load()).Msg("warm completed")
	if failed.Load() > 0 {
		_ = deps.Close()
		os.Exit(1)
	}
}
