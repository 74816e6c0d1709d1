// Package bootstrap wires the search service from configuration. The API,
// the warmer and the CLI all share it.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"bike_hotels/internal/adapters/peloton"
	redisad "bike_hotels/internal/adapters/redis"
	"bike_hotels/internal/app"
	"bike_hotels/internal/cache"
	"bike_hotels/internal/match"
	"bike_hotels/internal/shared"
	mysqlrepo "bike_hotels/internal/storage/mysql"
)

type Deps struct {
	Service *app.SearchService
	Cache   *cache.Service

	closers []func() error
}

// Build connects the stores named by cfg. Redis replaces the in-process
// cache when configured; MySQL is only needed for the match-miss log.
func Build(ctx context.Context, cfg shared.Config) (*Deps, error) {
	d := &Deps{}

	client, err := peloton.New(peloton.Options{
		BaseURL:   cfg.UpstreamBase,
		UserAgent: cfg.UpstreamUserAgent,
		RPS:       cfg.UpstreamRPS,
		Timeout:   cfg.UpstreamTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("upstream client: %w", err)
	}

	var store cache.Store
	name := "memory"
	if cfg.RedisAddr != "" {
		rs := redisad.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB, cfg.CacheTTL)
		if err := rs.Ping(ctx); err != nil {
			_ = rs.Close()
			return nil, fmt.Errorf("redis ping %s: %w", cfg.RedisAddr, err)
		}
		d.closers = append(d.closers, rs.Close)
		store = rs
		name = "redis"
		log.Info().Str("addr", cfg.RedisAddr).Msg("redis cache ok")
	} else {
		store = cache.NewMemoryStore(cfg.CacheMaxEntries)
	}
	d.Cache = cache.New(store, cfg.CacheTTL,
		cache.WithName(name),
		cache.WithFetchTimeout(cfg.UpstreamTimeout*time.Duration(max(cfg.UpstreamAttempts, 1))))

	opts := []app.Option{app.WithAttempts(cfg.UpstreamAttempts)}
	if cfg.MySQLDSN != "" {
		db, err := mysqlrepo.Open(ctx, cfg.MySQLDSN)
		if err != nil {
			d.Close()
			return nil, err
		}
		d.closers = append(d.closers, db.Close)
		opts = append(opts, app.WithMatchMisses(mysqlrepo.New(db)))
		log.Info().Msg("database connection ok")
	}

	d.Service = app.NewSearchService(client, d.Cache, match.New(cfg.MatchStrategy), opts...)
	log.Info().Str("strategy", d.Service.MatcherName()).Dur("cache_ttl", cfg.CacheTTL).Msg("search service ready")
	return d, nil
}

func (d *Deps) Close() error {
	var errs []error
	for i := len(d.closers) - 1; i >= 0; i-- {
		errs = append(errs, d.closers[i]())
	}
	d.closers = nil
	return errors.Join(errs...)
}
