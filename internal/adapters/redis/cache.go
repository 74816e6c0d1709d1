package redisad

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"bike_hotels/internal/cache"
)

const (
	entryPrefix = "bike_hotels:entry:"
	// tag indexes are sorted sets scored by the member's expiry (unix seconds)
	tagPrefix = "bike_hotels:tagz:"
)

// Store keeps cache entries in Redis as JSON. Canonical bbox keys are long,
// so both entry and tag keys are hashed. The TTL is only a backstop; the
// cache service decides freshness from Entry.CreatedAt.
//
// Commands are pipelined, never transacted, and every DEL names one key, so
// a cluster client works as well as a single node.
type Store struct {
	c   redis.UniversalClient
	ttl time.Duration
	now func() time.Time
}

type Option func(*Store)

// WithClock replaces time.Now for tag-index scores.
func WithClock(now func() time.Time) Option { return func(s *Store) { s.now = now } }

func New(addr, pass string, db int, ttl time.Duration, opts ...Option) *Store {
	return NewWithClient(redis.NewClient(&redis.Options{Addr: addr, Password: pass, DB: db}), ttl, opts...)
}

func NewWithClient(c redis.UniversalClient, ttl time.Duration, opts ...Option) *Store {
	if ttl <= 0 {
		ttl = 2 * cache.DefaultWindow
	}
	s := &Store{c: c, ttl: ttl, now: time.Now}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (r *Store) Ping(ctx context.Context) error { return r.c.Ping(ctx).Err() }

func (r *Store) Close() error { return r.c.Close() }

func entryKey(key string) string { return entryPrefix + digest(key) }
func tagKey(tag string) string   { return tagPrefix + digest(tag) }

func digest(s string) string {
	sum := sha1.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}

func (r *Store) Get(ctx context.Context, key string) (cache.Entry, bool, error) {
	v, err := r.c.Get(ctx, entryKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return cache.Entry{}, false, nil
	}
	if err != nil {
		return cache.Entry{}, false, err
	}
	var e cache.Entry
	if err := json.Unmarshal(v, &e); err != nil {
		return cache.Entry{}, false, err
	}
	return e, true, nil
}

// Put writes the entry and indexes it under each tag. Members whose entry
// has already expired are pruned from those tags on the way, so an index
// that keeps being refreshed only ever holds live keys.
func (r *Store) Put(ctx context.Context, key string, e cache.Entry) error {
	b, err := json.Marshal(e)
	if err != nil {
		return err
	}
	now := r.now()
	ek := entryKey(key)
	expiresAt := float64(now.Add(r.ttl).Unix())
	stale := strconv.FormatInt(now.Unix(), 10)

	_, err = r.c.Pipelined(ctx, func(p redis.Pipeliner) error {
		p.Set(ctx, ek, b, r.ttl)
		for _, t := range e.Tags {
			tk := tagKey(t)
			p.ZAdd(ctx, tk, redis.Z{Score: expiresAt, Member: ek})
			p.ZRemRangeByScore(ctx, tk, "-inf", stale)
			p.Expire(ctx, tk, r.ttl)
		}
		return nil
	})
	return err
}

// InvalidateTag deletes every entry listed under tag. Members whose entry
// already expired are not counted.
func (r *Store) InvalidateTag(ctx context.Context, tag string) (int, error) {
	tk := tagKey(tag)
	members, err := r.c.ZRangeByScore(ctx, tk, &redis.ZRangeBy{
		Min: "(" + strconv.FormatInt(r.now().Unix(), 10),
		Max: "+inf",
	}).Result()
	if err != nil {
		return 0, err
	}

	dels := make([]*redis.IntCmd, 0, len(members))
	if len(members) > 0 {
		_, err = r.c.Pipelined(ctx, func(p redis.Pipeliner) error {
			for _, m := range members {
				dels = append(dels, p.Del(ctx, m))
			}
			return nil
		})
		if err != nil {
			return 0, err
		}
	}
	n := 0
	for _, d := range dels {
		n += int(d.Val())
	}
	if err := r.c.Del(ctx, tk).Err(); err != nil {
		return n, err
	}
	return n, nil
}
