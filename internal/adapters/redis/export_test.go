package redisad

import "context"

// TagSize is the number of keys indexed under tag, live or not.
func (r *Store) TagSize(ctx context.Context, tag string) (int64, error) {
	return r.c.ZCard(ctx, tagKey(tag)).Result()
}
