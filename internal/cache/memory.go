package cache

import (
	"context"
	"slices"

	"github.com/maypok86/otter/v2"
)

// MemoryStore keeps entries in a size-bounded otter cache. Tags live only on
// the entries themselves, so nothing outgrows MaximumSize; invalidation scans
// the live entries instead.
type MemoryStore struct {
	c *otter.Cache[string, Entry]
}

func NewMemoryStore(maxEntries int) *MemoryStore {
	if maxEntries <= 0 {
		maxEntries = 1024
	}
	return &MemoryStore{
		c: otter.Must(&otter.Options[string, Entry]{MaximumSize: maxEntries}),
	}
}

func (m *MemoryStore) Get(_ context.Context, key string) (Entry, bool, error) {
	e, ok := m.c.GetIfPresent(key)
	return e, ok, nil
}

func (m *MemoryStore) Put(_ context.Context, key string, e Entry) error {
	m.c.Set(key, e)
	return nil
}

// InvalidateTag removes the live entries carrying tag. It is an admin path;
// a full scan of at most MaximumSize entries is fine there.
func (m *MemoryStore) InvalidateTag(_ context.Context, tag string) (int, error) {
	var keys []string
	for k, e := range m.c.All() {
		if slices.Contains(e.Tags, tag) {
			keys = append(keys, k)
		}
	}
	n := 0
	for _, k := range keys {
		if _, ok := m.c.Invalidate(k); ok {
			n++
		}
	}
	return n, nil
}

// Len reports the live entry count after pending evictions are applied.
func (m *MemoryStore) Len() int {
	m.c.CleanUp()
	return m.c.EstimatedSize()
}
