package schema

import (
	"sync"

	"github.com/sqlbridge/sqlbridge/internal/dbconn"
	"github.com/sqlbridge/sqlbridge/internal/observability"
)

type Key struct {
	Database string
	Dialect  dbconn.Dialect
}

// Cache maps (database, dialect) to an introspected descriptor. Entries
// never expire; the explicit Invalidate calls are the only freshness
// mechanism. Loads run outside the lock, so concurrent callers racing on
// the same cold key may each run the loader; loads are idempotent and the
// duplicate work is accepted.
type Cache struct {
	mu      sync.Mutex
	entries map[Key]Descriptor
}

func NewCache() *Cache {
	return &Cache{entries: make(map[Key]Descriptor)}
}

// Get returns the cached descriptor or invokes load, stores its result and
// returns it. A failed load stores nothing.
func (c *Cache) Get(key Key, load func() (Descriptor, error)) (Descriptor, error) {
	c.mu.Lock()
	cached, ok := c.entries[key]
	c.mu.Unlock()
	observability.ObserveSchemaCacheLookup(ok)
	if ok {
		return cached, nil
	}

	descriptor, err := load()
	if err != nil {
		return Descriptor{}, err
	}

	c.mu.Lock()
	c.entries[key] = descriptor
	c.mu.Unlock()
	return descriptor, nil
}

// Invalidate drops every entry for the named database across dialects.
func (c *Cache) Invalidate(database string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key := range c.entries {
		if key.Database == database {
			delete(c.entries, key)
		}
	}
}

func (c *Cache) InvalidateAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[Key]Descriptor)
}

func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
