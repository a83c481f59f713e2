// Package cache provides a time-expiring key/value store used for search and
// playlist-entry results, so repeated lookups avoid hitting the extraction
// backend.
package cache

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

type entry[V any] struct {
	storedAt time.Time
	value    V
}

// Cache maps string keys to timestamped values. Stale entries are treated as
// absent on read and removed in bulk by SweepExpired; reads never evict.
type Cache[V any] struct {
	mu  sync.RWMutex
	ttl time.Duration
	m   map[string]entry[V]
}

func New[V any](ttl time.Duration) *Cache[V] {
	return &Cache[V]{
		ttl: ttl,
		m:   make(map[string]entry[V]),
	}
}

// Get returns the cached value if it is younger than the TTL.
func (c *Cache[V]) Get(key string) (V, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.m[key]
	if !ok || time.Since(e.storedAt) >= c.ttl {
		var zero V
		return zero, false
	}
	return e.value, true
}

// Put stores the value, overwriting any previous entry for the key.
func (c *Cache[V]) Put(key string, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.m[key] = entry[V]{storedAt: time.Now(), value: value}
}

// SweepExpired removes all entries older than the TTL and returns how many
// were dropped. Meant to run on a periodic timer, independent of access.
func (c *Cache[V]) SweepExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for k, e := range c.m {
		if time.Since(e.storedAt) >= c.ttl {
			delete(c.m, k)
			removed++
		}
	}
	return removed
}

// Len returns the number of entries currently held, expired or not.
func (c *Cache[V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.m)
}

// RunSweeper sweeps the cache on the given interval until ctx is done.
func (c *Cache[V]) RunSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := c.SweepExpired(); n > 0 {
				log.Debug().Int("removed", n).Msg("cache sweep")
			}
		}
	}
}
