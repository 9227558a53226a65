package creation

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

type cacheEntry[V any] struct {
	value     V
	expiresAt time.Time
}

// Cache is an in-memory cache with a fixed TTL. A zero TTL disables caching.
type Cache[V any] struct {
	clock clock.Clock
	ttl   time.Duration

	mu      sync.Mutex
	data    map[string]cacheEntry[V]
	hits    int64
	misses  int64
	evicted int64
}

// NewCache creates a cache; clk may be nil for the wall clock.
func NewCache[V any](ttl time.Duration, clk clock.Clock) *Cache[V] {
	if clk == nil {
		clk = clock.New()
	}

	return &Cache[V]{
		clock: clk,
		ttl:   ttl,
		data:  make(map[string]cacheEntry[V]),
	}
}

// Get returns a live entry.
func (c *Cache[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V

	entry, ok := c.data[key]
	if !ok {
		c.misses++

		return zero, false
	}

	if !c.clock.Now().Before(entry.expiresAt) {
		delete(c.data, key)
		c.evicted++
		c.misses++

		return zero, false
	}

	c.hits++

	return entry.value, true
}

// Set stores a value for the TTL.
func (c *Cache[V]) Set(key string, value V) {
	if c.ttl <= 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.data[key] = cacheEntry[V]{
		value:     value,
		expiresAt: c.clock.Now().Add(c.ttl),
	}
}

// Stats returns hit, miss and eviction counters and the current size.
func (c *Cache[V]) Stats() (hits, misses, evicted int64, size int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.hits, c.misses, c.evicted, len(c.data)
}
