// Package cache memoizes handler resolution results in a bounded LRU.
//
// The cache is owned by a single dispatcher and is never shared. It stores
// negative results too, so repeated lookups of an unregistered action skip the
// registry walk. Consistency with the registry is the owner's job: every
// registry mutation must call Invalidate.
package cache

import (
	"sync"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/dshills/actionroute/internal/dispatcher/handler"
)

// DefaultCapacity is the capacity used when none, or a non-positive one, is given.
const DefaultCapacity = 256

// Entry is a memoized resolution result.
type Entry struct {
	// Handler is the resolved handler; nil when Found is false.
	Handler handler.Handler
	// Found is false for a memoized "not found".
	Found bool
}

// NotFound is the entry stored for failed resolutions.
var NotFound = Entry{}

// Stats is a snapshot of cache statistics. Counters cover the period since the
// cache was last enabled or invalidated.
type Stats struct {
	Hits      uint64
	Misses    uint64
	Evictions uint64
	Capacity  int
	Size      int
}

// Cache is a toggleable, resizable LRU of resolution results.
type Cache struct {
	mu       sync.RWMutex
	store    *lru.Cache[string, Entry]
	enabled  bool
	capacity int

	hits      atomic.Uint64
	misses    atomic.Uint64
	evictions atomic.Uint64
}

// New creates a cache. A disabled cache still remembers its capacity for a
// later Enable.
func New(enabled bool, capacity int) *Cache {
	c := &Cache{capacity: normalizeCapacity(capacity)}
	if enabled {
		c.Enable(0)
	}
	return c
}

func normalizeCapacity(capacity int) int {
	if capacity <= 0 {
		return DefaultCapacity
	}
	return capacity
}

// newStore builds the backing LRU. Callers must hold c.mu.
func (c *Cache) newStore() *lru.Cache[string, Entry] {
	store, err := lru.NewWithEvict(c.capacity, func(string, Entry) {
		c.evictions.Add(1)
	})
	if err != nil {
		// Only returned for a non-positive size, which normalizeCapacity rules out.
		panic(err)
	}
	return store
}

// Enable turns the cache on with a fresh, empty store and zeroed statistics.
// A positive capacity replaces the configured one.
func (c *Cache) Enable(capacity int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if capacity > 0 {
		c.capacity = capacity
	}
	c.store = c.newStore()
	c.enabled = true
	c.resetCounters()
}

// Disable turns the cache off and drops every entry.
func (c *Cache) Disable() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.enabled = false
	c.store = nil
}

// Enabled reports whether the cache is on.
func (c *Cache) Enabled() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.enabled
}

// Capacity returns the configured capacity.
func (c *Cache) Capacity() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.capacity
}

// Resize changes the capacity, evicting the least recently used entries if
// the cache shrinks. Statistics are kept.
func (c *Cache) Resize(capacity int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.capacity = normalizeCapacity(capacity)
	if c.store != nil {
		c.store.Resize(c.capacity)
	}
}

// Get returns the memoized entry for key. A disabled cache always misses
// without counting.
func (c *Cache) Get(key string) (Entry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if !c.enabled {
		return Entry{}, false
	}
	e, ok := c.store.Get(key)
	if ok {
		c.hits.Add(1)
	} else {
		c.misses.Add(1)
	}
	return e, ok
}

// Add memoizes an entry. No-op when disabled.
func (c *Cache) Add(key string, e Entry) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if !c.enabled {
		return
	}
	c.store.Add(key, e)
}

// Invalidate drops every entry and zeroes the statistics.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.store != nil {
		c.store.Purge()
	}
	c.resetCounters()
}

// Stats returns a statistics snapshot.
func (c *Cache) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	s := Stats{
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Evictions: c.evictions.Load(),
		Capacity:  c.capacity,
	}
	if c.store != nil {
		s.Size = c.store.Len()
	}
	return s
}

func (c *Cache) resetCounters() {
	c.hits.Store(0)
	c.misses.Store(0)
	c.evictions.Store(0)
}
