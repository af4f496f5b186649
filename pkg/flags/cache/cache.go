package cache

import (
	"sync"
	"time"
)

// DefaultTTL bounds staleness when no TTL is configured.
const DefaultTTL = 30 * time.Second

// entry is one cached decision with its insertion time.
type entry struct {
	value      bool
	insertedAt time.Time
}

// Cache maps (tenantID, flagKey) to a cached boolean decision with a fixed
// TTL. It is owned by exactly one evaluator and therefore implicitly scoped
// to that evaluator's environment; no environment appears in the key.
//
// Cache is thread-safe. Concurrent Get/Set on the same key may race, which
// is benign: cached values are idempotent projections of store state, so the
// only effect of a race is which of two equally valid reads wins the slot.
type Cache struct {
	ttl     time.Duration
	entries map[string]entry
	mu      sync.RWMutex

	done      chan struct{}
	closeOnce sync.Once

	// now is swappable for TTL expiry tests.
	now func() time.Time
}

// Config configures a Cache.
type Config struct {
	// TTL is how long entries stay valid. Default: 30 seconds.
	TTL time.Duration

	// CleanupInterval is how often the background janitor sweeps expired
	// entries. Zero disables the janitor; expired entries are then dropped
	// lazily on read.
	CleanupInterval time.Duration
}

// New creates a cache with the given TTL and no background janitor.
func New(ttl time.Duration) *Cache {
	return NewWithConfig(Config{TTL: ttl})
}

// NewWithConfig creates a cache with custom configuration.
func NewWithConfig(cfg Config) *Cache {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}

	c := &Cache{
		ttl:     cfg.TTL,
		entries: make(map[string]entry),
		done:    make(chan struct{}),
		now:     time.Now,
	}

	if cfg.CleanupInterval > 0 {
		go c.cleanupLoop(cfg.CleanupInterval)
	}

	return c
}

func key(tenantID, flagKey string) string {
	return tenantID + ":" + flagKey
}

// Get returns the cached value for (tenantID, flagKey). The second return
// is false on a miss, which covers both absent and expired entries.
func (c *Cache) Get(tenantID, flagKey string) (bool, bool) {
	k := key(tenantID, flagKey)

	c.mu.RLock()
	e, ok := c.entries[k]
	c.mu.RUnlock()

	if !ok {
		return false, false
	}
	if c.now().Sub(e.insertedAt) > c.ttl {
		// Expired. Drop it so the map does not accumulate dead entries
		// between janitor sweeps.
		c.mu.Lock()
		if cur, ok := c.entries[k]; ok && cur.insertedAt.Equal(e.insertedAt) {
			delete(c.entries, k)
		}
		c.mu.Unlock()
		return false, false
	}
	return e.value, true
}

// Set stores the value for (tenantID, flagKey) with the current timestamp.
func (c *Cache) Set(tenantID, flagKey string, value bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key(tenantID, flagKey)] = entry{value: value, insertedAt: c.now()}
}

// Invalidate removes the entry for (tenantID, flagKey), if any.
func (c *Cache) Invalidate(tenantID, flagKey string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key(tenantID, flagKey))
}

// InvalidateAll clears every entry. Used after bulk or administrative
// changes whose blast radius is unknown.
func (c *Cache) InvalidateAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]entry)
}

// Len returns the current number of entries, expired or not.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// TTL returns the fixed TTL the cache was constructed with.
func (c *Cache) TTL() time.Duration {
	return c.ttl
}

// Close stops the background janitor, if one is running.
func (c *Cache) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
	})
}

// cleanupLoop periodically sweeps expired entries.
func (c *Cache) cleanupLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.removeExpired()
		}
	}
}

func (c *Cache) removeExpired() {
	now := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()
	for k, e := range c.entries {
		if now.Sub(e.insertedAt) > c.ttl {
			delete(c.entries, k)
		}
	}
}
