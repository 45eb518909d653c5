// Package cache keeps recently fetched detail mappings in memory so repeated
// lookups of the same detail page within a caller-chosen window skip the
// network.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"sync"
	"time"

	"github.com/use-agent/savings/models"
)

const (
	sweepInterval = 5 * time.Minute
	retention     = time.Hour
)

type entry struct {
	pairs     models.DetailMapping
	createdAt time.Time
}

// Cache maps detail URLs to their parsed pairs. It is safe for concurrent use.
type Cache struct {
	mu         sync.RWMutex
	store      map[string]*entry
	maxEntries int
	now        func() time.Time
}

// New creates a Cache holding at most maxEntries mappings and starts the
// background sweep that drops entries older than an hour.
func New(maxEntries int) *Cache {
	c := newCache(maxEntries)
	go c.cleanupLoop()
	return c
}

func newCache(maxEntries int) *Cache {
	if maxEntries < 1 {
		maxEntries = 1
	}
	return &Cache{
		store:      make(map[string]*entry),
		maxEntries: maxEntries,
		now:        time.Now,
	}
}

// Key hashes a detail URL. Surrounding whitespace is ignored.
func Key(url string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(url)))
	return hex.EncodeToString(sum[:])
}

// Get returns the mapping stored under key if it is younger than maxAgeMs
// milliseconds. maxAgeMs <= 0 disables the lookup.
func (c *Cache) Get(key string, maxAgeMs int) (models.DetailMapping, bool) {
	if maxAgeMs <= 0 {
		return models.DetailMapping{}, false
	}

	c.mu.RLock()
	e, ok := c.store[key]
	c.mu.RUnlock()
	if !ok {
		return models.DetailMapping{}, false
	}

	if c.now().Sub(e.createdAt) > time.Duration(maxAgeMs)*time.Millisecond {
		return models.DetailMapping{}, false
	}
	return e.pairs, true
}

// Set stores pairs under key. At capacity an arbitrary entry is evicted.
func (c *Cache) Set(key string, pairs models.DetailMapping) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.store[key]; !exists && len(c.store) >= c.maxEntries {
		for k := range c.store {
			delete(c.store, k)
			break
		}
	}

	c.store[key] = &entry{pairs: pairs, createdAt: c.now()}
}

// Len returns the number of stored entries.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.store)
}

func (c *Cache) sweep(cutoff time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k, e := range c.store {
		if e.createdAt.Before(cutoff) {
			delete(c.store, k)
		}
	}
}

func (c *Cache) cleanupLoop() {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for range ticker.C {
		c.sweep(c.now().Add(-retention))
	}
}
