// Package memory provides an in-process draft cache.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/tjfontaine/polyglot-itinerary/internal/core/domain"
	"github.com/tjfontaine/polyglot-itinerary/internal/core/ports"
)

type entry struct {
	value     *domain.GeneratedItinerary
	expiresAt time.Time
}

// Cache is an insert-only map with per-entry expiry. Values are cloned on the
// way in and out so callers never share an itinerary.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]entry
	now     func() time.Time
}

var _ ports.ResponseCache = (*Cache)(nil)

// New creates an empty cache.
func New() *Cache {
	return &Cache{entries: make(map[string]entry), now: time.Now}
}

func (c *Cache) Get(ctx context.Context, key string) (*domain.GeneratedItinerary, bool, error) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok || c.expired(e) {
		return nil, false, nil
	}
	return e.value.Clone(), true, nil
}

// PutIfAbsent stores value unless a live entry exists. Expired entries are replaced.
func (c *Cache) PutIfAbsent(ctx context.Context, key string, value *domain.GeneratedItinerary, ttl time.Duration) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key]; ok && !c.expired(e) {
		return false, nil
	}
	e := entry{value: value.Clone()}
	if ttl > 0 {
		e.expiresAt = c.now().Add(ttl)
	}
	c.entries[key] = e
	return true, nil
}

// Len returns the number of stored entries, live or expired.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *Cache) expired(e entry) bool {
	return !e.expiresAt.IsZero() && !c.now().Before(e.expiresAt)
}
