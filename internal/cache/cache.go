package cache

import (
	"context"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/kjstillabower/disaster-alert/internal/models"
)

// Cache stores the last fetched sample per location.
// Freshness is decided by the caller from CacheEntry.CapturedAt; ttl only lets a backend evict.
type Cache interface {
	Get(ctx context.Context, location string) (models.CacheEntry, bool, error)
	Set(ctx context.Context, entry models.CacheEntry, ttl time.Duration) error
	// Backend names the implementation for metric labels.
	Backend() string
}

// Key maps a location to a stable cache key: lower-cased, letters and digits kept, everything else '_'.
func Key(location string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return unicode.ToLower(r)
		}
		return '_'
	}, strings.TrimSpace(location))
}

// InMemoryCache implements Cache using a map. Safe for concurrent use.
type InMemoryCache struct {
	mu   sync.RWMutex
	data map[string]models.CacheEntry
}

// NewInMemoryCache creates a new in-memory cache instance.
func NewInMemoryCache() *InMemoryCache {
	return &InMemoryCache{
		data: make(map[string]models.CacheEntry),
	}
}

// Get returns the stored entry for location. Entries are never evicted.
func (c *InMemoryCache) Get(ctx context.Context, location string) (models.CacheEntry, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.data[Key(location)]
	return entry, ok, nil
}

// Set replaces the entry for entry.Location.
func (c *InMemoryCache) Set(ctx context.Context, entry models.CacheEntry, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[Key(entry.Location)] = entry
	return nil
}

func (c *InMemoryCache) Backend() string { return "memory" }
