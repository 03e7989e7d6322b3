// Package cache holds small in-process lookup caches.
package cache

import (
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2/expirable"
)

// Default sizing for the username cache.
const (
	DefaultUsernameCacheSize = 1024
	DefaultUsernameCacheTTL  = 5 * time.Minute
)

// UsernameCache maps public usernames to business IDs. Entries expire after
// the configured TTL so renamed or deleted businesses age out.
type UsernameCache struct {
	cache  *lru.LRU[string, uuid.UUID]
	hits   atomic.Int64
	misses atomic.Int64
}

// NewUsernameCache creates a cache holding at most size entries for ttl.
func NewUsernameCache(size int, ttl time.Duration) *UsernameCache {
	if size <= 0 {
		size = DefaultUsernameCacheSize
	}
	if ttl <= 0 {
		ttl = DefaultUsernameCacheTTL
	}
	return &UsernameCache{
		cache: lru.NewLRU[string, uuid.UUID](size, nil, ttl),
	}
}

func usernameKey(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}

// Get returns the cached business ID for username.
func (c *UsernameCache) Get(username string) (uuid.UUID, bool) {
	id, ok := c.cache.Get(usernameKey(username))
	if ok {
		c.hits.Add(1)
	} else {
		c.misses.Add(1)
	}
	return id, ok
}

// Add stores the business ID for username.
func (c *UsernameCache) Add(username string, businessID uuid.UUID) {
	c.cache.Add(usernameKey(username), businessID)
}

// Remove drops username from the cache.
func (c *UsernameCache) Remove(username string) {
	c.cache.Remove(usernameKey(username))
}

// Stats returns the hit and miss counters.
func (c *UsernameCache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

// Len returns the number of live entries.
func (c *UsernameCache) Len() int {
	return c.cache.Len()
}
