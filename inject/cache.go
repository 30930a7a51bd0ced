// Copyright 2026 The GitChain Authors
// SPDX-License-Identifier: Apache-2.0

package inject

import (
	"strings"
	"sync"
	"time"

	"github.com/gitchain-foundation/gitchain/lib/clock"
	"github.com/gitchain-foundation/gitchain/store"
)

// Cache memoizes container reads for the injection path. Entries
// expire after a fixed TTL and are purged eagerly when the store
// reports a write to the same identifier. A nil *Cache is valid and
// caches nothing, so the resolver works unchanged with caching
// disabled.
type Cache struct {
	mu      sync.Mutex
	clock   clock.Clock
	ttl     time.Duration
	entries map[string]cacheEntry
}

type cacheEntry struct {
	container store.Container
	expires   time.Time
}

// NewCache builds a cache with the given entry lifetime.
func NewCache(ttl time.Duration, clk clock.Clock) *Cache {
	if clk == nil {
		clk = clock.Real()
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Cache{
		clock:   clk,
		ttl:     ttl,
		entries: make(map[string]cacheEntry),
	}
}

// Get returns the cached container for the key if present and fresh.
func (c *Cache) Get(key string) (store.Container, bool) {
	if c == nil {
		return store.Container{}, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		return store.Container{}, false
	}
	if c.clock.Now().After(entry.expires) {
		delete(c.entries, key)
		return store.Container{}, false
	}
	return entry.container, true
}

// Set stores a container under the key with the cache's TTL.
func (c *Cache) Set(key string, container store.Container) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = cacheEntry{
		container: container,
		expires:   c.clock.Now().Add(c.ttl),
	}
}

// Invalidate drops every entry whose key starts with the prefix and
// returns how many were removed. The store calls this on every write
// with the written identifier's key, which covers all cached versions
// including "latest".
func (c *Cache) Invalidate(prefix string) int {
	if c == nil {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for key := range c.entries {
		if strings.HasPrefix(key, prefix) {
			delete(c.entries, key)
			removed++
		}
	}
	return removed
}

// Len reports the number of entries, counting expired ones not yet
// collected.
func (c *Cache) Len() int {
	if c == nil {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
