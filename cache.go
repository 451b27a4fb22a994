package drivalyze

import (
	"sync"
	"time"
)

// OptionCache stores option lists keyed by ScopeKey.Identifier. Only
// successful fetches are cached.
type OptionCache interface {
	Get(key string) (OptionSet, bool)
	Set(key string, options OptionSet)
}

type cachedOptions struct {
	options OptionSet
	expires time.Time
}

// MemoryOptionCache is a concurrency-safe in-memory OptionCache. Entries
// expire after ttl; a ttl of zero keeps them forever.
type MemoryOptionCache struct {
	mu      sync.RWMutex
	ttl     time.Duration
	now     func() time.Time
	entries map[string]cachedOptions
}

// NewMemoryOptionCache constructs an empty cache.
func NewMemoryOptionCache(ttl time.Duration) *MemoryOptionCache {
	return &MemoryOptionCache{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]cachedOptions),
	}
}

func (c *MemoryOptionCache) Get(key string) (OptionSet, bool) {
	if c == nil {
		return OptionSet{}, false
	}
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return OptionSet{}, false
	}
	if !entry.expires.IsZero() && !c.now().Before(entry.expires) {
		c.mu.Lock()
		delete(c.entries, key)
		c.mu.Unlock()
		return OptionSet{}, false
	}
	return entry.options, true
}

func (c *MemoryOptionCache) Set(key string, options OptionSet) {
	if c == nil {
		return
	}
	entry := cachedOptions{options: options}
	if c.ttl > 0 {
		entry.expires = c.now().Add(c.ttl)
	}
	c.mu.Lock()
	c.entries[key] = entry
	c.mu.Unlock()
}

// Purge drops every entry.
func (c *MemoryOptionCache) Purge() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.entries = make(map[string]cachedOptions)
	c.mu.Unlock()
}
