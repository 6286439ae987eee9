package orchestrator

import (
	"strings"
	"sync"
	"time"
)

const (
	// DefaultCacheTTL bounds how long a memoized response stays valid.
	DefaultCacheTTL = 5 * time.Minute

	// keyPayloadPrefix is how much of the payload feeds the cache key. Long
	// enough to separate distinct snippets, short enough to keep keys
	// bounded.
	keyPayloadPrefix = 120
)

type cacheEntry struct {
	response  string
	createdAt time.Time
}

// ResponseCache memoizes backend responses per (operation, payload prefix,
// mode, conversation). Expiry is lazy: an expired entry simply reads as
// absent, nothing sweeps in the background.
type ResponseCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	entries map[string]cacheEntry
}

// NewResponseCache creates a cache with the default five-minute TTL.
func NewResponseCache() *ResponseCache {
	return &ResponseCache{
		ttl:     DefaultCacheTTL,
		now:     time.Now,
		entries: make(map[string]cacheEntry),
	}
}

// Key builds the composite cache key. The conversation id is part of the key
// so multi-turn answers never leak into stateless ones, and the mode is part
// of the key so short and detailed renderings never collide.
func (c *ResponseCache) Key(operation Operation, payload string, mode Mode, conversationID string) string {
	prefix := payload
	if len(prefix) > keyPayloadPrefix {
		prefix = prefix[:keyPayloadPrefix]
	}
	conv := conversationID
	if conv == "" {
		conv = "no-conversation"
	}
	return strings.Join([]string{string(operation), prefix, string(mode), conv}, "|")
}

// Get returns the cached response if it is still inside the TTL window.
func (c *ResponseCache) Get(key string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		return "", false
	}
	if c.now().Sub(entry.createdAt) >= c.ttl {
		return "", false
	}
	return entry.response, true
}

// Set stores response under key, overwriting any previous entry.
func (c *ResponseCache) Set(key, response string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = cacheEntry{response: response, createdAt: c.now()}
}

// Clear drops every entry. Fired when the response style flips; the mode is
// already in the key, this just keeps the table from holding dead weight.
func (c *ResponseCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]cacheEntry)
}

// Len reports the number of stored entries, expired or not.
func (c *ResponseCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
