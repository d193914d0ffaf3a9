package llm

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"sync"
	"time"
)

const defaultCacheTTL = 15 * time.Minute

type cacheEntry struct {
	expiry time.Time
	text   string
}

// responseCache keeps generated text keyed by prompt and token budget.
// Expired entries are dropped lazily on lookup.
type responseCache struct {
	entries map[string]cacheEntry
	now     func() time.Time
	ttl     time.Duration
	mu      sync.Mutex
}

func newResponseCache(ttl time.Duration) *responseCache {
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	return &responseCache{
		entries: make(map[string]cacheEntry),
		now:     time.Now,
		ttl:     ttl,
	}
}

func cacheKey(prompt string, maxTokens int) string {
	sum := sha256.Sum256([]byte(strconv.Itoa(maxTokens) + "\x00" + prompt))
	return hex.EncodeToString(sum[:])
}

func (c *responseCache) get(key string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		return "", false
	}
	if c.now().After(entry.expiry) {
		delete(c.entries, key)
		return "", false
	}
	return entry.text, true
}

func (c *responseCache) set(key, text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = cacheEntry{text: text, expiry: c.now().Add(c.ttl)}
}

func (c *responseCache) size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
