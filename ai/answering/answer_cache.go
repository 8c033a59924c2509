package answering

import (
	"github.com/hrygo/virtualclone/ai/cache"
)

// AnswerCache remembers, per question fingerprint, every answer returned so
// far (oldest first). It holds at most Capacity fingerprints and evicts the
// least recently used one; reads count as uses.
type AnswerCache struct {
	lru *cache.LRUCache[string, []string]
}

// NewAnswerCache creates an answer cache holding capacity fingerprints.
func NewAnswerCache(capacity int) *AnswerCache {
	if capacity <= 0 {
		capacity = DefaultCacheCapacity
	}
	return &AnswerCache{lru: cache.NewLRUCache[string, []string](capacity)}
}

// Get returns a copy of the answers stored for fp, or nil, and marks fp as
// recently used.
func (c *AnswerCache) Get(fp string) []string {
	answers, ok := c.lru.Get(fp)
	if !ok {
		return nil
	}
	out := make([]string, len(answers))
	copy(out, answers)
	return out
}

// Append records answer as the most recent answer for fp.
func (c *AnswerCache) Append(fp, answer string) {
	c.lru.Update(fp, func(current []string, _ bool) []string {
		next := make([]string, len(current), len(current)+1)
		copy(next, current)
		return append(next, answer)
	})
}

// Len returns the number of fingerprints held.
func (c *AnswerCache) Len() int {
	return c.lru.Size()
}

// Capacity returns the maximum number of fingerprints.
func (c *AnswerCache) Capacity() int {
	return c.lru.Capacity()
}

// Contains reports whether fp is cached without touching recency.
func (c *AnswerCache) Contains(fp string) bool {
	return c.lru.Contains(fp)
}

func (c *AnswerCache) onEvict(fn func()) {
	c.lru.OnEvict(func(string, []string) { fn() })
}
