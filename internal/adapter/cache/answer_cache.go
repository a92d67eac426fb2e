package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"

	"finrag/internal/domain"
)

// AnswerCache memoizes query answers keyed by (question, topK). Entries
// expire after a TTL and are invalidated wholesale whenever the store
// generation changes (any ingest or clear).
type AnswerCache struct {
	mu       sync.RWMutex
	entries  map[string]*cacheEntry
	order    []string
	maxSize  int
	ttl      time.Duration
	storeGen uint64
}

type cacheEntry struct {
	answer    domain.Answer
	timestamp time.Time
	storeGen  uint64
}

func NewAnswerCache(maxSize int, ttl time.Duration) *AnswerCache {
	if maxSize <= 0 {
		maxSize = 100
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &AnswerCache{
		entries: make(map[string]*cacheEntry),
		order:   make([]string, 0, maxSize),
		maxSize: maxSize,
		ttl:     ttl,
	}
}

func cacheKey(question string, topK int) string {
	data := []byte(question)
	data = append(data, byte(topK>>8), byte(topK))
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:16])
}

// Get returns a cached answer if present, fresh, and from the current store
// generation.
func (c *AnswerCache) Get(question string, topK int) (domain.Answer, bool) {
	c.mu.RLock()
	key := cacheKey(question, topK)
	entry, exists := c.entries[key]
	currentGen := c.storeGen
	c.mu.RUnlock()

	if !exists {
		return domain.Answer{}, false
	}
	if entry.storeGen != currentGen || time.Since(entry.timestamp) > c.ttl {
		return domain.Answer{}, false
	}
	return entry.answer, true
}

// Put stores an answer, evicting the oldest entry at capacity.
func (c *AnswerCache) Put(question string, topK int, answer domain.Answer) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := cacheKey(question, topK)
	if _, exists := c.entries[key]; !exists {
		if len(c.order) >= c.maxSize {
			oldest := c.order[0]
			c.order = c.order[1:]
			delete(c.entries, oldest)
		}
		c.order = append(c.order, key)
	}
	c.entries[key] = &cacheEntry{
		answer:    answer,
		timestamp: time.Now(),
		storeGen:  c.storeGen,
	}
}

// Invalidate bumps the store generation, making every cached entry stale.
func (c *AnswerCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.storeGen++
}

// Len returns the number of entries, stale ones included.
func (c *AnswerCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
