package classifier

import (
	"container/list"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"sync"
	"time"
)

const (
	cacheTTL      = time.Hour
	cacheCapacity = 1000
)

// Fingerprint computes the classification-cache key for a user message:
// a stable hash of the lowercased, whitespace-normalized first 500
// characters.
func Fingerprint(userText string) string {
	normalized := strings.Join(strings.Fields(strings.ToLower(userText)), " ")
	if runes := []rune(normalized); len(runes) > 500 {
		normalized = string(runes[:500])
	}
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])
}

type cacheEntry struct {
	fingerprint string
	tier        Tier
	insertedAt  time.Time
	elem        *list.Element
}

// Cache is the single mutable structure the LLM Classifier owns: an
// in-memory, TTL-bounded, capacity-bounded fingerprint→tier cache. It
// implements a lookup/insert/invalidate surface so tests can stub
// classification without a real cache, per the "cache as arena" design
// note. Safe for concurrent use.
type Cache struct {
	mu       sync.Mutex
	entries  map[string]*cacheEntry
	order    *list.List // front = oldest insertion
	ttl      time.Duration
	capacity int
	now      func() time.Time
}

// NewCache constructs an empty cache with the spec's fixed TTL (1 hour)
// and capacity (1000 entries).
func NewCache() *Cache {
	return &Cache{
		entries:  make(map[string]*cacheEntry),
		order:    list.New(),
		ttl:      cacheTTL,
		capacity: cacheCapacity,
		now:      time.Now,
	}
}

// Lookup returns the cached tier for a fingerprint, evicting it lazily
// first if it has expired. ok is false on miss or expiry.
func (c *Cache) Lookup(fingerprint string) (tier Tier, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, found := c.entries[fingerprint]
	if !found {
		return TierSimple, false
	}
	if c.now().Sub(entry.insertedAt) > c.ttl {
		c.removeLocked(entry)
		return TierSimple, false
	}
	return entry.tier, true
}

// Insert records a classification result for a fingerprint. If the cache
// is at capacity, the oldest entry (by insertion time) is dropped first.
func (c *Cache) Insert(fingerprint string, tier Tier) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if existing, found := c.entries[fingerprint]; found {
		c.removeLocked(existing)
	}

	if len(c.entries) >= c.capacity {
		if oldest := c.order.Front(); oldest != nil {
			c.removeLocked(oldest.Value.(*cacheEntry))
		}
	}

	entry := &cacheEntry{
		fingerprint: fingerprint,
		tier:        tier,
		insertedAt:  c.now(),
	}
	entry.elem = c.order.PushBack(entry)
	c.entries[fingerprint] = entry
}

// Invalidate clears every cache entry. Called when POST /reload signals
// a cache invalidation.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*cacheEntry)
	c.order = list.New()
}

// Len reports the current entry count, for tests asserting the capacity
// invariant.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *Cache) removeLocked(entry *cacheEntry) {
	delete(c.entries, entry.fingerprint)
	c.order.Remove(entry.elem)
}
