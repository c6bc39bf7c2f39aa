package cache

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// l1 is the in-process tier: an approximate-LRU, TTL-bounded,
// byte-budgeted cache built on hashicorp/golang-lru/v2's expirable LRU.
type l1 struct {
	lru       *expirable.LRU[string, Entry]
	maxBytes  int64
	usedBytes atomic.Int64
	mu        sync.Mutex // serializes Add+byte-accounting, not reads
}

func newL1(maxEntries int, ttl time.Duration, maxBytes int64) *l1 {
	c := &l1{maxBytes: maxBytes}
	c.lru = expirable.NewLRU[string, Entry](maxEntries, c.onEvict, ttl)
	return c
}

func (c *l1) onEvict(_ string, v Entry) {
	c.usedBytes.Add(-v.Size)
}

func (c *l1) Get(key string) (Entry, bool) {
	e, ok := c.lru.Get(key)
	if !ok {
		return Entry{}, false
	}
	if e.Expired(time.Now()) {
		// Lazy removal: an expired entry is dropped the next time it's read.
		c.lru.Remove(key)
		return Entry{}, false
	}
	return e.clone(), true
}

func (c *l1) Set(key string, e Entry) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if old, ok := c.lru.Peek(key); ok {
		c.usedBytes.Add(-old.Size)
	}

	c.lru.Add(key, e)
	c.usedBytes.Add(e.Size)

	for c.usedBytes.Load() > c.maxBytes {
		oldestKey, _, ok := c.lru.GetOldest()
		if !ok {
			break
		}
		c.lru.Remove(oldestKey) // triggers onEvict, shrinking usedBytes
	}
}

func (c *l1) Delete(key string) {
	c.lru.Remove(key)
}

func (c *l1) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Purge()
	c.usedBytes.Store(0)
}

func (c *l1) Len() int {
	return c.lru.Len()
}
