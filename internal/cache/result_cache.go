package cache

import (
	"container/list"
	"sync"
	"time"
)

// DefaultMaxEntries bounds a ResultCache when no explicit limit is given.
const DefaultMaxEntries = 1000

// Entry is a cached value with its bookkeeping metadata. LastAccessed and
// AccessCount mutate on every successful Get; everything else is fixed at
// insertion time.
type Entry struct {
	Key          string
	Value        interface{}
	CreatedAt    time.Time
	LastAccessed time.Time
	AccessCount  int64
	TTL          time.Duration // zero means no expiry
}

func (e *Entry) expired(now time.Time) bool {
	return e.TTL > 0 && now.Sub(e.CreatedAt) > e.TTL
}

// ResultCache is a TTL-bounded key/value store with a hard entry limit.
// When the limit is exceeded the single oldest-inserted entry is evicted;
// insertion order, not access order. Callers needing true LRU must track
// access themselves. Expiry is lazy on Get plus the out-of-band Sweep.
type ResultCache struct {
	mu         sync.Mutex
	entries    map[string]*list.Element // values are *Entry
	order      *list.List               // front = oldest insertion
	maxEntries int
}

// NewResultCache creates a cache bounded at maxEntries
// (DefaultMaxEntries if maxEntries <= 0).
func NewResultCache(maxEntries int) *ResultCache {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	return &ResultCache{
		entries:    make(map[string]*list.Element),
		order:      list.New(),
		maxEntries: maxEntries,
	}
}

// Store inserts value under key. A zero ttl means the entry never expires
// by age. Overwriting an existing key counts as a fresh insertion: the
// entry moves to the back of the eviction order and CreatedAt resets.
func (c *ResultCache) Store(key string, value interface{}, ttl time.Duration) {
	now := time.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.entries[key]; ok {
		entry := elem.Value.(*Entry)
		entry.Value = value
		entry.CreatedAt = now
		entry.TTL = ttl
		c.order.MoveToBack(elem)
		return
	}

	if c.order.Len() >= c.maxEntries {
		c.evictOldestLocked()
	}

	entry := &Entry{
		Key:       key,
		Value:     value,
		CreatedAt: now,
		TTL:       ttl,
	}
	c.entries[key] = c.order.PushBack(entry)
}

// Get returns the value for key. Expired entries are deleted and reported
// as a miss.
func (c *ResultCache) Get(key string) (interface{}, bool) {
	now := time.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.entries[key]
	if !ok {
		return nil, false
	}

	entry := elem.Value.(*Entry)
	if entry.expired(now) {
		c.removeLocked(key, elem)
		return nil, false
	}

	entry.LastAccessed = now
	entry.AccessCount++
	return entry.Value, true
}

// Delete removes key if present.
func (c *ResultCache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.entries[key]; ok {
		c.removeLocked(key, elem)
	}
}

// Len returns the number of live entries (expired-but-unswept included).
func (c *ResultCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// Clear removes every entry.
func (c *ResultCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*list.Element)
	c.order.Init()
}

// Sweep proactively deletes expired entries and returns how many were
// removed. The scan holds the cache lock but is bounded by maxEntries, so
// foreground reads and writes see at most a short delay, never a block for
// the duration of a slow sweep elsewhere.
func (c *ResultCache) Sweep() int {
	now := time.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for elem := c.order.Front(); elem != nil; {
		next := elem.Next()
		entry := elem.Value.(*Entry)
		if entry.expired(now) {
			c.removeLocked(entry.Key, elem)
			removed++
		}
		elem = next
	}
	return removed
}

func (c *ResultCache) evictOldestLocked() {
	front := c.order.Front()
	if front == nil {
		return
	}
	entry := front.Value.(*Entry)
	c.removeLocked(entry.Key, front)
}

func (c *ResultCache) removeLocked(key string, elem *list.Element) {
	c.order.Remove(elem)
	delete(c.entries, key)
}
