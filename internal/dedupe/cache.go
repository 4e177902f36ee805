// ABOUTME: Generic TTL and size bounded set of recently seen keys.
// ABOUTME: Used by the pending table to recognise responses that arrive after a timeout.

package dedupe

import (
	"container/list"
	"sync"
	"time"
)

type entry[K comparable] struct {
	key  K
	seen time.Time
}

// Cache is a thread-safe set whose members expire after a TTL.
// Insertion order is kept in a list so eviction and pruning are O(1) per entry.
type Cache[K comparable] struct {
	mu      sync.Mutex
	items   map[K]*list.Element
	order   *list.List // oldest at front
	ttl     time.Duration
	maxSize int
	now     func() time.Time
}

// New creates a cache holding at most maxSize keys for ttl each.
func New[K comparable](ttl time.Duration, maxSize int) *Cache[K] {
	return NewWithClock[K](ttl, maxSize, time.Now)
}

// NewWithClock is New with an injectable clock.
func NewWithClock[K comparable](ttl time.Duration, maxSize int, now func() time.Time) *Cache[K] {
	if maxSize < 1 {
		maxSize = 1
	}
	return &Cache[K]{
		items:   make(map[K]*list.Element),
		order:   list.New(),
		ttl:     ttl,
		maxSize: maxSize,
		now:     now,
	}
}

// Mark records key as seen now, refreshing it if already present.
func (c *Cache[K]) Mark(key K) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	c.pruneLocked(now)

	if el, ok := c.items[key]; ok {
		el.Value.(*entry[K]).seen = now
		c.order.MoveToBack(el)
		return
	}

	if len(c.items) >= c.maxSize {
		c.removeLocked(c.order.Front())
	}
	c.items[key] = c.order.PushBack(&entry[K]{key: key, seen: now})
}

// Seen reports whether key was marked within the TTL.
func (c *Cache[K]) Seen(key K) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[key]
	return ok && c.live(el, c.now())
}

// Take reports whether key was marked within the TTL and forgets it.
func (c *Cache[K]) Take(key K) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[key]
	if !ok {
		return false
	}
	live := c.live(el, c.now())
	c.removeLocked(el)
	return live
}

// Len returns the number of stored keys, including ones not yet pruned.
func (c *Cache[K]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

func (c *Cache[K]) live(el *list.Element, now time.Time) bool {
	return now.Sub(el.Value.(*entry[K]).seen) < c.ttl
}

// pruneLocked drops expired entries from the front. Must be called with mu held.
func (c *Cache[K]) pruneLocked(now time.Time) {
	for el := c.order.Front(); el != nil && !c.live(el, now); el = c.order.Front() {
		c.removeLocked(el)
	}
}

func (c *Cache[K]) removeLocked(el *list.Element) {
	if el == nil {
		return
	}
	c.order.Remove(el)
	delete(c.items, el.Value.(*entry[K]).key)
}
