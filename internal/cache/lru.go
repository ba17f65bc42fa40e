// Package cache implements the generic "LRU with can_evict predicate"
// policy spec §9 calls for: an entry is evictable only if it carries no
// outstanding handle and is not pinned (system tables, in-use databases).
// Eviction scans from the LRU tail until an evictable entry is found or
// the whole cache is pinned, in which case the caller gets CacheFull.
package cache

import (
	"container/list"
	"sync"

	"github.com/siodb/iomgr/internal/ioerr"
)

type entry[K comparable, V any] struct {
	key      K
	value    V
	useCount int
	pinned   bool
}

// LRU is a fixed-capacity cache keyed by K, holding values V, with
// use-count and pin tracking per spec's TableCache/ColumnSetCache/
// ConstraintDefinitionCache/ColumnDefinitionCache/DatabaseCache (§4.9,
// §9).
type LRU[K comparable, V any] struct {
	mu       sync.Mutex
	capacity int
	order    *list.List // front = most recently used
	elems    map[K]*list.Element
}

// New creates an LRU of the given capacity (spec §4.9: configurable per
// cache kind).
func New[K comparable, V any](capacity int) *LRU[K, V] {
	return &LRU[K, V]{capacity: capacity, order: list.New(), elems: make(map[K]*list.Element)}
}

// Get returns the value for key, bumping it to most-recently-used.
func (c *LRU[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	el, ok := c.elems[key]
	if !ok {
		var zero V
		return zero, false
	}
	c.order.MoveToFront(el)
	return el.Value.(*entry[K, V]).value, true
}

// Put inserts or replaces key's value, pinning it if pinned is true
// (system objects and the like, spec §4.9's "never evicted"). Returns
// CacheFull if the cache is at capacity and no entry can be evicted.
func (c *LRU[K, V]) Put(key K, value V, pinned bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.elems[key]; ok {
		e := el.Value.(*entry[K, V])
		e.value = value
		e.pinned = pinned
		c.order.MoveToFront(el)
		return nil
	}
	if c.order.Len() >= c.capacity {
		if !c.evictOneLocked() {
			return ioerr.Userf("CacheFull", "cache at capacity with no evictable entry")
		}
	}
	e := &entry[K, V]{key: key, value: value, pinned: pinned}
	c.elems[key] = c.order.PushFront(e)
	return nil
}

// Acquire increments key's use count, preventing eviction until a
// matching Release (spec §9 "no outstanding handle").
func (c *LRU[K, V]) Acquire(key K) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.elems[key]; ok {
		el.Value.(*entry[K, V]).useCount++
		c.order.MoveToFront(el)
	}
}

// Release decrements key's use count.
func (c *LRU[K, V]) Release(key K) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.elems[key]; ok {
		if e := el.Value.(*entry[K, V]); e.useCount > 0 {
			e.useCount--
		}
	}
}

// evictOneLocked scans from the LRU tail for the first evictable entry
// (use_count == 0, not pinned) and removes it. Caller holds c.mu.
func (c *LRU[K, V]) evictOneLocked() bool {
	for el := c.order.Back(); el != nil; el = el.Prev() {
		e := el.Value.(*entry[K, V])
		if e.useCount == 0 && !e.pinned {
			c.order.Remove(el)
			delete(c.elems, e.key)
			return true
		}
	}
	return false
}

// Len reports the number of entries currently cached.
func (c *LRU[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// Remove evicts key unconditionally (used when an object is dropped).
func (c *LRU[K, V]) Remove(key K) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.elems[key]; ok {
		c.order.Remove(el)
		delete(c.elems, key)
	}
}
