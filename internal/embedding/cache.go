// File path: internal/embedding/cache.go
package embedding

import (
	"container/list"
	"sync"
)

type cacheEntry struct {
	key   string
	value []float32
}

// vectorCache is a small LRU keyed by query text. Repeated searches for the
// same query skip the embedding round trip.
type vectorCache struct {
	mu       sync.Mutex
	capacity int
	items    map[string]*list.Element
	ll       *list.List
}

func newVectorCache(size int) *vectorCache {
	if size <= 0 {
		size = 128
	}
	return &vectorCache{
		capacity: size,
		items:    make(map[string]*list.Element, size),
		ll:       list.New(),
	}
}

func (c *vectorCache) Get(key string) ([]float32, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if elem, ok := c.items[key]; ok {
		c.ll.MoveToFront(elem)
		entry := elem.Value.(cacheEntry)
		out := make([]float32, len(entry.value))
		copy(out, entry.value)
		return out, true
	}
	return nil, false
}

func (c *vectorCache) Set(key string, value []float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	stored := make([]float32, len(value))
	copy(stored, value)
	if elem, ok := c.items[key]; ok {
		elem.Value = cacheEntry{key: key, value: stored}
		c.ll.MoveToFront(elem)
		return
	}
	elem := c.ll.PushFront(cacheEntry{key: key, value: stored})
	c.items[key] = elem
	if c.ll.Len() > c.capacity {
		tail := c.ll.Back()
		if tail != nil {
			c.ll.Remove(tail)
			entry := tail.Value.(cacheEntry)
			delete(c.items, entry.key)
		}
	}
}

func (c *vectorCache) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[string]*list.Element, c.capacity)
	c.ll = list.New()
}
