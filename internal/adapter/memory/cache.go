// Package memory provides an in-process window cache for single-instance
// deployments without Redis.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/couchcryptid/solar-outlook-service/internal/domain"
)

// WindowCache implements reconcile.WindowCache with a bounded LRU whose
// entries expire after ttl.
type WindowCache struct {
	maxEntries int
	ttl        time.Duration

	mu      sync.Mutex
	entries map[string]*entry
	head    *entry // most recently used
	tail    *entry // least recently used
}

type entry struct {
	key     string
	value   domain.Window
	expires time.Time
	prev    *entry
	next    *entry
}

// NewWindowCache creates a cache holding at most maxEntries windows.
func NewWindowCache(maxEntries int, ttl time.Duration) *WindowCache {
	if maxEntries < 1 {
		maxEntries = 1
	}
	return &WindowCache{
		maxEntries: maxEntries,
		ttl:        ttl,
		entries:    make(map[string]*entry),
	}
}

// Get returns the cached window for key if it has not expired.
func (c *WindowCache) Get(_ context.Context, key string) (domain.Window, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return domain.Window{}, false, nil
	}
	if c.ttl > 0 && !domain.Now().Before(e.expires) {
		delete(c.entries, key)
		c.remove(e)
		return domain.Window{}, false, nil
	}
	c.moveToFront(e)
	return e.value, true, nil
}

// Set stores w under key.
func (c *WindowCache) Set(_ context.Context, key string, w domain.Window) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	expires := domain.Now().Add(c.ttl)
	if e, ok := c.entries[key]; ok {
		e.value = w
		e.expires = expires
		c.moveToFront(e)
		return nil
	}

	e := &entry{key: key, value: w, expires: expires}
	c.entries[key] = e
	c.addToFront(e)

	if len(c.entries) > c.maxEntries {
		c.evictTail()
	}
	return nil
}

// Invalidate drops every entry.
func (c *WindowCache) Invalidate(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]*entry)
	c.head, c.tail = nil, nil
	return nil
}

// Len reports the number of stored entries, expired or not.
func (c *WindowCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *WindowCache) moveToFront(e *entry) {
	if e == c.head {
		return
	}
	c.remove(e)
	c.addToFront(e)
}

func (c *WindowCache) addToFront(e *entry) {
	e.next = c.head
	e.prev = nil
	if c.head != nil {
		c.head.prev = e
	}
	c.head = e
	if c.tail == nil {
		c.tail = e
	}
}

func (c *WindowCache) remove(e *entry) {
	if e.prev != nil {
		e.prev.next = e.next
	} else {
		c.head = e.next
	}
	if e.next != nil {
		e.next.prev = e.prev
	} else {
		c.tail = e.prev
	}
}

func (c *WindowCache) evictTail() {
	if c.tail == nil {
		return
	}
	delete(c.entries, c.tail.key)
	c.remove(c.tail)
}
