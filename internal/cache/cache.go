// Package cache implements an in-memory LRU of computed TraceInfo results
// keyed by trace-session path, invalidated when either the session
// manifest or any thread's event files advance past the mtime recorded at
// compute time. The implementation is an intrusive doubly-linked-list LRU
// with a sync.Cond for in-flight de-duplication, sized by a fixed entry
// count rather than a byte budget (trace-info results are small, uniformly
// sized JSON-able structs, not arbitrarily large blobs).
package cache

import (
	"sync"
	"time"
)

// Compute produces the value for a cache miss. It returns the value to
// store and the mtimes it was computed from; a later Get that observes
// either input mtime has advanced treats the entry as stale.
type Compute func() (value interface{}, manifestMtime, eventsMtime time.Time, err error)

type entry struct {
	key   string
	value interface{}
	err   error

	manifestMtime time.Time
	eventsMtime   time.Time
	computing     bool
	waiters       int

	next, prev *entry
}

// Cache is a bounded LRU of trace-info results.
type Cache struct {
	mu       sync.Mutex
	cond     *sync.Cond
	capacity int
	entries  map[string]*entry
	head     *entry
	tail     *entry
}

// New returns an empty cache holding at most capacity entries.
func New(capacity int) *Cache {
	c := &Cache{capacity: capacity, entries: map[string]*entry{}}
	c.cond = sync.NewCond(&c.mu)
	return c
}

// Get returns the cached value for key if present and still fresh
// relative to currentManifestMtime/currentEventsMtime, else calls
// compute to produce (and cache) a fresh one. If another goroutine is
// already computing the same key, Get waits for that computation rather
// than racing it, de-duplicating concurrent requests for the same
// resource.
func (c *Cache) Get(key string, currentManifestMtime, currentEventsMtime time.Time, compute Compute) (interface{}, error) {
	c.mu.Lock()
	if e, ok := c.entries[key]; ok {
		for e.computing {
			e.waiters++
			c.cond.Wait()
			e.waiters--
		}
		if !e.manifestMtime.Before(currentManifestMtime) && !e.eventsMtime.Before(currentEventsMtime) {
			c.moveFront(e)
			value, err := e.value, e.err
			c.mu.Unlock()
			return value, err
		}
		c.unlink(e)
		delete(c.entries, key)
	}

	e := &entry{key: key, computing: true}
	c.entries[key] = e
	c.mu.Unlock()

	value, manifestMtime, eventsMtime, err := compute()

	c.mu.Lock()
	e.value, e.err = value, err
	e.manifestMtime, e.eventsMtime = manifestMtime, eventsMtime
	e.computing = false
	if e.waiters > 0 {
		c.cond.Broadcast()
	}
	if err == nil {
		c.insertFront(e)
		c.evictOverCapacity()
	} else {
		delete(c.entries, key)
	}
	c.mu.Unlock()

	return value, err
}

// Invalidate removes key from the cache unconditionally, used by the
// maintenance cache-eviction sweep to drop entries for sessions that no
// longer exist on disk.
func (c *Cache) Invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[key]; ok {
		c.unlink(e)
		delete(c.entries, key)
	}
}

// Len returns the number of entries currently cached, including any
// in-flight computations.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Keys returns a snapshot of every key currently cached, used by the
// maintenance cache-eviction sweep to find entries for sessions that no
// longer exist on disk.
func (c *Cache) Keys() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	keys := make([]string, 0, len(c.entries))
	for k := range c.entries {
		keys = append(keys, k)
	}
	return keys
}

func (c *Cache) insertFront(e *entry) {
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

func (c *Cache) unlink(e *entry) {
	if e.prev != nil {
		e.prev.next = e.next
	} else if c.head == e {
		c.head = e.next
	}
	if e.next != nil {
		e.next.prev = e.prev
	} else if c.tail == e {
		c.tail = e.prev
	}
	e.next, e.prev = nil, nil
}

func (c *Cache) moveFront(e *entry) {
	if c.head == e {
		return
	}
	c.unlink(e)
	c.insertFront(e)
}

func (c *Cache) evictOverCapacity() {
	for len(c.entries) > c.capacity && c.tail != nil {
		victim := c.tail
		if victim.computing {
			break
		}
		c.unlink(victim)
		delete(c.entries, victim.key)
	}
}
