// Package segcache holds recently fetched HLS media segments in memory.
//
// Entries are fresh for a fixed TTL after they were fetched. Staleness is
// checked on read only: a stale entry is a miss but stays resident until it is
// overwritten or pushed out by the entry count bound. The bound counts entries,
// not bytes, which assumes segments of roughly uniform size (fixed encoder
// chunk duration). Eviction is first-in first-out.
package segcache

import (
	"container/list"
	"sync"
	"time"
)

const (
	// DefaultTTL is how long a fetched segment may be served.
	DefaultTTL = 10 * time.Second
	// DefaultMaxEntries bounds the number of resident segments.
	DefaultMaxEntries = 50
)

// Key identifies a segment by rendition quality and file name.
type Key struct {
	Quality string
	Segment string
}

// Entry is one cached segment. Data must not be modified by callers.
type Entry struct {
	Data        []byte
	ContentType string
	FetchedAt   time.Time
}

// Cache is a bounded, TTL-checked segment cache safe for concurrent use.
type Cache struct {
	mu         sync.Mutex
	ttl        time.Duration
	maxEntries int
	now        func() time.Time

	entries map[Key]*list.Element
	order   *list.List // front = oldest insertion
}

type item struct {
	key   Key
	entry Entry
}

// Option configures a Cache.
type Option func(*Cache)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// New returns a Cache. Non-positive ttl or maxEntries use the defaults.
func New(ttl time.Duration, maxEntries int, opts ...Option) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	c := &Cache{
		ttl:        ttl,
		maxEntries: maxEntries,
		now:        time.Now,
		entries:    make(map[Key]*list.Element),
		order:      list.New(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns the entry for (quality, segment) if it was fetched less than
// TTL ago.
func (c *Cache) Get(quality, segment string) (Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.entries[Key{quality, segment}]
	if !ok {
		return Entry{}, false
	}
	it := el.Value.(*item)
	if c.now().Sub(it.entry.FetchedAt) >= c.ttl {
		return Entry{}, false
	}
	return it.entry, true
}

// Put stores a copy of data under (quality, segment) and returns the stored
// entry. Overwriting a key counts as a new insertion. If the cache then holds
// more than its maximum, the oldest inserted entry is evicted.
func (c *Cache) Put(quality, segment string, data []byte, contentType string) Entry {
	buf := make([]byte, len(data))
	copy(buf, data)

	c.mu.Lock()
	defer c.mu.Unlock()

	key := Key{quality, segment}
	entry := Entry{Data: buf, ContentType: contentType, FetchedAt: c.now()}

	if el, ok := c.entries[key]; ok {
		el.Value.(*item).entry = entry
		c.order.MoveToBack(el)
	} else {
		c.entries[key] = c.order.PushBack(&item{key: key, entry: entry})
	}

	if c.order.Len() > c.maxEntries {
		oldest := c.order.Front()
		c.order.Remove(oldest)
		delete(c.entries, oldest.Value.(*item).key)
	}
	return entry
}

// Len reports the number of resident entries, stale ones included.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// Keys returns resident keys from oldest to newest insertion.
func (c *Cache) Keys() []Key {
	c.mu.Lock()
	defer c.mu.Unlock()

	keys := make([]Key, 0, c.order.Len())
	for el := c.order.Front(); el != nil; el = el.Next() {
		keys = append(keys, el.Value.(*item).key)
	}
	return keys
}
