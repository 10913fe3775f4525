package gateway

import (
	"fmt"
	"hash/fnv"
	"sort"
	"sync"
	"time"

	"channel_pulse/internal/telegram"
)

// Stats is a point-in-time snapshot of cache effectiveness.
type Stats struct {
	Keys   int `json:"keys"`
	Hits   int `json:"hits"`
	Misses int `json:"misses"`
}

type cacheEntry struct {
	resp      *telegram.Response
	expiresAt time.Time
}

// Cache holds successful gateway responses for a fixed TTL. Expired
// entries are dropped lazily on lookup.
type Cache struct {
	ttl time.Duration
	now func() time.Time

	mu      sync.Mutex
	entries map[uint64]cacheEntry
	hits    int
	misses  int
}

func NewCache(ttl time.Duration) *Cache {
	return &Cache{
		ttl:     ttl,
		now:     time.Now,
		entries: map[uint64]cacheEntry{},
	}
}

// Key hashes a request's method and parameters. Params are walked in
// sorted key order so logically equal requests collide.
func Key(userID string, req telegram.Request) uint64 {
	h := fnv.New64a()
	fmt.Fprintf(h, "%s\x00%s", userID, req.Method)

	keys := make([]string, 0, len(req.Params))
	for k := range req.Params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(h, "\x00%s=%v", k, req.Params[k])
	}
	return h.Sum64()
}

func (c *Cache) Get(key uint64) (*telegram.Response, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		c.misses++
		return nil, false
	}
	if c.now().After(e.expiresAt) {
		delete(c.entries, key)
		c.misses++
		return nil, false
	}
	c.hits++
	return e.resp, true
}

func (c *Cache) Set(key uint64, resp *telegram.Response) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = cacheEntry{resp: resp, expiresAt: c.now().Add(c.ttl)}
}

// Flush discards all entries and resets the counters.
func (c *Cache) Flush() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = map[uint64]cacheEntry{}
	c.hits = 0
	c.misses = 0
}

func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{Keys: len(c.entries), Hits: c.hits, Misses: c.misses}
}
