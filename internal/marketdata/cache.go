package marketdata

import (
	"sync"
	"time"
)

// Quote is one synthesized bid/ask observation for a symbol.
type Quote struct {
	Symbol    string    `json:"symbol"`
	Bid       float64   `json:"bid"`
	Ask       float64   `json:"ask"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Volume    int64     `json:"volume"`
	FetchedAt time.Time `json:"fetched_at"`
}

// Cache is the in-memory last-known-good quote store shared by the poller
// and the HTTP API. Entries are overwritten on successful fetch and never
// deleted.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]Quote
	hits    int64
	misses  int64
}

func NewCache() *Cache {
	return &Cache{entries: make(map[string]Quote)}
}

// Get returns the cached quote for a symbol regardless of age.
func (c *Cache) Get(symbol string) (Quote, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	q, ok := c.entries[symbol]
	return q, ok
}

// GetFresh returns the cached quote only if it was fetched within ttl.
func (c *Cache) GetFresh(symbol string, ttl time.Duration) (Quote, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	q, ok := c.entries[symbol]
	if !ok || time.Since(q.FetchedAt) >= ttl {
		c.misses++
		return Quote{}, false
	}
	c.hits++
	return q, true
}

// Set stores or overwrites a quote.
func (c *Cache) Set(q Quote) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[q.Symbol] = q
}

// Len returns the number of cached symbols.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Stats returns cumulative freshness hit/miss counts.
func (c *Cache) Stats() (hits, misses int64) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.hits, c.misses
}
