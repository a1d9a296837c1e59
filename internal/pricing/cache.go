// Package pricing resolves token symbols to USD prices with caching,
// fallback chains and plausibility filtering.
package pricing

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// CachedPrice is one resolved price with its provenance
type CachedPrice struct {
	Symbol    string          `json:"symbol"`
	Price     decimal.Decimal `json:"price"`
	FetchedAt time.Time       `json:"fetchedAt"`
	Source    string          `json:"source"` // market symbol that produced the price
}

// PriceCache is a process-lifetime price cache with a bounded TTL. Expired
// entries are kept around: they are the resolver's fallback of last resort
// when every fresh fetch fails.
type PriceCache struct {
	mu      sync.RWMutex
	entries map[string]CachedPrice
	ttl     time.Duration
	now     func() time.Time
}

// NewPriceCache creates a price cache with the given TTL and clock.
// The clock is injected so tests can control freshness directly.
func NewPriceCache(ttl time.Duration, now func() time.Time) *PriceCache {
	if now == nil {
		now = time.Now
	}
	return &PriceCache{
		entries: make(map[string]CachedPrice),
		ttl:     ttl,
		now:     now,
	}
}

// Get returns the cached entry for a symbol and whether it is still fresh
func (c *PriceCache) Get(symbol string) (entry CachedPrice, fresh bool, ok bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok = c.entries[symbol]
	if !ok {
		return CachedPrice{}, false, false
	}

	fresh = c.now().Sub(entry.FetchedAt) < c.ttl
	return entry, fresh, true
}

// Put stores a freshly resolved price
func (c *PriceCache) Put(symbol string, price decimal.Decimal, source string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[symbol] = CachedPrice{
		Symbol:    symbol,
		Price:     price,
		FetchedAt: c.now(),
		Source:    source,
	}
}

// Snapshot returns a copy of every cached entry, fresh or stale
func (c *PriceCache) Snapshot() []CachedPrice {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entries := make([]CachedPrice, 0, len(c.entries))
	for _, entry := range c.entries {
		entries = append(entries, entry)
	}
	return entries
}

// Len returns the number of cached entries
func (c *PriceCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
