package feed

import (
	"strings"
	"sync"

	"tradeview/internal/domain"
)

// CacheKey builds the key for symbol over r: SYMBOL_YYYY-MM-DD_YYYY-MM-DD.
func CacheKey(symbol string, r domain.DateRange) string {
	return domain.NormalizeSymbol(symbol) + "_" + r.String()
}

// Cache is an in-memory bar cache safe for concurrent use. Stored and
// returned slices are copies, so callers may modify them freely.
type Cache struct {
	mu      sync.RWMutex
	entries map[string][]domain.Bar
}

// NewCache creates an empty Cache.
func NewCache() *Cache {
	return &Cache{entries: make(map[string][]domain.Bar)}
}

// Get returns a copy of the bars stored under key.
func (c *Cache) Get(key string) ([]domain.Bar, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	bars, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	return append([]domain.Bar(nil), bars...), true
}

// Put stores a copy of bars under key.
func (c *Cache) Put(key string, bars []domain.Bar) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = append([]domain.Bar(nil), bars...)
}

// Invalidate drops every entry for symbol.
func (c *Cache) Invalidate(symbol string) {
	prefix := domain.NormalizeSymbol(symbol) + "_"
	c.mu.Lock()
	defer c.mu.Unlock()
	for k := range c.entries {
		if strings.HasPrefix(k, prefix) {
			delete(c.entries, k)
		}
	}
}

// Clear drops all entries.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	clear(c.entries)
}

// Len returns the number of cached ranges.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
