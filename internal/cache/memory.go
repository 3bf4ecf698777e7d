package cache

import (
	"context"
	"sync"
	"time"

	"github.com/andresuchdata/autopo-replenish/internal/domain"
)

type memoryEntry struct {
	result    domain.StockCoverageResult
	expiresAt time.Time
}

// MemoryCoverageCache keeps entries in a sync.Map. Reads take no lock and
// concurrent writers for the same SKU resolve last-write-wins.
type MemoryCoverageCache struct {
	entries sync.Map
	now     func() time.Time
}

func NewMemoryCoverageCache() *MemoryCoverageCache {
	return &MemoryCoverageCache{now: time.Now}
}

// WithClock replaces the clock used for expiry, for tests.
func (c *MemoryCoverageCache) WithClock(now func() time.Time) *MemoryCoverageCache {
	c.now = now
	return c
}

func (c *MemoryCoverageCache) Get(ctx context.Context, sku string) (*domain.StockCoverageResult, bool, error) {
	v, ok := c.entries.Load(sku)
	if !ok {
		return nil, false, nil
	}
	entry := v.(*memoryEntry)
	if !c.now().Before(entry.expiresAt) {
		c.entries.CompareAndDelete(sku, entry)
		return nil, false, nil
	}

	result := entry.result
	return &result, true, nil
}

func (c *MemoryCoverageCache) Set(ctx context.Context, sku string, result *domain.StockCoverageResult, ttl time.Duration) error {
	if result == nil {
		return nil
	}
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	c.entries.Store(sku, &memoryEntry{result: *result, expiresAt: c.now().Add(ttl)})
	return nil
}

func (c *MemoryCoverageCache) Invalidate(ctx context.Context, sku string) error {
	c.entries.Delete(sku)
	return nil
}

func (c *MemoryCoverageCache) InvalidateAll(ctx context.Context) (int, error) {
	n := 0
	c.entries.Range(func(key, _ any) bool {
		c.entries.Delete(key)
		n++
		return true
	})
	return n, nil
}

// Len counts live and expired entries
func (c *MemoryCoverageCache) Len() int {
	n := 0
	c.entries.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}
