package service

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/andresuchdata/autopo-replenish/internal/cache"
	"github.com/andresuchdata/autopo-replenish/internal/domain"
	"github.com/andresuchdata/autopo-replenish/internal/repository/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// flakyCache keeps serving reads while writes fail, the way a breaker in
// half-open state or a read replica would.
type flakyCache struct {
	cache.CoverageCache
	failInvalidate atomic.Bool
	failSet        atomic.Bool
}

func (c *flakyCache) Invalidate(ctx context.Context, sku string) error {
	if c.failInvalidate.Load() {
		return cache.ErrCacheUnavailable
	}
	return c.CoverageCache.Invalidate(ctx, sku)
}

func (c *flakyCache) Set(ctx context.Context, sku string, r *domain.StockCoverageResult, ttl time.Duration) error {
	if c.failSet.Load() {
		return cache.ErrCacheUnavailable
	}
	return c.CoverageCache.Set(ctx, sku, r, ttl)
}

func newFlakyFixture(t *testing.T) (*ReplenishmentService, *flakyCache, *countingStore) {
	t.Helper()
	ctx := context.Background()

	store := &countingStore{Store: memory.NewStore().WithClock(clock)}
	_, err := store.UpsertProducts(ctx, []domain.Product{product("A", "S1", 400)})
	require.NoError(t, err)
	_, err = store.SaveSales(ctx, flatSales("A", 10))
	require.NoError(t, err)

	fc := &flakyCache{CoverageCache: cache.NewMemoryCoverageCache()}
	svc, err := NewReplenishmentService(store, fc, domain.DefaultStockCoverageConfig(),
		WithWriter(store),
		WithClock(clock),
	)
	require.NoError(t, err)
	return svc, fc, store
}

func TestFailedInvalidation_NeverServesStale(t *testing.T) {
	ctx := context.Background()

	t.Run("fresh result overwrites the entry", func(t *testing.T) {
		svc, fc, _ := newFlakyFixture(t)

		before, err := svc.CalculateCoverage(ctx, "A", true)
		require.NoError(t, err)
		assert.InDelta(t, 40, before.CoverageDays, 1e-4)

		fc.failInvalidate.Store(true)
		_, err = svc.RecordProducts(ctx, []domain.Product{product("A", "S1", 200)})
		require.NoError(t, err)
		assert.Equal(t, 1, svc.PendingInvalidations())

		after, err := svc.CalculateCoverage(ctx, "A", true)
		require.NoError(t, err)
		assert.InDelta(t, 20, after.CoverageDays, 1e-4)
		assert.Zero(t, svc.PendingInvalidations())

		cached, ok, err := fc.Get(ctx, "A")
		require.NoError(t, err)
		require.True(t, ok)
		assert.InDelta(t, 20, cached.CoverageDays, 1e-4)
	})

	t.Run("retried once the backend recovers", func(t *testing.T) {
		svc, fc, store := newFlakyFixture(t)

		_, err := svc.CalculateCoverage(ctx, "A", true)
		require.NoError(t, err)

		fc.failInvalidate.Store(true)
		fc.failSet.Store(true)
		_, err = svc.RecordProducts(ctx, []domain.Product{product("A", "S1", 200)})
		require.NoError(t, err)

		for i := 0; i < 2; i++ {
			got, err := svc.CalculateCoverage(ctx, "A", true)
			require.NoError(t, err)
			assert.InDelta(t, 20, got.CoverageDays, 1e-4, "stale entry must not be served")
		}
		assert.Equal(t, 1, svc.PendingInvalidations())
		assert.Equal(t, int32(3), store.historyCalls.Load())

		fc.failInvalidate.Store(false)
		fc.failSet.Store(false)
		got, err := svc.CalculateCoverage(ctx, "A", true)
		require.NoError(t, err)
		assert.InDelta(t, 20, got.CoverageDays, 1e-4)
		assert.Zero(t, svc.PendingInvalidations())
		assert.Equal(t, int32(4), store.historyCalls.Load())

		// the entry is trusted again
		_, err = svc.CalculateCoverage(ctx, "A", true)
		require.NoError(t, err)
		assert.Equal(t, int32(4), store.historyCalls.Load())
	})

	t.Run("invalidate all clears the backlog", func(t *testing.T) {
		svc, fc, _ := newFlakyFixture(t)

		fc.failInvalidate.Store(true)
		_, err := svc.RecordSales(ctx, []domain.SalesRecord{{SKU: "A", Date: today, UnitsSold: 10}})
		require.NoError(t, err)
		require.Equal(t, 1, svc.PendingInvalidations())

		_, err = svc.InvalidateCache(ctx, "")
		require.NoError(t, err)
		assert.Zero(t, svc.PendingInvalidations())
	})
}
