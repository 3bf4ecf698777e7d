package memory

import (
	"context"
	"testing"
	"time"

	"github.com/andresuchdata/autopo-replenish/internal/domain"
	"github.com/andresuchdata/autopo-replenish/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var today = time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC)

func newStore() *Store {
	return NewStore().WithClock(func() time.Time { return today.Add(9 * time.Hour) })
}

func TestStore_GetHistoryWindow(t *testing.T) {
	ctx := context.Background()
	s := newStore()

	var sales []domain.SalesRecord
	for d := 0; d < 10; d++ {
		sales = append(sales, domain.SalesRecord{SKU: "A", Date: today.AddDate(0, 0, -d), UnitsSold: float64(d)})
	}
	sales = append(sales, domain.SalesRecord{SKU: "B", Date: today, UnitsSold: 99})
	_, err := s.SaveSales(ctx, sales)
	require.NoError(t, err)

	_, err = s.SaveAvailability(ctx, []domain.AvailabilityRecord{
		{SKU: "A", Date: today.AddDate(0, 0, -1), AvailabilityMinutes: 600},
		{SKU: "A", Date: today.AddDate(0, 0, -30), AvailabilityMinutes: 600},
	})
	require.NoError(t, err)

	h, err := s.GetHistory(ctx, "A", 5)
	require.NoError(t, err)
	require.Len(t, h.Sales, 5)
	assert.Equal(t, today.AddDate(0, 0, -4), h.Sales[0].Date)
	assert.Equal(t, today, h.Sales[4].Date)
	require.Len(t, h.Availability, 1)

	// same SKU-day overwrites
	_, err = s.SaveSales(ctx, []domain.SalesRecord{{SKU: "A", Date: today.Add(3 * time.Hour), UnitsSold: 42}})
	require.NoError(t, err)
	h, err = s.GetHistory(ctx, "A", 1)
	require.NoError(t, err)
	require.Len(t, h.Sales, 1)
	assert.Equal(t, 42.0, h.Sales[0].UnitsSold)
}

func TestStore_GetOpenOrders(t *testing.T) {
	ctx := context.Background()
	s := newStore()

	_, err := s.SaveOpenOrders(ctx, []domain.OpenPurchaseOrder{
		{PONumber: "PO-2", SKU: "A", Quantity: 10, Status: "Sent"},
		{PONumber: "PO-1", SKU: "A", Quantity: 10, ReceivedQuantity: 4, Status: "Approved"},
		{PONumber: "PO-3", SKU: "A", Quantity: 10, Status: "Received"},
		{PONumber: "PO-4", SKU: "A", Quantity: 10, ReceivedQuantity: 10, Status: "Sent"},
		{PONumber: "PO-5", SKU: "B", Quantity: 10, Status: "Sent"},
	})
	require.NoError(t, err)

	orders, err := s.GetOpenOrders(ctx, "A")
	require.NoError(t, err)
	require.Len(t, orders, 2)
	assert.Equal(t, "PO-1", orders[0].PONumber)
	assert.Equal(t, 6.0, orders[0].PendingQuantity)
	assert.Equal(t, 10.0, orders[1].PendingQuantity)
}

func TestStore_GetProductsByFilter(t *testing.T) {
	ctx := context.Background()
	s := newStore()

	_, err := s.UpsertProducts(ctx, []domain.Product{
		{SKU: "C", SupplierID: "S1", WarehouseID: "W1", BrandName: "Acme", Active: true},
		{SKU: "A", SupplierID: "S1", WarehouseID: "W2", Active: true},
		{SKU: "B", SupplierID: "S2", WarehouseID: "W1", Active: true},
		{SKU: "D", SupplierID: "S1", WarehouseID: "W1", Active: false},
	})
	require.NoError(t, err)

	skus := func(ps []domain.Product) []string {
		out := make([]string, len(ps))
		for i, p := range ps {
			out[i] = p.SKU
		}
		return out
	}

	all, err := s.GetProductsByFilter(ctx, domain.ProductFilter{})
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B", "C"}, skus(all))

	bySupplier, err := s.GetProductsByFilter(ctx, domain.ProductFilter{SupplierIDs: []string{"S1"}, IncludeInactive: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "C", "D"}, skus(bySupplier))

	combined, err := s.GetProductsByFilter(ctx, domain.ProductFilter{SupplierIDs: []string{"S1"}, WarehouseIDs: []string{"W1"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"C"}, skus(combined))

	none, err := s.GetProductsByFilter(ctx, domain.ProductFilter{BrandNames: []string{"Nope"}})
	require.NoError(t, err)
	assert.Empty(t, none)

	_, err = s.GetProduct(ctx, "Z")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestStore_Coverage(t *testing.T) {
	ctx := context.Background()
	s := newStore()

	_, err := s.GetLatestCoverage(ctx, "A")
	require.ErrorIs(t, err, repository.ErrNotFound)

	newer := &domain.StockCoverageResult{SKU: "A", CoverageDays: 10, CalculatedAt: today.Add(2 * time.Hour)}
	older := &domain.StockCoverageResult{SKU: "A", CoverageDays: 5, CalculatedAt: today.Add(time.Hour)}
	require.NoError(t, s.SaveCoverage(ctx, newer))
	require.NoError(t, s.SaveCoverage(ctx, older))

	got, err := s.GetLatestCoverage(ctx, "A")
	require.NoError(t, err)
	assert.Equal(t, 10.0, got.CoverageDays)
}
