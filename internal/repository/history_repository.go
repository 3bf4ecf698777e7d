package repository

import (
	"context"
	"errors"

	"github.com/andresuchdata/autopo-replenish/internal/domain"
)

// ErrNotFound is returned when a product or stored result does not exist
var ErrNotFound = errors.New("not found")

// HistoryRepository is the read side used by the calculators.
type HistoryRepository interface {
	// GetHistory returns the sales and availability of the last `days` days
	GetHistory(ctx context.Context, sku string, days int) (*domain.History, error)
	GetOpenOrders(ctx context.Context, sku string) ([]domain.OpenPurchaseOrder, error)
	GetProductsByFilter(ctx context.Context, filter domain.ProductFilter) ([]domain.Product, error)
	GetProduct(ctx context.Context, sku string) (*domain.Product, error)
}

// HistoryWriter records new facts. Every method upserts by natural key and
// returns the number of rows written.
type HistoryWriter interface {
	UpsertProducts(ctx context.Context, products []domain.Product) (int, error)
	SaveSales(ctx context.Context, records []domain.SalesRecord) (int, error)
	SaveAvailability(ctx context.Context, records []domain.AvailabilityRecord) (int, error)
	SaveOpenOrders(ctx context.Context, orders []domain.OpenPurchaseOrder) (int, error)
}

// CoverageStore persists computed coverage results.
type CoverageStore interface {
	SaveCoverage(ctx context.Context, result *domain.StockCoverageResult) error
	GetLatestCoverage(ctx context.Context, sku string) (*domain.StockCoverageResult, error)
}

// Store bundles every repository capability of a single backend
type Store interface {
	HistoryRepository
	HistoryWriter
	CoverageStore
}
