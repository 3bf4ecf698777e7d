package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/andresuchdata/autopo-replenish/internal/domain"
	"github.com/andresuchdata/autopo-replenish/internal/repository"
)

type dayKey struct {
	sku  string
	date time.Time
}

type orderKey struct {
	poNumber string
	sku      string
}

// Store keeps products, history, open orders and coverage results in maps.
// It backs the CLI dry runs and the tests.
type Store struct {
	mu           sync.RWMutex
	products     map[string]domain.Product
	sales        map[dayKey]domain.SalesRecord
	availability map[dayKey]domain.AvailabilityRecord
	orders       map[orderKey]domain.OpenPurchaseOrder
	coverage     map[string]domain.StockCoverageResult
	now          func() time.Time
}

// Verify interface compliance
var _ repository.HistoryRepository = (*Store)(nil)
var _ repository.HistoryWriter = (*Store)(nil)
var _ repository.CoverageStore = (*Store)(nil)
var _ repository.Store = (*Store)(nil)

// NewStore creates an empty store whose history window ends at time.Now
func NewStore() *Store {
	return &Store{
		products:     make(map[string]domain.Product),
		sales:        make(map[dayKey]domain.SalesRecord),
		availability: make(map[dayKey]domain.AvailabilityRecord),
		orders:       make(map[orderKey]domain.OpenPurchaseOrder),
		coverage:     make(map[string]domain.StockCoverageResult),
		now:          time.Now,
	}
}

// WithClock fixes the end of the GetHistory window
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

func (s *Store) GetHistory(ctx context.Context, sku string, days int) (*domain.History, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	today := domain.DateOnly(s.now())
	from := today.AddDate(0, 0, -days)
	inWindow := func(d time.Time) bool {
		d = domain.DateOnly(d)
		return d.After(from) && !d.After(today)
	}

	history := &domain.History{}
	for k, rec := range s.sales {
		if k.sku == sku && inWindow(k.date) {
			history.Sales = append(history.Sales, rec)
		}
	}
	for k, rec := range s.availability {
		if k.sku == sku && inWindow(k.date) {
			history.Availability = append(history.Availability, rec)
		}
	}

	sort.Slice(history.Sales, func(i, j int) bool { return history.Sales[i].Date.Before(history.Sales[j].Date) })
	sort.Slice(history.Availability, func(i, j int) bool {
		return history.Availability[i].Date.Before(history.Availability[j].Date)
	})
	return history, nil
}

func (s *Store) GetOpenOrders(ctx context.Context, sku string) ([]domain.OpenPurchaseOrder, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var orders []domain.OpenPurchaseOrder
	for k, o := range s.orders {
		if k.sku != sku || o.Pending() <= 0 || !domain.IsOpenPOStatus(o.Status) {
			continue
		}
		orders = append(orders, o.Normalize())
	}
	sort.Slice(orders, func(i, j int) bool { return orders[i].PONumber < orders[j].PONumber })
	return orders, nil
}

func (s *Store) GetProductsByFilter(ctx context.Context, filter domain.ProductFilter) ([]domain.Product, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	skus := toSet(filter.SKUs)
	suppliers := toSet(filter.SupplierIDs)
	warehouses := toSet(filter.WarehouseIDs)
	brands := toSet(filter.BrandNames)

	var products []domain.Product
	for _, p := range s.products {
		if !p.Active && !filter.IncludeInactive {
			continue
		}
		if !matches(skus, p.SKU) || !matches(suppliers, p.SupplierID) ||
			!matches(warehouses, p.WarehouseID) || !matches(brands, p.BrandName) {
			continue
		}
		products = append(products, p)
	}
	sort.Slice(products, func(i, j int) bool { return products[i].SKU < products[j].SKU })
	return products, nil
}

func (s *Store) GetProduct(ctx context.Context, sku string) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.products[sku]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &p, nil
}

func (s *Store) UpsertProducts(ctx context.Context, products []domain.Product) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, p := range products {
		if existing, ok := s.products[p.SKU]; ok {
			p.ID = existing.ID
		} else {
			p.ID = int64(len(s.products) + 1)
		}
		p.UpdatedAt = s.now()
		s.products[p.SKU] = p
	}
	return len(products), nil
}

func (s *Store) SaveSales(ctx context.Context, records []domain.SalesRecord) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, rec := range records {
		s.sales[dayKey{sku: rec.SKU, date: domain.DateOnly(rec.Date)}] = rec
	}
	return len(records), nil
}

func (s *Store) SaveAvailability(ctx context.Context, records []domain.AvailabilityRecord) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, rec := range records {
		s.availability[dayKey{sku: rec.SKU, date: domain.DateOnly(rec.Date)}] = rec
	}
	return len(records), nil
}

func (s *Store) SaveOpenOrders(ctx context.Context, orders []domain.OpenPurchaseOrder) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, o := range orders {
		s.orders[orderKey{poNumber: o.PONumber, sku: o.SKU}] = o
	}
	return len(orders), nil
}

func (s *Store) SaveCoverage(ctx context.Context, result *domain.StockCoverageResult) error {
	if result == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.coverage[result.SKU]; ok && existing.CalculatedAt.After(result.CalculatedAt) {
		return nil
	}
	s.coverage[result.SKU] = *result
	return nil
}

func (s *Store) GetLatestCoverage(ctx context.Context, sku string) (*domain.StockCoverageResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.coverage[sku]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &r, nil
}

func toSet(values []string) map[string]struct{} {
	if len(values) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			set[v] = struct{}{}
		}
	}
	return set
}

// matches treats a nil set as "no filter"
func matches(set map[string]struct{}, v string) bool {
	if set == nil {
		return true
	}
	_, ok := set[v]
	return ok
}
