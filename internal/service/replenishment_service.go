package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/andresuchdata/autopo-replenish/internal/cache"
	"github.com/andresuchdata/autopo-replenish/internal/domain"
	"github.com/andresuchdata/autopo-replenish/internal/forecast"
	"github.com/andresuchdata/autopo-replenish/internal/metrics"
	"github.com/andresuchdata/autopo-replenish/internal/pipeline"
	"github.com/andresuchdata/autopo-replenish/internal/purchase"
	"github.com/andresuchdata/autopo-replenish/internal/repository"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

const (
	outcomeOK            = "ok"
	maxParallelScenarios = 4
)

// ReplenishmentService runs coverage forecasts and purchase requirements
// against a history repository, with an injected coverage cache.
type ReplenishmentService struct {
	repo     repository.HistoryRepository
	writer   repository.HistoryWriter
	store    repository.CoverageStore
	cache    cache.CoverageCache
	coverage *forecast.CoverageCalculator
	defaults domain.PurchaseRequirementConfig
	metrics  *metrics.Metrics
	pending  *pendingInvalidations
	now      func() time.Time
}

// Option customizes a ReplenishmentService.
type Option func(*ReplenishmentService)

// WithWriter enables the Record* methods.
func WithWriter(w repository.HistoryWriter) Option {
	return func(s *ReplenishmentService) { s.writer = w }
}

// WithCoverageStore persists every computed coverage result.
func WithCoverageStore(store repository.CoverageStore) Option {
	return func(s *ReplenishmentService) { s.store = store }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *ReplenishmentService) { s.metrics = m }
}

// WithClock fixes "now" for forecasts, order dates and cache staleness.
func WithClock(now func() time.Time) Option {
	return func(s *ReplenishmentService) { s.now = now }
}

// WithDefaults sets the purchase config that request decoding starts from.
// It is validated when the service is built.
func WithDefaults(cfg domain.PurchaseRequirementConfig) Option {
	return func(s *ReplenishmentService) { s.defaults = cfg }
}

func NewReplenishmentService(repo repository.HistoryRepository, cacheImpl cache.CoverageCache, coverageCfg domain.StockCoverageConfig, opts ...Option) (*ReplenishmentService, error) {
	if cacheImpl == nil {
		cacheImpl = cache.NewNoopCoverageCache()
	}

	s := &ReplenishmentService{
		repo:     repo,
		cache:    cacheImpl,
		defaults: domain.DefaultPurchaseRequirementConfig(),
		pending:  newPendingInvalidations(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if err := domain.ValidateStruct(s.defaults); err != nil {
		return nil, err
	}

	calc, err := forecast.NewCoverageCalculator(coverageCfg, forecast.WithClock(s.now))
	if err != nil {
		return nil, err
	}
	s.coverage = calc
	return s, nil
}

// Defaults returns the purchase config callers decode partial requests over
func (s *ReplenishmentService) Defaults() domain.PurchaseRequirementConfig {
	return s.defaults
}

// CoverageConfig returns the forecast configuration in use
func (s *ReplenishmentService) CoverageConfig() domain.StockCoverageConfig {
	return s.coverage.Config()
}

// CalculateCoverage forecasts one SKU. With useCache a fresh cached result is
// returned as is; cache failures only cost a recomputation.
func (s *ReplenishmentService) CalculateCoverage(ctx context.Context, sku string, useCache bool) (*domain.StockCoverageResult, error) {
	if useCache {
		if cached, ok := s.cachedCoverage(ctx, sku); ok {
			return cached, nil
		}
	}

	product, err := s.product(ctx, sku)
	if err != nil {
		return nil, err
	}
	return s.computeCoverage(ctx, *product)
}

func (s *ReplenishmentService) cachedCoverage(ctx context.Context, sku string) (*domain.StockCoverageResult, bool) {
	if !s.settlePending(ctx, sku) {
		s.recordCache("pending")
		return nil, false
	}
	cached, ok, err := s.cache.Get(ctx, sku)
	switch {
	case err != nil:
		log.Warn().Err(err).Str("sku", sku).Msg("coverage: cache get failed")
		s.recordCache("error")
		return nil, false
	case !ok:
		s.recordCache("miss")
		return nil, false
	case cached.IsStale(s.now()):
		s.recordCache("stale")
		return nil, false
	}
	s.recordCache("hit")
	return cached, true
}

func (s *ReplenishmentService) product(ctx context.Context, sku string) (*domain.Product, error) {
	product, err := s.repo.GetProduct(ctx, sku)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, domain.NewInsufficientDataError("product %s not found", sku).WithDetail("sku", sku).Wrap(err)
	}
	if err != nil {
		return nil, fmt.Errorf("load product %s: %w", sku, err)
	}
	return product, nil
}

func (s *ReplenishmentService) computeCoverage(ctx context.Context, product domain.Product) (*domain.StockCoverageResult, error) {
	start := time.Now()

	history, err := s.repo.GetHistory(ctx, product.SKU, s.coverage.Config().HistoricalDays)
	if err != nil {
		s.recordCoverage(err, start)
		return nil, fmt.Errorf("load history for %s: %w", product.SKU, err)
	}

	result, err := s.coverage.Calculate(forecast.CoverageInput{
		Product:      product,
		Sales:        history.Sales,
		Availability: history.Availability,
		CurrentDate:  s.now(),
	})
	s.recordCoverage(err, start)
	if err != nil {
		return nil, err
	}

	if err := s.cache.Set(ctx, product.SKU, result, s.coverage.Config().CacheTTL); err != nil {
		log.Warn().Err(err).Str("sku", product.SKU).Msg("coverage: cache set failed")
	} else {
		s.pending.remove(product.SKU)
	}
	if s.store != nil {
		if err := s.store.SaveCoverage(ctx, result); err != nil {
			log.Warn().Err(err).Str("sku", product.SKU).Msg("coverage: persist failed")
		}
	}

	return result, nil
}

// LatestCoverage returns the last persisted result, which may be stale.
func (s *ReplenishmentService) LatestCoverage(ctx context.Context, sku string) (*domain.StockCoverageResult, error) {
	if s.store == nil {
		return nil, repository.ErrNotFound
	}
	return s.store.GetLatestCoverage(ctx, sku)
}

// CalculatePurchaseRequirement computes the recommendation for one SKU.
func (s *ReplenishmentService) CalculatePurchaseRequirement(ctx context.Context, sku string, cfg domain.PurchaseRequirementConfig) (*domain.PurchaseRequirementResult, error) {
	calc, err := purchase.NewCalculator(cfg)
	if err != nil {
		return nil, err
	}

	product, err := s.product(ctx, sku)
	if err != nil {
		return nil, err
	}
	return s.requirementFor(ctx, calc, *product)
}

func (s *ReplenishmentService) requirementFor(ctx context.Context, calc *purchase.Calculator, product domain.Product) (*domain.PurchaseRequirementResult, error) {
	coverage, ok := s.cachedCoverage(ctx, product.SKU)
	if !ok {
		var err error
		if coverage, err = s.computeCoverage(ctx, product); err != nil {
			return nil, err
		}
	}

	orders, err := s.repo.GetOpenOrders(ctx, product.SKU)
	if err != nil {
		return nil, fmt.Errorf("load open orders for %s: %w", product.SKU, err)
	}

	return calc.Calculate(domain.PurchaseRequirementInput{
		Product:    product,
		Coverage:   coverage,
		OpenOrders: orders,
		Today:      domain.DateOnly(s.now()),
	})
}

// CalculateBatch runs the purchase calculation over every product matching
// filters. Per-SKU failures land in Errors; only an invalid config or a
// failing product lookup fails the whole batch.
func (s *ReplenishmentService) CalculateBatch(ctx context.Context, filters domain.ProductFilter, cfg domain.PurchaseRequirementConfig) (*domain.PurchaseBatchResult, error) {
	start := time.Now()
	cfg.Filters = filters

	calc, err := purchase.NewCalculator(cfg)
	if err != nil {
		return nil, err
	}

	batch := newBatch(cfg, s.now())
	logger := log.With().Str("batch_id", batch.BatchID).Str("method", string(cfg.Method)).Logger()

	products, err := s.repo.GetProductsByFilter(ctx, filters)
	if err != nil {
		return nil, fmt.Errorf("resolve products: %w", err)
	}
	if len(products) == 0 {
		logger.Info().Err(domain.NewNoProductsFoundError("no products match the batch filters")).Msg("batch: empty product universe")
		batch.CalculationTime = time.Since(start)
		return batch, nil
	}

	runCtx := ctx
	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}

	workers := 1
	if cfg.EnableParallel {
		workers = cfg.MaxConcurrency
	}

	pool := pipeline.NewPool(workers, func(ctx context.Context, p domain.Product) (*domain.PurchaseRequirementResult, error) {
		return s.requirementFor(ctx, calc, p)
	})
	pool.OnResult(func(p domain.Product, out pipeline.Outcome[*domain.PurchaseRequirementResult]) {
		if out.Err != nil {
			batch.Errors = append(batch.Errors, batchError(p.SKU, out))
			s.recordBatchProduct(cfg.Method, batch.Errors[len(batch.Errors)-1].Code)
			return
		}
		s.recordBatchProduct(cfg.Method, outcomeOK)
		if cfg.ShowOnlyNeeded && out.Value.SuggestedQuantity <= 0 {
			return
		}
		batch.Products = append(batch.Products, *out.Value)
	})
	pool.Run(runCtx, products)

	batch.TotalProducts = len(products)
	finalizeBatch(batch)
	batch.CalculationTime = time.Since(start)

	if s.metrics != nil {
		s.metrics.RecordBatch(string(cfg.Method), batch.CalculationTime)
		for _, p := range batch.Products {
			s.metrics.RecordRecommendation(string(p.StockoutRisk))
		}
	}

	logger.Info().
		Int("products", batch.TotalProducts).
		Int("shown", len(batch.Products)).
		Int("errors", len(batch.Errors)).
		Int("workers", pool.Workers()).
		Dur("duration", batch.CalculationTime).
		Msg("batch: completed")

	return batch, nil
}

func newBatch(cfg domain.PurchaseRequirementConfig, now time.Time) *domain.PurchaseBatchResult {
	return &domain.PurchaseBatchResult{
		BatchID:     uuid.NewString(),
		Products:    []domain.PurchaseRequirementResult{},
		BySupplier:  map[string]*domain.SupplierSummary{},
		ByWarehouse: map[string]*domain.WarehouseSummary{},
		Errors:      []domain.BatchError{},
		Config:      cfg,
		Timestamp:   now.UTC(),
	}
}

// batchError classifies a failed outcome; anything cut short by the batch
// deadline is reported as TIMEOUT.
func batchError(sku string, out pipeline.Outcome[*domain.PurchaseRequirementResult]) domain.BatchError {
	code := domain.ErrorCode(out.Err)
	if !out.Dispatched || errors.Is(out.Err, context.DeadlineExceeded) {
		code = domain.CodeTimeout
	}

	msg := out.Err.Error()
	if !out.Dispatched {
		msg = domain.NewTimeoutError("sku %s not processed before the batch deadline", sku).Wrap(out.Err).Error()
	}
	return domain.BatchError{SKU: sku, Code: code, Error: msg}
}

// finalizeBatch sorts products and errors by SKU and builds the supplier and
// warehouse summaries.
func finalizeBatch(batch *domain.PurchaseBatchResult) {
	sort.Slice(batch.Products, func(i, j int) bool { return batch.Products[i].SKU < batch.Products[j].SKU })
	sort.Slice(batch.Errors, func(i, j int) bool { return batch.Errors[i].SKU < batch.Errors[j].SKU })

	for i := range batch.Products {
		aggregate(batch, &batch.Products[i])
	}
}

func aggregate(batch *domain.PurchaseBatchResult, r *domain.PurchaseRequirementResult) {
	highRisk := 0
	if r.StockoutRisk.Rank() >= domain.RiskHigh.Rank() {
		highRisk = 1
	}
	sup, ok := batch.BySupplier[r.SupplierID]
	if !ok {
		sup = &domain.SupplierSummary{SupplierID: r.SupplierID, SupplierName: r.SupplierName}
		batch.BySupplier[r.SupplierID] = sup
	}
	sup.ProductCount++
	sup.RequiredQuantity += r.RequiredQuantity
	sup.SuggestedQuantity += r.SuggestedQuantity
	sup.TotalCost = sup.TotalCost.Add(r.EstimatedCost)
	sup.TotalInvestment = sup.TotalInvestment.Add(r.EstimatedInvestment)
	sup.HighRiskCount += highRisk

	wh, ok := batch.ByWarehouse[r.WarehouseID]
	if !ok {
		wh = &domain.WarehouseSummary{WarehouseID: r.WarehouseID, WarehouseName: r.WarehouseName}
		batch.ByWarehouse[r.WarehouseID] = wh
	}
	wh.ProductCount++
	wh.RequiredQuantity += r.RequiredQuantity
	wh.SuggestedQuantity += r.SuggestedQuantity
	wh.TotalCost = wh.TotalCost.Add(r.EstimatedCost)
	wh.TotalInvestment = wh.TotalInvestment.Add(r.EstimatedInvestment)
	wh.HighRiskCount += highRisk
}

// SimulateScenarios runs one batch per scenario, a few at a time. Scenario
// names must be unique; the first failing scenario cancels the rest.
func (s *ReplenishmentService) SimulateScenarios(ctx context.Context, scenarios []domain.Scenario) (map[string]*domain.PurchaseBatchResult, error) {
	seen := make(map[string]struct{}, len(scenarios))
	for _, sc := range scenarios {
		if err := domain.ValidateStruct(sc); err != nil {
			return nil, err
		}
		if _, dup := seen[sc.Name]; dup {
			return nil, domain.NewInvalidConfigurationError("duplicate scenario name %q", sc.Name).
				WithDetail("scenario", sc.Name)
		}
		seen[sc.Name] = struct{}{}
	}

	results := make([]*domain.PurchaseBatchResult, len(scenarios))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallelScenarios)

	for i, sc := range scenarios {
		g.Go(func() error {
			batch, err := s.CalculateBatch(gctx, sc.Filters, sc.Config)
			if err != nil {
				return fmt.Errorf("scenario %s: %w", sc.Name, err)
			}
			results[i] = batch
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make(map[string]*domain.PurchaseBatchResult, len(scenarios))
	for i, sc := range scenarios {
		out[sc.Name] = results[i]
	}
	return out, nil
}

// RefreshCoverage recomputes coverage for every matching product, bypassing
// and then repopulating the cache.
func (s *ReplenishmentService) RefreshCoverage(ctx context.Context, filters domain.ProductFilter, workers int) (refreshed, failed int, err error) {
	products, err := s.repo.GetProductsByFilter(ctx, filters)
	if err != nil {
		return 0, 0, fmt.Errorf("resolve products: %w", err)
	}

	pool := pipeline.NewPool(workers, func(ctx context.Context, p domain.Product) (*domain.StockCoverageResult, error) {
		return s.computeCoverage(ctx, p)
	})
	for i, out := range pool.Run(ctx, products) {
		if out.Err != nil {
			failed++
			log.Debug().Err(out.Err).Str("sku", products[i].SKU).Msg("coverage: refresh failed")
			continue
		}
		refreshed++
	}
	return refreshed, failed, nil
}

// InvalidateCache drops one SKU, or every SKU when sku is empty.
func (s *ReplenishmentService) InvalidateCache(ctx context.Context, sku string) (int, error) {
	if sku == "" {
		n, err := s.cache.InvalidateAll(ctx)
		if err == nil {
			s.pending.reset()
		}
		return n, err
	}
	if err := s.cache.Invalidate(ctx, sku); err != nil {
		return 0, err
	}
	s.pending.remove(sku)
	return 1, nil
}

func (s *ReplenishmentService) recordCache(result string) {
	if s.metrics != nil {
		s.metrics.RecordCacheLookup(result)
	}
}

func (s *ReplenishmentService) recordCoverage(err error, start time.Time) {
	if s.metrics == nil {
		return
	}
	outcome := outcomeOK
	if err != nil {
		outcome = domain.ErrorCode(err)
	}
	s.metrics.RecordCoverage(outcome, time.Since(start))
}

func (s *ReplenishmentService) recordBatchProduct(method domain.Method, outcome string) {
	if s.metrics != nil {
		s.metrics.RecordBatchProduct(string(method), outcome)
	}
}
