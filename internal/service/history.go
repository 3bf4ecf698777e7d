package service

import (
	"context"
	"errors"
	"strings"

	"github.com/andresuchdata/autopo-replenish/internal/domain"
	"github.com/rs/zerolog/log"
)

// ErrReadOnly is returned by the Record methods when no writer is configured
var ErrReadOnly = errors.New("history writer not configured")

// RecordSales stores sales facts and drops the cached coverage of every SKU touched.
func (s *ReplenishmentService) RecordSales(ctx context.Context, records []domain.SalesRecord) (int, error) {
	if s.writer == nil {
		return 0, ErrReadOnly
	}
	skus := make([]string, 0, len(records))
	for i := range records {
		records[i].SKU = strings.TrimSpace(records[i].SKU)
		if records[i].SKU == "" {
			return 0, domain.NewInvalidConfigurationError("sales record %d has no sku", i)
		}
		if records[i].UnitsSold < 0 {
			return 0, domain.NewInvalidConfigurationError("sales record %d has negative units", i).
				WithDetail("sku", records[i].SKU)
		}
		records[i].Date = domain.DateOnly(records[i].Date)
		skus = append(skus, records[i].SKU)
	}

	n, err := s.writer.SaveSales(ctx, records)
	if err != nil {
		return 0, err
	}
	s.invalidate(ctx, skus)
	return n, nil
}

// RecordAvailability stores availability facts and drops the affected cache entries.
func (s *ReplenishmentService) RecordAvailability(ctx context.Context, records []domain.AvailabilityRecord) (int, error) {
	if s.writer == nil {
		return 0, ErrReadOnly
	}
	skus := make([]string, 0, len(records))
	for i := range records {
		records[i].SKU = strings.TrimSpace(records[i].SKU)
		if records[i].SKU == "" {
			return 0, domain.NewInvalidConfigurationError("availability record %d has no sku", i)
		}
		if records[i].AvailabilityMinutes < 0 {
			return 0, domain.NewInvalidConfigurationError("availability record %d has negative minutes", i).
				WithDetail("sku", records[i].SKU)
		}
		records[i].Date = domain.DateOnly(records[i].Date)
		skus = append(skus, records[i].SKU)
	}

	n, err := s.writer.SaveAvailability(ctx, records)
	if err != nil {
		return 0, err
	}
	s.invalidate(ctx, skus)
	return n, nil
}

// RecordProducts upserts product master data. Stock levels feed coverage days,
// so the cache entries of the products are dropped too.
func (s *ReplenishmentService) RecordProducts(ctx context.Context, products []domain.Product) (int, error) {
	if s.writer == nil {
		return 0, ErrReadOnly
	}
	skus := make([]string, 0, len(products))
	for i, p := range products {
		if strings.TrimSpace(p.SKU) == "" {
			return 0, domain.NewInvalidConfigurationError("product %d has no sku", i)
		}
		skus = append(skus, p.SKU)
	}

	n, err := s.writer.UpsertProducts(ctx, products)
	if err != nil {
		return 0, err
	}
	s.invalidate(ctx, skus)
	return n, nil
}

// RecordOpenOrders stores purchase order lines. Coverage ignores inbound
// stock, so the cache is left alone.
func (s *ReplenishmentService) RecordOpenOrders(ctx context.Context, orders []domain.OpenPurchaseOrder) (int, error) {
	if s.writer == nil {
		return 0, ErrReadOnly
	}
	for i, o := range orders {
		if strings.TrimSpace(o.SKU) == "" || strings.TrimSpace(o.PONumber) == "" {
			return 0, domain.NewInvalidConfigurationError("order line %d needs a po number and sku", i)
		}
	}
	return s.writer.SaveOpenOrders(ctx, orders)
}

func (s *ReplenishmentService) invalidate(ctx context.Context, skus []string) {
	seen := make(map[string]struct{}, len(skus))
	for _, sku := range skus {
		if _, done := seen[sku]; done {
			continue
		}
		seen[sku] = struct{}{}
		if err := s.cache.Invalidate(ctx, sku); err != nil {
			s.pending.add(sku)
			log.Warn().Err(err).Str("sku", sku).Msg("coverage: cache invalidate failed, deferred")
		}
	}
}
