package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/andresuchdata/autopo-replenish/internal/domain"
	"github.com/andresuchdata/autopo-replenish/internal/repository"
)

type coverageStore struct {
	db *DB
}

var _ repository.CoverageStore = (*coverageStore)(nil)

func NewCoverageStore(db *DB) *coverageStore {
	return &coverageStore{db: db}
}

type coverageRow struct {
	SKU          string    `db:"sku"`
	Payload      []byte    `db:"payload"`
	CalculatedAt time.Time `db:"calculated_at"`
	ExpiresAt    time.Time `db:"expires_at"`
}

// SaveCoverage keeps the latest result per SKU; the queryable columns mirror
// the payload so stale rows can be found without decoding JSON.
func (s *coverageStore) SaveCoverage(ctx context.Context, result *domain.StockCoverageResult) error {
	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("encode coverage result: %w", err)
	}

	query := `
		INSERT INTO coverage_results (sku, coverage_days, demand_forecast, confidence, payload, calculated_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (sku) DO UPDATE SET
			coverage_days = EXCLUDED.coverage_days,
			demand_forecast = EXCLUDED.demand_forecast,
			confidence = EXCLUDED.confidence,
			payload = EXCLUDED.payload,
			calculated_at = EXCLUDED.calculated_at,
			expires_at = EXCLUDED.expires_at
		WHERE coverage_results.calculated_at <= EXCLUDED.calculated_at
	`
	_, err = s.db.ExecContext(ctx, query,
		result.SKU,
		result.CoverageDays,
		result.DemandForecast,
		result.Confidence,
		payload,
		result.CalculatedAt,
		result.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save coverage for %s: %w", result.SKU, err)
	}
	return nil
}

func (s *coverageStore) GetLatestCoverage(ctx context.Context, sku string) (*domain.StockCoverageResult, error) {
	query := `
		SELECT sku, payload, calculated_at, expires_at
		FROM coverage_results
		WHERE sku = $1
	`

	var row coverageRow
	if err := s.db.GetContext(ctx, &row, query, sku); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get coverage for %s: %w", sku, err)
	}

	var result domain.StockCoverageResult
	if err := json.Unmarshal(row.Payload, &result); err != nil {
		return nil, fmt.Errorf("decode coverage for %s: %w", sku, err)
	}
	result.CalculatedAt = row.CalculatedAt
	result.ExpiresAt = row.ExpiresAt
	return &result, nil
}
