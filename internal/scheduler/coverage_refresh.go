package scheduler

import (
	"context"

	"github.com/andresuchdata/autopo-replenish/internal/domain"
	"github.com/rs/zerolog/log"
)

// CoverageRefresher is satisfied by service.ReplenishmentService
type CoverageRefresher interface {
	RefreshCoverage(ctx context.Context, filters domain.ProductFilter, workers int) (refreshed, failed int, err error)
}

// CoverageRefreshJob recomputes and re-caches coverage for the active catalogue
type CoverageRefreshJob struct {
	refresher CoverageRefresher
	filters   domain.ProductFilter
	workers   int
}

func NewCoverageRefreshJob(refresher CoverageRefresher, filters domain.ProductFilter, workers int) *CoverageRefreshJob {
	if workers <= 0 {
		workers = 1
	}
	return &CoverageRefreshJob{refresher: refresher, filters: filters, workers: workers}
}

func (j *CoverageRefreshJob) Name() string { return "coverage_refresh" }

func (j *CoverageRefreshJob) Run(ctx context.Context) error {
	refreshed, failed, err := j.refresher.RefreshCoverage(ctx, j.filters, j.workers)
	if err != nil {
		return err
	}
	log.Info().
		Int("refreshed", refreshed).
		Int("failed", failed).
		Msg("coverage: scheduled refresh done")
	return nil
}
