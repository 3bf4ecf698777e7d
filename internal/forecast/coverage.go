package forecast

import (
	"errors"
	"math"
	"time"

	"github.com/andresuchdata/autopo-replenish/internal/domain"
)

// CoverageInput is the raw input of one coverage calculation.
type CoverageInput struct {
	Product      domain.Product
	Sales        []domain.SalesRecord
	Availability []domain.AvailabilityRecord
	CurrentDate  time.Time
}

// CoverageCalculator combines preprocessing, weighted averaging, trend and
// seasonality into a StockCoverageResult.
type CoverageCalculator struct {
	cfg         domain.StockCoverageConfig
	pre         *Preprocessor
	wma         *WeightedMovingAverage
	trend       *TrendAnalyzer
	seasonality *SeasonalityAdjuster
	now         func() time.Time
}

// Option customizes a CoverageCalculator.
type Option func(*CoverageCalculator)

// WithClock overrides the clock used for CalculatedAt and default dates.
func WithClock(now func() time.Time) Option {
	return func(c *CoverageCalculator) {
		c.now = now
	}
}

// NewCoverageCalculator validates cfg and builds the calculator.
func NewCoverageCalculator(cfg domain.StockCoverageConfig, opts ...Option) (*CoverageCalculator, error) {
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}

	c := &CoverageCalculator{
		cfg:         cfg,
		pre:         NewPreprocessor(cfg),
		wma:         NewWeightedMovingAverage(cfg.HalfLifeDays, cfg.EnablePromotionAdjustment, cfg.EnableAdaptiveWeighting),
		trend:       NewTrendAnalyzer(),
		seasonality: NewSeasonalityAdjuster(cfg.MaxSeasonalDeviation, cfg.EnableMonthlySeasonality, cfg.Holidays),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// ValidateConfig rejects configurations the calculator cannot run with.
func ValidateConfig(cfg domain.StockCoverageConfig) error {
	if err := domain.ValidateStruct(cfg); err != nil {
		return err
	}
	if _, ok := ZScore(cfg.ConfidenceLevel); !ok {
		return domain.NewInvalidConfigurationError("unsupported confidence level %.2f", cfg.ConfidenceLevel).
			WithDetail("supported", []float64{0.90, 0.95, 0.99})
	}
	if cfg.MinValidDays > cfg.HistoricalDays {
		return domain.NewInvalidConfigurationError("min valid days %d exceeds historical days %d",
			cfg.MinValidDays, cfg.HistoricalDays)
	}
	return nil
}

// Config returns the configuration the calculator was built with.
func (c *CoverageCalculator) Config() domain.StockCoverageConfig {
	return c.cfg
}

// Calculate produces the coverage forecast for one product.
func (c *CoverageCalculator) Calculate(in CoverageInput) (*domain.StockCoverageResult, error) {
	if in.Product.SKU == "" {
		return nil, domain.NewInsufficientDataError("product not found")
	}

	current := in.CurrentDate
	if current.IsZero() {
		current = c.now()
	}

	series, err := c.pre.Process(in.Sales, in.Availability, current)
	if err != nil {
		var engineErr *domain.EngineError
		if errors.As(err, &engineErr) {
			engineErr.WithDetail("sku", in.Product.SKU)
		}
		return nil, err
	}

	points := c.seasonality.AdjustHolidays(series.Points)

	factors := domain.NeutralSeasonality()
	if c.cfg.EnableSeasonality {
		factors = c.seasonality.Calculate(points)
	}
	deseasonalized := c.seasonality.Deseasonalize(points, factors)

	trend := c.trend.Analyze(points, deseasonalized)
	avg := c.wma.CalculateValues(points, deseasonalized)

	seasonalIndex := 1.0
	if c.cfg.EnableSeasonality {
		seasonalIndex = c.seasonality.Factor(factors, current)
	}

	scale := trend.TrendFactor * seasonalIndex
	forecast := avg.Mean * scale
	stdDev := avg.StandardDeviation * scale
	lower, upper := ConfidenceInterval(avg, c.cfg.ConfidenceLevel)

	available := in.Product.AvailableStock()
	coverage, noConsumption := CoverageDays(available, forecast)
	// high demand tail gives the pessimistic P10, low demand tail the optimistic P90
	p10, _ := CoverageDays(available, forecast+stdDev)
	p90, _ := CoverageDays(available, forecast-stdDev)
	if noConsumption {
		p10, p90 = coverage, coverage
	}

	quality := AssessDataQuality(series)
	cv := 0.0
	if avg.Mean > 0 {
		cv = avg.StandardDeviation / avg.Mean
	}

	leadTime := in.Product.LeadTimeDays
	if leadTime <= 0 {
		leadTime = c.cfg.DefaultLeadTimeDays
	}

	calculatedAt := c.now().UTC()
	result := &domain.StockCoverageResult{
		SKU:              in.Product.SKU,
		CoverageDays:     coverage,
		CoverageDaysP10:  p10,
		CoverageDaysP90:  p90,
		NoConsumption:    noConsumption,
		AvailableStock:   available,
		DemandForecast:   forecast,
		DemandStdDev:     stdDev,
		DemandLower:      lower * scale,
		DemandUpper:      upper * scale,
		AdjustedDemand:   avg.Mean,
		TrendFactor:      trend.TrendFactor,
		TrendDirection:   trend.Direction,
		SeasonalityIndex: seasonalIndex,
		Confidence:       ConfidenceScore(quality.OverallScore, cv, trend.TrendFactor),
		DataQuality:      quality,
		ReorderPoint:     forecast * float64(leadTime),
		ReorderQuantity:  forecast * c.cfg.TargetCoverageDays,
		StockoutRisk:     StockoutRiskScore(coverage),
		Algorithm:        domain.AlgorithmWeightedSeasonal,
		CalculatedAt:     calculatedAt,
		ExpiresAt:        calculatedAt.Add(c.cfg.CacheTTL),
	}

	if err := checkFinite(result); err != nil {
		return nil, err
	}
	return result, nil
}

func checkFinite(r *domain.StockCoverageResult) error {
	fields := map[string]float64{
		"coverage_days":     r.CoverageDays,
		"coverage_days_p10": r.CoverageDaysP10,
		"coverage_days_p90": r.CoverageDaysP90,
		"demand_forecast":   r.DemandForecast,
		"demand_std_dev":    r.DemandStdDev,
		"adjusted_demand":   r.AdjustedDemand,
		"trend_factor":      r.TrendFactor,
		"seasonality_index": r.SeasonalityIndex,
		"confidence":        r.Confidence,
		"reorder_point":     r.ReorderPoint,
		"reorder_quantity":  r.ReorderQuantity,
	}
	for name, v := range fields {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return domain.NewCalculationFailedError("non-finite %s for sku %s", name, r.SKU).
				WithDetail("sku", r.SKU).
				WithDetail("field", name)
		}
	}
	return nil
}
