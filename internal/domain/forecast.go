package domain

import "time"

// MaxCoverageDays is reported as coverage when the forecast shows no consumption.
const MaxCoverageDays = 999.0

// Forecast algorithm identifiers
const (
	AlgorithmWeightedSeasonal = "weighted_seasonal_trend"
)

// Trend directions
const (
	TrendIncreasing = "increasing"
	TrendDecreasing = "decreasing"
	TrendStable     = "stable"
)

// ProcessedDataPoint is one normalized, availability-adjusted day of demand
type ProcessedDataPoint struct {
	Date               time.Time    `json:"date"`
	DayOfWeek          time.Weekday `json:"day_of_week"`
	RawDemand          float64      `json:"raw_demand"`
	AdjustedDemand     float64      `json:"adjusted_demand"`
	AvailabilityFactor float64      `json:"availability_factor"`
	IsOutlier          bool         `json:"is_outlier"`
	IsPromotion        bool         `json:"is_promotion"`
	Weight             float64      `json:"weight"`
}

// SeasonalityFactors holds multiplicative weekday (Sunday = 0) and month (January = 0) factors
type SeasonalityFactors struct {
	DayOfWeek        [7]float64     `json:"day_of_week"`
	Raw              [7]float64     `json:"raw"`
	Monthly          [12]float64    `json:"monthly"`
	HasWeeklyPattern bool           `json:"has_weekly_pattern"`
	PeakDays         []time.Weekday `json:"peak_days,omitempty"`
	LowDays          []time.Weekday `json:"low_days,omitempty"`
}

// NeutralSeasonality returns factors that leave demand unchanged
func NeutralSeasonality() SeasonalityFactors {
	var f SeasonalityFactors
	for i := range f.DayOfWeek {
		f.DayOfWeek[i] = 1
		f.Raw[i] = 1
	}
	for i := range f.Monthly {
		f.Monthly[i] = 1
	}
	return f
}

// WeightedAverageResult summarizes an exponentially decayed demand series
type WeightedAverageResult struct {
	Mean              float64 `json:"mean"`
	Variance          float64 `json:"variance"`
	StandardDeviation float64 `json:"standard_deviation"`
	SumWeights        float64 `json:"sum_weights"`
	EffectiveSamples  float64 `json:"effective_samples"`
	Count             int     `json:"count"`
}

// TrendAnalysis describes the fitted demand trend
type TrendAnalysis struct {
	TrendFactor float64 `json:"trend_factor"`
	Direction   string  `json:"direction"`
	Strength    float64 `json:"strength"`
}

// DataQualityScore rates the history feeding a forecast, every field in [0,1]
type DataQualityScore struct {
	Completeness       float64 `json:"completeness"`
	Consistency        float64 `json:"consistency"`
	AvailabilityIssues float64 `json:"availability_issues"`
	OutlierPercentage  float64 `json:"outlier_percentage"`
	OverallScore       float64 `json:"overall_score"`
}

// StockCoverageConfig parameterizes a coverage calculation run
type StockCoverageConfig struct {
	HalfLifeDays              float64       `json:"half_life_days" validate:"gt=0"`
	EnableSeasonality         bool          `json:"enable_seasonality"`
	EnablePromotionAdjustment bool          `json:"enable_promotion_adjustment"`
	EnableAdaptiveWeighting   bool          `json:"enable_adaptive_weighting"`
	EnableMonthlySeasonality  bool          `json:"enable_monthly_seasonality"`
	OutlierCapMultiplier      float64       `json:"outlier_cap_multiplier" validate:"gte=0"`
	OutlierWindowDays         int           `json:"outlier_window_days" validate:"gte=3"`
	HistoricalDays            int           `json:"historical_days" validate:"gte=7"`
	MinValidDays              int           `json:"min_valid_days" validate:"gte=1"`
	TargetCoverageDays        float64       `json:"target_coverage_days" validate:"gt=0"`
	DefaultLeadTimeDays       int           `json:"default_lead_time_days" validate:"gt=0"`
	ConfidenceLevel           float64       `json:"confidence_level" validate:"gt=0,lt=1"`
	MaxSeasonalDeviation      float64       `json:"max_seasonal_deviation" validate:"gt=0,lt=1"`
	CacheTTL                  time.Duration `json:"cache_ttl" validate:"gt=0"`
	Holidays                  []time.Time   `json:"holidays,omitempty"`
}

// DefaultStockCoverageConfig returns the production defaults
func DefaultStockCoverageConfig() StockCoverageConfig {
	return StockCoverageConfig{
		HalfLifeDays:              14,
		EnableSeasonality:         true,
		EnablePromotionAdjustment: true,
		EnableAdaptiveWeighting:   true,
		OutlierCapMultiplier:      3,
		OutlierWindowDays:         28,
		HistoricalDays:            90,
		MinValidDays:              7,
		TargetCoverageDays:        30,
		DefaultLeadTimeDays:       7,
		ConfidenceLevel:           0.95,
		MaxSeasonalDeviation:      0.5,
		CacheTTL:                  time.Hour,
	}
}

// StockCoverageResult is the forecast artifact for one SKU
type StockCoverageResult struct {
	SKU              string           `json:"sku"`
	CoverageDays     float64          `json:"coverage_days"`
	CoverageDaysP10  float64          `json:"coverage_days_p10"`
	CoverageDaysP90  float64          `json:"coverage_days_p90"`
	NoConsumption    bool             `json:"no_consumption"`
	AvailableStock   float64          `json:"available_stock"`
	DemandForecast   float64          `json:"demand_forecast"`
	DemandStdDev     float64          `json:"demand_std_dev"`
	DemandLower      float64          `json:"demand_lower"`
	DemandUpper      float64          `json:"demand_upper"`
	AdjustedDemand   float64          `json:"adjusted_demand"`
	TrendFactor      float64          `json:"trend_factor"`
	TrendDirection   string           `json:"trend_direction"`
	SeasonalityIndex float64          `json:"seasonality_index"`
	Confidence       float64          `json:"confidence"`
	DataQuality      DataQualityScore `json:"data_quality"`
	ReorderPoint     float64          `json:"reorder_point"`
	ReorderQuantity  float64          `json:"reorder_quantity"`
	StockoutRisk     float64          `json:"stockout_risk"`
	Algorithm        string           `json:"algorithm"`
	CalculatedAt     time.Time        `json:"calculated_at"`
	ExpiresAt        time.Time        `json:"expires_at"`
}

// IsStale reports whether the result has outlived its TTL at the given instant
func (r *StockCoverageResult) IsStale(now time.Time) bool {
	return !now.Before(r.ExpiresAt)
}
