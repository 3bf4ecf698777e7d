package forecast

import (
	"github.com/andresuchdata/autopo-replenish/internal/domain"
	"github.com/montanaflynn/stats"
)

const (
	completenessWeight = 0.35
	consistencyWeight  = 0.25
	availabilityWeight = 0.2
	outlierWeight      = 0.2

	degradedAvailability = 0.9

	minConfidence = 0.1
	maxConfidence = 1.0
)

// AssessDataQuality scores how trustworthy a preprocessed series is.
func AssessDataQuality(series Series) domain.DataQualityScore {
	n := len(series.Points)
	if n == 0 {
		return domain.DataQualityScore{}
	}

	var demand []float64
	degraded, outliers := 0, 0
	for _, p := range series.Points {
		if p.AvailabilityFactor < degradedAvailability {
			degraded++
		}
		if p.IsOutlier {
			outliers++
			continue
		}
		demand = append(demand, p.AdjustedDemand)
	}

	score := domain.DataQualityScore{
		Completeness:       clamp(float64(series.ValidDays)/float64(n), 0, 1),
		Consistency:        consistency(demand),
		AvailabilityIssues: float64(degraded) / float64(n),
		OutlierPercentage:  float64(outliers) / float64(n),
	}
	score.OverallScore = clamp(
		completenessWeight*score.Completeness+
			consistencyWeight*score.Consistency+
			availabilityWeight*(1-score.AvailabilityIssues)+
			outlierWeight*(1-score.OutlierPercentage),
		0, 1)

	return score
}

// consistency is 1/(1+CV). A series with no spread scores 1.
func consistency(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	mean, err := stats.Mean(values)
	if err != nil {
		return 0
	}
	sd, err := stats.StandardDeviationPopulation(values)
	if err != nil {
		return 0
	}
	if sd == 0 {
		return 1
	}
	if mean <= 0 {
		return 0
	}
	return 1 / (1 + sd/mean)
}

// ConfidenceScore discounts data quality for volatile demand and extreme
// trends. The result lies in [0.1, 1].
func ConfidenceScore(quality, cv, trendFactor float64) float64 {
	confidence := quality
	switch {
	case cv > 1.0:
		confidence *= 0.6
	case cv > 0.5:
		confidence *= 0.8
	}
	if trendFactor < 0.5 || trendFactor > 2.0 {
		confidence *= 0.85
	}
	return clamp(confidence, minConfidence, maxConfidence)
}

// StockoutRiskScore maps coverage days onto a stockout probability.
func StockoutRiskScore(coverageDays float64) float64 {
	switch {
	case coverageDays <= 0:
		return 1.0
	case coverageDays <= 3:
		return 0.9
	case coverageDays <= 7:
		return 0.7
	case coverageDays <= 14:
		return 0.5
	case coverageDays <= 30:
		return 0.3
	case coverageDays <= 60:
		return 0.1
	default:
		return 0.05
	}
}

// CoverageDays divides stock by daily demand under the no-consumption rule:
// non-positive demand yields MaxCoverageDays when stock is on hand, else 0.
// The boolean reports whether the no-consumption rule applied.
func CoverageDays(stock, dailyDemand float64) (float64, bool) {
	if dailyDemand <= demandEpsilon {
		if stock > 0 {
			return domain.MaxCoverageDays, true
		}
		return 0, true
	}
	if stock <= 0 {
		return 0, false
	}
	days := stock / dailyDemand
	if days > domain.MaxCoverageDays {
		days = domain.MaxCoverageDays
	}
	return days, false
}

const demandEpsilon = 1e-9
