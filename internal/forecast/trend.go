package forecast

import (
	"math"

	"github.com/andresuchdata/autopo-replenish/internal/domain"
	"gonum.org/v1/gonum/stat"
)

const (
	minTrendPoints = 14
	minTrendFactor = 0.25
	maxTrendFactor = 3.0

	increasingThreshold = 1.05
	decreasingThreshold = 0.95
)

// NeutralTrend is the flat trend used when no line can be fitted.
func NeutralTrend() domain.TrendAnalysis {
	return domain.TrendAnalysis{TrendFactor: 1, Direction: domain.TrendStable}
}

// TrendAnalyzer fits a weighted least-squares line through the demand series.
type TrendAnalyzer struct {
	minPoints int
}

func NewTrendAnalyzer() *TrendAnalyzer {
	return &TrendAnalyzer{minPoints: minTrendPoints}
}

// Analyze fits values (usually deseasonalized demand) against the day index of
// points. The slope is projected to the latest day and damped by R² so a
// noisy fit stays close to flat.
func (t *TrendAnalyzer) Analyze(points []domain.ProcessedDataPoint, values []float64) domain.TrendAnalysis {
	if len(points) == 0 {
		return NeutralTrend()
	}

	origin := points[0].Date
	var x, y, w []float64
	for i, p := range points {
		if p.IsOutlier || p.Weight <= 0 {
			continue
		}
		x = append(x, float64(domain.DaysBetween(origin, p.Date)))
		y = append(y, values[i])
		w = append(w, p.Weight)
	}
	if len(x) < t.minPoints {
		return NeutralTrend()
	}

	mean := stat.Mean(y, w)
	if mean <= 0 {
		return NeutralTrend()
	}

	alpha, beta := stat.LinearRegression(x, y, w, false)
	r2 := stat.RSquared(x, y, w, alpha, beta)
	if math.IsNaN(r2) || math.IsInf(r2, 0) {
		return NeutralTrend()
	}
	r2 = clamp(r2, 0, 1)

	fittedLatest := alpha + beta*x[len(x)-1]
	raw := fittedLatest / mean
	factor := clamp(1+(raw-1)*r2, minTrendFactor, maxTrendFactor)

	return domain.TrendAnalysis{
		TrendFactor: factor,
		Direction:   trendDirection(factor),
		Strength:    r2,
	}
}

func trendDirection(factor float64) string {
	switch {
	case factor > increasingThreshold:
		return domain.TrendIncreasing
	case factor < decreasingThreshold:
		return domain.TrendDecreasing
	default:
		return domain.TrendStable
	}
}
