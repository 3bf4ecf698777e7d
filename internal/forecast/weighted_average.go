package forecast

import (
	"math"
	"time"

	"github.com/andresuchdata/autopo-replenish/internal/domain"
	"github.com/montanaflynn/stats"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

const (
	promotionDiscount = 0.8

	adaptiveRecentDays  = 14
	adaptiveBoost       = 1.3
	adaptiveDampen      = 0.7
	adaptiveMinOlderLen = 14
)

var zScores = map[float64]float64{
	0.90: 1.645,
	0.95: 1.96,
	0.99: 2.576,
}

// ZScore returns the two-sided z value for a supported confidence level.
func ZScore(level float64) (float64, bool) {
	for l, z := range zScores {
		if math.Abs(l-level) < 1e-9 {
			return z, true
		}
	}
	return 0, false
}

// WeightedMovingAverage computes exponentially time-decayed demand statistics.
type WeightedMovingAverage struct {
	halfLife            float64
	promotionAdjustment bool
	adaptive            bool
}

func NewWeightedMovingAverage(halfLifeDays float64, promotionAdjustment, adaptive bool) *WeightedMovingAverage {
	return &WeightedMovingAverage{
		halfLife:            halfLifeDays,
		promotionAdjustment: promotionAdjustment,
		adaptive:            adaptive,
	}
}

// Weights returns the decay weight of every point relative to the latest
// date in the series. Outliers get zero weight.
func (w *WeightedMovingAverage) Weights(points []domain.ProcessedDataPoint) []float64 {
	weights := make([]float64, len(points))
	if len(points) == 0 {
		return weights
	}

	latest := points[0].Date
	for _, p := range points[1:] {
		if p.Date.After(latest) {
			latest = p.Date
		}
	}

	for i, p := range points {
		if p.IsOutlier {
			continue
		}
		daysAgo := float64(domain.DaysBetween(p.Date, latest))
		weight := math.Pow(0.5, daysAgo/w.halfLife) * math.Max(MinWeight, p.AvailabilityFactor)
		if w.promotionAdjustment && p.IsPromotion {
			weight *= promotionDiscount
		}
		weights[i] = weight
	}

	return weights
}

// Calculate summarizes the adjusted demand of points.
func (w *WeightedMovingAverage) Calculate(points []domain.ProcessedDataPoint) domain.WeightedAverageResult {
	values := make([]float64, len(points))
	for i, p := range points {
		values[i] = p.AdjustedDemand
	}
	return w.CalculateValues(points, values)
}

// CalculateValues summarizes values[i] using the weight derived from points[i].
// It lets callers average a transformed series such as deseasonalized demand.
func (w *WeightedMovingAverage) CalculateValues(points []domain.ProcessedDataPoint, values []float64) domain.WeightedAverageResult {
	weights := w.Weights(points)
	if w.adaptive {
		weights = AdaptiveWeights(points, values, weights)
	}
	return summarize(values, weights)
}

// ByDayOfWeek summarizes each weekday separately. Weekdays without
// observations are left as zero results.
func (w *WeightedMovingAverage) ByDayOfWeek(points []domain.ProcessedDataPoint) [7]domain.WeightedAverageResult {
	weights := w.Weights(points)

	var values, groupWeights [7][]float64
	for i, p := range points {
		values[p.DayOfWeek] = append(values[p.DayOfWeek], p.AdjustedDemand)
		groupWeights[p.DayOfWeek] = append(groupWeights[p.DayOfWeek], weights[i])
	}

	var out [7]domain.WeightedAverageResult
	for d := time.Sunday; d <= time.Saturday; d++ {
		out[d] = summarize(values[d], groupWeights[d])
	}
	return out
}

// ConfidenceInterval returns mean ± z·sd/√effectiveSamples. The lower bound
// never goes below zero.
func ConfidenceInterval(res domain.WeightedAverageResult, level float64) (lower, upper float64) {
	z, ok := ZScore(level)
	if !ok {
		z = zScores[0.95]
	}
	if res.EffectiveSamples <= 0 {
		return res.Mean, res.Mean
	}
	margin := z * res.StandardDeviation / math.Sqrt(res.EffectiveSamples)
	return math.Max(0, res.Mean-margin), res.Mean + margin
}

// EffectiveSampleSize is (Σw)²/Σw² over the positive weights.
func EffectiveSampleSize(weights []float64) float64 {
	var sum, sumSq float64
	for _, w := range weights {
		if w <= 0 {
			continue
		}
		sum += w
		sumSq += w * w
	}
	if sumSq == 0 {
		return 0
	}
	return sum * sum / sumSq
}

// AdaptiveWeights boosts the last two weeks when they are steadier than the
// older history and dampens them otherwise. weights is not modified.
func AdaptiveWeights(points []domain.ProcessedDataPoint, values, weights []float64) []float64 {
	out := make([]float64, len(weights))
	copy(out, weights)
	if len(points) == 0 {
		return out
	}

	latest := points[len(points)-1].Date
	var recent, older []float64
	recentIdx := make([]int, 0, adaptiveRecentDays)
	for i, p := range points {
		if weights[i] <= 0 {
			continue
		}
		if domain.DaysBetween(p.Date, latest) < adaptiveRecentDays {
			recent = append(recent, values[i])
			recentIdx = append(recentIdx, i)
			continue
		}
		older = append(older, values[i])
	}
	if len(recent) < 2 || len(older) < adaptiveMinOlderLen {
		return out
	}

	recentCV, okRecent := coefficientOfVariation(recent)
	olderCV, okOlder := coefficientOfVariation(older)
	if !okRecent || !okOlder {
		return out
	}

	factor := adaptiveDampen
	if recentCV < olderCV {
		factor = adaptiveBoost
	}
	for _, i := range recentIdx {
		out[i] *= factor
	}
	return out
}

func coefficientOfVariation(values []float64) (float64, bool) {
	mean, err := stats.Mean(values)
	if err != nil || mean <= 0 {
		return 0, false
	}
	sd, err := stats.StandardDeviationPopulation(values)
	if err != nil {
		return 0, false
	}
	return sd / mean, true
}

func summarize(values, weights []float64) domain.WeightedAverageResult {
	var x, w []float64
	for i, v := range values {
		if weights[i] <= 0 {
			continue
		}
		x = append(x, v)
		w = append(w, weights[i])
	}
	if len(x) == 0 {
		return domain.WeightedAverageResult{}
	}

	mean, variance := stat.PopMeanVariance(x, w)
	if variance < 0 {
		variance = 0
	}
	return domain.WeightedAverageResult{
		Mean:              mean,
		Variance:          variance,
		StandardDeviation: math.Sqrt(variance),
		SumWeights:        floats.Sum(w),
		EffectiveSamples:  EffectiveSampleSize(w),
		Count:             len(x),
	}
}
