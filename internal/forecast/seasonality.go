package forecast

import (
	"math"
	"time"

	"github.com/andresuchdata/autopo-replenish/internal/domain"
	"github.com/montanaflynn/stats"
	"gonum.org/v1/gonum/stat"
)

const (
	minSeasonalPoints        = 14
	minMonthlyPoints         = 90
	weeklyPatternCVThreshold = 0.15
	peakThreshold            = 1.1
	lowThreshold             = 0.9
	holidayRatioThreshold    = 1.2
)

// SeasonalityAdjuster derives and applies multiplicative weekday factors,
// with optional month factors and holiday damping.
type SeasonalityAdjuster struct {
	maxDeviation float64
	monthly      bool
	holidays     map[string]struct{}
}

func NewSeasonalityAdjuster(maxDeviation float64, monthly bool, holidays []time.Time) *SeasonalityAdjuster {
	set := make(map[string]struct{}, len(holidays))
	for _, h := range holidays {
		set[domain.DateOnly(h).Format(dayKeyLayout)] = struct{}{}
	}
	return &SeasonalityAdjuster{
		maxDeviation: maxDeviation,
		monthly:      monthly,
		holidays:     set,
	}
}

// Calculate returns weekday factors for points, or neutral factors when the
// series is too short.
func (s *SeasonalityAdjuster) Calculate(points []domain.ProcessedDataPoint) domain.SeasonalityFactors {
	factors := domain.NeutralSeasonality()
	if len(points) < minSeasonalPoints {
		return factors
	}

	var values, weights [7][]float64
	for _, p := range points {
		if p.IsOutlier || p.Weight <= 0 {
			continue
		}
		values[p.DayOfWeek] = append(values[p.DayOfWeek], p.AdjustedDemand)
		weights[p.DayOfWeek] = append(weights[p.DayOfWeek], p.Weight)
	}

	raw, ok := relativeFactors(values[:], weights[:])
	if !ok {
		return factors
	}

	for d := range raw {
		factors.Raw[d] = raw[d]
		factors.DayOfWeek[d] = SmoothFactor(raw[d], s.maxDeviation)
	}

	if sd, err := stats.StandardDeviationPopulation(factors.DayOfWeek[:]); err == nil {
		mean, _ := stats.Mean(factors.DayOfWeek[:])
		factors.HasWeeklyPattern = mean > 0 && sd/mean > weeklyPatternCVThreshold
	}
	for d := time.Sunday; d <= time.Saturday; d++ {
		switch f := factors.DayOfWeek[d]; {
		case f > peakThreshold:
			factors.PeakDays = append(factors.PeakDays, d)
		case f < lowThreshold:
			factors.LowDays = append(factors.LowDays, d)
		}
	}

	if s.monthly {
		factors.Monthly = s.monthlyFactors(points)
	}

	return factors
}

func (s *SeasonalityAdjuster) monthlyFactors(points []domain.ProcessedDataPoint) [12]float64 {
	var out [12]float64
	for i := range out {
		out[i] = 1
	}
	if len(points) < minMonthlyPoints {
		return out
	}

	var values, weights [12][]float64
	for _, p := range points {
		if p.IsOutlier || p.Weight <= 0 {
			continue
		}
		m := p.Date.Month() - 1
		values[m] = append(values[m], p.AdjustedDemand)
		weights[m] = append(weights[m], p.Weight)
	}

	raw, ok := relativeFactors(values[:], weights[:])
	if !ok {
		return out
	}
	for m := range raw {
		out[m] = SmoothFactor(raw[m], s.maxDeviation)
	}
	return out
}

// relativeFactors divides each group's weighted mean by the mean of the group
// means. Empty groups get factor 1.
func relativeFactors(values, weights [][]float64) ([]float64, bool) {
	means := make([]float64, len(values))
	present := make([]bool, len(values))
	var total float64
	count := 0
	for i := range values {
		if len(values[i]) == 0 {
			continue
		}
		means[i] = stat.Mean(values[i], weights[i])
		present[i] = true
		total += means[i]
		count++
	}
	if count == 0 || total <= 0 {
		return nil, false
	}

	overall := total / float64(count)
	out := make([]float64, len(values))
	for i := range values {
		if !present[i] {
			out[i] = 1
			continue
		}
		out[i] = means[i] / overall
	}
	return out, true
}

// SmoothFactor keeps a factor inside [1-maxDeviation, 1+maxDeviation]. Up to
// half the bound the factor is untouched; beyond that the excess is
// compressed logarithmically so the curve stays continuous and never reaches
// the bound.
func SmoothFactor(raw, maxDeviation float64) float64 {
	if maxDeviation <= 0 {
		return 1
	}
	dev := raw - 1
	knee := maxDeviation / 2
	if math.Abs(dev) <= knee {
		return raw
	}

	room := maxDeviation - knee
	excess := math.Abs(dev) - knee
	l := math.Log1p(excess / room)
	compressed := knee + room*l/(1+l)

	return 1 + math.Copysign(compressed, dev)
}

// Factor returns the combined multiplier for date.
func (s *SeasonalityAdjuster) Factor(f domain.SeasonalityFactors, date time.Time) float64 {
	factor := f.DayOfWeek[date.Weekday()]
	if s.monthly {
		factor *= f.Monthly[date.Month()-1]
	}
	if factor <= 0 {
		return 1
	}
	return factor
}

// Apply scales base demand to date.
func (s *SeasonalityAdjuster) Apply(base float64, f domain.SeasonalityFactors, date time.Time) float64 {
	return base * s.Factor(f, date)
}

// Deseasonalize divides each point's adjusted demand by its factor.
func (s *SeasonalityAdjuster) Deseasonalize(points []domain.ProcessedDataPoint, f domain.SeasonalityFactors) []float64 {
	out := make([]float64, len(points))
	for i, p := range points {
		out[i] = p.AdjustedDemand / s.Factor(f, p.Date)
	}
	return out
}

// AdjustHolidays scales holiday demand back down when holidays sell markedly
// more than ordinary days. The input slice is left untouched.
func (s *SeasonalityAdjuster) AdjustHolidays(points []domain.ProcessedDataPoint) []domain.ProcessedDataPoint {
	out := make([]domain.ProcessedDataPoint, len(points))
	copy(out, points)
	if len(s.holidays) == 0 {
		return out
	}

	var holiday, ordinary []float64
	for _, p := range out {
		if p.IsOutlier {
			continue
		}
		if s.isHoliday(p.Date) {
			holiday = append(holiday, p.AdjustedDemand)
		} else {
			ordinary = append(ordinary, p.AdjustedDemand)
		}
	}
	if len(holiday) == 0 || len(ordinary) == 0 {
		return out
	}

	holidayMean, _ := stats.Mean(holiday)
	ordinaryMean, _ := stats.Mean(ordinary)
	if ordinaryMean <= 0 {
		return out
	}
	ratio := holidayMean / ordinaryMean
	if ratio <= holidayRatioThreshold {
		return out
	}

	for i := range out {
		if s.isHoliday(out[i].Date) {
			out[i].AdjustedDemand /= ratio
		}
	}
	return out
}

func (s *SeasonalityAdjuster) isHoliday(t time.Time) bool {
	_, ok := s.holidays[domain.DateOnly(t).Format(dayKeyLayout)]
	return ok
}
