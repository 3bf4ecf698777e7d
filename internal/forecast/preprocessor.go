package forecast

import (
	"math"
	"time"

	"github.com/andresuchdata/autopo-replenish/internal/domain"
	"github.com/montanaflynn/stats"
)

const (
	minutesPerDay = 1440.0

	// AvailabilityFloor bounds the upscaling of demand observed on partially
	// available days.
	AvailabilityFloor = 0.3

	// MinWeight is the lowest weight a non-outlier point can carry.
	MinWeight = 0.5

	madScale           = 1.4826
	minOutlierWindow   = 7
	dayKeyLayout       = "2006-01-02"
	intermittentCutoff = 0.5
)

// Series is the output of a preprocessing run.
type Series struct {
	Points    []domain.ProcessedDataPoint
	ValidDays int
}

// Preprocessor turns raw history into one processed point per calendar day.
type Preprocessor struct {
	historicalDays int
	outlierCap     float64
	outlierWindow  int
	minValidDays   int
}

func NewPreprocessor(cfg domain.StockCoverageConfig) *Preprocessor {
	return &Preprocessor{
		historicalDays: cfg.HistoricalDays,
		outlierCap:     cfg.OutlierCapMultiplier,
		outlierWindow:  cfg.OutlierWindowDays,
		minValidDays:   cfg.MinValidDays,
	}
}

// MergeHistory joins sales and availability facts into one record per day.
// Duplicate facts for the same day are summed.
func MergeHistory(sales []domain.SalesRecord, availability []domain.AvailabilityRecord) map[string]*domain.RawHistoryRecord {
	merged := make(map[string]*domain.RawHistoryRecord, len(sales))

	get := func(t time.Time) *domain.RawHistoryRecord {
		day := domain.DateOnly(t)
		key := day.Format(dayKeyLayout)
		rec, ok := merged[key]
		if !ok {
			rec = &domain.RawHistoryRecord{Date: day}
			merged[key] = rec
		}
		return rec
	}

	for _, s := range sales {
		rec := get(s.Date)
		rec.UnitsSold += s.UnitsSold
		rec.Revenue += s.Revenue
		if s.Price > 0 {
			rec.Price = s.Price
		}
		rec.PromotionFlag = rec.PromotionFlag || s.PromotionFlag
		rec.HasSales = true
	}
	for _, a := range availability {
		rec := get(a.Date)
		rec.AvailabilityMinutes += a.AvailabilityMinutes
		rec.StockoutEvents += a.StockoutEvents
		rec.HasAvailability = true
	}

	return merged
}

// Process builds the daily series for the window ending on currentDate.
func (p *Preprocessor) Process(sales []domain.SalesRecord, availability []domain.AvailabilityRecord, currentDate time.Time) (Series, error) {
	merged := MergeHistory(sales, availability)

	end := domain.DateOnly(currentDate)
	start := end.AddDate(0, 0, -(p.historicalDays - 1))

	points := make([]domain.ProcessedDataPoint, 0, p.historicalDays)
	validDays := 0

	for day := start; !day.After(end); day = day.AddDate(0, 0, 1) {
		point := domain.ProcessedDataPoint{
			Date:               day,
			DayOfWeek:          day.Weekday(),
			AvailabilityFactor: 1,
		}

		if rec, ok := merged[day.Format(dayKeyLayout)]; ok {
			validDays++
			point.RawDemand = math.Max(0, rec.UnitsSold)
			point.IsPromotion = rec.PromotionFlag
			if rec.HasAvailability {
				point.AvailabilityFactor = clamp(rec.AvailabilityMinutes/minutesPerDay, 0, 1)
			}
		}

		point.AdjustedDemand = point.RawDemand / math.Max(point.AvailabilityFactor, AvailabilityFloor)
		points = append(points, point)
	}

	if validDays < p.minValidDays {
		return Series{}, domain.NewInsufficientDataError("only %d days of history in the last %d days, need %d",
			validDays, p.historicalDays, p.minValidDays).
			WithDetail("valid_days", validDays).
			WithDetail("min_valid_days", p.minValidDays)
	}

	if p.outlierCap > 0 {
		p.flagOutliers(points)
	}

	for i := range points {
		if points[i].IsOutlier {
			points[i].Weight = 0
			continue
		}
		points[i].Weight = math.Max(MinWeight, points[i].AvailabilityFactor)
	}

	return Series{Points: points, ValidDays: validDays}, nil
}

// flagOutliers marks points whose raw demand lies more than outlierCap robust
// spreads away from the median of the trailing window ending on the point.
func (p *Preprocessor) flagOutliers(points []domain.ProcessedDataPoint) {
	window := p.outlierWindow
	if window < minOutlierWindow {
		window = minOutlierWindow
	}

	values := make([]float64, len(points))
	for i, pt := range points {
		values[i] = pt.RawDemand
	}

	for i := range points {
		from := i - window + 1
		if from < 0 {
			from = 0
		}
		trailing := values[from : i+1]
		if len(trailing) < minOutlierWindow || isIntermittent(trailing) {
			continue
		}

		median, spread, ok := robustSpread(trailing)
		if !ok {
			continue
		}
		if math.Abs(values[i]-median) > p.outlierCap*spread {
			points[i].IsOutlier = true
		}
	}
}

// robustSpread returns the median and the scaled MAD of values, falling back
// to the mean absolute deviation when more than half the values are equal.
func robustSpread(values []float64) (median, spread float64, ok bool) {
	median, err := stats.Median(values)
	if err != nil {
		return 0, 0, false
	}

	mad, err := stats.MedianAbsoluteDeviationPopulation(values)
	if err == nil && mad > 0 {
		return median, mad * madScale, true
	}

	deviations := make([]float64, len(values))
	for i, v := range values {
		deviations[i] = math.Abs(v - median)
	}
	meanDev, err := stats.Mean(deviations)
	if err != nil || meanDev == 0 {
		return median, 0, false
	}
	return median, meanDev, true
}

func isIntermittent(values []float64) bool {
	selling := 0
	for _, v := range values {
		if v > 0 {
			selling++
		}
	}
	return float64(selling) < intermittentCutoff*float64(len(values))
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(hi, math.Max(lo, v))
}
