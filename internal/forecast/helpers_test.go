package forecast

import (
	"time"

	"github.com/andresuchdata/autopo-replenish/internal/domain"
)

// 2024-03-31 is a Sunday.
var testToday = time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC)

func fixedClock() time.Time {
	return time.Date(2024, 3, 31, 8, 0, 0, 0, time.UTC)
}

// dailySales returns one record per day for the days ending on end, with
// units produced by unitsFor(offset) where offset 0 is the oldest day.
func dailySales(sku string, days int, end time.Time, unitsFor func(i int) float64) []domain.SalesRecord {
	out := make([]domain.SalesRecord, 0, days)
	start := end.AddDate(0, 0, -(days - 1))
	for i := 0; i < days; i++ {
		out = append(out, domain.SalesRecord{
			SKU:       sku,
			Date:      start.AddDate(0, 0, i),
			UnitsSold: unitsFor(i),
		})
	}
	return out
}

func constant(v float64) func(int) float64 {
	return func(int) float64 { return v }
}

// points builds a fully available, non-outlier series with the given demand
// ending on end.
func points(end time.Time, demand ...float64) []domain.ProcessedDataPoint {
	out := make([]domain.ProcessedDataPoint, len(demand))
	start := end.AddDate(0, 0, -(len(demand) - 1))
	for i, d := range demand {
		date := start.AddDate(0, 0, i)
		out[i] = domain.ProcessedDataPoint{
			Date:               date,
			DayOfWeek:          date.Weekday(),
			RawDemand:          d,
			AdjustedDemand:     d,
			AvailabilityFactor: 1,
			Weight:             1,
		}
	}
	return out
}

func repeat(v float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func testProduct(sku string, stock float64) domain.Product {
	return domain.Product{
		SKU:          sku,
		Name:         "Product " + sku,
		CurrentStock: stock,
		PackSize:     1,
		LeadTimeDays: 7,
		Active:       true,
	}
}
