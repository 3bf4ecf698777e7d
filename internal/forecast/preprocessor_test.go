package forecast

import (
	"testing"
	"time"

	"github.com/andresuchdata/autopo-replenish/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPreprocessor_Process(t *testing.T) {
	cfg := domain.DefaultStockCoverageConfig()

	t.Run("synthesizes missing days as zero demand", func(t *testing.T) {
		sales := dailySales("A", 10, testToday, constant(5))

		series, err := NewPreprocessor(cfg).Process(sales, nil, testToday)
		require.NoError(t, err)
		require.Len(t, series.Points, cfg.HistoricalDays)
		assert.Equal(t, 10, series.ValidDays)

		first := series.Points[0]
		assert.Equal(t, testToday.AddDate(0, 0, -(cfg.HistoricalDays-1)), first.Date)
		assert.Zero(t, first.RawDemand)
		assert.Equal(t, 1.0, first.AvailabilityFactor)

		last := series.Points[len(series.Points)-1]
		assert.Equal(t, testToday, last.Date)
		assert.Equal(t, 5.0, last.RawDemand)
		assert.Equal(t, testToday.Weekday(), last.DayOfWeek)
	})

	t.Run("scales demand by availability with a floor", func(t *testing.T) {
		sales := dailySales("A", 10, testToday, constant(10))
		availability := []domain.AvailabilityRecord{
			{SKU: "A", Date: testToday, AvailabilityMinutes: 720},
			{SKU: "A", Date: testToday.AddDate(0, 0, -1), AvailabilityMinutes: 0, StockoutEvents: 1},
		}

		series, err := NewPreprocessor(cfg).Process(sales, availability, testToday)
		require.NoError(t, err)

		n := len(series.Points)
		half := series.Points[n-1]
		assert.InDelta(t, 0.5, half.AvailabilityFactor, 1e-9)
		assert.InDelta(t, 20.0, half.AdjustedDemand, 1e-9)
		assert.InDelta(t, 0.5, half.Weight, 1e-9)

		out := series.Points[n-2]
		assert.Zero(t, out.AvailabilityFactor)
		assert.InDelta(t, 10/AvailabilityFloor, out.AdjustedDemand, 1e-9)
		assert.Equal(t, MinWeight, out.Weight)
	})

	t.Run("too few valid days", func(t *testing.T) {
		sales := dailySales("A", 3, testToday, constant(10))

		_, err := NewPreprocessor(cfg).Process(sales, nil, testToday)
		require.ErrorIs(t, err, domain.ErrInsufficientData)
		assert.Equal(t, domain.CodeInsufficientData, domain.ErrorCode(err))
	})

	t.Run("flags spikes as outliers and keeps them in the series", func(t *testing.T) {
		spikeDay := 80
		sales := dailySales("A", 90, testToday, func(i int) float64 {
			if i == spikeDay {
				return 100
			}
			return 10
		})

		series, err := NewPreprocessor(cfg).Process(sales, nil, testToday)
		require.NoError(t, err)

		for i, p := range series.Points {
			if i == spikeDay {
				assert.True(t, p.IsOutlier, "spike should be flagged")
				assert.Zero(t, p.Weight)
				assert.Equal(t, 100.0, p.RawDemand)
				continue
			}
			assert.False(t, p.IsOutlier, "day %d should not be flagged", i)
		}
	})

	t.Run("multiplier zero disables outlier detection", func(t *testing.T) {
		noCap := cfg
		noCap.OutlierCapMultiplier = 0
		sales := dailySales("A", 90, testToday, func(i int) float64 {
			if i == 80 {
				return 100
			}
			return 10
		})

		series, err := NewPreprocessor(noCap).Process(sales, nil, testToday)
		require.NoError(t, err)
		for _, p := range series.Points {
			assert.False(t, p.IsOutlier)
		}
	})

	t.Run("intermittent demand is not screened", func(t *testing.T) {
		sales := dailySales("A", 90, testToday, func(i int) float64 {
			if i%5 == 0 {
				return 40
			}
			return 0
		})

		series, err := NewPreprocessor(cfg).Process(sales, nil, testToday)
		require.NoError(t, err)
		for _, p := range series.Points {
			assert.False(t, p.IsOutlier)
		}
	})
}

func TestMergeHistory(t *testing.T) {
	day := testToday.Add(15 * time.Hour)
	merged := MergeHistory(
		[]domain.SalesRecord{
			{SKU: "A", Date: day, UnitsSold: 3, Price: 2, Revenue: 6},
			{SKU: "A", Date: testToday, UnitsSold: 2, Revenue: 4, PromotionFlag: true},
		},
		[]domain.AvailabilityRecord{{SKU: "A", Date: testToday, AvailabilityMinutes: 1440}},
	)

	require.Len(t, merged, 1)
	rec := merged[testToday.Format(dayKeyLayout)]
	require.NotNil(t, rec)
	assert.Equal(t, 5.0, rec.UnitsSold)
	assert.Equal(t, 10.0, rec.Revenue)
	assert.Equal(t, 2.0, rec.Price)
	assert.True(t, rec.PromotionFlag)
	assert.True(t, rec.HasSales)
	assert.True(t, rec.HasAvailability)
}
