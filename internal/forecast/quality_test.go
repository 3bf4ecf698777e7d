package forecast

import (
	"testing"

	"github.com/andresuchdata/autopo-replenish/internal/domain"
	"github.com/stretchr/testify/assert"
)

func TestAssessDataQuality(t *testing.T) {
	t.Run("clean flat history scores one", func(t *testing.T) {
		pts := points(testToday, repeat(10, 30)...)
		score := AssessDataQuality(Series{Points: pts, ValidDays: 30})

		assert.Equal(t, 1.0, score.Completeness)
		assert.Equal(t, 1.0, score.Consistency)
		assert.Zero(t, score.AvailabilityIssues)
		assert.Zero(t, score.OutlierPercentage)
		assert.InDelta(t, 1.0, score.OverallScore, 1e-9)
	})

	t.Run("gaps, stockouts and outliers lower the score", func(t *testing.T) {
		pts := points(testToday, repeat(10, 10)...)
		pts[0].AvailabilityFactor = 0.5
		pts[1].AvailabilityFactor = 0.2
		pts[2].IsOutlier = true

		score := AssessDataQuality(Series{Points: pts, ValidDays: 5})

		assert.InDelta(t, 0.5, score.Completeness, 1e-9)
		assert.InDelta(t, 1, score.Consistency, 1e-9)
		assert.InDelta(t, 0.2, score.AvailabilityIssues, 1e-9)
		assert.InDelta(t, 0.1, score.OutlierPercentage, 1e-9)
		assert.InDelta(t, 0.35*0.5+0.25*1+0.2*0.8+0.2*0.9, score.OverallScore, 1e-9)
	})

	t.Run("volatile demand is less consistent", func(t *testing.T) {
		pts := points(testToday, 0, 20, 0, 20)
		score := AssessDataQuality(Series{Points: pts, ValidDays: 4})
		assert.InDelta(t, 0.5, score.Consistency, 1e-9)
	})

	t.Run("empty series", func(t *testing.T) {
		assert.Equal(t, domain.DataQualityScore{}, AssessDataQuality(Series{}))
	})
}

func TestConfidenceScore(t *testing.T) {
	tests := []struct {
		name    string
		quality float64
		cv      float64
		trend   float64
		want    float64
	}{
		{"stable", 0.9, 0.2, 1, 0.9},
		{"moderate variability", 1, 0.6, 1, 0.8},
		{"high variability", 1, 1.2, 1, 0.6},
		{"steep growth", 1, 0.2, 2.5, 0.85},
		{"collapse with noise", 1, 1.5, 0.3, 0.6 * 0.85},
		{"floor", 0.05, 0, 1, 0.1},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.InDelta(t, tc.want, ConfidenceScore(tc.quality, tc.cv, tc.trend), 1e-9)
		})
	}
}

func TestStockoutRiskScore(t *testing.T) {
	assert.Equal(t, 1.0, StockoutRiskScore(0))
	assert.Equal(t, 1.0, StockoutRiskScore(-5))
	assert.Equal(t, 0.9, StockoutRiskScore(3))
	assert.Equal(t, 0.7, StockoutRiskScore(7))
	assert.Equal(t, 0.5, StockoutRiskScore(14))
	assert.Equal(t, 0.3, StockoutRiskScore(30))
	assert.Equal(t, 0.1, StockoutRiskScore(60))
	assert.Equal(t, 0.05, StockoutRiskScore(domain.MaxCoverageDays))

	t.Run("non-increasing in coverage", func(t *testing.T) {
		prev := StockoutRiskScore(-1)
		for days := 0.0; days <= 120; days += 0.25 {
			risk := StockoutRiskScore(days)
			assert.LessOrEqual(t, risk, prev)
			assert.GreaterOrEqual(t, risk, 0.0)
			assert.LessOrEqual(t, risk, 1.0)
			prev = risk
		}
	})
}

func TestCoverageDays(t *testing.T) {
	days, none := CoverageDays(100, 10)
	assert.Equal(t, 10.0, days)
	assert.False(t, none)

	days, none = CoverageDays(100, 0)
	assert.Equal(t, domain.MaxCoverageDays, days)
	assert.True(t, none)

	days, none = CoverageDays(0, 0)
	assert.Zero(t, days)
	assert.True(t, none)

	days, none = CoverageDays(-5, 3)
	assert.Zero(t, days)
	assert.False(t, none)

	days, _ = CoverageDays(1e9, 0.5)
	assert.Equal(t, domain.MaxCoverageDays, days)
}
