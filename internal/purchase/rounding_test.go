package purchase

import (
	"math"
	"testing"

	"github.com/andresuchdata/autopo-replenish/internal/domain"
	"github.com/stretchr/testify/assert"
)

func TestRoundToPackSize(t *testing.T) {
	for pack := 1; pack <= 24; pack++ {
		for required := 0; required <= 500; required++ {
			r := float64(required)
			got := RoundToPackSize(r, pack, true)

			assert.GreaterOrEqual(t, got, r)
			assert.Less(t, got-r, float64(pack))
			assert.Zero(t, math.Mod(got, float64(pack)), "pack=%d required=%d", pack, required)
			if pack == 1 {
				assert.Equal(t, r, got)
			}
		}
	}

	assert.Equal(t, 13.0, RoundToPackSize(13, 12, false))
	assert.Zero(t, RoundToPackSize(-4, 6, true))
}

func TestEffectiveLeadTime(t *testing.T) {
	tests := []struct {
		days     int
		strategy domain.LeadTimeStrategy
		want     int
	}{
		{7, domain.LeadTimeP50, 7},
		{7, domain.LeadTimeP90, 11},
		{10, domain.LeadTimeP90, 15},
		{1, domain.LeadTimeP90, 2},
		{0, domain.LeadTimeP50, 1},
		{0, domain.LeadTimeP90, 1},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, EffectiveLeadTime(tc.days, tc.strategy), "%d %s", tc.days, tc.strategy)
	}
}

func TestRiskFromCoverage(t *testing.T) {
	assert.Equal(t, domain.RiskCritical, RiskFromCoverage(0, 7, false))
	assert.Equal(t, domain.RiskHigh, RiskFromCoverage(5, 7, false))
	assert.Equal(t, domain.RiskMedium, RiskFromCoverage(10, 7, false))
	assert.Equal(t, domain.RiskLow, RiskFromCoverage(15, 7, false))
	assert.Equal(t, domain.RiskLow, RiskFromCoverage(0, 7, true))

	t.Run("non-increasing as coverage grows", func(t *testing.T) {
		for _, lead := range []int{1, 3, 7, 14, 30} {
			prev := RiskFromCoverage(0, lead, false).Rank()
			for days := 0.0; days <= 100; days += 0.5 {
				rank := RiskFromCoverage(days, lead, false).Rank()
				assert.LessOrEqual(t, rank, prev, "lead=%d days=%.1f", lead, days)
				prev = rank
			}
		}
	})
}

func TestScheduleReceipts(t *testing.T) {
	orders := []domain.OpenPurchaseOrder{
		{PONumber: "overdue", PendingQuantity: 10, ETA: dayOffset(-3)},
		{PONumber: "today", PendingQuantity: 5, ETA: dayOffset(0)},
		{PONumber: "no-eta", PendingQuantity: 20},
		{PONumber: "mid", PendingQuantity: 30, ETA: dayOffset(12)},
		{PONumber: "same-day", PendingQuantity: 1, ETA: dayOffset(12)},
		{PONumber: "beyond", PendingQuantity: 99, ETA: dayOffset(60)},
	}

	got := scheduleReceipts(orders, today, 7, 37)
	assert.Equal(t, map[int]float64{1: 15, 7: 20, 12: 31}, got)
}
