package purchase

import (
	"math"

	"github.com/andresuchdata/autopo-replenish/internal/domain"
)

// calculateRapid is the closed-form order-up-to heuristic. It treats every
// open order as already on hand regardless of its ETA.
func calculateRapid(pos position, r *domain.PurchaseRequirementResult) {
	leadDemand := pos.adjustedDemand * float64(pos.leadTime)
	coverageDemand := pos.adjustedDemand * float64(pos.coverageDays)

	r.TargetInventory = leadDemand + coverageDemand + pos.safetyStock
	r.RequiredQuantity = wholeUnits(r.TargetInventory - pos.inventoryPosition)
	r.GapBeforeLeadTime = math.Max(0, leadDemand-pos.available)

	horizon := pos.leadTime + pos.coverageDays
	if !pos.noConsumption && pos.currentCoverage < float64(horizon) {
		stockout := pos.today.AddDate(0, 0, int(math.Floor(pos.currentCoverage)))
		r.StockoutDate = &stockout
	}

	r.SuggestedOrderDate = pos.today.AddDate(0, 0, rapidDaysUntilOrder(pos, leadDemand))
}

// rapidDaysUntilOrder is how long available stock stays above the lead time
// demand plus reserve.
func rapidDaysUntilOrder(pos position, leadDemand float64) int {
	if pos.noConsumption {
		return pos.coverageDays
	}
	slack := pos.available - leadDemand - pos.safetyStock
	if slack <= 0 {
		return 0
	}
	return int(math.Floor(slack / pos.adjustedDemand))
}
