package purchase

import (
	"math"
	"time"

	"github.com/andresuchdata/autopo-replenish/internal/domain"
)

// weekdayPattern is the demand profile of the simulation, Sunday first.
var weekdayPattern = [7]float64{0.8, 1.0, 1.1, 1.1, 1.2, 1.3, 0.9}

// calculateTimePhased simulates the stock ledger day by day over lead time
// plus coverage, booking open orders on their ETA.
func calculateTimePhased(pos position, r *domain.PurchaseRequirementResult) {
	horizon := pos.leadTime + pos.coverageDays
	receipts := scheduleReceipts(pos.openOrders, pos.today, pos.leadTime, horizon)

	ledger := make([]domain.ProjectionDay, 0, horizon)
	stock := pos.available
	var horizonDemand float64
	minBeforeLead := math.Inf(1)
	minAfterLead := math.Inf(1)
	stockoutDay := 0

	for day := 1; day <= horizon; day++ {
		date := pos.today.AddDate(0, 0, day)
		demand := pos.adjustedDemand * weekdayPattern[date.Weekday()]
		stock = stock - demand + receipts[day]
		horizonDemand += demand

		below := stock < pos.safetyStock-quantityEpsilon
		if below && stockoutDay == 0 {
			stockoutDay = day
		}
		if day <= pos.leadTime {
			minBeforeLead = math.Min(minBeforeLead, stock)
		}
		if day >= pos.leadTime {
			minAfterLead = math.Min(minAfterLead, stock)
		}

		ledger = append(ledger, domain.ProjectionDay{
			Day:            day,
			Date:           date,
			Demand:         demand,
			Receipts:       receipts[day],
			ProjectedStock: stock,
			BelowSafety:    below,
		})
	}

	r.Projection = ledger
	r.TargetInventory = horizonDemand + pos.safetyStock
	r.GapBeforeLeadTime = math.Max(0, pos.safetyStock-minBeforeLead)
	r.RequiredQuantity = wholeUnits(pos.safetyStock - minAfterLead)

	if stockoutDay > 0 {
		stockout := pos.today.AddDate(0, 0, stockoutDay)
		r.StockoutDate = &stockout
		// latest order whose arrival lands the day before the crossing
		r.SuggestedOrderDate = pos.today.AddDate(0, 0, max(0, stockoutDay-1-pos.leadTime))
		return
	}
	r.SuggestedOrderDate = pos.today.AddDate(0, 0, pos.coverageDays)
}

// scheduleReceipts maps simulation day to pending quantity. Overdue orders
// arrive on day 1, orders without an ETA on the lead time day, and orders
// beyond the horizon are dropped.
func scheduleReceipts(orders []domain.OpenPurchaseOrder, today time.Time, leadTime, horizon int) map[int]float64 {
	receipts := make(map[int]float64, len(orders))
	for _, o := range orders {
		day := leadTime
		if o.ETA != nil {
			day = domain.DaysBetween(today, *o.ETA)
		}
		if day < 1 {
			day = 1
		}
		if day > horizon {
			continue
		}
		receipts[day] += o.PendingQuantity
	}
	return receipts
}
