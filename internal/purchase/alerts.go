package purchase

import (
	"fmt"
	"math"

	"github.com/andresuchdata/autopo-replenish/internal/domain"
)

const (
	highVariabilityRatio = 0.5
	overstockMultiple    = 2.0
)

// EvaluateAlerts applies the alert rules shared by both methods.
func EvaluateAlerts(r *domain.PurchaseRequirementResult) []domain.PurchaseAlert {
	alerts := make([]domain.PurchaseAlert, 0, 2)

	if !r.NoConsumption && r.CurrentCoverageDays < float64(r.LeadTimeDays) {
		alerts = append(alerts, domain.PurchaseAlert{
			Type:     domain.AlertTypeError,
			Code:     domain.AlertStockoutImminent,
			Message:  fmt.Sprintf("stock covers %.1f days, lead time is %d days", r.CurrentCoverageDays, r.LeadTimeDays),
			Severity: domain.SeverityHigh,
		})
	}

	if r.NeedsExpediting {
		alerts = append(alerts, domain.PurchaseAlert{
			Type:     domain.AlertTypeWarning,
			Code:     domain.AlertExpediteRequired,
			Message:  fmt.Sprintf("%.0f units short before the next delivery can arrive", math.Ceil(r.GapBeforeLeadTime)),
			Severity: domain.SeverityHigh,
		})
	}

	if variability := r.DemandStdDev / math.Max(r.DailyDemand, 1); variability > highVariabilityRatio {
		alerts = append(alerts, domain.PurchaseAlert{
			Type:     domain.AlertTypeWarning,
			Code:     domain.AlertHighVariability,
			Message:  fmt.Sprintf("demand varies %.0f%% around its mean", variability*100),
			Severity: domain.SeverityMedium,
		})
	}

	if r.RequiredQuantity == 0 && r.CurrentCoverageDays > overstockMultiple*float64(r.CoverageDays) {
		alerts = append(alerts, domain.PurchaseAlert{
			Type:     domain.AlertTypeInfo,
			Code:     domain.AlertOverstock,
			Message:  fmt.Sprintf("stock covers %.0f days against a %d day target", r.CurrentCoverageDays, r.CoverageDays),
			Severity: domain.SeverityLow,
		})
	}

	return alerts
}
