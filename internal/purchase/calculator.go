package purchase

import (
	"math"
	"time"

	"github.com/andresuchdata/autopo-replenish/internal/domain"
	"github.com/andresuchdata/autopo-replenish/internal/forecast"
	"github.com/shopspring/decimal"
)

const (
	p90LeadTimeMultiplier = 1.5
	quantityEpsilon       = 1e-9
)

// Calculator turns a coverage forecast and an inventory position into a
// purchase recommendation.
type Calculator struct {
	cfg domain.PurchaseRequirementConfig
}

// NewCalculator validates cfg eagerly. Zero or negative coverage and lead
// times are rejected rather than defaulted.
func NewCalculator(cfg domain.PurchaseRequirementConfig) (*Calculator, error) {
	if err := domain.ValidateStruct(cfg); err != nil {
		return nil, err
	}
	if cfg.IncludeStockReserve && cfg.StockReserveDays <= 0 {
		return nil, domain.NewInvalidConfigurationError("stock reserve enabled with %d reserve days", cfg.StockReserveDays).
			WithDetail("stock_reserve_days", cfg.StockReserveDays)
	}
	return &Calculator{cfg: cfg}, nil
}

// Config returns the configuration the calculator was built with.
func (c *Calculator) Config() domain.PurchaseRequirementConfig {
	return c.cfg
}

// position holds the figures both methods start from.
type position struct {
	today             time.Time
	available         float64
	openOrders        []domain.OpenPurchaseOrder
	openOrderQuantity float64
	inventoryPosition float64
	leadTime          int
	coverageDays      int
	packSize          int
	dailyDemand       float64
	adjustedDemand    float64
	safetyStock       float64
	currentCoverage   float64
	noConsumption     bool
}

// Calculate dispatches on the configured method.
func (c *Calculator) Calculate(in domain.PurchaseRequirementInput) (*domain.PurchaseRequirementResult, error) {
	if in.Coverage == nil {
		return nil, domain.NewInsufficientDataError("no coverage forecast for sku %s", in.Product.SKU).
			WithDetail("sku", in.Product.SKU)
	}

	pos := c.prepare(in)
	result := c.baseResult(in, pos)

	switch c.cfg.Method {
	case domain.MethodTimePhased:
		calculateTimePhased(pos, result)
	default:
		calculateRapid(pos, result)
	}

	if err := checkFinite(result); err != nil {
		return nil, err
	}

	c.finish(in, pos, result)
	return result, nil
}

func (c *Calculator) prepare(in domain.PurchaseRequirementInput) position {
	today := in.Today
	if today.IsZero() {
		today = in.Coverage.CalculatedAt
	}

	pos := position{
		today:        domain.DateOnly(today),
		available:    in.Product.AvailableStock(),
		leadTime:     EffectiveLeadTime(c.cfg.LeadTimeDays, c.cfg.LeadTimeStrategy),
		coverageDays: c.cfg.CoverageDays,
		packSize:     in.ResolvedPackSize(),
		dailyDemand:  in.Coverage.AdjustedDemand,
	}

	for _, o := range in.OpenOrders {
		o = o.Normalize()
		if o.PendingQuantity <= 0 || !domain.IsOpenPOStatus(o.Status) {
			continue
		}
		pos.openOrders = append(pos.openOrders, o)
		pos.openOrderQuantity += o.PendingQuantity
	}
	pos.inventoryPosition = pos.available + pos.openOrderQuantity

	pos.adjustedDemand = math.Max(0, pos.dailyDemand*in.Coverage.TrendFactor*in.Coverage.SeasonalityIndex)
	if c.cfg.IncludeStockReserve {
		pos.safetyStock = pos.adjustedDemand * float64(c.cfg.StockReserveDays)
	}
	pos.currentCoverage, pos.noConsumption = forecast.CoverageDays(pos.available, pos.adjustedDemand)

	return pos
}

func (c *Calculator) baseResult(in domain.PurchaseRequirementInput, pos position) *domain.PurchaseRequirementResult {
	p := in.Product
	return &domain.PurchaseRequirementResult{
		SKU:                 p.SKU,
		ProductName:         p.Name,
		SupplierID:          p.SupplierID,
		SupplierName:        p.SupplierName,
		WarehouseID:         p.WarehouseID,
		WarehouseName:       p.WarehouseName,
		Method:              c.cfg.Method,
		CurrentStock:        p.CurrentStock,
		AllocatedStock:      p.AllocatedStock,
		AvailableStock:      pos.available,
		OpenOrderQuantity:   pos.openOrderQuantity,
		InventoryPosition:   pos.inventoryPosition,
		DailyDemand:         pos.dailyDemand,
		AdjustedDailyDemand: pos.adjustedDemand,
		DemandStdDev:        in.Coverage.DemandStdDev,
		TrendFactor:         in.Coverage.TrendFactor,
		SeasonalityIndex:    in.Coverage.SeasonalityIndex,
		CurrentCoverageDays: pos.currentCoverage,
		NoConsumption:       pos.noConsumption,
		LeadTimeDays:        pos.leadTime,
		CoverageDays:        pos.coverageDays,
		SafetyStock:         pos.safetyStock,
		PackSize:            pos.packSize,
		UnitCost:            p.UnitCost,
		Alerts:              []domain.PurchaseAlert{},
	}
}

// finish fills the fields both methods share once quantities are known.
func (c *Calculator) finish(in domain.PurchaseRequirementInput, pos position, r *domain.PurchaseRequirementResult) {
	r.SuggestedQuantity = RoundToPackSize(r.RequiredQuantity, pos.packSize, c.cfg.RespectPackSize)
	r.NeedsExpediting = r.GapBeforeLeadTime > quantityEpsilon
	if r.NeedsExpediting {
		r.SuggestedOrderDate = pos.today
	}
	r.ExpectedArrivalDate = r.SuggestedOrderDate.AddDate(0, 0, pos.leadTime)

	r.StockoutRisk = RiskFromCoverage(pos.currentCoverage, pos.leadTime, pos.noConsumption)
	if pos.noConsumption {
		r.StockoutProbability = forecast.StockoutRiskScore(domain.MaxCoverageDays)
	} else {
		r.StockoutProbability = forecast.StockoutRiskScore(pos.currentCoverage)
	}

	cv := 0.0
	if pos.adjustedDemand > 0 {
		cv = in.Coverage.DemandStdDev / pos.adjustedDemand
	}
	r.Confidence = forecast.ConfidenceScore(in.Coverage.DataQuality.OverallScore, cv, in.Coverage.TrendFactor)

	r.EstimatedCost = r.UnitCost.Mul(decimal.NewFromFloat(r.SuggestedQuantity)).Round(2)
	r.EstimatedInvestment = r.UnitCost.Mul(decimal.NewFromFloat(r.TargetInventory)).Round(2)

	r.Alerts = EvaluateAlerts(r)
}

// EffectiveLeadTime inflates the lead time by half for the P90 strategy.
func EffectiveLeadTime(days int, strategy domain.LeadTimeStrategy) int {
	if strategy == domain.LeadTimeP90 {
		days = int(math.Ceil(float64(days) * p90LeadTimeMultiplier))
	}
	if days < 1 {
		return 1
	}
	return days
}

// RoundToPackSize rounds a whole-unit requirement up to the next pack multiple.
func RoundToPackSize(required float64, packSize int, respect bool) float64 {
	if required <= 0 {
		return 0
	}
	if !respect || packSize <= 1 {
		return required
	}
	pack := float64(packSize)
	return math.Ceil(required/pack-quantityEpsilon) * pack
}

// RiskFromCoverage buckets coverage relative to lead time. A SKU with no
// consumption cannot stock out.
func RiskFromCoverage(coverageDays float64, leadTime int, noConsumption bool) domain.RiskLevel {
	if noConsumption {
		return domain.RiskLow
	}
	ratio := coverageDays / float64(leadTime)
	switch {
	case ratio > 2:
		return domain.RiskLow
	case ratio > 1:
		return domain.RiskMedium
	case ratio > 0.5:
		return domain.RiskHigh
	default:
		return domain.RiskCritical
	}
}

// wholeUnits rounds a non-negative shortfall up to whole units, ignoring
// floating point noise.
func wholeUnits(v float64) float64 {
	const noise = 1e-6
	if v <= noise {
		return 0
	}
	return math.Ceil(v - noise)
}

func checkFinite(r *domain.PurchaseRequirementResult) error {
	for name, v := range map[string]float64{
		"target_inventory":      r.TargetInventory,
		"required_quantity":     r.RequiredQuantity,
		"gap_before_lead_time":  r.GapBeforeLeadTime,
		"current_coverage_days": r.CurrentCoverageDays,
		"adjusted_daily_demand": r.AdjustedDailyDemand,
	} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return domain.NewCalculationFailedError("non-finite %s for sku %s", name, r.SKU).
				WithDetail("sku", r.SKU).
				WithDetail("field", name)
		}
	}
	return nil
}
