package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Method selects the replenishment algorithm
type Method string

const (
	MethodRapid      Method = "RAPID"
	MethodTimePhased Method = "TIME_PHASED"
)

const (
	defaultPackSize   = 1
	defaultCoverage   = 30
	defaultLeadTime   = 7
	defaultConcurrent = 5
)

// LeadTimeStrategy selects how supplier lead time is estimated
type LeadTimeStrategy string

const (
	LeadTimeP50 LeadTimeStrategy = "P50"
	LeadTimeP90 LeadTimeStrategy = "P90"
)

// RiskLevel buckets the stockout risk of a recommendation
type RiskLevel string

const (
	RiskLow      RiskLevel = "LOW"
	RiskMedium   RiskLevel = "MEDIUM"
	RiskHigh     RiskLevel = "HIGH"
	RiskCritical RiskLevel = "CRITICAL"
)

// Rank orders risk levels from LOW (0) to CRITICAL (3)
func (r RiskLevel) Rank() int {
	switch r {
	case RiskCritical:
		return 3
	case RiskHigh:
		return 2
	case RiskMedium:
		return 1
	default:
		return 0
	}
}

// Alert types and severities
const (
	AlertTypeError   = "ERROR"
	AlertTypeWarning = "WARNING"
	AlertTypeInfo    = "INFO"

	AlertStockoutImminent = "STOCKOUT_IMMINENT"
	AlertExpediteRequired = "EXPEDITE_REQUIRED"
	AlertHighVariability  = "HIGH_VARIABILITY"
	AlertOverstock        = "OVERSTOCK"

	SeverityHigh   = "HIGH"
	SeverityMedium = "MEDIUM"
	SeverityLow    = "LOW"
)

// PurchaseAlert is a rule-based warning attached to a recommendation
type PurchaseAlert struct {
	Type     string `json:"type"`
	Code     string `json:"code"`
	Message  string `json:"message"`
	Severity string `json:"severity"`
}

// PurchaseRequirementConfig parameterizes a purchase requirement run
type PurchaseRequirementConfig struct {
	CoverageDays        int              `json:"coverage_days" validate:"gt=0"`
	LeadTimeDays        int              `json:"lead_time_days" validate:"gt=0"`
	Method              Method           `json:"method" validate:"oneof=RAPID TIME_PHASED"`
	LeadTimeStrategy    LeadTimeStrategy `json:"lead_time_strategy" validate:"oneof=P50 P90"`
	IncludeStockReserve bool             `json:"include_stock_reserve"`
	StockReserveDays    int              `json:"stock_reserve_days" validate:"gte=0"`
	RespectPackSize     bool             `json:"respect_pack_size"`
	EnableParallel      bool             `json:"enable_parallel"`
	MaxConcurrency      int              `json:"max_concurrency" validate:"gte=1,lte=100"`
	ShowOnlyNeeded      bool             `json:"show_only_needed"`
	Filters             ProductFilter    `json:"filters"`
	Timeout             time.Duration    `json:"timeout" validate:"gte=0"`
}

// DefaultPurchaseRequirementConfig returns the configuration requests start from
func DefaultPurchaseRequirementConfig() PurchaseRequirementConfig {
	return PurchaseRequirementConfig{
		CoverageDays:     defaultCoverage,
		LeadTimeDays:     defaultLeadTime,
		Method:           MethodRapid,
		LeadTimeStrategy: LeadTimeP50,
		RespectPackSize:  true,
		EnableParallel:   true,
		MaxConcurrency:   defaultConcurrent,
	}
}

// PurchaseRequirementInput is everything the calculator needs for one SKU
type PurchaseRequirementInput struct {
	Product    Product
	Coverage   *StockCoverageResult
	OpenOrders []OpenPurchaseOrder
	// PackSize overrides Product.PackSize when > 0
	PackSize int
	Today    time.Time
}

// ResolvedPackSize applies the override, product and default pack sizes in order
func (in PurchaseRequirementInput) ResolvedPackSize() int {
	if in.PackSize > 0 {
		return in.PackSize
	}
	if in.Product.PackSize > 0 {
		return in.Product.PackSize
	}
	return defaultPackSize
}

// ProjectionDay is one day of the TIME_PHASED ledger
type ProjectionDay struct {
	Day            int       `json:"day"`
	Date           time.Time `json:"date"`
	Demand         float64   `json:"demand"`
	Receipts       float64   `json:"receipts"`
	ProjectedStock float64   `json:"projected_stock"`
	BelowSafety    bool      `json:"below_safety"`
}

// PurchaseRequirementResult is the per-SKU replenishment recommendation
type PurchaseRequirementResult struct {
	SKU           string `json:"sku"`
	ProductName   string `json:"product_name"`
	SupplierID    string `json:"supplier_id"`
	SupplierName  string `json:"supplier_name"`
	WarehouseID   string `json:"warehouse_id"`
	WarehouseName string `json:"warehouse_name"`
	Method        Method `json:"method"`

	CurrentStock      float64 `json:"current_stock"`
	AllocatedStock    float64 `json:"allocated_stock"`
	AvailableStock    float64 `json:"available_stock"`
	OpenOrderQuantity float64 `json:"open_order_quantity"`
	InventoryPosition float64 `json:"inventory_position"`

	DailyDemand         float64 `json:"daily_demand"`
	AdjustedDailyDemand float64 `json:"adjusted_daily_demand"`
	DemandStdDev        float64 `json:"demand_std_dev"`
	TrendFactor         float64 `json:"trend_factor"`
	SeasonalityIndex    float64 `json:"seasonality_index"`
	CurrentCoverageDays float64 `json:"current_coverage_days"`
	NoConsumption       bool    `json:"no_consumption"`
	LeadTimeDays        int     `json:"lead_time_days"`
	CoverageDays        int     `json:"coverage_days"`
	SafetyStock         float64 `json:"safety_stock"`

	TargetInventory   float64 `json:"target_inventory"`
	RequiredQuantity  float64 `json:"required_quantity"`
	SuggestedQuantity float64 `json:"suggested_quantity"`
	PackSize          int     `json:"pack_size"`

	GapBeforeLeadTime float64 `json:"gap_before_lead_time"`
	NeedsExpediting   bool    `json:"needs_expediting"`

	StockoutDate        *time.Time `json:"stockout_date,omitempty"`
	SuggestedOrderDate  time.Time  `json:"suggested_order_date"`
	ExpectedArrivalDate time.Time  `json:"expected_arrival_date"`

	StockoutRisk        RiskLevel `json:"stockout_risk"`
	StockoutProbability float64   `json:"stockout_probability"`
	Confidence          float64   `json:"confidence"`

	UnitCost            decimal.Decimal `json:"unit_cost"`
	EstimatedCost       decimal.Decimal `json:"estimated_cost"`
	EstimatedInvestment decimal.Decimal `json:"estimated_investment"`

	Alerts     []PurchaseAlert `json:"alerts"`
	Projection []ProjectionDay `json:"projection,omitempty"`
}

// HasAlert reports whether an alert with the given code was raised
func (r *PurchaseRequirementResult) HasAlert(code string) bool {
	for _, a := range r.Alerts {
		if a.Code == code {
			return true
		}
	}
	return false
}

// BatchError records one SKU that failed inside a batch
type BatchError struct {
	SKU   string `json:"sku"`
	Code  string `json:"code"`
	Error string `json:"error"`
}

// SupplierSummary aggregates a batch by supplier
type SupplierSummary struct {
	SupplierID        string          `json:"supplier_id"`
	SupplierName      string          `json:"supplier_name"`
	ProductCount      int             `json:"product_count"`
	RequiredQuantity  float64         `json:"required_quantity"`
	SuggestedQuantity float64         `json:"suggested_quantity"`
	TotalCost         decimal.Decimal `json:"total_cost"`
	TotalInvestment   decimal.Decimal `json:"total_investment"`
	HighRiskCount     int             `json:"high_risk_count"`
}

// WarehouseSummary aggregates a batch by warehouse
type WarehouseSummary struct {
	WarehouseID       string          `json:"warehouse_id"`
	WarehouseName     string          `json:"warehouse_name"`
	ProductCount      int             `json:"product_count"`
	RequiredQuantity  float64         `json:"required_quantity"`
	SuggestedQuantity float64         `json:"suggested_quantity"`
	TotalCost         decimal.Decimal `json:"total_cost"`
	TotalInvestment   decimal.Decimal `json:"total_investment"`
	HighRiskCount     int             `json:"high_risk_count"`
}

// PurchaseBatchResult is the outcome of a batch run
type PurchaseBatchResult struct {
	BatchID         string                       `json:"batch_id"`
	Products        []PurchaseRequirementResult  `json:"products"`
	BySupplier      map[string]*SupplierSummary  `json:"by_supplier"`
	ByWarehouse     map[string]*WarehouseSummary `json:"by_warehouse"`
	Errors          []BatchError                 `json:"errors"`
	TotalProducts   int                          `json:"total_products"`
	CalculationTime time.Duration                `json:"calculation_time"`
	Config          PurchaseRequirementConfig    `json:"config"`
	Timestamp       time.Time                    `json:"timestamp"`
}

// Scenario is a named what-if batch configuration
type Scenario struct {
	Name    string                    `json:"name" validate:"required"`
	Filters ProductFilter             `json:"filters"`
	Config  PurchaseRequirementConfig `json:"config" validate:"-"`
}
