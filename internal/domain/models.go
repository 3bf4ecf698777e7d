package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product represents a stocked SKU together with its current inventory position
type Product struct {
	ID             int64           `json:"id" db:"id"`
	SKU            string          `json:"sku" db:"sku"`
	Name           string          `json:"name" db:"name"`
	BrandName      string          `json:"brand_name" db:"brand_name"`
	SupplierID     string          `json:"supplier_id" db:"supplier_id"`
	SupplierName   string          `json:"supplier_name" db:"supplier_name"`
	WarehouseID    string          `json:"warehouse_id" db:"warehouse_id"`
	WarehouseName  string          `json:"warehouse_name" db:"warehouse_name"`
	CurrentStock   float64         `json:"current_stock" db:"current_stock"`
	AllocatedStock float64         `json:"allocated_stock" db:"allocated_stock"`
	PackSize       int             `json:"pack_size" db:"pack_size"`
	LeadTimeDays   int             `json:"lead_time_days" db:"lead_time_days"`
	UnitCost       decimal.Decimal `json:"unit_cost" db:"unit_cost"`
	Active         bool            `json:"active" db:"active"`
	UpdatedAt      time.Time       `json:"updated_at" db:"updated_at"`
}

// AvailableStock is the on-hand quantity not already promised to customers.
func (p Product) AvailableStock() float64 {
	return p.CurrentStock - p.AllocatedStock
}

// SalesRecord is a single SKU-day of sales
type SalesRecord struct {
	SKU           string    `json:"sku" db:"sku"`
	Date          time.Time `json:"date" db:"sale_date"`
	UnitsSold     float64   `json:"units_sold" db:"units_sold"`
	Price         float64   `json:"price" db:"price"`
	Revenue       float64   `json:"revenue" db:"revenue"`
	PromotionFlag bool      `json:"promotion_flag" db:"promotion_flag"`
}

// AvailabilityRecord is a single SKU-day of shelf availability
type AvailabilityRecord struct {
	SKU                 string    `json:"sku" db:"sku"`
	Date                time.Time `json:"date" db:"stock_date"`
	AvailabilityMinutes float64   `json:"availability_minutes" db:"availability_minutes"`
	StockoutEvents      int       `json:"stockout_events" db:"stockout_events"`
}

// History is the raw input of a coverage calculation for one SKU
type History struct {
	Sales        []SalesRecord        `json:"sales"`
	Availability []AvailabilityRecord `json:"availability"`
}

// RawHistoryRecord merges the sales and availability facts of one SKU-day
type RawHistoryRecord struct {
	Date                time.Time
	UnitsSold           float64
	Price               float64
	Revenue             float64
	PromotionFlag       bool
	AvailabilityMinutes float64
	StockoutEvents      int
	HasSales            bool
	HasAvailability     bool
}

// OpenPurchaseOrder is a purchase order line that has not been fully received
type OpenPurchaseOrder struct {
	PONumber         string     `json:"po_number" db:"po_number"`
	SKU              string     `json:"sku" db:"sku"`
	Quantity         float64    `json:"quantity" db:"quantity"`
	ReceivedQuantity float64    `json:"received_quantity" db:"received_quantity"`
	PendingQuantity  float64    `json:"pending_quantity" db:"-"`
	ETA              *time.Time `json:"eta,omitempty" db:"eta"`
	Supplier         string     `json:"supplier" db:"supplier_name"`
	Status           string     `json:"status" db:"status"`
}

// Pending returns the outstanding quantity, never negative.
func (o OpenPurchaseOrder) Pending() float64 {
	pending := o.Quantity - o.ReceivedQuantity
	if pending < 0 {
		return 0
	}
	return pending
}

// Normalize fills PendingQuantity from Quantity and ReceivedQuantity
func (o OpenPurchaseOrder) Normalize() OpenPurchaseOrder {
	o.PendingQuantity = o.Pending()
	return o
}

// ProductFilter selects the SKU universe of a batch
type ProductFilter struct {
	SKUs            []string `json:"skus,omitempty"`
	SupplierIDs     []string `json:"supplier_ids,omitempty"`
	WarehouseIDs    []string `json:"warehouse_ids,omitempty"`
	BrandNames      []string `json:"brand_names,omitempty"`
	IncludeInactive bool     `json:"include_inactive,omitempty"`
}
