package ingest

import (
	"fmt"
	"strings"
	"time"

	"github.com/andresuchdata/autopo-replenish/internal/domain"
	"github.com/shopspring/decimal"
)

// dateLayouts are tried in order for every date column
var dateLayouts = []string{time.DateOnly, "20060102", "02/01/2006", time.RFC3339}

func parseDate(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return domain.DateOnly(t), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised date %q", value)
}

type salesRow struct {
	SKU       string  `csv:"sku"`
	Date      string  `csv:"date"`
	UnitsSold float64 `csv:"units_sold"`
	Price     float64 `csv:"price"`
	Revenue   float64 `csv:"revenue"`
	Promotion bool    `csv:"promotion_flag"`
}

func (r salesRow) toDomain() (domain.SalesRecord, error) {
	date, err := parseDate(r.Date)
	if err != nil {
		return domain.SalesRecord{}, err
	}
	revenue := r.Revenue
	if revenue == 0 && r.Price > 0 {
		revenue = r.Price * r.UnitsSold
	}
	return domain.SalesRecord{
		SKU:           strings.TrimSpace(r.SKU),
		Date:          date,
		UnitsSold:     r.UnitsSold,
		Price:         r.Price,
		Revenue:       revenue,
		PromotionFlag: r.Promotion,
	}, nil
}

type availabilityRow struct {
	SKU                 string  `csv:"sku"`
	Date                string  `csv:"date"`
	AvailabilityMinutes float64 `csv:"availability_minutes"`
	StockoutEvents      int     `csv:"stockout_events"`
}

func (r availabilityRow) toDomain() (domain.AvailabilityRecord, error) {
	date, err := parseDate(r.Date)
	if err != nil {
		return domain.AvailabilityRecord{}, err
	}
	return domain.AvailabilityRecord{
		SKU:                 strings.TrimSpace(r.SKU),
		Date:                date,
		AvailabilityMinutes: r.AvailabilityMinutes,
		StockoutEvents:      r.StockoutEvents,
	}, nil
}

type orderRow struct {
	PONumber         string  `csv:"po_number"`
	SKU              string  `csv:"sku"`
	Quantity         float64 `csv:"quantity"`
	ReceivedQuantity float64 `csv:"received_quantity"`
	ETA              string  `csv:"eta"`
	Supplier         string  `csv:"supplier"`
	Status           string  `csv:"status"`
}

func (r orderRow) toDomain() (domain.OpenPurchaseOrder, error) {
	o := domain.OpenPurchaseOrder{
		PONumber:         strings.TrimSpace(r.PONumber),
		SKU:              strings.TrimSpace(r.SKU),
		Quantity:         r.Quantity,
		ReceivedQuantity: r.ReceivedQuantity,
		Supplier:         strings.TrimSpace(r.Supplier),
		Status:           strings.TrimSpace(r.Status),
	}
	if strings.TrimSpace(r.ETA) != "" {
		eta, err := parseDate(r.ETA)
		if err != nil {
			return o, err
		}
		o.ETA = &eta
	}
	return o.Normalize(), nil
}

type productRow struct {
	SKU            string  `csv:"sku"`
	Name           string  `csv:"name"`
	BrandName      string  `csv:"brand_name"`
	SupplierID     string  `csv:"supplier_id"`
	SupplierName   string  `csv:"supplier_name"`
	WarehouseID    string  `csv:"warehouse_id"`
	WarehouseName  string  `csv:"warehouse_name"`
	CurrentStock   float64 `csv:"current_stock"`
	AllocatedStock float64 `csv:"allocated_stock"`
	PackSize       int     `csv:"pack_size"`
	LeadTimeDays   int     `csv:"lead_time_days"`
	UnitCost       string  `csv:"unit_cost"`
	Active         string  `csv:"active"`
}

func (r productRow) toDomain() (domain.Product, error) {
	cost := decimal.Zero
	if v := strings.TrimSpace(r.UnitCost); v != "" {
		var err error
		if cost, err = decimal.NewFromString(v); err != nil {
			return domain.Product{}, fmt.Errorf("unit_cost: %w", err)
		}
	}
	return domain.Product{
		SKU:            strings.TrimSpace(r.SKU),
		Name:           strings.TrimSpace(r.Name),
		BrandName:      strings.TrimSpace(r.BrandName),
		SupplierID:     strings.TrimSpace(r.SupplierID),
		SupplierName:   strings.TrimSpace(r.SupplierName),
		WarehouseID:    strings.TrimSpace(r.WarehouseID),
		WarehouseName:  strings.TrimSpace(r.WarehouseName),
		CurrentStock:   r.CurrentStock,
		AllocatedStock: r.AllocatedStock,
		PackSize:       r.PackSize,
		LeadTimeDays:   r.LeadTimeDays,
		UnitCost:       cost,
		Active:         parseActive(r.Active),
	}, nil
}

// parseActive treats a missing column as active
func parseActive(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "0", "false", "f", "no", "n", "inactive":
		return false
	}
	return true
}
