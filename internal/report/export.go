package report

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/andresuchdata/autopo-replenish/internal/domain"
	"github.com/andresuchdata/autopo-replenish/internal/storage"
	"github.com/gocarina/gocsv"
	"github.com/rs/zerolog/log"
)

const contentTypeCSV = "text/csv"

// LineRow is one purchase recommendation in the batch export
type LineRow struct {
	SKU                 string  `csv:"sku"`
	ProductName         string  `csv:"product_name"`
	SupplierID          string  `csv:"supplier_id"`
	SupplierName        string  `csv:"supplier_name"`
	WarehouseID         string  `csv:"warehouse_id"`
	Method              string  `csv:"method"`
	InventoryPosition   float64 `csv:"inventory_position"`
	AdjustedDailyDemand float64 `csv:"adjusted_daily_demand"`
	CurrentCoverageDays float64 `csv:"current_coverage_days"`
	SuggestedQuantity   float64 `csv:"suggested_quantity"`
	PackSize            int     `csv:"pack_size"`
	SuggestedOrderDate  string  `csv:"suggested_order_date"`
	StockoutDate        string  `csv:"stockout_date"`
	StockoutRisk        string  `csv:"stockout_risk"`
	Confidence          float64 `csv:"confidence"`
	UnitCost            string  `csv:"unit_cost"`
	EstimatedCost       string  `csv:"estimated_cost"`
	Alerts              string  `csv:"alerts"`
}

// SupplierRow is one supplier total in the batch export
type SupplierRow struct {
	SupplierID        string  `csv:"supplier_id"`
	SupplierName      string  `csv:"supplier_name"`
	ProductCount      int     `csv:"product_count"`
	SuggestedQuantity float64 `csv:"suggested_quantity"`
	TotalCost         string  `csv:"total_cost"`
	HighRiskCount     int     `csv:"high_risk_count"`
}

func lineRows(batch *domain.PurchaseBatchResult) []*LineRow {
	rows := make([]*LineRow, 0, len(batch.Products))
	for _, r := range batch.Products {
		codes := make([]string, 0, len(r.Alerts))
		for _, a := range r.Alerts {
			codes = append(codes, a.Code)
		}
		row := &LineRow{
			SKU:                 r.SKU,
			ProductName:         r.ProductName,
			SupplierID:          r.SupplierID,
			SupplierName:        r.SupplierName,
			WarehouseID:         r.WarehouseID,
			Method:              string(r.Method),
			InventoryPosition:   r.InventoryPosition,
			AdjustedDailyDemand: r.AdjustedDailyDemand,
			CurrentCoverageDays: r.CurrentCoverageDays,
			SuggestedQuantity:   r.SuggestedQuantity,
			PackSize:            r.PackSize,
			SuggestedOrderDate:  r.SuggestedOrderDate.Format("2006-01-02"),
			StockoutRisk:        string(r.StockoutRisk),
			Confidence:          r.Confidence,
			UnitCost:            r.UnitCost.StringFixed(2),
			EstimatedCost:       r.EstimatedCost.StringFixed(2),
			Alerts:              strings.Join(codes, "|"),
		}
		if r.StockoutDate != nil {
			row.StockoutDate = r.StockoutDate.Format("2006-01-02")
		}
		rows = append(rows, row)
	}
	return rows
}

func supplierRows(batch *domain.PurchaseBatchResult) []*SupplierRow {
	rows := make([]*SupplierRow, 0, len(batch.BySupplier))
	for _, s := range batch.BySupplier {
		rows = append(rows, &SupplierRow{
			SupplierID:        s.SupplierID,
			SupplierName:      s.SupplierName,
			ProductCount:      s.ProductCount,
			SuggestedQuantity: s.SuggestedQuantity,
			TotalCost:         s.TotalCost.StringFixed(2),
			HighRiskCount:     s.HighRiskCount,
		})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].SupplierID < rows[j].SupplierID })
	return rows
}

// LinesCSV renders the per-SKU recommendations
func LinesCSV(batch *domain.PurchaseBatchResult) ([]byte, error) {
	return gocsv.MarshalBytes(lineRows(batch))
}

// SuppliersCSV renders the supplier totals
func SuppliersCSV(batch *domain.PurchaseBatchResult) ([]byte, error) {
	return gocsv.MarshalBytes(supplierRows(batch))
}

// Exporter writes batch reports to object storage
type Exporter struct {
	store  storage.ObjectStorage
	prefix string
}

func NewExporter(store storage.ObjectStorage, prefix string) *Exporter {
	if prefix == "" {
		prefix = "batches"
	}
	return &Exporter{store: store, prefix: prefix}
}

// Export uploads the lines and supplier CSVs of a batch and returns their keys.
// Keys look like batches/2024-03-31/<batch id>/lines.csv.
func (e *Exporter) Export(ctx context.Context, batch *domain.PurchaseBatchResult) ([]string, error) {
	base := storage.JoinKey(e.prefix, batch.Timestamp.Format("2006-01-02"), batch.BatchID)

	files := []struct {
		name   string
		render func(*domain.PurchaseBatchResult) ([]byte, error)
	}{
		{"lines.csv", LinesCSV},
		{"suppliers.csv", SuppliersCSV},
	}

	keys := make([]string, 0, len(files))
	for _, f := range files {
		data, err := f.render(batch)
		if err != nil {
			return keys, fmt.Errorf("render %s: %w", f.name, err)
		}
		key := storage.JoinKey(base, f.name)
		if err := e.store.UploadObject(ctx, key, data, contentTypeCSV); err != nil {
			return keys, err
		}
		keys = append(keys, key)
	}

	log.Info().Str("batch_id", batch.BatchID).Strs("keys", keys).Msg("report: batch exported")
	return keys, nil
}
