package ingest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/andresuchdata/autopo-replenish/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	calls        []string
	sales        []domain.SalesRecord
	availability []domain.AvailabilityRecord
	orders       []domain.OpenPurchaseOrder
	products     []domain.Product
}

func (r *recorder) RecordSales(_ context.Context, recs []domain.SalesRecord) (int, error) {
	r.calls = append(r.calls, "sales")
	r.sales = append(r.sales, recs...)
	return len(recs), nil
}

func (r *recorder) RecordAvailability(_ context.Context, recs []domain.AvailabilityRecord) (int, error) {
	r.calls = append(r.calls, "availability")
	r.availability = append(r.availability, recs...)
	return len(recs), nil
}

func (r *recorder) RecordOpenOrders(_ context.Context, recs []domain.OpenPurchaseOrder) (int, error) {
	r.calls = append(r.calls, "orders")
	r.orders = append(r.orders, recs...)
	return len(recs), nil
}

func (r *recorder) RecordProducts(_ context.Context, recs []domain.Product) (int, error) {
	r.calls = append(r.calls, "products")
	r.products = append(r.products, recs...)
	return len(recs), nil
}

func TestDetectKind(t *testing.T) {
	tests := []struct {
		path string
		want Kind
		err  bool
	}{
		{path: "data/sales/2024-03.csv", want: KindSales},
		{path: "sales_2024-03.csv", want: KindSales},
		{path: "exports/availability.csv", want: KindAvailability},
		{path: "purchase_orders/open.csv", want: KindOrders},
		{path: "po_open.csv", want: KindOrders},
		{path: "products.csv", want: KindProducts},
		{path: "inventory.csv", err: true},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got, err := DetectKind(tt.path)
			if tt.err {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestImport_Sales(t *testing.T) {
	csv := `sku,date,units_sold,price,revenue,promotion_flag
A, 2024-03-01,4,2.5,,true
A,20240302,3,,,false
B,2024-03-01T10:00:00Z,1,10,10,0
`
	rec := &recorder{}
	res, err := NewImporter(rec).Import(context.Background(), KindSales, strings.NewReader(csv))
	require.NoError(t, err)
	assert.Equal(t, 3, res.Rows)
	assert.Equal(t, 3, res.Written)

	require.Len(t, rec.sales, 3)
	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), rec.sales[0].Date)
	assert.Equal(t, 10.0, rec.sales[0].Revenue)
	assert.True(t, rec.sales[0].PromotionFlag)
	assert.Equal(t, time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC), rec.sales[1].Date)
	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), rec.sales[2].Date)
}

func TestImport_BadDateReportsLine(t *testing.T) {
	csv := "sku,date,units_sold\nA,2024-03-01,1\nA,yesterday,2\n"
	_, err := NewImporter(&recorder{}).Import(context.Background(), KindSales, strings.NewReader(csv))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 3")
}

func TestImport_OrdersAndProducts(t *testing.T) {
	rec := &recorder{}
	im := NewImporter(rec)

	orders := "po_number,sku,quantity,received_quantity,eta,supplier,status\nPO-1,A,100,40,2024-04-05,Acme,Sent\nPO-2,A,50,0,,Acme,Approved\n"
	_, err := im.Import(context.Background(), KindOrders, strings.NewReader(orders))
	require.NoError(t, err)
	require.Len(t, rec.orders, 2)
	assert.Equal(t, 60.0, rec.orders[0].PendingQuantity)
	require.NotNil(t, rec.orders[0].ETA)
	assert.Nil(t, rec.orders[1].ETA)

	products := "sku,name,supplier_id,warehouse_id,current_stock,pack_size,lead_time_days,unit_cost,active\nA,Widget,S1,W1,40,6,7,2.50,\nB,Gadget,S1,W1,0,1,5,,false\n"
	_, err = im.Import(context.Background(), KindProducts, strings.NewReader(products))
	require.NoError(t, err)
	require.Len(t, rec.products, 2)
	assert.True(t, rec.products[0].UnitCost.Equal(decimal.RequireFromString("2.5")))
	assert.True(t, rec.products[0].Active)
	assert.False(t, rec.products[1].Active)
	assert.True(t, rec.products[1].UnitCost.IsZero())
}

func TestImport_Chunking(t *testing.T) {
	var b strings.Builder
	b.WriteString("sku,date,availability_minutes,stockout_events\n")
	for i := 1; i <= 25; i++ {
		fmt.Fprintf(&b, "A,2024-01-%02d,1440,0\n", i)
	}

	rec := &recorder{}
	im := NewImporter(rec)
	im.chunkSize = 10
	res, err := im.Import(context.Background(), KindAvailability, strings.NewReader(b.String()))
	require.NoError(t, err)
	assert.Equal(t, 25, res.Written)
	assert.Equal(t, []string{"availability", "availability", "availability"}, rec.calls)
}

func TestImportFiles_ProductsFirst(t *testing.T) {
	dir := t.TempDir()
	write := func(name, body string) string {
		p := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
		return p
	}
	sales := write("sales.csv", "sku,date,units_sold\nA,2024-03-01,1\n")
	products := write("products.csv", "sku,name\nA,Widget\n")

	rec := &recorder{}
	results, err := NewImporter(rec).ImportFiles(context.Background(), []string{sales, products})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, []string{"products", "sales"}, rec.calls)
	assert.Equal(t, products, results[0].File)
}
