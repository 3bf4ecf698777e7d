package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/andresuchdata/autopo-replenish/internal/cache"
	"github.com/andresuchdata/autopo-replenish/internal/domain"
	"github.com/andresuchdata/autopo-replenish/internal/metrics"
	"github.com/andresuchdata/autopo-replenish/internal/repository/memory"
	"github.com/andresuchdata/autopo-replenish/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var today = time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC)

func clock() time.Time { return today.Add(8 * time.Hour) }

func newTestRouter(t *testing.T) (*gin.Engine, *metrics.Metrics) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	ctx := context.Background()

	store := memory.NewStore().WithClock(clock)
	_, err := store.UpsertProducts(ctx, []domain.Product{
		{SKU: "A", SupplierID: "S1", WarehouseID: "W1", CurrentStock: 400, PackSize: 1, LeadTimeDays: 7, UnitCost: decimal.NewFromInt(2), Active: true},
		{SKU: "B", SupplierID: "S1", WarehouseID: "W1", CurrentStock: 20, PackSize: 12, LeadTimeDays: 7, UnitCost: decimal.NewFromInt(3), Active: true},
		{SKU: "EMPTY", SupplierID: "S2", WarehouseID: "W1", CurrentStock: 5, Active: true},
	})
	require.NoError(t, err)
	for _, sku := range []string{"A", "B"} {
		sales := make([]domain.SalesRecord, 0, 90)
		for d := 0; d < 90; d++ {
			sales = append(sales, domain.SalesRecord{SKU: sku, Date: today.AddDate(0, 0, -d), UnitsSold: 10})
		}
		_, err := store.SaveSales(ctx, sales)
		require.NoError(t, err)
	}

	m := metrics.New()
	svc, err := service.NewReplenishmentService(store, cache.NewMemoryCoverageCache(), domain.DefaultStockCoverageConfig(),
		service.WithWriter(store),
		service.WithCoverageStore(store),
		service.WithMetrics(m),
		service.WithClock(clock),
	)
	require.NoError(t, err)

	return NewRouter(&Services{Replenishment: svc, Metrics: m}, []string{"*"}), m
}

func do(t *testing.T, r http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestHealth(t *testing.T) {
	r, _ := newTestRouter(t)
	rec := do(t, r, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestCoverageEndpoints(t *testing.T) {
	r, _ := newTestRouter(t)

	rec := do(t, r, http.MethodGet, "/api/v1/coverage/A", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	res := decode[domain.StockCoverageResult](t, rec)
	assert.Equal(t, "A", res.SKU)
	assert.InDelta(t, 40, res.CoverageDays, 1e-4)

	rec = do(t, r, http.MethodGet, "/api/v1/coverage/A/latest", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	latest := decode[struct {
		Result domain.StockCoverageResult `json:"result"`
		Stale  bool                       `json:"stale"`
	}](t, rec)
	assert.Equal(t, "A", latest.Result.SKU)

	t.Run("errors", func(t *testing.T) {
		tests := []struct {
			path string
			code int
			err  string
		}{
			{"/api/v1/coverage/NOPE", http.StatusNotFound, domain.CodeInsufficientData},
			{"/api/v1/coverage/EMPTY", http.StatusUnprocessableEntity, domain.CodeInsufficientData},
			{"/api/v1/coverage/A?use_cache=maybe", http.StatusBadRequest, domain.CodeInvalidConfiguration},
			{"/api/v1/coverage/B/latest", http.StatusNotFound, "NOT_FOUND"},
		}
		for _, tt := range tests {
			rec := do(t, r, http.MethodGet, tt.path, nil)
			assert.Equal(t, tt.code, rec.Code, tt.path)
			body := decode[map[string]any](t, rec)
			assert.Equal(t, tt.err, body["code"], tt.path)
		}
	})

	rec = do(t, r, http.MethodDelete, "/api/v1/coverage/cache", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"invalidated":1}`, rec.Body.String())
}

func TestPurchaseRequirement(t *testing.T) {
	r, _ := newTestRouter(t)

	rec := do(t, r, http.MethodPost, "/api/v1/purchase/B", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	res := decode[domain.PurchaseRequirementResult](t, rec)
	assert.Equal(t, domain.MethodRapid, res.Method)
	assert.Equal(t, 30, res.CoverageDays)
	assert.Equal(t, 360.0, res.SuggestedQuantity)

	rec = do(t, r, http.MethodPost, "/api/v1/purchase/B", map[string]any{"method": "TIME_PHASED", "coverage_days": 14})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	res = decode[domain.PurchaseRequirementResult](t, rec)
	assert.Equal(t, domain.MethodTimePhased, res.Method)
	assert.Equal(t, 14, res.CoverageDays)
	assert.NotEmpty(t, res.Projection)

	rec = do(t, r, http.MethodPost, "/api/v1/purchase/B", map[string]any{"method": "WEEKLY"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, r, http.MethodPost, "/api/v1/purchase/B", map[string]any{"coverage_days": 0})
	assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), domain.CodeInvalidConfiguration)

	rec = do(t, r, http.MethodPost, "/api/v1/purchase/batch", map[string]any{"config": map[string]any{"lead_time_days": 0}})
	assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/purchase/B", bytes.NewBufferString("{"))
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPurchaseBatch(t *testing.T) {
	r, _ := newTestRouter(t)

	rec := do(t, r, http.MethodPost, "/api/v1/purchase/batch", map[string]any{
		"filters":         map[string]any{"supplier_ids": []string{"S1", "S2"}},
		"timeout_seconds": 10,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	batch := decode[domain.PurchaseBatchResult](t, rec)
	assert.Equal(t, 3, batch.TotalProducts)
	assert.Len(t, batch.Products, 2)
	require.Len(t, batch.Errors, 1)
	assert.Equal(t, "EMPTY", batch.Errors[0].SKU)
	assert.Equal(t, 10*time.Second, batch.Config.Timeout)

	metricsRec := do(t, r, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, metricsRec.Code)
	assert.Contains(t, metricsRec.Body.String(), `path="/api/v1/purchase/batch"`)
}

func TestPurchaseScenarios(t *testing.T) {
	r, _ := newTestRouter(t)

	rec := do(t, r, http.MethodPost, "/api/v1/purchase/scenarios", map[string]any{
		"scenarios": []map[string]any{
			{"name": "rapid"},
			{"name": "phased", "config": map[string]any{"method": "TIME_PHASED"}, "filters": map[string]any{"skus": []string{"B"}}},
		},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	out := decode[map[string]domain.PurchaseBatchResult](t, rec)
	require.Len(t, out, 2)
	assert.Equal(t, 3, out["rapid"].TotalProducts)
	assert.Equal(t, 1, out["phased"].TotalProducts)
	assert.Equal(t, domain.MethodTimePhased, out["phased"].Config.Method)

	rec = do(t, r, http.MethodPost, "/api/v1/purchase/scenarios", map[string]any{"scenarios": []any{}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, r, http.MethodPost, "/api/v1/purchase/scenarios", map[string]any{
		"scenarios": []map[string]any{{"name": "x"}, {"name": "x"}},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHistoryEndpoints(t *testing.T) {
	r, _ := newTestRouter(t)

	rec := do(t, r, http.MethodGet, "/api/v1/coverage/A", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, r, http.MethodPost, "/api/v1/history/A/sales", []map[string]any{
		{"date": "2024-03-30", "units_sold": 10},
		{"date": "2024-03-31T09:00:00Z", "units_sold": 10},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"sku":"A","recorded":2}`, rec.Body.String())

	rec = do(t, r, http.MethodPost, "/api/v1/history/A/availability", []map[string]any{
		{"date": "2024-03-31", "availability_minutes": 1440},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = do(t, r, http.MethodPost, "/api/v1/history/A/sales", []map[string]any{{"date": "31/03/2024", "units_sold": 1}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, r, http.MethodPost, "/api/v1/history/A/sales", []map[string]any{{"date": "2024-03-31", "units_sold": -1}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// the cache entry was dropped by the writes above
	rec = do(t, r, http.MethodDelete, "/api/v1/coverage/cache?sku=A", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = do(t, r, http.MethodDelete, "/api/v1/coverage/cache", nil)
	assert.JSONEq(t, `{"invalidated":0}`, rec.Body.String())
}

func TestNormalizeAllowedOrigins(t *testing.T) {
	origins, all := normalizeAllowedOrigins([]string{"https://a.example, https://b.example", " "})
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, origins)
	assert.False(t, all)

	_, all = normalizeAllowedOrigins([]string{"*"})
	assert.True(t, all)
}
