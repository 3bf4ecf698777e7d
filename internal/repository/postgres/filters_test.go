package postgres

import (
	"testing"

	"github.com/andresuchdata/autopo-replenish/internal/domain"
	"github.com/stretchr/testify/assert"
)

func TestBuildProductFilterClause(t *testing.T) {
	t.Run("defaults to active products", func(t *testing.T) {
		clause, args := buildProductFilterClause(domain.ProductFilter{}, "p", 1)
		assert.Equal(t, " AND p.active", clause)
		assert.Empty(t, args)
	})

	t.Run("no clauses", func(t *testing.T) {
		clause, args := buildProductFilterClause(domain.ProductFilter{IncludeInactive: true}, "", 1)
		assert.Empty(t, clause)
		assert.Nil(t, args)
	})

	t.Run("numbers placeholders from the start index", func(t *testing.T) {
		filter := domain.ProductFilter{
			SKUs:         []string{" A ", "B", "A", ""},
			SupplierIDs:  []string{"SUP-1"},
			WarehouseIDs: []string{"WH-1", "WH-2"},
			BrandNames:   []string{"Acme"},
		}
		clause, args := buildProductFilterClause(filter, "p.", 3)

		assert.Equal(t,
			" AND p.active AND p.sku IN ($3,$4) AND p.supplier_id IN ($5) AND p.warehouse_id IN ($6,$7) AND p.brand_name IN ($8)",
			clause)
		assert.Equal(t, []interface{}{"A", "B", "SUP-1", "WH-1", "WH-2", "Acme"}, args)
	})
}

func TestNormalizeAlias(t *testing.T) {
	assert.Equal(t, "", normalizeAlias(""))
	assert.Equal(t, "p.", normalizeAlias("p"))
	assert.Equal(t, "p.", normalizeAlias("p."))
}
