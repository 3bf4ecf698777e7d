package postgres

import (
	"fmt"
	"strings"

	"github.com/andresuchdata/autopo-replenish/internal/domain"
)

// buildProductFilterClause constructs the WHERE fragment selecting a batch's
// products. Placeholders are numbered from startIndex.
func buildProductFilterClause(filter domain.ProductFilter, alias string, startIndex int) (string, []interface{}) {
	alias = normalizeAlias(alias)

	var (
		clauses []string
		args    []interface{}
	)
	idx := startIndex

	if !filter.IncludeInactive {
		clauses = append(clauses, fmt.Sprintf("%sactive", alias))
	}

	appendIn := func(column string, values []string) {
		values = cleanValues(values)
		if len(values) == 0 {
			return
		}
		placeholders := make([]string, len(values))
		for i, v := range values {
			placeholders[i] = fmt.Sprintf("$%d", idx)
			args = append(args, v)
			idx++
		}
		clauses = append(clauses, fmt.Sprintf("%s%s IN (%s)", alias, column, strings.Join(placeholders, ",")))
	}

	appendIn("sku", filter.SKUs)
	appendIn("supplier_id", filter.SupplierIDs)
	appendIn("warehouse_id", filter.WarehouseIDs)
	appendIn("brand_name", filter.BrandNames)

	if len(clauses) == 0 {
		return "", nil
	}

	return " AND " + strings.Join(clauses, " AND "), args
}

func normalizeAlias(alias string) string {
	if alias == "" {
		return ""
	}
	if !strings.HasSuffix(alias, ".") {
		return alias + "."
	}
	return alias
}

func cleanValues(values []string) []string {
	out := make([]string, 0, len(values))
	seen := make(map[string]struct{}, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
