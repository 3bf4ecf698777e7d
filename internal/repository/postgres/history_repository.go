package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/andresuchdata/autopo-replenish/internal/domain"
	"github.com/andresuchdata/autopo-replenish/internal/repository"
	"github.com/jmoiron/sqlx"
)

const productColumns = `
	p.id, p.sku, p.name, p.brand_name, p.supplier_id, p.supplier_name,
	p.warehouse_id, p.warehouse_name, p.current_stock, p.allocated_stock,
	p.pack_size, p.lead_time_days, p.unit_cost, p.active, p.updated_at`

type historyRepository struct {
	db *DB
}

var _ repository.HistoryRepository = (*historyRepository)(nil)
var _ repository.HistoryWriter = (*historyRepository)(nil)

func NewHistoryRepository(db *DB) *historyRepository {
	return &historyRepository{db: db}
}

func (r *historyRepository) GetHistory(ctx context.Context, sku string, days int) (*domain.History, error) {
	release, err := r.db.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	salesQuery := `
		SELECT sku, sale_date, units_sold, price, revenue, promotion_flag
		FROM sales_history
		WHERE sku = $1 AND sale_date > CURRENT_DATE - $2::int
		ORDER BY sale_date
	`
	history := &domain.History{}
	if err := sqlx.SelectContext(ctx, r.db, &history.Sales, salesQuery, sku, days); err != nil {
		return nil, fmt.Errorf("failed to get sales history: %w", err)
	}

	availabilityQuery := `
		SELECT sku, stock_date, availability_minutes, stockout_events
		FROM availability_history
		WHERE sku = $1 AND stock_date > CURRENT_DATE - $2::int
		ORDER BY stock_date
	`
	if err := sqlx.SelectContext(ctx, r.db, &history.Availability, availabilityQuery, sku, days); err != nil {
		return nil, fmt.Errorf("failed to get availability history: %w", err)
	}

	return history, nil
}

func (r *historyRepository) GetOpenOrders(ctx context.Context, sku string) ([]domain.OpenPurchaseOrder, error) {
	query := `
		SELECT po_number, sku, quantity, received_quantity, eta, supplier_name, status
		FROM purchase_orders
		WHERE sku = $1 AND quantity > received_quantity
		ORDER BY eta NULLS LAST, po_number
	`

	var rows []domain.OpenPurchaseOrder
	if err := sqlx.SelectContext(ctx, r.db, &rows, query, sku); err != nil {
		return nil, fmt.Errorf("failed to get open orders: %w", err)
	}

	orders := rows[:0]
	for _, o := range rows {
		if domain.IsOpenPOStatus(o.Status) {
			orders = append(orders, o.Normalize())
		}
	}
	return orders, nil
}

func (r *historyRepository) GetProductsByFilter(ctx context.Context, filter domain.ProductFilter) ([]domain.Product, error) {
	clause, args := buildProductFilterClause(filter, "p", 1)
	query := `SELECT ` + productColumns + `
		FROM products p
		WHERE 1=1` + clause + `
		ORDER BY p.sku`

	var products []domain.Product
	if err := sqlx.SelectContext(ctx, r.db, &products, query, args...); err != nil {
		return nil, fmt.Errorf("failed to get products: %w", err)
	}
	return products, nil
}

func (r *historyRepository) GetProduct(ctx context.Context, sku string) (*domain.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products p WHERE p.sku = $1`

	var p domain.Product
	if err := r.db.GetContext(ctx, &p, query, sku); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get product %s: %w", sku, err)
	}
	return &p, nil
}

func (r *historyRepository) UpsertProducts(ctx context.Context, products []domain.Product) (int, error) {
	query := `
		INSERT INTO products (
			sku, name, brand_name, supplier_id, supplier_name, warehouse_id, warehouse_name,
			current_stock, allocated_stock, pack_size, lead_time_days, unit_cost, active, updated_at
		) VALUES (
			:sku, :name, :brand_name, :supplier_id, :supplier_name, :warehouse_id, :warehouse_name,
			:current_stock, :allocated_stock, :pack_size, :lead_time_days, :unit_cost, :active, NOW()
		)
		ON CONFLICT (sku) DO UPDATE SET
			name = EXCLUDED.name,
			brand_name = EXCLUDED.brand_name,
			supplier_id = EXCLUDED.supplier_id,
			supplier_name = EXCLUDED.supplier_name,
			warehouse_id = EXCLUDED.warehouse_id,
			warehouse_name = EXCLUDED.warehouse_name,
			current_stock = EXCLUDED.current_stock,
			allocated_stock = EXCLUDED.allocated_stock,
			pack_size = EXCLUDED.pack_size,
			lead_time_days = EXCLUDED.lead_time_days,
			unit_cost = EXCLUDED.unit_cost,
			active = EXCLUDED.active,
			updated_at = NOW()
	`
	return namedBatch(ctx, r.db, query, products)
}

func (r *historyRepository) SaveSales(ctx context.Context, records []domain.SalesRecord) (int, error) {
	query := `
		INSERT INTO sales_history (sku, sale_date, units_sold, price, revenue, promotion_flag)
		VALUES (:sku, :sale_date, :units_sold, :price, :revenue, :promotion_flag)
		ON CONFLICT (sku, sale_date) DO UPDATE SET
			units_sold = EXCLUDED.units_sold,
			price = EXCLUDED.price,
			revenue = EXCLUDED.revenue,
			promotion_flag = EXCLUDED.promotion_flag
	`
	return namedBatch(ctx, r.db, query, records)
}

func (r *historyRepository) SaveAvailability(ctx context.Context, records []domain.AvailabilityRecord) (int, error) {
	query := `
		INSERT INTO availability_history (sku, stock_date, availability_minutes, stockout_events)
		VALUES (:sku, :stock_date, :availability_minutes, :stockout_events)
		ON CONFLICT (sku, stock_date) DO UPDATE SET
			availability_minutes = EXCLUDED.availability_minutes,
			stockout_events = EXCLUDED.stockout_events
	`
	return namedBatch(ctx, r.db, query, records)
}

func (r *historyRepository) SaveOpenOrders(ctx context.Context, orders []domain.OpenPurchaseOrder) (int, error) {
	query := `
		INSERT INTO purchase_orders (po_number, sku, quantity, received_quantity, eta, supplier_name, status)
		VALUES (:po_number, :sku, :quantity, :received_quantity, :eta, :supplier_name, :status)
		ON CONFLICT (po_number, sku) DO UPDATE SET
			quantity = EXCLUDED.quantity,
			received_quantity = EXCLUDED.received_quantity,
			eta = EXCLUDED.eta,
			supplier_name = EXCLUDED.supplier_name,
			status = EXCLUDED.status
	`
	return namedBatch(ctx, r.db, query, orders)
}

// namedBatch runs one named statement per row inside a single transaction
func namedBatch[T any](ctx context.Context, db *DB, query string, rows []T) (int, error) {
	if len(rows) == 0 {
		return 0, nil
	}

	written := 0
	err := db.WithTx(ctx, func(tx *sqlx.Tx) error {
		stmt, err := tx.PrepareNamedContext(ctx, query)
		if err != nil {
			return fmt.Errorf("failed to prepare statement: %w", err)
		}
		defer stmt.Close()

		for i := range rows {
			if _, err := stmt.ExecContext(ctx, rows[i]); err != nil {
				return fmt.Errorf("failed to write row %d: %w", i, err)
			}
			written++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return written, nil
}
