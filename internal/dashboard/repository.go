package dashboard

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// Repository runs the dashboard read queries.
type Repository interface {
	InvoicedTotal(ctx context.Context, orgID uuid.UUID, from, to time.Time) (decimal.Decimal, error)
	LowStock(ctx context.Context, orgID uuid.UUID) ([]LowStockItem, error)
	TopCustomers(ctx context.Context, orgID uuid.UUID, since time.Time, limit int) ([]CustomerTotal, error)
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs the Postgres repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

// InvoicedTotal sums ISSUED and PAID invoices issued within [from, to].
func (r *repository) InvoicedTotal(ctx context.Context, orgID uuid.UUID, from, to time.Time) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := r.pool.QueryRow(ctx, `
		SELECT COALESCE(SUM(grand_total), 0)
		FROM sales_invoices
		WHERE org_id = $1 AND status IN ('ISSUED', 'PAID')
		  AND issue_date BETWEEN $2 AND $3`, orgID, from, to).Scan(&total)
	return total, err
}

func (r *repository) LowStock(ctx context.Context, orgID uuid.UUID) ([]LowStockItem, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT p.id, p.sku, p.name,
		       COALESCE(SUM(CASE WHEN m.direction = 'IN' THEN m.quantity ELSE -m.quantity END), 0) AS qty,
		       p.restock_level
		FROM products p
		LEFT JOIN stock_movements m ON m.org_id = p.org_id AND m.product_id = p.id
		WHERE p.org_id = $1 AND p.is_active AND p.restock_level > 0
		GROUP BY p.id, p.sku, p.name, p.restock_level
		HAVING COALESCE(SUM(CASE WHEN m.direction = 'IN' THEN m.quantity ELSE -m.quantity END), 0) < p.restock_level
		ORDER BY qty ASC, p.sku ASC`, orgID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowToStructByPos[LowStockItem])
}

func (r *repository) TopCustomers(ctx context.Context, orgID uuid.UUID, since time.Time, limit int) ([]CustomerTotal, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT i.partner_id, p.name, SUM(i.grand_total) AS total
		FROM sales_invoices i
		JOIN partners p ON p.id = i.partner_id
		WHERE i.org_id = $1 AND i.status IN ('ISSUED', 'PAID') AND i.issue_date >= $2
		GROUP BY i.partner_id, p.name
		ORDER BY total DESC, p.name ASC
		LIMIT $3`, orgID, since, limit)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowToStructByPos[CustomerTotal])
}
