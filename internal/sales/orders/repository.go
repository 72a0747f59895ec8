package orders

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/odyssey-ledger/internal/platform/db"
	sales "github.com/odyssey-erp/odyssey-ledger/internal/sales/shared"
	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// Repository persists sales orders and their items.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, Repository) error) error
	NextNumber(ctx context.Context, date time.Time) (string, error)
	Insert(ctx context.Context, o *SalesOrder) error
	Get(ctx context.Context, orgID, id uuid.UUID) (SalesOrder, error)
	GetForUpdate(ctx context.Context, orgID, id uuid.UUID) (SalesOrder, error)
	Update(ctx context.Context, o SalesOrder, replaceItems bool) error
	UpdateStatus(ctx context.Context, id uuid.UUID, status Status) error
	List(ctx context.Context, orgID uuid.UUID, filter ListFilter, page shared.Page) ([]SalesOrder, int, error)
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs the Postgres repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, Repository) error) error {
	return db.InTx(ctx, r.pool, func(ctx context.Context) error {
		return fn(ctx, r)
	})
}

func (r *repository) conn(ctx context.Context) db.DBTX {
	return db.Conn(ctx, r.pool)
}

func (r *repository) NextNumber(ctx context.Context, date time.Time) (string, error) {
	return sales.NextNumber(ctx, r.conn(ctx), sales.PrefixOrder, date)
}

func (r *repository) Insert(ctx context.Context, o *SalesOrder) error {
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO sales_orders (org_id, number, partner_id, quote_id, currency, status, order_date, notes,
		                          discount_rate, subtotal, tax_total, grand_total)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NULLIF($8, ''), $9, $10, $11, $12)
		RETURNING id, created_at`,
		o.OrgID, o.Number, o.PartnerID, o.QuoteID, o.Currency, o.Status, o.OrderDate.Time, o.Notes,
		o.DiscountRate, o.Subtotal, o.TaxTotal, o.GrandTotal).Scan(&o.ID, &o.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert sales order: %w", err)
	}
	return sales.ReplaceItems(ctx, r.conn(ctx), sales.OrderItems, o.ID, o.Items)
}

const orderColumns = `id, org_id, number, partner_id, quote_id, currency, status, order_date,
	COALESCE(notes, ''), discount_rate, subtotal, tax_total, grand_total, created_at`

func scanOrder(row pgx.Row) (SalesOrder, error) {
	var (
		o         SalesOrder
		orderDate time.Time
	)
	err := row.Scan(&o.ID, &o.OrgID, &o.Number, &o.PartnerID, &o.QuoteID, &o.Currency, &o.Status, &orderDate,
		&o.Notes, &o.DiscountRate, &o.Subtotal, &o.TaxTotal, &o.GrandTotal, &o.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return SalesOrder{}, shared.ErrNotFound
	}
	if err != nil {
		return SalesOrder{}, err
	}
	o.OrderDate = shared.NewDate(orderDate)
	return o, nil
}

func (r *repository) get(ctx context.Context, orgID, id uuid.UUID, lock string) (SalesOrder, error) {
	o, err := scanOrder(r.conn(ctx).QueryRow(ctx, `SELECT `+orderColumns+` FROM sales_orders WHERE org_id = $1 AND id = $2`+lock, orgID, id))
	if err != nil {
		return SalesOrder{}, err
	}
	o.Items, err = sales.LoadItems(ctx, r.conn(ctx), sales.OrderItems, o.ID)
	return o, err
}

func (r *repository) Get(ctx context.Context, orgID, id uuid.UUID) (SalesOrder, error) {
	return r.get(ctx, orgID, id, "")
}

func (r *repository) GetForUpdate(ctx context.Context, orgID, id uuid.UUID) (SalesOrder, error) {
	return r.get(ctx, orgID, id, " FOR UPDATE")
}

func (r *repository) Update(ctx context.Context, o SalesOrder, replaceItems bool) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE sales_orders SET notes = NULLIF($2, ''), discount_rate = $3,
		       subtotal = $4, tax_total = $5, grand_total = $6
		WHERE id = $1`,
		o.ID, o.Notes, o.DiscountRate, o.Subtotal, o.TaxTotal, o.GrandTotal)
	if err != nil {
		return fmt.Errorf("update sales order: %w", err)
	}
	if !replaceItems {
		return nil
	}
	return sales.ReplaceItems(ctx, r.conn(ctx), sales.OrderItems, o.ID, o.Items)
}

func (r *repository) UpdateStatus(ctx context.Context, id uuid.UUID, status Status) error {
	_, err := r.conn(ctx).Exec(ctx, `UPDATE sales_orders SET status = $2 WHERE id = $1`, id, status)
	return err
}

func (r *repository) List(ctx context.Context, orgID uuid.UUID, filter ListFilter, page shared.Page) ([]SalesOrder, int, error) {
	conds := []string{"org_id = $1"}
	args := []any{orgID}
	if s := strings.TrimSpace(filter.Search); s != "" {
		args = append(args, "%"+s+"%")
		conds = append(conds, "number ILIKE $"+strconv.Itoa(len(args)))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		conds = append(conds, "status = $"+strconv.Itoa(len(args)))
	}
	if filter.PartnerID != nil {
		args = append(args, *filter.PartnerID)
		conds = append(conds, "partner_id = $"+strconv.Itoa(len(args)))
	}
	where := " WHERE " + strings.Join(conds, " AND ")

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM sales_orders`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	query := fmt.Sprintf(`SELECT %s FROM sales_orders%s ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d`,
		orderColumns, where, len(args)+1, len(args)+2)
	rows, err := r.conn(ctx).Query(ctx, query, append(args, page.PageSize, page.Offset())...)
	if err != nil {
		return nil, 0, err
	}
	orders, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (SalesOrder, error) { return scanOrder(row) })
	return orders, total, err
}
