package invoices

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

// Repository persists sales invoices and their items.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, Repository) error) error
	NextNumber(ctx context.Context, date time.Time) (string, error)
	Insert(ctx context.Context, inv *Invoice) error
	Get(ctx context.Context, orgID, id uuid.UUID) (Invoice, error)
	GetForUpdate(ctx context.Context, orgID, id uuid.UUID) (Invoice, error)
	Update(ctx context.Context, inv Invoice, replaceItems bool) error
	UpdateStatus(ctx context.Context, id uuid.UUID, status Status) error
	List(ctx context.Context, orgID uuid.UUID, filter ListFilter, page shared.Page) ([]Invoice, int, error)
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
	return sales.NextNumber(ctx, r.conn(ctx), sales.PrefixInvoice, date)
}

func (r *repository) Insert(ctx context.Context, inv *Invoice) error {
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO sales_invoices (org_id, number, partner_id, order_id, currency, status, issue_date, notes,
		                            discount_rate, subtotal, tax_total, grand_total)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NULLIF($8, ''), $9, $10, $11, $12)
		RETURNING id, created_at`,
		inv.OrgID, inv.Number, inv.PartnerID, inv.OrderID, inv.Currency, inv.Status, inv.IssueDate.Time, inv.Notes,
		inv.DiscountRate, inv.Subtotal, inv.TaxTotal, inv.GrandTotal).Scan(&inv.ID, &inv.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert sales invoice: %w", err)
	}
	return sales.ReplaceItems(ctx, r.conn(ctx), sales.InvoiceItems, inv.ID, inv.Items)
}

const invoiceColumns = `id, org_id, number, partner_id, order_id, currency, status, issue_date,
	COALESCE(notes, ''), discount_rate, subtotal, tax_total, grand_total, created_at`

func scanInvoice(row pgx.Row) (Invoice, error) {
	var (
		inv       Invoice
		issueDate time.Time
	)
	err := row.Scan(&inv.ID, &inv.OrgID, &inv.Number, &inv.PartnerID, &inv.OrderID, &inv.Currency, &inv.Status, &issueDate,
		&inv.Notes, &inv.DiscountRate, &inv.Subtotal, &inv.TaxTotal, &inv.GrandTotal, &inv.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Invoice{}, shared.ErrNotFound
	}
	if err != nil {
		return Invoice{}, err
	}
	inv.IssueDate = shared.NewDate(issueDate)
	return inv, nil
}

func (r *repository) get(ctx context.Context, orgID, id uuid.UUID, lock string) (Invoice, error) {
	inv, err := scanInvoice(r.conn(ctx).QueryRow(ctx, `SELECT `+invoiceColumns+` FROM sales_invoices WHERE org_id = $1 AND id = $2`+lock, orgID, id))
	if err != nil {
		return Invoice{}, err
	}
	inv.Items, err = sales.LoadItems(ctx, r.conn(ctx), sales.InvoiceItems, inv.ID)
	return inv, err
}

func (r *repository) Get(ctx context.Context, orgID, id uuid.UUID) (Invoice, error) {
	return r.get(ctx, orgID, id, "")
}

func (r *repository) GetForUpdate(ctx context.Context, orgID, id uuid.UUID) (Invoice, error) {
	return r.get(ctx, orgID, id, " FOR UPDATE")
}

func (r *repository) Update(ctx context.Context, inv Invoice, replaceItems bool) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE sales_invoices SET notes = NULLIF($2, ''), discount_rate = $3,
		       subtotal = $4, tax_total = $5, grand_total = $6
		WHERE id = $1`,
		inv.ID, inv.Notes, inv.DiscountRate, inv.Subtotal, inv.TaxTotal, inv.GrandTotal)
	if err != nil {
		return fmt.Errorf("update sales invoice: %w", err)
	}
	if !replaceItems {
		return nil
	}
	return sales.ReplaceItems(ctx, r.conn(ctx), sales.InvoiceItems, inv.ID, inv.Items)
}

func (r *repository) UpdateStatus(ctx context.Context, id uuid.UUID, status Status) error {
	_, err := r.conn(ctx).Exec(ctx, `UPDATE sales_invoices SET status = $2 WHERE id = $1`, id, status)
	return err
}

func (r *repository) List(ctx context.Context, orgID uuid.UUID, filter ListFilter, page shared.Page) ([]Invoice, int, error) {
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
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM sales_invoices`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	query := fmt.Sprintf(`SELECT %s FROM sales_invoices%s ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d`,
		invoiceColumns, where, len(args)+1, len(args)+2)
	rows, err := r.conn(ctx).Query(ctx, query, append(args, page.PageSize, page.Offset())...)
	if err != nil {
		return nil, 0, err
	}
	invoices, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Invoice, error) { return scanInvoice(row) })
	return invoices, total, err
}
