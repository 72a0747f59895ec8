package ar

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
	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// Repository provides persistence for the receivable ledger.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, Repository) error) error
	FindInvoiceEntry(ctx context.Context, invoiceID uuid.UUID) (uuid.UUID, error)
	InsertEntry(ctx context.Context, entry *Entry) error
	InsertAllocation(ctx context.Context, alloc Allocation) error
	LockInvoices(ctx context.Context, orgID uuid.UUID, ids []uuid.UUID) ([]InvoiceState, error)
	Invoices(ctx context.Context, orgID uuid.UUID, q InvoiceQuery) ([]InvoiceState, error)
	Invoice(ctx context.Context, orgID, id uuid.UUID) (InvoiceState, error)
	HasAllocations(ctx context.Context, orgID, invoiceID uuid.UUID) (bool, error)
	ListEntries(ctx context.Context, orgID uuid.UUID, filter EntryFilter, page shared.Page) ([]Entry, int, error)
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

func (r *repository) FindInvoiceEntry(ctx context.Context, invoiceID uuid.UUID) (uuid.UUID, error) {
	var id uuid.UUID
	err := r.conn(ctx).QueryRow(ctx, `SELECT id FROM ar_entries WHERE invoice_id = $1 AND type = 'INVOICE'`, invoiceID).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return uuid.Nil, shared.ErrNotFound
	}
	return id, err
}

func (r *repository) InsertEntry(ctx context.Context, entry *Entry) error {
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO ar_entries (org_id, partner_id, invoice_id, entry_date, type, amount, currency, note)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NULLIF($8, ''))
		RETURNING id, created_at`,
		entry.OrgID, entry.PartnerID, entry.InvoiceID, entry.EntryDate.Time, entry.Type, entry.Amount, entry.Currency, entry.Note,
	).Scan(&entry.ID, &entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert ar entry: %w", err)
	}
	return nil
}

func (r *repository) InsertAllocation(ctx context.Context, alloc Allocation) error {
	if _, err := r.conn(ctx).Exec(ctx,
		`INSERT INTO ar_allocations (entry_id, invoice_id, amount) VALUES ($1, $2, $3)`,
		alloc.EntryID, alloc.InvoiceID, alloc.Amount); err != nil {
		return fmt.Errorf("insert ar allocation: %w", err)
	}
	// a concurrent payer holding an older snapshot fails serialization on this row
	_, err := r.conn(ctx).Exec(ctx, `UPDATE sales_invoices SET version = version + 1 WHERE id = $1`, alloc.InvoiceID)
	return err
}

const invoiceStateSelect = `
	SELECT i.id, i.partner_id, i.number, i.status, i.issue_date, i.created_at, i.grand_total,
	       COALESCE((
	           SELECT SUM(CASE WHEN e.type IN ('PAYMENT', 'ADJUSTMENT') THEN a.amount
	                           WHEN e.type = 'REFUND' THEN -a.amount
	                           ELSE 0 END)
	           FROM ar_allocations a JOIN ar_entries e ON e.id = a.entry_id
	           WHERE a.invoice_id = i.id), 0)
	FROM sales_invoices i`

func scanInvoiceState(row pgx.Row) (InvoiceState, error) {
	var s InvoiceState
	err := row.Scan(&s.ID, &s.PartnerID, &s.Number, &s.Status, &s.IssueDate, &s.CreatedAt, &s.GrandTotal, &s.Allocated)
	return s, err
}

func (r *repository) collectStates(ctx context.Context, query string, args ...any) ([]InvoiceState, error) {
	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (InvoiceState, error) { return scanInvoiceState(row) })
}

// LockInvoices locks the invoice rows in id order before reading their balances.
func (r *repository) LockInvoices(ctx context.Context, orgID uuid.UUID, ids []uuid.UUID) ([]InvoiceState, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	return r.collectStates(ctx, invoiceStateSelect+` WHERE i.org_id = $1 AND i.id = ANY($2) ORDER BY i.id FOR UPDATE OF i`, orgID, ids)
}

func (r *repository) Invoices(ctx context.Context, orgID uuid.UUID, q InvoiceQuery) ([]InvoiceState, error) {
	conds := []string{"i.org_id = $1"}
	args := []any{orgID}
	if q.PartnerID != nil {
		args = append(args, *q.PartnerID)
		conds = append(conds, "i.partner_id = $"+strconv.Itoa(len(args)))
	}
	if len(q.Statuses) > 0 {
		statuses := make([]string, len(q.Statuses))
		for i, s := range q.Statuses {
			statuses[i] = string(s)
		}
		args = append(args, statuses)
		conds = append(conds, "i.status = ANY($"+strconv.Itoa(len(args))+")")
	}
	if q.ExcludeCancelled {
		conds = append(conds, "i.status <> 'CANCELLED'")
	}
	return r.collectStates(ctx, invoiceStateSelect+` WHERE `+strings.Join(conds, " AND ")+` ORDER BY i.issue_date, i.created_at, i.id`, args...)
}

func (r *repository) Invoice(ctx context.Context, orgID, id uuid.UUID) (InvoiceState, error) {
	s, err := scanInvoiceState(r.conn(ctx).QueryRow(ctx, invoiceStateSelect+` WHERE i.org_id = $1 AND i.id = $2`, orgID, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return InvoiceState{}, shared.ErrNotFound
	}
	return s, err
}

func (r *repository) HasAllocations(ctx context.Context, orgID, invoiceID uuid.UUID) (bool, error) {
	var exists bool
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM ar_allocations a
			JOIN sales_invoices i ON i.id = a.invoice_id
			WHERE i.org_id = $1 AND a.invoice_id = $2
		)`, orgID, invoiceID).Scan(&exists)
	return exists, err
}

func (r *repository) ListEntries(ctx context.Context, orgID uuid.UUID, filter EntryFilter, page shared.Page) ([]Entry, int, error) {
	conds := []string{"org_id = $1", "partner_id = $2"}
	args := []any{orgID, filter.PartnerID}
	if filter.From != nil {
		args = append(args, *filter.From)
		conds = append(conds, "entry_date >= $"+strconv.Itoa(len(args)))
	}
	if filter.To != nil {
		args = append(args, *filter.To)
		conds = append(conds, "entry_date <= $"+strconv.Itoa(len(args)))
	}
	where := " WHERE " + strings.Join(conds, " AND ")

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM ar_entries`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	query := fmt.Sprintf(`
		SELECT id, org_id, partner_id, invoice_id, entry_date, type, amount, currency, COALESCE(note, ''), created_at
		FROM ar_entries%s ORDER BY entry_date DESC, created_at DESC LIMIT $%d OFFSET $%d`,
		where, len(args)+1, len(args)+2)
	rows, err := r.conn(ctx).Query(ctx, query, append(args, page.PageSize, page.Offset())...)
	if err != nil {
		return nil, 0, err
	}
	entries, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Entry, error) {
		var (
			e         Entry
			entryDate time.Time
		)
		err := row.Scan(&e.ID, &e.OrgID, &e.PartnerID, &e.InvoiceID, &entryDate, &e.Type, &e.Amount, &e.Currency, &e.Note, &e.CreatedAt)
		e.EntryDate = shared.NewDate(entryDate)
		return e, err
	})
	return entries, total, err
}
