package quotations

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

// Repository persists quotes and their items.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, Repository) error) error
	NextNumber(ctx context.Context, date time.Time) (string, error)
	Insert(ctx context.Context, q *Quote) error
	Get(ctx context.Context, orgID, id uuid.UUID) (Quote, error)
	GetForUpdate(ctx context.Context, orgID, id uuid.UUID) (Quote, error)
	Update(ctx context.Context, q Quote, replaceItems bool) error
	UpdateStatus(ctx context.Context, id uuid.UUID, status Status) error
	List(ctx context.Context, orgID uuid.UUID, filter ListFilter, page shared.Page) ([]Quote, int, error)
	ListExpirable(ctx context.Context, today time.Time) ([]Ref, error)
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
	return sales.NextNumber(ctx, r.conn(ctx), sales.PrefixQuote, date)
}

func (r *repository) Insert(ctx context.Context, q *Quote) error {
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO quotes (org_id, number, partner_id, currency, status, issue_date, valid_until, notes,
		                    discount_rate, subtotal, tax_total, grand_total)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NULLIF($8, ''), $9, $10, $11, $12)
		RETURNING id, created_at`,
		q.OrgID, q.Number, q.PartnerID, q.Currency, q.Status, q.IssueDate.Time, dateArg(q.ValidUntil), q.Notes,
		q.DiscountRate, q.Subtotal, q.TaxTotal, q.GrandTotal).Scan(&q.ID, &q.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert quote: %w", err)
	}
	return sales.ReplaceItems(ctx, r.conn(ctx), sales.QuoteItems, q.ID, q.Items)
}

const quoteColumns = `id, org_id, number, partner_id, currency, status, issue_date, valid_until,
	COALESCE(notes, ''), discount_rate, subtotal, tax_total, grand_total, created_at`

func scanQuote(row pgx.Row) (Quote, error) {
	var (
		q          Quote
		issueDate  time.Time
		validUntil *time.Time
	)
	err := row.Scan(&q.ID, &q.OrgID, &q.Number, &q.PartnerID, &q.Currency, &q.Status, &issueDate, &validUntil,
		&q.Notes, &q.DiscountRate, &q.Subtotal, &q.TaxTotal, &q.GrandTotal, &q.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Quote{}, shared.ErrNotFound
	}
	if err != nil {
		return Quote{}, err
	}
	q.IssueDate = shared.NewDate(issueDate)
	if validUntil != nil {
		d := shared.NewDate(*validUntil)
		q.ValidUntil = &d
	}
	return q, nil
}

func (r *repository) get(ctx context.Context, orgID, id uuid.UUID, lock string) (Quote, error) {
	q, err := scanQuote(r.conn(ctx).QueryRow(ctx, `SELECT `+quoteColumns+` FROM quotes WHERE org_id = $1 AND id = $2`+lock, orgID, id))
	if err != nil {
		return Quote{}, err
	}
	q.Items, err = sales.LoadItems(ctx, r.conn(ctx), sales.QuoteItems, q.ID)
	return q, err
}

func (r *repository) Get(ctx context.Context, orgID, id uuid.UUID) (Quote, error) {
	return r.get(ctx, orgID, id, "")
}

func (r *repository) GetForUpdate(ctx context.Context, orgID, id uuid.UUID) (Quote, error) {
	return r.get(ctx, orgID, id, " FOR UPDATE")
}

func (r *repository) Update(ctx context.Context, q Quote, replaceItems bool) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE quotes SET notes = NULLIF($2, ''), discount_rate = $3, valid_until = $4,
		       subtotal = $5, tax_total = $6, grand_total = $7
		WHERE id = $1`,
		q.ID, q.Notes, q.DiscountRate, dateArg(q.ValidUntil), q.Subtotal, q.TaxTotal, q.GrandTotal)
	if err != nil {
		return fmt.Errorf("update quote: %w", err)
	}
	if !replaceItems {
		return nil
	}
	return sales.ReplaceItems(ctx, r.conn(ctx), sales.QuoteItems, q.ID, q.Items)
}

func (r *repository) UpdateStatus(ctx context.Context, id uuid.UUID, status Status) error {
	_, err := r.conn(ctx).Exec(ctx, `UPDATE quotes SET status = $2 WHERE id = $1`, id, status)
	return err
}

func (r *repository) List(ctx context.Context, orgID uuid.UUID, filter ListFilter, page shared.Page) ([]Quote, int, error) {
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
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM quotes`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	query := fmt.Sprintf(`SELECT %s FROM quotes%s ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d`,
		quoteColumns, where, len(args)+1, len(args)+2)
	rows, err := r.conn(ctx).Query(ctx, query, append(args, page.PageSize, page.Offset())...)
	if err != nil {
		return nil, 0, err
	}
	quotes, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Quote, error) { return scanQuote(row) })
	return quotes, total, err
}

func (r *repository) ListExpirable(ctx context.Context, today time.Time) ([]Ref, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT org_id, id FROM quotes
		WHERE status = $1 AND valid_until IS NOT NULL AND valid_until < $2
		ORDER BY valid_until, id`, sales.QuoteSent, today)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowToStructByPos[Ref])
}

func dateArg(d *shared.Date) any {
	if d == nil || d.IsZero() {
		return nil
	}
	return d.Time
}
