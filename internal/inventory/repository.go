package inventory

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/platform/db"
	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// Repository persists the stock log and balances in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes transactional operations used by service.
type TxRepository interface {
	LockBalances(ctx context.Context, productIDs []uuid.UUID) ([]Balance, error)
	LockAllBalances(ctx context.Context) ([]Balance, error)
	LogBalances(ctx context.Context, orgID uuid.UUID, productIDs []uuid.UUID) ([]Balance, error)
	InsertMovement(ctx context.Context, m *Movement) error
	GetMovementForUpdate(ctx context.Context, orgID, id uuid.UUID) (Movement, error)
	DeleteMovement(ctx context.Context, id uuid.UUID) error
	ApplyDelta(ctx context.Context, orgID, productID, warehouseID uuid.UUID, delta decimal.Decimal) error
	SetBalance(ctx context.Context, b Balance) error
}

type txRepository struct {
	conn db.DBTX
}

// WithTx executes the callback inside the request transaction, opening one when needed.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil {
		return errors.New("inventory repository not initialised")
	}
	return db.InTx(ctx, r.pool, func(ctx context.Context) error {
		return fn(ctx, &txRepository{conn: db.Conn(ctx, r.pool)})
	})
}

// Stock sums the signed movement log of a product, optionally in one warehouse.
func (r *Repository) Stock(ctx context.Context, orgID, productID uuid.UUID, warehouseID *uuid.UUID) (decimal.Decimal, error) {
	query := `SELECT COALESCE(SUM(CASE WHEN direction = 'IN' THEN quantity ELSE -quantity END), 0)
		FROM stock_movements WHERE org_id = $1 AND product_id = $2`
	args := []any{orgID, productID}
	if warehouseID != nil {
		query += ` AND warehouse_id = $3`
		args = append(args, *warehouseID)
	}
	var qty decimal.Decimal
	err := db.Conn(ctx, r.pool).QueryRow(ctx, query, args...).Scan(&qty)
	return qty, err
}

// StockByWarehouse sums the movement log of a product per warehouse.
func (r *Repository) StockByWarehouse(ctx context.Context, orgID, productID uuid.UUID) ([]WarehouseStock, error) {
	rows, err := db.Conn(ctx, r.pool).Query(ctx, `
		SELECT warehouse_id, SUM(CASE WHEN direction = 'IN' THEN quantity ELSE -quantity END)
		FROM stock_movements WHERE org_id = $1 AND product_id = $2
		GROUP BY warehouse_id ORDER BY warehouse_id`, orgID, productID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowToStructByPos[WarehouseStock])
}

// ListMovements pages through the stock log, newest first.
func (r *Repository) ListMovements(ctx context.Context, orgID uuid.UUID, filter MovementFilter, page shared.Page) ([]Movement, int, error) {
	conds := []string{"org_id = $1"}
	args := []any{orgID}
	add := func(cond string, v any) {
		args = append(args, v)
		conds = append(conds, cond+" $"+strconv.Itoa(len(args)))
	}
	if filter.ProductID != nil {
		add("product_id =", *filter.ProductID)
	}
	if filter.WarehouseID != nil {
		add("warehouse_id =", *filter.WarehouseID)
	}
	if filter.Direction != "" {
		add("direction =", filter.Direction)
	}
	if filter.From != nil {
		add("created_at >=", *filter.From)
	}
	if filter.To != nil {
		// inclusive of the whole end day
		add("created_at <", filter.To.AddDate(0, 0, 1))
	}
	where := " WHERE " + strings.Join(conds, " AND ")
	conn := db.Conn(ctx, r.pool)

	var total int
	if err := conn.QueryRow(ctx, `SELECT COUNT(*) FROM stock_movements`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	query := fmt.Sprintf(`SELECT %s FROM stock_movements%s ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d`,
		movementColumns, where, len(args)+1, len(args)+2)
	rows, err := conn.Query(ctx, query, append(args, page.PageSize, page.Offset())...)
	if err != nil {
		return nil, 0, err
	}
	movements, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Movement, error) { return scanMovement(row) })
	return movements, total, err
}

const movementColumns = `id, org_id, product_id, warehouse_id, direction, quantity,
	COALESCE(reason, ''), COALESCE(document_no, ''), created_at`

func scanMovement(row pgx.Row) (Movement, error) {
	var m Movement
	err := row.Scan(&m.ID, &m.OrgID, &m.ProductID, &m.WarehouseID, &m.Direction, &m.Quantity, &m.Reason, &m.DocumentNo, &m.CreatedAt)
	return m, err
}

func collectBalances(rows pgx.Rows, err error) ([]Balance, error) {
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowToStructByPos[Balance])
}

// LockBalances locks the balance rows of the products ordered by product then warehouse.
func (t *txRepository) LockBalances(ctx context.Context, productIDs []uuid.UUID) ([]Balance, error) {
	return collectBalances(t.conn.Query(ctx, `
		SELECT org_id, product_id, warehouse_id, qty, version FROM stock_balances
		WHERE product_id = ANY($1) ORDER BY product_id, warehouse_id FOR UPDATE`, productIDs))
}

func (t *txRepository) LockAllBalances(ctx context.Context) ([]Balance, error) {
	return collectBalances(t.conn.Query(ctx, `
		SELECT org_id, product_id, warehouse_id, qty, version FROM stock_balances
		ORDER BY product_id, warehouse_id FOR UPDATE`))
}

// LogBalances derives per-warehouse quantities from the movement log. A nil
// orgID with no products covers every org.
func (t *txRepository) LogBalances(ctx context.Context, orgID uuid.UUID, productIDs []uuid.UUID) ([]Balance, error) {
	query := `SELECT org_id, product_id, warehouse_id,
		SUM(CASE WHEN direction = 'IN' THEN quantity ELSE -quantity END), 0::BIGINT
		FROM stock_movements`
	var args []any
	if orgID != uuid.Nil {
		query += ` WHERE org_id = $1 AND product_id = ANY($2)`
		args = append(args, orgID, productIDs)
	}
	query += ` GROUP BY org_id, product_id, warehouse_id ORDER BY product_id, warehouse_id`
	return collectBalances(t.conn.Query(ctx, query, args...))
}

func (t *txRepository) InsertMovement(ctx context.Context, m *Movement) error {
	err := t.conn.QueryRow(ctx, `
		INSERT INTO stock_movements (org_id, product_id, warehouse_id, direction, quantity, reason, document_no)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), NULLIF($7, ''))
		RETURNING id, created_at`,
		m.OrgID, m.ProductID, m.WarehouseID, m.Direction, m.Quantity, m.Reason, m.DocumentNo,
	).Scan(&m.ID, &m.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert stock movement: %w", err)
	}
	return nil
}

func (t *txRepository) GetMovementForUpdate(ctx context.Context, orgID, id uuid.UUID) (Movement, error) {
	m, err := scanMovement(t.conn.QueryRow(ctx,
		`SELECT `+movementColumns+` FROM stock_movements WHERE org_id = $1 AND id = $2 FOR UPDATE`, orgID, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Movement{}, shared.ErrNotFound
	}
	return m, err
}

func (t *txRepository) DeleteMovement(ctx context.Context, id uuid.UUID) error {
	_, err := t.conn.Exec(ctx, `DELETE FROM stock_movements WHERE id = $1`, id)
	return err
}

func (t *txRepository) ApplyDelta(ctx context.Context, orgID, productID, warehouseID uuid.UUID, delta decimal.Decimal) error {
	_, err := t.conn.Exec(ctx, `
		INSERT INTO stock_balances (org_id, product_id, warehouse_id, qty, version, updated_at)
		VALUES ($1, $2, $3, $4, 1, NOW())
		ON CONFLICT (product_id, warehouse_id) DO UPDATE
		SET qty = stock_balances.qty + EXCLUDED.qty,
		    version = stock_balances.version + 1,
		    updated_at = NOW()`,
		orgID, productID, warehouseID, delta)
	return err
}

func (t *txRepository) SetBalance(ctx context.Context, b Balance) error {
	_, err := t.conn.Exec(ctx, `
		INSERT INTO stock_balances (org_id, product_id, warehouse_id, qty, version, updated_at)
		VALUES ($1, $2, $3, $4, 1, NOW())
		ON CONFLICT (product_id, warehouse_id) DO UPDATE
		SET qty = EXCLUDED.qty,
		    version = stock_balances.version + 1,
		    updated_at = NOW()`,
		b.OrgID, b.ProductID, b.WarehouseID, b.Qty)
	return err
}
