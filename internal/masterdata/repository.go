package masterdata

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/odyssey-ledger/internal/platform/db"
	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// Repository persists reference data.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, Repository) error) error

	CreatePartner(ctx context.Context, p Partner) (Partner, error)
	GetPartner(ctx context.Context, orgID, id uuid.UUID) (Partner, error)
	ListPartners(ctx context.Context, orgID uuid.UUID, filters ListFilters, page shared.Page) ([]Partner, int, error)

	CreateProduct(ctx context.Context, p Product) (Product, error)
	GetProduct(ctx context.Context, orgID, id uuid.UUID) (Product, error)
	ListProducts(ctx context.Context, orgID uuid.UUID, filters ListFilters, page shared.Page) ([]Product, int, error)
	ExistingProducts(ctx context.Context, orgID uuid.UUID, ids []uuid.UUID) ([]uuid.UUID, error)

	CreateWarehouse(ctx context.Context, w Warehouse) (Warehouse, error)
	GetWarehouse(ctx context.Context, orgID, id uuid.UUID) (Warehouse, error)
	ListWarehouses(ctx context.Context, orgID uuid.UUID, filters ListFilters, page shared.Page) ([]Warehouse, int, error)
	ClearDefaultWarehouse(ctx context.Context, orgID uuid.UUID) error
	DefaultWarehouse(ctx context.Context, orgID uuid.UUID) (Warehouse, error)
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

func (r *repository) CreatePartner(ctx context.Context, p Partner) (Partner, error) {
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO partners (org_id, name, kind, email, tax_number, is_active)
		VALUES ($1, $2, $3, NULLIF($4, ''), NULLIF($5, ''), TRUE)
		RETURNING id, is_active, created_at`,
		p.OrgID, p.Name, p.Kind, p.Email, p.TaxNumber).Scan(&p.ID, &p.IsActive, &p.CreatedAt)
	return p, err
}

const partnerColumns = `id, org_id, name, kind, COALESCE(email, ''), COALESCE(tax_number, ''), is_active, created_at`

func scanPartner(row pgx.Row) (Partner, error) {
	var p Partner
	err := row.Scan(&p.ID, &p.OrgID, &p.Name, &p.Kind, &p.Email, &p.TaxNumber, &p.IsActive, &p.CreatedAt)
	return p, notFound(err)
}

func (r *repository) GetPartner(ctx context.Context, orgID, id uuid.UUID) (Partner, error) {
	return scanPartner(r.conn(ctx).QueryRow(ctx, `SELECT `+partnerColumns+` FROM partners WHERE org_id = $1 AND id = $2`, orgID, id))
}

func (r *repository) ListPartners(ctx context.Context, orgID uuid.UUID, filters ListFilters, page shared.Page) ([]Partner, int, error) {
	where, args := listWhere(orgID, filters, "name")
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM partners WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+partnerColumns+` FROM partners WHERE `+where+pageClause(len(args), " ORDER BY name"), append(args, page.PageSize, page.Offset())...)
	if err != nil {
		return nil, 0, err
	}
	items, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Partner, error) { return scanPartner(row) })
	return items, total, err
}

func (r *repository) CreateProduct(ctx context.Context, p Product) (Product, error) {
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO products (org_id, sku, name, price, restock_level, is_active)
		VALUES ($1, $2, $3, $4, $5, TRUE)
		RETURNING id, is_active, created_at`,
		p.OrgID, p.SKU, p.Name, p.Price, p.RestockLevel).Scan(&p.ID, &p.IsActive, &p.CreatedAt)
	return p, err
}

const productColumns = `id, org_id, sku, name, price, restock_level, is_active, created_at`

func scanProduct(row pgx.Row) (Product, error) {
	var p Product
	err := row.Scan(&p.ID, &p.OrgID, &p.SKU, &p.Name, &p.Price, &p.RestockLevel, &p.IsActive, &p.CreatedAt)
	return p, notFound(err)
}

func (r *repository) GetProduct(ctx context.Context, orgID, id uuid.UUID) (Product, error) {
	return scanProduct(r.conn(ctx).QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE org_id = $1 AND id = $2`, orgID, id))
}

func (r *repository) ListProducts(ctx context.Context, orgID uuid.UUID, filters ListFilters, page shared.Page) ([]Product, int, error) {
	where, args := listWhere(orgID, filters, "name", "sku")
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM products WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+productColumns+` FROM products WHERE `+where+pageClause(len(args), " ORDER BY sku"), append(args, page.PageSize, page.Offset())...)
	if err != nil {
		return nil, 0, err
	}
	items, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Product, error) { return scanProduct(row) })
	return items, total, err
}

func (r *repository) ExistingProducts(ctx context.Context, orgID uuid.UUID, ids []uuid.UUID) ([]uuid.UUID, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT id FROM products WHERE org_id = $1 AND id = ANY($2)`, orgID, ids)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[uuid.UUID])
}

func (r *repository) CreateWarehouse(ctx context.Context, w Warehouse) (Warehouse, error) {
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO warehouses (org_id, code, name, is_default, is_active)
		VALUES ($1, $2, $3, $4, TRUE)
		RETURNING id, is_active, created_at`,
		w.OrgID, w.Code, w.Name, w.IsDefault).Scan(&w.ID, &w.IsActive, &w.CreatedAt)
	return w, err
}

const warehouseColumns = `id, org_id, code, name, is_default, is_active, created_at`

func scanWarehouse(row pgx.Row) (Warehouse, error) {
	var w Warehouse
	err := row.Scan(&w.ID, &w.OrgID, &w.Code, &w.Name, &w.IsDefault, &w.IsActive, &w.CreatedAt)
	return w, notFound(err)
}

func (r *repository) GetWarehouse(ctx context.Context, orgID, id uuid.UUID) (Warehouse, error) {
	return scanWarehouse(r.conn(ctx).QueryRow(ctx, `SELECT `+warehouseColumns+` FROM warehouses WHERE org_id = $1 AND id = $2`, orgID, id))
}

func (r *repository) ListWarehouses(ctx context.Context, orgID uuid.UUID, filters ListFilters, page shared.Page) ([]Warehouse, int, error) {
	where, args := listWhere(orgID, filters, "name", "code")
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM warehouses WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+warehouseColumns+` FROM warehouses WHERE `+where+pageClause(len(args), " ORDER BY code"), append(args, page.PageSize, page.Offset())...)
	if err != nil {
		return nil, 0, err
	}
	items, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Warehouse, error) { return scanWarehouse(row) })
	return items, total, err
}

func (r *repository) ClearDefaultWarehouse(ctx context.Context, orgID uuid.UUID) error {
	_, err := r.conn(ctx).Exec(ctx, `UPDATE warehouses SET is_default = FALSE WHERE org_id = $1 AND is_default`, orgID)
	return err
}

// DefaultWarehouse prefers the flagged default, else the oldest active warehouse.
func (r *repository) DefaultWarehouse(ctx context.Context, orgID uuid.UUID) (Warehouse, error) {
	return scanWarehouse(r.conn(ctx).QueryRow(ctx, `
		SELECT `+warehouseColumns+` FROM warehouses
		WHERE org_id = $1 AND is_active
		ORDER BY is_default DESC, created_at ASC, id ASC
		LIMIT 1`, orgID))
}

func listWhere(orgID uuid.UUID, filters ListFilters, searchColumns ...string) (string, []any) {
	conds := []string{"org_id = $1"}
	args := []any{orgID}
	if s := strings.TrimSpace(filters.Search); s != "" {
		args = append(args, "%"+s+"%")
		pos := "$" + strconv.Itoa(len(args))
		ors := make([]string, 0, len(searchColumns))
		for _, col := range searchColumns {
			ors = append(ors, col+" ILIKE "+pos)
		}
		conds = append(conds, "("+strings.Join(ors, " OR ")+")")
	}
	if filters.IsActive != nil {
		args = append(args, *filters.IsActive)
		conds = append(conds, "is_active = $"+strconv.Itoa(len(args)))
	}
	return strings.Join(conds, " AND "), args
}

func pageClause(argc int, order string) string {
	return fmt.Sprintf("%s LIMIT $%d OFFSET $%d", order, argc+1, argc+2)
}

func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return shared.ErrNotFound
	}
	return err
}
