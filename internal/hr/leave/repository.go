package leave

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
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/platform/db"
	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// Repository persists employees, leave types and leave requests.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, Repository) error) error

	CreateEmployee(ctx context.Context, e Employee) (Employee, error)
	GetEmployee(ctx context.Context, orgID, id uuid.UUID) (Employee, error)
	LockEmployee(ctx context.Context, orgID, id uuid.UUID) (Employee, error)
	ListEmployees(ctx context.Context, orgID uuid.UUID, search string, page shared.Page) ([]Employee, int, error)

	CreateType(ctx context.Context, t LeaveType) (LeaveType, error)
	GetType(ctx context.Context, orgID, id uuid.UUID) (LeaveType, error)
	ListTypes(ctx context.Context, orgID uuid.UUID, search string, page shared.Page) ([]LeaveType, int, error)
	UpdateType(ctx context.Context, t LeaveType) error
	DeleteType(ctx context.Context, orgID, id uuid.UUID) error
	TypeInUse(ctx context.Context, id uuid.UUID) (bool, error)

	InsertRequest(ctx context.Context, r *Request) error
	GetRequest(ctx context.Context, orgID, id uuid.UUID, owner *uuid.UUID) (Request, error)
	GetRequestForUpdate(ctx context.Context, orgID, id uuid.UUID) (Request, error)
	UpdateRequest(ctx context.Context, r Request) error
	UpdateRequestStatus(ctx context.Context, id uuid.UUID, status Status) error
	ListRequests(ctx context.Context, orgID uuid.UUID, filter RequestFilter, page shared.Page) ([]Request, int, error)
	Overlaps(ctx context.Context, employeeID uuid.UUID, start, end time.Time, exclude uuid.UUID) (bool, error)
	UsedAnnualDays(ctx context.Context, employeeID uuid.UUID, year int) (decimal.Decimal, error)
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

func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return shared.ErrNotFound
	}
	return err
}

const employeeColumns = `id, org_id, user_id, code, full_name, annual_leave_days_per_year, is_active, created_at`

func scanEmployee(row pgx.Row) (Employee, error) {
	var e Employee
	err := row.Scan(&e.ID, &e.OrgID, &e.UserID, &e.Code, &e.FullName, &e.AnnualLeaveDays, &e.IsActive, &e.CreatedAt)
	return e, notFound(err)
}

func (r *repository) CreateEmployee(ctx context.Context, e Employee) (Employee, error) {
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO employees (org_id, user_id, code, full_name, annual_leave_days_per_year, is_active)
		VALUES ($1, $2, $3, $4, $5, TRUE)
		RETURNING id, is_active, created_at`,
		e.OrgID, e.UserID, e.Code, e.FullName, e.AnnualLeaveDays).Scan(&e.ID, &e.IsActive, &e.CreatedAt)
	return e, err
}

func (r *repository) GetEmployee(ctx context.Context, orgID, id uuid.UUID) (Employee, error) {
	return scanEmployee(r.conn(ctx).QueryRow(ctx, `SELECT `+employeeColumns+` FROM employees WHERE org_id = $1 AND id = $2`, orgID, id))
}

// LockEmployee serialises request writes of one employee.
func (r *repository) LockEmployee(ctx context.Context, orgID, id uuid.UUID) (Employee, error) {
	return scanEmployee(r.conn(ctx).QueryRow(ctx, `SELECT `+employeeColumns+` FROM employees WHERE org_id = $1 AND id = $2 FOR UPDATE`, orgID, id))
}

func (r *repository) ListEmployees(ctx context.Context, orgID uuid.UUID, search string, page shared.Page) ([]Employee, int, error) {
	where, args := searchWhere(orgID, search, "code", "full_name")
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM employees WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+employeeColumns+` FROM employees WHERE `+where+
		limitClause(len(args), " ORDER BY code"), append(args, page.PageSize, page.Offset())...)
	if err != nil {
		return nil, 0, err
	}
	items, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Employee, error) { return scanEmployee(row) })
	return items, total, err
}

const typeColumns = `id, org_id, code, name, is_annual, requires_approval, created_at`

func scanType(row pgx.Row) (LeaveType, error) {
	var t LeaveType
	err := row.Scan(&t.ID, &t.OrgID, &t.Code, &t.Name, &t.IsAnnual, &t.RequiresApproval, &t.CreatedAt)
	return t, notFound(err)
}

func (r *repository) CreateType(ctx context.Context, t LeaveType) (LeaveType, error) {
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO leave_types (org_id, code, name, is_annual, requires_approval)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at`,
		t.OrgID, t.Code, t.Name, t.IsAnnual, t.RequiresApproval).Scan(&t.ID, &t.CreatedAt)
	return t, err
}

func (r *repository) GetType(ctx context.Context, orgID, id uuid.UUID) (LeaveType, error) {
	return scanType(r.conn(ctx).QueryRow(ctx, `SELECT `+typeColumns+` FROM leave_types WHERE org_id = $1 AND id = $2`, orgID, id))
}

func (r *repository) ListTypes(ctx context.Context, orgID uuid.UUID, search string, page shared.Page) ([]LeaveType, int, error) {
	where, args := searchWhere(orgID, search, "code", "name")
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM leave_types WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+typeColumns+` FROM leave_types WHERE `+where+
		limitClause(len(args), " ORDER BY created_at DESC"), append(args, page.PageSize, page.Offset())...)
	if err != nil {
		return nil, 0, err
	}
	items, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (LeaveType, error) { return scanType(row) })
	return items, total, err
}

func (r *repository) UpdateType(ctx context.Context, t LeaveType) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE leave_types SET code = $3, name = $4, is_annual = $5, requires_approval = $6
		WHERE org_id = $1 AND id = $2`,
		t.OrgID, t.ID, t.Code, t.Name, t.IsAnnual, t.RequiresApproval)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *repository) DeleteType(ctx context.Context, orgID, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM leave_types WHERE org_id = $1 AND id = $2`, orgID, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *repository) TypeInUse(ctx context.Context, id uuid.UUID) (bool, error) {
	var used bool
	err := r.conn(ctx).QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM leave_requests WHERE type_id = $1)`, id).Scan(&used)
	return used, err
}

const requestColumns = `r.id, r.org_id, r.employee_id, r.type_id, r.status, r.start_date, r.end_date, r.days, COALESCE(r.reason, ''), r.created_at`

func scanRequest(row pgx.Row) (Request, error) {
	var (
		req        Request
		start, end time.Time
	)
	err := row.Scan(&req.ID, &req.OrgID, &req.EmployeeID, &req.TypeID, &req.Status, &start, &end, &req.Days, &req.Reason, &req.CreatedAt)
	req.StartDate, req.EndDate = shared.NewDate(start), shared.NewDate(end)
	return req, notFound(err)
}

func (r *repository) InsertRequest(ctx context.Context, req *Request) error {
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO leave_requests (org_id, employee_id, type_id, status, start_date, end_date, days, reason)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NULLIF($8, ''))
		RETURNING id, created_at`,
		req.OrgID, req.EmployeeID, req.TypeID, req.Status, req.StartDate.Time, req.EndDate.Time, req.Days, req.Reason,
	).Scan(&req.ID, &req.CreatedAt)
}

// GetRequest loads a request; a non-nil owner limits it to the employee linked to that user.
func (r *repository) GetRequest(ctx context.Context, orgID, id uuid.UUID, owner *uuid.UUID) (Request, error) {
	query := `SELECT ` + requestColumns + ` FROM leave_requests r WHERE r.org_id = $1 AND r.id = $2`
	args := []any{orgID, id}
	if owner != nil {
		query += ` AND r.employee_id IN (SELECT e.id FROM employees e WHERE e.org_id = $1 AND e.user_id = $3)`
		args = append(args, *owner)
	}
	return scanRequest(r.conn(ctx).QueryRow(ctx, query, args...))
}

func (r *repository) GetRequestForUpdate(ctx context.Context, orgID, id uuid.UUID) (Request, error) {
	return scanRequest(r.conn(ctx).QueryRow(ctx, `SELECT `+requestColumns+` FROM leave_requests r WHERE r.org_id = $1 AND r.id = $2 FOR UPDATE`, orgID, id))
}

func (r *repository) UpdateRequest(ctx context.Context, req Request) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE leave_requests SET type_id = $2, start_date = $3, end_date = $4, days = $5, reason = NULLIF($6, '')
		WHERE id = $1`,
		req.ID, req.TypeID, req.StartDate.Time, req.EndDate.Time, req.Days, req.Reason)
	return err
}

func (r *repository) UpdateRequestStatus(ctx context.Context, id uuid.UUID, status Status) error {
	_, err := r.conn(ctx).Exec(ctx, `UPDATE leave_requests SET status = $2 WHERE id = $1`, id, status)
	return err
}

func (r *repository) ListRequests(ctx context.Context, orgID uuid.UUID, filter RequestFilter, page shared.Page) ([]Request, int, error) {
	conds := []string{"r.org_id = $1"}
	args := []any{orgID}
	add := func(cond string, v any) {
		args = append(args, v)
		conds = append(conds, strings.ReplaceAll(cond, "?", "$"+strconv.Itoa(len(args))))
	}
	if filter.OwnerUserID != nil {
		add("r.employee_id IN (SELECT e.id FROM employees e WHERE e.org_id = $1 AND e.user_id = ?)", *filter.OwnerUserID)
	} else if filter.EmployeeID != nil {
		add("r.employee_id = ?", *filter.EmployeeID)
	}
	if filter.TypeID != nil {
		add("r.type_id = ?", *filter.TypeID)
	}
	if filter.Status != "" {
		add("r.status = ?", filter.Status)
	}
	if filter.From != nil {
		add("r.start_date >= ?", *filter.From)
	}
	if filter.To != nil {
		add("r.end_date <= ?", *filter.To)
	}
	where := strings.Join(conds, " AND ")

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM leave_requests r WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+requestColumns+` FROM leave_requests r WHERE `+where+
		limitClause(len(args), " ORDER BY r.created_at DESC"), append(args, page.PageSize, page.Offset())...)
	if err != nil {
		return nil, 0, err
	}
	items, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Request, error) { return scanRequest(row) })
	return items, total, err
}

// Overlaps reports whether a SUBMITTED or APPROVED request of the employee
// intersects [start, end]. exclude skips the request being edited.
func (r *repository) Overlaps(ctx context.Context, employeeID uuid.UUID, start, end time.Time, exclude uuid.UUID) (bool, error) {
	var found bool
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM leave_requests
			WHERE employee_id = $1 AND id <> $2 AND status = ANY($3)
			  AND start_date <= $5 AND end_date >= $4
		)`, employeeID, exclude, blockingNames(), start, end).Scan(&found)
	return found, err
}

// UsedAnnualDays sums APPROVED annual-type requests starting in year.
func (r *repository) UsedAnnualDays(ctx context.Context, employeeID uuid.UUID, year int) (decimal.Decimal, error) {
	from := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	var used decimal.Decimal
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT COALESCE(SUM(r.days), 0)
		FROM leave_requests r
		JOIN leave_types t ON t.id = r.type_id
		WHERE r.employee_id = $1 AND r.status = $2 AND t.is_annual
		  AND r.start_date >= $3 AND r.start_date < $4`,
		employeeID, StatusApproved, from, from.AddDate(1, 0, 0)).Scan(&used)
	return used, err
}

func blockingNames() []string {
	names := make([]string, len(blocking))
	for i, s := range blocking {
		names[i] = string(s)
	}
	return names
}

func searchWhere(orgID uuid.UUID, search string, columns ...string) (string, []any) {
	args := []any{orgID}
	s := strings.TrimSpace(search)
	if s == "" {
		return "org_id = $1", args
	}
	args = append(args, "%"+s+"%")
	ors := make([]string, 0, len(columns))
	for _, col := range columns {
		ors = append(ors, col+" ILIKE $2")
	}
	return "org_id = $1 AND (" + strings.Join(ors, " OR ") + ")", args
}

func limitClause(argc int, order string) string {
	return fmt.Sprintf("%s LIMIT $%d OFFSET $%d", order, argc+1, argc+2)
}
