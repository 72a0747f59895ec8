package leave

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service implements leave management.
type Service struct {
	repo   Repository
	audit  AuditPort
	logger *slog.Logger
	now    func() time.Time
}

// NewService constructs Service. audit may be nil.
func NewService(repo Repository, audit AuditPort, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, audit: audit, logger: logger, now: time.Now}
}

// CreateEmployee registers an active employee.
func (s *Service) CreateEmployee(ctx context.Context, orgID uuid.UUID, req CreateEmployeeRequest) (Employee, error) {
	days := DefaultAnnualDays
	if req.AnnualLeaveDays != nil {
		days = *req.AnnualLeaveDays
	}
	if days.IsNegative() {
		return Employee{}, fmt.Errorf("%w: annual_leave_days_per_year must not be negative", httpx.ErrValidation)
	}
	return s.repo.CreateEmployee(ctx, Employee{
		OrgID:           orgID,
		UserID:          req.UserID,
		Code:            strings.TrimSpace(req.Code),
		FullName:        strings.TrimSpace(req.FullName),
		AnnualLeaveDays: days,
	})
}

// GetEmployee loads an employee of the org.
func (s *Service) GetEmployee(ctx context.Context, orgID, id uuid.UUID) (Employee, error) {
	return s.repo.GetEmployee(ctx, orgID, id)
}

// ListEmployees pages through employees.
func (s *Service) ListEmployees(ctx context.Context, orgID uuid.UUID, search string, page shared.Page) (shared.ListResult[Employee], error) {
	items, total, err := s.repo.ListEmployees(ctx, orgID, search, page)
	if err != nil {
		return shared.ListResult[Employee]{}, err
	}
	return shared.ListResult[Employee]{Items: items, Pagination: shared.NewPagination(page, total)}, nil
}

// CreateType registers a leave type. Codes are unique per org.
func (s *Service) CreateType(ctx context.Context, orgID uuid.UUID, req LeaveTypeRequest) (LeaveType, error) {
	return s.repo.CreateType(ctx, typeFromRequest(orgID, req))
}

func typeFromRequest(orgID uuid.UUID, req LeaveTypeRequest) LeaveType {
	requiresApproval := true
	if req.RequiresApproval != nil {
		requiresApproval = *req.RequiresApproval
	}
	return LeaveType{
		OrgID:            orgID,
		Code:             strings.TrimSpace(req.Code),
		Name:             strings.TrimSpace(req.Name),
		IsAnnual:         req.IsAnnual,
		RequiresApproval: requiresApproval,
	}
}

// GetType loads a leave type.
func (s *Service) GetType(ctx context.Context, orgID, id uuid.UUID) (LeaveType, error) {
	return s.repo.GetType(ctx, orgID, id)
}

// ListTypes pages through leave types.
func (s *Service) ListTypes(ctx context.Context, orgID uuid.UUID, search string, page shared.Page) (shared.ListResult[LeaveType], error) {
	items, total, err := s.repo.ListTypes(ctx, orgID, search, page)
	if err != nil {
		return shared.ListResult[LeaveType]{}, err
	}
	return shared.ListResult[LeaveType]{Items: items, Pagination: shared.NewPagination(page, total)}, nil
}

// UpdateType replaces a leave type.
func (s *Service) UpdateType(ctx context.Context, orgID, id uuid.UUID, req LeaveTypeRequest) (LeaveType, error) {
	var updated LeaveType
	err := s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		current, err := repo.GetType(ctx, orgID, id)
		if err != nil {
			return err
		}
		updated = typeFromRequest(orgID, req)
		updated.ID, updated.CreatedAt = current.ID, current.CreatedAt
		return repo.UpdateType(ctx, updated)
	})
	return updated, err
}

// DeleteType removes a leave type that no request references.
func (s *Service) DeleteType(ctx context.Context, orgID, id uuid.UUID) error {
	return s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		if _, err := repo.GetType(ctx, orgID, id); err != nil {
			return err
		}
		used, err := repo.TypeInUse(ctx, id)
		if err != nil {
			return err
		}
		if used {
			return fmt.Errorf("%w: leave type has requests", shared.ErrInUse)
		}
		return repo.DeleteType(ctx, orgID, id)
	})
}

func checkRange(start, end shared.Date) error {
	if start.IsZero() || end.IsZero() {
		return fmt.Errorf("%w: start_date and end_date are required", httpx.ErrValidation)
	}
	if start.After(end.Time) {
		return fmt.Errorf("%w: start_date after end_date", shared.ErrInvalidDates)
	}
	return nil
}

func checkOverlap(ctx context.Context, repo Repository, r Request) error {
	overlap, err := repo.Overlaps(ctx, r.EmployeeID, r.StartDate.Time, r.EndDate.Time, r.ID)
	if err != nil {
		return err
	}
	if overlap {
		return fmt.Errorf("%w: %s..%s intersects an active request", shared.ErrOverlap,
			r.StartDate.Format(shared.DateLayout), r.EndDate.Format(shared.DateLayout))
	}
	return nil
}

// CreateRequest opens a DRAFT request.
func (s *Service) CreateRequest(ctx context.Context, orgID uuid.UUID, req CreateRequest) (Request, error) {
	if err := checkRange(req.StartDate, req.EndDate); err != nil {
		return Request{}, err
	}
	r := Request{
		OrgID:      orgID,
		EmployeeID: req.EmployeeID,
		TypeID:     req.TypeID,
		Status:     Transitions.Initial(),
		StartDate:  shared.NewDate(req.StartDate.Time),
		EndDate:    shared.NewDate(req.EndDate.Time),
		Reason:     strings.TrimSpace(req.Reason),
	}
	r.Days = Days(r.StartDate.Time, r.EndDate.Time)
	err := s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		if _, err := repo.LockEmployee(ctx, orgID, r.EmployeeID); err != nil {
			return err
		}
		if _, err := repo.GetType(ctx, orgID, r.TypeID); err != nil {
			return err
		}
		if err := checkOverlap(ctx, repo, r); err != nil {
			return err
		}
		return repo.InsertRequest(ctx, &r)
	})
	if err != nil {
		return Request{}, err
	}
	s.record(ctx, "leave.create", r)
	return r, nil
}

// GetRequest loads a request visible to the viewer.
func (s *Service) GetRequest(ctx context.Context, orgID uuid.UUID, viewer Viewer, id uuid.UUID) (Request, error) {
	return s.repo.GetRequest(ctx, orgID, id, ownerOf(viewer))
}

// ListRequests pages through requests visible to the viewer.
func (s *Service) ListRequests(ctx context.Context, orgID uuid.UUID, viewer Viewer, filter RequestFilter, page shared.Page) (shared.ListResult[Request], error) {
	if filter.From != nil && filter.To != nil && filter.From.After(*filter.To) {
		return shared.ListResult[Request]{}, fmt.Errorf("%w: from after to", shared.ErrInvalidDates)
	}
	filter.OwnerUserID = ownerOf(viewer)
	items, total, err := s.repo.ListRequests(ctx, orgID, filter, page)
	if err != nil {
		return shared.ListResult[Request]{}, err
	}
	return shared.ListResult[Request]{Items: items, Pagination: shared.NewPagination(page, total)}, nil
}

func ownerOf(v Viewer) *uuid.UUID {
	if v.Admin {
		return nil
	}
	id := v.UserID
	return &id
}

// UpdateRequest edits a DRAFT request, re-checking dates and overlap.
func (s *Service) UpdateRequest(ctx context.Context, orgID, id uuid.UUID, req UpdateRequest) (Request, error) {
	var r Request
	err := s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		current, err := repo.GetRequestForUpdate(ctx, orgID, id)
		if err != nil {
			return err
		}
		if err := Transitions.Editable(current.Status); err != nil {
			return err
		}
		if _, err := repo.LockEmployee(ctx, orgID, current.EmployeeID); err != nil {
			return err
		}
		r = current
		if req.TypeID != nil {
			if _, err := repo.GetType(ctx, orgID, *req.TypeID); err != nil {
				return err
			}
			r.TypeID = *req.TypeID
		}
		if req.StartDate != nil {
			r.StartDate = shared.NewDate(req.StartDate.Time)
		}
		if req.EndDate != nil {
			r.EndDate = shared.NewDate(req.EndDate.Time)
		}
		if req.Reason != nil {
			r.Reason = strings.TrimSpace(*req.Reason)
		}
		if err := checkRange(r.StartDate, r.EndDate); err != nil {
			return err
		}
		r.Days = Days(r.StartDate.Time, r.EndDate.Time)
		if err := checkOverlap(ctx, repo, r); err != nil {
			return err
		}
		return repo.UpdateRequest(ctx, r)
	})
	if err != nil {
		return Request{}, err
	}
	s.record(ctx, "leave.update", r)
	return r, nil
}

// Transition moves a request along its lifecycle. Submitting re-checks
// overlap; approving an annual request checks the remaining balance.
func (s *Service) Transition(ctx context.Context, orgID, id uuid.UUID, to Status) (Request, error) {
	var r Request
	err := s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		current, err := repo.GetRequestForUpdate(ctx, orgID, id)
		if err != nil {
			return err
		}
		if err := Transitions.Check(current.Status, to); err != nil {
			return err
		}
		employee, err := repo.LockEmployee(ctx, orgID, current.EmployeeID)
		if err != nil {
			return err
		}
		switch to {
		case StatusSubmitted:
			if err := checkOverlap(ctx, repo, current); err != nil {
				return err
			}
		case StatusApproved:
			if err := s.checkBalance(ctx, repo, employee, current); err != nil {
				return err
			}
		}
		if err := repo.UpdateRequestStatus(ctx, current.ID, to); err != nil {
			return err
		}
		r = current
		r.Status = to
		return nil
	})
	if err != nil {
		return Request{}, err
	}
	s.record(ctx, "leave.status", r)
	return r, nil
}

func (s *Service) checkBalance(ctx context.Context, repo Repository, employee Employee, r Request) error {
	leaveType, err := repo.GetType(ctx, r.OrgID, r.TypeID)
	if err != nil {
		return err
	}
	if !leaveType.IsAnnual {
		return nil
	}
	balance, err := balanceOf(ctx, repo, employee, r.StartDate.Year())
	if err != nil {
		return err
	}
	if r.Days.GreaterThan(balance.Remaining) {
		return fmt.Errorf("%w: requested %s days, %s remaining", shared.ErrInsufficientBalance, r.Days, balance.Remaining)
	}
	return nil
}

// Balance reports the annual leave position of an employee. A zero year means the current one.
func (s *Service) Balance(ctx context.Context, orgID, employeeID uuid.UUID, year int) (Balance, error) {
	if year == 0 {
		year = s.now().UTC().Year()
	}
	employee, err := s.repo.GetEmployee(ctx, orgID, employeeID)
	if err != nil {
		return Balance{}, err
	}
	return balanceOf(ctx, s.repo, employee, year)
}

func balanceOf(ctx context.Context, repo Repository, employee Employee, year int) (Balance, error) {
	used, err := repo.UsedAnnualDays(ctx, employee.ID, year)
	if err != nil {
		return Balance{}, err
	}
	remaining := decimal.Max(decimal.Zero, employee.AnnualLeaveDays.Sub(used))
	return Balance{EmployeeID: employee.ID, Year: year, Base: employee.AnnualLeaveDays, Used: used, Remaining: remaining}, nil
}

func (s *Service) record(ctx context.Context, action string, r Request) {
	if s.audit == nil {
		return
	}
	actor, org := shared.ActorFromContext(ctx)
	err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actor,
		OrgID:    org,
		Action:   action,
		Entity:   "leave_request",
		EntityID: r.ID.String(),
		Meta: map[string]any{
			"employee_id": r.EmployeeID.String(),
			"status":      r.Status,
			"days":        r.Days.String(),
		},
	})
	if err != nil {
		s.logger.Warn("audit leave request", slog.String("action", action), slog.Any("error", err))
	}
}
