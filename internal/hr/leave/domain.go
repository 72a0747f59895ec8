package leave

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	lifecycle "github.com/odyssey-erp/odyssey-ledger/internal/sales/shared"
	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// DefaultAnnualDays is granted to employees created without an explicit allowance.
var DefaultAnnualDays = decimal.NewFromInt(14)

// Status enumerates leave request states.
type Status string

const (
	StatusDraft     Status = "DRAFT"
	StatusSubmitted Status = "SUBMITTED"
	StatusApproved  Status = "APPROVED"
	StatusRejected  Status = "REJECTED"
	StatusCancelled Status = "CANCELLED"
)

// Transitions is the leave request lifecycle.
var Transitions = lifecycle.NewTransitions(StatusDraft, map[Status][]Status{
	StatusDraft:     {StatusSubmitted, StatusCancelled},
	StatusSubmitted: {StatusApproved, StatusRejected, StatusCancelled},
}, StatusApproved, StatusRejected, StatusCancelled)

// blocking statuses take part in overlap checks.
var blocking = []Status{StatusSubmitted, StatusApproved}

// Employee is a person who can request leave.
type Employee struct {
	ID              uuid.UUID       `json:"id"`
	OrgID           uuid.UUID       `json:"org_id"`
	UserID          *uuid.UUID      `json:"user_id,omitempty"`
	Code            string          `json:"code"`
	FullName        string          `json:"full_name"`
	AnnualLeaveDays decimal.Decimal `json:"annual_leave_days_per_year"`
	IsActive        bool            `json:"is_active"`
	CreatedAt       time.Time       `json:"created_at"`
}

// LeaveType classifies requests.
type LeaveType struct {
	ID               uuid.UUID `json:"id"`
	OrgID            uuid.UUID `json:"org_id"`
	Code             string    `json:"code"`
	Name             string    `json:"name"`
	IsAnnual         bool      `json:"is_annual"`
	RequiresApproval bool      `json:"requires_approval"`
	CreatedAt        time.Time `json:"created_at"`
}

// Request is a leave request of an employee.
type Request struct {
	ID         uuid.UUID       `json:"id"`
	OrgID      uuid.UUID       `json:"org_id"`
	EmployeeID uuid.UUID       `json:"employee_id"`
	TypeID     uuid.UUID       `json:"type_id"`
	Status     Status          `json:"status"`
	StartDate  shared.Date     `json:"start_date"`
	EndDate    shared.Date     `json:"end_date"`
	Days       decimal.Decimal `json:"days"`
	Reason     string          `json:"reason,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
}

// Balance is the annual leave position of an employee for a year.
type Balance struct {
	EmployeeID uuid.UUID       `json:"employee_id"`
	Year       int             `json:"year"`
	Base       decimal.Decimal `json:"base"`
	Used       decimal.Decimal `json:"used"`
	Remaining  decimal.Decimal `json:"remaining"`
}

// Viewer scopes request reads. Non-admin viewers only see the requests of
// the employee linked to their user.
type Viewer struct {
	UserID uuid.UUID
	Admin  bool
}

// ViewerFrom derives the viewer of a principal.
func ViewerFrom(p shared.Principal) Viewer {
	return Viewer{UserID: p.UserID, Admin: p.IsAdmin()}
}

// RequestFilter narrows request listings.
type RequestFilter struct {
	EmployeeID *uuid.UUID
	TypeID     *uuid.UUID
	Status     Status
	From       *time.Time
	To         *time.Time
	// OwnerUserID restricts results to the employee linked to this user.
	OwnerUserID *uuid.UUID
}

// Days counts the calendar days of the inclusive range.
func Days(start, end time.Time) decimal.Decimal {
	return decimal.NewFromInt(int64(shared.DaysBetween(start, end) + 1))
}
