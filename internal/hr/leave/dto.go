package leave

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// CreateEmployeeRequest is the payload for POST /hr/employees.
type CreateEmployeeRequest struct {
	Code            string           `json:"code" validate:"required,max=50"`
	FullName        string           `json:"full_name" validate:"required,max=200"`
	UserID          *uuid.UUID       `json:"user_id,omitempty"`
	AnnualLeaveDays *decimal.Decimal `json:"annual_leave_days_per_year,omitempty"`
}

// LeaveTypeRequest is the payload for creating or replacing a leave type.
type LeaveTypeRequest struct {
	Code             string `json:"code" validate:"required,max=50"`
	Name             string `json:"name" validate:"required,max=200"`
	IsAnnual         bool   `json:"is_annual"`
	RequiresApproval *bool  `json:"requires_approval,omitempty"`
}

// CreateRequest is the payload for POST /hr/leaves.
type CreateRequest struct {
	EmployeeID uuid.UUID   `json:"employee_id" validate:"required"`
	TypeID     uuid.UUID   `json:"type_id" validate:"required"`
	StartDate  shared.Date `json:"start_date"`
	EndDate    shared.Date `json:"end_date"`
	Reason     string      `json:"reason,omitempty" validate:"max=2000"`
}

// UpdateRequest changes a DRAFT request.
type UpdateRequest struct {
	TypeID    *uuid.UUID   `json:"type_id,omitempty"`
	StartDate *shared.Date `json:"start_date,omitempty"`
	EndDate   *shared.Date `json:"end_date,omitempty"`
	Reason    *string      `json:"reason,omitempty" validate:"omitempty,max=2000"`
}

// StatusRequest asks for a status transition.
type StatusRequest struct {
	Status Status `json:"status" validate:"required"`
}
