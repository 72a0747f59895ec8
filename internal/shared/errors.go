package shared

import "errors"

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrUnauthenticated indicates a missing or invalid principal.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrForbidden indicates the principal lacks the required role.
	ErrForbidden = errors.New("forbidden")
)

// Condition is a named business rule violation surfaced to clients by code.
type Condition string

func (c Condition) Error() string { return string(c) }

// Code returns the machine readable condition name.
func (c Condition) Code() string { return string(c) }

// State-conflict conditions raised by the ledger services.
const (
	ErrInvalidStatus               Condition = "invalid_status"
	ErrImmutableState              Condition = "immutable_state"
	ErrInsufficientStock           Condition = "insufficient_stock"
	ErrUnsettledBalance            Condition = "unsettled_balance"
	ErrAllocatedInvoice            Condition = "allocated_invoice"
	ErrOverallocation              Condition = "overallocation"
	ErrInvalidInvoiceForAllocation Condition = "invalid_invoice_for_allocation"
	ErrOverlap                     Condition = "overlap"
	ErrInsufficientBalance         Condition = "insufficient_balance"
	ErrInUse                       Condition = "in_use"
)

// Input conditions that depend on stored state rather than request shape.
const (
	ErrOrderNotFound     Condition = "order_not_found"
	ErrPartnerMismatch   Condition = "partner_mismatch"
	ErrInvalidDates      Condition = "invalid_dates"
	ErrAmountNonPositive Condition = "amount_nonpositive"
	ErrNoWarehouse       Condition = "no_warehouse"
	ErrInactivePartner   Condition = "inactive_partner"
	ErrUnknownProduct    Condition = "unknown_product"
)

// IsConflict reports whether the condition is a state conflict.
func (c Condition) IsConflict() bool {
	switch c {
	case ErrInvalidStatus, ErrImmutableState, ErrInsufficientStock, ErrUnsettledBalance,
		ErrAllocatedInvoice, ErrOverallocation, ErrInvalidInvoiceForAllocation,
		ErrOverlap, ErrInsufficientBalance, ErrInUse:
		return true
	}
	return false
}
