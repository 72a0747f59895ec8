package invoices

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	sales "github.com/odyssey-erp/odyssey-ledger/internal/sales/shared"
	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// CreateInvoiceRequest is the payload for POST /sales/invoices. Items may be
// omitted when order_id is set; the order's items are copied then.
type CreateInvoiceRequest struct {
	PartnerID    uuid.UUID         `json:"partner_id" validate:"required"`
	OrderID      *uuid.UUID        `json:"order_id,omitempty"`
	Currency     string            `json:"currency" validate:"omitempty,len=3"`
	IssueDate    *shared.Date      `json:"issue_date,omitempty"`
	Notes        string            `json:"notes,omitempty" validate:"max=2000"`
	DiscountRate decimal.Decimal   `json:"discount_rate"`
	Items        []sales.LineInput `json:"items,omitempty" validate:"omitempty,dive"`
}

// UpdateInvoiceRequest replaces the editable fields of a DRAFT invoice.
type UpdateInvoiceRequest struct {
	Notes        *string            `json:"notes,omitempty" validate:"omitempty,max=2000"`
	DiscountRate *decimal.Decimal   `json:"discount_rate,omitempty"`
	Items        *[]sales.LineInput `json:"items,omitempty" validate:"omitempty,min=1,dive"`
}

// StatusRequest asks for a status transition.
type StatusRequest struct {
	Status Status `json:"status" validate:"required"`
}

// ListFilter narrows invoice listings.
type ListFilter struct {
	Search    string
	Status    Status
	PartnerID *uuid.UUID
}
