package quotations

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	sales "github.com/odyssey-erp/odyssey-ledger/internal/sales/shared"
	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// CreateQuoteRequest is the payload for POST /sales/quotes.
type CreateQuoteRequest struct {
	PartnerID    uuid.UUID         `json:"partner_id" validate:"required"`
	Currency     string            `json:"currency" validate:"omitempty,len=3"`
	IssueDate    *shared.Date      `json:"issue_date,omitempty"`
	ValidUntil   *shared.Date      `json:"valid_until,omitempty"`
	Notes        string            `json:"notes,omitempty" validate:"max=2000"`
	DiscountRate decimal.Decimal   `json:"discount_rate"`
	Items        []sales.LineInput `json:"items" validate:"required,min=1,dive"`
}

// UpdateQuoteRequest replaces the editable fields of a DRAFT quote.
type UpdateQuoteRequest struct {
	Notes        *string            `json:"notes,omitempty" validate:"omitempty,max=2000"`
	DiscountRate *decimal.Decimal   `json:"discount_rate,omitempty"`
	ValidUntil   *shared.Date       `json:"valid_until,omitempty"`
	Items        *[]sales.LineInput `json:"items,omitempty" validate:"omitempty,min=1,dive"`
}

// StatusRequest asks for a status transition.
type StatusRequest struct {
	Status Status `json:"status" validate:"required"`
}

// ListFilter narrows quote listings.
type ListFilter struct {
	Search    string
	Status    Status
	PartnerID *uuid.UUID
}
