package invoices

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	sales "github.com/odyssey-erp/odyssey-ledger/internal/sales/shared"
	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// Status is the sales invoice lifecycle state.
type Status = sales.InvoiceStatus

// Invoice is a bill to a partner. Issuing it opens a receivable.
type Invoice struct {
	ID           uuid.UUID       `json:"id"`
	OrgID        uuid.UUID       `json:"org_id"`
	Number       string          `json:"number"`
	PartnerID    uuid.UUID       `json:"partner_id"`
	OrderID      *uuid.UUID      `json:"order_id,omitempty"`
	Currency     string          `json:"currency"`
	Status       Status          `json:"status"`
	IssueDate    shared.Date     `json:"issue_date"`
	Notes        string          `json:"notes,omitempty"`
	DiscountRate decimal.Decimal `json:"discount_rate"`
	sales.Totals
	CreatedAt time.Time    `json:"created_at"`
	Items     []sales.Item `json:"items"`
}

func (i *Invoice) recalculate(inputs []sales.LineInput) {
	i.Items = sales.BuildItems(inputs)
	i.Totals = sales.CalculateTotals(i.Items, i.DiscountRate)
}

func (i Invoice) issuedEvent() sales.InvoiceIssuedEvent {
	return sales.InvoiceIssuedEvent{
		OrgID:      i.OrgID,
		InvoiceID:  i.ID,
		PartnerID:  i.PartnerID,
		Number:     i.Number,
		IssueDate:  i.IssueDate.Time,
		GrandTotal: i.GrandTotal,
		Currency:   i.Currency,
	}
}
