package quotations

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	sales "github.com/odyssey-erp/odyssey-ledger/internal/sales/shared"
	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// Status is the quote lifecycle state.
type Status = sales.QuoteStatus

// Quote is a priced offer to a partner.
type Quote struct {
	ID           uuid.UUID       `json:"id"`
	OrgID        uuid.UUID       `json:"org_id"`
	Number       string          `json:"number"`
	PartnerID    uuid.UUID       `json:"partner_id"`
	Currency     string          `json:"currency"`
	Status       Status          `json:"status"`
	IssueDate    shared.Date     `json:"issue_date"`
	ValidUntil   *shared.Date    `json:"valid_until,omitempty"`
	Notes        string          `json:"notes,omitempty"`
	DiscountRate decimal.Decimal `json:"discount_rate"`
	sales.Totals
	CreatedAt time.Time    `json:"created_at"`
	Items     []sales.Item `json:"items"`
}

// Ref identifies a quote across orgs, used by the expiry sweep.
type Ref struct {
	OrgID uuid.UUID
	ID    uuid.UUID
}

func (q *Quote) recalculate(inputs []sales.LineInput) {
	q.Items = sales.BuildItems(inputs)
	q.Totals = sales.CalculateTotals(q.Items, q.DiscountRate)
}
