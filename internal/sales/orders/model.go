package orders

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	sales "github.com/odyssey-erp/odyssey-ledger/internal/sales/shared"
	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// Status is the sales order lifecycle state.
type Status = sales.OrderStatus

// SalesOrder is a confirmed intent to ship goods to a partner.
type SalesOrder struct {
	ID           uuid.UUID       `json:"id"`
	OrgID        uuid.UUID       `json:"org_id"`
	Number       string          `json:"number"`
	PartnerID    uuid.UUID       `json:"partner_id"`
	QuoteID      *uuid.UUID      `json:"quote_id,omitempty"`
	Currency     string          `json:"currency"`
	Status       Status          `json:"status"`
	OrderDate    shared.Date     `json:"order_date"`
	Notes        string          `json:"notes,omitempty"`
	DiscountRate decimal.Decimal `json:"discount_rate"`
	sales.Totals
	CreatedAt time.Time    `json:"created_at"`
	Items     []sales.Item `json:"items"`
}

func (o *SalesOrder) recalculate(inputs []sales.LineInput) {
	o.Items = sales.BuildItems(inputs)
	o.Totals = sales.CalculateTotals(o.Items, o.DiscountRate)
}
