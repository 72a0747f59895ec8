package shared

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// InvoiceIssuedEvent is emitted when an invoice moves DRAFT→ISSUED.
type InvoiceIssuedEvent struct {
	OrgID      uuid.UUID
	InvoiceID  uuid.UUID
	PartnerID  uuid.UUID
	Number     string
	IssueDate  time.Time
	GrandTotal decimal.Decimal
	Currency   string
}

// FulfillmentLine is one order line to ship.
type FulfillmentLine struct {
	ProductID uuid.UUID
	Quantity  decimal.Decimal
}

// FulfillmentRequested is emitted when an order moves CONFIRMED→FULFILLED.
type FulfillmentRequested struct {
	OrgID       uuid.UUID
	OrderID     uuid.UUID
	OrderNumber string
	Lines       []FulfillmentLine
}

// FulfillmentFromItems carries one line per order item, in item order.
// Availability is checked per product by the stock ledger.
func FulfillmentFromItems(orgID, orderID uuid.UUID, number string, items []Item) FulfillmentRequested {
	evt := FulfillmentRequested{OrgID: orgID, OrderID: orderID, OrderNumber: number}
	evt.Lines = make([]FulfillmentLine, 0, len(items))
	for _, item := range items {
		evt.Lines = append(evt.Lines, FulfillmentLine{ProductID: item.ProductID, Quantity: item.Quantity})
	}
	return evt
}

// IssuanceHandler records receivables for issued invoices.
type IssuanceHandler interface {
	HandleInvoiceIssued(ctx context.Context, evt InvoiceIssuedEvent) (uuid.UUID, error)
}

// SettlementReader answers allocation questions for the invoice state machine.
type SettlementReader interface {
	Remaining(ctx context.Context, orgID, invoiceID uuid.UUID) (decimal.Decimal, error)
	HasAllocations(ctx context.Context, orgID, invoiceID uuid.UUID) (bool, error)
}

// FulfillmentHandler writes the stock movements of a fulfilled order.
type FulfillmentHandler interface {
	HandleFulfillment(ctx context.Context, evt FulfillmentRequested) error
}

// ChangeNotifier is told when ledger state that feeds cached views changes.
type ChangeNotifier interface {
	Bump(ctx context.Context) error
}
