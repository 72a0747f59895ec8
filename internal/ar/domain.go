package ar

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	sales "github.com/odyssey-erp/odyssey-ledger/internal/sales/shared"
	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// EntryType enumerates receivable ledger entry kinds.
type EntryType string

const (
	EntryInvoice    EntryType = "INVOICE"
	EntryPayment    EntryType = "PAYMENT"
	EntryRefund     EntryType = "REFUND"
	EntryAdjustment EntryType = "ADJUSTMENT"
)

// Entry is one line of the partner's receivable ledger.
type Entry struct {
	ID        uuid.UUID       `json:"id"`
	OrgID     uuid.UUID       `json:"org_id"`
	PartnerID uuid.UUID       `json:"partner_id"`
	InvoiceID *uuid.UUID      `json:"invoice_id,omitempty"`
	EntryDate shared.Date     `json:"entry_date"`
	Type      EntryType       `json:"type"`
	Amount    decimal.Decimal `json:"amount"`
	Currency  string          `json:"currency"`
	Note      string          `json:"note,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// Allocation applies part of an entry to an invoice.
type Allocation struct {
	ID        uuid.UUID
	EntryID   uuid.UUID
	InvoiceID uuid.UUID
	Amount    decimal.Decimal
}

// InvoiceState is an invoice seen from the receivable side. Allocated is
// net of refunds.
type InvoiceState struct {
	ID         uuid.UUID
	PartnerID  uuid.UUID
	Number     string
	Status     sales.InvoiceStatus
	IssueDate  time.Time
	CreatedAt  time.Time
	GrandTotal decimal.Decimal
	Allocated  decimal.Decimal
}

// Remaining is the amount still owed on the invoice.
func (s InvoiceState) Remaining() decimal.Decimal {
	return s.GrandTotal.Sub(s.Allocated)
}

// InvoiceQuery selects invoices for balance and aging reads.
type InvoiceQuery struct {
	PartnerID        *uuid.UUID
	Statuses         []sales.InvoiceStatus
	ExcludeCancelled bool
}

// AllocationRequest targets one invoice explicitly.
type AllocationRequest struct {
	InvoiceID uuid.UUID       `json:"invoice_id" validate:"required"`
	Amount    decimal.Decimal `json:"amount"`
}

// PaymentRequest is the payload for POST /finance/ar/payments.
type PaymentRequest struct {
	PartnerID   uuid.UUID           `json:"partner_id" validate:"required"`
	Amount      decimal.Decimal     `json:"amount"`
	Currency    string              `json:"currency" validate:"omitempty,len=3"`
	Note        string              `json:"note,omitempty" validate:"max=500"`
	EntryDate   *shared.Date        `json:"entry_date,omitempty"`
	Allocations []AllocationRequest `json:"allocations,omitempty" validate:"omitempty,dive"`
}

// AppliedAllocation reports what a payment settled on one invoice.
type AppliedAllocation struct {
	InvoiceID      uuid.UUID       `json:"invoice_id"`
	Amount         decimal.Decimal `json:"amount"`
	RemainingAfter decimal.Decimal `json:"remaining_after"`
}

// PaymentResult is the outcome of PostPayment.
type PaymentResult struct {
	EntryID         uuid.UUID           `json:"entry_id"`
	Applied         []AppliedAllocation `json:"applied"`
	UnappliedAmount decimal.Decimal     `json:"unapplied_amount"`
}

// InvoiceBalance is one row of a partner balance.
type InvoiceBalance struct {
	InvoiceID   uuid.UUID           `json:"invoice_id"`
	Number      string              `json:"number"`
	Status      sales.InvoiceStatus `json:"status"`
	IssuedTotal decimal.Decimal     `json:"issued_total"`
	Allocated   decimal.Decimal     `json:"allocated"`
	Remaining   decimal.Decimal     `json:"remaining"`
}

// PartnerBalance summarises what a partner owes.
type PartnerBalance struct {
	PartnerID uuid.UUID        `json:"partner_id"`
	Currency  string           `json:"currency"`
	TotalDue  decimal.Decimal  `json:"total_due"`
	ByInvoice []InvoiceBalance `json:"by_invoice"`
}

// AgingBuckets holds open receivables by days since issue.
type AgingBuckets struct {
	Days0To30  decimal.Decimal `json:"0_30"`
	Days31To60 decimal.Decimal `json:"31_60"`
	Days61To90 decimal.Decimal `json:"61_90"`
	Over90     decimal.Decimal `json:"90_plus"`
}

// Add puts amount into the bucket for age days.
func (b *AgingBuckets) Add(age int, amount decimal.Decimal) {
	switch {
	case age <= 30:
		b.Days0To30 = b.Days0To30.Add(amount)
	case age <= 60:
		b.Days31To60 = b.Days31To60.Add(amount)
	case age <= 90:
		b.Days61To90 = b.Days61To90.Add(amount)
	default:
		b.Over90 = b.Over90.Add(amount)
	}
}

// Total sums all buckets.
func (b AgingBuckets) Total() decimal.Decimal {
	return b.Days0To30.Add(b.Days31To60).Add(b.Days61To90).Add(b.Over90)
}

// AgingReport is the aging of ISSUED invoices as of a date.
type AgingReport struct {
	AsOf    shared.Date     `json:"as_of"`
	Buckets AgingBuckets    `json:"buckets"`
	Total   decimal.Decimal `json:"total"`
}

// EntryFilter narrows ledger entry listings.
type EntryFilter struct {
	PartnerID uuid.UUID
	From      *time.Time
	To        *time.Time
}
