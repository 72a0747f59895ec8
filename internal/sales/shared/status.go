package shared

import (
	"fmt"

	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// QuoteStatus enumerates quote lifecycle states.
type QuoteStatus string

const (
	QuoteDraft    QuoteStatus = "DRAFT"
	QuoteSent     QuoteStatus = "SENT"
	QuoteApproved QuoteStatus = "APPROVED"
	QuoteRejected QuoteStatus = "REJECTED"
	QuoteExpired  QuoteStatus = "EXPIRED"
)

// OrderStatus enumerates sales order lifecycle states.
type OrderStatus string

const (
	OrderNew       OrderStatus = "NEW"
	OrderConfirmed OrderStatus = "CONFIRMED"
	OrderFulfilled OrderStatus = "FULFILLED"
	OrderCancelled OrderStatus = "CANCELLED"
)

// InvoiceStatus enumerates sales invoice lifecycle states.
type InvoiceStatus string

const (
	InvoiceDraft     InvoiceStatus = "DRAFT"
	InvoiceIssued    InvoiceStatus = "ISSUED"
	InvoicePaid      InvoiceStatus = "PAID"
	InvoiceCancelled InvoiceStatus = "CANCELLED"
)

// Transitions is an explicit allow-list of status changes. States without
// an entry are terminal.
type Transitions[S ~string] struct {
	initial S
	allowed map[S][]S
	known   map[S]struct{}
}

// NewTransitions builds a table from its initial state and allowed edges.
func NewTransitions[S ~string](initial S, allowed map[S][]S, terminal ...S) Transitions[S] {
	known := map[S]struct{}{initial: {}}
	for from, targets := range allowed {
		known[from] = struct{}{}
		for _, to := range targets {
			known[to] = struct{}{}
		}
	}
	for _, s := range terminal {
		known[s] = struct{}{}
	}
	return Transitions[S]{initial: initial, allowed: allowed, known: known}
}

// Initial returns the state new documents start in.
func (t Transitions[S]) Initial() S { return t.initial }

// Known reports whether s is a member of the enum.
func (t Transitions[S]) Known(s S) bool {
	_, ok := t.known[s]
	return ok
}

// Allows reports whether from→to is listed.
func (t Transitions[S]) Allows(from, to S) bool {
	for _, candidate := range t.allowed[from] {
		if candidate == to {
			return true
		}
	}
	return false
}

// Check returns invalid_status unless from→to is listed.
func (t Transitions[S]) Check(from, to S) error {
	if !t.Known(to) {
		return fmt.Errorf("%w: unknown status %q", shared.ErrInvalidStatus, to)
	}
	if !t.Allows(from, to) {
		return fmt.Errorf("%w: %s -> %s not allowed", shared.ErrInvalidStatus, from, to)
	}
	return nil
}

// Editable returns immutable_state unless the document is in its initial state.
func (t Transitions[S]) Editable(current S) error {
	if current != t.initial {
		return fmt.Errorf("%w: document is %s", shared.ErrImmutableState, current)
	}
	return nil
}

var (
	// QuoteTransitions is the quote lifecycle.
	QuoteTransitions = NewTransitions(QuoteDraft, map[QuoteStatus][]QuoteStatus{
		QuoteDraft: {QuoteSent, QuoteApproved, QuoteRejected},
		QuoteSent:  {QuoteApproved, QuoteRejected, QuoteExpired},
	}, QuoteApproved, QuoteRejected, QuoteExpired)

	// OrderTransitions is the sales order lifecycle.
	OrderTransitions = NewTransitions(OrderNew, map[OrderStatus][]OrderStatus{
		OrderNew:       {OrderConfirmed, OrderCancelled},
		OrderConfirmed: {OrderFulfilled, OrderCancelled},
	}, OrderFulfilled, OrderCancelled)

	// InvoiceTransitions is the sales invoice lifecycle.
	InvoiceTransitions = NewTransitions(InvoiceDraft, map[InvoiceStatus][]InvoiceStatus{
		InvoiceDraft:  {InvoiceIssued, InvoiceCancelled},
		InvoiceIssued: {InvoicePaid, InvoiceCancelled},
	}, InvoicePaid, InvoiceCancelled)
)
