package shared

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

func TestQuoteTransitionsClosure(t *testing.T) {
	all := []QuoteStatus{QuoteDraft, QuoteSent, QuoteApproved, QuoteRejected, QuoteExpired}
	allowed := map[QuoteStatus]map[QuoteStatus]bool{
		QuoteDraft: {QuoteSent: true, QuoteApproved: true, QuoteRejected: true},
		QuoteSent:  {QuoteApproved: true, QuoteRejected: true, QuoteExpired: true},
	}
	for _, from := range all {
		for _, to := range all {
			err := QuoteTransitions.Check(from, to)
			if allowed[from][to] {
				require.NoErrorf(t, err, "%s -> %s", from, to)
			} else {
				require.ErrorIsf(t, err, shared.ErrInvalidStatus, "%s -> %s", from, to)
			}
		}
	}
}

func TestOrderTransitionsClosure(t *testing.T) {
	all := []OrderStatus{OrderNew, OrderConfirmed, OrderFulfilled, OrderCancelled}
	allowed := map[OrderStatus]map[OrderStatus]bool{
		OrderNew:       {OrderConfirmed: true, OrderCancelled: true},
		OrderConfirmed: {OrderFulfilled: true, OrderCancelled: true},
	}
	for _, from := range all {
		for _, to := range all {
			err := OrderTransitions.Check(from, to)
			if allowed[from][to] {
				require.NoError(t, err)
			} else {
				require.ErrorIs(t, err, shared.ErrInvalidStatus)
			}
		}
	}
}

func TestInvoiceTransitionsClosure(t *testing.T) {
	all := []InvoiceStatus{InvoiceDraft, InvoiceIssued, InvoicePaid, InvoiceCancelled}
	allowed := map[InvoiceStatus]map[InvoiceStatus]bool{
		InvoiceDraft:  {InvoiceIssued: true, InvoiceCancelled: true},
		InvoiceIssued: {InvoicePaid: true, InvoiceCancelled: true},
	}
	for _, from := range all {
		for _, to := range all {
			err := InvoiceTransitions.Check(from, to)
			if allowed[from][to] {
				require.NoError(t, err)
			} else {
				require.ErrorIs(t, err, shared.ErrInvalidStatus)
			}
		}
	}
}

func TestUnknownStatusAndEditable(t *testing.T) {
	require.ErrorIs(t, InvoiceTransitions.Check(InvoiceDraft, "VOID"), shared.ErrInvalidStatus)
	require.False(t, OrderTransitions.Known("SHIPPED"))

	require.NoError(t, QuoteTransitions.Editable(QuoteDraft))
	require.ErrorIs(t, QuoteTransitions.Editable(QuoteSent), shared.ErrImmutableState)
	require.NoError(t, OrderTransitions.Editable(OrderNew))
	require.ErrorIs(t, InvoiceTransitions.Editable(InvoiceIssued), shared.ErrImmutableState)
}

func TestFormatNumber(t *testing.T) {
	require.Equal(t, "I-2026-00042", FormatNumber(PrefixInvoice, 2026, 42))
	require.Equal(t, "Q-2025-123456", FormatNumber(PrefixQuote, 2025, 123456))
}
