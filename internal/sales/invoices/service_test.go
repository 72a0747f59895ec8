package invoices

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-ledger/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-ledger/internal/sales/orders"
	sales "github.com/odyssey-erp/odyssey-ledger/internal/sales/shared"
	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
	_ "github.com/odyssey-erp/odyssey-ledger/internal/testing/guard"
)

type memoryInvoiceRepo struct {
	mu       sync.Mutex
	invoices map[uuid.UUID]Invoice
	seq      int64
}

func newMemoryInvoiceRepo() *memoryInvoiceRepo {
	return &memoryInvoiceRepo{invoices: map[uuid.UUID]Invoice{}}
}

// WithTx restores the previous state when fn fails.
func (m *memoryInvoiceRepo) WithTx(ctx context.Context, fn func(context.Context, Repository) error) error {
	m.mu.Lock()
	snapshot := make(map[uuid.UUID]Invoice, len(m.invoices))
	for id, inv := range m.invoices {
		snapshot[id] = inv
	}
	m.mu.Unlock()
	if err := fn(ctx, m); err != nil {
		m.mu.Lock()
		m.invoices = snapshot
		m.mu.Unlock()
		return err
	}
	return nil
}

func (m *memoryInvoiceRepo) NextNumber(_ context.Context, date time.Time) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	return sales.FormatNumber(sales.PrefixInvoice, date.Year(), m.seq), nil
}

func (m *memoryInvoiceRepo) Insert(_ context.Context, inv *Invoice) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	inv.ID = uuid.New()
	inv.CreatedAt = time.Now()
	m.invoices[inv.ID] = cloneInvoice(*inv)
	return nil
}

func (m *memoryInvoiceRepo) Get(_ context.Context, orgID, id uuid.UUID) (Invoice, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	inv, ok := m.invoices[id]
	if !ok || inv.OrgID != orgID {
		return Invoice{}, shared.ErrNotFound
	}
	return cloneInvoice(inv), nil
}

func (m *memoryInvoiceRepo) GetForUpdate(ctx context.Context, orgID, id uuid.UUID) (Invoice, error) {
	return m.Get(ctx, orgID, id)
}

func (m *memoryInvoiceRepo) Update(_ context.Context, inv Invoice, replaceItems bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored := m.invoices[inv.ID]
	inv.Status = stored.Status
	if !replaceItems {
		inv.Items = stored.Items
	}
	m.invoices[inv.ID] = cloneInvoice(inv)
	return nil
}

func (m *memoryInvoiceRepo) UpdateStatus(_ context.Context, id uuid.UUID, status Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	inv := m.invoices[id]
	inv.Status = status
	m.invoices[id] = inv
	return nil
}

func (m *memoryInvoiceRepo) List(_ context.Context, orgID uuid.UUID, _ ListFilter, _ shared.Page) ([]Invoice, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Invoice
	for _, inv := range m.invoices {
		if inv.OrgID == orgID {
			out = append(out, inv)
		}
	}
	return out, len(out), nil
}

func cloneInvoice(inv Invoice) Invoice {
	inv.Items = append([]sales.Item(nil), inv.Items...)
	return inv
}

type stubRefs struct{}

func (stubRefs) CheckPartner(context.Context, uuid.UUID, uuid.UUID) error    { return nil }
func (stubRefs) CheckProducts(context.Context, uuid.UUID, []uuid.UUID) error { return nil }

type stubOrders map[uuid.UUID]orders.SalesOrder

func (s stubOrders) Get(_ context.Context, orgID, id uuid.UUID) (orders.SalesOrder, error) {
	o, ok := s[id]
	if !ok || o.OrgID != orgID {
		return orders.SalesOrder{}, shared.ErrNotFound
	}
	return o, nil
}

// fakeLedger stands in for the AR engine: one entry per invoice, settled by pay.
type fakeLedger struct {
	entries   map[uuid.UUID]uuid.UUID
	totals    map[uuid.UUID]decimal.Decimal
	allocated map[uuid.UUID]decimal.Decimal
	err       error
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{entries: map[uuid.UUID]uuid.UUID{}, totals: map[uuid.UUID]decimal.Decimal{}, allocated: map[uuid.UUID]decimal.Decimal{}}
}

func (l *fakeLedger) HandleInvoiceIssued(_ context.Context, evt sales.InvoiceIssuedEvent) (uuid.UUID, error) {
	if l.err != nil {
		return uuid.Nil, l.err
	}
	if id, ok := l.entries[evt.InvoiceID]; ok {
		return id, nil
	}
	id := uuid.New()
	l.entries[evt.InvoiceID] = id
	l.totals[evt.InvoiceID] = evt.GrandTotal
	return id, nil
}

func (l *fakeLedger) Remaining(_ context.Context, _, invoiceID uuid.UUID) (decimal.Decimal, error) {
	return l.totals[invoiceID].Sub(l.allocated[invoiceID]), nil
}

func (l *fakeLedger) HasAllocations(_ context.Context, _, invoiceID uuid.UUID) (bool, error) {
	return l.allocated[invoiceID].IsPositive(), nil
}

func (l *fakeLedger) pay(invoiceID uuid.UUID, amount string) {
	l.allocated[invoiceID] = l.allocated[invoiceID].Add(decimal.RequireFromString(amount))
}

type countingNotifier struct{ bumps int }

func (n *countingNotifier) Bump(context.Context) error {
	n.bumps++
	return nil
}

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

var fixedNow = time.Date(2026, 7, 1, 8, 0, 0, 0, time.UTC)

type fixture struct {
	svc      *Service
	repo     *memoryInvoiceRepo
	ledger   *fakeLedger
	notifier *countingNotifier
	orders   stubOrders
	org      uuid.UUID
}

func newFixture() *fixture {
	f := &fixture{
		repo:     newMemoryInvoiceRepo(),
		ledger:   newFakeLedger(),
		notifier: &countingNotifier{},
		orders:   stubOrders{},
		org:      uuid.New(),
	}
	f.svc = NewService(f.repo, Ports{
		Refs:       stubRefs{},
		Orders:     f.orders,
		Receivable: f.ledger,
		Settlement: f.ledger,
		Notifier:   f.notifier,
	}, nil, nil, ServiceConfig{DefaultCurrency: "TRY", Now: func() time.Time { return fixedNow }})
	return f
}

func (f *fixture) draft(t *testing.T) Invoice {
	t.Helper()
	inv, err := f.svc.Create(context.Background(), f.org, CreateInvoiceRequest{
		PartnerID: uuid.New(),
		Items:     []sales.LineInput{{ProductID: uuid.New(), Quantity: d("2"), UnitPrice: d("100"), LineDiscountRate: d("10")}},
	})
	require.NoError(t, err)
	return inv
}

func TestCreateInvoiceFromOrder(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	partner := uuid.New()
	order := orders.SalesOrder{
		ID: uuid.New(), OrgID: f.org, Number: "S-2026-00004", PartnerID: partner, Currency: "EUR",
		Items: []sales.Item{sales.CalculateLine(1, sales.LineInput{ProductID: uuid.New(), Quantity: d("3"), UnitPrice: d("10")})},
	}
	f.orders[order.ID] = order

	inv, err := f.svc.Create(ctx, f.org, CreateInvoiceRequest{PartnerID: partner, OrderID: &order.ID})
	require.NoError(t, err)
	require.Equal(t, "I-2026-00001", inv.Number)
	require.Equal(t, "EUR", inv.Currency)
	require.Equal(t, order.ID, *inv.OrderID)
	require.True(t, inv.GrandTotal.Equal(d("36")))

	other := uuid.New()
	_, err = f.svc.Create(ctx, f.org, CreateInvoiceRequest{PartnerID: other, OrderID: &order.ID})
	require.ErrorIs(t, err, shared.ErrPartnerMismatch)

	missing := uuid.New()
	_, err = f.svc.Create(ctx, f.org, CreateInvoiceRequest{PartnerID: partner, OrderID: &missing})
	require.ErrorIs(t, err, shared.ErrOrderNotFound)

	_, err = f.svc.Create(ctx, f.org, CreateInvoiceRequest{PartnerID: partner})
	require.ErrorIs(t, err, httpx.ErrValidation)
}

func TestIssueOpensReceivableOnce(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	inv := f.draft(t)

	issued, err := f.svc.Transition(ctx, f.org, inv.ID, sales.InvoiceIssued)
	require.NoError(t, err)
	require.Equal(t, sales.InvoiceIssued, issued.Status)
	require.Len(t, f.ledger.entries, 1)
	require.True(t, f.ledger.totals[inv.ID].Equal(d("216")))
	require.Equal(t, 1, f.notifier.bumps)

	_, err = f.svc.Transition(ctx, f.org, inv.ID, sales.InvoiceIssued)
	require.ErrorIs(t, err, shared.ErrInvalidStatus)
	require.Len(t, f.ledger.entries, 1)
}

func TestIssueFailureRollsBackStatus(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	inv := f.draft(t)
	f.ledger.err = shared.ErrNotFound

	_, err := f.svc.Transition(ctx, f.org, inv.ID, sales.InvoiceIssued)
	require.Error(t, err)
	require.Equal(t, sales.InvoiceDraft, f.repo.invoices[inv.ID].Status)
	require.Zero(t, f.notifier.bumps)
}

func TestPaidRequiresSettledBalance(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	inv := f.draft(t)

	_, err := f.svc.Transition(ctx, f.org, inv.ID, sales.InvoicePaid)
	require.ErrorIs(t, err, shared.ErrInvalidStatus)

	_, err = f.svc.Transition(ctx, f.org, inv.ID, sales.InvoiceIssued)
	require.NoError(t, err)

	f.ledger.pay(inv.ID, "200")
	_, err = f.svc.Transition(ctx, f.org, inv.ID, sales.InvoicePaid)
	require.ErrorIs(t, err, shared.ErrUnsettledBalance)
	require.Equal(t, sales.InvoiceIssued, f.repo.invoices[inv.ID].Status)

	f.ledger.pay(inv.ID, "16")
	paid, err := f.svc.Transition(ctx, f.org, inv.ID, sales.InvoicePaid)
	require.NoError(t, err)
	require.Equal(t, sales.InvoicePaid, paid.Status)
}

func TestCancelBlockedByAllocations(t *testing.T) {
	ctx := context.Background()
	f := newFixture()

	inv := f.draft(t)
	_, err := f.svc.Transition(ctx, f.org, inv.ID, sales.InvoiceIssued)
	require.NoError(t, err)
	f.ledger.pay(inv.ID, "10")

	_, err = f.svc.Transition(ctx, f.org, inv.ID, sales.InvoiceCancelled)
	require.ErrorIs(t, err, shared.ErrAllocatedInvoice)
	require.Equal(t, sales.InvoiceIssued, f.repo.invoices[inv.ID].Status)

	clean := f.draft(t)
	cancelled, err := f.svc.Transition(ctx, f.org, clean.ID, sales.InvoiceCancelled)
	require.NoError(t, err)
	require.Equal(t, sales.InvoiceCancelled, cancelled.Status)
}

func TestUpdateOnlyInDraft(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	inv := f.draft(t)

	rate := d("100")
	updated, err := f.svc.Update(ctx, f.org, inv.ID, UpdateInvoiceRequest{DiscountRate: &rate})
	require.NoError(t, err)
	require.True(t, updated.Subtotal.IsZero())
	require.True(t, updated.GrandTotal.Equal(d("36")))

	_, err = f.svc.Transition(ctx, f.org, inv.ID, sales.InvoiceIssued)
	require.NoError(t, err)
	_, err = f.svc.Update(ctx, f.org, inv.ID, UpdateInvoiceRequest{DiscountRate: &rate})
	require.ErrorIs(t, err, shared.ErrImmutableState)
}
