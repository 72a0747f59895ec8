package orders

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-ledger/internal/sales/quotations"
	sales "github.com/odyssey-erp/odyssey-ledger/internal/sales/shared"
	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
	_ "github.com/odyssey-erp/odyssey-ledger/internal/testing/guard"
)

type memoryOrderRepo struct {
	mu     sync.Mutex
	orders map[uuid.UUID]SalesOrder
	seq    map[int]int64
}

func newMemoryOrderRepo() *memoryOrderRepo {
	return &memoryOrderRepo{orders: map[uuid.UUID]SalesOrder{}, seq: map[int]int64{}}
}

func (m *memoryOrderRepo) WithTx(ctx context.Context, fn func(context.Context, Repository) error) error {
	m.mu.Lock()
	snapshot := make(map[uuid.UUID]SalesOrder, len(m.orders))
	for id, o := range m.orders {
		snapshot[id] = o
	}
	m.mu.Unlock()
	if err := fn(ctx, m); err != nil {
		m.mu.Lock()
		m.orders = snapshot
		m.mu.Unlock()
		return err
	}
	return nil
}

func (m *memoryOrderRepo) NextNumber(_ context.Context, date time.Time) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq[date.Year()]++
	return sales.FormatNumber(sales.PrefixOrder, date.Year(), m.seq[date.Year()]), nil
}

func (m *memoryOrderRepo) Insert(_ context.Context, o *SalesOrder) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o.ID = uuid.New()
	o.CreatedAt = time.Now()
	m.orders[o.ID] = cloneOrder(*o)
	return nil
}

func (m *memoryOrderRepo) Get(_ context.Context, orgID, id uuid.UUID) (SalesOrder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok || o.OrgID != orgID {
		return SalesOrder{}, shared.ErrNotFound
	}
	return cloneOrder(o), nil
}

func (m *memoryOrderRepo) GetForUpdate(ctx context.Context, orgID, id uuid.UUID) (SalesOrder, error) {
	return m.Get(ctx, orgID, id)
}

func (m *memoryOrderRepo) Update(_ context.Context, o SalesOrder, replaceItems bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored := m.orders[o.ID]
	o.Status = stored.Status
	if !replaceItems {
		o.Items = stored.Items
	}
	m.orders[o.ID] = cloneOrder(o)
	return nil
}

func (m *memoryOrderRepo) UpdateStatus(_ context.Context, id uuid.UUID, status Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o := m.orders[id]
	o.Status = status
	m.orders[id] = o
	return nil
}

func (m *memoryOrderRepo) List(_ context.Context, orgID uuid.UUID, filter ListFilter, _ shared.Page) ([]SalesOrder, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []SalesOrder
	for _, o := range m.orders {
		if o.OrgID != orgID || (filter.Status != "" && o.Status != filter.Status) {
			continue
		}
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number > out[j].Number })
	return out, len(out), nil
}

func cloneOrder(o SalesOrder) SalesOrder {
	o.Items = append([]sales.Item(nil), o.Items...)
	return o
}

type stubRefs struct{ partnerErr error }

func (s stubRefs) CheckPartner(context.Context, uuid.UUID, uuid.UUID) error { return s.partnerErr }
func (stubRefs) CheckProducts(context.Context, uuid.UUID, []uuid.UUID) error {
	return nil
}

type stubQuotes map[uuid.UUID]quotations.Quote

func (s stubQuotes) Get(_ context.Context, orgID, id uuid.UUID) (quotations.Quote, error) {
	q, ok := s[id]
	if !ok || q.OrgID != orgID {
		return quotations.Quote{}, shared.ErrNotFound
	}
	return q, nil
}

type recordingStock struct {
	err    error
	events []sales.FulfillmentRequested
}

func (s *recordingStock) HandleFulfillment(_ context.Context, evt sales.FulfillmentRequested) error {
	if s.err != nil {
		return s.err
	}
	s.events = append(s.events, evt)
	return nil
}

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

var fixedNow = time.Date(2026, 6, 3, 9, 0, 0, 0, time.UTC)

func newService(repo Repository, quotes QuoteReader, stock sales.FulfillmentHandler) *Service {
	return NewService(repo, stubRefs{}, quotes, stock, nil, nil, nil, ServiceConfig{Now: func() time.Time { return fixedNow }})
}

func sampleRequest(product uuid.UUID) CreateOrderRequest {
	return CreateOrderRequest{
		PartnerID: uuid.New(),
		Currency:  "usd",
		Items: []sales.LineInput{
			{ProductID: product, Quantity: d("2"), UnitPrice: d("100"), LineDiscountRate: d("10")},
			{ProductID: product, Quantity: d("1.5"), UnitPrice: d("10")},
		},
	}
}

func TestCreateOrderNumbersAndTotals(t *testing.T) {
	ctx := context.Background()
	svc := newService(newMemoryOrderRepo(), stubQuotes{}, &recordingStock{})
	org := uuid.New()

	order, err := svc.Create(ctx, org, sampleRequest(uuid.New()))
	require.NoError(t, err)
	require.Equal(t, "S-2026-00001", order.Number)
	require.Equal(t, sales.OrderNew, order.Status)
	require.Equal(t, "USD", order.Currency)
	require.True(t, order.Subtotal.Equal(d("195")))
	require.True(t, order.TaxTotal.Equal(d("39")))
	require.True(t, order.GrandTotal.Equal(d("234")))

	bad := NewService(newMemoryOrderRepo(), stubRefs{partnerErr: shared.ErrInactivePartner}, stubQuotes{}, &recordingStock{}, nil, nil, nil, ServiceConfig{})
	_, err = bad.Create(ctx, org, sampleRequest(uuid.New()))
	require.ErrorIs(t, err, shared.ErrInactivePartner)
}

func TestFulfillSendsOneLinePerItem(t *testing.T) {
	ctx := context.Background()
	stock := &recordingStock{}
	repo := newMemoryOrderRepo()
	svc := newService(repo, stubQuotes{}, stock)
	org := uuid.New()
	product := uuid.New()

	order, err := svc.Create(ctx, org, sampleRequest(product))
	require.NoError(t, err)

	_, err = svc.Fulfill(ctx, org, order.ID)
	require.ErrorIs(t, err, shared.ErrInvalidStatus)
	require.Empty(t, stock.events)

	_, err = svc.Transition(ctx, org, order.ID, sales.OrderConfirmed)
	require.NoError(t, err)
	fulfilled, err := svc.Fulfill(ctx, org, order.ID)
	require.NoError(t, err)
	require.Equal(t, sales.OrderFulfilled, fulfilled.Status)

	require.Len(t, stock.events, 1)
	evt := stock.events[0]
	require.Equal(t, order.Number, evt.OrderNumber)
	require.Len(t, evt.Lines, 2)
	require.Equal(t, product, evt.Lines[0].ProductID)
	require.True(t, evt.Lines[0].Quantity.Equal(d("2")))
	require.Equal(t, product, evt.Lines[1].ProductID)
	require.True(t, evt.Lines[1].Quantity.Equal(d("1.5")))

	_, err = svc.Transition(ctx, org, order.ID, sales.OrderCancelled)
	require.ErrorIs(t, err, shared.ErrInvalidStatus)
}

func TestFulfillShortfallKeepsOrderConfirmed(t *testing.T) {
	ctx := context.Background()
	stock := &recordingStock{err: shared.ErrInsufficientStock}
	repo := newMemoryOrderRepo()
	svc := newService(repo, stubQuotes{}, stock)
	org := uuid.New()

	order, err := svc.Create(ctx, org, sampleRequest(uuid.New()))
	require.NoError(t, err)
	_, err = svc.Transition(ctx, org, order.ID, sales.OrderConfirmed)
	require.NoError(t, err)

	_, err = svc.Transition(ctx, org, order.ID, sales.OrderFulfilled)
	require.ErrorIs(t, err, shared.ErrInsufficientStock)
	require.Equal(t, sales.OrderConfirmed, repo.orders[order.ID].Status)
}

func TestUpdateOnlyWhileNew(t *testing.T) {
	ctx := context.Background()
	svc := newService(newMemoryOrderRepo(), stubQuotes{}, &recordingStock{})
	org := uuid.New()

	order, err := svc.Create(ctx, org, sampleRequest(uuid.New()))
	require.NoError(t, err)

	items := []sales.LineInput{{ProductID: uuid.New(), Quantity: d("4"), UnitPrice: d("25"), TaxRate: ptr(d("0"))}}
	updated, err := svc.Update(ctx, org, order.ID, UpdateOrderRequest{Items: &items})
	require.NoError(t, err)
	require.True(t, updated.GrandTotal.Equal(d("100")))

	_, err = svc.Transition(ctx, org, order.ID, sales.OrderConfirmed)
	require.NoError(t, err)
	notes := "late"
	_, err = svc.Update(ctx, org, order.ID, UpdateOrderRequest{Notes: &notes})
	require.ErrorIs(t, err, shared.ErrImmutableState)
}

func TestConvertQuoteCopiesItems(t *testing.T) {
	ctx := context.Background()
	org := uuid.New()
	line := sales.CalculateLine(1, sales.LineInput{ProductID: uuid.New(), Description: "widget", Quantity: d("2"), UnitPrice: d("100"), LineDiscountRate: d("10")})
	approved := quotations.Quote{
		ID: uuid.New(), OrgID: org, PartnerID: uuid.New(), Currency: "EUR", Status: sales.QuoteApproved,
		Notes: "from quote", DiscountRate: d("5"), Items: []sales.Item{line},
	}
	draft := approved
	draft.ID = uuid.New()
	draft.Status = sales.QuoteDraft

	svc := newService(newMemoryOrderRepo(), stubQuotes{approved.ID: approved, draft.ID: draft}, &recordingStock{})

	order, err := svc.ConvertQuote(ctx, org, approved.ID)
	require.NoError(t, err)
	require.Equal(t, sales.OrderNew, order.Status)
	require.Equal(t, approved.ID, *order.QuoteID)
	require.Equal(t, approved.PartnerID, order.PartnerID)
	require.Equal(t, "EUR", order.Currency)
	require.Equal(t, "from quote", order.Notes)
	require.Equal(t, shared.NewDate(fixedNow), order.OrderDate)
	require.Len(t, order.Items, 1)
	require.Equal(t, "widget", order.Items[0].Description)
	require.True(t, order.Subtotal.Equal(d("171")))
	require.True(t, order.GrandTotal.Equal(d("207")))

	_, err = svc.ConvertQuote(ctx, org, draft.ID)
	require.ErrorIs(t, err, shared.ErrInvalidStatus)
	_, err = svc.ConvertQuote(ctx, uuid.New(), approved.ID)
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func ptr[T any](v T) *T { return &v }
