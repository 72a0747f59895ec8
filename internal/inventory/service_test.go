package inventory

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	sales "github.com/odyssey-erp/odyssey-ledger/internal/sales/shared"
	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
	_ "github.com/odyssey-erp/odyssey-ledger/internal/testing/guard"
)

type balanceKey struct {
	org, product, warehouse uuid.UUID
}

type memoryStockRepo struct {
	mu        sync.Mutex
	movements []Movement
	balances  map[balanceKey]Balance
}

func newMemoryStockRepo() *memoryStockRepo {
	return &memoryStockRepo{balances: map[balanceKey]Balance{}}
}

// WithTx restores the log and balances when the callback fails.
func (m *memoryStockRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	m.mu.Lock()
	movements := append([]Movement(nil), m.movements...)
	balances := make(map[balanceKey]Balance, len(m.balances))
	for k, v := range m.balances {
		balances[k] = v
	}
	m.mu.Unlock()
	if err := fn(ctx, m); err != nil {
		m.mu.Lock()
		m.movements, m.balances = movements, balances
		m.mu.Unlock()
		return err
	}
	return nil
}

func (m *memoryStockRepo) Stock(_ context.Context, orgID, productID uuid.UUID, warehouseID *uuid.UUID) (decimal.Decimal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	total := decimal.Zero
	for _, mv := range m.movements {
		if mv.OrgID != orgID || mv.ProductID != productID {
			continue
		}
		if warehouseID != nil && mv.WarehouseID != *warehouseID {
			continue
		}
		total = total.Add(mv.Direction.Signed(mv.Quantity))
	}
	return total, nil
}

func (m *memoryStockRepo) StockByWarehouse(ctx context.Context, orgID, productID uuid.UUID) ([]WarehouseStock, error) {
	balances, err := m.LogBalances(ctx, orgID, []uuid.UUID{productID})
	if err != nil {
		return nil, err
	}
	out := make([]WarehouseStock, 0, len(balances))
	for _, b := range balances {
		out = append(out, WarehouseStock{WarehouseID: b.WarehouseID, Quantity: b.Qty})
	}
	return out, nil
}

func (m *memoryStockRepo) ListMovements(_ context.Context, orgID uuid.UUID, filter MovementFilter, page shared.Page) ([]Movement, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Movement
	for _, mv := range m.movements {
		if mv.OrgID != orgID {
			continue
		}
		if filter.ProductID != nil && mv.ProductID != *filter.ProductID {
			continue
		}
		if filter.Direction != "" && mv.Direction != filter.Direction {
			continue
		}
		out = append(out, mv)
	}
	total := len(out)
	start := page.Offset()
	if start > total {
		start = total
	}
	end := start + page.PageSize
	if end > total {
		end = total
	}
	return out[start:end], total, nil
}

func (m *memoryStockRepo) LockBalances(_ context.Context, productIDs []uuid.UUID) ([]Balance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	wanted := make(map[uuid.UUID]bool, len(productIDs))
	for _, id := range productIDs {
		wanted[id] = true
	}
	var out []Balance
	for _, b := range m.balances {
		if wanted[b.ProductID] {
			out = append(out, b)
		}
	}
	return out, nil
}

func (m *memoryStockRepo) LockAllBalances(_ context.Context) ([]Balance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Balance, 0, len(m.balances))
	for _, b := range m.balances {
		out = append(out, b)
	}
	return out, nil
}

func (m *memoryStockRepo) LogBalances(_ context.Context, orgID uuid.UUID, productIDs []uuid.UUID) ([]Balance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	wanted := make(map[uuid.UUID]bool, len(productIDs))
	for _, id := range productIDs {
		wanted[id] = true
	}
	sums := map[balanceKey]decimal.Decimal{}
	var keys []balanceKey
	for _, mv := range m.movements {
		if orgID != uuid.Nil && (mv.OrgID != orgID || !wanted[mv.ProductID]) {
			continue
		}
		key := balanceKey{mv.OrgID, mv.ProductID, mv.WarehouseID}
		if _, ok := sums[key]; !ok {
			keys = append(keys, key)
		}
		sums[key] = sums[key].Add(mv.Direction.Signed(mv.Quantity))
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].product != keys[j].product {
			return keys[i].product.String() < keys[j].product.String()
		}
		return keys[i].warehouse.String() < keys[j].warehouse.String()
	})
	out := make([]Balance, 0, len(keys))
	for _, k := range keys {
		out = append(out, Balance{OrgID: k.org, ProductID: k.product, WarehouseID: k.warehouse, Qty: sums[k]})
	}
	return out, nil
}

func (m *memoryStockRepo) InsertMovement(_ context.Context, mv *Movement) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	mv.ID = uuid.New()
	mv.CreatedAt = time.Now()
	m.movements = append(m.movements, *mv)
	return nil
}

func (m *memoryStockRepo) GetMovementForUpdate(_ context.Context, orgID, id uuid.UUID) (Movement, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, mv := range m.movements {
		if mv.ID == id && mv.OrgID == orgID {
			return mv, nil
		}
	}
	return Movement{}, shared.ErrNotFound
}

func (m *memoryStockRepo) DeleteMovement(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, mv := range m.movements {
		if mv.ID == id {
			m.movements = append(m.movements[:i:i], m.movements[i+1:]...)
			return nil
		}
	}
	return shared.ErrNotFound
}

func (m *memoryStockRepo) ApplyDelta(_ context.Context, orgID, productID, warehouseID uuid.UUID, delta decimal.Decimal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := balanceKey{orgID, productID, warehouseID}
	b := m.balances[key]
	b.OrgID, b.ProductID, b.WarehouseID = orgID, productID, warehouseID
	b.Qty = b.Qty.Add(delta)
	b.Version++
	m.balances[key] = b
	return nil
}

func (m *memoryStockRepo) SetBalance(_ context.Context, b Balance) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := balanceKey{b.OrgID, b.ProductID, b.WarehouseID}
	b.Version = m.balances[key].Version + 1
	m.balances[key] = b
	return nil
}

func (m *memoryStockRepo) balance(org, product, warehouse uuid.UUID) decimal.Decimal {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.balances[balanceKey{org, product, warehouse}].Qty
}

type fixedWarehouse struct {
	id  uuid.UUID
	err error
}

func (f fixedWarehouse) DefaultWarehouse(context.Context, uuid.UUID) (uuid.UUID, error) {
	return f.id, f.err
}

type countingNotifier struct{ bumps int }

func (c *countingNotifier) Bump(context.Context) error {
	c.bumps++
	return nil
}

func qty(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func newStockService(t *testing.T) (*Service, *memoryStockRepo, *countingNotifier, uuid.UUID) {
	t.Helper()
	repo := newMemoryStockRepo()
	notifier := &countingNotifier{}
	warehouse := uuid.New()
	return NewService(repo, fixedWarehouse{id: warehouse}, nil, notifier, nil, nil), repo, notifier, warehouse
}

func TestCreateMovementRejectsShortfall(t *testing.T) {
	ctx := context.Background()
	svc, repo, notifier, wh := newStockService(t)
	org, product := uuid.New(), uuid.New()

	_, err := svc.CreateMovement(ctx, org, MovementInput{ProductID: product, WarehouseID: wh, Direction: DirectionIn, Quantity: qty("10")})
	require.NoError(t, err)
	_, err = svc.CreateMovement(ctx, org, MovementInput{ProductID: product, WarehouseID: wh, Direction: DirectionOut, Quantity: qty("4.5"), Reason: "manual"})
	require.NoError(t, err)

	_, err = svc.CreateMovement(ctx, org, MovementInput{ProductID: product, WarehouseID: wh, Direction: DirectionOut, Quantity: qty("5.501")})
	require.ErrorIs(t, err, shared.ErrInsufficientStock)

	stock, err := svc.GetStock(ctx, org, product, nil)
	require.NoError(t, err)
	require.True(t, stock.Quantity.Equal(qty("5.5")), stock.Quantity.String())
	require.Len(t, stock.ByWarehouse, 1)
	require.True(t, repo.balance(org, product, wh).Equal(qty("5.5")))
	require.Len(t, repo.movements, 2)
	require.Equal(t, 2, notifier.bumps)
}

func TestCreateMovementChecksWarehouseQuantity(t *testing.T) {
	ctx := context.Background()
	svc, _, _, main := newStockService(t)
	org, product, other := uuid.New(), uuid.New(), uuid.New()

	_, err := svc.CreateMovement(ctx, org, MovementInput{ProductID: product, WarehouseID: main, Direction: DirectionIn, Quantity: qty("8")})
	require.NoError(t, err)
	_, err = svc.CreateMovement(ctx, org, MovementInput{ProductID: product, WarehouseID: other, Direction: DirectionIn, Quantity: qty("2")})
	require.NoError(t, err)

	// total is 10 but the other warehouse only holds 2
	_, err = svc.CreateMovement(ctx, org, MovementInput{ProductID: product, WarehouseID: other, Direction: DirectionOut, Quantity: qty("3")})
	require.ErrorIs(t, err, shared.ErrInsufficientStock)

	stock, err := svc.GetStock(ctx, org, product, &other)
	require.NoError(t, err)
	require.True(t, stock.Quantity.Equal(qty("2")))
}

func TestCreateMovementValidatesQuantity(t *testing.T) {
	ctx := context.Background()
	svc, _, _, wh := newStockService(t)
	for _, raw := range []string{"0", "-1", "1.0001"} {
		_, err := svc.CreateMovement(ctx, uuid.New(), MovementInput{ProductID: uuid.New(), WarehouseID: wh, Direction: DirectionIn, Quantity: qty(raw)})
		require.ErrorIs(t, err, ErrInvalidQuantity, raw)
	}
}

func TestGetStockWithoutHistoryIsZero(t *testing.T) {
	svc, _, _, _ := newStockService(t)
	stock, err := svc.GetStock(context.Background(), uuid.New(), uuid.New(), nil)
	require.NoError(t, err)
	require.True(t, stock.Quantity.IsZero())
	require.Empty(t, stock.ByWarehouse)
}

func TestDeleteMovementReversesWithoutValidation(t *testing.T) {
	ctx := context.Background()
	svc, repo, _, wh := newStockService(t)
	org, product := uuid.New(), uuid.New()

	in, err := svc.CreateMovement(ctx, org, MovementInput{ProductID: product, WarehouseID: wh, Direction: DirectionIn, Quantity: qty("5")})
	require.NoError(t, err)
	_, err = svc.CreateMovement(ctx, org, MovementInput{ProductID: product, WarehouseID: wh, Direction: DirectionOut, Quantity: qty("3")})
	require.NoError(t, err)

	require.NoError(t, svc.DeleteMovement(ctx, org, in.ID))
	require.True(t, repo.balance(org, product, wh).Equal(qty("-3")))

	require.ErrorIs(t, svc.DeleteMovement(ctx, org, in.ID), shared.ErrNotFound)
}

func TestHandleFulfillmentIsAllOrNothing(t *testing.T) {
	ctx := context.Background()
	svc, repo, _, wh := newStockService(t)
	org, widget, gadget := uuid.New(), uuid.New(), uuid.New()

	_, err := svc.CreateMovement(ctx, org, MovementInput{ProductID: widget, WarehouseID: wh, Direction: DirectionIn, Quantity: qty("5")})
	require.NoError(t, err)
	_, err = svc.CreateMovement(ctx, org, MovementInput{ProductID: gadget, WarehouseID: wh, Direction: DirectionIn, Quantity: qty("1")})
	require.NoError(t, err)

	short := sales.FulfillmentRequested{OrgID: org, OrderID: uuid.New(), OrderNumber: "SO-2026-00001", Lines: []sales.FulfillmentLine{
		{ProductID: widget, Quantity: qty("2")},
		{ProductID: gadget, Quantity: qty("1.5")},
	}}
	require.ErrorIs(t, svc.HandleFulfillment(ctx, short), shared.ErrInsufficientStock)
	require.Len(t, repo.movements, 2)
	require.True(t, repo.balance(org, widget, wh).Equal(qty("5")))

	short.Lines[1].Quantity = qty("1")
	require.NoError(t, svc.HandleFulfillment(ctx, short))
	require.Len(t, repo.movements, 4)
	for _, mv := range repo.movements[2:] {
		require.Equal(t, DirectionOut, mv.Direction)
		require.Equal(t, ReasonSale, mv.Reason)
		require.Equal(t, "SO-2026-00001", mv.DocumentNo)
	}
	require.True(t, repo.balance(org, gadget, wh).IsZero())
}

func TestHandleFulfillmentWritesOneMovementPerLine(t *testing.T) {
	ctx := context.Background()
	svc, repo, _, wh := newStockService(t)
	org, widget := uuid.New(), uuid.New()

	_, err := svc.CreateMovement(ctx, org, MovementInput{ProductID: widget, WarehouseID: wh, Direction: DirectionIn, Quantity: qty("4")})
	require.NoError(t, err)

	evt := sales.FulfillmentRequested{OrgID: org, OrderID: uuid.New(), OrderNumber: "SO-2026-00002", Lines: []sales.FulfillmentLine{
		{ProductID: widget, Quantity: qty("2")},
		{ProductID: widget, Quantity: qty("3")},
	}}
	require.ErrorIs(t, svc.HandleFulfillment(ctx, evt), shared.ErrInsufficientStock)
	require.Len(t, repo.movements, 1)

	evt.Lines[1].Quantity = qty("1.5")
	require.NoError(t, svc.HandleFulfillment(ctx, evt))
	require.Len(t, repo.movements, 3)
	require.True(t, repo.movements[1].Quantity.Equal(qty("2")))
	require.True(t, repo.movements[2].Quantity.Equal(qty("1.5")))
	require.True(t, repo.balance(org, widget, wh).Equal(qty("0.5")))
}

func TestHandleFulfillmentWithoutWarehouse(t *testing.T) {
	repo := newMemoryStockRepo()
	svc := NewService(repo, fixedWarehouse{err: shared.ErrNoWarehouse}, nil, nil, nil, nil)
	evt := sales.FulfillmentRequested{OrgID: uuid.New(), Lines: []sales.FulfillmentLine{{ProductID: uuid.New(), Quantity: qty("1")}}}
	require.ErrorIs(t, svc.HandleFulfillment(context.Background(), evt), shared.ErrNoWarehouse)
}

func TestReconcileRepairsDrift(t *testing.T) {
	ctx := context.Background()
	svc, repo, _, wh := newStockService(t)
	org, product, orphan := uuid.New(), uuid.New(), uuid.New()

	_, err := svc.CreateMovement(ctx, org, MovementInput{ProductID: product, WarehouseID: wh, Direction: DirectionIn, Quantity: qty("7")})
	require.NoError(t, err)
	_, err = svc.CreateMovement(ctx, org, MovementInput{ProductID: orphan, WarehouseID: wh, Direction: DirectionIn, Quantity: qty("1")})
	require.NoError(t, err)

	repo.balances[balanceKey{org, product, wh}] = Balance{OrgID: org, ProductID: product, WarehouseID: wh, Qty: qty("9")}
	delete(repo.balances, balanceKey{org, orphan, wh})

	report, err := svc.Reconcile(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, report.Checked)
	require.Len(t, report.Drifts, 2)
	require.True(t, repo.balance(org, product, wh).Equal(qty("7")))
	require.True(t, repo.balance(org, orphan, wh).Equal(qty("1")))

	report, err = svc.Reconcile(ctx)
	require.NoError(t, err)
	require.Empty(t, report.Drifts)
}
