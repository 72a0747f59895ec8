package masterdata

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

type memoryRepo struct {
	partners   map[uuid.UUID]Partner
	products   map[uuid.UUID]Product
	warehouses map[uuid.UUID]Warehouse
	clock      time.Time
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		partners:   map[uuid.UUID]Partner{},
		products:   map[uuid.UUID]Product{},
		warehouses: map[uuid.UUID]Warehouse{},
		clock:      time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func (m *memoryRepo) tick() time.Time {
	m.clock = m.clock.Add(time.Minute)
	return m.clock
}

func (m *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, Repository) error) error {
	return fn(ctx, m)
}

func (m *memoryRepo) CreatePartner(_ context.Context, p Partner) (Partner, error) {
	p.ID, p.IsActive, p.CreatedAt = uuid.New(), true, m.tick()
	m.partners[p.ID] = p
	return p, nil
}

func (m *memoryRepo) GetPartner(_ context.Context, orgID, id uuid.UUID) (Partner, error) {
	p, ok := m.partners[id]
	if !ok || p.OrgID != orgID {
		return Partner{}, shared.ErrNotFound
	}
	return p, nil
}

func (m *memoryRepo) ListPartners(_ context.Context, orgID uuid.UUID, _ ListFilters, _ shared.Page) ([]Partner, int, error) {
	var out []Partner
	for _, p := range m.partners {
		if p.OrgID == orgID {
			out = append(out, p)
		}
	}
	return out, len(out), nil
}

func (m *memoryRepo) CreateProduct(_ context.Context, p Product) (Product, error) {
	p.ID, p.IsActive, p.CreatedAt = uuid.New(), true, m.tick()
	m.products[p.ID] = p
	return p, nil
}

func (m *memoryRepo) GetProduct(_ context.Context, orgID, id uuid.UUID) (Product, error) {
	p, ok := m.products[id]
	if !ok || p.OrgID != orgID {
		return Product{}, shared.ErrNotFound
	}
	return p, nil
}

func (m *memoryRepo) ListProducts(_ context.Context, orgID uuid.UUID, _ ListFilters, _ shared.Page) ([]Product, int, error) {
	var out []Product
	for _, p := range m.products {
		if p.OrgID == orgID {
			out = append(out, p)
		}
	}
	return out, len(out), nil
}

func (m *memoryRepo) ExistingProducts(_ context.Context, orgID uuid.UUID, ids []uuid.UUID) ([]uuid.UUID, error) {
	var out []uuid.UUID
	for _, id := range ids {
		if p, ok := m.products[id]; ok && p.OrgID == orgID {
			out = append(out, id)
		}
	}
	return out, nil
}

func (m *memoryRepo) CreateWarehouse(_ context.Context, w Warehouse) (Warehouse, error) {
	w.ID, w.IsActive, w.CreatedAt = uuid.New(), true, m.tick()
	m.warehouses[w.ID] = w
	return w, nil
}

func (m *memoryRepo) GetWarehouse(_ context.Context, orgID, id uuid.UUID) (Warehouse, error) {
	w, ok := m.warehouses[id]
	if !ok || w.OrgID != orgID {
		return Warehouse{}, shared.ErrNotFound
	}
	return w, nil
}

func (m *memoryRepo) ListWarehouses(_ context.Context, orgID uuid.UUID, _ ListFilters, _ shared.Page) ([]Warehouse, int, error) {
	var out []Warehouse
	for _, w := range m.warehouses {
		if w.OrgID == orgID {
			out = append(out, w)
		}
	}
	return out, len(out), nil
}

func (m *memoryRepo) ClearDefaultWarehouse(_ context.Context, orgID uuid.UUID) error {
	for id, w := range m.warehouses {
		if w.OrgID == orgID && w.IsDefault {
			w.IsDefault = false
			m.warehouses[id] = w
		}
	}
	return nil
}

func (m *memoryRepo) DefaultWarehouse(_ context.Context, orgID uuid.UUID) (Warehouse, error) {
	var candidates []Warehouse
	for _, w := range m.warehouses {
		if w.OrgID == orgID && w.IsActive {
			candidates = append(candidates, w)
		}
	}
	if len(candidates) == 0 {
		return Warehouse{}, shared.ErrNotFound
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].IsDefault != candidates[j].IsDefault {
			return candidates[i].IsDefault
		}
		return candidates[i].CreatedAt.Before(candidates[j].CreatedAt)
	})
	return candidates[0], nil
}

func TestDefaultWarehouseResolution(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryRepo()
	svc := NewService(repo, nil)
	org := uuid.New()

	_, err := svc.DefaultWarehouse(ctx, org)
	require.ErrorIs(t, err, shared.ErrNoWarehouse)

	oldest, err := svc.CreateWarehouse(ctx, org, CreateWarehouseRequest{Code: "A", Name: "Main"})
	require.NoError(t, err)
	_, err = svc.CreateWarehouse(ctx, org, CreateWarehouseRequest{Code: "B", Name: "Second"})
	require.NoError(t, err)

	id, err := svc.DefaultWarehouse(ctx, org)
	require.NoError(t, err)
	require.Equal(t, oldest.ID, id)

	flagged, err := svc.CreateWarehouse(ctx, org, CreateWarehouseRequest{Code: "C", Name: "Flagged", IsDefault: true})
	require.NoError(t, err)
	id, err = svc.DefaultWarehouse(ctx, org)
	require.NoError(t, err)
	require.Equal(t, flagged.ID, id)

	moved, err := svc.CreateWarehouse(ctx, org, CreateWarehouseRequest{Code: "D", Name: "New default", IsDefault: true})
	require.NoError(t, err)
	require.False(t, repo.warehouses[flagged.ID].IsDefault)
	id, err = svc.DefaultWarehouse(ctx, org)
	require.NoError(t, err)
	require.Equal(t, moved.ID, id)
}

func TestCheckPartnerScopesByOrgAndActivity(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryRepo()
	svc := NewService(repo, nil)
	org := uuid.New()

	p, err := svc.CreatePartner(ctx, org, CreatePartnerRequest{Name: "Acme"})
	require.NoError(t, err)
	require.Equal(t, PartnerCustomer, p.Kind)
	require.NoError(t, svc.CheckPartner(ctx, org, p.ID))

	require.ErrorIs(t, svc.CheckPartner(ctx, uuid.New(), p.ID), shared.ErrNotFound)

	inactive := repo.partners[p.ID]
	inactive.IsActive = false
	repo.partners[p.ID] = inactive
	require.ErrorIs(t, svc.CheckPartner(ctx, org, p.ID), shared.ErrInactivePartner)
}

func TestCheckProductsReportsUnknown(t *testing.T) {
	ctx := context.Background()
	svc := NewService(newMemoryRepo(), nil)
	org := uuid.New()

	p, err := svc.CreateProduct(ctx, org, CreateProductRequest{SKU: "SKU-1", Name: "Widget", Price: decimal.RequireFromString("9.90")})
	require.NoError(t, err)
	require.NoError(t, svc.CheckProducts(ctx, org, []uuid.UUID{p.ID}))
	require.ErrorIs(t, svc.CheckProducts(ctx, org, []uuid.UUID{p.ID, uuid.New()}), shared.ErrUnknownProduct)

	_, err = svc.CreateProduct(ctx, org, CreateProductRequest{SKU: "SKU-2", Name: "Bad", Price: decimal.RequireFromString("1.999")})
	require.Error(t, err)
}
