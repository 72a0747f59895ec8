package masterdata

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/odyssey-erp/odyssey-ledger/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// Service manages reference data and answers lookups for the ledger services.
type Service struct {
	repo   Repository
	logger *slog.Logger
}

// NewService constructs Service.
func NewService(repo Repository, logger *slog.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

// CreatePartner registers an active partner.
func (s *Service) CreatePartner(ctx context.Context, orgID uuid.UUID, req CreatePartnerRequest) (Partner, error) {
	kind := req.Kind
	if kind == "" {
		kind = PartnerCustomer
	}
	return s.repo.CreatePartner(ctx, Partner{
		OrgID:     orgID,
		Name:      strings.TrimSpace(req.Name),
		Kind:      kind,
		Email:     strings.TrimSpace(req.Email),
		TaxNumber: strings.TrimSpace(req.TaxNumber),
	})
}

// GetPartner loads a partner of the org.
func (s *Service) GetPartner(ctx context.Context, orgID, id uuid.UUID) (Partner, error) {
	return s.repo.GetPartner(ctx, orgID, id)
}

// ListPartners pages through partners.
func (s *Service) ListPartners(ctx context.Context, orgID uuid.UUID, filters ListFilters, page shared.Page) (shared.ListResult[Partner], error) {
	items, total, err := s.repo.ListPartners(ctx, orgID, filters, page)
	if err != nil {
		return shared.ListResult[Partner]{}, err
	}
	return shared.ListResult[Partner]{Items: items, Pagination: shared.NewPagination(page, total)}, nil
}

// CreateProduct registers an active product.
func (s *Service) CreateProduct(ctx context.Context, orgID uuid.UUID, req CreateProductRequest) (Product, error) {
	if req.Price.IsNegative() || !req.Price.Equal(req.Price.Round(2)) {
		return Product{}, fmt.Errorf("%w: price must be a non-negative amount with 2 decimals", httpx.ErrValidation)
	}
	if req.RestockLevel.IsNegative() {
		return Product{}, fmt.Errorf("%w: restock_level must not be negative", httpx.ErrValidation)
	}
	return s.repo.CreateProduct(ctx, Product{
		OrgID:        orgID,
		SKU:          strings.TrimSpace(req.SKU),
		Name:         strings.TrimSpace(req.Name),
		Price:        req.Price,
		RestockLevel: req.RestockLevel,
	})
}

// GetProduct loads a product of the org.
func (s *Service) GetProduct(ctx context.Context, orgID, id uuid.UUID) (Product, error) {
	return s.repo.GetProduct(ctx, orgID, id)
}

// ListProducts pages through products.
func (s *Service) ListProducts(ctx context.Context, orgID uuid.UUID, filters ListFilters, page shared.Page) (shared.ListResult[Product], error) {
	items, total, err := s.repo.ListProducts(ctx, orgID, filters, page)
	if err != nil {
		return shared.ListResult[Product]{}, err
	}
	return shared.ListResult[Product]{Items: items, Pagination: shared.NewPagination(page, total)}, nil
}

// CreateWarehouse registers a warehouse, moving the default flag when requested.
func (s *Service) CreateWarehouse(ctx context.Context, orgID uuid.UUID, req CreateWarehouseRequest) (Warehouse, error) {
	var created Warehouse
	err := s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		if req.IsDefault {
			if err := repo.ClearDefaultWarehouse(ctx, orgID); err != nil {
				return err
			}
		}
		var err error
		created, err = repo.CreateWarehouse(ctx, Warehouse{
			OrgID:     orgID,
			Code:      strings.TrimSpace(req.Code),
			Name:      strings.TrimSpace(req.Name),
			IsDefault: req.IsDefault,
		})
		return err
	})
	return created, err
}

// GetWarehouse loads a warehouse of the org.
func (s *Service) GetWarehouse(ctx context.Context, orgID, id uuid.UUID) (Warehouse, error) {
	return s.repo.GetWarehouse(ctx, orgID, id)
}

// ListWarehouses pages through warehouses.
func (s *Service) ListWarehouses(ctx context.Context, orgID uuid.UUID, filters ListFilters, page shared.Page) (shared.ListResult[Warehouse], error) {
	items, total, err := s.repo.ListWarehouses(ctx, orgID, filters, page)
	if err != nil {
		return shared.ListResult[Warehouse]{}, err
	}
	return shared.ListResult[Warehouse]{Items: items, Pagination: shared.NewPagination(page, total)}, nil
}

// CheckPartner verifies the partner exists in the org and is active.
func (s *Service) CheckPartner(ctx context.Context, orgID, partnerID uuid.UUID) error {
	p, err := s.repo.GetPartner(ctx, orgID, partnerID)
	if err != nil {
		return fmt.Errorf("partner %s: %w", partnerID, err)
	}
	if !p.IsActive {
		return fmt.Errorf("%w: partner %s", shared.ErrInactivePartner, partnerID)
	}
	return nil
}

// CheckProducts verifies every product exists in the org.
func (s *Service) CheckProducts(ctx context.Context, orgID uuid.UUID, productIDs []uuid.UUID) error {
	if len(productIDs) == 0 {
		return nil
	}
	found, err := s.repo.ExistingProducts(ctx, orgID, productIDs)
	if err != nil {
		return err
	}
	present := make(map[uuid.UUID]struct{}, len(found))
	for _, id := range found {
		present[id] = struct{}{}
	}
	for _, id := range productIDs {
		if _, ok := present[id]; !ok {
			return fmt.Errorf("%w: %s", shared.ErrUnknownProduct, id)
		}
	}
	return nil
}

// DefaultWarehouse resolves the warehouse used for fulfillment.
func (s *Service) DefaultWarehouse(ctx context.Context, orgID uuid.UUID) (uuid.UUID, error) {
	w, err := s.repo.DefaultWarehouse(ctx, orgID)
	if errors.Is(err, shared.ErrNotFound) {
		return uuid.Nil, fmt.Errorf("%w: org has no active warehouse", shared.ErrNoWarehouse)
	}
	if err != nil {
		return uuid.Nil, err
	}
	return w.ID, nil
}
