package masterdata

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Partner kinds.
const (
	PartnerCustomer = "customer"
	PartnerSupplier = "supplier"
	PartnerBoth     = "both"
)

// Partner is a customer or supplier of the org.
type Partner struct {
	ID        uuid.UUID `json:"id"`
	OrgID     uuid.UUID `json:"org_id"`
	Name      string    `json:"name"`
	Kind      string    `json:"kind"`
	Email     string    `json:"email,omitempty"`
	TaxNumber string    `json:"tax_number,omitempty"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

// Product is a sellable, stocked item.
type Product struct {
	ID           uuid.UUID       `json:"id"`
	OrgID        uuid.UUID       `json:"org_id"`
	SKU          string          `json:"sku"`
	Name         string          `json:"name"`
	Price        decimal.Decimal `json:"price"`
	RestockLevel decimal.Decimal `json:"restock_level"`
	IsActive     bool            `json:"is_active"`
	CreatedAt    time.Time       `json:"created_at"`
}

// Warehouse is a stock location.
type Warehouse struct {
	ID        uuid.UUID `json:"id"`
	OrgID     uuid.UUID `json:"org_id"`
	Code      string    `json:"code"`
	Name      string    `json:"name"`
	IsDefault bool      `json:"is_default"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

// ListFilters represents standard list page filters.
type ListFilters struct {
	Search   string
	IsActive *bool
}

// CreatePartnerRequest is the payload for POST /masterdata/partners.
type CreatePartnerRequest struct {
	Name      string `json:"name" validate:"required,max=200"`
	Kind      string `json:"kind" validate:"omitempty,oneof=customer supplier both"`
	Email     string `json:"email" validate:"omitempty,email"`
	TaxNumber string `json:"tax_number" validate:"omitempty,max=50"`
}

// CreateProductRequest is the payload for POST /masterdata/products.
type CreateProductRequest struct {
	SKU          string          `json:"sku" validate:"required,max=64"`
	Name         string          `json:"name" validate:"required,max=200"`
	Price        decimal.Decimal `json:"price"`
	RestockLevel decimal.Decimal `json:"restock_level"`
}

// CreateWarehouseRequest is the payload for POST /masterdata/warehouses.
type CreateWarehouseRequest struct {
	Code      string `json:"code" validate:"required,max=32"`
	Name      string `json:"name" validate:"required,max=200"`
	IsDefault bool   `json:"is_default"`
}
