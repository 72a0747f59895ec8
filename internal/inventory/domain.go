package inventory

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/platform/httpx"
)

// Direction enumerates supported stock movements.
type Direction string

const (
	// DirectionIn represents an inbound movement.
	DirectionIn Direction = "IN"
	// DirectionOut represents an outbound movement.
	DirectionOut Direction = "OUT"
)

// QuantityPlaces is the precision of stock quantities.
const QuantityPlaces = 3

// ReasonSale marks movements written by order fulfillment.
const ReasonSale = "sale"

// Signed returns qty with the sign of the direction.
func (d Direction) Signed(qty decimal.Decimal) decimal.Decimal {
	if d == DirectionOut {
		return qty.Neg()
	}
	return qty
}

// Movement is one entry of the stock log.
type Movement struct {
	ID          uuid.UUID       `json:"id"`
	OrgID       uuid.UUID       `json:"org_id"`
	ProductID   uuid.UUID       `json:"product_id"`
	WarehouseID uuid.UUID       `json:"warehouse_id"`
	Direction   Direction       `json:"direction"`
	Quantity    decimal.Decimal `json:"quantity"`
	Reason      string          `json:"reason,omitempty"`
	DocumentNo  string          `json:"document_no,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}

// Balance is the materialized quantity of a product in a warehouse.
type Balance struct {
	OrgID       uuid.UUID
	ProductID   uuid.UUID
	WarehouseID uuid.UUID
	Qty         decimal.Decimal
	Version     int64
}

// WarehouseStock is the quantity held in one warehouse.
type WarehouseStock struct {
	WarehouseID uuid.UUID       `json:"warehouse_id"`
	Quantity    decimal.Decimal `json:"quantity"`
}

// ProductStock is the response of GET /stock/product/{product_id}.
type ProductStock struct {
	ProductID   uuid.UUID        `json:"product_id"`
	WarehouseID *uuid.UUID       `json:"warehouse_id,omitempty"`
	Quantity    decimal.Decimal  `json:"quantity"`
	ByWarehouse []WarehouseStock `json:"by_warehouse,omitempty"`
}

// MovementInput is the payload for POST /stock/movements.
type MovementInput struct {
	ProductID   uuid.UUID       `json:"product_id" validate:"required"`
	WarehouseID uuid.UUID       `json:"warehouse_id" validate:"required"`
	Direction   Direction       `json:"direction" validate:"required,oneof=IN OUT"`
	Quantity    decimal.Decimal `json:"quantity"`
	Reason      string          `json:"reason,omitempty" validate:"max=100"`
	DocumentNo  string          `json:"document_no,omitempty" validate:"max=100"`
}

// MovementFilter narrows movement listings.
type MovementFilter struct {
	ProductID   *uuid.UUID
	WarehouseID *uuid.UUID
	Direction   Direction
	From        *time.Time
	To          *time.Time
}

// Drift is a balance row that disagreed with the movement log.
type Drift struct {
	OrgID       uuid.UUID       `json:"org_id"`
	ProductID   uuid.UUID       `json:"product_id"`
	WarehouseID uuid.UUID       `json:"warehouse_id"`
	Stored      decimal.Decimal `json:"stored"`
	Derived     decimal.Decimal `json:"derived"`
}

// ReconcileReport summarises a reconciliation run.
type ReconcileReport struct {
	Checked int     `json:"checked"`
	Drifts  []Drift `json:"drifts"`
	At      time.Time
}

// ErrInvalidQuantity indicates a non-positive or over-precise quantity.
var ErrInvalidQuantity = fmt.Errorf("%w: quantity must be positive with at most 3 decimals", httpx.ErrValidation)
