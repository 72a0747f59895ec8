package inventory

import (
	"context"

	"github.com/google/uuid"

	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// WarehouseResolver picks the warehouse fulfillment ships from.
type WarehouseResolver interface {
	DefaultWarehouse(ctx context.Context, orgID uuid.UUID) (uuid.UUID, error)
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}
