package inventory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/observability"
	sales "github.com/odyssey-erp/odyssey-ledger/internal/sales/shared"
	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Stock(ctx context.Context, orgID, productID uuid.UUID, warehouseID *uuid.UUID) (decimal.Decimal, error)
	StockByWarehouse(ctx context.Context, orgID, productID uuid.UUID) ([]WarehouseStock, error)
	ListMovements(ctx context.Context, orgID uuid.UUID, filter MovementFilter, page shared.Page) ([]Movement, int, error)
}

// Service coordinates stock movements.
type Service struct {
	repo       RepositoryPort
	warehouses WarehouseResolver
	audit      AuditPort
	notifier   sales.ChangeNotifier
	metrics    *observability.Metrics
	logger     *slog.Logger
	now        func() time.Time
}

// NewService builds Service. audit, notifier and metrics may be nil.
func NewService(repo RepositoryPort, warehouses WarehouseResolver, audit AuditPort, notifier sales.ChangeNotifier, metrics *observability.Metrics, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, warehouses: warehouses, audit: audit, notifier: notifier, metrics: metrics, logger: logger, now: time.Now}
}

// GetStock returns the log-derived quantity of a product, in one warehouse
// when warehouseID is set. Products without history have zero stock.
func (s *Service) GetStock(ctx context.Context, orgID, productID uuid.UUID, warehouseID *uuid.UUID) (ProductStock, error) {
	qty, err := s.repo.Stock(ctx, orgID, productID, warehouseID)
	if err != nil {
		return ProductStock{}, err
	}
	stock := ProductStock{ProductID: productID, WarehouseID: warehouseID, Quantity: qty}
	if warehouseID == nil {
		stock.ByWarehouse, err = s.repo.StockByWarehouse(ctx, orgID, productID)
		if err != nil {
			return ProductStock{}, err
		}
	}
	return stock, nil
}

// StockByWarehouse returns per-warehouse quantities of a product.
func (s *Service) StockByWarehouse(ctx context.Context, orgID, productID uuid.UUID) ([]WarehouseStock, error) {
	return s.repo.StockByWarehouse(ctx, orgID, productID)
}

// ListMovements pages through the stock log.
func (s *Service) ListMovements(ctx context.Context, orgID uuid.UUID, filter MovementFilter, page shared.Page) (shared.ListResult[Movement], error) {
	if filter.From != nil && filter.To != nil && filter.From.After(*filter.To) {
		return shared.ListResult[Movement]{}, fmt.Errorf("%w: from after to", shared.ErrInvalidDates)
	}
	movements, total, err := s.repo.ListMovements(ctx, orgID, filter, page)
	if err != nil {
		return shared.ListResult[Movement]{}, err
	}
	return shared.ListResult[Movement]{Items: movements, Pagination: shared.NewPagination(page, total)}, nil
}

func validQuantity(qty decimal.Decimal) bool {
	return qty.IsPositive() && qty.Equal(qty.Round(QuantityPlaces))
}

// CreateMovement appends one movement to the log. OUT movements fail with
// insufficient_stock when either the product total or the warehouse
// quantity would go negative; nothing is written then.
func (s *Service) CreateMovement(ctx context.Context, orgID uuid.UUID, input MovementInput) (Movement, error) {
	if !validQuantity(input.Quantity) {
		return Movement{}, ErrInvalidQuantity
	}
	if input.Direction != DirectionIn && input.Direction != DirectionOut {
		return Movement{}, fmt.Errorf("%w: direction %q", ErrInvalidQuantity, input.Direction)
	}
	movement := Movement{
		OrgID:       orgID,
		ProductID:   input.ProductID,
		WarehouseID: input.WarehouseID,
		Direction:   input.Direction,
		Quantity:    input.Quantity,
		Reason:      input.Reason,
		DocumentNo:  input.DocumentNo,
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if movement.Direction == DirectionOut {
			need := []demand{{productID: movement.ProductID, warehouseID: movement.WarehouseID, qty: movement.Quantity}}
			if err := checkAvailable(ctx, tx, orgID, need); err != nil {
				return err
			}
		}
		return writeMovement(ctx, tx, &movement)
	})
	if err != nil {
		if errors.Is(err, shared.ErrInsufficientStock) {
			s.metrics.StockRejected("manual")
		}
		return Movement{}, err
	}
	s.record(ctx, "stock.movement", movement.ID, map[string]any{
		"product_id":   movement.ProductID.String(),
		"warehouse_id": movement.WarehouseID.String(),
		"direction":    movement.Direction,
		"quantity":     movement.Quantity.String(),
	})
	s.bump(ctx)
	return movement, nil
}

// DeleteMovement removes a movement and applies the inverse delta to the
// balance. The reversal is not re-validated and may leave a negative balance.
func (s *Service) DeleteMovement(ctx context.Context, orgID, id uuid.UUID) error {
	var removed Movement
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		m, err := tx.GetMovementForUpdate(ctx, orgID, id)
		if err != nil {
			return err
		}
		if err := tx.DeleteMovement(ctx, id); err != nil {
			return err
		}
		removed = m
		return tx.ApplyDelta(ctx, orgID, m.ProductID, m.WarehouseID, m.Direction.Signed(m.Quantity).Neg())
	})
	if err != nil {
		return err
	}
	s.record(ctx, "stock.movement.delete", id, map[string]any{
		"product_id": removed.ProductID.String(),
		"direction":  removed.Direction,
		"quantity":   removed.Quantity.String(),
	})
	s.bump(ctx)
	return nil
}

// HandleFulfillment writes one OUT movement per order line from the default
// warehouse. Demand is summed per product and checked before anything is written.
func (s *Service) HandleFulfillment(ctx context.Context, evt sales.FulfillmentRequested) error {
	if len(evt.Lines) == 0 {
		return nil
	}
	warehouseID, err := s.warehouses.DefaultWarehouse(ctx, evt.OrgID)
	if err != nil {
		return err
	}
	needs := make([]demand, 0, len(evt.Lines))
	for _, line := range evt.Lines {
		needs = append(needs, demand{productID: line.ProductID, warehouseID: warehouseID, qty: line.Quantity})
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := checkAvailable(ctx, tx, evt.OrgID, needs); err != nil {
			return err
		}
		for _, need := range needs {
			m := Movement{
				OrgID:       evt.OrgID,
				ProductID:   need.productID,
				WarehouseID: warehouseID,
				Direction:   DirectionOut,
				Quantity:    need.qty,
				Reason:      ReasonSale,
				DocumentNo:  evt.OrderNumber,
			}
			if err := writeMovement(ctx, tx, &m); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, shared.ErrInsufficientStock) {
			s.metrics.StockRejected("fulfillment")
		}
		return err
	}
	s.bump(ctx)
	return nil
}

type demand struct {
	productID   uuid.UUID
	warehouseID uuid.UUID
	qty         decimal.Decimal
}

type stockKey struct {
	product, warehouse uuid.UUID
}

// checkAvailable locks the balance rows of the demanded products and
// compares the log-derived quantities against the demand.
func checkAvailable(ctx context.Context, tx TxRepository, orgID uuid.UUID, needs []demand) error {
	products := make([]uuid.UUID, 0, len(needs))
	seen := make(map[uuid.UUID]struct{}, len(needs))
	for _, n := range needs {
		if _, ok := seen[n.productID]; !ok {
			seen[n.productID] = struct{}{}
			products = append(products, n.productID)
		}
	}
	if _, err := tx.LockBalances(ctx, products); err != nil {
		return err
	}
	balances, err := tx.LogBalances(ctx, orgID, products)
	if err != nil {
		return err
	}
	totals := make(map[uuid.UUID]decimal.Decimal, len(products))
	perWarehouse := make(map[stockKey]decimal.Decimal, len(balances))
	for _, b := range balances {
		totals[b.ProductID] = totals[b.ProductID].Add(b.Qty)
		perWarehouse[stockKey{b.ProductID, b.WarehouseID}] = b.Qty
	}

	wantTotal := make(map[uuid.UUID]decimal.Decimal, len(products))
	wantWarehouse := make(map[stockKey]decimal.Decimal, len(needs))
	for _, n := range needs {
		wantTotal[n.productID] = wantTotal[n.productID].Add(n.qty)
		key := stockKey{n.productID, n.warehouseID}
		wantWarehouse[key] = wantWarehouse[key].Add(n.qty)
	}
	for _, product := range products {
		if have, want := totals[product], wantTotal[product]; have.LessThan(want) {
			return fmt.Errorf("%w: product %s has %s, needs %s", shared.ErrInsufficientStock, product, have, want)
		}
	}
	for key, want := range wantWarehouse {
		if have := perWarehouse[key]; have.LessThan(want) {
			return fmt.Errorf("%w: product %s has %s in warehouse %s, needs %s", shared.ErrInsufficientStock, key.product, have, key.warehouse, want)
		}
	}
	return nil
}

func writeMovement(ctx context.Context, tx TxRepository, m *Movement) error {
	if err := tx.InsertMovement(ctx, m); err != nil {
		return err
	}
	return tx.ApplyDelta(ctx, m.OrgID, m.ProductID, m.WarehouseID, m.Direction.Signed(m.Quantity))
}

// Reconcile recomputes every balance row from the log and repairs drift.
func (s *Service) Reconcile(ctx context.Context) (ReconcileReport, error) {
	report := ReconcileReport{At: s.now().UTC()}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		stored, err := tx.LockAllBalances(ctx)
		if err != nil {
			return err
		}
		derived, err := tx.LogBalances(ctx, uuid.Nil, nil)
		if err != nil {
			return err
		}
		fromLog := make(map[stockKey]Balance, len(derived))
		for _, b := range derived {
			fromLog[stockKey{b.ProductID, b.WarehouseID}] = b
		}
		report.Checked = len(stored)
		for _, b := range stored {
			key := stockKey{b.ProductID, b.WarehouseID}
			want := fromLog[key].Qty
			delete(fromLog, key)
			if b.Qty.Equal(want) {
				continue
			}
			report.Drifts = append(report.Drifts, Drift{OrgID: b.OrgID, ProductID: b.ProductID, WarehouseID: b.WarehouseID, Stored: b.Qty, Derived: want})
			b.Qty = want
			if err := tx.SetBalance(ctx, b); err != nil {
				return err
			}
		}
		// log entries without a balance row
		for _, b := range fromLog {
			report.Checked++
			report.Drifts = append(report.Drifts, Drift{OrgID: b.OrgID, ProductID: b.ProductID, WarehouseID: b.WarehouseID, Stored: decimal.Zero, Derived: b.Qty})
			if err := tx.SetBalance(ctx, b); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return ReconcileReport{}, err
	}
	if len(report.Drifts) > 0 {
		s.logger.Warn("stock balances repaired", slog.Int("drifts", len(report.Drifts)), slog.Int("checked", report.Checked))
		s.bump(ctx)
	}
	return report, nil
}

func (s *Service) bump(ctx context.Context) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Bump(ctx); err != nil {
		s.logger.Warn("dashboard cache bump", slog.Any("error", err))
	}
}

func (s *Service) record(ctx context.Context, action string, id uuid.UUID, meta map[string]any) {
	if s.audit == nil {
		return
	}
	actor, org := shared.ActorFromContext(ctx)
	if err := s.audit.Record(ctx, shared.AuditLog{ActorID: actor, OrgID: org, Action: action, Entity: "stock_movement", EntityID: id.String(), Meta: meta}); err != nil {
		s.logger.Warn("audit stock movement", slog.String("action", action), slog.Any("error", err))
	}
}
