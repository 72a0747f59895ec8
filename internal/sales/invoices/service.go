package invoices

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/odyssey-erp/odyssey-ledger/internal/observability"
	"github.com/odyssey-erp/odyssey-ledger/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-ledger/internal/sales/orders"
	sales "github.com/odyssey-erp/odyssey-ledger/internal/sales/shared"
	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// OrderReader loads the order an invoice bills.
type OrderReader interface {
	Get(ctx context.Context, orgID, id uuid.UUID) (orders.SalesOrder, error)
}

// Ports groups the collaborators of the invoice lifecycle.
type Ports struct {
	Refs       sales.ReferenceChecker
	Orders     OrderReader
	Receivable sales.IssuanceHandler
	Settlement sales.SettlementReader
	Notifier   sales.ChangeNotifier
	Audit      AuditPort
}

// ServiceConfig groups optional settings.
type ServiceConfig struct {
	DefaultCurrency string
	Now             func() time.Time
}

// Service implements the sales invoice lifecycle.
type Service struct {
	repo     Repository
	ports    Ports
	metrics  *observability.Metrics
	logger   *slog.Logger
	currency string
	now      func() time.Time
}

// NewService builds Service.
func NewService(repo Repository, ports Ports, metrics *observability.Metrics, logger *slog.Logger, cfg ServiceConfig) *Service {
	if cfg.DefaultCurrency == "" {
		cfg.DefaultCurrency = "TRY"
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, ports: ports, metrics: metrics, logger: logger, currency: cfg.DefaultCurrency, now: cfg.Now}
}

// Create stores a DRAFT invoice, optionally billing an order of the same partner.
func (s *Service) Create(ctx context.Context, orgID uuid.UUID, req CreateInvoiceRequest) (Invoice, error) {
	if len(req.Items) == 0 && req.OrderID == nil {
		return Invoice{}, fmt.Errorf("%w: items required without order_id", httpx.ErrValidation)
	}
	if len(req.Items) > 0 {
		if err := sales.ValidateLines(req.Items); err != nil {
			return Invoice{}, err
		}
	}
	if err := sales.ValidateRate("discount_rate", req.DiscountRate); err != nil {
		return Invoice{}, err
	}
	issueDate := shared.NewDate(s.now())
	if req.IssueDate != nil && !req.IssueDate.IsZero() {
		issueDate = *req.IssueDate
	}

	inv := Invoice{
		OrgID:        orgID,
		PartnerID:    req.PartnerID,
		OrderID:      req.OrderID,
		Status:       sales.InvoiceTransitions.Initial(),
		IssueDate:    issueDate,
		Notes:        req.Notes,
		DiscountRate: req.DiscountRate,
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		if err := s.ports.Refs.CheckPartner(ctx, orgID, req.PartnerID); err != nil {
			return err
		}
		inputs := req.Items
		fallbackCurrency := s.currency
		if req.OrderID != nil {
			order, err := s.ports.Orders.Get(ctx, orgID, *req.OrderID)
			if errors.Is(err, shared.ErrNotFound) {
				return fmt.Errorf("%w: %s", shared.ErrOrderNotFound, req.OrderID)
			}
			if err != nil {
				return err
			}
			if order.PartnerID != req.PartnerID {
				return fmt.Errorf("%w: order %s belongs to another partner", shared.ErrPartnerMismatch, order.Number)
			}
			if len(inputs) == 0 {
				inputs = sales.Inputs(order.Items)
			}
			fallbackCurrency = order.Currency
		}
		currency, err := sales.ResolveCurrency(req.Currency, fallbackCurrency)
		if err != nil {
			return err
		}
		inv.Currency = currency
		if err := s.ports.Refs.CheckProducts(ctx, orgID, sales.ProductIDs(inputs)); err != nil {
			return err
		}
		inv.recalculate(inputs)
		number, err := repo.NextNumber(ctx, issueDate.Time)
		if err != nil {
			return err
		}
		inv.Number = number
		return repo.Insert(ctx, &inv)
	})
	if err != nil {
		return Invoice{}, err
	}
	s.record(ctx, "invoice.create", inv.ID, map[string]any{"number": inv.Number, "grand_total": inv.GrandTotal.String()})
	return inv, nil
}

// Get loads an invoice of the org.
func (s *Service) Get(ctx context.Context, orgID, id uuid.UUID) (Invoice, error) {
	return s.repo.Get(ctx, orgID, id)
}

// List pages through invoices, newest first.
func (s *Service) List(ctx context.Context, orgID uuid.UUID, filter ListFilter, page shared.Page) (shared.ListResult[Invoice], error) {
	invoices, total, err := s.repo.List(ctx, orgID, filter, page)
	if err != nil {
		return shared.ListResult[Invoice]{}, err
	}
	return shared.ListResult[Invoice]{Items: invoices, Pagination: shared.NewPagination(page, total)}, nil
}

// Update edits a DRAFT invoice; items, when present, replace the current ones.
func (s *Service) Update(ctx context.Context, orgID, id uuid.UUID, req UpdateInvoiceRequest) (Invoice, error) {
	if req.Items != nil {
		if err := sales.ValidateLines(*req.Items); err != nil {
			return Invoice{}, err
		}
	}
	if req.DiscountRate != nil {
		if err := sales.ValidateRate("discount_rate", *req.DiscountRate); err != nil {
			return Invoice{}, err
		}
	}
	var updated Invoice
	err := s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		inv, err := repo.GetForUpdate(ctx, orgID, id)
		if err != nil {
			return err
		}
		if err := sales.InvoiceTransitions.Editable(inv.Status); err != nil {
			return err
		}
		if req.Notes != nil {
			inv.Notes = *req.Notes
		}
		if req.DiscountRate != nil {
			inv.DiscountRate = *req.DiscountRate
		}
		inputs := sales.Inputs(inv.Items)
		if req.Items != nil {
			inputs = *req.Items
			if err := s.ports.Refs.CheckProducts(ctx, orgID, sales.ProductIDs(inputs)); err != nil {
				return err
			}
		}
		inv.recalculate(inputs)
		if err := repo.Update(ctx, inv, req.Items != nil); err != nil {
			return err
		}
		updated = inv
		return nil
	})
	if err != nil {
		return Invoice{}, err
	}
	if req.Items == nil {
		return s.repo.Get(ctx, orgID, id)
	}
	return updated, nil
}

// Transition moves an invoice to status. Issuing opens the receivable in the
// same transaction; PAID needs a settled balance and cancelling needs an
// invoice without allocations.
func (s *Service) Transition(ctx context.Context, orgID, id uuid.UUID, to Status) (Invoice, error) {
	var (
		inv  Invoice
		from Status
	)
	err := s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		var err error
		inv, err = repo.GetForUpdate(ctx, orgID, id)
		if err != nil {
			return err
		}
		from = inv.Status
		if err := sales.InvoiceTransitions.Check(from, to); err != nil {
			return err
		}
		switch to {
		case sales.InvoicePaid:
			remaining, err := s.ports.Settlement.Remaining(ctx, orgID, id)
			if err != nil {
				return err
			}
			if !remaining.IsZero() {
				return fmt.Errorf("%w: remaining %s", shared.ErrUnsettledBalance, remaining.StringFixed(sales.MoneyPlaces))
			}
		case sales.InvoiceCancelled:
			allocated, err := s.ports.Settlement.HasAllocations(ctx, orgID, id)
			if err != nil {
				return err
			}
			if allocated {
				return shared.ErrAllocatedInvoice
			}
		}
		if err := repo.UpdateStatus(ctx, id, to); err != nil {
			return err
		}
		inv.Status = to
		if to == sales.InvoiceIssued {
			if _, err := s.ports.Receivable.HandleInvoiceIssued(ctx, inv.issuedEvent()); err != nil {
				return fmt.Errorf("open receivable: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return Invoice{}, err
	}
	s.metrics.DocumentTransition("invoice", string(to))
	s.record(ctx, "invoice.status", id, map[string]any{"from": from, "to": to})
	s.bump(ctx)
	return inv, nil
}

func (s *Service) bump(ctx context.Context) {
	if s.ports.Notifier == nil {
		return
	}
	if err := s.ports.Notifier.Bump(ctx); err != nil {
		s.logger.Warn("dashboard cache bump", slog.Any("error", err))
	}
}

func (s *Service) record(ctx context.Context, action string, id uuid.UUID, meta map[string]any) {
	if s.ports.Audit == nil {
		return
	}
	actor, org := shared.ActorFromContext(ctx)
	if err := s.ports.Audit.Record(ctx, shared.AuditLog{ActorID: actor, OrgID: org, Action: action, Entity: "sales_invoice", EntityID: id.String(), Meta: meta}); err != nil {
		s.logger.Warn("audit sales invoice", slog.String("action", action), slog.Any("error", err))
	}
}
