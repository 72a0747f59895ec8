package orders

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/odyssey-erp/odyssey-ledger/internal/observability"
	"github.com/odyssey-erp/odyssey-ledger/internal/sales/quotations"
	sales "github.com/odyssey-erp/odyssey-ledger/internal/sales/shared"
	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// QuoteReader loads the quote being converted.
type QuoteReader interface {
	Get(ctx context.Context, orgID, id uuid.UUID) (quotations.Quote, error)
}

// ServiceConfig groups optional settings.
type ServiceConfig struct {
	DefaultCurrency string
	Now             func() time.Time
}

// Service implements the sales order lifecycle.
type Service struct {
	repo     Repository
	refs     sales.ReferenceChecker
	quotes   QuoteReader
	stock    sales.FulfillmentHandler
	audit    AuditPort
	metrics  *observability.Metrics
	logger   *slog.Logger
	currency string
	now      func() time.Time
}

// NewService builds Service.
func NewService(repo Repository, refs sales.ReferenceChecker, quotes QuoteReader, stock sales.FulfillmentHandler, audit AuditPort, metrics *observability.Metrics, logger *slog.Logger, cfg ServiceConfig) *Service {
	if cfg.DefaultCurrency == "" {
		cfg.DefaultCurrency = "TRY"
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:     repo,
		refs:     refs,
		quotes:   quotes,
		stock:    stock,
		audit:    audit,
		metrics:  metrics,
		logger:   logger,
		currency: cfg.DefaultCurrency,
		now:      cfg.Now,
	}
}

// Create validates references, computes totals and stores a NEW order.
func (s *Service) Create(ctx context.Context, orgID uuid.UUID, req CreateOrderRequest) (SalesOrder, error) {
	if err := sales.ValidateLines(req.Items); err != nil {
		return SalesOrder{}, err
	}
	if err := sales.ValidateRate("discount_rate", req.DiscountRate); err != nil {
		return SalesOrder{}, err
	}
	currency, err := sales.ResolveCurrency(req.Currency, s.currency)
	if err != nil {
		return SalesOrder{}, err
	}
	orderDate := shared.NewDate(s.now())
	if req.OrderDate != nil && !req.OrderDate.IsZero() {
		orderDate = *req.OrderDate
	}
	order := SalesOrder{
		OrgID:        orgID,
		PartnerID:    req.PartnerID,
		Currency:     currency,
		Status:       sales.OrderTransitions.Initial(),
		OrderDate:    orderDate,
		Notes:        req.Notes,
		DiscountRate: req.DiscountRate,
	}
	order.recalculate(req.Items)

	if err := s.insert(ctx, &order, req.Items); err != nil {
		return SalesOrder{}, err
	}
	s.record(ctx, "order.create", order.ID, map[string]any{"number": order.Number, "grand_total": order.GrandTotal.String()})
	return order, nil
}

func (s *Service) insert(ctx context.Context, order *SalesOrder, lines []sales.LineInput) error {
	return s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		if err := s.refs.CheckPartner(ctx, order.OrgID, order.PartnerID); err != nil {
			return err
		}
		if err := s.refs.CheckProducts(ctx, order.OrgID, sales.ProductIDs(lines)); err != nil {
			return err
		}
		number, err := repo.NextNumber(ctx, order.OrderDate.Time)
		if err != nil {
			return err
		}
		order.Number = number
		return repo.Insert(ctx, order)
	})
}

// ConvertQuote creates a NEW order from an APPROVED or SENT quote.
func (s *Service) ConvertQuote(ctx context.Context, orgID, quoteID uuid.UUID) (SalesOrder, error) {
	quote, err := s.quotes.Get(ctx, orgID, quoteID)
	if err != nil {
		return SalesOrder{}, err
	}
	if quote.Status != sales.QuoteApproved && quote.Status != sales.QuoteSent {
		return SalesOrder{}, fmt.Errorf("%w: quote is %s", shared.ErrInvalidStatus, quote.Status)
	}
	order := SalesOrder{
		OrgID:        orgID,
		PartnerID:    quote.PartnerID,
		QuoteID:      &quote.ID,
		Currency:     quote.Currency,
		Status:       sales.OrderTransitions.Initial(),
		OrderDate:    shared.NewDate(s.now()),
		Notes:        quote.Notes,
		DiscountRate: quote.DiscountRate,
	}
	inputs := sales.Inputs(quote.Items)
	order.recalculate(inputs)

	if err := s.insert(ctx, &order, inputs); err != nil {
		return SalesOrder{}, err
	}
	s.record(ctx, "order.convert", order.ID, map[string]any{"number": order.Number, "quote_id": quote.ID.String()})
	return order, nil
}

// Get loads an order of the org.
func (s *Service) Get(ctx context.Context, orgID, id uuid.UUID) (SalesOrder, error) {
	return s.repo.Get(ctx, orgID, id)
}

// List pages through orders, newest first.
func (s *Service) List(ctx context.Context, orgID uuid.UUID, filter ListFilter, page shared.Page) (shared.ListResult[SalesOrder], error) {
	orders, total, err := s.repo.List(ctx, orgID, filter, page)
	if err != nil {
		return shared.ListResult[SalesOrder]{}, err
	}
	return shared.ListResult[SalesOrder]{Items: orders, Pagination: shared.NewPagination(page, total)}, nil
}

// Update edits a NEW order; items, when present, replace the current ones.
func (s *Service) Update(ctx context.Context, orgID, id uuid.UUID, req UpdateOrderRequest) (SalesOrder, error) {
	if req.Items != nil {
		if err := sales.ValidateLines(*req.Items); err != nil {
			return SalesOrder{}, err
		}
	}
	if req.DiscountRate != nil {
		if err := sales.ValidateRate("discount_rate", *req.DiscountRate); err != nil {
			return SalesOrder{}, err
		}
	}
	var updated SalesOrder
	err := s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		order, err := repo.GetForUpdate(ctx, orgID, id)
		if err != nil {
			return err
		}
		if err := sales.OrderTransitions.Editable(order.Status); err != nil {
			return err
		}
		if req.Notes != nil {
			order.Notes = *req.Notes
		}
		if req.DiscountRate != nil {
			order.DiscountRate = *req.DiscountRate
		}
		inputs := sales.Inputs(order.Items)
		if req.Items != nil {
			inputs = *req.Items
			if err := s.refs.CheckProducts(ctx, orgID, sales.ProductIDs(inputs)); err != nil {
				return err
			}
		}
		order.recalculate(inputs)
		if err := repo.Update(ctx, order, req.Items != nil); err != nil {
			return err
		}
		updated = order
		return nil
	})
	if err != nil {
		return SalesOrder{}, err
	}
	if req.Items == nil {
		return s.repo.Get(ctx, orgID, id)
	}
	return updated, nil
}

// Transition moves an order to status. Reaching FULFILLED writes the
// outbound stock movements in the same transaction.
func (s *Service) Transition(ctx context.Context, orgID, id uuid.UUID, to Status) (SalesOrder, error) {
	var (
		order SalesOrder
		from  Status
	)
	err := s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		var err error
		order, err = repo.GetForUpdate(ctx, orgID, id)
		if err != nil {
			return err
		}
		from = order.Status
		if err := sales.OrderTransitions.Check(from, to); err != nil {
			return err
		}
		if to == sales.OrderFulfilled {
			evt := sales.FulfillmentFromItems(orgID, order.ID, order.Number, order.Items)
			if err := s.stock.HandleFulfillment(ctx, evt); err != nil {
				return err
			}
		}
		if err := repo.UpdateStatus(ctx, id, to); err != nil {
			return err
		}
		order.Status = to
		return nil
	})
	if err != nil {
		return SalesOrder{}, err
	}
	s.metrics.DocumentTransition("order", string(to))
	s.record(ctx, "order.status", id, map[string]any{"from": from, "to": to})
	return order, nil
}

// Fulfill ships a CONFIRMED order.
func (s *Service) Fulfill(ctx context.Context, orgID, id uuid.UUID) (SalesOrder, error) {
	return s.Transition(ctx, orgID, id, sales.OrderFulfilled)
}

func (s *Service) record(ctx context.Context, action string, id uuid.UUID, meta map[string]any) {
	if s.audit == nil {
		return
	}
	actor, org := shared.ActorFromContext(ctx)
	if err := s.audit.Record(ctx, shared.AuditLog{ActorID: actor, OrgID: org, Action: action, Entity: "sales_order", EntityID: id.String(), Meta: meta}); err != nil {
		s.logger.Warn("audit sales order", slog.String("action", action), slog.Any("error", err))
	}
}
