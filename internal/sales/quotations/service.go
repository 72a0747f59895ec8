package quotations

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/odyssey-erp/odyssey-ledger/internal/observability"
	sales "github.com/odyssey-erp/odyssey-ledger/internal/sales/shared"
	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// ServiceConfig groups optional settings.
type ServiceConfig struct {
	DefaultCurrency string
	Now             func() time.Time
}

// Service implements the quote lifecycle.
type Service struct {
	repo     Repository
	refs     sales.ReferenceChecker
	audit    AuditPort
	metrics  *observability.Metrics
	logger   *slog.Logger
	currency string
	now      func() time.Time
}

// NewService builds Service.
func NewService(repo Repository, refs sales.ReferenceChecker, audit AuditPort, metrics *observability.Metrics, logger *slog.Logger, cfg ServiceConfig) *Service {
	if cfg.DefaultCurrency == "" {
		cfg.DefaultCurrency = "TRY"
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, refs: refs, audit: audit, metrics: metrics, logger: logger, currency: cfg.DefaultCurrency, now: cfg.Now}
}

// Create validates references, computes totals and stores a DRAFT quote.
func (s *Service) Create(ctx context.Context, orgID uuid.UUID, req CreateQuoteRequest) (Quote, error) {
	if err := sales.ValidateLines(req.Items); err != nil {
		return Quote{}, err
	}
	if err := sales.ValidateRate("discount_rate", req.DiscountRate); err != nil {
		return Quote{}, err
	}
	currency, err := sales.ResolveCurrency(req.Currency, s.currency)
	if err != nil {
		return Quote{}, err
	}
	issueDate := shared.NewDate(s.now())
	if req.IssueDate != nil && !req.IssueDate.IsZero() {
		issueDate = *req.IssueDate
	}
	if req.ValidUntil != nil && !req.ValidUntil.IsZero() && req.ValidUntil.Before(issueDate.Time) {
		return Quote{}, fmt.Errorf("%w: valid_until before issue_date", shared.ErrInvalidDates)
	}

	quote := Quote{
		OrgID:        orgID,
		PartnerID:    req.PartnerID,
		Currency:     currency,
		Status:       sales.QuoteTransitions.Initial(),
		IssueDate:    issueDate,
		ValidUntil:   req.ValidUntil,
		Notes:        req.Notes,
		DiscountRate: req.DiscountRate,
	}
	quote.recalculate(req.Items)

	err = s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		if err := s.refs.CheckPartner(ctx, orgID, req.PartnerID); err != nil {
			return err
		}
		if err := s.refs.CheckProducts(ctx, orgID, sales.ProductIDs(req.Items)); err != nil {
			return err
		}
		number, err := repo.NextNumber(ctx, issueDate.Time)
		if err != nil {
			return err
		}
		quote.Number = number
		return repo.Insert(ctx, &quote)
	})
	if err != nil {
		return Quote{}, err
	}
	s.record(ctx, "quote.create", quote.ID, map[string]any{"number": quote.Number, "grand_total": quote.GrandTotal.String()})
	return quote, nil
}

// Get loads a quote of the org.
func (s *Service) Get(ctx context.Context, orgID, id uuid.UUID) (Quote, error) {
	return s.repo.Get(ctx, orgID, id)
}

// List pages through quotes, newest first.
func (s *Service) List(ctx context.Context, orgID uuid.UUID, filter ListFilter, page shared.Page) (shared.ListResult[Quote], error) {
	quotes, total, err := s.repo.List(ctx, orgID, filter, page)
	if err != nil {
		return shared.ListResult[Quote]{}, err
	}
	return shared.ListResult[Quote]{Items: quotes, Pagination: shared.NewPagination(page, total)}, nil
}

// Update edits a DRAFT quote; items, when present, replace the current ones.
func (s *Service) Update(ctx context.Context, orgID, id uuid.UUID, req UpdateQuoteRequest) (Quote, error) {
	if req.Items != nil {
		if err := sales.ValidateLines(*req.Items); err != nil {
			return Quote{}, err
		}
	}
	if req.DiscountRate != nil {
		if err := sales.ValidateRate("discount_rate", *req.DiscountRate); err != nil {
			return Quote{}, err
		}
	}
	var updated Quote
	err := s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		quote, err := repo.GetForUpdate(ctx, orgID, id)
		if err != nil {
			return err
		}
		if err := sales.QuoteTransitions.Editable(quote.Status); err != nil {
			return err
		}
		if req.Notes != nil {
			quote.Notes = *req.Notes
		}
		if req.DiscountRate != nil {
			quote.DiscountRate = *req.DiscountRate
		}
		if req.ValidUntil != nil {
			quote.ValidUntil = req.ValidUntil
			if !req.ValidUntil.IsZero() && req.ValidUntil.Before(quote.IssueDate.Time) {
				return fmt.Errorf("%w: valid_until before issue_date", shared.ErrInvalidDates)
			}
		}
		inputs := sales.Inputs(quote.Items)
		if req.Items != nil {
			inputs = *req.Items
			if err := s.refs.CheckProducts(ctx, orgID, sales.ProductIDs(inputs)); err != nil {
				return err
			}
		}
		quote.recalculate(inputs)
		if err := repo.Update(ctx, quote, req.Items != nil); err != nil {
			return err
		}
		updated = quote
		return nil
	})
	if err != nil {
		return Quote{}, err
	}
	if req.Items == nil {
		// positions and ids of untouched items come from storage
		return s.repo.Get(ctx, orgID, id)
	}
	return updated, nil
}

// Transition moves a quote to status when the lifecycle allows it.
func (s *Service) Transition(ctx context.Context, orgID, id uuid.UUID, to Status) (Quote, error) {
	var (
		quote Quote
		from  Status
	)
	err := s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		var err error
		quote, err = repo.GetForUpdate(ctx, orgID, id)
		if err != nil {
			return err
		}
		from = quote.Status
		if err := sales.QuoteTransitions.Check(from, to); err != nil {
			return err
		}
		if err := repo.UpdateStatus(ctx, id, to); err != nil {
			return err
		}
		quote.Status = to
		return nil
	})
	if err != nil {
		return Quote{}, err
	}
	s.metrics.DocumentTransition("quote", string(to))
	s.record(ctx, "quote.status", id, map[string]any{"from": from, "to": to})
	return quote, nil
}

// ExpireDue moves SENT quotes whose validity ended before today to EXPIRED.
func (s *Service) ExpireDue(ctx context.Context) (int, error) {
	today := shared.DateOf(s.now())
	refs, err := s.repo.ListExpirable(ctx, today)
	if err != nil {
		return 0, fmt.Errorf("list expirable quotes: %w", err)
	}
	expired := 0
	for _, ref := range refs {
		if _, err := s.Transition(ctx, ref.OrgID, ref.ID, sales.QuoteExpired); err != nil {
			// a concurrent transition may have moved it already
			s.logger.Warn("quote expiry skipped", slog.String("quote_id", ref.ID.String()), slog.Any("error", err))
			continue
		}
		expired++
	}
	return expired, nil
}

func (s *Service) record(ctx context.Context, action string, id uuid.UUID, meta map[string]any) {
	if s.audit == nil {
		return
	}
	actor, org := shared.ActorFromContext(ctx)
	if err := s.audit.Record(ctx, shared.AuditLog{ActorID: actor, OrgID: org, Action: action, Entity: "quote", EntityID: id.String(), Meta: meta}); err != nil {
		s.logger.Warn("audit quote", slog.String("action", action), slog.Any("error", err))
	}
}
