package dashboard

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/odyssey-erp/odyssey-ledger/internal/ar"
	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// Receivables answers the AR panel.
type Receivables interface {
	OpenTotal(ctx context.Context, orgID uuid.UUID) (decimal.Decimal, error)
	Aging(ctx context.Context, orgID uuid.UUID, asOf time.Time) (ar.AgingReport, error)
}

// Service assembles the dashboard panels behind the versioned cache.
type Service struct {
	repo        Repository
	receivables Receivables
	cache       *Cache
	logger      *slog.Logger
	now         func() time.Time
}

// NewService wires the panel sources with the cache.
func NewService(repo Repository, receivables Receivables, cache *Cache, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, receivables: receivables, cache: cache, logger: logger, now: time.Now}
}

// Bump invalidates cached summaries. Ledger services call it after commits.
func (s *Service) Bump(ctx context.Context) error {
	return s.cache.Bump(ctx)
}

// Summary returns the four dashboard panels. limit sizes the top customers panel.
func (s *Service) Summary(ctx context.Context, orgID uuid.UUID, limit int) (Summary, error) {
	if limit <= 0 {
		limit = DefaultTopCustomers
	}
	today := shared.DateOf(s.now().UTC())
	key, err := s.cache.BuildKey(ctx, "dashboard", "summary", orgID.String(), today.Format(shared.DateLayout), strconv.Itoa(limit))
	if err != nil {
		return Summary{}, err
	}
	var summary Summary
	err = s.cache.FetchJSON(ctx, key, &summary, func(ctx context.Context) (any, error) {
		return s.build(ctx, orgID, today, limit)
	})
	return summary, err
}

func (s *Service) build(ctx context.Context, orgID uuid.UUID, today time.Time, limit int) (Summary, error) {
	summary := Summary{AsOf: today}
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		if summary.Sales.Today, err = s.repo.InvoicedTotal(ctx, orgID, today, today); err != nil {
			return err
		}
		monthStart := time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, time.UTC)
		summary.Sales.MonthToDate, err = s.repo.InvoicedTotal(ctx, orgID, monthStart, today)
		return err
	})
	g.Go(func() error {
		var err error
		if summary.Receivables.OpenTotal, err = s.receivables.OpenTotal(ctx, orgID); err != nil {
			return err
		}
		summary.Receivables.Aging, err = s.receivables.Aging(ctx, orgID, today)
		return err
	})
	g.Go(func() error {
		var err error
		summary.LowStock, err = s.repo.LowStock(ctx, orgID)
		return err
	})
	g.Go(func() error {
		var err error
		summary.TopCustomers, err = s.repo.TopCustomers(ctx, orgID, today.Add(-topCustomerWindow), limit)
		return err
	})
	if err := g.Wait(); err != nil {
		s.logger.Error("build dashboard summary", slog.String("org_id", orgID.String()), slog.Any("error", err))
		return Summary{}, err
	}
	return summary, nil
}
