package ar

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/observability"
	"github.com/odyssey-erp/odyssey-ledger/internal/platform/db"
	sales "github.com/odyssey-erp/odyssey-ledger/internal/sales/shared"
	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

const idempotencyModule = "ar.payment"

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// IdempotencyPort guards payment replays. CheckAndInsert must join the
// transaction carried by ctx so a rolled back payment releases its key.
type IdempotencyPort interface {
	CheckAndInsert(ctx context.Context, key, module string) error
}

// Config groups optional engine settings.
type Config struct {
	DefaultCurrency string
	Now             func() time.Time
}

// Engine posts receivable entries and answers balance questions.
type Engine struct {
	repo        Repository
	idempotency IdempotencyPort
	notifier    sales.ChangeNotifier
	audit       AuditPort
	metrics     *observability.Metrics
	logger      *slog.Logger
	currency    string
	now         func() time.Time
}

// NewEngine builds Engine. idempotency, notifier and audit may be nil.
func NewEngine(repo Repository, idempotency IdempotencyPort, notifier sales.ChangeNotifier, audit AuditPort, metrics *observability.Metrics, logger *slog.Logger, cfg Config) *Engine {
	if cfg.DefaultCurrency == "" {
		cfg.DefaultCurrency = "TRY"
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		repo:        repo,
		idempotency: idempotency,
		notifier:    notifier,
		audit:       audit,
		metrics:     metrics,
		logger:      logger,
		currency:    cfg.DefaultCurrency,
		now:         cfg.Now,
	}
}

// HandleInvoiceIssued records the INVOICE entry of an issued invoice, or
// returns the existing one.
func (e *Engine) HandleInvoiceIssued(ctx context.Context, evt sales.InvoiceIssuedEvent) (uuid.UUID, error) {
	var entryID uuid.UUID
	err := e.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		id, err := repo.FindInvoiceEntry(ctx, evt.InvoiceID)
		if err == nil {
			entryID = id
			return nil
		}
		if !errors.Is(err, shared.ErrNotFound) {
			return err
		}
		invoiceID := evt.InvoiceID
		entry := Entry{
			OrgID:     evt.OrgID,
			PartnerID: evt.PartnerID,
			InvoiceID: &invoiceID,
			EntryDate: shared.NewDate(evt.IssueDate),
			Type:      EntryInvoice,
			Amount:    evt.GrandTotal,
			Currency:  evt.Currency,
		}
		if err := repo.InsertEntry(ctx, &entry); err != nil {
			if db.IsUniqueViolation(err) {
				return fmt.Errorf("%w: invoice %s already has an entry", shared.ErrInvalidStatus, evt.Number)
			}
			return err
		}
		entryID = entry.ID
		return nil
	})
	return entryID, err
}

// PostPayment records a PAYMENT entry and allocates it, either to the
// requested invoices or oldest first. A non-empty key makes replays fail
// with ErrIdempotencyConflict.
func (e *Engine) PostPayment(ctx context.Context, orgID uuid.UUID, req PaymentRequest, key string) (PaymentResult, error) {
	if !req.Amount.IsPositive() {
		return PaymentResult{}, shared.ErrAmountNonPositive
	}
	currency, err := sales.ResolveCurrency(req.Currency, e.currency)
	if err != nil {
		return PaymentResult{}, err
	}
	if len(req.Allocations) > 0 {
		total := decimal.Zero
		for _, alloc := range req.Allocations {
			if !alloc.Amount.IsPositive() {
				return PaymentResult{}, fmt.Errorf("%w: allocation amount", shared.ErrAmountNonPositive)
			}
			total = total.Add(alloc.Amount)
		}
		if total.GreaterThan(req.Amount) {
			return PaymentResult{}, fmt.Errorf("%w: allocations %s exceed payment %s", shared.ErrOverallocation, total, req.Amount)
		}
	}

	entryDate := shared.NewDate(e.now())
	if req.EntryDate != nil && !req.EntryDate.IsZero() {
		entryDate = *req.EntryDate
	}
	var result PaymentResult
	err = e.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		if key != "" && e.idempotency != nil {
			if err := e.idempotency.CheckAndInsert(ctx, key, idempotencyModule); err != nil {
				return err
			}
		}
		entry := Entry{
			OrgID:     orgID,
			PartnerID: req.PartnerID,
			EntryDate: entryDate,
			Type:      EntryPayment,
			Amount:    req.Amount,
			Currency:  currency,
			Note:      req.Note,
		}
		if err := repo.InsertEntry(ctx, &entry); err != nil {
			return err
		}
		var (
			applied []AppliedAllocation
			err     error
		)
		if len(req.Allocations) > 0 {
			applied, err = e.allocateExplicit(ctx, repo, orgID, req)
		} else {
			applied, err = e.allocateFIFO(ctx, repo, orgID, req)
		}
		if err != nil {
			return err
		}
		unapplied := req.Amount
		for _, a := range applied {
			if err := repo.InsertAllocation(ctx, Allocation{EntryID: entry.ID, InvoiceID: a.InvoiceID, Amount: a.Amount}); err != nil {
				return err
			}
			unapplied = unapplied.Sub(a.Amount)
		}
		result = PaymentResult{EntryID: entry.ID, Applied: applied, UnappliedAmount: unapplied}
		return nil
	})
	if err != nil {
		return PaymentResult{}, err
	}

	mode := "fifo"
	if len(req.Allocations) > 0 {
		mode = "explicit"
	}
	e.metrics.PaymentPosted(mode)
	e.record(ctx, "ar.payment", result.EntryID, map[string]any{
		"partner_id": req.PartnerID.String(),
		"amount":     req.Amount.String(),
		"unapplied":  result.UnappliedAmount.String(),
		"mode":       mode,
	})
	e.bump(ctx)
	return result, nil
}

func (e *Engine) allocateExplicit(ctx context.Context, repo Repository, orgID uuid.UUID, req PaymentRequest) ([]AppliedAllocation, error) {
	ids := make([]uuid.UUID, 0, len(req.Allocations))
	for _, alloc := range req.Allocations {
		ids = append(ids, alloc.InvoiceID)
	}
	states, err := repo.LockInvoices(ctx, orgID, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[uuid.UUID]InvoiceState, len(states))
	for _, s := range states {
		byID[s.ID] = s
	}

	applied := make([]AppliedAllocation, 0, len(req.Allocations))
	for _, alloc := range req.Allocations {
		state, ok := byID[alloc.InvoiceID]
		if !ok || state.PartnerID != req.PartnerID ||
			state.Status == sales.InvoiceCancelled || state.Status == sales.InvoicePaid {
			return nil, fmt.Errorf("%w: %s", shared.ErrInvalidInvoiceForAllocation, alloc.InvoiceID)
		}
		remaining := state.Remaining()
		if alloc.Amount.GreaterThan(remaining) {
			return nil, fmt.Errorf("%w: %s exceeds remaining %s on %s", shared.ErrOverallocation, alloc.Amount, remaining, state.Number)
		}
		state.Allocated = state.Allocated.Add(alloc.Amount)
		byID[state.ID] = state
		applied = append(applied, AppliedAllocation{InvoiceID: state.ID, Amount: alloc.Amount, RemainingAfter: state.Remaining()})
	}
	return applied, nil
}

func (e *Engine) allocateFIFO(ctx context.Context, repo Repository, orgID uuid.UUID, req PaymentRequest) ([]AppliedAllocation, error) {
	candidates, err := repo.Invoices(ctx, orgID, InvoiceQuery{PartnerID: &req.PartnerID, ExcludeCancelled: true})
	if err != nil {
		return nil, err
	}
	ids := make([]uuid.UUID, 0, len(candidates))
	for _, c := range candidates {
		ids = append(ids, c.ID)
	}
	states, err := repo.LockInvoices(ctx, orgID, ids)
	if err != nil {
		return nil, err
	}
	sortFIFO(states)

	var applied []AppliedAllocation
	left := req.Amount
	for _, state := range states {
		if !left.IsPositive() {
			break
		}
		if state.Status == sales.InvoiceCancelled {
			continue
		}
		remaining := state.Remaining()
		if !remaining.IsPositive() {
			continue
		}
		amount := decimal.Min(remaining, left)
		left = left.Sub(amount)
		applied = append(applied, AppliedAllocation{InvoiceID: state.ID, Amount: amount, RemainingAfter: remaining.Sub(amount)})
	}
	return applied, nil
}

func sortFIFO(states []InvoiceState) {
	sort.SliceStable(states, func(i, j int) bool {
		a, b := states[i], states[j]
		if !a.IssueDate.Equal(b.IssueDate) {
			return a.IssueDate.Before(b.IssueDate)
		}
		return a.CreatedAt.Before(b.CreatedAt)
	})
}

// PartnerBalance lists every invoice of the partner with its open amount.
// Cancelled invoices are listed but not counted in TotalDue.
func (e *Engine) PartnerBalance(ctx context.Context, orgID, partnerID uuid.UUID) (PartnerBalance, error) {
	states, err := e.repo.Invoices(ctx, orgID, InvoiceQuery{PartnerID: &partnerID})
	if err != nil {
		return PartnerBalance{}, err
	}
	balance := PartnerBalance{PartnerID: partnerID, Currency: e.currency, TotalDue: decimal.Zero, ByInvoice: make([]InvoiceBalance, 0, len(states))}
	for _, s := range states {
		remaining := s.Remaining()
		balance.ByInvoice = append(balance.ByInvoice, InvoiceBalance{
			InvoiceID:   s.ID,
			Number:      s.Number,
			Status:      s.Status,
			IssuedTotal: s.GrandTotal,
			Allocated:   s.Allocated,
			Remaining:   remaining,
		})
		if s.Status != sales.InvoiceCancelled {
			balance.TotalDue = balance.TotalDue.Add(remaining)
		}
	}
	return balance, nil
}

// ListEntries pages through the partner's ledger, newest first.
func (e *Engine) ListEntries(ctx context.Context, orgID uuid.UUID, filter EntryFilter, page shared.Page) (shared.ListResult[Entry], error) {
	if filter.From != nil && filter.To != nil && filter.From.After(*filter.To) {
		return shared.ListResult[Entry]{}, fmt.Errorf("%w: from after to", shared.ErrInvalidDates)
	}
	entries, total, err := e.repo.ListEntries(ctx, orgID, filter, page)
	if err != nil {
		return shared.ListResult[Entry]{}, err
	}
	return shared.ListResult[Entry]{Items: entries, Pagination: shared.NewPagination(page, total)}, nil
}

// Aging buckets the open amount of ISSUED invoices by days since issue.
func (e *Engine) Aging(ctx context.Context, orgID uuid.UUID, asOf time.Time) (AgingReport, error) {
	if asOf.IsZero() {
		asOf = e.now()
	}
	states, err := e.repo.Invoices(ctx, orgID, InvoiceQuery{Statuses: []sales.InvoiceStatus{sales.InvoiceIssued}})
	if err != nil {
		return AgingReport{}, err
	}
	report := AgingReport{AsOf: shared.NewDate(asOf)}
	for _, s := range states {
		remaining := s.Remaining()
		if !remaining.IsPositive() {
			continue
		}
		report.Buckets.Add(shared.DaysBetween(s.IssueDate, asOf), remaining)
	}
	report.Total = report.Buckets.Total()
	return report, nil
}

// OpenTotal sums what is still owed across non-cancelled invoices.
func (e *Engine) OpenTotal(ctx context.Context, orgID uuid.UUID) (decimal.Decimal, error) {
	states, err := e.repo.Invoices(ctx, orgID, InvoiceQuery{ExcludeCancelled: true})
	if err != nil {
		return decimal.Zero, err
	}
	total := decimal.Zero
	for _, s := range states {
		if remaining := s.Remaining(); remaining.IsPositive() {
			total = total.Add(remaining)
		}
	}
	return total, nil
}

// Remaining returns the open amount of one invoice.
func (e *Engine) Remaining(ctx context.Context, orgID, invoiceID uuid.UUID) (decimal.Decimal, error) {
	state, err := e.repo.Invoice(ctx, orgID, invoiceID)
	if err != nil {
		return decimal.Zero, err
	}
	return state.Remaining(), nil
}

// HasAllocations reports whether any entry was applied to the invoice.
func (e *Engine) HasAllocations(ctx context.Context, orgID, invoiceID uuid.UUID) (bool, error) {
	return e.repo.HasAllocations(ctx, orgID, invoiceID)
}

func (e *Engine) bump(ctx context.Context) {
	if e.notifier == nil {
		return
	}
	if err := e.notifier.Bump(ctx); err != nil {
		e.logger.Warn("dashboard cache bump", slog.Any("error", err))
	}
}

func (e *Engine) record(ctx context.Context, action string, id uuid.UUID, meta map[string]any) {
	if e.audit == nil {
		return
	}
	actor, org := shared.ActorFromContext(ctx)
	if err := e.audit.Record(ctx, shared.AuditLog{ActorID: actor, OrgID: org, Action: action, Entity: "ar_entry", EntityID: id.String(), Meta: meta}); err != nil {
		e.logger.Warn("audit ar entry", slog.String("action", action), slog.Any("error", err))
	}
}
