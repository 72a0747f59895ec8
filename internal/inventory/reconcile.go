package inventory

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/bsm/redislock"

	jobmetrics "github.com/odyssey-erp/odyssey-ledger/internal/jobs"
	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// ErrReconcileRunning is returned when another process holds the reconcile lock.
var ErrReconcileRunning = errors.New("inventory: reconciliation already running")

// Reconciler serialises reconciliation runs across processes.
type Reconciler struct {
	service *Service
	locker  *redislock.Client
	ttl     time.Duration
	metrics *jobmetrics.Metrics
	logger  *slog.Logger
}

// NewReconciler constructs a Reconciler. A zero ttl defaults to five minutes.
func NewReconciler(service *Service, locker *redislock.Client, ttl time.Duration, metrics *jobmetrics.Metrics, logger *slog.Logger) *Reconciler {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{service: service, locker: locker, ttl: ttl, metrics: metrics, logger: logger}
}

// Run reconciles while holding the distributed lock.
func (r *Reconciler) Run(ctx context.Context) (ReconcileReport, error) {
	lock, err := r.locker.Obtain(ctx, shared.StockReconcileLockKey(), r.ttl, nil)
	if errors.Is(err, redislock.ErrNotObtained) {
		return ReconcileReport{}, ErrReconcileRunning
	}
	if err != nil {
		return ReconcileReport{}, err
	}
	defer func() {
		if err := lock.Release(context.WithoutCancel(ctx)); err != nil && !errors.Is(err, redislock.ErrLockNotHeld) {
			r.logger.Warn("release reconcile lock", slog.Any("error", err))
		}
	}()

	report, err := r.service.Reconcile(ctx)
	if err != nil {
		return ReconcileReport{}, err
	}
	r.metrics.AddDrift(len(report.Drifts))
	r.logger.Info("stock reconciled", slog.Int("checked", report.Checked), slog.Int("drifts", len(report.Drifts)))
	return report, nil
}
