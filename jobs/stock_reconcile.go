package jobs

import (
	"context"
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/odyssey-ledger/internal/inventory"
	jobmetrics "github.com/odyssey-erp/odyssey-ledger/internal/jobs"
)

// StockReconciler runs one guarded reconciliation.
type StockReconciler interface {
	Run(ctx context.Context) (inventory.ReconcileReport, error)
}

// StockReconcileJob handles TaskStockReconcile.
type StockReconcileJob struct {
	Reconciler StockReconciler
	Logger     *slog.Logger
	Metrics    *jobmetrics.Metrics
}

// NewStockReconcileJob wires dependencies for the reconcile handler.
func NewStockReconcileJob(reconciler StockReconciler, logger *slog.Logger, metrics *jobmetrics.Metrics) *StockReconcileJob {
	return &StockReconcileJob{Reconciler: reconciler, Logger: logger, Metrics: metrics}
}

// Handle processes TaskStockReconcile tasks. A run blocked by another holder of the lock is skipped.
func (j *StockReconcileJob) Handle(ctx context.Context, t *asynq.Task) (err error) {
	if j == nil || j.Reconciler == nil {
		return errors.New("stock reconcile: handler not configured")
	}
	if _, err := decodePayload(t); err != nil {
		return err
	}
	tracker := j.Metrics.Track(TaskStockReconcile)
	defer func() { err = tracker.End(err) }()

	logger := loggerOr(j.Logger).With(slog.String("job", TaskStockReconcile))
	report, err := j.Reconciler.Run(ctx)
	if errors.Is(err, inventory.ErrReconcileRunning) {
		logger.Info("stock reconcile skipped, lock held")
		tracker.Skip()
		return nil
	}
	if err != nil {
		logger.Error("stock reconcile", slog.Any("error", err))
		return err
	}
	logger.Info("stock reconcile finished", slog.Int("checked", report.Checked), slog.Int("drifts", len(report.Drifts)))
	return nil
}
