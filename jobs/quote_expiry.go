package jobs

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/bsm/redislock"
	"github.com/hibiken/asynq"

	jobmetrics "github.com/odyssey-erp/odyssey-ledger/internal/jobs"
	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// QuoteExpirer expires SENT quotes past their validity.
type QuoteExpirer interface {
	ExpireDue(ctx context.Context) (int, error)
}

// QuoteExpiryJob runs the quote expiry sweep once per lock window.
type QuoteExpiryJob struct {
	Quotes  QuoteExpirer
	Locker  *redislock.Client
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
	clock   func() time.Time
}

// NewQuoteExpiryJob wires dependencies for the expiry handler.
func NewQuoteExpiryJob(quotes QuoteExpirer, locker *redislock.Client, logger *slog.Logger, metrics *jobmetrics.Metrics) *QuoteExpiryJob {
	return &QuoteExpiryJob{
		Quotes:  quotes,
		Locker:  locker,
		Logger:  logger,
		Metrics: metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle processes TaskQuotesExpire tasks.
func (j *QuoteExpiryJob) Handle(ctx context.Context, t *asynq.Task) (err error) {
	if j == nil || j.Quotes == nil {
		return errors.New("quote expiry: handler not configured")
	}
	if _, err := decodePayload(t); err != nil {
		return err
	}
	tracker := j.Metrics.Track(TaskQuotesExpire)
	defer func() { err = tracker.End(err) }()

	logger := loggerOr(j.Logger).With(slog.String("job", TaskQuotesExpire))
	if j.Locker != nil {
		lock, lockErr := j.Locker.Obtain(ctx, shared.QuoteExpiryLockKey(j.clock().Format(shared.DateLayout)), 10*time.Minute, nil)
		if errors.Is(lockErr, redislock.ErrNotObtained) {
			logger.Info("quote expiry already running")
			tracker.Skip()
			return nil
		}
		if lockErr != nil {
			return lockErr
		}
		defer func() { _ = lock.Release(context.WithoutCancel(ctx)) }()
	}

	expired, err := j.Quotes.ExpireDue(ctx)
	if err != nil {
		logger.Error("expire quotes", slog.Any("error", err))
		return err
	}
	logger.Info("quotes expired", slog.Int("count", expired))
	return nil
}

func loggerOr(logger *slog.Logger) *slog.Logger {
	if logger == nil {
		return slog.Default()
	}
	return logger
}
