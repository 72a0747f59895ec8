package jobs

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"

	// TaskQuotesExpire moves overdue SENT quotes to EXPIRED.
	TaskQuotesExpire = "sales:quotes.expire"
	// TaskStockReconcile rebuilds stock balances from the movement log.
	TaskStockReconcile = "inventory:stock.reconcile"
	// TaskIdempotencyCleanup purges old idempotency keys.
	TaskIdempotencyCleanup = "platform:idempotency.cleanup"
)

// Schedules are the cron expressions (UTC) of the periodic tasks.
var Schedules = map[string]string{
	TaskQuotesExpire:       "5 * * * *",
	TaskStockReconcile:     "30 2 * * *",
	TaskIdempotencyCleanup: "0 4 * * *",
}

// RunPayload carries scheduling metadata shared by all tasks.
type RunPayload struct {
	ScheduledFor time.Time `json:"scheduled_for"`
}

// NewTask constructs a task of a known type.
func NewTask(taskType string, at time.Time) (*asynq.Task, error) {
	if _, ok := Schedules[taskType]; !ok {
		return nil, fmt.Errorf("jobs: unsupported task %q", taskType)
	}
	body, err := json.Marshal(RunPayload{ScheduledFor: at.UTC()})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(taskType, body, asynq.Queue(QueueDefault), asynq.MaxRetry(3)), nil
}

func decodePayload(t *asynq.Task) (RunPayload, error) {
	var payload RunPayload
	if len(t.Payload()) == 0 {
		return payload, nil
	}
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return payload, fmt.Errorf("%s: %v: %w", t.Type(), err, asynq.SkipRetry)
	}
	return payload, nil
}

// CronRegistrations builds the scheduler entries for every periodic task.
func CronRegistrations(now time.Time) ([]CronRegistration, error) {
	entries := make([]CronRegistration, 0, len(Schedules))
	for _, taskType := range []string{TaskQuotesExpire, TaskStockReconcile, TaskIdempotencyCleanup} {
		task, err := NewTask(taskType, now)
		if err != nil {
			return nil, err
		}
		entries = append(entries, CronRegistration{Spec: Schedules[taskType], Task: task})
	}
	return entries, nil
}
