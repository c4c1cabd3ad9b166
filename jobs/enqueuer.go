package jobs

import (
	"context"
	"fmt"

	"github.com/hibiken/asynq"
)

// Enqueuer schedules background tasks from request handlers. It satisfies the
// batch store's TaskEnqueuer port.
type Enqueuer struct {
	client *asynq.Client
}

// NewEnqueuer constructs Enqueuer around an Asynq client.
func NewEnqueuer(client *asynq.Client) *Enqueuer {
	return &Enqueuer{client: client}
}

// EnqueueSummaryWarmup schedules one warmup run on the default queue.
func (e *Enqueuer) EnqueueSummaryWarmup(ctx context.Context) error {
	if e == nil || e.client == nil {
		return nil
	}
	task, err := NewSummaryWarmupTask(SummaryWarmupPayload{Reason: "batch ingested"})
	if err != nil {
		return fmt.Errorf("jobs: build warmup task: %w", err)
	}
	if _, err := e.client.EnqueueContext(ctx, task, asynq.Queue(QueueDefault)); err != nil {
		return fmt.Errorf("jobs: enqueue warmup: %w", err)
	}
	return nil
}
