package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskSummaryWarmup pre-populates the unfiltered summary cache entry
	// after a batch becomes visible to queries.
	TaskSummaryWarmup = "analytics:summary_warmup"
)

// SummaryWarmupPayload parametrizes a warmup run.
type SummaryWarmupPayload struct {
	// Reason records what triggered the warmup, for log correlation.
	Reason string `json:"reason"`
}

// NewSummaryWarmupTask constructs an Asynq task.
func NewSummaryWarmupTask(payload SummaryWarmupPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskSummaryWarmup, data), nil
}
