package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/stocklens/stocklens/internal/analytics"
	"github.com/stocklens/stocklens/internal/batch"
	jobmetrics "github.com/stocklens/stocklens/internal/jobs"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// SummaryService is the analytics surface the warmup needs.
type SummaryService interface {
	GetSummary(ctx context.Context, filter analytics.SummaryFilter) (analytics.Summary, error)
}

// SummaryWarmupJob recomputes the unfiltered summary so the first dashboard
// request after an ingestion hits a warm cache.
type SummaryWarmupJob struct {
	Analytics SummaryService
	Logger    *slog.Logger
	Metrics   *jobmetrics.Metrics
	clock     func() time.Time
}

// NewSummaryWarmupJob wires dependencies for the warmup handler.
func NewSummaryWarmupJob(analyticsSvc SummaryService, logger *slog.Logger, metrics *jobmetrics.Metrics) *SummaryWarmupJob {
	return &SummaryWarmupJob{
		Analytics: analyticsSvc,
		Logger:    logger,
		Metrics:   metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle processes summary warmup tasks.
func (j *SummaryWarmupJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Analytics == nil {
		return errors.New("summary warmup: handler not configured")
	}
	var payload SummaryWarmupPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}

	tracker := j.metrics().Track(TaskSummaryWarmup)
	logger := j.logger().With(slog.String("reason", payload.Reason))
	start := j.now()

	if _, err := j.Analytics.GetSummary(ctx, analytics.SummaryFilter{}); err != nil {
		if errors.Is(err, batch.ErrNoProcessedBatches) {
			logger.Info("no processed batches, nothing to warm")
			return tracker.End(nil)
		}
		logger.Error("summary warmup", slog.Any("error", err))
		return tracker.End(err)
	}

	logger.Info("summary cache warmed", slog.Duration("duration", time.Since(start)))
	return tracker.End(nil)
}

func (j *SummaryWarmupJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

func (j *SummaryWarmupJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}

func (j *SummaryWarmupJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}
