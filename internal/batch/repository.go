package batch

import (
	"context"

	"github.com/google/uuid"
)

// RepositoryPort abstracts batch persistence for the service.
type RepositoryPort interface {
	CreateBatch(ctx context.Context, fileName string) (uuid.UUID, error)
	AppendSnapshots(ctx context.Context, batchID uuid.UUID, rows []SnapshotRow) error
	MarkProcessed(ctx context.Context, batchID uuid.UUID) error
	MarkFailed(ctx context.Context, batchID uuid.UUID) error
	DeleteBatch(ctx context.Context, batchID uuid.UUID) error
	ListBatches(ctx context.Context, limit, offset int) ([]Batch, error)
	CountBatches(ctx context.Context) (int, error)
	ListProcessedBatchIDs(ctx context.Context, only *uuid.UUID) ([]uuid.UUID, error)
}

// CacheInvalidator is notified synchronously whenever the batch store changes.
type CacheInvalidator interface {
	Bump(ctx context.Context) error
}

// IngestKeyStore claims client-supplied idempotency keys for uploads. Delete
// releases a claim when the upload fails, so the caller can retry with the
// same key.
type IngestKeyStore interface {
	CheckAndInsert(ctx context.Context, key string) error
	Delete(ctx context.Context, key string) error
}

// TaskEnqueuer schedules background work after a batch becomes visible.
type TaskEnqueuer interface {
	EnqueueSummaryWarmup(ctx context.Context) error
}
