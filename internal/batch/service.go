package batch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
)

// IngestionError reports a failed ingestion with enough detail to retry.
// The failed batch stays in the store in FAILED state and is never visible
// to queries.
type IngestionError struct {
	BatchID uuid.UUID
	Reason  string
	Err     error
}

func (e *IngestionError) Error() string {
	return fmt.Sprintf("batch %s ingestion failed: %s", e.BatchID, e.Reason)
}

func (e *IngestionError) Unwrap() error { return e.Err }

// Service coordinates batch ingestion and lifecycle.
type Service struct {
	repo   RepositoryPort
	cache  CacheInvalidator
	tasks  TaskEnqueuer
	logger *slog.Logger
}

// NewService builds Service. Cache and task ports may be nil in tests.
func NewService(repo RepositoryPort, cache CacheInvalidator, tasks TaskEnqueuer, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, cache: cache, tasks: tasks, logger: logger}
}

// Ingest stores one upload: the batch is created in PROCESSING state, rows are
// appended atomically, and only then does the batch become PROCESSED. Any
// storage error marks the batch FAILED without leaving partial rows visible.
func (s *Service) Ingest(ctx context.Context, fileName string, rows []SnapshotRow) (uuid.UUID, error) {
	if len(rows) == 0 {
		return uuid.Nil, ErrEmptyBatch
	}
	for i, row := range rows {
		if _, err := ParseCategory(string(row.Category)); err != nil {
			return uuid.Nil, fmt.Errorf("row %d: %w", i, err)
		}
		if row.CBMPerUnit < 0 {
			return uuid.Nil, fmt.Errorf("row %d: cbm per unit must be non-negative", i)
		}
	}

	batchID, err := s.repo.CreateBatch(ctx, fileName)
	if err != nil {
		return uuid.Nil, fmt.Errorf("create batch: %w", err)
	}

	if err := s.repo.AppendSnapshots(ctx, batchID, rows); err != nil {
		if markErr := s.repo.MarkFailed(ctx, batchID); markErr != nil {
			s.logger.Error("mark batch failed", slog.String("batch_id", batchID.String()), slog.Any("error", markErr))
		}
		s.bump(ctx)
		return batchID, &IngestionError{BatchID: batchID, Reason: ingestionReason(err), Err: err}
	}

	if err := s.repo.MarkProcessed(ctx, batchID); err != nil {
		return batchID, &IngestionError{BatchID: batchID, Reason: ingestionReason(err), Err: err}
	}
	s.bump(ctx)

	if s.tasks != nil {
		if err := s.tasks.EnqueueSummaryWarmup(ctx); err != nil {
			s.logger.Warn("enqueue summary warmup", slog.Any("error", err))
		}
	}

	s.logger.Info("batch ingested",
		slog.String("batch_id", batchID.String()),
		slog.String("file_name", fileName),
		slog.Int("rows", len(rows)))
	return batchID, nil
}

// Delete removes a batch and everything it owns.
func (s *Service) Delete(ctx context.Context, batchID uuid.UUID) error {
	if err := s.repo.DeleteBatch(ctx, batchID); err != nil {
		return err
	}
	s.bump(ctx)
	return nil
}

// List returns one page of batches, newest first, plus the overall total.
func (s *Service) List(ctx context.Context, page, perPage int) ([]Batch, int, error) {
	if page <= 0 {
		page = 1
	}
	if perPage <= 0 {
		perPage = DefaultListPerPage
	}
	total, err := s.repo.CountBatches(ctx)
	if err != nil {
		return nil, 0, err
	}
	batches, err := s.repo.ListBatches(ctx, perPage, (page-1)*perPage)
	if err != nil {
		return nil, 0, err
	}
	return batches, total, nil
}

// ResolveScope returns the processed batch ids a query should aggregate over.
func (s *Service) ResolveScope(ctx context.Context, only *uuid.UUID) ([]uuid.UUID, error) {
	return s.repo.ListProcessedBatchIDs(ctx, only)
}

func (s *Service) bump(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Bump(ctx); err != nil {
		s.logger.Error("bump result cache", slog.Any("error", err))
	}
}

// ingestionReason extracts a caller-diagnosable message without leaking raw
// storage error text beyond what a retry needs.
func ingestionReason(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if pgErr.ConstraintName != "" {
			return fmt.Sprintf("storage rejected rows (constraint %s)", pgErr.ConstraintName)
		}
		return fmt.Sprintf("storage rejected rows (sqlstate %s)", pgErr.Code)
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return "ingestion cancelled before commit"
	}
	return "rows could not be durably stored"
}
