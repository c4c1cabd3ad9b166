package batch

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stocklens/stocklens/internal/platform/db"
)

const defaultChunkSize = 500

// Repository persists batches in PostgreSQL.
type Repository struct {
	pool      *pgxpool.Pool
	chunkSize int
}

// NewRepository constructs Repository. chunkSize bounds rows per statement
// batch during ingestion; zero selects the default.
func NewRepository(pool *pgxpool.Pool, chunkSize int) *Repository {
	if chunkSize <= 0 {
		chunkSize = defaultChunkSize
	}
	return &Repository{pool: pool, chunkSize: chunkSize}
}

// CreateBatch inserts a new batch in PROCESSING state.
func (r *Repository) CreateBatch(ctx context.Context, fileName string) (uuid.UUID, error) {
	id := uuid.New()
	_, err := r.pool.Exec(ctx, `INSERT INTO batches (id, file_name, status, created_at)
VALUES ($1,$2,$3,NOW())`, id, fileName, string(StatusProcessing))
	if err != nil {
		return uuid.Nil, err
	}
	return id, nil
}

// AppendSnapshots stores all rows and readings of a batch inside one
// transaction. Inserts are chunked to bound statement size, but the outer
// transaction keeps the batch all-or-nothing.
func (r *Repository) AppendSnapshots(ctx context.Context, batchID uuid.UUID, rows []SnapshotRow) error {
	if len(rows) == 0 {
		return ErrEmptyBatch
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		for start := 0; start < len(rows); start += r.chunkSize {
			end := start + r.chunkSize
			if end > len(rows) {
				end = len(rows)
			}
			if err := r.insertChunk(ctx, tx, batchID, rows[start:end]); err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *Repository) insertChunk(ctx context.Context, tx pgx.Tx, batchID uuid.UUID, rows []SnapshotRow) error {
	sb := &pgx.Batch{}
	for _, row := range rows {
		cbm := row.CBMPerUnit
		if row.IsTotalRow {
			// Total rows carry no per-unit volume by construction.
			cbm = 0
		}
		sb.Queue(`INSERT INTO sku_snapshots (batch_id, item, warehouse, item_group, category, cbm_per_unit, is_total_row)
VALUES ($1,$2,$3,$4,$5,$6,$7) RETURNING id`, batchID, row.Item, row.Warehouse, row.ItemGroup, string(row.Category), cbm, row.IsTotalRow)
	}
	br := tx.SendBatch(ctx, sb)
	ids := make([]int64, 0, len(rows))
	for range rows {
		var id int64
		if err := br.QueryRow().Scan(&id); err != nil {
			_ = br.Close()
			return err
		}
		ids = append(ids, id)
	}
	if err := br.Close(); err != nil {
		return err
	}

	readings := make([][]any, 0, len(rows))
	for i, row := range rows {
		for _, reading := range row.Readings {
			readings = append(readings, []any{ids[i], reading.Date, reading.Quantity})
		}
	}
	if len(readings) == 0 {
		return nil
	}
	_, err := tx.CopyFrom(ctx,
		pgx.Identifier{"daily_readings"},
		[]string{"snapshot_id", "reading_date", "quantity"},
		pgx.CopyFromRows(readings))
	return err
}

// MarkProcessed transitions a batch to PROCESSED, making it query-visible.
func (r *Repository) MarkProcessed(ctx context.Context, batchID uuid.UUID) error {
	return r.setStatus(ctx, batchID, StatusProcessed)
}

// MarkFailed transitions a batch to FAILED; its rows stay invisible to queries.
func (r *Repository) MarkFailed(ctx context.Context, batchID uuid.UUID) error {
	return r.setStatus(ctx, batchID, StatusFailed)
}

func (r *Repository) setStatus(ctx context.Context, batchID uuid.UUID, status Status) error {
	tag, err := r.pool.Exec(ctx, `UPDATE batches SET status=$2 WHERE id=$1`, batchID, string(status))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrBatchNotFound
	}
	return nil
}

// DeleteBatch hard-deletes a batch. Rows and readings cascade via FKs.
func (r *Repository) DeleteBatch(ctx context.Context, batchID uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM batches WHERE id=$1`, batchID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrBatchNotFound
	}
	return nil
}

// ListBatches returns one page of batches with their row counts, newest first.
func (r *Repository) ListBatches(ctx context.Context, limit, offset int) ([]Batch, error) {
	rows, err := r.pool.Query(ctx, `SELECT b.id, b.file_name, b.status, b.created_at,
(SELECT COUNT(*) FROM sku_snapshots s WHERE s.batch_id = b.id) AS row_count
FROM batches b
ORDER BY b.created_at DESC, b.id
LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	batches := []Batch{}
	for rows.Next() {
		var (
			b         Batch
			status    string
			createdAt time.Time
		)
		if err := rows.Scan(&b.ID, &b.FileName, &status, &createdAt, &b.RowCount); err != nil {
			return nil, err
		}
		b.Status = Status(status)
		b.CreatedAt = createdAt
		batches = append(batches, b)
	}
	return batches, rows.Err()
}

// CountBatches reports the total number of batches for pagination metadata.
func (r *Repository) CountBatches(ctx context.Context) (int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM batches`).Scan(&total); err != nil {
		return 0, err
	}
	return total, nil
}

// ListProcessedBatchIDs resolves the batch scope of a query: either the single
// named batch (which must be processed) or every processed batch.
func (r *Repository) ListProcessedBatchIDs(ctx context.Context, only *uuid.UUID) ([]uuid.UUID, error) {
	if only != nil {
		var id uuid.UUID
		err := r.pool.QueryRow(ctx, `SELECT id FROM batches WHERE id=$1 AND status=$2`, *only, string(StatusProcessed)).Scan(&id)
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNoProcessedBatches
		}
		if err != nil {
			return nil, err
		}
		return []uuid.UUID{id}, nil
	}
	rows, err := r.pool.Query(ctx, `SELECT id FROM batches WHERE status=$1 ORDER BY created_at, id`, string(StatusProcessed))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, ErrNoProcessedBatches
	}
	return ids, nil
}

var _ RepositoryPort = (*Repository)(nil)
