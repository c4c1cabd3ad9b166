package batch

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrDuplicateIngest indicates an ingestion key that was already consumed.
var ErrDuplicateIngest = errors.New("batch: ingestion key already processed")

// IdempotencyStore persists consumed ingestion keys so that a retried upload
// does not create a second additive batch.
type IdempotencyStore struct {
	pool *pgxpool.Pool
}

// NewIdempotencyStore constructs the store.
func NewIdempotencyStore(pool *pgxpool.Pool) *IdempotencyStore {
	return &IdempotencyStore{pool: pool}
}

// CheckAndInsert claims the key, returning ErrDuplicateIngest when another
// upload already holds it.
func (s *IdempotencyStore) CheckAndInsert(ctx context.Context, key string) error {
	if s == nil || s.pool == nil {
		return errors.New("batch: idempotency store not initialised")
	}
	if key == "" {
		return errors.New("batch: ingestion key required")
	}
	_, err := s.pool.Exec(ctx, `INSERT INTO ingestion_keys (key, created_at) VALUES ($1, $2)`, key, time.Now().UTC())
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrDuplicateIngest
		}
		return err
	}
	return nil
}

// Delete releases a key so a failed upload can be retried.
func (s *IdempotencyStore) Delete(ctx context.Context, key string) error {
	if s == nil || s.pool == nil {
		return errors.New("batch: idempotency store not initialised")
	}
	_, err := s.pool.Exec(ctx, `DELETE FROM ingestion_keys WHERE key = $1`, key)
	return err
}
