package sales

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stocklens/stocklens/internal/platform/db"
)

// Repository persists sale records in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// InsertRecords bulk-loads sale records atomically. The normalized join key is
// computed once at write time so aggregation stays set-based.
func (r *Repository) InsertRecords(ctx context.Context, records []SaleRecord) error {
	if len(records) == 0 {
		return nil
	}
	rows := make([][]any, 0, len(records))
	for _, rec := range records {
		rows = append(rows, []any{rec.Item, NormalizeItemKey(rec.Item), rec.Date, rec.Quantity, rec.CBM})
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		_, err := tx.CopyFrom(ctx,
			pgx.Identifier{"sale_records"},
			[]string{"item", "item_key", "shipment_date", "quantity", "cbm"},
			pgx.CopyFromRows(rows))
		return err
	})
}

// TotalsByItem returns per-item shipment totals keyed by normalized item key.
// Only items with positive shipped quantity are relevant to the classifiers,
// but zero-quantity rows still count toward sale days here; callers filter.
func (r *Repository) TotalsByItem(ctx context.Context) (map[string]ItemSales, error) {
	rows, err := r.pool.Query(ctx, `SELECT item_key,
COALESCE(SUM(quantity), 0),
COALESCE(SUM(cbm), 0),
COUNT(DISTINCT shipment_date)
FROM sale_records
GROUP BY item_key`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	totals := make(map[string]ItemSales)
	for rows.Next() {
		var (
			key   string
			sales ItemSales
		)
		if err := rows.Scan(&key, &sales.TotalQty, &sales.TotalCBM, &sales.SaleDays); err != nil {
			return nil, err
		}
		totals[key] = sales
	}
	return totals, rows.Err()
}

// HasAny reports whether any sale records are loaded. An empty index makes the
// dead-stock detector report every qualifying item, by design.
func (r *Repository) HasAny(ctx context.Context) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM sale_records)`).Scan(&exists)
	return exists, err
}
