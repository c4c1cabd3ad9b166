package analytics

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stocklens/stocklens/internal/batch"
)

// SQLRepository runs the aggregation queries against PostgreSQL. Filtering and
// summation stay in the database so query memory is bounded as reading sets
// grow.
type SQLRepository struct {
	pool *pgxpool.Pool
}

// NewSQLRepository constructs SQLRepository.
func NewSQLRepository(pool *pgxpool.Pool) *SQLRepository {
	return &SQLRepository{pool: pool}
}

// SummaryCards computes the three scalar metrics from one row set. The inner
// CTE materializes per-row reading means over present readings only, so a day
// the source never reported does not dilute the average. The outer select
// sums those means (average of averages, not a flat sum).
func (r *SQLRepository) SummaryCards(ctx context.Context, sc scope) (Cards, error) {
	row := r.pool.QueryRow(ctx, `WITH row_stats AS (
SELECT s.id, s.item, s.cbm_per_unit,
       AVG(r.quantity) AS avg_qty,
       COUNT(*) FILTER (WHERE r.quantity > 0) AS positive_readings
FROM sku_snapshots s
JOIN daily_readings r ON r.snapshot_id = s.id
WHERE s.batch_id = ANY($1)
  AND NOT s.is_total_row
  AND ($2::date IS NULL OR r.reading_date >= $2)
  AND ($3::date IS NULL OR r.reading_date <= $3)
  AND ($4::text IS NULL OR s.item_group = $4)
  AND ($5::text[] IS NULL OR s.category = ANY($5))
  AND ($6::text IS NULL OR s.warehouse = $6)
GROUP BY s.id, s.item, s.cbm_per_unit
)
SELECT COUNT(DISTINCT item) FILTER (WHERE cbm_per_unit > 0 AND positive_readings > 0),
       COALESCE(SUM(avg_qty), 0),
       COALESCE(SUM(avg_qty * cbm_per_unit) FILTER (WHERE cbm_per_unit > 0), 0)
FROM row_stats`,
		sc.BatchIDs, nullDate(sc.From), nullDate(sc.To), nullString(sc.ItemGroup), categoryTokens(sc.Categories), nullString(sc.Warehouse))

	var cards Cards
	if err := row.Scan(&cards.InboundSKUCount, &cards.InventoryQtyTotal, &cards.TotalCBM); err != nil {
		return Cards{}, err
	}
	return cards, nil
}

// TimeSeries groups in-range readings by calendar date as flat per-day sums.
// Dates without readings produce no point.
func (r *SQLRepository) TimeSeries(ctx context.Context, sc scope, highlight batch.Category) ([]TimeSeriesPoint, error) {
	rows, err := r.pool.Query(ctx, `SELECT r.reading_date,
COALESCE(SUM(r.quantity), 0),
COALESCE(SUM(r.quantity * s.cbm_per_unit), 0),
COALESCE(SUM(r.quantity) FILTER (WHERE s.category = $7), 0),
COALESCE(SUM(r.quantity * s.cbm_per_unit) FILTER (WHERE s.category = $7), 0)
FROM sku_snapshots s
JOIN daily_readings r ON r.snapshot_id = s.id
WHERE s.batch_id = ANY($1)
  AND NOT s.is_total_row
  AND ($2::date IS NULL OR r.reading_date >= $2)
  AND ($3::date IS NULL OR r.reading_date <= $3)
  AND ($4::text IS NULL OR s.item_group = $4)
  AND ($5::text[] IS NULL OR s.category = ANY($5))
  AND ($6::text IS NULL OR s.warehouse = $6)
GROUP BY r.reading_date
ORDER BY r.reading_date`,
		sc.BatchIDs, nullDate(sc.From), nullDate(sc.To), nullString(sc.ItemGroup), categoryTokens(sc.Categories), nullString(sc.Warehouse), string(highlight))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	points := []TimeSeriesPoint{}
	for rows.Next() {
		var (
			date  time.Time
			point TimeSeriesPoint
		)
		if err := rows.Scan(&date, &point.TotalQty, &point.TotalCBM, &point.HighlightQty, &point.HighlightCBM); err != nil {
			return nil, err
		}
		point.Date = date.Format("2006-01-02")
		points = append(points, point)
	}
	return points, rows.Err()
}

// FilterOptions lists distinct filter values and the reading date bounds for
// the selected batch set.
func (r *SQLRepository) FilterOptions(ctx context.Context, batchIDs []uuid.UUID) (FilterOptions, error) {
	row := r.pool.QueryRow(ctx, `SELECT
(SELECT COALESCE(array_agg(DISTINCT item_group ORDER BY item_group) FILTER (WHERE item_group <> ''), '{}')
   FROM sku_snapshots WHERE batch_id = ANY($1) AND NOT is_total_row),
(SELECT COALESCE(array_agg(DISTINCT category ORDER BY category), '{}')
   FROM sku_snapshots WHERE batch_id = ANY($1) AND NOT is_total_row),
(SELECT COALESCE(array_agg(DISTINCT warehouse ORDER BY warehouse) FILTER (WHERE warehouse <> ''), '{}')
   FROM sku_snapshots WHERE batch_id = ANY($1) AND NOT is_total_row),
(SELECT MIN(r.reading_date) FROM daily_readings r
   JOIN sku_snapshots s ON s.id = r.snapshot_id
  WHERE s.batch_id = ANY($1) AND NOT s.is_total_row),
(SELECT MAX(r.reading_date) FROM daily_readings r
   JOIN sku_snapshots s ON s.id = r.snapshot_id
  WHERE s.batch_id = ANY($1) AND NOT s.is_total_row)`, batchIDs)

	var (
		opts    FilterOptions
		minDate *time.Time
		maxDate *time.Time
	)
	if err := row.Scan(&opts.ItemGroups, &opts.Categories, &opts.Warehouses, &minDate, &maxDate); err != nil {
		return FilterOptions{}, err
	}
	if minDate != nil {
		opts.MinDate = minDate.Format("2006-01-02")
	}
	if maxDate != nil {
		opts.MaxDate = maxDate.Format("2006-01-02")
	}
	return opts, nil
}

// RowStats returns full-history per-row reading statistics for the
// classifiers. Both classifiers share this grouping.
func (r *SQLRepository) RowStats(ctx context.Context, filter RowStatsFilter) ([]RowStats, error) {
	rows, err := r.pool.Query(ctx, `SELECT s.item, s.warehouse, s.item_group, s.category, s.cbm_per_unit,
AVG(r.quantity), MIN(r.quantity), MAX(r.quantity), COUNT(DISTINCT r.reading_date)
FROM sku_snapshots s
JOIN daily_readings r ON r.snapshot_id = s.id
WHERE s.batch_id = ANY($1)
  AND NOT s.is_total_row
  AND ($2::text IS NULL OR s.warehouse = $2)
  AND ($3::text IS NULL OR s.category = $3)
GROUP BY s.id, s.item, s.warehouse, s.item_group, s.category, s.cbm_per_unit`,
		filter.BatchIDs, nullString(filter.Warehouse), nullCategory(filter.Category))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	stats := []RowStats{}
	for rows.Next() {
		var st RowStats
		if err := rows.Scan(&st.Item, &st.Warehouse, &st.ItemGroup, &st.Category, &st.CBMPerUnit,
			&st.AvgQty, &st.MinQty, &st.MaxQty, &st.DaysInStock); err != nil {
			return nil, err
		}
		stats = append(stats, st)
	}
	return stats, rows.Err()
}

// LatestQuantities resolves the most recent single reading per
// (item, warehouse) pair across the batch scope, newest date first with
// insertion order breaking same-date ties.
func (r *SQLRepository) LatestQuantities(ctx context.Context, filter RowStatsFilter) ([]LatestQty, error) {
	rows, err := r.pool.Query(ctx, `SELECT DISTINCT ON (s.item, s.warehouse) s.item, s.warehouse, r.quantity
FROM sku_snapshots s
JOIN daily_readings r ON r.snapshot_id = s.id
WHERE s.batch_id = ANY($1)
  AND NOT s.is_total_row
  AND ($2::text IS NULL OR s.warehouse = $2)
  AND ($3::text IS NULL OR s.category = $3)
ORDER BY s.item, s.warehouse, r.reading_date DESC, r.id DESC`,
		filter.BatchIDs, nullString(filter.Warehouse), nullCategory(filter.Category))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	latest := []LatestQty{}
	for rows.Next() {
		var lq LatestQty
		if err := rows.Scan(&lq.Item, &lq.Warehouse, &lq.Quantity); err != nil {
			return nil, err
		}
		latest = append(latest, lq)
	}
	return latest, rows.Err()
}

var _ Repository = (*SQLRepository)(nil)

func nullString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullDate(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}

func nullCategory(c *batch.Category) any {
	if c == nil {
		return nil
	}
	return string(*c)
}

func categoryTokens(categories []batch.Category) any {
	if len(categories) == 0 {
		return nil
	}
	tokens := make([]string, 0, len(categories))
	for _, c := range categories {
		tokens = append(tokens, string(c))
	}
	return tokens
}
