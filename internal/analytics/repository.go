package analytics

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/stocklens/stocklens/internal/batch"
)

// scope carries the fully resolved parameters of a summary query down to SQL.
type scope struct {
	BatchIDs   []uuid.UUID
	From       time.Time
	To         time.Time
	ItemGroup  string
	Categories []batch.Category
	Warehouse  string
}

// RowStats is the per-row grouping shared by both classifiers: full-history
// reading statistics for one non-Total snapshot row.
type RowStats struct {
	Item        string
	Warehouse   string
	ItemGroup   string
	Category    string
	CBMPerUnit  float64
	AvgQty      float64
	MinQty      float64
	MaxQty      float64
	DaysInStock int
}

// RowStatsFilter scopes the classifier row scan.
type RowStatsFilter struct {
	BatchIDs  []uuid.UUID
	Warehouse string
	Category  *batch.Category
}

// LatestQty is the most recent single reading for an (item, warehouse) pair.
type LatestQty struct {
	Item      string
	Warehouse string
	Quantity  float64
}

// Repository exposes the set-based aggregation queries the service relies on.
type Repository interface {
	SummaryCards(ctx context.Context, sc scope) (Cards, error)
	TimeSeries(ctx context.Context, sc scope, highlight batch.Category) ([]TimeSeriesPoint, error)
	FilterOptions(ctx context.Context, batchIDs []uuid.UUID) (FilterOptions, error)
	RowStats(ctx context.Context, filter RowStatsFilter) ([]RowStats, error)
	LatestQuantities(ctx context.Context, filter RowStatsFilter) ([]LatestQty, error)
}
