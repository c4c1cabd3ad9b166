// Package analytics computes filtered stock metrics from processed batches:
// summary cards, time series, fast-moving SKU ranking, and dead-stock
// detection. All returned metrics are rounded to two decimal places;
// intermediate computation keeps full precision.
package analytics

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/stocklens/stocklens/internal/batch"
)

// ErrInvalidFilter marks malformed filter input rejected before any
// aggregation work begins.
var ErrInvalidFilter = errors.New("analytics: invalid filter")

// SummaryFilter scopes the aggregate summary query. Zero values mean
// "no constraint"; a nil BatchID aggregates every processed batch.
type SummaryFilter struct {
	BatchID    *uuid.UUID
	From       time.Time
	To         time.Time
	ItemGroup  string
	Categories []batch.Category
	Warehouse  string
	// Highlight selects the category overlaid on the time series. Empty
	// falls back to the configured default.
	Highlight batch.Category
}

// Cards holds the scalar summary metrics.
type Cards struct {
	// InboundSKUCount counts distinct items with positive per-unit volume and
	// at least one positive in-range reading.
	InboundSKUCount int `json:"inboundSkuCount"`
	// InventoryQtyTotal is the sum of per-row reading means, not a flat sum.
	InventoryQtyTotal float64 `json:"inventoryQtyTotal"`
	// TotalCBM sums rowMean(quantity) * cbmPerUnit across qualifying rows.
	TotalCBM float64 `json:"totalCbm"`
}

// TimeSeriesPoint is one per-date flat sum across all in-scope readings.
// Points exist only for dates with at least one reading; no gap filling.
type TimeSeriesPoint struct {
	Date         string  `json:"date"`
	TotalQty     float64 `json:"totalQty"`
	TotalCBM     float64 `json:"totalCbm"`
	HighlightQty float64 `json:"highlightQty"`
	HighlightCBM float64 `json:"highlightCbm"`
}

// FilterOptions lists the distinct values available for filter UIs, scoped to
// the selected batch set.
type FilterOptions struct {
	ItemGroups []string `json:"itemGroups"`
	Categories []string `json:"categories"`
	Warehouses []string `json:"warehouses"`
	MinDate    string   `json:"minDate,omitempty"`
	MaxDate    string   `json:"maxDate,omitempty"`
}

// Summary is the full response of the summary query.
type Summary struct {
	Cards      Cards             `json:"cards"`
	Filters    FilterOptions     `json:"filters"`
	TimeSeries []TimeSeriesPoint `json:"timeSeries"`
}

// Movement classification bands by estimated days of stock remaining.
const (
	ClassCritical = "CRITICAL"
	ClassLow      = "LOW"
	ClassAdequate = "ADEQUATE"
	ClassHigh     = "HIGH"
)

// DaysOfStockSentinel caps days-of-stock when the consumption estimate is zero.
const DaysOfStockSentinel = 999

// Defaults for classifier thresholds.
const (
	DefaultMinAvgQty      = 50.0
	DefaultMinDaysInStock = 7
	DefaultResultLimit    = 50
)

// FastMovingFilter scopes the movement classifier.
type FastMovingFilter struct {
	Warehouse string
	Category  *batch.Category
	MinAvgQty float64
	Limit     int
}

// FastMovingSKU is one ranked classifier entry.
type FastMovingSKU struct {
	Item           string  `json:"item"`
	Warehouse      string  `json:"warehouse"`
	ItemGroup      string  `json:"itemGroup"`
	Category       string  `json:"category"`
	AvgQty         float64 `json:"avgQty"`
	MinQty         float64 `json:"minQty"`
	MaxQty         float64 `json:"maxQty"`
	LatestQty      float64 `json:"latestQty"`
	TotalCBM       float64 `json:"totalCbm"`
	SoldQty        float64 `json:"soldQty"`
	SoldCBM        float64 `json:"soldCbm"`
	SaleDays       int     `json:"saleDays"`
	AvgDailySales  float64 `json:"avgDailySales"`
	DaysOfStock    int     `json:"daysOfStock"`
	Classification string  `json:"classification"`
	// EstimatedSales marks entries whose consumption rate came from the
	// fallback heuristic rather than actual sales history.
	EstimatedSales bool `json:"estimatedSales"`
}

// FastMovingResult is the movement classifier response.
type FastMovingResult struct {
	SKUs    []FastMovingSKU `json:"skus"`
	Summary map[string]int  `json:"summary"`
	Filters FilterOptions   `json:"filters"`
}

// Dead-stock value bands by tied-up volume.
const (
	ValueHigh   = "HIGH"
	ValueMedium = "MEDIUM"
	ValueLow    = "LOW"
)

// ZeroOrderFilter scopes the dead-stock detector.
type ZeroOrderFilter struct {
	Warehouse      string
	Category       *batch.Category
	MinDaysInStock int
	Limit          int
}

// ZeroOrderProduct is one dead-stock entry: in stock long enough, never sold.
type ZeroOrderProduct struct {
	Item           string  `json:"item"`
	Warehouse      string  `json:"warehouse"`
	ItemGroup      string  `json:"itemGroup"`
	Category       string  `json:"category"`
	AvgStockQty    float64 `json:"avgStockQty"`
	DaysInStock    int     `json:"daysInStock"`
	TotalCBM       float64 `json:"totalCbm"`
	Classification string  `json:"classification"`
}

// ZeroOrderResult is the dead-stock detector response. SalesDataPresent is
// false when the sales index holds no records at all, in which case every
// qualifying item is reported by construction.
type ZeroOrderResult struct {
	Products         []ZeroOrderProduct `json:"products"`
	Summary          map[string]int     `json:"summary"`
	Filters          FilterOptions      `json:"filters"`
	SalesDataPresent bool               `json:"salesDataPresent"`
}

// round2 applies the boundary rounding rule: two decimal places, half away
// from zero.
func round2(v float64) float64 {
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}
