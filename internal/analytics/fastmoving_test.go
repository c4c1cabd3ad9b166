package analytics

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/stocklens/stocklens/internal/sales"
)

func TestFastMovingFallbackHeuristic(t *testing.T) {
	// No sales history at all: consumption is estimated at 10% of average
	// stock, so classification is deterministic given the latest reading.
	repo := &mockRepo{
		rowStats: []RowStats{
			{Item: "SKU-100", Warehouse: "WH-A", Category: "FINISHED_GOODS", CBMPerUnit: 0.5, AvgQty: 100, MinQty: 80, MaxQty: 120, DaysInStock: 10},
		},
		latest: []LatestQty{{Item: "SKU-100", Warehouse: "WH-A", Quantity: 50}},
	}
	svc, _, cleanup := newTestService(t, repo, []uuid.UUID{uuid.New()}, nil, nil)
	defer cleanup()

	result, err := svc.GetFastMoving(context.Background(), FastMovingFilter{})
	require.NoError(t, err)
	require.Len(t, result.SKUs, 1)

	sku := result.SKUs[0]
	require.True(t, sku.EstimatedSales)
	require.InDelta(t, 10.0, sku.AvgDailySales, 1e-9)
	// 50 latest / 10 per day = 5 days -> critical.
	require.Equal(t, 5, sku.DaysOfStock)
	require.Equal(t, ClassCritical, sku.Classification)
	require.InDelta(t, 50.0, sku.TotalCBM, 1e-9)
	require.Equal(t, 1, result.Summary[ClassCritical])
}

func TestFastMovingSalesJoinIsNormalized(t *testing.T) {
	repo := &mockRepo{
		rowStats: []RowStats{
			{Item: "  sku-100 ", Warehouse: "WH-A", Category: "FINISHED_GOODS", CBMPerUnit: 1, AvgQty: 200, DaysInStock: 20},
		},
		latest: []LatestQty{{Item: "  sku-100 ", Warehouse: "WH-A", Quantity: 90}},
	}
	totals := map[string]sales.ItemSales{
		sales.NormalizeItemKey("SKU-100"): {TotalQty: 30, TotalCBM: 30, SaleDays: 10},
	}
	svc, _, cleanup := newTestService(t, repo, []uuid.UUID{uuid.New()}, nil, totals)
	defer cleanup()

	result, err := svc.GetFastMoving(context.Background(), FastMovingFilter{})
	require.NoError(t, err)
	require.Len(t, result.SKUs, 1)

	sku := result.SKUs[0]
	require.False(t, sku.EstimatedSales)
	require.InDelta(t, 3.0, sku.AvgDailySales, 1e-9)
	require.Equal(t, 10, sku.SaleDays)
	// 90 / 3 = 30 days -> first band at or above 30 is high.
	require.Equal(t, 30, sku.DaysOfStock)
	require.Equal(t, ClassHigh, sku.Classification)
}

func TestFastMovingThresholdSortAndLimit(t *testing.T) {
	repo := &mockRepo{
		rowStats: []RowStats{
			{Item: "A", Warehouse: "W", Category: "OTHER", AvgQty: 60, DaysInStock: 5},
			{Item: "B", Warehouse: "W", Category: "OTHER", AvgQty: 90, DaysInStock: 5},
			{Item: "C", Warehouse: "W", Category: "OTHER", AvgQty: 75, DaysInStock: 5},
			{Item: "D", Warehouse: "W", Category: "OTHER", AvgQty: 10, DaysInStock: 5},
			{Item: "E", Warehouse: "W", Category: "OTHER", AvgQty: 0, DaysInStock: 5},
		},
	}
	svc, _, cleanup := newTestService(t, repo, []uuid.UUID{uuid.New()}, nil, nil)
	defer cleanup()

	result, err := svc.GetFastMoving(context.Background(), FastMovingFilter{MinAvgQty: 50, Limit: 2})
	require.NoError(t, err)
	require.Len(t, result.SKUs, 2)
	require.Equal(t, "B", result.SKUs[0].Item)
	require.Equal(t, "C", result.SKUs[1].Item)

	// Summary counts the filtered set, not the truncated page.
	total := 0
	for _, n := range result.Summary {
		total += n
	}
	require.Equal(t, 3, total)
}

func TestFastMovingZeroConsumptionSentinel(t *testing.T) {
	repo := &mockRepo{
		rowStats: []RowStats{
			{Item: "A", Warehouse: "W", Category: "OTHER", AvgQty: 80, DaysInStock: 5},
		},
		latest: []LatestQty{{Item: "A", Warehouse: "W", Quantity: 40}},
	}
	// Sales exist for the item but with zero quantity on every record, so the
	// daily rate resolves to zero.
	totals := map[string]sales.ItemSales{
		sales.NormalizeItemKey("A"): {TotalQty: 0, TotalCBM: 0, SaleDays: 0},
	}
	svc, _, cleanup := newTestService(t, repo, []uuid.UUID{uuid.New()}, nil, totals)
	defer cleanup()

	result, err := svc.GetFastMoving(context.Background(), FastMovingFilter{MinAvgQty: 1})
	require.NoError(t, err)
	require.Len(t, result.SKUs, 1)
	require.Equal(t, DaysOfStockSentinel, result.SKUs[0].DaysOfStock)
	require.Equal(t, ClassHigh, result.SKUs[0].Classification)
}

func TestFastMovingRejectsNegativeThresholds(t *testing.T) {
	svc, _, cleanup := newTestService(t, &mockRepo{}, []uuid.UUID{uuid.New()}, nil, nil)
	defer cleanup()

	_, err := svc.GetFastMoving(context.Background(), FastMovingFilter{MinAvgQty: -1})
	require.ErrorIs(t, err, ErrInvalidFilter)
}

func TestClassifyDaysOfStockBands(t *testing.T) {
	require.Equal(t, ClassCritical, classifyDaysOfStock(0))
	require.Equal(t, ClassCritical, classifyDaysOfStock(6))
	require.Equal(t, ClassLow, classifyDaysOfStock(7))
	require.Equal(t, ClassLow, classifyDaysOfStock(13))
	require.Equal(t, ClassAdequate, classifyDaysOfStock(14))
	require.Equal(t, ClassAdequate, classifyDaysOfStock(29))
	require.Equal(t, ClassHigh, classifyDaysOfStock(30))
	require.Equal(t, ClassHigh, classifyDaysOfStock(DaysOfStockSentinel))
}
