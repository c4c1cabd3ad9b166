package analytics

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/stocklens/stocklens/internal/batch"
	"github.com/stocklens/stocklens/internal/testdb"
)

func day(d int) time.Time {
	return time.Date(2026, time.March, d, 0, 0, 0, 0, time.UTC)
}

func seedProcessed(t *testing.T, repo *batch.Repository, rows []batch.SnapshotRow) uuid.UUID {
	t.Helper()
	ctx := context.Background()
	id, err := repo.CreateBatch(ctx, "seed.xlsx")
	require.NoError(t, err)
	require.NoError(t, repo.AppendSnapshots(ctx, id, rows))
	require.NoError(t, repo.MarkProcessed(ctx, id))
	return id
}

func TestSQLRepositoryAggregation(t *testing.T) {
	pool := testdb.StartPostgres(t)
	repo := NewSQLRepository(pool)
	batches := batch.NewRepository(pool, 500)
	ctx := context.Background()

	t.Run("cards average readings per row then sum", func(t *testing.T) {
		id := seedProcessed(t, batches, []batch.SnapshotRow{{
			Item:       "SKU-100",
			Warehouse:  "WH-A",
			ItemGroup:  "Bags",
			Category:   batch.CategoryFinishedGoods,
			CBMPerUnit: 2,
			Readings: []batch.Reading{
				{Date: day(1), Quantity: 10},
				{Date: day(2), Quantity: 20},
			},
		}})

		cards, err := repo.SummaryCards(ctx, scope{BatchIDs: []uuid.UUID{id}})
		require.NoError(t, err)
		require.Equal(t, 1, cards.InboundSKUCount)
		require.InDelta(t, 15, cards.InventoryQtyTotal, 1e-9)
		require.InDelta(t, 30, cards.TotalCBM, 1e-9)
	})

	t.Run("absent reading is not an explicit zero", func(t *testing.T) {
		id := seedProcessed(t, batches, []batch.SnapshotRow{
			{
				Item:       "GAP",
				Warehouse:  "WH-A",
				Category:   batch.CategoryRawMaterial,
				CBMPerUnit: 1,
				// Day 2 was never reported, so the mean divides by two.
				Readings: []batch.Reading{
					{Date: day(1), Quantity: 5},
					{Date: day(3), Quantity: 5},
				},
			},
			{
				Item:       "ZERO",
				Warehouse:  "WH-A",
				Category:   batch.CategoryRawMaterial,
				CBMPerUnit: 1,
				Readings: []batch.Reading{
					{Date: day(1), Quantity: 5},
					{Date: day(2), Quantity: 0},
					{Date: day(3), Quantity: 5},
				},
			},
		})

		cards, err := repo.SummaryCards(ctx, scope{BatchIDs: []uuid.UUID{id}})
		require.NoError(t, err)
		require.InDelta(t, 5+10.0/3, cards.InventoryQtyTotal, 1e-9)

		stats, err := repo.RowStats(ctx, RowStatsFilter{BatchIDs: []uuid.UUID{id}})
		require.NoError(t, err)
		byItem := map[string]RowStats{}
		for _, st := range stats {
			byItem[st.Item] = st
		}
		require.InDelta(t, 5, byItem["GAP"].AvgQty, 1e-9)
		require.InDelta(t, 10.0/3, byItem["ZERO"].AvgQty, 1e-9)
		require.Equal(t, 2, byItem["GAP"].DaysInStock)
		require.Equal(t, 3, byItem["ZERO"].DaysInStock)
	})

	t.Run("total rows never enter aggregation", func(t *testing.T) {
		id := seedProcessed(t, batches, []batch.SnapshotRow{
			{
				Item:       "SKU-200",
				Warehouse:  "WH-B",
				Category:   batch.CategoryPackaging,
				CBMPerUnit: 1,
				Readings:   []batch.Reading{{Date: day(1), Quantity: 10}},
			},
			{
				Item:       "Total",
				Warehouse:  "WH-B",
				Category:   batch.CategoryPackaging,
				IsTotalRow: true,
				Readings:   []batch.Reading{{Date: day(1), Quantity: 100}},
			},
		})

		cards, err := repo.SummaryCards(ctx, scope{BatchIDs: []uuid.UUID{id}})
		require.NoError(t, err)
		require.InDelta(t, 10, cards.InventoryQtyTotal, 1e-9)

		points, err := repo.TimeSeries(ctx, scope{BatchIDs: []uuid.UUID{id}}, batch.CategoryPackaging)
		require.NoError(t, err)
		require.Len(t, points, 1)
		require.InDelta(t, 10, points[0].TotalQty, 1e-9)
	})

	t.Run("multiple batches contribute additively", func(t *testing.T) {
		row := batch.SnapshotRow{
			Item:       "SKU-300",
			Warehouse:  "WH-C",
			Category:   batch.CategoryConsumables,
			CBMPerUnit: 1,
			Readings: []batch.Reading{
				{Date: day(1), Quantity: 10},
				{Date: day(2), Quantity: 20},
			},
		}
		first := seedProcessed(t, batches, []batch.SnapshotRow{row})
		second := seedProcessed(t, batches, []batch.SnapshotRow{row})

		cards, err := repo.SummaryCards(ctx, scope{BatchIDs: []uuid.UUID{first, second}})
		require.NoError(t, err)
		// Each batch carries its own row mean of 15; the same item still
		// counts once.
		require.InDelta(t, 30, cards.InventoryQtyTotal, 1e-9)
		require.Equal(t, 1, cards.InboundSKUCount)
	})

	t.Run("time series emits only reported dates", func(t *testing.T) {
		id := seedProcessed(t, batches, []batch.SnapshotRow{{
			Item:       "SKU-400",
			Warehouse:  "WH-D",
			Category:   batch.CategoryOther,
			CBMPerUnit: 1,
			Readings: []batch.Reading{
				{Date: day(1), Quantity: 4},
				{Date: day(3), Quantity: 6},
			},
		}})

		points, err := repo.TimeSeries(ctx, scope{BatchIDs: []uuid.UUID{id}}, batch.CategoryOther)
		require.NoError(t, err)
		require.Len(t, points, 2)
		require.Equal(t, "2026-03-01", points[0].Date)
		require.Equal(t, "2026-03-03", points[1].Date)
	})

	t.Run("latest quantity takes the newest reading", func(t *testing.T) {
		id := seedProcessed(t, batches, []batch.SnapshotRow{{
			Item:       "SKU-500",
			Warehouse:  "WH-E",
			Category:   batch.CategorySpareParts,
			CBMPerUnit: 1,
			Readings: []batch.Reading{
				{Date: day(1), Quantity: 10},
				{Date: day(2), Quantity: 20},
			},
		}})

		latest, err := repo.LatestQuantities(ctx, RowStatsFilter{BatchIDs: []uuid.UUID{id}})
		require.NoError(t, err)
		require.Len(t, latest, 1)
		require.InDelta(t, 20, latest[0].Quantity, 1e-9)
	})
}
