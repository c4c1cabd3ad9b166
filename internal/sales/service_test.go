package sales

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type memorySalesRepo struct {
	records []SaleRecord
}

func (r *memorySalesRepo) InsertRecords(ctx context.Context, records []SaleRecord) error {
	r.records = append(r.records, records...)
	return nil
}

func (r *memorySalesRepo) TotalsByItem(ctx context.Context) (map[string]ItemSales, error) {
	totals := make(map[string]ItemSales)
	days := make(map[string]map[string]struct{})
	for _, rec := range r.records {
		key := NormalizeItemKey(rec.Item)
		agg := totals[key]
		agg.TotalQty += rec.Quantity
		agg.TotalCBM += rec.CBM
		if days[key] == nil {
			days[key] = make(map[string]struct{})
		}
		days[key][rec.Date.Format("2006-01-02")] = struct{}{}
		agg.SaleDays = len(days[key])
		totals[key] = agg
	}
	return totals, nil
}

func (r *memorySalesRepo) HasAny(ctx context.Context) (bool, error) {
	return len(r.records) > 0, nil
}

type countingBump struct{ calls int }

func (c *countingBump) Bump(ctx context.Context) error {
	c.calls++
	return nil
}

func TestNormalizeItemKey(t *testing.T) {
	require.Equal(t, NormalizeItemKey("SKU-100"), NormalizeItemKey("  sku-100 "))
	require.Equal(t, NormalizeItemKey("Straße"), NormalizeItemKey("STRASSE"))
	require.NotEqual(t, NormalizeItemKey("SKU-100"), NormalizeItemKey("SKU-101"))
}

func TestLoadAggregatesByNormalizedKey(t *testing.T) {
	repo := &memorySalesRepo{}
	bump := &countingBump{}
	svc := NewService(repo, bump, nil)

	day1 := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	day2 := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	loaded, err := svc.Load(context.Background(), []SaleRecord{
		{Item: "SKU-100", Date: day1, Quantity: 5, CBM: 2.5},
		{Item: " sku-100 ", Date: day2, Quantity: 3, CBM: 1.5},
		{Item: "SKU-200", Date: day1, Quantity: 1, CBM: 0.1},
	})
	require.NoError(t, err)
	require.Equal(t, 3, loaded)
	require.Equal(t, 1, bump.calls)

	totals, err := svc.TotalsByItem(context.Background())
	require.NoError(t, err)

	agg := totals[NormalizeItemKey("SKU-100")]
	require.InDelta(t, 8.0, agg.TotalQty, 0.0001)
	require.InDelta(t, 4.0, agg.TotalCBM, 0.0001)
	require.Equal(t, 2, agg.SaleDays)
}

func TestLoadRejectsInvalidRecords(t *testing.T) {
	svc := NewService(&memorySalesRepo{}, nil, nil)
	day := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	_, err := svc.Load(context.Background(), []SaleRecord{{Item: "   ", Date: day, Quantity: 1}})
	require.Error(t, err)

	_, err = svc.Load(context.Background(), []SaleRecord{{Item: "SKU-1", Date: day, Quantity: -1}})
	require.Error(t, err)

	loaded, err := svc.Load(context.Background(), nil)
	require.NoError(t, err)
	require.Zero(t, loaded)
}
