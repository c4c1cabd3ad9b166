package analytics

import (
	"context"
	"fmt"
	"sort"

	"github.com/stocklens/stocklens/internal/sales"
)

// GetZeroOrder reports dead stock: inventory items with no matching sale
// record carrying positive shipped quantity. With an empty sales index every
// qualifying item is reported, which is the intended behavior rather than an
// error.
func (s *Service) GetZeroOrder(ctx context.Context, filter ZeroOrderFilter) (ZeroOrderResult, error) {
	if filter.MinDaysInStock < 0 || filter.Limit < 0 {
		return ZeroOrderResult{}, fmt.Errorf("%w: thresholds must be non-negative", ErrInvalidFilter)
	}
	if filter.MinDaysInStock == 0 {
		filter.MinDaysInStock = DefaultMinDaysInStock
	}
	if filter.Limit == 0 {
		filter.Limit = DefaultResultLimit
	}

	key, err := s.cache.BuildKey(ctx, keyZeroOrder(filter))
	if err != nil {
		return ZeroOrderResult{}, err
	}
	var result ZeroOrderResult
	err = s.cache.FetchJSON(ctx, key, &result, func(ctx context.Context) (interface{}, error) {
		return s.computeZeroOrder(ctx, filter)
	})
	return result, err
}

func (s *Service) computeZeroOrder(ctx context.Context, filter ZeroOrderFilter) (ZeroOrderResult, error) {
	batchIDs, err := s.batches.ResolveScope(ctx, nil)
	if err != nil {
		return ZeroOrderResult{}, err
	}
	stats, err := s.repo.RowStats(ctx, RowStatsFilter{
		BatchIDs:  batchIDs,
		Warehouse: filter.Warehouse,
		Category:  filter.Category,
	})
	if err != nil {
		return ZeroOrderResult{}, fmt.Errorf("row stats: %w", err)
	}
	sold, err := s.salesIdx.TotalsByItem(ctx)
	if err != nil {
		return ZeroOrderResult{}, fmt.Errorf("sales totals: %w", err)
	}
	hasSales, err := s.salesIdx.HasAny(ctx)
	if err != nil {
		return ZeroOrderResult{}, fmt.Errorf("sales presence: %w", err)
	}

	products := make([]ZeroOrderProduct, 0, len(stats))
	for _, st := range stats {
		// Any positive shipped quantity disqualifies the item, regardless of
		// how long it has been in stock.
		if itemSales, ok := sold[sales.NormalizeItemKey(st.Item)]; ok && itemSales.TotalQty > 0 {
			continue
		}
		if st.DaysInStock < filter.MinDaysInStock {
			continue
		}
		totalCBM := st.AvgQty * st.CBMPerUnit
		products = append(products, ZeroOrderProduct{
			Item:           st.Item,
			Warehouse:      st.Warehouse,
			ItemGroup:      st.ItemGroup,
			Category:       st.Category,
			AvgStockQty:    st.AvgQty,
			DaysInStock:    st.DaysInStock,
			TotalCBM:       totalCBM,
			Classification: classifyCBMValue(totalCBM),
		})
	}

	sort.SliceStable(products, func(i, j int) bool { return products[i].TotalCBM > products[j].TotalCBM })

	summary := map[string]int{ValueHigh: 0, ValueMedium: 0, ValueLow: 0}
	for _, p := range products {
		summary[p.Classification]++
	}
	if len(products) > filter.Limit {
		products = products[:filter.Limit]
	}
	for i := range products {
		products[i].AvgStockQty = round2(products[i].AvgStockQty)
		products[i].TotalCBM = round2(products[i].TotalCBM)
	}

	return ZeroOrderResult{
		Products:         products,
		Summary:          summary,
		Filters:          filterOptionsFromStats(stats),
		SalesDataPresent: hasSales,
	}, nil
}

func classifyCBMValue(cbm float64) string {
	switch {
	case cbm >= 1:
		return ValueHigh
	case cbm >= 0.1:
		return ValueMedium
	default:
		return ValueLow
	}
}
