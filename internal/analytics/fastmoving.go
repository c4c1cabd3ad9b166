package analytics

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/stocklens/stocklens/internal/sales"
)

// GetFastMoving ranks SKUs by consumption velocity. Row statistics come from
// the shared full-history grouping; velocity comes from the sales index when
// the item has shipments, otherwise from the configured fraction-of-average
// fallback.
func (s *Service) GetFastMoving(ctx context.Context, filter FastMovingFilter) (FastMovingResult, error) {
	if filter.MinAvgQty < 0 || filter.Limit < 0 {
		return FastMovingResult{}, fmt.Errorf("%w: thresholds must be non-negative", ErrInvalidFilter)
	}
	if filter.MinAvgQty == 0 {
		filter.MinAvgQty = DefaultMinAvgQty
	}
	if filter.Limit == 0 {
		filter.Limit = DefaultResultLimit
	}

	key, err := s.cache.BuildKey(ctx, keyFastMoving(filter))
	if err != nil {
		return FastMovingResult{}, err
	}
	var result FastMovingResult
	err = s.cache.FetchJSON(ctx, key, &result, func(ctx context.Context) (interface{}, error) {
		return s.computeFastMoving(ctx, filter)
	})
	return result, err
}

func (s *Service) computeFastMoving(ctx context.Context, filter FastMovingFilter) (FastMovingResult, error) {
	batchIDs, err := s.batches.ResolveScope(ctx, nil)
	if err != nil {
		return FastMovingResult{}, err
	}
	rowFilter := RowStatsFilter{BatchIDs: batchIDs, Warehouse: filter.Warehouse, Category: filter.Category}

	stats, err := s.repo.RowStats(ctx, rowFilter)
	if err != nil {
		return FastMovingResult{}, fmt.Errorf("row stats: %w", err)
	}
	latestRows, err := s.repo.LatestQuantities(ctx, rowFilter)
	if err != nil {
		return FastMovingResult{}, fmt.Errorf("latest quantities: %w", err)
	}
	latest := make(map[string]float64, len(latestRows))
	for _, lq := range latestRows {
		latest[pairKey(lq.Item, lq.Warehouse)] = lq.Quantity
	}
	sold, err := s.salesIdx.TotalsByItem(ctx)
	if err != nil {
		return FastMovingResult{}, fmt.Errorf("sales totals: %w", err)
	}

	skus := make([]FastMovingSKU, 0, len(stats))
	for _, st := range stats {
		if st.AvgQty == 0 {
			continue
		}
		sku := FastMovingSKU{
			Item:      st.Item,
			Warehouse: st.Warehouse,
			ItemGroup: st.ItemGroup,
			Category:  st.Category,
			AvgQty:    st.AvgQty,
			MinQty:    st.MinQty,
			MaxQty:    st.MaxQty,
			LatestQty: latest[pairKey(st.Item, st.Warehouse)],
			TotalCBM:  st.AvgQty * st.CBMPerUnit,
		}

		itemSales, hasSales := sold[sales.NormalizeItemKey(st.Item)]
		var rate float64
		if hasSales {
			sku.SoldQty = itemSales.TotalQty
			sku.SoldCBM = itemSales.TotalCBM
			sku.SaleDays = itemSales.SaleDays
			if itemSales.SaleDays > 0 {
				rate = itemSales.TotalQty / float64(itemSales.SaleDays)
			}
		} else {
			rate = st.AvgQty * s.cfg.FallbackDailyConsumptionRate
			sku.EstimatedSales = true
		}
		sku.AvgDailySales = rate

		if rate <= 0 {
			sku.DaysOfStock = DaysOfStockSentinel
		} else {
			sku.DaysOfStock = int(math.Round(sku.LatestQty / rate))
		}
		sku.Classification = classifyDaysOfStock(sku.DaysOfStock)

		if sku.AvgQty < filter.MinAvgQty {
			continue
		}
		skus = append(skus, sku)
	}

	sort.SliceStable(skus, func(i, j int) bool { return skus[i].AvgQty > skus[j].AvgQty })

	summary := map[string]int{ClassCritical: 0, ClassLow: 0, ClassAdequate: 0, ClassHigh: 0}
	for _, sku := range skus {
		summary[sku.Classification]++
	}
	if len(skus) > filter.Limit {
		skus = skus[:filter.Limit]
	}
	for i := range skus {
		skus[i].AvgQty = round2(skus[i].AvgQty)
		skus[i].MinQty = round2(skus[i].MinQty)
		skus[i].MaxQty = round2(skus[i].MaxQty)
		skus[i].LatestQty = round2(skus[i].LatestQty)
		skus[i].TotalCBM = round2(skus[i].TotalCBM)
		skus[i].SoldQty = round2(skus[i].SoldQty)
		skus[i].SoldCBM = round2(skus[i].SoldCBM)
		skus[i].AvgDailySales = round2(skus[i].AvgDailySales)
	}

	return FastMovingResult{
		SKUs:    skus,
		Summary: summary,
		Filters: filterOptionsFromStats(stats),
	}, nil
}

func classifyDaysOfStock(days int) string {
	switch {
	case days < 7:
		return ClassCritical
	case days < 14:
		return ClassLow
	case days < 30:
		return ClassAdequate
	default:
		return ClassHigh
	}
}

func pairKey(item, warehouse string) string {
	return item + "\x00" + warehouse
}

// filterOptionsFromStats derives the distinct-value lists from the rows the
// classifier actually considered.
func filterOptionsFromStats(stats []RowStats) FilterOptions {
	groups := make(map[string]struct{})
	categories := make(map[string]struct{})
	warehouses := make(map[string]struct{})
	for _, st := range stats {
		if st.ItemGroup != "" {
			groups[st.ItemGroup] = struct{}{}
		}
		categories[st.Category] = struct{}{}
		if st.Warehouse != "" {
			warehouses[st.Warehouse] = struct{}{}
		}
	}
	return FilterOptions{
		ItemGroups: sortedKeys(groups),
		Categories: sortedKeys(categories),
		Warehouses: sortedKeys(warehouses),
	}
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
