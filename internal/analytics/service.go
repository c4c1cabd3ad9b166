package analytics

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/stocklens/stocklens/internal/batch"
	"github.com/stocklens/stocklens/internal/sales"
)

// BatchScope resolves which processed batches a query aggregates over.
type BatchScope interface {
	ResolveScope(ctx context.Context, only *uuid.UUID) ([]uuid.UUID, error)
}

// SalesIndex exposes the shipment totals the classifiers join against.
type SalesIndex interface {
	TotalsByItem(ctx context.Context) (map[string]sales.ItemSales, error)
	HasAny(ctx context.Context) (bool, error)
}

// ServiceConfig groups tunables.
type ServiceConfig struct {
	// HighlightDefault is the category overlaid on time-series charts when a
	// request does not name one.
	HighlightDefault batch.Category
	// FallbackDailyConsumptionRate estimates daily consumption for items
	// without sales history as a fraction of average stock. Inherited
	// approximation; tunable, accuracy unverified.
	FallbackDailyConsumptionRate float64
}

// Service coordinates analytics query execution with the cache layer.
type Service struct {
	repo     Repository
	batches  BatchScope
	salesIdx SalesIndex
	cache    *Cache
	cfg      ServiceConfig
}

// NewService wires the repository, scope resolver, sales index, and cache.
func NewService(repo Repository, batches BatchScope, salesIdx SalesIndex, cache *Cache, cfg ServiceConfig) *Service {
	if cfg.HighlightDefault == "" {
		cfg.HighlightDefault = batch.CategoryFinishedGoods
	}
	if cfg.FallbackDailyConsumptionRate <= 0 {
		cfg.FallbackDailyConsumptionRate = 0.1
	}
	return &Service{repo: repo, batches: batches, salesIdx: salesIdx, cache: cache, cfg: cfg}
}

// GetSummary computes the filtered summary: scalar cards, per-date time
// series, and distinct filter-value lists, all over one resolved batch scope.
func (s *Service) GetSummary(ctx context.Context, filter SummaryFilter) (Summary, error) {
	if err := validateSummaryFilter(filter); err != nil {
		return Summary{}, err
	}
	if filter.Highlight == "" {
		filter.Highlight = s.cfg.HighlightDefault
	}

	key, err := s.cache.BuildKey(ctx, keySummary(filter))
	if err != nil {
		return Summary{}, err
	}
	var summary Summary
	err = s.cache.FetchJSON(ctx, key, &summary, func(ctx context.Context) (interface{}, error) {
		return s.computeSummary(ctx, filter)
	})
	return summary, err
}

func (s *Service) computeSummary(ctx context.Context, filter SummaryFilter) (Summary, error) {
	batchIDs, err := s.batches.ResolveScope(ctx, filter.BatchID)
	if err != nil {
		return Summary{}, err
	}
	sc := scope{
		BatchIDs:   batchIDs,
		From:       filter.From,
		To:         filter.To,
		ItemGroup:  filter.ItemGroup,
		Categories: filter.Categories,
		Warehouse:  filter.Warehouse,
	}

	var summary Summary
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		cards, err := s.repo.SummaryCards(gctx, sc)
		if err != nil {
			return fmt.Errorf("summary cards: %w", err)
		}
		summary.Cards = cards
		return nil
	})
	g.Go(func() error {
		series, err := s.repo.TimeSeries(gctx, sc, filter.Highlight)
		if err != nil {
			return fmt.Errorf("time series: %w", err)
		}
		summary.TimeSeries = series
		return nil
	})
	g.Go(func() error {
		opts, err := s.repo.FilterOptions(gctx, batchIDs)
		if err != nil {
			return fmt.Errorf("filter options: %w", err)
		}
		summary.Filters = opts
		return nil
	})
	if err := g.Wait(); err != nil {
		return Summary{}, err
	}

	summary.Cards.InventoryQtyTotal = round2(summary.Cards.InventoryQtyTotal)
	summary.Cards.TotalCBM = round2(summary.Cards.TotalCBM)
	for i := range summary.TimeSeries {
		summary.TimeSeries[i].TotalQty = round2(summary.TimeSeries[i].TotalQty)
		summary.TimeSeries[i].TotalCBM = round2(summary.TimeSeries[i].TotalCBM)
		summary.TimeSeries[i].HighlightQty = round2(summary.TimeSeries[i].HighlightQty)
		summary.TimeSeries[i].HighlightCBM = round2(summary.TimeSeries[i].HighlightCBM)
	}
	return summary, nil
}

func validateSummaryFilter(filter SummaryFilter) error {
	if !filter.From.IsZero() && !filter.To.IsZero() && filter.From.After(filter.To) {
		return fmt.Errorf("%w: date range start %s is after end %s", ErrInvalidFilter,
			filter.From.Format("2006-01-02"), filter.To.Format("2006-01-02"))
	}
	return nil
}
