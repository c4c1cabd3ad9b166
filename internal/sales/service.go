package sales

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// RepositoryPort abstracts sale record persistence.
type RepositoryPort interface {
	InsertRecords(ctx context.Context, records []SaleRecord) error
	TotalsByItem(ctx context.Context) (map[string]ItemSales, error)
	HasAny(ctx context.Context) (bool, error)
}

// CacheInvalidator is bumped after loads since classifier outputs depend on
// the sales index.
type CacheInvalidator interface {
	Bump(ctx context.Context) error
}

// Service coordinates sale record loading and lookups.
type Service struct {
	repo   RepositoryPort
	cache  CacheInvalidator
	logger *slog.Logger
}

// NewService builds Service.
func NewService(repo RepositoryPort, cache CacheInvalidator, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, cache: cache, logger: logger}
}

// Load stores a batch of sale records. Distinct raw identifiers that collide
// after normalization merge silently; the collision is logged, not rejected.
func (s *Service) Load(ctx context.Context, records []SaleRecord) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}
	for i, rec := range records {
		if strings.TrimSpace(rec.Item) == "" {
			return 0, fmt.Errorf("record %d: item identifier required", i)
		}
		if rec.Quantity < 0 || rec.CBM < 0 {
			return 0, fmt.Errorf("record %d: quantity and cbm must be non-negative", i)
		}
	}
	s.logJoinAmbiguity(records)
	if err := s.repo.InsertRecords(ctx, records); err != nil {
		return 0, fmt.Errorf("insert sale records: %w", err)
	}
	if s.cache != nil {
		if err := s.cache.Bump(ctx); err != nil {
			s.logger.Error("bump result cache", slog.Any("error", err))
		}
	}
	s.logger.Info("sale records loaded", slog.Int("records", len(records)))
	return len(records), nil
}

// TotalsByItem exposes the index to the classifiers.
func (s *Service) TotalsByItem(ctx context.Context) (map[string]ItemSales, error) {
	return s.repo.TotalsByItem(ctx)
}

// HasAny reports whether the index holds any records at all.
func (s *Service) HasAny(ctx context.Context) (bool, error) {
	return s.repo.HasAny(ctx)
}

func (s *Service) logJoinAmbiguity(records []SaleRecord) {
	seen := make(map[string]string, len(records))
	for _, rec := range records {
		key := NormalizeItemKey(rec.Item)
		raw := strings.TrimSpace(rec.Item)
		if prev, ok := seen[key]; ok && prev != raw {
			s.logger.Warn("item identifiers merge after normalization",
				slog.String("key", key),
				slog.String("first", prev),
				slog.String("second", raw))
			continue
		}
		seen[key] = raw
	}
}
