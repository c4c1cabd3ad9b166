// Package analytichttp exposes the analytics read API over HTTP.
package analytichttp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/stocklens/stocklens/internal/analytics"
	"github.com/stocklens/stocklens/internal/batch"
	"github.com/stocklens/stocklens/internal/platform/httpx"
)

// AnalyticsService defines the read contract used by the handler.
type AnalyticsService interface {
	GetSummary(ctx context.Context, filter analytics.SummaryFilter) (analytics.Summary, error)
	GetFastMoving(ctx context.Context, filter analytics.FastMovingFilter) (analytics.FastMovingResult, error)
	GetZeroOrder(ctx context.Context, filter analytics.ZeroOrderFilter) (analytics.ZeroOrderResult, error)
}

// Handler coordinates HTTP requests for the analytics read API.
type Handler struct {
	logger  *slog.Logger
	service AnalyticsService
}

// NewHandler constructs the analytics HTTP handler.
func NewHandler(logger *slog.Logger, service AnalyticsService) *Handler {
	return &Handler{logger: logger, service: service}
}

func (h *Handler) handleSummary(w http.ResponseWriter, r *http.Request) {
	filter, err := parseSummaryFilter(r)
	if err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: %s", httpx.ErrValidation, err.Error()))
		return
	}
	summary, err := h.service.GetSummary(r.Context(), filter)
	if err != nil {
		h.respondQueryError(w, "summary", err)
		return
	}
	httpx.JSON(w, http.StatusOK, summary)
}

func (h *Handler) handleFastMoving(w http.ResponseWriter, r *http.Request) {
	filter := analytics.FastMovingFilter{Warehouse: r.URL.Query().Get("warehouse")}
	category, err := parseOptionalCategory(r.URL.Query().Get("category"))
	if err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: %s", httpx.ErrValidation, err.Error()))
		return
	}
	filter.Category = category
	if raw := r.URL.Query().Get("minAvgQty"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			httpx.RespondError(w, fmt.Errorf("%w: minAvgQty must be numeric", httpx.ErrValidation))
			return
		}
		filter.MinAvgQty = v
	}
	limit, err := parseOptionalInt(r, "limit")
	if err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: %s", httpx.ErrValidation, err.Error()))
		return
	}
	filter.Limit = limit

	result, err := h.service.GetFastMoving(r.Context(), filter)
	if err != nil {
		h.respondQueryError(w, "fast moving", err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

func (h *Handler) handleZeroOrder(w http.ResponseWriter, r *http.Request) {
	filter := analytics.ZeroOrderFilter{Warehouse: r.URL.Query().Get("warehouse")}
	category, err := parseOptionalCategory(r.URL.Query().Get("category"))
	if err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: %s", httpx.ErrValidation, err.Error()))
		return
	}
	filter.Category = category
	minDays, err := parseOptionalInt(r, "minDaysInStock")
	if err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: %s", httpx.ErrValidation, err.Error()))
		return
	}
	filter.MinDaysInStock = minDays
	limit, err := parseOptionalInt(r, "limit")
	if err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: %s", httpx.ErrValidation, err.Error()))
		return
	}
	filter.Limit = limit

	result, err := h.service.GetZeroOrder(r.Context(), filter)
	if err != nil {
		h.respondQueryError(w, "zero order", err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

func (h *Handler) respondQueryError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, batch.ErrNoProcessedBatches):
		httpx.RespondError(w, fmt.Errorf("%w: no processed batches in scope", httpx.ErrNotFound))
	case errors.Is(err, analytics.ErrInvalidFilter):
		httpx.RespondError(w, fmt.Errorf("%w: %s", httpx.ErrValidation, err.Error()))
	default:
		h.logger.Error("analytics query", slog.String("op", op), slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}

func parseSummaryFilter(r *http.Request) (analytics.SummaryFilter, error) {
	q := r.URL.Query()
	var filter analytics.SummaryFilter

	if raw := q.Get("batch"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return filter, fmt.Errorf("invalid batch id %q", raw)
		}
		filter.BatchID = &id
	}
	var err error
	if filter.From, err = parseOptionalDate(q.Get("from")); err != nil {
		return filter, err
	}
	if filter.To, err = parseOptionalDate(q.Get("to")); err != nil {
		return filter, err
	}
	filter.ItemGroup = q.Get("itemGroup")
	filter.Warehouse = q.Get("warehouse")
	for _, raw := range q["category"] {
		category, err := batch.ParseCategory(raw)
		if err != nil {
			return filter, fmt.Errorf("unknown category %q", raw)
		}
		filter.Categories = append(filter.Categories, category)
	}
	if raw := q.Get("highlight"); raw != "" {
		category, err := batch.ParseCategory(raw)
		if err != nil {
			return filter, fmt.Errorf("unknown highlight category %q", raw)
		}
		filter.Highlight = category
	}
	return filter, nil
}

func parseOptionalCategory(raw string) (*batch.Category, error) {
	if raw == "" {
		return nil, nil
	}
	category, err := batch.ParseCategory(raw)
	if err != nil {
		return nil, fmt.Errorf("unknown category %q", raw)
	}
	return &category, nil
}

func parseOptionalDate(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("unparseable date %q", raw)
	}
	return t, nil
}

func parseOptionalInt(r *http.Request, name string) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer", name)
	}
	return v, nil
}
