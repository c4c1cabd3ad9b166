package batch

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/stocklens/stocklens/internal/platform/httpx"
)

// Handler wires HTTP endpoints for the batch store.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	keys     IngestKeyStore
	validate *validator.Validate
}

// NewHandler constructs batch handler. keys may be nil, in which case the
// Idempotency-Key header is ignored.
func NewHandler(logger *slog.Logger, service *Service, keys IngestKeyStore) *Handler {
	return &Handler{logger: logger, service: service, keys: keys, validate: validator.New()}
}

// MountRoutes registers batch routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/batches", h.handleIngest)
	r.Get("/batches", h.handleList)
	r.Delete("/batches/{batchID}", h.handleDelete)
}

type ingestReading struct {
	Date     string  `json:"date" validate:"required,datetime=2006-01-02"`
	Quantity float64 `json:"quantity"`
}

type ingestRow struct {
	Item       string          `json:"item" validate:"required"`
	Warehouse  string          `json:"warehouse" validate:"required"`
	ItemGroup  string          `json:"itemGroup"`
	Category   string          `json:"category" validate:"required"`
	CBMPerUnit float64         `json:"cbmPerUnit" validate:"gte=0"`
	IsTotalRow bool            `json:"isTotalRow"`
	Readings   []ingestReading `json:"readings" validate:"dive"`
}

type ingestRequest struct {
	FileName string      `json:"fileName" validate:"required"`
	Rows     []ingestRow `json:"rows" validate:"required,min=1,dive"`
}

type ingestResponse struct {
	BatchID string `json:"batchId"`
	Rows    int    `json:"rows"`
}

func (h *Handler) handleIngest(w http.ResponseWriter, r *http.Request) {
	var req ingestRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: malformed body", httpx.ErrValidation))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: %s", httpx.ErrValidation, err.Error()))
		return
	}
	rows := make([]SnapshotRow, 0, len(req.Rows))
	for i, in := range req.Rows {
		category, err := ParseCategory(in.Category)
		if err != nil {
			httpx.RespondError(w, fmt.Errorf("%w: row %d: unknown category %q", httpx.ErrValidation, i, in.Category))
			return
		}
		row := SnapshotRow{
			Item:       in.Item,
			Warehouse:  in.Warehouse,
			ItemGroup:  in.ItemGroup,
			Category:   category,
			CBMPerUnit: in.CBMPerUnit,
			IsTotalRow: in.IsTotalRow,
		}
		for _, reading := range in.Readings {
			date, err := time.Parse("2006-01-02", reading.Date)
			if err != nil {
				httpx.RespondError(w, fmt.Errorf("%w: row %d: unparseable date %q", httpx.ErrValidation, i, reading.Date))
				return
			}
			row.Readings = append(row.Readings, Reading{Date: date, Quantity: reading.Quantity})
		}
		rows = append(rows, row)
	}

	key := r.Header.Get("Idempotency-Key")
	if key != "" && h.keys != nil {
		if err := h.keys.CheckAndInsert(r.Context(), key); err != nil {
			if errors.Is(err, ErrDuplicateIngest) {
				httpx.RespondError(w, fmt.Errorf("%w: upload %q already processed", httpx.ErrDuplicate, key))
				return
			}
			h.logger.Error("claim ingestion key", slog.Any("error", err))
			httpx.RespondError(w, err)
			return
		}
	}

	batchID, err := h.service.Ingest(r.Context(), req.FileName, rows)
	if err != nil {
		// A failed upload must stay retryable with the same key.
		if key != "" && h.keys != nil {
			if delErr := h.keys.Delete(r.Context(), key); delErr != nil {
				h.logger.Error("release ingestion key", slog.String("key", key), slog.Any("error", delErr))
			}
		}
		var ingErr *IngestionError
		switch {
		case errors.As(err, &ingErr):
			h.logger.Error("ingest batch", slog.String("batch_id", ingErr.BatchID.String()), slog.Any("error", err))
			httpx.RespondError(w, fmt.Errorf("%w: %s", httpx.ErrIngestion, ingErr.Reason))
		case errors.Is(err, ErrEmptyBatch), errors.Is(err, ErrUnknownCategory):
			httpx.RespondError(w, fmt.Errorf("%w: %s", httpx.ErrValidation, err.Error()))
		default:
			h.logger.Error("ingest batch", slog.Any("error", err))
			httpx.RespondError(w, err)
		}
		return
	}

	httpx.JSON(w, http.StatusCreated, ingestResponse{BatchID: batchID.String(), Rows: len(rows)})
}

type batchView struct {
	ID        string `json:"id"`
	FileName  string `json:"fileName"`
	Status    string `json:"status"`
	RowCount  int    `json:"rowCount"`
	CreatedAt string `json:"createdAt"`
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	page, perPage, err := httpx.ParsePageParams(r, DefaultListPerPage)
	if err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: %s", httpx.ErrValidation, err.Error()))
		return
	}
	batches, total, err := h.service.List(r.Context(), page, perPage)
	if err != nil {
		h.logger.Error("list batches", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	views := make([]batchView, 0, len(batches))
	for _, b := range batches {
		views = append(views, batchView{
			ID:        b.ID.String(),
			FileName:  b.FileName,
			Status:    string(b.Status),
			RowCount:  b.RowCount,
			CreatedAt: b.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"batches":    views,
		"pagination": httpx.NewPagination(page, perPage, total),
	})
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	raw := chi.URLParam(r, "batchID")
	batchID, err := uuid.Parse(raw)
	if err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: invalid batch id %q", httpx.ErrValidation, raw))
		return
	}
	if err := h.service.Delete(r.Context(), batchID); err != nil {
		if errors.Is(err, ErrBatchNotFound) {
			httpx.RespondError(w, fmt.Errorf("%w: batch %s", httpx.ErrNotFound, batchID))
			return
		}
		h.logger.Error("delete batch", slog.String("batch_id", batchID.String()), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
