package sales

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/stocklens/stocklens/internal/platform/httpx"
)

// Handler wires HTTP endpoints for sale record loading.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler constructs sales handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers sales routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/sales/records", h.handleLoad)
}

type saleRecordRequest struct {
	Item     string  `json:"item" validate:"required"`
	Date     string  `json:"date" validate:"required,datetime=2006-01-02"`
	Quantity float64 `json:"quantity" validate:"gte=0"`
	CBM      float64 `json:"cbm" validate:"gte=0"`
}

type loadRequest struct {
	Records []saleRecordRequest `json:"records" validate:"required,min=1,dive"`
}

func (h *Handler) handleLoad(w http.ResponseWriter, r *http.Request) {
	var req loadRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: malformed body", httpx.ErrValidation))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: %s", httpx.ErrValidation, err.Error()))
		return
	}

	records := make([]SaleRecord, 0, len(req.Records))
	for i, in := range req.Records {
		date, err := time.Parse("2006-01-02", in.Date)
		if err != nil {
			httpx.RespondError(w, fmt.Errorf("%w: record %d: unparseable date %q", httpx.ErrValidation, i, in.Date))
			return
		}
		records = append(records, SaleRecord{Item: in.Item, Date: date, Quantity: in.Quantity, CBM: in.CBM})
	}

	loaded, err := h.service.Load(r.Context(), records)
	if err != nil {
		h.logger.Error("load sale records", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{"loaded": loaded})
}
