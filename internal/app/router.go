package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	analytichttp "github.com/stocklens/stocklens/internal/analytics/http"
	"github.com/stocklens/stocklens/internal/batch"
	"github.com/stocklens/stocklens/internal/observability"
	"github.com/stocklens/stocklens/internal/sales"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger           *slog.Logger
	Config           *Config
	Metrics          *observability.Metrics
	BatchHandler     *batch.Handler
	SalesHandler     *sales.Handler
	AnalyticsHandler *analytichttp.Handler
}

// NewRouter constructs the chi.Router with StockLens defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	r.Route("/api", func(r chi.Router) {
		params.BatchHandler.MountRoutes(r)
		params.SalesHandler.MountRoutes(r)
		params.AnalyticsHandler.MountRoutes(r)
	})

	return r
}
