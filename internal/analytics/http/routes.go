package analytichttp

import "github.com/go-chi/chi/v5"

// MountRoutes registers the analytics read endpoints.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/summary", h.handleSummary)
	r.Get("/fast-moving", h.handleFastMoving)
	r.Get("/zero-order", h.handleZeroOrder)
}
