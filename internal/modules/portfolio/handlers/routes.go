package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers portfolio store routes on a /portfolios sub-router.
// Analytics routes for a single portfolio share the same sub-router.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.HandleList)    // List portfolios with latest version
	r.Post("/", h.HandleCreate) // Create portfolio (version 1)

	r.Get("/{id}", h.HandleGet)
	r.Route("/{id}/versions", func(r chi.Router) {
		r.Get("/", h.HandleListVersions)
		r.Post("/", h.HandleAddVersion)         // Append version N+1
		r.Get("/{version}", h.HandleGetVersion) // Number or "latest"
	})
}
