package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterPortfolioRoutes registers per-portfolio analytics on the shared
// /portfolios sub-router.
func (h *Handler) RegisterPortfolioRoutes(r chi.Router) {
	r.Get("/{id}/nav", h.HandleNAV)
	r.Get("/{id}/metrics", h.HandleMetrics)
	r.Get("/{id}/attribution", h.HandleAttribution)
	r.Get("/{id}/alerts", h.HandleAlerts)
	r.Get("/{id}/report", h.HandleReport) // metrics + attribution + alerts

	r.Post("/{id}/scenario", h.HandleScenario)
	r.Post("/{id}/health/{symbol}", h.HandleHealth)
}

// RegisterRoutes registers cross-portfolio analytics routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/analytics", func(r chi.Router) {
		r.Post("/batch", h.HandleBatch)
	})
}
