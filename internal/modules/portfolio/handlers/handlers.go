// Package handlers provides HTTP handlers for portfolio management.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/aristath/folio/internal/domain"
	"github.com/aristath/folio/internal/modules/portfolio"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// PortfolioService is the portfolio store as seen by the HTTP layer
type PortfolioService interface {
	Create(ctx context.Context, req portfolio.CreateRequest) (*domain.Portfolio, []domain.Warning, error)
	AddVersion(ctx context.Context, id string, req portfolio.VersionRequest) (*domain.PortfolioVersion, []domain.Warning, error)
	Get(ctx context.Context, id string) (*domain.Portfolio, error)
	List(ctx context.Context) ([]domain.Portfolio, error)
	Version(ctx context.Context, id string, n int) (*domain.PortfolioVersion, error)
	Latest(ctx context.Context, id string) (*domain.PortfolioVersion, error)
}

// Handler handles portfolio HTTP requests
type Handler struct {
	service PortfolioService
	log     zerolog.Logger
}

// NewHandler creates a new portfolio handler
func NewHandler(service PortfolioService, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		log:     log.With().Str("handler", "portfolio").Logger(),
	}
}

// VersionResponse is a version with ISO dates
type VersionResponse struct {
	Version        int               `json:"version"`
	EffectiveAt    string            `json:"effective_at"`
	AllocationType string            `json:"allocation_type"`
	Positions      []domain.Position `json:"positions"`
	CreatedAt      string            `json:"created_at"`
}

// PortfolioResponse is a portfolio with its latest version and history
type PortfolioResponse struct {
	ID             string            `json:"id"`
	Name           string            `json:"name"`
	BaseCurrency   string            `json:"base_currency"`
	AllocationType string            `json:"allocation_type"`
	CreatedAt      string            `json:"created_at"`
	Latest         *VersionResponse  `json:"latest,omitempty"`
	Versions       []VersionResponse `json:"versions,omitempty"`
}

// HandleList returns all portfolios with their latest version
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	portfolios, err := h.service.List(r.Context())
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	result := make([]PortfolioResponse, 0, len(portfolios))
	for i := range portfolios {
		resp := toPortfolioResponse(&portfolios[i])
		resp.Versions = nil
		result = append(result, resp)
	}

	h.writeData(w, http.StatusOK, result, nil)
}

// HandleCreate creates a portfolio and its first version
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req portfolio.CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	p, warnings, err := h.service.Create(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	h.writeData(w, http.StatusCreated, toPortfolioResponse(p), warnings)
}

// HandleGet returns one portfolio with its full version history
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	p, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	h.writeData(w, http.StatusOK, toPortfolioResponse(p), nil)
}

// HandleListVersions returns the version history
func (h *Handler) HandleListVersions(w http.ResponseWriter, r *http.Request) {
	p, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	h.writeData(w, http.StatusOK, toPortfolioResponse(p).Versions, nil)
}

// HandleAddVersion appends version N+1
func (h *Handler) HandleAddVersion(w http.ResponseWriter, r *http.Request) {
	var req portfolio.VersionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	v, warnings, err := h.service.AddVersion(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	h.writeData(w, http.StatusCreated, toVersionResponse(*v), warnings)
}

// HandleGetVersion returns one version by number, or the latest
func (h *Handler) HandleGetVersion(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	raw := chi.URLParam(r, "version")

	var (
		v   *domain.PortfolioVersion
		err error
	)
	if raw == "latest" {
		v, err = h.service.Latest(r.Context(), id)
	} else {
		n, convErr := strconv.Atoi(raw)
		if convErr != nil || n <= 0 {
			h.writeError(w, http.StatusBadRequest, "version must be a positive integer or 'latest'")
			return
		}
		v, err = h.service.Version(r.Context(), id, n)
	}
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	h.writeData(w, http.StatusOK, toVersionResponse(*v), nil)
}

func toVersionResponse(v domain.PortfolioVersion) VersionResponse {
	return VersionResponse{
		Version:        v.Version,
		EffectiveAt:    domain.FormatDate(v.EffectiveAt),
		AllocationType: string(v.Mode),
		Positions:      v.Positions,
		CreatedAt:      v.CreatedAt.Format(time.RFC3339),
	}
}

func toPortfolioResponse(p *domain.Portfolio) PortfolioResponse {
	resp := PortfolioResponse{
		ID:             p.ID,
		Name:           p.Name,
		BaseCurrency:   p.BaseCurrency,
		AllocationType: string(p.Mode),
		CreatedAt:      p.CreatedAt.Format(time.RFC3339),
	}
	if latest, ok := p.Latest(); ok {
		lv := toVersionResponse(latest)
		resp.Latest = &lv
	}
	p.SortVersions()
	for _, v := range p.Versions {
		resp.Versions = append(resp.Versions, toVersionResponse(v))
	}
	return resp
}

func (h *Handler) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidConfiguration):
		h.writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		h.writeError(w, http.StatusNotFound, err.Error())
	default:
		h.log.Error().Err(err).Msg("Portfolio request failed")
		h.writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func (h *Handler) writeData(w http.ResponseWriter, status int, data interface{}, warnings []domain.Warning) {
	metadata := map[string]interface{}{
		"timestamp": time.Now().Format(time.RFC3339),
	}
	if len(warnings) > 0 {
		metadata["warnings"] = warnings
	}
	h.writeJSON(w, status, map[string]interface{}{
		"data":     data,
		"metadata": metadata,
	})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
