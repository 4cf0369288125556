// Package handlers provides HTTP handlers for portfolio analytics.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/aristath/folio/internal/domain"
	"github.com/aristath/folio/internal/modules/analytics"
	"github.com/aristath/folio/internal/modules/attribution"
	"github.com/aristath/folio/internal/modules/nav"
	"github.com/aristath/folio/internal/modules/scenario"
	"github.com/aristath/folio/internal/modules/scoring"
	"github.com/aristath/folio/internal/utils"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// AnalyticsService is the analytics service as seen by the HTTP layer
type AnalyticsService interface {
	NAV(ctx context.Context, id string, version int, asOf time.Time) (*analytics.NAVResult, error)
	Metrics(ctx context.Context, id string, w nav.Window) (*analytics.MetricsReport, error)
	Attribution(ctx context.Context, id string, w nav.Window) (*attribution.Result, error)
	Alerts(ctx context.Context, id string, asOf time.Time) (*analytics.AlertsReport, error)
	Scenario(ctx context.Context, id, symbol, action string) (*scenario.Result, error)
	Health(ctx context.Context, id, symbol string, in analytics.HealthInput) (*scoring.HealthScore, error)
	Report(ctx context.Context, id string, asOf time.Time) (*analytics.Report, error)
	RunBatch(ctx context.Context, ids []string) (*analytics.BatchReport, error)
	DefaultWindow() string
}

// Handler handles analytics HTTP requests
type Handler struct {
	service AnalyticsService
	log     zerolog.Logger
}

// NewHandler creates a new analytics handler
func NewHandler(service AnalyticsService, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		log:     log.With().Str("handler", "analytics").Logger(),
	}
}

// ScenarioRequest is the body of POST /portfolios/{id}/scenario
type ScenarioRequest struct {
	Symbol string `json:"symbol"`
	Action string `json:"action"`
}

// BatchRequest is the body of POST /analytics/batch. No ids means every portfolio.
type BatchRequest struct {
	PortfolioIDs []string `json:"portfolio_ids"`
}

// HandleNAV returns the NAV series
// Query: version (default: effective at as_of), as_of (default: today)
func (h *Handler) HandleNAV(w http.ResponseWriter, r *http.Request) {
	asOf, err := parseAsOf(r)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	var version int
	if raw := r.URL.Query().Get("version"); raw != "" {
		version, err = strconv.Atoi(raw)
		if err != nil || version < 1 {
			h.writeError(w, http.StatusBadRequest, "version must be a positive integer")
			return
		}
	}

	res, err := h.service.NAV(r.Context(), chi.URLParam(r, "id"), version, asOf)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeData(w, http.StatusOK, res, res.Warnings)
}

// HandleMetrics returns performance metrics
// Query: window (default ALL), from, to
func (h *Handler) HandleMetrics(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	window, err := nav.ParseWindow(q.Get("window"), q.Get("from"), q.Get("to"), nav.WindowAll)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	res, err := h.service.Metrics(r.Context(), chi.URLParam(r, "id"), window)
	if err != nil {
		if errors.Is(err, domain.ErrUndefinedMetric) {
			h.writeUndefined(w, "metrics", err)
			return
		}
		h.writeServiceError(w, err)
		return
	}
	h.writeData(w, http.StatusOK, res, res.Warnings)
}

// HandleAttribution returns return attribution
// Query: window (default from ATTRIBUTION_WINDOW), from, to
func (h *Handler) HandleAttribution(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	window, err := nav.ParseWindow(q.Get("window"), q.Get("from"), q.Get("to"), h.service.DefaultWindow())
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	res, err := h.service.Attribution(r.Context(), chi.URLParam(r, "id"), window)
	if err != nil {
		if errors.Is(err, domain.ErrUndefinedMetric) {
			h.writeUndefined(w, "attribution", err)
			return
		}
		h.writeServiceError(w, err)
		return
	}
	h.writeData(w, http.StatusOK, res, res.Warnings)
}

// HandleAlerts returns concentration alerts
func (h *Handler) HandleAlerts(w http.ResponseWriter, r *http.Request) {
	asOf, err := parseAsOf(r)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	res, err := h.service.Alerts(r.Context(), chi.URLParam(r, "id"), asOf)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeData(w, http.StatusOK, res, res.Warnings)
}

// HandleReport returns metrics, attribution and alerts in one response
func (h *Handler) HandleReport(w http.ResponseWriter, r *http.Request) {
	asOf, err := parseAsOf(r)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	res, err := h.service.Report(r.Context(), chi.URLParam(r, "id"), asOf)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeData(w, http.StatusOK, res, res.Warnings)
}

// HandleScenario simulates a position change
func (h *Handler) HandleScenario(w http.ResponseWriter, r *http.Request) {
	var req ScenarioRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	res, err := h.service.Scenario(r.Context(), chi.URLParam(r, "id"), req.Symbol, req.Action)
	if err != nil {
		if errors.Is(err, domain.ErrUndefinedMetric) {
			h.writeUndefined(w, "scenario", err)
			return
		}
		h.writeServiceError(w, err)
		return
	}
	h.writeData(w, http.StatusOK, res, res.Warnings)
}

// HandleHealth scores one symbol
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	var in analytics.HealthInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	res, err := h.service.Health(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "symbol"), in)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeData(w, http.StatusOK, res, res.Warnings)
}

// HandleBatch builds reports for many portfolios
// Body or query (?ids=a,b) may name portfolios; none means all
func (h *Handler) HandleBatch(w http.ResponseWriter, r *http.Request) {
	var req BatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if len(req.PortfolioIDs) == 0 {
		req.PortfolioIDs = utils.ParseCSV(r.URL.Query().Get("ids"))
	}

	res, err := h.service.RunBatch(r.Context(), req.PortfolioIDs)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeData(w, http.StatusOK, res, nil)
}

func parseAsOf(r *http.Request) (time.Time, error) {
	raw := r.URL.Query().Get("as_of")
	if raw == "" {
		return time.Time{}, nil
	}
	t, err := domain.ParseDate(raw)
	if err != nil {
		return time.Time{}, &domain.ValidationError{Field: "as_of", Reason: err.Error()}
	}
	return t, nil
}

func (h *Handler) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidConfiguration):
		h.writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		h.writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrDataUnavailable):
		h.writeError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		h.log.Error().Err(err).Msg("Analytics request failed")
		h.writeError(w, http.StatusInternalServerError, err.Error())
	}
}

// writeUndefined answers 200 with a null result so callers can tell "not
// computable" apart from a failure.
func (h *Handler) writeUndefined(w http.ResponseWriter, name string, err error) {
	h.writeData(w, http.StatusOK, map[string]interface{}{
		name:        nil,
		"undefined": []string{name},
		"reason":    err.Error(),
	}, nil)
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
