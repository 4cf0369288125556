// Package handlers provides HTTP handlers for price ingestion.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/aristath/folio/internal/domain"
	"github.com/aristath/folio/internal/modules/prices"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// PriceStore is the write side of the history database
type PriceStore interface {
	StoreBars(ctx context.Context, symbol string, bars []domain.PriceBar) (int, error)
	SetSecurity(ctx context.Context, sec prices.Security) error
}

// Handler handles price ingestion HTTP requests
type Handler struct {
	store PriceStore
	log   zerolog.Logger
}

// NewHandler creates a new prices handler
func NewHandler(store PriceStore, log zerolog.Logger) *Handler {
	return &Handler{
		store: store,
		log:   log.With().Str("handler", "prices").Logger(),
	}
}

// RegisterRoutes registers price and security routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/prices/{symbol}", h.HandleStoreBars)
	r.Put("/securities/{symbol}", h.HandleSetSecurity)
}

type barRequest struct {
	Date          string  `json:"date"`
	Open          float64 `json:"open"`
	High          float64 `json:"high"`
	Low           float64 `json:"low"`
	Close         float64 `json:"close"`
	AdjustedClose float64 `json:"adjusted_close"`
	Volume        int64   `json:"volume"`
}

// HandleStoreBars ingests daily bars for one symbol
func (h *Handler) HandleStoreBars(w http.ResponseWriter, r *http.Request) {
	symbol := chi.URLParam(r, "symbol")

	var req []barRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	bars := make([]domain.PriceBar, 0, len(req))
	for _, b := range req {
		date, err := domain.ParseDate(b.Date)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		bars = append(bars, domain.PriceBar{
			Date:          date,
			Open:          b.Open,
			High:          b.High,
			Low:           b.Low,
			Close:         b.Close,
			AdjustedClose: b.AdjustedClose,
			Volume:        b.Volume,
		})
	}

	inserted, err := h.store.StoreBars(r.Context(), symbol, bars)
	if err != nil {
		h.writeStoreError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": map[string]interface{}{
			"symbol":   domain.NormalizeSymbol(symbol),
			"received": len(bars),
			"inserted": inserted,
		},
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	})
}

// HandleSetSecurity upserts a symbol's name and sector tag
func (h *Handler) HandleSetSecurity(w http.ResponseWriter, r *http.Request) {
	var sec prices.Security
	if err := json.NewDecoder(r.Body).Decode(&sec); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	sec.Symbol = domain.NormalizeSymbol(chi.URLParam(r, "symbol"))

	if err := h.store.SetSecurity(r.Context(), sec); err != nil {
		h.writeStoreError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": sec,
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	})
}

func (h *Handler) writeStoreError(w http.ResponseWriter, err error) {
	if errors.Is(err, domain.ErrInvalidConfiguration) {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	h.log.Error().Err(err).Msg("Price store write failed")
	h.writeError(w, http.StatusInternalServerError, err.Error())
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
