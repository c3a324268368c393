package analytics_api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"ms-liveshop/internal/analytics"
	"ms-liveshop/internal/logger"

	"github.com/go-chi/chi/v5"
)

// Handler serves the backstage KPI endpoints.
type Handler struct {
	Service *analytics.Service
	Logger  *logger.Logger
}

func NewHandler(service *analytics.Service, log *logger.Logger) *Handler {
	return &Handler{Service: service, Logger: log}
}

// RegisterRoutes registers the analytics routes on a chi router.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/live/analytics", func(r chi.Router) {
		r.Get("/events/{eventID}", h.GetEventKPIs)
		r.Get("/events/{eventID}/top-variants", h.GetTopVariants)
	})
}

func (h *Handler) GetEventKPIs(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "eventID")

	kpis, err := h.Service.GetEventKPIs(r.Context(), eventID)
	if err != nil {
		h.Logger.Error("ANALYTICS", fmt.Sprintf("GetEventKPIs: %v", err))
		http.Error(w, "Failed to compute KPIs", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(kpis)
}

func (h *Handler) GetTopVariants(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "eventID")

	limit := 10
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}

	rows, err := h.Service.TopVariants(r.Context(), eventID, limit)
	if err != nil {
		h.Logger.Error("ANALYTICS", fmt.Sprintf("GetTopVariants: %v", err))
		http.Error(w, "Failed to compute top variants", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(rows)
}
