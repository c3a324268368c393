package raffle_api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"ms-liveshop/internal/logger"
	"ms-liveshop/internal/models"
	"ms-liveshop/internal/raffle"

	"github.com/go-chi/chi/v5"
)

type Handler struct {
	RaffleService *raffle.Service
	Logger        *logger.Logger
}

func NewHandler(raffleService *raffle.Service) *Handler {
	return &Handler{
		RaffleService: raffleService,
		Logger:        logger.NewLogger(),
	}
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrGiftOutOfStock):
		return http.StatusConflict
	case errors.Is(err, models.ErrNoEligibleCarts),
		errors.Is(err, models.ErrGiftInactive),
		errors.Is(err, models.ErrInvalidTransition):
		return http.StatusUnprocessableEntity
	case errors.Is(err, models.ErrLockedForEdit):
		return http.StatusLocked
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func (h *Handler) Draw(w http.ResponseWriter, r *http.Request) {
	var body struct {
		LiveEventID   string `json:"live_event_id"`
		GiftID        string `json:"gift_id"`
		IncludeUnpaid bool   `json:"include_unpaid"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	h.Logger.Info("API", fmt.Sprintf("RaffleDraw: event=%s gift=%s includeUnpaid=%v", body.LiveEventID, body.GiftID, body.IncludeUnpaid))

	record, err := h.RaffleService.Draw(r.Context(), body.LiveEventID, body.GiftID, body.IncludeUnpaid)
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("RaffleDraw: %v", err))
		http.Error(w, err.Error(), statusFor(err))
		return
	}

	writeJSON(w, http.StatusCreated, record)
}

func (h *Handler) Confirm(w http.ResponseWriter, r *http.Request) {
	raffleID := chi.URLParam(r, "raffleID")
	h.Logger.Info("API", fmt.Sprintf("RaffleConfirm: raffleID=%s", raffleID))

	record, err := h.RaffleService.Confirm(r.Context(), raffleID)
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("RaffleConfirm: %v", err))
		http.Error(w, err.Error(), statusFor(err))
		return
	}

	writeJSON(w, http.StatusOK, record)
}

func (h *Handler) Edit(w http.ResponseWriter, r *http.Request) {
	raffleID := chi.URLParam(r, "raffleID")

	var body struct {
		GiftID string `json:"gift_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	h.Logger.Info("API", fmt.Sprintf("RaffleEdit: raffleID=%s newGift=%s", raffleID, body.GiftID))

	record, err := h.RaffleService.Edit(r.Context(), raffleID, body.GiftID)
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("RaffleEdit: %v", err))
		http.Error(w, err.Error(), statusFor(err))
		return
	}

	writeJSON(w, http.StatusOK, record)
}

func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	raffleID := chi.URLParam(r, "raffleID")
	h.Logger.Info("API", fmt.Sprintf("RaffleCancel: raffleID=%s", raffleID))

	record, err := h.RaffleService.Cancel(r.Context(), raffleID)
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("RaffleCancel: %v", err))
		http.Error(w, err.Error(), statusFor(err))
		return
	}

	writeJSON(w, http.StatusOK, record)
}

func (h *Handler) ListByEvent(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "eventID")

	records, err := h.RaffleService.ListByEvent(r.Context(), eventID)
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("RaffleList: %v", err))
		http.Error(w, err.Error(), statusFor(err))
		return
	}

	writeJSON(w, http.StatusOK, records)
}
