package waitlist_api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"ms-liveshop/internal/logger"
	"ms-liveshop/internal/models"
	"ms-liveshop/internal/waitlist"

	"github.com/go-chi/chi/v5"
)

type Handler struct {
	WaitlistService *waitlist.Service
	Logger          *logger.Logger
}

func NewHandler(waitlistService *waitlist.Service) *Handler {
	return &Handler{
		WaitlistService: waitlistService,
		Logger:          logger.NewLogger(),
	}
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrNoStockAvailable):
		return http.StatusConflict
	case errors.Is(err, models.ErrInvalidTransition):
		return http.StatusUnprocessableEntity
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

// Enroll is the customer-facing "avise-me" endpoint: joins the FIFO queue
// for an out-of-stock variant.
func (h *Handler) Enroll(w http.ResponseWriter, r *http.Request) {
	var in waitlist.EnrollInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	h.Logger.Info("API", fmt.Sprintf("WaitlistEnroll: @%s %s/%s", in.InstagramHandle, in.ProductID, in.Size))

	entry, err := h.WaitlistService.Enroll(r.Context(), in)
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("WaitlistEnroll: %v", err))
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	writeJSON(w, http.StatusCreated, entry)
}

func (h *Handler) NextEligible(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "eventID")
	productID := chi.URLParam(r, "productID")
	size := chi.URLParam(r, "size")

	entry, err := h.WaitlistService.NextEligible(r.Context(), eventID, productID, size)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			http.Error(w, "Queue is empty", http.StatusNotFound)
			return
		}
		h.Logger.Error("API", fmt.Sprintf("NextEligible: %v", err))
		http.Error(w, err.Error(), statusFor(err))
		return
	}

	writeJSON(w, http.StatusOK, entry)
}

func (h *Handler) Call(w http.ResponseWriter, r *http.Request) {
	entryID := chi.URLParam(r, "entryID")
	h.Logger.Info("API", fmt.Sprintf("WaitlistCall: entryID=%s", entryID))

	entry, err := h.WaitlistService.Call(r.Context(), entryID)
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("WaitlistCall: %v", err))
		http.Error(w, err.Error(), statusFor(err))
		return
	}

	writeJSON(w, http.StatusOK, entry)
}

// Offer converts a queue entry into a reservation. A 409 means a concurrent
// quick-add consumed the unit first; the entry stays queued.
func (h *Handler) Offer(w http.ResponseWriter, r *http.Request) {
	entryID := chi.URLParam(r, "entryID")
	h.Logger.Info("API", fmt.Sprintf("WaitlistOffer: entryID=%s", entryID))

	item, err := h.WaitlistService.Offer(r.Context(), entryID)
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("WaitlistOffer: %v", err))
		http.Error(w, err.Error(), statusFor(err))
		return
	}

	writeJSON(w, http.StatusCreated, item)
}

func (h *Handler) Skip(w http.ResponseWriter, r *http.Request) {
	entryID := chi.URLParam(r, "entryID")
	h.Logger.Info("API", fmt.Sprintf("WaitlistSkip: entryID=%s", entryID))

	entry, err := h.WaitlistService.Skip(r.Context(), entryID)
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("WaitlistSkip: %v", err))
		http.Error(w, err.Error(), statusFor(err))
		return
	}

	writeJSON(w, http.StatusOK, entry)
}

func (h *Handler) EndQueue(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "eventID")
	productID := chi.URLParam(r, "productID")
	size := chi.URLParam(r, "size")
	h.Logger.Info("API", fmt.Sprintf("WaitlistEndQueue: %s/%s", productID, size))

	cancelled, err := h.WaitlistService.EndQueue(r.Context(), eventID, productID, size)
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("WaitlistEndQueue: %v", err))
		http.Error(w, err.Error(), statusFor(err))
		return
	}

	writeJSON(w, http.StatusOK, map[string]int64{"cancelled": cancelled})
}

func (h *Handler) ListByVariant(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "eventID")
	productID := chi.URLParam(r, "productID")
	size := chi.URLParam(r, "size")

	entries, err := h.WaitlistService.ListByVariant(r.Context(), eventID, productID, size)
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("WaitlistList: %v", err))
		http.Error(w, err.Error(), statusFor(err))
		return
	}

	writeJSON(w, http.StatusOK, entries)
}
