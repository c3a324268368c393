package cart_api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"ms-liveshop/internal/auth"
	"ms-liveshop/internal/cart"
	"ms-liveshop/internal/labels"
	"ms-liveshop/internal/ledger"
	"ms-liveshop/internal/logger"
	"ms-liveshop/internal/models"

	"github.com/go-chi/chi/v5"
)

type Handler struct {
	CartService   *cart.Service
	LedgerService *ledger.Service
	QR            *labels.QRGenerator
	Logger        *logger.Logger
}

func NewHandler(cartService *cart.Service, ledgerService *ledger.Service, qr *labels.QRGenerator) *Handler {
	return &Handler{
		CartService:   cartService,
		LedgerService: ledgerService,
		QR:            qr,
		Logger:        logger.NewLogger(),
	}
}

// statusFor maps the engine's error taxonomy onto HTTP statuses. Anything
// outside the taxonomy is a 500.
func statusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrInsufficientStock),
		errors.Is(err, models.ErrNoStockAvailable),
		errors.Is(err, models.ErrGiftOutOfStock):
		return http.StatusConflict
	case errors.Is(err, models.ErrNoEligibleCarts),
		errors.Is(err, models.ErrInvalidTransition):
		return http.StatusUnprocessableEntity
	case errors.Is(err, models.ErrLockedForEdit):
		return http.StatusLocked
	case errors.Is(err, models.ErrVariantLocked):
		return http.StatusConflict
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

func (h *Handler) QuickAdd(w http.ResponseWriter, r *http.Request) {
	var req models.QuickLaunch
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Logger.Error("API", fmt.Sprintf("QuickAdd: failed to decode request body: %v", err))
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	h.Logger.Info("API", fmt.Sprintf("QuickAdd: @%s %s/%s x%d", req.CustomerHandle, req.ProductID, req.Size, req.Quantity))

	item, err := h.CartService.QuickAdd(r.Context(), req)
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("QuickAdd: %v", err))
		http.Error(w, err.Error(), statusFor(err))
		return
	}

	writeJSON(w, http.StatusCreated, item)
}

func (h *Handler) ReduceItem(w http.ResponseWriter, r *http.Request) {
	itemID := chi.URLParam(r, "itemID")
	h.Logger.Info("API", fmt.Sprintf("ReduceItem: itemID=%s", itemID))

	waitlisted, err := h.CartService.ReduceQuantity(r.Context(), itemID, actorFrom(r))
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("ReduceItem: %v", err))
		http.Error(w, err.Error(), statusFor(err))
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"waitlist_waiting": waitlisted})
}

func (h *Handler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	itemID := chi.URLParam(r, "itemID")
	h.Logger.Info("API", fmt.Sprintf("RemoveItem: itemID=%s", itemID))

	waitlisted, err := h.CartService.RemoveItem(r.Context(), itemID, actorFrom(r))
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("RemoveItem: %v", err))
		http.Error(w, err.Error(), statusFor(err))
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"waitlist_waiting": waitlisted})
}

// SeparateItem pulls an item for physical handling. Stock is intentionally
// not released; the unit is already in the bag.
func (h *Handler) SeparateItem(w http.ResponseWriter, r *http.Request) {
	itemID := chi.URLParam(r, "itemID")
	h.Logger.Info("API", fmt.Sprintf("SeparateItem: itemID=%s", itemID))

	if err := h.CartService.CancelItemForSeparation(r.Context(), itemID, actorFrom(r)); err != nil {
		h.Logger.Error("API", fmt.Sprintf("SeparateItem: %v", err))
		http.Error(w, err.Error(), statusFor(err))
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) SetCartStatus(w http.ResponseWriter, r *http.Request) {
	cartID := chi.URLParam(r, "cartID")

	var body struct {
		Status string `json:"status"`
		Note   string `json:"note,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	h.Logger.Info("API", fmt.Sprintf("SetCartStatus: cartID=%s -> %s", cartID, body.Status))

	updated, err := h.CartService.SetCartStatus(r.Context(), cartID, body.Status, actorFrom(r), body.Note)
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("SetCartStatus: %v", err))
		http.Error(w, err.Error(), statusFor(err))
		return
	}

	writeJSON(w, http.StatusOK, updated)
}

func (h *Handler) GetCart(w http.ResponseWriter, r *http.Request) {
	cartID := chi.URLParam(r, "cartID")

	cartData, err := h.CartService.GetCart(r.Context(), cartID)
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("GetCart: %v", err))
		http.Error(w, "Cart not found", statusFor(err))
		return
	}

	writeJSON(w, http.StatusOK, cartData)
}

// GetCartByToken serves the customer-facing checkout view; it is the only
// unauthenticated cart read.
func (h *Handler) GetCartByToken(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")

	cartData, err := h.CartService.GetCartByPublicToken(r.Context(), token)
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("GetCartByToken: %v", err))
		http.Error(w, "Cart not found", statusFor(err))
		return
	}

	writeJSON(w, http.StatusOK, cartData)
}

func (h *Handler) ListCarts(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "eventID")

	carts, err := h.CartService.ListCarts(r.Context(), eventID)
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("ListCarts: %v", err))
		http.Error(w, err.Error(), statusFor(err))
		return
	}

	writeJSON(w, http.StatusOK, carts)
}

func (h *Handler) StatusHistory(w http.ResponseWriter, r *http.Request) {
	cartID := chi.URLParam(r, "cartID")

	audits, err := h.CartService.StatusHistory(r.Context(), cartID)
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("StatusHistory: %v", err))
		http.Error(w, err.Error(), statusFor(err))
		return
	}

	writeJSON(w, http.StatusOK, audits)
}

func (h *Handler) AssignBagLabel(w http.ResponseWriter, r *http.Request) {
	cartID := chi.URLParam(r, "cartID")

	var body struct {
		BagNumber int `json:"bag_number"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if body.BagNumber <= 0 {
		http.Error(w, "bag_number must be positive", http.StatusBadRequest)
		return
	}
	h.Logger.Info("API", fmt.Sprintf("AssignBagLabel: cartID=%s bag=%d", cartID, body.BagNumber))

	updated, err := h.CartService.AssignBagLabel(r.Context(), cartID, body.BagNumber)
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("AssignBagLabel: %v", err))
		http.Error(w, err.Error(), statusFor(err))
		return
	}

	writeJSON(w, http.StatusOK, updated)
}

// LabelQR serves the checkout-link QR as a PNG for the bag-label printer.
func (h *Handler) LabelQR(w http.ResponseWriter, r *http.Request) {
	cartID := chi.URLParam(r, "cartID")

	cartData, err := h.CartService.GetCart(r.Context(), cartID)
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("LabelQR: %v", err))
		http.Error(w, "Cart not found", statusFor(err))
		return
	}

	png, err := h.QR.GenerateLabelQR(&cartData.Cart)
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("LabelQR: %v", err))
		http.Error(w, "Failed to generate QR", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Write(png)
}

// RunExpirySweep triggers the stale-cart sweep on demand. The same code path
// runs on a ticker in main; this endpoint exists for operators and tests.
func (h *Handler) RunExpirySweep(w http.ResponseWriter, r *http.Request) {
	expired, err := h.CartService.ExpireStaleCarts(r.Context())
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("RunExpirySweep: %v", err))
		http.Error(w, err.Error(), statusFor(err))
		return
	}

	writeJSON(w, http.StatusOK, map[string]int{"expired_carts": expired})
}

func (h *Handler) VariantAvailability(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "eventID")
	productID := chi.URLParam(r, "productID")
	size := chi.URLParam(r, "size")

	available, err := h.LedgerService.Available(r.Context(), eventID, productID, size)
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("VariantAvailability: %v", err))
		http.Error(w, err.Error(), statusFor(err))
		return
	}

	writeJSON(w, http.StatusOK, models.StockUpdate{
		LiveEventID: eventID,
		ProductID:   productID,
		Size:        size,
		Available:   available,
	})
}

// ProductAvailability returns availability per size, for the size-button row
// on a product card.
func (h *Handler) ProductAvailability(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "eventID")
	productID := chi.URLParam(r, "productID")

	bySize, err := h.LedgerService.AvailableBySize(r.Context(), eventID, productID)
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("ProductAvailability: %v", err))
		http.Error(w, err.Error(), statusFor(err))
		return
	}

	writeJSON(w, http.StatusOK, bySize)
}

// actorFrom pulls the acting operator out of the request, falling back to
// the X-Actor header for unauthenticated internal calls.
func actorFrom(r *http.Request) string {
	if userID := auth.UserID(r.Context()); userID != "" {
		return userID
	}
	if actor := r.Header.Get("X-Actor"); actor != "" {
		return actor
	}
	return "backstage"
}
