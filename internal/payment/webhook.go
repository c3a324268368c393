package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"ms-liveshop/internal/logger"
	"ms-liveshop/internal/models"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"
)

// CartSettler is the slice of the cart state machine the webhook needs.
type CartSettler interface {
	SetCartStatus(ctx context.Context, cartID, newStatus, actor, note string) (*models.LiveCart, error)
}

// WebhookError carries a safe public message alongside the detailed one.
type WebhookError struct {
	Category      string
	StatusCode    int
	PublicError   string
	InternalError string
	OriginalErr   error
}

func (e *WebhookError) Error() string {
	return e.InternalError
}

// Webhook translates Stripe settlement events into cart status changes. The
// engine never talks to Stripe itself; payment-link generation lives in an
// external collaborator that stamps live_cart_id into the session metadata.
type Webhook struct {
	Carts         CartSettler
	WebhookSecret string
	Logger        *logger.Logger
}

func NewWebhook(carts CartSettler, secret string, log *logger.Logger) *Webhook {
	return &Webhook{Carts: carts, WebhookSecret: secret, Logger: log}
}

func (h *Webhook) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if err := h.process(r); err != nil {
		if webhookErr, ok := err.(*WebhookError); ok {
			h.Logger.Error("WEBHOOK", webhookErr.InternalError)
			http.Error(w, webhookErr.PublicError, webhookErr.StatusCode)
			return
		}
		h.Logger.Error("WEBHOOK", fmt.Sprintf("webhook processing failed: %v", err))
		http.Error(w, "Webhook processing error", http.StatusBadRequest)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (h *Webhook) process(r *http.Request) error {
	if h.WebhookSecret == "" {
		return &WebhookError{
			Category:      "configuration",
			StatusCode:    http.StatusInternalServerError,
			PublicError:   "Webhook processing error",
			InternalError: "Stripe webhook secret is not configured",
		}
	}

	payload, err := io.ReadAll(r.Body)
	if err != nil {
		return &WebhookError{
			Category:      "validation",
			StatusCode:    http.StatusBadRequest,
			PublicError:   "Invalid webhook payload",
			InternalError: fmt.Sprintf("failed to read webhook payload: %v", err),
			OriginalErr:   err,
		}
	}

	opts := webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	}
	event, err := webhook.ConstructEventWithOptions(payload, r.Header.Get("Stripe-Signature"), h.WebhookSecret, opts)
	if err != nil {
		return &WebhookError{
			Category:      "validation",
			StatusCode:    http.StatusBadRequest,
			PublicError:   "Invalid webhook signature",
			InternalError: fmt.Sprintf("webhook signature verification failed: %v", err),
			OriginalErr:   err,
		}
	}

	h.Logger.Info("WEBHOOK", fmt.Sprintf("processing Stripe event: %s", event.Type))

	switch event.Type {
	case "checkout.session.completed":
		var session stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
			return &WebhookError{
				Category:      "processing",
				StatusCode:    http.StatusBadRequest,
				PublicError:   "Invalid event data",
				InternalError: fmt.Sprintf("failed to unmarshal checkout session: %v", err),
				OriginalErr:   err,
			}
		}

		cartID, exists := session.Metadata["live_cart_id"]
		if !exists {
			return &WebhookError{
				Category:      "processing",
				StatusCode:    http.StatusBadRequest,
				PublicError:   "Invalid checkout session data",
				InternalError: "checkout session has no live_cart_id in metadata",
			}
		}

		if _, err := h.Carts.SetCartStatus(r.Context(), cartID, models.CartPago, "stripe-webhook", "checkout.session.completed"); err != nil {
			return &WebhookError{
				Category:      "processing",
				StatusCode:    http.StatusInternalServerError,
				PublicError:   "Failed to settle cart",
				InternalError: fmt.Sprintf("failed to settle cart %s: %v", cartID, err),
				OriginalErr:   err,
			}
		}
		h.Logger.Info("WEBHOOK", fmt.Sprintf("cart %s settled", cartID))

	default:
		// Other event types are acknowledged and ignored.
		h.Logger.Debug("WEBHOOK", fmt.Sprintf("ignoring event type %s", event.Type))
	}

	return nil
}
