package cart_api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"ms-liveshop/internal/logger"
	"ms-liveshop/internal/sse"

	"github.com/go-chi/chi/v5"
)

// SSEHandler streams availability changes to the live storefront so badges
// and size buttons re-render without polling.
type SSEHandler struct {
	Logger  *logger.Logger
	Emitter *sse.StockEventEmitter
}

func NewSSEHandler(log *logger.Logger, emitter *sse.StockEventEmitter) *SSEHandler {
	return &SSEHandler{Logger: log, Emitter: emitter}
}

// HandleStockStream streams stock updates for one live event.
func (h *SSEHandler) HandleStockStream(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "eventID")
	if eventID == "" {
		http.Error(w, "Event ID is required", http.StatusBadRequest)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")

	ctx := r.Context()
	updates := h.Emitter.Subscribe(ctx, eventID)

	fmt.Fprintf(w, "event: connected\ndata: {\"status\":\"connected\",\"live_event_id\":\"%s\"}\n\n", eventID)
	flusher.Flush()

	h.Logger.Info("SSE", fmt.Sprintf("client connected to stock stream for event %s", eventID))

	for {
		select {
		case <-ctx.Done():
			h.Logger.Info("SSE", fmt.Sprintf("client disconnected from stock stream for event %s", eventID))
			return
		case update, open := <-updates:
			if !open {
				return
			}
			payload, err := json.Marshal(update)
			if err != nil {
				h.Logger.Error("SSE", fmt.Sprintf("marshal stock update: %v", err))
				continue
			}
			fmt.Fprintf(w, "event: stock\ndata: %s\n\n", payload)
			flusher.Flush()
		}
	}
}
