package sse

import (
	"context"
	"sync"

	"ms-liveshop/internal/models"
)

// StockEventEmitter fans availability changes out to SSE clients watching a
// live event, so product card badges and size buttons update without
// polling.
type StockEventEmitter struct {
	clients     map[string][]chan models.StockUpdate
	clientMutex sync.RWMutex
}

func NewStockEventEmitter() *StockEventEmitter {
	return &StockEventEmitter{
		clients: make(map[string][]chan models.StockUpdate),
	}
}

// Subscribe adds a client for one live event. The channel is closed and
// removed when the context ends.
func (e *StockEventEmitter) Subscribe(ctx context.Context, liveEventID string) chan models.StockUpdate {
	clientChan := make(chan models.StockUpdate, 16)

	e.clientMutex.Lock()
	e.clients[liveEventID] = append(e.clients[liveEventID], clientChan)
	e.clientMutex.Unlock()

	go func() {
		<-ctx.Done()
		e.removeClient(liveEventID, clientChan)
	}()

	return clientChan
}

// EmitStockUpdate broadcasts an availability change to every subscriber of
// the event. Sends are non-blocking; a slow client misses updates rather
// than stalling the engine.
func (e *StockEventEmitter) EmitStockUpdate(update models.StockUpdate) {
	e.clientMutex.RLock()
	clients := e.clients[update.LiveEventID]
	e.clientMutex.RUnlock()

	for _, clientChan := range clients {
		select {
		case clientChan <- update:
		default:
		}
	}
}

func (e *StockEventEmitter) removeClient(liveEventID string, clientChan chan models.StockUpdate) {
	e.clientMutex.Lock()
	defer e.clientMutex.Unlock()

	clients := e.clients[liveEventID]
	for i, ch := range clients {
		if ch == clientChan {
			e.clients[liveEventID] = append(clients[:i], clients[i+1:]...)
			close(clientChan)
			break
		}
	}
	if len(e.clients[liveEventID]) == 0 {
		delete(e.clients, liveEventID)
	}
}
