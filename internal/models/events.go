package models

import "time"

// StockUpdate is broadcast over SSE whenever a variant's availability
// changes, so product card badges and size buttons can re-render without
// polling.
type StockUpdate struct {
	LiveEventID string    `json:"live_event_id"`
	ProductID   string    `json:"product_id"`
	Size        string    `json:"size"`
	Available   int       `json:"available"`
	At          time.Time `json:"at"`
}

// ItemEvent is the Kafka payload for item reserved/released/expired events.
type ItemEvent struct {
	ItemID      string    `json:"item_id"`
	CartID      string    `json:"cart_id"`
	LiveEventID string    `json:"live_event_id"`
	ProductID   string    `json:"product_id"`
	Size        string    `json:"size"`
	Quantity    int       `json:"quantity"`
	Status      string    `json:"status"`
	At          time.Time `json:"at"`
}

// CartStatusEvent is the Kafka payload for cart status changes.
type CartStatusEvent struct {
	CartID      string    `json:"cart_id"`
	LiveEventID string    `json:"live_event_id"`
	OldStatus   string    `json:"old_status"`
	NewStatus   string    `json:"new_status"`
	Actor       string    `json:"actor"`
	At          time.Time `json:"at"`
}

// WaitlistEvent is the Kafka payload for waitlist offers.
type WaitlistEvent struct {
	EntryID     string    `json:"entry_id"`
	LiveEventID string    `json:"live_event_id"`
	ProductID   string    `json:"product_id"`
	Size        string    `json:"size"`
	Handle      string    `json:"instagram_handle"`
	Ordem       int       `json:"ordem"`
	At          time.Time `json:"at"`
}

// RaffleEvent is the Kafka payload for applied raffles.
type RaffleEvent struct {
	RaffleID    string    `json:"raffle_id"`
	LiveEventID string    `json:"live_event_id"`
	GiftID      string    `json:"gift_id"`
	CartID      string    `json:"cart_id"`
	Status      string    `json:"status"`
	At          time.Time `json:"at"`
}
