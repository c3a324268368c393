package models

import (
	"time"

	"github.com/uptrace/bun"
)

// LiveEvent is one time-boxed selling session. It scopes products, carts,
// waitlists and raffles.
type LiveEvent struct {
	bun.BaseModel `bun:"table:live_events"`

	ID                       string    `bun:"id,pk" json:"id"`
	Titulo                   string    `bun:"titulo,notnull" json:"titulo"`
	Status                   string    `bun:"status,notnull" json:"status"`
	StartsAt                 time.Time `bun:"starts_at,notnull" json:"starts_at"`
	EndsAt                   time.Time `bun:"ends_at,nullzero" json:"ends_at,omitempty"`
	ReservationExpiryMinutes int       `bun:"reservation_expiry_minutes,notnull" json:"reservation_expiry_minutes"`
	CreatedAt                time.Time `bun:"created_at,notnull,default:current_timestamp" json:"created_at"`
}
