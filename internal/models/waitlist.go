package models

import (
	"time"

	"github.com/uptrace/bun"
)

// WaitlistEntry is one customer waiting for an out-of-stock variant.
// Ordem is strictly increasing per (event, product, size) and defines the
// FIFO order; skipping an entry never reorders the remainder.
type WaitlistEntry struct {
	bun.BaseModel `bun:"table:waitlist_entries"`

	ID              string    `bun:"id,pk" json:"id"`
	LiveEventID     string    `bun:"live_event_id,notnull" json:"live_event_id"`
	ProductID       string    `bun:"product_id,notnull" json:"product_id"`
	Size            string    `bun:"size,notnull" json:"size"`
	InstagramHandle string    `bun:"instagram_handle,notnull" json:"instagram_handle"`
	Whatsapp        string    `bun:"whatsapp,nullzero" json:"whatsapp,omitempty"`
	Name            string    `bun:"name,nullzero" json:"name,omitempty"`
	Note            string    `bun:"note,nullzero" json:"note,omitempty"`
	Ordem           int       `bun:"ordem,notnull" json:"ordem"`
	Status          string    `bun:"status,notnull" json:"status"`
	CreatedAt       time.Time `bun:"created_at,notnull,default:current_timestamp" json:"created_at"`
}
