package models

import (
	"time"

	"github.com/uptrace/bun"
)

// CartStatusAudit records one cart status change. The audit trail is the
// operators' only way to reconstruct what happened to a cart, so every
// status change writes a row, including the expiry sweep.
type CartStatusAudit struct {
	bun.BaseModel `bun:"table:cart_status_audits"`

	ID        string    `bun:"id,pk" json:"id"`
	CartID    string    `bun:"cart_id,notnull" json:"cart_id"`
	OldStatus string    `bun:"old_status,notnull" json:"old_status"`
	NewStatus string    `bun:"new_status,notnull" json:"new_status"`
	Actor     string    `bun:"actor,notnull" json:"actor"`
	Note      string    `bun:"note,nullzero" json:"note,omitempty"`
	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp" json:"created_at"`
}
