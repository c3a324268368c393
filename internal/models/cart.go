package models

import (
	"time"

	"github.com/uptrace/bun"
)

// LiveCart is one customer's bag for one live event. Carts are never
// deleted; cancelado is the soft-terminal state.
type LiveCart struct {
	bun.BaseModel `bun:"table:live_carts"`

	ID                string    `bun:"id,pk" json:"id"`
	LiveEventID       string    `bun:"live_event_id,notnull" json:"live_event_id"`
	CustomerHandle    string    `bun:"customer_handle,notnull" json:"customer_handle"`
	Status            string    `bun:"status,notnull" json:"status"`
	BagNumber         int       `bun:"bag_number,nullzero" json:"bag_number,omitempty"`
	IsRaffleWinner    bool      `bun:"is_raffle_winner" json:"is_raffle_winner"`
	NeedsLabelReprint bool      `bun:"needs_label_reprint" json:"needs_label_reprint"`
	LabelPrintedAt    time.Time `bun:"label_printed_at,nullzero" json:"label_printed_at,omitempty"`
	PublicToken       string    `bun:"public_token,notnull" json:"public_token"`
	ExpiresAt         time.Time `bun:"expires_at,notnull" json:"expires_at"`
	CreatedAt         time.Time `bun:"created_at,notnull,default:current_timestamp" json:"created_at"`
	UpdatedAt         time.Time `bun:"updated_at,nullzero" json:"updated_at,omitempty"`
}

// LabelPrinted reports whether a bag label has already been produced for
// this cart. Item edits after that point flag the cart for a reprint.
func (c *LiveCart) LabelPrinted() bool {
	return !c.LabelPrintedAt.IsZero()
}

// CartWithItems is the read shape handed to the UI and to collaborators
// (printing, payment links).
type CartWithItems struct {
	Cart  LiveCart   `json:"cart"`
	Items []CartItem `json:"items"`
}
