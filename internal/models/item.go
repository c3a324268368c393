package models

import (
	"time"

	"github.com/uptrace/bun"
)

// CartItem is a reservation: a quantity of one variant held by one cart.
// The sum of quantities across ledger-active items for a variant never
// exceeds the variant's registered stock; the guarded insert in the cart db
// layer enforces that at the storage boundary.
//
// Gift lines (IsGift) come from the raffle allocator. They reference the
// gift pool instead of a product variant and are invisible to the stock
// ledger and the KPI aggregator.
type CartItem struct {
	bun.BaseModel `bun:"table:live_cart_items"`

	ID          string    `bun:"id,pk" json:"id"`
	CartID      string    `bun:"cart_id,notnull" json:"cart_id"`
	LiveEventID string    `bun:"live_event_id,notnull" json:"live_event_id"`
	ProductID   string    `bun:"product_id,nullzero" json:"product_id,omitempty"`
	Size        string    `bun:"size,nullzero" json:"size,omitempty"`
	Color       string    `bun:"color,nullzero" json:"color,omitempty"`
	Quantity    int       `bun:"quantity,notnull" json:"quantity"`
	UnitPrice   float64   `bun:"unit_price,notnull" json:"unit_price"`
	Status      string    `bun:"status,notnull" json:"status"`
	IsGift      bool      `bun:"is_gift" json:"is_gift"`
	GiftID      string    `bun:"gift_id,nullzero" json:"gift_id,omitempty"`
	GiftName    string    `bun:"gift_name,nullzero" json:"gift_name,omitempty"`
	ReservedAt  time.Time `bun:"reserved_at,notnull" json:"reserved_at"`
	UpdatedAt   time.Time `bun:"updated_at,nullzero" json:"updated_at,omitempty"`
}

// QuickLaunch is the backstage quick-add request shape.
type QuickLaunch struct {
	LiveEventID    string `json:"live_event_id"`
	CustomerHandle string `json:"customer_handle"`
	ProductID      string `json:"product_id"`
	Size           string `json:"size"`
	Color          string `json:"color,omitempty"`
	Quantity       int    `json:"quantity"`
}
