package models

import (
	"time"

	"github.com/uptrace/bun"
)

// Gift is a prize in the raffle pool. Finite gifts track StockQty;
// unlimited gifts never decrement.
type Gift struct {
	bun.BaseModel `bun:"table:gifts"`

	ID             string    `bun:"id,pk" json:"id"`
	Name           string    `bun:"name,notnull" json:"name"`
	StockQty       int       `bun:"stock_qty,notnull" json:"stock_qty"`
	UnlimitedStock bool      `bun:"unlimited_stock" json:"unlimited_stock"`
	Active         bool      `bun:"active" json:"active"`
	CreatedAt      time.Time `bun:"created_at,notnull,default:current_timestamp" json:"created_at"`
}

// RaffleRecord is one draw. It is persisted as pending the moment the winner
// is selected so a crash between draw and confirm cannot lose the audit
// trail; only the confirm step touches gift stock and the winning cart.
type RaffleRecord struct {
	bun.BaseModel `bun:"table:raffle_records"`

	ID          string    `bun:"id,pk" json:"id"`
	LiveEventID string    `bun:"live_event_id,notnull" json:"live_event_id"`
	GiftID      string    `bun:"gift_id,notnull" json:"gift_id"`
	CartID      string    `bun:"cart_id,notnull" json:"cart_id"`
	Status      string    `bun:"status,notnull" json:"status"`
	DrawnAt     time.Time `bun:"drawn_at,notnull" json:"drawn_at"`
	AppliedAt   time.Time `bun:"applied_at,nullzero" json:"applied_at,omitempty"`
}
