package models

import (
	"time"

	"github.com/uptrace/bun"
)

// LiveProduct is a product variant (product x size) registered into one live
// event. RegisteredStock is snapshotted when the product is added to the
// event and is immutable afterwards.
type LiveProduct struct {
	bun.BaseModel `bun:"table:live_products"`

	ID              string    `bun:"id,pk" json:"id"`
	LiveEventID     string    `bun:"live_event_id,notnull" json:"live_event_id"`
	ProductID       string    `bun:"product_id,notnull" json:"product_id"`
	Size            string    `bun:"size,notnull" json:"size"`
	Color           string    `bun:"color,nullzero" json:"color,omitempty"`
	Price           float64   `bun:"price,notnull" json:"price"`
	RegisteredStock int       `bun:"registered_stock,notnull" json:"registered_stock"`
	DiscountType    string    `bun:"discount_type,notnull,default:'none'" json:"discount_type"`
	DiscountValue   float64   `bun:"discount_value,nullzero" json:"discount_value,omitempty"`
	CreatedAt       time.Time `bun:"created_at,notnull,default:current_timestamp" json:"created_at"`
}

// EffectiveUnitPrice applies the live discount to the base price. Items
// snapshot this value at reservation time; later discount edits do not touch
// existing reservations.
func (p *LiveProduct) EffectiveUnitPrice() float64 {
	switch p.DiscountType {
	case DiscountPercentage:
		price := p.Price * (1 - p.DiscountValue/100)
		if price < 0 {
			return 0
		}
		return price
	case DiscountFixed:
		price := p.Price - p.DiscountValue
		if price < 0 {
			return 0
		}
		return price
	default:
		return p.Price
	}
}
