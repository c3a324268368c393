package db

import (
	"context"
	"database/sql"
	"errors"

	"ms-liveshop/internal/models"

	"github.com/uptrace/bun"
)

type DB struct {
	Bun *bun.DB
}

// GetVariant fetches one registered variant of a live event.
func (d *DB) GetVariant(ctx context.Context, eventID, productID, size string) (*models.LiveProduct, error) {
	var variant models.LiveProduct
	err := d.Bun.NewSelect().
		Model(&variant).
		Where("live_event_id = ?", eventID).
		Where("product_id = ?", productID).
		Where("size = ?", size).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &variant, nil
}

// VariantsForProduct fetches every size of a product registered in an event.
func (d *DB) VariantsForProduct(ctx context.Context, eventID, productID string) ([]models.LiveProduct, error) {
	var variants []models.LiveProduct
	err := d.Bun.NewSelect().
		Model(&variants).
		Where("live_event_id = ?", eventID).
		Where("product_id = ?", productID).
		Order("size").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return variants, nil
}

// ReservedQuantity sums ledger-active reservations for a variant across all
// carts, whichever event they belong to.
func (d *DB) ReservedQuantity(ctx context.Context, productID, size string) (int, error) {
	var total int
	err := d.Bun.NewSelect().
		ColumnExpr("COALESCE(SUM(quantity), 0)").
		Model((*models.CartItem)(nil)).
		Where("product_id = ?", productID).
		Where("size = ?", size).
		Where("is_gift = ?", false).
		Where("status IN (?)", bun.In(models.LedgerActiveItemStatuses)).
		Scan(ctx, &total)
	return total, err
}

// ReservedByProduct sums ledger-active reservations per size for a product.
func (d *DB) ReservedByProduct(ctx context.Context, productID string) (map[string]int, error) {
	var rows []struct {
		Size     string `bun:"size"`
		Reserved int    `bun:"reserved"`
	}
	err := d.Bun.NewSelect().
		ColumnExpr("size").
		ColumnExpr("COALESCE(SUM(quantity), 0) AS reserved").
		Model((*models.CartItem)(nil)).
		Where("product_id = ?", productID).
		Where("is_gift = ?", false).
		Where("status IN (?)", bun.In(models.LedgerActiveItemStatuses)).
		GroupExpr("size").
		Scan(ctx, &rows)
	if err != nil {
		return nil, err
	}

	out := make(map[string]int, len(rows))
	for _, row := range rows {
		out[row.Size] = row.Reserved
	}
	return out, nil
}
