package db

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"ms-liveshop/internal/models"

	"github.com/uptrace/bun"
)

type DB struct {
	Bun *bun.DB
}

// ---------------- EVENTS & VARIANTS ----------------

func (d *DB) GetEvent(ctx context.Context, eventID string) (*models.LiveEvent, error) {
	var event models.LiveEvent
	err := d.Bun.NewSelect().
		Model(&event).
		Where("id = ?", eventID).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &event, nil
}

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

// ---------------- CARTS ----------------

func (d *DB) GetCartByID(ctx context.Context, id string) (*models.LiveCart, error) {
	var cart models.LiveCart
	err := d.Bun.NewSelect().
		Model(&cart).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &cart, nil
}

func (d *DB) GetCartByPublicToken(ctx context.Context, token string) (*models.LiveCart, error) {
	var cart models.LiveCart
	err := d.Bun.NewSelect().
		Model(&cart).
		Where("public_token = ?", token).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &cart, nil
}

// GetOpenCartByCustomer finds the customer's non-terminal cart for an event.
func (d *DB) GetOpenCartByCustomer(ctx context.Context, eventID, handle string) (*models.LiveCart, error) {
	var cart models.LiveCart
	err := d.Bun.NewSelect().
		Model(&cart).
		Where("live_event_id = ?", eventID).
		Where("customer_handle = ?", handle).
		Where("status IN (?)", bun.In(models.ExpirableCartStatuses)).
		Order("created_at DESC").
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &cart, nil
}

func (d *DB) CreateCart(ctx context.Context, cart *models.LiveCart) error {
	_, err := d.Bun.NewInsert().Model(cart).Exec(ctx)
	return err
}

func (d *DB) UpdateCart(ctx context.Context, cart *models.LiveCart) error {
	_, err := d.Bun.NewUpdate().
		Model(cart).
		Column("status", "bag_number", "is_raffle_winner", "needs_label_reprint",
			"label_printed_at", "expires_at", "updated_at").
		Where("id = ?", cart.ID).
		Exec(ctx)
	return err
}

// UpdateCartStatus applies a status change guarded by the expected current
// status. Zero rows affected means someone else moved the cart first.
func (d *DB) UpdateCartStatus(ctx context.Context, cartID, from, to string) (bool, error) {
	res, err := d.Bun.NewUpdate().
		Model((*models.LiveCart)(nil)).
		Set("status = ?", to).
		Set("updated_at = ?", time.Now()).
		Where("id = ?", cartID).
		Where("status = ?", from).
		Exec(ctx)
	if err != nil {
		return false, err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows > 0, nil
}

func (d *DB) ListCartsByEvent(ctx context.Context, eventID string) ([]models.LiveCart, error) {
	var carts []models.LiveCart
	err := d.Bun.NewSelect().
		Model(&carts).
		Where("live_event_id = ?", eventID).
		Order("created_at DESC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return carts, nil
}

// ---------------- ITEMS ----------------

func (d *DB) GetItemByID(ctx context.Context, id string) (*models.CartItem, error) {
	var item models.CartItem
	err := d.Bun.NewSelect().
		Model(&item).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (d *DB) UpdateItem(ctx context.Context, item *models.CartItem) error {
	_, err := d.Bun.NewUpdate().
		Model(item).
		Column("quantity", "status", "updated_at").
		Where("id = ?", item.ID).
		Exec(ctx)
	return err
}

// InsertItemGuarded is the single compare-and-write boundary for oversell
// protection: inside one transaction it re-sums the ledger-active
// reservations for the variant and aborts when the post-insert sum would
// exceed the registered stock.
func (d *DB) InsertItemGuarded(ctx context.Context, item *models.CartItem, registeredStock int) error {
	return d.Bun.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		var reserved int
		err := tx.NewSelect().
			ColumnExpr("COALESCE(SUM(quantity), 0)").
			Model((*models.CartItem)(nil)).
			Where("product_id = ?", item.ProductID).
			Where("size = ?", item.Size).
			Where("is_gift = ?", false).
			Where("status IN (?)", bun.In(models.LedgerActiveItemStatuses)).
			Scan(ctx, &reserved)
		if err != nil {
			return err
		}

		if reserved+item.Quantity > registeredStock {
			return models.ErrInsufficientStock
		}

		_, err = tx.NewInsert().Model(item).Exec(ctx)
		return err
	})
}

func (d *DB) ListItemsByCart(ctx context.Context, cartID string) ([]models.CartItem, error) {
	var items []models.CartItem
	err := d.Bun.NewSelect().
		Model(&items).
		Where("cart_id = ?", cartID).
		Order("reserved_at").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return items, nil
}

// ---------------- EXPIRY SWEEP ----------------

func (d *DB) ExpirableCarts(ctx context.Context, now time.Time) ([]models.LiveCart, error) {
	var carts []models.LiveCart
	err := d.Bun.NewSelect().
		Model(&carts).
		Where("status IN (?)", bun.In(models.ExpirableCartStatuses)).
		Where("expires_at < ?", now).
		Order("expires_at").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return carts, nil
}

// ExpireCart re-checks the status in the WHERE clause so a cart that was
// paid between the sweep's read and this write stays pago.
func (d *DB) ExpireCart(ctx context.Context, cartID string) (bool, error) {
	res, err := d.Bun.NewUpdate().
		Model((*models.LiveCart)(nil)).
		Set("status = ?", models.CartExpirado).
		Set("updated_at = ?", time.Now()).
		Where("id = ?", cartID).
		Where("status IN (?)", bun.In(models.ExpirableCartStatuses)).
		Exec(ctx)
	if err != nil {
		return false, err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows > 0, nil
}

func (d *DB) ExpireItems(ctx context.Context, cartID string) (int64, error) {
	res, err := d.Bun.NewUpdate().
		Model((*models.CartItem)(nil)).
		Set("status = ?", models.ItemExpirado).
		Set("updated_at = ?", time.Now()).
		Where("cart_id = ?", cartID).
		Where("status IN (?)", bun.In(models.CountedItemStatuses)).
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ---------------- AUDIT ----------------

func (d *DB) InsertAudit(ctx context.Context, audit *models.CartStatusAudit) error {
	_, err := d.Bun.NewInsert().Model(audit).Exec(ctx)
	return err
}

func (d *DB) ListAuditsByCart(ctx context.Context, cartID string) ([]models.CartStatusAudit, error) {
	var audits []models.CartStatusAudit
	err := d.Bun.NewSelect().
		Model(&audits).
		Where("cart_id = ?", cartID).
		Order("created_at").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return audits, nil
}
