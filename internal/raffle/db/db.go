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

// ---------------- GIFTS ----------------

func (d *DB) GetGift(ctx context.Context, giftID string) (*models.Gift, error) {
	var gift models.Gift
	err := d.Bun.NewSelect().
		Model(&gift).
		Where("id = ?", giftID).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &gift, nil
}

// DecrementGiftStock takes one unit from a finite gift pool. The stock_qty
// guard in the WHERE clause makes concurrent confirms race safely: only one
// of two raffles competing for the last unit gets rows > 0.
func (d *DB) DecrementGiftStock(ctx context.Context, giftID string) (bool, error) {
	res, err := d.Bun.NewUpdate().
		Model((*models.Gift)(nil)).
		Set("stock_qty = stock_qty - 1").
		Where("id = ?", giftID).
		Where("stock_qty > 0").
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

func (d *DB) RestoreGiftStock(ctx context.Context, giftID string) error {
	_, err := d.Bun.NewUpdate().
		Model((*models.Gift)(nil)).
		Set("stock_qty = stock_qty + 1").
		Where("id = ?", giftID).
		Exec(ctx)
	return err
}

// ---------------- CARTS ----------------

// EligibleCarts returns carts holding at least one non-gift line in a
// counted status. paidOnly narrows the pool to settled carts.
func (d *DB) EligibleCarts(ctx context.Context, eventID string, paidOnly bool) ([]models.LiveCart, error) {
	q := d.Bun.NewSelect().
		Model((*models.LiveCart)(nil)).
		Where("live_carts.live_event_id = ?", eventID).
		Where("EXISTS (SELECT 1 FROM live_cart_items i WHERE i.cart_id = live_carts.id AND i.is_gift = ? AND i.status IN (?))",
			false, bun.In(models.CountedItemStatuses))
	if paidOnly {
		q = q.Where("live_carts.status = ?", models.CartPago)
	} else {
		q = q.Where("live_carts.status NOT IN (?)", bun.In([]string{models.CartCancelado, models.CartExpirado}))
	}

	var carts []models.LiveCart
	if err := q.Scan(ctx, &carts); err != nil {
		return nil, err
	}
	return carts, nil
}

func (d *DB) GetCartByID(ctx context.Context, cartID string) (*models.LiveCart, error) {
	var cart models.LiveCart
	err := d.Bun.NewSelect().
		Model(&cart).
		Where("id = ?", cartID).
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

func (d *DB) SetWinnerFlag(ctx context.Context, cartID string, winner, needsReprint bool) error {
	_, err := d.Bun.NewUpdate().
		Model((*models.LiveCart)(nil)).
		Set("is_raffle_winner = ?", winner).
		Set("needs_label_reprint = ?", needsReprint).
		Set("updated_at = ?", time.Now()).
		Where("id = ?", cartID).
		Exec(ctx)
	return err
}

// ---------------- RECORDS ----------------

func (d *DB) InsertRecord(ctx context.Context, record *models.RaffleRecord) error {
	_, err := d.Bun.NewInsert().Model(record).Exec(ctx)
	return err
}

func (d *DB) GetRecord(ctx context.Context, id string) (*models.RaffleRecord, error) {
	var record models.RaffleRecord
	err := d.Bun.NewSelect().
		Model(&record).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &record, nil
}

func (d *DB) UpdateRecordStatus(ctx context.Context, id, from, to string, appliedAt time.Time) (bool, error) {
	q := d.Bun.NewUpdate().
		Model((*models.RaffleRecord)(nil)).
		Set("status = ?", to).
		Where("id = ?", id).
		Where("status = ?", from)
	if !appliedAt.IsZero() {
		q = q.Set("applied_at = ?", appliedAt)
	}
	res, err := q.Exec(ctx)
	if err != nil {
		return false, err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows > 0, nil
}

func (d *DB) UpdateRecordGift(ctx context.Context, id, giftID string) error {
	_, err := d.Bun.NewUpdate().
		Model((*models.RaffleRecord)(nil)).
		Set("gift_id = ?", giftID).
		Where("id = ?", id).
		Exec(ctx)
	return err
}

func (d *DB) ListByEvent(ctx context.Context, eventID string) ([]models.RaffleRecord, error) {
	var records []models.RaffleRecord
	err := d.Bun.NewSelect().
		Model(&records).
		Where("live_event_id = ?", eventID).
		Order("drawn_at DESC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return records, nil
}

// ---------------- GIFT LINES ----------------

func (d *DB) InsertGiftLine(ctx context.Context, item *models.CartItem) error {
	_, err := d.Bun.NewInsert().Model(item).Exec(ctx)
	return err
}

func (d *DB) RemoveGiftLine(ctx context.Context, cartID, giftID string) (int64, error) {
	res, err := d.Bun.NewDelete().
		Model((*models.CartItem)(nil)).
		Where("cart_id = ?", cartID).
		Where("gift_id = ?", giftID).
		Where("is_gift = ?", true).
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
