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

// Insert appends an entry with ordem = max existing + 1 for its variant,
// computed inside the same transaction as the insert.
func (d *DB) Insert(ctx context.Context, entry *models.WaitlistEntry) error {
	return d.Bun.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		var maxOrdem int
		err := tx.NewSelect().
			ColumnExpr("COALESCE(MAX(ordem), 0)").
			Model((*models.WaitlistEntry)(nil)).
			Where("live_event_id = ?", entry.LiveEventID).
			Where("product_id = ?", entry.ProductID).
			Where("size = ?", entry.Size).
			Scan(ctx, &maxOrdem)
		if err != nil {
			return err
		}

		entry.Ordem = maxOrdem + 1
		_, err = tx.NewInsert().Model(entry).Exec(ctx)
		return err
	})
}

func (d *DB) GetByID(ctx context.Context, id string) (*models.WaitlistEntry, error) {
	var entry models.WaitlistEntry
	err := d.Bun.NewSelect().
		Model(&entry).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// UpdateStatus flips an entry's status guarded by the expected current one.
func (d *DB) UpdateStatus(ctx context.Context, id, from, to string) (bool, error) {
	res, err := d.Bun.NewUpdate().
		Model((*models.WaitlistEntry)(nil)).
		Set("status = ?", to).
		Where("id = ?", id).
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

// CancelWithNote flips an entry to cancelada and records the reason, guarded
// by the expected current status. The reason is appended so a note the
// customer left at enrollment survives.
func (d *DB) CancelWithNote(ctx context.Context, id, from, note string) (bool, error) {
	res, err := d.Bun.NewUpdate().
		Model((*models.WaitlistEntry)(nil)).
		Set("status = ?", models.WaitlistCancelada).
		Set("note = CASE WHEN note IS NULL OR note = '' THEN ? ELSE note || '; ' || ? END", note, note).
		Where("id = ?", id).
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

// NextEligible returns the surviving head of the queue: lowest ordem still
// ativa.
func (d *DB) NextEligible(ctx context.Context, eventID, productID, size string) (*models.WaitlistEntry, error) {
	var entry models.WaitlistEntry
	err := d.Bun.NewSelect().
		Model(&entry).
		Where("live_event_id = ?", eventID).
		Where("product_id = ?", productID).
		Where("size = ?", size).
		Where("status = ?", models.WaitlistAtiva).
		Order("ordem").
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

func (d *DB) ListByVariant(ctx context.Context, eventID, productID, size string) ([]models.WaitlistEntry, error) {
	var entries []models.WaitlistEntry
	err := d.Bun.NewSelect().
		Model(&entries).
		Where("live_event_id = ?", eventID).
		Where("product_id = ?", productID).
		Where("size = ?", size).
		Order("ordem").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// CancelRemaining bulk-cancels every ativa/chamada entry for a variant.
func (d *DB) CancelRemaining(ctx context.Context, eventID, productID, size string) (int64, error) {
	res, err := d.Bun.NewUpdate().
		Model((*models.WaitlistEntry)(nil)).
		Set("status = ?", models.WaitlistCancelada).
		Where("live_event_id = ?", eventID).
		Where("product_id = ?", productID).
		Where("size = ?", size).
		Where("status IN (?)", bun.In([]string{models.WaitlistAtiva, models.WaitlistChamada})).
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (d *DB) HasActiveEntry(ctx context.Context, eventID, productID, size string) (bool, error) {
	count, err := d.Bun.NewSelect().
		Model((*models.WaitlistEntry)(nil)).
		Where("live_event_id = ?", eventID).
		Where("product_id = ?", productID).
		Where("size = ?", size).
		Where("status = ?", models.WaitlistAtiva).
		Count(ctx)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
