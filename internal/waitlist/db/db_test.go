package db_test

import (
	"context"
	"database/sql"
	"fmt"
	"testing"

	"ms-liveshop/internal/models"
	"ms-liveshop/internal/waitlist/db"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

func setupTestDB(t *testing.T) *db.DB {
	sqldb, err := sql.Open(sqliteshim.ShimName, "file::memory:?cache=shared")
	if err != nil {
		t.Fatalf("Failed to open SQLite: %v", err)
	}

	bunDB := bun.NewDB(sqldb, sqlitedialect.New())

	if err := bunDB.ResetModel(context.Background(), (*models.WaitlistEntry)(nil)); err != nil {
		t.Fatalf("Failed to create tables: %v", err)
	}

	t.Cleanup(func() { bunDB.Close() })
	return &db.DB{Bun: bunDB}
}

func enroll(t *testing.T, d *db.DB, id, handle string) *models.WaitlistEntry {
	entry := &models.WaitlistEntry{
		ID:              id,
		LiveEventID:     "event-1",
		ProductID:       "vestido-1",
		Size:            "M",
		InstagramHandle: handle,
		Status:          models.WaitlistAtiva,
	}
	require.NoError(t, d.Insert(context.Background(), entry))
	return entry
}

func TestInsertAssignsSequentialOrdem(t *testing.T) {
	d := setupTestDB(t)

	for i := 1; i <= 3; i++ {
		entry := enroll(t, d, fmt.Sprintf("wl-%d", i), fmt.Sprintf("@cliente%d", i))
		assert.Equal(t, i, entry.Ordem)
	}

	// A different variant starts its own sequence.
	other := &models.WaitlistEntry{
		ID:              "wl-other",
		LiveEventID:     "event-1",
		ProductID:       "vestido-1",
		Size:            "G",
		InstagramHandle: "@cliente4",
		Status:          models.WaitlistAtiva,
	}
	require.NoError(t, d.Insert(context.Background(), other))
	assert.Equal(t, 1, other.Ordem)
}

func TestNextEligibleFollowsQueueOrder(t *testing.T) {
	d := setupTestDB(t)
	ctx := context.Background()

	enroll(t, d, "wl-1", "@primeira")
	enroll(t, d, "wl-2", "@segunda")
	enroll(t, d, "wl-3", "@terceira")

	head, err := d.NextEligible(ctx, "event-1", "vestido-1", "M")
	require.NoError(t, err)
	assert.Equal(t, "wl-1", head.ID)

	// Skipping the head promotes the next entry.
	ok, err := d.UpdateStatus(ctx, "wl-1", models.WaitlistAtiva, models.WaitlistCancelada)
	require.NoError(t, err)
	require.True(t, ok)

	head, err = d.NextEligible(ctx, "event-1", "vestido-1", "M")
	require.NoError(t, err)
	assert.Equal(t, "wl-2", head.ID)
}

func TestNextEligibleEmptyQueue(t *testing.T) {
	d := setupTestDB(t)

	_, err := d.NextEligible(context.Background(), "event-1", "vestido-1", "M")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestUpdateStatusGuard(t *testing.T) {
	d := setupTestDB(t)
	ctx := context.Background()

	enroll(t, d, "wl-1", "@cliente")

	ok, err := d.UpdateStatus(ctx, "wl-1", models.WaitlistAtiva, models.WaitlistChamada)
	require.NoError(t, err)
	assert.True(t, ok)

	// Stale expectation loses.
	ok, err = d.UpdateStatus(ctx, "wl-1", models.WaitlistAtiva, models.WaitlistCancelada)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCancelWithNotePersistsReason(t *testing.T) {
	d := setupTestDB(t)
	ctx := context.Background()

	enroll(t, d, "wl-1", "@cliente")

	ok, err := d.CancelWithNote(ctx, "wl-1", models.WaitlistAtiva, "no response")
	require.NoError(t, err)
	assert.True(t, ok)

	stored, err := d.GetByID(ctx, "wl-1")
	require.NoError(t, err)
	assert.Equal(t, models.WaitlistCancelada, stored.Status)
	assert.Equal(t, "no response", stored.Note)
}

func TestCancelWithNoteAppendsToEnrollmentNote(t *testing.T) {
	d := setupTestDB(t)
	ctx := context.Background()

	entry := &models.WaitlistEntry{
		ID:              "wl-1",
		LiveEventID:     "event-1",
		ProductID:       "vestido-1",
		Size:            "M",
		InstagramHandle: "@cliente",
		Note:            "quer 2 unidades",
		Status:          models.WaitlistAtiva,
	}
	require.NoError(t, d.Insert(ctx, entry))

	ok, err := d.CancelWithNote(ctx, "wl-1", models.WaitlistAtiva, "no response")
	require.NoError(t, err)
	assert.True(t, ok)

	stored, err := d.GetByID(ctx, "wl-1")
	require.NoError(t, err)
	assert.Equal(t, "quer 2 unidades; no response", stored.Note)
}

func TestCancelWithNoteGuard(t *testing.T) {
	d := setupTestDB(t)
	ctx := context.Background()

	enroll(t, d, "wl-1", "@cliente")

	ok, err := d.UpdateStatus(ctx, "wl-1", models.WaitlistAtiva, models.WaitlistAtendida)
	require.NoError(t, err)
	require.True(t, ok)

	// Entry already settled; the skip must lose and leave the note alone.
	ok, err = d.CancelWithNote(ctx, "wl-1", models.WaitlistAtiva, "no response")
	require.NoError(t, err)
	assert.False(t, ok)

	stored, err := d.GetByID(ctx, "wl-1")
	require.NoError(t, err)
	assert.Equal(t, models.WaitlistAtendida, stored.Status)
	assert.Empty(t, stored.Note)
}

func TestCancelRemainingSparesSettledEntries(t *testing.T) {
	d := setupTestDB(t)
	ctx := context.Background()

	enroll(t, d, "wl-1", "@primeira")
	enroll(t, d, "wl-2", "@segunda")
	enroll(t, d, "wl-3", "@terceira")

	ok, err := d.UpdateStatus(ctx, "wl-1", models.WaitlistAtiva, models.WaitlistAtendida)
	require.NoError(t, err)
	require.True(t, ok)
	ok, err = d.UpdateStatus(ctx, "wl-2", models.WaitlistAtiva, models.WaitlistChamada)
	require.NoError(t, err)
	require.True(t, ok)

	cancelled, err := d.CancelRemaining(ctx, "event-1", "vestido-1", "M")
	require.NoError(t, err)
	assert.Equal(t, int64(2), cancelled, "chamada and ativa are swept, atendida stays")

	settled, err := d.GetByID(ctx, "wl-1")
	require.NoError(t, err)
	assert.Equal(t, models.WaitlistAtendida, settled.Status)
}

func TestHasActiveEntry(t *testing.T) {
	d := setupTestDB(t)
	ctx := context.Background()

	waiting, err := d.HasActiveEntry(ctx, "event-1", "vestido-1", "M")
	require.NoError(t, err)
	assert.False(t, waiting)

	enroll(t, d, "wl-1", "@cliente")

	waiting, err = d.HasActiveEntry(ctx, "event-1", "vestido-1", "M")
	require.NoError(t, err)
	assert.True(t, waiting)
}
