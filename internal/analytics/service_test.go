package analytics_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"ms-liveshop/internal/analytics"
	"ms-liveshop/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

func setupTestDB(t *testing.T) *bun.DB {
	sqldb, err := sql.Open(sqliteshim.ShimName, "file::memory:?cache=shared")
	if err != nil {
		t.Fatalf("Failed to open SQLite: %v", err)
	}

	bunDB := bun.NewDB(sqldb, sqlitedialect.New())

	ctx := context.Background()
	for _, model := range []interface{}{
		(*models.LiveCart)(nil),
		(*models.CartItem)(nil),
	} {
		if err := bunDB.ResetModel(ctx, model); err != nil {
			t.Fatalf("Failed to create tables: %v", err)
		}
	}

	t.Cleanup(func() { bunDB.Close() })
	return bunDB
}

func insertCart(t *testing.T, db *bun.DB, id, handle, status string) {
	cart := &models.LiveCart{
		ID:             id,
		LiveEventID:    "event-1",
		CustomerHandle: handle,
		Status:         status,
		PublicToken:    "token-" + id,
		ExpiresAt:      time.Now().Add(time.Hour),
		CreatedAt:      time.Now(),
	}
	_, err := db.NewInsert().Model(cart).Exec(context.Background())
	require.NoError(t, err)
}

func insertItem(t *testing.T, db *bun.DB, id, cartID, productID string, qty int, price float64, status string, isGift bool) {
	item := &models.CartItem{
		ID:          id,
		CartID:      cartID,
		LiveEventID: "event-1",
		ProductID:   productID,
		Size:        "M",
		Quantity:    qty,
		UnitPrice:   price,
		Status:      status,
		IsGift:      isGift,
		ReservedAt:  time.Now(),
	}
	_, err := db.NewInsert().Model(item).Exec(context.Background())
	require.NoError(t, err)
}

func TestGetEventKPIsCountsOnlyLiveLines(t *testing.T) {
	db := setupTestDB(t)
	s := analytics.NewService(db)
	ctx := context.Background()

	insertCart(t, db, "cart-1", "@maria", models.CartPago)
	insertCart(t, db, "cart-2", "@joana", models.CartAberto)
	insertCart(t, db, "cart-3", "@rita", models.CartCancelado)

	insertItem(t, db, "i1", "cart-1", "vestido-1", 2, 90, models.ItemConfirmado, false)
	insertItem(t, db, "i2", "cart-2", "saia-1", 1, 50, models.ItemReservado, false)
	// None of these should move a KPI number.
	insertItem(t, db, "i3", "cart-1", "", 1, 0, models.ItemConfirmado, true)
	insertItem(t, db, "i4", "cart-2", "vestido-1", 3, 90, models.ItemRemovido, false)
	insertItem(t, db, "i5", "cart-3", "vestido-1", 1, 90, models.ItemCancelado, false)
	insertItem(t, db, "i6", "cart-3", "vestido-1", 1, 90, models.ItemExpirado, false)

	kpis, err := s.GetEventKPIs(ctx, "event-1")
	require.NoError(t, err)

	assert.Equal(t, 3, kpis.ItemsReserved)
	assert.InDelta(t, 230.0, kpis.Revenue, 0.001)
	assert.Equal(t, 2, kpis.DistinctCustomers)
	assert.Equal(t, map[string]int{
		models.CartPago:      1,
		models.CartAberto:    1,
		models.CartCancelado: 1,
	}, kpis.CartsByStatus)
	assert.InDelta(t, 100.0/3.0, kpis.PercentPaid, 0.001)
}

func TestGetEventKPIsEmptyEvent(t *testing.T) {
	db := setupTestDB(t)
	s := analytics.NewService(db)

	kpis, err := s.GetEventKPIs(context.Background(), "event-none")
	require.NoError(t, err)

	assert.Equal(t, 0, kpis.ItemsReserved)
	assert.Equal(t, 0.0, kpis.Revenue)
	assert.Equal(t, 0, kpis.DistinctCustomers)
	assert.Equal(t, 0.0, kpis.PercentPaid)
	assert.Empty(t, kpis.CartsByStatus)
}

func TestTopVariantsOrdersByQuantity(t *testing.T) {
	db := setupTestDB(t)
	s := analytics.NewService(db)
	ctx := context.Background()

	insertCart(t, db, "cart-1", "@maria", models.CartAberto)

	insertItem(t, db, "i1", "cart-1", "vestido-1", 3, 90, models.ItemReservado, false)
	insertItem(t, db, "i2", "cart-1", "saia-1", 5, 50, models.ItemConfirmado, false)
	insertItem(t, db, "i3", "cart-1", "blusa-1", 1, 30, models.ItemReservado, false)
	insertItem(t, db, "i4", "cart-1", "casaco-1", 9, 200, models.ItemRemovido, false)

	rows, err := s.TopVariants(ctx, "event-1", 2)
	require.NoError(t, err)

	require.Len(t, rows, 2)
	assert.Equal(t, "saia-1", rows[0].ProductID)
	assert.Equal(t, 5, rows[0].Quantity)
	assert.InDelta(t, 250.0, rows[0].Revenue, 0.001)
	assert.Equal(t, "vestido-1", rows[1].ProductID)
}
