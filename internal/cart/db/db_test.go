package db_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"ms-liveshop/internal/cart/db"
	"ms-liveshop/internal/models"

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

	ctx := context.Background()
	for _, model := range []interface{}{
		(*models.LiveEvent)(nil),
		(*models.LiveProduct)(nil),
		(*models.LiveCart)(nil),
		(*models.CartItem)(nil),
		(*models.CartStatusAudit)(nil),
	} {
		if err := bunDB.ResetModel(ctx, model); err != nil {
			t.Fatalf("Failed to create tables: %v", err)
		}
	}

	t.Cleanup(func() { bunDB.Close() })
	return &db.DB{Bun: bunDB}
}

func seedCart(t *testing.T, d *db.DB, id, status string) *models.LiveCart {
	cart := &models.LiveCart{
		ID:             id,
		LiveEventID:    "event-1",
		CustomerHandle: "@maria",
		Status:         status,
		PublicToken:    "token-" + id,
		ExpiresAt:      time.Now().Add(30 * time.Minute),
		CreatedAt:      time.Now(),
	}
	require.NoError(t, d.CreateCart(context.Background(), cart))
	return cart
}

func reservation(id, cartID string, qty int, status string) *models.CartItem {
	return &models.CartItem{
		ID:          id,
		CartID:      cartID,
		LiveEventID: "event-1",
		ProductID:   "vestido-1",
		Size:        "M",
		Quantity:    qty,
		UnitPrice:   90,
		Status:      status,
		ReservedAt:  time.Now(),
	}
}

func TestInsertItemGuardedRejectsOversell(t *testing.T) {
	d := setupTestDB(t)
	ctx := context.Background()

	seedCart(t, d, "cart-1", models.CartAberto)
	seedCart(t, d, "cart-2", models.CartAberto)

	// One unit registered, two carts racing for it.
	err := d.InsertItemGuarded(ctx, reservation("item-1", "cart-1", 1, models.ItemReservado), 1)
	require.NoError(t, err)

	err = d.InsertItemGuarded(ctx, reservation("item-2", "cart-2", 1, models.ItemReservado), 1)
	assert.ErrorIs(t, err, models.ErrInsufficientStock)

	// The losing insert left nothing behind.
	_, err = d.GetItemByID(ctx, "item-2")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestInsertItemGuardedIgnoresReleasedAndGiftLines(t *testing.T) {
	d := setupTestDB(t)
	ctx := context.Background()

	seedCart(t, d, "cart-1", models.CartAberto)

	// A removed reservation and a gift line occupy rows but not stock.
	removed := reservation("item-removed", "cart-1", 1, models.ItemRemovido)
	require.NoError(t, d.InsertItemGuarded(ctx, removed, 10))

	gift := reservation("item-gift", "cart-1", 1, models.ItemConfirmado)
	gift.IsGift = true
	gift.ProductID = ""
	gift.UnitPrice = 0
	require.NoError(t, d.InsertItemGuarded(ctx, gift, 10))

	// The full registered unit is still free.
	err := d.InsertItemGuarded(ctx, reservation("item-live", "cart-1", 1, models.ItemReservado), 1)
	assert.NoError(t, err)
}

func TestInsertItemGuardedCountsExpiredReservations(t *testing.T) {
	d := setupTestDB(t)
	ctx := context.Background()

	seedCart(t, d, "cart-1", models.CartAberto)

	// Expired reservations keep holding stock until someone releases them
	// explicitly, so the guard still counts them.
	expired := reservation("item-expired", "cart-1", 1, models.ItemExpirado)
	require.NoError(t, d.InsertItemGuarded(ctx, expired, 1))

	err := d.InsertItemGuarded(ctx, reservation("item-new", "cart-1", 1, models.ItemReservado), 1)
	assert.ErrorIs(t, err, models.ErrInsufficientStock)
}

func TestUpdateCartStatusGuard(t *testing.T) {
	d := setupTestDB(t)
	ctx := context.Background()

	seedCart(t, d, "cart-1", models.CartAberto)

	ok, err := d.UpdateCartStatus(ctx, "cart-1", models.CartAberto, models.CartEmConfirmacao)
	require.NoError(t, err)
	assert.True(t, ok)

	// Stale expectation: the cart already left aberto.
	ok, err = d.UpdateCartStatus(ctx, "cart-1", models.CartAberto, models.CartCancelado)
	require.NoError(t, err)
	assert.False(t, ok)

	cart, err := d.GetCartByID(ctx, "cart-1")
	require.NoError(t, err)
	assert.Equal(t, models.CartEmConfirmacao, cart.Status)
}

func TestExpireCartLeavesPaidCart(t *testing.T) {
	d := setupTestDB(t)
	ctx := context.Background()

	seedCart(t, d, "cart-paid", models.CartPago)
	seedCart(t, d, "cart-open", models.CartAberto)

	ok, err := d.ExpireCart(ctx, "cart-paid")
	require.NoError(t, err)
	assert.False(t, ok, "pago is terminal for the sweep")

	ok, err = d.ExpireCart(ctx, "cart-open")
	require.NoError(t, err)
	assert.True(t, ok)

	cart, err := d.GetCartByID(ctx, "cart-open")
	require.NoError(t, err)
	assert.Equal(t, models.CartExpirado, cart.Status)
}

func TestExpireItemsFlipsOnlyCountedLines(t *testing.T) {
	d := setupTestDB(t)
	ctx := context.Background()

	seedCart(t, d, "cart-1", models.CartAberto)
	require.NoError(t, d.InsertItemGuarded(ctx, reservation("item-1", "cart-1", 1, models.ItemReservado), 10))
	require.NoError(t, d.InsertItemGuarded(ctx, reservation("item-2", "cart-1", 1, models.ItemConfirmado), 10))
	require.NoError(t, d.InsertItemGuarded(ctx, reservation("item-3", "cart-1", 1, models.ItemRemovido), 10))

	flipped, err := d.ExpireItems(ctx, "cart-1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), flipped)

	removed, err := d.GetItemByID(ctx, "item-3")
	require.NoError(t, err)
	assert.Equal(t, models.ItemRemovido, removed.Status)
}

func TestGetCartByPublicToken(t *testing.T) {
	d := setupTestDB(t)
	ctx := context.Background()

	seedCart(t, d, "cart-1", models.CartAberto)

	cart, err := d.GetCartByPublicToken(ctx, "token-cart-1")
	require.NoError(t, err)
	assert.Equal(t, "cart-1", cart.ID)

	_, err = d.GetCartByPublicToken(ctx, "nope")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestGetOpenCartByCustomerSkipsTerminalCarts(t *testing.T) {
	d := setupTestDB(t)
	ctx := context.Background()

	seedCart(t, d, "cart-old", models.CartCancelado)
	seedCart(t, d, "cart-live", models.CartAguardandoPagamento)

	cart, err := d.GetOpenCartByCustomer(ctx, "event-1", "@maria")
	require.NoError(t, err)
	assert.Equal(t, "cart-live", cart.ID)
}
