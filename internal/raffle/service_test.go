package raffle_test

import (
	"context"
	"testing"
	"time"

	"ms-liveshop/internal/logger"
	"ms-liveshop/internal/models"
	"ms-liveshop/internal/raffle"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type MockDBLayer struct {
	mock.Mock
}

func (m *MockDBLayer) GetGift(ctx context.Context, giftID string) (*models.Gift, error) {
	args := m.Called(ctx, giftID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Gift), args.Error(1)
}

func (m *MockDBLayer) DecrementGiftStock(ctx context.Context, giftID string) (bool, error) {
	args := m.Called(ctx, giftID)
	return args.Bool(0), args.Error(1)
}

func (m *MockDBLayer) RestoreGiftStock(ctx context.Context, giftID string) error {
	args := m.Called(ctx, giftID)
	return args.Error(0)
}

func (m *MockDBLayer) EligibleCarts(ctx context.Context, eventID string, paidOnly bool) ([]models.LiveCart, error) {
	args := m.Called(ctx, eventID, paidOnly)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.LiveCart), args.Error(1)
}

func (m *MockDBLayer) GetCartByID(ctx context.Context, cartID string) (*models.LiveCart, error) {
	args := m.Called(ctx, cartID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.LiveCart), args.Error(1)
}

func (m *MockDBLayer) SetWinnerFlag(ctx context.Context, cartID string, winner, needsReprint bool) error {
	args := m.Called(ctx, cartID, winner, needsReprint)
	return args.Error(0)
}

func (m *MockDBLayer) InsertRecord(ctx context.Context, record *models.RaffleRecord) error {
	args := m.Called(ctx, record)
	return args.Error(0)
}

func (m *MockDBLayer) GetRecord(ctx context.Context, id string) (*models.RaffleRecord, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.RaffleRecord), args.Error(1)
}

func (m *MockDBLayer) UpdateRecordStatus(ctx context.Context, id, from, to string, appliedAt time.Time) (bool, error) {
	args := m.Called(ctx, id, from, to, appliedAt)
	return args.Bool(0), args.Error(1)
}

func (m *MockDBLayer) UpdateRecordGift(ctx context.Context, id, giftID string) error {
	args := m.Called(ctx, id, giftID)
	return args.Error(0)
}

func (m *MockDBLayer) ListByEvent(ctx context.Context, eventID string) ([]models.RaffleRecord, error) {
	args := m.Called(ctx, eventID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.RaffleRecord), args.Error(1)
}

func (m *MockDBLayer) InsertGiftLine(ctx context.Context, item *models.CartItem) error {
	args := m.Called(ctx, item)
	return args.Error(0)
}

func (m *MockDBLayer) RemoveGiftLine(ctx context.Context, cartID, giftID string) (int64, error) {
	args := m.Called(ctx, cartID, giftID)
	return args.Get(0).(int64), args.Error(1)
}

type MockKafkaProducer struct {
	mock.Mock
}

func (m *MockKafkaProducer) Publish(topic string, key string, value []byte) error {
	args := m.Called(topic, key, value)
	return args.Error(0)
}

func newService() (*raffle.Service, *MockDBLayer, *MockKafkaProducer) {
	db := new(MockDBLayer)
	producer := new(MockKafkaProducer)
	return raffle.NewService(db, producer, logger.NewLogger()), db, producer
}

func brinde(stock int) *models.Gift {
	return &models.Gift{ID: "gift-1", Name: "Brinde", StockQty: stock, Active: true}
}

func pendingRecord() *models.RaffleRecord {
	return &models.RaffleRecord{
		ID:          "raffle-1",
		LiveEventID: "event-1",
		GiftID:      "gift-1",
		CartID:      "cart-1",
		Status:      models.RafflePending,
		DrawnAt:     time.Now(),
	}
}

func unpaidCart() *models.LiveCart {
	return &models.LiveCart{ID: "cart-1", LiveEventID: "event-1", Status: models.CartAguardandoPagamento}
}

func TestDrawNoEligibleCarts(t *testing.T) {
	s, db, _ := newService()
	ctx := context.Background()

	db.On("GetGift", ctx, "gift-1").Return(brinde(3), nil)
	db.On("EligibleCarts", ctx, "event-1", true).Return([]models.LiveCart{}, nil)

	_, err := s.Draw(ctx, "event-1", "gift-1", false)

	assert.ErrorIs(t, err, models.ErrNoEligibleCarts)
	db.AssertNotCalled(t, "InsertRecord", mock.Anything, mock.Anything)
}

func TestDrawDepletedGift(t *testing.T) {
	s, db, _ := newService()
	ctx := context.Background()

	db.On("GetGift", ctx, "gift-1").Return(brinde(0), nil)

	_, err := s.Draw(ctx, "event-1", "gift-1", false)

	assert.ErrorIs(t, err, models.ErrGiftOutOfStock)
	db.AssertNotCalled(t, "EligibleCarts", mock.Anything, mock.Anything, mock.Anything)
}

func TestDrawRejectsInactiveGift(t *testing.T) {
	s, db, _ := newService()
	ctx := context.Background()

	retired := brinde(3)
	retired.Active = false
	db.On("GetGift", ctx, "gift-1").Return(retired, nil)

	_, err := s.Draw(ctx, "event-1", "gift-1", false)

	assert.ErrorIs(t, err, models.ErrGiftInactive)
	db.AssertNotCalled(t, "EligibleCarts", mock.Anything, mock.Anything, mock.Anything)
}

func TestDrawPersistsPendingWithoutTouchingStock(t *testing.T) {
	s, db, _ := newService()
	ctx := context.Background()

	db.On("GetGift", ctx, "gift-1").Return(brinde(3), nil)
	db.On("EligibleCarts", ctx, "event-1", false).Return([]models.LiveCart{*unpaidCart()}, nil)

	var record *models.RaffleRecord
	db.On("InsertRecord", ctx, mock.Anything).Run(func(args mock.Arguments) {
		record = args.Get(1).(*models.RaffleRecord)
	}).Return(nil)

	got, err := s.Draw(ctx, "event-1", "gift-1", true)

	assert.NoError(t, err)
	assert.Equal(t, models.RafflePending, got.Status)
	assert.Equal(t, "cart-1", record.CartID)
	// The two-phase protocol: the draw never touches the gift pool or the
	// winning cart.
	db.AssertNotCalled(t, "DecrementGiftStock", mock.Anything, mock.Anything)
	db.AssertNotCalled(t, "InsertGiftLine", mock.Anything, mock.Anything)
	db.AssertNotCalled(t, "SetWinnerFlag", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestConfirmAppliesGift(t *testing.T) {
	s, db, producer := newService()
	ctx := context.Background()

	db.On("GetRecord", ctx, "raffle-1").Return(pendingRecord(), nil)
	db.On("GetGift", ctx, "gift-1").Return(brinde(2), nil)
	db.On("DecrementGiftStock", ctx, "gift-1").Return(true, nil)

	var line *models.CartItem
	db.On("InsertGiftLine", ctx, mock.Anything).Run(func(args mock.Arguments) {
		line = args.Get(1).(*models.CartItem)
	}).Return(nil)
	db.On("GetCartByID", ctx, "cart-1").Return(unpaidCart(), nil)
	db.On("SetWinnerFlag", ctx, "cart-1", true, false).Return(nil)
	db.On("UpdateRecordStatus", ctx, "raffle-1", models.RafflePending, models.RaffleApplied, mock.Anything).Return(true, nil)
	producer.On("Publish", "liveshop.raffle.applied", mock.Anything, mock.Anything).Return(nil)

	record, err := s.Confirm(ctx, "raffle-1")

	assert.NoError(t, err)
	assert.Equal(t, models.RaffleApplied, record.Status)
	assert.True(t, line.IsGift)
	assert.Equal(t, 1, line.Quantity)
	assert.Equal(t, 0.0, line.UnitPrice)
	assert.Empty(t, line.ProductID)
}

func TestConfirmGiftExhaustedConcurrently(t *testing.T) {
	s, db, _ := newService()
	ctx := context.Background()

	db.On("GetRecord", ctx, "raffle-1").Return(pendingRecord(), nil)
	db.On("GetGift", ctx, "gift-1").Return(brinde(1), nil)
	// Another raffle confirmed the last unit between draw and confirm.
	db.On("DecrementGiftStock", ctx, "gift-1").Return(false, nil)

	_, err := s.Confirm(ctx, "raffle-1")

	assert.ErrorIs(t, err, models.ErrGiftOutOfStock)
	db.AssertNotCalled(t, "InsertGiftLine", mock.Anything, mock.Anything)
}

func TestConfirmUnlimitedGiftSkipsDecrement(t *testing.T) {
	s, db, producer := newService()
	ctx := context.Background()

	unlimited := brinde(0)
	unlimited.UnlimitedStock = true

	db.On("GetRecord", ctx, "raffle-1").Return(pendingRecord(), nil)
	db.On("GetGift", ctx, "gift-1").Return(unlimited, nil)
	db.On("InsertGiftLine", ctx, mock.Anything).Return(nil)
	db.On("GetCartByID", ctx, "cart-1").Return(unpaidCart(), nil)
	db.On("SetWinnerFlag", ctx, "cart-1", true, false).Return(nil)
	db.On("UpdateRecordStatus", ctx, "raffle-1", models.RafflePending, models.RaffleApplied, mock.Anything).Return(true, nil)
	producer.On("Publish", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	_, err := s.Confirm(ctx, "raffle-1")

	assert.NoError(t, err)
	db.AssertNotCalled(t, "DecrementGiftStock", mock.Anything, mock.Anything)
}

func TestConfirmRejectsNonPending(t *testing.T) {
	s, db, _ := newService()
	ctx := context.Background()

	applied := pendingRecord()
	applied.Status = models.RaffleApplied
	db.On("GetRecord", ctx, "raffle-1").Return(applied, nil)

	_, err := s.Confirm(ctx, "raffle-1")

	assert.ErrorIs(t, err, models.ErrInvalidTransition)
}

func TestCancelAppliedRestoresEverything(t *testing.T) {
	s, db, _ := newService()
	ctx := context.Background()

	applied := pendingRecord()
	applied.Status = models.RaffleApplied
	db.On("GetRecord", ctx, "raffle-1").Return(applied, nil)
	db.On("GetCartByID", ctx, "cart-1").Return(unpaidCart(), nil)
	db.On("RemoveGiftLine", ctx, "cart-1", "gift-1").Return(int64(1), nil)
	db.On("GetGift", ctx, "gift-1").Return(brinde(1), nil)
	db.On("RestoreGiftStock", ctx, "gift-1").Return(nil)
	db.On("SetWinnerFlag", ctx, "cart-1", false, false).Return(nil)
	db.On("UpdateRecordStatus", ctx, "raffle-1", models.RaffleApplied, models.RaffleCancelled, mock.Anything).Return(true, nil)

	record, err := s.Cancel(ctx, "raffle-1")

	assert.NoError(t, err)
	assert.Equal(t, models.RaffleCancelled, record.Status)
	// Reversal symmetry: one unit back, gift line gone, winner flag cleared.
	db.AssertCalled(t, "RestoreGiftStock", ctx, "gift-1")
	db.AssertCalled(t, "RemoveGiftLine", ctx, "cart-1", "gift-1")
}

func TestCancelLockedOnPaidCart(t *testing.T) {
	s, db, _ := newService()
	ctx := context.Background()

	applied := pendingRecord()
	applied.Status = models.RaffleApplied
	paid := unpaidCart()
	paid.Status = models.CartPago

	db.On("GetRecord", ctx, "raffle-1").Return(applied, nil)
	db.On("GetCartByID", ctx, "cart-1").Return(paid, nil)

	_, err := s.Cancel(ctx, "raffle-1")

	assert.ErrorIs(t, err, models.ErrLockedForEdit)
	db.AssertNotCalled(t, "RemoveGiftLine", mock.Anything, mock.Anything, mock.Anything)
	db.AssertNotCalled(t, "RestoreGiftStock", mock.Anything, mock.Anything)
}

func TestEditPendingSwapsGiftOnly(t *testing.T) {
	s, db, _ := newService()
	ctx := context.Background()

	db.On("GetRecord", ctx, "raffle-1").Return(pendingRecord(), nil)
	db.On("GetCartByID", ctx, "cart-1").Return(unpaidCart(), nil)
	db.On("GetGift", ctx, "gift-2").Return(&models.Gift{ID: "gift-2", Name: "Outro", StockQty: 1, Active: true}, nil)
	db.On("UpdateRecordGift", ctx, "raffle-1", "gift-2").Return(nil)

	record, err := s.Edit(ctx, "raffle-1", "gift-2")

	assert.NoError(t, err)
	assert.Equal(t, "gift-2", record.GiftID)
	db.AssertNotCalled(t, "DecrementGiftStock", mock.Anything, mock.Anything)
}

func TestEditAppliedTakesNewGiftFirst(t *testing.T) {
	s, db, _ := newService()
	ctx := context.Background()

	applied := pendingRecord()
	applied.Status = models.RaffleApplied
	db.On("GetRecord", ctx, "raffle-1").Return(applied, nil)
	db.On("GetCartByID", ctx, "cart-1").Return(unpaidCart(), nil)
	db.On("GetGift", ctx, "gift-2").Return(&models.Gift{ID: "gift-2", Name: "Outro", StockQty: 1, Active: true}, nil)
	db.On("GetGift", ctx, "gift-1").Return(brinde(0), nil)
	// The new gift's unit cannot be taken: the swap must leave the record
	// and the old gift untouched.
	db.On("DecrementGiftStock", ctx, "gift-2").Return(false, nil)

	_, err := s.Edit(ctx, "raffle-1", "gift-2")

	assert.ErrorIs(t, err, models.ErrGiftOutOfStock)
	db.AssertNotCalled(t, "RemoveGiftLine", mock.Anything, mock.Anything, mock.Anything)
	db.AssertNotCalled(t, "RestoreGiftStock", mock.Anything, mock.Anything)
	db.AssertNotCalled(t, "UpdateRecordGift", mock.Anything, mock.Anything, mock.Anything)
}

func TestEditRejectsInactiveGift(t *testing.T) {
	s, db, _ := newService()
	ctx := context.Background()

	retired := &models.Gift{ID: "gift-2", Name: "Outro", StockQty: 1, Active: false}
	db.On("GetRecord", ctx, "raffle-1").Return(pendingRecord(), nil)
	db.On("GetCartByID", ctx, "cart-1").Return(unpaidCart(), nil)
	db.On("GetGift", ctx, "gift-2").Return(retired, nil)

	_, err := s.Edit(ctx, "raffle-1", "gift-2")

	assert.ErrorIs(t, err, models.ErrGiftInactive)
	db.AssertNotCalled(t, "UpdateRecordGift", mock.Anything, mock.Anything, mock.Anything)
}

func TestEditRejectedOnPaidCart(t *testing.T) {
	s, db, _ := newService()
	ctx := context.Background()

	paid := unpaidCart()
	paid.Status = models.CartPago
	db.On("GetRecord", ctx, "raffle-1").Return(pendingRecord(), nil)
	db.On("GetCartByID", ctx, "cart-1").Return(paid, nil)

	_, err := s.Edit(ctx, "raffle-1", "gift-2")

	assert.ErrorIs(t, err, models.ErrLockedForEdit)
}
