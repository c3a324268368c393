package raffle

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"time"

	"ms-liveshop/internal/kafka"
	"ms-liveshop/internal/logger"
	"ms-liveshop/internal/models"

	"github.com/google/uuid"
)

type DBLayer interface {
	GetGift(ctx context.Context, giftID string) (*models.Gift, error)
	DecrementGiftStock(ctx context.Context, giftID string) (bool, error)
	RestoreGiftStock(ctx context.Context, giftID string) error

	EligibleCarts(ctx context.Context, eventID string, paidOnly bool) ([]models.LiveCart, error)
	GetCartByID(ctx context.Context, cartID string) (*models.LiveCart, error)
	SetWinnerFlag(ctx context.Context, cartID string, winner, needsReprint bool) error

	InsertRecord(ctx context.Context, record *models.RaffleRecord) error
	GetRecord(ctx context.Context, id string) (*models.RaffleRecord, error)
	UpdateRecordStatus(ctx context.Context, id, from, to string, appliedAt time.Time) (bool, error)
	UpdateRecordGift(ctx context.Context, id, giftID string) error
	ListByEvent(ctx context.Context, eventID string) ([]models.RaffleRecord, error)

	InsertGiftLine(ctx context.Context, item *models.CartItem) error
	RemoveGiftLine(ctx context.Context, cartID, giftID string) (int64, error)
}

type Publisher interface {
	Publish(topic string, key string, value []byte) error
}

// Service runs the two-phase gift raffle: Draw persists a pending record
// without touching stock, Confirm is the only step that decrements the gift
// pool and writes the gift line.
type Service struct {
	DB     DBLayer
	Kafka  Publisher
	Logger *logger.Logger

	// pick selects the winner index from n eligible carts.
	pick func(n int) int
	now  func() time.Time
}

func NewService(db DBLayer, producer Publisher, log *logger.Logger) *Service {
	return &Service{DB: db, Kafka: producer, Logger: log, pick: rand.Intn, now: time.Now}
}

// Draw selects a winner uniformly among eligible carts and persists the
// record as pending. Gift stock and the winning cart stay untouched until
// Confirm, so the operator can re-roll or pause between the two steps.
func (s *Service) Draw(ctx context.Context, eventID, giftID string, includeUnpaid bool) (*models.RaffleRecord, error) {
	gift, err := s.DB.GetGift(ctx, giftID)
	if err != nil {
		return nil, fmt.Errorf("gift %s: %w", giftID, err)
	}
	if !gift.Active {
		return nil, fmt.Errorf("gift %s (%s): %w", gift.Name, giftID, models.ErrGiftInactive)
	}
	if !gift.UnlimitedStock && gift.StockQty <= 0 {
		return nil, fmt.Errorf("gift %s (%s): %w", gift.Name, giftID, models.ErrGiftOutOfStock)
	}

	carts, err := s.DB.EligibleCarts(ctx, eventID, !includeUnpaid)
	if err != nil {
		return nil, fmt.Errorf("eligible carts for event %s: %w", eventID, err)
	}
	if len(carts) == 0 {
		return nil, fmt.Errorf("event %s: %w", eventID, models.ErrNoEligibleCarts)
	}

	winner := carts[s.pick(len(carts))]
	record := &models.RaffleRecord{
		ID:          uuid.NewString(),
		LiveEventID: eventID,
		GiftID:      giftID,
		CartID:      winner.ID,
		Status:      models.RafflePending,
		DrawnAt:     s.now(),
	}
	if err := s.DB.InsertRecord(ctx, record); err != nil {
		return nil, fmt.Errorf("persist raffle for cart %s: %w", winner.ID, err)
	}

	s.Logger.Info("RAFFLE", fmt.Sprintf("drew cart %s (@%s) for gift %s", winner.ID, winner.CustomerHandle, gift.Name))
	return record, nil
}

// Confirm commits a pending draw: decrements the gift pool (conditional, so
// a concurrent raffle that exhausted the last unit fails here instead of
// going negative), writes the gift line, flags the winner, flips the record
// to applied.
func (s *Service) Confirm(ctx context.Context, raffleID string) (*models.RaffleRecord, error) {
	record, err := s.DB.GetRecord(ctx, raffleID)
	if err != nil {
		return nil, fmt.Errorf("raffle %s: %w", raffleID, err)
	}
	if record.Status != models.RafflePending {
		return nil, fmt.Errorf("raffle %s in status %s: %w", raffleID, record.Status, models.ErrInvalidTransition)
	}

	gift, err := s.DB.GetGift(ctx, record.GiftID)
	if err != nil {
		return nil, fmt.Errorf("gift %s: %w", record.GiftID, err)
	}

	if err := s.takeGiftUnit(ctx, gift); err != nil {
		return nil, err
	}

	if err := s.applyGiftToCart(ctx, record, gift); err != nil {
		s.releaseGiftUnit(ctx, gift)
		return nil, err
	}

	appliedAt := s.now()
	ok, err := s.DB.UpdateRecordStatus(ctx, raffleID, models.RafflePending, models.RaffleApplied, appliedAt)
	if err != nil || !ok {
		// Gift line exists, record says pending. Loud log beats an automatic
		// unwind here; the operator resolves it from the raffle list.
		s.Logger.Error("RAFFLE", fmt.Sprintf("raffle %s applied but status flip failed (ok=%v err=%v)", raffleID, ok, err))
	}
	record.Status = models.RaffleApplied
	record.AppliedAt = appliedAt

	s.publishApplied(record)
	return record, nil
}

// Edit swaps the gift on a record. On an applied record the new gift's unit
// is taken first; only after that succeeds is the old line removed and the
// old unit restored, so a failed swap leaves the record on its old gift.
func (s *Service) Edit(ctx context.Context, raffleID, newGiftID string) (*models.RaffleRecord, error) {
	record, err := s.DB.GetRecord(ctx, raffleID)
	if err != nil {
		return nil, fmt.Errorf("raffle %s: %w", raffleID, err)
	}
	if record.Status == models.RaffleCancelled {
		return nil, fmt.Errorf("raffle %s already cancelled: %w", raffleID, models.ErrInvalidTransition)
	}
	if err := s.guardCartUnpaid(ctx, record.CartID); err != nil {
		return nil, err
	}

	newGift, err := s.DB.GetGift(ctx, newGiftID)
	if err != nil {
		return nil, fmt.Errorf("gift %s: %w", newGiftID, err)
	}
	if !newGift.Active {
		return nil, fmt.Errorf("gift %s (%s): %w", newGift.Name, newGiftID, models.ErrGiftInactive)
	}

	if record.Status == models.RafflePending {
		if !newGift.UnlimitedStock && newGift.StockQty <= 0 {
			return nil, fmt.Errorf("gift %s (%s): %w", newGift.Name, newGiftID, models.ErrGiftOutOfStock)
		}
		if err := s.DB.UpdateRecordGift(ctx, raffleID, newGiftID); err != nil {
			return nil, fmt.Errorf("raffle %s: %w", raffleID, err)
		}
		record.GiftID = newGiftID
		return record, nil
	}

	oldGift, err := s.DB.GetGift(ctx, record.GiftID)
	if err != nil {
		return nil, fmt.Errorf("gift %s: %w", record.GiftID, err)
	}

	if err := s.takeGiftUnit(ctx, newGift); err != nil {
		return nil, err
	}
	if err := s.applyGiftToCart(ctx, record, newGift); err != nil {
		s.releaseGiftUnit(ctx, newGift)
		return nil, err
	}

	if _, err := s.DB.RemoveGiftLine(ctx, record.CartID, oldGift.ID); err != nil {
		s.Logger.Error("RAFFLE", fmt.Sprintf("raffle %s: old gift line %s not removed: %v", raffleID, oldGift.ID, err))
	}
	s.releaseGiftUnit(ctx, oldGift)

	if err := s.DB.UpdateRecordGift(ctx, raffleID, newGiftID); err != nil {
		return nil, fmt.Errorf("raffle %s: %w", raffleID, err)
	}
	record.GiftID = newGiftID
	return record, nil
}

// Cancel reverses a draw. An applied record gives its unit back to the gift
// pool and loses its gift line and winner flag; a pending one just flips.
// Paid carts are immutable with respect to raffles.
func (s *Service) Cancel(ctx context.Context, raffleID string) (*models.RaffleRecord, error) {
	record, err := s.DB.GetRecord(ctx, raffleID)
	if err != nil {
		return nil, fmt.Errorf("raffle %s: %w", raffleID, err)
	}
	if record.Status == models.RaffleCancelled {
		return nil, fmt.Errorf("raffle %s already cancelled: %w", raffleID, models.ErrInvalidTransition)
	}
	if err := s.guardCartUnpaid(ctx, record.CartID); err != nil {
		return nil, err
	}

	if record.Status == models.RaffleApplied {
		if _, err := s.DB.RemoveGiftLine(ctx, record.CartID, record.GiftID); err != nil {
			return nil, fmt.Errorf("raffle %s: remove gift line: %w", raffleID, err)
		}
		gift, err := s.DB.GetGift(ctx, record.GiftID)
		if err != nil {
			return nil, fmt.Errorf("gift %s: %w", record.GiftID, err)
		}
		s.releaseGiftUnit(ctx, gift)

		if err := s.DB.SetWinnerFlag(ctx, record.CartID, false, false); err != nil {
			s.Logger.Error("RAFFLE", fmt.Sprintf("raffle %s: winner flag not cleared on cart %s: %v", raffleID, record.CartID, err))
		}
	}

	ok, err := s.DB.UpdateRecordStatus(ctx, raffleID, record.Status, models.RaffleCancelled, time.Time{})
	if err != nil {
		return nil, fmt.Errorf("raffle %s: %w", raffleID, err)
	}
	if !ok {
		return nil, fmt.Errorf("raffle %s changed concurrently: %w", raffleID, models.ErrInvalidTransition)
	}
	record.Status = models.RaffleCancelled
	return record, nil
}

// ListByEvent returns every draw for an event, newest first.
func (s *Service) ListByEvent(ctx context.Context, eventID string) ([]models.RaffleRecord, error) {
	return s.DB.ListByEvent(ctx, eventID)
}

func (s *Service) guardCartUnpaid(ctx context.Context, cartID string) error {
	cart, err := s.DB.GetCartByID(ctx, cartID)
	if err != nil {
		return fmt.Errorf("cart %s: %w", cartID, err)
	}
	if cart.Status == models.CartPago {
		return fmt.Errorf("cart %s is paid: %w", cartID, models.ErrLockedForEdit)
	}
	return nil
}

func (s *Service) takeGiftUnit(ctx context.Context, gift *models.Gift) error {
	if gift.UnlimitedStock {
		return nil
	}
	ok, err := s.DB.DecrementGiftStock(ctx, gift.ID)
	if err != nil {
		return fmt.Errorf("decrement gift %s: %w", gift.ID, err)
	}
	if !ok {
		return fmt.Errorf("gift %s (%s): %w", gift.Name, gift.ID, models.ErrGiftOutOfStock)
	}
	return nil
}

func (s *Service) releaseGiftUnit(ctx context.Context, gift *models.Gift) {
	if gift.UnlimitedStock {
		return
	}
	if err := s.DB.RestoreGiftStock(ctx, gift.ID); err != nil {
		s.Logger.Error("RAFFLE", fmt.Sprintf("restore gift %s stock failed: %v", gift.ID, err))
	}
}

func (s *Service) applyGiftToCart(ctx context.Context, record *models.RaffleRecord, gift *models.Gift) error {
	line := &models.CartItem{
		ID:          uuid.NewString(),
		CartID:      record.CartID,
		LiveEventID: record.LiveEventID,
		Quantity:    1,
		UnitPrice:   0,
		Status:      models.ItemConfirmado,
		IsGift:      true,
		GiftID:      gift.ID,
		GiftName:    gift.Name,
		ReservedAt:  s.now(),
	}
	if err := s.DB.InsertGiftLine(ctx, line); err != nil {
		return fmt.Errorf("gift line for cart %s: %w", record.CartID, err)
	}

	cart, err := s.DB.GetCartByID(ctx, record.CartID)
	if err != nil {
		return fmt.Errorf("cart %s: %w", record.CartID, err)
	}
	if err := s.DB.SetWinnerFlag(ctx, record.CartID, true, cart.LabelPrinted()); err != nil {
		return fmt.Errorf("winner flag on cart %s: %w", record.CartID, err)
	}
	return nil
}

func (s *Service) publishApplied(record *models.RaffleRecord) {
	payload, err := json.Marshal(models.RaffleEvent{
		RaffleID:    record.ID,
		LiveEventID: record.LiveEventID,
		GiftID:      record.GiftID,
		CartID:      record.CartID,
		Status:      record.Status,
		At:          record.AppliedAt,
	})
	if err != nil {
		return
	}
	if err := s.Kafka.Publish(kafka.TopicRaffleApplied, record.ID, payload); err != nil {
		s.Logger.Warn("KAFKA", fmt.Sprintf("publish raffle applied for %s failed: %v", record.ID, err))
	}
}
