package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"ms-liveshop/internal/kafka"
	"ms-liveshop/internal/logger"
	"ms-liveshop/internal/models"

	"github.com/google/uuid"
)

type DBLayer interface {
	GetEvent(ctx context.Context, eventID string) (*models.LiveEvent, error)
	GetVariant(ctx context.Context, eventID, productID, size string) (*models.LiveProduct, error)

	GetCartByID(ctx context.Context, id string) (*models.LiveCart, error)
	GetCartByPublicToken(ctx context.Context, token string) (*models.LiveCart, error)
	GetOpenCartByCustomer(ctx context.Context, eventID, handle string) (*models.LiveCart, error)
	CreateCart(ctx context.Context, cart *models.LiveCart) error
	UpdateCart(ctx context.Context, cart *models.LiveCart) error
	UpdateCartStatus(ctx context.Context, cartID, from, to string) (bool, error)
	ListCartsByEvent(ctx context.Context, eventID string) ([]models.LiveCart, error)

	GetItemByID(ctx context.Context, id string) (*models.CartItem, error)
	UpdateItem(ctx context.Context, item *models.CartItem) error
	InsertItemGuarded(ctx context.Context, item *models.CartItem, registeredStock int) error
	ListItemsByCart(ctx context.Context, cartID string) ([]models.CartItem, error)

	ExpirableCarts(ctx context.Context, now time.Time) ([]models.LiveCart, error)
	ExpireCart(ctx context.Context, cartID string) (bool, error)
	ExpireItems(ctx context.Context, cartID string) (int64, error)

	InsertAudit(ctx context.Context, audit *models.CartStatusAudit) error
	ListAuditsByCart(ctx context.Context, cartID string) ([]models.CartStatusAudit, error)
}

// StockView is the ledger read the service re-checks before every
// reservation-creating write.
type StockView interface {
	Available(ctx context.Context, eventID, productID, size string) (int, error)
}

// VariantLock serializes reservation attempts per variant.
type VariantLock interface {
	LockVariant(eventID, productID, size, token string) (bool, error)
	UnlockVariant(eventID, productID, size, token string) error
}

// WaitlistChecker tells RemoveItem whether a freed unit has someone waiting.
type WaitlistChecker interface {
	HasActiveEntry(ctx context.Context, eventID, productID, size string) (bool, error)
}

type Publisher interface {
	Publish(topic string, key string, value []byte) error
}

type StockNotifier interface {
	EmitStockUpdate(update models.StockUpdate)
}

type Service struct {
	DB       DBLayer
	Ledger   StockView
	Lock     VariantLock
	Waitlist WaitlistChecker
	Kafka    Publisher
	Stock    StockNotifier
	Logger   *logger.Logger

	now func() time.Time
}

func NewService(db DBLayer, ledger StockView, lock VariantLock, waitlist WaitlistChecker, producer Publisher, stock StockNotifier, log *logger.Logger) *Service {
	return &Service{
		DB:       db,
		Ledger:   ledger,
		Lock:     lock,
		Waitlist: waitlist,
		Kafka:    producer,
		Stock:    stock,
		Logger:   log,
		now:      time.Now,
	}
}

// QuickAdd is the backstage quick-launch: resolve or create the customer's
// cart, re-read availability under the variant lock, and insert the
// reservation through the guarded write. The availability check and the
// insert happen inside one DB transaction; the lock only narrows the window,
// the transaction is the correctness guard.
func (s *Service) QuickAdd(ctx context.Context, req models.QuickLaunch) (*models.CartItem, error) {
	if req.Quantity < 1 {
		return nil, fmt.Errorf("quick add: quantity must be >= 1")
	}

	variant, err := s.DB.GetVariant(ctx, req.LiveEventID, req.ProductID, req.Size)
	if err != nil {
		return nil, fmt.Errorf("quick add: variant %s/%s: %w", req.ProductID, req.Size, err)
	}

	token := uuid.NewString()
	locked, err := s.Lock.LockVariant(req.LiveEventID, req.ProductID, req.Size, token)
	if err != nil {
		return nil, fmt.Errorf("quick add: variant lock: %w", err)
	}
	if !locked {
		return nil, fmt.Errorf("quick add %s/%s: %w", req.ProductID, req.Size, models.ErrVariantLocked)
	}
	defer func() {
		if err := s.Lock.UnlockVariant(req.LiveEventID, req.ProductID, req.Size, token); err != nil {
			s.Logger.Warn("CART", fmt.Sprintf("failed to unlock variant %s/%s: %v", req.ProductID, req.Size, err))
		}
	}()

	available, err := s.Ledger.Available(ctx, req.LiveEventID, req.ProductID, req.Size)
	if err != nil {
		return nil, fmt.Errorf("quick add: availability: %w", err)
	}
	if available < req.Quantity {
		return nil, fmt.Errorf("quick add %s/%s wants %d, has %d: %w",
			req.ProductID, req.Size, req.Quantity, available, models.ErrInsufficientStock)
	}

	cart, err := s.resolveCart(ctx, req.LiveEventID, req.CustomerHandle)
	if err != nil {
		return nil, fmt.Errorf("quick add: resolve cart: %w", err)
	}

	color := req.Color
	if color == "" {
		color = variant.Color
	}
	item := &models.CartItem{
		ID:          uuid.NewString(),
		CartID:      cart.ID,
		LiveEventID: req.LiveEventID,
		ProductID:   req.ProductID,
		Size:        req.Size,
		Color:       color,
		Quantity:    req.Quantity,
		UnitPrice:   variant.EffectiveUnitPrice(),
		Status:      models.ItemReservado,
		ReservedAt:  s.now(),
	}

	if err := s.DB.InsertItemGuarded(ctx, item, variant.RegisteredStock); err != nil {
		return nil, fmt.Errorf("quick add %s/%s: %w", req.ProductID, req.Size, err)
	}

	s.flagReprintIfLabeled(ctx, cart)
	s.publishItemEvent(kafka.TopicItemReserved, item)
	s.emitStockUpdate(ctx, req.LiveEventID, req.ProductID, req.Size)
	return item, nil
}

// AllocateForWaitlist reserves a single unit for a waitlist customer. Same
// path as QuickAdd, but a depleted variant surfaces as NoStockAvailable so
// the waitlist caller re-checks instead of offering enrollment.
func (s *Service) AllocateForWaitlist(ctx context.Context, eventID, productID, size, handle string) (*models.CartItem, error) {
	item, err := s.QuickAdd(ctx, models.QuickLaunch{
		LiveEventID:    eventID,
		CustomerHandle: handle,
		ProductID:      productID,
		Size:           size,
		Quantity:       1,
	})
	if errors.Is(err, models.ErrInsufficientStock) {
		return nil, fmt.Errorf("waitlist allocation %s/%s: %w", productID, size, models.ErrNoStockAvailable)
	}
	return item, err
}

// ReduceQuantity decrements an item by one unit; at quantity 1 this is a
// removal. Returns whether a waitlist entry exists for the freed variant.
func (s *Service) ReduceQuantity(ctx context.Context, itemID, actor string) (bool, error) {
	item, err := s.DB.GetItemByID(ctx, itemID)
	if err != nil {
		return false, fmt.Errorf("reduce item %s: %w", itemID, err)
	}
	if item.IsGift {
		return false, fmt.Errorf("item %s is a raffle gift line: %w", itemID, models.ErrInvalidTransition)
	}
	if item.Status != models.ItemReservado && item.Status != models.ItemConfirmado {
		return false, fmt.Errorf("reduce item %s in status %s: %w", itemID, item.Status, models.ErrInvalidTransition)
	}

	if item.Quantity <= 1 {
		return s.RemoveItem(ctx, itemID, actor)
	}

	item.Quantity--
	item.UpdatedAt = s.now()
	if err := s.DB.UpdateItem(ctx, item); err != nil {
		return false, fmt.Errorf("reduce item %s: %w", itemID, err)
	}

	if cart, err := s.DB.GetCartByID(ctx, item.CartID); err == nil {
		s.flagReprintIfLabeled(ctx, cart)
	}
	s.publishItemEvent(kafka.TopicItemReleased, item)
	s.emitStockUpdate(ctx, item.LiveEventID, item.ProductID, item.Size)
	return false, nil
}

// RemoveItem backs a reservation out entirely: the unit returns to the pool
// immediately and the caller is told whether someone is waiting for it.
// Gift lines are refused: a gift only leaves a cart through the raffle's
// cancel/edit path, which also restores the gift pool and the record.
func (s *Service) RemoveItem(ctx context.Context, itemID, actor string) (bool, error) {
	item, err := s.DB.GetItemByID(ctx, itemID)
	if err != nil {
		return false, fmt.Errorf("remove item %s: %w", itemID, err)
	}
	if item.IsGift {
		return false, fmt.Errorf("item %s is a raffle gift line: %w", itemID, models.ErrInvalidTransition)
	}
	if item.Status != models.ItemReservado && item.Status != models.ItemConfirmado {
		return false, fmt.Errorf("remove item %s in status %s: %w", itemID, item.Status, models.ErrInvalidTransition)
	}

	item.Status = models.ItemRemovido
	item.UpdatedAt = s.now()
	if err := s.DB.UpdateItem(ctx, item); err != nil {
		return false, fmt.Errorf("remove item %s: %w", itemID, err)
	}

	if cart, err := s.DB.GetCartByID(ctx, item.CartID); err == nil {
		s.flagReprintIfLabeled(ctx, cart)
	}
	s.publishItemEvent(kafka.TopicItemReleased, item)
	s.emitStockUpdate(ctx, item.LiveEventID, item.ProductID, item.Size)

	hasWaitlist, err := s.Waitlist.HasActiveEntry(ctx, item.LiveEventID, item.ProductID, item.Size)
	if err != nil {
		s.Logger.Warn("CART", fmt.Sprintf("waitlist check for %s/%s failed: %v", item.ProductID, item.Size, err))
		return false, nil
	}
	return hasWaitlist, nil
}

// CancelItemForSeparation marks an item cancelado: the unit is already
// picked and bagged, so the stock is intentionally NOT released. Physical
// reality outranks the ledger; reconciliation is a human step.
func (s *Service) CancelItemForSeparation(ctx context.Context, itemID, actor string) error {
	item, err := s.DB.GetItemByID(ctx, itemID)
	if err != nil {
		return fmt.Errorf("cancel item %s: %w", itemID, err)
	}
	if item.IsGift {
		return fmt.Errorf("item %s is a raffle gift line: %w", itemID, models.ErrInvalidTransition)
	}
	if item.Status != models.ItemReservado && item.Status != models.ItemConfirmado {
		return fmt.Errorf("cancel item %s in status %s: %w", itemID, item.Status, models.ErrInvalidTransition)
	}

	item.Status = models.ItemCancelado
	item.UpdatedAt = s.now()
	if err := s.DB.UpdateItem(ctx, item); err != nil {
		return fmt.Errorf("cancel item %s: %w", itemID, err)
	}
	// No stock event and no waitlist trigger: cancelado keeps consuming
	// the ledger until an operator reconciles it.
	return nil
}

// SetCartStatus validates the transition against the state machine, applies
// it with an optimistic status guard and records the audit entry.
func (s *Service) SetCartStatus(ctx context.Context, cartID, newStatus, actor, note string) (*models.LiveCart, error) {
	cart, err := s.DB.GetCartByID(ctx, cartID)
	if err != nil {
		return nil, fmt.Errorf("cart %s: %w", cartID, err)
	}

	if !models.CanTransitionCart(cart.Status, newStatus) {
		return nil, fmt.Errorf("cart %s: %s -> %s: %w", cartID, cart.Status, newStatus, models.ErrInvalidTransition)
	}

	ok, err := s.DB.UpdateCartStatus(ctx, cartID, cart.Status, newStatus)
	if err != nil {
		return nil, fmt.Errorf("cart %s: update status: %w", cartID, err)
	}
	if !ok {
		// Someone changed the status between our read and our write.
		return nil, fmt.Errorf("cart %s: concurrent status change: %w", cartID, models.ErrInvalidTransition)
	}

	s.writeAudit(ctx, cartID, cart.Status, newStatus, actor, note)
	s.publishCartStatus(cart, newStatus, actor)

	cart.Status = newStatus
	cart.UpdatedAt = s.now()
	return cart, nil
}

// ExpireStaleCarts transitions carts past their payment deadline to
// expirado, along with their active reservations. The per-cart update
// re-checks the status so a cart that just went pago is never expired.
// Running the sweep twice is a no-op the second time.
func (s *Service) ExpireStaleCarts(ctx context.Context) (int, error) {
	carts, err := s.DB.ExpirableCarts(ctx, s.now())
	if err != nil {
		return 0, fmt.Errorf("expiry sweep: %w", err)
	}

	expired := 0
	for _, cart := range carts {
		ok, err := s.DB.ExpireCart(ctx, cart.ID)
		if err != nil {
			s.Logger.Error("SWEEP", fmt.Sprintf("failed to expire cart %s: %v", cart.ID, err))
			continue
		}
		if !ok {
			// Status moved under us (e.g. payment landed); leave it alone.
			continue
		}

		if _, err := s.DB.ExpireItems(ctx, cart.ID); err != nil {
			s.Logger.Error("SWEEP", fmt.Sprintf("failed to expire items of cart %s: %v", cart.ID, err))
		}

		s.writeAudit(ctx, cart.ID, cart.Status, models.CartExpirado, "expiry-sweep", "payment window lapsed")
		s.publishCartExpired(&cart)
		expired++
	}
	return expired, nil
}

// GetCart returns a cart with its items.
func (s *Service) GetCart(ctx context.Context, cartID string) (*models.CartWithItems, error) {
	cart, err := s.DB.GetCartByID(ctx, cartID)
	if err != nil {
		return nil, fmt.Errorf("cart %s: %w", cartID, err)
	}
	items, err := s.DB.ListItemsByCart(ctx, cartID)
	if err != nil {
		return nil, fmt.Errorf("cart %s items: %w", cartID, err)
	}
	return &models.CartWithItems{Cart: *cart, Items: items}, nil
}

// GetCartByPublicToken is the customer-facing checkout view.
func (s *Service) GetCartByPublicToken(ctx context.Context, token string) (*models.CartWithItems, error) {
	cart, err := s.DB.GetCartByPublicToken(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("cart by token: %w", err)
	}
	return s.GetCart(ctx, cart.ID)
}

func (s *Service) ListCarts(ctx context.Context, eventID string) ([]models.LiveCart, error) {
	return s.DB.ListCartsByEvent(ctx, eventID)
}

// StatusHistory returns the audit trail for a cart, oldest first.
func (s *Service) StatusHistory(ctx context.Context, cartID string) ([]models.CartStatusAudit, error) {
	return s.DB.ListAuditsByCart(ctx, cartID)
}

// AssignBagLabel records the physical label: bag number and print time. The
// printing workflow owns the label itself; the engine only tracks whether
// one exists so later edits can demand a reprint.
func (s *Service) AssignBagLabel(ctx context.Context, cartID string, bagNumber int) (*models.LiveCart, error) {
	cart, err := s.DB.GetCartByID(ctx, cartID)
	if err != nil {
		return nil, fmt.Errorf("cart %s: %w", cartID, err)
	}

	cart.BagNumber = bagNumber
	cart.LabelPrintedAt = s.now()
	cart.NeedsLabelReprint = false
	cart.UpdatedAt = s.now()
	if err := s.DB.UpdateCart(ctx, cart); err != nil {
		return nil, fmt.Errorf("cart %s: assign label: %w", cartID, err)
	}
	return cart, nil
}

// ---------------- internals ----------------

func (s *Service) resolveCart(ctx context.Context, eventID, handle string) (*models.LiveCart, error) {
	cart, err := s.DB.GetOpenCartByCustomer(ctx, eventID, handle)
	if err == nil {
		return cart, nil
	}
	if !errors.Is(err, models.ErrNotFound) {
		return nil, err
	}

	event, err := s.DB.GetEvent(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("event %s: %w", eventID, err)
	}
	expiryMinutes := event.ReservationExpiryMinutes
	if expiryMinutes <= 0 {
		expiryMinutes = 30
	}

	now := s.now()
	cart = &models.LiveCart{
		ID:             uuid.NewString(),
		LiveEventID:    eventID,
		CustomerHandle: handle,
		Status:         models.CartAberto,
		PublicToken:    uuid.NewString(),
		ExpiresAt:      now.Add(time.Duration(expiryMinutes) * time.Minute),
		CreatedAt:      now,
	}
	if err := s.DB.CreateCart(ctx, cart); err != nil {
		return nil, err
	}
	return cart, nil
}

func (s *Service) flagReprintIfLabeled(ctx context.Context, cart *models.LiveCart) {
	if !cart.LabelPrinted() || cart.NeedsLabelReprint {
		return
	}
	cart.NeedsLabelReprint = true
	cart.UpdatedAt = s.now()
	if err := s.DB.UpdateCart(ctx, cart); err != nil {
		s.Logger.Warn("CART", fmt.Sprintf("failed to flag reprint for cart %s: %v", cart.ID, err))
	}
}

func (s *Service) emitStockUpdate(ctx context.Context, eventID, productID, size string) {
	available, err := s.Ledger.Available(ctx, eventID, productID, size)
	if err != nil {
		s.Logger.Warn("CART", fmt.Sprintf("stock update read for %s/%s failed: %v", productID, size, err))
		return
	}
	s.Stock.EmitStockUpdate(models.StockUpdate{
		LiveEventID: eventID,
		ProductID:   productID,
		Size:        size,
		Available:   available,
		At:          s.now(),
	})
}

func (s *Service) publishItemEvent(topic string, item *models.CartItem) {
	payload, err := json.Marshal(models.ItemEvent{
		ItemID:      item.ID,
		CartID:      item.CartID,
		LiveEventID: item.LiveEventID,
		ProductID:   item.ProductID,
		Size:        item.Size,
		Quantity:    item.Quantity,
		Status:      item.Status,
		At:          s.now(),
	})
	if err != nil {
		return
	}
	if err := s.Kafka.Publish(topic, item.ID, payload); err != nil {
		s.Logger.Warn("KAFKA", fmt.Sprintf("publish %s for item %s failed: %v", topic, item.ID, err))
	}
}

func (s *Service) publishCartStatus(cart *models.LiveCart, newStatus, actor string) {
	payload, err := json.Marshal(models.CartStatusEvent{
		CartID:      cart.ID,
		LiveEventID: cart.LiveEventID,
		OldStatus:   cart.Status,
		NewStatus:   newStatus,
		Actor:       actor,
		At:          s.now(),
	})
	if err != nil {
		return
	}
	if err := s.Kafka.Publish(kafka.TopicCartStatus, cart.ID, payload); err != nil {
		s.Logger.Warn("KAFKA", fmt.Sprintf("publish cart status for %s failed: %v", cart.ID, err))
	}
}

func (s *Service) publishCartExpired(cart *models.LiveCart) {
	payload, err := json.Marshal(models.CartStatusEvent{
		CartID:      cart.ID,
		LiveEventID: cart.LiveEventID,
		OldStatus:   cart.Status,
		NewStatus:   models.CartExpirado,
		Actor:       "expiry-sweep",
		At:          s.now(),
	})
	if err != nil {
		return
	}
	if err := s.Kafka.Publish(kafka.TopicCartExpired, cart.ID, payload); err != nil {
		s.Logger.Warn("KAFKA", fmt.Sprintf("publish cart expired for %s failed: %v", cart.ID, err))
	}
}

func (s *Service) writeAudit(ctx context.Context, cartID, oldStatus, newStatus, actor, note string) {
	audit := &models.CartStatusAudit{
		ID:        uuid.NewString(),
		CartID:    cartID,
		OldStatus: oldStatus,
		NewStatus: newStatus,
		Actor:     actor,
		Note:      note,
		CreatedAt: s.now(),
	}
	if err := s.DB.InsertAudit(ctx, audit); err != nil {
		// The audit trail is required output; a failed write is an ERROR,
		// not a silent skip.
		s.Logger.Error("AUDIT", fmt.Sprintf("failed to record %s -> %s for cart %s: %v", oldStatus, newStatus, cartID, err))
	}
}
