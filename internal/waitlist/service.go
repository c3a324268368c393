package waitlist

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"ms-liveshop/internal/kafka"
	"ms-liveshop/internal/logger"
	"ms-liveshop/internal/models"

	"github.com/google/uuid"
)

type DBLayer interface {
	Insert(ctx context.Context, entry *models.WaitlistEntry) error
	GetByID(ctx context.Context, id string) (*models.WaitlistEntry, error)
	UpdateStatus(ctx context.Context, id, from, to string) (bool, error)
	CancelWithNote(ctx context.Context, id, from, note string) (bool, error)
	NextEligible(ctx context.Context, eventID, productID, size string) (*models.WaitlistEntry, error)
	ListByVariant(ctx context.Context, eventID, productID, size string) ([]models.WaitlistEntry, error)
	CancelRemaining(ctx context.Context, eventID, productID, size string) (int64, error)
	HasActiveEntry(ctx context.Context, eventID, productID, size string) (bool, error)
}

// CartAllocator converts an accepted offer into a real reservation. Wired to
// the cart service in main; declared here so the packages stay decoupled.
type CartAllocator interface {
	AllocateForWaitlist(ctx context.Context, eventID, productID, size, handle string) (*models.CartItem, error)
}

type Publisher interface {
	Publish(topic string, key string, value []byte) error
}

type Service struct {
	DB     DBLayer
	Carts  CartAllocator
	Kafka  Publisher
	Logger *logger.Logger

	now func() time.Time
}

func NewService(db DBLayer, carts CartAllocator, producer Publisher, log *logger.Logger) *Service {
	return &Service{DB: db, Carts: carts, Kafka: producer, Logger: log, now: time.Now}
}

// EnrollInput is the enrollment request shape.
type EnrollInput struct {
	LiveEventID     string `json:"live_event_id"`
	ProductID       string `json:"product_id"`
	Size            string `json:"size"`
	InstagramHandle string `json:"instagram_handle"`
	Whatsapp        string `json:"whatsapp,omitempty"`
	Name            string `json:"name,omitempty"`
	Note            string `json:"note,omitempty"`
}

// Enroll appends a customer to the variant's queue. The db layer assigns
// ordem = max existing + 1 inside its transaction, so two concurrent
// enrollments never share a position.
func (s *Service) Enroll(ctx context.Context, in EnrollInput) (*models.WaitlistEntry, error) {
	if in.InstagramHandle == "" {
		return nil, fmt.Errorf("enroll: instagram handle is required")
	}

	entry := &models.WaitlistEntry{
		ID:              uuid.NewString(),
		LiveEventID:     in.LiveEventID,
		ProductID:       in.ProductID,
		Size:            in.Size,
		InstagramHandle: in.InstagramHandle,
		Whatsapp:        in.Whatsapp,
		Name:            in.Name,
		Note:            in.Note,
		Status:          models.WaitlistAtiva,
		CreatedAt:       s.now(),
	}
	if err := s.DB.Insert(ctx, entry); err != nil {
		return nil, fmt.Errorf("enroll %s for %s/%s: %w", in.InstagramHandle, in.ProductID, in.Size, err)
	}
	return entry, nil
}

// NextEligible returns the lowest-ordem ativa entry for a variant, or
// ErrNotFound when the queue is empty.
func (s *Service) NextEligible(ctx context.Context, eventID, productID, size string) (*models.WaitlistEntry, error) {
	return s.DB.NextEligible(ctx, eventID, productID, size)
}

// Call marks an entry chamada: the operator announced the offer on the
// broadcast and is waiting for the customer to respond.
func (s *Service) Call(ctx context.Context, entryID string) (*models.WaitlistEntry, error) {
	entry, err := s.DB.GetByID(ctx, entryID)
	if err != nil {
		return nil, fmt.Errorf("waitlist entry %s: %w", entryID, err)
	}
	if entry.Status != models.WaitlistAtiva {
		return nil, fmt.Errorf("waitlist entry %s in status %s: %w", entryID, entry.Status, models.ErrInvalidTransition)
	}
	ok, err := s.DB.UpdateStatus(ctx, entryID, models.WaitlistAtiva, models.WaitlistChamada)
	if err != nil {
		return nil, fmt.Errorf("waitlist entry %s: %w", entryID, err)
	}
	if !ok {
		return nil, fmt.Errorf("waitlist entry %s changed concurrently: %w", entryID, models.ErrInvalidTransition)
	}
	entry.Status = models.WaitlistChamada
	return entry, nil
}

// Offer allocates a freed unit to the entry. Availability is consumed by an
// allocation through the cart machinery, which re-checks stock under the
// variant lock; if the unit was grabbed by a concurrent quick-add in the
// meantime the offer fails with NoStockAvailable and the entry stays in the
// queue.
func (s *Service) Offer(ctx context.Context, entryID string) (*models.CartItem, error) {
	entry, err := s.DB.GetByID(ctx, entryID)
	if err != nil {
		return nil, fmt.Errorf("waitlist entry %s: %w", entryID, err)
	}
	if entry.Status != models.WaitlistAtiva && entry.Status != models.WaitlistChamada {
		return nil, fmt.Errorf("waitlist entry %s in status %s: %w", entryID, entry.Status, models.ErrInvalidTransition)
	}

	item, err := s.Carts.AllocateForWaitlist(ctx, entry.LiveEventID, entry.ProductID, entry.Size, entry.InstagramHandle)
	if err != nil {
		return nil, err
	}

	ok, err := s.DB.UpdateStatus(ctx, entryID, entry.Status, models.WaitlistAtendida)
	if err != nil || !ok {
		// The reservation exists; losing the status flip is recoverable by
		// the operator, losing the reservation would not be.
		s.Logger.Error("WAITLIST", fmt.Sprintf("entry %s allocated but status flip failed (ok=%v err=%v)", entryID, ok, err))
	}

	s.publishOffered(entry)
	return item, nil
}

// skipReason is recorded on entries the operator skips.
const skipReason = "no response"

// Skip marks an entry cancelada without touching stock; the rest of the
// queue keeps its order. The reason is persisted alongside the status, after
// any note the customer left at enrollment.
func (s *Service) Skip(ctx context.Context, entryID string) (*models.WaitlistEntry, error) {
	entry, err := s.DB.GetByID(ctx, entryID)
	if err != nil {
		return nil, fmt.Errorf("waitlist entry %s: %w", entryID, err)
	}
	if entry.Status != models.WaitlistAtiva && entry.Status != models.WaitlistChamada {
		return nil, fmt.Errorf("waitlist entry %s in status %s: %w", entryID, entry.Status, models.ErrInvalidTransition)
	}
	ok, err := s.DB.CancelWithNote(ctx, entryID, entry.Status, skipReason)
	if err != nil {
		return nil, fmt.Errorf("waitlist entry %s: %w", entryID, err)
	}
	if !ok {
		return nil, fmt.Errorf("waitlist entry %s changed concurrently: %w", entryID, models.ErrInvalidTransition)
	}
	entry.Status = models.WaitlistCancelada
	if entry.Note == "" {
		entry.Note = skipReason
	} else {
		entry.Note = entry.Note + "; " + skipReason
	}
	return entry, nil
}

// EndQueue cancels every remaining ativa/chamada entry for a variant.
func (s *Service) EndQueue(ctx context.Context, eventID, productID, size string) (int64, error) {
	cancelled, err := s.DB.CancelRemaining(ctx, eventID, productID, size)
	if err != nil {
		return 0, fmt.Errorf("end queue for %s/%s: %w", productID, size, err)
	}
	return cancelled, nil
}

// ListByVariant returns the full queue for a variant, ordem ascending.
func (s *Service) ListByVariant(ctx context.Context, eventID, productID, size string) ([]models.WaitlistEntry, error) {
	return s.DB.ListByVariant(ctx, eventID, productID, size)
}

// HasActiveEntry implements the cart service's WaitlistChecker.
func (s *Service) HasActiveEntry(ctx context.Context, eventID, productID, size string) (bool, error) {
	return s.DB.HasActiveEntry(ctx, eventID, productID, size)
}

func (s *Service) publishOffered(entry *models.WaitlistEntry) {
	payload, err := json.Marshal(models.WaitlistEvent{
		EntryID:     entry.ID,
		LiveEventID: entry.LiveEventID,
		ProductID:   entry.ProductID,
		Size:        entry.Size,
		Handle:      entry.InstagramHandle,
		Ordem:       entry.Ordem,
		At:          s.now(),
	})
	if err != nil {
		return
	}
	if err := s.Kafka.Publish(kafka.TopicWaitlistOffered, entry.ID, payload); err != nil {
		s.Logger.Warn("KAFKA", fmt.Sprintf("publish waitlist offered for %s failed: %v", entry.ID, err))
	}
}
