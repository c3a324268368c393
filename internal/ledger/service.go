package ledger

import (
	"context"
	"fmt"

	"ms-liveshop/internal/logger"
	"ms-liveshop/internal/models"
)

// DBLayer is the read surface the ledger needs. Reserved quantities are
// summed across all carts holding the variant's SKU, not just one event's.
type DBLayer interface {
	GetVariant(ctx context.Context, eventID, productID, size string) (*models.LiveProduct, error)
	VariantsForProduct(ctx context.Context, eventID, productID string) ([]models.LiveProduct, error)
	ReservedQuantity(ctx context.Context, productID, size string) (int, error)
	ReservedByProduct(ctx context.Context, productID string) (map[string]int, error)
}

// Service is the Stock Ledger View: availability is always derived from the
// reservation rows at read time, never cached and never mutated directly.
// Writing to the ledger means writing a reservation.
type Service struct {
	DB     DBLayer
	Logger *logger.Logger
}

func NewService(db DBLayer, log *logger.Logger) *Service {
	return &Service{DB: db, Logger: log}
}

// Available computes registered_stock minus the sum of ledger-active
// reservations for one variant. A negative result is an invariant violation:
// it is logged as a defect and clamped to zero so the read path never shows
// a negative badge.
func (s *Service) Available(ctx context.Context, eventID, productID, size string) (int, error) {
	variant, err := s.DB.GetVariant(ctx, eventID, productID, size)
	if err != nil {
		return 0, fmt.Errorf("ledger: variant %s/%s: %w", productID, size, err)
	}

	reserved, err := s.DB.ReservedQuantity(ctx, productID, size)
	if err != nil {
		return 0, fmt.Errorf("ledger: reserved sum for %s/%s: %w", productID, size, err)
	}

	available := variant.RegisteredStock - reserved
	if available < 0 {
		s.Logger.LogDefect("LEDGER", fmt.Sprintf(
			"negative availability for %s/%s: registered=%d reserved=%d",
			productID, size, variant.RegisteredStock, reserved))
		return 0, nil
	}
	return available, nil
}

// AvailableBySize returns the availability map for every size of a product
// in an event, for the quick-launcher size buttons.
func (s *Service) AvailableBySize(ctx context.Context, eventID, productID string) (map[string]int, error) {
	variants, err := s.DB.VariantsForProduct(ctx, eventID, productID)
	if err != nil {
		return nil, fmt.Errorf("ledger: variants for %s: %w", productID, err)
	}
	if len(variants) == 0 {
		return nil, fmt.Errorf("ledger: product %s in event %s: %w", productID, eventID, models.ErrNotFound)
	}

	reservedBySize, err := s.DB.ReservedByProduct(ctx, productID)
	if err != nil {
		return nil, fmt.Errorf("ledger: reserved by size for %s: %w", productID, err)
	}

	out := make(map[string]int, len(variants))
	for _, v := range variants {
		available := v.RegisteredStock - reservedBySize[v.Size]
		if available < 0 {
			s.Logger.LogDefect("LEDGER", fmt.Sprintf(
				"negative availability for %s/%s: registered=%d reserved=%d",
				productID, v.Size, v.RegisteredStock, reservedBySize[v.Size]))
			available = 0
		}
		out[v.Size] = available
	}
	return out, nil
}
