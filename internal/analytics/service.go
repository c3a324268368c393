package analytics

import (
	"context"

	"ms-liveshop/internal/models"

	"github.com/uptrace/bun"
)

// Service derives event KPIs from cart and item state. It keeps no state of
// its own: every number is recomputed from the store at read time, with the
// same exclusion rule the stock ledger uses (non-gift lines in reservado or
// confirmado), so dashboards and product cards always agree.
type Service struct {
	db *bun.DB
}

func NewService(db *bun.DB) *Service {
	return &Service{db: db}
}

// GetEventKPIs returns the per-event metrics for the backstage dashboard.
func (s *Service) GetEventKPIs(ctx context.Context, eventID string) (*models.EventKPIs, error) {
	kpis := &models.EventKPIs{
		LiveEventID:   eventID,
		CartsByStatus: map[string]int{},
	}

	type itemTotalsRaw struct {
		ItemsReserved     int     `bun:"items_reserved"`
		Revenue           float64 `bun:"revenue"`
		DistinctCustomers int     `bun:"distinct_customers"`
	}
	var totals itemTotalsRaw
	err := s.db.NewRaw(`
		SELECT
			COALESCE(SUM(i.quantity), 0) AS items_reserved,
			COALESCE(SUM(i.quantity * i.unit_price), 0) AS revenue,
			COUNT(DISTINCT c.customer_handle) AS distinct_customers
		FROM live_cart_items i
		JOIN live_carts c ON c.id = i.cart_id
		WHERE
			i.live_event_id = ?
			AND i.is_gift = ?
			AND i.status IN (?)
	`, eventID, false, bun.In(models.CountedItemStatuses)).Scan(ctx, &totals)
	if err != nil {
		return nil, err
	}
	kpis.ItemsReserved = totals.ItemsReserved
	kpis.Revenue = totals.Revenue
	kpis.DistinctCustomers = totals.DistinctCustomers

	type statusCountRaw struct {
		Status string `bun:"status"`
		Count  int    `bun:"cart_count"`
	}
	var statusCounts []statusCountRaw
	err = s.db.NewRaw(`
		SELECT status, COUNT(*) AS cart_count
		FROM live_carts
		WHERE live_event_id = ?
		GROUP BY status
	`, eventID).Scan(ctx, &statusCounts)
	if err != nil {
		return nil, err
	}

	total := 0
	for _, row := range statusCounts {
		kpis.CartsByStatus[row.Status] = row.Count
		total += row.Count
	}
	if total > 0 {
		kpis.PercentPaid = float64(kpis.CartsByStatus[models.CartPago]) / float64(total) * 100
	}

	return kpis, nil
}

// TopVariants returns the best reserved variants of an event, for the
// backstage "what is moving" panel.
func (s *Service) TopVariants(ctx context.Context, eventID string, limit int) ([]VariantSales, error) {
	if limit <= 0 {
		limit = 10
	}

	var rows []VariantSales
	err := s.db.NewRaw(`
		SELECT
			i.product_id,
			i.size,
			COALESCE(SUM(i.quantity), 0) AS quantity,
			COALESCE(SUM(i.quantity * i.unit_price), 0) AS revenue
		FROM live_cart_items i
		WHERE
			i.live_event_id = ?
			AND i.is_gift = ?
			AND i.status IN (?)
		GROUP BY i.product_id, i.size
		ORDER BY quantity DESC
		LIMIT ?
	`, eventID, false, bun.In(models.CountedItemStatuses), limit).Scan(ctx, &rows)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// VariantSales is one row of the top-variants panel.
type VariantSales struct {
	ProductID string  `bun:"product_id" json:"product_id"`
	Size      string  `bun:"size" json:"size"`
	Quantity  int     `bun:"quantity" json:"quantity"`
	Revenue   float64 `bun:"revenue" json:"revenue"`
}
