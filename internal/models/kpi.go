package models

// EventKPIs are derived per-event metrics. Only non-gift items in
// {reservado, confirmado} count toward items, revenue and customers; this
// exclusion rule must match the ledger's display projections exactly or the
// dashboards disagree with the product cards.
type EventKPIs struct {
	LiveEventID       string         `json:"live_event_id"`
	ItemsReserved     int            `json:"items_reserved"`
	Revenue           float64        `json:"revenue"`
	DistinctCustomers int            `json:"distinct_customers"`
	CartsByStatus     map[string]int `json:"carts_by_status"`
	PercentPaid       float64        `json:"percent_paid"`
}
