// Package history filters and summarizes the backend's recent orders.
package history

import (
	"strings"

	"github.com/fjod/billflow/internal/domain"
	"github.com/shopspring/decimal"
)

type Summary struct {
	Total     int             `json:"total"`
	Completed int             `json:"completed"`
	Pending   int             `json:"pending"`
	Cancelled int             `json:"cancelled"`
	Revenue   decimal.Decimal `json:"revenue"`
}

// Search keeps orders whose customer name or order id contains q, ignoring case.
// A blank query returns every order.
func Search(orders []domain.OrderRecord, q string) []domain.OrderRecord {
	q = strings.ToLower(strings.TrimSpace(q))
	out := make([]domain.OrderRecord, 0, len(orders))
	for _, o := range orders {
		if q == "" ||
			strings.Contains(strings.ToLower(o.CustomerName), q) ||
			strings.Contains(strings.ToLower(o.OrderID), q) {
			out = append(out, o)
		}
	}
	return out
}

// Summarize counts orders by status. Revenue sums completed orders only.
func Summarize(orders []domain.OrderRecord) Summary {
	s := Summary{Total: len(orders), Revenue: decimal.Zero}
	for _, o := range orders {
		switch o.Status {
		case domain.OrderStatusCompleted:
			s.Completed++
			s.Revenue = s.Revenue.Add(o.GrandTotal)
		case domain.OrderStatusPending:
			s.Pending++
		case domain.OrderStatusCancelled:
			s.Cancelled++
		}
	}
	return s
}
