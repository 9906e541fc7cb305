package journal

import (
	"time"

	"github.com/fjod/billflow/internal/domain"
	"github.com/shopspring/decimal"
)

type orderEventItem struct {
	ItemID    string          `json:"item_id"`
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Quantity  int             `json:"quantity"`
}

// orderEvent is the payload published for an order outbox event.
type orderEvent struct {
	OrderID         string           `json:"order_id"`
	AttemptID       string           `json:"attempt_id"`
	State           string           `json:"state"`
	CustomerName    string           `json:"customer_name"`
	PhoneNumber     string           `json:"phone_number,omitempty"`
	PaymentMethod   string           `json:"payment_method"`
	ProviderOrderID string           `json:"provider_order_id,omitempty"`
	Items           []orderEventItem `json:"items"`
	Subtotal        decimal.Decimal  `json:"subtotal"`
	Tax             decimal.Decimal  `json:"tax"`
	GrandTotal      decimal.Decimal  `json:"grand_total"`
	Failure         string           `json:"failure,omitempty"`
	OccurredAt      time.Time        `json:"occurred_at"`
}

func newOrderEvent(a domain.CheckoutAttempt) orderEvent {
	items := make([]orderEventItem, 0, len(a.Lines))
	for _, l := range a.Lines {
		items = append(items, orderEventItem{
			ItemID:    l.ItemID,
			Name:      l.Name,
			UnitPrice: l.UnitPrice,
			Quantity:  l.Quantity,
		})
	}
	return orderEvent{
		OrderID:         a.OrderID(),
		AttemptID:       a.ID,
		State:           a.State.String(),
		CustomerName:    a.Customer.Name,
		PhoneNumber:     a.Customer.Phone,
		PaymentMethod:   a.PaymentMethod.String(),
		ProviderOrderID: a.ProviderOrderID,
		Items:           items,
		Subtotal:        a.Totals.Subtotal,
		Tax:             a.Totals.Tax,
		GrandTotal:      a.Totals.GrandTotal,
		Failure:         a.Failure,
		OccurredAt:      a.FinishedAt.UTC(),
	}
}
