package domain

import "time"

// CheckoutAttempt is the record of one place-order invocation that reached a terminal state.
type CheckoutAttempt struct {
	ID              string
	State           CheckoutState
	Customer        CustomerInfo
	PaymentMethod   PaymentMethod
	Lines           []CartLine
	Totals          Totals
	Order           *ConfirmedOrder
	ProviderOrderID string
	Failure         string
	StartedAt       time.Time
	FinishedAt      time.Time
}

// OrderID is empty when the backend never confirmed the order.
func (a CheckoutAttempt) OrderID() string {
	if a.Order == nil {
		return ""
	}
	return a.Order.OrderID
}
