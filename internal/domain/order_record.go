package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus is the backend's numeric order status.
type OrderStatus int

const (
	OrderStatusPending OrderStatus = iota
	OrderStatusCompleted
	OrderStatusCancelled
)

func (s OrderStatus) String() string {
	switch s {
	case OrderStatusCompleted:
		return "Completed"
	case OrderStatusCancelled:
		return "Cancelled"
	default:
		return "Pending"
	}
}

// OrderRecord is a row of the backend's recent-orders list.
type OrderRecord struct {
	OrderID       string          `json:"order_id"`
	CustomerName  string          `json:"customer_name"`
	PhoneNumber   string          `json:"phone_number,omitempty"`
	GrandTotal    decimal.Decimal `json:"grand_total"`
	PaymentMethod PaymentMethod   `json:"payment_method"`
	Status        OrderStatus     `json:"status"`
	CreatedAt     time.Time       `json:"created_at"`
}
