package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderDraft is built once per checkout attempt from a single cart snapshot.
type OrderDraft struct {
	Customer      CustomerInfo
	Lines         []CartLine
	Totals        Totals
	PaymentMethod PaymentMethod
}

func NewOrderDraft(customer CustomerInfo, lines []CartLine, method PaymentMethod, taxRate decimal.Decimal) OrderDraft {
	snapshot := make([]CartLine, len(lines))
	copy(snapshot, lines)
	return OrderDraft{
		Customer:      CustomerInfo{Name: trimmed(customer.Name), Phone: customer.Phone},
		Lines:         snapshot,
		Totals:        ComputeTotals(snapshot, taxRate),
		PaymentMethod: method,
	}
}

// ProviderPayment carries the payment provider identifiers for an online order.
type ProviderPayment struct {
	ProviderOrderID string `json:"provider_order_id"`
	PaymentID       string `json:"payment_id,omitempty"`
	Signature       string `json:"signature,omitempty"`
	Status          string `json:"status,omitempty"`
}

type ConfirmedOrder struct {
	OrderID       string           `json:"order_id"`
	Customer      CustomerInfo     `json:"customer"`
	Lines         []CartLine       `json:"lines"`
	Totals        Totals           `json:"totals"`
	PaymentMethod PaymentMethod    `json:"payment_method"`
	Provider      *ProviderPayment `json:"provider,omitempty"`
	CreatedAt     time.Time        `json:"created_at"`
}

// ProviderOrder is the payment provider's order created for an online checkout.
type ProviderOrder struct {
	ID       string
	Amount   decimal.Decimal
	Currency string
	Status   string
}

type PaymentVerification struct {
	ProviderOrderID string
	PaymentID       string
	Signature       string
	OrderID         string
}
