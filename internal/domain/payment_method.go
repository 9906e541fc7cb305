package domain

import "strings"

type PaymentMethod string

const (
	PaymentMethodCash   PaymentMethod = "CASH"
	PaymentMethodUPI    PaymentMethod = "UPI"
	PaymentMethodOnline PaymentMethod = "ONLINE"
)

// ParsePaymentMethod accepts the method name in any case.
func ParsePaymentMethod(s string) (PaymentMethod, bool) {
	m := PaymentMethod(strings.ToUpper(strings.TrimSpace(s)))
	return m, m.Valid()
}

func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentMethodCash, PaymentMethodUPI, PaymentMethodOnline:
		return true
	}
	return false
}

// RequiresProvider is true for methods settled through the external payment widget.
func (m PaymentMethod) RequiresProvider() bool {
	return m == PaymentMethodOnline
}

func (m PaymentMethod) String() string {
	return string(m)
}
