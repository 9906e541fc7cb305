// Package payment models the external payment provider widget as a future-like handle.
package payment

import (
	"context"

	"github.com/shopspring/decimal"
)

type Prefill struct {
	Name  string `json:"name"`
	Phone string `json:"contact"`
}

// Options are handed to the widget when it opens.
type Options struct {
	Key             string          `json:"key"`
	Amount          decimal.Decimal `json:"amount"`
	Currency        string          `json:"currency"`
	ProviderOrderID string          `json:"order_id"`
	OrderID         string          `json:"receipt"`
	Prefill         Prefill         `json:"prefill"`
}

// Result is what the provider reports on a successful payment.
type Result struct {
	ProviderOrderID string `json:"razorpay_order_id"`
	PaymentID       string `json:"razorpay_payment_id"`
	Signature       string `json:"razorpay_signature"`
}

type OutcomeKind int

const (
	OutcomeSucceeded OutcomeKind = iota + 1
	OutcomeDismissed
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeSucceeded:
		return "succeeded"
	case OutcomeDismissed:
		return "dismissed"
	}
	return "unknown"
}

type Outcome struct {
	Kind   OutcomeKind
	Result Result
}

func (o Outcome) Succeeded() bool { return o.Kind == OutcomeSucceeded }

// Handle resolves exactly once, to success or dismissal.
type Handle interface {
	// Wait blocks until the outcome is known or ctx is done.
	Wait(ctx context.Context) (Outcome, error)
	// Cancel dismisses the widget if it has not resolved yet.
	Cancel()
}

type Widget interface {
	Open(ctx context.Context, opts Options) (Handle, error)
}
