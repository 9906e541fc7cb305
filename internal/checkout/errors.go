package checkout

import (
	"errors"
	"fmt"
)

var (
	ErrMissingCustomerName        = errors.New("missing customer name")
	ErrEmptyCart                  = errors.New("empty cart")
	ErrUnsupportedPaymentMethod   = errors.New("unsupported payment method")
	ErrOnlinePaymentNotConfigured = errors.New("online payment not configured")

	ErrCheckoutInProgress       = errors.New("checkout already in progress")
	ErrPlaceOrderFailed         = errors.New("failed to place order")
	ErrPaymentCancelled         = errors.New("payment cancelled")
	ErrVerificationFailed       = errors.New("payment verification failed")
	ErrPaymentWidgetUnavailable = errors.New("payment widget unavailable")
)

// ValidationError rejects an attempt before any network call.
type ValidationError struct {
	Err error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %v", e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// userMessages are checked in order; the first match is shown to the operator.
var userMessages = []error{
	ErrMissingCustomerName,
	ErrEmptyCart,
	ErrUnsupportedPaymentMethod,
	ErrOnlinePaymentNotConfigured,
	ErrVerificationFailed,
	ErrPaymentCancelled,
	ErrPaymentWidgetUnavailable,
	ErrPlaceOrderFailed,
}

// UserMessage is the short text for an operator-facing error toast.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	for _, target := range userMessages {
		if errors.Is(err, target) {
			return target.Error()
		}
	}
	return err.Error()
}
