package domain

type CheckoutState string

const (
	CheckoutStateIdle            CheckoutState = "IDLE"
	CheckoutStateValidating      CheckoutState = "VALIDATING"
	CheckoutStateSubmitting      CheckoutState = "SUBMITTING"
	CheckoutStateAwaitingPayment CheckoutState = "AWAITING_PAYMENT"
	CheckoutStateVerifying       CheckoutState = "VERIFYING"
	CheckoutStateCompleted       CheckoutState = "COMPLETED"
	CheckoutStatePaymentFailed   CheckoutState = "PAYMENT_FAILED"
	CheckoutStateRejected        CheckoutState = "REJECTED"
)

var checkoutTransitions = map[CheckoutState][]CheckoutState{
	CheckoutStateIdle:            {CheckoutStateValidating},
	CheckoutStateValidating:      {CheckoutStateSubmitting, CheckoutStateRejected},
	CheckoutStateSubmitting:      {CheckoutStateCompleted, CheckoutStateAwaitingPayment, CheckoutStateRejected},
	CheckoutStateAwaitingPayment: {CheckoutStateVerifying, CheckoutStatePaymentFailed},
	CheckoutStateVerifying:       {CheckoutStateCompleted, CheckoutStatePaymentFailed},
	CheckoutStateCompleted:       {CheckoutStateValidating},
	CheckoutStatePaymentFailed:   {CheckoutStateValidating},
	CheckoutStateRejected:        {CheckoutStateValidating},
}

// CanTransitionTo reports whether the checkout state machine allows moving from one state to another.
func CanTransitionTo(from, to CheckoutState) bool {
	for _, next := range checkoutTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

func (s CheckoutState) IsTerminal() bool {
	return s == CheckoutStateCompleted || s == CheckoutStatePaymentFailed || s == CheckoutStateRejected
}

// IsBusy is true while an attempt is in flight; new place-order requests are ignored.
func (s CheckoutState) IsBusy() bool {
	switch s {
	case CheckoutStateValidating, CheckoutStateSubmitting, CheckoutStateAwaitingPayment, CheckoutStateVerifying:
		return true
	}
	return false
}

// String representation (for logging)
func (s CheckoutState) String() string {
	return string(s)
}
