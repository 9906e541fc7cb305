package gateway

import (
	"errors"
	"fmt"
	"net/http"
)

var ErrUnauthorized = errors.New("gateway: unauthorized")

// NetworkError is a transport failure: no response was received,
// or the circuit breaker rejected the call.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("gateway: %s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// ServerError is a non-2xx response.
type ServerError struct {
	Op      string
	Status  int
	Message string
}

func (e *ServerError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("gateway: %s: status %d", e.Op, e.Status)
	}
	return fmt.Sprintf("gateway: %s: status %d: %s", e.Op, e.Status, e.Message)
}

func (e *ServerError) Is(target error) bool {
	return target == ErrUnauthorized && e.Status == http.StatusUnauthorized
}

// VerificationError is returned by VerifyPayment for any failure, including transport errors.
type VerificationError struct {
	Err error
}

func (e *VerificationError) Error() string {
	return fmt.Sprintf("gateway: payment verification failed: %v", e.Err)
}

func (e *VerificationError) Unwrap() error { return e.Err }
