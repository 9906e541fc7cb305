package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/fjod/billflow/internal/cart"
	"github.com/fjod/billflow/internal/checkout"
	"github.com/fjod/billflow/internal/gateway"
	"github.com/fjod/billflow/internal/journal"
	"github.com/fjod/billflow/internal/payment"
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

const encodeFailedBody = `{"error":"internal server error","code":"internal_error"}` + "\n"

// respondJSON marshals before writing so an unencodable payload still gets a 500.
func respondJSON(w http.ResponseWriter, status int, data any) {
	body, err := json.Marshal(data)
	w.Header().Set("Content-Type", "application/json")
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(encodeFailedBody))
		return
	}
	w.WriteHeader(status)
	_, _ = w.Write(append(body, '\n'))
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}

// handleError maps component errors to HTTP status codes.
func handleError(w http.ResponseWriter, err error) {
	var (
		validation *checkout.ValidationError
		network    *gateway.NetworkError
		server     *gateway.ServerError
	)

	switch {
	case errors.Is(err, checkout.ErrCheckoutInProgress):
		respondError(w, http.StatusConflict, "checkout_in_progress", err.Error())
	case errors.As(err, &validation):
		respondError(w, http.StatusUnprocessableEntity, "validation_failed", checkout.UserMessage(err))
	case errors.Is(err, cart.ErrInvalidQuantity):
		respondError(w, http.StatusBadRequest, "invalid_quantity", err.Error())
	case errors.Is(err, cart.ErrItemNotInCart):
		respondError(w, http.StatusNotFound, "item_not_in_cart", err.Error())
	case errors.Is(err, payment.ErrUnknownPayment):
		respondError(w, http.StatusNotFound, "unknown_payment", err.Error())
	case errors.Is(err, payment.ErrAlreadyResolved):
		respondError(w, http.StatusConflict, "already_resolved", err.Error())
	case errors.Is(err, journal.ErrAttemptNotFound):
		respondError(w, http.StatusNotFound, "order_not_found", err.Error())
	case errors.Is(err, gateway.ErrUnauthorized):
		respondError(w, http.StatusBadGateway, "upstream_unauthorized", "billing backend rejected credentials")
	case errors.As(err, &network):
		respondError(w, http.StatusServiceUnavailable, "service_unavailable", err.Error())
	case errors.As(err, &server):
		respondError(w, http.StatusBadGateway, "bad_gateway", server.Message)
	case errors.Is(err, context.DeadlineExceeded):
		respondError(w, http.StatusGatewayTimeout, "timeout", "request timed out")
	default:
		respondError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondError(w, http.StatusRequestEntityTooLarge, "request_too_large", "request body too large")
			return false
		}
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return false
	}
	return true
}
