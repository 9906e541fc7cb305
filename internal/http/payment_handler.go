package http

import (
	"net/http"

	"github.com/fjod/billflow/internal/payment"
	"github.com/go-chi/chi/v5"
)

// PaymentBridge relays the browser widget's callbacks to the waiting checkout.
type PaymentBridge interface {
	Succeed(providerOrderID string, r payment.Result) error
	Dismiss(providerOrderID string) error
	Lookup(providerOrderID string) (payment.Options, bool)
}

type PaymentHandler struct {
	bridge PaymentBridge
}

func NewPaymentHandler(bridge PaymentBridge) *PaymentHandler {
	return &PaymentHandler{bridge: bridge}
}

// GET /api/v1/payments/{provider_order_id}
func (h *PaymentHandler) GetPayment(w http.ResponseWriter, r *http.Request) {
	opts, ok := h.bridge.Lookup(chi.URLParam(r, "provider_order_id"))
	if !ok {
		respondError(w, http.StatusNotFound, "unknown_payment", "no open payment for provider order")
		return
	}
	respondJSON(w, http.StatusOK, opts)
}

// POST /api/v1/payments/{provider_order_id}/success
func (h *PaymentHandler) Succeed(w http.ResponseWriter, r *http.Request) {
	var res payment.Result
	if !decodeJSON(w, r, &res) {
		return
	}
	if res.PaymentID == "" || res.Signature == "" {
		respondError(w, http.StatusBadRequest, "invalid_payment_result", "razorpay_payment_id and razorpay_signature are required")
		return
	}

	id := chi.URLParam(r, "provider_order_id")
	if res.ProviderOrderID == "" {
		res.ProviderOrderID = id
	}
	if err := h.bridge.Succeed(id, res); err != nil {
		handleError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "accepted"})
}

// POST /api/v1/payments/{provider_order_id}/dismiss
func (h *PaymentHandler) Dismiss(w http.ResponseWriter, r *http.Request) {
	if err := h.bridge.Dismiss(chi.URLParam(r, "provider_order_id")); err != nil {
		handleError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "dismissed"})
}
