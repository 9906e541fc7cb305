package http

import (
	"context"
	"net/http"

	"github.com/fjod/billflow/internal/checkout"
	"github.com/fjod/billflow/internal/domain"
	"github.com/fjod/billflow/pkg/logger"
	"go.uber.org/zap"
)

type Checkout interface {
	PlaceOrderAsync(ctx context.Context, req checkout.Request) (<-chan checkout.Result, error)
	Status() checkout.Snapshot
}

type CheckoutHandler struct {
	checkout Checkout
	form     *domain.CustomerForm
	log      *zap.Logger
}

func NewCheckoutHandler(c Checkout, form *domain.CustomerForm, log *zap.Logger) *CheckoutHandler {
	return &CheckoutHandler{
		checkout: c,
		form:     form,
		log:      logger.OrNop(log),
	}
}

type CustomerDTO struct {
	CustomerName *string `json:"customer_name"`
	PhoneNumber  *string `json:"phone_number"`
}

type PlaceOrderRequestDTO struct {
	CustomerDTO
	PaymentMethod string `json:"payment_method"`
}

type CheckoutStatusDTO struct {
	checkout.Snapshot
	Customer domain.CustomerInfo `json:"customer"`
}

// GET /api/v1/checkout
func (h *CheckoutHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.status())
}

// PUT /api/v1/checkout/customer
func (h *CheckoutHandler) UpdateCustomer(w http.ResponseWriter, r *http.Request) {
	var req CustomerDTO
	if !decodeJSON(w, r, &req) {
		return
	}
	h.applyCustomer(req)
	respondJSON(w, http.StatusOK, h.status())
}

// POST /api/v1/checkout
//
// The attempt keeps running after the response is written; poll GET /checkout for the outcome.
func (h *CheckoutHandler) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	var req PlaceOrderRequestDTO
	if !decodeJSON(w, r, &req) {
		return
	}
	h.applyCustomer(req.CustomerDTO)

	method, _ := domain.ParsePaymentMethod(req.PaymentMethod)
	ctx := context.WithoutCancel(r.Context())
	results, err := h.checkout.PlaceOrderAsync(ctx, checkout.Request{
		Customer:      h.form.Snapshot(),
		PaymentMethod: method,
	})
	if err != nil {
		handleError(w, err)
		return
	}

	go h.awaitResult(ctx, results)
	respondJSON(w, http.StatusAccepted, h.status())
}

// awaitResult clears the customer form once an order completes.
func (h *CheckoutHandler) awaitResult(ctx context.Context, results <-chan checkout.Result) {
	res, ok := <-results
	if !ok {
		return
	}
	l := logger.WithTrace(ctx, h.log)
	if res.Err != nil {
		l.Info("checkout finished without order", zap.String("reason", checkout.UserMessage(res.Err)))
		return
	}
	h.form.Reset()
	l.Info("checkout completed", zap.String("order_id", res.Order.OrderID))
}

func (h *CheckoutHandler) applyCustomer(req CustomerDTO) {
	if req.CustomerName != nil {
		h.form.SetName(*req.CustomerName)
	}
	if req.PhoneNumber != nil {
		h.form.SetPhone(*req.PhoneNumber)
	}
}

func (h *CheckoutHandler) status() CheckoutStatusDTO {
	return CheckoutStatusDTO{
		Snapshot: h.checkout.Status(),
		Customer: h.form.Snapshot(),
	}
}
