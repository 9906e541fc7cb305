package http

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/fjod/billflow/internal/domain"
	"github.com/fjod/billflow/internal/receipt"
	"github.com/go-chi/chi/v5"
)

type AttemptFinder interface {
	GetAttemptByOrderID(ctx context.Context, orderID string) (*domain.CheckoutAttempt, error)
}

type ReceiptHandler struct {
	attempts AttemptFinder
	printer  receipt.Printer
	symbol   string
	timeout  time.Duration
}

func NewReceiptHandler(attempts AttemptFinder, printer receipt.Printer, symbol string, timeout time.Duration) *ReceiptHandler {
	return &ReceiptHandler{
		attempts: attempts,
		printer:  printer,
		symbol:   symbol,
		timeout:  timeout,
	}
}

// GET /api/v1/receipts/{order_id}
//
// Responds with plain text when the client asks for text/plain or ?format=text.
func (h *ReceiptHandler) GetReceipt(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	order, ok := h.completedOrder(ctx, w, chi.URLParam(r, "order_id"))
	if !ok {
		return
	}

	rec := receipt.Render(order)
	if wantsText(r) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(receipt.Format(rec, h.symbol)))
		return
	}
	respondJSON(w, http.StatusOK, rec)
}

// POST /api/v1/receipts/{order_id}/print
func (h *ReceiptHandler) PrintReceipt(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	order, ok := h.completedOrder(ctx, w, chi.URLParam(r, "order_id"))
	if !ok {
		return
	}

	if err := receipt.Print(ctx, h.printer, order, h.symbol); err != nil {
		respondError(w, http.StatusInternalServerError, "print_failed", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "printed"})
}

func (h *ReceiptHandler) completedOrder(ctx context.Context, w http.ResponseWriter, orderID string) (*domain.ConfirmedOrder, bool) {
	a, err := h.attempts.GetAttemptByOrderID(ctx, orderID)
	if err != nil {
		handleError(w, err)
		return nil, false
	}
	if a.State != domain.CheckoutStateCompleted || a.Order == nil {
		respondError(w, http.StatusNotFound, "order_not_completed", "no receipt for an order that did not complete")
		return nil, false
	}
	return a.Order, true
}

func wantsText(r *http.Request) bool {
	if r.URL.Query().Get("format") == "text" {
		return true
	}
	accept := r.Header.Get("Accept")
	return strings.Contains(accept, "text/plain") && !strings.Contains(accept, "application/json")
}
