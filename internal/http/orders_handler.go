package http

import (
	"context"
	"net/http"
	"time"

	"github.com/fjod/billflow/internal/domain"
	"github.com/fjod/billflow/internal/history"
	"github.com/go-chi/chi/v5"
)

type OrderHistory interface {
	LatestOrders(ctx context.Context) ([]domain.OrderRecord, error)
	DeleteOrder(ctx context.Context, orderID string) error
}

type OrdersHandler struct {
	orders  OrderHistory
	timeout time.Duration
}

func NewOrdersHandler(orders OrderHistory, timeout time.Duration) *OrdersHandler {
	return &OrdersHandler{
		orders:  orders,
		timeout: timeout,
	}
}

type OrdersResponseDTO struct {
	Orders  []domain.OrderRecord `json:"orders"`
	Summary history.Summary      `json:"summary"`
}

// GET /api/v1/orders?q=
//
// The summary always covers every recent order, not just the matches.
func (h *OrdersHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	orders, err := h.orders.LatestOrders(ctx)
	if err != nil {
		handleError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, OrdersResponseDTO{
		Orders:  history.Search(orders, r.URL.Query().Get("q")),
		Summary: history.Summarize(orders),
	})
}

// DELETE /api/v1/orders/{order_id}
func (h *OrdersHandler) DeleteOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	orderID := chi.URLParam(r, "order_id")
	if orderID == "" {
		respondError(w, http.StatusBadRequest, "missing_order_id", "order_id is required")
		return
	}

	if err := h.orders.DeleteOrder(ctx, orderID); err != nil {
		handleError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
