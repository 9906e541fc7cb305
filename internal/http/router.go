// Package http exposes the billing terminal over a JSON API.
package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

type Handlers struct {
	Catalog  *CatalogHandler
	Cart     *CartHandler
	Checkout *CheckoutHandler
	// Payments is nil when the widget resolves without browser callbacks.
	Payments *PaymentHandler
	Receipts *ReceiptHandler
	Orders   *OrdersHandler
}

type RouterConfig struct {
	RequestTimeout     time.Duration
	MaxRequestBodySize int64
	Logger             *zap.Logger
}

func NewRouter(h Handlers, cfg RouterConfig) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(RequestIDMiddleware)
	r.Use(Logger(cfg.Logger))
	r.Use(middleware.Recoverer)
	if cfg.RequestTimeout > 0 {
		r.Use(middleware.Timeout(cfg.RequestTimeout))
	}
	if cfg.MaxRequestBodySize > 0 {
		r.Use(MaxBodySize(cfg.MaxRequestBodySize))
	}

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/catalog", func(r chi.Router) {
			r.Get("/categories", h.Catalog.ListCategories)
			r.Get("/items", h.Catalog.ListItems)
			r.Post("/refresh", h.Catalog.Refresh)
		})
		r.Route("/cart", func(r chi.Router) {
			r.Get("/", h.Cart.GetCart)
			r.Delete("/", h.Cart.ClearCart)
			r.Post("/items", h.Cart.AddItem)
			r.Put("/items/{item_id}", h.Cart.UpdateQuantity)
			r.Delete("/items/{item_id}", h.Cart.RemoveItem)
		})
		r.Route("/checkout", func(r chi.Router) {
			r.Get("/", h.Checkout.GetStatus)
			r.Post("/", h.Checkout.PlaceOrder)
			r.Put("/customer", h.Checkout.UpdateCustomer)
		})
		if h.Payments != nil {
			r.Route("/payments/{provider_order_id}", func(r chi.Router) {
				r.Get("/", h.Payments.GetPayment)
				r.Post("/success", h.Payments.Succeed)
				r.Post("/dismiss", h.Payments.Dismiss)
			})
		}
		r.Route("/receipts/{order_id}", func(r chi.Router) {
			r.Get("/", h.Receipts.GetReceipt)
			r.Post("/print", h.Receipts.PrintReceipt)
		})
		r.Route("/orders", func(r chi.Router) {
			r.Get("/", h.Orders.ListOrders)
			r.Delete("/{order_id}", h.Orders.DeleteOrder)
		})
	})

	return r
}
