package http

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/fjod/billflow/internal/checkout"
	"github.com/fjod/billflow/internal/domain"
	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

type CartEngine interface {
	AddItem(item domain.CatalogItem)
	RemoveItem(itemID string)
	UpdateQuantity(itemID string, quantity int) error
	Clear()
	Lines() []domain.CartLine
}

// CheckoutStatus reports whether an attempt is in flight. The cart is frozen until it ends.
type CheckoutStatus interface {
	Status() checkout.Snapshot
}

type CartHandler struct {
	cart     CartEngine
	catalog  CatalogStore
	checkout CheckoutStatus
	taxRate  decimal.Decimal
	timeout  time.Duration
}

// NewCartHandler builds the cart endpoints. status may be nil, which never freezes the cart.
func NewCartHandler(cart CartEngine, catalog CatalogStore, status CheckoutStatus, taxRate decimal.Decimal, timeout time.Duration) *CartHandler {
	return &CartHandler{
		cart:     cart,
		catalog:  catalog,
		checkout: status,
		taxRate:  taxRate,
		timeout:  timeout,
	}
}

type AddItemRequestDTO struct {
	ItemID string `json:"item_id"`
}

type UpdateQuantityRequestDTO struct {
	Quantity int `json:"quantity"`
}

type CartLineDTO struct {
	ItemID    string          `json:"item_id"`
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Quantity  int             `json:"quantity"`
	LineTotal decimal.Decimal `json:"line_total"`
}

type CartResponseDTO struct {
	Lines      []CartLineDTO   `json:"lines"`
	ItemCount  int             `json:"item_count"`
	Subtotal   decimal.Decimal `json:"subtotal"`
	Tax        decimal.Decimal `json:"tax"`
	GrandTotal decimal.Decimal `json:"grand_total"`
}

// GET /api/v1/cart
func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.view())
}

// POST /api/v1/cart/items
func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()
	if h.frozen(w) {
		return
	}

	var req AddItemRequestDTO
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.ItemID) == "" {
		respondError(w, http.StatusBadRequest, "invalid_item_id", "item_id is required")
		return
	}

	item, ok := h.catalog.Item(ctx, req.ItemID)
	if !ok {
		respondError(w, http.StatusNotFound, "item_not_found", "item not in catalog")
		return
	}

	h.cart.AddItem(item)
	respondJSON(w, http.StatusCreated, h.view())
}

// PUT /api/v1/cart/items/{item_id}
func (h *CartHandler) UpdateQuantity(w http.ResponseWriter, r *http.Request) {
	itemID := chi.URLParam(r, "item_id")
	if h.frozen(w) {
		return
	}

	var req UpdateQuantityRequestDTO
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := h.cart.UpdateQuantity(itemID, req.Quantity); err != nil {
		handleError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, h.view())
}

// DELETE /api/v1/cart/items/{item_id}
func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	if h.frozen(w) {
		return
	}
	h.cart.RemoveItem(chi.URLParam(r, "item_id"))
	respondJSON(w, http.StatusOK, h.view())
}

// DELETE /api/v1/cart
func (h *CartHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	if h.frozen(w) {
		return
	}
	h.cart.Clear()
	respondJSON(w, http.StatusOK, h.view())
}

// frozen rejects a mutation while a checkout attempt holds the cart snapshot.
func (h *CartHandler) frozen(w http.ResponseWriter) bool {
	if h.checkout == nil || !h.checkout.Status().State.IsBusy() {
		return false
	}
	handleError(w, checkout.ErrCheckoutInProgress)
	return true
}

// view prices a single snapshot of the lines so totals always match the rows shown.
func (h *CartHandler) view() CartResponseDTO {
	lines := h.cart.Lines()
	totals := domain.ComputeTotals(lines, h.taxRate)

	dto := CartResponseDTO{
		Lines:      make([]CartLineDTO, 0, len(lines)),
		Subtotal:   totals.Subtotal,
		Tax:        totals.Tax,
		GrandTotal: totals.GrandTotal,
	}
	for _, l := range lines {
		dto.Lines = append(dto.Lines, CartLineDTO{
			ItemID:    l.ItemID,
			Name:      l.Name,
			UnitPrice: l.UnitPrice,
			Quantity:  l.Quantity,
			LineTotal: l.LineTotal(),
		})
		dto.ItemCount += l.Quantity
	}
	return dto
}
