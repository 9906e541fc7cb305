package cart

import (
	"fmt"
	"sync"

	"github.com/fjod/billflow/internal/domain"
	"github.com/shopspring/decimal"
)

// Engine is the in-memory cart of one terminal session.
// Lines keep insertion order and there is at most one line per item.
type Engine struct {
	mu    sync.RWMutex
	lines []domain.CartLine
}

func NewEngine() *Engine {
	return &Engine{}
}

// AddItem increments the line for item or appends a new one with quantity 1.
// Name and price are captured on first add only.
func (e *Engine) AddItem(item domain.CatalogItem) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if i := e.indexOf(item.ID); i >= 0 {
		e.lines[i].Quantity++
		return
	}
	e.lines = append(e.lines, domain.CartLine{
		ItemID:    item.ID,
		Name:      item.Name,
		UnitPrice: item.Price,
		Quantity:  1,
	})
}

// RemoveItem is a no-op when the item is absent.
func (e *Engine) RemoveItem(itemID string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if i := e.indexOf(itemID); i >= 0 {
		e.lines = append(e.lines[:i], e.lines[i+1:]...)
	}
}

// UpdateQuantity replaces the quantity of an existing line.
// Quantities below 1 are rejected and the cart is left unchanged; use RemoveItem to drop a line.
func (e *Engine) UpdateQuantity(itemID string, quantity int) error {
	if quantity < 1 {
		return fmt.Errorf("update %s to %d: %w", itemID, quantity, ErrInvalidQuantity)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	i := e.indexOf(itemID)
	if i < 0 {
		return fmt.Errorf("update %s: %w", itemID, ErrItemNotInCart)
	}
	e.lines[i].Quantity = quantity
	return nil
}

func (e *Engine) Clear() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.lines = nil
}

// Lines returns a copy of the current lines in insertion order.
func (e *Engine) Lines() []domain.CartLine {
	e.mu.RLock()
	defer e.mu.RUnlock()

	out := make([]domain.CartLine, len(e.lines))
	copy(out, e.lines)
	return out
}

func (e *Engine) Len() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.lines)
}

func (e *Engine) IsEmpty() bool {
	return e.Len() == 0
}

// Totals is computed from the current state on every call.
func (e *Engine) Totals(taxRate decimal.Decimal) domain.Totals {
	return domain.ComputeTotals(e.Lines(), taxRate)
}

func (e *Engine) indexOf(itemID string) int {
	for i := range e.lines {
		if e.lines[i].ItemID == itemID {
			return i
		}
	}
	return -1
}
