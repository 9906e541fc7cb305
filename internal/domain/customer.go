package domain

import (
	"strings"
	"sync"
)

type CustomerInfo struct {
	Name  string `json:"customer_name"`
	Phone string `json:"phone_number"`
}

// HasName reports whether the name is non-empty after trimming whitespace.
func (c CustomerInfo) HasName() bool {
	return strings.TrimSpace(c.Name) != ""
}

// CustomerForm is the mutable customer section of the checkout screen.
// Setters may be called from any goroutine.
type CustomerForm struct {
	mu   sync.RWMutex
	info CustomerInfo
}

func NewCustomerForm() *CustomerForm {
	return &CustomerForm{}
}

func (f *CustomerForm) SetName(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.info.Name = name
}

func (f *CustomerForm) SetPhone(phone string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.info.Phone = phone
}

func (f *CustomerForm) Snapshot() CustomerInfo {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.info
}

// Reset clears the form after a completed order.
func (f *CustomerForm) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.info = CustomerInfo{}
}

func trimmed(s string) string {
	return strings.TrimSpace(s)
}
