// Package receipt renders a confirmed order for display and printing.
package receipt

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/fjod/billflow/internal/domain"
	"github.com/shopspring/decimal"
)

const width = 40

type Line struct {
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	LineTotal decimal.Decimal `json:"line_total"`
}

type Receipt struct {
	OrderID           string               `json:"order_id"`
	CustomerName      string               `json:"customer_name"`
	PhoneNumber       string               `json:"phone_number,omitempty"`
	Lines             []Line               `json:"lines"`
	Subtotal          decimal.Decimal      `json:"subtotal"`
	Tax               decimal.Decimal      `json:"tax"`
	GrandTotal        decimal.Decimal      `json:"grand_total"`
	PaymentMethod     domain.PaymentMethod `json:"payment_method"`
	ProviderOrderID   string               `json:"provider_order_id,omitempty"`
	ProviderPaymentID string               `json:"provider_payment_id,omitempty"`
	CreatedAt         time.Time            `json:"created_at"`
}

// Render echoes the confirmed order. Provider identifiers appear only for online payments.
func Render(order *domain.ConfirmedOrder) Receipt {
	r := Receipt{
		OrderID:       order.OrderID,
		CustomerName:  order.Customer.Name,
		PhoneNumber:   order.Customer.Phone,
		Lines:         make([]Line, 0, len(order.Lines)),
		Subtotal:      order.Totals.Subtotal,
		Tax:           order.Totals.Tax,
		GrandTotal:    order.Totals.GrandTotal,
		PaymentMethod: order.PaymentMethod,
		CreatedAt:     order.CreatedAt,
	}
	for _, l := range order.Lines {
		r.Lines = append(r.Lines, Line{
			Name:      l.Name,
			Quantity:  l.Quantity,
			UnitPrice: l.UnitPrice,
			LineTotal: l.LineTotal(),
		})
	}
	if order.PaymentMethod.RequiresProvider() && order.Provider != nil {
		r.ProviderOrderID = order.Provider.ProviderOrderID
		r.ProviderPaymentID = order.Provider.PaymentID
	}
	return r
}

// Format lays the receipt out as fixed-width text. Amounts are shown to two places.
func Format(r Receipt, symbol string) string {
	money := func(d decimal.Decimal) string {
		return symbol + d.StringFixed(2)
	}
	row := func(label, value string) string {
		pad := width - len([]rune(label)) - len([]rune(value))
		if pad < 1 {
			pad = 1
		}
		return label + strings.Repeat(" ", pad) + value
	}

	var lines []string
	lines = append(lines, strings.Repeat("═", width))
	lines = append(lines, center("ORDER RECEIPT"))
	lines = append(lines, strings.Repeat("═", width))
	lines = append(lines, fmt.Sprintf("Order ID: %s", r.OrderID))
	if !r.CreatedAt.IsZero() {
		lines = append(lines, fmt.Sprintf("Date: %s", r.CreatedAt.Format("02 Jan 2006 15:04")))
	}
	lines = append(lines, fmt.Sprintf("Name: %s", r.CustomerName))
	if r.PhoneNumber != "" {
		lines = append(lines, fmt.Sprintf("Phone: %s", r.PhoneNumber))
	}
	lines = append(lines, strings.Repeat("─", width))

	for _, l := range r.Lines {
		lines = append(lines, fmt.Sprintf("%d x %s @ %s = %s", l.Quantity, l.Name, money(l.UnitPrice), money(l.LineTotal)))
	}

	lines = append(lines, strings.Repeat("─", width))
	lines = append(lines, row("Subtotal:", money(r.Subtotal)))
	lines = append(lines, row("Tax:", money(r.Tax)))
	lines = append(lines, row("Grand Total:", money(r.GrandTotal)))
	lines = append(lines, strings.Repeat("─", width))
	lines = append(lines, fmt.Sprintf("Payment: %s", r.PaymentMethod))
	if r.ProviderOrderID != "" {
		lines = append(lines, fmt.Sprintf("Razorpay Order ID: %s", r.ProviderOrderID))
	}
	if r.ProviderPaymentID != "" {
		lines = append(lines, fmt.Sprintf("Razorpay Payment ID: %s", r.ProviderPaymentID))
	}
	lines = append(lines, strings.Repeat("═", width))
	lines = append(lines, center("Thank you for your order!"))
	lines = append(lines, strings.Repeat("═", width))

	return strings.Join(lines, "\n")
}

func center(s string) string {
	pad := (width - len([]rune(s))) / 2
	if pad < 0 {
		pad = 0
	}
	return strings.Repeat(" ", pad) + s
}

// Printer is the host print facility.
type Printer interface {
	Print(ctx context.Context, text string) error
}

// WriterPrinter prints to an io.Writer such as a receipt printer device file.
type WriterPrinter struct {
	mu sync.Mutex
	w  io.Writer
}

func NewWriterPrinter(w io.Writer) *WriterPrinter {
	return &WriterPrinter{w: w}
}

func (p *WriterPrinter) Print(ctx context.Context, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, err := io.WriteString(p.w, text+"\n\n"); err != nil {
		return fmt.Errorf("print receipt: %w", err)
	}
	return nil
}

// Print renders order and sends it to p.
func Print(ctx context.Context, p Printer, order *domain.ConfirmedOrder, symbol string) error {
	return p.Print(ctx, Format(Render(order), symbol))
}
