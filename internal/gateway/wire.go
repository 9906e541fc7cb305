package gateway

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/fjod/billflow/internal/domain"
	"github.com/shopspring/decimal"
)

type categoryPayload struct {
	CategoryID  string `json:"categoryId"`
	Name        string `json:"name"`
	Description string `json:"description"`
	BgColor     string `json:"bgColor"`
	ImgURL      string `json:"imgUrl"`
	Items       int    `json:"items"`
}

func (p categoryPayload) toDomain() domain.Category {
	return domain.Category{
		ID:          p.CategoryID,
		Name:        p.Name,
		Description: p.Description,
		BgColor:     p.BgColor,
		ImageURL:    p.ImgURL,
		ItemCount:   p.Items,
	}
}

type itemPayload struct {
	ItemID       string          `json:"itemId"`
	Name         string          `json:"name"`
	Price        decimal.Decimal `json:"price"`
	CategoryID   string          `json:"categoryId"`
	CategoryName string          `json:"categoryName"`
	ImgURL       string          `json:"imgUrl"`
	Description  string          `json:"description"`
}

func (p itemPayload) toDomain() domain.CatalogItem {
	return domain.CatalogItem{
		ID:           p.ItemID,
		Name:         p.Name,
		Price:        p.Price,
		CategoryID:   p.CategoryID,
		CategoryName: p.CategoryName,
		ImageURL:     p.ImgURL,
		Description:  p.Description,
	}
}

// Amounts are sent as JSON numbers; the backend does not accept quoted decimals.
type orderLinePayload struct {
	ItemID   string  `json:"itemId"`
	Name     string  `json:"name"`
	Price    float64 `json:"price"`
	Quantity int     `json:"quantity"`
}

type orderRequest struct {
	CustomerName  string             `json:"customerName"`
	PhoneNumber   string             `json:"phoneNumber"`
	Items         []orderLinePayload `json:"items"`
	Subtotal      float64            `json:"subtotal"`
	Tax           float64            `json:"tax"`
	GrandTotal    float64            `json:"grandTotal"`
	PaymentMethod string             `json:"paymentMethod"`
}

func newOrderRequest(d domain.OrderDraft) orderRequest {
	items := make([]orderLinePayload, 0, len(d.Lines))
	for _, l := range d.Lines {
		items = append(items, orderLinePayload{
			ItemID:   l.ItemID,
			Name:     l.Name,
			Price:    l.UnitPrice.InexactFloat64(),
			Quantity: l.Quantity,
		})
	}
	return orderRequest{
		CustomerName:  d.Customer.Name,
		PhoneNumber:   d.Customer.Phone,
		Items:         items,
		Subtotal:      d.Totals.Subtotal.InexactFloat64(),
		Tax:           d.Totals.Tax.InexactFloat64(),
		GrandTotal:    d.Totals.GrandTotal.InexactFloat64(),
		PaymentMethod: d.PaymentMethod.String(),
	}
}

type paymentDetailsPayload struct {
	RazorpayOrderID   string `json:"razorpayOrderId"`
	RazorpayPaymentID string `json:"razorpayPaymentId"`
	RazorpaySignature string `json:"razorpaySignature"`
	Status            string `json:"status"`
}

type orderResponse struct {
	OrderID        string                 `json:"orderId"`
	CustomerName   string                 `json:"customerName"`
	PhoneNumber    string                 `json:"phoneNumber"`
	GrandTotal     decimal.Decimal        `json:"grandTotal"`
	PaymentMethod  string                 `json:"paymentMethod"`
	PaymentDetails *paymentDetailsPayload `json:"paymentDetails"`
	Status         domain.OrderStatus     `json:"status"`
	CreatedAt      timestamp              `json:"createdAt"`
}

// toConfirmed keeps the submitted draft as the source of truth for lines and totals
// and takes identity fields from the server.
func (p orderResponse) toConfirmed(d domain.OrderDraft) *domain.ConfirmedOrder {
	order := &domain.ConfirmedOrder{
		OrderID:       p.OrderID,
		Customer:      d.Customer,
		Lines:         d.Lines,
		Totals:        d.Totals,
		PaymentMethod: d.PaymentMethod,
		CreatedAt:     p.CreatedAt.Time,
	}
	if order.CreatedAt.IsZero() {
		order.CreatedAt = time.Now().UTC()
	}
	if pd := p.PaymentDetails; pd != nil && pd.RazorpayOrderID != "" {
		order.Provider = &domain.ProviderPayment{
			ProviderOrderID: pd.RazorpayOrderID,
			PaymentID:       pd.RazorpayPaymentID,
			Signature:       pd.RazorpaySignature,
			Status:          pd.Status,
		}
	}
	return order
}

func (p orderResponse) toRecord() domain.OrderRecord {
	method, _ := domain.ParsePaymentMethod(p.PaymentMethod)
	return domain.OrderRecord{
		OrderID:       p.OrderID,
		CustomerName:  p.CustomerName,
		PhoneNumber:   p.PhoneNumber,
		GrandTotal:    p.GrandTotal,
		PaymentMethod: method,
		Status:        p.Status,
		CreatedAt:     p.CreatedAt.Time,
	}
}

type providerOrderRequest struct {
	Amount   float64 `json:"amount"`
	Currency string  `json:"currency"`
}

type providerOrderResponse struct {
	ID       string          `json:"id"`
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency"`
	Status   string          `json:"status"`
}

type verifyRequest struct {
	RazorpayOrderID   string `json:"razorpayOrderId"`
	RazorpayPaymentID string `json:"razorpayPaymentId"`
	RazorpaySignature string `json:"razorpaySignature"`
	OrderID           string `json:"orderId"`
}

type errorPayload struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}

// timestamp accepts RFC 3339 and zone-less ISO local date-times.
type timestamp struct {
	time.Time
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
}

func (t *timestamp) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		// null or a non-string value leaves the zero time
		return nil
	}
	s = strings.TrimSpace(s)
	for _, layout := range timestampLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			t.Time = parsed
			return nil
		}
	}
	return nil
}
