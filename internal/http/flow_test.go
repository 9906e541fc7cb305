package http

import (
	"net/http"
	"testing"
	"time"

	"github.com/fjod/billflow/internal/cart"
	"github.com/fjod/billflow/internal/checkout"
	"github.com/fjod/billflow/internal/domain"
	"github.com/fjod/billflow/internal/payment"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newFlowFixture wires a real orchestrator, cart and payment bridge behind the router.
func newFlowFixture(t *testing.T) (*fixture, *GatewayMock) {
	t.Helper()
	f := newFixture(t)
	gw := &GatewayMock{}
	f.cart = cart.NewEngine()
	orch := checkout.New(f.cart, gw, f.bridge, nil, checkout.Config{
		TaxRate:     testTaxRate,
		Currency:    "INR",
		ProviderKey: "rzp_test_key",
	})
	f.router = NewRouter(Handlers{
		Catalog:  NewCatalogHandler(f.catalog, time.Second),
		Cart:     NewCartHandler(f.cart, f.catalog, orch, testTaxRate, time.Second),
		Checkout: NewCheckoutHandler(orch, f.form, nil),
		Payments: NewPaymentHandler(f.bridge),
		Receipts: NewReceiptHandler(f.attempts, f.printer, "₹", time.Second),
		Orders:   NewOrdersHandler(f.history, time.Second),
	}, RouterConfig{RequestTimeout: 5 * time.Second})
	return f, gw
}

func (f *fixture) status(t *testing.T) CheckoutStatusDTO {
	t.Helper()
	rec := f.do(t, http.MethodGet, "/api/v1/checkout", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	return decode[CheckoutStatusDTO](t, rec)
}

func TestFlow_CashOrderCompletes(t *testing.T) {
	f, _ := newFlowFixture(t)
	name := "Asha"

	f.do(t, http.MethodPost, "/api/v1/cart/items", AddItemRequestDTO{ItemID: "i1"})
	rec := f.do(t, http.MethodPost, "/api/v1/checkout", PlaceOrderRequestDTO{
		CustomerDTO:   CustomerDTO{CustomerName: &name},
		PaymentMethod: "CASH",
	})
	require.Equal(t, http.StatusAccepted, rec.Code)

	require.Eventually(t, func() bool {
		return f.status(t).State == domain.CheckoutStateCompleted
	}, 2*time.Second, 10*time.Millisecond)

	s := f.status(t)
	assert.False(t, s.Loading)
	require.NotNil(t, s.Order)
	assert.Equal(t, "ORD-1", s.Order.OrderID)
	assert.Empty(t, f.cart.Lines())
	assert.Eventually(t, func() bool { return f.form.Snapshot().Name == "" }, time.Second, 10*time.Millisecond)
}

func TestFlow_OnlineOrderThroughBridge(t *testing.T) {
	f, gw := newFlowFixture(t)
	name := "Asha"

	f.do(t, http.MethodPost, "/api/v1/cart/items", AddItemRequestDTO{ItemID: "i2"})
	rec := f.do(t, http.MethodPost, "/api/v1/checkout", PlaceOrderRequestDTO{
		CustomerDTO:   CustomerDTO{CustomerName: &name},
		PaymentMethod: "online",
	})
	require.Equal(t, http.StatusAccepted, rec.Code)

	require.Eventually(t, func() bool {
		s := f.status(t)
		return s.State == domain.CheckoutStateAwaitingPayment && s.Payment != nil
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, "order_P1", f.status(t).Payment.ProviderOrderID)

	rec = f.do(t, http.MethodPost, "/api/v1/checkout", PlaceOrderRequestDTO{PaymentMethod: "CASH"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/v1/payments/order_P1/success", payment.Result{PaymentID: "pay_1", Signature: "sig_1"})
	require.Equal(t, http.StatusOK, rec.Code)

	require.Eventually(t, func() bool {
		return f.status(t).State == domain.CheckoutStateCompleted
	}, 2*time.Second, 10*time.Millisecond)

	s := f.status(t)
	require.NotNil(t, s.Order)
	require.NotNil(t, s.Order.Provider)
	assert.Equal(t, "pay_1", s.Order.Provider.PaymentID)
	assert.Empty(t, f.cart.Lines())

	gw.mu.Lock()
	defer gw.mu.Unlock()
	require.Len(t, gw.verified, 1)
	assert.Equal(t, domain.PaymentVerification{
		ProviderOrderID: "order_P1",
		PaymentID:       "pay_1",
		Signature:       "sig_1",
		OrderID:         "ORD-1",
	}, gw.verified[0])
}

func TestFlow_OnlineOrderDismissedKeepsCart(t *testing.T) {
	f, _ := newFlowFixture(t)
	name := "Asha"

	f.do(t, http.MethodPost, "/api/v1/cart/items", AddItemRequestDTO{ItemID: "i1"})
	f.do(t, http.MethodPost, "/api/v1/checkout", PlaceOrderRequestDTO{
		CustomerDTO:   CustomerDTO{CustomerName: &name},
		PaymentMethod: "ONLINE",
	})
	require.Eventually(t, func() bool {
		return f.status(t).State == domain.CheckoutStateAwaitingPayment
	}, 2*time.Second, 10*time.Millisecond)

	rec := f.do(t, http.MethodPost, "/api/v1/cart/items", AddItemRequestDTO{ItemID: "i2"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/v1/payments/order_P1/dismiss", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	require.Eventually(t, func() bool {
		return f.status(t).State == domain.CheckoutStatePaymentFailed
	}, 2*time.Second, 10*time.Millisecond)

	s := f.status(t)
	assert.Equal(t, "payment cancelled", s.Message)
	assert.Len(t, f.cart.Lines(), 1)
	assert.Equal(t, "Asha", f.form.Snapshot().Name)
}

func TestFlow_ValidationRejectsBeforeAccepting(t *testing.T) {
	f, _ := newFlowFixture(t)

	rec := f.do(t, http.MethodPost, "/api/v1/checkout", PlaceOrderRequestDTO{PaymentMethod: "CASH"})

	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "missing customer name", decode[ErrorResponse](t, rec).Error)
	assert.Equal(t, domain.CheckoutStateRejected, f.status(t).State)
}
