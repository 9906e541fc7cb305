package checkout

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/fjod/billflow/internal/domain"
	"github.com/fjod/billflow/internal/payment"
	"github.com/shopspring/decimal"
)

// MockGateway implements OrderGateway and captures every call.
type MockGateway struct {
	mu sync.Mutex

	CreateErr   error
	ProviderErr error
	VerifyErr   error
	// Block, when set, holds CreateOrder until it is closed. Entered is signalled on entry.
	Block   chan struct{}
	Entered chan struct{}

	Drafts        []domain.OrderDraft
	Keys          []string
	Amounts       []decimal.Decimal
	Currencies    []string
	Verifications []domain.PaymentVerification
	orderSeq      int
}

func (m *MockGateway) CreateOrder(_ context.Context, draft domain.OrderDraft, key string) (*domain.ConfirmedOrder, error) {
	if m.Entered != nil {
		m.Entered <- struct{}{}
	}
	if m.Block != nil {
		<-m.Block
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Drafts = append(m.Drafts, draft)
	m.Keys = append(m.Keys, key)
	if m.CreateErr != nil {
		return nil, m.CreateErr
	}
	m.orderSeq++
	return &domain.ConfirmedOrder{
		OrderID:       fmt.Sprintf("ORD-%d", m.orderSeq),
		Customer:      draft.Customer,
		Lines:         draft.Lines,
		Totals:        draft.Totals,
		PaymentMethod: draft.PaymentMethod,
	}, nil
}

func (m *MockGateway) CreatePaymentProviderOrder(_ context.Context, amount decimal.Decimal, currency string) (*domain.ProviderOrder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Amounts = append(m.Amounts, amount)
	m.Currencies = append(m.Currencies, currency)
	if m.ProviderErr != nil {
		return nil, m.ProviderErr
	}
	return &domain.ProviderOrder{ID: "order_P1", Amount: amount, Currency: currency, Status: "created"}, nil
}

func (m *MockGateway) VerifyPayment(_ context.Context, v domain.PaymentVerification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Verifications = append(m.Verifications, v)
	return m.VerifyErr
}

func (m *MockGateway) CreateCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Drafts)
}

func (m *MockGateway) ProviderCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Amounts)
}

func (m *MockGateway) VerifyCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Verifications)
}

// MockWidget opens payment.Pending handles. OnOpen can resolve them immediately.
type MockWidget struct {
	mu      sync.Mutex
	Err     error
	OnOpen  func(p *payment.Pending)
	Opened  []payment.Options
	handles []*payment.Pending
}

func (m *MockWidget) Open(_ context.Context, opts payment.Options) (payment.Handle, error) {
	m.mu.Lock()
	if m.Err != nil {
		m.mu.Unlock()
		return nil, m.Err
	}
	p := payment.NewPending(opts)
	m.Opened = append(m.Opened, opts)
	m.handles = append(m.handles, p)
	onOpen := m.OnOpen
	m.mu.Unlock()

	if onOpen != nil {
		onOpen(p)
	}
	return p, nil
}

func (m *MockWidget) Last() *payment.Pending {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.handles) == 0 {
		return nil
	}
	return m.handles[len(m.handles)-1]
}

func (m *MockWidget) OpenCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Opened)
}

// MockNotifier records the signal sequence.
type MockNotifier struct {
	mu        sync.Mutex
	Loadings  []bool
	Successes []*domain.ConfirmedOrder
	Failures  []error
}

func (m *MockNotifier) Loading(on bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Loadings = append(m.Loadings, on)
}

func (m *MockNotifier) Succeeded(order *domain.ConfirmedOrder) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Successes = append(m.Successes, order)
}

func (m *MockNotifier) Failed(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Failures = append(m.Failures, err)
}

func (m *MockNotifier) LoadingSeq() []bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]bool, len(m.Loadings))
	copy(out, m.Loadings)
	return out
}

// MockRecorder captures recorded attempts.
type MockRecorder struct {
	mu       sync.Mutex
	Err      error
	Attempts []domain.CheckoutAttempt
}

func (m *MockRecorder) RecordAttempt(_ context.Context, a domain.CheckoutAttempt) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Attempts = append(m.Attempts, a)
	return m.Err
}

var errBackendDown = errors.New("backend down")
