package main

import (
	"context"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fjod/billflow/internal/cart"
	"github.com/fjod/billflow/internal/checkout"
	"github.com/fjod/billflow/internal/domain"
	"github.com/fjod/billflow/internal/journal"
	"github.com/fjod/billflow/internal/payment"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type backendStub struct{}

func (backendStub) CreateOrder(_ context.Context, draft domain.OrderDraft, _ string) (*domain.ConfirmedOrder, error) {
	return &domain.ConfirmedOrder{
		OrderID:       "ORD-7",
		Customer:      draft.Customer,
		Lines:         draft.Lines,
		Totals:        draft.Totals,
		PaymentMethod: draft.PaymentMethod,
	}, nil
}

func (backendStub) CreatePaymentProviderOrder(_ context.Context, amount decimal.Decimal, currency string) (*domain.ProviderOrder, error) {
	return &domain.ProviderOrder{ID: "order_P7", Amount: amount, Currency: currency, Status: "created"}, nil
}

func (backendStub) VerifyPayment(context.Context, domain.PaymentVerification) error {
	return nil
}

func TestDrain_RecordsAttemptAwaitingPayment(t *testing.T) {
	repo, err := journal.NewRepository(journal.DriverSQLite, filepath.Join(t.TempDir(), "journal.db"), nil)
	require.NoError(t, err)
	require.NoError(t, repo.RunMigrations())

	bridge := payment.NewBridge(payment.BridgeConfig{TTL: time.Minute}, nil)
	engine := cart.NewEngine()
	engine.AddItem(domain.CatalogItem{ID: "i1", Name: "Thali", Price: decimal.NewFromInt(100)})
	orch := checkout.New(engine, backendStub{}, bridge, nil, checkout.Config{
		TaxRate:     decimal.RequireFromString("0.05"),
		Currency:    "INR",
		ProviderKey: "rzp_test_key",
	}, checkout.WithRecorder(repo))

	_, err = orch.PlaceOrderAsync(context.Background(), checkout.Request{
		Customer:      domain.CustomerInfo{Name: "Asha"},
		PaymentMethod: domain.PaymentMethodOnline,
	})
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		_, open := bridge.Lookup("order_P7")
		return open
	}, time.Second, 5*time.Millisecond)
	require.Equal(t, domain.CheckoutStateAwaitingPayment, orch.Status().State)

	workerCtx, stopWorkers := context.WithCancel(context.Background())
	var workers sync.WaitGroup
	var workerStopped atomic.Bool
	workers.Add(1)
	go func() {
		defer workers.Done()
		<-workerCtx.Done()
		workerStopped.Store(true)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	drain(ctx, bridge.Close, orch, stopWorkers, &workers, zap.NewNop())

	assert.True(t, workerStopped.Load())
	assert.Equal(t, domain.CheckoutStatePaymentFailed, orch.Status().State)

	got, err := repo.GetAttemptByOrderID(context.Background(), "ORD-7")
	require.NoError(t, err)
	assert.Equal(t, domain.CheckoutStatePaymentFailed, got.State)
	assert.Equal(t, "order_P7", got.ProviderOrderID)

	events, err := repo.GetUnprocessedEvents(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, journal.EventOrderPaymentUnconfirmed, events[0].EventType)

	require.NoError(t, repo.Close())
}
