package journal

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/fjod/billflow/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

func setupSQLite(t *testing.T) *Repository {
	t.Helper()
	repo, err := NewRepository(DriverSQLite, filepath.Join(t.TempDir(), "journal.db"), nil)
	require.NoError(t, err)
	require.NoError(t, repo.RunMigrations())
	t.Cleanup(func() { repo.Close() })
	return repo
}

func setupPostgres(t *testing.T) *Repository {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping postgres container test in short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %s", err)
		}
	})

	dsn, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	repo, err := NewRepository(DriverPostgres, dsn, nil)
	require.NoError(t, err)
	require.NoError(t, repo.RunMigrations())
	t.Cleanup(func() { repo.Close() })
	return repo
}

var testTaxRate = decimal.RequireFromString("0.05")

func attempt(id string, state domain.CheckoutState, orderID string, finished time.Time) domain.CheckoutAttempt {
	lines := []domain.CartLine{
		{ItemID: "i1", Name: "Thali", UnitPrice: decimal.NewFromInt(100), Quantity: 2},
		{ItemID: "i2", Name: "Lassi", UnitPrice: decimal.NewFromInt(50), Quantity: 1},
	}
	a := domain.CheckoutAttempt{
		ID:            id,
		State:         state,
		Customer:      domain.CustomerInfo{Name: "Asha", Phone: "99999"},
		PaymentMethod: domain.PaymentMethodCash,
		Lines:         lines,
		Totals:        domain.ComputeTotals(lines, testTaxRate),
		StartedAt:     finished.Add(-2 * time.Second),
		FinishedAt:    finished,
	}
	if orderID != "" {
		a.Order = &domain.ConfirmedOrder{
			OrderID:       orderID,
			Customer:      a.Customer,
			Lines:         lines,
			Totals:        a.Totals,
			PaymentMethod: a.PaymentMethod,
			CreatedAt:     finished,
		}
	}
	return a
}

func forEachDriver(t *testing.T, fn func(t *testing.T, repo *Repository)) {
	t.Run("sqlite", func(t *testing.T) { fn(t, setupSQLite(t)) })
	t.Run("postgres", func(t *testing.T) { fn(t, setupPostgres(t)) })
}

func TestNewRepository_UnsupportedDriver(t *testing.T) {
	_, err := NewRepository("mysql", "dsn", nil)
	require.ErrorIs(t, err, ErrUnsupportedDriver)
}

func TestRunMigrations_Idempotent(t *testing.T) {
	repo := setupSQLite(t)
	require.NoError(t, repo.RunMigrations())
}

func TestRecordAttempt_CompletedRoundTrip(t *testing.T) {
	forEachDriver(t, func(t *testing.T, repo *Repository) {
		ctx := context.Background()
		finished := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
		require.NoError(t, repo.RecordAttempt(ctx, attempt("a-1", domain.CheckoutStateCompleted, "ORD-1", finished)))

		got, err := repo.GetAttemptByOrderID(ctx, "ORD-1")
		require.NoError(t, err)

		assert.Equal(t, "a-1", got.ID)
		assert.Equal(t, domain.CheckoutStateCompleted, got.State)
		assert.Equal(t, "Asha", got.Customer.Name)
		assert.Equal(t, domain.PaymentMethodCash, got.PaymentMethod)
		require.Len(t, got.Lines, 2)
		assert.True(t, got.Totals.GrandTotal.Equal(decimal.RequireFromString("262.5")))
		require.NotNil(t, got.Order)
		assert.Equal(t, "ORD-1", got.Order.OrderID)
		assert.True(t, got.Order.Totals.Tax.Equal(decimal.RequireFromString("12.5")))
		assert.True(t, got.FinishedAt.Equal(finished))
	})
}

func TestRecordAttempt_KeepsExactTotals(t *testing.T) {
	forEachDriver(t, func(t *testing.T, repo *Repository) {
		ctx := context.Background()
		a := attempt("a-exact", domain.CheckoutStateCompleted, "ORD-X", time.Now().UTC())
		a.Totals = domain.Totals{
			Subtotal:   decimal.RequireFromString("0.999"),
			Tax:        decimal.RequireFromString("0.04995"),
			GrandTotal: decimal.RequireFromString("1.04895"),
		}
		require.NoError(t, repo.RecordAttempt(ctx, a))

		got, err := repo.GetAttemptByOrderID(ctx, "ORD-X")
		require.NoError(t, err)

		assert.Equal(t, "0.999", got.Totals.Subtotal.String())
		assert.Equal(t, "0.04995", got.Totals.Tax.String())
		assert.Equal(t, "1.04895", got.Totals.GrandTotal.String())
	})
}

func TestGetAttemptByOrderID_NotFound(t *testing.T) {
	repo := setupSQLite(t)

	_, err := repo.GetAttemptByOrderID(context.Background(), "missing")

	assert.ErrorIs(t, err, ErrAttemptNotFound)
}

func TestRecordAttempt_DuplicateID(t *testing.T) {
	repo := setupSQLite(t)
	ctx := context.Background()
	a := attempt("dup", domain.CheckoutStateRejected, "", time.Now())

	require.NoError(t, repo.RecordAttempt(ctx, a))
	err := repo.RecordAttempt(ctx, a)

	require.Error(t, err)
	events, err := repo.GetUnprocessedEvents(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestRecordAttempt_OutboxEvents(t *testing.T) {
	forEachDriver(t, func(t *testing.T, repo *Repository) {
		ctx := context.Background()
		now := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

		require.NoError(t, repo.RecordAttempt(ctx, attempt("a-1", domain.CheckoutStateCompleted, "ORD-1", now)))
		require.NoError(t, repo.RecordAttempt(ctx, attempt("a-2", domain.CheckoutStateRejected, "", now.Add(time.Second))))

		unconfirmed := attempt("a-3", domain.CheckoutStatePaymentFailed, "", now.Add(2*time.Second))
		unconfirmed.Order = &domain.ConfirmedOrder{OrderID: "ORD-3"}
		unconfirmed.PaymentMethod = domain.PaymentMethodOnline
		unconfirmed.ProviderOrderID = "order_P3"
		unconfirmed.Failure = "payment cancelled"
		require.NoError(t, repo.RecordAttempt(ctx, unconfirmed))

		require.NoError(t, repo.RecordAttempt(ctx, attempt("a-4", domain.CheckoutStatePaymentFailed, "", now.Add(3*time.Second))))

		events, err := repo.GetUnprocessedEvents(ctx, 10)
		require.NoError(t, err)
		require.Len(t, events, 2)

		assert.Equal(t, "ORD-1", events[0].AggregateID)
		assert.Equal(t, EventOrderCompleted, events[0].EventType)
		assert.Equal(t, "ORD-3", events[1].AggregateID)
		assert.Equal(t, EventOrderPaymentUnconfirmed, events[1].EventType)

		var payload map[string]any
		require.NoError(t, json.Unmarshal(events[1].Payload, &payload))
		assert.Equal(t, "order_P3", payload["provider_order_id"])
		assert.Equal(t, "ONLINE", payload["payment_method"])
		assert.Equal(t, "payment cancelled", payload["failure"])
	})
}

func TestMarkEventAsProcessed(t *testing.T) {
	forEachDriver(t, func(t *testing.T, repo *Repository) {
		ctx := context.Background()
		for i := 1; i <= 3; i++ {
			a := attempt(fmt.Sprintf("a-%d", i), domain.CheckoutStateCompleted, fmt.Sprintf("ORD-%d", i), time.Now())
			require.NoError(t, repo.RecordAttempt(ctx, a))
		}

		events, err := repo.GetUnprocessedEvents(ctx, 2)
		require.NoError(t, err)
		require.Len(t, events, 2)

		require.NoError(t, repo.MarkEventAsProcessed(ctx, events[0].ID))
		require.NoError(t, repo.MarkEventAsProcessed(ctx, events[0].ID))

		remaining, err := repo.GetUnprocessedEvents(ctx, 10)
		require.NoError(t, err)
		require.Len(t, remaining, 2)
		assert.Equal(t, "ORD-2", remaining[0].AggregateID)
		assert.Equal(t, "ORD-3", remaining[1].AggregateID)
	})
}

func TestListAttempts_NewestFirst(t *testing.T) {
	repo := setupSQLite(t)
	ctx := context.Background()
	base := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

	require.NoError(t, repo.RecordAttempt(ctx, attempt("old", domain.CheckoutStateRejected, "", base)))
	require.NoError(t, repo.RecordAttempt(ctx, attempt("new", domain.CheckoutStateCompleted, "ORD-9", base.Add(time.Minute))))
	require.NoError(t, repo.RecordAttempt(ctx, attempt("mid", domain.CheckoutStatePaymentFailed, "", base.Add(time.Second))))

	attempts, err := repo.ListAttempts(ctx, 2)
	require.NoError(t, err)
	require.Len(t, attempts, 2)
	assert.Equal(t, "new", attempts[0].ID)
	assert.Equal(t, "mid", attempts[1].ID)
	assert.Nil(t, attempts[1].Order)
}

func TestListAttempts_Empty(t *testing.T) {
	repo := setupSQLite(t)

	attempts, err := repo.ListAttempts(context.Background(), 10)

	require.NoError(t, err)
	assert.NotNil(t, attempts)
	assert.Empty(t, attempts)
}

func TestGetUnprocessedEvents_CancelledContext(t *testing.T) {
	repo := setupSQLite(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := repo.GetUnprocessedEvents(ctx, 10)

	assert.ErrorContains(t, err, "context canceled")
}
