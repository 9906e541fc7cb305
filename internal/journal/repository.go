// Package journal keeps a durable record of finished checkout attempts and
// the outbox of order events derived from them.
package journal

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/fjod/billflow/internal/domain"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

const (
	EventOrderCompleted          = "order.completed"
	EventOrderPaymentUnconfirmed = "order.payment_unconfirmed"
)

var (
	ErrAttemptNotFound   = errors.New("checkout attempt not found")
	ErrUnsupportedDriver = errors.New("unsupported journal driver")
)

//go:embed migrations
var migrations embed.FS

type OutboxEvent struct {
	ID          int64
	AggregateID string
	EventType   string
	Payload     json.RawMessage
	CreatedAt   time.Time
}

type Repository struct {
	db     *sql.DB
	driver string
	log    *zap.Logger
}

// NewRepository opens the database and checks the connection. Call RunMigrations before use.
func NewRepository(driver, dsn string, log *zap.Logger) (*Repository, error) {
	if driver != DriverSQLite && driver != DriverPostgres {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedDriver, driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if driver == DriverSQLite {
		// a single writer avoids SQLITE_BUSY under concurrent checkouts
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(20)
		db.SetMaxIdleConns(5)
	}

	if log == nil {
		log = zap.NewNop()
	}
	log.Info("journal connected", zap.String("driver", driver))
	return &Repository{db: db, driver: driver, log: log}, nil
}

func (r *Repository) RunMigrations() error {
	src, err := iofs.New(migrations, "migrations/"+r.driver)
	if err != nil {
		return fmt.Errorf("could not open migrations: %w", err)
	}

	var driver database.Driver
	switch r.driver {
	case DriverPostgres:
		driver, err = postgres.WithInstance(r.db, &postgres.Config{})
	default:
		driver, err = sqlite.WithInstance(r.db, &sqlite.Config{})
	}
	if err != nil {
		return fmt.Errorf("could not create migration driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, r.driver, driver)
	if err != nil {
		return fmt.Errorf("could not create migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("could not run migrations: %w", err)
	}

	return nil
}

// RecordAttempt stores a finished attempt. Completed orders and online orders
// whose payment could not be confirmed also get an outbox event in the same transaction.
func (r *Repository) RecordAttempt(ctx context.Context, a domain.CheckoutAttempt) error {
	lines, err := json.Marshal(a.Lines)
	if err != nil {
		return fmt.Errorf("failed to marshal lines: %w", err)
	}

	var confirmed any
	if a.Order != nil {
		b, err := json.Marshal(a.Order)
		if err != nil {
			return fmt.Errorf("failed to marshal order: %w", err)
		}
		confirmed = string(b)
	}

	var orderID sql.NullString
	if id := a.OrderID(); id != "" {
		orderID = sql.NullString{String: id, Valid: true}
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	query := `
		INSERT INTO checkout_attempts (
			id, state, customer_name, phone_number, payment_method, order_id,
			provider_order_id, failure, subtotal, tax, grand_total, lines,
			confirmed_order, started_at, finished_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`
	_, err = tx.ExecContext(ctx, query,
		a.ID,
		a.State.String(),
		a.Customer.Name,
		a.Customer.Phone,
		a.PaymentMethod.String(),
		orderID,
		a.ProviderOrderID,
		a.Failure,
		a.Totals.Subtotal,
		a.Totals.Tax,
		a.Totals.GrandTotal,
		string(lines),
		confirmed,
		a.StartedAt.UTC(),
		a.FinishedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert checkout attempt: %w", err)
	}

	if eventType, ok := outboxEventType(a); ok {
		payload, err := json.Marshal(newOrderEvent(a))
		if err != nil {
			return fmt.Errorf("failed to marshal event payload: %w", err)
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO outbox_events (aggregate_id, event_type, payload, created_at) VALUES ($1, $2, $3, $4)`,
			a.OrderID(), eventType, string(payload), a.FinishedAt.UTC(),
		)
		if err != nil {
			return fmt.Errorf("failed to insert outbox event: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func outboxEventType(a domain.CheckoutAttempt) (string, bool) {
	if a.OrderID() == "" {
		return "", false
	}
	switch a.State {
	case domain.CheckoutStateCompleted:
		return EventOrderCompleted, true
	case domain.CheckoutStatePaymentFailed:
		return EventOrderPaymentUnconfirmed, true
	}
	return "", false
}

const attemptColumns = `
	id, state, customer_name, phone_number, payment_method, order_id,
	provider_order_id, failure, subtotal, tax, grand_total, lines,
	confirmed_order, started_at, finished_at
`

// GetAttemptByOrderID returns the most recent attempt that produced orderID.
func (r *Repository) GetAttemptByOrderID(ctx context.Context, orderID string) (*domain.CheckoutAttempt, error) {
	query := `SELECT ` + attemptColumns + `
		FROM checkout_attempts
		WHERE order_id = $1
		ORDER BY finished_at DESC
		LIMIT 1`

	rows, err := r.db.QueryContext(ctx, query, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to query attempt: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("row iteration error: %w", err)
		}
		return nil, ErrAttemptNotFound
	}
	a, err := scanAttempt(rows)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// ListAttempts returns the newest attempts first.
func (r *Repository) ListAttempts(ctx context.Context, limit int) ([]domain.CheckoutAttempt, error) {
	query := `SELECT ` + attemptColumns + `
		FROM checkout_attempts
		ORDER BY finished_at DESC
		LIMIT $1`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query attempts: %w", err)
	}
	defer rows.Close()

	attempts := []domain.CheckoutAttempt{}
	for rows.Next() {
		a, err := scanAttempt(rows)
		if err != nil {
			return nil, err
		}
		attempts = append(attempts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return attempts, nil
}

func scanAttempt(rows *sql.Rows) (domain.CheckoutAttempt, error) {
	var (
		a         domain.CheckoutAttempt
		state     string
		method    string
		orderID   sql.NullString
		lines     []byte
		confirmed []byte
	)
	err := rows.Scan(
		&a.ID,
		&state,
		&a.Customer.Name,
		&a.Customer.Phone,
		&method,
		&orderID,
		&a.ProviderOrderID,
		&a.Failure,
		&a.Totals.Subtotal,
		&a.Totals.Tax,
		&a.Totals.GrandTotal,
		&lines,
		&confirmed,
		&a.StartedAt,
		&a.FinishedAt,
	)
	if err != nil {
		return a, fmt.Errorf("failed to scan attempt: %w", err)
	}

	a.State = domain.CheckoutState(state)
	a.PaymentMethod = domain.PaymentMethod(method)
	if err := json.Unmarshal(lines, &a.Lines); err != nil {
		return a, fmt.Errorf("failed to unmarshal lines for attempt %s: %w", a.ID, err)
	}
	if len(confirmed) > 0 {
		a.Order = &domain.ConfirmedOrder{}
		if err := json.Unmarshal(confirmed, a.Order); err != nil {
			return a, fmt.Errorf("failed to unmarshal order for attempt %s: %w", a.ID, err)
		}
	} else if orderID.Valid {
		// payment failed after the backend accepted the order
		a.Order = &domain.ConfirmedOrder{OrderID: orderID.String}
	}
	return a, nil
}

func (r *Repository) GetUnprocessedEvents(ctx context.Context, limit int) ([]*OutboxEvent, error) {
	query := `
		SELECT id, aggregate_id, event_type, payload, created_at
		FROM outbox_events
		WHERE processed_at IS NULL
		ORDER BY id
		LIMIT $1
	`
	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query outbox events: %w", err)
	}
	defer rows.Close()

	var events []*OutboxEvent
	for rows.Next() {
		e := &OutboxEvent{}
		var payload []byte
		if err := rows.Scan(&e.ID, &e.AggregateID, &e.EventType, &payload, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan outbox event: %w", err)
		}
		e.Payload = payload
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return events, nil
}

func (r *Repository) MarkEventAsProcessed(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE outbox_events SET processed_at = $1 WHERE id = $2 AND processed_at IS NULL`,
		time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("failed to mark event %d as processed: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		r.log.Warn("outbox event already processed or missing", zap.Int64("event_id", id))
	}
	return nil
}

func (r *Repository) Close() error {
	return r.db.Close()
}
