// Package checkout drives one order from the cart through submission, optional
// online payment and verification.
package checkout

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/fjod/billflow/internal/domain"
	"github.com/fjod/billflow/internal/payment"
	"github.com/fjod/billflow/pkg/logger"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	recordTimeout = 5 * time.Second

	providerStatusCompleted = "COMPLETED"
)

type Cart interface {
	Lines() []domain.CartLine
	Clear()
}

type OrderGateway interface {
	CreateOrder(ctx context.Context, draft domain.OrderDraft, idempotencyKey string) (*domain.ConfirmedOrder, error)
	CreatePaymentProviderOrder(ctx context.Context, amount decimal.Decimal, currency string) (*domain.ProviderOrder, error)
	VerifyPayment(ctx context.Context, v domain.PaymentVerification) error
}

// Recorder persists finished attempts. Its failures never change the checkout outcome.
type Recorder interface {
	RecordAttempt(ctx context.Context, a domain.CheckoutAttempt) error
}

type Config struct {
	TaxRate     decimal.Decimal
	Currency    string
	ProviderKey string
}

type Request struct {
	Customer      domain.CustomerInfo
	PaymentMethod domain.PaymentMethod
}

type Result struct {
	Order *domain.ConfirmedOrder
	Err   error
}

// Snapshot is the state shown to the operator.
type Snapshot struct {
	State   domain.CheckoutState   `json:"state"`
	Message string                 `json:"message,omitempty"`
	Loading bool                   `json:"loading"`
	Order   *domain.ConfirmedOrder `json:"order,omitempty"`
	Payment *payment.Options       `json:"payment,omitempty"`
}

type Orchestrator struct {
	cart     Cart
	gateway  OrderGateway
	widget   payment.Widget
	notifier Notifier
	recorder Recorder
	log      *zap.Logger
	cfg      Config
	newID    func() string
	now      func() time.Time
	inflight sync.WaitGroup

	mu      sync.Mutex
	state   domain.CheckoutState
	message string
	loading bool
	order   *domain.ConfirmedOrder
	payment *payment.Options
}

type Option func(*Orchestrator)

func WithRecorder(r Recorder) Option {
	return func(o *Orchestrator) { o.recorder = r }
}

func WithLogger(l *zap.Logger) Option {
	return func(o *Orchestrator) { o.log = logger.OrNop(l) }
}

// WithIDs replaces the attempt id generator. Attempt ids double as idempotency keys.
func WithIDs(fn func() string) Option {
	return func(o *Orchestrator) { o.newID = fn }
}

func WithClock(fn func() time.Time) Option {
	return func(o *Orchestrator) { o.now = fn }
}

func New(cart Cart, gateway OrderGateway, widget payment.Widget, notifier Notifier, cfg Config, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		cart:     cart,
		gateway:  gateway,
		widget:   widget,
		notifier: notifier,
		log:      zap.NewNop(),
		cfg:      cfg,
		newID:    uuid.NewString,
		now:      func() time.Time { return time.Now().UTC() },
		state:    domain.CheckoutStateIdle,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.notifier == nil {
		o.notifier = NewLogNotifier(o.log)
	}
	return o
}

// attempt carries one place-order invocation through the state machine.
type attempt struct {
	id              string
	startedAt       time.Time
	draft           domain.OrderDraft
	order           *domain.ConfirmedOrder
	providerOrderID string
}

// PlaceOrder runs an attempt to a terminal state and returns the confirmed order
// or the error that ended it. While another attempt is in flight it returns
// ErrCheckoutInProgress and makes no gateway call.
func (o *Orchestrator) PlaceOrder(ctx context.Context, req Request) (*domain.ConfirmedOrder, error) {
	a, err := o.begin(ctx, req)
	if err != nil {
		return nil, err
	}
	o.inflight.Add(1)
	defer o.inflight.Done()
	return o.run(ctx, a)
}

// PlaceOrderAsync validates synchronously and runs the remainder of the attempt
// in the background. The channel receives exactly one Result.
func (o *Orchestrator) PlaceOrderAsync(ctx context.Context, req Request) (<-chan Result, error) {
	a, err := o.begin(ctx, req)
	if err != nil {
		return nil, err
	}
	results := make(chan Result, 1)
	o.inflight.Add(1)
	go func() {
		defer o.inflight.Done()
		defer close(results)
		order, err := o.run(ctx, a)
		results <- Result{Order: order, Err: err}
	}()
	return results, nil
}

// Wait blocks until every running attempt has reached a terminal state and been
// recorded, or ctx is done.
func (o *Orchestrator) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		o.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (o *Orchestrator) Status() Snapshot {
	o.mu.Lock()
	defer o.mu.Unlock()
	s := Snapshot{
		State:   o.state,
		Message: o.message,
		Loading: o.loading,
		Order:   o.order,
	}
	if o.payment != nil {
		p := *o.payment
		s.Payment = &p
	}
	return s
}

// begin moves Idle or a terminal state to Validating and checks the request.
func (o *Orchestrator) begin(ctx context.Context, req Request) (*attempt, error) {
	o.mu.Lock()
	if o.state.IsBusy() {
		state := o.state
		o.mu.Unlock()
		logger.WithTrace(ctx, o.log).Info("place order ignored, checkout busy", zap.Stringer("state", state))
		return nil, ErrCheckoutInProgress
	}
	o.transitionLocked(domain.CheckoutStateValidating)
	o.loading = true
	o.message = ""
	o.order = nil
	o.payment = nil
	o.mu.Unlock()
	o.notifier.Loading(true)

	a := &attempt{
		id:        o.newID(),
		startedAt: o.now(),
		draft:     domain.NewOrderDraft(req.Customer, o.cart.Lines(), req.PaymentMethod, o.cfg.TaxRate),
	}

	if err := o.validate(a.draft); err != nil {
		_, err = o.finish(ctx, a, domain.CheckoutStateRejected, err)
		return nil, err
	}
	return a, nil
}

func (o *Orchestrator) validate(d domain.OrderDraft) error {
	switch {
	case !d.Customer.HasName():
		return &ValidationError{Err: ErrMissingCustomerName}
	case len(d.Lines) == 0:
		return &ValidationError{Err: ErrEmptyCart}
	case !d.PaymentMethod.Valid():
		return &ValidationError{Err: fmt.Errorf("%w: %q", ErrUnsupportedPaymentMethod, d.PaymentMethod)}
	case d.PaymentMethod.RequiresProvider() && o.cfg.ProviderKey == "":
		return &ValidationError{Err: ErrOnlinePaymentNotConfigured}
	}
	return nil
}

func (o *Orchestrator) run(ctx context.Context, a *attempt) (*domain.ConfirmedOrder, error) {
	// gateway calls cannot be abandoned halfway; the transport timeout bounds them
	netCtx := context.WithoutCancel(ctx)
	log := logger.WithTrace(ctx, o.log).With(zap.String("attempt_id", a.id))

	o.setState(domain.CheckoutStateSubmitting)
	log.Info("submitting order",
		zap.Stringer("payment_method", a.draft.PaymentMethod),
		zap.Int("lines", len(a.draft.Lines)),
		zap.String("grand_total", a.draft.Totals.GrandTotal.StringFixed(2)))

	order, err := o.gateway.CreateOrder(netCtx, a.draft, a.id)
	if err != nil {
		return o.finish(ctx, a, domain.CheckoutStateRejected, fmt.Errorf("%w: %w", ErrPlaceOrderFailed, err))
	}
	a.order = order

	if !a.draft.PaymentMethod.RequiresProvider() {
		return o.complete(ctx, a)
	}

	providerOrder, err := o.gateway.CreatePaymentProviderOrder(netCtx, a.draft.Totals.GrandTotal, o.cfg.Currency)
	if err != nil {
		return o.finish(ctx, a, domain.CheckoutStateRejected, fmt.Errorf("%w: %w", ErrPlaceOrderFailed, err))
	}
	a.providerOrderID = providerOrder.ID

	opts := payment.Options{
		Key:             o.cfg.ProviderKey,
		Amount:          a.draft.Totals.GrandTotal,
		Currency:        o.cfg.Currency,
		ProviderOrderID: providerOrder.ID,
		OrderID:         order.OrderID,
		Prefill: payment.Prefill{
			Name:  a.draft.Customer.Name,
			Phone: a.draft.Customer.Phone,
		},
	}
	o.mu.Lock()
	o.transitionLocked(domain.CheckoutStateAwaitingPayment)
	o.payment = &opts
	o.mu.Unlock()
	log.Info("awaiting payment", zap.String("provider_order_id", providerOrder.ID))

	handle, err := o.widget.Open(ctx, opts)
	if err != nil {
		return o.finish(ctx, a, domain.CheckoutStatePaymentFailed, fmt.Errorf("%w: %w", ErrPaymentWidgetUnavailable, err))
	}
	outcome, err := handle.Wait(ctx)
	if err != nil {
		handle.Cancel()
		return o.finish(ctx, a, domain.CheckoutStatePaymentFailed, fmt.Errorf("%w: %w", ErrPaymentCancelled, err))
	}
	if !outcome.Succeeded() {
		return o.finish(ctx, a, domain.CheckoutStatePaymentFailed, ErrPaymentCancelled)
	}

	o.mu.Lock()
	o.transitionLocked(domain.CheckoutStateVerifying)
	o.payment = nil
	o.mu.Unlock()

	result := outcome.Result
	if result.ProviderOrderID == "" {
		result.ProviderOrderID = providerOrder.ID
	}
	err = o.gateway.VerifyPayment(netCtx, domain.PaymentVerification{
		ProviderOrderID: result.ProviderOrderID,
		PaymentID:       result.PaymentID,
		Signature:       result.Signature,
		OrderID:         order.OrderID,
	})
	if err != nil {
		return o.finish(ctx, a, domain.CheckoutStatePaymentFailed, fmt.Errorf("%w: %w", ErrVerificationFailed, err))
	}

	order.Provider = &domain.ProviderPayment{
		ProviderOrderID: result.ProviderOrderID,
		PaymentID:       result.PaymentID,
		Signature:       result.Signature,
		Status:          providerStatusCompleted,
	}
	return o.complete(ctx, a)
}

// complete is the only path that clears the cart.
func (o *Orchestrator) complete(ctx context.Context, a *attempt) (*domain.ConfirmedOrder, error) {
	o.cart.Clear()
	return o.finish(ctx, a, domain.CheckoutStateCompleted, nil)
}

// finish enters a terminal state, releases the loading indicator, notifies and records.
func (o *Orchestrator) finish(ctx context.Context, a *attempt, state domain.CheckoutState, cause error) (*domain.ConfirmedOrder, error) {
	o.mu.Lock()
	o.transitionLocked(state)
	o.loading = false
	o.payment = nil
	if cause == nil {
		o.message = "order placed successfully"
		o.order = a.order
	} else {
		o.message = UserMessage(cause)
		o.order = nil
	}
	o.mu.Unlock()

	o.notifier.Loading(false)
	log := logger.WithTrace(ctx, o.log).With(
		zap.String("attempt_id", a.id),
		zap.Stringer("state", state))
	if cause == nil {
		log.Info("checkout completed", zap.String("order_id", a.order.OrderID))
		o.notifier.Succeeded(a.order)
	} else {
		log.Warn("checkout ended", zap.Error(cause))
		o.notifier.Failed(cause)
	}

	o.record(ctx, a, state, cause)

	if cause != nil {
		return nil, cause
	}
	return a.order, nil
}

func (o *Orchestrator) record(ctx context.Context, a *attempt, state domain.CheckoutState, cause error) {
	if o.recorder == nil {
		return
	}
	rec := domain.CheckoutAttempt{
		ID:              a.id,
		State:           state,
		Customer:        a.draft.Customer,
		PaymentMethod:   a.draft.PaymentMethod,
		Lines:           a.draft.Lines,
		Totals:          a.draft.Totals,
		Order:           a.order,
		ProviderOrderID: a.providerOrderID,
		StartedAt:       a.startedAt,
		FinishedAt:      o.now(),
	}
	if cause != nil {
		rec.Failure = cause.Error()
	}

	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), recordTimeout)
	defer cancel()
	if err := o.recorder.RecordAttempt(rctx, rec); err != nil {
		logger.WithTrace(ctx, o.log).Error("recording checkout attempt failed",
			zap.String("attempt_id", a.id), zap.Error(err))
	}
}

func (o *Orchestrator) setState(to domain.CheckoutState) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.transitionLocked(to)
}

func (o *Orchestrator) transitionLocked(to domain.CheckoutState) {
	if !domain.CanTransitionTo(o.state, to) {
		o.log.Error("illegal checkout transition",
			zap.Stringer("from", o.state), zap.Stringer("to", to))
	}
	o.state = to
}
