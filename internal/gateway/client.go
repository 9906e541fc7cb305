// Package gateway is the REST client of the billing backend.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/fjod/billflow/internal/domain"
	"github.com/fjod/billflow/pkg/logger"
	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

const (
	defaultTimeout    = 30 * time.Second
	idempotencyHeader = "Idempotency-Key"
	maxErrorBody      = 4 << 10
)

// TokenSource supplies the bearer token for each request. An empty token sends no header.
type TokenSource interface {
	Token() string
}

type StaticToken string

func (t StaticToken) Token() string { return string(t) }

// SessionToken holds the operator's token until the backend rejects it.
type SessionToken struct {
	mu    sync.RWMutex
	token string
}

func NewSessionToken(token string) *SessionToken {
	return &SessionToken{token: token}
}

func (t *SessionToken) Token() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.token
}

func (t *SessionToken) Set(token string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.token = token
}

func (t *SessionToken) Clear() {
	t.Set("")
}

type Client struct {
	baseURL        string
	http           *http.Client
	tokens         TokenSource
	breaker        *gobreaker.CircuitBreaker[*http.Response]
	log            *zap.Logger
	onUnauthorized func()
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

func WithTokenSource(ts TokenSource) Option {
	return func(c *Client) { c.tokens = ts }
}

// WithBreaker guards every call. Only transport failures and 5xx responses count as failures.
func WithBreaker(cb *gobreaker.CircuitBreaker[*http.Response]) Option {
	return func(c *Client) { c.breaker = cb }
}

func WithLogger(l *zap.Logger) Option {
	return func(c *Client) { c.log = logger.OrNop(l) }
}

// WithUnauthorizedHandler is called whenever the backend answers 401.
func WithUnauthorizedHandler(fn func()) Option {
	return func(c *Client) { c.onUnauthorized = fn }
}

// NewClient builds a client for baseURL (for example http://host/api/v1.0).
// The default transport is instrumented with OpenTelemetry.
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		http: &http.Client{
			Timeout:   defaultTimeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		tokens: StaticToken(""),
		log:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) ListCategories(ctx context.Context) ([]domain.Category, error) {
	var payload []categoryPayload
	if err := c.do(ctx, "list categories", http.MethodGet, "", nil, &payload, "categories"); err != nil {
		return nil, err
	}
	out := make([]domain.Category, 0, len(payload))
	for _, p := range payload {
		out = append(out, p.toDomain())
	}
	return out, nil
}

func (c *Client) ListItems(ctx context.Context) ([]domain.CatalogItem, error) {
	var payload []itemPayload
	if err := c.do(ctx, "list items", http.MethodGet, "", nil, &payload, "items"); err != nil {
		return nil, err
	}
	out := make([]domain.CatalogItem, 0, len(payload))
	for _, p := range payload {
		out = append(out, p.toDomain())
	}
	return out, nil
}

// CreateOrder submits the draft. The idempotency key lets the backend collapse a resubmitted attempt.
func (c *Client) CreateOrder(ctx context.Context, draft domain.OrderDraft, idempotencyKey string) (*domain.ConfirmedOrder, error) {
	var resp orderResponse
	if err := c.do(ctx, "create order", http.MethodPost, idempotencyKey, newOrderRequest(draft), &resp, "orders"); err != nil {
		return nil, err
	}
	if resp.OrderID == "" {
		return nil, &ServerError{Op: "create order", Status: http.StatusOK, Message: "response has no order id"}
	}
	return resp.toConfirmed(draft), nil
}

func (c *Client) CreatePaymentProviderOrder(ctx context.Context, amount decimal.Decimal, currency string) (*domain.ProviderOrder, error) {
	req := providerOrderRequest{Amount: amount.InexactFloat64(), Currency: currency}
	var resp providerOrderResponse
	if err := c.do(ctx, "create provider order", http.MethodPost, "", req, &resp, "payments", "create-order"); err != nil {
		return nil, err
	}
	if resp.ID == "" {
		return nil, &ServerError{Op: "create provider order", Status: http.StatusOK, Message: "response has no provider order id"}
	}
	return &domain.ProviderOrder{
		ID:       resp.ID,
		Amount:   resp.Amount,
		Currency: resp.Currency,
		Status:   resp.Status,
	}, nil
}

// VerifyPayment asks the backend to check the provider signature. Every failure is a *VerificationError.
func (c *Client) VerifyPayment(ctx context.Context, v domain.PaymentVerification) error {
	req := verifyRequest{
		RazorpayOrderID:   v.ProviderOrderID,
		RazorpayPaymentID: v.PaymentID,
		RazorpaySignature: v.Signature,
		OrderID:           v.OrderID,
	}
	if err := c.do(ctx, "verify payment", http.MethodPost, "", req, nil, "payments", "verify"); err != nil {
		return &VerificationError{Err: err}
	}
	return nil
}

func (c *Client) LatestOrders(ctx context.Context) ([]domain.OrderRecord, error) {
	var payload []orderResponse
	if err := c.do(ctx, "latest orders", http.MethodGet, "", nil, &payload, "orders", "latest"); err != nil {
		return nil, err
	}
	out := make([]domain.OrderRecord, 0, len(payload))
	for _, p := range payload {
		out = append(out, p.toRecord())
	}
	return out, nil
}

func (c *Client) DeleteOrder(ctx context.Context, orderID string) error {
	return c.do(ctx, "delete order", http.MethodDelete, "", nil, nil, "orders", orderID)
}

func (c *Client) do(ctx context.Context, op, method, idempotencyKey string, body, out any, path ...string) error {
	endpoint, err := url.JoinPath(c.baseURL, path...)
	if err != nil {
		return fmt.Errorf("gateway: %s: build url: %w", op, err)
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("gateway: %s: marshal request: %w", op, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("gateway: %s: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := c.tokens.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if idempotencyKey != "" {
		req.Header.Set(idempotencyHeader, idempotencyKey)
	}

	started := time.Now()
	resp, err := c.send(op, req)
	log := logger.WithTrace(ctx, c.log).With(
		zap.String("op", op),
		zap.String("method", method),
		zap.Duration("duration", time.Since(started)),
	)
	if err != nil {
		var serverErr *ServerError
		if errors.As(err, &serverErr) {
			log.Warn("backend call failed", zap.Int("status", serverErr.Status))
			return serverErr
		}
		log.Warn("backend unreachable", zap.Error(err))
		return &NetworkError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		serverErr := newServerError(op, resp)
		log.Warn("backend call failed", zap.Int("status", resp.StatusCode))
		if resp.StatusCode == http.StatusUnauthorized && c.onUnauthorized != nil {
			c.onUnauthorized()
		}
		return serverErr
	}
	log.Debug("backend call", zap.Int("status", resp.StatusCode))

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &ServerError{Op: op, Status: resp.StatusCode, Message: "decode response: " + err.Error()}
	}
	return nil
}

// send runs the request through the breaker. 5xx responses are returned as *ServerError
// so the breaker counts them.
func (c *Client) send(op string, req *http.Request) (*http.Response, error) {
	call := func() (*http.Response, error) {
		resp, err := c.http.Do(req)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode >= 500 {
			defer resp.Body.Close()
			return nil, newServerError(op, resp)
		}
		return resp, nil
	}
	if c.breaker == nil {
		return call()
	}
	return c.breaker.Execute(call)
}

func newServerError(op string, resp *http.Response) *ServerError {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	msg := strings.TrimSpace(string(raw))
	var payload errorPayload
	if json.Unmarshal(raw, &payload) == nil {
		if payload.Message != "" {
			msg = payload.Message
		} else if payload.Error != "" {
			msg = payload.Error
		}
	}
	return &ServerError{Op: op, Status: resp.StatusCode, Message: msg}
}
