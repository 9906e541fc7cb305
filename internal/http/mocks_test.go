package http

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/fjod/billflow/internal/catalog"
	"github.com/fjod/billflow/internal/checkout"
	"github.com/fjod/billflow/internal/domain"
	"github.com/fjod/billflow/internal/journal"
	"github.com/shopspring/decimal"
)

type CatalogMock struct {
	categories []domain.Category
	items      []domain.CatalogItem
	refreshes  int
}

func newCatalogMock() *CatalogMock {
	return &CatalogMock{
		categories: []domain.Category{
			{ID: "c1", Name: "Mains"},
			{ID: "c2", Name: "Drinks"},
		},
		items: []domain.CatalogItem{
			{ID: "i1", Name: "Thali", Price: decimal.NewFromInt(100), CategoryID: "c1"},
			{ID: "i2", Name: "Lassi", Price: decimal.NewFromInt(50), CategoryID: "c2"},
		},
	}
}

func (c *CatalogMock) Categories(context.Context) []domain.Category {
	return c.categories
}

func (c *CatalogMock) Filter(_ context.Context, categoryID, query string) []domain.CatalogItem {
	out := []domain.CatalogItem{}
	for _, it := range c.items {
		if categoryID != "" && it.CategoryID != categoryID {
			continue
		}
		if query != "" && !strings.Contains(strings.ToLower(it.Name), strings.ToLower(query)) {
			continue
		}
		out = append(out, it)
	}
	return out
}

func (c *CatalogMock) Item(_ context.Context, id string) (domain.CatalogItem, bool) {
	for _, it := range c.items {
		if it.ID == id {
			return it, true
		}
	}
	return domain.CatalogItem{}, false
}

func (c *CatalogMock) Refresh(context.Context) *catalog.Snapshot {
	c.refreshes++
	return &catalog.Snapshot{Categories: c.categories, Items: c.items, LoadedAt: time.Now()}
}

type CheckoutMock struct {
	mu       sync.Mutex
	err      error
	result   checkout.Result
	snapshot checkout.Snapshot
	requests []checkout.Request
	ctxErrs  []error
}

func (c *CheckoutMock) PlaceOrderAsync(ctx context.Context, req checkout.Request) (<-chan checkout.Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.requests = append(c.requests, req)
	c.ctxErrs = append(c.ctxErrs, ctx.Err())
	if c.err != nil {
		return nil, c.err
	}
	results := make(chan checkout.Result, 1)
	results <- c.result
	close(results)
	return results, nil
}

func (c *CheckoutMock) Status() checkout.Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshot
}

func (c *CheckoutMock) Requests() []checkout.Request {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]checkout.Request(nil), c.requests...)
}

type AttemptsMock map[string]*domain.CheckoutAttempt

func (m AttemptsMock) GetAttemptByOrderID(_ context.Context, orderID string) (*domain.CheckoutAttempt, error) {
	a, ok := m[orderID]
	if !ok {
		return nil, journal.ErrAttemptNotFound
	}
	return a, nil
}

type PrinterMock struct {
	printed []string
	err     error
}

func (p *PrinterMock) Print(_ context.Context, text string) error {
	if p.err != nil {
		return p.err
	}
	p.printed = append(p.printed, text)
	return nil
}

type HistoryMock struct {
	orders  []domain.OrderRecord
	err     error
	deleted []string
}

func (h *HistoryMock) LatestOrders(context.Context) ([]domain.OrderRecord, error) {
	return h.orders, h.err
}

func (h *HistoryMock) DeleteOrder(_ context.Context, orderID string) error {
	if h.err != nil {
		return h.err
	}
	h.deleted = append(h.deleted, orderID)
	return nil
}

// GatewayMock backs a real orchestrator in the end-to-end router tests.
type GatewayMock struct {
	mu        sync.Mutex
	next      int
	verified  []domain.PaymentVerification
	verifyErr error
}

func (g *GatewayMock) CreateOrder(_ context.Context, draft domain.OrderDraft, _ string) (*domain.ConfirmedOrder, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.next++
	return &domain.ConfirmedOrder{
		OrderID:       fmt.Sprintf("ORD-%d", g.next),
		Customer:      draft.Customer,
		Lines:         draft.Lines,
		Totals:        draft.Totals,
		PaymentMethod: draft.PaymentMethod,
		CreatedAt:     time.Now().UTC(),
	}, nil
}

func (g *GatewayMock) CreatePaymentProviderOrder(_ context.Context, amount decimal.Decimal, currency string) (*domain.ProviderOrder, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return &domain.ProviderOrder{ID: fmt.Sprintf("order_P%d", g.next), Amount: amount, Currency: currency, Status: "created"}, nil
}

func (g *GatewayMock) VerifyPayment(_ context.Context, v domain.PaymentVerification) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.verified = append(g.verified, v)
	return g.verifyErr
}

var errUpstream = errors.New("upstream exploded")
