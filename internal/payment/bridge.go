package payment

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/fjod/billflow/pkg/logger"
	"go.uber.org/zap"
)

const (
	// DefaultTTL is how long a widget may stay open before it is treated as dismissed.
	DefaultTTL = 15 * time.Minute

	// DefaultCleanupInterval is how often expired handles are swept.
	DefaultCleanupInterval = 30 * time.Second
)

var (
	ErrUnknownPayment    = errors.New("no pending payment for provider order")
	ErrAlreadyResolved   = errors.New("payment already resolved")
	ErrDuplicatePayment  = errors.New("payment already open for provider order")
	ErrMissingProviderID = errors.New("provider order id is required")
	ErrBridgeClosed      = errors.New("payment bridge is closed")
)

type BridgeConfig struct {
	TTL             time.Duration
	CleanupInterval time.Duration
}

// Bridge is the widget used when the provider checkout runs in a front end.
// Open registers a pending handle; the front end reports the provider callback
// through Succeed or Dismiss.
type Bridge struct {
	mu      sync.RWMutex
	pending map[string]*Pending // provider order id -> handle
	closed  bool

	ttl         time.Duration
	interval    time.Duration
	log         *zap.Logger
	stopCleanup chan struct{}
	closeOnce   sync.Once
	wg          sync.WaitGroup
}

func NewBridge(cfg BridgeConfig, log *zap.Logger) *Bridge {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = DefaultCleanupInterval
	}
	b := &Bridge{
		pending:     make(map[string]*Pending),
		ttl:         cfg.TTL,
		interval:    cfg.CleanupInterval,
		log:         logger.OrNop(log),
		stopCleanup: make(chan struct{}),
	}

	b.wg.Add(1)
	go b.cleanupLoop()

	return b
}

func (b *Bridge) Open(ctx context.Context, opts Options) (Handle, error) {
	if opts.ProviderOrderID == "" {
		return nil, ErrMissingProviderID
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, ErrBridgeClosed
	}
	if existing, ok := b.pending[opts.ProviderOrderID]; ok && !existing.Resolved() {
		return nil, fmt.Errorf("%s: %w", opts.ProviderOrderID, ErrDuplicatePayment)
	}

	p := NewPending(opts)
	b.pending[opts.ProviderOrderID] = p
	logger.WithTrace(ctx, b.log).Info("payment widget opened",
		zap.String("provider_order_id", opts.ProviderOrderID),
		zap.String("amount", opts.Amount.StringFixed(2)),
		zap.String("currency", opts.Currency))
	return p, nil
}

// Succeed resolves the pending payment for providerOrderID with the provider's result.
func (b *Bridge) Succeed(providerOrderID string, r Result) error {
	p, err := b.take(providerOrderID)
	if err != nil {
		return err
	}
	if r.ProviderOrderID != "" && r.ProviderOrderID != providerOrderID {
		return fmt.Errorf("result is for %s, not %s: %w", r.ProviderOrderID, providerOrderID, ErrUnknownPayment)
	}
	if !p.Succeed(r) {
		return ErrAlreadyResolved
	}
	b.forget(providerOrderID, p)
	return nil
}

func (b *Bridge) Dismiss(providerOrderID string) error {
	p, err := b.take(providerOrderID)
	if err != nil {
		return err
	}
	if !p.Dismiss() {
		return ErrAlreadyResolved
	}
	b.forget(providerOrderID, p)
	return nil
}

// Lookup returns the widget options of an open payment.
func (b *Bridge) Lookup(providerOrderID string) (Options, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	p, ok := b.pending[providerOrderID]
	if !ok || p.Resolved() {
		return Options{}, false
	}
	return p.Options(), true
}

// Close dismisses every open payment and stops the cleanup loop.
func (b *Bridge) Close() {
	b.closeOnce.Do(func() {
		close(b.stopCleanup)
		b.wg.Wait()

		b.mu.Lock()
		defer b.mu.Unlock()
		b.closed = true
		for id, p := range b.pending {
			p.Dismiss()
			delete(b.pending, id)
		}
	})
}

func (b *Bridge) take(providerOrderID string) (*Pending, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	p, ok := b.pending[providerOrderID]
	if !ok {
		return nil, fmt.Errorf("%s: %w", providerOrderID, ErrUnknownPayment)
	}
	return p, nil
}

func (b *Bridge) forget(providerOrderID string, p *Pending) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.pending[providerOrderID] == p {
		delete(b.pending, providerOrderID)
	}
}

func (b *Bridge) cleanupLoop() {
	defer b.wg.Done()

	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			b.expire(time.Now())
		case <-b.stopCleanup:
			return
		}
	}
}

// expire dismisses handles open longer than the TTL and drops resolved ones.
func (b *Bridge) expire(now time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for id, p := range b.pending {
		if p.Resolved() {
			delete(b.pending, id)
			continue
		}
		if now.Sub(p.OpenedAt()) >= b.ttl {
			p.Dismiss()
			delete(b.pending, id)
			b.log.Warn("payment widget expired", zap.String("provider_order_id", id))
		}
	}
}
