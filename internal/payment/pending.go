package payment

import (
	"context"
	"sync"
	"time"
)

// Pending is a Handle resolved from outside, for example by a provider callback.
type Pending struct {
	opts     Options
	openedAt time.Time

	once    sync.Once
	done    chan struct{}
	outcome Outcome
}

func NewPending(opts Options) *Pending {
	return &Pending{
		opts:     opts,
		openedAt: time.Now(),
		done:     make(chan struct{}),
	}
}

// Succeed resolves the handle with r. It returns false if the handle was already resolved.
func (p *Pending) Succeed(r Result) bool {
	if r.ProviderOrderID == "" {
		r.ProviderOrderID = p.opts.ProviderOrderID
	}
	return p.resolve(Outcome{Kind: OutcomeSucceeded, Result: r})
}

// Dismiss resolves the handle as dismissed. It returns false if the handle was already resolved.
func (p *Pending) Dismiss() bool {
	return p.resolve(Outcome{Kind: OutcomeDismissed})
}

func (p *Pending) Cancel() {
	p.Dismiss()
}

func (p *Pending) Wait(ctx context.Context) (Outcome, error) {
	select {
	case <-p.done:
		return p.outcome, nil
	case <-ctx.Done():
		return Outcome{}, ctx.Err()
	}
}

func (p *Pending) Resolved() bool {
	select {
	case <-p.done:
		return true
	default:
		return false
	}
}

func (p *Pending) Options() Options {
	return p.opts
}

func (p *Pending) OpenedAt() time.Time {
	return p.openedAt
}

func (p *Pending) resolve(o Outcome) bool {
	resolved := false
	p.once.Do(func() {
		p.outcome = o
		close(p.done)
		resolved = true
	})
	return resolved
}
