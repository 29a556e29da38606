// Package dispatch serializes turn execution per user. The core assumes
// at most one in-flight turn per user key; this package is the caller-side
// guard that enforces it, plus a per-user rate limit.
package dispatch

import (
	"context"
	"errors"
	"sync"

	"golang.org/x/time/rate"
)

// Rate limiting defaults: a burst of a few quick messages, refilling at a
// steady per-minute rate.
const (
	// DefaultBurst is how many turns a user can fire back to back.
	DefaultBurst = 5
	// DefaultPerMinute is the sustained allowed turn rate per user.
	DefaultPerMinute = 10
)

// ErrRateLimited is returned when a user exceeds their turn rate.
var ErrRateLimited = errors.New("rate limited")

// Dispatcher runs work serially per user key. Different users proceed
// concurrently; two calls for the same key never overlap.
type Dispatcher struct {
	mu    sync.Mutex
	slots map[int64]*userSlot
	limit rate.Limit
	burst int
}

type userSlot struct {
	mu      sync.Mutex
	limiter *rate.Limiter
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithRate overrides the per-user rate limit.
func WithRate(perMinute float64, burst int) Option {
	return func(d *Dispatcher) {
		d.limit = rate.Limit(perMinute / 60.0)
		d.burst = burst
	}
}

// NewDispatcher creates a dispatcher with the default per-user rate limit.
func NewDispatcher(opts ...Option) *Dispatcher {
	d := &Dispatcher{
		slots: make(map[int64]*userSlot),
		limit: rate.Limit(DefaultPerMinute / 60.0),
		burst: DefaultBurst,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Do executes fn under the user's slot, enforcing both the rate limit and
// the one-in-flight guarantee. Over-limit calls fail fast with
// ErrRateLimited before fn runs; context cancellation is fn's concern.
func (d *Dispatcher) Do(ctx context.Context, userID int64, fn func(ctx context.Context) error) error {
	slot := d.slot(userID)

	if !slot.limiter.Allow() {
		return ErrRateLimited
	}

	slot.mu.Lock()
	defer slot.mu.Unlock()
	return fn(ctx)
}

func (d *Dispatcher) slot(userID int64) *userSlot {
	d.mu.Lock()
	defer d.mu.Unlock()

	slot, ok := d.slots[userID]
	if !ok {
		slot = &userSlot{limiter: rate.NewLimiter(d.limit, d.burst)}
		d.slots[userID] = slot
	}
	return slot
}
