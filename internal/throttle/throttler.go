// Package throttle bounds concurrency and call spacing toward one external
// dependency. Each downstream service gets its own instance: blocking on the
// search API must not starve embedding calls.
package throttle

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/alexandrkolosov/personal-rag-agent-sub000/internal/domain"
	"github.com/alexandrkolosov/personal-rag-agent-sub000/internal/observability"
)

// Throttler admits at most maxConcurrent tasks and enforces a minimum delay
// between consecutive dispatches. Spacing is measured from the later of the
// previous dispatch and the previous settle, so a long-running call pushes
// the next dispatch out rather than letting it fire immediately after.
type Throttler struct {
	name     string
	slots    chan struct{}
	minDelay time.Duration

	mu           sync.Mutex
	lastDispatch time.Time

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// Option customises a Throttler.
type Option func(*Throttler)

// WithClock replaces the throttler clock, used by tests.
func WithClock(now func() time.Time) Option {
	return func(t *Throttler) {
		t.now = now
	}
}

// WithSleeper replaces the suspension function, used by tests to avoid
// real delays.
func WithSleeper(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(t *Throttler) {
		t.sleep = sleep
	}
}

// New creates a throttler for one downstream service.
func New(name string, maxConcurrent int, minDelay time.Duration, opts ...Option) *Throttler {
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}

	t := &Throttler{
		name:     name,
		slots:    make(chan struct{}, maxConcurrent),
		minDelay: minDelay,
		now:      time.Now,
		sleep:    sleepContext,
	}

	for _, opt := range opts {
		opt(t)
	}

	return t
}

// Do runs fn under a concurrency slot once the minimum spacing has elapsed.
// The slot is released on every exit path. A detected rate-limit failure
// from fn adds a doubled cooldown before the error is surfaced; this layer
// never retries on its own.
func (t *Throttler) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	select {
	case t.slots <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}

	defer func() {
		t.recordSettle()
		<-t.slots
	}()

	if wait := t.reserveDispatch(); wait > 0 {
		observability.FromContext(ctx).Debug("throttler delaying dispatch",
			observability.String("throttler", t.name),
			observability.Duration("wait", wait))
		if err := t.sleep(ctx, wait); err != nil {
			return err
		}
	}

	err := fn(ctx)

	if errors.Is(err, domain.ErrRateLimited) {
		cooldown := 2 * t.minDelay
		observability.FromContext(ctx).Warn("downstream rate limit detected, cooling down",
			observability.String("throttler", t.name),
			observability.Duration("cooldown", cooldown))
		t.pushBack(cooldown)
		if sleepErr := t.sleep(ctx, cooldown); sleepErr != nil {
			return sleepErr
		}
	}

	return err
}

// reserveDispatch claims the next allowed dispatch slot in time and returns
// how long the caller must wait to honour it.
func (t *Throttler) reserveDispatch() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	earliest := t.lastDispatch.Add(t.minDelay)

	if t.lastDispatch.IsZero() || !earliest.After(now) {
		t.lastDispatch = now
		return 0
	}

	t.lastDispatch = earliest
	return earliest.Sub(now)
}

// recordSettle marks the call as settled so spacing is also enforced from
// completion time.
func (t *Throttler) recordSettle() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if now := t.now(); now.After(t.lastDispatch) {
		t.lastDispatch = now
	}
}

// pushBack delays the next admissible dispatch by d beyond now.
func (t *Throttler) pushBack(d time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if target := t.now().Add(d).Add(-t.minDelay); target.After(t.lastDispatch) {
		t.lastDispatch = target
	}
}

// sleepContext suspends for d or until ctx is cancelled.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
