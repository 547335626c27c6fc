// Package eventbus provides the in-process publish/subscribe channel that
// links the caseflow stages. Events published during a unit of work are
// delivered only after that unit of work commits; delivery to each
// subscriber is at-least-once, so every subscriber must be idempotent under
// redelivery.
package eventbus

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// HandlerFunc consumes a single event. Returning an error triggers redelivery
// up to the bus's attempt budget.
type HandlerFunc func(ctx context.Context, evt Event) error

// Publisher is the narrow interface services depend on.
type Publisher interface {
	Publish(ctx context.Context, evt Event) error
}

// TxStarter begins and commits a store transaction around a unit of work.
// Implementations: tx.SQLRunner for postgres wiring, tx.NopRunner for memory.
type TxStarter interface {
	InTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type subscriber struct {
	name string
	fn   HandlerFunc
}

type Bus struct {
	mu          sync.RWMutex
	subscribers map[Type][]subscriber
	catchAll    []subscriber

	runner      TxStarter
	logger      *slog.Logger
	metrics     *Metrics
	maxAttempts int
	backoff     time.Duration
}

type Option func(*Bus)

// WithTxStarter makes Run open a store transaction around the unit of work,
// so staged events are dispatched strictly after the commit.
func WithTxStarter(runner TxStarter) Option {
	return func(b *Bus) {
		if runner != nil {
			b.runner = runner
		}
	}
}

func WithMetrics(m *Metrics) Option {
	return func(b *Bus) { b.metrics = m }
}

// WithMaxAttempts bounds per-subscriber delivery retries.
func WithMaxAttempts(n int) Option {
	return func(b *Bus) {
		if n > 0 {
			b.maxAttempts = n
		}
	}
}

func NewBus(logger *slog.Logger, opts ...Option) *Bus {
	b := &Bus{
		subscribers: make(map[Type][]subscriber),
		runner:      nopRunner{},
		logger:      logger,
		maxAttempts: 3,
		backoff:     25 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Subscribe registers a named handler for one event type. Registration is
// explicit wiring; there is no ambient registry.
func (b *Bus) Subscribe(eventType Type, name string, fn HandlerFunc) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[eventType] = append(b.subscribers[eventType], subscriber{name: name, fn: fn})
}

// SubscribeAll registers a handler that observes every event regardless of
// type. Used by the audit listener.
func (b *Bus) SubscribeAll(name string, fn HandlerFunc) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.catchAll = append(b.catchAll, subscriber{name: name, fn: fn})
}

// stage collects events published during one unit of work.
type stage struct {
	mu     sync.Mutex
	events []Event
}

type stageKey struct{}

func stageFrom(ctx context.Context) (*stage, bool) {
	s, ok := ctx.Value(stageKey{}).(*stage)
	return s, ok && s != nil
}

// Run executes fn as a unit of work. Events published inside fn are staged;
// they are dispatched only after fn (and its transaction, when a TxStarter is
// configured) returns success. On error nothing is delivered.
func (b *Bus) Run(ctx context.Context, fn func(ctx context.Context) error) error {
	st := &stage{}
	ctx = context.WithValue(ctx, stageKey{}, st)
	if err := b.runner.InTx(ctx, fn); err != nil {
		return err
	}
	// Committed. Redelivery past this point is the subscriber's problem to
	// absorb, which is why every listener is idempotent.
	for _, evt := range st.events {
		b.dispatch(ctx, evt)
	}
	return nil
}

// Publish records evt for after-commit delivery when a unit of work is
// active, and dispatches immediately otherwise.
func (b *Bus) Publish(ctx context.Context, evt Event) error {
	if b.metrics != nil {
		b.metrics.published.WithLabelValues(string(evt.Type)).Inc()
	}
	if st, ok := stageFrom(ctx); ok {
		st.mu.Lock()
		st.events = append(st.events, evt)
		st.mu.Unlock()
		return nil
	}
	b.dispatch(ctx, evt)
	return nil
}

// dispatch delivers evt to every matching subscriber, retrying each up to
// maxAttempts. A persistently failing subscriber is logged and counted but
// does not block delivery to the others.
func (b *Bus) dispatch(ctx context.Context, evt Event) {
	b.mu.RLock()
	subs := make([]subscriber, 0, len(b.subscribers[evt.Type])+len(b.catchAll))
	subs = append(subs, b.subscribers[evt.Type]...)
	subs = append(subs, b.catchAll...)
	b.mu.RUnlock()

	// Listener units of work must not inherit this stage.
	ctx = context.WithValue(ctx, stageKey{}, (*stage)(nil))

	for _, sub := range subs {
		if err := b.deliver(ctx, sub, evt); err != nil {
			if b.metrics != nil {
				b.metrics.failed.WithLabelValues(string(evt.Type), sub.name).Inc()
			}
			b.logger.ErrorContext(ctx, "event delivery exhausted retries",
				"event_type", evt.Type,
				"subscriber", sub.name,
				"error", err,
			)
		}
	}
}

func (b *Bus) deliver(ctx context.Context, sub subscriber, evt Event) error {
	var lastErr error
	for attempt := 1; attempt <= b.maxAttempts; attempt++ {
		if err := sub.fn(ctx, evt); err == nil {
			return nil
		} else {
			lastErr = err
		}
		if b.metrics != nil {
			b.metrics.retried.WithLabelValues(string(evt.Type), sub.name).Inc()
		}
		if attempt < b.maxAttempts {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(b.backoff * time.Duration(attempt)):
			}
		}
	}
	return fmt.Errorf("after %d attempts: %w", b.maxAttempts, lastErr)
}

type nopRunner struct{}

func (nopRunner) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}
