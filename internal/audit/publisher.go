package audit

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Publisher writes activity events to a store, optionally through a buffered
// channel drained by a background worker. In async mode a full buffer drops
// the event rather than blocking the caller; activity logging must never
// stall a domain operation.
type Publisher struct {
	store  Store
	logger *slog.Logger

	inbox  chan Event
	done   chan struct{}
	closed sync.Once
}

// Option configures a Publisher.
type Option func(*Publisher)

// WithAsyncBuffer enables asynchronous emission through a buffer of the given size.
func WithAsyncBuffer(size int) Option {
	return func(p *Publisher) {
		p.inbox = make(chan Event, size)
	}
}

// WithLogger sets a logger for reporting dropped or failed writes.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) {
		p.logger = logger
	}
}

// NewPublisher constructs a publisher. Without WithAsyncBuffer it writes
// synchronously (still swallowing store errors after logging them).
func NewPublisher(store Store, opts ...Option) *Publisher {
	p := &Publisher{store: store, logger: slog.Default()}
	for _, opt := range opts {
		opt(p)
	}
	if p.inbox != nil {
		p.done = make(chan struct{})
		go p.drain()
	}
	return p
}

// Emit records an event. Never returns an error to the caller: failures are
// logged and absorbed, per the best-effort activity-log contract.
func (p *Publisher) Emit(ctx context.Context, event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	if p.inbox == nil {
		p.append(ctx, event)
		return
	}
	select {
	case p.inbox <- event:
	default:
		p.logger.Warn("activity log buffer full, dropping event",
			"activity_type", string(event.Type))
	}
}

// Close drains any buffered events and stops the worker.
func (p *Publisher) Close() {
	p.closed.Do(func() {
		if p.inbox != nil {
			close(p.inbox)
			<-p.done
		}
	})
}

func (p *Publisher) drain() {
	defer close(p.done)
	for event := range p.inbox {
		p.append(context.Background(), event)
	}
}

func (p *Publisher) append(ctx context.Context, event Event) {
	if err := p.store.Append(ctx, event); err != nil {
		p.logger.Error("failed to append activity event",
			"activity_type", string(event.Type),
			"error", err)
	}
}
