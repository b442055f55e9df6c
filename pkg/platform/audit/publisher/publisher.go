// Package publisher emits audit events to a Store, synchronously by default
// or through a bounded async buffer when latency matters more than strict
// ordering with the caller.
package publisher

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	audit "custodia/pkg/platform/audit"
)

type Option func(*Publisher)

// WithAsyncBuffer switches the publisher to buffered async mode with the
// given channel capacity. Emit blocks only when the buffer is full.
func WithAsyncBuffer(size int) Option {
	return func(p *Publisher) {
		p.inbox = make(chan audit.Event, size)
	}
}

// Publisher assigns IDs and timestamps and forwards events to its store.
type Publisher struct {
	store audit.Store
	inbox chan audit.Event
	wg    sync.WaitGroup
	once  sync.Once
}

func NewPublisher(store audit.Store, opts ...Option) *Publisher {
	p := &Publisher{store: store}
	for _, opt := range opts {
		opt(p)
	}
	if p.inbox != nil {
		p.wg.Add(1)
		go p.drain()
	}
	return p
}

// Emit records an event. In async mode the write happens on the drain
// goroutine; failures there are dropped after Close, so callers needing
// delivery guarantees should use sync mode.
func (p *Publisher) Emit(ctx context.Context, event audit.Event) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	if p.inbox != nil {
		p.inbox <- event
		return nil
	}
	return p.store.Append(ctx, event)
}

// List reads back events from the underlying store.
func (p *Publisher) List(ctx context.Context, subject string) ([]audit.Event, error) {
	return p.store.List(ctx, subject)
}

// Close stops the async drain goroutine after flushing buffered events.
func (p *Publisher) Close() {
	p.once.Do(func() {
		if p.inbox != nil {
			close(p.inbox)
			p.wg.Wait()
		}
	})
}

func (p *Publisher) drain() {
	defer p.wg.Done()
	for event := range p.inbox {
		// Background writes use a fresh context; the emitting request may be done.
		_ = p.store.Append(context.Background(), event)
	}
}
