package events

import (
	"context"
	"errors"
	"sync"

	"claims_portal_backend/platform/logger"
)

// InMemoryBus is an in-process Bus. Handlers for one event name are invoked in
// subscription order. Publish runs them on a background goroutine with a
// detached context; PublishSync runs them inline and joins their errors.
type InMemoryBus struct {
	mu       sync.RWMutex
	handlers map[string][]Handler
	log      *logger.Logger
	wg       sync.WaitGroup
}

// NewInMemoryBus creates an empty in-memory event bus.
func NewInMemoryBus(log *logger.Logger) *InMemoryBus {
	return &InMemoryBus{
		handlers: make(map[string][]Handler),
		log:      log,
	}
}

// Subscribe registers a handler for an event name.
func (b *InMemoryBus) Subscribe(eventName string, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[eventName] = append(b.handlers[eventName], handler)
}

// Publish dispatches the event asynchronously. Handler errors are logged.
func (b *InMemoryBus) Publish(ctx context.Context, event Event) {
	handlers := b.snapshot(event.EventName())
	if len(handlers) == 0 {
		return
	}

	detached := context.WithoutCancel(ctx)
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		for _, h := range handlers {
			if err := b.invoke(detached, h, event); err != nil && b.log != nil {
				b.log.Error("event handler failed", "event", event.EventName(), "error", err)
			}
		}
	}()
}

// PublishSync dispatches the event inline and returns the joined handler errors.
func (b *InMemoryBus) PublishSync(ctx context.Context, event Event) error {
	var errs []error
	for _, h := range b.snapshot(event.EventName()) {
		if err := b.invoke(ctx, h, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Wait blocks until all asynchronous dispatches started so far have finished.
func (b *InMemoryBus) Wait() {
	b.wg.Wait()
}

func (b *InMemoryBus) snapshot(name string) []Handler {
	b.mu.RLock()
	defer b.mu.RUnlock()
	hs := b.handlers[name]
	out := make([]Handler, len(hs))
	copy(out, hs)
	return out
}

func (b *InMemoryBus) invoke(ctx context.Context, h Handler, event Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.New("event handler panicked")
			if b.log != nil {
				b.log.Error("event handler panic", "event", event.EventName(), "panic", r)
			}
		}
	}()
	return h.Handle(ctx, event)
}

var _ Bus = (*InMemoryBus)(nil)
