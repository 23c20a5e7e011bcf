package eventbus

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"adminkit.org/internal/obs"
)

// Handler processes one event. Cross-cutting fields (acting user, request id)
// ride on the context; see the authn and httpapi context helpers.
type Handler func(ctx context.Context, evt Event) error

// Bus is an in-process publish/subscribe dispatcher. Handlers for a single
// Dispatch run synchronously in subscription order; a failing or panicking
// handler never prevents the remaining handlers from running.
type Bus struct {
	mu       sync.RWMutex
	nextID   int
	handlers map[Type][]subscription
}

type subscription struct {
	id int
	fn Handler
}

// Subscription allows a single handler to be removed again.
type Subscription struct {
	bus *Bus
	typ Type
	id  int
}

// New returns an empty bus.
func New() *Bus {
	return &Bus{handlers: make(map[Type][]subscription)}
}

// Subscribe registers a handler for one event type.
func (b *Bus) Subscribe(typ Type, fn Handler) Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	b.handlers[typ] = append(b.handlers[typ], subscription{id: b.nextID, fn: fn})
	return Subscription{bus: b, typ: typ, id: b.nextID}
}

// Unsubscribe removes the handler belonging to this subscription.
func (s Subscription) Unsubscribe() {
	if s.bus == nil {
		return
	}
	s.bus.mu.Lock()
	defer s.bus.mu.Unlock()
	subs := s.bus.handlers[s.typ]
	for i, sub := range subs {
		if sub.id == s.id {
			s.bus.handlers[s.typ] = append(subs[:i], subs[i+1:]...)
			return
		}
	}
}

// Dispatch invokes every handler subscribed to the event's type, in
// subscription order, each running to completion before the next starts.
// Handler errors are aggregated into the return value but publishers treat
// dispatch as fire-and-forget: errors are logged here and callers are free to
// ignore them.
func (b *Bus) Dispatch(ctx context.Context, evt Event) error {
	b.mu.RLock()
	subs := make([]subscription, len(b.handlers[evt.EventType()]))
	copy(subs, b.handlers[evt.EventType()])
	b.mu.RUnlock()

	obs.CountEventDispatched(string(evt.EventType()))

	var errs []error
	for _, sub := range subs {
		if err := b.invoke(ctx, sub.fn, evt); err != nil {
			errs = append(errs, err)
			obs.LogError("event handler failed", map[string]any{
				"event": string(evt.EventType()),
				"error": err.Error(),
			})
		}
	}
	return errors.Join(errs...)
}

func (b *Bus) invoke(ctx context.Context, fn Handler, evt Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return fn(ctx, evt)
}

// ListenerCount reports how many handlers are subscribed for one event type.
func (b *Bus) ListenerCount(typ Type) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.handlers[typ])
}

// Reset removes every subscription. Intended for test isolation.
func (b *Bus) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers = make(map[Type][]subscription)
}

var (
	defaultOnce sync.Once
	defaultBus  *Bus
)

// Default returns the process-wide bus instance. Services receive a bus by
// injection; Default exists so that application wiring has a single registry
// scoped to the process lifetime.
func Default() *Bus {
	defaultOnce.Do(func() {
		defaultBus = New()
	})
	return defaultBus
}
