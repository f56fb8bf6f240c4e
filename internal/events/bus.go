package events

import (
	"sync"

	"go.uber.org/zap"
)

// Handler receives published events.
type Handler func(Event)

// Bus delivers events to subscribers synchronously, in subscription order.
// A panicking handler is logged and does not stop delivery to the others.
type Bus struct {
	mu       sync.RWMutex
	logger   *zap.Logger
	nextID   int
	handlers map[int]subscription
	order    []int
}

type subscription struct {
	filter  Type
	handler Handler
}

// NewBus creates a new event bus.
func NewBus(logger *zap.Logger) *Bus {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bus{
		logger:   logger,
		handlers: make(map[int]subscription),
	}
}

// Subscribe registers handler for every event type. The returned function
// removes the subscription.
func (b *Bus) Subscribe(handler Handler) (unsubscribe func()) {
	return b.subscribe("", handler)
}

// On registers handler for a single event type.
func (b *Bus) On(t Type, handler Handler) (unsubscribe func()) {
	return b.subscribe(t, handler)
}

func (b *Bus) subscribe(t Type, handler Handler) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	b.handlers[id] = subscription{filter: t, handler: handler}
	b.order = append(b.order, id)

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()

		delete(b.handlers, id)
		for i, v := range b.order {
			if v == id {
				b.order = append(b.order[:i], b.order[i+1:]...)
				break
			}
		}
	}
}

// Len returns the number of active subscriptions.
func (b *Bus) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.order)
}

// Publish delivers event to all matching subscribers.
func (b *Bus) Publish(event Event) {
	b.mu.RLock()
	subs := make([]subscription, 0, len(b.order))
	for _, id := range b.order {
		subs = append(subs, b.handlers[id])
	}
	b.mu.RUnlock()

	for _, sub := range subs {
		if sub.filter != "" && sub.filter != event.Type {
			continue
		}
		b.deliver(sub.handler, event)
	}
}

func (b *Bus) deliver(h Handler, event Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("event handler panicked",
				zap.String("type", string(event.Type)),
				zap.String("item_id", event.ItemID),
				zap.Any("panic", r),
			)
		}
	}()
	h(event)
}
