package services

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// Canonical order event keys carried on the bus.
const (
	EventOrderCreated       = "order.created"
	EventOrderPaid          = "order.paid"
	EventOrderStatusChanged = "order.status_changed"
	EventOrderDebug         = "order.debug"
)

// OrderEvent is the single payload shape every emit path uses. Payload
// values are strings so they can be substituted into templates directly.
type OrderEvent struct {
	Key     string
	OrderID uuid.UUID
	Payload map[string]string
}

// EventHandler receives bus events. Handlers run synchronously in
// subscription order; duplicate delivery across redundant emit paths is
// expected and suppressed downstream by the emailer.
type EventHandler func(evt OrderEvent)

// Bus is the in-process order event bus. Several producers (status
// transitions, the Stripe webhook, the checkout success page, the order
// poller) all emit here so the mailer sees every signal at least once.
type Bus struct {
	mu       sync.RWMutex
	subs     map[string][]EventHandler
	wildcard []EventHandler
}

func NewBus() *Bus {
	return &Bus{subs: make(map[string][]EventHandler)}
}

// Subscribe registers a handler for a single event key.
func (b *Bus) Subscribe(key string, h EventHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs[key] = append(b.subs[key], h)
}

// SubscribeAll registers a handler that receives every event.
func (b *Bus) SubscribeAll(h EventHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.wildcard = append(b.wildcard, h)
}

// Emit delivers the event to key subscribers and wildcard subscribers.
func (b *Bus) Emit(evt OrderEvent) {
	if evt.Payload == nil {
		evt.Payload = map[string]string{}
	}

	b.mu.RLock()
	handlers := make([]EventHandler, 0, len(b.subs[evt.Key])+len(b.wildcard))
	handlers = append(handlers, b.subs[evt.Key]...)
	handlers = append(handlers, b.wildcard...)
	b.mu.RUnlock()

	for _, h := range handlers {
		h(evt)
	}
}

// FormatAmount renders a monetary payload value the way templates expect.
func FormatAmount(v float64) string {
	return fmt.Sprintf("%.2f", v)
}
