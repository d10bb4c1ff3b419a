package services

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestBus_Subscribe(t *testing.T) {
	bus := NewBus()
	collector := &eventCollector{}
	bus.Subscribe(EventOrderPaid, collector.handle)

	orderID := uuid.New()
	bus.Emit(OrderEvent{Key: EventOrderPaid, OrderID: orderID})
	bus.Emit(OrderEvent{Key: EventOrderCreated, OrderID: orderID})

	paid := collector.byKey(EventOrderPaid)
	assert.Len(t, paid, 1)
	assert.Equal(t, orderID, paid[0].OrderID)
	assert.Empty(t, collector.byKey(EventOrderCreated))
}

func TestBus_SubscribeAll(t *testing.T) {
	bus := NewBus()
	collector := &eventCollector{}
	bus.SubscribeAll(collector.handle)

	bus.Emit(OrderEvent{Key: EventOrderCreated, OrderID: uuid.New()})
	bus.Emit(OrderEvent{Key: EventOrderStatusChanged, OrderID: uuid.New()})

	assert.Len(t, collector.byKey(EventOrderCreated), 1)
	assert.Len(t, collector.byKey(EventOrderStatusChanged), 1)
}

func TestBus_NilPayloadNormalized(t *testing.T) {
	bus := NewBus()
	var got OrderEvent
	bus.Subscribe(EventOrderDebug, func(evt OrderEvent) { got = evt })

	bus.Emit(OrderEvent{Key: EventOrderDebug, OrderID: uuid.New(), Payload: nil})

	assert.NotNil(t, got.Payload)
}
