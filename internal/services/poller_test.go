package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/wdstore/internal/models"
)

func TestOrderPoller_CatchesMissedTransitions(t *testing.T) {
	db := newTestDB(t)
	bus := NewBus()
	collector := &eventCollector{}
	bus.SubscribeAll(collector.handle)
	orders := NewOrderService(db, bus, SiteInfo{Name: "WD Store"}, nil)
	poller := NewOrderPoller(db, orders)
	assert.True(t, poller.LastRun().IsZero())

	// an order written behind the service's back, as if the process
	// restarted between payment and emit
	order := models.Order{
		Number:        "#900000001",
		CustomerEmail: "jamie@example.com",
		Status:        models.OrderStatusPending,
		Total:         120.10,
	}
	require.NoError(t, db.Create(&order).Error)

	// first pass snapshots the unseen order
	emitted := poller.Poll()
	assert.Equal(t, 1, emitted)
	assert.Len(t, collector.byKey(EventOrderCreated), 1)
	assert.False(t, poller.LastRun().IsZero())

	// a second pass with nothing changed is quiet
	assert.Equal(t, 0, poller.Poll())

	// status flipped directly in the database
	require.NoError(t, db.Model(&models.Order{}).Where("id = ?", order.ID).
		Update("status", models.OrderStatusPaid).Error)

	emitted = poller.Poll()
	assert.Equal(t, 2, emitted)
	assert.Len(t, collector.byKey(EventOrderStatusChanged), 1)
	assert.Len(t, collector.byKey(EventOrderPaid), 1)

	changed := collector.byKey(EventOrderStatusChanged)[0]
	assert.Equal(t, models.OrderStatusPending, changed.Payload["previous_status"])
	assert.Equal(t, "#900000001", changed.Payload["order_number"])

	// snapshot now current
	assert.Equal(t, 0, poller.Poll())

	var snap models.OrderStatusSnapshot
	require.NoError(t, db.First(&snap, "order_id = ?", order.ID).Error)
	assert.Equal(t, models.OrderStatusPaid, snap.Status)
}

func TestOrderPoller_NewPaidOrderEmitsBoth(t *testing.T) {
	db := newTestDB(t)
	bus := NewBus()
	collector := &eventCollector{}
	bus.SubscribeAll(collector.handle)
	orders := NewOrderService(db, bus, SiteInfo{}, nil)
	poller := NewOrderPoller(db, orders)

	require.NoError(t, db.Create(&models.Order{
		Number: "#900000002",
		Status: models.OrderStatusPaid,
	}).Error)

	emitted := poller.Poll()
	assert.Equal(t, 2, emitted)
	assert.Len(t, collector.byKey(EventOrderCreated), 1)
	assert.Len(t, collector.byKey(EventOrderPaid), 1)
}

func TestOrderPoller_EmptyDatabase(t *testing.T) {
	db := newTestDB(t)
	orders := NewOrderService(db, NewBus(), SiteInfo{}, nil)

	assert.Equal(t, 0, NewOrderPoller(db, orders).Poll())
}
