package services

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/wdstore/internal/models"
)

func newOrderFixture(t *testing.T) (*OrderService, *eventCollector) {
	t.Helper()
	db := newTestDB(t)
	bus := NewBus()
	collector := &eventCollector{}
	bus.SubscribeAll(collector.handle)
	orders := NewOrderService(db, bus, SiteInfo{Name: "WD Store", URL: "https://wd.example/"}, nil)
	return orders, collector
}

func sampleOrderInput() NewOrderInput {
	return NewOrderInput{
		CustomerName:  "Jamie Doe",
		CustomerEmail: "jamie@example.com",
		Currency:      "USD",
		Totals:        CalcTotals([]PricedLine{{BasePrice: 100, AddonPrice: 10, Quantity: 1}}, 6, 3),
		Items: []NewOrderItemInput{
			{
				ProductID:    uuid.New(),
				ProductTitle: `Aurora Gown (Back: Lace Up)`,
				Quantity:     1,
				UnitPrice:    100,
				AddonPrice:   10,
				Addons:       AddonSelection{Back: "Lace Up"},
			},
		},
	}
}

func TestOrderService_Create(t *testing.T) {
	orders, collector := newOrderFixture(t)

	order, err := orders.Create(sampleOrderInput())
	require.NoError(t, err)

	assert.Equal(t, models.OrderStatusPending, order.Status)
	assert.NotEmpty(t, order.Number)
	assert.Equal(t, 120.10, order.Total)
	require.Len(t, order.Items, 1)
	assert.Equal(t, 110.00, order.Items[0].LineTotal)

	// created is emitted over both the direct and the bridge path
	created := collector.byKey(EventOrderCreated)
	assert.Len(t, created, 2)
	assert.Equal(t, order.Number, created[0].Payload["order_number"])
	assert.Equal(t, "jamie@example.com", created[0].Payload["customer_email"])
}

func TestOrderService_SetStatusPaid(t *testing.T) {
	orders, collector := newOrderFixture(t)

	order, err := orders.Create(sampleOrderInput())
	require.NoError(t, err)

	err = orders.SetStatus(order.ID, models.OrderStatusPaid, map[string]string{
		"payment_id": "pi_123",
	})
	require.NoError(t, err)

	reloaded, err := orders.Get(order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusPaid, reloaded.Status)
	assert.Equal(t, "pi_123", reloaded.PaymentID)

	paid := collector.byKey(EventOrderPaid)
	require.NotEmpty(t, paid)
	assert.Equal(t, models.OrderStatusPaid, paid[0].Payload["order_status"])
	assert.Equal(t, "pi_123", paid[0].Payload["payment_id"])

	changed := collector.byKey(EventOrderStatusChanged)
	require.NotEmpty(t, changed)
}

func TestOrderService_SetStatusNoOp(t *testing.T) {
	orders, collector := newOrderFixture(t)

	order, err := orders.Create(sampleOrderInput())
	require.NoError(t, err)

	require.NoError(t, orders.SetStatus(order.ID, models.OrderStatusPending, nil))

	assert.Empty(t, collector.byKey(EventOrderStatusChanged))
	assert.Empty(t, collector.byKey(EventOrderPaid))
}

func TestOrderService_SetStatusUnknownOrder(t *testing.T) {
	orders, _ := newOrderFixture(t)

	err := orders.SetStatus(uuid.New(), models.OrderStatusPaid, nil)
	assert.Error(t, err)
}

func TestOrderService_EmitOrderEventBackfill(t *testing.T) {
	orders, collector := newOrderFixture(t)

	order, err := orders.Create(sampleOrderInput())
	require.NoError(t, err)

	orders.EmitOrderEvent("paid", order.ID, nil)

	paid := collector.byKey(EventOrderPaid)
	require.Len(t, paid, 1)
	assert.Equal(t, order.Number, paid[0].Payload["order_number"])
	assert.Equal(t, models.OrderStatusPaid, paid[0].Payload["order_status"])
}

func TestOrderService_NotificationFromOrder(t *testing.T) {
	orders, _ := newOrderFixture(t)

	order, err := orders.Create(sampleOrderInput())
	require.NoError(t, err)

	note := buildOrderNotification(*order)
	assert.Equal(t, order.Number, note.OrderNumber)
	assert.Equal(t, 120.10, note.TotalAmount)
	assert.Equal(t, "jamie@example.com", note.CustomerEmail)
	assert.Equal(t, models.OrderStatusPending, note.Status)
	require.Len(t, note.Items, 1)
	assert.Equal(t, `Aurora Gown (Back: Lace Up)`, note.Items[0].Title)
	assert.Equal(t, 110.00, note.Items[0].Price)
}

func TestOrderService_UpdateContact(t *testing.T) {
	orders, _ := newOrderFixture(t)

	in := sampleOrderInput()
	in.CustomerName = ""
	in.CustomerEmail = ""
	order, err := orders.Create(in)
	require.NoError(t, err)

	require.NoError(t, orders.UpdateContact(order.ID, "Robin Vale", "robin@example.com"))

	reloaded, err := orders.Get(order.ID)
	require.NoError(t, err)
	assert.Equal(t, "Robin Vale", reloaded.CustomerName)
	assert.Equal(t, "robin@example.com", reloaded.CustomerEmail)
}
