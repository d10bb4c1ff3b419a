package handlers

import (
	"bytes"
	"fmt"
	"net/http"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/example/wdstore/internal/database"
	"github.com/example/wdstore/internal/models"
	"github.com/example/wdstore/internal/services"
)

func newWebhookApp(t *testing.T) (*fiber.App, *gorm.DB, *services.OrderService) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))

	bus := services.NewBus()
	orders := services.NewOrderService(db, bus, services.SiteInfo{Name: "WD Store"}, nil)
	settings := services.NewSettingsService(db, "", "", "")
	stripeSvc := services.NewStripeService(settings, "salt-for-tests")

	app := fiber.New()
	h := NewStripeWebhookHandler(db, orders, stripeSvc)
	app.Post("/stripe/webhook", h.Handle)
	return app, db, orders
}

func postEvent(t *testing.T, app *fiber.App, payload string) *http.Response {
	t.Helper()
	req, _ := http.NewRequest(http.MethodPost, "/stripe/webhook", bytes.NewBufferString(payload))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	return resp
}

func TestStripeWebhook_PaymentIntentMarksPaid(t *testing.T) {
	app, db, orders := newWebhookApp(t)

	order, err := orders.Create(services.NewOrderInput{
		CustomerEmail: "jamie@example.com",
		Totals:        services.CalcTotals([]services.PricedLine{{BasePrice: 100, AddonPrice: 10, Quantity: 1}}, 6, 3),
	})
	require.NoError(t, err)

	payload := fmt.Sprintf(`{
		"id": "evt_1",
		"type": "payment_intent.succeeded",
		"data": {"object": {"id": "pi_456", "metadata": {"order_id": "%s"}}}
	}`, order.ID)

	resp := postEvent(t, app, payload)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	var reloaded models.Order
	require.NoError(t, db.First(&reloaded, "id = ?", order.ID).Error)
	assert.Equal(t, models.OrderStatusPaid, reloaded.Status)
	assert.Equal(t, "pi_456", reloaded.PaymentID)
}

func TestStripeWebhook_UnknownEventAcked(t *testing.T) {
	app, _, _ := newWebhookApp(t)

	resp := postEvent(t, app, `{
		"id": "evt_2",
		"type": "customer.created",
		"data": {"object": {"id": "cus_1"}}
	}`)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestStripeWebhook_MalformedPayloadRejected(t *testing.T) {
	app, _, _ := newWebhookApp(t)

	resp := postEvent(t, app, "not-json")
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}
