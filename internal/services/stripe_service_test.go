package services

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStripeFixture(t *testing.T) *StripeService {
	t.Helper()
	db := newTestDB(t)
	settings := NewSettingsService(db, "", "", "")
	return NewStripeService(settings, "salt-for-tests")
}

func TestSuccessKey_RoundTrip(t *testing.T) {
	svc := newStripeFixture(t)

	key := svc.BuildSuccessKey("order-1", "user-1")
	assert.True(t, svc.VerifySuccessKey("order-1", "user-1", key))
	assert.False(t, svc.VerifySuccessKey("order-2", "user-1", key))
	assert.False(t, svc.VerifySuccessKey("order-1", "", key))
	assert.False(t, svc.VerifySuccessKey("order-1", "user-1", key+"00"))
}

func TestSuccessKey_SaltMatters(t *testing.T) {
	db := newTestDB(t)
	settings := NewSettingsService(db, "", "", "")
	a := NewStripeService(settings, "salt-a")
	b := NewStripeService(settings, "salt-b")

	key := a.BuildSuccessKey("order-1", "user-1")
	assert.False(t, b.VerifySuccessKey("order-1", "user-1", key))
}

func TestSuccessURL_Placement(t *testing.T) {
	svc := newStripeFixture(t)
	cfg := StoreConfig{ThankYouURL: "https://wd.example/thanks"}

	url := svc.SuccessURL(cfg, "oid", "uid")
	assert.Contains(t, url, "https://wd.example/thanks?")
	assert.Contains(t, url, "wdss=success")
	assert.Contains(t, url, "order_id=oid")
	assert.Contains(t, url, "session_id={CHECKOUT_SESSION_ID}")

	cfg.ThankYouURL = "https://wd.example/thanks?page=1"
	url = svc.SuccessURL(cfg, "oid", "uid")
	assert.Contains(t, url, "?page=1&")
}

func TestVerifyWebhook_NoSecretParsesUnverified(t *testing.T) {
	svc := newStripeFixture(t)

	payload := []byte(`{
		"id": "evt_1",
		"type": "payment_intent.succeeded",
		"data": {"object": {"id": "pi_456", "metadata": {"order_id": "order-abc"}}}
	}`)

	event, err := svc.VerifyWebhook(payload, "")
	require.NoError(t, err)
	assert.Equal(t, "payment_intent.succeeded", string(event.Type))

	hints := ExtractHints(event.Data.Raw)
	assert.Equal(t, "order-abc", hints.OrderID)
	assert.Equal(t, "pi_456", hints.PaymentID)
}

func TestVerifyWebhook_NoSecretRejectsGarbage(t *testing.T) {
	svc := newStripeFixture(t)

	_, err := svc.VerifyWebhook([]byte("not-json"), "")
	require.Error(t, err)
}

func TestExtractHints_CheckoutSession(t *testing.T) {
	raw := json.RawMessage(`{
		"id": "cs_123",
		"client_reference_id": "order-abc",
		"payment_intent": "pi_456",
		"customer_details": {"email": "jamie@example.com", "name": "Jamie Doe"}
	}`)

	hints := ExtractHints(raw)
	assert.Equal(t, "order-abc", hints.OrderID)
	assert.Equal(t, "pi_456", hints.PaymentID)
	assert.Equal(t, "jamie@example.com", hints.CustomerEmail)
	assert.Equal(t, "Jamie Doe", hints.CustomerName)
}

func TestExtractHints_MetadataWinsOverReference(t *testing.T) {
	raw := json.RawMessage(`{
		"id": "pi_789",
		"metadata": {"order_id": "order-meta"},
		"client_reference_id": "order-ref",
		"receipt_email": "receipt@example.com"
	}`)

	hints := ExtractHints(raw)
	assert.Equal(t, "order-meta", hints.OrderID)
	assert.Equal(t, "pi_789", hints.PaymentID)
	assert.Equal(t, "receipt@example.com", hints.CustomerEmail)
}

func TestExtractHints_ChargeBillingDetails(t *testing.T) {
	raw := json.RawMessage(`{
		"id": "pi_000",
		"metadata": {"order_id": "order-xyz"},
		"charges": {"data": [{"billing_details": {"email": "card@example.com", "name": "Card Holder"}}]}
	}`)

	hints := ExtractHints(raw)
	assert.Equal(t, "order-xyz", hints.OrderID)
	assert.Equal(t, "card@example.com", hints.CustomerEmail)
	assert.Equal(t, "Card Holder", hints.CustomerName)
}

func TestExtractHints_Malformed(t *testing.T) {
	hints := ExtractHints(json.RawMessage(`not-json`))
	assert.Equal(t, PaymentHints{}, hints)
}

func TestToCents(t *testing.T) {
	assert.Equal(t, int64(12010), toCents(120.10))
	assert.Equal(t, int64(350), toCents(3.50))
	assert.Equal(t, int64(0), toCents(0))
}
