package handlers

import (
	"errors"
	"log"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/example/wdstore/internal/models"
	"github.com/example/wdstore/internal/services"
)

// StripeWebhookHandler receives Stripe events. It is one of the
// redundant paid signals; the others are the success page and the
// order poller.
type StripeWebhookHandler struct {
	db     *gorm.DB
	orders *services.OrderService
	stripe *services.StripeService
}

// NewStripeWebhookHandler constructs StripeWebhookHandler.
func NewStripeWebhookHandler(db *gorm.DB, orders *services.OrderService, stripe *services.StripeService) *StripeWebhookHandler {
	return &StripeWebhookHandler{db: db, orders: orders, stripe: stripe}
}

// Handle verifies the signature and marks orders paid for the payment
// event family. Unknown event types are acknowledged and ignored.
func (h *StripeWebhookHandler) Handle(c *fiber.Ctx) error {
	event, err := h.stripe.VerifyWebhook(c.Body(), c.Get("Stripe-Signature"))
	if err != nil {
		log.Printf("[Stripe] Webhook verification failed: %v", err)
		return fiber.NewError(fiber.StatusBadRequest, "invalid signature")
	}

	switch event.Type {
	case "checkout.session.completed", "payment_intent.succeeded", "charge.succeeded":
		hints := services.ExtractHints(event.Data.Raw)
		if err := h.markPaid(string(event.Type), hints); err != nil {
			log.Printf("[Stripe] Failed to process %s: %v", event.Type, err)
			return fiber.NewError(fiber.StatusInternalServerError, "processing failed")
		}
	default:
		log.Printf("[Stripe] Ignoring event type %s", event.Type)
		h.orders.EmitOrderEvent(services.EventOrderDebug, uuid.Nil, map[string]string{
			"stripe_event": string(event.Type),
		})
	}

	return c.JSON(fiber.Map{"received": true})
}

func (h *StripeWebhookHandler) markPaid(eventType string, hints services.PaymentHints) error {
	if hints.OrderID == "" {
		log.Printf("[Stripe] Event %s carries no order reference", eventType)
		h.orders.EmitOrderEvent(services.EventOrderDebug, uuid.Nil, map[string]string{
			"stripe_event": eventType,
			"payment_id":   hints.PaymentID,
		})
		return nil
	}
	orderID, err := uuid.Parse(hints.OrderID)
	if err != nil {
		log.Printf("[Stripe] Event %s carries malformed order id %q", eventType, hints.OrderID)
		return nil
	}

	var order models.Order
	if err := h.db.First(&order, "id = ?", orderID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			log.Printf("[Stripe] Event %s references unknown order %s", eventType, orderID)
			return nil
		}
		return err
	}

	if hints.CustomerEmail != "" || hints.CustomerName != "" {
		if err := h.orders.UpdateContact(orderID, hints.CustomerName, hints.CustomerEmail); err != nil {
			log.Printf("[Stripe] Contact update failed for %s: %v", order.Number, err)
		}
	}

	return h.orders.SetStatus(orderID, models.OrderStatusPaid, map[string]string{
		"payment_id":     hints.PaymentID,
		"customer_email": hints.CustomerEmail,
		"customer_name":  hints.CustomerName,
	})
}
