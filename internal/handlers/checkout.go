package handlers

import (
	"errors"
	"log"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/example/wdstore/internal/middleware"
	"github.com/example/wdstore/internal/models"
	"github.com/example/wdstore/internal/services"
)

// CheckoutHandler turns a cart into a pending order and drives both
// payment flows: hosted Checkout Sessions and inline PaymentIntents.
type CheckoutHandler struct {
	db       *gorm.DB
	cart     *services.CartService
	orders   *services.OrderService
	settings *services.SettingsService
	stripe   *services.StripeService
}

// NewCheckoutHandler constructs CheckoutHandler.
func NewCheckoutHandler(db *gorm.DB, cart *services.CartService, orders *services.OrderService, settings *services.SettingsService, stripe *services.StripeService) *CheckoutHandler {
	return &CheckoutHandler{db: db, cart: cart, orders: orders, settings: settings, stripe: stripe}
}

// StoreConfig exposes what the storefront needs to render checkout:
// publishable key, rates and addon price choices.
func (h *CheckoutHandler) StoreConfig(c *fiber.Ctx) error {
	cfg := h.settings.Get()

	return c.JSON(fiber.Map{
		"success": true,
		"data": fiber.Map{
			"stripe_pk":      cfg.StripePublishableKey,
			"sales_tax_rate": cfg.SalesTaxRate,
			"card_fee_rate":  cfg.CardFeeRate,
			"addon_prices":   cfg.AddonPrices,
			"addon_choices":  services.AddonChoices(),
		},
	})
}

type createOrderRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// CreateOrder snapshots the cart into a pending order. The order id is
// also dropped into a cookie so the success page can find it even when
// the redirect loses its query string.
func (h *CheckoutHandler) CreateOrder(c *fiber.Ctx) error {
	var req createOrderRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	token := cartToken(c)
	lines, totals, err := h.cart.Price(c.Context(), token)
	if err != nil {
		return err
	}
	if len(lines) == 0 {
		return fiber.NewError(fiber.StatusBadRequest, "cart is empty")
	}

	in := services.NewOrderInput{
		CustomerName:  strings.TrimSpace(req.Name),
		CustomerEmail: strings.ToLower(strings.TrimSpace(req.Email)),
		Currency:      "USD",
		Totals:        totals,
	}
	if userID, ok := middleware.GetCurrentUserID(c); ok {
		in.CustomerID = &userID
	}
	for _, line := range lines {
		in.Items = append(in.Items, services.NewOrderItemInput{
			ProductID:    line.ProductID,
			ProductTitle: line.ProductTitle,
			Quantity:     line.Quantity,
			UnitPrice:    line.UnitPrice,
			AddonPrice:   line.AddonPrice,
			Addons:       line.Addons,
		})
	}

	order, err := h.orders.Create(in)
	if err != nil {
		return err
	}

	c.Cookie(&fiber.Cookie{
		Name:     lastOrderCookie,
		Value:    order.ID.String(),
		Expires:  time.Now().Add(24 * time.Hour),
		HTTPOnly: true,
		SameSite: "Lax",
		Path:     "/",
	})

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"data":    order,
	})
}

type checkoutSessionRequest struct {
	OrderID string `json:"order_id"`
	Email   string `json:"email"`
}

// CreateSession creates a hosted Checkout Session for an order and
// returns the redirect URL.
func (h *CheckoutHandler) CreateSession(c *fiber.Ctx) error {
	var req checkoutSessionRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	order, err := h.loadPendingOrder(req.OrderID)
	if err != nil {
		return err
	}

	sess, err := h.stripe.CreateCheckoutSession(order)
	if err != nil {
		log.Printf("[Checkout] Session create failed for %s: %v", order.Number, err)
		return fiber.NewError(fiber.StatusBadGateway, "payment provider error")
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data": fiber.Map{
			"session_id": sess.ID,
			"url":        sess.URL,
		},
	})
}

// CreatePaymentIntent backs the inline Elements flow.
func (h *CheckoutHandler) CreatePaymentIntent(c *fiber.Ctx) error {
	var req checkoutSessionRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	order, err := h.loadPendingOrder(req.OrderID)
	if err != nil {
		return err
	}

	if order.CustomerEmail == "" && req.Email != "" {
		if err := h.orders.UpdateContact(order.ID, "", req.Email); err != nil {
			return err
		}
		order.CustomerEmail = req.Email
	}

	intent, err := h.stripe.CreatePaymentIntent(order)
	if err != nil {
		log.Printf("[Checkout] PaymentIntent create failed for %s: %v", order.Number, err)
		return fiber.NewError(fiber.StatusBadGateway, "payment provider error")
	}

	cfg := h.settings.Get()
	return c.JSON(fiber.Map{
		"success": true,
		"data": fiber.Map{
			"client_secret": intent.ClientSecret,
			"stripe_pk":     cfg.StripePublishableKey,
		},
	})
}

func (h *CheckoutHandler) loadPendingOrder(rawID string) (*models.Order, error) {
	id, err := uuid.Parse(rawID)
	if err != nil {
		return nil, fiber.NewError(fiber.StatusBadRequest, "invalid order id")
	}
	order, err := h.orders.Get(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fiber.NewError(fiber.StatusNotFound, "order not found")
		}
		return nil, err
	}
	if order.Status != models.OrderStatusPending {
		return nil, fiber.NewError(fiber.StatusConflict, "order is not payable")
	}
	return order, nil
}

// Success confirms a returning customer's payment. The order is found
// through a guard chain: a signed key in the query string, then the
// last-order cookie, then a Stripe session lookup. Whichever matches,
// the payment state is verified with Stripe before the order flips to
// paid, so a forged URL cannot confirm an unpaid order.
func (h *CheckoutHandler) Success(c *fiber.Ctx) error {
	orderID, verified := h.resolveSuccessOrder(c)
	if orderID == uuid.Nil {
		return fiber.NewError(fiber.StatusNotFound, "order not found")
	}

	order, err := h.orders.Get(orderID)
	if err != nil {
		return fiber.NewError(fiber.StatusNotFound, "order not found")
	}

	hints := map[string]string{}
	if sessionID := c.Query("session_id"); sessionID != "" {
		sess, err := h.stripe.RetrieveSession(sessionID)
		if err == nil {
			if sess.PaymentStatus == "paid" {
				verified = true
			}
			if sess.PaymentIntent != nil {
				hints["payment_id"] = sess.PaymentIntent.ID
			}
			if sess.CustomerDetails != nil {
				hints["customer_email"] = sess.CustomerDetails.Email
				hints["customer_name"] = sess.CustomerDetails.Name
			}
		}
	}

	if verified && order.Status == models.OrderStatusPending {
		if hints["customer_email"] != "" || hints["customer_name"] != "" {
			if err := h.orders.UpdateContact(order.ID, hints["customer_name"], hints["customer_email"]); err != nil {
				log.Printf("[Checkout] Contact update failed for %s: %v", order.Number, err)
			}
		}
		if err := h.orders.SetStatus(order.ID, models.OrderStatusPaid, hints); err != nil {
			return err
		}
		order, _ = h.orders.Get(order.ID)
	}

	if err := h.cart.Clear(c.Context(), cartToken(c)); err != nil {
		log.Printf("[Checkout] Cart clear failed: %v", err)
	}
	c.Cookie(&fiber.Cookie{
		Name:    lastOrderCookie,
		Value:   "",
		Expires: time.Now().Add(-time.Hour),
		Path:    "/",
	})

	return c.JSON(fiber.Map{
		"success": true,
		"data":    order,
	})
}

// resolveSuccessOrder walks the guard chain. A valid signed key both
// identifies and verifies the order; the cookie and session fallbacks
// only identify it.
func (h *CheckoutHandler) resolveSuccessOrder(c *fiber.Ctx) (uuid.UUID, bool) {
	rawID := c.Query("order_id")
	uid := c.Query("uid")
	key := c.Query("key")
	if rawID != "" && key != "" && h.stripe.VerifySuccessKey(rawID, uid, key) {
		if id, err := uuid.Parse(rawID); err == nil {
			return id, true
		}
	}

	if raw := c.Cookies(lastOrderCookie); raw != "" {
		if id, err := uuid.Parse(raw); err == nil {
			return id, false
		}
	}

	if sessionID := c.Query("session_id"); sessionID != "" {
		if sess, err := h.stripe.RetrieveSession(sessionID); err == nil {
			ref := sess.ClientReferenceID
			if ref == "" && sess.Metadata != nil {
				ref = sess.Metadata["order_id"]
			}
			if id, err := uuid.Parse(ref); err == nil {
				return id, false
			}
		}
	}

	return uuid.Nil, false
}
