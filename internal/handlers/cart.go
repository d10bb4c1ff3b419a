package handlers

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/example/wdstore/internal/services"
)

const (
	cartCookie      = "wdss_cart"
	lastOrderCookie = "wdss_last_order"
)

// CartHandler exposes the session cart. The cart lives behind an
// anonymous cookie token so guests can shop without an account.
type CartHandler struct {
	cart *services.CartService
}

// NewCartHandler constructs CartHandler.
func NewCartHandler(cart *services.CartService) *CartHandler {
	return &CartHandler{cart: cart}
}

// cartToken reads the cart cookie, minting one if absent.
func cartToken(c *fiber.Ctx) string {
	token := c.Cookies(cartCookie)
	if token == "" {
		token = uuid.NewString()
		c.Cookie(&fiber.Cookie{
			Name:     cartCookie,
			Value:    token,
			Expires:  time.Now().Add(72 * time.Hour),
			HTTPOnly: true,
			SameSite: "Lax",
			Path:     "/",
		})
	}
	return token
}

type cartLineRequest struct {
	ProductID string                  `json:"product_id"`
	Quantity  int                     `json:"quantity"`
	Addons    services.AddonSelection `json:"addons"`
}

func (r cartLineRequest) toLine() (services.CartLine, error) {
	id, err := uuid.Parse(r.ProductID)
	if err != nil {
		return services.CartLine{}, err
	}
	return services.CartLine{ProductID: id, Quantity: r.Quantity, Addons: r.Addons}, nil
}

// GetCart returns the priced cart and totals.
func (h *CartHandler) GetCart(c *fiber.Ctx) error {
	lines, totals, err := h.cart.Price(c.Context(), cartToken(c))
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data": fiber.Map{
			"items":  lines,
			"totals": totals,
		},
	})
}

// AddToCart merges one line into the cart.
func (h *CartHandler) AddToCart(c *fiber.Ctx) error {
	var req cartLineRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	line, err := req.toLine()
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid product id")
	}

	if _, err := h.cart.Add(c.Context(), cartToken(c), line); err != nil {
		if errors.Is(err, services.ErrProductUnavailable) {
			return fiber.NewError(fiber.StatusNotFound, "product unavailable")
		}
		return err
	}

	return h.GetCart(c)
}

// UpdateCartLine sets a line's quantity; zero removes it.
func (h *CartHandler) UpdateCartLine(c *fiber.Ctx) error {
	var req cartLineRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	line, err := req.toLine()
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid product id")
	}

	if _, err := h.cart.SetQuantity(c.Context(), cartToken(c), line); err != nil {
		return err
	}

	return h.GetCart(c)
}

// RemoveFromCart drops one line identified by product and addons.
func (h *CartHandler) RemoveFromCart(c *fiber.Ctx) error {
	var req cartLineRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	line, err := req.toLine()
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid product id")
	}
	line.Quantity = 0

	if _, err := h.cart.SetQuantity(c.Context(), cartToken(c), line); err != nil {
		return err
	}

	return h.GetCart(c)
}

// ClearCart drops every line.
func (h *CartHandler) ClearCart(c *fiber.Ctx) error {
	if err := h.cart.Clear(c.Context(), cartToken(c)); err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
	})
}
