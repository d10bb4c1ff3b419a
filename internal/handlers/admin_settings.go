package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/example/wdstore/internal/services"
)

// AdminSettingsHandler reads and writes store settings.
type AdminSettingsHandler struct {
	settings *services.SettingsService
}

// NewAdminSettingsHandler constructs AdminSettingsHandler.
func NewAdminSettingsHandler(settings *services.SettingsService) *AdminSettingsHandler {
	return &AdminSettingsHandler{settings: settings}
}

// GetSettings returns the merged settings, secret key masked.
func (h *AdminSettingsHandler) GetSettings(c *fiber.Ctx) error {
	cfg := h.settings.Get()

	return c.JSON(fiber.Map{
		"success": true,
		"data": fiber.Map{
			"stripe_sk_set":  cfg.StripeSecretKey != "",
			"stripe_pk":      cfg.StripePublishableKey,
			"sales_tax_rate": cfg.SalesTaxRate,
			"card_fee_rate":  cfg.CardFeeRate,
			"addon_prices":   cfg.AddonPrices,
			"thankyou_url":   cfg.ThankYouURL,
			"cancel_url":     cfg.CancelURL,
		},
	})
}

type settingsRequest struct {
	StripeSecretKey      *string            `json:"stripe_sk"`
	StripePublishableKey *string            `json:"stripe_pk"`
	StripeWebhookSecret  *string            `json:"stripe_whsec"`
	SalesTaxRate         *float64           `json:"sales_tax_rate"`
	CardFeeRate          *float64           `json:"card_fee_rate"`
	AddonPrices          map[string]float64 `json:"addon_prices"`
	ThankYouURL          *string            `json:"thankyou_url"`
	CancelURL            *string            `json:"cancel_url"`
}

// UpdateSettings patches the settings row. Omitted fields keep their
// stored values; the service clamps rates and addon prices.
func (h *AdminSettingsHandler) UpdateSettings(c *fiber.Ctx) error {
	var req settingsRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	cfg := h.settings.Get()
	if req.StripeSecretKey != nil {
		cfg.StripeSecretKey = *req.StripeSecretKey
	}
	if req.StripePublishableKey != nil {
		cfg.StripePublishableKey = *req.StripePublishableKey
	}
	if req.StripeWebhookSecret != nil {
		cfg.StripeWebhookSecret = *req.StripeWebhookSecret
	}
	if req.SalesTaxRate != nil {
		cfg.SalesTaxRate = *req.SalesTaxRate
	}
	if req.CardFeeRate != nil {
		cfg.CardFeeRate = *req.CardFeeRate
	}
	if req.AddonPrices != nil {
		for k, v := range req.AddonPrices {
			cfg.AddonPrices[k] = v
		}
	}
	if req.ThankYouURL != nil {
		cfg.ThankYouURL = *req.ThankYouURL
	}
	if req.CancelURL != nil {
		cfg.CancelURL = *req.CancelURL
	}

	if err := h.settings.Save(cfg); err != nil {
		return err
	}

	return h.GetSettings(c)
}
