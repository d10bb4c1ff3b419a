package services

import (
	"encoding/json"
	"log"

	"gorm.io/gorm"

	"github.com/example/wdstore/internal/models"
)

// StoreConfig is the merged settings view handed to pricing/checkout.
// All keys are guaranteed present.
type StoreConfig struct {
	StripeSecretKey      string             `json:"stripe_sk"`
	StripePublishableKey string             `json:"stripe_pk"`
	StripeWebhookSecret  string             `json:"-"`
	SalesTaxRate         float64            `json:"sales_tax_rate"`
	CardFeeRate          float64            `json:"card_fee_rate"`
	AddonPrices          map[string]float64 `json:"addon_prices"`
	ThankYouURL          string             `json:"thankyou_url"`
	CancelURL            string             `json:"cancel_url"`
}

// DefaultAddonPrices mirrors the settings screen defaults.
func DefaultAddonPrices() map[string]float64 {
	return map[string]float64{
		AddonBackZipUp:  0.00,
		AddonBackLaceUp: 0.00,
		AddonLength3Yes: 0.00,
		AddonLength3No:  0.00,
		AddonTrain12Yes: 0.00,
		AddonTrain12No:  0.00,
	}
}

func defaultStoreConfig() StoreConfig {
	return StoreConfig{
		SalesTaxRate: 6,
		CardFeeRate:  3,
		AddonPrices:  DefaultAddonPrices(),
	}
}

// SettingsService reads and writes the single StoreSettings row.
type SettingsService struct {
	db *gorm.DB

	// env-level fallbacks applied when the stored row has blanks
	envStripeSK    string
	envStripePK    string
	envStripeWHSec string
}

func NewSettingsService(db *gorm.DB, envStripeSK, envStripePK, envStripeWHSec string) *SettingsService {
	return &SettingsService{
		db:             db,
		envStripeSK:    envStripeSK,
		envStripePK:    envStripePK,
		envStripeWHSec: envStripeWHSec,
	}
}

// Get loads the settings row merged with defaults so all keys exist.
func (s *SettingsService) Get() StoreConfig {
	cfg := defaultStoreConfig()

	var row models.StoreSettings
	err := s.db.Order("created_at asc").First(&row).Error
	if err != nil {
		if err != gorm.ErrRecordNotFound {
			log.Printf("[Settings] load failed: %v", err)
		}
		cfg.StripeSecretKey = s.envStripeSK
		cfg.StripePublishableKey = s.envStripePK
		cfg.StripeWebhookSecret = s.envStripeWHSec
		return cfg
	}

	cfg.StripeSecretKey = firstNonEmpty(row.StripeSecretKey, s.envStripeSK)
	cfg.StripePublishableKey = firstNonEmpty(row.StripePublishableKey, s.envStripePK)
	cfg.StripeWebhookSecret = firstNonEmpty(row.StripeWebhookSecret, s.envStripeWHSec)
	cfg.SalesTaxRate = clamp(row.SalesTaxRate, 0, 100)
	cfg.CardFeeRate = clamp(row.CardFeeRate, 0, 100)
	cfg.ThankYouURL = row.ThankYouURL
	cfg.CancelURL = row.CancelURL

	if len(row.AddonPrices) > 0 {
		saved := map[string]float64{}
		if err := json.Unmarshal(row.AddonPrices, &saved); err == nil {
			for k, v := range saved {
				cfg.AddonPrices[k] = clamp(Round2(v), -99999, 99999)
			}
		}
	}

	return cfg
}

// Save upserts the settings row. Rates are clamped 0-100, addon prices
// to [-99999, 99999] at two decimals.
func (s *SettingsService) Save(cfg StoreConfig) error {
	prices := DefaultAddonPrices()
	for k, v := range cfg.AddonPrices {
		if _, known := prices[k]; known {
			prices[k] = clamp(Round2(v), -99999, 99999)
		}
	}
	raw, err := json.Marshal(prices)
	if err != nil {
		return err
	}

	var row models.StoreSettings
	err = s.db.Order("created_at asc").First(&row).Error
	if err != nil && err != gorm.ErrRecordNotFound {
		return err
	}

	row.StripeSecretKey = cfg.StripeSecretKey
	row.StripePublishableKey = cfg.StripePublishableKey
	row.StripeWebhookSecret = cfg.StripeWebhookSecret
	row.SalesTaxRate = clamp(cfg.SalesTaxRate, 0, 100)
	row.CardFeeRate = clamp(cfg.CardFeeRate, 0, 100)
	row.AddonPrices = raw
	row.ThankYouURL = cfg.ThankYouURL
	row.CancelURL = cfg.CancelURL

	return s.db.Save(&row).Error
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
