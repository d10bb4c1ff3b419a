package models

// StoreSettings is the single-row store configuration edited from the
// admin settings screen. Addon prices live in a JSON column so new
// choices do not require a migration.
type StoreSettings struct {
	BaseModel
	StripeSecretKey      string  `json:"stripe_sk"`
	StripePublishableKey string  `json:"stripe_pk"`
	StripeWebhookSecret  string  `json:"stripe_whsec"`
	SalesTaxRate         float64 `json:"sales_tax_rate"`
	CardFeeRate          float64 `json:"card_fee_rate"`
	AddonPrices          []byte  `gorm:"type:jsonb" json:"addon_prices"`
	ThankYouURL          string  `json:"thankyou_url"`
	CancelURL            string  `json:"cancel_url"`
}
