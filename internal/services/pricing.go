package services

import (
	"math"
	"strings"
)

// AddonSelection is the per-line customization chosen at add-to-cart time.
// Empty string means the option was not selected.
type AddonSelection struct {
	Back    string `json:"back"`    // "Zip Up" | "Lace Up"
	Length3 string `json:"length3"` // additional 3" front length: "Yes" | "No"
	Train12 string `json:"train12"` // additional 12" train length: "Yes" | "No"
}

// Addon price keys as stored in settings.
const (
	AddonBackZipUp  = "back_zip_up"
	AddonBackLaceUp = "back_lace_up"
	AddonLength3Yes = "length3_yes"
	AddonLength3No  = "length3_no"
	AddonTrain12Yes = "train12_yes"
	AddonTrain12No  = "train12_no"
)

// AddonChoices returns the allowed values per option.
func AddonChoices() map[string][]string {
	return map[string][]string{
		"back":    {"Zip Up", "Lace Up"},
		"length3": {"Yes", "No"},
		"train12": {"Yes", "No"},
	}
}

// SanitizeAddons drops values outside the fixed choice sets.
func SanitizeAddons(sel AddonSelection) AddonSelection {
	choices := AddonChoices()
	out := AddonSelection{}
	if contains(choices["back"], strings.TrimSpace(sel.Back)) {
		out.Back = strings.TrimSpace(sel.Back)
	}
	if contains(choices["length3"], strings.TrimSpace(sel.Length3)) {
		out.Length3 = strings.TrimSpace(sel.Length3)
	}
	if contains(choices["train12"], strings.TrimSpace(sel.Train12)) {
		out.Train12 = strings.TrimSpace(sel.Train12)
	}
	return out
}

// AddonLabel renders the selection suffix used on line items and Stripe
// product names, e.g. ` (Back: Zip Up; 3" Front: Yes)`.
func AddonLabel(sel AddonSelection) string {
	parts := make([]string, 0, 3)
	if sel.Back != "" {
		parts = append(parts, "Back: "+sel.Back)
	}
	if sel.Length3 != "" {
		parts = append(parts, `3" Front: `+sel.Length3)
	}
	if sel.Train12 != "" {
		parts = append(parts, `12" Train: `+sel.Train12)
	}
	if len(parts) == 0 {
		return ""
	}
	return " (" + strings.Join(parts, "; ") + ")"
}

// AddonUnitPrice sums the configured flat fees for each selected choice.
func AddonUnitPrice(prices map[string]float64, sel AddonSelection) float64 {
	total := 0.0
	switch sel.Back {
	case "Zip Up":
		total += prices[AddonBackZipUp]
	case "Lace Up":
		total += prices[AddonBackLaceUp]
	}
	switch sel.Length3 {
	case "Yes":
		total += prices[AddonLength3Yes]
	case "No":
		total += prices[AddonLength3No]
	}
	switch sel.Train12 {
	case "Yes":
		total += prices[AddonTrain12Yes]
	case "No":
		total += prices[AddonTrain12No]
	}
	return Round2(total)
}

// PricedLine is one cart line with its resolved unit prices.
type PricedLine struct {
	BasePrice  float64
	AddonPrice float64
	Quantity   int
}

// Totals breaks down the cart price. Tax applies to the subtotal; the
// card processing fee applies to subtotal plus tax.
type Totals struct {
	Subtotal float64 `json:"subtotal"`
	TaxRate  float64 `json:"sales_rate"`
	FeeRate  float64 `json:"card_rate"`
	SalesTax float64 `json:"sales_tax"`
	CardFee  float64 `json:"card_fee"`
	Grand    float64 `json:"grand"`
}

// CalcTotals computes subtotal, sales tax, card fee and grand total.
func CalcTotals(lines []PricedLine, taxRate, feeRate float64) Totals {
	subtotal := 0.0
	for _, l := range lines {
		qty := l.Quantity
		if qty < 1 {
			qty = 1
		}
		subtotal += (l.BasePrice + l.AddonPrice) * float64(qty)
	}
	subtotal = Round2(subtotal)

	salesTax := Round2(subtotal * (taxRate / 100))
	cardFee := Round2((subtotal + salesTax) * (feeRate / 100))
	grand := Round2(subtotal + salesTax + cardFee)

	return Totals{
		Subtotal: subtotal,
		TaxRate:  taxRate,
		FeeRate:  feeRate,
		SalesTax: salesTax,
		CardFee:  cardFee,
		Grand:    grand,
	}
}

// Round2 rounds half away from zero to two decimals.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func contains(values []string, v string) bool {
	for _, x := range values {
		if x == v {
			return true
		}
	}
	return false
}
