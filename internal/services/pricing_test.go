package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCalcTotals(t *testing.T) {
	lines := []PricedLine{
		{BasePrice: 100, AddonPrice: 10, Quantity: 1},
	}

	totals := CalcTotals(lines, 6, 3)

	assert.Equal(t, 110.00, totals.Subtotal)
	assert.Equal(t, 6.60, totals.SalesTax)
	assert.Equal(t, 3.50, totals.CardFee)
	assert.Equal(t, 120.10, totals.Grand)
}

func TestCalcTotals_ZeroRates(t *testing.T) {
	lines := []PricedLine{
		{BasePrice: 49.99, Quantity: 2},
	}

	totals := CalcTotals(lines, 0, 0)

	assert.Equal(t, 99.98, totals.Subtotal)
	assert.Equal(t, 0.0, totals.SalesTax)
	assert.Equal(t, 0.0, totals.CardFee)
	assert.Equal(t, 99.98, totals.Grand)
}

func TestCalcTotals_QuantityFloor(t *testing.T) {
	lines := []PricedLine{
		{BasePrice: 25, Quantity: 0},
	}

	totals := CalcTotals(lines, 0, 0)

	assert.Equal(t, 25.0, totals.Subtotal)
}

func TestAddonUnitPrice(t *testing.T) {
	prices := map[string]float64{
		AddonBackZipUp:  5,
		AddonBackLaceUp: 15,
		AddonLength3Yes: 20,
		AddonTrain12Yes: 30,
	}

	assert.Equal(t, 5.0, AddonUnitPrice(prices, AddonSelection{Back: "Zip Up"}))
	assert.Equal(t, 15.0, AddonUnitPrice(prices, AddonSelection{Back: "Lace Up"}))
	assert.Equal(t, 50.0, AddonUnitPrice(prices, AddonSelection{Length3: "Yes", Train12: "Yes"}))
	assert.Equal(t, 0.0, AddonUnitPrice(prices, AddonSelection{}))
	assert.Equal(t, 0.0, AddonUnitPrice(prices, AddonSelection{Length3: "No"}))
}

func TestSanitizeAddons(t *testing.T) {
	clean := SanitizeAddons(AddonSelection{Back: "Lace Up", Length3: "Yes", Train12: "No"})
	assert.Equal(t, AddonSelection{Back: "Lace Up", Length3: "Yes", Train12: "No"}, clean)

	dirty := SanitizeAddons(AddonSelection{Back: "Corset", Length3: "Maybe", Train12: "No"})
	assert.Equal(t, AddonSelection{Train12: "No"}, dirty)
}

func TestAddonLabel(t *testing.T) {
	assert.Equal(t, "", AddonLabel(AddonSelection{}))
	assert.Equal(t, " (Back: Zip Up)", AddonLabel(AddonSelection{Back: "Zip Up"}))
	assert.Equal(t,
		` (Back: Lace Up; 3" Front: Yes; 12" Train: No)`,
		AddonLabel(AddonSelection{Back: "Lace Up", Length3: "Yes", Train12: "No"}))
}

func TestRound2(t *testing.T) {
	assert.Equal(t, 3.50, Round2(3.4999999))
	assert.Equal(t, 6.60, Round2(6.6000001))
	assert.Equal(t, 0.01, Round2(0.005))
	assert.Equal(t, -1.23, Round2(-1.234))
}
