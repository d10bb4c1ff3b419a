package services

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/example/wdstore/internal/models"
)

func newCartFixture(t *testing.T) (*CartService, *gorm.DB) {
	t.Helper()
	db := newTestDB(t)
	settings := NewSettingsService(db, "", "", "")
	cart := NewCartService(db, newMemoryCartStore(), settings)
	return cart, db
}

func seedProduct(t *testing.T, db *gorm.DB, title string, price float64) *models.Product {
	t.Helper()
	product := &models.Product{
		Slug:   Slugify(title),
		Title:  title,
		Price:  price,
		Status: models.ProductStatusPublish,
	}
	require.NoError(t, db.Create(product).Error)
	return product
}

func TestCartService_AddMergesBySignature(t *testing.T) {
	cart, db := newCartFixture(t)
	ctx := context.Background()
	product := seedProduct(t, db, "Aurora Gown", 100)

	line := CartLine{ProductID: product.ID, Quantity: 1, Addons: AddonSelection{Back: "Lace Up"}}
	_, err := cart.Add(ctx, "tok", line)
	require.NoError(t, err)

	lines, err := cart.Add(ctx, "tok", line)
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Equal(t, 2, lines[0].Quantity)

	// a different addon selection is its own line
	lines, err = cart.Add(ctx, "tok", CartLine{ProductID: product.ID, Quantity: 1, Addons: AddonSelection{Back: "Zip Up"}})
	require.NoError(t, err)
	assert.Len(t, lines, 2)
}

func TestCartService_AddUnknownProduct(t *testing.T) {
	cart, _ := newCartFixture(t)

	_, err := cart.Add(context.Background(), "tok", CartLine{ProductID: uuid.New(), Quantity: 1})
	assert.ErrorIs(t, err, ErrProductUnavailable)
}

func TestCartService_AddDraftProduct(t *testing.T) {
	cart, db := newCartFixture(t)
	product := seedProduct(t, db, "Unreleased", 50)
	require.NoError(t, db.Model(product).Update("status", models.ProductStatusDraft).Error)

	_, err := cart.Add(context.Background(), "tok", CartLine{ProductID: product.ID, Quantity: 1})
	assert.ErrorIs(t, err, ErrProductUnavailable)
}

func TestCartService_SetQuantityZeroRemoves(t *testing.T) {
	cart, db := newCartFixture(t)
	ctx := context.Background()
	product := seedProduct(t, db, "Aurora Gown", 100)

	line := CartLine{ProductID: product.ID, Quantity: 2}
	_, err := cart.Add(ctx, "tok", line)
	require.NoError(t, err)

	line.Quantity = 5
	lines, err := cart.SetQuantity(ctx, "tok", line)
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Equal(t, 5, lines[0].Quantity)

	line.Quantity = 0
	lines, err = cart.SetQuantity(ctx, "tok", line)
	require.NoError(t, err)
	assert.Empty(t, lines)
}

func TestCartService_PriceWithAddonsAndRates(t *testing.T) {
	cart, db := newCartFixture(t)
	ctx := context.Background()
	product := seedProduct(t, db, "Aurora Gown", 100)

	prices, err := json.Marshal(map[string]float64{"back_lace_up": 10})
	require.NoError(t, err)
	require.NoError(t, db.Create(&models.StoreSettings{
		SalesTaxRate: 6,
		CardFeeRate:  3,
		AddonPrices:  prices,
	}).Error)

	_, err = cart.Add(ctx, "tok", CartLine{ProductID: product.ID, Quantity: 1, Addons: AddonSelection{Back: "Lace Up"}})
	require.NoError(t, err)

	lines, totals, err := cart.Price(ctx, "tok")
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Equal(t, "Aurora Gown (Back: Lace Up)", lines[0].ProductTitle)
	assert.Equal(t, 100.0, lines[0].UnitPrice)
	assert.Equal(t, 10.0, lines[0].AddonPrice)
	assert.Equal(t, 110.0, lines[0].LineTotal)

	assert.Equal(t, 110.00, totals.Subtotal)
	assert.Equal(t, 6.60, totals.SalesTax)
	assert.Equal(t, 3.50, totals.CardFee)
	assert.Equal(t, 120.10, totals.Grand)
}

func TestCartService_PriceSkipsVanishedProducts(t *testing.T) {
	cart, db := newCartFixture(t)
	ctx := context.Background()
	product := seedProduct(t, db, "Aurora Gown", 100)

	_, err := cart.Add(ctx, "tok", CartLine{ProductID: product.ID, Quantity: 1})
	require.NoError(t, err)
	require.NoError(t, db.Delete(&models.Product{}, "id = ?", product.ID).Error)

	lines, totals, err := cart.Price(ctx, "tok")
	require.NoError(t, err)
	assert.Empty(t, lines)
	assert.Equal(t, 0.0, totals.Grand)
}

func TestDBCartStore_RoundTrip(t *testing.T) {
	db := newTestDB(t)
	store := NewDBCartStore(db)
	ctx := context.Background()

	lines := []CartLine{{ProductID: uuid.New(), Quantity: 3, Addons: AddonSelection{Train12: "Yes"}}}
	require.NoError(t, store.Save(ctx, "tok", lines))

	got, err := store.Get(ctx, "tok")
	require.NoError(t, err)
	assert.Equal(t, lines, got)

	require.NoError(t, store.Clear(ctx, "tok"))
	got, err = store.Get(ctx, "tok")
	require.NoError(t, err)
	assert.Empty(t, got)
}
