package services

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/wdstore/internal/models"
)

func TestCatalogCSV_RoundTrip(t *testing.T) {
	db := newTestDB(t)
	csvSvc := NewCatalogCSV(db)

	product := &models.Product{
		Slug:     "aurora-gown",
		SKU:      "AG-100",
		Title:    "Aurora Gown",
		Content:  "Hand-beaded bodice.\nChapel train.",
		Price:    1299.99,
		Color:    "Ivory",
		Size:     "8",
		Back:     "Lace Up",
		ImageURL: "https://cdn.wd.example/aurora.jpg",
		Status:   models.ProductStatusPublish,
		Gallery: []models.ProductImage{
			{URL: "https://cdn.wd.example/aurora-1.jpg", DisplayOrder: 0},
			{URL: "https://cdn.wd.example/aurora-2.jpg", DisplayOrder: 1},
		},
	}
	require.NoError(t, db.Create(product).Error)

	var buf bytes.Buffer
	require.NoError(t, csvSvc.Export(&buf))

	raw := buf.Bytes()
	assert.True(t, bytes.HasPrefix(raw, []byte{0xEF, 0xBB, 0xBF}), "export carries a UTF-8 BOM")
	assert.Contains(t, buf.String(), "aurora-1.jpg|https://cdn.wd.example/aurora-2.jpg")

	// wipe and re-import
	require.NoError(t, db.Where("1 = 1").Delete(&models.ProductImage{}).Error)
	require.NoError(t, db.Where("1 = 1").Delete(&models.Product{}).Error)

	summary, err := csvSvc.Import(bytes.NewReader(raw))
	require.NoError(t, err)
	assert.Equal(t, ImportSummary{Created: 1}, summary)

	var restored models.Product
	require.NoError(t, db.Preload("Gallery").First(&restored, "sku = ?", "AG-100").Error)
	assert.Equal(t, "Aurora Gown", restored.Title)
	assert.Equal(t, 1299.99, restored.Price)
	assert.Equal(t, "Ivory", restored.Color)
	assert.Equal(t, "Lace Up", restored.Back)
	assert.Len(t, restored.Gallery, 2)
}

func TestCatalogCSV_ImportUpdatesBySKU(t *testing.T) {
	db := newTestDB(t)
	csvSvc := NewCatalogCSV(db)

	require.NoError(t, db.Create(&models.Product{
		Slug: "aurora-gown", SKU: "AG-100", Title: "Aurora Gown", Price: 1000,
	}).Error)

	input := "sku,title,price,color\nAG-100,Aurora Gown II,1100.50,Champagne\n"
	summary, err := csvSvc.Import(strings.NewReader(input))
	require.NoError(t, err)
	assert.Equal(t, ImportSummary{Updated: 1}, summary)

	var product models.Product
	require.NoError(t, db.First(&product, "sku = ?", "AG-100").Error)
	assert.Equal(t, "Aurora Gown II", product.Title)
	assert.Equal(t, 1100.50, product.Price)
	assert.Equal(t, "Champagne", product.Color)
}

func TestCatalogCSV_ImportHeaderAliases(t *testing.T) {
	db := newTestDB(t)
	csvSvc := NewCatalogCSV(db)

	input := "Name,Amount,Description\nSolstice Gown,899,Silk charmeuse\n"
	summary, err := csvSvc.Import(strings.NewReader(input))
	require.NoError(t, err)
	assert.Equal(t, ImportSummary{Created: 1}, summary)

	var product models.Product
	require.NoError(t, db.First(&product, "title = ?", "Solstice Gown").Error)
	assert.Equal(t, 899.0, product.Price)
	assert.Equal(t, "Silk charmeuse", product.Content)
	assert.Equal(t, "solstice-gown", product.Slug)
}

func TestCatalogCSV_ImportSkipsBadRows(t *testing.T) {
	db := newTestDB(t)
	csvSvc := NewCatalogCSV(db)

	input := "title,price\n,100\nValid Gown,450\nBroken Gown,not-a-number\n"
	summary, err := csvSvc.Import(strings.NewReader(input))
	require.NoError(t, err)
	assert.Equal(t, ImportSummary{Created: 1, Skipped: 2}, summary)
}

func TestSlugify(t *testing.T) {
	assert.Equal(t, "aurora-gown", Slugify("Aurora Gown"))
	assert.Equal(t, "3-4-sleeve-dress", Slugify(`3/4 Sleeve Dress!`))
	assert.Equal(t, "", Slugify("---"))
}
