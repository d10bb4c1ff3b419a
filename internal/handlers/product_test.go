package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/example/wdstore/internal/database"
	"github.com/example/wdstore/internal/models"
)

func newProductApp(t *testing.T) (*fiber.App, *gorm.DB) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))

	app := fiber.New()
	h := NewProductHandler(db)
	app.Get("/products", h.ListProducts)
	app.Get("/products/:id", h.GetProduct)
	app.Post("/products", h.CreateProduct)
	app.Delete("/products/:id", h.DeleteProduct)
	return app, db
}

func decodeBody(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return body
}

func TestProductHandler_CreateAndGet(t *testing.T) {
	app, _ := newProductApp(t)

	payload := `{"title":"Aurora Gown","price":1299.99,"color":"Ivory","gallery":["https://cdn.wd.example/a.jpg"]}`
	req, _ := http.NewRequest(http.MethodPost, "/products", bytes.NewBufferString(payload))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusCreated, resp.StatusCode)

	body := decodeBody(t, resp)
	data := body["data"].(map[string]any)
	assert.Equal(t, "aurora-gown", data["slug"])
	assert.Equal(t, "publish", data["status"])

	req, _ = http.NewRequest(http.MethodGet, "/products/aurora-gown", nil)
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	body = decodeBody(t, resp)
	data = body["data"].(map[string]any)
	assert.Equal(t, "Aurora Gown", data["title"])
	assert.Len(t, data["gallery"], 1)
}

func TestProductHandler_CreateRequiresTitle(t *testing.T) {
	app, _ := newProductApp(t)

	req, _ := http.NewRequest(http.MethodPost, "/products", bytes.NewBufferString(`{"price":10}`))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestProductHandler_ListExcludesDrafts(t *testing.T) {
	app, db := newProductApp(t)

	require.NoError(t, db.Create(&models.Product{Slug: "live", Title: "Live", Status: models.ProductStatusPublish}).Error)
	require.NoError(t, db.Create(&models.Product{Slug: "hidden", Title: "Hidden", Status: models.ProductStatusDraft}).Error)

	req, _ := http.NewRequest(http.MethodGet, "/products", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)

	body := decodeBody(t, resp)
	assert.Len(t, body["data"], 1)

	req, _ = http.NewRequest(http.MethodGet, "/products?status=all", nil)
	resp, err = app.Test(req)
	require.NoError(t, err)

	body = decodeBody(t, resp)
	assert.Len(t, body["data"], 2)
}

func TestProductHandler_DeleteUnknown(t *testing.T) {
	app, _ := newProductApp(t)

	req, _ := http.NewRequest(http.MethodDelete, "/products/2b0d0de3-1f32-4aa5-b68a-000000000000", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}
