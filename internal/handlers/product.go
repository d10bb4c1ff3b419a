package handlers

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/example/wdstore/internal/models"
	"github.com/example/wdstore/internal/services"
	"github.com/example/wdstore/internal/utils"
)

// ProductHandler manages catalog CRUD. Listing and reads are public;
// writes sit behind the admin group.
type ProductHandler struct {
	db *gorm.DB
}

// NewProductHandler constructs ProductHandler.
func NewProductHandler(db *gorm.DB) *ProductHandler {
	return &ProductHandler{db: db}
}

// ListProducts returns paginated products with optional filters.
// Public requests only see published products; admins may pass status=.
func (h *ProductHandler) ListProducts(c *fiber.Ctx) error {
	pg := utils.ParsePagination(c)
	query := h.db.Model(&models.Product{})

	status := c.Query("status", models.ProductStatusPublish)
	if status != "all" {
		query = query.Where("status = ?", status)
	}

	if search := strings.TrimSpace(c.Query("search")); search != "" {
		q := "%" + search + "%"
		query = query.Where("title ILIKE ? OR content ILIKE ? OR sku ILIKE ?", q, q, q)
	}

	if color := c.Query("color"); color != "" {
		query = query.Where("color = ?", color)
	}

	if size := c.Query("size"); size != "" {
		query = query.Where("size = ?", size)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return err
	}

	var products []models.Product
	if err := query.Preload("Gallery", func(db *gorm.DB) *gorm.DB {
		return db.Order("display_order asc")
	}).
		Limit(pg.Limit).Offset(pg.Offset).
		Order("created_at desc").
		Find(&products).Error; err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    products,
		"pagination": fiber.Map{
			"current_page":   pg.Page,
			"items_per_page": pg.Limit,
			"total_items":    total,
		},
	})
}

// GetProduct loads a product by id or slug.
func (h *ProductHandler) GetProduct(c *fiber.Ctx) error {
	key := c.Params("id")

	var product models.Product
	query := h.db.Preload("Gallery", func(db *gorm.DB) *gorm.DB {
		return db.Order("display_order asc")
	})

	var err error
	if id, parseErr := uuid.Parse(key); parseErr == nil {
		err = query.First(&product, "id = ?", id).Error
	} else {
		err = query.First(&product, "slug = ?", key).Error
	}
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fiber.NewError(fiber.StatusNotFound, "product not found")
		}
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    product,
	})
}

type productRequest struct {
	Slug     string   `json:"slug"`
	SKU      string   `json:"sku"`
	Title    string   `json:"title"`
	Content  string   `json:"content"`
	Price    float64  `json:"price"`
	Currency string   `json:"currency"`
	Color    string   `json:"color"`
	Size     string   `json:"size"`
	Back     string   `json:"back"`
	ImageURL string   `json:"image"`
	Status   string   `json:"status"`
	Gallery  []string `json:"gallery"`
}

// CreateProduct adds a catalog entry.
func (h *ProductHandler) CreateProduct(c *fiber.Ctx) error {
	var req productRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if strings.TrimSpace(req.Title) == "" {
		return fiber.NewError(fiber.StatusBadRequest, "title is required")
	}

	product := models.Product{
		Slug:     req.Slug,
		SKU:      req.SKU,
		Title:    req.Title,
		Content:  req.Content,
		Price:    services.Round2(req.Price),
		Currency: req.Currency,
		Color:    req.Color,
		Size:     req.Size,
		Back:     req.Back,
		ImageURL: req.ImageURL,
		Status:   req.Status,
	}
	if product.Slug == "" {
		product.Slug = services.Slugify(product.Title)
	}
	if product.Status == "" {
		product.Status = models.ProductStatusPublish
	}
	for i, url := range req.Gallery {
		product.Gallery = append(product.Gallery, models.ProductImage{URL: url, DisplayOrder: i})
	}

	if err := h.db.Create(&product).Error; err != nil {
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"data":    product,
	})
}

// UpdateProduct modifies a catalog entry, replacing the gallery when
// one is supplied.
func (h *ProductHandler) UpdateProduct(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid product id")
	}

	var product models.Product
	if err := h.db.First(&product, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fiber.NewError(fiber.StatusNotFound, "product not found")
		}
		return err
	}

	var req productRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	if req.Title != "" {
		product.Title = req.Title
	}
	if req.Slug != "" {
		product.Slug = req.Slug
	}
	if req.SKU != "" {
		product.SKU = req.SKU
	}
	if req.Content != "" {
		product.Content = req.Content
	}
	if req.Price != 0 {
		product.Price = services.Round2(req.Price)
	}
	if req.Currency != "" {
		product.Currency = req.Currency
	}
	if req.Color != "" {
		product.Color = req.Color
	}
	if req.Size != "" {
		product.Size = req.Size
	}
	if req.Back != "" {
		product.Back = req.Back
	}
	if req.ImageURL != "" {
		product.ImageURL = req.ImageURL
	}
	if req.Status != "" {
		product.Status = req.Status
	}

	if err := h.db.Save(&product).Error; err != nil {
		return err
	}

	if req.Gallery != nil {
		if err := h.db.Where("product_id = ?", product.ID).Delete(&models.ProductImage{}).Error; err != nil {
			return err
		}
		for i, url := range req.Gallery {
			img := models.ProductImage{ProductID: product.ID, URL: url, DisplayOrder: i}
			if err := h.db.Create(&img).Error; err != nil {
				return err
			}
		}
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    product,
	})
}

// DeleteProduct removes a product and its gallery.
func (h *ProductHandler) DeleteProduct(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid product id")
	}

	if err := h.db.Where("product_id = ?", id).Delete(&models.ProductImage{}).Error; err != nil {
		return err
	}
	result := h.db.Delete(&models.Product{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fiber.NewError(fiber.StatusNotFound, "product not found")
	}

	return c.JSON(fiber.Map{
		"success": true,
	})
}
