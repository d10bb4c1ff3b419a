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

// AdminOrderHandler manages the back-office order screens.
type AdminOrderHandler struct {
	db     *gorm.DB
	orders *services.OrderService
}

// NewAdminOrderHandler constructs AdminOrderHandler.
func NewAdminOrderHandler(db *gorm.DB, orders *services.OrderService) *AdminOrderHandler {
	return &AdminOrderHandler{db: db, orders: orders}
}

// ListOrders returns paginated orders with optional status and search
// filters.
func (h *AdminOrderHandler) ListOrders(c *fiber.Ctx) error {
	pg := utils.ParsePagination(c)
	query := h.db.Model(&models.Order{})

	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}

	if search := strings.TrimSpace(c.Query("search")); search != "" {
		q := "%" + search + "%"
		query = query.Where("number ILIKE ? OR customer_email ILIKE ? OR customer_name ILIKE ?", q, q, q)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return err
	}

	var orders []models.Order
	if err := query.Preload("Items").
		Limit(pg.Limit).Offset(pg.Offset).
		Order("created_at desc").
		Find(&orders).Error; err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    orders,
		"pagination": fiber.Map{
			"current_page":   pg.Page,
			"items_per_page": pg.Limit,
			"total_items":    total,
		},
	})
}

// GetOrder loads one order with items.
func (h *AdminOrderHandler) GetOrder(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid order id")
	}

	order, err := h.orders.Get(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fiber.NewError(fiber.StatusNotFound, "order not found")
		}
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    order,
	})
}

type statusRequest struct {
	Status string `json:"status"`
}

var validStatuses = map[string]bool{
	models.OrderStatusPending:    true,
	models.OrderStatusPaid:       true,
	models.OrderStatusProcessing: true,
	models.OrderStatusShipped:    true,
	models.OrderStatusCompleted:  true,
	models.OrderStatusRefunded:   true,
	models.OrderStatusCancelled:  true,
}

// UpdateStatus runs the canonical status transition, which emits the
// same events an automated transition would.
func (h *AdminOrderHandler) UpdateStatus(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid order id")
	}

	var req statusRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if !validStatuses[req.Status] {
		return fiber.NewError(fiber.StatusBadRequest, "unknown status")
	}

	if err := h.orders.SetStatus(id, req.Status, nil); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fiber.NewError(fiber.StatusNotFound, "order not found")
		}
		return err
	}

	order, err := h.orders.Get(id)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    order,
	})
}

type trackingRequest struct {
	TrackingID string `json:"tracking_id"`
}

// UpdateTracking stores the shipment tracking id.
func (h *AdminOrderHandler) UpdateTracking(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid order id")
	}

	var req trackingRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	if err := h.orders.SetTracking(id, strings.TrimSpace(req.TrackingID)); err != nil {
		return err
	}

	order, err := h.orders.Get(id)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    order,
	})
}

type bulkDeleteRequest struct {
	IDs []string `json:"ids"`
}

// BulkDelete removes orders and their items.
func (h *AdminOrderHandler) BulkDelete(c *fiber.Ctx) error {
	var req bulkDeleteRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if len(req.IDs) == 0 {
		return fiber.NewError(fiber.StatusBadRequest, "no order ids provided")
	}

	ids := make([]uuid.UUID, 0, len(req.IDs))
	for _, raw := range req.IDs {
		id, err := uuid.Parse(raw)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid order id: "+raw)
		}
		ids = append(ids, id)
	}

	err := h.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("order_id IN ?", ids).Delete(&models.OrderItem{}).Error; err != nil {
			return err
		}
		if err := tx.Where("order_id IN ?", ids).Delete(&models.OrderStatusSnapshot{}).Error; err != nil {
			return err
		}
		return tx.Where("id IN ?", ids).Delete(&models.Order{}).Error
	})
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    fiber.Map{"deleted": len(ids)},
	})
}
