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

// AdminEmailHandler manages templates, rules, the diagnostics log and
// the scheduled queue.
type AdminEmailHandler struct {
	db      *gorm.DB
	emailer *services.Emailer
	orders  *services.OrderService
}

// NewAdminEmailHandler constructs AdminEmailHandler.
func NewAdminEmailHandler(db *gorm.DB, emailer *services.Emailer, orders *services.OrderService) *AdminEmailHandler {
	return &AdminEmailHandler{db: db, emailer: emailer, orders: orders}
}

// --- templates ---

// ListTemplates returns every template.
func (h *AdminEmailHandler) ListTemplates(c *fiber.Ctx) error {
	var templates []models.EmailTemplate
	if err := h.db.Order("created_at asc").Find(&templates).Error; err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    templates,
	})
}

// GetTemplate loads one template.
func (h *AdminEmailHandler) GetTemplate(c *fiber.Ctx) error {
	tpl, err := h.loadTemplate(c.Params("id"))
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    tpl,
	})
}

// liveFlags distinguishes an omitted flag from an explicit false so
// new rows can default to live.
type liveFlags struct {
	Published *bool `json:"published"`
	Enabled   *bool `json:"enabled"`
}

// CreateTemplate saves a template and regenerates its derived rules.
func (h *AdminEmailHandler) CreateTemplate(c *fiber.Ctx) error {
	var tpl models.EmailTemplate
	if err := c.BodyParser(&tpl); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if strings.TrimSpace(tpl.Name) == "" {
		return fiber.NewError(fiber.StatusBadRequest, "name is required")
	}
	var flags liveFlags
	if err := c.BodyParser(&flags); err == nil && flags.Published == nil {
		tpl.Published = true
	}

	if err := h.db.Create(&tpl).Error; err != nil {
		return err
	}
	if err := h.emailer.RegenerateRules(&tpl); err != nil {
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"data":    tpl,
	})
}

// UpdateTemplate replaces a template's fields and regenerates its
// derived rules.
func (h *AdminEmailHandler) UpdateTemplate(c *fiber.Ctx) error {
	tpl, err := h.loadTemplate(c.Params("id"))
	if err != nil {
		return err
	}

	var req models.EmailTemplate
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	req.BaseModel = tpl.BaseModel

	if err := h.db.Save(&req).Error; err != nil {
		return err
	}
	if err := h.emailer.RegenerateRules(&req); err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    req,
	})
}

// DeleteTemplate removes a template and every rule pointing at it.
func (h *AdminEmailHandler) DeleteTemplate(c *fiber.Ctx) error {
	tpl, err := h.loadTemplate(c.Params("id"))
	if err != nil {
		return err
	}

	if err := h.db.Where("template_id = ?", tpl.ID).Delete(&models.EmailRule{}).Error; err != nil {
		return err
	}
	if err := h.db.Delete(tpl).Error; err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
	})
}

func (h *AdminEmailHandler) loadTemplate(rawID string) (*models.EmailTemplate, error) {
	id, err := uuid.Parse(rawID)
	if err != nil {
		return nil, fiber.NewError(fiber.StatusBadRequest, "invalid template id")
	}
	var tpl models.EmailTemplate
	if err := h.db.First(&tpl, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fiber.NewError(fiber.StatusNotFound, "template not found")
		}
		return nil, err
	}
	return &tpl, nil
}

// PreviewTemplate renders a template with sample data.
func (h *AdminEmailHandler) PreviewTemplate(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid template id")
	}

	subject, body, err := h.emailer.Preview(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fiber.NewError(fiber.StatusNotFound, "template not found")
		}
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data": fiber.Map{
			"subject": subject,
			"body":    body,
		},
	})
}

type testSendRequest struct {
	To string `json:"to"`
}

// TestSendTemplate delivers a template to one address with sample data.
func (h *AdminEmailHandler) TestSendTemplate(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid template id")
	}

	var req testSendRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if strings.TrimSpace(req.To) == "" {
		return fiber.NewError(fiber.StatusBadRequest, "recipient is required")
	}

	if err := h.emailer.SendTest(id, req.To); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fiber.NewError(fiber.StatusNotFound, "template not found")
		}
		return fiber.NewError(fiber.StatusBadGateway, "send failed: "+err.Error())
	}

	return c.JSON(fiber.Map{
		"success": true,
	})
}

// --- rules ---

// ListRules returns every rule.
func (h *AdminEmailHandler) ListRules(c *fiber.Ctx) error {
	var rules []models.EmailRule
	if err := h.db.Order("created_at asc").Find(&rules).Error; err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    rules,
	})
}

// CreateRule adds a manual rule.
func (h *AdminEmailHandler) CreateRule(c *fiber.Ctx) error {
	var rule models.EmailRule
	if err := c.BodyParser(&rule); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if rule.Trigger == "" || rule.TemplateID == uuid.Nil {
		return fiber.NewError(fiber.StatusBadRequest, "trigger and template_id are required")
	}
	rule.Derived = false
	if rule.Recipient == "" {
		rule.Recipient = "set"
	}
	var flags liveFlags
	if err := c.BodyParser(&flags); err == nil && flags.Enabled == nil {
		rule.Enabled = true
	}

	if err := h.db.Create(&rule).Error; err != nil {
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"data":    rule,
	})
}

// UpdateRule replaces a rule's fields.
func (h *AdminEmailHandler) UpdateRule(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid rule id")
	}

	var rule models.EmailRule
	if err := h.db.First(&rule, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fiber.NewError(fiber.StatusNotFound, "rule not found")
		}
		return err
	}

	var req models.EmailRule
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	req.BaseModel = rule.BaseModel
	req.Derived = rule.Derived

	if err := h.db.Save(&req).Error; err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    req,
	})
}

// DeleteRule removes a rule.
func (h *AdminEmailHandler) DeleteRule(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid rule id")
	}

	result := h.db.Delete(&models.EmailRule{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fiber.NewError(fiber.StatusNotFound, "rule not found")
	}

	return c.JSON(fiber.Map{
		"success": true,
	})
}

type testRuleRequest struct {
	OrderID string `json:"order_id"`
	Trigger string `json:"trigger"`
}

// TestRule replays an event for an order so rules can be exercised
// end to end. Idempotency applies, so a recent real send suppresses
// the replayed one.
func (h *AdminEmailHandler) TestRule(c *fiber.Ctx) error {
	var req testRuleRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	orderID, err := uuid.Parse(req.OrderID)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid order id")
	}
	if req.Trigger == "" {
		return fiber.NewError(fiber.StatusBadRequest, "trigger is required")
	}

	h.orders.EmitOrderEvent(req.Trigger, orderID, nil)

	return c.JSON(fiber.Map{
		"success": true,
	})
}

// --- diagnostics ---

// ListLogs returns the newest diagnostics entries.
func (h *AdminEmailHandler) ListLogs(c *fiber.Ctx) error {
	pg := utils.ParsePagination(c)
	query := h.db.Model(&models.EmailLogEntry{})

	if kind := c.Query("type"); kind != "" {
		query = query.Where("type = ?", kind)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return err
	}

	var entries []models.EmailLogEntry
	if err := query.Limit(pg.Limit).Offset(pg.Offset).
		Order("created_at desc").
		Find(&entries).Error; err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    entries,
		"pagination": fiber.Map{
			"current_page":   pg.Page,
			"items_per_page": pg.Limit,
			"total_items":    total,
		},
	})
}

// ListScheduled returns the pending scheduled queue.
func (h *AdminEmailHandler) ListScheduled(c *fiber.Ctx) error {
	var rows []models.ScheduledEmail
	if err := h.db.Where("sent_at IS NULL").Order("run_at asc").Limit(100).Find(&rows).Error; err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    rows,
	})
}

// RunScheduled drains due scheduled emails immediately.
func (h *AdminEmailHandler) RunScheduled(c *fiber.Ctx) error {
	sent := h.emailer.SendScheduled()

	return c.JSON(fiber.Map{
		"success": true,
		"data":    fiber.Map{"sent": sent},
	})
}
