package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/example/wdstore/internal/models"
	"github.com/example/wdstore/internal/services"
)

// AdminDiagnosticsHandler exposes a single health snapshot for the
// automation pipeline.
type AdminDiagnosticsHandler struct {
	db     *gorm.DB
	poller *services.OrderPoller
}

// NewAdminDiagnosticsHandler constructs AdminDiagnosticsHandler.
func NewAdminDiagnosticsHandler(db *gorm.DB, poller *services.OrderPoller) *AdminDiagnosticsHandler {
	return &AdminDiagnosticsHandler{db: db, poller: poller}
}

// Snapshot returns the email log tail, recent delivery failures,
// idempotency and queue counters, and the poller heartbeat.
func (h *AdminDiagnosticsHandler) Snapshot(c *fiber.Ctx) error {
	var logTail []models.EmailLogEntry
	if err := h.db.Order("created_at desc").Limit(20).Find(&logTail).Error; err != nil {
		return err
	}

	var failures []models.EmailLogEntry
	if err := h.db.Where("type = ?", "failed").Order("created_at desc").Limit(20).Find(&failures).Error; err != nil {
		return err
	}

	var idemRows int64
	if err := h.db.Model(&models.EmailIdempotency{}).Count(&idemRows).Error; err != nil {
		return err
	}

	var pendingSends int64
	if err := h.db.Model(&models.ScheduledEmail{}).Where("sent_at IS NULL AND failed = ?", false).Count(&pendingSends).Error; err != nil {
		return err
	}

	var heartbeat *time.Time
	if h.poller != nil {
		if last := h.poller.LastRun(); !last.IsZero() {
			heartbeat = &last
		}
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data": fiber.Map{
			"log_tail":         logTail,
			"recent_failures":  failures,
			"idempotency_rows": idemRows,
			"pending_sends":    pendingSends,
			"poller_last_run":  heartbeat,
		},
	})
}
