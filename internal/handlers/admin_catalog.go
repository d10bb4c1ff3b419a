package handlers

import (
	"bytes"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/example/wdstore/internal/services"
)

// AdminCatalogHandler backs the CSV import/export screens.
type AdminCatalogHandler struct {
	csv *services.CatalogCSV
}

// NewAdminCatalogHandler constructs AdminCatalogHandler.
func NewAdminCatalogHandler(csv *services.CatalogCSV) *AdminCatalogHandler {
	return &AdminCatalogHandler{csv: csv}
}

// ExportCSV streams the full catalog as a CSV download.
func (h *AdminCatalogHandler) ExportCSV(c *fiber.Ctx) error {
	var buf bytes.Buffer
	if err := h.csv.Export(&buf); err != nil {
		return err
	}

	filename := fmt.Sprintf("products-%s.csv", time.Now().Format("2006-01-02"))
	c.Set(fiber.HeaderContentType, "text/csv; charset=utf-8")
	c.Set(fiber.HeaderContentDisposition, `attachment; filename="`+filename+`"`)
	return c.Send(buf.Bytes())
}

// ImportCSV accepts a multipart CSV upload and reports what changed.
func (h *AdminCatalogHandler) ImportCSV(c *fiber.Ctx) error {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "file is required")
	}

	file, err := fileHeader.Open()
	if err != nil {
		return err
	}
	defer file.Close()

	summary, err := h.csv.Import(file)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "import failed: "+err.Error())
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    summary,
	})
}
