package services

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/example/wdstore/internal/models"
)

var csvColumns = []string{"id", "sku", "title", "content", "price", "color", "size", "back", "image", "gallery"}

// csvHeaderAliases maps tolerated header spellings to canonical columns.
var csvHeaderAliases = map[string]string{
	"product id":  "id",
	"product_id":  "id",
	"name":        "title",
	"product":     "title",
	"description": "content",
	"body":        "content",
	"amount":      "price",
	"cost":        "price",
	"image url":   "image",
	"image_url":   "image",
	"featured":    "image",
	"images":      "gallery",
	"gallery_urls": "gallery",
}

// ImportSummary reports what an import pass did.
type ImportSummary struct {
	Created int `json:"created"`
	Updated int `json:"updated"`
	Skipped int `json:"skipped"`
}

// CatalogCSV imports and exports products as CSV with gallery URLs
// pipe-delimited in a single column.
type CatalogCSV struct {
	db *gorm.DB
}

func NewCatalogCSV(db *gorm.DB) *CatalogCSV {
	return &CatalogCSV{db: db}
}

// Export writes all products as UTF-8 CSV with a BOM so spreadsheet
// apps pick up the encoding.
func (c *CatalogCSV) Export(w io.Writer) error {
	var products []models.Product
	if err := c.db.Preload("Gallery", func(db *gorm.DB) *gorm.DB {
		return db.Order("display_order asc")
	}).Order("created_at asc").Find(&products).Error; err != nil {
		return err
	}

	if _, err := w.Write([]byte{0xEF, 0xBB, 0xBF}); err != nil {
		return err
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(csvColumns); err != nil {
		return err
	}

	for _, p := range products {
		gallery := make([]string, 0, len(p.Gallery))
		for _, img := range p.Gallery {
			gallery = append(gallery, img.URL)
		}
		content := strings.ReplaceAll(p.Content, "\r\n", "\n")
		row := []string{
			p.ID.String(),
			p.SKU,
			p.Title,
			content,
			FormatAmount(p.Price),
			p.Color,
			p.Size,
			p.Back,
			p.ImageURL,
			strings.Join(gallery, "|"),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// Import reads CSV rows, updating products matched by id or sku and
// creating the rest. Unknown columns are ignored; rows without a title
// are skipped.
func (c *CatalogCSV) Import(r io.Reader) (ImportSummary, error) {
	var summary ImportSummary

	data, err := io.ReadAll(r)
	if err != nil {
		return summary, err
	}
	data = bytes.TrimPrefix(data, []byte{0xEF, 0xBB, 0xBF})

	cr := csv.NewReader(bytes.NewReader(data))
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		return summary, fmt.Errorf("read header: %w", err)
	}
	cols := make(map[int]string, len(header))
	for i, name := range header {
		name = strings.ToLower(strings.TrimSpace(name))
		if alias, ok := csvHeaderAliases[name]; ok {
			name = alias
		}
		cols[i] = name
	}

	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			summary.Skipped++
			continue
		}

		fields := make(map[string]string, len(record))
		for i, value := range record {
			if name, ok := cols[i]; ok {
				fields[name] = strings.TrimSpace(value)
			}
		}
		if fields["title"] == "" {
			summary.Skipped++
			continue
		}

		existing, err := c.lookup(fields["id"], fields["sku"])
		if err != nil {
			summary.Skipped++
			continue
		}

		if existing != nil {
			if err := c.apply(existing, fields); err != nil {
				summary.Skipped++
				continue
			}
			summary.Updated++
		} else {
			product := &models.Product{Status: models.ProductStatusPublish}
			if err := c.apply(product, fields); err != nil {
				summary.Skipped++
				continue
			}
			summary.Created++
		}
	}

	return summary, nil
}

func (c *CatalogCSV) lookup(id, sku string) (*models.Product, error) {
	if id != "" {
		uid, err := uuid.Parse(id)
		if err == nil {
			var p models.Product
			err := c.db.First(&p, "id = ?", uid).Error
			if err == nil {
				return &p, nil
			}
			if err != gorm.ErrRecordNotFound {
				return nil, err
			}
		}
	}
	if sku != "" {
		var p models.Product
		err := c.db.First(&p, "sku = ?", sku).Error
		if err == nil {
			return &p, nil
		}
		if err != gorm.ErrRecordNotFound {
			return nil, err
		}
	}
	return nil, nil
}

func (c *CatalogCSV) apply(p *models.Product, fields map[string]string) error {
	p.SKU = fields["sku"]
	p.Title = fields["title"]
	p.Content = fields["content"]
	p.Color = fields["color"]
	p.Size = fields["size"]
	p.Back = fields["back"]
	p.ImageURL = fields["image"]
	if p.Slug == "" {
		p.Slug = Slugify(p.Title)
	}
	if raw := fields["price"]; raw != "" {
		price, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return fmt.Errorf("bad price %q", raw)
		}
		p.Price = Round2(price)
	}

	if err := c.db.Save(p).Error; err != nil {
		return err
	}

	if raw, ok := fields["gallery"]; ok {
		if err := c.db.Where("product_id = ?", p.ID).Delete(&models.ProductImage{}).Error; err != nil {
			return err
		}
		order := 0
		for _, url := range strings.Split(raw, "|") {
			url = strings.TrimSpace(url)
			if url == "" {
				continue
			}
			img := models.ProductImage{ProductID: p.ID, URL: url, DisplayOrder: order}
			if err := c.db.Create(&img).Error; err != nil {
				return err
			}
			order++
		}
	}
	return nil
}

// Slugify builds a URL slug from a title.
func Slugify(title string) string {
	var b strings.Builder
	lastDash := true
	for _, r := range strings.ToLower(title) {
		switch {
		case r >= 'a' && r <= 'z' || r >= '0' && r <= '9':
			b.WriteRune(r)
			lastDash = false
		default:
			if !lastDash {
				b.WriteByte('-')
				lastDash = true
			}
		}
	}
	return strings.Trim(b.String(), "-")
}
