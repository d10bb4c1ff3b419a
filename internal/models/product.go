package models

import (
	"github.com/google/uuid"
)

const (
	ProductStatusPublish = "publish"
	ProductStatusDraft   = "draft"
)

type Product struct {
	BaseModel
	Slug     string         `gorm:"uniqueIndex" json:"slug"`
	SKU      string         `gorm:"index" json:"sku"`
	Title    string         `json:"title"`
	Content  string         `json:"content"`
	Price    float64        `json:"price"`
	Currency string         `json:"currency"`
	Color    string         `json:"color"`
	Size     string         `json:"size"`
	Back     string         `json:"back"`
	ImageURL string         `json:"image"`
	Status   string         `gorm:"index;default:publish" json:"status"` // publish|draft
	Gallery  []ProductImage `json:"gallery,omitempty"`
}

type ProductImage struct {
	BaseModel
	ProductID    uuid.UUID `gorm:"type:uuid;index" json:"product_id"`
	URL          string    `json:"url"`
	DisplayOrder int       `json:"display_order"`
}
