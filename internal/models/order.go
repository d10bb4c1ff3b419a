package models

import (
	"time"

	"github.com/google/uuid"
)

// Order statuses recognized by the storefront. Status is stored as free
// text so admin tooling can introduce values without a migration.
const (
	OrderStatusPending    = "pending"
	OrderStatusPaid       = "paid"
	OrderStatusProcessing = "processing"
	OrderStatusShipped    = "shipped"
	OrderStatusCompleted  = "completed"
	OrderStatusRefunded   = "refunded"
	OrderStatusCancelled  = "cancelled"
)

type Order struct {
	BaseModel
	Number        string      `gorm:"uniqueIndex" json:"number"`
	CustomerID    *uuid.UUID  `gorm:"type:uuid;index" json:"customer_id"`
	CustomerName  string      `json:"customer_name"`
	CustomerEmail string      `gorm:"index" json:"customer_email"`
	Status        string      `gorm:"index;default:pending" json:"status"`
	Subtotal      float64     `json:"subtotal"`
	SalesTax      float64     `json:"sales_tax"`
	CardFee       float64     `json:"card_fee"`
	Total         float64     `json:"total"`
	Currency      string      `json:"currency"`
	PaymentID     string      `gorm:"index" json:"payment_id"`
	TrackingID    string      `json:"tracking_id"`
	PlacedAt      time.Time   `json:"placed_at"`
	Meta          []byte      `gorm:"type:jsonb" json:"meta"`
	Items         []OrderItem `json:"items,omitempty"`
}

type OrderItem struct {
	BaseModel
	OrderID      uuid.UUID  `gorm:"type:uuid;index" json:"order_id"`
	ProductID    *uuid.UUID `gorm:"type:uuid;index" json:"product_id"`
	ProductTitle string     `json:"product_title"`
	Quantity     int        `json:"quantity"`
	UnitPrice    float64    `json:"unit_price"`
	AddonPrice   float64    `json:"addon_price"`
	LineTotal    float64    `json:"line_total"`
	Addons       []byte     `gorm:"type:jsonb" json:"addons"`
}

// OrderStatusSnapshot is the poller's last-seen status per order. The
// poller diffs recent orders against these rows to catch transitions
// that bypassed the canonical emit paths.
type OrderStatusSnapshot struct {
	OrderID   uuid.UUID `gorm:"type:uuid;primaryKey" json:"order_id"`
	Status    string    `json:"status"`
	UpdatedAt time.Time `json:"updated_at"`
}
