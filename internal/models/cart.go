package models

import "time"

// CartSession backs session carts when Redis is not configured. Rows
// past their TTL are treated as empty and overwritten in place.
type CartSession struct {
	Token     string    `gorm:"primaryKey" json:"token"`
	Data      []byte    `gorm:"type:jsonb" json:"data"`
	UpdatedAt time.Time `json:"updated_at"`
}
