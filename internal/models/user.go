package models

// User represents a storefront customer or admin account.
type User struct {
	BaseModel
	FirstName    string  `json:"first_name"`
	LastName     string  `json:"last_name"`
	Email        string  `gorm:"uniqueIndex" json:"email"`
	DisplayName  string  `json:"display_name"`
	PasswordHash string  `json:"-"`
	IsAdmin      bool    `json:"is_admin"`
	Orders       []Order `gorm:"foreignKey:CustomerID" json:"orders,omitempty"`
}
