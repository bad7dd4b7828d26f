package models

import (
	"time"

	"github.com/google/uuid"
)

// Cart is owned by exactly one of SessionToken (anonymous) or CustomerID
// (authenticated), never both. At most one non-deleted cart exists per owner.
type Cart struct {
	ID           uuid.UUID  `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	SessionToken *string    `gorm:"column:session_token;uniqueIndex"`
	CustomerID   *uuid.UUID `gorm:"column:customer_id;type:uuid;uniqueIndex"`
	Items        []CartItem `gorm:"foreignKey:CartID;constraint:OnDelete:CASCADE"`
	CreatedAt    time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

// OwnedBySession reports whether the cart is anonymous.
func (c *Cart) OwnedBySession() bool {
	return c.SessionToken != nil && c.CustomerID == nil
}
