package models

import (
	"time"

	"github.com/google/uuid"
)

// ProductAttribute is a static attribute assignment on a product itself
// (e.g. Material = Cotton), as opposed to variant-defining attribute values.
type ProductAttribute struct {
	ID          uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ProductID   uuid.UUID `gorm:"column:product_id;type:uuid;not null;uniqueIndex:idx_product_attribute"`
	AttributeID uuid.UUID `gorm:"column:attribute_id;type:uuid;not null;uniqueIndex:idx_product_attribute"`
	Value       string    `gorm:"column:value;not null"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
