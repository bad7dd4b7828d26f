package models

import (
	"time"

	"github.com/google/uuid"
)

// AttributeValue is one enumerated value of an attribute (e.g. Size=XL).
// (attribute_id, value) is unique within the catalog.
type AttributeValue struct {
	ID           uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	AttributeID  uuid.UUID `gorm:"column:attribute_id;type:uuid;not null;uniqueIndex:idx_attribute_value"`
	Value        string    `gorm:"column:value;not null;uniqueIndex:idx_attribute_value"`
	DisplayValue string    `gorm:"column:display_value;not null"`
	ColorCode    *string   `gorm:"column:color_code"`
	CreatedAt    time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
