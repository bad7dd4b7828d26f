package models

import (
	"time"

	"github.com/google/uuid"
)

// VariantAttributeValue is the junction row tying a variant to one of the
// attribute values that define it.
type VariantAttributeValue struct {
	VariantID        uuid.UUID `gorm:"column:variant_id;type:uuid;primaryKey"`
	AttributeValueID uuid.UUID `gorm:"column:attribute_value_id;type:uuid;primaryKey"`
	CreatedAt        time.Time `gorm:"column:created_at;autoCreateTime"`
}
