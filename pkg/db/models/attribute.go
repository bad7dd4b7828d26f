package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/mercatohq/mercato-backend/pkg/enums"
)

// Attribute is an EAV attribute definition (e.g. Size, Color).
type Attribute struct {
	ID          uuid.UUID                `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Name        string                   `gorm:"column:name;not null;uniqueIndex"`
	DisplayName string                   `gorm:"column:display_name;not null"`
	ValueType   enums.AttributeValueType `gorm:"column:value_type;type:attribute_value_type;not null"`
	Values      []AttributeValue         `gorm:"foreignKey:AttributeID;constraint:OnDelete:CASCADE"`
	CreatedAt   time.Time                `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time                `gorm:"column:updated_at;autoUpdateTime"`
}
