package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ProductVariant is a concrete sellable combination of attribute values.
// Signature is the canonical sorted join of the referenced attribute-value
// ids; no two non-deleted variants of a product may share it.
type ProductVariant struct {
	ID              uuid.UUID               `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ProductID       uuid.UUID               `gorm:"column:product_id;type:uuid;not null;index"`
	Signature       string                  `gorm:"column:signature;not null"`
	PriceOverride   decimal.NullDecimal     `gorm:"column:price_override;type:numeric(12,2)"`
	CostOverride    decimal.NullDecimal     `gorm:"column:cost_override;type:numeric(12,2)"`
	Stock           int                     `gorm:"column:stock;not null;default:0"`
	IsActive        bool                    `gorm:"column:is_active;not null;default:true"`
	IsDeleted       bool                    `gorm:"column:is_deleted;not null;default:false"`
	AttributeValues []VariantAttributeValue `gorm:"foreignKey:VariantID;constraint:OnDelete:CASCADE"`
	CreatedAt       time.Time               `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time               `gorm:"column:updated_at;autoUpdateTime"`
}
