package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

// Product represents the canonical catalog listing. BasePrice and BaseCost are
// the mutable catalog prices; variants may carry overrides and transaction
// lines snapshot the price paid. The three are distinct concepts and must not
// be conflated.
type Product struct {
	ID              uuid.UUID          `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	SKU             string             `gorm:"column:sku;not null;uniqueIndex"`
	Name            string             `gorm:"column:name;not null"`
	Description     *string            `gorm:"column:description"`
	BasePrice       decimal.Decimal    `gorm:"column:base_price;type:numeric(12,2);not null"`
	BaseCost        decimal.Decimal    `gorm:"column:base_cost;type:numeric(12,2);not null;default:0"`
	DiscountPercent decimal.Decimal    `gorm:"column:discount_percent;type:numeric(5,2);not null;default:0"`
	Images          pq.StringArray     `gorm:"column:images;type:text[]"`
	IsActive        bool               `gorm:"column:is_active;not null;default:true"`
	IsDeleted       bool               `gorm:"column:is_deleted;not null;default:false"`
	Attributes      []ProductAttribute `gorm:"foreignKey:ProductID;constraint:OnDelete:CASCADE"`
	Variants        []ProductVariant   `gorm:"foreignKey:ProductID;constraint:OnDelete:CASCADE"`
	CreatedAt       time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}
