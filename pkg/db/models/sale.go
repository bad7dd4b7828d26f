package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mercatohq/mercato-backend/pkg/enums"
)

// Sale is a completed point-of-sale transaction with immutable line snapshots.
type Sale struct {
	ID        uuid.UUID        `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	StaffID   uuid.UUID        `gorm:"column:staff_id;type:uuid;not null;index"`
	Status    enums.SaleStatus `gorm:"column:status;type:sale_status;not null;default:'completed'"`
	Subtotal  decimal.Decimal  `gorm:"column:subtotal;type:numeric(12,2);not null"`
	Total     decimal.Decimal  `gorm:"column:total;type:numeric(12,2);not null"`
	Items     []SaleItem       `gorm:"foreignKey:SaleID;constraint:OnDelete:CASCADE"`
	VoidedAt  *time.Time       `gorm:"column:voided_at"`
	CreatedAt time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}
