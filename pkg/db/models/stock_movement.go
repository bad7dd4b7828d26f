package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/mercatohq/mercato-backend/pkg/enums"
)

// StockMovement is an append-only ledger row recording every committed stock
// mutation: negative quantities for decrements, positive for restores.
type StockMovement struct {
	ID          uuid.UUID                 `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	VariantID   uuid.UUID                 `gorm:"column:variant_id;type:uuid;not null;index"`
	Quantity    int                       `gorm:"column:quantity;not null"`
	Reason      enums.StockMovementReason `gorm:"column:reason;type:stock_movement_reason;not null"`
	ReferenceID uuid.UUID                 `gorm:"column:reference_id;type:uuid;not null;index"`
	CreatedAt   time.Time                 `gorm:"column:created_at;autoCreateTime"`
}
