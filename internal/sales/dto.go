package sales

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mercatohq/mercato-backend/pkg/db/models"
	"github.com/mercatohq/mercato-backend/pkg/enums"
)

// LineInput is one register line. UnitPrice is the price rung up at the
// register and becomes the immutable snapshot price.
type LineInput struct {
	VariantID uuid.UUID       `json:"variantId"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
}

// CreateSaleInput is the point-of-sale payload.
type CreateSaleInput struct {
	StaffID uuid.UUID
	Lines   []LineInput
}

// ItemDTO is one immutable sale line as persisted.
type ItemDTO struct {
	ID          uuid.UUID       `json:"id"`
	VariantID   uuid.UUID       `json:"variantId"`
	ProductName string          `json:"productName"`
	VariantName string          `json:"variantName"`
	UnitPrice   decimal.Decimal `json:"unitPrice"`
	Quantity    int             `json:"quantity"`
	LineTotal   decimal.Decimal `json:"lineTotal"`
}

// SaleDTO is the API shape of a sale.
type SaleDTO struct {
	ID        uuid.UUID        `json:"id"`
	StaffID   uuid.UUID        `json:"staffId"`
	Status    enums.SaleStatus `json:"status"`
	Subtotal  decimal.Decimal  `json:"subtotal"`
	Total     decimal.Decimal  `json:"total"`
	Items     []ItemDTO        `json:"items"`
	VoidedAt  *time.Time       `json:"voidedAt,omitempty"`
	CreatedAt time.Time        `json:"createdAt"`
}

func toSaleDTO(sale *models.Sale) *SaleDTO {
	dto := &SaleDTO{
		ID:        sale.ID,
		StaffID:   sale.StaffID,
		Status:    sale.Status,
		Subtotal:  sale.Subtotal,
		Total:     sale.Total,
		Items:     make([]ItemDTO, 0, len(sale.Items)),
		VoidedAt:  sale.VoidedAt,
		CreatedAt: sale.CreatedAt,
	}
	for _, item := range sale.Items {
		dto.Items = append(dto.Items, ItemDTO{
			ID:          item.ID,
			VariantID:   item.VariantID,
			ProductName: item.ProductName,
			VariantName: item.VariantName,
			UnitPrice:   item.UnitPrice,
			Quantity:    item.Quantity,
			LineTotal:   item.LineTotal,
		})
	}
	return dto
}
