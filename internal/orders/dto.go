package orders

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mercatohq/mercato-backend/pkg/db/models"
	"github.com/mercatohq/mercato-backend/pkg/enums"
)

// LineInput is one submitted checkout line. UnitPrice is the price shown to
// the buyer at submission time and becomes the immutable snapshot price.
type LineInput struct {
	VariantID uuid.UUID       `json:"variantId"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
}

// CreateOrderInput is the checkout payload. CartID, when set, names the cart
// to clear inside the checkout transaction.
type CreateOrderInput struct {
	CustomerID uuid.UUID
	Lines      []LineInput
	CartID     *uuid.UUID
}

// ItemDTO is one immutable order line as persisted.
type ItemDTO struct {
	ID          uuid.UUID       `json:"id"`
	VariantID   uuid.UUID       `json:"variantId"`
	ProductName string          `json:"productName"`
	VariantName string          `json:"variantName"`
	UnitPrice   decimal.Decimal `json:"unitPrice"`
	Quantity    int             `json:"quantity"`
	LineTotal   decimal.Decimal `json:"lineTotal"`
}

// OrderDTO is the API shape of an order.
type OrderDTO struct {
	ID          uuid.UUID         `json:"id"`
	CustomerID  uuid.UUID         `json:"customerId"`
	Status      enums.OrderStatus `json:"status"`
	Subtotal    decimal.Decimal   `json:"subtotal"`
	Total       decimal.Decimal   `json:"total"`
	Items       []ItemDTO         `json:"items"`
	CancelledAt *time.Time        `json:"cancelledAt,omitempty"`
	CreatedAt   time.Time         `json:"createdAt"`
}

func toOrderDTO(order *models.Order) *OrderDTO {
	dto := &OrderDTO{
		ID:          order.ID,
		CustomerID:  order.CustomerID,
		Status:      order.Status,
		Subtotal:    order.Subtotal,
		Total:       order.Total,
		Items:       make([]ItemDTO, 0, len(order.Items)),
		CancelledAt: order.CancelledAt,
		CreatedAt:   order.CreatedAt,
	}
	for _, item := range order.Items {
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
