package cart

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mercatohq/mercato-backend/pkg/db/models"
)

// Snapshot is the recomputed read view of a cart returned by every resolver
// and mutation call. SessionToken is set whenever the cart is
// session-owned so the transport layer can echo it back to the client;
// dropping it orphans the cart.
type Snapshot struct {
	CartID       uuid.UUID       `json:"cartId"`
	SessionToken *string         `json:"sessionToken,omitempty"`
	CustomerID   *uuid.UUID      `json:"customerId,omitempty"`
	Items        []LineDTO       `json:"items"`
	ItemCount    int             `json:"itemCount"`
	Subtotal     decimal.Decimal `json:"subtotal"`
}

// LineDTO is one cart line with its denormalized display snapshot.
type LineDTO struct {
	VariantID   uuid.UUID       `json:"variantId"`
	ProductName string          `json:"productName"`
	VariantName string          `json:"variantName"`
	ImageURL    *string         `json:"imageUrl,omitempty"`
	UnitPrice   decimal.Decimal `json:"unitPrice"`
	Quantity    int             `json:"quantity"`
	LineTotal   decimal.Decimal `json:"lineTotal"`
}

func toSnapshot(cart *models.Cart) *Snapshot {
	snapshot := &Snapshot{
		CartID:       cart.ID,
		SessionToken: cart.SessionToken,
		CustomerID:   cart.CustomerID,
		Items:        make([]LineDTO, 0, len(cart.Items)),
		Subtotal:     decimal.Zero,
	}
	for _, item := range cart.Items {
		lineTotal := item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity)))
		snapshot.Items = append(snapshot.Items, LineDTO{
			VariantID:   item.VariantID,
			ProductName: item.ProductName,
			VariantName: item.VariantName,
			ImageURL:    item.ImageURL,
			UnitPrice:   item.UnitPrice,
			Quantity:    item.Quantity,
			LineTotal:   lineTotal,
		})
		snapshot.ItemCount += item.Quantity
		snapshot.Subtotal = snapshot.Subtotal.Add(lineTotal)
	}
	return snapshot
}
