package catalog

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mercatohq/mercato-backend/pkg/db/models"
	"github.com/mercatohq/mercato-backend/pkg/enums"
)

// AttributeDTO is the read representation of an attribute and its values.
type AttributeDTO struct {
	ID          uuid.UUID                `json:"id"`
	Name        string                   `json:"name"`
	DisplayName string                   `json:"displayName"`
	ValueType   enums.AttributeValueType `json:"valueType"`
	Values      []AttributeValueDTO      `json:"values"`
}

// AttributeValueDTO is the read representation of one attribute value.
type AttributeValueDTO struct {
	ID           uuid.UUID `json:"id"`
	Value        string    `json:"value"`
	DisplayValue string    `json:"displayValue"`
	ColorCode    *string   `json:"colorCode,omitempty"`
}

// ProductDTO is the read representation of a catalog product.
type ProductDTO struct {
	ID              uuid.UUID       `json:"id"`
	SKU             string          `json:"sku"`
	Name            string          `json:"name"`
	Description     *string         `json:"description,omitempty"`
	BasePrice       decimal.Decimal `json:"basePrice"`
	BaseCost        decimal.Decimal `json:"baseCost"`
	DiscountPercent decimal.Decimal `json:"discountPercent"`
	Images          []string        `json:"images"`
	IsActive        bool            `json:"isActive"`

	// StaticAttributes are product-level assignments (e.g. Material = Cotton),
	// distinct from the attribute values that define variants.
	StaticAttributes []StaticAttributeDTO `json:"staticAttributes,omitempty"`
	Variants         []VariantDTO         `json:"variants,omitempty"`
	CreatedAt        time.Time            `json:"createdAt"`
}

// StaticAttributeDTO is one product-level attribute assignment.
type StaticAttributeDTO struct {
	AttributeID uuid.UUID `json:"attributeId"`
	Value       string    `json:"value"`
}

// VariantDTO is the read representation of a sellable variant. EffectivePrice
// resolves the override-or-base rule so callers never re-derive it.
type VariantDTO struct {
	ID              uuid.UUID           `json:"id"`
	ProductID       uuid.UUID           `json:"productId"`
	Signature       string              `json:"signature"`
	AttributeValues []AttributeValueDTO `json:"attributeValues"`
	EffectivePrice  decimal.Decimal     `json:"effectivePrice"`
	Stock           int                 `json:"stock"`
	IsActive        bool                `json:"isActive"`
}

// DuplicateVariantGroup reports one signature collision found by the audit:
// the variant to keep and the ids safe to remove.
type DuplicateVariantGroup struct {
	Signature  string      `json:"signature"`
	KeepID     uuid.UUID   `json:"keepId"`
	Removable  []uuid.UUID `json:"removable"`
	Referenced []uuid.UUID `json:"referenced"`
}

// EffectivePrice resolves a variant's price: the override when set, the
// product base price otherwise.
func EffectivePrice(product *models.Product, variant *models.ProductVariant) decimal.Decimal {
	if variant != nil && variant.PriceOverride.Valid {
		return variant.PriceOverride.Decimal
	}
	return product.BasePrice
}

func toAttributeDTO(attr *models.Attribute) *AttributeDTO {
	dto := &AttributeDTO{
		ID:          attr.ID,
		Name:        attr.Name,
		DisplayName: attr.DisplayName,
		ValueType:   attr.ValueType,
		Values:      make([]AttributeValueDTO, 0, len(attr.Values)),
	}
	for _, v := range attr.Values {
		dto.Values = append(dto.Values, toAttributeValueDTO(v))
	}
	return dto
}

func toAttributeValueDTO(value models.AttributeValue) AttributeValueDTO {
	return AttributeValueDTO{
		ID:           value.ID,
		Value:        value.Value,
		DisplayValue: value.DisplayValue,
		ColorCode:    value.ColorCode,
	}
}

func toProductDTO(product *models.Product, values map[uuid.UUID]models.AttributeValue) *ProductDTO {
	dto := &ProductDTO{
		ID:              product.ID,
		SKU:             product.SKU,
		Name:            product.Name,
		Description:     product.Description,
		BasePrice:       product.BasePrice,
		BaseCost:        product.BaseCost,
		DiscountPercent: product.DiscountPercent,
		Images:          product.Images,
		IsActive:        product.IsActive,
		CreatedAt:       product.CreatedAt,
	}
	for _, assign := range product.Attributes {
		dto.StaticAttributes = append(dto.StaticAttributes, StaticAttributeDTO{
			AttributeID: assign.AttributeID,
			Value:       assign.Value,
		})
	}
	for i := range product.Variants {
		variant := product.Variants[i]
		if variant.IsDeleted {
			continue
		}
		dto.Variants = append(dto.Variants, toVariantDTO(product, &variant, values))
	}
	return dto
}

func toVariantDTO(product *models.Product, variant *models.ProductVariant, values map[uuid.UUID]models.AttributeValue) VariantDTO {
	dto := VariantDTO{
		ID:             variant.ID,
		ProductID:      variant.ProductID,
		Signature:      variant.Signature,
		EffectivePrice: EffectivePrice(product, variant),
		Stock:          variant.Stock,
		IsActive:       variant.IsActive,
	}
	for _, junction := range variant.AttributeValues {
		if value, ok := values[junction.AttributeValueID]; ok {
			dto.AttributeValues = append(dto.AttributeValues, toAttributeValueDTO(value))
		}
	}
	return dto
}
