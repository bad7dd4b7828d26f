package handlers

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mercatohq/mercato-backend/api/responses"
	"github.com/mercatohq/mercato-backend/api/validators"
	"github.com/mercatohq/mercato-backend/internal/catalog"
	"github.com/mercatohq/mercato-backend/pkg/enums"
	pkgerrors "github.com/mercatohq/mercato-backend/pkg/errors"
	"github.com/mercatohq/mercato-backend/pkg/logger"
)

type attributeValuePayload struct {
	Value        string  `json:"value" validate:"required,min=1,max=120"`
	DisplayValue string  `json:"displayValue" validate:"max=120"`
	ColorCode    *string `json:"colorCode,omitempty" validate:"omitempty,max=16"`
}

type defineAttributePayload struct {
	Name        string                  `json:"name" validate:"required,min=1,max=120"`
	DisplayName string                  `json:"displayName" validate:"max=120"`
	ValueType   string                  `json:"valueType" validate:"required"`
	Values      []attributeValuePayload `json:"values" validate:"dive"`
}

func DefineAttribute(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body defineAttributePayload
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		valueType, err := enums.ParseAttributeValueType(body.ValueType)
		if err != nil {
			responses.WriteError(r.Context(), logg, w,
				pkgerrors.New(pkgerrors.CodeValidation, err.Error()))
			return
		}

		attr, err := svc.DefineAttribute(r.Context(), catalog.DefineAttributeInput{
			Name:        body.Name,
			DisplayName: body.DisplayName,
			ValueType:   valueType,
			Values:      toValueInputs(body.Values),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, attr)
	}
}

func AddAttributeValue(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		attributeID, err := validators.ParseUUIDParam(r, "attributeId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body attributeValuePayload
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		attr, err := svc.AddAttributeValue(r.Context(), attributeID, catalog.AttributeValueInput{
			Value:        body.Value,
			DisplayValue: body.DisplayValue,
			ColorCode:    body.ColorCode,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, attr)
	}
}

func ListAttributes(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		attrs, err := svc.ListAttributes(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, attrs)
	}
}

type staticAttributePayload struct {
	AttributeID uuid.UUID `json:"attributeId" validate:"required"`
	Value       string    `json:"value" validate:"required,min=1,max=200"`
}

type createProductPayload struct {
	SKU              string                   `json:"sku" validate:"required,min=1,max=64"`
	Name             string                   `json:"name" validate:"required,min=1,max=200"`
	Description      *string                  `json:"description,omitempty"`
	BasePrice        decimal.Decimal          `json:"basePrice" validate:"required"`
	BaseCost         *decimal.Decimal         `json:"baseCost,omitempty"`
	DiscountPercent  *decimal.Decimal         `json:"discountPercent,omitempty"`
	Images           []string                 `json:"images,omitempty" validate:"max=12,dive,url"`
	IsActive         *bool                    `json:"isActive,omitempty"`
	StaticAttributes []staticAttributePayload `json:"staticAttributes,omitempty" validate:"dive"`
}

func CreateProduct(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body createProductPayload
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input := catalog.CreateProductInput{
			SKU:         body.SKU,
			Name:        body.Name,
			Description: body.Description,
			BasePrice:   body.BasePrice,
			Images:      body.Images,
			IsActive:    true,
		}
		if body.BaseCost != nil {
			input.BaseCost = *body.BaseCost
		}
		if body.DiscountPercent != nil {
			input.DiscountPercent = *body.DiscountPercent
		}
		if body.IsActive != nil {
			input.IsActive = *body.IsActive
		}
		for _, assign := range body.StaticAttributes {
			input.StaticAttributes = append(input.StaticAttributes, catalog.StaticAttributeInput{
				AttributeID: assign.AttributeID,
				Value:       assign.Value,
			})
		}

		product, err := svc.CreateProduct(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, product)
	}
}

type updateProductPayload struct {
	Name            *string          `json:"name,omitempty" validate:"omitempty,min=1,max=200"`
	Description     *string          `json:"description,omitempty"`
	BasePrice       *decimal.Decimal `json:"basePrice,omitempty"`
	BaseCost        *decimal.Decimal `json:"baseCost,omitempty"`
	DiscountPercent *decimal.Decimal `json:"discountPercent,omitempty"`
	Images          *[]string        `json:"images,omitempty"`
	IsActive        *bool            `json:"isActive,omitempty"`
}

func UpdateProduct(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		productID, err := validators.ParseUUIDParam(r, "productId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body updateProductPayload
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		product, err := svc.UpdateProduct(r.Context(), productID, catalog.UpdateProductInput{
			Name:            body.Name,
			Description:     body.Description,
			BasePrice:       body.BasePrice,
			BaseCost:        body.BaseCost,
			DiscountPercent: body.DiscountPercent,
			Images:          body.Images,
			IsActive:        body.IsActive,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, product)
	}
}

func GetProduct(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		productID, err := validators.ParseUUIDParam(r, "productId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		product, err := svc.GetProduct(r.Context(), productID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, product)
	}
}

func ListProducts(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		params, err := validators.ParsePagination(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		products, err := svc.ListProducts(r.Context(), params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, products)
	}
}

func DeleteProduct(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		productID, err := validators.ParseUUIDParam(r, "productId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := svc.DeleteProduct(r.Context(), productID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "deleted"})
	}
}

type createVariantPayload struct {
	AttributeValueIDs []uuid.UUID      `json:"attributeValueIds" validate:"required,min=1"`
	PriceOverride     *decimal.Decimal `json:"priceOverride,omitempty"`
	CostOverride      *decimal.Decimal `json:"costOverride,omitempty"`
	InitialStock      int              `json:"initialStock" validate:"min=0"`
}

func CreateVariant(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		productID, err := validators.ParseUUIDParam(r, "productId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body createVariantPayload
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		variant, err := svc.CreateVariant(r.Context(), productID, catalog.CreateVariantInput{
			AttributeValueIDs: body.AttributeValueIDs,
			PriceOverride:     body.PriceOverride,
			CostOverride:      body.CostOverride,
			InitialStock:      body.InitialStock,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, variant)
	}
}

func DeleteVariant(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		variantID, err := validators.ParseUUIDParam(r, "variantId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := svc.DeleteVariant(r.Context(), variantID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "deleted"})
	}
}

type adjustStockPayload struct {
	Delta int `json:"delta" validate:"required"`
}

func AdjustStock(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		variantID, err := validators.ParseUUIDParam(r, "variantId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body adjustStockPayload
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		variant, err := svc.AdjustStock(r.Context(), variantID, body.Delta)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, variant)
	}
}

func AuditDuplicateVariants(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		productID, err := validators.ParseUUIDParam(r, "productId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		groups, err := svc.AuditDuplicateVariants(r.Context(), productID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"duplicates": groups})
	}
}

func toValueInputs(values []attributeValuePayload) []catalog.AttributeValueInput {
	out := make([]catalog.AttributeValueInput, 0, len(values))
	for _, v := range values {
		out = append(out, catalog.AttributeValueInput{
			Value:        v.Value,
			DisplayValue: v.DisplayValue,
			ColorCode:    v.ColorCode,
		})
	}
	return out
}
