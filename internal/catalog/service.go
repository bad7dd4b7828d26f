package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/mercatohq/mercato-backend/internal/inventory"
	dbpkg "github.com/mercatohq/mercato-backend/pkg/db"
	"github.com/mercatohq/mercato-backend/pkg/db/models"
	"github.com/mercatohq/mercato-backend/pkg/enums"
	pkgerrors "github.com/mercatohq/mercato-backend/pkg/errors"
	"github.com/mercatohq/mercato-backend/pkg/pagination"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service exposes catalog management operations.
type Service interface {
	DefineAttribute(ctx context.Context, input DefineAttributeInput) (*AttributeDTO, error)
	AddAttributeValue(ctx context.Context, attributeID uuid.UUID, input AttributeValueInput) (*AttributeDTO, error)
	ListAttributes(ctx context.Context) ([]AttributeDTO, error)
	CreateProduct(ctx context.Context, input CreateProductInput) (*ProductDTO, error)
	UpdateProduct(ctx context.Context, productID uuid.UUID, input UpdateProductInput) (*ProductDTO, error)
	DeleteProduct(ctx context.Context, productID uuid.UUID) error
	GetProduct(ctx context.Context, productID uuid.UUID) (*ProductDTO, error)
	ListProducts(ctx context.Context, params pagination.Params) ([]ProductDTO, error)
	CreateVariant(ctx context.Context, productID uuid.UUID, input CreateVariantInput) (*VariantDTO, error)
	AdjustStock(ctx context.Context, variantID uuid.UUID, delta int) (*VariantDTO, error)
	DeleteVariant(ctx context.Context, variantID uuid.UUID) error
	AuditDuplicateVariants(ctx context.Context, productID uuid.UUID) ([]DuplicateVariantGroup, error)
}

// DefineAttributeInput holds the validated payload to create an attribute
// together with its initial values.
type DefineAttributeInput struct {
	Name        string
	DisplayName string
	ValueType   enums.AttributeValueType
	Values      []AttributeValueInput
}

// AttributeValueInput captures one value of an attribute.
type AttributeValueInput struct {
	Value        string
	DisplayValue string
	ColorCode    *string
}

// CreateProductInput holds the validated payload to create a product.
type CreateProductInput struct {
	SKU              string
	Name             string
	Description      *string
	BasePrice        decimal.Decimal
	BaseCost         decimal.Decimal
	DiscountPercent  decimal.Decimal
	Images           []string
	IsActive         bool
	StaticAttributes []StaticAttributeInput
}

// StaticAttributeInput assigns a literal attribute value to the product
// itself, as opposed to the variant-defining attribute values.
type StaticAttributeInput struct {
	AttributeID uuid.UUID
	Value       string
}

// UpdateProductInput holds optional mutation values for a product.
type UpdateProductInput struct {
	Name            *string
	Description     *string
	BasePrice       *decimal.Decimal
	BaseCost        *decimal.Decimal
	DiscountPercent *decimal.Decimal
	Images          *[]string
	IsActive        *bool
}

// CreateVariantInput holds the payload to create a sellable variant.
type CreateVariantInput struct {
	AttributeValueIDs []uuid.UUID
	PriceOverride     *decimal.Decimal
	CostOverride      *decimal.Decimal
	InitialStock      int
}

type service struct {
	repo *Repository
	tx   txRunner
	ledg inventory.Ledger
}

// NewService constructs a catalog service instance.
func NewService(repo *Repository, tx txRunner, ledg inventory.Ledger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("catalog repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	return &service{repo: repo, tx: tx, ledg: ledg}, nil
}

func (s *service) DefineAttribute(ctx context.Context, input DefineAttributeInput) (*AttributeDTO, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "attribute name is required")
	}
	if !input.ValueType.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid attribute value type %q", input.ValueType))
	}

	seen := make(map[string]struct{}, len(input.Values))
	values := make([]models.AttributeValue, 0, len(input.Values))
	for _, v := range input.Values {
		raw := strings.TrimSpace(v.Value)
		if raw == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "attribute value must not be empty")
		}
		if _, dup := seen[raw]; dup {
			return nil, pkgerrors.New(pkgerrors.CodeDuplicateValue,
				fmt.Sprintf("duplicate value %q in attribute payload", raw))
		}
		seen[raw] = struct{}{}
		display := v.DisplayValue
		if display == "" {
			display = raw
		}
		values = append(values, models.AttributeValue{
			ID:           uuid.New(),
			Value:        raw,
			DisplayValue: display,
			ColorCode:    v.ColorCode,
		})
	}

	attr := &models.Attribute{
		ID:          uuid.New(),
		Name:        name,
		DisplayName: orDefault(input.DisplayName, name),
		ValueType:   input.ValueType,
		Values:      values,
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		return s.repo.WithTx(tx).CreateAttribute(ctx, attr)
	})
	if err != nil {
		if dbpkg.IsUniqueViolation(err, "idx_attribute_value") {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDuplicateValue, err, "attribute value already exists")
		}
		if dbpkg.IsUniqueViolation(err, "") {
			return nil, pkgerrors.Wrap(pkgerrors.CodeConflict, err,
				fmt.Sprintf("attribute %q already exists", name))
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create attribute")
	}
	return toAttributeDTO(attr), nil
}

func (s *service) AddAttributeValue(ctx context.Context, attributeID uuid.UUID, input AttributeValueInput) (*AttributeDTO, error) {
	raw := strings.TrimSpace(input.Value)
	if raw == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "attribute value must not be empty")
	}

	attr, err := s.repo.FindAttributeByID(ctx, attributeID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "attribute not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load attribute")
	}

	count, err := s.repo.CountAttributeValue(ctx, attributeID, raw)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check attribute value")
	}
	if count > 0 {
		return nil, pkgerrors.New(pkgerrors.CodeDuplicateValue,
			fmt.Sprintf("value %q already defined for attribute %s", raw, attr.Name))
	}

	value := &models.AttributeValue{
		ID:           uuid.New(),
		AttributeID:  attributeID,
		Value:        raw,
		DisplayValue: orDefault(input.DisplayValue, raw),
		ColorCode:    input.ColorCode,
	}
	if err := s.repo.CreateAttributeValue(ctx, value); err != nil {
		if dbpkg.IsUniqueViolation(err, "idx_attribute_value") {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDuplicateValue, err, "attribute value already exists")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create attribute value")
	}

	attr.Values = append(attr.Values, *value)
	return toAttributeDTO(attr), nil
}

func (s *service) ListAttributes(ctx context.Context) ([]AttributeDTO, error) {
	rows, err := s.repo.ListAttributes(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list attributes")
	}
	out := make([]AttributeDTO, 0, len(rows))
	for i := range rows {
		out = append(out, *toAttributeDTO(&rows[i]))
	}
	return out, nil
}

func (s *service) CreateProduct(ctx context.Context, input CreateProductInput) (*ProductDTO, error) {
	sku := strings.TrimSpace(input.SKU)
	if sku == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product sku is required")
	}
	if strings.TrimSpace(input.Name) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product name is required")
	}
	if input.BasePrice.IsNegative() || input.BaseCost.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product prices must not be negative")
	}

	product := &models.Product{
		ID:              uuid.New(),
		SKU:             sku,
		Name:            input.Name,
		Description:     input.Description,
		BasePrice:       input.BasePrice,
		BaseCost:        input.BaseCost,
		DiscountPercent: input.DiscountPercent,
		Images:          input.Images,
		IsActive:        input.IsActive,
	}

	seen := make(map[uuid.UUID]struct{}, len(input.StaticAttributes))
	for _, assign := range input.StaticAttributes {
		if assign.AttributeID == uuid.Nil || strings.TrimSpace(assign.Value) == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "static attribute needs an attribute id and a value")
		}
		if _, dup := seen[assign.AttributeID]; dup {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "static attribute assigned twice")
		}
		seen[assign.AttributeID] = struct{}{}
		product.Attributes = append(product.Attributes, models.ProductAttribute{
			ID:          uuid.New(),
			ProductID:   product.ID,
			AttributeID: assign.AttributeID,
			Value:       strings.TrimSpace(assign.Value),
		})
	}

	if err := s.repo.CreateProduct(ctx, product); err != nil {
		if dbpkg.IsUniqueViolation(err, "") {
			return nil, pkgerrors.Wrap(pkgerrors.CodeConflict, err, fmt.Sprintf("sku %q already exists", sku))
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create product")
	}
	return toProductDTO(product, nil), nil
}

func (s *service) UpdateProduct(ctx context.Context, productID uuid.UUID, input UpdateProductInput) (*ProductDTO, error) {
	product, err := s.loadLiveProduct(ctx, productID)
	if err != nil {
		return nil, err
	}

	if input.Name != nil {
		if strings.TrimSpace(*input.Name) == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "product name must not be empty")
		}
		product.Name = *input.Name
	}
	if input.Description != nil {
		product.Description = input.Description
	}
	if input.BasePrice != nil {
		if input.BasePrice.IsNegative() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "base price must not be negative")
		}
		product.BasePrice = *input.BasePrice
	}
	if input.BaseCost != nil {
		if input.BaseCost.IsNegative() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "base cost must not be negative")
		}
		product.BaseCost = *input.BaseCost
	}
	if input.DiscountPercent != nil {
		product.DiscountPercent = *input.DiscountPercent
	}
	if input.Images != nil {
		product.Images = *input.Images
	}
	if input.IsActive != nil {
		product.IsActive = *input.IsActive
	}

	if err := s.repo.UpdateProduct(ctx, product); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update product")
	}
	return toProductDTO(product, nil), nil
}

func (s *service) DeleteProduct(ctx context.Context, productID uuid.UUID) error {
	if _, err := s.loadLiveProduct(ctx, productID); err != nil {
		return err
	}
	if err := s.repo.SoftDeleteProduct(ctx, productID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete product")
	}
	return nil
}

func (s *service) GetProduct(ctx context.Context, productID uuid.UUID) (*ProductDTO, error) {
	product, err := s.repo.FindProductDetail(ctx, productID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}
	if product.IsDeleted {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	}

	values, err := s.loadVariantValues(ctx, product.Variants)
	if err != nil {
		return nil, err
	}
	return toProductDTO(product, values), nil
}

func (s *service) ListProducts(ctx context.Context, params pagination.Params) ([]ProductDTO, error) {
	rows, err := s.repo.ListSellableProducts(ctx, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list products")
	}
	out := make([]ProductDTO, 0, len(rows))
	for i := range rows {
		out = append(out, *toProductDTO(&rows[i], nil))
	}
	return out, nil
}

func (s *service) CreateVariant(ctx context.Context, productID uuid.UUID, input CreateVariantInput) (*VariantDTO, error) {
	if len(input.AttributeValueIDs) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "variant requires at least one attribute value")
	}
	idsSeen := make(map[uuid.UUID]struct{}, len(input.AttributeValueIDs))
	for _, id := range input.AttributeValueIDs {
		if _, dup := idsSeen[id]; dup {
			return nil, pkgerrors.New(pkgerrors.CodeValidation,
				fmt.Sprintf("attribute value %s listed twice", id))
		}
		idsSeen[id] = struct{}{}
	}
	if input.InitialStock < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "initial stock must not be negative")
	}

	product, err := s.loadLiveProduct(ctx, productID)
	if err != nil {
		return nil, err
	}

	values, err := s.repo.FindAttributeValues(ctx, input.AttributeValueIDs)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load attribute values")
	}
	byID := make(map[uuid.UUID]models.AttributeValue, len(values))
	attributesSeen := make(map[uuid.UUID]string, len(values))
	for _, v := range values {
		byID[v.ID] = v
		if prior, dup := attributesSeen[v.AttributeID]; dup {
			return nil, pkgerrors.New(pkgerrors.CodeValidation,
				fmt.Sprintf("values %q and %q belong to the same attribute", prior, v.Value))
		}
		attributesSeen[v.AttributeID] = v.Value
	}
	for _, id := range input.AttributeValueIDs {
		if _, ok := byID[id]; !ok {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("attribute value %s not found", id))
		}
	}

	signature := Signature(input.AttributeValueIDs)
	variant := &models.ProductVariant{
		ID:        uuid.New(),
		ProductID: productID,
		Signature: signature,
		Stock:     input.InitialStock,
		IsActive:  true,
	}
	if input.PriceOverride != nil {
		variant.PriceOverride = decimal.NewNullDecimal(*input.PriceOverride)
	}
	if input.CostOverride != nil {
		variant.CostOverride = decimal.NewNullDecimal(*input.CostOverride)
	}
	for _, id := range input.AttributeValueIDs {
		variant.AttributeValues = append(variant.AttributeValues, models.VariantAttributeValue{
			VariantID:        variant.ID,
			AttributeValueID: id,
		})
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)
		if _, err := txRepo.FindLiveVariantBySignature(ctx, productID, signature); err == nil {
			return pkgerrors.New(pkgerrors.CodeDuplicateVariant,
				"a variant with this attribute combination already exists")
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check variant signature")
		}
		return txRepo.CreateVariant(ctx, variant)
	})
	if err != nil {
		if typed := pkgerrors.As(err); typed != nil {
			return nil, typed
		}
		// unique index race between the check and the insert
		if dbpkg.IsUniqueViolation(err, "idx_product_variant_signature") {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDuplicateVariant, err,
				"a variant with this attribute combination already exists")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create variant")
	}

	dto := toVariantDTO(product, variant, byID)
	return &dto, nil
}

func (s *service) AdjustStock(ctx context.Context, variantID uuid.UUID, delta int) (*VariantDTO, error) {
	if delta == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "stock adjustment must not be zero")
	}

	adjustmentID := uuid.New()
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if delta > 0 {
			return s.ledg.Restore(ctx, tx, []inventory.Line{{VariantID: variantID, Quantity: delta}},
				enums.StockMovementReasonAdjustment, adjustmentID)
		}
		return s.ledg.Decrement(ctx, tx, []inventory.Line{{VariantID: variantID, Quantity: -delta}},
			enums.StockMovementReasonAdjustment, adjustmentID)
	})
	if err != nil {
		if typed := pkgerrors.As(err); typed != nil {
			return nil, typed
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "adjust stock")
	}

	variant, err := s.repo.FindVariantByID(ctx, variantID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload variant")
	}
	product, err := s.repo.FindProductByID(ctx, variant.ProductID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}
	values, err := s.loadVariantValues(ctx, []models.ProductVariant{*variant})
	if err != nil {
		return nil, err
	}
	dto := toVariantDTO(product, variant, values)
	return &dto, nil
}

func (s *service) DeleteVariant(ctx context.Context, variantID uuid.UUID) error {
	if _, err := s.repo.FindVariantByID(ctx, variantID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "variant not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load variant")
	}
	if err := s.repo.SoftDeleteVariant(ctx, variantID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete variant")
	}
	return nil
}

// AuditDuplicateVariants reconciles signature collisions that predate the
// unique index. It groups live variants by signature and, per group, keeps
// the first referenced variant (falling back to the oldest), reporting the
// rest as removable. The audit only reports; it never deletes.
func (s *service) AuditDuplicateVariants(ctx context.Context, productID uuid.UUID) ([]DuplicateVariantGroup, error) {
	variants, err := s.repo.ListLiveVariants(ctx, productID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list variants")
	}

	bySignature := make(map[string][]models.ProductVariant)
	order := []string{}
	for _, v := range variants {
		if _, seen := bySignature[v.Signature]; !seen {
			order = append(order, v.Signature)
		}
		bySignature[v.Signature] = append(bySignature[v.Signature], v)
	}

	groups := []DuplicateVariantGroup{}
	for _, signature := range order {
		members := bySignature[signature]
		if len(members) < 2 {
			continue
		}

		referenced := make(map[uuid.UUID]bool, len(members))
		for _, member := range members {
			count, err := s.repo.CountVariantReferences(ctx, member.ID)
			if err != nil {
				return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count variant references")
			}
			referenced[member.ID] = count > 0
		}

		group := DuplicateVariantGroup{Signature: signature}
		for _, member := range members {
			if referenced[member.ID] {
				group.KeepID = member.ID
				break
			}
		}
		if group.KeepID == uuid.Nil {
			group.KeepID = members[0].ID
		}
		for _, member := range members {
			if member.ID == group.KeepID {
				continue
			}
			if referenced[member.ID] {
				group.Referenced = append(group.Referenced, member.ID)
				continue
			}
			group.Removable = append(group.Removable, member.ID)
		}
		groups = append(groups, group)
	}
	return groups, nil
}

func (s *service) loadLiveProduct(ctx context.Context, productID uuid.UUID) (*models.Product, error) {
	product, err := s.repo.FindProductByID(ctx, productID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}
	if product.IsDeleted {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	}
	return product, nil
}

func (s *service) loadVariantValues(ctx context.Context, variants []models.ProductVariant) (map[uuid.UUID]models.AttributeValue, error) {
	ids := []uuid.UUID{}
	for _, variant := range variants {
		for _, junction := range variant.AttributeValues {
			ids = append(ids, junction.AttributeValueID)
		}
	}
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := s.repo.FindAttributeValues(ctx, ids)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load attribute values")
	}
	values := make(map[uuid.UUID]models.AttributeValue, len(rows))
	for _, row := range rows {
		values[row.ID] = row
	}
	return values, nil
}

func orDefault(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}
