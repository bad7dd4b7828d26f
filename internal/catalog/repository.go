package catalog

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mercatohq/mercato-backend/pkg/db/models"
	"github.com/mercatohq/mercato-backend/pkg/pagination"
	"github.com/mercatohq/mercato-backend/pkg/visibility"
)

// Repository wires together catalog persistence helpers.
type Repository struct {
	db *gorm.DB
}

// NewRepository builds a repository tied to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to the provided transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{db: tx}
}

// CreateAttribute inserts the attribute together with its values.
func (r *Repository) CreateAttribute(ctx context.Context, attr *models.Attribute) error {
	return r.db.WithContext(ctx).Create(attr).Error
}

// FindAttributeByID loads an attribute with its values.
func (r *Repository) FindAttributeByID(ctx context.Context, id uuid.UUID) (*models.Attribute, error) {
	var attr models.Attribute
	err := r.db.WithContext(ctx).
		Preload("Values", func(db *gorm.DB) *gorm.DB {
			return db.Order("value ASC")
		}).
		First(&attr, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &attr, nil
}

// ListAttributes returns all attributes with their values.
func (r *Repository) ListAttributes(ctx context.Context) ([]models.Attribute, error) {
	var rows []models.Attribute
	err := r.db.WithContext(ctx).
		Preload("Values", func(db *gorm.DB) *gorm.DB {
			return db.Order("value ASC")
		}).
		Order("name ASC").
		Find(&rows).Error
	return rows, err
}

// CreateAttributeValue inserts one value row.
func (r *Repository) CreateAttributeValue(ctx context.Context, value *models.AttributeValue) error {
	return r.db.WithContext(ctx).Create(value).Error
}

// CountAttributeValue reports whether (attribute_id, value) already exists.
func (r *Repository) CountAttributeValue(ctx context.Context, attributeID uuid.UUID, value string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.AttributeValue{}).
		Where("attribute_id = ? AND value = ?", attributeID, value).
		Count(&count).Error
	return count, err
}

// FindAttributeValues loads the value rows for the given ids.
func (r *Repository) FindAttributeValues(ctx context.Context, ids []uuid.UUID) ([]models.AttributeValue, error) {
	var rows []models.AttributeValue
	err := r.db.WithContext(ctx).
		Where("id IN ?", ids).
		Find(&rows).Error
	return rows, err
}

// CreateProduct inserts a new product row.
func (r *Repository) CreateProduct(ctx context.Context, product *models.Product) error {
	return r.db.WithContext(ctx).Create(product).Error
}

// UpdateProduct persists the full product row.
func (r *Repository) UpdateProduct(ctx context.Context, product *models.Product) error {
	return r.db.WithContext(ctx).Save(product).Error
}

// FindProductByID loads the product without associations.
func (r *Repository) FindProductByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var product models.Product
	if err := r.db.WithContext(ctx).First(&product, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

// FindProductDetail loads the product with live variants and their junctions.
func (r *Repository) FindProductDetail(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var product models.Product
	err := r.db.WithContext(ctx).
		Preload("Attributes").
		Preload("Variants", func(db *gorm.DB) *gorm.DB {
			return db.Where("is_deleted = ?", false).Order("created_at ASC")
		}).
		Preload("Variants.AttributeValues").
		First(&product, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &product, nil
}

// SoftDeleteProduct marks the product removed without destroying history.
func (r *Repository) SoftDeleteProduct(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("id = ?", id).
		Updates(map[string]any{"is_deleted": true, "is_active": false}).Error
}

// ListSellableProducts pages through visible products newest first.
func (r *Repository) ListSellableProducts(ctx context.Context, params pagination.Params) ([]models.Product, error) {
	pageSize := pagination.NormalizeLimit(params.Limit)
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, err
	}

	qb := visibility.Sellable(r.db.WithContext(ctx).Model(&models.Product{}))
	if cursor != nil {
		qb = qb.Where("(created_at, id) < (?, ?)", cursor.CreatedAt, cursor.ID)
	}

	var rows []models.Product
	err = qb.
		Order("created_at DESC").
		Order("id DESC").
		Limit(pageSize).
		Find(&rows).Error
	return rows, err
}

// CreateVariant inserts the variant and its junction rows atomically.
func (r *Repository) CreateVariant(ctx context.Context, variant *models.ProductVariant) error {
	return r.db.WithContext(ctx).Create(variant).Error
}

// UpdateVariant persists the full variant row.
func (r *Repository) UpdateVariant(ctx context.Context, variant *models.ProductVariant) error {
	return r.db.WithContext(ctx).Save(variant).Error
}

// FindVariantByID loads the variant with its junction rows.
func (r *Repository) FindVariantByID(ctx context.Context, id uuid.UUID) (*models.ProductVariant, error) {
	var variant models.ProductVariant
	err := r.db.WithContext(ctx).
		Preload("AttributeValues").
		First(&variant, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &variant, nil
}

// FindLiveVariantBySignature returns the non-deleted variant of the product
// carrying the signature, if any.
func (r *Repository) FindLiveVariantBySignature(ctx context.Context, productID uuid.UUID, signature string) (*models.ProductVariant, error) {
	var variant models.ProductVariant
	err := r.db.WithContext(ctx).
		Where("product_id = ? AND signature = ? AND is_deleted = ?", productID, signature, false).
		First(&variant).Error
	if err != nil {
		return nil, err
	}
	return &variant, nil
}

// ListLiveVariants returns the non-deleted variants of a product.
func (r *Repository) ListLiveVariants(ctx context.Context, productID uuid.UUID) ([]models.ProductVariant, error) {
	var rows []models.ProductVariant
	err := r.db.WithContext(ctx).
		Preload("AttributeValues").
		Where("product_id = ? AND is_deleted = ?", productID, false).
		Order("created_at ASC").
		Find(&rows).Error
	return rows, err
}

// SoftDeleteVariant marks the variant removed; its signature is freed for a
// replacement because the unique index only covers live rows.
func (r *Repository) SoftDeleteVariant(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&models.ProductVariant{}).
		Where("id = ?", id).
		Updates(map[string]any{"is_deleted": true, "is_active": false}).Error
}

// CountVariantReferences counts transaction lines pointing at the variant
// across carts, orders, and sales.
func (r *Repository) CountVariantReferences(ctx context.Context, variantID uuid.UUID) (int64, error) {
	var total int64
	for _, model := range []any{&models.CartItem{}, &models.OrderItem{}, &models.SaleItem{}} {
		var count int64
		if err := r.db.WithContext(ctx).Model(model).Where("variant_id = ?", variantID).Count(&count).Error; err != nil {
			return 0, err
		}
		total += count
	}
	return total, nil
}
