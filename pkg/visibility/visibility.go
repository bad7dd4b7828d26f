package visibility

import (
	"gorm.io/gorm"

	"github.com/mercatohq/mercato-backend/pkg/db/models"
	pkgerrors "github.com/mercatohq/mercato-backend/pkg/errors"
)

// Sellable is the canonical visibility predicate for catalog rows: soft-deleted
// or deactivated products never leak through storefront or POS queries. It is
// threaded explicitly through every query instead of living in global scopes.
func Sellable(db *gorm.DB) *gorm.DB {
	return db.Where("products.is_active = ? AND products.is_deleted = ?", true, false)
}

// SellableVariants narrows a variant query to live, non-deleted variants.
func SellableVariants(db *gorm.DB) *gorm.DB {
	return db.Where("product_variants.is_active = ? AND product_variants.is_deleted = ?", true, false)
}

// EnsureProductSellable enforces the same predicate on an already-loaded row.
func EnsureProductSellable(product *models.Product) error {
	if product == nil || product.IsDeleted {
		return pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	}
	if !product.IsActive {
		return pkgerrors.New(pkgerrors.CodeValidation, "product is not available")
	}
	return nil
}

// EnsureVariantSellable enforces the predicate on a loaded variant row.
func EnsureVariantSellable(variant *models.ProductVariant) error {
	if variant == nil || variant.IsDeleted {
		return pkgerrors.New(pkgerrors.CodeNotFound, "variant not found")
	}
	if !variant.IsActive {
		return pkgerrors.New(pkgerrors.CodeValidation, "variant is not available")
	}
	return nil
}
