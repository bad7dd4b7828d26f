package inventory

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mercatohq/mercato-backend/internal/repo"
	"github.com/mercatohq/mercato-backend/pkg/db/models"
	"github.com/mercatohq/mercato-backend/pkg/pagination"
)

// Repository reads the append-only stock movement history.
type Repository struct {
	repo.Base
}

// NewRepository builds a repository tied to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{Base: repo.NewBase(db)}
}

// ListByVariant returns the newest movements for a variant.
func (r *Repository) ListByVariant(ctx context.Context, variantID uuid.UUID, params pagination.Params) ([]models.StockMovement, error) {
	var rows []models.StockMovement
	err := r.DB(ctx).
		Where("variant_id = ?", variantID).
		Order("created_at DESC").
		Order("id DESC").
		Limit(pagination.NormalizeLimit(params.Limit)).
		Find(&rows).Error
	return rows, err
}

// ListByReference returns all movements recorded for a transaction reference.
func (r *Repository) ListByReference(ctx context.Context, referenceID uuid.UUID) ([]models.StockMovement, error) {
	var rows []models.StockMovement
	err := r.DB(ctx).
		Where("reference_id = ?", referenceID).
		Order("created_at ASC").
		Find(&rows).Error
	return rows, err
}

// NetQuantity sums the signed movement quantities for a variant. For a
// consistent ledger this equals current stock minus the initial load.
func (r *Repository) NetQuantity(ctx context.Context, variantID uuid.UUID) (int, error) {
	var total *int
	err := r.DB(ctx).
		Model(&models.StockMovement{}).
		Select("SUM(quantity)").
		Where("variant_id = ?", variantID).
		Scan(&total).Error
	if err != nil {
		return 0, err
	}
	if total == nil {
		return 0, nil
	}
	return *total, nil
}
