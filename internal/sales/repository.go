package sales

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mercatohq/mercato-backend/pkg/db/models"
	"github.com/mercatohq/mercato-backend/pkg/enums"
	"github.com/mercatohq/mercato-backend/pkg/pagination"
)

// Repository wires together sale persistence helpers.
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

// Create inserts the sale together with its line snapshots.
func (r *Repository) Create(ctx context.Context, sale *models.Sale) error {
	return r.db.WithContext(ctx).Create(sale).Error
}

// FindByID loads a sale with its items.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Sale, error) {
	var sale models.Sale
	err := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at ASC")
		}).
		First(&sale, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &sale, nil
}

// ListByStaff returns the register transactions of one staff member, newest
// first.
func (r *Repository) ListByStaff(ctx context.Context, staffID uuid.UUID, params pagination.Params) ([]models.Sale, error) {
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, err
	}
	query := r.db.WithContext(ctx).
		Preload("Items").
		Where("staff_id = ?", staffID).
		Order("created_at DESC, id DESC").
		Limit(pagination.NormalizeLimit(params.Limit))
	if cursor != nil {
		query = query.Where("(created_at, id) < (?, ?)", cursor.CreatedAt, cursor.ID)
	}
	var rows []models.Sale
	err = query.Find(&rows).Error
	return rows, err
}

// TransitionStatus flips the status only when the row still carries the
// expected current status.
func (r *Repository) TransitionStatus(ctx context.Context, id uuid.UUID, from, to enums.SaleStatus) (bool, error) {
	updates := map[string]any{"status": to, "updated_at": time.Now()}
	if to == enums.SaleStatusVoided {
		now := time.Now()
		updates["voided_at"] = &now
	}
	result := r.db.WithContext(ctx).
		Model(&models.Sale{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}
