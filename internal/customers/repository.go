package customers

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mercatohq/mercato-backend/internal/repo"
	"github.com/mercatohq/mercato-backend/pkg/db/models"
)

// Repository wires together account persistence helpers.
type Repository struct {
	repo.Base
}

// NewRepository builds a repository tied to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{Base: repo.NewBase(db)}
}

// CreateCustomer inserts the account row.
func (r *Repository) CreateCustomer(ctx context.Context, customer *models.Customer) error {
	return r.DB(ctx).Create(customer).Error
}

// FindCustomerByEmail loads a customer by normalized email.
func (r *Repository) FindCustomerByEmail(ctx context.Context, email string) (*models.Customer, error) {
	var customer models.Customer
	if err := r.DB(ctx).First(&customer, "email = ?", email).Error; err != nil {
		return nil, err
	}
	return &customer, nil
}

// FindCustomerByID loads a customer account.
func (r *Repository) FindCustomerByID(ctx context.Context, id uuid.UUID) (*models.Customer, error) {
	var customer models.Customer
	if err := r.DB(ctx).First(&customer, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &customer, nil
}

// FindStaffByUsername loads a staff account.
func (r *Repository) FindStaffByUsername(ctx context.Context, username string) (*models.Staff, error) {
	var staff models.Staff
	if err := r.DB(ctx).First(&staff, "username = ?", username).Error; err != nil {
		return nil, err
	}
	return &staff, nil
}
