package customers

import (
	"time"

	"github.com/google/uuid"

	"github.com/mercatohq/mercato-backend/pkg/db/models"
)

// RegisterRequest is the storefront signup payload.
type RegisterRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Name     string `json:"name" validate:"required,min=1,max=120"`
	Password string `json:"password" validate:"required,min=8,max=128"`
}

// LoginRequest is the storefront login payload. ClientIP is filled in by the
// transport layer, never by the client.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
	ClientIP string `json:"-"`
}

// StaffLoginRequest is the register-terminal login payload.
type StaffLoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
	ClientIP string `json:"-"`
}

// CustomerDTO is the API shape of a customer account.
type CustomerDTO struct {
	ID        uuid.UUID `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
}

// StaffDTO is the API shape of a staff account.
type StaffDTO struct {
	ID       uuid.UUID `json:"id"`
	Username string    `json:"username"`
	Name     string    `json:"name"`
}

// AuthResult carries the minted token together with the account it belongs to.
type AuthResult struct {
	AccessToken string       `json:"-"`
	Customer    *CustomerDTO `json:"customer"`
}

// StaffAuthResult is the staff counterpart of AuthResult.
type StaffAuthResult struct {
	AccessToken string    `json:"-"`
	Staff       *StaffDTO `json:"staff"`
}

func toCustomerDTO(customer *models.Customer) *CustomerDTO {
	return &CustomerDTO{
		ID:        customer.ID,
		Email:     customer.Email,
		Name:      customer.Name,
		CreatedAt: customer.CreatedAt,
	}
}

func toStaffDTO(staff *models.Staff) *StaffDTO {
	return &StaffDTO{
		ID:       staff.ID,
		Username: staff.Username,
		Name:     staff.Name,
	}
}
