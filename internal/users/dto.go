package users

import (
	"time"

	"github.com/google/uuid"

	"github.com/ulugbekov/savdo-backend/pkg/db/models"
)

// UserDTO is the transport-facing shape of a user profile.
type UserDTO struct {
	ID                     uuid.UUID `json:"id"`
	Phone                  string    `json:"phone"`
	Name                   string    `json:"name"`
	Email                  string    `json:"email"`
	DefaultShippingAddress string    `json:"default_shipping_address"`
	CreatedAt              time.Time `json:"created_at"`
}

// FromModel maps the persisted user into its DTO.
func FromModel(user *models.User) *UserDTO {
	if user == nil {
		return nil
	}
	return &UserDTO{
		ID:                     user.ID,
		Phone:                  user.Phone,
		Name:                   user.Name,
		Email:                  user.Email,
		DefaultShippingAddress: user.DefaultShippingAddress,
		CreatedAt:              user.CreatedAt,
	}
}
