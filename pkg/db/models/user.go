package models

import (
	"time"

	"github.com/google/uuid"
)

// User represents the canonical phone-first identity entity.
type User struct {
	ID                     uuid.UUID  `gorm:"column:id;type:uuid;primaryKey"`
	Phone                  string     `gorm:"column:phone;type:text;not null;uniqueIndex:ux_users_phone"`
	Name                   string     `gorm:"column:name;not null;default:''"`
	Email                  string     `gorm:"column:email;not null;default:''"`
	PasswordHash           *string    `gorm:"column:password_hash"`
	DefaultShippingAddress string     `gorm:"column:default_shipping_address;not null;default:''"`
	IsActive               bool       `gorm:"column:is_active;not null;default:true"`
	LastLoginAt            *time.Time `gorm:"column:last_login_at"`
	CreatedAt              time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt              time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}
