package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/ulugbekov/savdo-backend/pkg/enums"
)

// VerificationCode is a single-use OTP bound to a phone number. At most one
// unconsumed, unexpired row may exist per (phone, purpose); issuing a new code
// deletes the prior rows in the same transaction.
type VerificationCode struct {
	ID        uuid.UUID         `gorm:"column:id;type:uuid;primaryKey"`
	Phone     string            `gorm:"column:phone;type:text;not null;index:ix_verification_codes_phone"`
	Code      string            `gorm:"column:code;type:char(6);not null"`
	Purpose   enums.CodePurpose `gorm:"column:purpose;type:text;not null;default:'login'"`
	Used      bool              `gorm:"column:used;not null;default:false"`
	ExpiresAt time.Time         `gorm:"column:expires_at;not null"`
	CreatedAt time.Time         `gorm:"column:created_at;autoCreateTime"`
}
