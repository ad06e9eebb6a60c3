package verification

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/ulugbekov/savdo-backend/pkg/db/models"
	"github.com/ulugbekov/savdo-backend/pkg/enums"
)

// Repository persists verification codes.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx rebinds the repository to a transaction handle.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

// DeleteForPhone removes every code issued to the phone for the given
// purpose. Issuing a new code always invalidates the old ones.
func (r *Repository) DeleteForPhone(ctx context.Context, phone string, purpose enums.CodePurpose) error {
	return r.db.WithContext(ctx).
		Where("phone = ? AND purpose = ?", phone, purpose).
		Delete(&models.VerificationCode{}).Error
}

// Insert stores a freshly issued code.
func (r *Repository) Insert(ctx context.Context, code *models.VerificationCode) error {
	return r.db.WithContext(ctx).Create(code).Error
}

// Consume marks the matching live code as used in a single UPDATE. The
// returned row count is the arbiter: exactly one row flipped means the code
// was valid, unexpired and unconsumed. Concurrent callers race on the same
// UPDATE, so at most one of them ever sees a count of one.
func (r *Repository) Consume(ctx context.Context, phone, code string, purpose enums.CodePurpose, now time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.VerificationCode{}).
		Where("phone = ? AND code = ? AND purpose = ? AND used = ? AND expires_at > ?",
			phone, code, purpose, false, now).
		Update("used", true)
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}
