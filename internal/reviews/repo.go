package reviews

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ulugbekov/savdo-backend/pkg/db/models"
	"github.com/ulugbekov/savdo-backend/pkg/pagination"
)

// Repository persists product reviews.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Insert stores a new review. The (user_id, product_id) unique index rejects
// a second review from the same user.
func (r *Repository) Insert(ctx context.Context, review *models.Review) error {
	return r.db.WithContext(ctx).Create(review).Error
}

// ListForProduct returns a cursor page of reviews, newest first.
func (r *Repository) ListForProduct(ctx context.Context, productID uuid.UUID, limit int, cursor *pagination.Cursor) ([]models.Review, error) {
	query := r.db.WithContext(ctx).
		Where("product_id = ?", productID).
		Order("created_at DESC").
		Order("id DESC").
		Limit(limit)
	if cursor != nil {
		query = query.Where(
			"created_at < ? OR (created_at = ? AND id < ?)",
			cursor.CreatedAt, cursor.CreatedAt, cursor.ID,
		)
	}

	var rows []models.Review
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
